// Package app wires the control plane together: stores, services, the
// authorization proxy, the runtime, and the HTTP handlers.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/agentgrid/control-plane/config"
	"github.com/agentgrid/control-plane/handlers"
	"github.com/agentgrid/control-plane/middleware"
	"github.com/agentgrid/control-plane/models"
	"github.com/agentgrid/control-plane/observability"
	"github.com/agentgrid/control-plane/services/agent"
	"github.com/agentgrid/control-plane/services/audit"
	"github.com/agentgrid/control-plane/services/budget"
	"github.com/agentgrid/control-plane/services/llm"
	"github.com/agentgrid/control-plane/services/org"
	"github.com/agentgrid/control-plane/services/policy"
	"github.com/agentgrid/control-plane/services/proxy"
	"github.com/agentgrid/control-plane/services/runtime"
	"github.com/agentgrid/control-plane/services/token"
	"github.com/agentgrid/control-plane/services/tools"
	"github.com/agentgrid/control-plane/store"
)

// Dependencies is the central wiring point for dependency injection
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *sql.DB // nil when running in memory
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Services
	Orgs     *org.Service
	Agents   *agent.Service
	Policies *policy.Service
	Budgets  *budget.Service
	Tokens   *token.Service
	AuditLog *audit.Log
	Registry *tools.Registry
	Provider llm.Provider
	Proxy    *proxy.Proxy
	Runtime  *runtime.ExecutionRuntime

	// HTTP
	OrgHandler       *handlers.OrgHandler
	AgentHandler     *handlers.AgentHandler
	PolicyHandler    *handlers.PolicyHandler
	BudgetHandler    *handlers.BudgetHandler
	TokenHandler     *handlers.TokenHandler
	AuditHandler     *handlers.AuditHandler
	ExecutionHandler *handlers.ExecutionHandler
	HealthHandler    *handlers.HealthHandler
	AuthMiddleware   *middleware.AuthMiddleware
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{Config: cfg, Logger: logger}

	if cfg.Observability.MetricsEnabled {
		deps.Metrics = observability.NewMetrics(prometheus.DefaultRegisterer)
	}

	if err := deps.initStores(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize stores: %w", err)
	}
	deps.initTools(cfg)
	deps.initRuntime(cfg)
	deps.initHTTP(cfg)

	logger.Info("all dependencies initialized")
	return deps, nil
}

// initStores builds the persistence layer and the services over it.
// With a database configured every store is PostgreSQL-backed;
// otherwise everything stays in memory.
func (d *Dependencies) initStores(ctx context.Context, cfg *config.Config) error {
	var (
		orgStore    store.Store[*models.Organization]
		agentStore  store.Store[*models.AgentIdentity]
		policyStore store.Store[*models.Policy]
		budgetStore store.Store[*models.Budget]
		reportStore store.Store[*models.UsageReport]
	)

	if cfg.Database != nil {
		db, err := sql.Open("postgres", cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		d.DB = db
		d.Logger.Info("database connection established",
			zap.String("connection", cfg.Database.LogString()))

		if orgStore, err = store.NewPostgresStore[*models.Organization](db, "organizations", d.Logger); err != nil {
			return err
		}
		if agentStore, err = store.NewPostgresStore[*models.AgentIdentity](db, "agents", d.Logger); err != nil {
			return err
		}
		if policyStore, err = store.NewPostgresStore[*models.Policy](db, "policies", d.Logger); err != nil {
			return err
		}
		if budgetStore, err = store.NewPostgresStore[*models.Budget](db, "budgets", d.Logger); err != nil {
			return err
		}
		if reportStore, err = store.NewPostgresStore[*models.UsageReport](db, "usage_reports", d.Logger); err != nil {
			return err
		}
	} else {
		d.Logger.Info("no database configured, using in-memory stores")
		orgStore = store.NewMemoryStore[*models.Organization]()
		agentStore = store.NewMemoryStore[*models.AgentIdentity]()
		policyStore = store.NewMemoryStore[*models.Policy]()
		budgetStore = store.NewMemoryStore[*models.Budget]()
		reportStore = store.NewMemoryStore[*models.UsageReport]()
	}

	var remote policy.RemoteEvaluator
	if cfg.Evaluator.Address != "" {
		remote = policy.NewOPAEvaluator(cfg.Evaluator.Address, cfg.Evaluator.Timeout, d.Logger)
		d.Logger.Info("external policy evaluator configured",
			zap.String("address", cfg.Evaluator.Address))
	}

	d.Orgs = org.NewService(orgStore, d.Logger)
	d.Agents = agent.NewService(agentStore, d.Logger)
	d.Policies = policy.NewService(policyStore, remote, d.Logger)
	d.Budgets = budget.NewService(budgetStore, reportStore, d.Logger)
	d.Tokens = token.NewService(cfg.Token, d.Metrics, d.Logger)
	d.AuditLog = audit.NewLog(audit.DefaultCapacity, d.Logger)
	return nil
}

// initTools registers the built-in tools
func (d *Dependencies) initTools(cfg *config.Config) {
	d.Registry = tools.NewRegistry(d.Logger)
	d.Registry.Register(tools.NewEchoTool())
	d.Registry.Register(tools.NewHTTPTool(cfg.Server.ReadTimeout))
}

// initRuntime builds the proxy and the execution runtime
func (d *Dependencies) initRuntime(cfg *config.Config) {
	d.Provider = llm.NewMockProvider()
	d.Proxy = proxy.NewProxy(d.Policies, d.Budgets, d.Registry, d.AuditLog, d.Metrics, d.Logger)
	d.Runtime = runtime.NewExecutionRuntime(
		d.Agents, d.Policies, d.Budgets, d.Proxy, d.Registry, d.Provider, d.AuditLog, d.Metrics, d.Logger)
}

// initHTTP builds the handlers and middleware
func (d *Dependencies) initHTTP(cfg *config.Config) {
	d.OrgHandler = handlers.NewOrgHandler(d.Orgs, d.Logger)
	d.AgentHandler = handlers.NewAgentHandler(d.Agents, d.Tokens, d.Logger)
	d.PolicyHandler = handlers.NewPolicyHandler(d.Policies, d.Logger)
	d.BudgetHandler = handlers.NewBudgetHandler(d.Budgets, d.Logger)
	d.TokenHandler = handlers.NewTokenHandler(d.Tokens, d.Agents, d.Logger)
	d.AuditHandler = handlers.NewAuditHandler(d.AuditLog, d.Logger)
	d.ExecutionHandler = handlers.NewExecutionHandler(d.Runtime, d.Proxy, d.Logger)
	d.HealthHandler = handlers.NewHealthHandler(d.DB, d.Registry, d.Logger)
	d.AuthMiddleware = middleware.NewAuthMiddleware(cfg.Auth.APIKey, d.Logger)
}

// StartTokenCleanup sweeps expired scoped tokens until ctx is cancelled
func (d *Dependencies) StartTokenCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := d.Tokens.CleanupExpired(); removed > 0 {
					d.Logger.Debug("expired tokens removed", zap.Int("count", removed))
				}
			}
		}
	}()
}

// Close releases held resources
func (d *Dependencies) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
