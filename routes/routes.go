// Package routes assembles the HTTP router for the control plane API.
package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentgrid/control-plane/app"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(deps.Config.Server.WriteTimeout))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Probes and metrics
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReady)
	if deps.Config.Observability.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireAPIKey)

		r.Get("/tools", deps.HealthHandler.HandleListTools)

		r.Route("/organizations", func(r chi.Router) {
			r.Get("/", deps.OrgHandler.HandleList)
			r.Post("/", deps.OrgHandler.HandleCreate)

			r.Route("/{orgID}", func(r chi.Router) {
				r.Get("/", deps.OrgHandler.HandleGet)
				r.Delete("/", deps.OrgHandler.HandleDelete)

				r.Put("/policy", deps.PolicyHandler.HandleSetOrgPolicy)
				r.Get("/policy", deps.PolicyHandler.HandleGetOrgPolicy)
				r.Put("/budget", deps.BudgetHandler.HandleSetOrgBudget)
				r.Get("/budget", deps.BudgetHandler.HandleGetOrgBudget)
				r.Get("/usage", deps.BudgetHandler.HandleGetUsage)

				r.Get("/audit", deps.AuditHandler.HandleQuery)
				r.Get("/audit/executions/{executionID}", deps.AuditHandler.HandleDelegationChain)

				r.Route("/agents", func(r chi.Router) {
					r.Get("/", deps.AgentHandler.HandleList)
					r.Post("/", deps.AgentHandler.HandleRegister)

					r.Route("/{agentID}", func(r chi.Router) {
						r.Get("/", deps.AgentHandler.HandleGet)
						r.Post("/deactivate", deps.AgentHandler.HandleDeactivate)

						r.Put("/policy", deps.PolicyHandler.HandleSetAgentPolicy)
						r.Get("/policy", deps.PolicyHandler.HandleGetAgentPolicy)
						r.Get("/policy/effective", deps.PolicyHandler.HandleGetEffectivePolicy)
						r.Post("/policy/evaluate", deps.PolicyHandler.HandleEvaluate)

						r.Put("/budget", deps.BudgetHandler.HandleSetAgentBudget)
						r.Get("/budget", deps.BudgetHandler.HandleGetAgentBudget)
						r.Post("/budget/check", deps.BudgetHandler.HandleCheck)
						r.Post("/usage", deps.BudgetHandler.HandleReportUsage)
					})
				})
			})
		})

		r.Route("/tokens", func(r chi.Router) {
			r.Post("/exchange", deps.TokenHandler.HandleExchange)
			r.Get("/{tokenID}", deps.TokenHandler.HandleValidate)
			r.Delete("/{tokenID}", deps.TokenHandler.HandleRevoke)
		})

		r.Post("/executions", deps.ExecutionHandler.HandleExecute)
		r.Post("/tool-calls", deps.ExecutionHandler.HandleToolCall)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
