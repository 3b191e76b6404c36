package policy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/agentgrid/control-plane/models"
)

// OPAEvaluator renders effective policies as Rego rule sets and evaluates
// requests against an external OPA-compatible engine over HTTP. All
// failures (transport, non-200, open circuit) surface as errors so the
// policy Service falls back to local evaluation.
type OPAEvaluator struct {
	address string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewOPAEvaluator creates an evaluator client for the given base address
func NewOPAEvaluator(address string, timeout time.Duration, logger *zap.Logger) *OPAEvaluator {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "policy-evaluator",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &OPAEvaluator{
		address: strings.TrimRight(address, "/"),
		client:  &http.Client{Timeout: timeout},
		breaker: cb,
		logger:  logger,
	}
}

// packageName derives the Rego package for an org's policy
func packageName(p *models.Policy) string {
	return "agent_governance.policy." + strings.ReplaceAll(p.OrgID.String(), "-", "_")
}

// RenderRego translates an effective policy into a declarative Rego rule
// set: default-deny, explicit deny list, explicit allow list, and a
// numeric token-limit comparison.
func RenderRego(p *models.Policy) string {
	var b strings.Builder
	fmt.Fprintf(&b, "package %s\n\n", packageName(p))
	b.WriteString("default allow := false\n\n")
	fmt.Fprintf(&b, "token_limit := %d\n", p.TokenLimit)
	fmt.Fprintf(&b, "execution_timeout := %d\n\n", p.ExecutionTimeoutSeconds)

	var allowed, denied []string
	wildcard := false
	for _, perm := range p.Tools {
		switch perm.Effect {
		case models.EffectDeny:
			denied = append(denied, perm.ToolName)
		case models.EffectAllow:
			if perm.ToolName == models.WildcardTool {
				wildcard = true
			} else {
				allowed = append(allowed, perm.ToolName)
			}
		}
	}

	if len(denied) > 0 {
		fmt.Fprintf(&b, "denied_tools := %s\n\n", regoList(denied))
		b.WriteString("deny if {\n    input.tool_name == denied_tools[_]\n}\n\n")
	}

	if wildcard {
		b.WriteString("allow if {\n    not deny\n    input.estimated_tokens <= token_limit\n}\n")
	} else if len(allowed) > 0 {
		fmt.Fprintf(&b, "allowed_tools := %s\n\n", regoList(allowed))
		b.WriteString("allow if {\n    input.tool_name == allowed_tools[_]\n    not deny\n    input.estimated_tokens <= token_limit\n}\n")
	}

	return b.String()
}

func regoList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// Push uploads the rendered rule set for a policy to the external engine
func (e *OPAEvaluator) Push(p *models.Policy) error {
	rego := RenderRego(p)
	url := fmt.Sprintf("%s/v1/policies/%s", e.address, packageName(p))

	_, err := e.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequest(http.MethodPut, url, strings.NewReader(rego))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "text/plain")

		resp, err := e.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("evaluator returned status %d", resp.StatusCode)
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to push policy: %w", err)
	}

	e.logger.Debug("policy pushed to external evaluator",
		zap.String("policy_id", p.ID.String()))
	return nil
}

type evaluateResponse struct {
	Result bool `json:"result"`
}

// Evaluate asks the external engine for a decision on the input
func (e *OPAEvaluator) Evaluate(p *models.Policy, input EvaluationInput) (models.PolicyDecision, error) {
	url := fmt.Sprintf("%s/v1/data/%s/allow", e.address, strings.ReplaceAll(packageName(p), ".", "/"))

	body, err := json.Marshal(map[string]interface{}{"input": input})
	if err != nil {
		return models.PolicyDecision{}, fmt.Errorf("failed to marshal input: %w", err)
	}

	result, err := e.breaker.Execute(func() (interface{}, error) {
		resp, err := e.client.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("evaluator returned status %d", resp.StatusCode)
		}

		var decoded evaluateResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return nil, fmt.Errorf("failed to decode evaluator response: %w", err)
		}
		return decoded.Result, nil
	})
	if err != nil {
		return models.PolicyDecision{}, fmt.Errorf("remote evaluation failed: %w", err)
	}

	if result.(bool) {
		return models.Allow("allowed by external evaluator", p.ID), nil
	}
	return models.DenyMatched("denied by external evaluator", p.ID), nil
}
