package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agentgrid/control-plane/services"
)

// maxResponseBytes bounds how much of an upstream response is returned
const maxResponseBytes = 1 << 20

// blockedHosts are hostnames that must never be reached regardless of
// what they resolve to. Cloud metadata endpoints in particular.
var blockedHosts = map[string]struct{}{
	"metadata.google.internal": {},
	"169.254.169.254":          {},
}

// HTTPTool performs outbound HTTP requests on behalf of agents. Requests
// to loopback, private, and link-local addresses are refused so agents
// cannot reach internal infrastructure through the proxy.
type HTTPTool struct {
	client *http.Client
}

// NewHTTPTool creates an HTTP fetch tool with the given request timeout
func NewHTTPTool(timeout time.Duration) *HTTPTool {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPTool{client: &http.Client{Timeout: timeout}}
}

func (t *HTTPTool) Name() string { return "http_request" }

func (t *HTTPTool) Description() string {
	return "Performs an HTTP GET or POST request against an external URL"
}

func (t *HTTPTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url":    map[string]interface{}{"type": "string", "description": "Target URL (http or https)"},
			"method": map[string]interface{}{"type": "string", "enum": []string{"GET", "POST"}},
			"body":   map[string]interface{}{"type": "string", "description": "Request body for POST"},
		},
		"required": []string{"url"},
	}
}

// Execute performs the request after checking the target address
func (t *HTTPTool) Execute(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	rawURL, ok := params["url"].(string)
	if !ok || rawURL == "" {
		return nil, services.WrapValidation("url parameter is required", nil)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, services.WrapValidation("invalid url", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, services.WrapValidation("url scheme must be http or https", nil)
	}
	if err := checkAddress(parsed.Hostname()); err != nil {
		return nil, err
	}

	method := http.MethodGet
	if m, ok := params["method"].(string); ok && m != "" {
		method = strings.ToUpper(m)
	}
	if method != http.MethodGet && method != http.MethodPost {
		return nil, services.WrapValidation("method must be GET or POST", nil)
	}

	var body io.Reader
	if b, ok := params["body"].(string); ok && b != "" {
		body = strings.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, services.WrapError(services.ErrorTypeToolExecution, "failed to build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, services.WrapError(services.ErrorTypeToolExecution, "request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, services.WrapError(services.ErrorTypeToolExecution, "failed to read response", err)
	}

	result := map[string]interface{}{
		"status_code": resp.StatusCode,
		"body":        string(data),
	}
	var decoded interface{}
	if json.Unmarshal(data, &decoded) == nil {
		result["json"] = decoded
	}
	return result, nil
}

// checkAddress refuses hostnames that are blocked outright or resolve
// to loopback, private, or link-local addresses.
func checkAddress(host string) error {
	lower := strings.ToLower(host)
	if _, blocked := blockedHosts[lower]; blocked {
		return blockedError(host, "")
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		return services.WrapError(services.ErrorTypeToolExecution, fmt.Sprintf("failed to resolve host %q", host), err)
	}
	for _, ip := range ips {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
			return blockedError(host, ip.String())
		}
	}
	return nil
}

func blockedError(host, ip string) error {
	err := services.NewDomainError(services.ErrorTypeToolExecution, "outbound address blocked", nil).
		WithDetail("host", host)
	if ip != "" {
		err = err.WithDetail("ip", ip)
	}
	return err
}
