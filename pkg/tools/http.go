package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Varamadon/auto-refactor/internal/logger"
	"github.com/Varamadon/auto-refactor/pkg/plan"
)

// HTTPExecutor sends session commands to the registered tool over plain HTTP.
type HTTPExecutor struct {
	registry *Registry
	client   *http.Client
}

// NewHTTPExecutor creates a new HTTPExecutor. A zero timeout disables it.
func NewHTTPExecutor(registry *Registry, timeout time.Duration) *HTTPExecutor {
	return &HTTPExecutor{
		registry: registry,
		client:   &http.Client{Timeout: timeout},
	}
}

// FetchNextFile asks the tool for the next file. An empty body means no
// files are left.
func (e *HTTPExecutor) FetchNextFile(ctx context.Context, sessionID string) (string, error) {
	loc, err := e.registry.location(sessionID)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc+"/files/next", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := e.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read next file: %w", err)
	}
	return string(body), nil
}

// ApplyActionPlan posts the plan as JSON to the tool.
func (e *HTTPExecutor) ApplyActionPlan(ctx context.Context, sessionID string, p plan.ActionPlan) error {
	loc, err := e.registry.location(sessionID)
	if err != nil {
		return err
	}

	body, err := json.Marshal(p)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loc+"/actions/execute", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.do(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// Finish forgets the session's tool and tells it the session is over. It is
// a no-op for sessions that are not registered.
func (e *HTTPExecutor) Finish(ctx context.Context, sessionID string) error {
	loc, ok := e.registry.Remove(sessionID)
	if !ok {
		logger.L.Debug("finish for unregistered session", "session_id", sessionID)
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loc+"/finish", nil)
	if err != nil {
		return err
	}

	resp, err := e.do(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// do sends req and turns non-2xx answers into errors.
func (e *HTTPExecutor) do(req *http.Request) (*http.Response, error) {
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%s %s: unexpected status code: %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	return resp, nil
}
