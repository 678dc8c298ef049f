// Package predictor talks to the external AI service that suggests
// technicians and classifies incoming requests. Every call is advisory:
// callers fall back to local heuristics or defaults when the predictor is
// unreachable.
package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spec-kit/dispatch-service/internal/config"
	"github.com/spec-kit/dispatch-service/internal/domain"
)

// Client is the external predictor collaborator interface.
type Client interface {
	SuggestTechnicians(ctx context.Context, category domain.RequestCategory, priority domain.RequestPriority) ([]string, error)
	PredictCategory(ctx context.Context, description string) (domain.RequestCategory, error)
	PredictPriority(ctx context.Context, description string) (domain.RequestPriority, error)
	TriggerReportAnalysis(ctx context.Context, requestID string) error
}

type httpClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient builds a predictor client for the configured endpoint.
// Returns a NopClient when no base URL is configured.
func NewHTTPClient(cfg config.PredictorConfig) Client {
	if cfg.BaseURL == "" {
		return NopClient{}
	}
	return &httpClient{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout()},
	}
}

type suggestRequest struct {
	Category domain.RequestCategory `json:"category"`
	Priority domain.RequestPriority `json:"priority"`
}

type suggestResponse struct {
	TechnicianIDs []string `json:"technician_ids"`
}

type classifyRequest struct {
	Description string `json:"description"`
}

type categoryResponse struct {
	Category domain.RequestCategory `json:"category"`
}

type priorityResponse struct {
	Priority domain.RequestPriority `json:"priority"`
}

func (c *httpClient) SuggestTechnicians(ctx context.Context, category domain.RequestCategory, priority domain.RequestPriority) ([]string, error) {
	var out suggestResponse
	if err := c.post(ctx, "/v1/suggest-technicians", suggestRequest{Category: category, Priority: priority}, &out); err != nil {
		return nil, err
	}
	return out.TechnicianIDs, nil
}

func (c *httpClient) PredictCategory(ctx context.Context, description string) (domain.RequestCategory, error) {
	var out categoryResponse
	if err := c.post(ctx, "/v1/predict-category", classifyRequest{Description: description}, &out); err != nil {
		return "", err
	}
	return out.Category, nil
}

func (c *httpClient) PredictPriority(ctx context.Context, description string) (domain.RequestPriority, error) {
	var out priorityResponse
	if err := c.post(ctx, "/v1/predict-priority", classifyRequest{Description: description}, &out); err != nil {
		return "", err
	}
	return out.Priority, nil
}

func (c *httpClient) TriggerReportAnalysis(ctx context.Context, requestID string) error {
	return c.post(ctx, "/v1/analyze-report", map[string]string{"request_id": requestID}, nil)
}

func (c *httpClient) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal predictor payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build predictor request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call predictor: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("predictor returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode predictor response: %w", err)
	}
	return nil
}

// NopClient is used when no predictor endpoint is configured. Suggestions are
// empty so the selector uses its local fallback; classification returns
// zero values so callers apply defaults.
type NopClient struct{}

func (NopClient) SuggestTechnicians(ctx context.Context, category domain.RequestCategory, priority domain.RequestPriority) ([]string, error) {
	return nil, nil
}

func (NopClient) PredictCategory(ctx context.Context, description string) (domain.RequestCategory, error) {
	return "", nil
}

func (NopClient) PredictPriority(ctx context.Context, description string) (domain.RequestPriority, error) {
	return "", nil
}

func (NopClient) TriggerReportAnalysis(ctx context.Context, requestID string) error {
	return nil
}
