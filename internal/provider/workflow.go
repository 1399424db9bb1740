package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"coach-service/internal/models"
)

// WorkflowProvider calls the external workflow engine's validation webhook.
// First in the chain when configured.
type WorkflowProvider struct {
	url     string
	token   string
	timeout time.Duration
	client  *http.Client
}

func NewWorkflowProvider(url, token string, timeout time.Duration) *WorkflowProvider {
	return &WorkflowProvider{
		url:     url,
		token:   token,
		timeout: timeout,
		client:  &http.Client{},
	}
}

func (p *WorkflowProvider) Name() string { return "workflow-engine" }

func (p *WorkflowProvider) Timeout() time.Duration { return p.timeout }

func (p *WorkflowProvider) Attempt(ctx context.Context, in Input) (*Result, error) {
	body, err := json.Marshal(map[string]string{
		"request_id":    in.RequestID,
		"title":         in.Title,
		"description":   in.Description,
		"target_market": in.TargetMarket,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode workflow request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build workflow request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("workflow engine call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("workflow engine returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow response: %w", err)
	}

	var analysis models.ValidationAnalysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if err := validateAnalysis(&analysis); err != nil {
		return nil, err
	}

	analysis.Provider = p.Name()
	return &Result{Analysis: analysis, Provider: p.Name()}, nil
}
