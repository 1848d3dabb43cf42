package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ajharbinger/riskscore-preview/internal/api"
	apperrors "github.com/ajharbinger/riskscore-preview/internal/errors"
	"github.com/ajharbinger/riskscore-preview/internal/riskscore"
	"github.com/ajharbinger/riskscore-preview/internal/routing"
)

// previewClient calls the preview endpoint of a running server
type previewClient struct {
	baseURL    string
	apiVersion string
	http       *http.Client
}

func newPreviewClient(baseURL, apiVersion string, timeout time.Duration) *previewClient {
	return &previewClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiVersion: apiVersion,
		http:       &http.Client{Timeout: timeout},
	}
}

// apiError is a non-2xx preview response
type apiError struct {
	Status   int
	Envelope apperrors.Envelope
}

func (e *apiError) Error() string {
	return fmt.Sprintf("preview failed with status %d: %s", e.Status, e.Envelope.Message)
}

func (c *previewClient) Preview(ctx context.Context, req riskscore.PreviewRequest) (*riskscore.ScoreResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+api.RiskScorePreviewPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "riskctl/"+version)
	if c.apiVersion != "" {
		httpReq.Header.Set(routing.VersionHeader, c.apiVersion)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", api.RiskScorePreviewPath, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &apiError{Status: resp.StatusCode}
		if err := json.Unmarshal(data, &apiErr.Envelope); err != nil || apiErr.Envelope.Message == "" {
			apiErr.Envelope.Message = strings.TrimSpace(string(data))
		}
		return nil, apiErr
	}

	var result riskscore.ScoreResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &result, nil
}
