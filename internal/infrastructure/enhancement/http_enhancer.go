package enhancement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"shopify-improvement-core/internal/domain"
	"shopify-improvement-core/internal/ports"

	"github.com/rs/zerolog"
)

// maxErrorBody caps how much of a failed response is kept for the error message
const maxErrorBody = 512

// HTTPEnhancer calls a remote enhancement service with {title, description, images}
type HTTPEnhancer struct {
	endpoint   string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
}

var _ ports.Enhancer = (*HTTPEnhancer)(nil)

// NewHTTPEnhancer creates an enhancer posting to endpoint. An empty token sends no Authorization header.
func NewHTTPEnhancer(endpoint, token string, timeout time.Duration, logger zerolog.Logger) *HTTPEnhancer {
	return &HTTPEnhancer{
		endpoint: endpoint,
		token:    token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Enhance sends data to the service and returns its improved version
func (e *HTTPEnhancer) Enhance(ctx context.Context, data domain.ImprovementData) (*domain.ImprovementData, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode enhancement request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	start := time.Now()
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: enhancement request failed: %v", domain.ErrExternalServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		e.logger.Warn().
			Int("status", resp.StatusCode).
			Str("endpoint", e.endpoint).
			Msg("Enhancement service returned non-success status")
		return nil, fmt.Errorf("%w: enhancement service returned %d: %s",
			domain.ErrExternalServiceUnavailable, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var improved domain.ImprovementData
	if err := json.NewDecoder(resp.Body).Decode(&improved); err != nil {
		return nil, fmt.Errorf("%w: failed to decode enhancement response: %v", domain.ErrExternalServiceUnavailable, err)
	}
	if improved.Title == "" && improved.Description == "" {
		return nil, fmt.Errorf("%w: enhancement response has neither title nor description", domain.ErrExternalServiceUnavailable)
	}
	if improved.Images == nil {
		improved.Images = data.Images
	}

	e.logger.Debug().
		Str("endpoint", e.endpoint).
		Dur("latency", time.Since(start)).
		Msg("Enhancement completed")
	return &improved, nil
}
