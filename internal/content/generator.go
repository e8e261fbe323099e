package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Generator is the narrow boundary to the content-generation service.
// It takes the original request event and returns a result map carrying
// artifact references (image_urls, pdf_url). The service's internals,
// prompt construction, rendering, and PDF assembly, live elsewhere.
type Generator interface {
	Generate(ctx context.Context, event map[string]any) (map[string]any, error)
}

// HTTPGenerator calls the render service over HTTP.
type HTTPGenerator struct {
	logger  *slog.Logger
	client  *http.Client
	baseURL string
}

// NewHTTPGenerator creates a Generator posting to baseURL. timeout
// bounds the whole request; a zero timeout leaves only the caller's
// context as the limit.
func NewHTTPGenerator(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPGenerator {
	return &HTTPGenerator{
		logger:  logger,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Generate posts the event to the render endpoint and returns its
// result map.
func (g *HTTPGenerator) Generate(ctx context.Context, event map[string]any) (map[string]any, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/render", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	g.logger.Debug("Calling content generation service",
		slog.String("url", g.baseURL+"/render"),
		slog.Int("body_size", len(payload)),
	)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read generation response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("generation service returned %d: %s", resp.StatusCode, string(body))
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode generation response: %w", err)
	}

	return result, nil
}
