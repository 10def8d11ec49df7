// Package fraudclient calls the fraud service over HTTP.
package fraudclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cardbank/cms/shared/middleware"
	"github.com/cardbank/cms/shared/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	EvaluatePath  = "/fraud/v1/evaluate"
	serviceName   = "cms-service"
	tokenLifetime = time.Minute
)

// Client evaluates transactions against the fraud service. Every request
// carries a freshly minted service token scoped to fraud:evaluate. There are
// no retries; the caller bounds each call through ctx.
type Client struct {
	baseURL    string
	secret     []byte
	httpClient *http.Client
}

func NewClient(baseURL string, serviceTokenSecret []byte) *Client {
	return &Client{
		baseURL: baseURL,
		secret:  serviceTokenSecret,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *Client) Evaluate(ctx context.Context, req models.FraudCheckRequest) (*models.FraudCheckResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fraud request: %w", err)
	}

	token, err := middleware.IssueToken(c.secret, serviceName, tokenLifetime, middleware.ScopeFraudEvaluate)
	if err != nil {
		return nil, fmt.Errorf("failed to sign service token: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+EvaluatePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create fraud request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call fraud service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fraud service returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var decision models.FraudCheckResponse
	if err := json.NewDecoder(resp.Body).Decode(&decision); err != nil {
		return nil, fmt.Errorf("failed to decode fraud response: %w", err)
	}
	return &decision, nil
}
