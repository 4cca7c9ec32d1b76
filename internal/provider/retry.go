// Package provider implements concrete model back-ends registered with the
// gateway: OpenAI-compatible HTTP APIs, Anthropic, and Ollama.
package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"
)

const (
	maxRetries         = 3
	defaultHTTPTimeout = 120 * time.Second
	defaultMaxTokens   = 4096
)

// httpStatusError carries a non-2xx response body for logging and retry
// classification.
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.status, e.body)
}

func retryable(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}

// doWithRetry issues the request with exponential backoff and jitter,
// retrying network failures, 5xx, and 429. buildReq is called per attempt
// because request bodies are single-use.
func doWithRetry(ctx context.Context, client *http.Client, buildReq func() (*http.Request, error), logger *slog.Logger) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			base := time.Duration(attempt*attempt) * time.Second
			backoff := base + time.Duration(rand.Int63n(int64(base/2+1)))
			logger.Warn("retrying provider request", "attempt", attempt+1, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := buildReq()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if retryable(resp.StatusCode) {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			resp.Body.Close()
			lastErr = &httpStatusError{status: resp.StatusCode, body: string(body)}
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", maxRetries, lastErr)
}
