package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/iho/cashbook/internal/adapter/http/dto"
	"github.com/iho/cashbook/internal/adapter/http/middleware"
)

const maxResponseBytes = 1 << 20

// apiError is a non-2xx answer from the cashbook API.
type apiError struct {
	Status  int
	Code    string
	Message string
	Body    []byte
}

func (e *apiError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("unexpected response (%d): %s", e.Status, truncate(strings.TrimSpace(string(e.Body)), 120))
}

// retryable reports whether the same request may be sent again.
func (e *apiError) retryable() bool {
	return e.Status >= http.StatusInternalServerError ||
		e.Status == http.StatusTooManyRequests ||
		e.Code == dto.CodeRequestInProgress
}

type apiClient struct {
	baseURL string
	token   string
	retries uint64
	http    *http.Client

	initialInterval time.Duration
}

func newAPIClient(baseURL, token string, timeout time.Duration, retries uint64) *apiClient {
	return &apiClient{
		baseURL:         strings.TrimRight(baseURL, "/"),
		token:           token,
		retries:         retries,
		http:            &http.Client{Timeout: timeout},
		initialInterval: 200 * time.Millisecond,
	}
}

func (c *apiClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, nil, out)
}

// post sends body with an Idempotency-Key, so retries reuse the same key and
// the server applies the request at most once.
func (c *apiClient) post(ctx context.Context, path, idempotencyKey string, body, out any) error {
	headers := map[string]string{middleware.IdempotencyKeyHeader: idempotencyKey}
	return c.do(ctx, http.MethodPost, path, body, headers, out)
}

func (c *apiClient) do(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= http.StatusBadRequest {
			apiErr := decodeAPIError(resp.StatusCode, data)
			if apiErr.retryable() {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}

		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				return backoff.Permanent(fmt.Errorf("decode response: %w", err))
			}
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxInterval = 5 * time.Second

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, c.retries), ctx))
}

func decodeAPIError(status int, data []byte) *apiError {
	apiErr := &apiError{Status: status, Body: data}

	var resp dto.ErrorResponse
	if err := json.Unmarshal(data, &resp); err == nil && resp.Code != "" {
		apiErr.Code = resp.Code
		apiErr.Message = resp.Message
	}
	return apiErr
}

// asAPIError extracts an apiError with the given status from err.
func asAPIError(err error, status int) (*apiError, bool) {
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Status == status {
		return apiErr, true
	}
	return nil, false
}
