package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultRetryInterval = 100 * time.Millisecond
	DefaultTimeout       = 5 * time.Second

	maxErrorBody = 512 // bytes of a failed response body kept in StatusError
)

// StatusError is returned when the server answers with a non 2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request returned status %d: %s", e.Code, e.Body)
}

// DecodeError is returned when a 2xx response body cannot be decoded into the result.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var httpClient = &http.Client{}

// BuildUrl appends encoded query params to base.
func BuildUrl(base string, params url.Values) string {
	if len(params) == 0 {
		return base
	}
	return base + "?" + params.Encode()
}

// GetUrlResponse performs a single GET and decodes a JSON body into result. It never retries;
// the deadline is taken from ctx, falling back to DefaultTimeout.
func GetUrlResponse(ctx context.Context, reqUrl string, headers map[string]string, result any) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqUrl, nil)
	if err != nil {
		return fmt.Errorf("failed to create GET request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return do(req, result)
}

func PostUrlResponse(ctx context.Context, url string, body any, result any, logger *slog.Logger) error {
	return PostUrlResponseWithRetry(ctx, url, body, result, 1, logger)
}

func PostUrlResponseWithRetry(ctx context.Context, url string, body any, result any, retry int, logger *slog.Logger) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal POST body: %w", err)
	}

	var lastErr error
	for i := 0; i < retry; i++ {
		lastErr = doPost(ctx, url, bodyBytes, result)
		if lastErr == nil {
			return nil
		}
		// Client errors and cancellation will not improve by retrying
		var se *StatusError
		if ctx.Err() != nil || (errors.As(lastErr, &se) && se.Code < 500) {
			break
		}
		logger.Warn("POST request failed, retrying...", "url", url, "attempt", i+1, "err", lastErr)
		time.Sleep(DefaultRetryInterval)
	}
	return fmt.Errorf("POST request failed after %d attempts: %w", retry, lastErr)
}

func doPost(ctx context.Context, url string, bodyBytes []byte, result any) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return do(req, result)
}

func do(req *http.Request, result any) error {
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request error: %w", req.Method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Code: resp.StatusCode, Body: string(bodyBytes)}
	}

	if result == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(result); err != nil {
		// A deadline hit while streaming the body is not a decode problem
		if req.Context().Err() != nil {
			return fmt.Errorf("%s response read: %w", req.Method, req.Context().Err())
		}
		return &DecodeError{Err: err}
	}
	return nil
}
