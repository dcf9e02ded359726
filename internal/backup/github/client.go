// Package github implements the backup provider contract on top of a
// GitHub repository: each backup lives on its own branch as a gzipped
// tar archive (chunked when it exceeds the committable blob size)
// plus a metadata.json document.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const (
	maxRetries     = 4
	baseBackoff    = 1 * time.Second
	maxBackoff     = 30 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
	userAgent      = "wpvault/0.1"
)

// Client is a minimal GitHub REST v3 client: request construction,
// token auth, retry with exponential backoff, and error
// classification. Only the endpoints the provider needs.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	logger     zerolog.Logger

	// sleep waits between retries; tests override it to avoid delays.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(baseURL, token string, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		token:      token,
		logger:     logger.With().Str("component", "github-client").Logger(),
		sleep:      sleepCtx,
	}
}

// do executes a request with retries. body is JSON-encoded when
// non-nil. accept overrides the Accept header when non-empty.
func (c *Client) do(ctx context.Context, method, path, accept string, body any) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("github: marshal request body: %w", err)
		}
	}

	url := c.baseURL + path

	var attempt int
	for {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		resp, err := c.doOnce(ctx, method, url, accept, reader)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("github: request canceled: %w", ctx.Err())
			}
			if attempt < maxRetries {
				backoff := c.calcBackoff(attempt)
				c.logger.Warn().
					Str("method", method).
					Str("path", path).
					Int("attempt", attempt+1).
					Dur("backoff", backoff).
					Err(err).
					Msg("retrying after network error")
				if sleepErr := c.sleep(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("github: request canceled: %w", sleepErr)
				}
				attempt++
				continue
			}
			return nil, fmt.Errorf("github: %s %s failed after %d retries: %w", method, path, maxRetries, err)
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			return resp, nil
		}

		errBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		if isRetryable(resp, attempt) {
			backoff := c.retryBackoff(resp, attempt)
			c.logger.Warn().
				Str("method", method).
				Str("path", path).
				Int("status", resp.StatusCode).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Msg("retrying after HTTP error")
			if err := c.sleep(ctx, backoff); err != nil {
				return nil, fmt.Errorf("github: request canceled: %w", err)
			}
			attempt++
			continue
		}

		return nil, newAPIError(resp, errBody)
	}
}

func (c *Client) doOnce(ctx context.Context, method, url, accept string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if accept != "" {
		req.Header.Set("Accept", accept)
	} else {
		req.Header.Set("Accept", "application/vnd.github+json")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// doJSON runs a request and decodes the JSON response into out (when
// out is non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.do(ctx, method, path, "", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("github: decode %s %s response: %w", method, path, err)
	}
	return nil
}

func isRetryable(resp *http.Response, attempt int) bool {
	if attempt >= maxRetries {
		return false
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	case http.StatusForbidden:
		// Secondary rate limits surface as 403 with a Retry-After header.
		return resp.Header.Get("Retry-After") != ""
	default:
		return false
	}
}

func (c *Client) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return c.calcBackoff(attempt)
}

func (c *Client) calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}
	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1)
	return time.Duration(backoff + jitter)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
