package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/t3up/analyzer/internal/messages"
)

var httpClient = &http.Client{Timeout: 15 * time.Second}
var retryDelay = 250 * time.Millisecond

const requestRetryCount = 2

// client is the plumbing shared by the registry clients: bearer auth,
// bounded retry on 5xx and transient network errors, and rate limiting.
type client struct {
	name    string
	baseURL string
	token   string
	limiter *RateLimiter
	http    *http.Client
}

func (c *client) httpDo(req *http.Request) (*http.Response, error) {
	if c.http != nil {
		return c.http.Do(req)
	}
	return httpClient.Do(req)
}

// getJSON issues a GET and decodes a 200 response into out. A 404 returns
// (false, nil) so callers can treat absence as "not available".
func (c *client) getJSON(ctx context.Context, url string, out any) (bool, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return false, err
		}
	}
	for attempt := 0; attempt <= requestRetryCount; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return false, fmt.Errorf(messages.RegistryCreateRequestErrFmt, err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "t3up")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpDo(req)
		if err != nil {
			if shouldRetryRequest(err, 0, attempt) {
				time.Sleep(retryDelay)
				continue
			}
			return false, fmt.Errorf(messages.RegistryRequestErrFmt, c.name, err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			_ = resp.Body.Close()
			if err != nil {
				return false, fmt.Errorf(messages.RegistryDecodeErrFmt, c.name, err)
			}
			return true, nil
		case resp.StatusCode == http.StatusNotFound:
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			return false, nil
		default:
			status := resp.StatusCode
			statusText := resp.Status
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			if shouldRetryRequest(nil, status, attempt) {
				time.Sleep(retryDelay)
				continue
			}
			return false, fmt.Errorf(messages.RegistryStatusErrFmt, c.name, statusText)
		}
	}
	return false, fmt.Errorf(messages.RegistryRequestErrFmt, c.name, errors.New(messages.RegistryRetryBudget))
}

func shouldRetryRequest(err error, statusCode int, attempt int) bool {
	if attempt >= requestRetryCount {
		return false
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		var netErr net.Error
		return errors.As(err, &netErr)
	}
	return statusCode >= 500 && statusCode <= 599
}
