package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client is one named, pooled, OTel-instrumented outgoing HTTP client.
type Client struct {
	name           string
	baseURL        string
	defaultHeaders map[string]string
	retry          *RetryConfig
	underlying     *http.Transport
	http           *http.Client
	logger         *zap.Logger
}

func (c *Client) buildURL(path string, query map[string]string) (string, error) {
	var full string
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		full = path
	} else {
		if path != "" && path[0] != '/' {
			path = "/" + path
		}
		full = c.baseURL + path
	}

	u, err := url.Parse(full)
	if err != nil {
		return "", err
	}
	if query != nil {
		qs := u.Query()
		for k, v := range query {
			qs.Set(k, v)
		}
		u.RawQuery = qs.Encode()
	}
	return u.String(), nil
}

// Do issues an HTTP request, retrying per the client's RetryConfig,
// and decodes a JSON response body into out when out is non-nil.
func (c *Client) Do(ctx context.Context, method, path string, query, headers map[string]string, body, out interface{}) (*http.Response, error) {
	if method == "" {
		method = http.MethodGet
	}

	targetURL, err := c.buildURL(path, query)
	if err != nil {
		return nil, err
	}

	reqBody, contentType, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, targetURL, reqBody)
	if err != nil {
		return nil, err
	}
	for k, v := range c.defaultHeaders {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json, */*")
	}

	start := time.Now()
	resp, err := c.doWithRetry(ctx, req)
	latency := time.Since(start)

	fields := []zap.Field{
		zap.String("client", c.name),
		zap.String("method", method),
		zap.String("url", targetURL),
		zap.Duration("latency", latency),
	}
	if err != nil {
		c.logger.Error("http client request failed", append(fields, zap.Error(err))...)
		return resp, err
	}
	c.logger.Info("http client request", append(fields, zap.Int("status", resp.StatusCode))...)

	if out == nil {
		defer func() {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}()
	}

	if resp.StatusCode >= 400 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp, fmt.Errorf("http_clients: status %d: %s", resp.StatusCode, strings.TrimSpace(string(slurp)))
	}

	if out != nil {
		if strings.Contains(resp.Header.Get("Content-Type"), "json") {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
				return resp, fmt.Errorf("http_clients: decode response: %w", err)
			}
		} else {
			raw, _ := io.ReadAll(resp.Body)
			switch o := out.(type) {
			case *[]byte:
				*o = raw
			case *string:
				*o = string(raw)
			}
		}
	}

	return resp, nil
}

func encodeBody(body interface{}) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case io.Reader:
		return b, "", nil
	case []byte:
		return bytes.NewReader(b), "", nil
	case string:
		return strings.NewReader(b), "", nil
	default:
		buf, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("http_clients: marshal body: %w", err)
		}
		return bytes.NewReader(buf), "application/json", nil
	}
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, query, headers map[string]string, out interface{}) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, path, query, headers, nil, out)
}

// Post issues a POST request.
func (c *Client) Post(ctx context.Context, path string, body interface{}, headers map[string]string, out interface{}) (*http.Response, error) {
	return c.Do(ctx, http.MethodPost, path, nil, headers, body, out)
}

func (c *Client) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.retry == nil || !c.retry.Enabled || c.retry.MaxAttempts <= 1 {
		return c.http.Do(req)
	}

	backoff := c.retry.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		resp, err := c.http.Do(req)
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}
		if err == nil {
			lastErr = fmt.Errorf("http_clients: server error %d", resp.StatusCode)
			resp.Body.Close()
		} else {
			lastErr = err
		}

		if attempt == c.retry.MaxAttempts {
			break
		}
		var nerr net.Error
		if errors.As(lastErr, &nerr) && !nerr.Timeout() && (resp == nil || resp.StatusCode < 500) {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = time.Duration(float64(backoff) * c.retry.BackoffMultiplier)
		if backoff > c.retry.MaxBackoff {
			backoff = c.retry.MaxBackoff
		}
	}
	return nil, lastErr
}
