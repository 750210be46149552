package engines

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/miovo/miovo/internal/tts"
	"golang.org/x/time/rate"
)

// maxErrorBody bounds how much of a failed response is kept for the message.
const maxErrorBody = 4 << 10

// ClientConfig holds the settings shared by every HTTP backend.
type ClientConfig struct {
	// Name identifies the backend in errors and logs
	Name string

	// BaseURL of the backend, e.g. http://localhost:8000
	BaseURL string

	// Timeout per request; zero means no timeout
	Timeout time.Duration

	// RequestsPerMinute throttles outgoing requests; zero disables throttling
	RequestsPerMinute int

	// HTTPClient overrides the default client (tests)
	HTTPClient *http.Client
}

// Client is a small JSON-over-HTTP helper that maps failures onto studio
// error codes: transport failures and non-2xx answers become NETWORK,
// undecodable bodies become MALFORMED_RESPONSE and caller cancellation
// becomes CANCELED.
type Client struct {
	name        string
	baseURL     *url.URL
	http        *http.Client
	rateLimiter *rate.Limiter
}

// NewClient validates the base URL and builds a Client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("%s: base URL is required", config.Name)
	}
	u, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%s: invalid base URL %q: %w", config.Name, config.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%s: base URL %q must use http or https", config.Name, config.BaseURL)
	}

	hc := config.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: config.Timeout}
	}

	var limiter *rate.Limiter
	if config.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 1)
	}

	return &Client{
		name:        config.Name,
		baseURL:     u,
		http:        hc,
		rateLimiter: limiter,
	}, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Endpoint joins path and query onto the base URL.
func (c *Client) Endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// Do sends one request and returns the raw body of a 2xx response.
// A nil body sends no payload; any other value is JSON-encoded.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, tts.NewCanceledError(ctx.Err())
			}
			return nil, tts.NewNetworkError(c.name+": rate limit", err)
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, tts.NewTTSError(tts.ErrorCodeInvalidInput, c.name+": encode request", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Endpoint(path, query), reader)
	if err != nil {
		return nil, tts.NewTTSError(tts.ErrorCodeInvalidInput, c.name+": build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, tts.NewCanceledError(ctx.Err())
		}
		return nil, tts.NewNetworkError(fmt.Sprintf("%s: %s %s", c.name, method, path), err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, tts.NewCanceledError(ctx.Err())
		}
		return nil, tts.NewNetworkError(c.name+": read response", err)
	}

	log.Debug("backend request", "backend", c.name, "method", method, "path", path,
		"status", resp.StatusCode, "bytes", len(data), "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, tts.NewNetworkError(
			fmt.Sprintf("%s: %s %s", c.name, method, path),
			&StatusError{Code: resp.StatusCode, Detail: errorDetail(data)},
		).WithContext("status", resp.StatusCode)
	}
	return data, nil
}

// DoJSON is Do followed by decoding the body into out.
func (c *Client) DoJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	data, err := c.Do(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return tts.NewMalformedResponseError(c.name+": decode "+path, err)
	}
	return nil
}

// StatusError is a non-2xx response.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("HTTP %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Detail)
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// errorDetail pulls the FastAPI "detail" field out of an error body, falling
// back to the trimmed text.
func errorDetail(data []byte) string {
	var body struct {
		Detail any    `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil {
		switch d := body.Detail.(type) {
		case string:
			if d != "" {
				return d
			}
		case nil:
		default:
			if b, err := json.Marshal(d); err == nil {
				return string(b)
			}
		}
		if body.Error != "" {
			return body.Error
		}
	}
	text := strings.TrimSpace(string(data))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody]
	}
	return text
}
