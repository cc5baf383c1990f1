// Package hawc is a client for the HAWC animal-bioassay and BMD session REST API.
package hawc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/rewired-gh/hawcbmd/internal/logger"
	"github.com/rewired-gh/hawcbmd/internal/models"
)

// DefaultPollInterval is how often execution status is checked.
const DefaultPollInterval = 3 * time.Second

// Client provides access to the HAWC REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	config     ClientConfig
}

// ClientConfig holds retry and authentication settings
type ClientConfig struct {
	MaxRetries     int
	RetryDelayBase time.Duration
	Token          string
}

// StatusError is returned for non-2xx responses that are not retried.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// NewClient creates a new HAWC client
func NewClient(baseURL string, timeout time.Duration, cfg ClientConfig) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
		config:  cfg,
	}
}

// resolve turns a server-relative path into an absolute URL.
func (c *Client) resolve(u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return c.baseURL + u
}

// GetEndpoint fetches an animal-bioassay endpoint with its dose groups.
func (c *Client) GetEndpoint(ctx context.Context, id int) (*models.Endpoint, error) {
	var e models.Endpoint
	if err := c.getJSON(ctx, fmt.Sprintf("/ani/api/endpoint/%d/", id), &e); err != nil {
		return nil, eris.Wrapf(err, "hawc: fetch endpoint %d", id)
	}
	return &e, nil
}

// GetSession fetches a BMD session: models, BMRs, dose units and logic.
func (c *Client) GetSession(ctx context.Context, url string) (*models.Session, error) {
	var s models.Session
	if err := c.getJSON(ctx, url, &s); err != nil {
		return nil, eris.Wrap(err, "hawc: fetch session")
	}
	return &s, nil
}

// Execute asks the server to run the session's models.
func (c *Client) Execute(ctx context.Context, url string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, url, nil)
	if err != nil {
		return eris.Wrap(err, "hawc: execute session")
	}
	resp.Body.Close()
	return nil
}

// ExecuteStatus reports whether a requested execution has finished.
func (c *Client) ExecuteStatus(ctx context.Context, url string) (*models.ExecuteStatus, error) {
	var st models.ExecuteStatus
	if err := c.getJSON(ctx, url, &st); err != nil {
		return nil, eris.Wrap(err, "hawc: fetch execute status")
	}
	return &st, nil
}

// PollUntilFinished checks the execute status every interval until the
// server reports it finished. Failed checks are logged and polling goes on;
// only ctx ends the loop early.
func (c *Client) PollUntilFinished(ctx context.Context, url string, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return eris.Wrap(ctx.Err(), "hawc: poll execute status")
		case <-ticker.C:
		}

		st, err := c.ExecuteStatus(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return eris.Wrap(ctx.Err(), "hawc: poll execute status")
			}
			logger.Error("Execute status check %d failed: %v", attempt, err)
			continue
		}
		if st.Finished {
			logger.Info("Execution finished after %d checks", attempt)
			return nil
		}
		logger.Debug("Execution not finished (check %d)", attempt)
	}
}

// SaveSelectedModel persists the chosen model. A new selection is created
// with POST; an existing one is updated with PATCH.
func (c *Client) SaveSelectedModel(ctx context.Context, url string, sel models.SelectedModel, exists bool) (*models.SelectedModel, error) {
	method := http.MethodPost
	if exists {
		method = http.MethodPatch
	}
	body, err := json.Marshal(sel)
	if err != nil {
		return nil, eris.Wrap(err, "hawc: encode selected model")
	}
	resp, err := c.doRequest(ctx, method, url, body)
	if err != nil {
		return nil, eris.Wrap(err, "hawc: save selected model")
	}
	defer resp.Body.Close()

	var saved models.SelectedModel
	if err := json.NewDecoder(resp.Body).Decode(&saved); err != nil {
		if err == io.EOF {
			return &sel, nil
		}
		return nil, eris.Wrap(err, "hawc: decode selected model")
	}
	return &saved, nil
}

func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	resp, err := c.doRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}

// doRequest performs an HTTP request, retrying transport errors and 5xx
// responses with linear backoff.
func (c *Client) doRequest(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	url = c.resolve(url)
	var lastErr error

	for i := 0; i < c.config.MaxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(i) * c.config.RetryDelayBase):
			}
		}

		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, rd)
		if err != nil {
			return nil, err
		}

		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.config.Token != "" {
			req.Header.Set("Authorization", "Token "+c.config.Token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			logger.Warn("%s %s failed (attempt %d/%d): %v", method, url, i+1, c.config.MaxRetries, err)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			logger.Warn("%s %s returned %d (attempt %d/%d)", method, url, resp.StatusCode, i+1, c.config.MaxRetries)
			continue
		}

		if resp.StatusCode >= 400 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return nil, &StatusError{Method: method, URL: url, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		}

		return resp, nil
	}

	return nil, eris.Wrap(lastErr, "max retries exceeded")
}
