package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/aryannaik/printrun-vault/internal/index"
	"github.com/aryannaik/printrun-vault/internal/metrics"
)

// DefaultTimeout bounds every backend call.
const DefaultTimeout = 15 * time.Second

const maxResponseBytes = 32 << 20

// Error is a response the backend itself marked as failed.
type Error struct {
	Action  string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend %s: request failed", e.Action)
	}
	return fmt.Sprintf("backend %s: %s", e.Action, e.Message)
}

// Client talks to the managed-script endpoint. Every action is a POST of
// {action, payload} to the same URL.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

func NewClient(url string, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger.Named("backend"),
		metrics: m,
	}
}

// Call posts one action and decodes the response into out (which may be nil).
func (c *Client) Call(ctx context.Context, action string, payload any, out any) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.BackendRequest(action, time.Since(start), err)
	}()

	if payload == nil {
		payload = struct{}{}
	}
	body, err := json.Marshal(request{Action: action, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", action, err)
	}
	// text/plain keeps the script host from demanding a CORS preflight.
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")

	c.logger.Debug("Calling backend", zap.String("action", action))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s request: status %d", action, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s response: %w", action, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode %s response: %w", action, err)
	}
	if env.failed() {
		return &Error{Action: action, Message: env.Error}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode %s response: %w", action, err)
		}
	}
	return nil
}

// Index fetches the full searchable product list.
func (c *Client) Index(ctx context.Context) ([]index.Entry, error) {
	var resp indexResponse
	if err := c.Call(ctx, ActionIndex, nil, &resp); err != nil {
		return nil, err
	}
	c.logger.Debug("Fetched index", zap.Int("entries", len(resp.Index)))
	return resp.Index, nil
}

// IndexVersion returns the backend's current index version token.
func (c *Client) IndexVersion(ctx context.Context) (string, error) {
	var resp metaResponse
	if err := c.Call(ctx, ActionMeta, nil, &resp); err != nil {
		return "", err
	}
	return resp.IndexVersion.String(), nil
}

// RowsByCode fetches the print-run rows for one product code.
func (c *Client) RowsByCode(ctx context.Context, code string) (*Rows, error) {
	var resp Rows
	if err := c.Call(ctx, ActionRows, rowsPayload{Code: code}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogSearch records a lookup. The response body is ignored.
func (c *Client) LogSearch(ctx context.Context, ev SearchEvent) error {
	return c.Call(ctx, ActionLogSearch, ev, nil)
}

// IsHealthy reports whether the backend answers the metadata action.
func (c *Client) IsHealthy(ctx context.Context) bool {
	_, err := c.IndexVersion(ctx)
	return err == nil
}
