// Package diligence drives the trigger/poll protocol against the external
// diligence worker.
package diligence

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Worker-reported run statuses on the status endpoint.
const (
	WireProcessing = "processing"
	WireCompleted  = "completed"
	WireError      = "error"
)

// Default HTTP client configuration.
const (
	defaultRequestTimeout = 10 * time.Second
)

// Result is the opaque analytical payload produced by a completed run.
type Result map[string]any

// Outcome is one poll observation of the worker's run state.
type Outcome struct {
	Status string
	Result Result
	// Err carries the worker's own failure message when Status is error.
	Err string
}

// Client issues trigger and status requests to the diligence worker.
type Client interface {
	// Trigger requests one diligence run for the memo id.
	Trigger(ctx context.Context, memoID string) error

	// Poll reads the current run state for the memo id. A worker that has
	// no matching run yet reports processing; only transport problems are
	// returned as errors.
	Poll(ctx context.Context, memoID string) (Outcome, error)
}

type triggerRequest struct {
	MemoID    string `json:"memo_id"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

type triggerResponse struct {
	Accepted bool `json:"accepted"`
}

type statusResponse struct {
	Status string `json:"status"`
	Result Result `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// HTTPClient implements Client over the worker's HTTP interface.
type HTTPClient struct {
	baseURL string
	hc      *http.Client
}

// ClientOption applies a configuration option to the HTTPClient.
type ClientOption func(*HTTPClient)

// WithRequestTimeout bounds each outbound worker request.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		if d > 0 {
			c.hc.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// NewHTTPClient creates a worker client for the given base URL.
func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Trigger posts one run request. Non-2xx responses and an unaccepted ack
// both count as trigger failures; the caller decides whether to retry.
func (c *HTTPClient) Trigger(ctx context.Context, memoID string) error {
	body, err := json.Marshal(triggerRequest{
		MemoID:    memoID,
		RequestID: uuid.NewString(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encode trigger request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/trigger", strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("build trigger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTriggerFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: worker returned %s", ErrTriggerFailed, resp.Status)
	}

	var ack triggerResponse
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return fmt.Errorf("%w: decode ack: %w", ErrTriggerFailed, err)
	}
	if !ack.Accepted {
		return fmt.Errorf("%w: worker did not accept the request", ErrTriggerFailed)
	}
	return nil
}

// Poll reads the run state. A 404 means the worker has not materialized the
// run yet, which the protocol defines as processing, not an error.
func (c *HTTPClient) Poll(ctx context.Context, memoID string) (Outcome, error) {
	u := c.baseURL + "/status?memo_id=" + url.QueryEscape(memoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("build status request: %w", err)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrPollFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Outcome{Status: WireProcessing}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Outcome{}, fmt.Errorf("%w: worker returned %s", ErrPollFailed, resp.Status)
	}

	var st statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return Outcome{}, fmt.Errorf("%w: decode status: %w", ErrPollFailed, err)
	}
	return Outcome{Status: st.Status, Result: st.Result, Err: st.Error}, nil
}
