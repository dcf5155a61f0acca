package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/brightpath/pulse/internal/domain"
)

// ErrDisabled is returned by every call when the client has no base URL.
// The engine treats it like any other write failure: logged and swallowed.
var ErrDisabled = errors.New("gateway client disabled (no base URL)")

const (
	defaultTimeout = 2 * time.Second

	// maxDrainBytes bounds how much of an error response body is read
	// before the connection is released.
	maxDrainBytes = 4 << 10
)

// Client is an HTTP implementation of Gateway against the pulse collector.
// An empty base URL disables the client, letting hosts embed the tracker
// without a collector configured.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a gateway client. If baseURL is empty, every call
// returns ErrDisabled.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// IsEnabled returns true if the client is configured with a URL.
func (c *Client) IsEnabled() bool {
	return c.baseURL != ""
}

func (c *Client) EnsureVisitor(ctx context.Context, req domain.EnsureVisitorRequest) (string, error) {
	var resp domain.EnsureVisitorResponse
	if err := c.post(ctx, "/api/v1/visitors", req, &resp); err != nil {
		return "", err
	}
	return resp.VisitorID, nil
}

func (c *Client) TouchVisitor(ctx context.Context, visitorID string) error {
	return c.post(ctx, "/api/v1/visitors/"+visitorID+"/touch", nil, nil)
}

func (c *Client) CreateSession(ctx context.Context, req domain.CreateSessionRequest) (string, error) {
	var resp domain.CreateSessionResponse
	if err := c.post(ctx, "/api/v1/sessions", req, &resp); err != nil {
		return "", err
	}
	return resp.SessionID, nil
}

func (c *Client) CloseSession(ctx context.Context, sessionID string, req domain.CloseSessionRequest) error {
	return c.post(ctx, "/api/v1/sessions/"+sessionID+"/close", req, nil)
}

func (c *Client) RecordPageView(ctx context.Context, req domain.PageViewRequest) error {
	return c.post(ctx, "/api/v1/pageviews", req, nil)
}

func (c *Client) UpdatePageView(ctx context.Context, req domain.PageViewUpdate) error {
	return c.do(ctx, http.MethodPatch, "/api/v1/pageviews", req, nil)
}

func (c *Client) RecordEvent(ctx context.Context, req domain.EventRequest) error {
	return c.post(ctx, "/api/v1/events", req, nil)
}

func (c *Client) StartJourney(ctx context.Context, req domain.JourneyStartRequest) error {
	return c.post(ctx, "/api/v1/journeys", req, nil)
}

func (c *Client) RecordJourneyStep(ctx context.Context, journeyID string, req domain.JourneyStepRequest) error {
	return c.post(ctx, "/api/v1/journeys/"+journeyID+"/steps", req, nil)
}

func (c *Client) AppendReplayChunk(ctx context.Context, journeyID string, req domain.ReplayChunkRequest) error {
	return c.post(ctx, "/api/v1/journeys/"+journeyID+"/replay", req, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// do issues one JSON request. Responses outside 2xx become errors; the body
// is drained so the underlying connection can be reused.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if !c.IsEnabled() {
		return ErrDisabled
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.CopyN(io.Discard, resp.Body, maxDrainBytes)
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	_, _ = io.CopyN(io.Discard, resp.Body, maxDrainBytes)
	return nil
}
