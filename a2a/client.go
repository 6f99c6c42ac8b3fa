package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hupe1980/opsmesh/logging"
)

// maxResponseBytes caps how much of a reply body is read.
const maxResponseBytes = 4 << 20

// StatusError reports a non-2xx HTTP status from an agent endpoint.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("a2a endpoint %s returned HTTP %d: %s", e.URL, e.StatusCode, e.Body)
}

// HTTPStatus returns the status code.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// Temporary reports whether the status is worth retrying (429 and 5xx).
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ClientOptions configures Client.
type ClientOptions struct {
	HTTPClient *http.Client
	Header     http.Header
	Logger     logging.Logger
}

// Client sends message/send requests to agent endpoints.
type Client struct {
	httpClient *http.Client
	header     http.Header
	logger     logging.Logger
}

// NewClient creates a Client. Per-call deadlines come from the context; the
// default HTTP client only bounds idle connections.
func NewClient(optFns ...func(o *ClientOptions)) *Client {
	opts := ClientOptions{
		HTTPClient: &http.Client{Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
		}},
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Client{httpClient: opts.HTTPClient, header: opts.Header, logger: opts.Logger}
}

// Send posts text to the endpoint and returns the concatenated text parts of
// the reply. JSON-RPC errors are returned as *RPCError and HTTP failures as
// *StatusError.
func (c *Client) Send(ctx context.Context, endpoint, text string) (string, error) {
	rpcReq := NewSendRequest(text)
	body, err := json.Marshal(rpcReq)
	if err != nil {
		return "", fmt.Errorf("encode a2a request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build a2a request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	c.logger.Debug("a2a request", "endpoint", endpoint, "request_id", rpcReq.ID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read a2a response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{URL: endpoint, StatusCode: resp.StatusCode, Body: truncate(string(raw), 200)}
	}

	var rpcResp Response
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return "", fmt.Errorf("decode a2a response: %w", err)
	}
	if rpcResp.Error != nil {
		return "", rpcResp.Error
	}
	if rpcResp.Result == nil {
		return "", nil
	}
	return rpcResp.Result.Text(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
