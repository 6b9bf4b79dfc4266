package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultHTTPTimeout = 15 * time.Second

// Client talks to the daemon's HTTP API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// ClientOption customizes the API client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// NewClient constructs a client for the daemon listening at bind, an
// address like "127.0.0.1:7719" or a full http URL.
func NewClient(bind string, opts ...ClientOption) *Client {
	base := strings.TrimSpace(bind)
	if base != "" && !strings.Contains(base, "://") {
		base = "http://" + base
	}
	client := &Client{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Status fetches the daemon status. A connection error means no daemon is
// listening at the configured address.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var status DaemonStatus
	err := c.get(ctx, "/api/status", nil, &status)
	return status, err
}

// Submit enqueues a batch of transfers.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error) {
	var resp SubmitResponse
	err := c.post(ctx, "/api/transfers", req, &resp)
	return resp, err
}

// ListTransfers fetches transfers, optionally filtered.
func (c *Client) ListTransfers(ctx context.Context, status, source, dest string) ([]Transfer, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	if source != "" {
		query.Set("source", source)
	}
	if dest != "" {
		query.Set("dest", dest)
	}
	var resp TransferListResponse
	if err := c.get(ctx, "/api/transfers", query, &resp); err != nil {
		return nil, err
	}
	return resp.Transfers, nil
}

// GetTransfer fetches one transfer by id.
func (c *Client) GetTransfer(ctx context.Context, id string) (Transfer, error) {
	var resp TransferResponse
	err := c.get(ctx, "/api/transfers/"+url.PathEscape(id), nil, &resp)
	return resp.Transfer, err
}

// Cancel asks the daemon to cancel a transfer. The boolean reports
// whether the request changed anything.
func (c *Client) Cancel(ctx context.Context, id string) (bool, error) {
	endpoint, err := c.endpoint("/api/transfers/"+url.PathEscape(id), nil)
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("api client: build request: %w", err)
	}
	var resp CancelResponse
	if err := c.do(req, &resp); err != nil {
		return false, err
	}
	return resp.Cancelled, nil
}

// Skip settles a queued transfer without running it.
func (c *Client) Skip(ctx context.Context, id string) (Transfer, error) {
	var resp TransferResponse
	err := c.post(ctx, "/api/transfers/"+url.PathEscape(id)+"/skip", struct{}{}, &resp)
	return resp.Transfer, err
}

// Stats fetches transfer table statistics.
func (c *Client) Stats(ctx context.Context) (StatsResponse, error) {
	var resp StatsResponse
	err := c.get(ctx, "/api/stats", nil, &resp)
	return resp, err
}

// Events fetches a window of the event feed. With follow set the daemon
// holds the request until an event is published, so callers should pass a
// context with their own deadline and an http client without one.
func (c *Client) Events(ctx context.Context, since uint64, limit int, follow bool) (EventStreamResponse, error) {
	query := url.Values{}
	query.Set("since", strconv.FormatUint(since, 10))
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if follow {
		query.Set("follow", "1")
	}
	var resp EventStreamResponse
	err := c.get(ctx, "/api/events", query, &resp)
	return resp, err
}

// Hosts fetches the configured hosts.
func (c *Client) Hosts(ctx context.Context) ([]Host, error) {
	var resp HostListResponse
	if err := c.get(ctx, "/api/hosts", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Hosts, nil
}

// ListDir lists a directory on a configured host.
func (c *Client) ListDir(ctx context.Context, hostID, path string) (ListDirResponse, error) {
	query := url.Values{}
	query.Set("path", path)
	var resp ListDirResponse
	err := c.get(ctx, "/api/hosts/"+url.PathEscape(hostID)+"/ls", query, &resp)
	return resp, err
}

// Exists checks whether a path exists on a configured host.
func (c *Client) Exists(ctx context.Context, hostID, path string) (bool, error) {
	query := url.Values{}
	query.Set("path", path)
	var resp ExistsResponse
	if err := c.get(ctx, "/api/hosts/"+url.PathEscape(hostID)+"/exists", query, &resp); err != nil {
		return false, err
	}
	return resp.Exists, nil
}

// History fetches settled transfers from the daemon's journal.
func (c *Client) History(ctx context.Context, limit int) ([]Transfer, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var resp HistoryResponse
	if err := c.get(ctx, "/api/history", query, &resp); err != nil {
		return nil, err
	}
	return resp.Transfers, nil
}

func (c *Client) endpoint(path string, query url.Values) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("api client: no daemon address configured")
	}
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return endpoint, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint, err := c.endpoint(path, query)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("api client: build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	endpoint, err := c.endpoint(path, nil)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("api client: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("api client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("api client: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api client: decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload ErrorResponse
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("daemon returned %d", resp.StatusCode)
}
