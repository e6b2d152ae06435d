// Package client provides a Go SDK for talking to a single KV store node.
//
// Big idea:
//
// Instead of hand-rolling framed TCP messages everywhere, we wrap them
// inside a clean Go API. So instead of:
//
//	wire.WriteRequest(conn, &wire.Request{Operation: "SET", ...})
//	wire.ReadResponse(conn)
//
// Users can simply call:
//
//	client.Set(ctx, "key", value)
//	client.Get(ctx, "key")
//
// This hides connection management, framing, and JSON encoding behind a
// small typed surface.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/MariamHany01/key-valueDB/internal/wire"
)

// Client represents a connection to ONE KV node.
//
// Important: this client talks to a single node. That node is responsible
// for deciding whether it's primary and for replicating to its peers — the
// client never talks to more than one address itself. If the node answers
// with a "not primary" error, a *NotPrimaryError carries the hint so the
// caller can redial elsewhere.
type Client struct {
	addr    string
	timeout time.Duration

	mu   sync.Mutex
	conn net.Conn
}

// New creates a Client bound to addr (host:port). The connection is dialed
// lazily on first use, not here.
func New(addr string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{addr: addr, timeout: timeout}
}

// Close closes the underlying connection, if one was opened.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) connLocked() (net.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}
	conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.addr, err)
	}
	c.conn = conn
	return conn, nil
}

// roundTrip sends req and returns the decoded response. On any I/O error
// the connection is dropped so the next call redials — a half-written
// frame on the wire would otherwise desync every subsequent request.
func (c *Client) roundTrip(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.connLocked()
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	conn.SetDeadline(deadline)

	if err := wire.WriteRequest(conn, req); err != nil {
		conn.Close()
		c.conn = nil
		return nil, fmt.Errorf("write request: %w", err)
	}

	resp, err := wire.ReadResponse(conn)
	if err != nil {
		conn.Close()
		c.conn = nil
		return nil, fmt.Errorf("read response: %w", err)
	}
	return resp, nil
}

// Set stores key=value. value must already be valid JSON (a bare string
// like `"hello"` or a structured document); the store keeps whatever is
// sent without attempting to interpret it.
func (c *Client) Set(ctx context.Context, key string, value json.RawMessage) error {
	resp, err := c.roundTrip(ctx, &wire.Request{Operation: wire.OpSet, Key: key, Value: value})
	if err != nil {
		return err
	}
	return responseError(resp)
}

// Get retrieves the value for key. ErrNotFound is returned if the node has
// no such key.
func (c *Client) Get(ctx context.Context, key string) (json.RawMessage, error) {
	resp, err := c.roundTrip(ctx, &wire.Request{Operation: wire.OpGet, Key: key})
	if err != nil {
		return nil, err
	}
	if resp.Status == wire.StatusNotFound {
		return nil, ErrNotFound
	}
	if err := responseError(resp); err != nil {
		return nil, err
	}
	return resp.Value, nil
}

// Delete removes key. It returns (false, nil) if the key didn't exist —
// that's a successful no-op, not an error.
func (c *Client) Delete(ctx context.Context, key string) (bool, error) {
	resp, err := c.roundTrip(ctx, &wire.Request{Operation: wire.OpDelete, Key: key})
	if err != nil {
		return false, err
	}
	if err := responseError(resp); err != nil {
		return false, err
	}
	return resp.Success != nil && *resp.Success, nil
}

// BulkItem is one key/value pair passed to BulkSet.
type BulkItem struct {
	Key   string
	Value json.RawMessage
}

// BulkSet applies every item as a single atomic batch on the node: the
// node commits them with one WAL record, so a crash mid-batch leaves
// either all of them or none of them durable.
func (c *Client) BulkSet(ctx context.Context, items []BulkItem) error {
	wireItems := make([]wire.Item, len(items))
	for i, it := range items {
		wireItems[i] = wire.Item{Key: it.Key, Value: it.Value}
	}
	resp, err := c.roundTrip(ctx, &wire.Request{Operation: wire.OpBulkSet, Items: wireItems})
	if err != nil {
		return err
	}
	return responseError(resp)
}

// ─── Errors ─────────────────────────────────────────────────────────────────

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = fmt.Errorf("key not found")

// NotPrimaryError is returned when the node refuses a write because it
// isn't the current primary. Primary carries the [host, port] hint from
// the node's own reply, if it had one.
type NotPrimaryError struct {
	Message string
	Primary []any
}

func (e *NotPrimaryError) Error() string {
	if len(e.Primary) == 2 {
		return fmt.Sprintf("%s (primary at %v)", e.Message, e.Primary)
	}
	return e.Message
}

func responseError(resp *wire.Response) error {
	if resp.Status != wire.StatusError {
		return nil
	}
	if resp.Primary != nil || resp.Message == "Not primary" {
		return &NotPrimaryError{Message: resp.Message, Primary: resp.Primary}
	}
	return fmt.Errorf("kvstore: %s", resp.Message)
}
