package socketio

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/animate/internal/config"
	"github.com/vk/animate/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

const (
	// CallEvent carries a request to the engine.
	CallEvent = "engine:call"
	// ResultEvent carries the engine's answer to one request.
	ResultEvent = "engine:result"
)

// ErrClosed is returned by calls made after the client was closed or the
// connection dropped.
var ErrClosed = errors.New("engine connection closed")

// RemoteError is an error reported by the engine for one call.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("engine %s failed: %s", e.Method, e.Message)
}

// request is the payload of CallEvent.
type request struct {
	ID     uint64 `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// response is the payload of ResultEvent.
type response struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Client multiplexes request/response calls over one socket.io connection.
// It is safe for concurrent use.
type Client struct {
	timeout   time.Duration
	emit      func(event string, payload any)
	close     func()
	closeOnce sync.Once

	nextID  atomic.Uint64
	mu      sync.Mutex
	pending map[uint64]chan response
	closed  bool
}

func newClient(timeout time.Duration, emit func(string, any), closeFn func()) *Client {
	return &Client{
		timeout: timeout,
		emit:    emit,
		close:   closeFn,
		pending: make(map[uint64]chan response),
	}
}

// Dial connects to the engine described by cfg and waits until the
// connection is established, fails, or cfg.Timeout elapses.
func Dial(ctx context.Context, cfg config.Engine) (*Client, error) {
	logger := ctxlog.FromContext(ctx).With("backend", Name, "url", cfg.URL, "namespace", cfg.Namespace)
	logger.Debug("Dialing engine.")

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)

	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(cfg.Namespace, opts)

	c := newClient(cfg.Timeout,
		func(event string, payload any) { io.Emit(event, payload) },
		func() {
			logger.Debug("Disconnecting socket client")
			io.Disconnect()
		},
	)

	connected := make(chan error, 1)
	var isConnected atomic.Bool

	// --- Event Listeners ---
	io.On(types.EventName("connect"), func(...any) {
		if isConnected.CompareAndSwap(false, true) {
			logger.Info("Connected to engine", "sid", io.Id())
			connected <- nil
		}
	})

	io.On(types.EventName("connect_error"), func(errs ...any) {
		if isConnected.Load() {
			return
		}
		select {
		case connected <- connectError(errs):
		default:
		}
	})

	io.On(types.EventName("disconnect"), func(reason ...any) {
		logger.Debug("Engine connection dropped", "reason", reason)
		c.failPending()
	})

	io.On(types.EventName(ResultEvent), func(data ...any) {
		if err := c.deliver(data...); err != nil {
			logger.Warn("Discarding engine result", "error", err)
		}
	})

	// --- Execution Block ---
	io.Connect()

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	select {
	case <-dialCtx.Done():
		c.Close()
		return nil, fmt.Errorf("timed out after %s while waiting for initial connection to %s", cfg.Timeout, cfg.URL)
	case err := <-connected:
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to connect to engine at %s: %w", cfg.URL, err)
		}
	}
	return c, nil
}

func connectError(errs []any) error {
	if len(errs) == 0 {
		return errors.New("connection refused")
	}
	if err, ok := errs[0].(error); ok {
		return err
	}
	return fmt.Errorf("%v", errs[0])
}

// Call sends method with params and decodes the engine's result into out,
// which may be nil. The call is bounded by the client timeout.
func (c *Client) Call(ctx context.Context, method string, params any, out any) error {
	id := c.nextID.Add(1)
	ch := make(chan response, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctxlog.FromContext(ctx).Debug("Calling engine.", "method", method, "id", id)
	c.emit(CallEvent, request{ID: id, Method: method, Params: params})

	select {
	case <-callCtx.Done():
		return fmt.Errorf("timed out waiting for engine %s: %w", method, callCtx.Err())
	case res, ok := <-ch:
		if !ok {
			return ErrClosed
		}
		if res.Error != "" {
			return &RemoteError{Method: method, Message: res.Error}
		}
		if out == nil || len(res.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(res.Result, out); err != nil {
			return fmt.Errorf("failed to decode engine %s result: %w", method, err)
		}
		return nil
	}
}

// deliver routes one ResultEvent payload to the waiting call.
func (c *Client) deliver(data ...any) error {
	res, err := decodeResponse(data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.pending[res.ID]
	if !ok {
		return fmt.Errorf("no pending call with id %d", res.ID)
	}
	// Each channel has room for exactly one response and leaves the map
	// before it is sent on, so this never blocks.
	delete(c.pending, res.ID)
	ch <- res
	return nil
}

// decodeResponse normalises a socket.io event payload, which arrives as
// generic JSON values, into a response.
func decodeResponse(data []any) (response, error) {
	if len(data) == 0 {
		return response{}, errors.New("empty result payload")
	}
	var raw []byte
	switch v := data[0].(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return response{}, fmt.Errorf("failed to re-encode result payload: %w", err)
		}
		raw = b
	}
	var res response
	if err := json.Unmarshal(raw, &res); err != nil {
		return response{}, fmt.Errorf("malformed result payload: %w", err)
	}
	if res.ID == 0 {
		return response{}, errors.New("result payload without id")
	}
	return res, nil
}

// failPending closes every waiting call's channel; the callers then return
// ErrClosed. Later calls fail immediately.
func (c *Client) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}

// Close disconnects from the engine. It is safe to call more than once.
func (c *Client) Close() {
	c.failPending()
	c.closeOnce.Do(func() {
		if c.close != nil {
			c.close()
		}
	})
}
