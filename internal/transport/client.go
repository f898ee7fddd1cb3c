package transport

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultDialTimeout = 5 * time.Second
	defaultReadTimeout = 5 * time.Minute
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithDialTimeout sets the connect timeout. Default: 5s.
func WithDialTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.dialTimeout = d }
}

// WithReadTimeout sets the per-read deadline. A producer that stays idle
// longer than this is treated as disconnected. Default: 5m.
func WithReadTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.readTimeout = d }
}

// WithOnConnected sets the callback invoked after a successful dial.
func WithOnConnected(f func()) ClientOption {
	return func(c *Client) { c.onConnected = f }
}

// WithOnDisconnected sets the callback invoked exactly once per connection
// when it closes. reason is empty for a clean shutdown or remote EOF.
func WithOnDisconnected(f func(reason string)) ClientOption {
	return func(c *Client) { c.onDisconnected = f }
}

// Client dials a remote trace producer and streams its events to the
// registered EventFunc until EOF, a socket error, or Stop.
type Client struct {
	addr           string
	dialTimeout    time.Duration
	readTimeout    time.Duration
	onEvent        EventFunc
	onConnected    func()
	onDisconnected func(reason string)

	mu       sync.Mutex
	conn     net.Conn
	done     chan struct{}
	stopping atomic.Bool
}

// NewClient creates a client targeting host:port. onEvent must be non-nil.
func NewClient(host string, port int, onEvent EventFunc, opts ...ClientOption) *Client {
	c := &Client{
		addr:        net.JoinHostPort(host, fmt.Sprint(port)),
		dialTimeout: defaultDialTimeout,
		readTimeout: defaultReadTimeout,
		onEvent:     onEvent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the producer and starts the read loop. Calling Connect
// while a connection is live is a no-op.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	conn, err := net.DialTimeout("tcp", c.addr, c.dialTimeout)
	if err != nil {
		return fmt.Errorf("transport: dial %s: %w", c.addr, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetKeepAlive(true)
	}

	c.stopping.Store(false)
	c.conn = conn
	c.done = make(chan struct{})
	slog.Info("trace client connected", "addr", c.addr)
	if c.onConnected != nil {
		c.onConnected()
	}
	go c.readLoop(conn, c.done)
	return nil
}

// Stop closes the connection. Blocked reads unblock via the closed socket;
// the read loop surfaces the disconnect with an empty reason. Safe to call
// repeatedly and while never connected.
func (c *Client) Stop() {
	c.mu.Lock()
	conn, done := c.conn, c.done
	c.mu.Unlock()
	c.stopping.Store(true)
	if conn != nil {
		conn.Close()
	}
	if done != nil {
		// Waits out the read loop even when the remote already closed.
		<-done
	}
}

// readLoop consumes protocol lines until the connection ends, then reports
// the disconnect exactly once.
func (c *Client) readLoop(conn net.Conn, done chan struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for {
		conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		if !scanner.Scan() {
			break
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		ev, err := DecodeLine(line)
		if err != nil {
			// Malformed lines are logged and skipped, never fatal.
			slog.Warn("trace client: skipping malformed line", "error", err)
			continue
		}
		c.onEvent(ev)
	}

	reason := ""
	if err := scanner.Err(); err != nil && !c.stopping.Load() {
		reason = err.Error()
	}

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	conn.Close()

	slog.Info("trace client disconnected", "addr", c.addr, "reason", reason)
	if c.onDisconnected != nil {
		c.onDisconnected(reason)
	}
}
