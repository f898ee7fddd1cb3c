package transport

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const defaultAcceptTimeout = time.Second

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAcceptTimeout sets the listener deadline per accept attempt, which
// bounds how long Stop waits for the accept loop to notice the stop flag.
// Default: 1s.
func WithAcceptTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.acceptTimeout = d }
}

// Server listens for inbound producer connections and streams every
// decoded event to the registered EventFunc. Each connection gets its own
// reader goroutine; producers are independent of one another.
type Server struct {
	addr          string
	acceptTimeout time.Duration
	onEvent       EventFunc

	mu      sync.Mutex
	ln      *net.TCPListener
	conns   map[string]net.Conn
	running atomic.Bool
	group   *errgroup.Group
	done    chan struct{}
}

// NewServer creates a server for host:port. onEvent must be non-nil.
func NewServer(host string, port int, onEvent EventFunc, opts ...ServerOption) *Server {
	s := &Server{
		addr:          net.JoinHostPort(host, fmt.Sprint(port)),
		acceptTimeout: defaultAcceptTimeout,
		onEvent:       onEvent,
		conns:         make(map[string]net.Conn),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds the listening socket and launches the accept loop.
// Calling Start while running is a no-op.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running.Load() {
		return nil
	}

	tcpAddr, err := net.ResolveTCPAddr("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("transport: resolve %s: %w", s.addr, err)
	}
	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", s.addr, err)
	}

	s.ln = ln
	s.group = &errgroup.Group{}
	s.done = make(chan struct{})
	s.running.Store(true)
	slog.Info("trace server listening", "addr", s.addr)
	go s.acceptLoop(ln, s.done)
	return nil
}

// Addr returns the bound listener address, useful when port 0 was requested.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Stop flips the running flag, closes the listener and every live
// connection, and waits for all readers to finish. Idempotent.
func (s *Server) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}

	s.mu.Lock()
	ln, done, group := s.ln, s.done, s.group
	for _, conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	ln.Close()
	<-done

	// The accept loop may have registered a connection after the close
	// pass above. It has exited now, so this second pass is final; without
	// it a silent producer accepted mid-Stop would block group.Wait.
	s.mu.Lock()
	for _, conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	group.Wait()
	slog.Info("trace server stopped", "addr", s.addr)
}

// acceptLoop accepts connections until the stop flag flips. The listener
// deadline keeps Accept from blocking past the stop check.
func (s *Server) acceptLoop(ln *net.TCPListener, done chan struct{}) {
	defer close(done)

	for s.running.Load() {
		ln.SetDeadline(time.Now().Add(s.acceptTimeout))
		conn, err := ln.Accept()
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if s.running.Load() {
				slog.Warn("trace server: accept error", "error", err)
			}
			return
		}

		id := uuid.NewString()[:8]
		s.mu.Lock()
		s.conns[id] = conn
		s.mu.Unlock()

		slog.Info("trace producer connected", "conn", id, "remote", conn.RemoteAddr())
		s.group.Go(func() error {
			s.handleConn(id, conn)
			return nil
		})
	}
}

// handleConn reads protocol lines from one producer until it disconnects.
func (s *Server) handleConn(id string, conn net.Conn) {
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, id)
		s.mu.Unlock()
		slog.Info("trace producer disconnected", "conn", id)
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		ev, err := DecodeLine(line)
		if err != nil {
			slog.Warn("trace server: skipping malformed line", "conn", id, "error", err)
			continue
		}
		s.onEvent(ev)
	}
	if err := scanner.Err(); err != nil && s.running.Load() {
		slog.Warn("trace server: read error", "conn", id, "error", err)
	}
}
