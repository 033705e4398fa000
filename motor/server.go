package motor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"sync"
	"syscall"
	"time"
)

const DefaultSocketMode os.FileMode = 0o777

// ListenerConfig describes where agents connect.
type ListenerConfig struct {
	// Network is "tcp" or "unix"
	Network string

	// Address is host:port for tcp, a filesystem path for unix
	Address string

	// SocketMode is applied to the unix socket file after bind, DefaultSocketMode when zero
	SocketMode os.FileMode
}

// Listen binds cfg. For a unix socket a stale socket file is removed first and
// the new one is made accessible to other local users.
func Listen(cfg ListenerConfig) (net.Listener, error) {
	switch cfg.Network {
	case "tcp", "tcp4", "tcp6":
		ln, err := net.Listen(cfg.Network, cfg.Address)
		if err != nil {
			return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Address, err)
		}
		return ln, nil

	case "unix":
		if err := removeStaleSocket(cfg.Address); err != nil {
			return nil, err
		}
		ln, err := net.Listen("unix", cfg.Address)
		if err != nil {
			return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Address, err)
		}
		mode := cfg.SocketMode
		if mode == 0 {
			mode = DefaultSocketMode
		}
		if err := os.Chmod(cfg.Address, mode); err != nil {
			ln.Close()
			return nil, fmt.Errorf("failed to chmod socket %s: %w", cfg.Address, err)
		}
		return ln, nil

	default:
		return nil, fmt.Errorf("unsupported network %q", cfg.Network)
	}
}

func removeStaleSocket(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Mode()&fs.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove stale socket %s: %w", path, err)
	}
	return nil
}

// Server accepts agent connections and runs a Handler on each.
type Server struct {
	handler *Handler
	logger  *slog.Logger

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

func NewServer(handler *Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		handler: handler,
		logger:  logger,
		conns:   make(map[net.Conn]struct{}),
	}
}

// Serve accepts until ctx is cancelled or ln is closed. Any other accept error
// is logged and retried with backoff. On return the listener and every tracked
// connection are closed and all handlers have exited.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	defer func() {
		ln.Close()
		s.closeAll()
		s.wg.Wait()
	}()

	s.logger.Info("listening for mirrored requests", "network", ln.Addr().Network(), "address", ln.Addr().String())

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			// EMFILE, ENFILE, ECONNABORTED and friends clear up on their own
			delay = nextDelay(delay)
			s.logger.Warn("accept failed, retrying", "error", err, "delay", delay, "temporary", temporaryAcceptError(err))
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return nil
			}
		}
		delay = 0

		s.track(conn, true)
		s.wg.Add(1)
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer s.track(conn, false)
	defer func() {
		if r := recover(); r != nil {
			conn.Close()
			s.logger.Error("connection handler panicked", "remote", remoteString(conn), "panic", r)
		}
	}()
	s.handler.Serve(ctx, conn)
}

// Active reports the number of open connections.
func (s *Server) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

func temporaryAcceptError(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE) ||
		errors.Is(err, syscall.ENOBUFS) ||
		errors.Is(err, syscall.ENOMEM) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ECONNRESET)
}

// nextDelay doubles from 5ms up to one second.
func nextDelay(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}
