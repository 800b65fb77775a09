// Package control hosts the loopback TCP channel the simulator drives.
package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"pacenotes/internal/domain"
	"pacenotes/internal/protocol"
)

const (
	DefaultAddress       = "127.0.0.1:43434"
	defaultRetryInterval = time.Second
	defaultRetryMax      = 10 * time.Second
	readBufferSize       = 4096
)

// ErrBindFailed is returned for bind errors that retrying cannot fix.
var ErrBindFailed = errors.New("control channel bind failed")

// Session is the part of the session controller the server drives.
type Session interface {
	ApplyLine(line string) domain.SideEffect
	SetHosting(status domain.HostingStatus)
	SetConnected(connected bool)
}

// Config controls the listener address and bind retry policy.
type Config struct {
	Address       string
	RetryInterval time.Duration
	RetryMax      time.Duration
}

// Server accepts one logical client at a time and feeds its lines to the
// session in arrival order.
type Server struct {
	cfg     Config
	session Session
	logger  *zap.Logger

	mu     sync.Mutex
	active net.Conn
	addr   net.Addr
}

func NewServer(cfg Config, session Session, logger *zap.Logger) *Server {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	if cfg.RetryMax < cfg.RetryInterval {
		cfg.RetryMax = cfg.RetryInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{cfg: cfg, session: session, logger: logger}
}

// Run binds the listener and serves until ctx is cancelled. It returns an
// error wrapping ErrBindFailed when the address cannot be bound.
func (s *Server) Run(ctx context.Context) error {
	s.session.SetHosting(domain.HostingStarting)

	ln, err := s.Listen(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	go func() {
		<-ctx.Done()
		_ = ln.Close()
		s.dropActive()
	}()

	err = s.Serve(ln)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Listen binds the configured address. Address-in-use errors are retried
// with capped exponential backoff until ctx is cancelled; any other error is
// fatal.
func (s *Server) Listen(ctx context.Context) (net.Listener, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.RetryInterval
	policy.MaxInterval = s.cfg.RetryMax
	policy.MaxElapsedTime = 0
	policy.Reset()

	var lc net.ListenConfig
	for attempt := 1; ; attempt++ {
		ln, err := lc.Listen(ctx, "tcp", s.cfg.Address)
		if err == nil {
			s.mu.Lock()
			s.addr = ln.Addr()
			s.mu.Unlock()
			s.logger.Info("control channel listening", zap.String("address", ln.Addr().String()))
			s.session.SetHosting(domain.HostingListening)
			return ln, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isAddrInUse(err) {
			s.logger.Error("control channel bind failed", zap.String("address", s.cfg.Address), zap.Error(err))
			s.session.SetHosting(domain.HostingFailed)
			return nil, fmt.Errorf("%w: %w", ErrBindFailed, err)
		}

		wait := policy.NextBackOff()
		s.logger.Warn("control port in use, retrying",
			zap.String("address", s.cfg.Address),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
		)
		s.session.SetHosting(domain.HostingRetryingBind)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Serve accepts connections until the listener is closed. A new client
// replaces the previous one.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("control channel accept: %w", err)
		}

		s.mu.Lock()
		previous := s.active
		s.active = conn
		s.mu.Unlock()

		if previous != nil {
			s.logger.Info("replacing control client", zap.String("previous", previous.RemoteAddr().String()))
			_ = previous.Close()
		}

		s.logger.Info("control client connected", zap.String("remote", conn.RemoteAddr().String()))
		s.session.SetConnected(true)
		go s.handle(conn)
	}
}

// Addr returns the bound address once listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) handle(conn net.Conn) {
	defer s.release(conn)

	var lines protocol.LineBuffer
	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			for _, line := range lines.Feed(buf[:n]) {
				s.session.ApplyLine(line)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Warn("control client read error", zap.Error(err))
			}
			break
		}
	}

	if line, ok := lines.Flush(); ok {
		s.session.ApplyLine(line)
	}
}

func (s *Server) release(conn net.Conn) {
	_ = conn.Close()

	s.mu.Lock()
	current := s.active == conn
	if current {
		s.active = nil
	}
	s.mu.Unlock()

	if current {
		s.logger.Info("control client disconnected", zap.String("remote", conn.RemoteAddr().String()))
		s.session.SetConnected(false)
	}
}

func (s *Server) dropActive() {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if active != nil {
		_ = active.Close()
	}
}

func isAddrInUse(err error) bool {
	if errors.Is(err, syscall.EADDRINUSE) {
		return true
	}
	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) && errors.Is(sysErr.Err, syscall.EADDRINUSE) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "address already in use") ||
		strings.Contains(msg, "only one usage of each socket address")
}
