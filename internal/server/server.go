// Package server accepts AudioSocket connections from the telephony
// switch and drives one conversation state machine per call, following
// the original AudioSocketServer's accept-loop/shutdown shape.
package server

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lokutor-ai/payphoned/internal/config"
	"github.com/lokutor-ai/payphoned/internal/pipeline"
	"github.com/lokutor-ai/payphoned/internal/providersetup"
	"github.com/lokutor-ai/payphoned/internal/session"
	"github.com/lokutor-ai/payphoned/internal/statemachine"
	"github.com/lokutor-ai/payphoned/internal/telemetry"
	"github.com/lokutor-ai/payphoned/internal/vad"
)

// shutdownWait bounds how long Shutdown waits for in-flight calls to
// hang up on their own before returning anyway.
const shutdownWait = 5 * time.Second

// uuidFrameTimeout bounds how long a new connection waits for the
// switch's opening UUID frame before it's abandoned.
const uuidFrameTimeout = 3 * time.Second

// Server listens for AudioSocket connections and runs one Machine per
// call until the call hangs up or the server shuts down.
type Server struct {
	settings     *config.Settings
	vadPool      *vad.Pool
	logger       telemetry.Logger
	metrics      *telemetry.Metrics
	newProviders providersetup.Factory

	mu        sync.Mutex
	listener  net.Listener
	conns     map[string]context.CancelFunc
	closeOnce sync.Once
	closed    chan struct{}
}

// New builds a Server. vadPool is shared across all calls (it's a
// fixed-size handle pool); providers are not.
func New(settings *config.Settings, vadPool *vad.Pool, newProviders providersetup.Factory, logger telemetry.Logger, metrics *telemetry.Metrics) *Server {
	if logger == nil {
		logger = telemetry.NoOpLogger{}
	}
	return &Server{
		settings:     settings,
		vadPool:      vadPool,
		logger:       logger,
		metrics:      metrics,
		newProviders: newProviders,
		conns:        make(map[string]context.CancelFunc),
		closed:       make(chan struct{}),
	}
}

// ListenAndServe binds the configured host:port and accepts connections
// until ctx is cancelled or Shutdown is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.settings.Audio.AudioSocketHost, s.settings.Audio.AudioSocketPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("server: audiosocket listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var g errgroup.Group
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return s.Shutdown(context.Background())
			default:
			}
			if s.isClosed() {
				break
			}
			s.logger.Warn("server: accept failed", "err", err)
			continue
		}

		g.Go(func() error {
			s.handleConnection(ctx, conn)
			return nil
		})
	}
	return g.Wait()
}

func (s *Server) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// handleConnection drives one call end to end: read the opening UUID
// frame, build a session, pipeline, and state machine, and run them
// until hangup.
func (s *Server) handleConnection(ctx context.Context, nc net.Conn) {
	connID := nc.RemoteAddr().String()
	s.logger.Info("server: new connection", "remote", connID)

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn := newConnection(nc, s.logger, s.metrics)
	defer conn.Close()

	s.trackConnection(connID, cancel)
	defer s.untrackConnection(connID)

	payload, ok := conn.UUIDPayload(uuidFrameTimeout)
	if !ok {
		s.logger.Warn("server: no uuid frame received, dropping connection", "remote", connID)
		return
	}

	callID, extension, err := session.ParseDialedExtension(payload)
	if err != nil {
		s.logger.Warn("server: malformed uuid frame", "remote", connID, "err", err)
		return
	}
	id := callID.String()

	if s.metrics != nil {
		s.metrics.ActiveSessions.Inc()
		s.metrics.SessionsStarted.Inc()
		defer s.metrics.ActiveSessions.Dec()
	}

	sess := session.New(id, s.settings)
	sess.DialedExtension = extension

	sttProvider, llmProvider, ttsProvider := s.newProviders()
	pipe := pipeline.New(conn, sess, s.settings, s.vadPool, sttProvider, llmProvider, ttsProvider, s.logger, s.metrics)
	machine := statemachine.New(conn, sess, pipe, s.settings, s.logger, s.metrics)

	if err := machine.Run(callCtx); err != nil && callCtx.Err() == nil {
		s.logger.Warn("server: call ended with error", "call", id, "err", err)
	}
}

func (s *Server) trackConnection(id string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[id] = cancel
}

func (s *Server) untrackConnection(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, id)
}

// Shutdown cancels every in-flight call and waits up to shutdownWait
// for them to finish, then closes the listener. Idempotent.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() {
		close(s.closed)

		s.mu.Lock()
		cancels := make([]context.CancelFunc, 0, len(s.conns))
		for _, cancel := range s.conns {
			cancels = append(cancels, cancel)
		}
		ln := s.listener
		s.mu.Unlock()

		for _, cancel := range cancels {
			cancel()
		}

		deadline := time.NewTimer(shutdownWait)
		defer deadline.Stop()
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
	waitLoop:
		for {
			select {
			case <-deadline.C:
				s.logger.Warn("server: shutdown timed out waiting for calls to end")
				break waitLoop
			case <-ticker.C:
				s.mu.Lock()
				remaining := len(s.conns)
				s.mu.Unlock()
				if remaining == 0 {
					break waitLoop
				}
			}
		}

		if ln != nil {
			_ = ln.Close()
		}
		s.logger.Info("server: shutdown complete")
	})
	return nil
}
