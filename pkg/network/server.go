package network

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/echotype/echotype/pkg/logger"
	"github.com/echotype/echotype/pkg/metrics"
	"github.com/echotype/echotype/pkg/protocol"
	"github.com/echotype/echotype/pkg/session"
)

// maxFrameSize bounds one newline-delimited envelope. Generous for dictated
// text while keeping a hostile peer from growing the buffer unbounded.
const maxFrameSize = 256 * 1024

// Config holds transport server configuration
type Config struct {
	Host string
	Port int
}

// Server accepts device connections over TCP and feeds newline-framed
// envelopes into per-connection session state. One failing connection never
// takes down the accept loop.
type Server struct {
	config   Config
	localID  string
	log      *logger.Logger
	baseLog  *logger.Logger
	metrics  *metrics.Collector
	manager  *session.Manager
	events   chan<- session.Event
	listener net.Listener
	// started is closed once the listener is bound and ready
	started chan struct{}

	wg sync.WaitGroup
}

// NewServer creates a new transport server
func NewServer(cfg Config, localID string, manager *session.Manager, events chan<- session.Event, collector *metrics.Collector, log *logger.Logger) *Server {
	return &Server{
		config:  cfg,
		localID: localID,
		log:     log.WithComponent("network.server"),
		baseLog: log,
		metrics: collector,
		manager: manager,
		events:  events,
		started: make(chan struct{}),
	}
}

// Started returns a channel closed once the listener is accepting
func (s *Server) Started() <-chan struct{} {
	return s.started
}

// Addr returns the bound listener address, valid after Started is closed
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds the listener and serves until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	select {
	case <-s.started: // already closed
	default:
		close(s.started)
	}

	s.log.Info("Transport server listening", logger.String("addr", listener.Addr().String()))

	// Close the listener when the context ends so Accept unblocks
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.log.Info("Transport server shutting down")
				s.wg.Wait()
				return ctx.Err()
			default:
			}
			s.log.Warn("accept failed", logger.Error(err))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}
}

// handleConnection owns one physical connection: it creates fresh session
// state, pumps frames into it and tears everything down on exit.
func (s *Server) handleConnection(ctx context.Context, netConn net.Conn) {
	defer netConn.Close()

	writer := newConnWriter(netConn)
	conn := session.NewConnection(s.localID, writer, s.events, s.baseLog, s.metrics)

	s.metrics.ConnectionOpened(conn.ID())
	s.manager.SetCurrent(conn)
	defer func() {
		s.manager.ClearCurrent(conn)
		s.metrics.ConnectionClosed(conn.ID())
	}()

	s.log.Info("Device connected",
		logger.String("remote", netConn.RemoteAddr().String()),
		logger.String("conn", conn.ID()))

	scanner := bufio.NewScanner(netConn)
	scanner.Buffer(make([]byte, 4096), maxFrameSize)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			netConn.SetReadDeadline(time.Now())
		case <-done:
		}
	}()

	for scanner.Scan() {
		frame := scanner.Bytes()
		if len(frame) == 0 {
			continue
		}
		conn.HandleMessage(frame)
	}

	conn.HandleDisconnect(scanner.Err())
}

// connWriter serializes messages onto a net.Conn. Session replies and
// approval replies may race, hence the mutex.
type connWriter struct {
	mu   sync.Mutex
	conn net.Conn
}

func newConnWriter(conn net.Conn) *connWriter {
	return &connWriter{conn: conn}
}

// WriteMessage encodes and writes one newline-terminated envelope
func (w *connWriter) WriteMessage(msg *protocol.Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.conn.Write(data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}
