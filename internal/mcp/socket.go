// Package mcp carries connection status reports from the MCP process
// supervisor, and configuration changes from other commands, into the
// tracker queue of a running serve over a local unix socket.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zhubert/plural-core/paths"

	"github.com/zhubert/plural-mcp/internal/model"
	"github.com/zhubert/plural-mcp/internal/tracker"
)

// Socket communication constants
const (
	// SocketReadTimeout is the timeout for reading from the socket
	SocketReadTimeout = 10 * time.Second

	// SocketWriteTimeout is the timeout for writing to the socket.
	// This prevents a supervisor from blocking indefinitely on a stalled host.
	SocketWriteTimeout = 10 * time.Second
)

// MessageType identifies the type of socket message
type MessageType string

const (
	MessageTypeStatus MessageType = "status"
	MessageTypeUpsert MessageType = "upsert"
	MessageTypeRemove MessageType = "remove"
	MessageTypeReset  MessageType = "reset"
	MessageTypeAck    MessageType = "ack"
)

// StatusUpdate reports the connection status of one MCP server.
type StatusUpdate struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Ack is the reply to a status update.
type Ack struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// SocketMessage wraps a status update, a configuration change, or an
// acknowledgement
type SocketMessage struct {
	Type     MessageType      `json:"type"`
	Status   *StatusUpdate    `json:"status,omitempty"`
	Server   *model.MCPServer `json:"server,omitempty"`   // upsert
	ServerID string           `json:"serverId,omitempty"` // remove, reset
	Ack      *Ack             `json:"ack,omitempty"`
}

// Sink receives decoded events. *tracker.Tracker satisfies it.
// Status reports are queued with Enqueue; configuration changes go through
// Do so the ack is only sent once the change is applied.
type Sink interface {
	Enqueue(ev tracker.Event) bool
	Do(ctx context.Context, ev tracker.Event) error
}

// DefaultSocketPath returns the status socket location inside the state directory.
func DefaultSocketPath() string {
	dir, err := paths.StateDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "mcp-status.sock")
}

// SocketServer listens for status updates from the process supervisor
type SocketServer struct {
	socketPath string
	listener   net.Listener
	sink       Sink
	closed     bool                  // Set to true when Close() is called
	closedMu   sync.RWMutex          // Guards closed flag
	wg         sync.WaitGroup        // Tracks the Run() goroutine for clean shutdown
	conns      sync.WaitGroup        // Tracks connection handlers
	active     map[net.Conn]struct{} // Open connections, closed on shutdown
	activeMu   sync.Mutex            // Guards active
	readyCh    chan struct{}         // Closed when the server is ready to accept connections
	log        *slog.Logger
}

// NewSocketServer listens on socketPath and forwards every valid status
// update to sink.
func NewSocketServer(socketPath string, sink Sink, log *slog.Logger) (*SocketServer, error) {
	log = log.With("component", "mcp-socket")

	if err := os.MkdirAll(filepath.Dir(socketPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}
	// Remove existing socket if present
	os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, err
	}

	log.Info("listening", "socketPath", socketPath)

	return &SocketServer{
		socketPath: socketPath,
		listener:   listener,
		sink:       sink,
		active:     make(map[net.Conn]struct{}),
		readyCh:    make(chan struct{}),
		log:        log,
	}, nil
}

// SocketPath returns the path to the socket
func (s *SocketServer) SocketPath() string {
	return s.socketPath
}

// Start launches Run() in a goroutine. It increments the WaitGroup before
// starting the goroutine to avoid a race with Close()/wg.Wait().
func (s *SocketServer) Start() {
	s.wg.Add(1)
	go s.Run()
}

// WaitReady blocks until the server is ready to accept connections.
func (s *SocketServer) WaitReady() {
	<-s.readyCh
}

func (s *SocketServer) isClosed() bool {
	s.closedMu.RLock()
	defer s.closedMu.RUnlock()
	return s.closed
}

// Run starts accepting connections. Must be paired with a wg.Add(1) call
// before the goroutine is launched. Use Start() instead of calling go Run() directly.
func (s *SocketServer) Run() {
	defer s.wg.Done()

	close(s.readyCh)

	for {
		if s.isClosed() {
			s.log.Info("server closed, stopping accept loop")
			return
		}

		conn, err := s.listener.Accept()
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				s.log.Info("listener closed, stopping")
				return
			}
			// Log error but continue accepting connections
			s.log.Warn("accept error (continuing)", "error", err)
			continue
		}

		s.activeMu.Lock()
		s.active[conn] = struct{}{}
		s.activeMu.Unlock()

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handleConnection(conn)

			s.activeMu.Lock()
			delete(s.active, conn)
			s.activeMu.Unlock()
		}()
	}
}

func (s *SocketServer) handleConnection(conn net.Conn) {
	defer conn.Close()
	s.log.Debug("connection accepted")

	reader := bufio.NewReader(conn)

	for {
		if s.isClosed() {
			s.log.Debug("server closed, closing connection handler")
			return
		}

		conn.SetReadDeadline(time.Now().Add(SocketReadTimeout))

		line, err := reader.ReadString('\n')
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				// Timeout is expected; loop to re-check the closed flag
				continue
			}
			if !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.EOF) {
				s.log.Debug("read error", "error", err)
			}
			return
		}

		ack := s.handleLine([]byte(line))
		if err := writeMessage(conn, SocketMessage{Type: MessageTypeAck, Ack: &ack}); err != nil {
			s.log.Warn("failed to write ack", "error", err)
			return
		}
	}
}

func (s *SocketServer) handleLine(line []byte) Ack {
	var msg SocketMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		s.log.Warn("JSON parse error", "error", err)
		return Ack{Error: "malformed message"}
	}
	switch msg.Type {
	case MessageTypeStatus:
		if msg.Status != nil {
			return s.handleStatus(msg.Status)
		}
	case MessageTypeUpsert:
		if msg.Server == nil || msg.Server.ID == "" {
			return Ack{Error: "missing server"}
		}
		return s.apply(tracker.Event{Op: tracker.OpUpsert, ID: msg.Server.ID, Server: msg.Server})
	case MessageTypeRemove, MessageTypeReset:
		if msg.ServerID == "" {
			return Ack{Error: "missing server id"}
		}
		op := tracker.OpRemove
		if msg.Type == MessageTypeReset {
			op = tracker.OpReset
		}
		return s.apply(tracker.Event{Op: op, ID: msg.ServerID})
	}
	s.log.Warn("unknown message type", "type", msg.Type)
	return Ack{Error: fmt.Sprintf("unsupported message type %q", msg.Type)}
}

// apply hands a configuration change to the sink and waits for it.
func (s *SocketServer) apply(ev tracker.Event) Ack {
	ctx, cancel := context.WithTimeout(context.Background(), SocketWriteTimeout)
	defer cancel()
	if err := s.sink.Do(ctx, ev); err != nil {
		s.log.Warn("config change failed", "op", ev.Op, "server", ev.ID, "error", err)
		return Ack{Error: err.Error()}
	}
	s.log.Info("config change applied", "op", ev.Op, "server", ev.ID)
	return Ack{OK: true}
}

func (s *SocketServer) handleStatus(msg *StatusUpdate) Ack {
	if msg.ID == "" {
		return Ack{Error: "missing server id"}
	}
	status, err := model.ParseStatus(msg.Status)
	if err != nil {
		return Ack{Error: err.Error()}
	}
	if !s.sink.Enqueue(tracker.Event{ID: msg.ID, Status: status}) {
		return Ack{Error: tracker.ErrClosed.Error()}
	}
	return Ack{OK: true}
}

func writeMessage(conn net.Conn, msg SocketMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(SocketWriteTimeout))
	_, err = conn.Write(append(data, '\n'))
	return err
}

// Close shuts down the socket server and waits for the Run() goroutine to exit.
func (s *SocketServer) Close() error {
	s.log.Info("closing socket server")

	// Mark as closed BEFORE closing listener to signal Run() goroutine to exit
	s.closedMu.Lock()
	s.closed = true
	s.closedMu.Unlock()

	err := s.listener.Close()
	s.wg.Wait()

	// Unblock handlers waiting on idle clients
	s.activeMu.Lock()
	for conn := range s.active {
		conn.Close()
	}
	s.activeMu.Unlock()
	s.conns.Wait()

	if removeErr := os.Remove(s.socketPath); removeErr != nil && !os.IsNotExist(removeErr) {
		s.log.Warn("failed to remove socket file", "socketPath", s.socketPath, "error", removeErr)
	}

	return err
}

// SocketClient connects to the host's status socket (used by the supervisor)
type SocketClient struct {
	socketPath string
	conn       net.Conn
	reader     *bufio.Reader
}

// NewSocketClient creates a client connected to the status socket
func NewSocketClient(socketPath string) (*SocketClient, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, err
	}

	return &SocketClient{
		socketPath: socketPath,
		conn:       conn,
		reader:     bufio.NewReader(conn),
	}, nil
}

// SendStatus reports a status for server id and waits for the acknowledgement.
func (c *SocketClient) SendStatus(id string, status model.Status) error {
	return c.request(SocketMessage{Type: MessageTypeStatus, Status: &StatusUpdate{ID: id, Status: string(status)}})
}

// SendUpsert asks serve to create or replace a server. The stored status of
// an existing server is kept.
func (c *SocketClient) SendUpsert(server model.MCPServer) error {
	return c.request(SocketMessage{Type: MessageTypeUpsert, Server: &server})
}

// SendRemove asks serve to remove a server.
func (c *SocketClient) SendRemove(id string) error {
	return c.request(SocketMessage{Type: MessageTypeRemove, ServerID: id})
}

// SendReset asks serve to put a re-enabled server back to connecting.
func (c *SocketClient) SendReset(id string) error {
	return c.request(SocketMessage{Type: MessageTypeReset, ServerID: id})
}

func (c *SocketClient) request(msg SocketMessage) error {
	if err := writeMessage(c.conn, msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}

	c.conn.SetReadDeadline(time.Now().Add(SocketReadTimeout))
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read ack: %w", err)
	}
	var reply SocketMessage
	if err := json.Unmarshal([]byte(line), &reply); err != nil {
		return fmt.Errorf("parse ack: %w", err)
	}
	if reply.Ack == nil {
		return fmt.Errorf("unexpected reply type %q", reply.Type)
	}
	if !reply.Ack.OK {
		return fmt.Errorf("%s rejected: %s", msg.Type, reply.Ack.Error)
	}
	return nil
}

// Close closes the client connection
func (c *SocketClient) Close() error {
	return c.conn.Close()
}
