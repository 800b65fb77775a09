// Package mirror republishes session events to read-only websocket clients
// such as an overlay or a second screen.
package mirror

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pacenotes/internal/domain"
)

const (
	defaultMaxClients = 8
	sendBuffer        = 64
)

var ErrTooManyClients = errors.New("too many mirror clients")

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// Broadcaster fans session events out to every connected client. It never
// blocks the caller: a client whose buffer is full is disconnected.
type Broadcaster struct {
	logger     *zap.Logger
	maxClients int

	mu      sync.RWMutex
	clients map[*client]struct{}
	latest  *domain.Status
}

func NewBroadcaster(maxClients int, logger *zap.Logger) *Broadcaster {
	if maxClients <= 0 {
		maxClients = defaultMaxClients
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		logger:     logger,
		maxClients: maxClients,
		clients:    make(map[*client]struct{}),
	}
}

// AddClient registers conn and queues the latest status snapshot for it.
func (b *Broadcaster) AddClient(conn *websocket.Conn) (*client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.clients) >= b.maxClients {
		return nil, ErrTooManyClients
	}
	c := newClient(conn)
	b.clients[c] = struct{}{}

	// Queued under the write lock: no broadcast or close can run ahead of it.
	if b.latest != nil {
		if data, err := json.Marshal(Message{Type: MsgStatus, Payload: *b.latest}); err == nil {
			c.send <- data
		}
	}
	return c, nil
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close disconnects every client.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		delete(b.clients, c)
		close(c.send)
	}
}

func (b *Broadcaster) StatusChanged(status domain.Status) {
	b.mu.Lock()
	b.latest = &status
	b.mu.Unlock()
	b.broadcast(Message{Type: MsgStatus, Payload: status})
}

func (b *Broadcaster) CommandReceived(line string) {
	b.broadcast(Message{Type: MsgCommand, Payload: CommandPayload{Line: line}})
}

func (b *Broadcaster) RecordingStartRequested(recording domain.Recording) {
	b.broadcast(Message{Type: MsgStartRecording, Payload: RecordingPayload{RecordingID: recording.ID, ClipIndex: recording.ClipIndex}})
}

func (b *Broadcaster) RecordingStopRequested(recording domain.Recording) {
	b.broadcast(Message{Type: MsgStopRecording, Payload: RecordingPayload{RecordingID: recording.ID, ClipIndex: recording.ClipIndex}})
}

func (b *Broadcaster) ClipSaved(result domain.ClipResult) {
	b.broadcast(Message{Type: MsgClipSaved, Payload: result})
}

func (b *Broadcaster) SessionError(code domain.ErrorCode, detail string) {
	b.broadcast(Message{Type: MsgError, Payload: ErrorPayload{Code: code, Detail: detail}})
}

func (b *Broadcaster) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Warn("mirror marshal failed", zap.String("type", string(msg.Type)), zap.Error(err))
		return
	}

	var slow []*client
	b.mu.RLock()
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range slow {
		b.logger.Warn("mirror client too slow, disconnecting")
		b.RemoveClient(c)
	}
}
