// Package websocket holds the server-side representative of one live
// client connection and its read/write pumps.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/KhaoticNeutral/Garden-Chat-FullStack/internal/broker"
	"github.com/KhaoticNeutral/Garden-Chat-FullStack/internal/models"
	"github.com/KhaoticNeutral/Garden-Chat-FullStack/internal/services"
	"github.com/KhaoticNeutral/Garden-Chat-FullStack/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// Session lifecycle states.
const (
	StateConnecting int32 = iota
	StateOpen
	StateClosing
	StateClosed
)

var (
	ErrSessionNotOpen = errors.New("session is not open")
	ErrSendBufferFull = errors.New("session send buffer is full")
)

// Session pairs one WebSocket connection with the router and the chat
// service. Outbound delivery goes through a buffered channel drained by
// the write pump, so Send never blocks a publisher.
type Session struct {
	conn    *websocket.Conn
	send    chan []byte
	state   atomic.Int32
	router  *broker.Router
	service *services.ChatService

	mu       sync.Mutex
	username string
	online   bool

	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
}

var _ services.ClientSession = (*Session)(nil)

func NewSession(conn *websocket.Conn, router *broker.Router, service *services.ChatService) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		router:  router,
		service: service,
		ctx:     ctx,
		cancel:  cancel,
	}
	s.state.Store(StateConnecting)
	return s
}

// Start marks the handshake complete and runs both pumps.
func (s *Session) Start() {
	s.state.Store(StateOpen)
	go s.writePump()
	go s.readPump()
}

// Send queues payload for delivery. It fails without blocking when the
// session is not OPEN or the outbound buffer is full; the router logs
// and skips such subscribers.
func (s *Session) Send(payload []byte) error {
	if s.state.Load() != StateOpen {
		return ErrSessionNotOpen
	}
	select {
	case s.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// SetPresence records which user this session announced online, so
// teardown can release presence state exactly once. An explicit offline
// event clears the flag before any disconnect runs.
func (s *Session) SetPresence(username string, online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
	s.online = online
}

// Close tears the session down from the server side.
func (s *Session) Close() {
	s.teardown()
	s.conn.Close()
}

// teardown runs exactly once, whichever path reaches CLOSED first. The
// ordering matters: subscriptions are released synchronously before the
// session reports CLOSED, so the router never retains a stale target,
// and presence is dropped only if this session still held it.
func (s *Session) teardown() {
	s.closeOnce.Do(func() {
		s.state.Store(StateClosing)

		s.router.UnsubscribeAll(s)

		s.mu.Lock()
		username, online := s.username, s.online
		s.online = false
		s.mu.Unlock()
		if online {
			s.service.Disconnect(context.Background(), username)
		}

		s.state.Store(StateClosed)
		// Wakes the write pump, which drains buffered sends and emits
		// the close frame.
		s.cancel()
	})
}

func (s *Session) readPump() {
	defer func() {
		s.teardown()
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket error: %v", err)
			}
			return
		}
		s.handleFrame(raw)
	}
}

func (s *Session) handleFrame(raw []byte) {
	frame := &models.ClientFrame{}
	if err := json.Unmarshal(raw, frame); err != nil {
		logger.Error("Invalid client frame: %v", err)
		s.sendError("malformed frame")
		return
	}

	switch frame.Action {
	case models.ActionSubscribe:
		if frame.Topic == "" {
			s.sendError("subscribe requires a topic")
			return
		}
		s.router.Subscribe(s, frame.Topic)

	case models.ActionUnsubscribe:
		if frame.Topic == "" {
			s.sendError("unsubscribe requires a topic")
			return
		}
		s.router.Unsubscribe(s, frame.Topic)

	case models.ActionSend:
		if err := s.service.Dispatch(s.ctx, s, frame.Destination, frame.Body); err != nil {
			logger.Error("Dispatch to %q failed: %v", frame.Destination, err)
			var vErr *services.ValidationError
			var pErr *services.PersistenceError
			switch {
			case errors.As(err, &vErr):
				s.sendError(vErr.Reason)
			case errors.As(err, &pErr):
				s.sendError("message could not be stored")
			}
		}

	default:
		s.sendError("unknown action " + frame.Action)
	}
}

// sendError pushes a targeted error reply to this session only.
func (s *Session) sendError(reason string) {
	body, _ := json.Marshal(reason)
	frame, err := json.Marshal(models.ServerFrame{Topic: "error", Body: body})
	if err != nil {
		return
	}
	if err := s.Send(frame); err != nil {
		logger.Debug("Could not deliver error reply: %v", err)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case <-s.ctx.Done():
			s.drainAndClose()
			return

		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !s.writeBatch(msg) {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// writeBatch writes msg plus anything else already queued in one frame.
func (s *Session) writeBatch(msg []byte) bool {
	w, err := s.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return false
	}
	w.Write(msg)

	n := len(s.send)
	for i := 0; i < n; i++ {
		w.Write([]byte{'\n'})
		w.Write(<-s.send)
	}

	return w.Close() == nil
}

// drainAndClose flushes sends buffered before teardown, then emits the
// close frame. Write deadlines bound how long a dead peer can hold this
// up.
func (s *Session) drainAndClose() {
	for {
		select {
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !s.writeBatch(msg) {
				return
			}
		default:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
