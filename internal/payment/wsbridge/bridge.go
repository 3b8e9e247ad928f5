// Package wsbridge connects a guest's browser page, which hosts the provider widget, to the
// service over a websocket. The page reports when the widget script is loaded and relays the
// widget's callbacks; the service sends pay and hide commands.
package wsbridge

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	gw "github.com/gorilla/websocket"

	"github.com/joao-fontenele/tableorder/internal/payment"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// command is sent to the page.
type command struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
}

// event is received from the page.
type event struct {
	Type   string               `json:"type"`
	Result payment.BridgeResult `json:"result"`
}

// Session is one connected page. It implements payment.Bridge.
type Session struct {
	id     string
	conn   *gw.Conn
	send   chan []byte
	logger *slog.Logger

	mu      sync.Mutex
	ready   bool
	closed  bool
	pending *payment.Callbacks
}

func newSession(id string, conn *gw.Conn, logger *slog.Logger) *Session {
	return &Session{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, 16),
		logger: logger.With("session", id),
	}
}

func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready && !s.closed
}

func (s *Session) Pay(token string, cb payment.Callbacks) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if cb.OnError != nil {
			cb.OnError(payment.BridgeResult{StatusCode: "503", StatusMessage: "payment page disconnected"})
		}
		return
	}
	s.pending = &cb
	s.mu.Unlock()

	s.enqueue(command{Type: "pay", Token: token})
}

func (s *Session) Hide() {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()

	s.enqueue(command{Type: "hide"})
}

func (s *Session) enqueue(c command) {
	msg, err := json.Marshal(c)
	if err != nil {
		s.logger.Error("failed to encode bridge command", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.send <- msg:
	default:
		s.logger.Error("bridge send buffer full, dropping command", "type", c.Type)
	}
}

// takePending returns the callbacks of the in-flight Pay and clears them so each Pay gets
// exactly one terminal callback.
func (s *Session) takePending() *payment.Callbacks {
	s.mu.Lock()
	defer s.mu.Unlock()
	cb := s.pending
	s.pending = nil
	return cb
}

func (s *Session) handle(ev event) {
	if ev.Type == "ready" {
		s.mu.Lock()
		s.ready = true
		s.mu.Unlock()
		s.logger.Info("payment widget ready")
		return
	}

	cb := s.takePending()
	if cb == nil {
		s.logger.Info("ignoring widget event without pending payment", "type", ev.Type)
		return
	}

	switch ev.Type {
	case "success":
		cb.OnSuccess(ev.Result)
	case "pending":
		cb.OnPending(ev.Result)
	case "error":
		cb.OnError(ev.Result)
	case "close":
		cb.OnClose()
	default:
		s.logger.Error("unknown widget event", "type", ev.Type)
		cb.OnError(payment.BridgeResult{StatusMessage: "unknown widget event " + ev.Type})
	}
}

func (s *Session) shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cb := s.pending
	s.pending = nil
	close(s.send)
	s.mu.Unlock()

	if cb != nil {
		cb.OnError(payment.BridgeResult{StatusCode: "503", StatusMessage: "payment page disconnected"})
	}
}

func (s *Session) readPump(onDone func()) {
	defer func() {
		s.shutdown()
		onDone()
		_ = s.conn.Close()
	}()

	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var ev event
		if err := json.Unmarshal(data, &ev); err != nil {
			s.logger.Error("invalid widget event", "error", err)
			continue
		}
		s.handle(ev)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(gw.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(gw.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(gw.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
