package wsbridge

import (
	"log/slog"
	"net/http"
	"slices"
	"sync"

	gw "github.com/gorilla/websocket"

	"github.com/joao-fontenele/tableorder/internal/payment"
)

type entry struct {
	session *Session
	adapter *payment.Adapter
}

// Registry tracks connected pages by guest session id. Each page gets one Adapter so that
// concurrent payments for the same page are serialized.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]entry
	upgrader gw.Upgrader
	logger   *slog.Logger
}

type Option func(*Registry)

// WithAllowedOrigins restricts which page origins may connect. With no origins every origin
// is accepted.
func WithAllowedOrigins(origins []string) Option {
	return func(r *Registry) {
		if len(origins) == 0 {
			return
		}
		r.upgrader.CheckOrigin = func(req *http.Request) bool {
			return slices.Contains(origins, req.Header.Get("Origin"))
		}
	}
}

func NewRegistry(logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]entry),
		upgrader: gw.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Gateway returns the gateway for a guest session. Unknown sessions get an unavailable gateway.
func (r *Registry) Gateway(session string) payment.Gateway {
	r.mu.RLock()
	e, ok := r.sessions[session]
	r.mu.RUnlock()
	if !ok {
		return payment.NewAdapter(nil, r.logger)
	}
	return e.adapter
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ServeWS upgrades GET /bridge/{session}. A reconnect with the same id replaces the old page.
func (r *Registry) ServeWS(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("session")
	if id == "" {
		http.Error(w, "missing session id", http.StatusBadRequest)
		return
	}

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("failed to upgrade bridge connection", "error", err, "session", id)
		return
	}

	s := newSession(id, conn, r.logger)
	e := entry{session: s, adapter: payment.NewAdapter(s, r.logger.With("session", id))}

	r.mu.Lock()
	old, existed := r.sessions[id]
	r.sessions[id] = e
	r.mu.Unlock()

	if existed {
		old.session.shutdown()
	}

	r.logger.Info("payment page connected", "session", id)

	go s.writePump()
	go s.readPump(func() { r.remove(id, s) })
}

func (r *Registry) remove(id string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[id]; ok && e.session == s {
		delete(r.sessions, id)
		r.logger.Info("payment page disconnected", "session", id)
	}
}
