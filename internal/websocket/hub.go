package websocket

import (
	"encoding/json"
	"net/http"
	"sessiongate/internal/models"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// NewUpgrader accepts any origin when allowedOrigins is empty; otherwise only the listed
// origins (or "*") may connect.
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return len(allowed) == 0 || origin == "" || allowed["*"] || allowed[origin]
		},
	}
}

// Hub fans session lifecycle events out to every open connection of a user.
type Hub struct {
	clients    map[int64]map[*Client]bool
	mu         sync.RWMutex
	Register   chan *Client
	Unregister chan *Client
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		logger:     logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)
		case client := <-h.Unregister:
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.UserID]; !ok {
		h.clients[client.UserID] = make(map[*Client]bool)
	}
	h.clients[client.UserID][client] = true
	h.logger.Debug("websocket client registered", zap.Int64("user_id", client.UserID))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if userClients, ok := h.clients[client.UserID]; ok {
		if _, ok := userClients[client]; ok {
			delete(userClients, client)
			close(client.send)
			if len(userClients) == 0 {
				delete(h.clients, client.UserID)
			}
			h.logger.Debug("websocket client unregistered", zap.Int64("user_id", client.UserID))
		}
	}
}

func (h *Hub) ClientCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) PublishEvent(userID int64, eventData []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if userClients, ok := h.clients[userID]; ok {
		for client := range userClients {
			select {
			case client.send <- eventData:
			default:
				h.logger.Warn("websocket send buffer full, dropping message", zap.Int64("user_id", userID))
			}
		}
	}
}

// Notify delivers ev to the user's connections. Only the session id and client metadata
// are sent, never the token. Every event marks the end of ev.SessionID, so connections
// opened by that session are closed once the event is queued to them.
func (h *Hub) Notify(userID int64, ev models.SessionEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal session event", zap.Error(err))
		return
	}
	h.PublishEvent(userID, data)
	h.Disconnect(userID, ev.SessionID)
}

// Disconnect closes the user's connections that were opened by sessionID. Messages
// already queued are still written before the close frame.
func (h *Hub) Disconnect(userID int64, sessionID uuid.UUID) {
	if sessionID == uuid.Nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	userClients, ok := h.clients[userID]
	if !ok {
		return
	}
	for client := range userClients {
		if client.SessionID != sessionID {
			continue
		}
		delete(userClients, client)
		close(client.send)
		h.logger.Debug("websocket client disconnected",
			zap.Int64("user_id", userID),
			zap.String("session_id", sessionID.String()),
		)
	}
	if len(userClients) == 0 {
		delete(h.clients, userID)
	}
}
