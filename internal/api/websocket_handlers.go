package api

import (
	"net/http"
	"sessiongate/internal/sessions"
	"sessiongate/internal/websocket"

	"go.uber.org/zap"
)

// ServeWsHandler subscribes the authenticated caller to notices about their sessions.
func (s *Server) ServeWsHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	session := GetSessionFromContext(r.Context())
	if session == nil {
		writeError(w, http.StatusUnauthorized, sessions.ReasonUnauthenticated, "Authentication required.")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := websocket.NewClient(s.wsHub, conn, claims.UserID, session.ID)
	s.wsHub.Register <- client

	go client.ReadPump()
	go client.WritePump()
}
