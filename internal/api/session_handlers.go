package api

import (
	"net/http"
	"sessiongate/internal/models"
	"sessiongate/internal/sessions"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type SessionView struct {
	models.ActiveSession
	Current bool `json:"current"`
}

// @Summary      List active sessions
// @Description  Lists the devices currently signed in to the account, most recently active first.
// @Tags         sessions
// @Produce      json
// @Success      200  {array}   SessionView
// @Failure      401  {object}  APIError
// @Failure      500  {object}  APIError
// @Router       /sessions [get]
func (s *Server) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	current := GetSessionFromContext(r.Context())

	active, err := s.engine.ListSessions(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to retrieve sessions.")
		return
	}

	views := make([]SessionView, 0, len(active))
	for _, sess := range active {
		views = append(views, SessionView{
			ActiveSession: sess,
			Current:       current != nil && current.ID == sess.ID,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

// @Summary      Terminate a specific session
// @Description  Signs one of the caller's devices out. A user can only terminate their own sessions.
// @Tags         sessions
// @Param        sessionId  path      string  true  "ID of the session to terminate" format(uuid)
// @Success      204        {null}    nil     "No Content"
// @Failure      400        {object}  APIError
// @Failure      404        {object}  APIError
// @Failure      500        {object}  APIError
// @Router       /sessions/{sessionId} [delete]
func (s *Server) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_session_id", "Invalid session ID format.")
		return
	}

	removed, err := s.engine.RevokeSession(r.Context(), claims.UserID, sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to delete session.")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "session_not_found", "Session not found.")
		return
	}

	if current := GetSessionFromContext(r.Context()); current != nil && current.ID == sessionID {
		s.clearSessionCookie(w)
	}
	w.WriteHeader(http.StatusNoContent)
}

// @Summary      Recent session activity
// @Description  Returns the newest entries of the account's session log (logins, logouts, rotations, expirations, forced logouts).
// @Tags         sessions
// @Produce      json
// @Param        limit  query     int  false  "Number of entries (default 20, max 100)"
// @Success      200    {array}   models.SessionLog
// @Failure      400    {object}  APIError
// @Failure      500    {object}  APIError
// @Router       /sessions/logs [get]
func (s *Server) ListSessionLogsHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer.")
			return
		}
		limit = n
	}

	logs, err := s.engine.ListLogs(r.Context(), claims.UserID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to retrieve session logs.")
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

type TerminateAllResponse struct {
	Terminated int `json:"terminated"`
}

// @Summary      Force logout of a user
// @Description  Administrative action that closes every active session of the given user.
// @Tags         admin
// @Produce      json
// @Param        userId  path      int  true  "User ID"
// @Success      200     {object}  TerminateAllResponse
// @Failure      400     {object}  APIError
// @Failure      403     {object}  APIError
// @Failure      500     {object}  APIError
// @Router       /admin/users/{userId}/sessions/terminate [post]
func (s *Server) AdminTerminateSessionsHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil || userID < 1 {
		writeError(w, http.StatusBadRequest, "invalid_user_id", "Invalid user ID.")
		return
	}

	n, err := s.engine.ForceTerminateAll(r.Context(), userID, sessions.ForceParams{ActorID: claims.UserID})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to terminate sessions.")
		return
	}

	s.logger.Info("admin terminated sessions",
		zap.Int64("actor_id", claims.UserID),
		zap.Int64("user_id", userID),
		zap.Int("count", n),
	)
	writeJSON(w, http.StatusOK, TerminateAllResponse{Terminated: n})
}
