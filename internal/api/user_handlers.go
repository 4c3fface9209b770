package api

import (
	"net/http"
	"sessiongate/internal/models"

	"go.uber.org/zap"
)

type CurrentUserResponse struct {
	User                   models.User             `json:"user"`
	Plan                   models.SubscriptionPlan `json:"plan"`
	ActiveSessions         int                     `json:"active_sessions"`
	MaxSessions            int                     `json:"max_sessions"`
	SessionLifetimeSeconds int64                   `json:"session_lifetime_seconds"`
}

// @Summary      Get current user info
// @Description  Returns the authenticated user, their plan, and how many of the plan's device slots are in use.
// @Tags         users
// @Produce      json
// @Success      200  {object}  CurrentUserResponse
// @Failure      401  {object}  APIError
// @Failure      500  {object}  APIError
// @Router       /me [get]
func (s *Server) GetCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	user, err := s.store.GetUserWithPlan(r.Context(), claims.UserID)
	if err != nil {
		s.logger.Error("load current user failed", zap.Int64("user_id", claims.UserID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to retrieve user data.")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user_not_found", "User not found.")
		return
	}

	active, err := s.engine.ListSessions(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to retrieve sessions.")
		return
	}

	writeJSON(w, http.StatusOK, CurrentUserResponse{
		User:                   user.User,
		Plan:                   user.Plan,
		ActiveSessions:         len(active),
		MaxSessions:            user.Plan.MaxConcurrentSessions,
		SessionLifetimeSeconds: int64(s.engine.Lifetime().Seconds()),
	})
}

func (s *Server) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
