package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sessiongate/internal/auth"
	"sessiongate/internal/models"
	"sessiongate/internal/sessions"
	"strings"
	"time"

	"go.uber.org/zap"
)

type LoginRequest struct {
	Email    string `json:"email" example:"student@example.com"`
	Password string `json:"password" example:"password123"`
}

type LoginResponse struct {
	AccessToken string                  `json:"access_token"`
	ExpiresAt   time.Time               `json:"expires_at"`
	Session     models.ActiveSession    `json:"session"`
	Plan        models.SubscriptionPlan `json:"plan"`
	// Evicted is the number of older sessions closed to make room for this one.
	Evicted int `json:"evicted"`
}

// @Summary      Logs a user in
// @Description  Verifies credentials and admits a new session, closing the least recently active one if the plan's device limit is reached.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        loginRequest   body      LoginRequest  true  "Login Credentials"
// @Success      200            {object}  LoginResponse
// @Failure      400            {object}  APIError
// @Failure      401            {object}  APIError
// @Failure      403            {object}  APIError "Account not verified"
// @Failure      500            {object}  APIError
// @Router       /auth/login [post]
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body.")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "Email and password are required.")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		s.logger.Error("login user lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal server error.")
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password.")
		return
	}
	if !user.IsVerified {
		writeError(w, http.StatusForbidden, "account_not_verified", "Verify your email address before signing in.")
		return
	}

	admission, err := s.engine.Admit(r.Context(), sessions.AdmitParams{
		UserID:      user.ID,
		MaxSessions: user.Plan.MaxConcurrentSessions,
		DeviceInfo:  r.UserAgent(),
		IPAddress:   clientIP(r),
	})
	if err != nil {
		status := http.StatusInternalServerError
		var storeErr *sessions.StorageError
		if errors.As(err, &storeErr) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, "login_failed", "Could not start a session. Please try again.")
		return
	}

	ttl := s.config.JWT.TTL
	accessToken, err := auth.GenerateJWT(&user.User, admission.Token, s.config.JWT.Secret, ttl)
	if err != nil {
		s.logger.Error("sign credential failed", zap.Int64("user_id", user.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to issue credential.")
		return
	}

	s.setSessionCookie(w, accessToken, ttl)
	writeJSON(w, http.StatusOK, LoginResponse{
		AccessToken: accessToken,
		ExpiresAt:   time.Now().Add(ttl),
		Session:     *admission.Session,
		Plan:        admission.Plan,
		Evicted:     len(admission.Evicted),
	})
}

// @Summary      Logs the current session out
// @Description  Ends the session named by the credential and clears the cookie. Succeeds even if the session is already gone.
// @Tags         auth
// @Success      204  {null}  nil  "No Content"
// @Router       /auth/logout [post]
func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	defer func() {
		s.clearSessionCookie(w)
		w.WriteHeader(http.StatusNoContent)
	}()

	tokenString := s.credentialFromRequest(r)
	if tokenString == "" {
		return
	}
	claims, err := auth.VerifyJWT(tokenString, s.config.JWT.Secret)
	if err != nil {
		return
	}

	err = s.engine.Terminate(r.Context(), sessions.Claim{
		UserID:     claims.UserID,
		Token:      claims.SessionToken,
		DeviceInfo: r.UserAgent(),
		IPAddress:  clientIP(r),
	})
	if err != nil {
		s.logger.Warn("logout failed", zap.Int64("user_id", claims.UserID), zap.Error(err))
	}
}
