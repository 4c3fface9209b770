package api

import (
	"context"
	"net"
	"net/http"
	"sessiongate/internal/auth"
	"sessiongate/internal/models"
	"sessiongate/internal/sessions"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type contextKey string

const (
	userContextKey    = contextKey("user")
	sessionContextKey = contextKey("session")
)

var rejectionMessages = map[string]string{
	sessions.ReasonUnauthenticated: "Authentication required.",
	sessions.ReasonRevoked:         "Your session was closed because the device limit for your plan was reached or it was ended remotely.",
	sessions.ReasonExpired:         "Your session expired due to inactivity.",
}

// SessionMiddleware admits a request only if its credential names a session that is
// still active. Rejected credentials are cleared; when the session store cannot be
// reached the request fails closed with 503.
func (s *Server) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := s.credentialFromRequest(r)
		if tokenString == "" {
			s.reject(w, sessions.ReasonUnauthenticated, false)
			return
		}

		claims, err := auth.VerifyJWT(tokenString, s.config.JWT.Secret)
		if err != nil {
			s.reject(w, sessions.ReasonUnauthenticated, true)
			return
		}

		res, err := s.engine.Validate(r.Context(), sessions.Claim{
			UserID:     claims.UserID,
			Token:      claims.SessionToken,
			DeviceInfo: r.UserAgent(),
			IPAddress:  clientIP(r),
		})
		if err != nil {
			s.logger.Error("session validation unavailable",
				zap.Int64("user_id", claims.UserID),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.Error(err),
			)
			writeError(w, http.StatusServiceUnavailable, "session_check_unavailable", "Unable to verify your session. Please try again.")
			return
		}
		if !res.Allowed() {
			s.reject(w, res.Reason(), true)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, claims)
		ctx = context.WithValue(ctx, sessionContextKey, res.Session)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) reject(w http.ResponseWriter, reason string, clearCredential bool) {
	if clearCredential {
		s.clearSessionCookie(w)
	}
	writeError(w, http.StatusUnauthorized, reason, rejectionMessages[reason])
}

func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetUserFromContext(r.Context())
		if claims == nil || claims.Role != models.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden", "Administrator role required.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetUserFromContext(ctx context.Context) *auth.AppClaims {
	if claims, ok := ctx.Value(userContextKey).(*auth.AppClaims); ok {
		return claims
	}
	return nil
}

func GetSessionFromContext(ctx context.Context) *models.ActiveSession {
	if session, ok := ctx.Value(sessionContextKey).(*models.ActiveSession); ok {
		return session
	}
	return nil
}

// credentialFromRequest reads the signed credential from the session cookie or a Bearer
// Authorization header. Websocket handshakes may also pass it as ?token=.
func (s *Server) credentialFromRequest(r *http.Request) string {
	if c, err := r.Cookie(s.config.Session.CookieName); err == nil && c.Value != "" {
		return c.Value
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if authHeader != "" {
		headerParts := strings.SplitN(authHeader, " ", 2)
		if len(headerParts) == 2 && strings.EqualFold(headerParts[0], "Bearer") {
			return strings.TrimSpace(headerParts[1])
		}
		return ""
	}

	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("token")
	}
	return ""
}

func (s *Server) setSessionCookie(w http.ResponseWriter, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.Session.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.config.Session.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.Session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.Session.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// clientIP expects middleware.RealIP to have normalized RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if log != nil {
				log.Info("http_request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}
		})
	}
}
