package sessions

import (
	"context"
	"sessiongate/internal/audit"
	"sessiongate/internal/database"
	"sessiongate/internal/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Reason codes surfaced to clients that must re-authenticate.
const (
	ReasonUnauthenticated = "unauthenticated"
	ReasonRevoked         = "session_revoked"
	ReasonExpired         = "session_expired"
)

// Status is the outcome of validating one presented session. The zero value rejects.
type Status int

const (
	StatusAbsent Status = iota
	StatusNotFound
	StatusExpired
	StatusActive
)

func (s Status) String() string {
	switch s {
	case StatusAbsent:
		return "absent"
	case StatusNotFound:
		return "not_found"
	case StatusExpired:
		return "expired"
	case StatusActive:
		return "active"
	}
	return "unknown"
}

func (s Status) Reason() string {
	switch s {
	case StatusActive:
		return ""
	case StatusNotFound:
		return ReasonRevoked
	case StatusExpired:
		return ReasonExpired
	}
	return ReasonUnauthenticated
}

// Claim is what a request presents: the user id and session token from its signed
// credential plus client metadata for the audit trail.
type Claim struct {
	UserID     int64
	Token      string
	DeviceInfo string
	IPAddress  string
}

func (c Claim) present() bool {
	return c.UserID > 0 && c.Token != ""
}

type Result struct {
	Status Status
	// Session is the matched row for Active and Expired results.
	Session *models.ActiveSession
}

func (r Result) Allowed() bool {
	return r.Status == StatusActive
}

func (r Result) Reason() string {
	return r.Status.Reason()
}

func (r Result) Err() error {
	if r.Allowed() {
		return nil
	}
	return &ValidationRejected{Status: r.Status}
}

// Validate decides whether the claimed session is still authoritative. Rejections are
// reported through Result; the error is non-nil only when the store could not be
// consulted, in which case the result rejects.
func (e *Engine) Validate(ctx context.Context, c Claim) (Result, error) {
	if !c.present() {
		validationsTotal.WithLabelValues(StatusAbsent.String()).Inc()
		return Result{Status: StatusAbsent}, nil
	}

	ctx, span := tracer.Start(ctx, "sessions.Validate", trace.WithAttributes(
		attribute.Int64("user.id", c.UserID),
	))
	defer span.End()

	device := audit.Truncate(c.DeviceInfo, MaxDeviceInfoLen)
	ip := audit.Truncate(c.IPAddress, MaxIPAddressLen)

	var res Result
	var expired bool
	err := e.store.ExecTx(ctx, func(q database.Querier) error {
		res, expired = Result{}, false

		notFound := func() {
			e.record(ctx, q, audit.Entry{
				UserID:     c.UserID,
				Action:     models.ActionForcedLogout,
				DeviceInfo: device,
				IPAddress:  ip,
				Details:    "Session closed: no longer active for this account",
			})
			res = Result{Status: StatusNotFound}
		}

		session, err := q.FindSessionByToken(ctx, c.UserID, c.Token)
		if err != nil {
			return storageErr("find session", err)
		}
		if session == nil {
			notFound()
			return nil
		}

		now := e.now()
		if now.Sub(session.LastActivity) > e.lifetime {
			deleted, err := q.DeleteSession(ctx, session.ID)
			if err != nil {
				return storageErr("delete expired session", err)
			}
			if deleted {
				e.record(ctx, q, audit.Entry{
					UserID:     c.UserID,
					Action:     models.ActionSessionExpired,
					DeviceInfo: device,
					IPAddress:  ip,
					Details:    "Session expired due to inactivity",
				})
				expired = true
			}
			res = Result{Status: StatusExpired, Session: session}
			return nil
		}

		touched, err := q.TouchSession(ctx, session.ID, now)
		if err != nil {
			return storageErr("refresh session", err)
		}
		if !touched {
			// evicted or revoked after the read
			notFound()
			return nil
		}
		session.LastActivity = now
		res = Result{Status: StatusActive, Session: session}
		return nil
	})
	if err != nil {
		validationsTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		e.logger.Error("session validation failed", zap.Int64("user_id", c.UserID), zap.Error(err))
		return Result{Status: StatusAbsent}, storageErr("validate", err)
	}

	validationsTotal.WithLabelValues(res.Status.String()).Inc()
	span.SetAttributes(attribute.String("session.status", res.Status.String()))

	if expired {
		terminationsTotal.WithLabelValues("expired").Inc()
		e.publish(c.UserID, []models.SessionEvent{{
			Type:       models.ActionSessionExpired,
			SessionID:  res.Session.ID,
			DeviceInfo: res.Session.DeviceInfo,
			IPAddress:  res.Session.IPAddress,
			Reason:     ReasonExpired,
			At:         e.now(),
		}})
	}
	return res, nil
}
