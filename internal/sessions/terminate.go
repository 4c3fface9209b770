package sessions

import (
	"context"
	"sessiongate/internal/audit"
	"sessiongate/internal/database"
	"sessiongate/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const adminTerminationDetails = "Sessions closed by administrator"

// Terminate ends the claimed session. Terminating a session that no longer exists is a
// no-op and writes nothing.
func (e *Engine) Terminate(ctx context.Context, c Claim) error {
	if !c.present() {
		return nil
	}

	ctx, span := tracer.Start(ctx, "sessions.Terminate", trace.WithAttributes(
		attribute.Int64("user.id", c.UserID),
	))
	defer span.End()

	var ended *models.ActiveSession
	err := e.store.ExecTx(ctx, func(q database.Querier) error {
		session, err := q.DeleteSessionByToken(ctx, c.UserID, c.Token)
		if err != nil {
			return storageErr("delete session", err)
		}
		ended = session
		if session == nil {
			return nil
		}

		e.record(ctx, q, audit.Entry{
			UserID:     c.UserID,
			Action:     models.ActionLogout,
			DeviceInfo: audit.Truncate(c.DeviceInfo, MaxDeviceInfoLen),
			IPAddress:  audit.Truncate(c.IPAddress, MaxIPAddressLen),
			Details:    "Manual logout",
		})
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return storageErr("terminate", err)
	}

	if ended != nil {
		terminationsTotal.WithLabelValues("logout").Inc()
	}
	return nil
}

// ForceParams describes who forced the logout. Details overrides the default audit text.
type ForceParams struct {
	ActorID int64
	Details string
}

// ForceTerminateAll deletes every session of the user and writes one forced_logout entry
// per deleted session. It returns the number of sessions removed.
func (e *Engine) ForceTerminateAll(ctx context.Context, userID int64, p ForceParams) (int, error) {
	ctx, span := tracer.Start(ctx, "sessions.ForceTerminateAll", trace.WithAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int64("actor.id", p.ActorID),
	))
	defer span.End()

	details := p.Details
	if details == "" {
		details = adminTerminationDetails
	}

	var removed []models.ActiveSession
	err := e.store.ExecUserTx(ctx, userID, func(q database.Querier) error {
		sessions, err := q.DeleteAllSessionsForUser(ctx, userID)
		if err != nil {
			return storageErr("delete sessions", err)
		}
		removed = sessions

		for _, s := range sessions {
			e.record(ctx, q, audit.Entry{
				UserID:     userID,
				Action:     models.ActionForcedLogout,
				DeviceInfo: s.DeviceInfo,
				IPAddress:  s.IPAddress,
				Details:    details,
			})
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return 0, storageErr("force terminate", err)
	}

	terminationsTotal.WithLabelValues("forced").Add(float64(len(removed)))
	e.publish(userID, e.forcedEvents(removed))

	e.logger.Info("sessions force terminated",
		zap.Int64("user_id", userID),
		zap.Int64("actor_id", p.ActorID),
		zap.Int("count", len(removed)),
	)
	return len(removed), nil
}

// RevokeSession ends one of the user's sessions by id, as done from the device list.
// It reports whether a session was removed.
func (e *Engine) RevokeSession(ctx context.Context, userID int64, sessionID uuid.UUID) (bool, error) {
	ctx, span := tracer.Start(ctx, "sessions.RevokeSession", trace.WithAttributes(
		attribute.Int64("user.id", userID),
		attribute.String("session.id", sessionID.String()),
	))
	defer span.End()

	var removed *models.ActiveSession
	err := e.store.ExecTx(ctx, func(q database.Querier) error {
		session, err := q.DeleteSessionForUser(ctx, userID, sessionID)
		if err != nil {
			return storageErr("delete session", err)
		}
		removed = session
		if session == nil {
			return nil
		}

		e.record(ctx, q, audit.Entry{
			UserID:     userID,
			Action:     models.ActionForcedLogout,
			DeviceInfo: session.DeviceInfo,
			IPAddress:  session.IPAddress,
			Details:    "Session revoked by account holder",
		})
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return false, storageErr("revoke session", err)
	}
	if removed == nil {
		return false, nil
	}

	terminationsTotal.WithLabelValues("revoked").Inc()
	e.publish(userID, e.forcedEvents([]models.ActiveSession{*removed}))
	return true, nil
}

func (e *Engine) forcedEvents(sessions []models.ActiveSession) []models.SessionEvent {
	at := e.now()
	events := make([]models.SessionEvent, 0, len(sessions))
	for _, s := range sessions {
		events = append(events, models.SessionEvent{
			Type:       models.ActionForcedLogout,
			SessionID:  s.ID,
			DeviceInfo: s.DeviceInfo,
			IPAddress:  s.IPAddress,
			Reason:     ReasonRevoked,
			At:         at,
		})
	}
	return events
}

// ExpireStale removes sessions idle for longer than the lifetime, in batches, logging
// session_expired for each. It returns how many were removed.
func (e *Engine) ExpireStale(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "sessions.ExpireStale")
	defer span.End()

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		cutoff := e.now().Add(-e.lifetime)
		var batch []models.ActiveSession
		err := e.store.ExecTx(ctx, func(q database.Querier) error {
			removed, err := q.DeleteIdleSessions(ctx, cutoff, e.sweepBatch)
			if err != nil {
				return storageErr("delete idle sessions", err)
			}
			batch = removed

			for _, s := range removed {
				e.record(ctx, q, audit.Entry{
					UserID:     s.UserID,
					Action:     models.ActionSessionExpired,
					DeviceInfo: s.DeviceInfo,
					IPAddress:  s.IPAddress,
					Details:    "Session expired due to inactivity",
				})
			}
			return nil
		})
		if err != nil {
			span.RecordError(err)
			return total, storageErr("expire stale", err)
		}

		total += len(batch)
		terminationsTotal.WithLabelValues("expired").Add(float64(len(batch)))
		for _, s := range batch {
			e.publish(s.UserID, []models.SessionEvent{{
				Type:       models.ActionSessionExpired,
				SessionID:  s.ID,
				DeviceInfo: s.DeviceInfo,
				IPAddress:  s.IPAddress,
				Reason:     ReasonExpired,
				At:         e.now(),
			}})
		}

		if len(batch) < e.sweepBatch {
			break
		}
	}

	span.SetAttributes(attribute.Int("sessions.expired", total))
	return total, nil
}

// ListSessions returns the user's active sessions, most recently active first.
func (e *Engine) ListSessions(ctx context.Context, userID int64) ([]models.ActiveSession, error) {
	var sessions []models.ActiveSession
	err := e.store.ExecTx(ctx, func(q database.Querier) error {
		var err error
		sessions, err = q.ListSessionsForUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, storageErr("list sessions", err)
	}
	return sessions, nil
}

// ListLogs returns the user's most recent audit entries.
func (e *Engine) ListLogs(ctx context.Context, userID int64, limit int) ([]models.SessionLog, error) {
	var logs []models.SessionLog
	err := e.store.ExecTx(ctx, func(q database.Querier) error {
		var err error
		logs, err = e.recorder.ListForUser(ctx, q, userID, limit)
		return err
	})
	if err != nil {
		return nil, storageErr("list logs", err)
	}
	return logs, nil
}
