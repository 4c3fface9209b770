package sessions

import (
	"context"
	"fmt"
	"sessiongate/internal/audit"
	"sessiongate/internal/database"
	"sessiongate/internal/models"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type AdmitParams struct {
	UserID int64
	// MaxSessions is the ceiling the caller read with the user's credentials. When positive
	// and lower than the stored plan limit it wins; otherwise the stored limit applies.
	MaxSessions int
	DeviceInfo  string
	IPAddress   string
}

type Admission struct {
	Token   string
	Session *models.ActiveSession
	Plan    models.SubscriptionPlan
	Evicted []models.ActiveSession
}

// Admit creates a session for the user, evicting least-recently-active sessions until the
// new one fits under the plan ceiling. Admissions for the same user are serialized.
func (e *Engine) Admit(ctx context.Context, p AdmitParams) (*Admission, error) {
	ctx, span := tracer.Start(ctx, "sessions.Admit", trace.WithAttributes(
		attribute.Int64("user.id", p.UserID),
	))
	defer span.End()

	device := audit.Truncate(p.DeviceInfo, MaxDeviceInfoLen)
	ip := audit.Truncate(p.IPAddress, MaxIPAddressLen)

	var admission *Admission
	err := e.store.ExecUserTx(ctx, p.UserID, func(q database.Querier) error {
		admission = nil

		plan, err := q.GetPlanForUser(ctx, p.UserID)
		if err != nil {
			return storageErr("get plan", err)
		}
		if plan == nil {
			return ErrUnknownUser
		}

		ceiling := plan.MaxConcurrentSessions
		if p.MaxSessions > 0 && p.MaxSessions < ceiling {
			ceiling = p.MaxSessions
		}
		if ceiling < 1 {
			return ErrInvalidPlan
		}

		count, err := q.CountActiveSessions(ctx, p.UserID)
		if err != nil {
			return storageErr("count sessions", err)
		}

		var evicted []models.ActiveSession
		for count >= ceiling {
			oldest, err := q.OldestSession(ctx, p.UserID)
			if err != nil {
				return storageErr("select oldest session", err)
			}
			if oldest == nil {
				break
			}

			deleted, err := q.DeleteSession(ctx, oldest.ID)
			if err != nil {
				return storageErr("evict session", err)
			}
			if !deleted {
				// removed concurrently by an expiry; re-read the count
				if count, err = q.CountActiveSessions(ctx, p.UserID); err != nil {
					return storageErr("count sessions", err)
				}
				continue
			}

			e.record(ctx, q, audit.Entry{
				UserID:     p.UserID,
				Action:     models.ActionSessionRotated,
				DeviceInfo: oldest.DeviceInfo,
				IPAddress:  oldest.IPAddress,
				Details:    fmt.Sprintf("Session rotated automatically. Limit: %d sessions. New from IP: %s", ceiling, ip),
			})
			evicted = append(evicted, *oldest)
			count--
		}

		session, err := q.InsertSession(ctx, database.InsertSessionParams{
			UserID:       p.UserID,
			SessionToken: e.newToken(),
			DeviceInfo:   device,
			IPAddress:    ip,
			CreatedAt:    e.now(),
		})
		if err != nil {
			return storageErr("insert session", err)
		}

		e.record(ctx, q, audit.Entry{
			UserID:     p.UserID,
			Action:     models.ActionLogin,
			DeviceInfo: device,
			IPAddress:  ip,
			Details:    fmt.Sprintf("Login successful. Plan: %s", plan.Name),
		})

		admission = &Admission{
			Token:   session.SessionToken,
			Session: session,
			Plan:    *plan,
			Evicted: evicted,
		}
		return nil
	})
	if err != nil {
		admissionsTotal.WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "admission failed")
		e.logger.Error("admission failed", zap.Int64("user_id", p.UserID), zap.Error(err))
		return nil, &AdmissionError{UserID: p.UserID, Err: storageErrUnlessDomain("admit", err)}
	}

	admissionsTotal.WithLabelValues("admitted").Inc()
	rotationsTotal.Add(float64(len(admission.Evicted)))
	span.SetAttributes(attribute.Int("sessions.evicted", len(admission.Evicted)))

	events := make([]models.SessionEvent, 0, len(admission.Evicted))
	for _, s := range admission.Evicted {
		events = append(events, models.SessionEvent{
			Type:       models.ActionSessionRotated,
			SessionID:  s.ID,
			DeviceInfo: s.DeviceInfo,
			IPAddress:  s.IPAddress,
			Reason:     ReasonRevoked,
			At:         admission.Session.CreatedAt,
		})
	}
	e.publish(p.UserID, events)

	e.logger.Info("session admitted",
		zap.Int64("user_id", p.UserID),
		zap.String("session_id", admission.Session.ID.String()),
		zap.Int("evicted", len(admission.Evicted)),
	)
	return admission, nil
}
