package database

import (
	"context"
	"errors"
	"sessiongate/internal/models"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const sessionColumns = `id, user_id, session_token, device_info, ip_address, created_at, last_activity`

type InsertSessionParams struct {
	UserID       int64
	SessionToken string
	DeviceInfo   string
	IPAddress    string
	CreatedAt    time.Time
}

func scanSession(row pgx.Row) (*models.ActiveSession, error) {
	var s models.ActiveSession
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.SessionToken,
		&s.DeviceInfo,
		&s.IPAddress,
		&s.CreatedAt,
		&s.LastActivity,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func collectSessions(rows pgx.Rows) ([]models.ActiveSession, error) {
	defer rows.Close()

	var sessions []models.ActiveSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if sessions == nil {
		return []models.ActiveSession{}, nil
	}

	return sessions, nil
}

func (q *Queries) CountActiveSessions(ctx context.Context, userID int64) (int, error) {
	var count int
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM active_sessions WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

func (q *Queries) OldestSession(ctx context.Context, userID int64) (*models.ActiveSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM active_sessions
		WHERE user_id = $1
		ORDER BY last_activity ASC, created_at ASC, id ASC
		LIMIT 1
	`
	s, err := scanSession(q.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func (q *Queries) InsertSession(ctx context.Context, arg InsertSessionParams) (*models.ActiveSession, error) {
	query := `
		INSERT INTO active_sessions (id, user_id, session_token, device_info, ip_address, created_at, last_activity)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING ` + sessionColumns

	s, err := scanSession(q.db.QueryRow(ctx, query,
		uuid.New(),
		arg.UserID,
		arg.SessionToken,
		arg.DeviceInfo,
		arg.IPAddress,
		arg.CreatedAt,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateToken
		}
		return nil, err
	}
	return s, nil
}

func (q *Queries) DeleteSession(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := q.db.Exec(ctx, `DELETE FROM active_sessions WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func (q *Queries) FindSessionByToken(ctx context.Context, userID int64, token string) (*models.ActiveSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM active_sessions
		WHERE user_id = $1 AND session_token = $2
	`
	s, err := scanSession(q.db.QueryRow(ctx, query, userID, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// TouchSession refreshes last_activity and reports whether the session still exists.
func (q *Queries) TouchSession(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := q.db.Exec(ctx, `UPDATE active_sessions SET last_activity = $1 WHERE id = $2`, at, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteSessionByToken removes the caller's session and returns the deleted row, or nil
// when nothing matched.
func (q *Queries) DeleteSessionByToken(ctx context.Context, userID int64, token string) (*models.ActiveSession, error) {
	query := `
		DELETE FROM active_sessions
		WHERE user_id = $1 AND session_token = $2
		RETURNING ` + sessionColumns

	s, err := scanSession(q.db.QueryRow(ctx, query, userID, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func (q *Queries) DeleteSessionForUser(ctx context.Context, userID int64, id uuid.UUID) (*models.ActiveSession, error) {
	query := `
		DELETE FROM active_sessions
		WHERE id = $1 AND user_id = $2
		RETURNING ` + sessionColumns

	s, err := scanSession(q.db.QueryRow(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func (q *Queries) DeleteAllSessionsForUser(ctx context.Context, userID int64) ([]models.ActiveSession, error) {
	query := `
		DELETE FROM active_sessions
		WHERE user_id = $1
		RETURNING ` + sessionColumns

	rows, err := q.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// DeleteIdleSessions removes up to limit sessions whose last activity is before cutoff.
// SKIP LOCKED lets concurrent sweepers and validations make progress on disjoint rows.
func (q *Queries) DeleteIdleSessions(ctx context.Context, cutoff time.Time, limit int) ([]models.ActiveSession, error) {
	query := `
		DELETE FROM active_sessions
		WHERE id IN (
			SELECT id FROM active_sessions
			WHERE last_activity < $1
			ORDER BY last_activity ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + sessionColumns

	rows, err := q.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func (q *Queries) ListSessionsForUser(ctx context.Context, userID int64) ([]models.ActiveSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM active_sessions
		WHERE user_id = $1
		ORDER BY last_activity DESC
	`
	rows, err := q.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}
