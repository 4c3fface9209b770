package database

import (
	"context"
	"fmt"
	"sessiongate/internal/models"
	"time"
)

// AppendLog inserts one audit entry inside a savepoint so a failed insert leaves the
// enclosing transaction usable. When q runs on the pool the savepoint is a plain transaction.
func (q *Queries) AppendLog(ctx context.Context, entry models.SessionLog) error {
	if !entry.Action.Valid() {
		return fmt.Errorf("unknown session log action %q", entry.Action)
	}

	sp, err := q.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin savepoint: %w", err)
	}
	defer sp.Rollback(ctx)

	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	query := `
		INSERT INTO session_logs (user_id, action, device_info, ip_address, details, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := sp.Exec(ctx, query,
		entry.UserID,
		string(entry.Action),
		entry.DeviceInfo,
		entry.IPAddress,
		entry.Details,
		ts,
	); err != nil {
		return err
	}

	return sp.Commit(ctx)
}

func (q *Queries) ListLogsForUser(ctx context.Context, userID int64, limit int) ([]models.SessionLog, error) {
	query := `
		SELECT id, user_id, action, device_info, ip_address, details, timestamp
		FROM session_logs
		WHERE user_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2
	`
	rows, err := q.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.SessionLog
	for rows.Next() {
		var l models.SessionLog
		var action string
		err := rows.Scan(
			&l.ID,
			&l.UserID,
			&action,
			&l.DeviceInfo,
			&l.IPAddress,
			&l.Details,
			&l.Timestamp,
		)
		if err != nil {
			return nil, err
		}
		l.Action = models.Action(action)
		logs = append(logs, l)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if logs == nil {
		return []models.SessionLog{}, nil
	}

	return logs, nil
}
