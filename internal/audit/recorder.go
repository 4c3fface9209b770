// Package audit writes the session lifecycle trail. Writes are best-effort: a failed
// append is logged and counted but never fails the operation that produced it.
package audit

import (
	"context"
	"fmt"
	"sessiongate/internal/models"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	maxDetailsLen    = 1000
	maxDeviceInfoLen = 500
	maxIPAddressLen  = 45
)

// Truncate drops invalid UTF-8 from s and shortens it to at most n bytes without
// splitting a character. Postgres refuses text columns holding invalid UTF-8.
func Truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

var writeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sessiongate_audit_write_failures_total",
	Help: "Session log entries that could not be persisted.",
}, []string{"action"})

// Appender persists one entry. *database.Queries satisfies it, so entries can be written
// inside the caller's transaction.
type Appender interface {
	AppendLog(ctx context.Context, entry models.SessionLog) error
}

type Lister interface {
	ListLogsForUser(ctx context.Context, userID int64, limit int) ([]models.SessionLog, error)
}

type Entry struct {
	UserID     int64
	Action     models.Action
	DeviceInfo string
	IPAddress  string
	Details    string
}

// WriteError reports an entry that was dropped.
type WriteError struct {
	Action models.Action
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("audit: write %s entry: %v", e.Action, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

type Recorder struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewRecorder(logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{logger: logger, now: time.Now}
}

// Append writes e through q. The returned error is informational; callers are expected to
// carry on regardless.
func (r *Recorder) Append(ctx context.Context, q Appender, e Entry) error {
	err := q.AppendLog(ctx, models.SessionLog{
		UserID:     e.UserID,
		Action:     e.Action,
		DeviceInfo: Truncate(e.DeviceInfo, maxDeviceInfoLen),
		IPAddress:  Truncate(e.IPAddress, maxIPAddressLen),
		Details:    Truncate(e.Details, maxDetailsLen),
		Timestamp:  r.now(),
	})
	if err == nil {
		return nil
	}

	writeFailures.WithLabelValues(string(e.Action)).Inc()
	r.logger.Warn("session log write failed",
		zap.Int64("user_id", e.UserID),
		zap.String("action", string(e.Action)),
		zap.Error(err),
	)
	return &WriteError{Action: e.Action, Err: err}
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ListForUser returns the newest entries first. limit is clamped to [1, MaxListLimit];
// zero or negative selects DefaultListLimit.
func (r *Recorder) ListForUser(ctx context.Context, q Lister, userID int64, limit int) ([]models.SessionLog, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	return q.ListLogsForUser(ctx, userID, limit)
}
