package database

import (
	"context"
	"errors"
	"sessiongate/internal/models"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrDuplicateToken = errors.New("session token already in use")
	ErrEmailTaken     = errors.New("email already registered")
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx. Begin on a pgx.Tx opens a savepoint.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
	Begin(context.Context) (pgx.Tx, error)
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Querier is the set of statements the session engine runs inside a unit of work.
// Lookups that match nothing return a nil pointer and a nil error.
type Querier interface {
	GetPlanForUser(ctx context.Context, userID int64) (*models.SubscriptionPlan, error)

	CountActiveSessions(ctx context.Context, userID int64) (int, error)
	OldestSession(ctx context.Context, userID int64) (*models.ActiveSession, error)
	InsertSession(ctx context.Context, arg InsertSessionParams) (*models.ActiveSession, error)
	DeleteSession(ctx context.Context, id uuid.UUID) (bool, error)
	FindSessionByToken(ctx context.Context, userID int64, token string) (*models.ActiveSession, error)
	TouchSession(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	DeleteSessionByToken(ctx context.Context, userID int64, token string) (*models.ActiveSession, error)
	DeleteSessionForUser(ctx context.Context, userID int64, id uuid.UUID) (*models.ActiveSession, error)
	DeleteAllSessionsForUser(ctx context.Context, userID int64) ([]models.ActiveSession, error)
	DeleteIdleSessions(ctx context.Context, cutoff time.Time, limit int) ([]models.ActiveSession, error)
	ListSessionsForUser(ctx context.Context, userID int64) ([]models.ActiveSession, error)

	AppendLog(ctx context.Context, entry models.SessionLog) error
	ListLogsForUser(ctx context.Context, userID int64, limit int) ([]models.SessionLog, error)
}

var _ Querier = (*Queries)(nil)

func (q *Queries) lockUser(ctx context.Context, userID int64) error {
	_, err := q.db.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, userID)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
