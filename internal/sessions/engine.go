// Package sessions implements admission, validation and termination of per-device
// sessions under a subscription plan's concurrency ceiling.
package sessions

import (
	"context"
	"errors"
	"sessiongate/internal/audit"
	"sessiongate/internal/database"
	"sessiongate/internal/models"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

const (
	DefaultLifetime       = 24 * time.Hour
	DefaultSweepBatchSize = 500

	MaxDeviceInfoLen = 500
	MaxIPAddressLen  = 45
)

var tracer = otel.Tracer("sessiongate/internal/sessions")

// Notifier receives lifecycle events after the transaction that produced them commits.
type Notifier interface {
	Notify(userID int64, ev models.SessionEvent)
}

type Options struct {
	// Lifetime is the inactivity timeout. Zero selects DefaultLifetime.
	Lifetime       time.Duration
	SweepBatchSize int
	Recorder       *audit.Recorder
	Notifier       Notifier
	Logger         *zap.Logger
}

type Engine struct {
	store      database.TxRunner
	recorder   *audit.Recorder
	notifier   Notifier
	logger     *zap.Logger
	lifetime   time.Duration
	sweepBatch int
	newToken   func() string
	now        func() time.Time
}

func NewEngine(store database.TxRunner, opts Options) (*Engine, error) {
	if store == nil {
		return nil, errors.New("sessions: store is required")
	}
	if opts.Lifetime < 0 {
		return nil, errors.New("sessions: lifetime must not be negative")
	}

	gen, err := NewTokenGenerator()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		store:      store,
		recorder:   opts.Recorder,
		notifier:   opts.Notifier,
		logger:     opts.Logger,
		lifetime:   opts.Lifetime,
		sweepBatch: opts.SweepBatchSize,
		newToken:   gen,
		now:        time.Now,
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.recorder == nil {
		e.recorder = audit.NewRecorder(e.logger)
	}
	if e.lifetime == 0 {
		e.lifetime = DefaultLifetime
	}
	if e.sweepBatch <= 0 {
		e.sweepBatch = DefaultSweepBatchSize
	}
	return e, nil
}

func (e *Engine) Lifetime() time.Duration {
	return e.lifetime
}

// record appends an audit entry and ignores the outcome; failures are reported by the
// recorder itself.
func (e *Engine) record(ctx context.Context, q database.Querier, entry audit.Entry) {
	_ = e.recorder.Append(ctx, q, entry)
}

func (e *Engine) publish(userID int64, events []models.SessionEvent) {
	if e.notifier == nil {
		return
	}
	for _, ev := range events {
		e.notifier.Notify(userID, ev)
	}
}
