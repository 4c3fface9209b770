package sessions

import (
	"bytes"
	"context"
	"errors"
	"sessiongate/internal/database"
	"sessiongate/internal/models"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var errInjected = errors.New("injected storage fault")

// memStore is an in-memory TxRunner. Units of work run one at a time against a copy of
// the state that is swapped in only when fn succeeds.
type memStore struct {
	mu       sync.Mutex
	plans    map[int64]*models.SubscriptionPlan
	sessions []models.ActiveSession
	logs     []models.SessionLog
	nextLog  int64

	failOp   string
	failLogs bool

	// beforeTouch runs inside TouchSession ahead of the update, standing in for a
	// transaction that commits between the read and the write.
	beforeTouch func(tx *memTx, id uuid.UUID)
}

var _ database.TxRunner = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{plans: make(map[int64]*models.SubscriptionPlan)}
}

func (m *memStore) setPlan(userID int64, max int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[userID] = &models.SubscriptionPlan{ID: int64(max), Name: "plan", MaxConcurrentSessions: max}
}

func (m *memStore) seed(s models.ActiveSession) models.ActiveSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	m.sessions = append(m.sessions, s)
	return s
}

func (m *memStore) sessionsFor(userID int64) []models.ActiveSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ActiveSession
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out
}

func (m *memStore) logsFor(userID int64, action models.Action) []models.SessionLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SessionLog
	for _, l := range m.logs {
		if l.UserID == userID && l.Action == action {
			out = append(out, l)
		}
	}
	return out
}

func (m *memStore) ExecTx(ctx context.Context, fn func(database.Querier) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{
		store:    m,
		sessions: append([]models.ActiveSession(nil), m.sessions...),
		logs:     append([]models.SessionLog(nil), m.logs...),
		nextLog:  m.nextLog,
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.sessions, m.logs, m.nextLog = tx.sessions, tx.logs, tx.nextLog
	return nil
}

func (m *memStore) ExecUserTx(ctx context.Context, _ int64, fn func(database.Querier) error) error {
	return m.ExecTx(ctx, fn)
}

type memTx struct {
	store    *memStore
	sessions []models.ActiveSession
	logs     []models.SessionLog
	nextLog  int64
}

var _ database.Querier = (*memTx)(nil)

func (t *memTx) fail(op string) error {
	if t.store.failOp == op {
		return errInjected
	}
	return nil
}

func (t *memTx) GetPlanForUser(_ context.Context, userID int64) (*models.SubscriptionPlan, error) {
	if err := t.fail("GetPlanForUser"); err != nil {
		return nil, err
	}
	plan, ok := t.store.plans[userID]
	if !ok {
		return nil, nil
	}
	p := *plan
	return &p, nil
}

func (t *memTx) CountActiveSessions(_ context.Context, userID int64) (int, error) {
	if err := t.fail("CountActiveSessions"); err != nil {
		return 0, err
	}
	n := 0
	for _, s := range t.sessions {
		if s.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (t *memTx) OldestSession(_ context.Context, userID int64) (*models.ActiveSession, error) {
	if err := t.fail("OldestSession"); err != nil {
		return nil, err
	}
	var owned []models.ActiveSession
	for _, s := range t.sessions {
		if s.UserID == userID {
			owned = append(owned, s)
		}
	}
	if len(owned) == 0 {
		return nil, nil
	}
	sort.Slice(owned, func(i, j int) bool {
		a, b := owned[i], owned[j]
		if !a.LastActivity.Equal(b.LastActivity) {
			return a.LastActivity.Before(b.LastActivity)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
	s := owned[0]
	return &s, nil
}

func (t *memTx) InsertSession(_ context.Context, arg database.InsertSessionParams) (*models.ActiveSession, error) {
	if err := t.fail("InsertSession"); err != nil {
		return nil, err
	}
	for _, s := range t.sessions {
		if s.SessionToken == arg.SessionToken {
			return nil, database.ErrDuplicateToken
		}
	}
	s := models.ActiveSession{
		ID:           uuid.New(),
		UserID:       arg.UserID,
		SessionToken: arg.SessionToken,
		DeviceInfo:   arg.DeviceInfo,
		IPAddress:    arg.IPAddress,
		CreatedAt:    arg.CreatedAt,
		LastActivity: arg.CreatedAt,
	}
	t.sessions = append(t.sessions, s)
	return &s, nil
}

func (t *memTx) remove(match func(models.ActiveSession) bool) []models.ActiveSession {
	var kept, removed []models.ActiveSession
	for _, s := range t.sessions {
		if match(s) {
			removed = append(removed, s)
		} else {
			kept = append(kept, s)
		}
	}
	t.sessions = kept
	return removed
}

func (t *memTx) DeleteSession(_ context.Context, id uuid.UUID) (bool, error) {
	if err := t.fail("DeleteSession"); err != nil {
		return false, err
	}
	removed := t.remove(func(s models.ActiveSession) bool { return s.ID == id })
	return len(removed) > 0, nil
}

func (t *memTx) FindSessionByToken(_ context.Context, userID int64, token string) (*models.ActiveSession, error) {
	if err := t.fail("FindSessionByToken"); err != nil {
		return nil, err
	}
	for _, s := range t.sessions {
		if s.UserID == userID && s.SessionToken == token {
			found := s
			return &found, nil
		}
	}
	return nil, nil
}

func (t *memTx) TouchSession(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	if err := t.fail("TouchSession"); err != nil {
		return false, err
	}
	if t.store.beforeTouch != nil {
		t.store.beforeTouch(t, id)
	}
	for i := range t.sessions {
		if t.sessions[i].ID == id {
			t.sessions[i].LastActivity = at
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) DeleteSessionByToken(_ context.Context, userID int64, token string) (*models.ActiveSession, error) {
	if err := t.fail("DeleteSessionByToken"); err != nil {
		return nil, err
	}
	removed := t.remove(func(s models.ActiveSession) bool { return s.UserID == userID && s.SessionToken == token })
	if len(removed) == 0 {
		return nil, nil
	}
	return &removed[0], nil
}

func (t *memTx) DeleteSessionForUser(_ context.Context, userID int64, id uuid.UUID) (*models.ActiveSession, error) {
	if err := t.fail("DeleteSessionForUser"); err != nil {
		return nil, err
	}
	removed := t.remove(func(s models.ActiveSession) bool { return s.UserID == userID && s.ID == id })
	if len(removed) == 0 {
		return nil, nil
	}
	return &removed[0], nil
}

func (t *memTx) DeleteAllSessionsForUser(_ context.Context, userID int64) ([]models.ActiveSession, error) {
	if err := t.fail("DeleteAllSessionsForUser"); err != nil {
		return nil, err
	}
	removed := t.remove(func(s models.ActiveSession) bool { return s.UserID == userID })
	if removed == nil {
		return []models.ActiveSession{}, nil
	}
	return removed, nil
}

func (t *memTx) DeleteIdleSessions(_ context.Context, cutoff time.Time, limit int) ([]models.ActiveSession, error) {
	if err := t.fail("DeleteIdleSessions"); err != nil {
		return nil, err
	}
	taken := 0
	removed := t.remove(func(s models.ActiveSession) bool {
		if taken < limit && s.LastActivity.Before(cutoff) {
			taken++
			return true
		}
		return false
	})
	if removed == nil {
		return []models.ActiveSession{}, nil
	}
	return removed, nil
}

func (t *memTx) ListSessionsForUser(_ context.Context, userID int64) ([]models.ActiveSession, error) {
	if err := t.fail("ListSessionsForUser"); err != nil {
		return nil, err
	}
	out := []models.ActiveSession{}
	for _, s := range t.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	return out, nil
}

func (t *memTx) AppendLog(_ context.Context, entry models.SessionLog) error {
	if t.store.failLogs {
		return errors.New("session_logs insert failed")
	}
	if !entry.Action.Valid() {
		return errors.New("invalid action")
	}
	t.nextLog++
	entry.ID = t.nextLog
	t.logs = append(t.logs, entry)
	return nil
}

func (t *memTx) ListLogsForUser(_ context.Context, userID int64, limit int) ([]models.SessionLog, error) {
	if err := t.fail("ListLogsForUser"); err != nil {
		return nil, err
	}
	out := []models.SessionLog{}
	for i := len(t.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if t.logs[i].UserID == userID {
			out = append(out, t.logs[i])
		}
	}
	return out, nil
}
