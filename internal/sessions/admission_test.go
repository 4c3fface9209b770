package sessions

import (
	"context"
	"errors"
	"fmt"
	"sessiongate/internal/models"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestAdmitBelowCeiling(t *testing.T) {
	h := newHarness(t)
	h.store.setPlan(1, 2)

	a := h.admit(t, 1, "device-A", "198.51.100.1")
	h.clock.Advance(time.Minute)
	b := h.admit(t, 1, "device-B", "198.51.100.2")

	require.NotEqual(t, a.Token, b.Token)
	require.Len(t, a.Token, TokenLength)
	require.Empty(t, a.Evicted)
	require.Empty(t, b.Evicted)
	require.Equal(t, baseTime, a.Session.CreatedAt)
	require.Equal(t, a.Session.CreatedAt, a.Session.LastActivity)

	require.Len(t, h.store.sessionsFor(1), 2)
	require.Empty(t, h.store.logsFor(1, models.ActionSessionRotated))

	logins := h.store.logsFor(1, models.ActionLogin)
	require.Len(t, logins, 2)
	require.Equal(t, "device-A", logins[0].DeviceInfo)
	require.Equal(t, "Login successful. Plan: plan", logins[0].Details)
	for _, l := range logins {
		require.NotContains(t, l.Details, a.Token)
		require.NotContains(t, l.Details, b.Token)
	}
}

func TestAdmitEvictsLeastRecentlyActive(t *testing.T) {
	h := newHarness(t)
	h.store.setPlan(1, 3)

	first := h.admit(t, 1, "device-1000", "198.51.100.1")
	h.clock.Set(baseTime.Add(1 * time.Minute))
	second := h.admit(t, 1, "device-1005", "198.51.100.2")
	h.clock.Set(baseTime.Add(2 * time.Minute))
	third := h.admit(t, 1, "device-1002", "198.51.100.3")

	h.clock.Set(baseTime.Add(5 * time.Minute))
	require.True(t, h.validate(t, 1, second.Token).Allowed())

	h.clock.Set(baseTime.Add(6 * time.Minute))
	fourth := h.admit(t, 1, "device-new", "203.0.113.9")

	require.Len(t, fourth.Evicted, 1)
	require.Equal(t, first.Session.ID, fourth.Evicted[0].ID)

	remaining := h.store.sessionsFor(1)
	require.Len(t, remaining, 3)
	for _, s := range remaining {
		require.NotEqual(t, first.Session.ID, s.ID)
	}

	rotated := h.store.logsFor(1, models.ActionSessionRotated)
	require.Len(t, rotated, 1)
	require.Equal(t, "device-1000", rotated[0].DeviceInfo)
	require.Equal(t, "198.51.100.1", rotated[0].IPAddress)
	require.Equal(t, "Session rotated automatically. Limit: 3 sessions. New from IP: 203.0.113.9", rotated[0].Details)

	require.True(t, h.validate(t, 1, third.Token).Allowed())
	require.Equal(t, StatusNotFound, h.validate(t, 1, first.Token).Status)
}

func TestAdmitTieBreaksOnCreatedAt(t *testing.T) {
	h := newHarness(t)
	h.store.setPlan(1, 2)

	older := h.store.seed(models.ActiveSession{
		UserID: 1, SessionToken: "older", DeviceInfo: "older",
		CreatedAt: baseTime.Add(-2 * time.Hour), LastActivity: baseTime,
	})
	h.store.seed(models.ActiveSession{
		UserID: 1, SessionToken: "newer", DeviceInfo: "newer",
		CreatedAt: baseTime.Add(-1 * time.Hour), LastActivity: baseTime,
	})

	a := h.admit(t, 1, "device-C", "198.51.100.3")
	require.Len(t, a.Evicted, 1)
	require.Equal(t, older.ID, a.Evicted[0].ID)
}

func TestAdmitScenarioThreeDevicesPlanOfTwo(t *testing.T) {
	h := newHarness(t)
	h.store.setPlan(1, 2)

	a := h.admit(t, 1, "device-A", "198.51.100.1")
	h.clock.Advance(time.Minute)
	b := h.admit(t, 1, "device-B", "198.51.100.2")
	require.Len(t, h.store.sessionsFor(1), 2)
	require.Empty(t, h.store.logsFor(1, models.ActionSessionRotated))

	h.clock.Advance(time.Minute)
	c := h.admit(t, 1, "device-C", "198.51.100.3")

	require.Len(t, h.store.sessionsFor(1), 2)
	require.Len(t, h.store.logsFor(1, models.ActionSessionRotated), 1)
	require.Len(t, c.Evicted, 1)
	require.Equal(t, a.Session.ID, c.Evicted[0].ID)

	res := h.validate(t, 1, a.Token)
	require.Equal(t, StatusNotFound, res.Status)
	require.Equal(t, ReasonRevoked, res.Reason())
	require.Len(t, h.store.logsFor(1, models.ActionForcedLogout), 1)

	require.True(t, h.validate(t, 1, b.Token).Allowed())
	require.True(t, h.validate(t, 1, c.Token).Allowed())

	events := h.notifier.For(1)
	require.Len(t, events, 1)
	require.Equal(t, models.ActionSessionRotated, events[0].Type)
	require.Equal(t, a.Session.ID, events[0].SessionID)
}

func TestAdmitAfterPlanDowngradeEvictsDownToCeiling(t *testing.T) {
	h := newHarness(t)
	h.store.setPlan(1, 4)
	for i := 0; i < 4; i++ {
		h.admit(t, 1, fmt.Sprintf("device-%d", i), "198.51.100.1")
		h.clock.Advance(time.Minute)
	}

	h.store.setPlan(1, 2)
	a := h.admit(t, 1, "device-new", "198.51.100.9")

	require.Len(t, a.Evicted, 3)
	require.Len(t, h.store.sessionsFor(1), 2)
	require.Len(t, h.store.logsFor(1, models.ActionSessionRotated), 3)
}

func TestAdmitCallerCeilingBelowPlan(t *testing.T) {
	h := newHarness(t)
	h.store.setPlan(1, 3)

	h.admit(t, 1, "device-A", "198.51.100.1")
	h.clock.Advance(time.Minute)

	a, err := h.engine.Admit(context.Background(), AdmitParams{UserID: 1, MaxSessions: 1, DeviceInfo: "device-B"})
	require.NoError(t, err)
	require.Len(t, a.Evicted, 1)
	require.Len(t, h.store.sessionsFor(1), 1)

	// a stale caller ceiling above the stored plan does not raise it
	h.store.setPlan(1, 1)
	a, err = h.engine.Admit(context.Background(), AdmitParams{UserID: 1, MaxSessions: 5, DeviceInfo: "device-C"})
	require.NoError(t, err)
	require.Len(t, a.Evicted, 1)
	require.Len(t, h.store.sessionsFor(1), 1)
}

func TestAdmitInvalidPlan(t *testing.T) {
	h := newHarness(t)
	h.store.setPlan(1, 0)

	_, err := h.engine.Admit(context.Background(), AdmitParams{UserID: 1})

	var admErr *AdmissionError
	require.ErrorAs(t, err, &admErr)
	require.Equal(t, int64(1), admErr.UserID)
	require.ErrorIs(t, err, ErrInvalidPlan)
	require.Empty(t, h.store.sessionsFor(1))
}

func TestAdmitUnknownUser(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.Admit(context.Background(), AdmitParams{UserID: 42})
	require.ErrorIs(t, err, ErrUnknownUser)
}

func TestAdmitStorageFaultAppliesNothing(t *testing.T) {
	for _, op := range []string{"GetPlanForUser", "CountActiveSessions", "OldestSession", "DeleteSession", "InsertSession"} {
		t.Run(op, func(t *testing.T) {
			h := newHarness(t)
			h.store.setPlan(1, 2)
			h.admit(t, 1, "device-A", "198.51.100.1")
			h.admit(t, 1, "device-B", "198.51.100.2")
			before := h.store.sessionsFor(1)

			h.store.failOp = op
			_, err := h.engine.Admit(context.Background(), AdmitParams{UserID: 1, DeviceInfo: "device-C"})

			var admErr *AdmissionError
			require.ErrorAs(t, err, &admErr)
			var storeErr *StorageError
			require.ErrorAs(t, err, &storeErr)
			require.True(t, errors.Is(err, errInjected))

			require.ElementsMatch(t, before, h.store.sessionsFor(1))
			require.Empty(t, h.store.logsFor(1, models.ActionSessionRotated))
			require.Len(t, h.store.logsFor(1, models.ActionLogin), 2)
			require.Empty(t, h.notifier.For(1))
		})
	}
}

func TestAdmitCancelledContext(t *testing.T) {
	h := newHarness(t)
	h.store.setPlan(1, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.engine.Admit(ctx, AdmitParams{UserID: 1})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, h.store.sessionsFor(1))
}

func TestAdmitSucceedsWhenAuditWriteFails(t *testing.T) {
	h := newHarness(t)
	h.store.setPlan(1, 1)
	h.admit(t, 1, "device-A", "198.51.100.1")

	h.store.failLogs = true
	b := h.admit(t, 1, "device-B", "198.51.100.2")

	require.Len(t, b.Evicted, 1)
	sessions := h.store.sessionsFor(1)
	require.Len(t, sessions, 1)
	require.Equal(t, b.Session.ID, sessions[0].ID)
	require.Empty(t, h.store.logsFor(1, models.ActionSessionRotated))
}

func TestAdmitTruncatesClientMetadata(t *testing.T) {
	h := newHarness(t)
	h.store.setPlan(1, 1)

	a := h.admit(t, 1, strings.Repeat("a", MaxDeviceInfoLen+100), strings.Repeat("1", 80))
	require.Len(t, a.Session.DeviceInfo, MaxDeviceInfoLen)
	require.Len(t, a.Session.IPAddress, MaxIPAddressLen)
}

func TestAdmitKeepsMultiByteMetadataValid(t *testing.T) {
	h := newHarness(t)
	h.store.setPlan(1, 1)

	ua := strings.Repeat("a", MaxDeviceInfoLen-1) + "é" + "tail"
	a := h.admit(t, 1, ua, "198.51.100.7\xc3")

	require.True(t, utf8.ValidString(a.Session.DeviceInfo))
	require.Equal(t, strings.Repeat("a", MaxDeviceInfoLen-1), a.Session.DeviceInfo)
	require.Equal(t, "198.51.100.7", a.Session.IPAddress)

	logins := h.store.logsFor(1, models.ActionLogin)
	require.Len(t, logins, 1)
	require.True(t, utf8.ValidString(logins[0].DeviceInfo))
}

func TestAdmitConcurrentSameUserKeepsCap(t *testing.T) {
	h := newHarness(t)
	h.store.setPlan(1, 3)

	const logins = 20
	var wg sync.WaitGroup
	tokens := make(chan string, logins)
	for i := 0; i < logins; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := h.engine.Admit(context.Background(), AdmitParams{UserID: 1, DeviceInfo: fmt.Sprintf("device-%d", i)})
			if err == nil {
				tokens <- a.Token
			}
		}(i)
	}
	wg.Wait()
	close(tokens)

	seen := make(map[string]bool)
	for token := range tokens {
		require.False(t, seen[token])
		seen[token] = true
	}
	require.Len(t, seen, logins)
	require.Len(t, h.store.sessionsFor(1), 3)
	require.Len(t, h.store.logsFor(1, models.ActionSessionRotated), logins-3)
}

func TestAdmitDifferentUsersNeverCrossValidate(t *testing.T) {
	h := newHarness(t)
	h.store.setPlan(1, 2)
	h.store.setPlan(2, 2)

	var wg sync.WaitGroup
	var a1, a2 *Admission
	wg.Add(2)
	go func() {
		defer wg.Done()
		a1, _ = h.engine.Admit(context.Background(), AdmitParams{UserID: 1})
	}()
	go func() {
		defer wg.Done()
		a2, _ = h.engine.Admit(context.Background(), AdmitParams{UserID: 2})
	}()
	wg.Wait()

	require.NotNil(t, a1)
	require.NotNil(t, a2)
	require.NotEqual(t, a1.Token, a2.Token)

	require.Equal(t, StatusNotFound, h.validate(t, 2, a1.Token).Status)
	require.Equal(t, StatusNotFound, h.validate(t, 1, a2.Token).Status)
	require.True(t, h.validate(t, 1, a1.Token).Allowed())
	require.True(t, h.validate(t, 2, a2.Token).Allowed())
}
