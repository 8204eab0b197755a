package xsyncstatus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/tclink/pkg/htng/xmsg"
)

func fixedNow() time.Time {
	return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
}

func newTestTracker(t *testing.T) (*Tracker, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	tr, err := NewTracker(store, WithClock(fixedNow))
	require.NoError(t, err)
	return tr, store
}

func TestHealthScore(t *testing.T) {
	now := fixedNow()
	day := 24 * time.Hour

	tests := []struct {
		name string
		rec  Record
		want int
	}{
		{name: "Fresh", rec: Record{State: StateCompleted}, want: 100},
		{name: "TwoRetries", rec: Record{State: StateCompleted, RetryCount: 2}, want: 96},
		{name: "Failed", rec: Record{State: StateFailed}, want: 70},
		{name: "FailedWithRetries", rec: Record{State: StateFailed, RetryCount: 5}, want: 60},
		{
			name: "StaleSuccessWithinGrace",
			rec:  Record{State: StateCompleted, LastSuccess: timePtr(now.Add(-20 * time.Hour))},
			want: 100,
		},
		{
			name: "StaleSuccessThreeDays",
			rec:  Record{State: StateCompleted, LastSuccess: timePtr(now.Add(-3 * day))},
			want: 90,
		},
		{
			name: "FloorAtZero",
			rec:  Record{State: StateFailed, RetryCount: 20, LastSuccess: timePtr(now.Add(-10 * day))},
			want: 0,
		},
		{
			name: "NeverSucceededNoStalenessPenalty",
			rec:  Record{State: StateFailed, RetryCount: 1},
			want: 68,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.Health(now))
		})
	}
}

func TestTrackerLifecycle(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.RecordStart(ctx, "101", xmsg.TypeInventory, 250))

	r, err := tr.Get(ctx, "101", xmsg.TypeInventory)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, r.State)
	assert.Equal(t, int64(250), r.RecordsTotal)
	assert.NotNil(t, r.LastAttempt)
	assert.Nil(t, r.LastSuccess)

	require.NoError(t, tr.RecordSuccess(ctx, "101", xmsg.TypeInventory, 250))

	r, err = tr.Get(ctx, "101", xmsg.TypeInventory)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, r.State)
	assert.Equal(t, 1.0, r.SuccessRate)
	assert.Equal(t, 0, r.RetryCount)
	assert.Nil(t, r.NextRetryAt)
	assert.Equal(t, 100, r.HealthScore)
}

func TestTrackerFailureSchedulesRetry(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.RecordStart(ctx, "101", xmsg.TypeRates, 50))
	kerr := xmsg.NewError(xmsg.KindConnection, "connect refused")
	require.NoError(t, tr.RecordFailure(ctx, "101", xmsg.TypeRates, kerr, 30*time.Second))

	r, err := tr.Get(ctx, "101", xmsg.TypeRates)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, r.State)
	assert.Equal(t, 1, r.RetryCount)
	require.NotNil(t, r.NextRetryAt)
	assert.Equal(t, fixedNow().Add(30*time.Second), *r.NextRetryAt)
	// 100 − 2·1 − 30
	assert.Equal(t, 68, r.HealthScore)
}

func TestTrackerPermanentFailureKeepsRetryCount(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.RecordStart(ctx, "101", xmsg.TypeReservation, 1))
	kerr := xmsg.NewError(xmsg.KindAuthentication, "credentials rejected")
	require.NoError(t, tr.RecordFailure(ctx, "101", xmsg.TypeReservation, kerr, 0))

	r, err := tr.Get(ctx, "101", xmsg.TypeReservation)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, r.State)
	assert.Zero(t, r.RetryCount, "terminal failure without a scheduled retry")
	assert.Nil(t, r.NextRetryAt)
	// 100 − 30
	assert.Equal(t, 70, r.HealthScore)
}

func TestTrackerRetryBudgetExhaustion(t *testing.T) {
	tr, _ := newTestTracker(t)
	ctx := context.Background()

	kerr := xmsg.NewError(xmsg.KindTimeout, "read timeout")
	for range 3 {
		require.NoError(t, tr.RecordFailure(ctx, "101", xmsg.TypeInventory, kerr, time.Minute))
	}

	r, err := tr.Get(ctx, "101", xmsg.TypeInventory)
	require.NoError(t, err)
	assert.Equal(t, 3, r.RetryCount)
	assert.True(t, r.RetriesExhausted())
	// 预算耗尽后不再排下一次重试
	assert.Nil(t, r.NextRetryAt)

	attention, err := tr.NeedsAttention(ctx, 0)
	require.NoError(t, err)
	require.Len(t, attention, 1)
	assert.Equal(t, "101", attention[0].PropertyID)
}

func TestTrackerQueries(t *testing.T) {
	tr, store := newTestTracker(t)
	ctx := context.Background()

	// 健康聚合
	require.NoError(t, tr.RecordStart(ctx, "A", xmsg.TypeInventory, 10))
	require.NoError(t, tr.RecordSuccess(ctx, "A", xmsg.TypeInventory, 10))

	// 低成功率
	require.NoError(t, tr.RecordStart(ctx, "B", xmsg.TypeRates, 100))
	require.NoError(t, tr.RecordSuccess(ctx, "B", xmsg.TypeRates, 40))

	// 卡死的运行中聚合
	stuck := time.Date(2026, 8, 24, 11, 0, 0, 0, time.UTC)
	require.NoError(t, store.Upsert(ctx, &Record{
		PropertyID:  "C",
		MessageType: xmsg.TypeReservation,
		State:       StateRunning,
		LastAttempt: &stuck,
	}))

	low, err := tr.LowSuccessRate(ctx, 0.5)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "B", low[0].PropertyID)

	long, err := tr.LongRunning(ctx, 0)
	require.NoError(t, err)
	require.Len(t, long, 1)
	assert.Equal(t, "C", long[0].PropertyID)

	attention, err := tr.NeedsAttention(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, attention)
}

func TestMemoryStoreIsolation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec := &Record{PropertyID: "A", MessageType: xmsg.TypeInventory, State: StateIdle}
	require.NoError(t, store.Upsert(ctx, rec))

	got, err := store.Get(ctx, "A", xmsg.TypeInventory)
	require.NoError(t, err)

	// 读出的是副本，外部修改不影响存储
	got.State = StateFailed
	again, err := store.Get(ctx, "A", xmsg.TypeInventory)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, again.State)

	_, err = store.Get(ctx, "Z", xmsg.TypeInventory)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func timePtr(t time.Time) *time.Time { return &t }
