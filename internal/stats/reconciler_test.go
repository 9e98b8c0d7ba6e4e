package stats

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/TangmaeTT/MathEveryday/internal/models"
)

// fakeStore is an in-memory Store with switchable failure modes.
type fakeStore struct {
	mu        sync.Mutex
	records   map[string]models.UserStats
	failRead  bool
	failWrite bool
	writes    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]models.UserStats)}
}

func (f *fakeStore) Get(ctx context.Context, userID string) (*models.UserStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRead {
		return nil, errors.New("store unavailable")
	}
	if rec, ok := f.records[userID]; ok {
		cp := rec
		return &cp, nil
	}
	// New users exist with zero stats and no last play date.
	return &models.UserStats{UserID: userID}, nil
}

func (f *fakeStore) Write(ctx context.Context, stats models.UserStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite {
		return errors.New("store unavailable")
	}
	f.writes++
	f.records[stats.UserID] = stats
	return nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 15, 4, 5, 0, time.UTC)
}

func prevStats(high, streak int, last time.Time) *models.UserStats {
	return &models.UserStats{UserID: "u1", AllTimeHigh: high, Streak: streak, LastPlayDate: &last}
}

func TestComputeNextFirstEverPlay(t *testing.T) {
	today := day(2026, 3, 10)
	next := ComputeNext("u1", 4, today, nil, time.UTC)
	if next.AllTimeHigh != 4 || next.Streak != 1 {
		t.Errorf("got high=%d streak=%d, want 4/1", next.AllTimeHigh, next.Streak)
	}
	if next.LastPlayDate == nil || !next.LastPlayDate.Equal(today) {
		t.Errorf("last play date not set to today")
	}
}

func TestComputeNextSameDayKeepsStreak(t *testing.T) {
	today := day(2026, 3, 10)
	earlier := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	next := ComputeNext("u1", 2, today, prevStats(5, 3, earlier), time.UTC)
	if next.AllTimeHigh != 5 {
		t.Errorf("high = %d, want 5 (session score 2 must not lower it)", next.AllTimeHigh)
	}
	if next.Streak != 3 {
		t.Errorf("streak = %d, want 3 (same day must not double-increment)", next.Streak)
	}
}

func TestComputeNextConsecutiveDayExtendsStreak(t *testing.T) {
	next := ComputeNext("u1", 9, day(2026, 3, 10), prevStats(5, 3, day(2026, 3, 9)), time.UTC)
	if next.AllTimeHigh != 9 {
		t.Errorf("high = %d, want 9", next.AllTimeHigh)
	}
	if next.Streak != 4 {
		t.Errorf("streak = %d, want 4", next.Streak)
	}
}

func TestComputeNextGapResetsStreak(t *testing.T) {
	next := ComputeNext("u1", 1, day(2026, 3, 10), prevStats(5, 3, day(2026, 3, 5)), time.UTC)
	if next.AllTimeHigh != 5 || next.Streak != 1 {
		t.Errorf("got high=%d streak=%d, want 5/1", next.AllTimeHigh, next.Streak)
	}
}

func TestComputeNextClockSkewResetsStreak(t *testing.T) {
	// Last play recorded in the future relative to "today".
	next := ComputeNext("u1", 3, day(2026, 3, 10), prevStats(5, 3, day(2026, 3, 12)), time.UTC)
	if next.Streak != 1 {
		t.Errorf("streak = %d, want 1 on backwards clock", next.Streak)
	}
}

func TestComputeNextCalendarDayNotElapsedHours(t *testing.T) {
	// 23:30 yesterday -> 00:30 today is under two hours but crosses a
	// day boundary, so the streak extends.
	last := time.Date(2026, 3, 9, 23, 30, 0, 0, time.UTC)
	today := time.Date(2026, 3, 10, 0, 30, 0, 0, time.UTC)
	next := ComputeNext("u1", 0, today, prevStats(5, 2, last), time.UTC)
	if next.Streak != 3 {
		t.Errorf("streak = %d, want 3 across midnight", next.Streak)
	}
}

func TestReconcileWritesOncePerSession(t *testing.T) {
	store := newFakeStore()
	r := NewReconciler(store, time.UTC)
	now := day(2026, 3, 10)

	first, err := r.Reconcile(context.Background(), "s1", "u1", 7, now)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !first.Persisted || first.Stats.AllTimeHigh != 7 || first.Stats.Streak != 1 {
		t.Fatalf("unexpected first result: %+v", first)
	}

	// Timeout racing an explicit stop replays the same session.
	second, err := r.Reconcile(context.Background(), "s1", "u1", 7, now)
	if err != nil {
		t.Fatalf("repeat reconcile: %v", err)
	}
	if second.Stats != first.Stats {
		t.Errorf("repeat call recomputed stats: %+v vs %+v", second.Stats, first.Stats)
	}
	if store.writes != 1 {
		t.Errorf("store written %d times, want exactly 1", store.writes)
	}
}

func TestReconcileReadFailureWithholdsWrite(t *testing.T) {
	store := newFakeStore()
	store.failRead = true
	r := NewReconciler(store, time.UTC)

	res, err := r.Reconcile(context.Background(), "s1", "u1", 6, day(2026, 3, 10))
	if !errors.Is(err, ErrStatsRead) {
		t.Fatalf("err = %v, want ErrStatsRead", err)
	}
	if res.SessionScore != 6 {
		t.Errorf("session score %d not surfaced on read failure", res.SessionScore)
	}
	if store.writes != 0 {
		t.Errorf("store written %d times after read failure, want 0", store.writes)
	}
}

func TestReconcileWriteFailureRetriesSameComputation(t *testing.T) {
	store := newFakeStore()
	store.records["u1"] = models.UserStats{UserID: "u1", AllTimeHigh: 5, Streak: 3}
	store.failWrite = true
	r := NewReconciler(store, time.UTC)
	now := day(2026, 3, 10)

	res, err := r.Reconcile(context.Background(), "s1", "u1", 8, now)
	if !errors.Is(err, ErrStatsWrite) {
		t.Fatalf("err = %v, want ErrStatsWrite", err)
	}
	if res.Persisted {
		t.Error("result marked persisted after failed write")
	}
	if res.Stats.AllTimeHigh != 8 {
		t.Errorf("computed high = %d, want 8", res.Stats.AllTimeHigh)
	}

	// Store recovers; retry must submit the original computation.
	store.failWrite = false
	retry, err := r.Reconcile(context.Background(), "s1", "u1", 8, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("retry reconcile: %v", err)
	}
	if !retry.Persisted {
		t.Error("retry did not persist")
	}
	if retry.Stats != res.Stats {
		t.Errorf("retry changed the computation: %+v vs %+v", retry.Stats, res.Stats)
	}
	if store.writes != 1 {
		t.Errorf("store written %d times, want 1", store.writes)
	}
}

func TestReconcileConcurrentCallsSingleWrite(t *testing.T) {
	store := newFakeStore()
	r := NewReconciler(store, time.UTC)
	now := day(2026, 3, 10)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Reconcile(context.Background(), "s1", "u1", 5, now)
		}()
	}
	wg.Wait()

	if store.writes > 1 {
		t.Errorf("store written %d times under racing reconciles, want at most 1", store.writes)
	}
}
