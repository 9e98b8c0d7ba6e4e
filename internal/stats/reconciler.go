package stats

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/TangmaeTT/MathEveryday/internal/models"
)

// Reconciliation failure modes. Callers branch on these to decide what
// the player sees: a read failure means prior remote state is unknown
// and nothing was written; a write failure means the computed stats
// are correct but unconfirmed.
var (
	ErrStatsRead  = errors.New("stats: failed to read previous stats")
	ErrStatsWrite = errors.New("stats: failed to write updated stats")
)

// Store is the persisted user-record collaborator.
type Store interface {
	Get(ctx context.Context, userID string) (*models.UserStats, error)
	Write(ctx context.Context, stats models.UserStats) error
}

// Result reports the outcome of reconciling one finished session.
// SessionScore is always set so the player sees what they just earned
// even when persistence failed. Stats is the computed next record;
// Persisted says whether it was confirmed by the store.
type Result struct {
	SessionScore int              `json:"session_score"`
	Stats        models.UserStats `json:"stats"`
	Persisted    bool             `json:"persisted"`
}

// Reconciler folds a finished session's score into the persisted
// per-user record: monotonic all-time-high and calendar-day streak.
// It computes the next record at most once per session, so a timeout
// racing an explicit stop cannot double-apply.
type Reconciler struct {
	store Store
	loc   *time.Location

	mu   sync.Mutex
	done map[string]*Result // session ID -> computed result
}

// NewReconciler creates a reconciler. The location defines the
// player's calendar for day-boundary comparisons; nil means Local.
func NewReconciler(store Store, loc *time.Location) *Reconciler {
	if loc == nil {
		loc = time.Local
	}
	return &Reconciler{
		store: store,
		loc:   loc,
		done:  make(map[string]*Result),
	}
}

// ComputeNext derives the next persisted record from a session score.
// Pure: no clock, no store.
//
// Streak rules compare calendar days in loc, not elapsed hours:
// same day keeps the streak (a second session today never
// double-counts), exactly one day later extends it, anything else
// (including clock skew backwards) resets to 1.
func ComputeNext(userID string, sessionScore int, today time.Time, previous *models.UserStats, loc *time.Location) models.UserStats {
	next := models.UserStats{
		UserID:      userID,
		AllTimeHigh: sessionScore,
		Streak:      1,
	}
	if previous != nil {
		if previous.AllTimeHigh > sessionScore {
			next.AllTimeHigh = previous.AllTimeHigh
		}
		if previous.LastPlayDate != nil {
			lastDay := dayOf(*previous.LastPlayDate, loc)
			todayDay := dayOf(today, loc)
			switch {
			case lastDay.Equal(todayDay):
				next.Streak = previous.Streak
				if next.Streak < 1 {
					next.Streak = 1
				}
			case lastDay.AddDate(0, 0, 1).Equal(todayDay):
				next.Streak = previous.Streak + 1
			}
		}
	}
	playedAt := today
	next.LastPlayDate = &playedAt
	return next
}

// Reconcile applies a finished session exactly once. Repeat calls for
// the same session ID return the original computation; if its write
// failed, the same computed record is retried rather than recomputed.
func (r *Reconciler) Reconcile(ctx context.Context, sessionID, userID string, sessionScore int, now time.Time) (*Result, error) {
	r.mu.Lock()
	if prev, ok := r.done[sessionID]; ok {
		r.mu.Unlock()
		if prev.Persisted {
			return prev, nil
		}
		return r.retryWrite(ctx, sessionID, prev)
	}
	// Reserve the slot before releasing the lock so a racing caller
	// waits on the map entry rather than computing a second record.
	placeholder := &Result{SessionScore: sessionScore}
	r.done[sessionID] = placeholder
	r.mu.Unlock()

	previous, err := r.store.Get(ctx, userID)
	if err != nil {
		// Unknown baseline: do not write anything. Treating this as
		// "never played" would reset a real streak.
		r.mu.Lock()
		delete(r.done, sessionID)
		r.mu.Unlock()
		log.Printf("[STATS] Read failed for user %s session %s: %v", userID, sessionID, err)
		return &Result{SessionScore: sessionScore}, fmt.Errorf("%w: %v", ErrStatsRead, err)
	}

	result := &Result{
		SessionScore: sessionScore,
		Stats:        ComputeNext(userID, sessionScore, now, previous, r.loc),
	}
	r.mu.Lock()
	r.done[sessionID] = result
	r.mu.Unlock()

	if err := r.store.Write(ctx, result.Stats); err != nil {
		log.Printf("[STATS] Write failed for user %s session %s: %v", userID, sessionID, err)
		return result, fmt.Errorf("%w: %v", ErrStatsWrite, err)
	}
	result.Persisted = true

	log.Printf("[STATS] Reconciled session %s for user %s: score=%d high=%d streak=%d",
		sessionID, userID, sessionScore, result.Stats.AllTimeHigh, result.Stats.Streak)
	return result, nil
}

// retryWrite re-submits a previously computed record whose write
// failed. The computation itself is never redone.
func (r *Reconciler) retryWrite(ctx context.Context, sessionID string, result *Result) (*Result, error) {
	if result.Stats.UserID == "" {
		// A concurrent first call is still computing; report its score.
		return result, nil
	}
	if err := r.store.Write(ctx, result.Stats); err != nil {
		return result, fmt.Errorf("%w: %v", ErrStatsWrite, err)
	}
	result.Persisted = true
	return result, nil
}

// Forget drops bookkeeping for a session, once its result can no
// longer be re-requested. Keeps the done map from growing unbounded.
func (r *Reconciler) Forget(sessionID string) {
	r.mu.Lock()
	delete(r.done, sessionID)
	r.mu.Unlock()
}

// dayOf truncates a time to its calendar day in loc.
func dayOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
