package game

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	mrand "math/rand"
	"sync"
	"time"

	"github.com/TangmaeTT/MathEveryday/internal/question"
	"github.com/TangmaeTT/MathEveryday/internal/stats"
)

var (
	ErrSessionNotFound = errors.New("game: session not found")
	ErrPlayerInSession = errors.New("game: player already has a running session")
)

// TickObserver receives a state snapshot after every countdown tick
// and once more when the session finishes.
type TickObserver func(Snapshot)

// Manager owns all live sessions. One running session per user; each
// session gets its own ticker goroutine driving the countdown, and
// finished sessions are swept after a retention window.
type Manager struct {
	mu        sync.RWMutex
	sessions  map[string]*Session      // session ID -> session
	byUser    map[string]string        // user ID -> running session ID
	observers map[string]TickObserver  // session ID -> tick observer
	results   map[string]*stats.Result // session ID -> reconciled result
	resultErr map[string]error

	duration   int
	retention  time.Duration
	reconciler *stats.Reconciler
}

// NewManager creates a session manager. durationSeconds is the
// countdown per session; retention is how long finished sessions stay
// queryable before sweeping.
func NewManager(durationSeconds int, retention time.Duration, rec *stats.Reconciler) *Manager {
	if durationSeconds <= 0 {
		durationSeconds = DefaultDurationSeconds
	}
	if retention <= 0 {
		retention = 10 * time.Minute
	}
	return &Manager{
		sessions:   make(map[string]*Session),
		byUser:     make(map[string]string),
		observers:  make(map[string]TickObserver),
		results:    make(map[string]*stats.Result),
		resultErr:  make(map[string]error),
		duration:   durationSeconds,
		retention:  retention,
		reconciler: rec,
	}
}

// generateSessionID generates a unique session ID
func generateSessionID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "session_" + hex.EncodeToString(bytes)
}

// Start creates and starts a fresh session for the user. Every start
// is a new session with a new ID so reconciliation never confuses two
// attempts. observer may be nil.
//
// The session transitions to Running while the manager lock is still
// held: the one-session-per-user guard reads live status, so a racing
// Start must never observe the new session as Idle.
func (m *Manager) Start(userID string, op question.Operator, observer TickObserver) (*Session, error) {
	m.mu.Lock()
	if sid, ok := m.byUser[userID]; ok {
		if s, live := m.sessions[sid]; live && s.Status() == StatusRunning {
			m.mu.Unlock()
			return nil, ErrPlayerInSession
		}
	}

	id := generateSessionID()
	gen := question.NewGenerator(mrand.New(mrand.NewSource(time.Now().UnixNano())))
	s := NewSession(id, userID, m.duration, gen, m.onSessionFinished)
	if err := s.Start(op); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.sessions[id] = s
	m.byUser[userID] = id
	if observer != nil {
		m.observers[id] = observer
	}
	m.mu.Unlock()

	go m.runCountdown(s)
	return s, nil
}

// runCountdown drives one tick per second until the session leaves
// Running. The countdown lives as long as the session, never as long
// as the request that started it.
func (m *Manager) runCountdown(s *Session) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ended := s.Tick()
		m.notify(s)
		if ended || s.Status() != StatusRunning {
			return
		}
	}
}

// notify pushes a snapshot to the session's observer, if any.
func (m *Manager) notify(s *Session) {
	m.mu.RLock()
	observer := m.observers[s.ID]
	m.mu.RUnlock()
	if observer != nil {
		observer(s.Snapshot())
	}
}

// onSessionFinished is the finish sink wired into every session. It
// runs the stats reconciliation and records the outcome for the
// result endpoint.
func (m *Manager) onSessionFinished(sessionID, userID string, score int, finishedAt time.Time) {
	var (
		res *stats.Result
		err error
	)
	if m.reconciler != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		res, err = m.reconciler.Reconcile(ctx, sessionID, userID, score, finishedAt)
		if err != nil {
			log.Printf("[GAME] Reconciliation failed for session %s: %v", sessionID, err)
		}
	} else {
		res = &stats.Result{SessionScore: score}
	}

	m.mu.Lock()
	m.results[sessionID] = res
	m.resultErr[sessionID] = err
	delete(m.byUser, userID)
	m.mu.Unlock()
}

// Get returns a session by ID.
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// GetForUser returns the user's current running session.
func (m *Manager) GetForUser(userID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sid, ok := m.byUser[userID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	s, ok := m.sessions[sid]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Submit forwards an answer to a session.
func (m *Manager) Submit(sessionID, raw string) (Snapshot, error) {
	s, err := m.Get(sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	if err := s.SubmitAnswer(raw); err != nil {
		return Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// Stop aborts a session; the partial score still reconciles.
func (m *Manager) Stop(sessionID string) error {
	s, err := m.Get(sessionID)
	if err != nil {
		return err
	}
	s.Stop()
	return nil
}

// Result returns the reconciled outcome of a finished session. The
// bool reports whether reconciliation has completed; err carries the
// persistence failure, if any, alongside the locally held result.
func (m *Manager) Result(sessionID string) (*stats.Result, error, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res, ok := m.results[sessionID]
	if !ok {
		return nil, nil, false
	}
	return res, m.resultErr[sessionID], true
}

// ActiveCount returns the number of running sessions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.sessions {
		if s.Status() == StatusRunning {
			n++
		}
	}
	return n
}

// StartSweeper periodically drops finished sessions past the
// retention window, with their results and reconciler bookkeeping.
func (m *Manager) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Println("[GAME] Session sweeper stopping")
				return
			case <-ticker.C:
				if n := m.sweep(); n > 0 {
					log.Printf("[GAME] Swept %d finished sessions", n)
				}
			}
		}
	}()
}

func (m *Manager) sweep() int {
	cutoff := time.Now().Add(-m.retention)
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		finishedAt, done := s.FinishedAt()
		if !done || finishedAt.After(cutoff) {
			continue
		}
		delete(m.sessions, id)
		delete(m.observers, id)
		delete(m.results, id)
		delete(m.resultErr, id)
		if m.reconciler != nil {
			m.reconciler.Forget(id)
		}
		removed++
	}
	return removed
}
