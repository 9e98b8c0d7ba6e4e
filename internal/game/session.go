package game

import (
	"errors"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/TangmaeTT/MathEveryday/internal/question"
)

// SessionStatus represents the current state of a play session
type SessionStatus string

const (
	StatusIdle     SessionStatus = "IDLE"
	StatusRunning  SessionStatus = "RUNNING"
	StatusFinished SessionStatus = "FINISHED"
)

// DefaultDurationSeconds is the countdown length of one session.
const DefaultDurationSeconds = 60

var (
	ErrAlreadyRunning = errors.New("game: session already running")
	ErrNotRunning     = errors.New("game: session is not running")
)

// FinishSink receives the final score of a session exactly once.
type FinishSink func(sessionID, userID string, score int, finishedAt time.Time)

// Session is one timed play attempt for a single user. All mutation
// goes through the mutex; the tick driver and the answer path never
// interleave partial updates.
type Session struct {
	ID     string
	UserID string

	mu               sync.RWMutex
	status           SessionStatus
	operator         question.Operator
	secondsRemaining int
	score            int
	current          question.Question
	duration         int
	gen              *question.Generator
	onFinish         FinishSink
	finished         bool // finish side effects already emitted
	createdAt        time.Time
	finishedAt       time.Time
}

// Snapshot is the session state visible to clients.
type Snapshot struct {
	SessionID        string        `json:"session_id"`
	Status           SessionStatus `json:"status"`
	SecondsRemaining int           `json:"seconds_remaining"`
	Score            int           `json:"score"`
	Prompt           string        `json:"prompt,omitempty"`
}

// NewSession creates an idle session. The generator supplies
// questions; onFinish receives the terminal score exactly once.
func NewSession(id, userID string, durationSeconds int, gen *question.Generator, onFinish FinishSink) *Session {
	if durationSeconds <= 0 {
		durationSeconds = DefaultDurationSeconds
	}
	return &Session{
		ID:        id,
		UserID:    userID,
		status:    StatusIdle,
		duration:  durationSeconds,
		gen:       gen,
		onFinish:  onFinish,
		createdAt: time.Now(),
	}
}

// Start begins the countdown. Valid from Idle or Finished; a finished
// session restarts fresh with score 0 and a new first question.
func (s *Session) Start(op question.Operator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusRunning {
		return ErrAlreadyRunning
	}

	s.operator = op
	s.score = 0
	s.secondsRemaining = s.duration
	s.current = s.gen.Next(op)
	s.status = StatusRunning
	s.finished = false

	log.Printf("[SESSION] %s started for user %s (operator=%s, duration=%ds)", s.ID, s.UserID, op, s.duration)
	return nil
}

// Tick advances the countdown by one second. At zero it forces the
// session to finish. Returns true if this tick ended the session.
func (s *Session) Tick() bool {
	s.mu.Lock()
	if s.status != StatusRunning {
		s.mu.Unlock()
		return false
	}
	s.secondsRemaining--
	if s.secondsRemaining > 0 {
		s.mu.Unlock()
		return false
	}
	s.secondsRemaining = 0
	s.finishLocked("timeout")
	s.mu.Unlock()
	return true
}

// SubmitAnswer checks raw against the current question. Unparseable
// input is a no-op. A parseable wrong answer scores nothing; an exact
// match scores 1. Either way a parseable submission advances to a new
// question.
func (s *Session) SubmitAnswer(raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusRunning {
		return ErrNotRunning
	}

	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	if n == s.current.Answer() {
		s.score++
	}
	s.current = s.gen.Next(s.operator)
	return nil
}

// Finish ends a running session. Safe to call repeatedly and to race
// with a timeout tick: the side effects fire at most once.
func (s *Session) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusRunning {
		return
	}
	s.finishLocked("finish")
}

// Stop aborts a session, for example when the player navigates away.
// A running session is finished normally so the partial score still
// counts as a completed attempt.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusRunning {
		return
	}
	s.finishLocked("stop")
}

// finishLocked freezes the score and emits it once. Caller holds mu.
func (s *Session) finishLocked(cause string) {
	s.status = StatusFinished
	s.finishedAt = time.Now()

	if s.finished {
		return
	}
	s.finished = true

	log.Printf("[SESSION] %s finished for user %s (cause=%s, score=%d)", s.ID, s.UserID, cause, s.score)
	if s.onFinish != nil {
		// Emit outside the lock: the sink reads and writes persistent
		// state and must not block the session.
		go s.onFinish(s.ID, s.UserID, s.score, s.finishedAt)
	}
}

// Snapshot returns the client-visible state. The prompt is present
// only while running; currentQuestion is non-null iff Running.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		SessionID:        s.ID,
		Status:           s.status,
		SecondsRemaining: s.secondsRemaining,
		Score:            s.score,
	}
	if s.status == StatusRunning {
		snap.Prompt = s.current.Prompt()
	}
	return snap
}

// Status returns the current lifecycle state.
func (s *Session) Status() SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Score returns the running (or frozen) score.
func (s *Session) Score() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.score
}

// CurrentAnswer exposes the correct answer of the live question.
// False when the session is not running.
func (s *Session) CurrentAnswer() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status != StatusRunning {
		return 0, false
	}
	return s.current.Answer(), true
}

// FinishedAt reports when the session ended.
func (s *Session) FinishedAt() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status != StatusFinished {
		return time.Time{}, false
	}
	return s.finishedAt, true
}
