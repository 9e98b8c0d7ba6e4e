package game

import (
	"math/rand"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/TangmaeTT/MathEveryday/internal/question"
)

// finishRecorder collects finish emissions; Wait blocks until the
// first one lands since sessions emit from a goroutine.
type finishRecorder struct {
	mu     sync.Mutex
	scores []int
	ch     chan struct{}
}

func newFinishRecorder() *finishRecorder {
	return &finishRecorder{ch: make(chan struct{}, 16)}
}

func (r *finishRecorder) sink(sessionID, userID string, score int, finishedAt time.Time) {
	r.mu.Lock()
	r.scores = append(r.scores, score)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *finishRecorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.ch:
	case <-time.After(2 * time.Second):
		t.Fatal("finish sink never fired")
	}
}

func (r *finishRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.scores)
}

func newTestSession(rec *finishRecorder) *Session {
	gen := question.NewGenerator(rand.New(rand.NewSource(1)))
	var sink FinishSink
	if rec != nil {
		sink = rec.sink
	}
	return NewSession("session_test", "u1", DefaultDurationSeconds, gen, sink)
}

func TestStartTransitionsToRunning(t *testing.T) {
	s := newTestSession(nil)
	if s.Status() != StatusIdle {
		t.Fatalf("new session status = %s, want IDLE", s.Status())
	}
	if err := s.Start(question.OpAdd); err != nil {
		t.Fatalf("start: %v", err)
	}

	snap := s.Snapshot()
	if snap.Status != StatusRunning {
		t.Errorf("status = %s, want RUNNING", snap.Status)
	}
	if snap.SecondsRemaining != DefaultDurationSeconds {
		t.Errorf("seconds remaining = %d, want %d", snap.SecondsRemaining, DefaultDurationSeconds)
	}
	if snap.Score != 0 {
		t.Errorf("score = %d, want 0", snap.Score)
	}
	if snap.Prompt == "" {
		t.Error("running session has no current question")
	}

	if err := s.Start(question.OpAdd); err != ErrAlreadyRunning {
		t.Errorf("second start err = %v, want ErrAlreadyRunning", err)
	}
}

func TestCorrectAnswerScoresOne(t *testing.T) {
	s := newTestSession(nil)
	s.Start(question.OpAdd)

	answer, ok := s.CurrentAnswer()
	if !ok {
		t.Fatal("no current answer while running")
	}
	if err := s.SubmitAnswer(strconv.Itoa(answer)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if s.Score() != 1 {
		t.Errorf("score = %d after correct answer, want 1", s.Score())
	}
}

func TestWrongAnswerScoresNothingButAdvances(t *testing.T) {
	s := newTestSession(nil)
	s.Start(question.OpAdd)

	before := s.Snapshot().Prompt
	answer, _ := s.CurrentAnswer()
	if err := s.SubmitAnswer(strconv.Itoa(answer + 1)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if s.Score() != 0 {
		t.Errorf("score = %d after wrong answer, want 0", s.Score())
	}
	// A parseable submission always advances, correct or not. Two
	// independent draws can coincide, so allow a few submissions
	// before requiring a different prompt.
	changed := s.Snapshot().Prompt != before
	for i := 0; i < 5 && !changed; i++ {
		answer, _ := s.CurrentAnswer()
		s.SubmitAnswer(strconv.Itoa(answer + 1))
		changed = s.Snapshot().Prompt != before
	}
	if !changed {
		t.Error("question never advanced across wrong-answer submissions")
	}
	if s.Score() != 0 {
		t.Errorf("score = %d after only wrong answers, want 0", s.Score())
	}
}

func TestUnparseableAnswerIsNoOp(t *testing.T) {
	s := newTestSession(nil)
	s.Start(question.OpMultiply)

	before := s.Snapshot()
	for _, raw := range []string{"", "  ", "abc", "12x", "1.5"} {
		if err := s.SubmitAnswer(raw); err != nil {
			t.Fatalf("submit %q: %v", raw, err)
		}
	}
	after := s.Snapshot()
	if after.Score != before.Score {
		t.Errorf("score changed on unparseable input: %d -> %d", before.Score, after.Score)
	}
	if after.Prompt != before.Prompt {
		t.Errorf("question changed on unparseable input: %q -> %q", before.Prompt, after.Prompt)
	}
}

func TestAnswerWithSurroundingWhitespace(t *testing.T) {
	s := newTestSession(nil)
	s.Start(question.OpAdd)
	answer, _ := s.CurrentAnswer()
	s.SubmitAnswer("  " + strconv.Itoa(answer) + " ")
	if s.Score() != 1 {
		t.Errorf("score = %d, want 1 for trimmed numeric input", s.Score())
	}
}

func TestSixtyTicksFinishesSession(t *testing.T) {
	rec := newFinishRecorder()
	s := newTestSession(rec)
	s.Start(question.OpMixed)

	answer, _ := s.CurrentAnswer()
	s.SubmitAnswer(strconv.Itoa(answer))

	for i := 0; i < DefaultDurationSeconds-1; i++ {
		if ended := s.Tick(); ended {
			t.Fatalf("session ended early at tick %d", i+1)
		}
	}
	if !s.Tick() {
		t.Fatal("session did not end on the final tick")
	}

	rec.wait(t)
	if s.Status() != StatusFinished {
		t.Errorf("status = %s, want FINISHED", s.Status())
	}
	if s.Score() != 1 {
		t.Errorf("score = %d after timeout, want the accumulated 1", s.Score())
	}
	if snap := s.Snapshot(); snap.Prompt != "" {
		t.Error("finished session still exposes a question")
	}
}

func TestSecondsRemainingMonotonic(t *testing.T) {
	s := newTestSession(nil)
	s.Start(question.OpAdd)
	prev := s.Snapshot().SecondsRemaining
	for i := 0; i < 10; i++ {
		s.Tick()
		cur := s.Snapshot().SecondsRemaining
		if cur > prev {
			t.Fatalf("seconds remaining increased: %d -> %d", prev, cur)
		}
		prev = cur
	}
}

func TestFinishTwiceEmitsOnce(t *testing.T) {
	rec := newFinishRecorder()
	s := newTestSession(rec)
	s.Start(question.OpAdd)

	// Explicit stop racing a timeout-style finish.
	s.Finish()
	s.Stop()
	s.Finish()

	rec.wait(t)
	// Give any wrongly duplicated emission a moment to land.
	time.Sleep(50 * time.Millisecond)
	if n := rec.count(); n != 1 {
		t.Errorf("finish emitted %d times, want exactly 1", n)
	}
}

func TestStopCountsAsCompletedAttempt(t *testing.T) {
	rec := newFinishRecorder()
	s := newTestSession(rec)
	s.Start(question.OpAdd)

	answer, _ := s.CurrentAnswer()
	s.SubmitAnswer(strconv.Itoa(answer))
	s.Stop()

	rec.wait(t)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.scores) != 1 || rec.scores[0] != 1 {
		t.Errorf("stop emitted scores %v, want [1]", rec.scores)
	}
}

func TestSubmitAfterFinishRejected(t *testing.T) {
	s := newTestSession(nil)
	s.Start(question.OpAdd)
	s.Finish()
	if err := s.SubmitAnswer("1"); err != ErrNotRunning {
		t.Errorf("submit after finish err = %v, want ErrNotRunning", err)
	}
}

func TestConcurrentTicksAndAnswers(t *testing.T) {
	rec := newFinishRecorder()
	s := newTestSession(rec)
	s.Start(question.OpMixed)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < DefaultDurationSeconds; i++ {
			s.Tick()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if answer, ok := s.CurrentAnswer(); ok {
				s.SubmitAnswer(strconv.Itoa(answer))
			}
		}
	}()
	wg.Wait()

	rec.wait(t)
	time.Sleep(50 * time.Millisecond)
	if n := rec.count(); n != 1 {
		t.Errorf("finish emitted %d times under racing tick/submit, want 1", n)
	}
	if s.Score() < 0 {
		t.Errorf("score went negative: %d", s.Score())
	}
}
