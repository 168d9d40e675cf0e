// Package quiz runs user attempts: it serves questions one at a time,
// scores answers, and records the final result.
package quiz

import (
	"context"
	"errors"
	"math"
	"strconv"

	"github.com/feyalabs/quizbot/core/logger"
	"github.com/feyalabs/quizbot/core/session"
	"github.com/feyalabs/quizbot/core/storage"
)

// ErrActive reports a start while the user is already inside an attempt.
var ErrActive = errors.New("quiz: attempt already in progress")

// Prompt is the next question to show the user.
type Prompt struct {
	TestID   int
	Index    int
	Total    int
	Title    string
	Question string
	Options  []string
}

// Outcome is what Start or Answer produced: the next prompt, or the final
// result when the attempt just finished. Exactly one field is set.
type Outcome struct {
	Prompt *Prompt
	Result *storage.Result
}

// Engine drives quiz attempts over the store and session manager.
type Engine struct {
	store    *storage.Store
	sessions session.Manager
}

// NewEngine wires the quiz engine.
func NewEngine(store *storage.Store, sessions session.Manager) *Engine {
	return &Engine{store: store, sessions: sessions}
}

// Start begins an attempt. It returns ErrActive if the user is mid-attempt
// and storage.ErrNotFound for an unknown test. A test with no questions
// finalizes immediately with an empty result.
func (e *Engine) Start(ctx context.Context, userID int64, testID int) (Outcome, error) {
	if e.sessions.InQuiz(userID) {
		return Outcome{}, ErrActive
	}
	t, err := e.store.TestByID(ctx, testID)
	if err != nil {
		return Outcome{}, err
	}
	st := session.QuizState{TestID: testID}
	if len(t.Questions) == 0 {
		e.sessions.SetQuiz(userID, st)
		return e.finalize(ctx, userID, t, st)
	}
	e.sessions.SetQuiz(userID, st)
	logger.Quiz.InfoContext(ctx, "attempt started",
		"event", "quiz.start", "status", "ok", "user_id", userID, "test_id", testID, "count", len(t.Questions))
	return Outcome{Prompt: e.prompt(t, 0)}, nil
}

// Answer scores one answer. The testID and qIndex must match the user's
// current position; a stale or duplicate answer is dropped with
// matched=false and no state change. A vanished test aborts the attempt
// with storage.ErrNotFound.
func (e *Engine) Answer(ctx context.Context, userID int64, testID, qIndex, optIndex int) (Outcome, bool, error) {
	st := e.sessions.Get(userID)
	if st.Quiz == nil || st.Quiz.TestID != testID || st.Quiz.Index != qIndex {
		return Outcome{}, false, nil
	}
	t, err := e.store.TestByID(ctx, testID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			e.sessions.ClearQuiz(userID)
		}
		return Outcome{}, false, err
	}
	if qIndex >= len(t.Questions) {
		e.sessions.ClearQuiz(userID)
		return Outcome{}, false, storage.ErrNotFound
	}
	q := t.Questions[qIndex]
	next := *st.Quiz
	if optIndex == q.CorrectAnswer {
		next.Correct++
	}
	next.Index++
	if next.Index >= len(t.Questions) {
		out, err := e.finalize(ctx, userID, t, next)
		return out, true, err
	}
	e.sessions.SetQuiz(userID, next)
	return Outcome{Prompt: e.prompt(t, next.Index)}, true, nil
}

// Abort drops the user's attempt without recording anything.
func (e *Engine) Abort(userID int64) {
	e.sessions.ClearQuiz(userID)
}

func (e *Engine) prompt(t storage.Test, index int) *Prompt {
	q := t.Questions[index]
	return &Prompt{
		TestID:   t.ID,
		Index:    index,
		Total:    len(t.Questions),
		Title:    t.Title,
		Question: q.Text,
		Options:  q.Options,
	}
}

func (e *Engine) finalize(ctx context.Context, userID int64, t storage.Test, st session.QuizState) (Outcome, error) {
	total := len(t.Questions)
	pct := 0
	if total > 0 {
		pct = int(math.Round(float64(st.Correct) / float64(total) * 100))
	}
	r := storage.Result{
		UserID:     userID,
		TestID:     t.ID,
		Correct:    st.Correct,
		Wrong:      total - st.Correct,
		Percentage: pct,
		Date:       storage.Today(),
	}
	if u, err := e.store.UserByID(ctx, userID); err == nil {
		r.Username = u.Username
		r.FullName = u.FullName
	}
	if err := e.store.AppendResult(ctx, r); err != nil {
		return Outcome{}, err
	}
	// The result is durable from here on. Clear the session before the
	// counter update so a failed increment cannot leave the user mid-quiz
	// and a retried answer cannot append a duplicate result.
	e.sessions.ClearQuiz(userID)
	if err := e.store.IncrementTestsWorked(ctx, userID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		logger.Quiz.WarnContext(ctx, "tests_worked update failed",
			"event", "quiz.finish", "status", "fail", "user_id", userID, "err", err)
	}
	logger.Quiz.InfoContext(ctx, "attempt finished",
		"event", "quiz.finish", "status", "ok", "user_id", userID, "test_id", t.ID,
		"correct", r.Correct, "wrong", r.Wrong, "percentage", r.Percentage)
	return Outcome{Result: &r}, nil
}

// OptionLabel renders the short label for an option position: letters for
// the first 26, the one-based number after that.
func OptionLabel(i int) string {
	if i < 26 {
		return string(rune('A' + i))
	}
	return strconv.Itoa(i + 1)
}
