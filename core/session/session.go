// Package session keeps per-user conversation state in memory. A user is
// either idle, inside an admin wizard, or inside a quiz attempt; wizard
// and quiz state are mutually exclusive and entering one clears the other.
package session

import (
	"sync"

	"github.com/feyalabs/quizbot/core/storage"
)

// Step names the wizard prompt the user's next text message answers.
type Step string

const (
	StepIdle          Step = ""
	StepBroadcast     Step = "broadcast"
	StepTestTitle     Step = "test_title"
	StepTestCount     Step = "test_count"
	StepTestQuestion  Step = "test_question"
	StepTestOptions   Step = "test_options"
	StepTestCorrect   Step = "test_correct"
	StepTestStatus    Step = "test_status"
	StepTestEditTitle Step = "test_edit_title"
	StepAdminAdd      Step = "admin_add"
	StepAdminRemove   Step = "admin_remove"
	StepChannelAdd    Step = "channel_add"
)

// QuizState tracks the user's position inside one attempt.
type QuizState struct {
	TestID  int
	Index   int
	Correct int
}

// TestDraft accumulates a test across the creation wizard steps.
type TestDraft struct {
	Title           string
	Total           int
	Questions       []storage.Question
	PendingQuestion string
	PendingOptions  []string
}

// WizardState tracks where the user is inside an admin wizard.
type WizardState struct {
	Step       Step
	Draft      *TestDraft
	EditTestID int
}

// State is the full conversation state of one user.
type State struct {
	Wizard *WizardState
	Quiz   *QuizState
}

// Manager stores and transitions per-user conversation state. All methods
// are safe for concurrent use.
type Manager interface {
	Get(userID int64) State
	SetWizard(userID int64, w WizardState)
	SetQuiz(userID int64, q QuizState)
	ClearWizard(userID int64)
	ClearQuiz(userID int64)
	Clear(userID int64)
	InWizard(userID int64) bool
	InQuiz(userID int64) bool
}

type memoryManager struct {
	mu     sync.RWMutex
	states map[int64]*State
}

// NewManager returns an in-memory Manager. State does not survive restart.
func NewManager() Manager {
	return &memoryManager{states: make(map[int64]*State)}
}

func (m *memoryManager) Get(userID int64) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[userID]
	if !ok {
		return State{}
	}
	out := State{}
	if st.Wizard != nil {
		w := *st.Wizard
		if st.Wizard.Draft != nil {
			d := *st.Wizard.Draft
			d.Questions = append([]storage.Question(nil), st.Wizard.Draft.Questions...)
			d.PendingOptions = append([]string(nil), st.Wizard.Draft.PendingOptions...)
			w.Draft = &d
		}
		out.Wizard = &w
	}
	if st.Quiz != nil {
		q := *st.Quiz
		out.Quiz = &q
	}
	return out
}

func (m *memoryManager) SetWizard(userID int64, w WizardState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[userID] = &State{Wizard: &w}
}

func (m *memoryManager) SetQuiz(userID int64, q QuizState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[userID] = &State{Quiz: &q}
}

func (m *memoryManager) ClearWizard(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.states[userID]; ok {
		st.Wizard = nil
		if st.Quiz == nil {
			delete(m.states, userID)
		}
	}
}

func (m *memoryManager) ClearQuiz(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.states[userID]; ok {
		st.Quiz = nil
		if st.Wizard == nil {
			delete(m.states, userID)
		}
	}
}

func (m *memoryManager) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, userID)
}

func (m *memoryManager) InWizard(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[userID]
	return ok && st.Wizard != nil && st.Wizard.Step != StepIdle
}

func (m *memoryManager) InQuiz(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[userID]
	return ok && st.Quiz != nil
}
