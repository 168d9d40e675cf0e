package session

import (
	"sync"
	"testing"
)

func TestWizardAndQuizMutuallyExclusive(t *testing.T) {
	m := NewManager()
	m.SetWizard(1, WizardState{Step: StepBroadcast})
	if !m.InWizard(1) {
		t.Fatal("expected wizard state")
	}
	m.SetQuiz(1, QuizState{TestID: 3})
	if m.InWizard(1) {
		t.Fatal("wizard state survived quiz entry")
	}
	if !m.InQuiz(1) {
		t.Fatal("expected quiz state")
	}
	m.SetWizard(1, WizardState{Step: StepAdminAdd})
	if m.InQuiz(1) {
		t.Fatal("quiz state survived wizard entry")
	}
}

func TestClearRemovesState(t *testing.T) {
	m := NewManager()
	m.SetQuiz(5, QuizState{TestID: 1, Index: 2, Correct: 2})
	m.ClearQuiz(5)
	if m.InQuiz(5) {
		t.Fatal("quiz not cleared")
	}
	st := m.Get(5)
	if st.Quiz != nil || st.Wizard != nil {
		t.Fatalf("residual state: %+v", st)
	}
	m.SetWizard(5, WizardState{Step: StepChannelAdd})
	m.Clear(5)
	if m.InWizard(5) {
		t.Fatal("wizard not cleared")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	m := NewManager()
	m.SetQuiz(9, QuizState{TestID: 4, Index: 1})
	st := m.Get(9)
	st.Quiz.Index = 99
	if got := m.Get(9); got.Quiz.Index == 99 {
		t.Fatal("Get leaked internal state")
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := NewManager()
	var wg sync.WaitGroup
	for i := int64(0); i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			m.SetQuiz(id, QuizState{TestID: int(id)})
			_ = m.Get(id)
			m.ClearQuiz(id)
		}(i)
	}
	wg.Wait()
	for i := int64(0); i < 50; i++ {
		if m.InQuiz(i) {
			t.Fatalf("user %d still in quiz", i)
		}
	}
}
