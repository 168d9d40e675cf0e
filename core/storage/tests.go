package storage

import (
	"context"

	"github.com/feyalabs/quizbot/core/logger"
)

// CreateTest assigns the next id and appends the test. Ids come from a
// persisted high-water mark, so an id is never reused even after the
// newest test is deleted.
func (s *Store) CreateTest(ctx context.Context, title string, status TestStatus, questions []Question) (Test, error) {
	var created Test
	var doc TestsDocument
	err := s.updateDoc(ctx, colTests, &doc, func() (bool, error) {
		next := doc.LastID
		for _, t := range doc.Tests {
			if t.ID > next {
				next = t.ID
			}
		}
		next++
		created = Test{
			ID:        next,
			Title:     title,
			Status:    status,
			Questions: questions,
			CreatedAt: Today(),
		}
		doc.LastID = next
		doc.Tests = append(doc.Tests, created)
		return true, nil
	})
	if err != nil {
		return Test{}, err
	}
	logger.Store.InfoContext(ctx, "test created",
		"event", "storage.test.create", "status", "ok", "test_id", created.ID, "count", len(questions))
	return created, nil
}

// Tests returns every test regardless of status.
func (s *Store) Tests(ctx context.Context) ([]Test, error) {
	var doc TestsDocument
	if err := s.readDoc(ctx, colTests, &doc); err != nil {
		return nil, err
	}
	return doc.Tests, nil
}

// OpenTests returns the tests visible to users.
func (s *Store) OpenTests(ctx context.Context) ([]Test, error) {
	all, err := s.Tests(ctx)
	if err != nil {
		return nil, err
	}
	open := make([]Test, 0, len(all))
	for _, t := range all {
		if t.Status == TestOpen {
			open = append(open, t)
		}
	}
	return open, nil
}

// TestByID looks up one test, reporting ErrNotFound on a miss.
func (s *Store) TestByID(ctx context.Context, id int) (Test, error) {
	var doc TestsDocument
	if err := s.readDoc(ctx, colTests, &doc); err != nil {
		return Test{}, err
	}
	for _, t := range doc.Tests {
		if t.ID == id {
			return t, nil
		}
	}
	return Test{}, ErrNotFound
}

// RenameTest replaces the test title.
func (s *Store) RenameTest(ctx context.Context, id int, title string) error {
	var doc TestsDocument
	return s.updateDoc(ctx, colTests, &doc, func() (bool, error) {
		for i := range doc.Tests {
			if doc.Tests[i].ID == id {
				doc.Tests[i].Title = title
				return true, nil
			}
		}
		return false, ErrNotFound
	})
}

// ToggleTestStatus flips a test between open and closed and returns the
// new status.
func (s *Store) ToggleTestStatus(ctx context.Context, id int) (TestStatus, error) {
	var status TestStatus
	var doc TestsDocument
	err := s.updateDoc(ctx, colTests, &doc, func() (bool, error) {
		for i := range doc.Tests {
			if doc.Tests[i].ID != id {
				continue
			}
			if doc.Tests[i].Status == TestOpen {
				doc.Tests[i].Status = TestClosed
			} else {
				doc.Tests[i].Status = TestOpen
			}
			status = doc.Tests[i].Status
			return true, nil
		}
		return false, ErrNotFound
	})
	return status, err
}

// DeleteTest removes the test record. Results referencing the test are
// kept and rendered with a placeholder title by callers.
func (s *Store) DeleteTest(ctx context.Context, id int) error {
	var doc TestsDocument
	return s.updateDoc(ctx, colTests, &doc, func() (bool, error) {
		for i := range doc.Tests {
			if doc.Tests[i].ID == id {
				doc.Tests = append(doc.Tests[:i], doc.Tests[i+1:]...)
				return true, nil
			}
		}
		return false, ErrNotFound
	})
}
