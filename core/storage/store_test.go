package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestOpenSeedsCollections(t *testing.T) {
	dir := t.TempDir()
	if _, err := Open(context.Background(), dir); err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, c := range collections {
		path := filepath.Join(dir, string(c)+".json")
		if _, err := os.Stat(path); err != nil {
			t.Errorf("collection %s not seeded: %v", c, err)
		}
	}
}

func TestCorruptCollectionReadsAsDefault(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s, err := Open(ctx, dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "users.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	users, err := s.Users(ctx)
	if err != nil {
		t.Fatalf("Users after corruption: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("want empty users, got %d", len(users))
	}
	// A write after a corrupt read starts from the default document.
	if err := s.EnsureUser(ctx, 1, "alice", "Alice"); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	users, err = s.Users(ctx)
	if err != nil {
		t.Fatalf("Users: %v", err)
	}
	if len(users) != 1 || users[0].Username != "alice" {
		t.Fatalf("unexpected users after recovery: %+v", users)
	}
}

func TestEnsureUserRefreshesProfile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.EnsureUser(ctx, 7, "old", "Old Name"); err != nil {
		t.Fatal(err)
	}
	if err := s.EnsureUser(ctx, 7, "new", "New Name"); err != nil {
		t.Fatal(err)
	}
	u, err := s.UserByID(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if u.Username != "new" || u.FullName != "New Name" {
		t.Fatalf("profile not refreshed: %+v", u)
	}
	if u.JoinedDate == "" {
		t.Fatal("joined date not set")
	}
}

func TestConcurrentUpdatesNoLostWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.EnsureUser(ctx, 42, "bob", "Bob"); err != nil {
		t.Fatal(err)
	}
	const n = 25
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if err := s.IncrementTestsWorked(ctx, 42); err != nil {
				t.Errorf("IncrementTestsWorked: %v", err)
			}
		}()
	}
	wg.Wait()
	u, err := s.UserByID(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if u.TestsWorked != n {
		t.Fatalf("lost updates: tests_worked = %d, want %d", u.TestsWorked, n)
	}
}

func TestTestIDsNeverReused(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	q := []Question{{Text: "q", Options: []string{"a", "b"}, CorrectAnswer: 0}}
	first, err := s.CreateTest(ctx, "first", TestOpen, q)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.CreateTest(ctx, "second", TestOpen, q)
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID+1 {
		t.Fatalf("ids not sequential: %d then %d", first.ID, second.ID)
	}
	if err := s.DeleteTest(ctx, second.ID); err != nil {
		t.Fatal(err)
	}
	third, err := s.CreateTest(ctx, "third", TestOpen, q)
	if err != nil {
		t.Fatal(err)
	}
	if third.ID <= second.ID {
		t.Fatalf("id reused after deletion: got %d, deleted %d", third.ID, second.ID)
	}
}

func TestToggleAndOpenTests(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	q := []Question{{Text: "q", Options: []string{"a", "b"}, CorrectAnswer: 1}}
	created, err := s.CreateTest(ctx, "toggling", TestOpen, q)
	if err != nil {
		t.Fatal(err)
	}
	status, err := s.ToggleTestStatus(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if status != TestClosed {
		t.Fatalf("want closed, got %s", status)
	}
	open, err := s.OpenTests(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 0 {
		t.Fatalf("closed test listed as open: %+v", open)
	}
}

func TestChannelLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ch := Channel{ID: -100123, Name: "News", Username: "newschan"}
	if err := s.UpsertChannel(ctx, ch); err != nil {
		t.Fatal(err)
	}
	if err := s.DeactivateChannel(ctx, ch.ID); err != nil {
		t.Fatal(err)
	}
	active, err := s.ActiveChannels(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Fatalf("deactivated channel still active: %+v", active)
	}
	// Re-adding reactivates the existing record instead of duplicating it.
	if err := s.UpsertChannel(ctx, ch); err != nil {
		t.Fatal(err)
	}
	all, err := s.Channels(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Status != ChannelActive {
		t.Fatalf("unexpected channels: %+v", all)
	}
}

func TestResultsByUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, r := range []Result{
		{UserID: 1, TestID: 10, Correct: 3, Wrong: 1, Percentage: 75, Date: Today()},
		{UserID: 2, TestID: 10, Correct: 4, Wrong: 0, Percentage: 100, Date: Today()},
		{UserID: 1, TestID: 11, Correct: 1, Wrong: 3, Percentage: 25, Date: Today()},
	} {
		if err := s.AppendResult(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	own, err := s.ResultsByUser(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(own) != 2 || own[0].TestID != 10 || own[1].TestID != 11 {
		t.Fatalf("unexpected results: %+v", own)
	}
	ids, err := s.AttemptedTestIDs(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !ids[10] || !ids[11] || ids[12] {
		t.Fatalf("unexpected attempted ids: %v", ids)
	}
}

func TestNotFoundErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if _, err := s.UserByID(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("UserByID miss: %v", err)
	}
	if _, err := s.TestByID(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("TestByID miss: %v", err)
	}
	if err := s.RenameTest(ctx, 999, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("RenameTest miss: %v", err)
	}
	if err := s.DeleteTest(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteTest miss: %v", err)
	}
	if err := s.DeactivateChannel(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeactivateChannel miss: %v", err)
	}
}
