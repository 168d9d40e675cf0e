package wizard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/feyalabs/quizbot/core/admin"
	"github.com/feyalabs/quizbot/core/quiz"
	"github.com/feyalabs/quizbot/core/session"
	"github.com/feyalabs/quizbot/core/storage"
)

const (
	superID   = int64(100)
	regularID = int64(200)
	plainID   = int64(300)
)

func newFSM(t *testing.T) (*FSM, *storage.Store, session.Manager) {
	t.Helper()
	ctx := context.Background()
	store, err := storage.Open(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	admins, err := admin.Load(ctx, store, []int64{superID}, []int64{regularID})
	if err != nil {
		t.Fatalf("admin.Load: %v", err)
	}
	sessions := session.NewManager()
	return New(store, sessions, admins), store, sessions
}

func feed(t *testing.T, f *FSM, userID int64, text string) Reply {
	t.Helper()
	r, handled, err := f.HandleText(context.Background(), userID, text)
	if err != nil {
		t.Fatalf("HandleText(%q): %v", text, err)
	}
	if !handled {
		t.Fatalf("HandleText(%q) not handled", text)
	}
	return r
}

func TestPermissionGates(t *testing.T) {
	f, _, _ := newFSM(t)
	if _, err := f.StartBroadcast(plainID); !errors.Is(err, ErrPermission) {
		t.Errorf("broadcast as plain user: %v", err)
	}
	if _, err := f.StartAdminAdd(regularID); !errors.Is(err, ErrPermission) {
		t.Errorf("admin add as non-super: %v", err)
	}
	if _, err := f.StartAdminAdd(superID); err != nil {
		t.Errorf("admin add as super: %v", err)
	}
}

func TestCreationFlowFull(t *testing.T) {
	f, store, _ := newFSM(t)
	ctx := context.Background()
	if _, err := f.StartTestCreation(regularID); err != nil {
		t.Fatal(err)
	}

	// Invalid inputs re-prompt without advancing.
	feed(t, f, regularID, "")
	feed(t, f, regularID, "Capitals")
	feed(t, f, regularID, "0")
	feed(t, f, regularID, "101")
	feed(t, f, regularID, "2")

	feed(t, f, regularID, "Capital of France?")
	feed(t, f, regularID, "Paris")         // one option, re-prompt
	feed(t, f, regularID, "Paris | Lyon | ") // trailing empty part dropped
	feed(t, f, regularID, "3")               // out of range, re-prompt
	feed(t, f, regularID, "1")

	feed(t, f, regularID, "Capital of Italy?")
	feed(t, f, regularID, "Rome|Milan|Turin")
	r := feed(t, f, regularID, "2")
	if len(r.Choices) == 0 {
		t.Fatalf("expected status choices, got %+v", r)
	}

	created, err := f.FinishTestCreation(ctx, regularID, storage.TestOpen)
	if err != nil {
		t.Fatalf("FinishTestCreation: %v", err)
	}
	if created.Title != "Capitals" || len(created.Questions) != 2 {
		t.Fatalf("unexpected test: %+v", created)
	}
	q := created.Questions
	if q[0].CorrectAnswer != 0 || len(q[0].Options) != 2 {
		t.Fatalf("question 1 wrong: %+v", q[0])
	}
	if q[1].CorrectAnswer != 1 || q[1].Options[2] != "Turin" {
		t.Fatalf("question 2 wrong: %+v", q[1])
	}
	if f.InWizard(regularID) {
		t.Fatal("wizard not cleared after finish")
	}
	if _, err := store.TestByID(ctx, created.ID); err != nil {
		t.Fatalf("test not persisted: %v", err)
	}
}

// TestCreateThenAttempt drives a test from authoring to a finished attempt.
func TestCreateThenAttempt(t *testing.T) {
	f, store, sessions := newFSM(t)
	ctx := context.Background()
	if _, err := f.StartTestCreation(regularID); err != nil {
		t.Fatal(err)
	}
	feed(t, f, regularID, "Math")
	feed(t, f, regularID, "1")
	feed(t, f, regularID, "2+2?")
	feed(t, f, regularID, "3|4")
	feed(t, f, regularID, "2")
	created, err := f.FinishTestCreation(ctx, regularID, storage.TestOpen)
	if err != nil {
		t.Fatalf("FinishTestCreation: %v", err)
	}

	if err := store.EnsureUser(ctx, plainID, "taker", "Taker"); err != nil {
		t.Fatal(err)
	}
	e := quiz.NewEngine(store, sessions)
	if _, err := e.Start(ctx, plainID, created.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	out, matched, err := e.Answer(ctx, plainID, created.ID, 0, 1)
	if err != nil || !matched {
		t.Fatalf("Answer: matched=%v err=%v", matched, err)
	}
	if out.Result == nil {
		t.Fatal("attempt did not finalize")
	}
	if out.Result.Correct != 1 || out.Result.Wrong != 0 || out.Result.Percentage != 100 {
		t.Fatalf("unexpected result: %+v", out.Result)
	}
}

// TestRevokedAdminCutsWizardShort covers revocation between steps: the
// grant check runs on every turn, not only at entry.
func TestRevokedAdminCutsWizardShort(t *testing.T) {
	f, _, _ := newFSM(t)
	ctx := context.Background()
	const grantee = int64(500)
	if err := f.admins.Add(ctx, grantee); err != nil {
		t.Fatal(err)
	}
	if _, err := f.StartTestCreation(grantee); err != nil {
		t.Fatal(err)
	}
	feed(t, f, grantee, "Sneaky")
	if err := f.admins.Remove(ctx, grantee); err != nil {
		t.Fatal(err)
	}
	_, handled, err := f.HandleText(ctx, grantee, "1")
	if !handled || !errors.Is(err, ErrPermission) {
		t.Fatalf("HandleText after revoke: handled=%v err=%v", handled, err)
	}
	if f.InWizard(grantee) {
		t.Fatal("wizard survived the revoke")
	}
}

func TestRevokedAdminCannotPublishDraft(t *testing.T) {
	f, store, _ := newFSM(t)
	ctx := context.Background()
	const grantee = int64(501)
	if err := f.admins.Add(ctx, grantee); err != nil {
		t.Fatal(err)
	}
	if _, err := f.StartTestCreation(grantee); err != nil {
		t.Fatal(err)
	}
	feed(t, f, grantee, "Sneaky")
	feed(t, f, grantee, "1")
	feed(t, f, grantee, "q?")
	feed(t, f, grantee, "a|b")
	feed(t, f, grantee, "1")
	if err := f.admins.Remove(ctx, grantee); err != nil {
		t.Fatal(err)
	}
	if _, err := f.FinishTestCreation(ctx, grantee, storage.TestOpen); !errors.Is(err, ErrPermission) {
		t.Fatalf("FinishTestCreation after revoke: %v", err)
	}
	tests, err := store.Tests(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tests) != 0 {
		t.Fatalf("revoked admin persisted a test: %+v", tests)
	}
	if f.InWizard(grantee) {
		t.Fatal("wizard survived the revoke")
	}
}

func TestRevokedAdminCannotBroadcast(t *testing.T) {
	f, store, _ := newFSM(t)
	ctx := context.Background()
	const grantee = int64(502)
	if err := store.EnsureUser(ctx, 1, "u1", "User"); err != nil {
		t.Fatal(err)
	}
	if err := f.admins.Add(ctx, grantee); err != nil {
		t.Fatal(err)
	}
	if _, err := f.StartBroadcast(grantee); err != nil {
		t.Fatal(err)
	}
	if err := f.admins.Remove(ctx, grantee); err != nil {
		t.Fatal(err)
	}
	sent := 0
	_, err := f.Broadcast(ctx, grantee, func(context.Context, int64) error {
		sent++
		return nil
	})
	if !errors.Is(err, ErrPermission) {
		t.Fatalf("Broadcast after revoke: %v", err)
	}
	if sent != 0 {
		t.Fatalf("revoked admin delivered %d messages", sent)
	}
}

// TestEditTitleKeepsStateOnWriteFailure pins the recovery contract for
// store write failures: the wizard stays open so the step can be retried.
func TestEditTitleKeepsStateOnWriteFailure(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("cannot drop directory write permission as root")
	}
	ctx := context.Background()
	dir := t.TempDir()
	store, err := storage.Open(ctx, dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	admins, err := admin.Load(ctx, store, []int64{superID}, []int64{regularID})
	if err != nil {
		t.Fatalf("admin.Load: %v", err)
	}
	f := New(store, session.NewManager(), admins)
	created, err := store.CreateTest(ctx, "Old title", storage.TestOpen, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.StartTestEdit(ctx, regularID, created.ID); err != nil {
		t.Fatal(err)
	}

	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatal(err)
	}
	defer os.Chmod(dir, 0o755)
	_, handled, err := f.HandleText(ctx, regularID, "New title")
	if !handled || err == nil {
		t.Fatalf("want write failure, got handled=%v err=%v", handled, err)
	}
	if !f.InWizard(regularID) {
		t.Fatal("write failure destroyed the wizard")
	}

	// The same step succeeds once the store is writable again.
	if err := os.Chmod(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	r := feed(t, f, regularID, "New title")
	if !r.Done {
		t.Fatalf("retry did not finish: %+v", r)
	}
	renamed, err := store.TestByID(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if renamed.Title != "New title" {
		t.Fatalf("title = %q", renamed.Title)
	}
}

func TestFinishWithoutDraft(t *testing.T) {
	f, _, _ := newFSM(t)
	if _, err := f.FinishTestCreation(context.Background(), regularID, storage.TestOpen); err == nil {
		t.Fatal("expected error without a draft")
	}
}

func TestCancelMidFlow(t *testing.T) {
	f, _, _ := newFSM(t)
	if _, err := f.StartTestCreation(regularID); err != nil {
		t.Fatal(err)
	}
	feed(t, f, regularID, "Doomed test")
	r := f.Cancel(regularID)
	if !r.Done {
		t.Fatal("cancel reply not done")
	}
	if f.InWizard(regularID) {
		t.Fatal("wizard survived cancel")
	}
	if _, handled, _ := f.HandleText(context.Background(), regularID, "3"); handled {
		t.Fatal("text handled after cancel")
	}
}

func TestEditTitleFlow(t *testing.T) {
	f, store, _ := newFSM(t)
	ctx := context.Background()
	created, err := store.CreateTest(ctx, "Old title", storage.TestOpen, []storage.Question{
		{Text: "q", Options: []string{"a", "b"}, CorrectAnswer: 0},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.StartTestEdit(ctx, regularID, created.ID); err != nil {
		t.Fatal(err)
	}
	r := feed(t, f, regularID, "New title")
	if !r.Done {
		t.Fatalf("edit not finished: %+v", r)
	}
	got, err := store.TestByID(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "New title" {
		t.Fatalf("title = %q", got.Title)
	}
}

func TestAdminWizardStaysOnRejection(t *testing.T) {
	f, _, _ := newFSM(t)
	if _, err := f.StartAdminRemove(superID); err != nil {
		t.Fatal(err)
	}
	// Removing a super admin is rejected but the wizard stays open.
	r := feed(t, f, superID, fmt.Sprint(superID))
	if r.Done {
		t.Fatal("wizard closed on protected removal")
	}
	if !f.InWizard(superID) {
		t.Fatal("wizard state lost")
	}
	r = feed(t, f, superID, "not-a-number")
	if r.Done {
		t.Fatal("wizard closed on garbage input")
	}
}

func TestAdminAddFlow(t *testing.T) {
	f, _, _ := newFSM(t)
	if _, err := f.StartAdminAdd(superID); err != nil {
		t.Fatal(err)
	}
	r := feed(t, f, superID, "12345")
	if !r.Done {
		t.Fatalf("grant not final: %+v", r)
	}
	if f.InWizard(superID) {
		t.Fatal("wizard not cleared")
	}
}

type fakeResolver struct {
	info ChannelInfo
	err  error
}

func (r *fakeResolver) ResolveChannel(context.Context, string) (ChannelInfo, error) {
	return r.info, r.err
}

func TestChannelAddFlow(t *testing.T) {
	f, store, _ := newFSM(t)
	ctx := context.Background()
	resolver := &fakeResolver{err: errors.New("chat not found")}
	f.SetResolver(resolver)
	if _, err := f.StartChannelAdd(regularID); err != nil {
		t.Fatal(err)
	}
	// Failed resolve keeps the wizard open.
	r := feed(t, f, regularID, "@missing")
	if r.Done || !f.InWizard(regularID) {
		t.Fatal("resolve failure closed the wizard")
	}
	// Non-channel chats are rejected the same way.
	resolver.err = nil
	resolver.info = ChannelInfo{ID: 5, Name: "Group", Type: "supergroup"}
	r = feed(t, f, regularID, "@group")
	if r.Done {
		t.Fatal("non-channel chat accepted")
	}
	resolver.info = ChannelInfo{ID: -100500, Name: "News", Username: "newschan", Type: "channel"}
	r = feed(t, f, regularID, "@newschan")
	if !r.Done || !strings.Contains(r.Text, "@newschan") {
		t.Fatalf("unexpected reply: %+v", r)
	}
	active, err := store.ActiveChannels(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ID != -100500 {
		t.Fatalf("channel not stored: %+v", active)
	}
}

func TestBroadcastTally(t *testing.T) {
	f, store, _ := newFSM(t)
	ctx := context.Background()
	for i := int64(1); i <= 3; i++ {
		if err := store.EnsureUser(ctx, i, fmt.Sprintf("u%d", i), "User"); err != nil {
			t.Fatal(err)
		}
	}
	f.broadcastDelay = 0
	if _, err := f.StartBroadcast(superID); err != nil {
		t.Fatal(err)
	}
	report, err := f.Broadcast(ctx, superID, func(_ context.Context, userID int64) error {
		if userID == 2 {
			return errors.New("blocked by user")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if report.Delivered != 2 || report.Failed != 1 {
		t.Fatalf("report = %+v", report)
	}
	if f.InWizard(superID) {
		t.Fatal("broadcast wizard not cleared")
	}
	// A second run without re-entering the wizard is rejected.
	if _, err := f.Broadcast(ctx, superID, func(context.Context, int64) error { return nil }); err == nil {
		t.Fatal("broadcast without wizard state succeeded")
	}
}
