// Package wizard drives the multi-step admin conversations: broadcast,
// test creation and editing, admin management, and channel registration.
// The FSM is transport-independent: callers feed it text and it returns a
// Reply to render, so the flows are testable without Telegram.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/feyalabs/quizbot/core/admin"
	"github.com/feyalabs/quizbot/core/logger"
	"github.com/feyalabs/quizbot/core/session"
	"github.com/feyalabs/quizbot/core/storage"
)

// ErrPermission reports a wizard entry by a user lacking the required tier.
var ErrPermission = errors.New("wizard: permission denied")

const (
	minQuestions = 1
	maxQuestions = 100
	optionSep    = "|"
)

// Choice is one inline button the reply wants rendered.
type Choice struct {
	Label string
	Key   string
	Data  string
}

// Reply is what the FSM wants shown to the admin after processing input.
// Done marks the wizard as finished (successfully or cancelled).
type Reply struct {
	Text    string
	Choices [][]Choice
	Done    bool
}

// ChannelInfo describes a resolved Telegram channel.
type ChannelInfo struct {
	ID       int64
	Name     string
	Username string
	Type     string
}

// ChannelResolver looks up a channel by @username or numeric id.
type ChannelResolver interface {
	ResolveChannel(ctx context.Context, ref string) (ChannelInfo, error)
}

// Delivery sends the pending broadcast to one recipient.
type Delivery func(ctx context.Context, userID int64) error

// BroadcastReport tallies one broadcast run.
type BroadcastReport struct {
	Delivered int
	Failed    int
}

// FSM holds the admin wizard flows.
type FSM struct {
	store    *storage.Store
	sessions session.Manager
	admins   *admin.Manager
	resolver ChannelResolver

	// delay between broadcast sends, to stay under flood limits.
	broadcastDelay time.Duration
}

// New wires the wizard FSM. resolver may be nil until the transport is up.
func New(store *storage.Store, sessions session.Manager, admins *admin.Manager) *FSM {
	return &FSM{
		store:          store,
		sessions:       sessions,
		admins:         admins,
		broadcastDelay: 25 * time.Millisecond,
	}
}

// SetResolver installs the channel resolver once the transport exists.
func (f *FSM) SetResolver(r ChannelResolver) { f.resolver = r }

// Cancel aborts whatever wizard the user is inside.
func (f *FSM) Cancel(userID int64) Reply {
	f.sessions.ClearWizard(userID)
	return Reply{Text: "Cancelled.", Done: true}
}

// InWizard reports whether the user has an active wizard.
func (f *FSM) InWizard(userID int64) bool {
	return f.sessions.InWizard(userID)
}

// Step returns the user's current wizard step, or StepIdle.
func (f *FSM) Step(userID int64) session.Step {
	st := f.sessions.Get(userID)
	if st.Wizard == nil {
		return session.StepIdle
	}
	return st.Wizard.Step
}

func (f *FSM) requireAdmin(userID int64) error {
	if !f.admins.IsAdmin(userID) {
		return ErrPermission
	}
	return nil
}

func (f *FSM) requireSuper(userID int64) error {
	if !f.admins.IsSuperAdmin(userID) {
		return ErrPermission
	}
	return nil
}

// recheck re-verifies the tier a step needs on every turn, so a grant
// revoked mid-wizard cuts the flow short. Failure clears the wizard.
func (f *FSM) recheck(userID int64, step session.Step) error {
	var err error
	switch step {
	case session.StepAdminAdd, session.StepAdminRemove:
		err = f.requireSuper(userID)
	default:
		err = f.requireAdmin(userID)
	}
	if err != nil {
		f.sessions.ClearWizard(userID)
	}
	return err
}

// StartBroadcast enters the broadcast wizard.
func (f *FSM) StartBroadcast(userID int64) (Reply, error) {
	if err := f.requireAdmin(userID); err != nil {
		return Reply{}, err
	}
	f.sessions.SetWizard(userID, session.WizardState{Step: session.StepBroadcast})
	return Reply{Text: "Send the message to broadcast to all users, or /cancel."}, nil
}

// StartTestCreation enters the test creation wizard.
func (f *FSM) StartTestCreation(userID int64) (Reply, error) {
	if err := f.requireAdmin(userID); err != nil {
		return Reply{}, err
	}
	f.sessions.SetWizard(userID, session.WizardState{
		Step:  session.StepTestTitle,
		Draft: &session.TestDraft{},
	})
	return Reply{Text: "New test. Send the test title, or /cancel."}, nil
}

// StartTestEdit enters the rename wizard for one test.
func (f *FSM) StartTestEdit(ctx context.Context, userID int64, testID int) (Reply, error) {
	if err := f.requireAdmin(userID); err != nil {
		return Reply{}, err
	}
	t, err := f.store.TestByID(ctx, testID)
	if err != nil {
		return Reply{}, err
	}
	f.sessions.SetWizard(userID, session.WizardState{
		Step:       session.StepTestEditTitle,
		EditTestID: testID,
	})
	return Reply{Text: fmt.Sprintf("Editing %q. Send the new title, or /cancel.", t.Title)}, nil
}

// StartAdminAdd enters the admin grant wizard. Super admins only.
func (f *FSM) StartAdminAdd(userID int64) (Reply, error) {
	if err := f.requireSuper(userID); err != nil {
		return Reply{}, err
	}
	f.sessions.SetWizard(userID, session.WizardState{Step: session.StepAdminAdd})
	return Reply{Text: "Send the numeric user id to grant admin, or /cancel."}, nil
}

// StartAdminRemove enters the admin revoke wizard. Super admins only.
func (f *FSM) StartAdminRemove(userID int64) (Reply, error) {
	if err := f.requireSuper(userID); err != nil {
		return Reply{}, err
	}
	f.sessions.SetWizard(userID, session.WizardState{Step: session.StepAdminRemove})
	return Reply{Text: "Send the numeric user id to revoke, or /cancel."}, nil
}

// StartChannelAdd enters the channel registration wizard.
func (f *FSM) StartChannelAdd(userID int64) (Reply, error) {
	if err := f.requireAdmin(userID); err != nil {
		return Reply{}, err
	}
	f.sessions.SetWizard(userID, session.WizardState{Step: session.StepChannelAdd})
	return Reply{Text: "Send the channel @username or id, or /cancel. The bot must be an admin of the channel."}, nil
}

// HandleText feeds one admin text message into the active wizard. The
// second return is false when the user has no active wizard.
func (f *FSM) HandleText(ctx context.Context, userID int64, text string) (Reply, bool, error) {
	st := f.sessions.Get(userID)
	if st.Wizard == nil || st.Wizard.Step == session.StepIdle {
		return Reply{}, false, nil
	}
	w := *st.Wizard
	if err := f.recheck(userID, w.Step); err != nil {
		return Reply{}, true, err
	}
	text = strings.TrimSpace(text)

	var (
		reply Reply
		err   error
	)
	switch w.Step {
	case session.StepBroadcast:
		// The transport intercepts this step via Broadcast to capture
		// the raw message. Reaching here means no deliverer was wired.
		f.sessions.ClearWizard(userID)
		reply = Reply{Text: "Nothing to broadcast.", Done: true}
	case session.StepTestTitle:
		reply, err = f.stepTestTitle(userID, w, text)
	case session.StepTestCount:
		reply, err = f.stepTestCount(userID, w, text)
	case session.StepTestQuestion:
		reply, err = f.stepTestQuestion(userID, w, text)
	case session.StepTestOptions:
		reply, err = f.stepTestOptions(userID, w, text)
	case session.StepTestCorrect:
		reply, err = f.stepTestCorrect(userID, w, text)
	case session.StepTestEditTitle:
		reply, err = f.stepTestEditTitle(ctx, userID, w, text)
	case session.StepAdminAdd:
		reply, err = f.stepAdminAdd(ctx, userID, text)
	case session.StepAdminRemove:
		reply, err = f.stepAdminRemove(ctx, userID, text)
	case session.StepChannelAdd:
		reply, err = f.stepChannelAdd(ctx, userID, text)
	default:
		f.sessions.ClearWizard(userID)
		return Reply{}, false, nil
	}
	if err != nil {
		return Reply{}, true, err
	}
	return reply, true, nil
}

func (f *FSM) stepTestTitle(userID int64, w session.WizardState, text string) (Reply, error) {
	if text == "" {
		return Reply{Text: "The title cannot be empty. Send the test title."}, nil
	}
	w.Draft.Title = text
	w.Step = session.StepTestCount
	f.sessions.SetWizard(userID, w)
	return Reply{Text: fmt.Sprintf("How many questions? (%d-%d)", minQuestions, maxQuestions)}, nil
}

func (f *FSM) stepTestCount(userID int64, w session.WizardState, text string) (Reply, error) {
	n, err := strconv.Atoi(text)
	if err != nil || n < minQuestions || n > maxQuestions {
		return Reply{Text: fmt.Sprintf("Send a number between %d and %d.", minQuestions, maxQuestions)}, nil
	}
	w.Draft.Total = n
	w.Step = session.StepTestQuestion
	f.sessions.SetWizard(userID, w)
	return Reply{Text: fmt.Sprintf("Question 1 of %d. Send the question text.", n)}, nil
}

func (f *FSM) stepTestQuestion(userID int64, w session.WizardState, text string) (Reply, error) {
	if text == "" {
		return Reply{Text: "The question cannot be empty. Send the question text."}, nil
	}
	w.Draft.PendingQuestion = text
	w.Step = session.StepTestOptions
	f.sessions.SetWizard(userID, w)
	return Reply{Text: "Send the answer options separated by | (at least two)."}, nil
}

func (f *FSM) stepTestOptions(userID int64, w session.WizardState, text string) (Reply, error) {
	parts := strings.Split(text, optionSep)
	options := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			options = append(options, p)
		}
	}
	if len(options) < 2 {
		return Reply{Text: "Send at least two options separated by |."}, nil
	}
	w.Draft.PendingOptions = options
	w.Step = session.StepTestCorrect
	f.sessions.SetWizard(userID, w)
	return Reply{Text: fmt.Sprintf("Which option is correct? (1-%d)", len(options))}, nil
}

func (f *FSM) stepTestCorrect(userID int64, w session.WizardState, text string) (Reply, error) {
	n, err := strconv.Atoi(text)
	if err != nil || n < 1 || n > len(w.Draft.PendingOptions) {
		return Reply{Text: fmt.Sprintf("Send a number between 1 and %d.", len(w.Draft.PendingOptions))}, nil
	}
	w.Draft.Questions = append(w.Draft.Questions, storage.Question{
		Text:          w.Draft.PendingQuestion,
		Options:       w.Draft.PendingOptions,
		CorrectAnswer: n - 1,
	})
	w.Draft.PendingQuestion = ""
	w.Draft.PendingOptions = nil

	if len(w.Draft.Questions) < w.Draft.Total {
		w.Step = session.StepTestQuestion
		f.sessions.SetWizard(userID, w)
		return Reply{Text: fmt.Sprintf("Question %d of %d. Send the question text.",
			len(w.Draft.Questions)+1, w.Draft.Total)}, nil
	}

	w.Step = session.StepTestStatus
	f.sessions.SetWizard(userID, w)
	return Reply{
		Text: fmt.Sprintf("All %d questions collected. Publish %q now?", w.Draft.Total, w.Draft.Title),
		Choices: [][]Choice{{
			{Label: "Open", Key: "test_status", Data: "open"},
			{Label: "Closed", Key: "test_status", Data: "closed"},
		}},
	}, nil
}

// FinishTestCreation persists the draft with the chosen status. It is
// invoked from the status callback rather than a text step.
func (f *FSM) FinishTestCreation(ctx context.Context, userID int64, status storage.TestStatus) (storage.Test, error) {
	st := f.sessions.Get(userID)
	if st.Wizard == nil || st.Wizard.Step != session.StepTestStatus || st.Wizard.Draft == nil {
		return storage.Test{}, errors.New("wizard: no draft awaiting status")
	}
	if err := f.recheck(userID, st.Wizard.Step); err != nil {
		return storage.Test{}, err
	}
	created, err := f.store.CreateTest(ctx, st.Wizard.Draft.Title, status, st.Wizard.Draft.Questions)
	if err != nil {
		return storage.Test{}, err
	}
	f.sessions.ClearWizard(userID)
	return created, nil
}

func (f *FSM) stepTestEditTitle(ctx context.Context, userID int64, w session.WizardState, text string) (Reply, error) {
	if text == "" {
		return Reply{Text: "The title cannot be empty. Send the new title."}, nil
	}
	if err := f.store.RenameTest(ctx, w.EditTestID, text); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			f.sessions.ClearWizard(userID)
			return Reply{Text: "That test no longer exists.", Done: true}, nil
		}
		// Write failures keep the wizard open so the admin can retry.
		return Reply{}, err
	}
	f.sessions.ClearWizard(userID)
	return Reply{Text: fmt.Sprintf("Renamed test #%d to %q.", w.EditTestID, text), Done: true}, nil
}

func (f *FSM) stepAdminAdd(ctx context.Context, userID int64, text string) (Reply, error) {
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil || id <= 0 {
		return Reply{Text: "Send a numeric user id."}, nil
	}
	switch err := f.admins.Add(ctx, id); {
	case errors.Is(err, admin.ErrAlreadyAdmin):
		return Reply{Text: fmt.Sprintf("%d is already an admin. Send another id, or /cancel.", id)}, nil
	case err != nil:
		return Reply{}, err
	}
	f.sessions.ClearWizard(userID)
	return Reply{Text: fmt.Sprintf("Granted admin to %d.", id), Done: true}, nil
}

func (f *FSM) stepAdminRemove(ctx context.Context, userID int64, text string) (Reply, error) {
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil || id <= 0 {
		return Reply{Text: "Send a numeric user id."}, nil
	}
	switch err := f.admins.Remove(ctx, id); {
	case errors.Is(err, admin.ErrSuperAdmin), errors.Is(err, admin.ErrStaticAdmin):
		return Reply{Text: fmt.Sprintf("%d cannot be removed at runtime. Send another id, or /cancel.", id)}, nil
	case errors.Is(err, admin.ErrNotAdmin):
		return Reply{Text: fmt.Sprintf("%d holds no removable admin grant. Send another id, or /cancel.", id)}, nil
	case err != nil:
		return Reply{}, err
	}
	f.sessions.ClearWizard(userID)
	return Reply{Text: fmt.Sprintf("Revoked admin from %d.", id), Done: true}, nil
}

func (f *FSM) stepChannelAdd(ctx context.Context, userID int64, text string) (Reply, error) {
	if f.resolver == nil {
		f.sessions.ClearWizard(userID)
		return Reply{Text: "Channel lookup is unavailable right now.", Done: true}, nil
	}
	info, err := f.resolver.ResolveChannel(ctx, text)
	if err != nil {
		return Reply{Text: "Could not find that channel. Send @username or id, or /cancel."}, nil
	}
	if info.Type != "channel" {
		return Reply{Text: "That chat is not a channel. Send @username or id, or /cancel."}, nil
	}
	err = f.store.UpsertChannel(ctx, storage.Channel{
		ID:       info.ID,
		Name:     info.Name,
		Username: info.Username,
	})
	if err != nil {
		return Reply{}, err
	}
	f.sessions.ClearWizard(userID)
	logger.Wizard.InfoContext(ctx, "channel registered",
		"event", "wizard.channel.add", "status", "ok", "channel_id", info.ID, "admin_id", userID)
	return Reply{Text: fmt.Sprintf("Added channel %s.", channelLabel(info)), Done: true}, nil
}

func channelLabel(info ChannelInfo) string {
	if info.Username != "" {
		return "@" + info.Username
	}
	if info.Name != "" {
		return info.Name
	}
	return strconv.FormatInt(info.ID, 10)
}

// Broadcast sends to every known user through deliver, pacing sends and
// isolating per-recipient failures. The admin must be inside the
// broadcast step; the wizard is cleared before sending starts.
func (f *FSM) Broadcast(ctx context.Context, adminID int64, deliver Delivery) (BroadcastReport, error) {
	st := f.sessions.Get(adminID)
	if st.Wizard == nil || st.Wizard.Step != session.StepBroadcast {
		return BroadcastReport{}, errors.New("wizard: no broadcast in progress")
	}
	if err := f.recheck(adminID, st.Wizard.Step); err != nil {
		return BroadcastReport{}, err
	}
	f.sessions.ClearWizard(adminID)

	users, err := f.store.Users(ctx)
	if err != nil {
		return BroadcastReport{}, err
	}
	var report BroadcastReport
	for i, u := range users {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := deliver(ctx, u.ID); err != nil {
			report.Failed++
			logger.Wizard.WarnContext(ctx, "broadcast delivery failed",
				"event", "wizard.broadcast.send", "status", "fail", "user_id", u.ID, "err", err)
		} else {
			report.Delivered++
		}
		if i < len(users)-1 && f.broadcastDelay > 0 {
			select {
			case <-time.After(f.broadcastDelay):
			case <-ctx.Done():
				return report, ctx.Err()
			}
		}
	}
	logger.Wizard.InfoContext(ctx, "broadcast finished",
		"event", "wizard.broadcast", "status", "ok", "admin_id", adminID,
		"delivered", report.Delivered, "failed", report.Failed)
	return report, nil
}
