package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/feyalabs/quizbot/core/quiz"
	"github.com/feyalabs/quizbot/core/storage"
	tg "github.com/feyalabs/quizbot/core/telegram"
	"github.com/feyalabs/quizbot/core/telegram/callbacks"
	tghelpers "github.com/feyalabs/quizbot/core/telegram/helpers"
	"github.com/feyalabs/quizbot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

func (a *App) registerCallbacks(reg *tg.Registry) {
	_ = reg.RegisterCallback("take_test", a.cbTakeTest)
	_ = reg.RegisterCallback("quiz_answer", a.cbQuizAnswer)
	_ = reg.RegisterCallback("check_channels", a.handleCheckChannels)

	_ = reg.RegisterCallback("test_status", a.adminOnly(a.cbTestStatus))
	_ = reg.RegisterCallback("test_toggle", a.adminOnly(a.cbTestToggle))
	_ = reg.RegisterCallback("test_edit", a.adminOnly(a.cbTestEdit))
	_ = reg.RegisterCallback("test_delete", a.adminOnly(a.cbTestDelete))
	_ = reg.RegisterCallback("test_delete_confirm", a.adminOnly(a.cbTestDeleteConfirm))
	_ = reg.RegisterCallback("test_delete_cancel", a.adminOnly(a.cbTestDeleteCancel))
	_ = reg.RegisterCallback("test_answers", a.superOnly(a.cbTestAnswers))

	_ = reg.RegisterCallback("admins_add", a.superOnly(a.cbAdminsAdd))
	_ = reg.RegisterCallback("admins_remove", a.superOnly(a.cbAdminsRemove))
	_ = reg.RegisterCallback("channels_add", a.adminOnly(a.cbChannelsAdd))
	_ = reg.RegisterCallback("channel_remove", a.adminOnly(a.cbChannelRemove))
}

func (a *App) cbTakeTest(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	testID, err := callbacks.PayloadInt(c)
	if err != nil {
		return tghelpers.SendText(c, "Broken button, try the menu again.")
	}
	if ok, err := a.gateMembership(ctx, c); err != nil || !ok {
		return err
	}
	return a.beginAttempt(ctx, c, testID)
}

func (a *App) cbQuizAnswer(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	parts, err := callbacks.PayloadInts(c, "|")
	if err != nil || len(parts) != 3 {
		return nil
	}
	out, matched, err := a.engine.Answer(ctx, c.Sender().ID, parts[0], parts[1], parts[2])
	if errors.Is(err, storage.ErrNotFound) {
		return tghelpers.SendText(c, "This test was removed. The attempt is cancelled.")
	}
	if err != nil {
		return err
	}
	if !matched {
		// Stale tap on an old question's buttons.
		return nil
	}
	return a.renderOutcome(c, out)
}

// cbTestStatus finishes the creation wizard with the chosen status.
func (a *App) cbTestStatus(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	status := storage.TestClosed
	if callbacks.CallbackPayload(c) == "open" {
		status = storage.TestOpen
	}
	created, err := a.fsm.FinishTestCreation(ctx, c.Sender().ID, status)
	if err != nil {
		return tghelpers.SendText(c, "There is no draft to publish. Start over with "+btnNewTest+".")
	}
	super := a.admins.IsSuperAdmin(c.Sender().ID)
	text := fmt.Sprintf("Created test #%d %q (%s) with %d questions.",
		created.ID, created.Title, created.Status, len(created.Questions))
	return sendMenu(c, text, adminMenu(super))
}

func (a *App) cbTestToggle(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	id, err := callbacks.PayloadInt(c)
	if err != nil {
		return nil
	}
	status, err := a.store.ToggleTestStatus(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return tghelpers.SendText(c, "That test no longer exists.")
	}
	if err != nil {
		return err
	}
	return tghelpers.SendText(c, fmt.Sprintf("Test #%d is now %s.", id, status))
}

func (a *App) cbTestEdit(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	id, err := callbacks.PayloadInt(c)
	if err != nil {
		return nil
	}
	reply, err := a.fsm.StartTestEdit(ctx, c.Sender().ID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return tghelpers.SendText(c, "That test no longer exists.")
	}
	if err != nil {
		return a.wizardEntryError(c, err)
	}
	return a.sendReply(c, reply)
}

func (a *App) cbTestDelete(c tele.Context) error {
	id, err := callbacks.PayloadInt(c)
	if err != nil {
		return nil
	}
	markup := keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "Yes, delete", Unique: "test_delete_confirm", Data: fmt.Sprint(id)},
		{Text: "Keep it", Unique: "test_delete_cancel"},
	})
	return tghelpers.SendKB(c, fmt.Sprintf("Delete test #%d? Recorded results are kept.", id), markup)
}

func (a *App) cbTestDeleteConfirm(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	id, err := callbacks.PayloadInt(c)
	if err != nil {
		return nil
	}
	if err := a.store.DeleteTest(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return tghelpers.EditOrSend(c, "That test was already gone.")
		}
		return err
	}
	return tghelpers.EditOrSend(c, fmt.Sprintf("Test #%d deleted.", id))
}

func (a *App) cbTestDeleteCancel(c tele.Context) error {
	return tghelpers.EditOrSend(c, "Deletion cancelled.")
}

// cbTestAnswers shows the full answer key of a test. Super admins only.
func (a *App) cbTestAnswers(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	id, err := callbacks.PayloadInt(c)
	if err != nil {
		return nil
	}
	t, err := a.store.TestByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return tghelpers.SendText(c, "That test no longer exists.")
	}
	if err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Answer key for %q:\n", t.Title)
	for i, q := range t.Questions {
		fmt.Fprintf(&b, "\n%d. %s\n   ✔ %s. %s", i+1, q.Text, quiz.OptionLabel(q.CorrectAnswer), q.Options[q.CorrectAnswer])
	}
	return a.sendLong(c, b.String())
}

func (a *App) cbAdminsAdd(c tele.Context) error {
	reply, err := a.fsm.StartAdminAdd(c.Sender().ID)
	if err != nil {
		return a.wizardEntryError(c, err)
	}
	return a.sendReply(c, reply)
}

func (a *App) cbAdminsRemove(c tele.Context) error {
	reply, err := a.fsm.StartAdminRemove(c.Sender().ID)
	if err != nil {
		return a.wizardEntryError(c, err)
	}
	return a.sendReply(c, reply)
}

func (a *App) cbChannelsAdd(c tele.Context) error {
	reply, err := a.fsm.StartChannelAdd(c.Sender().ID)
	if err != nil {
		return a.wizardEntryError(c, err)
	}
	return a.sendReply(c, reply)
}

func (a *App) cbChannelRemove(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	id, err := callbacks.PayloadInt64(c)
	if err != nil {
		return nil
	}
	if err := a.store.DeactivateChannel(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return tghelpers.SendText(c, "That channel was not in the gating set.")
		}
		return err
	}
	return tghelpers.SendText(c, "Channel removed from the gating set.")
}
