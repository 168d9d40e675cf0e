package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/feyalabs/quizbot/core/quiz"
	"github.com/feyalabs/quizbot/core/storage"
	tghelpers "github.com/feyalabs/quizbot/core/telegram/helpers"
	"github.com/feyalabs/quizbot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

func sendMenu(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	return tghelpers.SendKB(c, text, markup)
}

func senderName(u *tele.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return name
}

func (a *App) handleStart(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if err := a.store.EnsureUser(ctx, sender.ID, sender.Username, senderName(sender)); err != nil {
		return err
	}
	a.engine.Abort(sender.ID)
	a.fsm.Cancel(sender.ID)

	if ok, err := a.gateMembership(ctx, c); err != nil || !ok {
		return err
	}

	greeting := fmt.Sprintf("Welcome, %s! Pick a test below to get started.", senderName(sender))
	if a.admins.IsAdmin(sender.ID) {
		greeting = fmt.Sprintf("Welcome back, %s! The admin panel is below; /cancel aborts any flow.", senderName(sender))
	}
	return sendMenu(c, greeting, a.menuFor(sender.ID))
}

// handleTests lists open tests the user has not attempted yet. With
// exactly one candidate the attempt starts right away.
func (a *App) handleTests(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID := c.Sender().ID
	if ok, err := a.gateMembership(ctx, c); err != nil || !ok {
		return err
	}

	open, err := a.store.OpenTests(ctx)
	if err != nil {
		return err
	}
	attempted, err := a.store.AttemptedTestIDs(ctx, userID)
	if err != nil {
		return err
	}
	available := make([]storage.Test, 0, len(open))
	for _, t := range open {
		if !attempted[t.ID] {
			available = append(available, t)
		}
	}

	switch len(available) {
	case 0:
		return tghelpers.SendText(c, "No tests are available for you right now.")
	case 1:
		return a.beginAttempt(ctx, c, available[0].ID)
	}

	buttons := make([]keyboard.InlineBtn, 0, len(available))
	for _, t := range available {
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   fmt.Sprintf("%s (%d questions)", t.Title, len(t.Questions)),
			Unique: "take_test",
			Data:   fmt.Sprint(t.ID),
		})
	}
	return tghelpers.SendKB(c, "Pick a test:", keyboard.InlineButtons(buttons))
}

func (a *App) beginAttempt(ctx context.Context, c tele.Context, testID int) error {
	userID := c.Sender().ID
	attempted, err := a.store.AttemptedTestIDs(ctx, userID)
	if err != nil {
		return err
	}
	if attempted[testID] {
		return tghelpers.SendText(c, "You have already taken this test.")
	}

	out, err := a.engine.Start(ctx, userID, testID)
	switch {
	case errors.Is(err, quiz.ErrActive):
		return tghelpers.SendText(c, "Finish your current test first, or /cancel it.")
	case errors.Is(err, storage.ErrNotFound):
		return tghelpers.SendText(c, "That test is no longer available.")
	case err != nil:
		return err
	}
	return a.renderOutcome(c, out)
}

// renderOutcome shows the next question or the final score.
func (a *App) renderOutcome(c tele.Context, out quiz.Outcome) error {
	if out.Result != nil {
		r := out.Result
		text := fmt.Sprintf("Done! Correct: %d, wrong: %d. Score: %d%%.", r.Correct, r.Wrong, r.Percentage)
		return sendMenu(c, text, mainMenu())
	}
	p := out.Prompt
	if p == nil {
		return nil
	}
	text := fmt.Sprintf("%s\n\nQuestion %d of %d:\n%s", p.Title, p.Index+1, p.Total, p.Question)
	buttons := make([]keyboard.InlineBtn, 0, len(p.Options))
	for i, opt := range p.Options {
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   fmt.Sprintf("%s. %s", quiz.OptionLabel(i), opt),
			Unique: "quiz_answer",
			Data:   fmt.Sprintf("%d|%d|%d", p.TestID, p.Index, i),
		})
	}
	return tghelpers.SendKB(c, text, keyboard.InlineButtonsNPerRow(buttons, 3))
}

// handleAttempts shows the user's five most recent results.
func (a *App) handleAttempts(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	own, err := a.store.ResultsByUser(ctx, c.Sender().ID)
	if err != nil {
		return err
	}
	if len(own) == 0 {
		return tghelpers.SendText(c, "You have not taken any tests yet.")
	}
	if len(own) > 5 {
		own = own[len(own)-5:]
	}
	var b strings.Builder
	b.WriteString("Your recent attempts:\n")
	for i := len(own) - 1; i >= 0; i-- {
		r := own[i]
		title := fmt.Sprintf("Test #%d", r.TestID)
		if t, err := a.store.TestByID(ctx, r.TestID); err == nil {
			title = t.Title
		}
		fmt.Fprintf(&b, "\n%s — %d%% (%d/%d) on %s", title, r.Percentage, r.Correct, r.Correct+r.Wrong, r.Date)
	}
	return tghelpers.SendText(c, b.String())
}

func (a *App) handleAbout(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	open, err := a.store.OpenTests(ctx)
	if err != nil {
		return err
	}
	users, err := a.store.Users(ctx)
	if err != nil {
		return err
	}
	text := fmt.Sprintf(
		"This bot delivers quizzes straight to your chat.\n\nOpen tests: %d\nParticipants: %d\n\nPick \"%s\" to start.",
		len(open), len(users), btnTests)
	return tghelpers.SendText(c, text)
}
