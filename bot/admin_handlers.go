package bot

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/feyalabs/quizbot/core/storage"
	tghelpers "github.com/feyalabs/quizbot/core/telegram/helpers"
	"github.com/feyalabs/quizbot/core/telegram/keyboard"
	"github.com/feyalabs/quizbot/core/wizard"

	tele "gopkg.in/telebot.v4"
)

func (a *App) handleAdminMenu(c tele.Context) error {
	super := a.admins.IsSuperAdmin(c.Sender().ID)
	return sendMenu(c, "Admin panel.", adminMenu(super))
}

func (a *App) handleBroadcastEntry(c tele.Context) error {
	reply, err := a.fsm.StartBroadcast(c.Sender().ID)
	if err != nil {
		return a.wizardEntryError(c, err)
	}
	return a.sendReply(c, reply)
}

func (a *App) handleNewTestEntry(c tele.Context) error {
	reply, err := a.fsm.StartTestCreation(c.Sender().ID)
	if err != nil {
		return a.wizardEntryError(c, err)
	}
	return a.sendReply(c, reply)
}

func (a *App) wizardEntryError(c tele.Context, err error) error {
	if errors.Is(err, wizard.ErrPermission) {
		return tghelpers.SendText(c, "You are not allowed to do that.")
	}
	return err
}

// handleAdminTests lists every test with its manage buttons.
func (a *App) handleAdminTests(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	tests, err := a.store.Tests(ctx)
	if err != nil {
		return err
	}
	if len(tests) == 0 {
		return tghelpers.SendText(c, "No tests yet. Create one with "+btnNewTest+".")
	}
	super := a.admins.IsSuperAdmin(c.Sender().ID)
	for _, t := range tests {
		text := fmt.Sprintf("#%d %s — %s, %d questions, created %s",
			t.ID, t.Title, t.Status, len(t.Questions), t.CreatedAt)
		id := fmt.Sprint(t.ID)
		toggleLabel := "Close"
		if t.Status == storage.TestClosed {
			toggleLabel = "Open"
		}
		row := []keyboard.InlineBtn{
			{Text: toggleLabel, Unique: "test_toggle", Data: id},
			{Text: "Rename", Unique: "test_edit", Data: id},
			{Text: "Delete", Unique: "test_delete", Data: id},
		}
		if super {
			row = append(row, keyboard.InlineBtn{Text: "Answers", Unique: "test_answers", Data: id})
		}
		if err := tghelpers.SendKB(c, text, keyboard.InlineButtonsRows(row)); err != nil {
			return err
		}
	}
	return nil
}

// handleResults shows every recorded attempt grouped by test.
func (a *App) handleResults(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	results, err := a.store.Results(ctx)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return tghelpers.SendText(c, "No results recorded yet.")
	}

	byTest := make(map[int][]storage.Result)
	latest := make(map[int]string)
	for _, r := range results {
		byTest[r.TestID] = append(byTest[r.TestID], r)
		if r.Date > latest[r.TestID] {
			latest[r.TestID] = r.Date
		}
	}
	ids := make([]int, 0, len(byTest))
	for id := range byTest {
		ids = append(ids, id)
	}
	// Dates are yyyy-mm-dd, so string order is chronological.
	sort.Slice(ids, func(i, j int) bool {
		if latest[ids[i]] != latest[ids[j]] {
			return latest[ids[i]] > latest[ids[j]]
		}
		return ids[i] < ids[j]
	})

	var b strings.Builder
	for _, id := range ids {
		title := fmt.Sprintf("Test #%d", id)
		if t, err := a.store.TestByID(ctx, id); err == nil {
			title = t.Title
		}
		fmt.Fprintf(&b, "%s:\n", title)
		group := byTest[id]
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Percentage != group[j].Percentage {
				return group[i].Percentage > group[j].Percentage
			}
			return group[i].Date > group[j].Date
		})
		for _, r := range group {
			name := r.FullName
			if name == "" {
				name = r.Username
			}
			fmt.Fprintf(&b, "  %s — %d%% (%d/%d) on %s\n", name, r.Percentage, r.Correct, r.Correct+r.Wrong, r.Date)
		}
		b.WriteString("\n")
	}
	return a.sendLong(c, b.String())
}

func (a *App) handleUsers(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	users, err := a.store.Users(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		return tghelpers.SendText(c, "No users yet.")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Users: %d\n", len(users))
	for _, u := range users {
		name := u.FullName
		if u.Username != "" {
			name += " (@" + u.Username + ")"
		}
		fmt.Fprintf(&b, "\n%d — %s, joined %s, tests: %d", u.ID, name, u.JoinedDate, u.TestsWorked)
	}
	return a.sendLong(c, b.String())
}

func (a *App) handleChannels(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	all, err := a.store.Channels(ctx)
	if err != nil {
		return err
	}
	active := make([]storage.Channel, 0, len(all))
	for _, ch := range all {
		if ch.Status == storage.ChannelActive {
			active = append(active, ch)
		}
	}
	addBtn := keyboard.InlineBtn{Text: "➕ Add channel", Unique: "channels_add"}
	if len(active) == 0 {
		return tghelpers.SendKB(c, "No gating channels configured.",
			keyboard.InlineButtons([]keyboard.InlineBtn{addBtn}))
	}
	rows := make([][]keyboard.InlineBtn, 0, len(active)+1)
	for _, ch := range active {
		label := ch.Name
		if label == "" {
			label = "@" + ch.Username
		}
		rows = append(rows, []keyboard.InlineBtn{
			{Text: "🗑 " + label, Unique: "channel_remove", Data: fmt.Sprint(ch.ID)},
		})
	}
	rows = append(rows, []keyboard.InlineBtn{addBtn})
	text := fmt.Sprintf("Gating channels: %d active, %d inactive. Tap to remove:",
		len(active), len(all)-len(active))
	return tghelpers.SendKB(c, text, keyboard.InlineButtonsRows(rows...))
}

func (a *App) handleAdmins(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	var b strings.Builder
	b.WriteString("Admins:\n")
	for _, e := range a.admins.List() {
		fmt.Fprintf(&b, "\n%d — %s", e.ID, e.Tier)
		if u, err := a.store.UserByID(ctx, e.ID); err == nil {
			name := u.FullName
			if u.Username != "" {
				name += " (@" + u.Username + ")"
			}
			b.WriteString(" — " + name)
		}
	}
	markup := keyboard.InlineButtonsRows([]keyboard.InlineBtn{
		{Text: "➕ Grant", Unique: "admins_add"},
		{Text: "➖ Revoke", Unique: "admins_remove"},
	})
	return tghelpers.SendKB(c, b.String(), markup)
}
