package bot

import (
	tg "github.com/feyalabs/quizbot/core/telegram"
	"github.com/feyalabs/quizbot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// Menu button labels. They double as routing keys for text messages.
const (
	btnTests    = "📝 Tests"
	btnAttempts = "📊 My attempts"
	btnAbout    = "ℹ️ About"

	btnBroadcast  = "📣 Broadcast"
	btnNewTest    = "🧩 New test"
	btnAdminTests = "📚 Manage tests"
	btnResults    = "📈 Results"
	btnChannels   = "📡 Channels"
	btnUsers      = "👥 Users"
	btnAdmins     = "👑 Admins"
	btnBack       = "⬅️ Back"
)

func mainMenu() *tele.ReplyMarkup {
	return keyboard.ReplyButtons(
		[]string{btnTests, btnAttempts},
		[]string{btnAbout},
	)
}

func adminMenu(super bool) *tele.ReplyMarkup {
	rows := [][]string{
		{btnNewTest, btnAdminTests},
		{btnBroadcast, btnResults},
		{btnChannels, btnUsers},
	}
	if super {
		rows = append(rows, []string{btnAdmins, btnBack})
	} else {
		rows = append(rows, []string{btnBack})
	}
	return keyboard.ReplyButtons(rows...)
}

// menuFor picks the default keyboard for a user: the admin panel for
// admins, the main menu for everyone else.
func (a *App) menuFor(userID int64) *tele.ReplyMarkup {
	if a.admins.IsAdmin(userID) {
		return adminMenu(a.admins.IsSuperAdmin(userID))
	}
	return mainMenu()
}

func (a *App) registerMenus(reg *tg.Registry) {
	reg.RegisterText(btnTests, a.handleTests)
	reg.RegisterText(btnAttempts, a.handleAttempts)
	reg.RegisterText(btnAbout, a.handleAbout)

	reg.RegisterText(btnBroadcast, a.adminOnly(a.handleBroadcastEntry))
	reg.RegisterText(btnNewTest, a.adminOnly(a.handleNewTestEntry))
	reg.RegisterText(btnAdminTests, a.adminOnly(a.handleAdminTests))
	reg.RegisterText(btnResults, a.adminOnly(a.handleResults))
	reg.RegisterText(btnChannels, a.adminOnly(a.handleChannels))
	reg.RegisterText(btnUsers, a.adminOnly(a.handleUsers))
	reg.RegisterText(btnAdmins, a.superOnly(a.handleAdmins))
	reg.RegisterText(btnBack, a.handleBack)
}

func (a *App) handleBack(c tele.Context) error {
	return sendMenu(c, "Main menu.", mainMenu())
}
