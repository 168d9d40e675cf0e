package bot

import (
	"context"
	"strings"

	"github.com/feyalabs/quizbot/core/logger"
	"github.com/feyalabs/quizbot/core/storage"
	tghelpers "github.com/feyalabs/quizbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// gateMembership enforces the channel subscription gate. It returns true
// when the user may proceed. Lookup failures count as not joined, so an
// unreachable channel never opens the gate by accident.
func (a *App) gateMembership(ctx context.Context, c tele.Context) (bool, error) {
	channels, err := a.store.ActiveChannels(ctx)
	if err != nil {
		return false, err
	}
	if len(channels) == 0 {
		return true, nil
	}

	userID := c.Sender().ID
	if a.admins.IsAdmin(userID) {
		return true, nil
	}

	missing := make([]storage.Channel, 0, len(channels))
	for _, ch := range channels {
		if !a.isMember(ctx, ch.ID, userID) {
			missing = append(missing, ch)
		}
	}
	if len(missing) == 0 {
		return true, nil
	}
	return false, a.sendJoinPrompt(c, missing)
}

func (a *App) isMember(ctx context.Context, channelID, userID int64) bool {
	if a.bot == nil {
		return false
	}
	member, err := a.bot.ChatMemberOf(tele.ChatID(channelID), &tele.User{ID: userID})
	if err != nil {
		logger.TG.WarnContext(ctx, "membership check failed",
			"event", "tg.member_check", "status", "fail", "channel_id", channelID, "user_id", userID, "err", err)
		return false
	}
	switch member.Role {
	case tele.Creator, tele.Administrator, tele.Member:
		return true
	}
	return false
}

func (a *App) sendJoinPrompt(c tele.Context, missing []storage.Channel) error {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, 0, len(missing)+1)
	var b strings.Builder
	b.WriteString("Join the channels below, then press Check.")
	for _, ch := range missing {
		label := ch.Name
		if label == "" {
			label = "@" + ch.Username
		}
		b.WriteString("\n• " + label)
		// Private channels registered by id have no public link.
		if ch.Username == "" {
			continue
		}
		url := "https://t.me/" + ch.Username
		inline = append(inline, []tele.InlineButton{*markup.URL("Join "+label, url).Inline()})
	}
	inline = append(inline, []tele.InlineButton{*markup.Data("✅ Check", "check_channels").Inline()})
	markup.InlineKeyboard = inline
	return tghelpers.SendKB(c, b.String(), markup)
}

func (a *App) handleCheckChannels(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	ok, err := a.gateMembership(ctx, c)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return sendMenu(c, "You are all set. Pick a test below.", mainMenu())
}
