// Package bot wires the quiz bot application: storage, sessions, admin
// tiers, the quiz engine, and the admin wizards behind the Telegram
// transport.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/feyalabs/quizbot/core/admin"
	coreconfig "github.com/feyalabs/quizbot/core/config"
	"github.com/feyalabs/quizbot/core/logger"
	"github.com/feyalabs/quizbot/core/quiz"
	"github.com/feyalabs/quizbot/core/session"
	"github.com/feyalabs/quizbot/core/storage"
	tg "github.com/feyalabs/quizbot/core/telegram"
	"github.com/feyalabs/quizbot/core/telegram/commands"
	tghelpers "github.com/feyalabs/quizbot/core/telegram/helpers"
	"github.com/feyalabs/quizbot/core/telegram/middleware"
	"github.com/feyalabs/quizbot/core/telegram/router"
	"github.com/feyalabs/quizbot/core/wizard"

	tele "gopkg.in/telebot.v4"
)

// App holds every component of the running bot.
type App struct {
	cfg      *coreconfig.Config
	store    *storage.Store
	sessions session.Manager
	admins   *admin.Manager
	engine   *quiz.Engine
	fsm      *wizard.FSM

	// bot is set once the transport starts, via OnStart.
	bot *tele.Bot
}

// NewApp assembles the application from configuration.
func NewApp(ctx context.Context, cfg *coreconfig.Config) (*App, error) {
	store, err := storage.Open(ctx, cfg.Storage.Dir)
	if err != nil {
		return nil, fmt.Errorf("bot: open storage: %w", err)
	}
	admins, err := admin.Load(ctx, store, cfg.Admins.SuperAdminIDs, cfg.Admins.AdminIDs)
	if err != nil {
		return nil, fmt.Errorf("bot: load admins: %w", err)
	}
	sessions := session.NewManager()
	app := &App{
		cfg:      cfg,
		store:    store,
		sessions: sessions,
		admins:   admins,
		engine:   quiz.NewEngine(store, sessions),
		fsm:      wizard.New(store, sessions, admins),
	}
	return app, nil
}

// TelegramRunOptions builds the transport wiring for tg.RunTelegram.
func (a *App) TelegramRunOptions() tg.RunOptions {
	reg := tg.NewRegistry()
	a.registerCommands(reg)
	a.registerMenus(reg)
	a.registerCallbacks(reg)
	reg.SetTextFallback(a.handleUnknownText)

	routes := []tg.Route{
		router.TextRoute(conversation{app: a}, reg, router.TextOptions{}),
		router.CallbackRoute(reg, router.CallbackOptions{}),
	}

	return tg.RunOptions{
		Config:      a.cfg,
		Registry:    reg,
		Middlewares: tg.DefaultMiddlewares(a.cfg, nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt tg.Runtime) error {
			a.bot = rt.Bot
			a.fsm.SetResolver(telebotResolver{bot: rt.Bot})
			logger.App.InfoContext(ctx, "bot online", "event", "app.start", "status", "ok")
			return nil
		},
		OnStop: func(ctx context.Context, _ tg.Runtime) error {
			logger.App.InfoContext(ctx, "bot stopping", "event", "app.stop", "status", "ok")
			return nil
		},
	}
}

func (a *App) registerCommands(reg *tg.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Open the main menu",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     a.handleCancel,
		Description: "Abort the current action",
	})
	reg.RegisterCommand("/admin", commands.Command{
		Handler:     a.adminOnly(a.handleAdminMenu),
		Description: "Open the admin panel",
		AdminOnly:   true,
		Hidden:      true,
	})
}

func (a *App) adminOnly(h tele.HandlerFunc) tele.HandlerFunc {
	return middleware.WithAdminCheck(middleware.AccessOptions{
		Checker: a.admins,
		OnReject: func(c tele.Context) error {
			return tghelpers.SendText(c, "This command is for admins only.")
		},
	}, h)
}

func (a *App) superOnly(h tele.HandlerFunc) tele.HandlerFunc {
	return middleware.WithSuperAdminCheck(middleware.AccessOptions{
		Checker: a.admins,
		OnReject: func(c tele.Context) error {
			return tghelpers.SendText(c, "This action is for super admins only.")
		},
	}, h)
}

// conversation adapts the quiz and wizard state machines to the text router.
type conversation struct {
	app *App
}

func (cv conversation) InProgress(userID int64) bool {
	return cv.app.sessions.InQuiz(userID) || cv.app.sessions.InWizard(userID)
}

func (cv conversation) HandleText(c tele.Context) error {
	a := cv.app
	userID := c.Sender().ID
	ctx := tghelpers.BuildContext(c)

	// Attempts are answered through buttons; text during one is noise.
	if a.sessions.InQuiz(userID) {
		return tghelpers.SendText(c, "Use the answer buttons to continue, or /cancel to abort.")
	}

	if a.fsm.Step(userID) == session.StepBroadcast {
		return a.runBroadcast(ctx, c)
	}

	reply, handled, err := a.fsm.HandleText(ctx, userID, c.Text())
	if errors.Is(err, wizard.ErrPermission) {
		return tghelpers.SendKB(c, "You are not allowed to do that anymore.", mainMenu())
	}
	if err != nil {
		return err
	}
	if !handled {
		return nil
	}
	return a.sendReply(c, reply)
}

// runBroadcast copies the admin's message to every known user.
func (a *App) runBroadcast(ctx context.Context, c tele.Context) error {
	msg := c.Message()
	if msg == nil {
		return nil
	}
	report, err := a.fsm.Broadcast(ctx, c.Sender().ID, func(_ context.Context, userID int64) error {
		_, err := a.bot.Copy(tele.ChatID(userID), msg)
		return err
	})
	if err != nil {
		return err
	}
	return tghelpers.SendText(c, fmt.Sprintf("Broadcast done: %d delivered, %d failed.",
		report.Delivered, report.Failed))
}

// sendReply renders a wizard reply, attaching inline choices when present.
func (a *App) sendReply(c tele.Context, r wizard.Reply) error {
	if r.Text == "" {
		return nil
	}
	if len(r.Choices) == 0 {
		return tghelpers.SendText(c, r.Text)
	}
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, 0, len(r.Choices))
	for _, row := range r.Choices {
		btns := make([]tele.InlineButton, 0, len(row))
		for _, ch := range row {
			btns = append(btns, *markup.Data(ch.Label, ch.Key, ch.Data).Inline())
		}
		inline = append(inline, btns)
	}
	markup.InlineKeyboard = inline
	return tghelpers.SendKB(c, r.Text, markup)
}

func (a *App) handleUnknownText(c tele.Context) error {
	return tghelpers.SendText(c, "I did not understand that. Use the menu below or /start.")
}

func (a *App) handleCancel(c tele.Context) error {
	userID := c.Sender().ID
	a.engine.Abort(userID)
	reply := a.fsm.Cancel(userID)
	return tghelpers.SendKB(c, reply.Text, a.menuFor(userID))
}

// telebotResolver looks channels up through the live bot connection.
type telebotResolver struct {
	bot *tele.Bot
}

func (r telebotResolver) ResolveChannel(_ context.Context, ref string) (wizard.ChannelInfo, error) {
	ref = strings.TrimSpace(ref)
	var (
		chat *tele.Chat
		err  error
	)
	if id, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil {
		chat, err = r.bot.ChatByID(id)
	} else {
		if !strings.HasPrefix(ref, "@") {
			ref = "@" + ref
		}
		chat, err = r.bot.ChatByUsername(ref)
	}
	if err != nil {
		return wizard.ChannelInfo{}, err
	}
	if chat == nil {
		return wizard.ChannelInfo{}, errors.New("bot: chat lookup returned nothing")
	}
	return wizard.ChannelInfo{
		ID:       chat.ID,
		Name:     chat.Title,
		Username: chat.Username,
		Type:     string(chat.Type),
	}, nil
}
