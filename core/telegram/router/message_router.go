package router

import (
	"strings"
	"time"

	tg "github.com/feyalabs/quizbot/core/telegram"
	"github.com/feyalabs/quizbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Conversation is the conversational state machine text input feeds into.
// Commands never reach it; they are dispatched by endpoint before routing.
type Conversation interface {
	InProgress(userID int64) bool
	HandleText(c tele.Context) error
}

// TextOptions controls fallback behaviour for text updates.
type TextOptions struct {
	UnknownText tele.HandlerFunc
}

// TextRoute builds the handler for plain text updates. Priority order:
// active conversation, registered menu button, text fallback.
func TextRoute(conv Conversation, reg *tg.Registry, opts TextOptions) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		// Slash input inside a conversation is a command, not an answer.
		if conv != nil && conv.InProgress(c.Sender().ID) && !strings.HasPrefix(text, "/") {
			return handleWithSummary(c, "conversation", start, func() error {
				return conv.HandleText(c)
			})
		}

		if reg != nil {
			if h, ok := reg.LookupText(text); ok {
				return handleWithSummary(c, "menu."+normalizeHandlerName(text), start, func() error {
					return h(c)
				})
			}
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, func() error {
				return opts.UnknownText(c)
			})
		}

		logHandlerSummary(c, "unknown_text", start, nil)
		return nil
	}

	return tg.Route{
		Endpoint: tele.OnText,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
