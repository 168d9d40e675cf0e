package router

import (
	"strings"
	"time"

	"github.com/feyalabs/quizbot/core/logger"
	tghelpers "github.com/feyalabs/quizbot/core/telegram/helpers"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

func handleWithSummary(c tele.Context, handlerName string, start time.Time, fn func() error, extras ...slog.Attr) error {
	tghelpers.WithHandler(c, handlerName)
	err := fn()
	logHandlerSummary(c, handlerName, start, err, extras...)
	return err
}

func logHandlerSummary(c tele.Context, handlerName string, start time.Time, err error, extras ...slog.Attr) {
	ctx := tghelpers.WithHandler(c, handlerName)

	status := "ok"
	if err != nil {
		status = "fail"
	}

	duration := logger.RoundMS(time.Since(start)).Milliseconds()
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", handlerName),
		slog.Int64("duration_ms", duration),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("cause", handlerName),
		)
	}
	if len(extras) > 0 {
		attrs = append(attrs, extras...)
	}
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", attrs...)
}

func normalizeHandlerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	name = strings.TrimPrefix(name, "/")
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ToLower(name)
}
