package bot

import (
	"strings"

	tghelpers "github.com/feyalabs/quizbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Telegram caps messages at 4096 characters; stay well under it so the
// split never lands mid-entity.
const messageChunkLimit = 3500

// sendLong sends text as several messages when it exceeds the chunk limit.
func (a *App) sendLong(c tele.Context, text string) error {
	for _, chunk := range splitMessage(text, messageChunkLimit) {
		if err := tghelpers.SendText(c, chunk); err != nil {
			return err
		}
	}
	return nil
}

// splitMessage breaks text into chunks of at most limit characters,
// preferring line boundaries. A single line longer than the limit is
// split mid-line.
func splitMessage(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		for len(line) > limit {
			if b.Len() > 0 {
				chunks = append(chunks, b.String())
				b.Reset()
			}
			chunks = append(chunks, line[:limit])
			line = line[limit:]
		}
		extra := len(line)
		if b.Len() > 0 {
			extra++ // the newline separator
		}
		if b.Len()+extra > limit {
			chunks = append(chunks, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}
