package bot

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/feyalabs/quizbot/core/admin"
	"github.com/feyalabs/quizbot/core/storage"

	tele "gopkg.in/telebot.v4"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	ctx := context.Background()
	store, err := storage.Open(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	admins, err := admin.Load(ctx, store, []int64{1}, []int64{2})
	if err != nil {
		t.Fatalf("admin.Load: %v", err)
	}
	return &App{store: store, admins: admins}
}

func TestMenuForTiers(t *testing.T) {
	a := newTestApp(t)
	if got := a.menuFor(1); !reflect.DeepEqual(got, adminMenu(true)) {
		t.Errorf("super admin menu = %+v", got)
	}
	if got := a.menuFor(2); !reflect.DeepEqual(got, adminMenu(false)) {
		t.Errorf("static admin menu = %+v", got)
	}
	if got := a.menuFor(3); !reflect.DeepEqual(got, mainMenu()) {
		t.Errorf("plain user menu = %+v", got)
	}
}

// stubContext records the outgoing message of a handler under test.
type stubContext struct {
	tele.Context
	text   string
	markup *tele.ReplyMarkup
}

func (s *stubContext) Send(what interface{}, opts ...interface{}) error {
	s.text, _ = what.(string)
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			s.markup = so.ReplyMarkup
		}
	}
	return nil
}

func TestJoinPromptSkipsPrivateChannelButtons(t *testing.T) {
	a := newTestApp(t)
	c := &stubContext{}
	missing := []storage.Channel{
		{ID: -100, Name: "Private Lounge"},
		{ID: -200, Name: "News", Username: "newschan"},
	}
	if err := a.sendJoinPrompt(c, missing); err != nil {
		t.Fatalf("sendJoinPrompt: %v", err)
	}
	if !strings.Contains(c.text, "Private Lounge") || !strings.Contains(c.text, "News") {
		t.Fatalf("prompt text misses a channel: %q", c.text)
	}
	if c.markup == nil {
		t.Fatal("no keyboard sent")
	}
	rows := c.markup.InlineKeyboard
	// One URL row for the public channel plus the check row. The private
	// channel has no public link, so it gets no button.
	if len(rows) != 2 {
		t.Fatalf("want 2 keyboard rows, got %d: %+v", len(rows), rows)
	}
	if rows[0][0].URL != "https://t.me/newschan" {
		t.Errorf("join button url = %q", rows[0][0].URL)
	}
	if rows[1][0].Unique != "check_channels" {
		t.Errorf("check button = %+v", rows[1][0])
	}
}
