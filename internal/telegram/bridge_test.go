package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/elkhov/shopadvisor/internal/dispatch"
)

type sentMessage struct {
	chatID int64
	text   string
	markup any
}

type fakeAPI struct {
	updates [][]Update
	sent    []sentMessage
	actions []string
}

func (f *fakeAPI) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	if len(f.updates) == 0 {
		return nil, context.Canceled
	}
	batch := f.updates[0]
	f.updates = f.updates[1:]
	return batch, nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, chatID int64, text string, replyMarkup any) error {
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text, markup: replyMarkup})
	return nil
}

func (f *fakeAPI) SendChatAction(ctx context.Context, chatID int64, action string) error {
	f.actions = append(f.actions, action)
	return nil
}

type fakeHandler struct {
	reply  string
	err    error
	calls  []string
	lastID int64
	meta   dispatch.UserMeta
}

func (f *fakeHandler) Handle(ctx context.Context, userID int64, meta dispatch.UserMeta, text string) (string, error) {
	f.calls = append(f.calls, text)
	f.lastID = userID
	f.meta = meta
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type upsertedUser struct {
	id                            int64
	username, firstName, lastName string
}

type fakeUsers struct {
	upserted []upsertedUser
}

func (f *fakeUsers) UpsertUser(id int64, username, firstName, lastName string) error {
	f.upserted = append(f.upserted, upsertedUser{id, username, firstName, lastName})
	return nil
}

func textUpdate(id int64, text string) Update {
	return Update{
		UpdateID: id,
		Message: &Message{
			MessageID: id,
			From:      &User{ID: 7, Username: "ivan", FirstName: "Иван", LastName: "Петров"},
			Chat:      Chat{ID: 7},
			Text:      text,
		},
	}
}

func TestStartShowsWelcomeWithKeyboard(t *testing.T) {
	api := &fakeAPI{}
	handler := &fakeHandler{}
	users := &fakeUsers{}
	bridge := NewBridge(api, handler, users, time.Second, nil)

	bridge.HandleUpdate(context.Background(), textUpdate(1, "/start"))

	if len(api.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(api.sent))
	}
	if !strings.Contains(api.sent[0].text, "бот-консультант") {
		t.Errorf("welcome text missing: %q", api.sent[0].text)
	}
	markup, ok := api.sent[0].markup.(ReplyKeyboardMarkup)
	if !ok {
		t.Fatalf("markup = %T, want ReplyKeyboardMarkup", api.sent[0].markup)
	}
	if len(markup.Keyboard) != 2 || len(markup.Keyboard[0]) != 2 {
		t.Errorf("unexpected keyboard layout: %+v", markup.Keyboard)
	}
	if len(handler.calls) != 0 {
		t.Errorf("handler should not be called for /start, got %v", handler.calls)
	}
	if len(users.upserted) != 1 || users.upserted[0].firstName != "Иван" {
		t.Errorf("user not recorded: %+v", users.upserted)
	}
}

func TestMenuButtonsAnswerWithoutHandler(t *testing.T) {
	buttons := map[string]string{
		menuConsult:  "какой товар",
		menuFAQ:      "Частые вопросы",
		menuContacts: "Контакты",
		menuOrder:    "оформить заказ",
	}
	for button, want := range buttons {
		api := &fakeAPI{}
		handler := &fakeHandler{}
		bridge := NewBridge(api, handler, nil, time.Second, nil)

		bridge.HandleUpdate(context.Background(), textUpdate(1, button))

		if len(api.sent) != 1 {
			t.Fatalf("%s: sent %d messages, want 1", button, len(api.sent))
		}
		if !strings.Contains(api.sent[0].text, want) {
			t.Errorf("%s: reply %q does not contain %q", button, api.sent[0].text, want)
		}
		if len(handler.calls) != 0 {
			t.Errorf("%s: handler should not be called", button)
		}
	}
}

func TestFreeFormMessageRoutedToHandler(t *testing.T) {
	api := &fakeAPI{}
	handler := &fakeHandler{reply: "Советую модель X."}
	bridge := NewBridge(api, handler, nil, time.Second, nil)

	bridge.HandleUpdate(context.Background(), textUpdate(1, "Посоветуй смартфон"))

	if len(handler.calls) != 1 || handler.calls[0] != "Посоветуй смартфон" {
		t.Fatalf("handler calls = %v", handler.calls)
	}
	if handler.lastID != 7 {
		t.Errorf("userID = %d, want 7", handler.lastID)
	}
	if handler.meta.Username != "ivan" || handler.meta.FirstName != "Иван" || handler.meta.LastName != "Петров" {
		t.Errorf("meta = %+v", handler.meta)
	}
	if len(api.actions) != 1 || api.actions[0] != "typing" {
		t.Errorf("actions = %v, want one typing action", api.actions)
	}
	if len(api.sent) != 1 || api.sent[0].text != "Советую модель X." {
		t.Errorf("sent = %+v", api.sent)
	}
}

func TestHandlerErrorSendsApology(t *testing.T) {
	api := &fakeAPI{}
	handler := &fakeHandler{err: errors.New("history unavailable")}
	bridge := NewBridge(api, handler, nil, time.Second, nil)

	bridge.HandleUpdate(context.Background(), textUpdate(1, "вопрос"))

	if len(api.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(api.sent))
	}
	if api.sent[0].text != apologyText {
		t.Errorf("reply = %q, want apology", api.sent[0].text)
	}
}

func TestNonTextUpdatesIgnored(t *testing.T) {
	api := &fakeAPI{}
	handler := &fakeHandler{}
	bridge := NewBridge(api, handler, nil, time.Second, nil)

	bridge.HandleUpdate(context.Background(), Update{UpdateID: 1})
	bridge.HandleUpdate(context.Background(), Update{
		UpdateID: 2,
		Message:  &Message{Chat: Chat{ID: 7}, From: &User{ID: 7}},
	})

	if len(api.sent) != 0 || len(handler.calls) != 0 {
		t.Errorf("nothing should happen: sent=%v calls=%v", api.sent, handler.calls)
	}
}

func TestRunAdvancesOffsetAndStops(t *testing.T) {
	api := &fakeAPI{
		updates: [][]Update{
			{textUpdate(10, "/start")},
			{textUpdate(11, menuFAQ)},
		},
	}
	handler := &fakeHandler{}
	bridge := NewBridge(api, handler, nil, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// fakeAPI returns context.Canceled after draining its batches, and
	// the cancelled ctx makes Run treat that as a shutdown.
	err := bridge.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
	if len(api.sent) != 2 {
		t.Errorf("sent %d messages, want 2", len(api.sent))
	}
}
