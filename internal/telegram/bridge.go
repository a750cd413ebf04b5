package telegram

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/elkhov/shopadvisor/internal/dispatch"
)

// Menu button labels shown on the main reply keyboard.
const (
	menuConsult  = "🛍️ Консультация по товарам"
	menuFAQ      = "❓ Частые вопросы"
	menuContacts = "📞 Контакты"
	menuOrder    = "📦 Сделать заказ"
)

const welcomeText = `Здравствуйте! Я бот-консультант магазина электроники.

Помогу подобрать смартфон, ноутбук, наушники и другую технику. Задайте вопрос или выберите раздел в меню ниже.`

const consultText = `Напишите, какой товар вас интересует, и я помогу с выбором.

Например: «Посоветуй смартфон до 30 тысяч» или «Чем отличаются эти наушники?»`

const faqText = `<b>Частые вопросы</b>

• Доставка по городу занимает 1-2 дня, по России до 7 дней.
• Оплата: картой онлайн, наличными или картой при получении.
• Возврат товара возможен в течение 14 дней.
• Гарантия на всю технику от 12 месяцев.`

const contactsText = `<b>Контакты</b>

Телефон: 8 (800) 555-35-35
Почта: support@example-shop.ru
Часы работы: ежедневно с 9:00 до 21:00`

const orderText = `Чтобы оформить заказ, напишите название товара и ваш телефон, и менеджер свяжется с вами в рабочее время.`

const apologyText = "Извините, произошла ошибка. Попробуйте позже."

// Handler produces a reply for an inbound user message.
type Handler interface {
	Handle(ctx context.Context, userID int64, meta dispatch.UserMeta, text string) (string, error)
}

// UserStore records users the bot has seen. *store.Store satisfies it.
type UserStore interface {
	UpsertUser(id int64, username, firstName, lastName string) error
}

// BotAPI is the slice of the Telegram client the bridge uses.
type BotAPI interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
	SendMessage(ctx context.Context, chatID int64, text string, replyMarkup any) error
	SendChatAction(ctx context.Context, chatID int64, action string) error
}

// Bridge consumes Telegram updates and routes free-form messages into
// the dispatcher. Menu buttons and /start are answered with canned
// screens without touching the providers.
type Bridge struct {
	logger      *slog.Logger
	api         BotAPI
	handler     Handler
	users       UserStore
	pollTimeout time.Duration
}

// NewBridge wires a bridge over the given bot API and handler.
func NewBridge(api BotAPI, handler Handler, users UserStore, pollTimeout time.Duration, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}
	return &Bridge{
		logger:      logger.With("component", "bridge"),
		api:         api,
		handler:     handler,
		users:       users,
		pollTimeout: pollTimeout,
	}
}

// Run polls for updates until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	b.logger.Info("telegram bridge started")
	var offset int64
	for {
		updates, err := b.api.GetUpdates(ctx, offset, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				b.logger.Info("telegram bridge stopped")
				return ctx.Err()
			}
			b.logger.Error("getUpdates failed", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
			}
			continue
		}
		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// MainKeyboard returns the persistent reply keyboard shown after /start.
func MainKeyboard() ReplyKeyboardMarkup {
	return ReplyKeyboardMarkup{
		Keyboard: [][]KeyboardButton{
			{{Text: menuConsult}, {Text: menuFAQ}},
			{{Text: menuContacts}, {Text: menuOrder}},
		},
		ResizeKeyboard: true,
	}
}

// HandleUpdate processes one update. Non-message updates and messages
// without text are ignored.
func (b *Bridge) HandleUpdate(ctx context.Context, update Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Text == "" {
		return
	}
	chatID := msg.Chat.ID
	from := msg.From
	logger := b.logger.With("user_id", from.ID, "chat_id", chatID)

	b.rememberUser(from, logger)

	switch msg.Text {
	case "/start":
		b.send(ctx, chatID, welcomeText, MainKeyboard(), logger)
	case menuConsult:
		b.send(ctx, chatID, consultText, nil, logger)
	case menuFAQ:
		b.send(ctx, chatID, faqText, nil, logger)
	case menuContacts:
		b.send(ctx, chatID, contactsText, nil, logger)
	case menuOrder:
		b.send(ctx, chatID, orderText, nil, logger)
	default:
		b.consult(ctx, chatID, from, msg.Text, logger)
	}
}

func (b *Bridge) consult(ctx context.Context, chatID int64, from *User, text string, logger *slog.Logger) {
	if err := b.api.SendChatAction(ctx, chatID, "typing"); err != nil {
		logger.Debug("sendChatAction failed", "error", err)
	}

	meta := dispatch.UserMeta{
		Username:  from.Username,
		FirstName: from.FirstName,
		LastName:  from.LastName,
	}
	reply, err := b.handler.Handle(ctx, from.ID, meta, text)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logger.Error("handle message failed", "error", err)
		b.send(ctx, chatID, apologyText, nil, logger)
		return
	}
	b.send(ctx, chatID, reply, nil, logger)
}

func (b *Bridge) rememberUser(from *User, logger *slog.Logger) {
	if b.users == nil {
		return
	}
	if err := b.users.UpsertUser(from.ID, from.Username, from.FirstName, from.LastName); err != nil {
		logger.Warn("upsert user failed", "error", err)
	}
}

func (b *Bridge) send(ctx context.Context, chatID int64, text string, replyMarkup any, logger *slog.Logger) {
	if err := b.api.SendMessage(ctx, chatID, text, replyMarkup); err != nil {
		logger.Error("sendMessage failed", "error", err)
	}
}
