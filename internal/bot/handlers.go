package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"paid-channel-bot/internal/admin"
	"paid-channel-bot/internal/logger"
	"paid-channel-bot/internal/services"
)

// Handler разбирает апдейты и вызывает сервисы
type Handler struct {
	api           API
	users         *services.Users
	catalog       *services.Catalog
	subs          *services.Subscriptions
	admin         *admin.Handler
	limiter       *RateLimiter
	notifier      *logger.Notifier
	cfg           services.Settings
	providerToken string
	log           *zap.Logger
}

func NewHandler(api API, users *services.Users, catalog *services.Catalog, subs *services.Subscriptions,
	adminHandler *admin.Handler, notifier *logger.Notifier, cfg services.Settings, providerToken string, log *zap.Logger) *Handler {
	return &Handler{
		api:           api,
		users:         users,
		catalog:       catalog,
		subs:          subs,
		admin:         adminHandler,
		limiter:       NewRateLimiter(),
		notifier:      notifier,
		cfg:           cfg,
		providerToken: providerToken,
		log:           log.Named("bot"),
	}
}

// HandleUpdate обрабатывает один апдейт. Паника не роняет воркер.
func (h *Handler) HandleUpdate(ctx context.Context, u tgbotapi.Update) {
	defer h.notifier.NotifyOnPanic("update handler")

	from := sentFrom(u)
	if from == nil {
		return
	}
	// профиль обновляется при любом обращении
	if _, err := h.users.GetOrCreate(ctx, services.Profile{
		ExternalID: from.ID,
		Username:   from.UserName,
		FirstName:  from.FirstName,
		LastName:   from.LastName,
	}); err != nil {
		h.log.Error("failed to upsert user", zap.Int64("user", from.ID), zap.Error(err))
	}

	switch {
	case u.PreCheckoutQuery != nil:
		h.handlePreCheckout(ctx, u.PreCheckoutQuery)
	case u.Message != nil && u.Message.SuccessfulPayment != nil:
		h.handleSuccessfulPayment(ctx, u.Message)
	case u.CallbackQuery != nil:
		h.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil && u.Message.IsCommand():
		h.handleCommand(ctx, u.Message)
	case u.Message != nil && u.Message.Chat != nil && u.Message.Chat.IsPrivate():
		h.reply(u.Message.Chat.ID, "Неизвестная команда. Используйте /help для списка всех возможностей.", ReplyKeyboard(h.users.IsAdmin(ctx, from.ID)))
	}
}

func sentFrom(u tgbotapi.Update) *tgbotapi.User {
	switch {
	case u.Message != nil:
		return u.Message.From
	case u.CallbackQuery != nil:
		return u.CallbackQuery.From
	case u.PreCheckoutQuery != nil:
		return u.PreCheckoutQuery.From
	default:
		return nil
	}
}

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	userID := msg.From.ID
	chatID := msg.Chat.ID
	cmd := msg.Command()
	isAdmin := h.users.IsAdmin(ctx, userID)

	if !isAdmin && h.limiter.IsLimited(userID, "/"+cmd) {
		h.reply(chatID, "Пожалуйста, не так быстро! Подождите пару секунд...", nil)
		return
	}
	if admin.IsCommand(cmd) {
		h.admin.HandleCommand(ctx, msg)
		return
	}

	switch cmd {
	case "start":
		h.showChannels(ctx, chatID)
	case "help":
		h.reply(chatID, userHelp, ReplyKeyboard(isAdmin))
	case "my_subscriptions":
		h.showSubscriptions(ctx, chatID, userID)
	default:
		h.reply(chatID, "Неизвестная команда. Используйте /help для списка всех возможностей.", ReplyKeyboard(isAdmin))
	}
}

const userHelp = `Бот продаёт доступ к закрытым каналам.

/start — выбрать канал и тариф
/my_subscriptions — мои подписки
/help — эта справка

После оплаты бот пришлёт одноразовую ссылку для входа в канал.
Повторная оплата того же канала продлевает подписку.`

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	chatID := q.From.ID
	if q.Message != nil && q.Message.Chat != nil {
		chatID = q.Message.Chat.ID
	}
	cb, err := parseCallback(q.Data)
	if err != nil {
		h.log.Warn("bad callback", zap.String("data", q.Data), zap.Error(err))
		h.answer(q.ID, "Неизвестная кнопка")
		return
	}
	if !h.users.IsAdmin(ctx, q.From.ID) && h.limiter.IsLimited(q.From.ID, cb.kind) {
		h.answer(q.ID, "Пожалуйста, не так быстро!")
		return
	}
	h.answer(q.ID, "")

	switch cb.kind {
	case cbBack:
		h.showChannels(ctx, chatID)
	case cbRefreshSubs:
		h.showSubscriptions(ctx, chatID, q.From.ID)
	case cbChannel:
		h.showTariffs(ctx, chatID, q.From.ID, cb.channelID)
	case cbTariff:
		h.sendInvoice(ctx, chatID, q.From.ID, cb.channelID, cb.tariffID)
	}
}

func (h *Handler) showChannels(ctx context.Context, chatID int64) {
	channels, err := h.catalog.GetActiveChannels(ctx)
	if err != nil {
		h.fail(chatID, "list channels", err)
		return
	}
	if len(channels) == 0 {
		h.reply(chatID, "Сейчас нет доступных каналов. Загляните позже.", nil)
		return
	}
	h.reply(chatID, "Добро пожаловать! Выберите канал, доступ к которому хотите оформить:", ChannelsKeyboard(channels))
}

func (h *Handler) showTariffs(ctx context.Context, chatID, userID int64, channelID uint) {
	channel, err := h.catalog.GetChannel(ctx, channelID)
	if err != nil || !channel.IsActive {
		h.reply(chatID, "Канал недоступен.", nil)
		return
	}
	tariffs, err := h.catalog.GetChannelTariffs(ctx, channelID)
	if err != nil {
		h.fail(chatID, "list tariffs", err)
		return
	}
	if len(tariffs) == 0 {
		h.reply(chatID, fmt.Sprintf("Для канала «%s» пока нет тарифов.", channel.Name), nil)
		return
	}
	var sb strings.Builder
	sb.WriteString("📢 " + channel.Name + "\n")
	if channel.Description != "" {
		sb.WriteString(channel.Description + "\n")
	}
	if ok, err := h.subs.IsSubscribed(ctx, userID, channelID); err == nil && ok {
		sb.WriteString("\nУ вас уже есть подписка, оплата продлит её.\n")
	}
	sb.WriteString("\nВыберите тариф:")
	h.reply(chatID, sb.String(), TariffsKeyboard(channelID, tariffs, h.cfg.Currency))
}

func (h *Handler) showSubscriptions(ctx context.Context, chatID, userID int64) {
	subs, err := h.subs.GetUserSubscriptions(ctx, userID)
	if err != nil {
		h.fail(chatID, "list subscriptions", err)
		return
	}
	if len(subs) == 0 {
		h.reply(chatID, "У вас нет активных подписок. Оформить: /start", nil)
		return
	}
	now := time.Now()
	var sb strings.Builder
	sb.WriteString("Ваши активные подписки:\n\n")
	for _, s := range subs {
		name := fmt.Sprintf("канал #%d", s.ChannelID)
		if ch, err := h.catalog.GetChannel(ctx, s.ChannelID); err == nil {
			name = ch.Name
		}
		left := int(s.EndDate.Sub(now).Hours() / 24)
		fmt.Fprintf(&sb, "📢 %s\nДействует до: %s (осталось дней: %d)\n\n", name, h.cfg.FormatDate(s.EndDate), max(left, 0))
	}
	h.reply(chatID, sb.String(), SubscriptionsKeyboard())
}

func (h *Handler) reply(chatID int64, text string, markup any) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := h.api.Send(msg); err != nil {
		h.log.Warn("send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (h *Handler) answer(callbackID, text string) {
	if _, err := h.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		h.log.Debug("callback answer failed", zap.Error(err))
	}
}

func (h *Handler) fail(chatID int64, op string, err error) {
	h.log.Error(op+" failed", zap.Int64("chat_id", chatID), zap.Error(err))
	h.reply(chatID, services.UserMessage(err), nil)
}
