package admin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"paid-channel-bot/internal/logger"
	"paid-channel-bot/internal/services"
)

// Sender часть BotAPI, которой пользуются админ-команды
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

var commands = map[string]bool{
	"admin":          true,
	"admin_stats":    true,
	"admin_channels": true,
	"admin_subs":     true,
	"admin_backup":   true,
	"add_channel":    true,
	"toggle_channel": true,
	"add_tariff":     true,
	"toggle_tariff":  true,
	"add_sub":        true,
	"del_sub":        true,
	"make_admin":     true,
}

// IsCommand относится ли команда к администрированию
func IsCommand(cmd string) bool {
	return commands[cmd]
}

type Handler struct {
	api     Sender
	users   *services.Users
	catalog *services.Catalog
	subs    *services.Subscriptions
	reports *services.Reports
	backup  *Backup
	cfg     services.Settings
	log     *zap.Logger
}

func NewHandler(api Sender, users *services.Users, catalog *services.Catalog, subs *services.Subscriptions,
	reports *services.Reports, backup *Backup, cfg services.Settings, log *zap.Logger) *Handler {
	return &Handler{
		api:     api,
		users:   users,
		catalog: catalog,
		subs:    subs,
		reports: reports,
		backup:  backup,
		cfg:     cfg,
		log:     log.Named("admin"),
	}
}

// HandleCommand выполняет админ-команду. Права проверяются до разбора аргументов.
func (h *Handler) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	actor := msg.From.ID
	chatID := msg.Chat.ID
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())

	if err := h.users.RequireAdmin(ctx, actor); err != nil {
		h.reply(chatID, services.UserMessage(err))
		return
	}
	logger.LogAdminAction(h.log, actor, cmd, args)

	var (
		text string
		err  error
	)
	switch cmd {
	case "admin":
		text = helpText
	case "admin_stats":
		text, err = h.stats(ctx, actor)
	case "admin_channels":
		text, err = h.channels(ctx, actor)
	case "admin_subs":
		text, err = h.recent(ctx, actor, args)
	case "admin_backup":
		h.sendBackup(ctx, chatID)
		return
	case "add_channel":
		text, err = h.addChannel(ctx, actor, args)
	case "toggle_channel":
		text, err = h.toggleChannel(ctx, actor, args)
	case "add_tariff":
		text, err = h.addTariff(ctx, actor, args)
	case "toggle_tariff":
		text, err = h.toggleTariff(ctx, actor, args)
	case "add_sub":
		text, err = h.addSub(ctx, actor, args)
	case "del_sub":
		text, err = h.delSub(ctx, actor, args)
	case "make_admin":
		text, err = h.makeAdmin(ctx, actor, args)
	default:
		return
	}
	if err != nil {
		var usage usageError
		if errors.As(err, &usage) {
			h.reply(chatID, string(usage))
			return
		}
		h.log.Warn("admin command failed", zap.String("cmd", cmd), zap.Int64("actor", actor), zap.Error(err))
		text = services.UserMessage(err)
	}
	h.reply(chatID, text)
}

const helpText = `Команды администратора:
/admin_stats — статистика
/admin_channels — каналы и тарифы
/admin_subs [N] — последние подписки
/add_channel <channel_id> <название> [| описание]
/toggle_channel <id>
/add_tariff <channel_id> <дней> <цена> <название>
/toggle_tariff <id>
/add_sub <user_id> <channel_id> <tariff_id>
/del_sub <subscription_id>
/make_admin <user_id>
/admin_backup — резервная копия БД`

func (h *Handler) stats(ctx context.Context, actor int64) (string, error) {
	s, err := h.reports.Stats(ctx, actor)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("📊 Статистика\nПользователей: %d\nАктивных подписок: %d\nКаналов: %d (активных: %d)",
		s.Users, s.ActiveSubscriptions, s.Channels, s.ActiveChannels), nil
}

func (h *Handler) channels(ctx context.Context, actor int64) (string, error) {
	channels, err := h.catalog.ListChannels(ctx, actor)
	if err != nil {
		return "", err
	}
	if len(channels) == 0 {
		return "Каналов пока нет. Добавьте: /add_channel", nil
	}
	var sb strings.Builder
	for _, ch := range channels {
		fmt.Fprintf(&sb, "%s #%d %s (%d)\n", status(ch.IsActive), ch.ID, ch.Name, ch.ExternalID)
		tariffs, err := h.catalog.ListTariffs(ctx, actor, ch.ID)
		if err != nil {
			return "", err
		}
		for _, t := range tariffs {
			fmt.Fprintf(&sb, "   %s тариф #%d %s: %d дн., %d %s\n", status(t.IsActive), t.ID, t.Name, t.DurationDays, t.Price, h.cfg.Currency)
		}
	}
	return sb.String(), nil
}

func (h *Handler) recent(ctx context.Context, actor int64, args string) (string, error) {
	limit := 20
	if args != "" {
		n, err := strconv.Atoi(args)
		if err != nil || n <= 0 {
			return "", usageError("Использование: /admin_subs [количество]")
		}
		limit = n
	}
	rows, err := h.reports.RecentSubscriptions(ctx, actor, limit)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "Подписок пока нет.", nil
	}
	var sb strings.Builder
	for _, r := range rows {
		user := strconv.FormatInt(r.UserExternalID, 10)
		if r.Username != "" {
			user += " @" + r.Username
		}
		fmt.Fprintf(&sb, "%s #%d %s → %s (%s) до %s\n", status(r.IsActive), r.ID, user, r.ChannelName, r.TariffName, h.cfg.FormatDate(r.EndDate))
	}
	return sb.String(), nil
}

func (h *Handler) addChannel(ctx context.Context, actor int64, args string) (string, error) {
	externalID, name, description, err := parseAddChannel(args)
	if err != nil {
		return "", err
	}
	ch, err := h.catalog.CreateChannel(ctx, actor, externalID, name, description)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Канал #%d «%s» добавлен. Не забудьте сделать бота администратором канала.", ch.ID, ch.Name), nil
}

func (h *Handler) toggleChannel(ctx context.Context, actor int64, args string) (string, error) {
	id, err := parseID(args, "Использование: /toggle_channel <id>")
	if err != nil {
		return "", err
	}
	ch, err := h.catalog.ToggleChannel(ctx, actor, id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Канал #%d «%s»: %s", ch.ID, ch.Name, statusText(ch.IsActive)), nil
}

func (h *Handler) addTariff(ctx context.Context, actor int64, args string) (string, error) {
	channelID, days, price, name, err := parseAddTariff(args)
	if err != nil {
		return "", err
	}
	t, err := h.catalog.CreateTariff(ctx, actor, channelID, name, days, price)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Тариф #%d «%s» добавлен: %d дн., %d %s", t.ID, t.Name, t.DurationDays, t.Price, h.cfg.Currency), nil
}

func (h *Handler) toggleTariff(ctx context.Context, actor int64, args string) (string, error) {
	id, err := parseID(args, "Использование: /toggle_tariff <id>")
	if err != nil {
		return "", err
	}
	t, err := h.catalog.ToggleTariff(ctx, actor, id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Тариф #%d «%s»: %s", t.ID, t.Name, statusText(t.IsActive)), nil
}

func (h *Handler) addSub(ctx context.Context, actor int64, args string) (string, error) {
	target, channelID, tariffID, err := parseAddSub(args)
	if err != nil {
		return "", err
	}
	res, err := h.subs.GrantSubscription(ctx, actor, target, channelID, tariffID)
	var linkErr *services.InviteLinkError
	if errors.As(err, &linkErr) {
		return fmt.Sprintf("Подписка #%d выдана до %s, но ссылку-приглашение создать не удалось: %v",
			res.Subscription.ID, h.cfg.FormatDate(res.EndDate), linkErr.Err), nil
	}
	if err != nil {
		return "", err
	}
	userText := fmt.Sprintf("Администратор выдал вам доступ к каналу «%s» до %s.\nСсылка для входа: %s",
		res.Channel.Name, h.cfg.FormatDate(res.EndDate), res.InviteLink)
	if _, err := h.api.Send(tgbotapi.NewMessage(target, userText)); err != nil {
		h.log.Warn("grant notice not delivered", zap.Int64("user", target), zap.Error(err))
		return fmt.Sprintf("Подписка #%d выдана до %s. Пользователю не удалось написать, ссылка: %s",
			res.Subscription.ID, h.cfg.FormatDate(res.EndDate), res.InviteLink), nil
	}
	return fmt.Sprintf("Подписка #%d выдана до %s, ссылка отправлена пользователю.", res.Subscription.ID, h.cfg.FormatDate(res.EndDate)), nil
}

func (h *Handler) delSub(ctx context.Context, actor int64, args string) (string, error) {
	id, err := parseID(args, "Использование: /del_sub <subscription_id>")
	if err != nil {
		return "", err
	}
	sub, err := h.subs.RevokeSubscription(ctx, actor, id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Подписка #%d отозвана, пользователь удалён из канала.", sub.ID), nil
}

func (h *Handler) makeAdmin(ctx context.Context, actor int64, args string) (string, error) {
	target, err := strconv.ParseInt(args, 10, 64)
	if err != nil {
		return "", usageError("Использование: /make_admin <user_id>")
	}
	if _, err := h.users.PromoteAdmin(ctx, actor, target); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return "", usageError("Пользователь не найден: он должен хотя бы раз написать боту.")
		}
		return "", err
	}
	return fmt.Sprintf("Пользователь %d назначен администратором.", target), nil
}

func (h *Handler) sendBackup(ctx context.Context, chatID int64) {
	if h.backup == nil {
		h.reply(chatID, "Резервное копирование не настроено.")
		return
	}
	filename, err := h.backup.Create(ctx, "backup")
	if err != nil {
		h.log.Error("manual backup failed", zap.Error(err))
		h.reply(chatID, "Ошибка резервного копирования: "+err.Error())
		return
	}
	defer os.Remove(filename)
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(filename))
	doc.Caption = "Резервная копия БД успешно создана"
	if _, err := h.api.Send(doc); err != nil {
		h.log.Error("backup upload failed", zap.Error(err))
		h.reply(chatID, "Не удалось отправить файл резервной копии.")
	}
}

func (h *Handler) reply(chatID int64, text string) {
	if _, err := h.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		h.log.Warn("reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func status(active bool) string {
	if active {
		return "✅"
	}
	return "⛔"
}

func statusText(active bool) string {
	if active {
		return "включён"
	}
	return "отключён"
}
