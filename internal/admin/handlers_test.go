package admin

import (
	"context"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paid-channel-bot/internal/db/dbtest"
	"paid-channel-bot/internal/lock"
	"paid-channel-bot/internal/services"
)

const (
	adminID int64 = 10
	userID  int64 = 20
)

type sentText struct {
	chatID int64
	text   string
}

type fakeSender struct {
	sent []sentText
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, sentText{m.ChatID, m.Text})
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) last(t *testing.T) sentText {
	t.Helper()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

type fakeGateway struct{}

func (fakeGateway) SendMessage(context.Context, int64, string) error { return nil }
func (fakeGateway) CreateSingleUseInvite(context.Context, int64, time.Duration) (string, error) {
	return "https://t.me/+granted", nil
}
func (fakeGateway) BanMember(context.Context, int64, int64) error         { return nil }
func (fakeGateway) UnbanMember(context.Context, int64, int64, bool) error { return nil }

func newHandler(t *testing.T) (*Handler, *fakeSender) {
	t.Helper()
	store := dbtest.NewStore(t)
	cfg := services.Settings{AdminIDs: []int64{adminID}, Currency: "XTR"}
	log := zap.NewNop()
	users := services.NewUsers(store, cfg, log)
	catalog := services.NewCatalog(store, users, fakeGateway{}, cfg, log)
	subs := services.NewSubscriptions(store, users, catalog, fakeGateway{}, lock.NewLocal(), cfg, log)
	reports := services.NewReports(store, users, log)

	ctx := context.Background()
	for _, id := range []int64{adminID, userID} {
		_, err := users.GetOrCreate(ctx, services.Profile{ExternalID: id})
		require.NoError(t, err)
	}
	sender := &fakeSender{}
	return NewHandler(sender, users, catalog, subs, reports, nil, cfg, log), sender
}

func command(from int64, text string) *tgbotapi.Message {
	n := strings.IndexByte(text, ' ')
	if n < 0 {
		n = len(text)
	}
	return &tgbotapi.Message{
		From:     &tgbotapi.User{ID: from},
		Chat:     &tgbotapi.Chat{ID: from},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: n}},
	}
}

func TestNonAdminIsRejected(t *testing.T) {
	h, sender := newHandler(t)
	h.HandleCommand(context.Background(), command(userID, "/add_channel -100 Secret"))

	assert.Equal(t, sentText{userID, "У вас нет прав администратора."}, sender.last(t))
	text, err := h.channels(context.Background(), adminID)
	require.NoError(t, err)
	assert.Contains(t, text, "Каналов пока нет")
}

func TestCatalogCommands(t *testing.T) {
	h, sender := newHandler(t)
	ctx := context.Background()

	h.HandleCommand(ctx, command(adminID, "/add_channel -100500 Closed Club | analytics"))
	assert.Contains(t, sender.last(t).text, "Канал #1 «Closed Club» добавлен")

	h.HandleCommand(ctx, command(adminID, "/add_tariff 1 30 100 Month"))
	assert.Contains(t, sender.last(t).text, "Тариф #1 «Month» добавлен: 30 дн., 100 XTR")

	h.HandleCommand(ctx, command(adminID, "/toggle_tariff 1"))
	assert.Contains(t, sender.last(t).text, "отключён")

	h.HandleCommand(ctx, command(adminID, "/admin_channels"))
	out := sender.last(t).text
	assert.Contains(t, out, "✅ #1 Closed Club (-100500)")
	assert.Contains(t, out, "⛔ тариф #1 Month")

	h.HandleCommand(ctx, command(adminID, "/add_tariff 1 30"))
	assert.True(t, strings.HasPrefix(sender.last(t).text, "Использование: /add_tariff"))

	h.HandleCommand(ctx, command(adminID, "/add_tariff 7 30 100 Ghost"))
	assert.Equal(t, "Не найдено.", sender.last(t).text)
}

func TestGrantAndRevokeCommands(t *testing.T) {
	h, sender := newHandler(t)
	ctx := context.Background()
	h.HandleCommand(ctx, command(adminID, "/add_channel -100500 Club"))
	h.HandleCommand(ctx, command(adminID, "/add_tariff 1 30 100 Month"))

	h.HandleCommand(ctx, command(adminID, "/add_sub 20 1 1"))
	require.GreaterOrEqual(t, len(sender.sent), 2)
	notice := sender.sent[len(sender.sent)-2]
	assert.Equal(t, userID, notice.chatID)
	assert.Contains(t, notice.text, "https://t.me/+granted")
	assert.Contains(t, sender.last(t).text, "Подписка #1 выдана")

	h.HandleCommand(ctx, command(adminID, "/admin_stats"))
	assert.Contains(t, sender.last(t).text, "Активных подписок: 1")

	h.HandleCommand(ctx, command(adminID, "/admin_subs"))
	assert.Contains(t, sender.last(t).text, "#1 20 → Club (Month)")

	h.HandleCommand(ctx, command(adminID, "/del_sub 1"))
	assert.Equal(t, "Подписка #1 отозвана, пользователь удалён из канала.", sender.last(t).text)

	h.HandleCommand(ctx, command(adminID, "/del_sub 1"))
	assert.Equal(t, "Операция невозможна в текущем состоянии.", sender.last(t).text)
}

func TestMakeAdmin(t *testing.T) {
	h, sender := newHandler(t)
	ctx := context.Background()

	h.HandleCommand(ctx, command(adminID, "/make_admin 999"))
	assert.Contains(t, sender.last(t).text, "Пользователь не найден")

	h.HandleCommand(ctx, command(adminID, "/make_admin 20"))
	assert.Equal(t, "Пользователь 20 назначен администратором.", sender.last(t).text)
	assert.True(t, h.users.IsAdmin(ctx, userID))
}

func TestIsCommand(t *testing.T) {
	assert.True(t, IsCommand("add_sub"))
	assert.True(t, IsCommand("admin"))
	assert.False(t, IsCommand("start"))
}
