package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paid-channel-bot/internal/db"
	"paid-channel-bot/internal/db/dbtest"
	"paid-channel-bot/internal/lock"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) SendMessage(_ context.Context, chatID int64, text string) error {
	return m.Called(chatID, text).Error(0)
}

func (m *mockGateway) CreateSingleUseInvite(_ context.Context, channelID int64, ttl time.Duration) (string, error) {
	args := m.Called(channelID, ttl)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) BanMember(_ context.Context, channelID, userID int64) error {
	return m.Called(channelID, userID).Error(0)
}

func (m *mockGateway) UnbanMember(_ context.Context, channelID, userID int64, onlyIfBanned bool) error {
	return m.Called(channelID, userID, onlyIfBanned).Error(0)
}

type clock struct {
	t time.Time
}

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

const (
	adminID   int64 = 1000
	buyerID   int64 = 2000
	channelTG int64 = -100500
)

type env struct {
	gdb     *gorm.DB
	store   *db.Store
	gw      *mockGateway
	clock   *clock
	cfg     Settings
	users   *Users
	catalog *Catalog
	subs    *Subscriptions
	expiry  *ExpiryScheduler
	remind  *Reminders
	reports *Reports
	channel *db.Channel
	tariff  *db.Tariff
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gdb := dbtest.New(t)
	e := &env{
		gdb:   gdb,
		store: db.NewStore(gdb),
		gw:    &mockGateway{},
		clock: &clock{t: t0},
	}
	e.cfg = Settings{
		AdminIDs:       []int64{adminID},
		InviteTTL:      time.Hour,
		GatewayTimeout: time.Second,
		CheckInterval:  time.Hour,
		ReminderDays:   3,
		Currency:       "XTR",
		Now:            e.clock.Now,
	}
	log := zap.NewNop()
	e.users = NewUsers(e.store, e.cfg, log)
	e.catalog = NewCatalog(e.store, e.users, e.gw, e.cfg, log)
	e.subs = NewSubscriptions(e.store, e.users, e.catalog, e.gw, lock.NewLocal(), e.cfg, log)
	e.expiry = NewExpiryScheduler(e.store, e.gw, e.cfg, log)
	e.remind = NewReminders(e.store, e.gw, e.cfg, log)
	e.reports = NewReports(e.store, e.users, log)

	ctx := context.Background()
	_, err := e.users.GetOrCreate(ctx, Profile{ExternalID: adminID, Username: "admin"})
	require.NoError(t, err)
	_, err = e.users.GetOrCreate(ctx, Profile{ExternalID: buyerID, Username: "buyer"})
	require.NoError(t, err)
	e.channel, err = e.catalog.CreateChannel(ctx, adminID, channelTG, "Closed club", "")
	require.NoError(t, err)
	e.tariff, err = e.catalog.CreateTariff(ctx, adminID, e.channel.ID, "Month", 30, 100)
	require.NoError(t, err)
	t.Cleanup(func() { e.gw.AssertExpectations(t) })
	return e
}

func (e *env) activeSubs(t *testing.T) []db.Subscription {
	t.Helper()
	subs, err := db.All[db.Subscription](e.store.Conn(context.Background()), db.Filters{"is_active": true})
	require.NoError(t, err)
	return subs
}

func (e *env) allowInvite() {
	e.gw.On("UnbanMember", channelTG, buyerID, true).Return(nil)
	e.gw.On("CreateSingleUseInvite", channelTG, time.Hour).Return("https://t.me/+invite", nil)
}

// noLock пропускает всех: без Redis другой процесс не видит наш мьютекс
type noLock struct{}

func (noLock) Lock(context.Context, string) (func(), error) { return func() {}, nil }
