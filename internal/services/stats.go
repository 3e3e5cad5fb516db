package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"paid-channel-bot/internal/db"
)

// Stats сводка для администратора
type Stats struct {
	Users               int64
	ActiveSubscriptions int64
	Channels            int64
	ActiveChannels      int64
}

// SubscriptionRow подписка с именами для админских списков
type SubscriptionRow struct {
	ID             uint
	UserExternalID int64
	Username       string
	ChannelName    string
	TariffName     string
	StartDate      time.Time
	EndDate        time.Time
	IsActive       bool
}

type Reports struct {
	store *db.Store
	users *Users
	log   *zap.Logger
}

func NewReports(store *db.Store, users *Users, log *zap.Logger) *Reports {
	return &Reports{store: store, users: users, log: log.Named("reports")}
}

func (r *Reports) Stats(ctx context.Context, actor int64) (*Stats, error) {
	if err := r.users.RequireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	tx := r.store.Conn(ctx)
	var (
		s   Stats
		err error
	)
	if s.Users, err = db.Count[db.User](tx, nil); err != nil {
		return nil, storeErr("count users", err)
	}
	if s.ActiveSubscriptions, err = db.Count[db.Subscription](tx, db.Filters{"is_active": true}); err != nil {
		return nil, storeErr("count subscriptions", err)
	}
	if s.Channels, err = db.Count[db.Channel](tx, nil); err != nil {
		return nil, storeErr("count channels", err)
	}
	if s.ActiveChannels, err = db.Count[db.Channel](tx, db.Filters{"is_active": true}); err != nil {
		return nil, storeErr("count channels", err)
	}
	return &s, nil
}

// RecentSubscriptions последние подписки, новые первыми
func (r *Reports) RecentSubscriptions(ctx context.Context, actor int64, limit int) ([]SubscriptionRow, error) {
	if err := r.users.RequireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var rows []SubscriptionRow
	err := r.store.Conn(ctx).
		Table("subscriptions AS s").
		Select(`s.id, u.external_id AS user_external_id, u.username, c.name AS channel_name,
			t.name AS tariff_name, s.start_date, s.end_date, s.is_active`).
		Joins("JOIN users u ON u.id = s.user_id").
		Joins("JOIN channels c ON c.id = s.channel_id").
		Joins("LEFT JOIN tariffs t ON t.id = s.tariff_id").
		Order("s.id DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, storeErr("recent subscriptions", err)
	}
	return rows, nil
}
