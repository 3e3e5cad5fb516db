package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"paid-channel-bot/internal/db"
	"paid-channel-bot/internal/metrics"
)

// RunReport итог одного прохода по истёкшим подпискам
type RunReport struct {
	Checked int
	Expired int
	Revoked int
	Failed  int
	Skipped int
}

// ExpiryScheduler периодически удаляет из каналов пользователей с истёкшей подпиской
type ExpiryScheduler struct {
	store *db.Store
	gw    boundedGateway
	cfg   Settings
	log   *zap.Logger
}

func NewExpiryScheduler(store *db.Store, gw Gateway, cfg Settings, log *zap.Logger) *ExpiryScheduler {
	return &ExpiryScheduler{store: store, gw: bound(gw, cfg.GatewayTimeout), cfg: cfg, log: log.Named("expiry")}
}

// Spec расписание в формате cron; по умолчанию раз в час
func (e *ExpiryScheduler) Spec() string {
	interval := e.cfg.CheckInterval
	if interval <= 0 {
		interval = time.Hour
	}
	return "@every " + interval.String()
}

// Run вызывается планировщиком
func (e *ExpiryScheduler) Run() {
	if _, err := e.RunOnce(context.Background()); err != nil {
		e.log.Error("expiry run failed", zap.Error(err))
	}
}

// RunOnce один проход. Сбой по одной подписке не останавливает остальные:
// если удалить из канала не удалось, подписка остаётся активной до следующего прохода.
func (e *ExpiryScheduler) RunOnce(ctx context.Context) (RunReport, error) {
	start := time.Now()
	defer func() { metrics.ObserveExpiryRun(time.Since(start).Seconds()) }()

	var report RunReport
	conn := e.store.Conn(ctx)
	active, err := db.All[db.Subscription](conn.Order("end_date"), db.Filters{"is_active": true})
	if err != nil {
		return report, storeErr("list active subscriptions", err)
	}
	report.Checked = len(active)
	now := e.cfg.now()

	for i := range active {
		sub := active[i]
		if !sub.EndDate.Before(now) {
			continue
		}
		report.Expired++
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		switch err := e.expire(ctx, sub, now); {
		case err == nil:
			report.Revoked++
		case errors.Is(err, errSkipped):
			report.Skipped++
		default:
			report.Failed++
			metrics.IncRevokeFailure()
			e.log.Error("failed to revoke expired subscription", zap.Uint("subscription_id", sub.ID), zap.Error(err))
		}
	}

	if n, err := db.Count[db.Subscription](conn, db.Filters{"is_active": true}); err == nil {
		metrics.SetActiveSubscriptions(int(n))
	}
	e.log.Info("expiry run finished",
		zap.Int("checked", report.Checked),
		zap.Int("expired", report.Expired),
		zap.Int("revoked", report.Revoked),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
	)
	return report, nil
}

var errSkipped = errors.New("skipped")

func (e *ExpiryScheduler) expire(ctx context.Context, sub db.Subscription, now time.Time) error {
	conn := e.store.Conn(ctx)
	user, err := db.GetByID[db.User](conn, sub.UserID)
	if err != nil {
		e.log.Warn("expired subscription without user", zap.Uint("subscription_id", sub.ID), zap.Error(err))
		return errSkipped
	}
	channel, err := db.GetByID[db.Channel](conn, sub.ChannelID)
	if err != nil {
		e.log.Warn("expired subscription without channel", zap.Uint("subscription_id", sub.ID), zap.Error(err))
		return errSkipped
	}

	err = e.store.InTx(ctx, func(tx *gorm.DB) error {
		cur, err := db.GetByID[db.Subscription](db.Locked(tx), sub.ID)
		if err != nil {
			return storeErr("lock subscription", err)
		}
		// за время прохода подписку могли продлить или отозвать
		if !cur.IsActive || !cur.EndDate.Before(now) {
			return errSkipped
		}
		if err := e.gw.Kick(ctx, channel.ExternalID, user.ExternalID); err != nil {
			return err
		}
		return storeErr("deactivate subscription", db.Update(tx, cur, db.Filters{"is_active": false}))
	})
	if err != nil {
		return err
	}
	metrics.IncRevoked("expiry")
	e.log.Info("subscription expired",
		zap.Uint("subscription_id", sub.ID),
		zap.Int64("user", user.ExternalID),
		zap.Int64("channel", channel.ExternalID),
	)

	text := fmt.Sprintf("Ваша подписка на канал «%s» истекла.\nЧтобы вернуть доступ, оформите новую: /start", channel.Name)
	if err := e.gw.SendMessage(ctx, user.ExternalID, text); err != nil {
		e.log.Warn("expiry notice not delivered", zap.Int64("user", user.ExternalID), zap.Error(err))
	}
	return nil
}
