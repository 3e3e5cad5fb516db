package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"paid-channel-bot/internal/db"
	"paid-channel-bot/internal/metrics"
)

// Reminders предупреждает пользователей о скором окончании подписки, один раз на период
type Reminders struct {
	store *db.Store
	gw    boundedGateway
	cfg   Settings
	log   *zap.Logger
}

func NewReminders(store *db.Store, gw Gateway, cfg Settings, log *zap.Logger) *Reminders {
	return &Reminders{store: store, gw: bound(gw, cfg.GatewayTimeout), cfg: cfg, log: log.Named("reminders")}
}

// Spec ежедневно в 10:00 по часовому поясу бота
func (r *Reminders) Spec() string { return "0 10 * * *" }

func (r *Reminders) Run() {
	if _, err := r.RunOnce(context.Background()); err != nil {
		r.log.Error("reminders run failed", zap.Error(err))
	}
}

// RunOnce отправляет напоминания и возвращает число доставленных. Флаг reminded ставится
// только после успешной отправки и сбрасывается при продлении.
func (r *Reminders) RunOnce(ctx context.Context) (int, error) {
	if r.cfg.ReminderDays <= 0 {
		return 0, nil
	}
	conn := r.store.Conn(ctx)
	subs, err := db.All[db.Subscription](conn.Order("end_date"), db.Filters{"is_active": true, "reminded": false})
	if err != nil {
		return 0, storeErr("list subscriptions", err)
	}
	now := r.cfg.now()
	soon := now.Add(days(r.cfg.ReminderDays))

	sent := 0
	for i := range subs {
		sub := subs[i]
		if !sub.EndDate.After(now) || sub.EndDate.After(soon) {
			continue
		}
		user, err := db.GetByID[db.User](conn, sub.UserID)
		if err != nil {
			r.log.Warn("subscription without user", zap.Uint("subscription_id", sub.ID), zap.Error(err))
			continue
		}
		channel, err := db.GetByID[db.Channel](conn, sub.ChannelID)
		if err != nil {
			r.log.Warn("subscription without channel", zap.Uint("subscription_id", sub.ID), zap.Error(err))
			continue
		}
		text := fmt.Sprintf("Подписка на канал «%s» заканчивается %s.\nПродлить: /start",
			channel.Name, r.cfg.FormatDate(sub.EndDate))
		if err := r.gw.SendMessage(ctx, user.ExternalID, text); err != nil {
			r.log.Warn("reminder not delivered", zap.Int64("user", user.ExternalID), zap.Error(err))
			continue
		}
		if err := r.markReminded(ctx, sub); err != nil {
			r.log.Error("failed to mark reminder", zap.Uint("subscription_id", sub.ID), zap.Error(err))
			continue
		}
		metrics.IncReminderSent()
		sent++
	}
	return sent, nil
}

// markReminded ставит флаг только тому периоду, о котором ушло напоминание.
// Если подписку успели продлить, новый срок остаётся без отметки.
func (r *Reminders) markReminded(ctx context.Context, sent db.Subscription) error {
	return r.store.InTx(ctx, func(tx *gorm.DB) error {
		cur, err := db.GetByID[db.Subscription](db.Locked(tx), sent.ID)
		if err != nil {
			return err
		}
		if !cur.IsActive || cur.Reminded || !cur.EndDate.Equal(sent.EndDate) {
			r.log.Debug("subscription changed while reminding", zap.Uint("subscription_id", cur.ID))
			return nil
		}
		return db.Update(tx, cur, db.Filters{"reminded": true})
	})
}
