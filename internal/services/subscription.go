package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"paid-channel-bot/internal/db"
	"paid-channel-bot/internal/lock"
	"paid-channel-bot/internal/metrics"
)

// Subscriptions жизненный цикл подписок: оплата, продление, ручная выдача и отзыв
type Subscriptions struct {
	store   *db.Store
	users   *Users
	catalog *Catalog
	gw      boundedGateway
	locker  lock.Locker
	cfg     Settings
	log     *zap.Logger
}

func NewSubscriptions(store *db.Store, users *Users, catalog *Catalog, gw Gateway, locker lock.Locker, cfg Settings, log *zap.Logger) *Subscriptions {
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &Subscriptions{
		store:   store,
		users:   users,
		catalog: catalog,
		gw:      bound(gw, cfg.GatewayTimeout),
		locker:  locker,
		cfg:     cfg,
		log:     log.Named("subscriptions"),
	}
}

// SuccessfulPayment подтверждённая оплата из апдейта мессенджера
type SuccessfulPayment struct {
	Payload          string
	ChargeID         string
	ProviderChargeID string
	Currency         string
	TotalAmount      int
}

// Invoice данные для выставления счёта
type Invoice struct {
	Title       string
	Description string
	Payload     string
	Label       string
	Currency    string
	Amount      int
}

// GetUserSubscriptions активные подписки пользователя; неизвестный пользователь даёт пустой список
func (s *Subscriptions) GetUserSubscriptions(ctx context.Context, userExternalID int64) ([]db.Subscription, error) {
	tx := s.store.Conn(ctx)
	user, err := db.GetBy[db.User](tx, db.Filters{"external_id": userExternalID})
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get user", err)
	}
	subs, err := db.All[db.Subscription](tx.Order("id"), db.Filters{"user_id": user.ID, "is_active": true})
	return subs, storeErr("list subscriptions", err)
}

// IsSubscribed есть ли активная подписка на канал
func (s *Subscriptions) IsSubscribed(ctx context.Context, userExternalID int64, channelID uint) (bool, error) {
	tx := s.store.Conn(ctx)
	user, err := db.GetBy[db.User](tx, db.Filters{"external_id": userExternalID})
	if errors.Is(err, db.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storeErr("get user", err)
	}
	n, err := db.Count[db.Subscription](tx, db.Filters{"user_id": user.ID, "channel_id": channelID, "is_active": true})
	if err != nil {
		return false, storeErr("count subscriptions", err)
	}
	return n > 0, nil
}

// CreateOrExtend создаёт подписку по тарифу или продлевает активную подписку на тот же канал.
// Продление отсчитывается от max(текущий конец, сейчас), поэтому просроченная, но ещё не
// обработанная подписка продлевается от текущего момента.
func (s *Subscriptions) CreateOrExtend(ctx context.Context, userExternalID int64, tariffID uint, paymentRef string) (*db.Subscription, time.Time, error) {
	r, err := s.createOrExtend(ctx, userExternalID, tariffID, paymentRef)
	if err != nil {
		return nil, time.Time{}, err
	}
	return &r.sub, r.sub.EndDate, nil
}

type renewal struct {
	sub       db.Subscription
	extended  bool
	duplicate bool
}

func (s *Subscriptions) createOrExtend(ctx context.Context, userExternalID int64, tariffID uint, paymentRef string) (*renewal, error) {
	tariff, err := db.GetByID[db.Tariff](s.store.Conn(ctx), tariffID)
	if err != nil {
		return nil, storeErr("get tariff", err)
	}
	if tariff.DurationDays < 0 {
		return nil, invalid("tariff %d has negative duration", tariff.ID)
	}

	unlock, err := s.locker.Lock(ctx, fmt.Sprintf("sub:%d:%d", userExternalID, tariff.ChannelID))
	if err != nil {
		return nil, fmt.Errorf("lock subscription: %w", err)
	}
	defer unlock()

	var out renewal
	unit := func(tx *gorm.DB) error {
		out = renewal{}
		user, err := db.GetBy[db.User](tx, db.Filters{"external_id": userExternalID})
		if err != nil {
			return storeErr("get user", err)
		}
		if paymentRef != "" {
			// повторная доставка того же платежа не продлевает второй раз
			paid, err := db.GetBy[db.Subscription](tx, db.Filters{"external_payment_ref": paymentRef})
			switch {
			case err == nil:
				out = renewal{sub: *paid, duplicate: true}
				return nil
			case !errors.Is(err, db.ErrNotFound):
				return storeErr("find payment", err)
			}
		}
		now := s.cfg.now()
		existing, err := db.GetBy[db.Subscription](db.Locked(tx), db.Filters{
			"user_id":    user.ID,
			"channel_id": tariff.ChannelID,
			"is_active":  true,
		})
		switch {
		case err == nil:
			base := existing.EndDate
			if now.After(base) {
				base = now
			}
			fields := db.Filters{
				"end_date":  base.Add(days(tariff.DurationDays)),
				"tariff_id": tariff.ID,
				"reminded":  false,
			}
			if paymentRef != "" {
				fields["external_payment_ref"] = paymentRef
			}
			if err := db.Update(tx, existing, fields); err != nil {
				return storeErr("extend subscription", err)
			}
			out = renewal{sub: *existing, extended: true}
			return nil
		case errors.Is(err, db.ErrNotFound):
			sub := db.Subscription{
				UserID:             user.ID,
				ChannelID:          tariff.ChannelID,
				TariffID:           tariff.ID,
				ExternalPaymentRef: paymentRef,
				StartDate:          now,
				EndDate:            now.Add(days(tariff.DurationDays)),
				IsActive:           true,
			}
			if err := db.Create(tx, &sub); err != nil {
				return storeErr("create subscription", err)
			}
			out = renewal{sub: sub}
			return nil
		default:
			return storeErr("find active subscription", err)
		}
	}

	err = s.store.InTx(ctx, unit)
	if errors.Is(err, ErrConflict) {
		// параллельная первая оплата успела вставить активную подписку; повтор её продлит
		s.log.Warn("active subscription inserted concurrently, retrying", zap.Int64("user", userExternalID), zap.Uint("channel_id", tariff.ChannelID))
		err = s.store.InTx(ctx, unit)
	}
	if err != nil {
		return nil, storeErr("create or extend subscription", err)
	}

	switch {
	case out.duplicate:
		s.log.Warn("payment already applied", zap.Int64("user", userExternalID), zap.String("payment_ref", paymentRef), zap.Uint("subscription_id", out.sub.ID))
		return &out, nil
	case out.extended:
		metrics.IncSubscriptionExtended()
	default:
		metrics.IncSubscriptionCreated()
	}
	s.log.Info("subscription saved",
		zap.Uint("subscription_id", out.sub.ID),
		zap.Int64("user", userExternalID),
		zap.Uint("channel_id", out.sub.ChannelID),
		zap.Uint("tariff_id", tariff.ID),
		zap.Bool("extended", out.extended),
		zap.Time("end_date", out.sub.EndDate),
	)
	return &out, nil
}

// PrepareInvoice проверяет выбор пользователя и собирает счёт с payload для последующей оплаты
func (s *Subscriptions) PrepareInvoice(ctx context.Context, userExternalID int64, channelID, tariffID uint) (*Invoice, error) {
	channel, tariff, err := s.resolveOrder(ctx, channelID, tariffID, true)
	if err != nil {
		return nil, err
	}
	amount := tariff.Price
	if s.cfg.Currency != "XTR" {
		// остальные валюты в минимальных единицах
		amount *= 100
	}
	return &Invoice{
		Title:       fmt.Sprintf("Подписка на %s", channel.Name),
		Description: fmt.Sprintf("Тариф «%s»: доступ на %d дн.", tariff.Name, tariff.DurationDays),
		Payload:     Payload{UserID: userExternalID, ChannelID: channel.ID, TariffID: tariff.ID}.String(),
		Label:       tariff.Name,
		Currency:    s.cfg.Currency,
		Amount:      amount,
	}, nil
}

// ValidateCheckout проверка перед списанием: payload наш, плательщик тот же, канал и тариф активны
func (s *Subscriptions) ValidateCheckout(ctx context.Context, payerExternalID int64, rawPayload string) error {
	p, err := ParsePayload(rawPayload)
	if err != nil {
		return err
	}
	if p.UserID != payerExternalID {
		return invalid("payload user %d does not match payer %d", p.UserID, payerExternalID)
	}
	_, _, err = s.resolveOrder(ctx, p.ChannelID, p.TariffID, true)
	return err
}

// ProcessPayment превращает подтверждённую оплату в доступ к каналу.
// При сбое выдачи ссылки подписка остаётся сохранённой, возвращается *InviteLinkError с результатом.
func (s *Subscriptions) ProcessPayment(ctx context.Context, payerExternalID int64, p SuccessfulPayment) (*AccessResult, error) {
	payload, err := ParsePayload(p.Payload)
	if err != nil {
		s.log.Error("invalid payment payload", zap.String("payload", p.Payload), zap.Error(err))
		metrics.IncPayment("rejected")
		return nil, err
	}
	if payload.UserID != payerExternalID {
		s.log.Error("payment payload user mismatch", zap.Int64("payer", payerExternalID), zap.Int64("payload_user", payload.UserID))
		metrics.IncPayment("rejected")
		return nil, invalid("payload user %d does not match payer %d", payload.UserID, payerExternalID)
	}
	// оплата уже прошла: отключённый после выставления счёта тариф всё равно исполняем
	channel, tariff, err := s.resolveOrder(ctx, payload.ChannelID, payload.TariffID, false)
	if err != nil {
		metrics.IncPayment("rejected")
		return nil, err
	}

	r, err := s.createOrExtend(ctx, payerExternalID, tariff.ID, p.ChargeID)
	if err != nil {
		metrics.IncPayment("error")
		return nil, err
	}
	if r.duplicate && !r.sub.IsActive {
		// период по этому платежу уже закончился, новую ссылку не выдаём
		metrics.IncPayment("duplicate")
		return &AccessResult{Subscription: r.sub, Channel: *channel, EndDate: r.sub.EndDate, Duplicate: true}, nil
	}
	res, err := s.deliver(ctx, channel, payerExternalID, r)
	if err != nil {
		metrics.IncPayment("link_failed")
		return res, err
	}
	if r.duplicate {
		metrics.IncPayment("duplicate")
		return res, nil
	}
	metrics.IncPayment("ok")
	return res, nil
}

// GrantSubscription ручная выдача администратором. Действует то же правило продления, что и при оплате.
func (s *Subscriptions) GrantSubscription(ctx context.Context, actor, target int64, channelID, tariffID uint) (*AccessResult, error) {
	if err := s.users.RequireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	channel, tariff, err := s.resolveOrder(ctx, channelID, tariffID, false)
	if err != nil {
		return nil, err
	}
	r, err := s.createOrExtend(ctx, target, tariff.ID, "")
	if err != nil {
		return nil, err
	}
	s.log.Info("subscription granted", zap.Int64("actor", actor), zap.Int64("target", target), zap.Uint("subscription_id", r.sub.ID))
	return s.deliver(ctx, channel, target, r)
}

// RevokeSubscription ручной отзыв: сначала удаление из канала, затем деактивация.
// Если мессенджер недоступен, подписка остаётся активной.
func (s *Subscriptions) RevokeSubscription(ctx context.Context, actor int64, subscriptionID uint) (*db.Subscription, error) {
	if err := s.users.RequireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	conn := s.store.Conn(ctx)
	sub, err := db.GetByID[db.Subscription](conn, subscriptionID)
	if err != nil {
		return nil, storeErr("get subscription", err)
	}
	if !sub.IsActive {
		return nil, fmt.Errorf("subscription %d already inactive: %w", sub.ID, ErrConflict)
	}
	user, err := db.GetByID[db.User](conn, sub.UserID)
	if err != nil {
		return nil, storeErr("get user", err)
	}
	channel, err := db.GetByID[db.Channel](conn, sub.ChannelID)
	if err != nil {
		return nil, storeErr("get channel", err)
	}

	err = s.store.InTx(ctx, func(tx *gorm.DB) error {
		cur, err := db.GetByID[db.Subscription](db.Locked(tx), sub.ID)
		if err != nil {
			return storeErr("lock subscription", err)
		}
		if !cur.IsActive {
			return fmt.Errorf("subscription %d already inactive: %w", cur.ID, ErrConflict)
		}
		if err := s.gw.Kick(ctx, channel.ExternalID, user.ExternalID); err != nil {
			return err
		}
		if err := db.Update(tx, cur, db.Filters{"is_active": false}); err != nil {
			return storeErr("deactivate subscription", err)
		}
		sub = cur
		return nil
	})
	if err != nil {
		return nil, storeErr("revoke subscription", err)
	}
	metrics.IncRevoked("admin")
	s.log.Info("subscription revoked", zap.Int64("actor", actor), zap.Uint("subscription_id", sub.ID), zap.Int64("user", user.ExternalID))
	return sub, nil
}

func (s *Subscriptions) resolveOrder(ctx context.Context, channelID, tariffID uint, requireActive bool) (*db.Channel, *db.Tariff, error) {
	tx := s.store.Conn(ctx)
	channel, err := db.GetByID[db.Channel](tx, channelID)
	if err != nil {
		return nil, nil, storeErr("get channel", err)
	}
	tariff, err := db.GetByID[db.Tariff](tx, tariffID)
	if err != nil {
		return nil, nil, storeErr("get tariff", err)
	}
	if tariff.ChannelID != channel.ID {
		return nil, nil, invalid("tariff %d does not belong to channel %d", tariff.ID, channel.ID)
	}
	if requireActive && (!channel.IsActive || !tariff.IsActive) {
		return nil, nil, invalid("channel %d or tariff %d is disabled", channel.ID, tariff.ID)
	}
	return channel, tariff, nil
}

// deliver выдаёт ссылку на вход. Перед этим снимается бан, если прошлый отзыв
// забанил пользователя, но не успел разбанить: иначе ссылка его не впустит.
func (s *Subscriptions) deliver(ctx context.Context, channel *db.Channel, userExternalID int64, r *renewal) (*AccessResult, error) {
	res := &AccessResult{
		Subscription: r.sub,
		Channel:      *channel,
		EndDate:      r.sub.EndDate,
		Extended:     r.extended,
		Duplicate:    r.duplicate,
	}
	if err := s.gw.Unban(ctx, channel.ExternalID, userExternalID); err != nil {
		s.log.Warn("failed to lift stale ban", zap.Int64("user", userExternalID), zap.Int64("channel", channel.ExternalID), zap.Error(err))
		metrics.IncInviteLink(false)
		return res, &InviteLinkError{Result: res, Err: err}
	}
	link, err := s.catalog.GenerateInviteLink(ctx, channel)
	if err != nil {
		return res, &InviteLinkError{Result: res, Err: err}
	}
	res.InviteLink = link
	return res, nil
}
