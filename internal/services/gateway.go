package services

import (
	"context"
	"time"
)

// Gateway возможности мессенджера, которые нужны ядру подписок
type Gateway interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	CreateSingleUseInvite(ctx context.Context, channelID int64, ttl time.Duration) (string, error)
	BanMember(ctx context.Context, channelID, userID int64) error
	UnbanMember(ctx context.Context, channelID, userID int64, onlyIfBanned bool) error
}

// boundedGateway ограничивает каждый вызов таймаутом и помечает сбои как GatewayError
type boundedGateway struct {
	gw      Gateway
	timeout time.Duration
}

func bound(gw Gateway, timeout time.Duration) boundedGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return boundedGateway{gw: gw, timeout: timeout}
}

func (b boundedGateway) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		return &GatewayError{Op: op, Err: err}
	}
	return nil
}

func (b boundedGateway) SendMessage(ctx context.Context, chatID int64, text string) error {
	return b.call(ctx, "send_message", func(ctx context.Context) error {
		return b.gw.SendMessage(ctx, chatID, text)
	})
}

func (b boundedGateway) CreateSingleUseInvite(ctx context.Context, channelID int64, ttl time.Duration) (string, error) {
	var link string
	err := b.call(ctx, "create_invite", func(ctx context.Context) error {
		var err error
		link, err = b.gw.CreateSingleUseInvite(ctx, channelID, ttl)
		return err
	})
	return link, err
}

// Kick удаляет участника: бан выкидывает из канала, немедленный разбан оставляет возможность
// вернуться после новой оплаты. Каждый шаг со своим таймаутом.
func (b boundedGateway) Kick(ctx context.Context, channelID, userID int64) error {
	if err := b.call(ctx, "ban_member", func(ctx context.Context) error {
		return b.gw.BanMember(ctx, channelID, userID)
	}); err != nil {
		return err
	}
	return b.Unban(ctx, channelID, userID)
}

// Unban снимает бан, оставшийся после неудачного Kick; участников канала не трогает
func (b boundedGateway) Unban(ctx context.Context, channelID, userID int64) error {
	return b.call(ctx, "unban_member", func(ctx context.Context) error {
		return b.gw.UnbanMember(ctx, channelID, userID, true)
	})
}
