package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// API методы BotAPI, через которые бот общается с Telegram
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Gateway реализация services.Gateway поверх Bot API
type Gateway struct {
	api API
	now func() time.Time
}

func NewGateway(api API) *Gateway {
	return &Gateway{api: api, now: time.Now}
}

func (g *Gateway) SendMessage(ctx context.Context, chatID int64, text string) error {
	return wait(ctx, func() error {
		_, err := g.api.Send(tgbotapi.NewMessage(chatID, text))
		return err
	})
}

// CreateSingleUseInvite ссылка на одно вступление, истекает через ttl
func (g *Gateway) CreateSingleUseInvite(ctx context.Context, channelID int64, ttl time.Duration) (string, error) {
	cfg := tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig:  tgbotapi.ChatConfig{ChatID: channelID},
		ExpireDate:  int(g.now().Add(ttl).Unix()),
		MemberLimit: 1,
	}
	var link tgbotapi.ChatInviteLink
	err := wait(ctx, func() error {
		resp, err := g.api.Request(cfg)
		if err != nil {
			return err
		}
		return json.Unmarshal(resp.Result, &link)
	})
	if err != nil {
		return "", err
	}
	if link.InviteLink == "" {
		return "", errors.New("empty invite link in response")
	}
	return link.InviteLink, nil
}

func (g *Gateway) BanMember(ctx context.Context, channelID, userID int64) error {
	return wait(ctx, func() error {
		_, err := g.api.Request(tgbotapi.BanChatMemberConfig{
			ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: channelID, UserID: userID},
		})
		return err
	})
}

func (g *Gateway) UnbanMember(ctx context.Context, channelID, userID int64, onlyIfBanned bool) error {
	return wait(ctx, func() error {
		_, err := g.api.Request(tgbotapi.UnbanChatMemberConfig{
			ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: channelID, UserID: userID},
			OnlyIfBanned:     onlyIfBanned,
		})
		return err
	})
}

// wait Bot API не принимает context: запрос ограничен таймаутом http-клиента,
// а вызывающий перестаёт ждать по ctx
func wait(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("telegram request: %w", ctx.Err())
	}
}
