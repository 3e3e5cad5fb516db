package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"paid-channel-bot/internal/db"
	"paid-channel-bot/internal/metrics"
)

// Catalog каналы и тарифы
type Catalog struct {
	store *db.Store
	users *Users
	gw    boundedGateway
	cfg   Settings
	log   *zap.Logger
}

func NewCatalog(store *db.Store, users *Users, gw Gateway, cfg Settings, log *zap.Logger) *Catalog {
	return &Catalog{store: store, users: users, gw: bound(gw, cfg.GatewayTimeout), cfg: cfg, log: log.Named("catalog")}
}

func (c *Catalog) GetActiveChannels(ctx context.Context) ([]db.Channel, error) {
	channels, err := db.All[db.Channel](c.store.Conn(ctx).Order("id"), db.Filters{"is_active": true})
	return channels, storeErr("list active channels", err)
}

// ListChannels все каналы, включая отключённые
func (c *Catalog) ListChannels(ctx context.Context, actor int64) ([]db.Channel, error) {
	if err := c.users.RequireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	channels, err := db.All[db.Channel](c.store.Conn(ctx).Order("id"), nil)
	return channels, storeErr("list channels", err)
}

func (c *Catalog) GetChannel(ctx context.Context, id uint) (*db.Channel, error) {
	channel, err := db.GetByID[db.Channel](c.store.Conn(ctx), id)
	if err != nil {
		return nil, storeErr("get channel", err)
	}
	return channel, nil
}

func (c *Catalog) GetTariff(ctx context.Context, id uint) (*db.Tariff, error) {
	tariff, err := db.GetByID[db.Tariff](c.store.Conn(ctx), id)
	if err != nil {
		return nil, storeErr("get tariff", err)
	}
	return tariff, nil
}

// GetChannelTariffs только активные тарифы канала; для неизвестного канала пустой список
func (c *Catalog) GetChannelTariffs(ctx context.Context, channelID uint) ([]db.Tariff, error) {
	tx := c.store.Conn(ctx)
	if _, err := db.GetByID[db.Channel](tx, channelID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil
		}
		return nil, storeErr("get channel", err)
	}
	tariffs, err := db.All[db.Tariff](tx.Order("duration_days"), db.Filters{"channel_id": channelID, "is_active": true})
	return tariffs, storeErr("list tariffs", err)
}

// ListTariffs все тарифы канала для администратора, включая отключённые
func (c *Catalog) ListTariffs(ctx context.Context, actor int64, channelID uint) ([]db.Tariff, error) {
	if err := c.users.RequireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	tariffs, err := db.All[db.Tariff](c.store.Conn(ctx).Order("id"), db.Filters{"channel_id": channelID})
	return tariffs, storeErr("list tariffs", err)
}

func (c *Catalog) CreateChannel(ctx context.Context, actor, externalID int64, name, description string) (*db.Channel, error) {
	if err := c.users.RequireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("channel name is required")
	}
	channel := &db.Channel{ExternalID: externalID, Name: name, Description: description, IsActive: true}
	if err := db.Create(c.store.Conn(ctx), channel); err != nil {
		return nil, storeErr("create channel", err)
	}
	c.log.Info("channel created", zap.Int64("actor", actor), zap.Uint("channel_id", channel.ID), zap.Int64("external_id", externalID))
	return channel, nil
}

// ToggleChannel переключает активность канала
func (c *Catalog) ToggleChannel(ctx context.Context, actor int64, id uint) (*db.Channel, error) {
	if err := c.users.RequireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	tx := c.store.Conn(ctx)
	channel, err := db.GetByID[db.Channel](tx, id)
	if err != nil {
		return nil, storeErr("get channel", err)
	}
	if err := db.Update(tx, channel, db.Filters{"is_active": !channel.IsActive}); err != nil {
		return nil, storeErr("toggle channel", err)
	}
	return channel, nil
}

func (c *Catalog) CreateTariff(ctx context.Context, actor int64, channelID uint, name string, durationDays, price int) (*db.Tariff, error) {
	if err := c.users.RequireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return nil, invalid("tariff name is required")
	case durationDays <= 0:
		return nil, invalid("duration must be positive, got %d", durationDays)
	case price < 0:
		return nil, invalid("price must not be negative, got %d", price)
	}
	tx := c.store.Conn(ctx)
	if _, err := db.GetByID[db.Channel](tx, channelID); err != nil {
		return nil, storeErr("get channel", err)
	}
	tariff := &db.Tariff{ChannelID: channelID, Name: name, DurationDays: durationDays, Price: price, IsActive: true}
	if err := db.Create(tx, tariff); err != nil {
		return nil, storeErr("create tariff", err)
	}
	c.log.Info("tariff created", zap.Int64("actor", actor), zap.Uint("tariff_id", tariff.ID), zap.Uint("channel_id", channelID))
	return tariff, nil
}

// ToggleTariff тарифы с подписками не меняются, только включаются и выключаются
func (c *Catalog) ToggleTariff(ctx context.Context, actor int64, id uint) (*db.Tariff, error) {
	if err := c.users.RequireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	tx := c.store.Conn(ctx)
	tariff, err := db.GetByID[db.Tariff](tx, id)
	if err != nil {
		return nil, storeErr("get tariff", err)
	}
	if err := db.Update(tx, tariff, db.Filters{"is_active": !tariff.IsActive}); err != nil {
		return nil, storeErr("toggle tariff", err)
	}
	return tariff, nil
}

// GenerateInviteLink одноразовая ссылка с ограниченным сроком жизни
func (c *Catalog) GenerateInviteLink(ctx context.Context, channel *db.Channel) (string, error) {
	link, err := c.gw.CreateSingleUseInvite(ctx, channel.ExternalID, c.cfg.inviteTTL())
	metrics.IncInviteLink(err == nil)
	if err != nil {
		c.log.Error("invite link failed", zap.Uint("channel_id", channel.ID), zap.Int64("external_id", channel.ExternalID), zap.Error(err))
		return "", err
	}
	return link, nil
}
