package services

import (
	"context"
	"errors"
	"slices"

	"go.uber.org/zap"

	"paid-channel-bot/internal/db"
)

// Profile данные пользователя из входящего апдейта
type Profile struct {
	ExternalID int64
	Username   string
	FirstName  string
	LastName   string
}

type Users struct {
	store *db.Store
	cfg   Settings
	log   *zap.Logger
}

func NewUsers(store *db.Store, cfg Settings, log *zap.Logger) *Users {
	return &Users{store: store, cfg: cfg, log: log.Named("users")}
}

// GetOrCreate находит пользователя по внешнему id, обновляет изменившиеся поля профиля
// и last_active. Новый пользователь из ADMIN_IDS сразу получает права администратора.
func (u *Users) GetOrCreate(ctx context.Context, p Profile) (*db.User, error) {
	tx := u.store.Conn(ctx)
	now := u.cfg.now()
	user, err := db.GetBy[db.User](tx, db.Filters{"external_id": p.ExternalID})
	switch {
	case err == nil:
		fields := db.Filters{"last_active": now}
		if p.Username != "" && p.Username != user.Username {
			fields["username"] = p.Username
		}
		if p.FirstName != "" && p.FirstName != user.FirstName {
			fields["first_name"] = p.FirstName
		}
		if p.LastName != "" && p.LastName != user.LastName {
			fields["last_name"] = p.LastName
		}
		if err := db.Update(tx, user, fields); err != nil {
			return nil, storeErr("update user", err)
		}
		return user, nil
	case errors.Is(err, db.ErrNotFound):
	default:
		return nil, storeErr("get user", err)
	}

	user = &db.User{
		ExternalID: p.ExternalID,
		Username:   p.Username,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		LastActive: now,
		IsAdmin:    slices.Contains(u.cfg.AdminIDs, p.ExternalID),
	}
	if err := db.Create(tx, user); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			// параллельный апдейт того же пользователя успел создать запись
			existing, gerr := db.GetBy[db.User](tx, db.Filters{"external_id": p.ExternalID})
			return existing, storeErr("get user", gerr)
		}
		return nil, storeErr("create user", err)
	}
	u.log.Info("user created", zap.Int64("external_id", p.ExternalID), zap.Bool("admin", user.IsAdmin))
	return user, nil
}

func (u *Users) GetByExternalID(ctx context.Context, externalID int64) (*db.User, error) {
	user, err := db.GetBy[db.User](u.store.Conn(ctx), db.Filters{"external_id": externalID})
	if err != nil {
		return nil, storeErr("get user", err)
	}
	return user, nil
}

// IsAdmin возвращает флаг администратора; неизвестный пользователь и ошибки хранилища дают false
func (u *Users) IsAdmin(ctx context.Context, externalID int64) bool {
	user, err := db.GetBy[db.User](u.store.Conn(ctx), db.Filters{"external_id": externalID})
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			u.log.Error("admin check failed", zap.Int64("external_id", externalID), zap.Error(err))
		}
		return false
	}
	return user.IsAdmin
}

// RequireAdmin проверка перед любой административной мутацией
func (u *Users) RequireAdmin(ctx context.Context, externalID int64) error {
	if !u.IsAdmin(ctx, externalID) {
		return ErrForbidden
	}
	return nil
}

// PromoteAdmin выдаёт права администратора существующему пользователю
func (u *Users) PromoteAdmin(ctx context.Context, actor, target int64) (*db.User, error) {
	if err := u.RequireAdmin(ctx, actor); err != nil {
		return nil, err
	}
	tx := u.store.Conn(ctx)
	user, err := db.GetBy[db.User](tx, db.Filters{"external_id": target})
	if err != nil {
		return nil, storeErr("get user", err)
	}
	if user.IsAdmin {
		return user, nil
	}
	if err := db.Update(tx, user, db.Filters{"is_admin": true}); err != nil {
		return nil, storeErr("promote user", err)
	}
	u.log.Info("user promoted to admin", zap.Int64("actor", actor), zap.Int64("target", target))
	return user, nil
}
