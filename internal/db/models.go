package db

import "time"

// User пользователь бота, создаётся при первом обращении и никогда не удаляется
type User struct {
	ID         uint  `gorm:"primaryKey"`
	ExternalID int64 `gorm:"uniqueIndex;not null"`
	Username   string
	FirstName  string
	LastName   string
	CreatedAt  time.Time
	LastActive time.Time
	IsAdmin    bool
}

// Channel закрытый канал, доступ к которому продаётся. Только мягкое отключение через IsActive.
type Channel struct {
	ID          uint   `gorm:"primaryKey"`
	ExternalID  int64  `gorm:"uniqueIndex;not null"`
	Name        string `gorm:"not null"`
	Description string
	IsActive    bool
}

// Tariff тариф канала: срок в днях и цена в целых единицах валюты
type Tariff struct {
	ID           uint   `gorm:"primaryKey"`
	ChannelID    uint   `gorm:"index;not null"`
	Name         string `gorm:"not null"`
	Description  string
	DurationDays int `gorm:"not null"`
	Price        int `gorm:"not null"`
	IsActive     bool
}

// Subscription доступ пользователя к каналу. Активной может быть только одна подписка
// на пару (user, channel), см. ux_subscriptions_active_pair.
type Subscription struct {
	ID                 uint `gorm:"primaryKey"`
	UserID             uint `gorm:"index;not null"`
	ChannelID          uint `gorm:"index;not null"`
	TariffID           uint `gorm:"not null"`
	ExternalPaymentRef string
	StartDate          time.Time `gorm:"not null"`
	EndDate            time.Time `gorm:"not null"`
	IsActive           bool      `gorm:"index"`
	Reminded           bool      // уведомление о скором окончании
}
