package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// activePairIndex закрывает гонку двух параллельных первых оплат одной пары (user, channel)
const activePairIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ux_subscriptions_active_pair
	ON subscriptions (user_id, channel_id) WHERE is_active`

// PoolConfig параметры общего пула соединений процесса
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open открывает единственный на процесс пул соединений к Postgres и применяет миграции.
// Пул закрывается через Close при завершении процесса.
func Open(dsn string, pool PoolConfig) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if err := Migrate(gdb); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return gdb, nil
}

// Migrate создаёт таблицы и частичный уникальный индекс активных подписок
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(&User{}, &Channel{}, &Tariff{}, &Subscription{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := gdb.Exec(activePairIndex).Error; err != nil {
		return fmt.Errorf("create active pair index: %w", err)
	}
	return nil
}

// Close закрывает пул соединений
func Close(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
