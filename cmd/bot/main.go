package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paid-channel-bot/config"
	"paid-channel-bot/internal/admin"
	"paid-channel-bot/internal/bot"
	"paid-channel-bot/internal/db"
	"paid-channel-bot/internal/lock"
	"paid-channel-bot/internal/logger"
	"paid-channel-bot/internal/metrics"
	"paid-channel-bot/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, closeLog, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zl); err != nil {
		zl.Fatal("bot stopped with error", zap.Error(err))
	}
	zl.Info("bot stopped")
}

func run(ctx context.Context, cfg *config.Config, zl *zap.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	gdb, err := db.Open(cfg.DatabaseURL, db.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(gdb); err != nil {
			zl.Warn("close database", zap.Error(err))
		}
	}()
	store := db.NewStore(gdb)

	botapi, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, tgbotapi.APIEndpoint, &http.Client{
		// long polling держит запрос до 60 секунд
		Timeout: 90 * time.Second,
	})
	if err != nil {
		return err
	}
	gw := bot.NewGateway(botapi)

	var locker lock.Locker = lock.NewLocal()
	if cfg.RedisURL != "" {
		rl, err := lock.NewRedis(ctx, cfg.RedisURL, zl)
		if err != nil {
			return err
		}
		defer rl.Close()
		locker = rl
	}

	settings := services.Settings{
		AdminIDs:       cfg.AdminIDs,
		InviteTTL:      cfg.InviteLinkTTL.Duration(),
		GatewayTimeout: cfg.GatewayTimeout.Duration(),
		CheckInterval:  cfg.CheckInterval.Duration(),
		ReminderDays:   cfg.ReminderDays,
		Currency:       cfg.PaymentCurrency,
		Location:       loc,
	}
	notifier := logger.NewNotifier(gw, cfg.AdminIDs, zl.Named("notify"))

	users := services.NewUsers(store, settings, zl)
	catalog := services.NewCatalog(store, users, gw, settings, zl)
	subs := services.NewSubscriptions(store, users, catalog, gw, locker, settings, zl)
	reports := services.NewReports(store, users, zl)
	expiry := services.NewExpiryScheduler(store, gw, settings, zl)
	reminders := services.NewReminders(store, gw, settings, zl)
	backup := admin.NewBackup(cfg.DatabaseURL, cfg.BackupDir, admin.PgDump, notifier, zl)

	scheduler := services.NewCron(loc, zl)
	jobs, err := services.Schedule(scheduler, expiry, reminders, backup)
	if err != nil {
		return err
	}
	scheduler.Start()
	var startup sync.WaitGroup
	defer func() {
		// дождаться завершения запущенных задач
		<-scheduler.Stop().Done()
		startup.Wait()
	}()
	// первая проверка сразу после старта, не дожидаясь интервала
	services.RunNow(scheduler, jobs[0], &startup)

	metrics.MustRegister()
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpHandler(gdb),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zl.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("http server failed", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	adminHandler := admin.NewHandler(botapi, users, catalog, subs, reports, backup, settings, zl)
	handler := bot.NewHandler(botapi, users, catalog, subs, adminHandler, notifier, settings, cfg.PaymentProviderToken, zl)
	bot.New(botapi, handler, cfg.UpdateWorkers, zl).Run(ctx)
	return nil
}

func httpHandler(gdb *gorm.DB) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		sqlDB, err := gdb.DB()
		if err == nil {
			err = sqlDB.PingContext(r.Context())
		}
		if err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
