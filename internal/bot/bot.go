package bot

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Bot long polling и пул воркеров
type Bot struct {
	api     *tgbotapi.BotAPI
	handler *Handler
	workers int
	log     *zap.Logger
}

func New(api *tgbotapi.BotAPI, handler *Handler, workers int, log *zap.Logger) *Bot {
	if workers <= 0 {
		workers = 1
	}
	return &Bot{api: api, handler: handler, workers: workers, log: log.Named("polling")}
}

// Run принимает апдейты до отмены ctx и дожидается обработки уже полученных
func (b *Bot) Run(ctx context.Context) {
	b.log.Info("authorized", zap.String("account", b.api.Self.UserName), zap.Int("workers", b.workers))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()
	go b.pruneLimiter(ctx)

	// обработка начатых апдейтов доводится до конца и после сигнала остановки
	dispatch(ctx, updates, b.workers, func(u tgbotapi.Update) {
		b.handler.HandleUpdate(context.WithoutCancel(ctx), u)
	})
	b.log.Info("polling stopped")
}

func (b *Bot) pruneLimiter(ctx context.Context) {
	t := time.NewTicker(10 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			b.handler.limiter.Prune()
		}
	}
}

// dispatch раскладывает апдейты по воркерам по id отправителя:
// апдейты одного пользователя обрабатываются по порядку, разных пользователей параллельно
func dispatch(ctx context.Context, updates <-chan tgbotapi.Update, workers int, handle func(tgbotapi.Update)) {
	queues := make([]chan tgbotapi.Update, workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan tgbotapi.Update, 64)
		wg.Add(1)
		go func(q <-chan tgbotapi.Update) {
			defer wg.Done()
			for u := range q {
				handle(u)
			}
		}(queues[i])
	}

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case u, ok := <-updates:
			if !ok {
				break loop
			}
			queues[shard(u, workers)] <- u
		}
	}
	for _, q := range queues {
		close(q)
	}
	wg.Wait()
}

func shard(u tgbotapi.Update, workers int) int {
	var id int64
	if from := sentFrom(u); from != nil {
		id = from.ID
	}
	if id < 0 {
		id = -id
	}
	return int(id % int64(workers))
}
