package bot

import (
	"context"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
)

func TestDispatchKeepsPerUserOrder(t *testing.T) {
	updates := make(chan tgbotapi.Update)
	var (
		mu   sync.Mutex
		seen = map[int64][]int{}
	)
	done := make(chan struct{})
	go func() {
		dispatch(context.Background(), updates, 4, func(u tgbotapi.Update) {
			mu.Lock()
			defer mu.Unlock()
			seen[u.Message.From.ID] = append(seen[u.Message.From.ID], u.UpdateID)
		})
		close(done)
	}()

	for i := 0; i < 50; i++ {
		user := int64(i%5 + 1)
		updates <- tgbotapi.Update{UpdateID: i, Message: &tgbotapi.Message{From: &tgbotapi.User{ID: user}}}
	}
	close(updates)
	<-done

	total := 0
	for _, ids := range seen {
		total += len(ids)
		assert.IsIncreasing(t, ids)
	}
	assert.Equal(t, 50, total)
}

func TestDispatchStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		dispatch(ctx, make(chan tgbotapi.Update), 2, func(tgbotapi.Update) {})
		close(done)
	}()
	<-done
}

func TestShardNegativeIDs(t *testing.T) {
	u := tgbotapi.Update{Message: &tgbotapi.Message{From: &tgbotapi.User{ID: -7}}}
	assert.Equal(t, 3, shard(u, 4))
	assert.Equal(t, 0, shard(tgbotapi.Update{}, 4))
}
