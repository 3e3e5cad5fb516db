package logger

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

// Sender отправка текстового сообщения в чат
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Notifier доставляет критические уведомления администраторам
type Notifier struct {
	sender Sender
	admins []int64
	log    *zap.Logger
}

func NewNotifier(sender Sender, admins []int64, log *zap.Logger) *Notifier {
	return &Notifier{sender: sender, admins: admins, log: log}
}

// NotifyAdmins отправляет сообщение всем администраторам; сбой доставки только логируется
func (n *Notifier) NotifyAdmins(ctx context.Context, msg string) {
	if n == nil || n.sender == nil {
		return
	}
	for _, id := range n.admins {
		if err := n.sender.SendMessage(ctx, id, msg); err != nil {
			n.log.Warn("admin notification failed", zap.Int64("admin_id", id), zap.Error(err))
		}
	}
}

// Alert то же с пометкой [ALERT] и своим таймаутом
func (n *Notifier) Alert(msg string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	n.NotifyAdmins(ctx, "[ALERT] "+msg)
}

// NotifyOnPanic ловит панику, логирует со стеком и уведомляет. Вызывать только через defer.
func (n *Notifier) NotifyOnPanic(where string) {
	if r := recover(); r != nil {
		n.log.Error("panic recovered", zap.String("where", where), zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		n.Alert(fmt.Sprintf("Panic in %s: %v", where, r))
	}
}
