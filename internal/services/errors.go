package services

import (
	"errors"
	"fmt"
	"time"

	"paid-channel-bot/internal/db"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("admin privileges required")
	ErrConflict  = errors.New("conflicting state")
)

// ValidationError неверные входные данные: формат payload, подмена пользователя, неактивный тариф
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

func invalid(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// GatewayError ошибка вызова мессенджера
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string { return "gateway " + e.Op + ": " + e.Err.Error() }
func (e *GatewayError) Unwrap() error { return e.Err }

// IntegrityError неожиданная ошибка хранилища; транзакция уже откатена
type IntegrityError struct {
	Op  string
	Err error
}

func (e *IntegrityError) Error() string { return "storage " + e.Op + ": " + e.Err.Error() }
func (e *IntegrityError) Unwrap() error { return e.Err }

// InviteLinkError подписка создана или продлена, но ссылку получить не удалось.
// Result содержит подписку без ссылки: оплата не потеряна.
type InviteLinkError struct {
	Result *AccessResult
	Err    error
}

func (e *InviteLinkError) Error() string {
	return fmt.Sprintf("subscription %d saved, invite link failed: %v", e.Result.Subscription.ID, e.Err)
}
func (e *InviteLinkError) Unwrap() error { return e.Err }

// AccessResult итог оплаты или ручной выдачи доступа
type AccessResult struct {
	Subscription db.Subscription
	Channel      db.Channel
	InviteLink   string
	EndDate      time.Time
	Extended     bool
	// Duplicate платёж уже был учтён раньше, срок не менялся
	Duplicate bool
}

// storeErr переводит ошибки db в таксономию сервиса
func storeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, db.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, db.ErrDuplicate):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	default:
		var (
			ve *ValidationError
			ge *GatewayError
			ie *IntegrityError
		)
		if errors.As(err, &ve) || errors.As(err, &ge) || errors.As(err, &ie) ||
			errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) || errors.Is(err, ErrConflict) {
			return err
		}
		return &IntegrityError{Op: op, Err: err}
	}
}

// UserMessage текст ошибки для ответа в чате; детали остаются в логах
func UserMessage(err error) string {
	var (
		ve *ValidationError
		ge *GatewayError
	)
	switch {
	case errors.Is(err, ErrForbidden):
		return "У вас нет прав администратора."
	case errors.Is(err, ErrNotFound):
		return "Не найдено."
	case errors.As(err, &ve):
		return "Некорректные данные: " + ve.Reason
	case errors.Is(err, ErrConflict):
		return "Операция невозможна в текущем состоянии."
	case errors.As(err, &ge):
		return "Telegram временно недоступен, попробуйте позже."
	default:
		return "Произошла ошибка, попробуйте позже."
	}
}
