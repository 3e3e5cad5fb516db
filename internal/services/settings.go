package services

import "time"

// Settings типизированная конфигурация ядра, передаётся при создании сервисов
type Settings struct {
	AdminIDs       []int64
	InviteTTL      time.Duration
	GatewayTimeout time.Duration
	CheckInterval  time.Duration
	ReminderDays   int
	Currency       string
	Location       *time.Location

	// Now подменяется в тестах
	Now func() time.Time
}

func (s Settings) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s Settings) location() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}

func (s Settings) inviteTTL() time.Duration {
	if s.InviteTTL > 0 {
		return s.InviteTTL
	}
	return time.Hour
}

// FormatDate дата для сообщений пользователю в часовом поясе бота
func (s Settings) FormatDate(t time.Time) string {
	return t.In(s.location()).Format("02.01.2006 15:04")
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
