package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"paid-channel-bot/internal/db"
)

func ReplyKeyboard(isAdmin bool) tgbotapi.ReplyKeyboardMarkup {
	rows := [][]tgbotapi.KeyboardButton{
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/start"),
			tgbotapi.NewKeyboardButton("/my_subscriptions"),
			tgbotapi.NewKeyboardButton("/help"),
		),
	}
	if isAdmin {
		rows = append(rows,
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("/admin_stats"),
				tgbotapi.NewKeyboardButton("/admin_channels"),
				tgbotapi.NewKeyboardButton("/admin_subs"),
			),
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton("/admin_backup"),
				tgbotapi.NewKeyboardButton("/admin"),
			),
		)
	}
	return tgbotapi.NewReplyKeyboard(rows...)
}

func ChannelsKeyboard(channels []db.Channel) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(channels)+1)
	for _, ch := range channels {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📢 "+ch.Name, fmt.Sprintf("%s:%d", cbChannel, ch.ID)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📋 Мои подписки", cbRefreshSubs),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func TariffsKeyboard(channelID uint, tariffs []db.Tariff, currency string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(tariffs)+1)
	for _, t := range tariffs {
		label := fmt.Sprintf("%s: %d дн. за %s", t.Name, t.DurationDays, formatPrice(t.Price, currency))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("%s:%d:%d", cbTariff, channelID, t.ID)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", cbBack),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func SubscriptionsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Обновить", cbRefreshSubs),
			tgbotapi.NewInlineKeyboardButtonData("⬅️ К каналам", cbBack),
		),
	)
}

// formatPrice цена тарифа в целых единицах валюты
func formatPrice(price int, currency string) string {
	if currency == "XTR" {
		return fmt.Sprintf("%d ⭐", price)
	}
	return fmt.Sprintf("%d %s", price, currency)
}

// formatAmount сумма платежа: звёзды целые, остальные валюты в минимальных единицах
func formatAmount(amount int, currency string) string {
	if currency == "XTR" {
		return fmt.Sprintf("%d ⭐", amount)
	}
	return fmt.Sprintf("%d.%02d %s", amount/100, amount%100, currency)
}
