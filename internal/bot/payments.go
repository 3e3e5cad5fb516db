package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"paid-channel-bot/internal/services"
)

// sendInvoice выставляет счёт за выбранный тариф
func (h *Handler) sendInvoice(ctx context.Context, chatID, userID int64, channelID, tariffID uint) {
	inv, err := h.subs.PrepareInvoice(ctx, userID, channelID, tariffID)
	if err != nil {
		h.fail(chatID, "prepare invoice", err)
		return
	}
	cfg := tgbotapi.NewInvoice(chatID, inv.Title, inv.Description, inv.Payload, h.providerToken, "", inv.Currency,
		[]tgbotapi.LabeledPrice{{Label: inv.Label, Amount: inv.Amount}})
	// nil сериализуется в null, и Telegram отклоняет счёт
	cfg.SuggestedTipAmounts = []int{}
	if _, err := h.api.Send(cfg); err != nil {
		h.log.Error("send invoice failed", zap.Int64("user", userID), zap.Error(err))
		h.reply(chatID, "Не удалось выставить счёт. Попробуйте позже.", nil)
	}
}

// handlePreCheckout последняя проверка перед списанием; ответить нужно в течение 10 секунд
func (h *Handler) handlePreCheckout(ctx context.Context, q *tgbotapi.PreCheckoutQuery) {
	answer := tgbotapi.PreCheckoutConfig{PreCheckoutQueryID: q.ID, OK: true}
	if err := h.subs.ValidateCheckout(ctx, q.From.ID, q.InvoicePayload); err != nil {
		h.log.Warn("pre-checkout rejected", zap.Int64("user", q.From.ID), zap.String("payload", q.InvoicePayload), zap.Error(err))
		answer.OK = false
		answer.ErrorMessage = "Тариф больше недоступен. Выберите другой через /start."
	}
	if _, err := h.api.Request(answer); err != nil {
		h.log.Error("pre-checkout answer failed", zap.Error(err))
	}
}

func (h *Handler) handleSuccessfulPayment(ctx context.Context, msg *tgbotapi.Message) {
	p := msg.SuccessfulPayment
	payer := msg.From
	h.log.Info("payment received",
		zap.Int64("user", payer.ID),
		zap.String("payload", p.InvoicePayload),
		zap.String("charge_id", p.TelegramPaymentChargeID),
		zap.Int("amount", p.TotalAmount),
		zap.String("currency", p.Currency),
	)
	res, err := h.subs.ProcessPayment(ctx, payer.ID, services.SuccessfulPayment{
		Payload:          p.InvoicePayload,
		ChargeID:         p.TelegramPaymentChargeID,
		ProviderChargeID: p.ProviderPaymentChargeID,
		Currency:         p.Currency,
		TotalAmount:      p.TotalAmount,
	})

	var linkErr *services.InviteLinkError
	switch {
	case errors.As(err, &linkErr):
		h.reply(msg.Chat.ID, linkFailedText(res, h.cfg), nil)
		h.notifier.Alert(fmt.Sprintf("Оплата %s прошла, но ссылку в канал «%s» создать не удалось: %v. Пользователь %d ждёт доступ.",
			p.TelegramPaymentChargeID, res.Channel.Name, linkErr.Err, payer.ID))
	case err != nil:
		h.log.Error("payment processing failed", zap.Int64("user", payer.ID), zap.String("charge_id", p.TelegramPaymentChargeID), zap.Error(err))
		h.reply(msg.Chat.ID, "Оплата получена, но при оформлении подписки произошла ошибка. Администратор уже уведомлён и свяжется с вами.", nil)
		h.notifier.Alert(fmt.Sprintf("Ошибка обработки оплаты %s от пользователя %d: %v", p.TelegramPaymentChargeID, payer.ID, err))
		return
	case res.Duplicate && res.InviteLink == "":
		return
	default:
		h.reply(msg.Chat.ID, paymentSuccessText(res, h.cfg), nil)
	}
	if res.Duplicate {
		return
	}

	h.notifier.NotifyAdmins(ctx, paymentNoticeText(payer, res, p, h.cfg))
}

func paymentSuccessText(res *services.AccessResult, cfg services.Settings) string {
	action := "оформлена"
	if res.Extended {
		action = "продлена"
	}
	return fmt.Sprintf("✅ Оплата получена! Подписка на канал «%s» %s до %s.\n\nСсылка для входа (одноразовая, действует ограниченное время):\n%s",
		res.Channel.Name, action, cfg.FormatDate(res.EndDate), res.InviteLink)
}

func linkFailedText(res *services.AccessResult, cfg services.Settings) string {
	return fmt.Sprintf("✅ Оплата получена, подписка на канал «%s» активна до %s.\n\nНе удалось создать ссылку для входа. Администратор уже уведомлён и пришлёт её вручную.",
		res.Channel.Name, cfg.FormatDate(res.EndDate))
}

func paymentNoticeText(payer *tgbotapi.User, res *services.AccessResult, p *tgbotapi.SuccessfulPayment, cfg services.Settings) string {
	who := fmt.Sprintf("%d", payer.ID)
	if payer.UserName != "" {
		who += " @" + payer.UserName
	}
	return fmt.Sprintf("💰 Новая оплата\nПользователь: %s\nКанал: %s\nСумма: %s\nПодписка до: %s",
		who, res.Channel.Name, formatAmount(p.TotalAmount, p.Currency), cfg.FormatDate(res.EndDate))
}
