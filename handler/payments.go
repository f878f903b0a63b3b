package handler

import (
	"context"
	"fmt"
	"strings"

	"CareerBot/model"

	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog/log"
)

var planBlurbs = map[model.SubscriptionModel]string{
	model.PlanBasic:   "advanced career paths and sports",
	model.PlanStudent: "everything in Basic plus business ideas",
	model.PlanParent:  "everything in Basic plus child ability analysis",
	model.PlanTeacher: "career paths plus class test creation",
}

func (h *CareerBotHandler) paymentsEnabled() bool {
	return h.payments != nil && h.publicBaseURL != ""
}

func (h *CareerBotHandler) showPlans(ctx context.Context, s Sender, conv *Conversation) {
	var sb strings.Builder
	sb.WriteString("Plans:\n")
	var rows [][]models.InlineKeyboardButton
	for _, plan := range []model.SubscriptionModel{model.PlanBasic, model.PlanStudent, model.PlanParent, model.PlanTeacher} {
		fmt.Fprintf(&sb, "• %s (₹%.0f): %s\n", capitalize(string(plan)), model.PlanPrices[plan], planBlurbs[plan])
		rows = append(rows, []models.InlineKeyboardButton{button("Choose "+capitalize(string(plan)), "sub:"+string(plan))})
	}
	h.send(ctx, s, conv.ChatID, strings.TrimRight(sb.String(), "\n"), &models.InlineKeyboardMarkup{InlineKeyboard: rows})
}

// subscribe starts checkout for plan, asking for contact details first when
// the gateway would reject the order without them.
func (h *CareerBotHandler) subscribe(ctx context.Context, s Sender, conv *Conversation, plan model.SubscriptionModel) {
	if !h.paymentsEnabled() {
		h.send(ctx, s, conv.ChatID, "Payments are not available right now.", nil)
		return
	}
	u, err := h.loadUser(ctx, conv)
	if err != nil {
		log.Error().Err(err).Str("user", conv.UserID).Msg("error loading user")
		h.send(ctx, s, conv.ChatID, "Error loading your account. Please try again later.", nil)
		return
	}
	if u.Phone == "" || u.Email == "" {
		conv.pendingPlan = plan
		h.send(ctx, s, conv.ChatID, "Before checkout I need your contact details.", nil)
		h.startProfile(ctx, s, conv)
		return
	}
	h.checkout(ctx, s, conv, plan)
}

// checkout creates the order, sends the payment link and watches for the
// result. Callers hold conv.mu.
func (h *CareerBotHandler) checkout(ctx context.Context, s Sender, conv *Conversation, plan model.SubscriptionModel) {
	if !h.paymentsEnabled() {
		h.send(ctx, s, conv.ChatID, "Payments are not available right now.", nil)
		return
	}
	u, err := h.loadUser(ctx, conv)
	if err != nil {
		h.send(ctx, s, conv.ChatID, "Error loading your account. Please try again later.", nil)
		return
	}
	amount := model.PlanPrices[plan]
	order, err := h.payments.CreateOrder(ctx, model.OrderRequest{
		PlanName:      string(plan),
		Amount:        amount,
		CustomerID:    conv.UserID,
		CustomerEmail: u.Email,
		CustomerPhone: u.Phone,
	})
	if err != nil {
		log.Error().Err(err).Str("user", conv.UserID).Msg("error creating order")
		h.send(ctx, s, conv.ChatID, "Could not start the payment. Please try again.", nil)
		return
	}
	err = h.FirebaseConnector.RecordPayment(ctx, model.Payment{
		OrderID: order.OrderID,
		UserID:  conv.UserID,
		Plan:    string(plan),
		Amount:  amount,
		Status:  model.PaymentPending,
	})
	if err != nil {
		log.Error().Err(err).Str("order", order.OrderID).Msg("error recording pending payment")
	}

	link := h.publicBaseURL + "/checkout/" + order.PaymentSessionID
	h.send(ctx, s, conv.ChatID,
		fmt.Sprintf("Your %s plan costs ₹%.0f. Tap below to pay; I'll confirm here once it goes through.", capitalize(string(plan)), amount),
		&models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{{{Text: "Pay now", URL: link}}}})

	h.watchPayment(ctx, s, conv.ChatID, order.OrderID, plan)
}

// watchPayment follows the order until it settles or the watch window closes.
func (h *CareerBotHandler) watchPayment(ctx context.Context, s Sender, chatID int64, orderID string, plan model.SubscriptionModel) {
	wctx, cancel := context.WithTimeout(ctx, h.paymentWatch)
	updates, err := h.FirebaseConnector.WatchPayment(wctx, orderID)
	if err != nil {
		cancel()
		log.Error().Err(err).Str("order", orderID).Msg("error watching payment")
		return
	}
	h.goTask(func() {
		defer cancel()
		for p := range updates {
			switch p.Status {
			case model.PaymentPaid:
				log.Info().Str("order", orderID).Str("plan", string(plan)).Msg("payment confirmed")
				h.send(ctx, s, chatID, fmt.Sprintf("Payment received! Your %s plan is active.", capitalize(string(plan))), nil)
				return
			case model.PaymentFailed:
				h.send(ctx, s, chatID, "The payment did not go through. Use /subscribe to try again.", nil)
				return
			}
		}
	})
}
