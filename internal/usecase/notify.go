package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/chineduo/solarhub/internal/domain"
)

// Mailer is the outbound mail collaborator. Sends are fire-and-forget from
// the lifecycle's point of view.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Notifier records admin feed entries and sends customer mail after
// lifecycle transitions. Every failure here is logged and swallowed: a
// payment that went through stays through, whatever the mail server thinks.
type Notifier struct {
	Notifications domain.NotificationRepo
	Mail          Mailer
}

func (n *Notifier) record(ctx context.Context, note *domain.AdminNotification) {
	if n == nil || n.Notifications == nil {
		return
	}
	if note.ID == uuid.Nil {
		note.ID = uuid.New()
	}
	if note.Priority == "" {
		note.Priority = "normal"
	}
	if err := n.Notifications.Create(ctx, note); err != nil {
		log.Error().Err(err).Str("type", note.Type).Msg("admin notification write failed")
	}
}

func (n *Notifier) email(ctx context.Context, to, subject, body string) {
	if n == nil || n.Mail == nil {
		return
	}
	if err := n.Mail.Send(ctx, to, subject, body); err != nil {
		log.Error().Err(err).Str("to", to).Str("subject", subject).Msg("email send failed")
	}
}

func (n *Notifier) NewOrder(ctx context.Context, o *domain.Order) {
	items := 0
	for _, it := range o.Items {
		items += it.Quantity
	}
	n.record(ctx, &domain.AdminNotification{
		Type:    "new_order",
		Title:   "New Product Order",
		Message: fmt.Sprintf("New order #%s placed by %s for %.2f %s (%d items).", o.OrderNumber, o.CustomerName(), o.TotalAmount, o.Currency, items),
		Data: map[string]any{
			"order_number": o.OrderNumber,
			"total_amount": o.TotalAmount,
			"items_count":  items,
		},
		RelatedID:   &o.ID,
		RelatedType: "order",
		Priority:    "high",
	})
}

func (n *Notifier) OrderPaid(ctx context.Context, o *domain.Order) {
	n.record(ctx, &domain.AdminNotification{
		Type:    "order_payment_completed",
		Title:   "Order Payment Completed",
		Message: fmt.Sprintf("Payment for order #%s has been completed. Amount: %.2f %s.", o.OrderNumber, o.TotalAmount, o.Currency),
		Data: map[string]any{
			"order_number":   o.OrderNumber,
			"total_amount":   o.TotalAmount,
			"payment_method": o.PaymentMethod,
		},
		RelatedID:   &o.ID,
		RelatedType: "order",
		Priority:    "high",
	})
	n.email(ctx, o.CustomerEmail,
		fmt.Sprintf("Order %s confirmed", o.OrderNumber),
		fmt.Sprintf("Hi %s,\n\nWe received your payment of %.2f %s for order %s. We'll let you know when it ships.\n", o.FirstName, o.TotalAmount, o.Currency, o.OrderNumber))
}

func (n *Notifier) OrderStatusChanged(ctx context.Context, o *domain.Order, from, to domain.OrderStatus) {
	n.record(ctx, &domain.AdminNotification{
		Type:    "order_status_changed",
		Title:   "Order Status Updated",
		Message: fmt.Sprintf("Order #%s moved from %s to %s.", o.OrderNumber, from, to),
		Data: map[string]any{
			"order_number": o.OrderNumber,
			"from":         string(from),
			"to":           string(to),
		},
		RelatedID:   &o.ID,
		RelatedType: "order",
	})
	n.email(ctx, o.CustomerEmail,
		fmt.Sprintf("Order %s update", o.OrderNumber),
		fmt.Sprintf("Hi %s,\n\nYour order %s is now %s.\n", o.FirstName, o.OrderNumber, to))
}

func (n *Notifier) NewPreOrder(ctx context.Context, p *domain.CustomerPreOrder) {
	product := ""
	if p.PreOrder != nil {
		product = p.PreOrder.ProductName
	}
	n.record(ctx, &domain.AdminNotification{
		Type:    "new_pre_order",
		Title:   "New Pre-Order Placed",
		Message: fmt.Sprintf("New pre-order #%s placed by %s for %s - %.2f %s.", p.PreOrderNumber, p.CustomerName(), product, p.TotalAmount, p.Currency),
		Data: map[string]any{
			"pre_order_number": p.PreOrderNumber,
			"quantity":         p.Quantity,
			"total_amount":     p.TotalAmount,
			"deposit_amount":   p.DepositAmount,
		},
		RelatedID:   &p.ID,
		RelatedType: "customer_pre_order",
		Priority:    "high",
	})
	n.email(ctx, p.CustomerEmail,
		fmt.Sprintf("Pre-order %s received", p.PreOrderNumber),
		fmt.Sprintf("Hi %s,\n\nYour pre-order %s has been placed. Total %.2f %s, deposit %.2f %s, remaining %.2f %s.\n",
			p.FirstName, p.PreOrderNumber, p.TotalAmount, p.Currency, p.DepositAmount, p.Currency, p.RemainingAmount, p.Currency))
}

func (n *Notifier) PreOrderDepositPaid(ctx context.Context, p *domain.CustomerPreOrder) {
	n.record(ctx, &domain.AdminNotification{
		Type:    "pre_order_deposit_paid",
		Title:   "Pre-Order Deposit Paid",
		Message: fmt.Sprintf("Deposit of %.2f %s received for pre-order #%s.", p.DepositAmount, p.Currency, p.PreOrderNumber),
		Data: map[string]any{
			"pre_order_number": p.PreOrderNumber,
			"deposit_amount":   p.DepositAmount,
			"remaining_amount": p.RemainingAmount,
		},
		RelatedID:   &p.ID,
		RelatedType: "customer_pre_order",
		Priority:    "high",
	})
	n.email(ctx, p.CustomerEmail,
		fmt.Sprintf("Pre-order %s deposit received", p.PreOrderNumber),
		fmt.Sprintf("Hi %s,\n\nWe received your deposit of %.2f %s for pre-order %s. Remaining balance: %.2f %s.\n",
			p.FirstName, p.DepositAmount, p.Currency, p.PreOrderNumber, p.RemainingAmount, p.Currency))
}

func (n *Notifier) PreOrderFullyPaid(ctx context.Context, p *domain.CustomerPreOrder) {
	n.record(ctx, &domain.AdminNotification{
		Type:    "pre_order_fully_paid",
		Title:   "Pre-Order Fully Paid",
		Message: fmt.Sprintf("Pre-order #%s is fully paid (%.2f %s).", p.PreOrderNumber, p.TotalAmount, p.Currency),
		Data: map[string]any{
			"pre_order_number": p.PreOrderNumber,
			"total_amount":     p.TotalAmount,
		},
		RelatedID:   &p.ID,
		RelatedType: "customer_pre_order",
		Priority:    "high",
	})
	n.email(ctx, p.CustomerEmail,
		fmt.Sprintf("Pre-order %s fully paid", p.PreOrderNumber),
		fmt.Sprintf("Hi %s,\n\nYour pre-order %s is fully paid. Thank you!\n", p.FirstName, p.PreOrderNumber))
}

func (n *Notifier) PreOrderStatusChanged(ctx context.Context, p *domain.CustomerPreOrder, from, to domain.PreOrderStatus) {
	n.record(ctx, &domain.AdminNotification{
		Type:    "pre_order_status_changed",
		Title:   "Pre-Order Status Updated",
		Message: fmt.Sprintf("Pre-order #%s moved from %s to %s.", p.PreOrderNumber, from, to),
		Data: map[string]any{
			"pre_order_number": p.PreOrderNumber,
			"from":             string(from),
			"to":               string(to),
		},
		RelatedID:   &p.ID,
		RelatedType: "customer_pre_order",
	})
	n.email(ctx, p.CustomerEmail,
		fmt.Sprintf("Pre-order %s update", p.PreOrderNumber),
		fmt.Sprintf("Hi %s,\n\nYour pre-order %s is now %s.\n", p.FirstName, p.PreOrderNumber, to))
}
