// Package notify is the boundary to the notification collaborator. Deliveries
// happen after the order transaction commits and are fire-and-forget: a failed
// notification is logged and dropped, never allowed to fail the order.
package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

// OrderEvent carries the minimum a notification template needs.
type OrderEvent struct {
	OrderCode  string
	UserID     int64
	TotalPrice int64
}

type Notifier interface {
	OrderConfirmed(ctx context.Context, ev OrderEvent)
	OrderCancelled(ctx context.Context, ev OrderEvent)
}

type logNotifier struct{}

// NewLogNotifier returns a Notifier that only logs. The production email/SMS
// sender lives outside this core and plugs in behind the same interface.
func NewLogNotifier() Notifier {
	return &logNotifier{}
}

func (n *logNotifier) OrderConfirmed(ctx context.Context, ev OrderEvent) {
	log.Info().
		Str("order_code", ev.OrderCode).
		Int64("user_id", ev.UserID).
		Int64("total_price", ev.TotalPrice).
		Msg("Order confirmation notification")
}

func (n *logNotifier) OrderCancelled(ctx context.Context, ev OrderEvent) {
	log.Info().
		Str("order_code", ev.OrderCode).
		Int64("user_id", ev.UserID).
		Int64("total_price", ev.TotalPrice).
		Msg("Order cancellation notification")
}
