package notification

import "context"

// Notification is the customer-facing message published after a successful
// reservation. Delivery is best-effort; the channel owns ordering guarantees.
type Notification struct {
	OrderID string `json:"OrderId"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// Dispatcher publishes notifications to the customer channel.
type Dispatcher interface {
	Notify(ctx context.Context, n Notification) error
}
