package memory

import (
	"context"
	"sync"

	"github.com/minicommerce/fulfillment/internal/domain/notification"
	"github.com/minicommerce/fulfillment/internal/observability"
	"github.com/minicommerce/fulfillment/internal/observability/logctx"
)

// Dispatcher records notifications in memory and logs each delivery. It is
// both the default local dispatcher and the test double; Fail lets tests force
// the soft-failure paths.
type Dispatcher struct {
	mu   sync.Mutex
	sent []notification.Notification
	fail error
	log  observability.Logger
}

func NewDispatcher(logger observability.Logger) *Dispatcher {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Dispatcher{
		log: logger.With(observability.F("component", "dispatcher")),
	}
}

// Fail makes every subsequent Notify return err; nil restores delivery.
func (d *Dispatcher) Fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = err
}

func (d *Dispatcher) Notify(ctx context.Context, n notification.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.fail != nil {
		return d.fail
	}
	d.sent = append(d.sent, n)

	logctx.FromOr(ctx, d.log).Info("notification_sent",
		observability.F("order_id", n.OrderID),
		observability.F("email", n.Email),
	)
	return nil
}

// Sent returns a copy of everything delivered so far.
func (d *Dispatcher) Sent() []notification.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]notification.Notification(nil), d.sent...)
}
