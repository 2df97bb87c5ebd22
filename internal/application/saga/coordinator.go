package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/minicommerce/fulfillment/internal/domain/inventory"
	"github.com/minicommerce/fulfillment/internal/domain/notification"
	"github.com/minicommerce/fulfillment/internal/domain/order"
	domsaga "github.com/minicommerce/fulfillment/internal/domain/saga"
	"github.com/minicommerce/fulfillment/internal/observability"
	"github.com/minicommerce/fulfillment/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	serviceName         = "saga-coordinator"
	spanPrefix          = "Saga."
	notificationMessage = "Your order has been successfully processed!"
)

var ErrInvalidRequest = errors.New("saga: invalid order request")

// Config carries the coordinator's policy knobs. Zero values are replaced by
// defaults in New.
type Config struct {
	UnitPrice            int64
	DefaultPaymentMethod string
	StepTimeout          time.Duration
	MaxAttempts          uint64 // hard steps: validate, persist, reserve, final write
	SoftMaxAttempts      uint64 // soft steps: notify, archive
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
}

func (c Config) withDefaults() Config {
	if c.UnitPrice <= 0 {
		c.UnitPrice = 100
	}
	if c.DefaultPaymentMethod == "" {
		c.DefaultPaymentMethod = "creditCard"
	}
	if c.StepTimeout <= 0 {
		c.StepTimeout = 5 * time.Second
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 4
	}
	if c.SoftMaxAttempts == 0 {
		c.SoftMaxAttempts = 2
	}
	if c.RetryInitialInterval <= 0 {
		c.RetryInitialInterval = 50 * time.Millisecond
	}
	if c.RetryMaxInterval <= 0 {
		c.RetryMaxInterval = 2 * time.Second
	}
	return c
}

// Coordinator drives an order through Validate → Persist → Reserve → Notify →
// Archive and is the sole writer of saga state transitions.
type Coordinator struct {
	ledger   inventory.Ledger
	orders   order.Store
	sagas    domsaga.Store
	notifier notification.Dispatcher
	archiver Archiver
	ids      IDGenerator
	cfg      Config

	log    observability.Logger
	tracer observability.Tracer

	runsCounter  observability.Counter   // saga_runs_total{outcome}
	durHistogram observability.Histogram // saga_duration_seconds
	stepCounter  observability.Counter   // saga_step_attempts_total{step,outcome}
}

func New(
	ledger inventory.Ledger,
	orders order.Store,
	sagas domsaga.Store,
	notifier notification.Dispatcher,
	archiver Archiver,
	ids IDGenerator,
	cfg Config,
	tel observability.Observability,
) *Coordinator {
	if tel == nil {
		tel = observability.Nop()
	}
	baseLog := tel.Logger().With(
		observability.F("service", serviceName),
	)
	metrics := tel.Metrics()

	return &Coordinator{
		ledger:       ledger,
		orders:       orders,
		sagas:        sagas,
		notifier:     notifier,
		archiver:     archiver,
		ids:          ids,
		cfg:          cfg.withDefaults(),
		log:          baseLog,
		tracer:       tel.Tracer(),
		runsCounter:  metrics.Counter(observability.MSagaRuns),
		durHistogram: metrics.Histogram(observability.MSagaDuration),
		stepCounter:  metrics.Counter(observability.MSagaStepAttempts),
	}
}

// Request is the raw order input. Immutable once accepted.
type Request struct {
	ProductID     string
	Quantity      int
	CustomerEmail string
	PaymentMethod string
}

// Validate checks well-formedness only; it performs no I/O, so the ingress can
// reject malformed input before any saga exists.
func (r Request) Validate() error {
	if r.ProductID == "" {
		return fmt.Errorf("%w: productId is required", ErrInvalidRequest)
	}
	if r.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be a positive integer", ErrInvalidRequest)
	}
	if r.CustomerEmail == "" {
		return fmt.Errorf("%w: customerEmail is required", ErrInvalidRequest)
	}
	if _, err := mail.ParseAddress(r.CustomerEmail); err != nil {
		return fmt.Errorf("%w: customerEmail is not a valid address", ErrInvalidRequest)
	}
	return nil
}

type Result struct {
	OrderID     string
	Status      domsaga.Status
	OrderStatus order.Status
	ReceiptURI  string
	Warnings    []string
}

// Run creates a saga instance for the request and drives it to a terminal
// state. The order ID is assigned exactly once here and never regenerated.
func (c *Coordinator) Run(ctx context.Context, req Request) (*Result, error) {
	if req.PaymentMethod == "" {
		req.PaymentMethod = c.cfg.DefaultPaymentMethod
	}

	orderID := c.ids.NewID()
	st := domsaga.NewState(orderID, domsaga.OrderInfo{
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		Amount:        int64(req.Quantity) * c.cfg.UnitPrice,
		CustomerEmail: req.CustomerEmail,
		PaymentMethod: req.PaymentMethod,
	})
	if err := c.checkpoint(ctx, st); err != nil {
		return nil, stepError(KindFatal, orderID, domsaga.StepValidate, fmt.Errorf("create saga state: %w", err))
	}

	return c.execute(ctx, st)
}

// Resume reloads every non-terminal saga and re-runs it from its first
// incomplete step. Completed steps are skipped, so a reserve that already
// succeeded is observed as AlreadyReserved rather than applied twice.
func (c *Coordinator) Resume(ctx context.Context) error {
	states, err := c.sagas.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("saga: list active: %w", err)
	}

	logger := logctx.FromOr(ctx, c.log)
	for _, st := range states {
		logger.Info("saga_resume",
			observability.F("order_id", st.OrderID),
			observability.F("state_version", st.Version),
		)
		if _, err := c.execute(ctx, st); err != nil {
			logger.Error("saga_resume_failed",
				observability.F("order_id", st.OrderID),
				observability.F("error", err.Error()),
			)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// Cancel aborts a saga that has not yet reserved stock. Once the reserve step
// has completed the saga must run to a terminal state and cannot be abandoned.
func (c *Coordinator) Cancel(ctx context.Context, orderID string) error {
	st, err := c.sagas.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if st.Status.Terminal() {
		return ErrAlreadyFinished
	}
	if st.Done(domsaga.StepReserve) || st.Status == domsaga.StatusCompensating {
		return ErrCancelTooLate
	}

	st.Finish(domsaga.StatusCancelled)
	if err := c.checkpoint(ctx, st); err != nil {
		return err
	}

	if st.Done(domsaga.StepPersist) {
		if ord, loadErr := c.orders.Get(ctx, orderID); loadErr == nil {
			if ord.MarkCancelled("cancelled before reservation") == nil {
				if uerr := c.writeOrder(ctx, ord); uerr != nil {
					logctx.FromOr(ctx, c.log).Error("saga_cancel_order_write_failed",
						observability.F("order_id", orderID),
						observability.F("error", uerr.Error()),
					)
				}
			}
		}
	}

	logctx.FromOr(ctx, c.log).Info("saga_cancelled",
		observability.F("order_id", orderID),
	)
	return nil
}

// Order exposes the order record for the ingress.
func (c *Coordinator) Order(ctx context.Context, id string) (*order.Order, error) {
	return c.orders.Get(ctx, id)
}

// Saga exposes the saga state for the ingress.
func (c *Coordinator) Saga(ctx context.Context, id string) (*domsaga.State, error) {
	return c.sagas.Get(ctx, id)
}

func (c *Coordinator) execute(ctx context.Context, st *domsaga.State) (_ *Result, err error) {
	logger := logctx.FromOr(ctx, c.log).With(
		observability.F("order_id", st.OrderID),
	)
	ctx = logctx.With(ctx, logger)

	ctx, span := c.tracer.Start(ctx, spanPrefix+"Execute",
		attribute.String("order.id", st.OrderID),
		attribute.String("order.product_id", st.Order.ProductID),
		attribute.Int("order.quantity", st.Order.Quantity),
	)
	start := time.Now()
	outcome := "completed"

	defer func() {
		lat := time.Since(start).Seconds()
		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, string(st.Status))
			} else {
				span.SetStatus(codes.Ok, string(st.Status))
			}
			span.End()
		}
		c.runsCounter.Add(1, observability.L("outcome", outcome))
		c.durHistogram.Observe(lat)

		fields := []observability.Field{
			observability.F("status", st.Status),
			observability.F("latency_seconds", lat),
		}
		if len(st.Warnings) > 0 {
			fields = append(fields, observability.F("warnings", st.Warnings))
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("saga_done", fields...)
	}()

	// Rebuild the order entity when a previous run already persisted it. A
	// missing record at this point means the hard state is corrupted; if
	// stock was reserved, it has to be handed back before the saga stops.
	var ord *order.Order
	if st.Done(domsaga.StepPersist) {
		ord, err = c.loadOrder(ctx, st)
		if err != nil {
			cause := stepError(KindFatal, st.OrderID, domsaga.StepPersist,
				fmt.Errorf("reload persisted order: %w", err))
			if st.Done(domsaga.StepReserve) || st.Status == domsaga.StatusCompensating {
				outcome = "compensated"
				return c.compensate(ctx, st, nil, cause)
			}
			outcome = "failed"
			return nil, c.fail(ctx, st, domsaga.StatusFailed, cause)
		}
	}

	// A previous run went down mid-compensation: finish handing the
	// reservation back before anything else.
	if st.Status == domsaga.StatusCompensating {
		outcome = "compensated"
		return c.compensate(ctx, st, ord,
			stepError(KindFatal, st.OrderID, domsaga.StepReserve,
				errors.New("resumed interrupted compensation")))
	}

	// Step 1: Validate. Malformed input terminates with no side effects; the
	// stock read is a non-binding pre-check only.
	if !st.Done(domsaga.StepValidate) {
		if verr := c.validate(ctx, st); verr != nil {
			outcome = "validation_failed"
			return nil, c.fail(ctx, st, domsaga.StatusValidationFailed, verr)
		}
		if cerr := c.checkpoint(ctx, st); cerr != nil {
			outcome = "failed"
			return nil, c.fail(ctx, st, domsaga.StatusFailed,
				stepError(KindFatal, st.OrderID, domsaga.StepValidate, cerr))
		}
	}

	// Step 2: Persist the order record. Retried on transient store errors;
	// exhausting retries is fatal, with no inventory touched yet.
	if !st.Done(domsaga.StepPersist) {
		ord, err = c.persist(ctx, st)
		if err != nil {
			outcome = "failed"
			return nil, c.fail(ctx, st, domsaga.StatusFailed, err)
		}
		if cerr := c.checkpoint(ctx, st); cerr != nil {
			outcome = "failed"
			return nil, c.fail(ctx, st, domsaga.StatusFailed,
				stepError(KindFatal, st.OrderID, domsaga.StepPersist, cerr))
		}
	}

	// Step 3: Reserve stock, the binding atomic check. InsufficientStock is a
	// terminal business outcome; an exhausted retry is ambiguous (the ledger
	// may have applied it), so compensation always runs in that branch.
	// Releasing a reservation that never existed is a no-op.
	if st.Done(domsaga.StepReserve) {
		// Resumed with the reservation already held; the saga must reach a
		// terminal state even if the caller has gone away.
		ctx = context.WithoutCancel(ctx)
	} else {
		reserveOutcome, rerr := c.reserve(ctx, st)
		switch {
		case rerr != nil:
			outcome = "compensated"
			return c.compensate(ctx, st, ord, rerr)
		case reserveOutcome == inventory.OutcomeInsufficientStock:
			outcome = "rejected"
			return c.reject(ctx, st, ord)
		}

		// Stock is held from here on. Caller cancellation no longer reaches
		// the remaining steps; per-attempt timeouts still bound each call.
		ctx = context.WithoutCancel(ctx)

		if werr := ord.MarkReserved(); werr == nil {
			if uerr := c.writeOrder(ctx, ord); uerr != nil {
				outcome = "compensated"
				return c.compensate(ctx, st, ord,
					stepError(KindFatal, st.OrderID, domsaga.StepReserve, uerr))
			}
		}
		if cerr := c.checkpoint(ctx, st); cerr != nil {
			outcome = "compensated"
			return c.compensate(ctx, st, ord,
				stepError(KindFatal, st.OrderID, domsaga.StepReserve, cerr))
		}
	}

	// Steps 4 and 5 are soft: any outcome advances the machine.
	if !st.Done(domsaga.StepNotify) {
		c.notify(ctx, st)
		_ = c.checkpoint(ctx, st)
	}
	if !st.Done(domsaga.StepArchive) {
		c.archive(ctx, st)
		_ = c.checkpoint(ctx, st)
	}

	// Completion is a hard write again: losing it would leave the record
	// non-terminal forever.
	if werr := ord.MarkCompleted(); werr == nil {
		if uerr := c.writeOrder(ctx, ord); uerr != nil {
			outcome = "compensated"
			return c.compensate(ctx, st, ord,
				stepError(KindFatal, st.OrderID, domsaga.StepComplete,
					fmt.Errorf("final order write: %w", uerr)))
		}
	}

	st.Finish(domsaga.StatusCompleted)
	if cerr := c.checkpoint(ctx, st); cerr != nil {
		logger.Error("saga_final_checkpoint_failed",
			observability.F("error", cerr.Error()),
		)
	}

	res := &Result{
		OrderID:     st.OrderID,
		Status:      st.Status,
		OrderStatus: ord.Status,
		Warnings:    append([]string(nil), st.Warnings...),
	}
	if archived, ok := st.Result(domsaga.StepArchive); ok {
		res.ReceiptURI = archived.Detail
	}
	return res, nil
}

func (c *Coordinator) validate(ctx context.Context, st *domsaga.State) error {
	logger := logctx.FromOr(ctx, c.log)
	req := Request{
		ProductID:     st.Order.ProductID,
		Quantity:      st.Order.Quantity,
		CustomerEmail: st.Order.CustomerEmail,
		PaymentMethod: st.Order.PaymentMethod,
	}
	if err := req.Validate(); err != nil {
		return stepError(KindValidation, st.OrderID, domsaga.StepValidate, err)
	}

	var stock int
	attempts, err := c.retry(ctx, c.cfg.MaxAttempts, func(ctx context.Context) error {
		s, serr := c.ledger.Stock(ctx, st.Order.ProductID)
		if errors.Is(serr, inventory.ErrNotFound) {
			return backoff.Permanent(serr)
		}
		if serr != nil {
			return serr
		}
		stock = s
		return nil
	})
	c.recordStep(domsaga.StepValidate, attempts, err)

	switch {
	case errors.Is(err, inventory.ErrNotFound):
		return stepError(KindValidation, st.OrderID, domsaga.StepValidate, err)
	case err != nil:
		// Non-binding pre-check; the reserve step carries the real decision.
		st.Warn("stock pre-check unavailable: " + err.Error())
		logger.Warn("stock_precheck_unavailable",
			observability.F("error", err.Error()),
		)
	case stock < st.Order.Quantity:
		st.Warn(fmt.Sprintf("stock pre-check short: have %d, want %d", stock, st.Order.Quantity))
		logger.Warn("stock_precheck_short",
			observability.F("stock", stock),
			observability.F("quantity", st.Order.Quantity),
		)
	}

	st.Complete(domsaga.StepValidate, domsaga.StepResult{Outcome: domsaga.OutcomeDone, Attempts: attempts})
	logger.Info("saga_step_validated")
	return nil
}

func (c *Coordinator) persist(ctx context.Context, st *domsaga.State) (*order.Order, error) {
	ord, err := order.New(
		st.OrderID,
		st.Order.ProductID,
		st.Order.CustomerEmail,
		st.Order.PaymentMethod,
		st.Order.Quantity,
		st.Order.Amount,
	)
	if err != nil {
		return nil, stepError(KindValidation, st.OrderID, domsaga.StepPersist, err)
	}
	if err := ord.MarkPersisted(); err != nil {
		return nil, stepError(KindFatal, st.OrderID, domsaga.StepPersist, err)
	}

	attempts, err := c.retry(ctx, c.cfg.MaxAttempts, func(ctx context.Context) error {
		return c.orders.Upsert(ctx, ord)
	})
	c.recordStep(domsaga.StepPersist, attempts, err)
	if err != nil {
		return nil, stepError(KindFatal, st.OrderID, domsaga.StepPersist,
			fmt.Errorf("upsert after %d attempts: %w", attempts, err))
	}

	st.Complete(domsaga.StepPersist, domsaga.StepResult{Outcome: domsaga.OutcomeDone, Attempts: attempts})
	logctx.FromOr(ctx, c.log).Info("saga_step_persisted",
		observability.F("amount", st.Order.Amount),
	)
	return ord, nil
}

func (c *Coordinator) reserve(ctx context.Context, st *domsaga.State) (inventory.ReserveOutcome, error) {
	var out inventory.ReserveOutcome
	attempts, err := c.retry(ctx, c.cfg.MaxAttempts, func(ctx context.Context) error {
		o, rerr := c.ledger.Reserve(ctx, st.Order.ProductID, st.Order.Quantity, st.OrderID)
		if rerr != nil {
			return rerr
		}
		out = o
		return nil
	})
	c.recordStep(domsaga.StepReserve, attempts, err)
	if err != nil {
		return "", stepError(KindFatal, st.OrderID, domsaga.StepReserve,
			fmt.Errorf("reserve after %d attempts: %w", attempts, err))
	}

	if out != inventory.OutcomeInsufficientStock {
		st.Complete(domsaga.StepReserve, domsaga.StepResult{
			Outcome:  domsaga.OutcomeDone,
			Attempts: attempts,
			Detail:   string(out),
		})
		logctx.FromOr(ctx, c.log).Info("saga_step_reserved",
			observability.F("reserve_outcome", out),
		)
	}
	return out, nil
}

func (c *Coordinator) notify(ctx context.Context, st *domsaga.State) {
	logger := logctx.FromOr(ctx, c.log)
	attempts, err := c.retry(ctx, c.cfg.SoftMaxAttempts, func(ctx context.Context) error {
		return c.notifier.Notify(ctx, notification.Notification{
			OrderID: st.OrderID,
			Email:   st.Order.CustomerEmail,
			Message: notificationMessage,
		})
	})
	c.recordStep(domsaga.StepNotify, attempts, err)

	res := domsaga.StepResult{Outcome: domsaga.OutcomeDone, Attempts: attempts}
	if err != nil {
		// A lost notification is a logged degradation, never a saga failure.
		res.Outcome = domsaga.OutcomeSoftFailed
		res.Error = err.Error()
		st.Warn("notification failed: " + err.Error())
		logger.Warn("saga_step_notify_failed",
			observability.F("error", err.Error()),
		)
	} else {
		logger.Info("saga_step_notified")
	}
	st.Complete(domsaga.StepNotify, res)
}

type receipt struct {
	OrderID   string `json:"orderId"`
	Email     string `json:"email"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Amount    int64  `json:"amount"`
	Date      string `json:"date"`
}

func (c *Coordinator) archive(ctx context.Context, st *domsaga.State) {
	logger := logctx.FromOr(ctx, c.log)
	doc, err := json.Marshal(receipt{
		OrderID:   st.OrderID,
		Email:     st.Order.CustomerEmail,
		ProductID: st.Order.ProductID,
		Quantity:  st.Order.Quantity,
		Amount:    st.Order.Amount,
		Date:      time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		st.Complete(domsaga.StepArchive, domsaga.StepResult{
			Outcome: domsaga.OutcomeSoftFailed,
			Error:   err.Error(),
		})
		st.Warn("receipt marshal failed: " + err.Error())
		return
	}

	var locator string
	attempts, err := c.retry(ctx, c.cfg.SoftMaxAttempts, func(ctx context.Context) error {
		loc, aerr := c.archiver.Archive(ctx, st.OrderID, doc)
		if aerr != nil {
			return aerr
		}
		locator = loc
		return nil
	})
	c.recordStep(domsaga.StepArchive, attempts, err)

	res := domsaga.StepResult{Outcome: domsaga.OutcomeDone, Attempts: attempts, Detail: locator}
	if err != nil {
		res.Outcome = domsaga.OutcomeSoftFailed
		res.Error = err.Error()
		st.Warn("receipt archive failed: " + err.Error())
		logger.Warn("saga_step_archive_failed",
			observability.F("error", err.Error()),
		)
	} else {
		logger.Info("saga_step_archived",
			observability.F("receipt_uri", locator),
		)
	}
	st.Complete(domsaga.StepArchive, res)
}

// reject terminates the saga after a binding InsufficientStock. Nothing was
// reserved, so no compensation runs; the order record reflects the rejection.
func (c *Coordinator) reject(ctx context.Context, st *domsaga.State, ord *order.Order) (*Result, error) {
	if ord != nil {
		if err := ord.MarkRejected("insufficient stock"); err == nil {
			if uerr := c.writeOrder(ctx, ord); uerr != nil {
				logctx.FromOr(ctx, c.log).Error("saga_reject_order_write_failed",
					observability.F("error", uerr.Error()),
				)
			}
		}
	}

	st.Finish(domsaga.StatusReservationFailed)
	if err := c.checkpoint(ctx, st); err != nil {
		logctx.FromOr(ctx, c.log).Error("saga_reject_checkpoint_failed",
			observability.F("error", err.Error()),
		)
	}
	logctx.FromOr(ctx, c.log).Info("saga_reservation_rejected")

	res := &Result{
		OrderID:  st.OrderID,
		Status:   st.Status,
		Warnings: append([]string(nil), st.Warnings...),
	}
	if ord != nil {
		res.OrderStatus = ord.Status
	}
	return res, nil
}

// compensate hands reserved stock back before the saga stops. It is retried
// until the ledger acknowledges; skipping it would strand the reservation.
// The compensating status is checkpointed before the first release attempt,
// so a crash in the middle resumes here instead of running forward.
func (c *Coordinator) compensate(ctx context.Context, st *domsaga.State, ord *order.Order, cause error) (*Result, error) {
	ctx = context.WithoutCancel(ctx)
	logger := logctx.FromOr(ctx, c.log)
	logger.Warn("saga_compensation_start",
		observability.F("cause", cause.Error()),
	)

	if st.Status != domsaga.StatusCompensating {
		st.Finish(domsaga.StatusCompensating)
		if err := c.checkpoint(ctx, st); err != nil {
			logger.Error("saga_compensation_checkpoint_failed",
				observability.F("error", err.Error()),
			)
		}
	}

	for {
		attempts, err := c.retry(ctx, c.cfg.MaxAttempts, func(ctx context.Context) error {
			return c.ledger.Release(ctx, st.Order.ProductID, st.Order.Quantity, st.OrderID)
		})
		if err == nil {
			logger.Info("saga_compensation_done",
				observability.F("attempts", attempts),
			)
			break
		}
		logger.Error("saga_compensation_retrying",
			observability.F("attempts", attempts),
			observability.F("error", err.Error()),
		)
		if ctx.Err() != nil {
			return nil, stepError(KindFatal, st.OrderID, domsaga.StepReserve,
				fmt.Errorf("compensation interrupted: %w", ctx.Err()))
		}
	}

	if ord != nil {
		if err := ord.MarkCompensated(cause.Error()); err == nil {
			if uerr := c.writeOrder(ctx, ord); uerr != nil {
				logger.Error("saga_compensation_order_write_failed",
					observability.F("error", uerr.Error()),
				)
			}
		}
	}

	return nil, c.fail(ctx, st, domsaga.StatusCompensatedFailed, cause)
}

// fail moves the saga to a terminal failed status and returns cause.
func (c *Coordinator) fail(ctx context.Context, st *domsaga.State, status domsaga.Status, cause error) error {
	st.Finish(status)
	if err := c.checkpoint(ctx, st); err != nil {
		logctx.FromOr(ctx, c.log).Error("saga_fail_checkpoint_failed",
			observability.F("status", status),
			observability.F("error", err.Error()),
		)
	}
	return cause
}

func (c *Coordinator) loadOrder(ctx context.Context, st *domsaga.State) (*order.Order, error) {
	var ord *order.Order
	_, err := c.retry(ctx, c.cfg.MaxAttempts, func(ctx context.Context) error {
		o, gerr := c.orders.Get(ctx, st.OrderID)
		if errors.Is(gerr, order.ErrNotFound) {
			return backoff.Permanent(gerr)
		}
		if gerr != nil {
			return gerr
		}
		ord = o
		return nil
	})
	return ord, err
}

func (c *Coordinator) writeOrder(ctx context.Context, ord *order.Order) error {
	_, err := c.retry(ctx, c.cfg.MaxAttempts, func(ctx context.Context) error {
		return c.orders.Upsert(ctx, ord)
	})
	return err
}

func (c *Coordinator) checkpoint(ctx context.Context, st *domsaga.State) error {
	_, err := c.retry(ctx, c.cfg.MaxAttempts, func(ctx context.Context) error {
		return c.sagas.Save(ctx, st)
	})
	return err
}

func (c *Coordinator) recordStep(step domsaga.Step, attempts int, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.stepCounter.Add(float64(attempts),
		observability.L("step", string(step)),
		observability.L("outcome", outcome),
	)
}
