package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	appsaga "github.com/minicommerce/fulfillment/internal/application/saga"
	domainOrder "github.com/minicommerce/fulfillment/internal/domain/order"
	domainSaga "github.com/minicommerce/fulfillment/internal/domain/saga"
	"github.com/minicommerce/fulfillment/internal/observability"
	"github.com/minicommerce/fulfillment/internal/observability/logctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	coordinator *appsaga.Coordinator
	log         observability.Logger
	tel         observability.Observability
}

const componentHTTPHandler = "http_server"

func NewHandler(coordinator *appsaga.Coordinator, logger observability.Logger, tel observability.Observability) *Handler {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = observability.NopLogger()
	}
	if tel == nil {
		tel = observability.Nop()
	}
	return &Handler{
		coordinator: coordinator,
		log:         baseLogger.With(observability.F("component", componentHTTPHandler)),
		tel:         tel,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	h.muxHandle(mux, http.MethodPost, "/orders", h.handlePlaceOrder)
	h.muxHandle(mux, http.MethodGet, "/orders/status", h.handleOrderStatus)
	h.muxHandle(mux, http.MethodPost, "/orders/cancel", h.handleCancelOrder)
	h.muxHandle(mux, http.MethodGet, "/health", h.handleHealth)

	return mux
}

func (h *Handler) muxHandle(mux *http.ServeMux, method, route string, handler http.HandlerFunc) {
	mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		// Store stable route template for low-cardinality labels
		ctx := contextWithRoute(r.Context(), route)
		r = r.WithContext(ctx)

		wrapped := h.withTrace(
			RequestMiddleware(h.log, h.tel)(
				h.withAccessLog(http.HandlerFunc(handler)),
			),
		)
		wrapped.ServeHTTP(w, r)
	})
}

type placeOrderRequest struct {
	ProductID     string `json:"productId"`
	Quantity      int    `json:"quantity"`
	CustomerEmail string `json:"customerEmail"`
	PaymentMethod string `json:"paymentMethod"`
}

type placeOrderResponse struct {
	OrderID     string             `json:"orderId"`
	Status      domainSaga.Status  `json:"status"`
	OrderStatus domainOrder.Status `json:"orderStatus,omitempty"`
	ReceiptURI  string             `json:"receiptUri,omitempty"`
	Warnings    []string           `json:"warnings,omitempty"`
}

func (h *Handler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	input := appsaga.Request{
		ProductID:     req.ProductID,
		Quantity:      req.Quantity,
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		PaymentMethod: req.PaymentMethod,
	}
	// Malformed input is rejected here, before any saga instance exists.
	if err := input.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.coordinator.Run(r.Context(), input)
	if err != nil {
		writeSagaError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Status == domainSaga.StatusReservationFailed {
		status = http.StatusConflict
	}
	writeJSON(w, status, placeOrderResponse{
		OrderID:     result.OrderID,
		Status:      result.Status,
		OrderStatus: result.OrderStatus,
		ReceiptURI:  result.ReceiptURI,
		Warnings:    result.Warnings,
	})
}

type orderStatusResponse struct {
	OrderID       string             `json:"orderId"`
	Status        domainOrder.Status `json:"status"`
	Amount        int64              `json:"amount"`
	FailureReason string             `json:"failureReason,omitempty"`
	SagaStatus    domainSaga.Status  `json:"sagaStatus,omitempty"`
}

func (h *Handler) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("id query parameter is required"))
		return
	}

	ord, err := h.coordinator.Order(r.Context(), id)
	if err != nil {
		writeSagaError(w, err)
		return
	}

	resp := orderStatusResponse{
		OrderID:       ord.ID,
		Status:        ord.Status,
		Amount:        ord.Amount,
		FailureReason: ord.FailureReason,
	}
	if st, serr := h.coordinator.Saga(r.Context(), id); serr == nil {
		resp.SagaStatus = st.Status
	}
	writeJSON(w, http.StatusOK, resp)
}

type cancelOrderRequest struct {
	OrderID string `json:"orderId"`
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.OrderID == "" {
		writeError(w, http.StatusBadRequest, errors.New("orderId is required"))
		return
	}

	if err := h.coordinator.Cancel(r.Context(), req.OrderID); err != nil {
		writeSagaError(w, err)
		return
	}

	logctx.FromOr(r.Context(), h.log).Info("order_cancel_accepted",
		observability.F("order_id", req.OrderID),
	)
	writeJSON(w, http.StatusOK, map[string]string{"orderId": req.OrderID, "status": "cancelled"})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// withAccessLog writes a single access log after the handler completes.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("fulfillment.http")

		route := routeFromContext(r.Context())
		spanName := route
		if spanName == "unknown" {
			spanName = r.Method + " " + r.URL.Path
		}

		ctxWithSpan, span := tracer.Start(r.Context(),
			spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("http.target", r.URL.Path),
			),
		)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctxWithSpan))
	})
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeSagaError(w http.ResponseWriter, err error) {
	switch {
	case appsaga.IsValidation(err), errors.Is(err, appsaga.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domainOrder.ErrNotFound), errors.Is(err, domainSaga.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, appsaga.ErrCancelTooLate), errors.Is(err, appsaga.ErrAlreadyFinished):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

type routeKey struct{}

// contextWithRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}
