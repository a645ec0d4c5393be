package orders

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/case-supplier/case-supplier/internal/finance"
	"github.com/case-supplier/case-supplier/internal/platform/httpx"
)

// AccountSource exposes the company bank account so customers can be told
// where to send payment.
type AccountSource interface {
	Get(ctx context.Context) (finance.Account, error)
}

// Handler serves the customer-facing case order API and the bank's payment
// notification webhook.
type Handler struct {
	svc      *Service
	accounts AccountSource
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(svc *Service, accounts AccountSource, logger *slog.Logger) *Handler {
	return &Handler{
		svc:      svc,
		accounts: accounts,
		validate: validator.New(),
		logger:   logger,
	}
}

// MountRoutes attaches the order endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/case-orders", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Get("/{id}", h.handleGet)
		r.Delete("/{id}", h.handleCancel)
	})
	r.Post("/payment", h.handlePaymentNotification)
}

type orderResponse struct {
	ID                int64   `json:"id"`
	Status            string  `json:"status"`
	Quantity          int64   `json:"quantity"`
	QuantityDelivered int64   `json:"quantity_delivered"`
	TotalPrice        float64 `json:"total_price"`
	AmountPaid        float64 `json:"amount_paid"`
	OrderedAt         string  `json:"ordered_at"`
	// AccountNumber is the supplier account the customer must pay into.
	AccountNumber string `json:"account_number,omitempty"`
}

func toResponse(o Order) orderResponse {
	return orderResponse{
		ID:                o.ID,
		Status:            string(o.Status),
		Quantity:          o.Quantity,
		QuantityDelivered: o.QuantityDelivered,
		TotalPrice:        o.TotalPrice,
		AmountPaid:        o.AmountPaid,
		OrderedAt:         o.OrderedAt,
	}
}

type createOrderRequest struct {
	Quantity int64 `json:"quantity" validate:"required,gt=0"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	order, err := h.svc.Create(r.Context(), req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidQuantity):
			httpx.Problem(w, http.StatusBadRequest, "Invalid quantity",
				"Orders must be placed in multiples of 1000 units.")
		case errors.Is(err, ErrInsufficientStock):
			httpx.Problem(w, http.StatusBadRequest, "Insufficient stock",
				"Insufficient stock. Please try again later.")
		default:
			h.logger.Error("create case order", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
		}
		return
	}

	resp := toResponse(order)
	if account, err := h.accounts.Get(r.Context()); err == nil {
		resp.AccountNumber = account.Number
	}
	httpx.JSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid order id", "")
		return
	}

	order, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "")
			return
		}
		h.logger.Error("get case order", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(order))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid order id", "")
		return
	}

	if err := h.svc.Cancel(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", "")
		case errors.Is(err, ErrNotCancellable):
			httpx.Problem(w, http.StatusBadRequest, "Not cancellable",
				"This order can no longer be cancelled.")
		default:
			h.logger.Error("cancel case order", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// paymentNotification is the commercial bank's transfer callback. The
// description carries the case order id the customer paid toward.
type paymentNotification struct {
	TransactionNumber string  `json:"transaction_number"`
	Description       string  `json:"description" validate:"required"`
	From              string  `json:"from"`
	Amount            float64 `json:"amount"`
	Status            string  `json:"status" validate:"required"`
}

func (h *Handler) handlePaymentNotification(w http.ResponseWriter, r *http.Request) {
	var note paymentNotification
	if err := httpx.DecodeJSON(r, &note); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(note); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	if note.Status != "success" {
		httpx.JSON(w, http.StatusOK, map[string]any{})
		return
	}

	orderID, err := strconv.ParseInt(note.Description, 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
		return
	}

	outcome, err := h.svc.ApplyPayment(r.Context(), orderID, note.From, note.Amount, note.TransactionNumber)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "")
			return
		}
		h.logger.Error("apply payment", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
		return
	}

	var message string
	switch outcome {
	case PaymentDuplicate:
		message = "Payment already processed"
	case PaymentRefundedCancelled:
		message = "Refund on cancelled order"
	case PaymentComplete:
		message = "Complete payment received"
	default:
		message = "Partial payment received"
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": message})
}
