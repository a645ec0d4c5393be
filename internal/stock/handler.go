package stock

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/case-supplier/case-supplier/internal/platform/httpx"
)

// FallbackCasePrice is quoted when dynamic pricing cannot be computed,
// typically before equipment parameters have been synced.
const FallbackCasePrice = 20

// Pricer computes the current selling price of one case.
type Pricer interface {
	PricePerCase(ctx context.Context) (float64, error)
}

// Handler serves the public case-stock view and the market's machine
// failure webhook.
type Handler struct {
	svc      *Service
	pricer   Pricer
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(svc *Service, pricer Pricer, logger *slog.Logger) *Handler {
	return &Handler{
		svc:      svc,
		pricer:   pricer,
		validate: validator.New(),
		logger:   logger,
	}
}

// MountRoutes attaches the stock endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/cases", h.handleCaseInfo)
	r.Post("/machines/failure", h.handleMachineFailure)
}

type caseInfoResponse struct {
	AvailableUnits int64   `json:"available_units"`
	PricePerUnit   float64 `json:"price_per_unit"`
}

func (h *Handler) handleCaseInfo(w http.ResponseWriter, r *http.Request) {
	availability, err := h.svc.AvailableCases(r.Context())
	if err != nil {
		h.logger.Error("case stock lookup", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
		return
	}

	price, err := h.pricer.PricePerCase(r.Context())
	if err != nil {
		h.logger.Warn("case price unavailable, quoting fallback", slog.Any("error", err))
		price = FallbackCasePrice
	}

	httpx.JSON(w, http.StatusOK, caseInfoResponse{
		AvailableUnits: availability.AvailableUnits,
		PricePerUnit:   price,
	})
}

// machineFailureNotification is the market's break event callback. Machines
// removed here may exceed the current count when the event races a sale, so
// the decrement is clamped rather than rejected.
type machineFailureNotification struct {
	MachineName     string `json:"machineName" validate:"required"`
	FailureQuantity int64  `json:"failureQuantity" validate:"required,gt=0"`
	SimulationDate  string `json:"simulationDate"`
	SimulationTime  string `json:"simulationTime"`
}

func (h *Handler) handleMachineFailure(w http.ResponseWriter, r *http.Request) {
	var note machineFailureNotification
	if err := httpx.DecodeJSON(r, &note); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(note); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	if note.MachineName != "case_machine" {
		h.logger.Warn("machine failure for unknown machine", slog.String("machine", note.MachineName))
		httpx.Problem(w, http.StatusBadRequest, "Unknown machine name", "")
		return
	}

	removed, err := h.svc.DecreaseFlexible(r.Context(), TypeMachine, note.FailureQuantity)
	if err != nil && !errors.Is(err, ErrInsufficientStock) {
		h.logger.Error("handle machine failure", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
		return
	}

	h.logger.Info("machines removed after break event",
		slog.Int64("requested", note.FailureQuantity),
		slog.Int64("removed", removed))
	httpx.JSON(w, http.StatusOK, map[string]string{
		"message": "Successfully handled simulation machine break event",
	})
}
