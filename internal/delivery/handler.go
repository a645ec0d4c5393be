// Package delivery receives the logistics provider's shipment
// notifications (DELIVERY and PICKUP) on the POST /logistics webhook.
package delivery

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/case-supplier/case-supplier/internal/equipment"
	"github.com/case-supplier/case-supplier/internal/logistics"
	"github.com/case-supplier/case-supplier/internal/orders"
	"github.com/case-supplier/case-supplier/internal/platform/httpx"
	"github.com/case-supplier/case-supplier/internal/procure"
	"github.com/case-supplier/case-supplier/internal/stock"
)

// OrderFinder resolves an inbound delivery to the external order it fulfils.
type OrderFinder interface {
	FindByShipmentReference(ctx context.Context, shipmentReference string) (procure.ExternalOrder, error)
}

// Receiver moves in-transit units into on-hand stock.
type Receiver interface {
	Deliver(ctx context.Context, t stock.ItemType, deliveredUnits int64) error
}

// PickupRecorder confirms customer collections against case orders.
type PickupRecorder interface {
	RecordPickup(ctx context.Context, orderID, quantity int64) error
}

// WeightSource resolves the machine unit weight for converting delivered
// kilograms to machine counts.
type WeightSource interface {
	MachineWeight(ctx context.Context) (float64, error)
}

// Handler receives the logistics provider's shipment notifications. One
// endpoint carries both directions: DELIVERY for goods arriving from
// suppliers and PICKUP for customers collecting finished cases.
type Handler struct {
	finder   OrderFinder
	receiver Receiver
	pickups  PickupRecorder
	weights  WeightSource
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(finder OrderFinder, receiver Receiver, pickups PickupRecorder, weights WeightSource, logger *slog.Logger) *Handler {
	return &Handler{
		finder:   finder,
		receiver: receiver,
		pickups:  pickups,
		weights:  weights,
		validate: validator.New(),
		logger:   logger,
	}
}

// MountRoutes attaches the shipment notification endpoint.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/logistics", h.handleShipmentNotification)
}

type shipmentItem struct {
	Name     string `json:"name" validate:"required"`
	Quantity int64  `json:"quantity" validate:"required,gt=0"`
}

// shipmentNotification's ID field is a shipment reference for deliveries
// and a case order id for pickups.
type shipmentNotification struct {
	ID    string         `json:"id" validate:"required"`
	Type  string         `json:"type" validate:"required"`
	Items []shipmentItem `json:"items" validate:"required,len=1,dive"`
}

func (h *Handler) handleShipmentNotification(w http.ResponseWriter, r *http.Request) {
	var note shipmentNotification
	if err := httpx.DecodeJSON(r, &note); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(note); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation failed", "Unexpected number of items")
		return
	}

	item := note.Items[0]

	switch note.Type {
	case logistics.ShipmentDelivery:
		h.handleDelivery(w, r, note.ID, item)
	case logistics.ShipmentPickup:
		h.handlePickup(w, r, note.ID, item)
	default:
		httpx.Problem(w, http.StatusBadRequest, "Unknown delivery type", "")
	}
}

func (h *Handler) handleDelivery(w http.ResponseWriter, r *http.Request, shipmentReference string, item shipmentItem) {
	ctx := r.Context()

	order, err := h.finder.FindByShipmentReference(ctx, shipmentReference)
	if err != nil {
		if errors.Is(err, procure.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Delivery order not found", "")
			return
		}
		h.logger.Error("resolve delivery", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
		return
	}

	line := order.Items[0]
	units := item.Quantity
	if line.StockType == stock.TypeMachine {
		weightPerUnit, err := h.weights.MachineWeight(ctx)
		if err != nil {
			if errors.Is(err, equipment.ErrNoMachineWeight) {
				httpx.Problem(w, http.StatusConflict, "Machine weight unknown",
					"No machine purchase has recorded a unit weight yet.")
				return
			}
			h.logger.Error("resolve machine weight", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
			return
		}
		units = int64(math.Ceil(float64(item.Quantity) / weightPerUnit))
	}

	if err := h.receiver.Deliver(ctx, line.StockType, units); err != nil {
		h.logger.Error("receive delivery",
			slog.String("shipment_reference", shipmentReference), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
		return
	}

	h.logger.Info("external order delivered",
		slog.String("shipment_reference", shipmentReference),
		slog.String("stock_type", string(line.StockType)),
		slog.Int64("units", units))
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Successfully received external order"})
}

func (h *Handler) handlePickup(w http.ResponseWriter, r *http.Request, id string, item shipmentItem) {
	orderID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusNotFound, "Order not found", "")
		return
	}

	if err := h.pickups.RecordPickup(r.Context(), orderID, item.Quantity); err != nil {
		switch {
		case errors.Is(err, orders.ErrNotFound):
			httpx.Problem(w, http.StatusNotFound, "Order not found", "")
		case errors.Is(err, orders.ErrPickupNotPending):
			httpx.Problem(w, http.StatusBadRequest, "Pickup not pending", "Payment has not been received for order.")
		case errors.Is(err, orders.ErrPickupExceeds):
			httpx.Problem(w, http.StatusBadRequest, "Quantity exceeded", "Requested quantity exceeded for order id.")
		default:
			h.logger.Error("record pickup", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal error", "")
		}
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Successfully notified of pickup"})
}
