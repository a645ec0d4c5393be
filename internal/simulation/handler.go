package simulation

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/case-supplier/case-supplier/internal/platform/httpx"
)

// Handler exposes the simulation control endpoints.
type Handler struct {
	controller *Controller
	logger     *slog.Logger
}

func NewHandler(controller *Controller, logger *slog.Logger) *Handler {
	return &Handler{controller: controller, logger: logger}
}

// MountRoutes attaches the simulation endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/simulation/start", h.handleStart)
	r.Post("/simulation/end", h.handleEnd)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Start(r.Context()); err != nil {
		h.logger.Error("start simulation", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Failed to start simulation", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Successfully started simulation"})
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.End(r.Context()); err != nil {
		h.logger.Error("end simulation", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Failed to stop simulation", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Successfully stopped simulation"})
}
