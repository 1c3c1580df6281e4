package sync

import (
	"rollcall/core/faults"
	"rollcall/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for sync runs.
type Handler struct {
	orch   *Orchestrator
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(orch *Orchestrator, l *zap.Logger) *Handler {
	return &Handler{orch: orch, logger: l}
}

// RegisterRoutes registers the sync routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/troupes")
	group.Post("/:id/sync", h.HandleSync)
	group.Delete("/:id/sync/lock", h.HandleForceUnlock)
	group.Get("/:id/dashboard", h.HandleDashboard)
}

// HandleSync runs one full sync pass for the troupe.
// @Summary Run Sync
// @Tags sync
// @Produce json
// @Param id path string true "troupe id"
// @Success 200 {object} Result
// @Router /troupes/{id}/sync [post]
func (h *Handler) HandleSync(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	res, err := h.orch.Sync(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, l, err)
	}
	return c.JSON(res)
}

// HandleForceUnlock clears a stuck sync lock.
// @Summary Force Unlock
// @Tags sync
// @Produce json
// @Param id path string true "troupe id"
// @Success 200 {object} object
// @Router /troupes/{id}/sync/lock [delete]
func (h *Handler) HandleForceUnlock(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	if err := h.orch.ForceUnlock(c.Context(), c.Params("id")); err != nil {
		return respondError(c, l, err)
	}
	return c.JSON(fiber.Map{"status": "unlocked"})
}

// HandleDashboard returns the dashboard snapshot from the last sync.
// @Summary Get Dashboard
// @Tags sync
// @Produce json
// @Param id path string true "troupe id"
// @Success 200 {object} models.Dashboard
// @Router /troupes/{id}/dashboard [get]
func (h *Handler) HandleDashboard(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	tr, err := h.orch.store.GetTroupe(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, l, err)
	}
	if tr.Dashboard == nil {
		return respondError(c, l, faults.Client("troupe %s has not completed a sync yet", tr.ID))
	}
	return c.JSON(tr.Dashboard)
}

// respondError maps the typed error kinds onto HTTP statuses.
func respondError(c *fiber.Ctx, l *zap.Logger, err error) error {
	switch {
	case faults.IsClient(err):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case faults.IsUnavailable(err):
		l.Warn("Sources unavailable", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	case faults.IsInvariant(err):
		l.Error("Invariant violation", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	default:
		l.Error("Sync failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}
