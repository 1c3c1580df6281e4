package report

import (
	"context"

	"rollcall/core/faults"
	"rollcall/core/logger"
	"rollcall/feature/troupe"
	"rollcall/feature/troupe/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Handler handles HTTP requests for report maintenance.
type Handler struct {
	sync   *Synchronizer
	store  *troupe.Store
	logger *zap.Logger
	// inflight collapses concurrent validations of the same troupe.
	inflight singleflight.Group
}

// NewHandler creates a new HTTP handler.
func NewHandler(sync *Synchronizer, store *troupe.Store, l *zap.Logger) *Handler {
	return &Handler{sync: sync, store: store, logger: l}
}

// RegisterRoutes registers the report routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/troupes")
	group.Get("/:id/report/validate", h.HandleValidate)
	group.Post("/:id/report/rebuild", h.HandleRebuild)
	group.Delete("/:id/report", h.HandleDelete)
}

type ledgerState struct {
	tr         *models.Troupe
	types      []*models.EventType
	events     []*models.Event
	members    []*models.Member
	attendance map[string]map[string]models.AttendanceEntry
}

func (h *Handler) loadState(ctx context.Context, troupeID string) (*ledgerState, error) {
	tr, err := h.store.GetTroupe(ctx, troupeID)
	if err != nil {
		return nil, err
	}
	types, err := h.store.ListEventTypes(ctx, troupeID)
	if err != nil {
		return nil, err
	}
	events, err := h.store.ListEvents(ctx, troupeID)
	if err != nil {
		return nil, err
	}
	members, err := h.store.ListMembers(ctx, troupeID)
	if err != nil {
		return nil, err
	}
	pages, err := h.store.ListAttendance(ctx, troupeID)
	if err != nil {
		return nil, err
	}
	attendance := make(map[string]map[string]models.AttendanceEntry)
	for _, p := range pages {
		rec, ok := attendance[p.MemberID]
		if !ok {
			rec = make(map[string]models.AttendanceEntry)
			attendance[p.MemberID] = rec
		}
		for eventID, e := range p.Entries {
			rec[eventID] = e
		}
	}
	return &ledgerState{tr: tr, types: types, events: events, members: members, attendance: attendance}, nil
}

// HandleValidate checks the stored report against the ledger.
// @Summary Validate Report
// @Tags report
// @Produce json
// @Param id path string true "troupe id"
// @Success 200 {object} object
// @Router /troupes/{id}/report/validate [get]
func (h *Handler) HandleValidate(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	troupeID := c.Params("id")

	v, err, _ := h.inflight.Do(troupeID, func() (any, error) {
		state, err := h.loadState(c.Context(), troupeID)
		if err != nil {
			return nil, err
		}
		return h.sync.Validate(c.Context(), state.tr, state.types, state.events, state.members, state.attendance)
	})
	if err != nil {
		return respondError(c, l, err)
	}
	diffs, _ := v.([]string)
	return c.JSON(fiber.Map{"faithful": len(diffs) == 0, "diffs": diffs})
}

// HandleRebuild re-creates the report document from the ledger.
// @Summary Rebuild Report
// @Tags report
// @Produce json
// @Param id path string true "troupe id"
// @Success 200 {object} object
// @Router /troupes/{id}/report/rebuild [post]
func (h *Handler) HandleRebuild(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	state, err := h.loadState(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, l, err)
	}
	if state.tr.SyncLock {
		return respondError(c, l, faults.Client("a sync is running for troupe %s", state.tr.ID))
	}
	if err := h.sync.DeleteReport(c.Context(), state.tr.ReportURI); err != nil {
		return respondError(c, l, err)
	}
	state.tr.ReportURI = ""
	uri, err := h.sync.Refresh(c.Context(), state.tr, state.types, state.events, state.members, state.attendance)
	if err != nil {
		return respondError(c, l, err)
	}
	state.tr.ReportURI = uri
	if err := h.store.SaveTroupe(c.Context(), state.tr); err != nil {
		return respondError(c, l, err)
	}
	return c.JSON(fiber.Map{"report_uri": uri})
}

// HandleDelete removes the report document and forgets its URI.
// @Summary Delete Report
// @Tags report
// @Produce json
// @Param id path string true "troupe id"
// @Success 200 {object} object
// @Router /troupes/{id}/report [delete]
func (h *Handler) HandleDelete(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	tr, err := h.store.GetTroupe(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, l, err)
	}
	if tr.SyncLock {
		return respondError(c, l, faults.Client("a sync is running for troupe %s", tr.ID))
	}
	if err := h.sync.DeleteReport(c.Context(), tr.ReportURI); err != nil {
		return respondError(c, l, err)
	}
	tr.ReportURI = ""
	if err := h.store.SaveTroupe(c.Context(), tr); err != nil {
		return respondError(c, l, err)
	}
	return c.JSON(fiber.Map{"status": "deleted"})
}

// respondError maps the typed error kinds onto HTTP statuses.
func respondError(c *fiber.Ctx, l *zap.Logger, err error) error {
	switch {
	case faults.IsClient(err):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case faults.IsInvariant(err):
		l.Error("Invariant violation", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	default:
		l.Error("Request failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}
