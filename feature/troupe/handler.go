package troupe

import (
	"time"

	"rollcall/core/faults"
	"rollcall/core/logger"
	"rollcall/core/matcher"
	"rollcall/core/props"
	"rollcall/feature/troupe/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for troupe configuration.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the troupe routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/troupes")
	group.Post("/", h.HandleCreateTroupe)
	group.Get("/:id", h.HandleGetTroupe)
	group.Post("/:id/properties", h.HandleAddProperty)
	group.Delete("/:id/properties/:name", h.HandleRemoveProperty)
	group.Patch("/:id/properties/:name", h.HandlePatchProperty)
	group.Post("/:id/point-types", h.HandleAddPointType)
	group.Patch("/:id/point-types/:name", h.HandleUpdatePointWindow)
	group.Delete("/:id/point-types/:name", h.HandleRemovePointType)
	group.Post("/:id/matchers", h.HandleAddMatcher)
	group.Delete("/:id/matchers", h.HandleRemoveMatcher)
	group.Post("/:id/event-types", h.HandleCreateEventType)
	group.Patch("/:id/event-types/:tid/value", h.HandleSetEventTypeValue)
	group.Delete("/:id/event-types/:tid", h.HandleDeleteEventType)
	group.Post("/:id/event-types/:tid/folders", h.HandleAddFolder)
	group.Delete("/:id/event-types/:tid/folders", h.HandleRemoveFolder)
	group.Patch("/:id/events/:eid/value", h.HandleSetEventValue)
	group.Patch("/:id/events/:eid/type", h.HandleAssignEventType)
	group.Patch("/:id/origin-event", h.HandleSetOriginEvent)
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

// HandleCreateTroupe creates a troupe.
// @Summary Create Troupe
// @Tags troupe
// @Accept json
// @Produce json
// @Param body body object true "{name}"
// @Success 201 {object} models.Troupe
// @Router /troupes [post]
func (h *Handler) HandleCreateTroupe(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	var body struct {
		Name string `json:"name"`
	}
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, l, faults.Client("malformed body: %v", err))
	}
	t, err := h.service.CreateTroupe(c.Context(), body.Name)
	if err != nil {
		return respondError(c, l, err)
	}
	return c.Status(fiber.StatusCreated).JSON(t)
}

// HandleGetTroupe returns one troupe's configuration and dashboard.
// @Summary Get Troupe
// @Tags troupe
// @Produce json
// @Param id path string true "Troupe ID"
// @Success 200 {object} models.Troupe
// @Router /troupes/{id} [get]
func (h *Handler) HandleGetTroupe(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	t, err := h.service.store.GetTroupe(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, l, err)
	}
	return c.JSON(t)
}

func (h *Handler) HandleAddProperty(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	var body struct {
		Name string         `json:"name"`
		Base props.BaseType `json:"base"`
	}
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, l, faults.Client("malformed body: %v", err))
	}
	err := h.service.AddProperty(c.Context(), c.Params("id"), body.Name, props.Tag{Base: body.Base})
	if err != nil {
		return respondError(c, l, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) HandleRemoveProperty(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	err := h.service.RemoveProperty(c.Context(), c.Params("id"), c.Params("name"))
	if err != nil {
		return respondError(c, l, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) HandlePatchProperty(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	var body struct {
		Required *bool           `json:"required"`
		Base     *props.BaseType `json:"base"`
	}
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, l, faults.Client("malformed body: %v", err))
	}
	id, name := c.Params("id"), c.Params("name")
	if body.Base != nil {
		if err := h.service.RetypeProperty(c.Context(), id, name, *body.Base); err != nil {
			return respondError(c, l, err)
		}
	}
	if body.Required != nil {
		if err := h.service.SetPropertyRequired(c.Context(), id, name, *body.Required); err != nil {
			return respondError(c, l, err)
		}
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type pointWindowBody struct {
	Name  string     `json:"name"`
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

func (b pointWindowBody) window() models.PointWindow {
	var w models.PointWindow
	if b.Start != nil {
		w.Start = *b.Start
	}
	if b.End != nil {
		w.End = *b.End
	}
	return w
}

func (h *Handler) HandleAddPointType(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	var body pointWindowBody
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, l, faults.Client("malformed body: %v", err))
	}
	err := h.service.AddPointType(c.Context(), c.Params("id"), body.Name, body.window())
	if err != nil {
		return respondError(c, l, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) HandleUpdatePointWindow(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	var body pointWindowBody
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, l, faults.Client("malformed body: %v", err))
	}
	err := h.service.UpdatePointWindow(c.Context(), c.Params("id"), c.Params("name"), body.window())
	if err != nil {
		return respondError(c, l, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) HandleRemovePointType(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	err := h.service.RemovePointType(c.Context(), c.Params("id"), c.Params("name"))
	if err != nil {
		return respondError(c, l, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) HandleAddMatcher(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	var m matcher.Matcher
	if err := c.BodyParser(&m); err != nil {
		return respondError(c, l, faults.Client("malformed body: %v", err))
	}
	if err := h.service.AddMatcher(c.Context(), c.Params("id"), m); err != nil {
		return respondError(c, l, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) HandleRemoveMatcher(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	var body struct {
		Expression string `json:"expression"`
		Priority   int    `json:"priority"`
	}
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, l, faults.Client("malformed body: %v", err))
	}
	err := h.service.RemoveMatcher(c.Context(), c.Params("id"), body.Expression, body.Priority)
	if err != nil {
		return respondError(c, l, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) HandleCreateEventType(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	var body struct {
		Title string  `json:"title"`
		Value float64 `json:"value"`
	}
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, l, faults.Client("malformed body: %v", err))
	}
	et, err := h.service.CreateEventType(c.Context(), c.Params("id"), body.Title, body.Value)
	if err != nil {
		return respondError(c, l, err)
	}
	return c.Status(fiber.StatusCreated).JSON(et)
}

func (h *Handler) HandleSetEventTypeValue(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	var body struct {
		Value float64 `json:"value"`
	}
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, l, faults.Client("malformed body: %v", err))
	}
	err := h.service.SetEventTypeValue(c.Context(), c.Params("id"), c.Params("tid"), body.Value)
	if err != nil {
		return respondError(c, l, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) HandleDeleteEventType(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	err := h.service.DeleteEventType(c.Context(), c.Params("id"), c.Params("tid"))
	if err != nil {
		return respondError(c, l, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) HandleAddFolder(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	var body struct {
		URI string `json:"uri"`
	}
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, l, faults.Client("malformed body: %v", err))
	}
	err := h.service.AddEventTypeFolder(c.Context(), c.Params("id"), c.Params("tid"), body.URI)
	if err != nil {
		return respondError(c, l, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) HandleRemoveFolder(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	var body struct {
		URI string `json:"uri"`
	}
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, l, faults.Client("malformed body: %v", err))
	}
	err := h.service.RemoveEventTypeFolder(c.Context(), c.Params("id"), c.Params("tid"), body.URI)
	if err != nil {
		return respondError(c, l, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) HandleSetEventValue(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	var body struct {
		Value float64 `json:"value"`
	}
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, l, faults.Client("malformed body: %v", err))
	}
	err := h.service.SetEventValue(c.Context(), c.Params("id"), c.Params("eid"), body.Value)
	if err != nil {
		return respondError(c, l, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) HandleAssignEventType(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	var body struct {
		EventTypeID string `json:"event_type_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, l, faults.Client("malformed body: %v", err))
	}
	err := h.service.AssignEventType(c.Context(), c.Params("id"), c.Params("eid"), body.EventTypeID)
	if err != nil {
		return respondError(c, l, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) HandleSetOriginEvent(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	var body struct {
		EventID string `json:"event_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return respondError(c, l, faults.Client("malformed body: %v", err))
	}
	err := h.service.SetOriginEvent(c.Context(), c.Params("id"), body.EventID)
	if err != nil {
		return respondError(c, l, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
