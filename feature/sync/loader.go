package sync

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Feature wires the sync module into the application loader.
type Feature struct {
	orch   *Orchestrator
	logger *zap.Logger
}

// NewFeature creates the sync feature over an already-wired orchestrator.
func NewFeature(orch *Orchestrator, logger *zap.Logger) *Feature {
	return &Feature{orch: orch, logger: logger}
}

// Orchestrator exposes the orchestrator for the CLI entry points.
func (f *Feature) Orchestrator() *Orchestrator { return f.orch }

func (f *Feature) Name() string { return "sync" }

func (f *Feature) IsEnabled() bool { return true }

func (f *Feature) Load(app fiber.Router) error {
	NewHandler(f.orch, f.logger).RegisterRoutes(app)
	return nil
}
