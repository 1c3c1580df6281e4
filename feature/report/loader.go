package report

import (
	"rollcall/feature/troupe"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Feature wires the report module into the application loader.
type Feature struct {
	sync   *Synchronizer
	store  *troupe.Store
	logger *zap.Logger
}

// NewFeature creates the report feature over the shared connection and an
// already-chosen backend.
func NewFeature(db *gorm.DB, backend Backend, logger *zap.Logger) *Feature {
	return &Feature{
		sync:   NewSynchronizer(backend, logger),
		store:  troupe.NewStore(db),
		logger: logger,
	}
}

// Synchronizer exposes the synchronizer for the sync orchestrator wiring.
func (f *Feature) Synchronizer() *Synchronizer { return f.sync }

func (f *Feature) Name() string { return "report" }

func (f *Feature) IsEnabled() bool { return true }

func (f *Feature) Load(app fiber.Router) error {
	NewHandler(f.sync, f.store, f.logger).RegisterRoutes(app)
	return nil
}
