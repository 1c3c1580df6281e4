package troupe

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gofiber/fiber/v2"
)

// Feature wires the troupe module into the application loader.
type Feature struct {
	service *Service
}

// NewFeature creates the troupe feature over the shared connection.
func NewFeature(db *gorm.DB, logger *zap.Logger) *Feature {
	return &Feature{service: NewService(NewStore(db), logger)}
}

// Service exposes the feature's service for sibling features.
func (f *Feature) Service() *Service { return f.service }

func (f *Feature) Name() string { return "troupe" }

func (f *Feature) IsEnabled() bool { return true }

func (f *Feature) Load(app fiber.Router) error {
	NewHandler(f.service).RegisterRoutes(app)
	return nil
}
