package cmd

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"rollcall/core/config"
	"rollcall/core/database"
	"rollcall/core/loader"
	"rollcall/core/logger"
	"rollcall/core/metrics"
	"rollcall/core/middleware/auth"
	"rollcall/core/middleware/rayid"
	"rollcall/core/source/local"
	"rollcall/core/storage"

	"rollcall/feature/report"
	"rollcall/feature/sync"
	"rollcall/feature/troupe"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "rollcall/docs/swagger"
)

// @title Rollcall API
// @version 1.0
// @description API for membership ledger synchronization.
// @host localhost:8080
// @BasePath /

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the rollcall server",
	Long:  `Starts the HTTP server and initializes all enabled features.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		// 2. Initialize Logger
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 3. Connect to Database (Required)
		// The ledger is the single source of truth; without it nothing works.
		db, err := database.Connect(cfg.Database)
		if err != nil {
			logg.Fatal("Failed to connect to database", zap.Error(err))
		}
		store := troupe.NewStore(db)
		if err := store.AutoMigrate(); err != nil {
			logg.Fatal("Failed to migrate schema", zap.Error(err))
		}

		// 4. Initialize Fiber App
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true, // We will log our own startup message
		})

		// 5. Initialize Metrics
		mgrMetrics := metrics.NewManager()
		if cfg.Metrics.Enabled {
			go func() {
				logg.Info("Starting metrics listener", zap.String("port", cfg.Metrics.Port))
				if err := mgrMetrics.Serve(cfg.Metrics.Port); err != nil {
					logg.Error("Metrics listener failed", zap.Error(err))
				}
			}()
		}

		// 6. Initialize Artifact Storage (Optional)
		var archiver sync.Archiver
		if cfg.Storage.Enabled {
			client, err := storage.NewClient(cfg.Storage)
			if err != nil {
				logg.Fatal("Failed to create storage client", zap.Error(err))
			}
			archiver = report.NewExporter(client, cfg.Storage.Bucket, logg)
		}

		// 7. Initialize Feature Loader
		mgr := loader.NewManager()

		reportFeature := report.NewFeature(db, report.NewMemoryBackend(), logg)
		mgr.Register(troupe.NewFeature(db, logg))
		mgr.Register(reportFeature)

		// The sync feature needs a source provider set; without a configured
		// source root there is nothing to discover from.
		if cfg.Sync.SourceRoot != "" {
			providers := local.New(cfg.Sync.SourceRoot)
			orch := sync.NewOrchestrator(sync.Deps{
				Store:       store,
				Folders:     providers,
				Forms:       providers,
				Sheets:      providers,
				Reporter:    reportFeature.Synchronizer(),
				Archiver:    archiver,
				Metrics:     mgrMetrics,
				Logger:      logg,
				Parallelism: cfg.Sync.Parallelism,
			})
			mgr.Register(sync.NewFeature(orch, logg))
		} else {
			logg.Warn("No source root configured, sync endpoints disabled")
		}

		// Middleware Registration
		// 1. RayID (Must be first to trace everything)
		app.Use(rayid.New())

		// 2. Request logging with Zap + RayID
		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// 2.5 Swagger Documentation (Public)
		app.Get("/swagger/*", swagger.HandlerDefault)

		// 3. Auth (Protect API)
		app.Use(auth.New(auth.Config{ApiKey: cfg.Server.ApiKey}))

		// 4. Load Features
		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		// 5. Start Server
		go func() {
			logg.Info("Starting server", zap.String("port", cfg.Server.Port))
			if err := app.Listen(":" + cfg.Server.Port); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// 6. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		_ = app.Shutdown()
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
