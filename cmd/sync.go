package cmd

import (
	"context"
	"fmt"

	"rollcall/core/config"
	"rollcall/core/database"
	"rollcall/core/logger"
	"rollcall/core/source/local"
	"rollcall/feature/report"
	"rollcall/feature/sync"
	"rollcall/feature/troupe"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	syncSourceRoot  string
	syncForceUnlock bool
)

// syncCmd runs one sync pass for a troupe from the command line.
var syncCmd = &cobra.Command{
	Use:   "sync <troupe-id>",
	Short: "Run one sync pass for a troupe",
	Long: `Runs the full sync pass for one troupe against the configured source
root: discovery, exploration, reconciliation and the atomic persist.

Examples:
  # Sync a troupe
  rollcall sync 4f7c2f0a-...

  # Clear a stuck lock left by a crashed process, then sync
  rollcall sync 4f7c2f0a-... --force-unlock`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncSourceRoot, "source-root", "", "Override the configured source root directory")
	syncCmd.Flags().BoolVar(&syncForceUnlock, "force-unlock", false, "Clear a stuck sync lock before running")
	RootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	troupeID := args[0]

	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	l, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer l.Sync()

	root := cfg.Sync.SourceRoot
	if syncSourceRoot != "" {
		root = syncSourceRoot
	}
	if root == "" {
		return fmt.Errorf("no source root configured; set SYNC_SOURCE_ROOT or --source-root")
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	store := troupe.NewStore(db)
	if err := store.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	providers := local.New(root)
	orch := sync.NewOrchestrator(sync.Deps{
		Store:       store,
		Folders:     providers,
		Forms:       providers,
		Sheets:      providers,
		Reporter:    report.NewSynchronizer(report.NewMemoryBackend(), l),
		Logger:      l,
		Parallelism: cfg.Sync.Parallelism,
	})

	if syncForceUnlock {
		if err := orch.ForceUnlock(ctx, troupeID); err != nil {
			return err
		}
		l.Info("Cleared sync lock", zap.String("troupe", troupeID))
	}

	res, err := orch.Sync(ctx, troupeID)
	if err != nil {
		return err
	}

	l.Info("Sync completed",
		zap.String("troupe", troupeID),
		zap.Int("events", res.Events),
		zap.Int("events_deleted", res.EventsDeleted),
		zap.Int("members", res.Members),
		zap.Int("members_deleted", res.MembersDeleted),
		zap.Duration("duration", res.Duration),
	)
	if res.ReportWarning != "" {
		l.Warn("Report refresh degraded", zap.String("warning", res.ReportWarning))
	}
	return nil
}
