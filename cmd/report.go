package cmd

import (
	"context"
	"fmt"

	"rollcall/core/config"
	"rollcall/core/database"
	"rollcall/core/logger"
	"rollcall/feature/report"
	"rollcall/feature/troupe"
	"rollcall/feature/troupe/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// reportCmd is the parent command for report maintenance operations.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Validate or rebuild a troupe's report document",
}

// reportValidateCmd checks the stored report against the ledger.
var reportValidateCmd = &cobra.Command{
	Use:   "validate <troupe-id>",
	Short: "Check the report against the ledger",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportValidate,
}

// reportRebuildCmd recreates the report document from scratch.
var reportRebuildCmd = &cobra.Command{
	Use:   "rebuild <troupe-id>",
	Short: "Recreate the report document from the ledger",
	Args:  cobra.ExactArgs(1),
	RunE:  runReportRebuild,
}

func init() {
	reportCmd.AddCommand(reportValidateCmd)
	reportCmd.AddCommand(reportRebuildCmd)
	RootCmd.AddCommand(reportCmd)
}

type reportEnv struct {
	logger *zap.Logger
	store  *troupe.Store
	sync   *report.Synchronizer
}

func newReportEnv() (*reportEnv, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &reportEnv{
		logger: l,
		store:  troupe.NewStore(db),
		sync:   report.NewSynchronizer(report.NewMemoryBackend(), l),
	}, nil
}

func (e *reportEnv) loadState(ctx context.Context, troupeID string) (*models.Troupe, []*models.EventType, []*models.Event, []*models.Member, map[string]map[string]models.AttendanceEntry, error) {
	tr, err := e.store.GetTroupe(ctx, troupeID)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	types, err := e.store.ListEventTypes(ctx, troupeID)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	events, err := e.store.ListEvents(ctx, troupeID)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	members, err := e.store.ListMembers(ctx, troupeID)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	pages, err := e.store.ListAttendance(ctx, troupeID)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	attendance := make(map[string]map[string]models.AttendanceEntry)
	for _, p := range pages {
		rec, ok := attendance[p.MemberID]
		if !ok {
			rec = make(map[string]models.AttendanceEntry)
			attendance[p.MemberID] = rec
		}
		for eventID, entry := range p.Entries {
			rec[eventID] = entry
		}
	}
	return tr, types, events, members, attendance, nil
}

func runReportValidate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	env, err := newReportEnv()
	if err != nil {
		return err
	}
	defer env.logger.Sync()

	tr, types, events, members, attendance, err := env.loadState(ctx, args[0])
	if err != nil {
		return err
	}
	diffs, err := env.sync.Validate(ctx, tr, types, events, members, attendance)
	if err != nil {
		return err
	}
	if len(diffs) == 0 {
		env.logger.Info("Report is faithful", zap.String("troupe", tr.ID), zap.String("uri", tr.ReportURI))
		return nil
	}
	env.logger.Warn("Report diverges from the ledger",
		zap.String("troupe", tr.ID),
		zap.Strings("sections", diffs),
	)
	return nil
}

func runReportRebuild(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	env, err := newReportEnv()
	if err != nil {
		return err
	}
	defer env.logger.Sync()

	tr, types, events, members, attendance, err := env.loadState(ctx, args[0])
	if err != nil {
		return err
	}
	if tr.SyncLock {
		return fmt.Errorf("a sync is running for troupe %s", tr.ID)
	}
	if err := env.sync.DeleteReport(ctx, tr.ReportURI); err != nil {
		return err
	}
	tr.ReportURI = ""
	uri, err := env.sync.Refresh(ctx, tr, types, events, members, attendance)
	if err != nil {
		return err
	}
	tr.ReportURI = uri
	if err := env.store.SaveTroupe(ctx, tr); err != nil {
		return err
	}
	env.logger.Info("Report rebuilt", zap.String("troupe", tr.ID), zap.String("uri", uri))
	return nil
}
