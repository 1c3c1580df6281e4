package cmd

import (
	"fmt"
	"os"

	"rollcall/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "rollcall",
	Short: "Membership ledger sync service",
	Long: `Rollcall keeps an organization's membership ledger in sync with its
external attendance sources: folder trees of signup forms and sheets are
discovered, derived into typed member records, scored into point ledgers,
and mirrored into a report document.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// Console format with debug level so CLI users get readable
		// ISO8601-stamped output instead of production JSON.
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			fmt.Println(err)
		}
		os.Exit(1)
	}
}
