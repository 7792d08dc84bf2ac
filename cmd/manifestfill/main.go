// Command manifestfill registers shipping-manifest records through the
// customs documentation web form, one record at a time, and writes a run
// report with the outcome of every record.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"manifestfill/internal/config"
	"manifestfill/internal/logging"
)

var version = "dev"

var (
	// Global flags
	verbose    bool
	configPath string
	timeout    time.Duration

	cfg  *config.Config
	logs *logging.Logger
	// logger is the boot category logger.
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "manifestfill",
	Short: "Bulk-register manifest records through the customs entry form",
	Long: `manifestfill drives the customs documentation page in Chrome and registers
every record of a batch file through its entry form.

Start Chrome with --remote-debugging-port, log in, then point browser.debugger_url
(or MANIFESTFILL_DEBUGGER_URL) at it. Without a debugger URL a new Chrome is
launched and the run waits for you to log in.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		logs, err = logging.New(cfg.Logging.Options(), verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = logs.For(logging.CategoryBoot)
		logger.Debug("Config loaded", zap.String("path", configPath), zap.String("target_url", cfg.TargetURL))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logs != nil {
			_ = logs.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "manifestfill %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "manifestfill.yaml", "Config file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Start no new record after this long (0 = no limit)")

	runCmd.Flags().StringVarP(&batchFile, "batch", "b", "", "Batch file (YAML)")
	runCmd.Flags().StringVarP(&reportPath, "report", "r", "", "Report path (default: report.dir/run-<time>.<format>)")
	_ = runCmd.MarkFlagRequired("batch")

	checkCmd.Flags().StringVarP(&batchFile, "batch", "b", "", "Batch file (YAML)")
	_ = checkCmd.MarkFlagRequired("batch")

	configCmd.Flags().StringVarP(&writePath, "write", "w", "", "Write the effective config to this path")

	rootCmd.AddCommand(runCmd, checkCmd, configCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
