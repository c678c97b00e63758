package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/haskel/segtrain/internal/cli/tui"
	"github.com/haskel/segtrain/internal/config"
	"github.com/haskel/segtrain/internal/logger"
	"github.com/haskel/segtrain/internal/monitor"
)

var refreshInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [file]",
	Short: "Launch interactive loss history dashboard",
	Long: `Launch a terminal dashboard that re-reads a loss table on every refresh
and shows host resource usage next to it.

Examples:
  segtrain watch                   # watch the configured last table
  segtrain watch --refresh 500ms   # faster refresh rate
  segtrain watch Loss/learning_0.05_epoch_20_time_2026-03-01_12-00-00.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&refreshInterval, "refresh", 2*time.Second, "dashboard refresh interval")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	path, err := historyPath(args)
	if err != nil {
		return err
	}
	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return err
	}

	sampler := monitor.NewSampler(
		monitor.DefaultMonitors([]string{cfg.Output.WeightsDir, cfg.Output.LossDir}),
		logger.Discard(),
	)

	return tui.Run(tui.Config{
		HistoryPath:     path,
		RefreshInterval: refreshInterval,
		Sampler:         sampler,
	})
}
