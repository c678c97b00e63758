package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/haskel/segtrain/internal/config"
	"github.com/haskel/segtrain/internal/logger"
	"github.com/haskel/segtrain/internal/monitor"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the selected device and current resource usage",
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

type infoResult struct {
	Device string               `json:"device"`
	State  *monitor.SystemState `json:"resources"`
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return err
	}

	gpu := monitor.NewGPUMonitor()
	device, err := monitor.SelectDevice(cfg.Training.Device, gpu.Available())
	if err != nil {
		return err
	}

	sampler := monitor.NewSampler(
		monitor.DefaultMonitors([]string{cfg.Output.WeightsDir, cfg.Output.LossDir}),
		logger.Discard(),
	)
	result := infoResult{Device: device, State: sampler.Sample()}

	out := cmd.OutOrStdout()
	if jsonOut {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	printInfo(out, cfg.Training.Device, result)
	return nil
}

func printInfo(w io.Writer, pref string, r infoResult) {
	s := r.State

	fmt.Fprintln(w, "=== System Info ===")
	fmt.Fprintf(w, "\nDevice: %s (configured: %s)\n", r.Device, pref)

	if len(s.GPUs) > 0 {
		fmt.Fprintf(w, "\nGPU:\n")
		for _, g := range s.GPUs {
			fmt.Fprintf(w, "  GPU %d: %s\n", g.Index, g.Name)
		}
	}

	fmt.Fprintf(w, "\nCPU:\n")
	fmt.Fprintf(w, "  Usage: %.1f%% over %d cores\n", s.CPU.UsagePercent, len(s.CPU.Cores))

	fmt.Fprintf(w, "\nMemory:\n")
	fmt.Fprintf(w, "  Usage: %.1f%%\n", s.Memory.UsagePercent)
	fmt.Fprintf(w, "  Total: %.1f GB\n", gib(s.Memory.TotalBytes))
	fmt.Fprintf(w, "  Used:  %.1f GB\n", gib(s.Memory.UsedBytes))

	if len(s.Storage) > 0 {
		fmt.Fprintf(w, "\nStorage:\n")
		paths := make([]string, 0, len(s.Storage))
		for path := range s.Storage {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			d := s.Storage[path]
			fmt.Fprintf(w, "  %s: %.1f GB free / %.1f GB total\n", path, gib(d.FreeBytes), gib(d.TotalBytes))
		}
	}

	fmt.Fprintf(w, "\nProcess:\n")
	fmt.Fprintf(w, "  PID: %d\n", s.Process.PID)
	fmt.Fprintf(w, "  RSS: %.1f MB\n", float64(s.Process.RSSBytes)/1024/1024)
	fmt.Fprintf(w, "  Threads: %d\n", s.Process.Threads)
}

func gib(b uint64) float64 {
	return float64(b) / 1024 / 1024 / 1024
}
