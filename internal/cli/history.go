package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/haskel/segtrain/internal/checkpoint"
	"github.com/haskel/segtrain/internal/config"
	"github.com/haskel/segtrain/internal/logger"
)

var historyCmd = &cobra.Command{
	Use:   "history [file]",
	Short: "Print a persisted loss history",
	Long: `Print the per-epoch train and test loss of a loss table.

Without an argument the last table in the configured loss directory is read.

Examples:
  segtrain history
  segtrain history Loss/learning_0.05_epoch_20_time_2026-03-01_12-00-00.txt
  segtrain history --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

var (
	historyHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")).Padding(0, 1)
	historyCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	historyBestStyle   = historyCellStyle.Foreground(lipgloss.Color("82"))
)

// historyPath returns the explicit argument or the configured last table.
func historyPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return "", err
	}
	return checkpoint.LastPath(cfg.Output.LossDir, checkpoint.HistoryExt), nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	path, err := historyPath(args)
	if err != nil {
		return err
	}

	h, err := checkpoint.NewStore(logger.Discard()).LoadHistory(path)
	if err != nil {
		return fmt.Errorf("failed to read loss history: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		data, err := json.MarshalIndent(h, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	return printHistory(out, path, h)
}

// bestEpoch returns the index of the lowest test loss, or -1.
func bestEpoch(h checkpoint.History) int {
	best := -1
	for i, r := range h {
		if best < 0 || r.Test < h[best].Test {
			best = i
		}
	}
	return best
}

func printHistory(w io.Writer, path string, h checkpoint.History) error {
	fmt.Fprintf(w, "=== Loss History ===\n%s\n\n", path)
	if h.Len() == 0 {
		fmt.Fprintln(w, "No epochs recorded yet.")
		return nil
	}

	best := bestEpoch(h)
	rows := make([][]string, 0, h.Len())
	for i, r := range h {
		rows = append(rows, []string{
			strconv.Itoa(i),
			strconv.FormatFloat(r.Train, 'f', 6, 64),
			strconv.FormatFloat(r.Test, 'f', 6, 64),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("EPOCH", "TRAIN", "TEST").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return historyHeaderStyle
			case row == best:
				return historyBestStyle
			default:
				return historyCellStyle
			}
		})

	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "Epochs: %d, best test loss %.6f at epoch %d\n", h.Len(), h[best].Test, best)
	return nil
}
