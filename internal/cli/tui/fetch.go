package tui

import (
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/haskel/segtrain/internal/checkpoint"
	"github.com/haskel/segtrain/internal/monitor"
)

type historyMsg struct {
	data    checkpoint.History
	modTime time.Time
	err     error
}

type resourcesMsg struct {
	data *monitor.SystemState
}

type tickMsg time.Time

// fetchHistory re-reads the loss table. A missing file is not an error: the
// first run may not have finished yet.
func fetchHistory(path string) tea.Cmd {
	return func() tea.Msg {
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			return historyMsg{}
		}
		if err != nil {
			return historyMsg{err: err}
		}

		f, err := os.Open(path)
		if err != nil {
			return historyMsg{err: err}
		}
		defer f.Close()

		h, err := checkpoint.DecodeHistory(f)
		if err != nil {
			return historyMsg{err: err}
		}
		return historyMsg{data: h, modTime: info.ModTime()}
	}
}

func fetchResources(s Sampler) tea.Cmd {
	return func() tea.Msg {
		if s == nil {
			return resourcesMsg{}
		}
		return resourcesMsg{data: s.Sample()}
	}
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
