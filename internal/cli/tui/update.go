package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		fetchHistory(m.config.HistoryPath),
		fetchResources(m.config.Sampler),
		tick(m.config.RefreshInterval),
	)
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case historyMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.lastUpdated = time.Now()
		if msg.data != nil && !msg.modTime.Equal(m.modTime) {
			m.history = msg.data
			m.modTime = msg.modTime
			m.haveData = true
		}
		return m, nil

	case resourcesMsg:
		if msg.data != nil {
			m.state = msg.data
		}
		return m, nil

	case tickMsg:
		m.loading = true
		return m, tea.Batch(
			fetchHistory(m.config.HistoryPath),
			fetchResources(m.config.Sampler),
			tick(m.config.RefreshInterval),
		)
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "r":
		// Manual refresh
		m.loading = true
		return m, tea.Batch(
			fetchHistory(m.config.HistoryPath),
			fetchResources(m.config.Sampler),
		)

	case "up", "k":
		if m.tableOffset < len(m.history)-1 {
			m.tableOffset++
		}
		return m, nil

	case "down", "j":
		if m.tableOffset > 0 {
			m.tableOffset--
		}
		return m, nil
	}

	return m, nil
}
