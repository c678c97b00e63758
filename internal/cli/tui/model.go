package tui

import (
	"time"

	"github.com/haskel/segtrain/internal/checkpoint"
	"github.com/haskel/segtrain/internal/monitor"
)

// Sampler reports host resources. *monitor.Sampler satisfies it.
type Sampler interface {
	Sample() *monitor.SystemState
}

// Config holds TUI configuration
type Config struct {
	HistoryPath     string
	RefreshInterval time.Duration
	Sampler         Sampler
}

// Model represents the TUI state
type Model struct {
	config Config

	history  checkpoint.History
	modTime  time.Time
	state    *monitor.SystemState
	haveData bool

	// UI state
	width       int
	height      int
	loading     bool
	err         error
	lastUpdated time.Time

	// Table scroll position, in epochs from the newest.
	tableOffset int
}

// NewModel creates a new TUI model
func NewModel(cfg Config) Model {
	return Model{
		config:  cfg,
		loading: true,
	}
}
