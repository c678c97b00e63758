// Package checkpoint persists model parameter snapshots and the per-epoch
// loss history of a training run.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
)

// ErrNotFound is returned by Load when no checkpoint exists at the path.
var ErrNotFound = errors.New("checkpoint not found")

const currentVersion = 1

// State maps a parameter name to its values.
type State map[string][]float64

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = append([]float64(nil), v...)
	}
	return out
}

// Equal reports whether both states hold the same parameters and values.
// NaN entries compare equal to NaN.
func (s State) Equal(o State) bool {
	if len(s) != len(o) {
		return false
	}
	for k, v := range s {
		w, ok := o[k]
		if !ok || len(v) != len(w) {
			return false
		}
		for i := range v {
			if v[i] != w[i] && !(math.IsNaN(v[i]) && math.IsNaN(w[i])) {
				return false
			}
		}
	}
	return true
}

type stateFile struct {
	Version int               `json:"version"`
	Params  map[string]values `json:"params"`
}

// Store reads and writes checkpoints and loss histories on the local
// filesystem.
type Store struct {
	logger *slog.Logger
}

// NewStore creates a Store.
func NewStore(logger *slog.Logger) *Store {
	return &Store{logger: logger}
}

// Save writes state to path, replacing any previous content. Parent
// directories are created as needed.
func (s *Store) Save(state State, path string) error {
	err := writeAtomic(path, func(w io.Writer) error {
		// Map keys are emitted sorted, so equal states encode identically.
		return json.NewEncoder(w).Encode(stateFile{
			Version: currentVersion,
			Params:  toWire(state),
		})
	})
	if err != nil {
		return fmt.Errorf("failed to save checkpoint %s: %w", path, err)
	}

	s.logger.Debug("saved checkpoint", "path", path, "params", len(state))
	return nil
}

// Load reads the state stored at path. A missing file yields an error
// wrapping ErrNotFound.
func (s *Store) Load(path string) (State, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to open checkpoint: %w", err)
	}
	defer file.Close()

	var data stateFile
	if err := json.NewDecoder(file).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s: %w", path, err)
	}

	if data.Version > currentVersion {
		return nil, fmt.Errorf("checkpoint %s has version %d, newest supported is %d",
			path, data.Version, currentVersion)
	}

	state := fromWire(data.Params)
	s.logger.Info("loaded checkpoint", "path", path, "params", len(state))
	return state, nil
}

// Exists reports whether a checkpoint file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
