package checkpoint

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrMalformedHistory is returned when a loss table cannot be parsed.
var ErrMalformedHistory = errors.New("malformed loss history")

// Record is the train and test loss of one completed epoch.
type Record struct {
	Train float64 `json:"train"`
	Test  float64 `json:"test"`
}

// History is the ordered per-epoch loss record of a run, including any
// epochs inherited from resumed runs.
type History []Record

// Append adds one epoch.
func (h *History) Append(train, test float64) {
	*h = append(*h, Record{Train: train, Test: test})
}

func (h History) Len() int {
	return len(h)
}

// TrainLosses returns the train column.
func (h History) TrainLosses() []float64 {
	out := make([]float64, len(h))
	for i, r := range h {
		out[i] = r.Train
	}
	return out
}

// TestLosses returns the test column.
func (h History) TestLosses() []float64 {
	out := make([]float64, len(h))
	for i, r := range h {
		out[i] = r.Test
	}
	return out
}

// SaveHistory writes h as a two column whitespace separated table, one row
// per epoch.
func (s *Store) SaveHistory(h History, path string) error {
	err := writeAtomic(path, func(w io.Writer) error {
		return EncodeHistory(w, h)
	})
	if err != nil {
		return fmt.Errorf("failed to save loss history %s: %w", path, err)
	}

	s.logger.Debug("saved loss history", "path", path, "epochs", len(h))
	return nil
}

// LoadHistory reads a table written by SaveHistory. Any failure is reported
// through the error; the caller decides how to recover.
func (s *Store) LoadHistory(path string) (History, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to open loss history: %w", err)
	}
	defer file.Close()

	h, err := DecodeHistory(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	s.logger.Info("loaded loss history", "path", path, "epochs", len(h))
	return h, nil
}

// EncodeHistory writes the table form of h to w. Values use the shortest
// representation that parses back to the same float64.
func EncodeHistory(w io.Writer, h History) error {
	bw := bufio.NewWriter(w)
	for _, r := range h {
		line := strconv.FormatFloat(r.Train, 'e', -1, 64) + " " +
			strconv.FormatFloat(r.Test, 'e', -1, 64) + "\n"
		if _, err := bw.WriteString(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// DecodeHistory parses the table form. Blank lines are skipped; every other
// line must hold exactly two numbers.
func DecodeHistory(r io.Reader) (History, error) {
	var h History

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: line %d has %d columns, want 2",
				ErrMalformedHistory, lineNo, len(fields))
		}

		train, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedHistory, lineNo, err)
		}
		test, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedHistory, lineNo, err)
		}

		h.Append(train, test)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHistory, err)
	}

	return h, nil
}
