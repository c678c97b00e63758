package checkpoint

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestHistory_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	s := NewStore(testLogger())
	path := filepath.Join(tmpDir, "Loss", "last.txt")

	h := History{
		{Train: 0.6931471805599453, Test: 0.7},
		{Train: 1.0 / 3.0, Test: 2.0 / 3.0},
		{Train: 1e-300, Test: 123456789.125},
		{Train: 0, Test: math.SmallestNonzeroFloat64},
	}

	if err := s.SaveHistory(h, path); err != nil {
		t.Fatalf("SaveHistory failed: %v", err)
	}

	got, err := s.LoadHistory(path)
	if err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}

	if len(got) != len(h) {
		t.Fatalf("expected %d records, got %d", len(h), len(got))
	}
	for i := range h {
		if got[i] != h[i] {
			t.Errorf("record %d: got %+v, want %+v", i, got[i], h[i])
		}
	}
}

func TestHistory_EmptyRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	s := NewStore(testLogger())
	path := filepath.Join(tmpDir, "last.txt")

	if err := s.SaveHistory(nil, path); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadHistory(path)
	if err != nil {
		t.Fatalf("LoadHistory failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty history, got %d", len(got))
	}
}

func TestHistory_LoadMissing(t *testing.T) {
	s := NewStore(testLogger())

	h, err := s.LoadHistory(filepath.Join(t.TempDir(), "last.txt"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if h != nil {
		t.Errorf("expected nil history, got %v", h)
	}
}

func TestHistory_LoadMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"one column", "0.5\n0.4\n"},
		{"three columns", "0.5 0.4 0.3\n"},
		{"not a number", "0.5 abc\n"},
		{"mixed", "0.5 0.4\n0.3\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "last.txt")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}

			s := NewStore(testLogger())
			h, err := s.LoadHistory(path)
			if !errors.Is(err, ErrMalformedHistory) {
				t.Fatalf("expected ErrMalformedHistory, got %v", err)
			}
			if len(h) != 0 {
				t.Errorf("expected no records on failure, got %d", len(h))
			}
		})
	}
}

func TestDecodeHistory_NumpyStyle(t *testing.T) {
	// Tables written with numpy.savetxt defaults.
	input := "6.931471805599452862e-01 7.000000000000000666e-01\n\n" +
		"5.000000000000000000e-01   4.000000000000000222e-01\n"

	h, err := DecodeHistory(strings.NewReader(input))
	if err != nil {
		t.Fatalf("DecodeHistory failed: %v", err)
	}
	if len(h) != 2 {
		t.Fatalf("expected 2 records, got %d", len(h))
	}
	if h[1].Train != 0.5 {
		t.Errorf("expected 0.5, got %v", h[1].Train)
	}
}

func TestHistory_Columns(t *testing.T) {
	var h History
	h.Append(3, 30)
	h.Append(2, 20)

	if h.Len() != 2 {
		t.Fatalf("expected len 2, got %d", h.Len())
	}

	train := h.TrainLosses()
	test := h.TestLosses()
	if train[0] != 3 || train[1] != 2 || test[0] != 30 || test[1] != 20 {
		t.Errorf("unexpected columns %v %v", train, test)
	}
}

func TestPaths(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	if got := LastPath("Weights", WeightsExt); got != filepath.Join("Weights", "last.json") {
		t.Errorf("LastPath = %s", got)
	}

	if got := TimestampPath("Weights", ts, WeightsExt); got != filepath.Join("Weights", "2024-03-09_14-05-07.json") {
		t.Errorf("TimestampPath = %s", got)
	}

	want := filepath.Join("Loss", "learning_0.025_epoch_20_time_2024-03-09_14-05-07.txt")
	if got := ArchivePath("Loss", 0.025, 20, ts, HistoryExt); got != want {
		t.Errorf("ArchivePath = %s, want %s", got, want)
	}
}
