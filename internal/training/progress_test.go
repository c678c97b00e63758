package training

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/haskel/segtrain/internal/logger"
)

func TestProgress_ThrottlesButLogsLastBatch(t *testing.T) {
	var buf bytes.Buffer
	p := newProgress(logger.NewWithWriter(&buf, "info", "text"), "train", 0, 5, time.Hour)

	for i := 0; i < 5; i++ {
		p.update(i, 0.1)
	}

	out := buf.String()
	if got := strings.Count(out, "msg=progress"); got != 2 {
		t.Fatalf("expected first and last batch logged, got %d lines:\n%s", got, out)
	}
	if !strings.Contains(out, "batch=5") {
		t.Error("expected the final batch to be logged")
	}
}

func TestProgress_ZeroIntervalLogsEveryBatch(t *testing.T) {
	var buf bytes.Buffer
	p := newProgress(logger.NewWithWriter(&buf, "info", "text"), "test", 1, 3, 0)

	for i := 0; i < 3; i++ {
		p.update(i, 0.1)
	}

	if got := strings.Count(buf.String(), "msg=progress"); got != 3 {
		t.Errorf("expected 3 lines, got %d", got)
	}
}
