package checkpoint

import (
	"path/filepath"
	"strconv"
	"time"
)

const (
	// WeightsExt is the file extension of weight checkpoints.
	WeightsExt = ".json"
	// HistoryExt is the file extension of loss tables.
	HistoryExt = ".txt"

	// TimestampLayout names timestamped artifacts.
	TimestampLayout = "2006-01-02_15-04-05"

	lastName = "last"
)

// LastPath is the always-overwritten artifact in dir.
func LastPath(dir, ext string) string {
	return filepath.Join(dir, lastName+ext)
}

// TimestampPath names an immutable snapshot taken at ts.
func TimestampPath(dir string, ts time.Time, ext string) string {
	return filepath.Join(dir, ts.Format(TimestampLayout)+ext)
}

// ArchivePath names an archived loss table keyed by the run parameters.
func ArchivePath(dir string, learningRate float64, epochs int, ts time.Time, ext string) string {
	name := "learning_" + strconv.FormatFloat(learningRate, 'g', -1, 64) +
		"_epoch_" + strconv.Itoa(epochs) +
		"_time_" + ts.Format(TimestampLayout) + ext
	return filepath.Join(dir, name)
}
