// Package progress reports long-running engine progress and computes the
// remaining-time estimates shown with it.
package progress

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// Update is one progress event emitted by an engine.
type Update struct {
	FileID  string
	Current int
	Total   int
	ETA     string
}

// Percent returns completion as 0-100, or 0 for an unknown total.
func (u Update) Percent() float64 {
	if u.Total <= 0 {
		return 0
	}
	return float64(u.Current) / float64(u.Total) * 100
}

// Reporter receives engine progress. The zap-backed implementation is the
// default; tests substitute a recorder.
type Reporter interface {
	Progress(u Update)
}

// ZapReporter logs progress updates through the global logger.
type ZapReporter struct {
	Op string
}

func (r ZapReporter) Progress(u Update) {
	zap.L().Info("progress",
		zap.String("op", r.Op),
		zap.String("file", u.FileID),
		zap.Int("current", u.Current),
		zap.Int("total", u.Total),
		zap.String("pct", fmt.Sprintf("%.1f", u.Percent())),
		zap.String("eta", u.ETA))
}

// Estimate returns the projected seconds remaining given work done so far.
// Returns NaN until at least one unit is done.
func Estimate(total, done int, elapsed time.Duration) float64 {
	if done <= 0 || elapsed <= 0 {
		return math.NaN()
	}
	rate := float64(done) / elapsed.Seconds()
	return float64(total-done) / rate
}

// FormatETA renders seconds as mm:ss. Non-finite or negative input means
// there is no estimate yet.
func FormatETA(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "Calculating..."
	}
	total := int(math.Round(seconds))
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
