package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// JSONReporter outputs NDJSON pipeline events, one per line, for piped
// consumption by a supervisor — mirroring the teacher's
// internal/reporter/json.go structure (one write helper, one map literal
// per event type, a wall-clock unix timestamp in seconds on every line).
type JSONReporter struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONReporter creates a JSON reporter that writes to stdout.
func NewJSONReporter() *JSONReporter {
	return &JSONReporter{writer: os.Stdout}
}

// NewJSONReporterWithWriter creates a JSON reporter with a custom writer.
func NewJSONReporterWithWriter(w io.Writer) *JSONReporter {
	return &JSONReporter{writer: w}
}

func (r *JSONReporter) timestamp() int64 {
	return time.Now().Unix()
}

func (r *JSONReporter) write(v interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintln(r.writer, string(data))
}

func (r *JSONReporter) StateChanged(transition StateTransition) {
	r.write(map[string]interface{}{
		"type":      "state_changed",
		"from":      transition.From,
		"to":        transition.To,
		"timestamp": r.timestamp(),
	})
}

func (r *JSONReporter) FrameProgress(progress FrameProgress) {
	r.write(map[string]interface{}{
		"type":           "frame_progress",
		"analyzed_count": progress.AnalyzedCount,
		"total":          progress.Total,
		"fps":            progress.FPS,
		"eta_seconds":    int64(progress.ETA.Seconds()),
		"timestamp":      r.timestamp(),
	})
}

func (r *JSONReporter) KeyframeSelected(event KeyframeEvent) {
	r.write(map[string]interface{}{
		"type":            "keyframe_selected",
		"frame_index":     event.FrameIndex,
		"timestamp_s":     event.Timestamp,
		"score":           event.Score,
		"is_scene_change": event.IsSceneChange,
		"timestamp":       r.timestamp(),
	})
}

func (r *JSONReporter) SessionComplete(summary SessionSummary) {
	r.write(map[string]interface{}{
		"type":                  "session_complete",
		"total_frames_analyzed": summary.TotalFramesAnalyzed,
		"keyframes_selected":    summary.KeyframesSelected,
		"achieved_ratio":        summary.AchievedRatio,
		"duration_seconds":      int64(summary.Duration.Seconds()),
		"timestamp":             r.timestamp(),
	})
}

func (r *JSONReporter) Warning(message string) {
	r.write(map[string]interface{}{
		"type":      "warning",
		"message":   message,
		"timestamp": r.timestamp(),
	})
}

func (r *JSONReporter) Error(err ReporterError) {
	r.write(map[string]interface{}{
		"type":       "error",
		"title":      err.Title,
		"message":    err.Message,
		"context":    err.Context,
		"suggestion": err.Suggestion,
		"timestamp":  r.timestamp(),
	})
}

func (r *JSONReporter) Verbose(message string) {
	r.write(map[string]interface{}{
		"type":      "verbose",
		"message":   message,
		"timestamp": r.timestamp(),
	})
}
