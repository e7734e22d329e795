// Package reporter provides status reporting interfaces and implementations
// for the keyframe analysis pipeline's daemons (§6), re-keyed from the
// teacher's encode-progress events onto pipeline lifecycle events: state
// transitions, frame-analyzed progress, keyframe selections, and
// warnings/errors.
package reporter

import "time"

// StateTransition describes a pipeline lifecycle state change.
type StateTransition struct {
	From string
	To   string
}

// FrameProgress reports how many frames have been analyzed so far. Total is
// 0 when the session has no known bound (live capture); a bounded total
// (offline replay, batch analysis) lets the terminal reporter show a
// percent-complete bar.
type FrameProgress struct {
	AnalyzedCount uint64
	Total         uint64
	FPS           float32
	ETA           time.Duration
}

// KeyframeEvent reports a single frame the selector chose as a keyframe.
type KeyframeEvent struct {
	FrameIndex    uint64
	Timestamp     float64
	Score         float32
	IsSceneChange bool
}

// SessionSummary reports the final counts when a session ends.
type SessionSummary struct {
	TotalFramesAnalyzed uint64
	KeyframesSelected   int
	AchievedRatio       float64
	Duration            time.Duration
}

// ReporterError contains error information (kept from the teacher's shape:
// title/message/context/suggestion).
type ReporterError struct {
	Title      string
	Message    string
	Context    string
	Suggestion string
}
