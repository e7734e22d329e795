package selector

import (
	"github.com/five82/keyscope/internal/config"
	"github.com/five82/keyscope/internal/frame"
)

// WindowSize is the streaming wrapper's batching threshold (§4.5).
const WindowSize = 30

// Stage buffers incoming frame.Score values and runs SelectFrom once every
// WindowSize arrivals, emitting each selected score via emit. Not safe for
// concurrent use; one Stage per selector goroutine.
type Stage struct {
	selector *KeyframeSelector
	cfg      config.KeyframeDetectorConfig
	buffer   []frame.Score
	emit     func(frame.Score)
}

// NewStage creates a streaming selection stage. emit is called once per
// selected frame, in ascending frame-index order within each flush.
func NewStage(cfg config.KeyframeDetectorConfig, emit func(frame.Score)) *Stage {
	return &Stage{selector: New(cfg), cfg: cfg, emit: emit}
}

// Push adds one score to the buffer, flushing automatically once the
// buffer reaches WindowSize.
func (s *Stage) Push(sc frame.Score) {
	s.buffer = append(s.buffer, sc)
	if len(s.buffer) >= WindowSize {
		s.flush()
	}
}

// Flush runs selection over any remaining buffered scores and clears the
// buffer. Called on shutdown to drain a partial window.
func (s *Stage) Flush() {
	if len(s.buffer) > 0 {
		s.flush()
	}
}

func (s *Stage) flush() {
	dynamicK := -1
	if !s.cfg.UseThresholdMode {
		dynamicK = s.selector.DynamicK(len(s.buffer))
	}

	result := s.selector.SelectFrom(s.buffer, dynamicK)
	for _, sc := range result.Selected {
		s.emit(sc)
	}
	s.buffer = s.buffer[:0]
}
