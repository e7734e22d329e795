package scorer

import (
	"github.com/five82/keyscope/internal/config"
	"github.com/five82/keyscope/internal/frame"
)

var defaultWeights = [3]float32{0.45, 0.20, 0.35}

// FrameScorer fuses a frame's per-dimension detector results into a single
// weighted, boosted, temporally smoothed FrameScore. It owns a
// DynamicCalculator by shared reference and its own EMA/SMA smoothing
// state. Not safe for concurrent use by more than one caller: a batch is
// scored in order by a single scorer instance (§4.4).
type FrameScorer struct {
	cfg        config.FrameScorerConfig
	calculator *DynamicCalculator

	hasSmoothed bool
	emaPrev     float32

	smaQueue []float32
	smaSum   float32
}

// NewFrameScorer creates a scorer bound to cfg, sharing calculator with
// whatever else references it (typically just this scorer).
func NewFrameScorer(cfg config.FrameScorerConfig, calculator *DynamicCalculator) *FrameScorer {
	return &FrameScorer{cfg: cfg, calculator: calculator}
}

// Reset clears smoothing state and the owned calculator's history.
func (s *FrameScorer) Reset() {
	s.hasSmoothed = false
	s.emaPrev = 0
	s.smaQueue = nil
	s.smaSum = 0
	s.calculator.Reset()
}

// Score fuses multi into a FrameScore for the frame described by ctx.
func (s *FrameScorer) Score(multi frame.MultiDimensionScore, ctx frame.Context) frame.Score {
	raw := [3]float32{multi.SceneScore, multi.MotionScore, multi.TextScore}

	var weights [3]float32
	if s.cfg.EnableDynamicWeighting {
		_, w, _ := s.calculator.Update(raw[0], raw[1], raw[2])
		weights = w
	} else {
		weights = defaultWeights
	}

	fused := raw[0]*weights[0] + raw[1]*weights[1] + raw[2]*weights[2]

	boosted := fused
	if multi.Scene.IsSceneChange {
		boosted *= s.cfg.SceneChangeBoost
	}
	if multi.Motion.Score > 0.5 {
		boosted *= s.cfg.MotionIncreaseBoost
	}
	if multi.Text.ChangeRatio > 0.1 {
		boosted *= s.cfg.TextIncreaseBoost
	}
	if boosted > 1 {
		boosted = 1
	}

	smoothed := s.smooth(boosted)

	contributions := [3]float32{raw[0] * weights[0], raw[1] * weights[1], raw[2] * weights[2]}

	return frame.Score{
		FrameIndex:     ctx.FrameIndex,
		Timestamp:      ctx.TimestampS,
		FinalScore:     smoothed,
		RawScores:      raw,
		AppliedWeights: weights,
		Contributions:  contributions,
		IsSceneChange:  multi.Scene.IsSceneChange,
	}
}

// smooth applies §4.4 step 4's temporal smoothing: EMA takes priority over
// SMA when both are configured.
func (s *FrameScorer) smooth(boosted float32) float32 {
	alpha := s.cfg.SmoothingEMAAlpha
	if alpha > 0 && alpha <= 1 {
		if !s.hasSmoothed {
			s.hasSmoothed = true
			s.emaPrev = boosted
			return boosted
		}
		s.emaPrev = alpha*boosted + (1-alpha)*s.emaPrev
		return s.emaPrev
	}

	if s.cfg.SmoothingWindowSize >= 2 {
		s.smaQueue = append(s.smaQueue, boosted)
		s.smaSum += boosted
		if len(s.smaQueue) > s.cfg.SmoothingWindowSize {
			evicted := s.smaQueue[0]
			s.smaQueue = s.smaQueue[1:]
			s.smaSum -= evicted
		}
		return s.smaSum / float32(len(s.smaQueue))
	}

	return boosted
}
