package scorer

import (
	"math"
	"testing"

	"github.com/five82/keyscope/internal/config"
	"github.com/five82/keyscope/internal/frame"
)

func dynCfg() config.DynamicCalculatorConfig {
	return config.DynamicCalculatorConfig{
		BaseWeights:         [3]float32{0.45, 0.20, 0.35},
		CurrentFrameWeight:  0.6,
		ActivationInfluence: 0.5,
		HistoryWindowSize:   30,
		MinWeight:           0.05,
		MaxWeight:           0.8,
	}
}

func TestDynamicCalculatorWeightsSumNearOne(t *testing.T) {
	c := NewDynamicCalculator(dynCfg())
	_, w, _ := c.Update(0.5, 0.3, 0.2)
	sum := w[0] + w[1] + w[2]
	if math.Abs(float64(sum)-1.0) > 0.02 {
		t.Errorf("expected weight sum close to 1, got %v (%v)", sum, w)
	}
}

func TestDynamicCalculatorHistoryWindowEviction(t *testing.T) {
	cfg := dynCfg()
	cfg.HistoryWindowSize = 3
	c := NewDynamicCalculator(cfg)

	for i := 0; i < 10; i++ {
		c.Update(0.5, 0.5, 0.5)
	}
	if len(c.history) != cfg.HistoryWindowSize {
		t.Errorf("expected history capped at %d, got %d", cfg.HistoryWindowSize, len(c.history))
	}
}

func TestDynamicCalculatorZeroSumFallsBackToBase(t *testing.T) {
	cfg := dynCfg()
	cfg.BaseWeights = [3]float32{0, 0, 0}
	c := NewDynamicCalculator(cfg)
	_, w, _ := c.Update(0, 0, 0)
	if w != cfg.BaseWeights {
		t.Errorf("expected fallback to base weights on zero sum, got %v", w)
	}
}

func TestDynamicCalculatorResetClearsHistory(t *testing.T) {
	c := NewDynamicCalculator(dynCfg())
	c.Update(0.5, 0.5, 0.5)
	c.Reset()
	if len(c.history) != 0 || c.runningSum != (triple{}) {
		t.Errorf("expected history cleared after Reset, got history=%v sum=%v", c.history, c.runningSum)
	}
}

func scorerCfg() config.FrameScorerConfig {
	return config.FrameScorerConfig{
		EnableDynamicWeighting: true,
		EnableSmoothing:        true,
		SmoothingWindowSize:    5,
		SmoothingEMAAlpha:      0.3,
		SceneChangeBoost:       1.3,
		MotionIncreaseBoost:    1.2,
		TextIncreaseBoost:      1.1,
	}
}

func TestScoreFirstCallSmoothedEqualsBoosted(t *testing.T) {
	s := NewFrameScorer(scorerCfg(), NewDynamicCalculator(dynCfg()))
	multi := frame.MultiDimensionScore{SceneScore: 0.4, MotionScore: 0.3, TextScore: 0.2}
	out := s.Score(multi, frame.Context{FrameIndex: 0})

	fused := out.RawScores[0]*out.AppliedWeights[0] + out.RawScores[1]*out.AppliedWeights[1] + out.RawScores[2]*out.AppliedWeights[2]
	if math.Abs(float64(out.FinalScore-fused)) > 1e-4 {
		t.Errorf("first call should have smoothed == boosted (no boosts triggered here), got final=%v fused=%v", out.FinalScore, fused)
	}
}

func TestScoreSceneChangeBoostApplied(t *testing.T) {
	cfg := scorerCfg()
	cfg.EnableDynamicWeighting = false
	s := NewFrameScorer(cfg, NewDynamicCalculator(dynCfg()))

	withoutBoost := frame.MultiDimensionScore{SceneScore: 0.4, MotionScore: 0.1, TextScore: 0.1}
	withBoost := withoutBoost
	withBoost.Scene.IsSceneChange = true

	out1 := s.Score(withoutBoost, frame.Context{FrameIndex: 0})
	s2 := NewFrameScorer(cfg, NewDynamicCalculator(dynCfg()))
	out2 := s2.Score(withBoost, frame.Context{FrameIndex: 0})

	if out2.FinalScore <= out1.FinalScore {
		t.Errorf("scene-change boost should raise the score: without=%v with=%v", out1.FinalScore, out2.FinalScore)
	}
}

func TestScoreClampedToOne(t *testing.T) {
	cfg := scorerCfg()
	cfg.EnableDynamicWeighting = false
	s := NewFrameScorer(cfg, NewDynamicCalculator(dynCfg()))

	multi := frame.MultiDimensionScore{
		SceneScore:  1.0,
		MotionScore: 1.0,
		TextScore:   1.0,
		Scene:       frame.SceneResult{IsSceneChange: true},
		Motion:      frame.MotionResult{Score: 0.9},
		Text:        frame.TextResult{ChangeRatio: 0.5},
	}
	out := s.Score(multi, frame.Context{FrameIndex: 0})
	if out.FinalScore > 1.0001 {
		t.Errorf("boosted score must clamp to 1, got %v", out.FinalScore)
	}
}

func TestScoreEMASmoothingBlendsWithPrevious(t *testing.T) {
	cfg := scorerCfg()
	cfg.EnableDynamicWeighting = false
	s := NewFrameScorer(cfg, NewDynamicCalculator(dynCfg()))

	multi1 := frame.MultiDimensionScore{SceneScore: 0.2, MotionScore: 0.2, TextScore: 0.2}
	out1 := s.Score(multi1, frame.Context{FrameIndex: 0})

	multi2 := frame.MultiDimensionScore{SceneScore: 0.8, MotionScore: 0.8, TextScore: 0.8}
	out2 := s.Score(multi2, frame.Context{FrameIndex: 1})

	if !(out2.FinalScore > out1.FinalScore && out2.FinalScore < 0.8) {
		t.Errorf("EMA should smooth toward but not reach the new boosted value: out1=%v out2=%v", out1.FinalScore, out2.FinalScore)
	}
}

func TestScoreSMAUsedWhenEMADisabled(t *testing.T) {
	cfg := scorerCfg()
	cfg.EnableDynamicWeighting = false
	cfg.SmoothingEMAAlpha = 0
	cfg.SmoothingWindowSize = 2
	s := NewFrameScorer(cfg, NewDynamicCalculator(dynCfg()))

	multi := frame.MultiDimensionScore{SceneScore: 0.4, MotionScore: 0.4, TextScore: 0.4}
	out1 := s.Score(multi, frame.Context{FrameIndex: 0})
	out2 := s.Score(multi, frame.Context{FrameIndex: 1})

	if math.Abs(float64(out1.FinalScore-out2.FinalScore)) > 1e-4 {
		t.Errorf("constant input through SMA should converge to the same value, got %v then %v", out1.FinalScore, out2.FinalScore)
	}
}

func TestContributionsUseRawScoresAndFusedWeightsNotBoosted(t *testing.T) {
	cfg := scorerCfg()
	cfg.EnableDynamicWeighting = false
	s := NewFrameScorer(cfg, NewDynamicCalculator(dynCfg()))

	multi := frame.MultiDimensionScore{
		SceneScore: 0.4, MotionScore: 0.3, TextScore: 0.2,
		Scene: frame.SceneResult{IsSceneChange: true},
	}
	out := s.Score(multi, frame.Context{FrameIndex: 0})

	wantC0 := out.RawScores[0] * out.AppliedWeights[0]
	if out.Contributions[0] != wantC0 {
		t.Errorf("contribution[0] should be raw*weight unaffected by boost, want %v got %v", wantC0, out.Contributions[0])
	}
}

func TestResetClearsSmoothingState(t *testing.T) {
	s := NewFrameScorer(scorerCfg(), NewDynamicCalculator(dynCfg()))
	s.Score(frame.MultiDimensionScore{SceneScore: 0.9, MotionScore: 0.9, TextScore: 0.9}, frame.Context{FrameIndex: 0})
	s.Reset()

	if s.hasSmoothed {
		t.Error("Reset should clear EMA smoothing state")
	}
}
