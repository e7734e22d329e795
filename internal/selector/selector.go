// Package selector implements the adaptive keyframe selector (§4.5): a
// pre-filter, a stable score-descending sort, and a greedy pick under a
// temporal-distance gate and soft target-count cap.
//
// Grounded on original_source/cpp/.../FrameAnaylzer/KeyFrameDetector.cpp.
package selector

import (
	"sort"

	"github.com/five82/keyscope/internal/config"
	"github.com/five82/keyscope/internal/frame"
)

// Result is the outcome of one SelectFrom call.
type Result struct {
	Selected                 []frame.Score
	AchievedCompressionRatio float64
}

// KeyframeSelector is pure with respect to state per batch: it holds only
// its configuration, no running state across calls.
type KeyframeSelector struct {
	cfg config.KeyframeDetectorConfig
}

// New creates a selector bound to cfg.
func New(cfg config.KeyframeDetectorConfig) *KeyframeSelector {
	return &KeyframeSelector{cfg: cfg}
}

// SelectFrom runs the full selection algorithm (§4.5 steps 1-5) over scores.
// dynamicK <= 0 means "use the configured target count."
func (s *KeyframeSelector) SelectFrom(scores []frame.Score, dynamicK int) Result {
	candidates := s.preFilter(scores)
	sortByScoreDescending(candidates)

	k := s.cfg.TargetKeyframeCount
	if dynamicK > 0 {
		k = dynamicK
	}

	chosen := s.greedyPick(candidates, k)

	sort.SliceStable(chosen, func(i, j int) bool { return chosen[i].FrameIndex < chosen[j].FrameIndex })

	total := 0
	if len(scores) > 0 {
		last := scores[0].FrameIndex
		for _, sc := range scores {
			if sc.FrameIndex > last {
				last = sc.FrameIndex
			}
		}
		total = int(last) + 1
	}

	ratio := 0.0
	if total > 0 {
		ratio = float64(len(chosen)) / float64(total)
	}

	return Result{Selected: chosen, AchievedCompressionRatio: ratio}
}

func (s *KeyframeSelector) preFilter(scores []frame.Score) []frame.Score {
	out := make([]frame.Score, 0, len(scores))
	for _, sc := range scores {
		if sc.FinalScore >= s.cfg.MinScoreThreshold || sc.IsSceneChange {
			out = append(out, sc)
		}
	}
	return out
}

func sortByScoreDescending(scores []frame.Score) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].FinalScore != scores[j].FinalScore {
			return scores[i].FinalScore > scores[j].FinalScore
		}
		return scores[i].FrameIndex < scores[j].FrameIndex
	})
}

func (s *KeyframeSelector) greedyPick(candidates []frame.Score, k int) []frame.Score {
	var chosen []frame.Score
	var timestamps []float64

	for _, c := range candidates {
		bypassCap := c.IsSceneChange && s.cfg.AlwaysIncludeSceneChanges
		if len(chosen) >= k && !bypassCap {
			continue
		}

		violates := false
		for _, t := range timestamps {
			if abs(c.Timestamp-t) < s.cfg.MinTemporalDistance {
				violates = true
				break
			}
		}
		if violates {
			continue
		}

		chosen = append(chosen, c)
		timestamps = append(timestamps, c.Timestamp)
	}

	return chosen
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// DynamicK computes the streaming-wrapper's target count for a buffer of
// length n in Top-K mode (§4.5 streaming wrapper), clamped to
// [MinKeyframeCount, MaxKeyframeCount].
func (s *KeyframeSelector) DynamicK(n int) int {
	k := int(float64(n) * s.cfg.TargetCompressionRatio)
	if k < s.cfg.MinKeyframeCount {
		k = s.cfg.MinKeyframeCount
	}
	if k > s.cfg.MaxKeyframeCount {
		k = s.cfg.MaxKeyframeCount
	}
	return k
}
