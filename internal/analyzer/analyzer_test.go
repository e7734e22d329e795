package analyzer

import (
	"errors"
	"testing"

	"github.com/five82/keyscope/internal/frame"
)

type stubScene struct {
	result    frame.SceneResult
	err       error
	resetCall int
}

func (s *stubScene) Detect(res *frame.Resource) (frame.SceneResult, error) { return s.result, s.err }
func (s *stubScene) Reset()                                                { s.resetCall++ }

type stubMotion struct {
	result    frame.MotionResult
	err       error
	resetCall int
}

func (s *stubMotion) Detect(res *frame.Resource) (frame.MotionResult, error) { return s.result, s.err }
func (s *stubMotion) Reset()                                                 { s.resetCall++ }

type stubText struct {
	result    frame.TextResult
	err       error
	resetCall int
}

func (s *stubText) Detect(res *frame.Resource) (frame.TextResult, error) { return s.result, s.err }
func (s *stubText) Reset()                                               { s.resetCall++ }

func mkFrame() *frame.Resource {
	return frame.NewResource(frame.Frame{FrameID: 0, Width: 16, Height: 16, Channels: 3, Pixels: make([]byte, 16*16*3)})
}

func TestAnalyzeFusesAllThreeDetectors(t *testing.T) {
	scene := &stubScene{result: frame.SceneResult{Score: 0.5}}
	motion := &stubMotion{result: frame.MotionResult{Score: 0.3}}
	text := &stubText{result: frame.TextResult{Score: 0.7}}

	a := New(scene, motion, text, true)
	out := a.Analyze(mkFrame())

	if out.SceneScore != 0.5 || out.MotionScore != 0.3 || out.TextScore != 0.7 {
		t.Errorf("expected fused scores from all three detectors, got %+v", out)
	}
}

func TestAnalyzeDisabledTextContributesZero(t *testing.T) {
	scene := &stubScene{result: frame.SceneResult{Score: 0.5}}
	motion := &stubMotion{result: frame.MotionResult{Score: 0.3}}
	text := &stubText{result: frame.TextResult{Score: 0.9}}

	a := New(scene, motion, text, false)
	out := a.Analyze(mkFrame())

	if out.TextScore != 0 {
		t.Errorf("disabled text detector should contribute zero score, got %v", out.TextScore)
	}
	if out.SceneScore != 0.5 || out.MotionScore != 0.3 {
		t.Errorf("other detectors should be unaffected, got %+v", out)
	}
}

func TestAnalyzeFailingDetectorContributesZeroNotError(t *testing.T) {
	scene := &stubScene{err: errors.New("boom")}
	motion := &stubMotion{result: frame.MotionResult{Score: 0.3}}
	text := &stubText{result: frame.TextResult{Score: 0.7}}

	a := New(scene, motion, text, true)
	out := a.Analyze(mkFrame())

	if out.SceneScore != 0 {
		t.Errorf("failing scene detector should contribute zero score, got %v", out.SceneScore)
	}
	if out.MotionScore != 0.3 || out.TextScore != 0.7 {
		t.Errorf("other detectors should still succeed, got %+v", out)
	}
}

func TestResetResetsAllThreeDetectors(t *testing.T) {
	scene := &stubScene{}
	motion := &stubMotion{}
	text := &stubText{}

	a := New(scene, motion, text, true)
	a.Reset()

	if scene.resetCall != 1 || motion.resetCall != 1 || text.resetCall != 1 {
		t.Errorf("expected all three detectors reset exactly once, got scene=%d motion=%d text=%d",
			scene.resetCall, motion.resetCall, text.resetCall)
	}
}
