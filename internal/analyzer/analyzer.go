// Package analyzer implements the standard frame analyzer (§4.3): concurrent
// scene/motion/text detector fan-out over a single frame.
//
// Concurrency grounded on GreatValueCreamSoda-gometrics/comparator.Comparator.Run,
// which fans out parallel workers with one errgroup.Group goroutine each.
package analyzer

import (
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/five82/keyscope/internal/frame"
)

// SceneDetector, MotionDetector, and TextDetector are the narrow interfaces
// the analyzer depends on, satisfied by detector/scene.Detector,
// detector/motion.Detector, and detector/text.Detector respectively.
type SceneDetector interface {
	Detect(res *frame.Resource) (frame.SceneResult, error)
	Reset()
}

type MotionDetector interface {
	Detect(res *frame.Resource) (frame.MotionResult, error)
	Reset()
}

type TextDetector interface {
	Detect(res *frame.Resource) (frame.TextResult, error)
	Reset()
}

// StandardFrameAnalyzer fans a frame out to the three detectors
// concurrently and fuses their results into a MultiDimensionScore. It holds
// no state of its own beyond shared references to the detectors, each of
// which owns its own internal state.
type StandardFrameAnalyzer struct {
	scene  SceneDetector
	motion MotionDetector
	text   TextDetector

	textEnabled bool
}

// New creates a StandardFrameAnalyzer over the given detectors. textEnabled
// controls whether the text detector runs at all; a disabled text detector
// contributes a zero score and default result, same as a failing one.
func New(scene SceneDetector, motion MotionDetector, text TextDetector, textEnabled bool) *StandardFrameAnalyzer {
	return &StandardFrameAnalyzer{scene: scene, motion: motion, text: text, textEnabled: textEnabled}
}

// Reset resets all three owned detectors.
func (a *StandardFrameAnalyzer) Reset() {
	a.scene.Reset()
	a.motion.Reset()
	a.text.Reset()
}

// Analyze runs all three detectors concurrently against res and returns the
// fused MultiDimensionScore. A detector that errors or is disabled
// contributes a zero score and default result rather than failing the
// whole call — one detector's failure must not drop the frame (§7).
func (a *StandardFrameAnalyzer) Analyze(res *frame.Resource) frame.MultiDimensionScore {
	var out frame.MultiDimensionScore

	group := new(errgroup.Group)

	group.Go(func() error {
		sceneResult, err := a.scene.Detect(res)
		if err != nil {
			log.Printf("scene detector failed for frame %d: %v", res.Frame.FrameID, err)
			return nil
		}
		out.Scene = sceneResult
		out.SceneScore = sceneResult.Score
		return nil
	})

	group.Go(func() error {
		motionResult, err := a.motion.Detect(res)
		if err != nil {
			log.Printf("motion detector failed for frame %d: %v", res.Frame.FrameID, err)
			return nil
		}
		out.Motion = motionResult
		out.MotionScore = motionResult.Score
		return nil
	})

	group.Go(func() error {
		if !a.textEnabled {
			return nil
		}
		textResult, err := a.text.Detect(res)
		if err != nil {
			log.Printf("text detector failed for frame %d: %v", res.Frame.FrameID, err)
			return nil
		}
		out.Text = textResult
		out.TextScore = textResult.Score
		return nil
	})

	// Errors are swallowed inside each goroutine and converted to a
	// zero-score default result, so group.Wait() never actually fails.
	_ = group.Wait()

	return out
}
