package scene

import (
	"testing"

	"github.com/five82/keyscope/internal/config"
	"github.com/five82/keyscope/internal/frame"
	"github.com/five82/keyscope/internal/model"
)

type fakeInferer struct {
	features [][]float32
	call     int
}

func (f *fakeInferer) Infer(modelName string, inputs []model.Tensor) ([]model.Tensor, error) {
	v := f.features[f.call]
	if f.call < len(f.features)-1 {
		f.call++
	}
	return []model.Tensor{{Shape: []int{1, len(v)}, Data: v}}, nil
}

func newDetector(features [][]float32) (*Detector, config.SceneDetectorConfig) {
	cfg := config.SceneDetectorConfig{
		SimilarityThreshold: 0.7,
		FeatureDim:          4,
		InputSize:           16,
		EnableCache:         true,
	}
	reg := model.NewRegistry(&fakeInferer{features: features})
	reg.Register("scene", "scene.onnx")
	return New(cfg, reg), cfg
}

func mkFrame(id uint32) frame.Frame {
	return frame.Frame{FrameID: id, Width: 32, Height: 32, Channels: 3, Pixels: make([]byte, 32*32*3)}
}

func TestFirstFrameNeverSceneChange(t *testing.T) {
	d, _ := newDetector([][]float32{{1, 0, 0, 0}})
	res := frame.NewResource(mkFrame(0))
	out, err := d.Detect(res)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if out.IsSceneChange || out.Similarity != 1.0 {
		t.Errorf("first frame should report no scene change and similarity 1.0, got %+v", out)
	}
}

func TestIdenticalFeaturesHighSimilarityNoChange(t *testing.T) {
	d, _ := newDetector([][]float32{{1, 0, 0, 0}, {1, 0, 0, 0}})
	d.Detect(frame.NewResource(mkFrame(0)))
	out, err := d.Detect(frame.NewResource(mkFrame(1)))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if out.IsSceneChange {
		t.Error("identical consecutive features should not be a scene change")
	}
	if out.Score > 0.1 {
		t.Errorf("score for near-identical frames should be low, got %v", out.Score)
	}
}

func TestOrthogonalFeaturesSceneChange(t *testing.T) {
	d, _ := newDetector([][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}})
	d.Detect(frame.NewResource(mkFrame(0)))
	out, err := d.Detect(frame.NewResource(mkFrame(1)))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if !out.IsSceneChange {
		t.Error("orthogonal features (similarity 0) should be a scene change")
	}
	if out.Score != 1.0 {
		t.Errorf("orthogonal features should saturate score to 1.0, got %v", out.Score)
	}
}

func TestResetReturnsToFirstFrameSemantics(t *testing.T) {
	d, _ := newDetector([][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}})
	d.Detect(frame.NewResource(mkFrame(0)))
	d.Reset()
	d.Reset() // idempotent

	out, err := d.Detect(frame.NewResource(mkFrame(1)))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if out.IsSceneChange || out.Similarity != 1.0 {
		t.Errorf("after reset, next Detect should behave like the first frame ever, got %+v", out)
	}
}

func TestScoreClampedToUnitInterval(t *testing.T) {
	d, _ := newDetector([][]float32{{1, 0, 0, 0}, {-1, 0, 0, 0}})
	d.Detect(frame.NewResource(mkFrame(0)))
	out, err := d.Detect(frame.NewResource(mkFrame(1)))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if out.Score < 0 || out.Score > 1 {
		t.Errorf("score out of [0,1]: %v", out.Score)
	}
}
