package motion

import (
	"testing"

	"github.com/five82/keyscope/internal/config"
	"github.com/five82/keyscope/internal/frame"
	"github.com/five82/keyscope/internal/model"
)

const stride = 4 + numClasses

// fakeInferer returns a fixed proposals tensor regardless of input, letting
// tests control detections directly via buildProposals.
type fakeInferer struct {
	proposals []float32
}

func (f *fakeInferer) Infer(modelName string, inputs []model.Tensor) ([]model.Tensor, error) {
	return []model.Tensor{{Shape: []int{1, numProposals, stride}, Data: f.proposals}}, nil
}

// buildProposals returns a flattened 8400*(4+80) tensor where only the
// first len(boxes) proposals carry a detection; the rest are all-zero.
func buildProposals(boxes []struct {
	cx, cy, w, h float32
	class        int
	conf         float32
}) []float32 {
	data := make([]float32, numProposals*stride)
	for i, b := range boxes {
		base := i * stride
		data[base] = b.cx
		data[base+1] = b.cy
		data[base+2] = b.w
		data[base+3] = b.h
		data[base+4+b.class] = b.conf
	}
	return data
}

func newDetector(proposals []float32) *Detector {
	cfg := config.MotionDetectorConfig{
		ConfidenceThreshold: 0.5,
		NMSThreshold:        0.45,
		InputWidth:          640,
		TrackHighThreshold:  0.6,
		TrackLowThreshold:   0.1,
		TrackBufferSize:     3,
		PixelMotionWeight:   0.8,
		ObjectMotionWeight:  0.2,
	}
	reg := model.NewRegistry(&fakeInferer{proposals: proposals})
	reg.Register("motion", "motion.onnx")
	return New(cfg, reg)
}

func mkFrame(id uint32) frame.Frame {
	return frame.Frame{FrameID: id, Width: 1280, Height: 720, Channels: 3, Pixels: make([]byte, 1280*720*3)}
}

func TestDetectNoProposalsNoTracks(t *testing.T) {
	d := newDetector(buildProposals(nil))
	res := frame.NewResource(mkFrame(0))
	out, err := d.Detect(res)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(out.ActiveTracks) != 0 {
		t.Errorf("expected no active tracks, got %d", len(out.ActiveTracks))
	}
}

func TestDetectCreatesNewTrackAboveHighThreshold(t *testing.T) {
	d := newDetector(buildProposals([]struct {
		cx, cy, w, h float32
		class        int
		conf         float32
	}{
		{cx: 320, cy: 320, w: 100, h: 100, class: 0, conf: 0.9},
	}))
	out, err := d.Detect(frame.NewResource(mkFrame(0)))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(out.ActiveTracks) != 1 {
		t.Fatalf("expected 1 new active track, got %d", len(out.ActiveTracks))
	}
	if out.NewTracks != 1 {
		t.Errorf("expected NewTracks=1, got %d", out.NewTracks)
	}
	if out.ActiveTracks[0].TrackID != 1 {
		t.Errorf("expected first track id 1, got %d", out.ActiveTracks[0].TrackID)
	}
}

func TestDetectBelowHighThresholdNoTrack(t *testing.T) {
	d := newDetector(buildProposals([]struct {
		cx, cy, w, h float32
		class        int
		conf         float32
	}{
		{cx: 320, cy: 320, w: 100, h: 100, class: 0, conf: 0.55},
	}))
	out, err := d.Detect(frame.NewResource(mkFrame(0)))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(out.ActiveTracks) != 0 {
		t.Errorf("low-confidence detection should not spawn a track, got %d tracks", len(out.ActiveTracks))
	}
}

func TestTrackPersistsAcrossMatchingFrames(t *testing.T) {
	d := newDetector(nil)

	box1 := struct {
		cx, cy, w, h float32
		class        int
		conf         float32
	}{cx: 320, cy: 320, w: 100, h: 100, class: 0, conf: 0.9}
	box2 := box1
	box2.cx += 5 // small shift, still overlapping well above IoU 0.3

	d.models = model.NewRegistry(&fakeInferer{proposals: buildProposals([]struct {
		cx, cy, w, h float32
		class        int
		conf         float32
	}{box1})})
	d.models.Register("motion", "motion.onnx")
	out1, _ := d.Detect(frame.NewResource(mkFrame(0)))

	d.models = model.NewRegistry(&fakeInferer{proposals: buildProposals([]struct {
		cx, cy, w, h float32
		class        int
		conf         float32
	}{box2})})
	d.models.Register("motion", "motion.onnx")
	out2, err := d.Detect(frame.NewResource(mkFrame(1)))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}

	if len(out2.ActiveTracks) != 1 {
		t.Fatalf("expected the same track to persist, got %d tracks", len(out2.ActiveTracks))
	}
	if out2.ActiveTracks[0].TrackID != out1.ActiveTracks[0].TrackID {
		t.Errorf("expected stable track id across frames, got %d then %d",
			out1.ActiveTracks[0].TrackID, out2.ActiveTracks[0].TrackID)
	}
	if out2.NewTracks != 0 {
		t.Errorf("expected no new tracks on a matching frame, got %d", out2.NewTracks)
	}
}

func TestTrackLostThenDroppedAfterBuffer(t *testing.T) {
	tr := newTracker()
	cfg := config.MotionDetectorConfig{TrackHighThreshold: 0.6, TrackBufferSize: 2}

	det := detection{box: frame.BoundingBox{X: 100, Y: 100, W: 50, H: 50}, confidence: 0.9}
	active, newCount, _ := tr.update([]detection{det}, cfg)
	if len(active) != 1 || newCount != 1 {
		t.Fatalf("expected one new track, got active=%d new=%d", len(active), newCount)
	}

	// Three consecutive frames with no matching detections.
	for i := 0; i < int(cfg.TrackBufferSize)+1; i++ {
		active, _, _ = tr.update(nil, cfg)
	}
	if len(active) != 0 {
		t.Errorf("expected track to be dropped after exceeding TrackBufferSize, got %d active", len(active))
	}
	if len(tr.lost) != 0 {
		t.Errorf("expected track to be removed from the lost list after exceeding TrackBufferSize, got %d lost", len(tr.lost))
	}
}

func TestVelocityEMASkippedOnFirstMatch(t *testing.T) {
	tr := newTracker()
	cfg := config.MotionDetectorConfig{TrackHighThreshold: 0.6, TrackBufferSize: 3}

	d1 := detection{box: frame.BoundingBox{X: 100, Y: 100, W: 50, H: 50}, confidence: 0.9}
	tr.update([]detection{d1}, cfg)

	d2 := detection{box: frame.BoundingBox{X: 110, Y: 100, W: 50, H: 50}, confidence: 0.9}
	active, _, _ := tr.update([]detection{d2}, cfg)
	if len(active) != 1 {
		t.Fatalf("expected 1 active track, got %d", len(active))
	}
	// First match after creation: the EMA update is skipped entirely, so
	// velocity stays (0,0) regardless of the raw displacement (10) — per
	// §9, velocity only begins tracking from the second match onward.
	if active[0].VelocityX != 0 {
		t.Errorf("expected velocity to stay 0 on first match, got %v", active[0].VelocityX)
	}

	d3 := detection{box: frame.BoundingBox{X: 130, Y: 100, W: 50, H: 50}, confidence: 0.9}
	active, _, _ = tr.update([]detection{d3}, cfg)
	// Second match: EMA blend of new displacement (20) and prior velocity (0).
	want := velocityAlpha * 20
	if active[0].VelocityX != want {
		t.Errorf("expected EMA-blended velocity %v, got %v", want, active[0].VelocityX)
	}
}

func TestPixelMotionZeroOnFirstFrame(t *testing.T) {
	d := newDetector(buildProposals(nil))
	score := d.calculatePixelMotion(mkFrame(0))
	if score != 0 {
		t.Errorf("expected 0 pixel motion on first frame, got %v", score)
	}
}

func TestPixelMotionDetectsChange(t *testing.T) {
	d := newDetector(buildProposals(nil))
	f1 := mkFrame(0)
	d.calculatePixelMotion(f1)

	f2 := mkFrame(1)
	for i := range f2.Pixels {
		f2.Pixels[i] = 255
	}
	score := d.calculatePixelMotion(f2)
	if score <= 0 {
		t.Errorf("expected nonzero pixel motion for a fully changed frame, got %v", score)
	}
}

func TestObjectMotionScoreBoundedByOne(t *testing.T) {
	score := computeObjectMotionScore(make([]frame.Track, 20), 20, 20)
	if score > 1 {
		t.Errorf("object motion score should be bounded by its own clamped terms, got %v", score)
	}
}
