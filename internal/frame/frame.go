// Package frame defines the data types shared across the detector, analyzer,
// scorer, and selector stages of the keyframe analysis pipeline (§3).
package frame

import "sync"

// Frame is a single decoded video frame.
type Frame struct {
	FrameID     uint32
	TimestampMs uint64
	Width       int
	Height      int
	Channels    int
	Pixels      []byte
}

// TensorVariant tags a preprocessed tensor cached on a Resource. A small,
// closed enum replaces the source's string-keyed heterogeneous cache (§9
// design note): "compute once per frame, per preprocessing variant", with no
// need for a string key or dynamic downcasts.
type TensorVariant int

const (
	SceneTensor TensorVariant = iota
	MotionTensor
	TextDetTensor
)

// LetterboxInfo records the scale and padding offset applied when an image
// was resized onto a square canvas, so detected coordinates can be mapped
// back to the original frame.
type LetterboxInfo struct {
	Scale   float64
	OffsetX int
	OffsetY int
}

type tensorEntry struct {
	data []float32
	box  LetterboxInfo
}

// Resource wraps a Frame and memoizes preprocessed tensor variants so the
// three detectors sharing one analyze call each preprocess at most once.
// Each variant is still written at most once (single-writer/single-reader
// per variant, §9 design note), but the three detectors run concurrently
// (§4.3) and a plain Go map is not safe for concurrent access even across
// distinct keys, so the cache itself is mutex-guarded.
type Resource struct {
	Frame Frame

	mu    sync.Mutex
	cache map[TensorVariant]tensorEntry
}

// NewResource wraps f in a Resource with an empty tensor cache.
func NewResource(f Frame) *Resource {
	return &Resource{Frame: f, cache: make(map[TensorVariant]tensorEntry)}
}

// Tensor returns the cached tensor for variant, if computed.
func (r *Resource) Tensor(variant TensorVariant) ([]float32, LetterboxInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.cache[variant]
	return e.data, e.box, ok
}

// SetTensor stores the preprocessed tensor for variant along with whatever
// letterbox mapping was used to produce it (zero value if none).
func (r *Resource) SetTensor(variant TensorVariant, data []float32, box LetterboxInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[variant] = tensorEntry{data: data, box: box}
}

// Context carries per-frame positional information through the pipeline.
type Context struct {
	FrameIndex  uint64
	TimestampS  float64
	FrameSize   int
}

// Counters are the process-wide running counters maintained by the service
// under a single mutex (§5 shared resources).
type Counters struct {
	TotalFramesAnalyzed uint64
}

// BoundingBox is an axis-aligned box in original-frame pixel coordinates.
type BoundingBox struct {
	X, Y, W, H float64
}

// Area returns the box's area, 0 for a degenerate (zero-sized) box.
func (b BoundingBox) Area() float64 {
	if b.W <= 0 || b.H <= 0 {
		return 0
	}
	return b.W * b.H
}

// Track is a motion detector's stable identity for a tracked object (§3).
type Track struct {
	TrackID    int32
	Box        BoundingBox
	VelocityX  float64
	VelocityY  float64
	Confidence float32
	ClassID    int
	FramesLost int
}

// SceneResult is the scene-change detector's per-frame output.
type SceneResult struct {
	IsSceneChange bool
	Similarity    float64
	Score         float32
}

// MotionResult is the motion detector's per-frame output.
type MotionResult struct {
	Score         float32
	PixelMotion   float64
	ObjectMotion  float64
	ActiveTracks  []Track
	NewTracks     int
	LostTracks    int
}

// TextRegion is a single detected on-screen text region.
type TextRegion struct {
	Polygon [][2]float64
	Box     BoundingBox
}

// TextResult is the text detector's per-frame output.
type TextResult struct {
	Score         float32
	CoverageRatio float64
	ChangeRatio   float64
	Regions       []TextRegion
}

// MultiDimensionScore bundles the three detectors' raw results for a frame.
type MultiDimensionScore struct {
	SceneScore  float32
	MotionScore float32
	TextScore   float32

	Scene  SceneResult
	Motion MotionResult
	Text   TextResult
}

// Score is the scorer's fused, weighted, and temporally smoothed output for
// a single frame — what flows through the score queue and into the
// selector.
type Score struct {
	FrameIndex  uint64
	Timestamp   float64
	FinalScore  float32

	// RawScores are the pre-fusion per-dimension scores.
	RawScores [3]float32
	// AppliedWeights are the fused weights used to compute this score.
	AppliedWeights [3]float32
	// Contributions are RawScores[i] * AppliedWeights[i] (§4.4 step 5).
	Contributions [3]float32

	IsSceneChange bool
}
