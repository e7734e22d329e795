// Package scene implements the scene-change detector described in §4.2:
// preprocess to a square tensor, run inference to get a feature vector,
// compare against the previous feature by cosine similarity.
//
// Grounded on original_source/cpp/.../Detectors/SceneChangeDetector.cpp.
package scene

import (
	"math"

	"github.com/five82/keyscope/internal/config"
	"github.com/five82/keyscope/internal/errors"
	"github.com/five82/keyscope/internal/frame"
	"github.com/five82/keyscope/internal/model"
)

const (
	minSimilarity = 0.6
	maxSimilarity = 0.98
	maxCacheLen   = 5
)

// Detector is the scene-change detector. It is independently stateful and
// not safe for concurrent use by more than one analysis worker at a time
// (§4.2: "each is independently stateful and thread-unsafe internally").
type Detector struct {
	cfg    config.SceneDetectorConfig
	models *model.Registry

	hasPrev     bool
	prevFeature []float64
	cache       [][]float64
}

// New creates a scene detector bound to cfg and the shared model registry.
func New(cfg config.SceneDetectorConfig, models *model.Registry) *Detector {
	return &Detector{cfg: cfg, models: models}
}

// Reset clears detector state. Idempotent: calling it twice in a row leaves
// the same "first frame ever" state as calling it once.
func (d *Detector) Reset() {
	d.hasPrev = false
	d.prevFeature = nil
	d.cache = nil
}

// Detect runs the scene-change detector against res, memoizing the
// preprocessed tensor under frame.SceneTensor so other callers sharing the
// resource within one analyze call do not recompute it.
func (d *Detector) Detect(res *frame.Resource) (frame.SceneResult, error) {
	tensor, _, ok := res.Tensor(frame.SceneTensor)
	if !ok {
		tensor = preprocess(res.Frame, int(d.cfg.InputSize))
		res.SetTensor(frame.SceneTensor, tensor, frame.LetterboxInfo{})
	}

	outputs, err := d.models.Infer("scene", []model.Tensor{{
		Shape: []int{1, int(d.cfg.InputSize), int(d.cfg.InputSize)},
		Data:  tensor,
	}})
	if err != nil {
		return frame.SceneResult{}, errors.NewDetectorError("scene", err)
	}
	feature := featureOf(outputs, int(d.cfg.FeatureDim))

	if !d.hasPrev {
		d.hasPrev = true
		d.prevFeature = feature
		d.pushCache(feature)
		return frame.SceneResult{IsSceneChange: false, Similarity: 1.0, Score: 0}, nil
	}

	similarity := cosineSimilarity(feature, d.prevFeature)
	isSceneChange := similarity < float64(d.cfg.SimilarityThreshold)
	score := clamp01((maxSimilarity - similarity) / (maxSimilarity - minSimilarity))

	d.prevFeature = feature
	d.pushCache(feature)

	return frame.SceneResult{
		IsSceneChange: isSceneChange,
		Similarity:    similarity,
		Score:         float32(score),
	}, nil
}

func (d *Detector) pushCache(feature []float64) {
	if !d.cfg.EnableCache {
		return
	}
	d.cache = append(d.cache, feature)
	if len(d.cache) > maxCacheLen {
		d.cache = d.cache[1:]
	}
}

func featureOf(outputs []model.Tensor, dim int) []float64 {
	out := make([]float64, dim)
	if len(outputs) == 0 {
		return out
	}
	data := outputs[0].Data
	for i := 0; i < dim && i < len(data); i++ {
		out[i] = float64(data[i])
	}
	return out
}

func cosineSimilarity(a, b []float64) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// preprocess builds a normalized input_size*input_size feature tensor from
// raw pixels via nearest-neighbor sampling and per-channel averaging. The
// actual resize/normalize algorithm is an implementation detail of the
// opaque inference step (§1); only its determinism and shape matter here.
func preprocess(f frame.Frame, size int) []float32 {
	out := make([]float32, size*size)
	if f.Width == 0 || f.Height == 0 || len(f.Pixels) == 0 {
		return out
	}
	channels := f.Channels
	if channels == 0 {
		channels = 1
	}
	for y := 0; y < size; y++ {
		srcY := y * f.Height / size
		for x := 0; x < size; x++ {
			srcX := x * f.Width / size
			idx := (srcY*f.Width + srcX) * channels
			var sum float32
			for c := 0; c < channels && idx+c < len(f.Pixels); c++ {
				sum += float32(f.Pixels[idx+c])
			}
			out[y*size+x] = sum / float32(channels) / 255.0
		}
	}
	return out
}
