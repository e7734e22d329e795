// Package config provides configuration types and defaults for the keyframe
// analysis pipeline.
package config

import (
	"fmt"

	"github.com/five82/keyscope/internal/util"
)

// Default constants, grouped the way the options table in the specification
// groups them.
const (
	// DefaultTimeoutMs is the default socket receive/send timeout.
	DefaultTimeoutMs uint32 = 1000
	// DefaultIOThreads is the default transport I/O thread count.
	DefaultIOThreads uint32 = 1

	// DefaultConfidenceThreshold is the motion detector's minimum class score.
	DefaultConfidenceThreshold float32 = 0.4
	// DefaultNMSThreshold is the motion detector's non-max-suppression IoU threshold.
	DefaultNMSThreshold float32 = 0.45
	// DefaultInputWidth is the motion detector's square inference input size.
	DefaultInputWidth uint32 = 640
	// DefaultMaxTrackedObjects is the max_tracked_objects default; the tracker
	// does not read it, so the number of tracked objects is not capped.
	DefaultMaxTrackedObjects uint32 = 64
	// DefaultTrackHighThreshold is the confidence above which an unmatched detection becomes a track.
	DefaultTrackHighThreshold float32 = 0.6
	// DefaultTrackLowThreshold is the track_low_threshold default; the tracker
	// does not read it (lost tracks are re-matched by IoU alone).
	DefaultTrackLowThreshold float32 = 0.1
	// DefaultTrackBufferSize is how many consecutive missed frames before a lost track is destroyed.
	DefaultTrackBufferSize uint32 = 30
	// DefaultPixelMotionWeight weights the pixel-difference motion term.
	DefaultPixelMotionWeight float32 = 0.8
	// DefaultObjectMotionWeight weights the object-tracking motion term.
	DefaultObjectMotionWeight float32 = 0.2

	// DefaultSimilarityThreshold is the scene detector's cosine-similarity cutoff.
	DefaultSimilarityThreshold float32 = 0.7
	// DefaultFeatureDim is the scene detector's embedding length.
	DefaultFeatureDim uint32 = 512
	// DefaultSceneInputSize is the scene detector's square inference input size.
	DefaultSceneInputSize uint32 = 224

	// DefaultDetInputHeight is the text detector's inference input height.
	DefaultDetInputHeight uint32 = 736
	// DefaultDetInputWidth is the text detector's inference input width.
	DefaultDetInputWidth uint32 = 1280
	// DefaultRecInputHeight is the text recognizer's inference input height.
	DefaultRecInputHeight uint32 = 48
	// DefaultRecInputWidth is the text recognizer's inference input width.
	DefaultRecInputWidth uint32 = 320
	// DefaultDetThreshold is the text detector's binarization threshold.
	DefaultDetThreshold float32 = 0.3
	// DefaultRecThreshold is the text recognizer's acceptance threshold.
	DefaultRecThreshold float32 = 0.5
	// DefaultTextAlpha weights the coverage-ratio term of the text score.
	DefaultTextAlpha float32 = 0.6
	// DefaultTextBeta weights the change-ratio term of the text score.
	DefaultTextBeta float32 = 0.4

	// DefaultCurrentFrameWeight is the dynamic calculator's activation blend factor (alpha).
	DefaultCurrentFrameWeight float32 = 0.3
	// DefaultActivationInfluence is the dynamic calculator's weight-shift strength (beta).
	DefaultActivationInfluence float32 = 0.5
	// DefaultHistoryWindowSize is how many recent score triples the calculator averages over.
	DefaultHistoryWindowSize int = 30
	// DefaultMinWeight is the per-dimension weight floor.
	DefaultMinWeight float32 = 0.05
	// DefaultMaxWeight is the per-dimension weight ceiling.
	DefaultMaxWeight float32 = 0.7

	// DefaultSmoothingWindowSize is the SMA window used when EMA smoothing is disabled.
	DefaultSmoothingWindowSize int = 5
	// DefaultSceneChangeBoost multiplies the fused score on a scene change.
	DefaultSceneChangeBoost float32 = 1.2
	// DefaultMotionIncreaseBoost multiplies the fused score on high motion.
	DefaultMotionIncreaseBoost float32 = 1.1
	// DefaultTextIncreaseBoost multiplies the fused score on text change.
	DefaultTextIncreaseBoost float32 = 1.1

	// DefaultTargetKeyframeCount is the selector's Top-K target.
	DefaultTargetKeyframeCount int = 10
	// DefaultTargetCompressionRatio drives the streaming selector's dynamic K.
	DefaultTargetCompressionRatio float64 = 0.1
	// DefaultMinKeyframeCount bounds the streaming selector's dynamic K from below.
	DefaultMinKeyframeCount int = 1
	// DefaultMaxKeyframeCount bounds the streaming selector's dynamic K from above.
	DefaultMaxKeyframeCount int = 30
	// DefaultMinTemporalDistance is the minimum spacing, in seconds, between selected frames.
	DefaultMinTemporalDistance float64 = 1.0
	// DefaultHighQualityThreshold is the high_quality_threshold default; no
	// selector, pipeline or reporter code reads it.
	DefaultHighQualityThreshold float32 = 0.7
	// DefaultMinScoreThreshold is the selector's pre-filter floor.
	DefaultMinScoreThreshold float32 = 0.3

	// DefaultFrameBufferSize is the frame queue's capacity.
	DefaultFrameBufferSize int = 64
	// DefaultScoreBufferSize is the score queue's capacity.
	DefaultScoreBufferSize int = 64
	// DefaultSelectedBufferSize is the selected-frame queue's capacity.
	DefaultSelectedBufferSize int = 64

	// SelectorWindowSize is the fixed batch size the streaming selector accumulates before running a pass.
	SelectorWindowSize int = 30
	// LatestKeyframesCap bounds the in-memory "most recent keyframes" list reported by GET_STATS.
	LatestKeyframesCap int = 20
	// QueuePopTimeoutMs is the pop timeout on every inter-stage queue, short enough that a
	// stopped-but-empty queue exits promptly.
	QueuePopTimeoutMs int = 100
)

// DefaultAnalysisThreadCount is the number of parallel analysis workers. It
// is sized off the host's physical core count (CPU-bound detector fan-out
// benefits from matching physical rather than logical/hyperthreaded cores,
// the same reasoning the teacher applies to its own encode worker-pool
// sizing in internal/util.MaxPermitsForMemory/PhysicalCores), rather than a
// fixed literal — a runtime var, not a compile-time const, since
// util.PhysicalCores probes the host (sysfs topology on Linux, sysctl on
// macOS, otherwise half of runtime.NumCPU()) when the package initializes.
var DefaultAnalysisThreadCount = util.PhysicalCores()

// SourceSinkConfig configures the transport pass-through endpoints.
type SourceSinkConfig struct {
	SubscriberEndpoint string
	PublisherEndpoint  string
	TimeoutMs          uint32
	IOThreads          uint32
}

// ModelConfig names the opaque model files handed to the inference facade.
type ModelConfig struct {
	BasePath          string
	SceneModelPath    string
	MotionModelPath   string
	TextDetModelPath  string
	TextRecModelPath  string
}

// MotionDetectorConfig configures object-motion detection and tracking.
type MotionDetectorConfig struct {
	ConfidenceThreshold float32
	NMSThreshold        float32
	InputWidth          uint32
	MaxTrackedObjects   uint32
	TrackHighThreshold  float32
	TrackLowThreshold   float32
	TrackBufferSize     uint32
	PixelMotionWeight   float32
	ObjectMotionWeight  float32
}

// SceneDetectorConfig configures scene-change detection.
type SceneDetectorConfig struct {
	SimilarityThreshold float32
	FeatureDim          uint32
	InputSize           uint32
	EnableCache         bool
}

// TextDetectorConfig configures on-screen text detection and recognition.
type TextDetectorConfig struct {
	DetInputHeight     uint32
	DetInputWidth      uint32
	RecInputHeight     uint32
	RecInputWidth      uint32
	DetThreshold       float32
	RecThreshold       float32
	EnableRecognition  bool
	Alpha              float32
	Beta               float32
}

// DynamicCalculatorConfig configures the dynamic per-dimension weighting scheme.
type DynamicCalculatorConfig struct {
	BaseWeights         [3]float32
	CurrentFrameWeight  float32
	ActivationInfluence float32
	HistoryWindowSize   int
	MinWeight           float32
	MaxWeight           float32
}

// FrameScorerConfig configures score fusion, boosting, and temporal smoothing.
type FrameScorerConfig struct {
	EnableDynamicWeighting bool
	EnableSmoothing        bool
	SmoothingWindowSize    int
	SmoothingEMAAlpha      float32
	SceneChangeBoost       float32
	MotionIncreaseBoost    float32
	TextIncreaseBoost      float32
}

// KeyframeDetectorConfig configures the adaptive keyframe selector.
type KeyframeDetectorConfig struct {
	TargetKeyframeCount        int
	TargetCompressionRatio     float64
	MinKeyframeCount           int
	MaxKeyframeCount           int
	MinTemporalDistance        float64
	UseThresholdMode           bool
	HighQualityThreshold       float32
	MinScoreThreshold          float32
	AlwaysIncludeSceneChanges  bool
}

// PipelineConfig configures stage concurrency and queue capacities.
type PipelineConfig struct {
	AnalysisThreadCount int
	FrameBufferSize     int
	ScoreBufferSize     int
	SelectedBufferSize  int
}

// Config holds all configuration for the keyframe analysis pipeline.
type Config struct {
	LogDir  string
	Verbose bool

	SourceSink SourceSinkConfig
	Models     ModelConfig
	Motion     MotionDetectorConfig
	Scene      SceneDetectorConfig
	Text       TextDetectorConfig
	Dynamic    DynamicCalculatorConfig
	Scorer     FrameScorerConfig
	Keyframe   KeyframeDetectorConfig
	Pipeline   PipelineConfig
}

// NewConfig creates a new Config with default values.
func NewConfig(logDir string) *Config {
	return &Config{
		LogDir: logDir,
		SourceSink: SourceSinkConfig{
			TimeoutMs: DefaultTimeoutMs,
			IOThreads: DefaultIOThreads,
		},
		Motion: MotionDetectorConfig{
			ConfidenceThreshold: DefaultConfidenceThreshold,
			NMSThreshold:        DefaultNMSThreshold,
			InputWidth:          DefaultInputWidth,
			MaxTrackedObjects:   DefaultMaxTrackedObjects,
			TrackHighThreshold:  DefaultTrackHighThreshold,
			TrackLowThreshold:   DefaultTrackLowThreshold,
			TrackBufferSize:     DefaultTrackBufferSize,
			PixelMotionWeight:   DefaultPixelMotionWeight,
			ObjectMotionWeight:  DefaultObjectMotionWeight,
		},
		Scene: SceneDetectorConfig{
			SimilarityThreshold: DefaultSimilarityThreshold,
			FeatureDim:          DefaultFeatureDim,
			InputSize:           DefaultSceneInputSize,
			EnableCache:         true,
		},
		Text: TextDetectorConfig{
			DetInputHeight:    DefaultDetInputHeight,
			DetInputWidth:     DefaultDetInputWidth,
			RecInputHeight:    DefaultRecInputHeight,
			RecInputWidth:     DefaultRecInputWidth,
			DetThreshold:      DefaultDetThreshold,
			RecThreshold:      DefaultRecThreshold,
			EnableRecognition: false,
			Alpha:             DefaultTextAlpha,
			Beta:              DefaultTextBeta,
		},
		Dynamic: DynamicCalculatorConfig{
			BaseWeights:         [3]float32{0.45, 0.20, 0.35},
			CurrentFrameWeight:  DefaultCurrentFrameWeight,
			ActivationInfluence: DefaultActivationInfluence,
			HistoryWindowSize:   DefaultHistoryWindowSize,
			MinWeight:           DefaultMinWeight,
			MaxWeight:           DefaultMaxWeight,
		},
		Scorer: FrameScorerConfig{
			EnableDynamicWeighting: true,
			EnableSmoothing:        true,
			SmoothingWindowSize:    DefaultSmoothingWindowSize,
			SmoothingEMAAlpha:      0.3,
			SceneChangeBoost:       DefaultSceneChangeBoost,
			MotionIncreaseBoost:    DefaultMotionIncreaseBoost,
			TextIncreaseBoost:      DefaultTextIncreaseBoost,
		},
		Keyframe: KeyframeDetectorConfig{
			TargetKeyframeCount:       DefaultTargetKeyframeCount,
			TargetCompressionRatio:    DefaultTargetCompressionRatio,
			MinKeyframeCount:          DefaultMinKeyframeCount,
			MaxKeyframeCount:          DefaultMaxKeyframeCount,
			MinTemporalDistance:       DefaultMinTemporalDistance,
			UseThresholdMode:          false,
			HighQualityThreshold:      DefaultHighQualityThreshold,
			MinScoreThreshold:         DefaultMinScoreThreshold,
			AlwaysIncludeSceneChanges: true,
		},
		Pipeline: PipelineConfig{
			AnalysisThreadCount: DefaultAnalysisThreadCount,
			FrameBufferSize:     DefaultFrameBufferSize,
			ScoreBufferSize:     DefaultScoreBufferSize,
			SelectedBufferSize:  DefaultSelectedBufferSize,
		},
	}
}

// ValidationResult is the structured outcome of Validate: any non-empty
// Errors slice fails initialization; Warnings are advisory only.
type ValidationResult struct {
	Errors   []error
	Warnings []string
}

// OK reports whether validation found no errors.
func (r *ValidationResult) OK() bool {
	return len(r.Errors) == 0
}

func inRange(name string, v, lo, hi float32) error {
	if v < lo || v > hi {
		return fmt.Errorf("%s must be in [%g, %g], got %g", name, lo, hi, v)
	}
	return nil
}

// Validate checks the configuration for errors and collects non-fatal
// warnings, returning a structured result (§6) rather than failing fast.
func (c *Config) Validate() *ValidationResult {
	r := &ValidationResult{}
	add := func(err error) {
		if err != nil {
			r.Errors = append(r.Errors, err)
		}
	}

	add(inRange("motion_detector.confidence_threshold", c.Motion.ConfidenceThreshold, 0, 1))
	add(inRange("motion_detector.nms_threshold", c.Motion.NMSThreshold, 0, 1))
	if c.Motion.InputWidth == 0 {
		add(fmt.Errorf("motion_detector.input_width must be > 0"))
	}
	if w := c.Motion.PixelMotionWeight + c.Motion.ObjectMotionWeight; w < 0.95 || w > 1.05 {
		r.Warnings = append(r.Warnings, fmt.Sprintf(
			"motion_detector pixel_motion_weight+object_motion_weight = %.3f, expected ~1.0", w))
	}

	add(inRange("scene_detector.similarity_threshold", c.Scene.SimilarityThreshold, 0, 1))
	if c.Scene.FeatureDim == 0 {
		add(fmt.Errorf("scene_detector.feature_dim must be > 0"))
	}
	if c.Scene.InputSize == 0 {
		add(fmt.Errorf("scene_detector.input_size must be > 0"))
	}

	if c.Text.DetInputHeight == 0 || c.Text.DetInputWidth == 0 {
		add(fmt.Errorf("text_detector.det_input_height/width must be > 0"))
	}
	add(inRange("text_detector.det_threshold", c.Text.DetThreshold, 0, 1))
	add(inRange("text_detector.rec_threshold", c.Text.RecThreshold, 0, 1))

	add(inRange("dynamic_calculator.current_frame_weight", c.Dynamic.CurrentFrameWeight, 0, 1))
	add(inRange("dynamic_calculator.activation_influence", c.Dynamic.ActivationInfluence, 0, 1))
	if c.Dynamic.HistoryWindowSize <= 0 {
		add(fmt.Errorf("dynamic_calculator.history_window_size must be > 0"))
	}
	if c.Dynamic.MinWeight >= c.Dynamic.MaxWeight {
		add(fmt.Errorf("dynamic_calculator.min_weight must be < max_weight"))
	}
	if sum := c.Dynamic.BaseWeights[0] + c.Dynamic.BaseWeights[1] + c.Dynamic.BaseWeights[2]; sum < 0.95 || sum > 1.05 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("dynamic_calculator.base_weights sum to %.3f, expected ~1.0", sum))
	}

	if c.Scorer.SmoothingEMAAlpha < 0 || c.Scorer.SmoothingEMAAlpha > 1 {
		r.Warnings = append(r.Warnings, "frame_scorer.smoothing_ema_alpha out of (0,1]; falling back to SMA smoothing")
	}
	for name, v := range map[string]float32{
		"scene_change_boost":    c.Scorer.SceneChangeBoost,
		"motion_increase_boost": c.Scorer.MotionIncreaseBoost,
		"text_increase_boost":   c.Scorer.TextIncreaseBoost,
	} {
		add(inRange("frame_scorer."+name, v, 1, 2))
	}

	if c.Keyframe.TargetKeyframeCount <= 0 {
		add(fmt.Errorf("keyframe_detector.target_keyframe_count must be > 0"))
	}
	if c.Keyframe.TargetCompressionRatio <= 0 || c.Keyframe.TargetCompressionRatio > 1 {
		add(fmt.Errorf("keyframe_detector.target_compression_ratio must be in (0,1]"))
	}
	if c.Keyframe.MinKeyframeCount > c.Keyframe.MaxKeyframeCount {
		add(fmt.Errorf("keyframe_detector.min_keyframe_count must be <= max_keyframe_count"))
	}
	if c.Keyframe.MinTemporalDistance <= 0 {
		add(fmt.Errorf("keyframe_detector.min_temporal_distance must be > 0"))
	}
	add(inRange("keyframe_detector.min_score_threshold", c.Keyframe.MinScoreThreshold, 0, 1))

	if c.Pipeline.AnalysisThreadCount <= 0 {
		add(fmt.Errorf("pipeline.analysis_thread_count must be > 0"))
	}
	if c.Pipeline.FrameBufferSize <= 0 {
		add(fmt.Errorf("pipeline.frame_buffer_size must be > 0"))
	}
	if c.Pipeline.ScoreBufferSize <= 0 {
		add(fmt.Errorf("pipeline.score_buffer_size must be > 0"))
	}

	return r
}
