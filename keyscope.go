// Package keyscope provides a Go library for the two-process keyframe
// analysis pipeline: a four-stage dataflow (receive, parallel per-frame
// detector fan-out, dynamic-weight scoring, adaptive keyframe selection)
// that picks the frames that best summarize a video.
//
// Basic usage:
//
//	session, err := keyscope.New(subscriber, publisher, analyzer,
//	    keyscope.WithTopKMode(20),
//	    keyscope.WithAnalysisThreadCount(4),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := session.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Stop()
package keyscope

import (
	"fmt"
	"strings"

	keyscopeAnalyzer "github.com/five82/keyscope/internal/analyzer"
	"github.com/five82/keyscope/internal/config"
	"github.com/five82/keyscope/internal/detector/motion"
	"github.com/five82/keyscope/internal/detector/scene"
	"github.com/five82/keyscope/internal/detector/text"
	"github.com/five82/keyscope/internal/frame"
	"github.com/five82/keyscope/internal/model"
	"github.com/five82/keyscope/internal/pipeline"
	"github.com/five82/keyscope/internal/scorer"
)

// Re-export the pipeline's narrow transport/analysis dependencies so
// callers only ever import the root package.
type (
	Subscriber    = pipeline.Subscriber
	Publisher     = pipeline.Publisher
	FrameAnalyzer = pipeline.FrameAnalyzer
	State         = pipeline.State
)

const (
	StateIdle    = pipeline.StateIdle
	StateRunning = pipeline.StateRunning
	StateStopped = pipeline.StateStopped
)

// Option configures the session before it is built.
type Option func(*config.Config)

// WithLogDir sets the daemon's log directory.
func WithLogDir(dir string) Option {
	return func(c *config.Config) { c.LogDir = dir }
}

// WithVerbose enables verbose status reporting.
func WithVerbose(verbose bool) Option {
	return func(c *config.Config) { c.Verbose = verbose }
}

// WithAnalysisThreadCount sets the number of parallel analysis workers.
func WithAnalysisThreadCount(n int) Option {
	return func(c *config.Config) { c.Pipeline.AnalysisThreadCount = n }
}

// WithBufferSizes sets the three inter-stage queue capacities.
func WithBufferSizes(frameBuf, scoreBuf, selectedBuf int) Option {
	return func(c *config.Config) {
		c.Pipeline.FrameBufferSize = frameBuf
		c.Pipeline.ScoreBufferSize = scoreBuf
		c.Pipeline.SelectedBufferSize = selectedBuf
	}
}

// WithModelPaths sets the scene/motion/text-detection/text-recognition
// model file paths. NewStandardAnalyzer registers the first three with the
// model registry; the text-recognition path is not registered or used.
func WithModelPaths(scenePath, motionPath, textDetPath, textRecPath string) Option {
	return func(c *config.Config) {
		c.Models.SceneModelPath = scenePath
		c.Models.MotionModelPath = motionPath
		c.Models.TextDetModelPath = textDetPath
		c.Models.TextRecModelPath = textRecPath
	}
}

// WithTextDetectionEnabled toggles the text detector's contribution to the
// fused score.
func WithTextDetectionEnabled(enable bool) Option {
	return func(c *config.Config) { c.Text.EnableRecognition = enable }
}

// WithTopKMode configures the selector for fixed-count Top-K selection,
// disabling threshold mode.
func WithTopKMode(targetCount int) Option {
	return func(c *config.Config) {
		c.Keyframe.UseThresholdMode = false
		c.Keyframe.TargetKeyframeCount = targetCount
	}
}

// WithThresholdMode configures the selector for threshold-gated selection,
// enabling threshold mode with the given pre-filter floor.
func WithThresholdMode(minScore float32) Option {
	return func(c *config.Config) {
		c.Keyframe.UseThresholdMode = true
		c.Keyframe.MinScoreThreshold = minScore
	}
}

// WithMinTemporalDistance sets the minimum spacing, in seconds, enforced
// between any two selected keyframes.
func WithMinTemporalDistance(seconds float64) Option {
	return func(c *config.Config) { c.Keyframe.MinTemporalDistance = seconds }
}

// WithDynamicWeighting toggles the scorer's dynamic per-dimension weight
// calculator; disabling it fuses with the fixed weights (0.45, 0.20, 0.35),
// not the configured base weights.
func WithDynamicWeighting(enable bool) Option {
	return func(c *config.Config) { c.Scorer.EnableDynamicWeighting = enable }
}

// BuildConfig applies opts to a fresh default configuration and validates
// it, returning a joined error if validation fails. Useful on its own when
// a FrameAnalyzer (e.g. from NewStandardAnalyzer) needs the resolved
// configuration before the Session can be constructed.
func BuildConfig(opts ...Option) (*config.Config, error) {
	cfg := config.NewConfig(".")
	for _, opt := range opts {
		opt(cfg)
	}

	result := cfg.Validate()
	if !result.OK() {
		msgs := make([]string, len(result.Errors))
		for i, e := range result.Errors {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}
	return cfg, nil
}

// Session is the main entry point for running the keyframe analysis
// pipeline against a given Subscriber/Publisher/FrameAnalyzer.
type Session struct {
	cfg     *config.Config
	service *pipeline.Service
}

// New creates a Session with the given options and a fresh pipeline
// service wired to subscriber/publisher/analyzer. The analyzer typically
// comes from NewStandardAnalyzer, but any FrameAnalyzer implementation
// (e.g. a test double) is accepted.
func New(subscriber Subscriber, publisher Publisher, analyzer FrameAnalyzer, opts ...Option) (*Session, error) {
	cfg, err := BuildConfig(opts...)
	if err != nil {
		return nil, err
	}

	newScorer := func() *scorer.FrameScorer {
		return scorer.NewFrameScorer(cfg.Scorer, scorer.NewDynamicCalculator(cfg.Dynamic))
	}

	svc := pipeline.New(cfg.Pipeline, cfg.Keyframe, subscriber, publisher, analyzer, newScorer)
	return &Session{cfg: cfg, service: svc}, nil
}

// NewStandardAnalyzer builds the standard scene/motion/text detector
// fan-out analyzer against a shared model registry backed by engine.
func NewStandardAnalyzer(cfg *config.Config, engine model.Inferer) FrameAnalyzer {
	registry := model.NewRegistry(engine)
	registry.Register("scene", cfg.Models.SceneModelPath)
	registry.Register("motion", cfg.Models.MotionModelPath)
	registry.Register("text_det", cfg.Models.TextDetModelPath)

	sceneDetector := scene.New(cfg.Scene, registry)
	motionDetector := motion.New(cfg.Motion, registry)
	textDetector := text.New(cfg.Text, registry)

	return keyscopeAnalyzer.New(sceneDetector, motionDetector, textDetector, cfg.Text.EnableRecognition)
}

// Config returns the session's resolved, validated configuration.
func (s *Session) Config() *config.Config { return s.cfg }

// Start begins the four-stage pipeline.
func (s *Session) Start() error { return s.service.Start() }

// Stop cascades an orderly shutdown across all four stages.
func (s *Session) Stop() error { return s.service.Stop() }

// State returns the session's current lifecycle state.
func (s *Session) State() State { return s.service.State() }

// Counters returns a snapshot of the running frame-analysis counters.
func (s *Session) Counters() frame.Counters { return s.service.Counters() }

// LatestKeyframes returns the capped ring of the most recently selected
// keyframes.
func (s *Session) LatestKeyframes() []frame.Score { return s.service.LatestKeyframes() }

// LastError returns the last fatal error recorded by any pipeline stage.
func (s *Session) LastError() error { return s.service.LastError() }
