// Package pipeline wires the four-stage keyframe analysis dataflow
// described in §2/§5: receive → N analysis workers → selector → publish,
// connected by bounded internal/queue.Queue instances and cascading through
// an orderly shutdown.
//
// Goroutine shape (1 receive, N workers, 1 selector, 1 publish, all joined
// with sync.WaitGroup) is grounded on teacher internal/encode/encode.go
// (decoder goroutine → N worker goroutines → 1 collector goroutine). The
// Start/Stop/context.WithCancel lifecycle follows
// other_examples/miface/tracker.go's Tracker.Start/Stop/Close.
package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/five82/keyscope/internal/config"
	"github.com/five82/keyscope/internal/errors"
	"github.com/five82/keyscope/internal/frame"
	"github.com/five82/keyscope/internal/proto"
	"github.com/five82/keyscope/internal/queue"
	"github.com/five82/keyscope/internal/scorer"
	"github.com/five82/keyscope/internal/selector"
)

// popTimeout is the per-pop timeout on every inter-stage queue, short
// enough that a stopped-but-empty queue exits promptly (§5).
const popTimeout = 100 * time.Millisecond

const latestKeyframesCap = 20

// Subscriber is the narrow transport dependency the receive stage reads
// raw wire messages from. The pub/sub transport itself is out of scope
// (§1); the core only ever sees this interface.
type Subscriber interface {
	Receive(ctx context.Context) ([]byte, error)
}

// Publisher is the narrow transport dependency the publish stage writes
// serialized metadata messages to.
type Publisher interface {
	Send(ctx context.Context, data []byte) error
}

// FrameAnalyzer is the interface an analysis worker drives per frame,
// satisfied by analyzer.StandardFrameAnalyzer.
type FrameAnalyzer interface {
	Analyze(res *frame.Resource) frame.MultiDimensionScore
}

// State is the pipeline service's lifecycle state, read by status APIs
// under the service's mutex.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Service owns the four pipeline stages, their connecting queues, and the
// shared AnalysisContext/latest-keyframes state read by the control
// protocol.
type Service struct {
	cfg         config.PipelineConfig
	keyframeCfg config.KeyframeDetectorConfig
	subscriber  Subscriber
	publisher   Publisher
	analyzer    FrameAnalyzer
	newScorer   func() *scorer.FrameScorer

	frameQueue    *queue.Queue[frame.Frame]
	scoreQueue    *queue.Queue[frame.Score]
	selectedQueue *queue.Queue[frame.Score]

	mu              sync.Mutex
	state           State
	counters        frame.Counters
	lastErr         error
	latestKeyframes []frame.Score

	ctx    context.Context
	cancel context.CancelFunc

	wgReceive sync.WaitGroup
	wgWorkers sync.WaitGroup
	wgSelect  sync.WaitGroup
	wgPublish sync.WaitGroup
}

// New creates a pipeline service. newScorer must return a fresh
// *scorer.FrameScorer per call, since each analysis worker owns its own
// scorer instance (batches are scored in order within one scorer, §4.4).
func New(
	cfg config.PipelineConfig,
	keyframeCfg config.KeyframeDetectorConfig,
	subscriber Subscriber,
	publisher Publisher,
	analyzer FrameAnalyzer,
	newScorer func() *scorer.FrameScorer,
) *Service {
	return &Service{
		cfg:         cfg,
		keyframeCfg: keyframeCfg,
		subscriber:  subscriber,
		publisher:   publisher,
		analyzer:    analyzer,
		newScorer:   newScorer,
		state:       StateIdle,

		frameQueue:    queue.New[frame.Frame](cfg.FrameBufferSize),
		scoreQueue:    queue.New[frame.Score](cfg.ScoreBufferSize),
		selectedQueue: queue.New[frame.Score](cfg.SelectedBufferSize),
	}
}

// Start spawns the receive, N analysis worker, selector, and publish
// goroutines. Returns an error if already running.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRunning {
		return errors.NewAlreadyRunningError()
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.state = StateRunning

	s.wgReceive.Add(1)
	go s.receiveLoop()

	n := s.cfg.AnalysisThreadCount
	if n < 1 {
		n = 1
	}
	s.wgWorkers.Add(n)
	for i := 0; i < n; i++ {
		go s.analysisWorkerLoop()
	}

	s.wgSelect.Add(1)
	go s.selectorLoop()

	s.wgPublish.Add(1)
	go s.publishLoop()

	return nil
}

// Stop cascades shutdown stage by stage (§5): the receive stage stops
// first, then its output queue is stopped so workers drain and exit, then
// the score queue, then the selected queue — waiting for each stage to
// fully exit before stopping the next queue downstream.
func (s *Service) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return errors.NewNotRunningError()
	}
	s.cancel()
	s.state = StateStopped
	s.mu.Unlock()

	s.wgReceive.Wait()

	s.frameQueue.Stop()
	s.wgWorkers.Wait()

	s.scoreQueue.Stop()
	s.wgSelect.Wait()

	s.selectedQueue.Stop()
	s.wgPublish.Wait()

	return nil
}

// State returns the service's current lifecycle state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Counters returns a snapshot of the process-wide running counters.
func (s *Service) Counters() frame.Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

// LatestKeyframes returns a snapshot of the capped latest-keyframes ring.
func (s *Service) LatestKeyframes() []frame.Score {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]frame.Score, len(s.latestKeyframes))
	copy(out, s.latestKeyframes)
	return out
}

// LastError returns the last fatal error recorded by any stage, if any.
func (s *Service) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Service) recordError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *Service) recordKeyframe(sc frame.Score) {
	s.mu.Lock()
	s.latestKeyframes = append(s.latestKeyframes, sc)
	if len(s.latestKeyframes) > latestKeyframesCap {
		s.latestKeyframes = s.latestKeyframes[len(s.latestKeyframes)-latestKeyframesCap:]
	}
	s.mu.Unlock()
}

// receiveLoop decodes wire frames from the subscriber in source order and
// enqueues them in that order, exiting once the context is cancelled.
func (s *Service) receiveLoop() {
	defer s.wgReceive.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		raw, err := s.subscriber.Receive(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			log.Printf("receive stage: subscriber error: %v", err)
			continue
		}

		msg, err := proto.DeserializeFrameMessage(raw)
		if err != nil {
			// Bad magic/CRC/truncated: drop the frame, keep going (§7).
			log.Printf("receive stage: dropping malformed frame: %v", err)
			continue
		}

		f := frame.Frame{
			FrameID:     msg.FrameID,
			TimestampMs: msg.TimestampMs,
			Width:       int(msg.Width),
			Height:      int(msg.Height),
			Channels:    int(msg.Channels),
			Pixels:      msg.Pixels,
		}

		s.mu.Lock()
		s.counters.TotalFramesAnalyzed++
		s.mu.Unlock()

		if !s.frameQueue.PushTimeout(f, popTimeout) {
			// Capacity error: drop the frame rather than block (§5, §7).
			log.Printf("receive stage: frame queue full, dropping frame %d", f.FrameID)
		}
	}
}

// analysisWorkerLoop pops frames in whatever order it dequeues them,
// analyzes and scores each, and pushes the resulting FrameScore. Multiple
// workers interleave with no ordering guarantee across each other (§5).
func (s *Service) analysisWorkerLoop() {
	defer s.wgWorkers.Done()

	sc := s.newScorer()

	for {
		f, ok := s.frameQueue.PopTimeout(popTimeout)
		if !ok {
			if s.frameQueue.Stopped() && s.frameQueue.Empty() {
				return
			}
			continue
		}

		res := frame.NewResource(f)
		multi := s.analyzer.Analyze(res)

		ctx := frame.Context{
			FrameIndex: uint64(f.FrameID),
			TimestampS: float64(f.TimestampMs) / 1000.0,
		}
		score := sc.Score(multi, ctx)

		if !s.scoreQueue.PushTimeout(score, popTimeout) {
			log.Printf("analysis worker: score queue full, dropping score for frame %d", score.FrameIndex)
		}
	}
}

// selectorLoop batches scores through the streaming selection stage and
// forwards every selected score onto the selected queue, flushing any
// partial window on shutdown.
func (s *Service) selectorLoop() {
	defer s.wgSelect.Done()

	stage := selector.NewStage(s.keyframeCfg, func(sc frame.Score) {
		s.recordKeyframe(sc)
		if !s.selectedQueue.PushTimeout(sc, popTimeout) {
			log.Printf("selector stage: selected queue full, dropping keyframe %d", sc.FrameIndex)
		}
	})

	for {
		sc, ok := s.scoreQueue.PopTimeout(popTimeout)
		if !ok {
			if s.scoreQueue.Stopped() && s.scoreQueue.Empty() {
				stage.Flush()
				return
			}
			continue
		}
		stage.Push(sc)
	}
}

// publishLoop serializes each selected score and hands it to the
// publisher, preserving the order it dequeues.
func (s *Service) publishLoop() {
	defer s.wgPublish.Done()

	for {
		sc, ok := s.selectedQueue.PopTimeout(popTimeout)
		if !ok {
			if s.selectedQueue.Stopped() && s.selectedQueue.Empty() {
				return
			}
			continue
		}

		msg := proto.MetadataMessage{
			FrameID:       uint32(sc.FrameIndex),
			TimestampMs:   uint64(sc.Timestamp * 1000.0),
			FinalScore:    sc.FinalScore,
			SceneScore:    sc.Contributions[0],
			MotionScore:   sc.Contributions[1],
			TextScore:     sc.Contributions[2],
			IsSceneChange: sc.IsSceneChange,
		}
		data := proto.SerializeMetadataMessage(msg)

		if err := s.publisher.Send(s.ctx, data); err != nil {
			if s.ctx.Err() != nil {
				return
			}
			log.Printf("publish stage: send failed: %v", err)
			s.recordError(errors.NewTransportError("publish send failed", err))
		}
	}
}
