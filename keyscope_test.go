package keyscope

import (
	"context"
	"testing"
	"time"

	"github.com/five82/keyscope/internal/frame"
	"github.com/five82/keyscope/internal/model"
)

// nullSubscriber never delivers a frame; it just blocks until cancelled,
// which is enough to exercise Start/Stop without a real transport.
type nullSubscriber struct{}

func (nullSubscriber) Receive(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type nullPublisher struct{}

func (nullPublisher) Send(ctx context.Context, data []byte) error { return nil }

type fixedScoreAnalyzer struct{}

func (fixedScoreAnalyzer) Analyze(res *frame.Resource) frame.MultiDimensionScore {
	return frame.MultiDimensionScore{SceneScore: 1.0}
}

// stubEngine is a no-op model.Inferer so NewStandardAnalyzer can be built
// and exercised without a real ML runtime.
type stubEngine struct{}

func (stubEngine) Infer(modelName string, inputs []model.Tensor) ([]model.Tensor, error) {
	return nil, nil
}

func TestNewRejectsInvalidConfiguration(t *testing.T) {
	_, err := New(nullSubscriber{}, nullPublisher{}, fixedScoreAnalyzer{},
		WithAnalysisThreadCount(0),
	)
	if err == nil {
		t.Fatal("expected an error for a zero analysis thread count")
	}
}

func TestNewBuildsStartableSession(t *testing.T) {
	session, err := New(nullSubscriber{}, nullPublisher{}, fixedScoreAnalyzer{},
		WithTopKMode(10),
		WithAnalysisThreadCount(2),
	)
	if err != nil {
		t.Fatalf("New returned an error: %v", err)
	}
	if session.State() != StateIdle {
		t.Fatalf("expected a fresh session to be idle, got %v", session.State())
	}

	if err := session.Start(); err != nil {
		t.Fatalf("Start returned an error: %v", err)
	}
	defer session.Stop()

	deadline := time.Now().Add(time.Second)
	for session.State() != StateRunning && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if session.State() != StateRunning {
		t.Fatalf("expected session to reach running, got %v", session.State())
	}

	if err := session.Stop(); err != nil {
		t.Fatalf("Stop returned an error: %v", err)
	}
	if session.State() != StateStopped {
		t.Fatalf("expected session to be stopped, got %v", session.State())
	}
}

func TestWithModelPathsAndStandardAnalyzer(t *testing.T) {
	session, err := New(nullSubscriber{}, nullPublisher{}, fixedScoreAnalyzer{},
		WithModelPaths("scene.onnx", "motion.onnx", "text_det.onnx", "text_rec.onnx"),
		WithTextDetectionEnabled(true),
	)
	if err != nil {
		t.Fatalf("New returned an error: %v", err)
	}

	analyzer := NewStandardAnalyzer(session.Config(), stubEngine{})
	if analyzer == nil {
		t.Fatal("NewStandardAnalyzer returned nil")
	}
}
