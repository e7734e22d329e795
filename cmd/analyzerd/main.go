// Command analyzerd is the analyzer-side daemon: it subscribes to a frame
// stream, runs the keyframe analysis pipeline, publishes selected-keyframe
// metadata, and exposes the control protocol so a supervisor can query
// status or request shutdown.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/five82/keyscope"
	"github.com/five82/keyscope/internal/config"
	"github.com/five82/keyscope/internal/control"
	"github.com/five82/keyscope/internal/frame"
	"github.com/five82/keyscope/internal/logging"
	"github.com/five82/keyscope/internal/model"
	"github.com/five82/keyscope/internal/reporter"
	"github.com/five82/keyscope/internal/transport"
)

// sessionController adapts a *keyscope.Session to control.PipelineController,
// translating the session's Idle/Running/Stopped lifecycle onto the control
// protocol's five-state enum the same way control.ServiceAdapter does for
// the underlying pipeline.Service (kept separate here since keyscope.Session
// intentionally does not re-export the internal pipeline type).
type sessionController struct {
	session *keyscope.Session
}

func (c sessionController) Start() error { return c.session.Start() }
func (c sessionController) Stop() error  { return c.session.Stop() }

func (c sessionController) State() control.ServiceStatus {
	if c.session.State() == keyscope.StateRunning {
		return control.StatusRunning
	}
	return control.StatusIdle
}

func (c sessionController) Counters() frame.Counters       { return c.session.Counters() }
func (c sessionController) LatestKeyframes() []frame.Score { return c.session.LatestKeyframes() }
func (c sessionController) LastError() error               { return c.session.LastError() }

const appName = "analyzerd"

// placeholderEngine stands in for the real ML inference backend named in
// §1 as an opaque dependency; wiring a concrete engine (ONNX Runtime,
// TensorRT, etc.) is outside this module's scope.
type placeholderEngine struct{}

func (placeholderEngine) Infer(modelName string, inputs []model.Tensor) ([]model.Tensor, error) {
	return nil, fmt.Errorf("analyzerd: no inference backend configured for model %q", modelName)
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

type cliArgs struct {
	controlAddr    string
	logDir         string
	verbose        bool
	noLog          bool
	threads        int
	frameBuf       int
	scoreBuf       int
	selectedBuf    int
	sceneModel     string
	motionModel    string
	textDetModel   string
	textRecModel   string
	enableTextRec  bool
	topK           int
	minScore       float32
	useThreshold   bool
}

func parseArgs(args []string) (*cliArgs, error) {
	fs := pflag.NewFlagSet(appName, pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", appName)
		fs.PrintDefaults()
	}

	var a cliArgs
	fs.StringVarP(&a.controlAddr, "control-addr", "c", "127.0.0.1:7700", "control protocol listen address")
	fs.StringVarP(&a.logDir, "log-dir", "l", "", "log directory (defaults to ~/.local/state/keyscope/logs)")
	fs.BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose logging")
	fs.BoolVar(&a.noLog, "no-log", false, "disable log file creation")
	fs.IntVarP(&a.threads, "threads", "t", config.DefaultAnalysisThreadCount, "parallel analysis worker count")
	fs.IntVar(&a.frameBuf, "frame-buffer", config.DefaultFrameBufferSize, "frame queue capacity")
	fs.IntVar(&a.scoreBuf, "score-buffer", config.DefaultScoreBufferSize, "score queue capacity")
	fs.IntVar(&a.selectedBuf, "selected-buffer", config.DefaultSelectedBufferSize, "selected-keyframe queue capacity")
	fs.StringVar(&a.sceneModel, "scene-model", "", "scene detector model path")
	fs.StringVar(&a.motionModel, "motion-model", "", "motion detector model path")
	fs.StringVar(&a.textDetModel, "text-det-model", "", "text detector model path")
	fs.StringVar(&a.textRecModel, "text-rec-model", "", "text recognizer model path")
	fs.BoolVar(&a.enableTextRec, "enable-text-recognition", false, "enable the text detector (when off, text contributes a zero score; no text recognition is run)")
	fs.IntVar(&a.topK, "top-k", 0, "select a fixed count of keyframes instead of threshold mode (0 disables)")
	fs.Float32Var(&a.minScore, "min-score", 0, "minimum final score to select a keyframe in threshold mode")
	fs.BoolVar(&a.useThreshold, "threshold-mode", true, "use threshold-gated selection instead of top-K")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return &a, nil
}

func run(args []string) error {
	a, err := parseArgs(args)
	if err != nil {
		return err
	}

	logDir := a.logDir
	if logDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolving default log directory: %w", err)
		}
		logDir = home + "/.local/state/keyscope/logs"
	}

	logger, err := logging.Setup(logDir, appName, a.verbose, a.noLog)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	if logger != nil {
		defer func() { _ = logger.Close() }()
		logger.Info("starting with control address %s", a.controlAddr)
	}

	rep := reporter.NewForOutput(os.Stdout)

	opts := []keyscope.Option{
		keyscope.WithLogDir(logDir),
		keyscope.WithVerbose(a.verbose),
		keyscope.WithAnalysisThreadCount(a.threads),
		keyscope.WithBufferSizes(a.frameBuf, a.scoreBuf, a.selectedBuf),
		keyscope.WithModelPaths(a.sceneModel, a.motionModel, a.textDetModel, a.textRecModel),
		keyscope.WithTextDetectionEnabled(a.enableTextRec),
	}
	if a.topK > 0 {
		opts = append(opts, keyscope.WithTopKMode(a.topK))
	} else if a.useThreshold {
		opts = append(opts, keyscope.WithThresholdMode(a.minScore))
	}

	cfg, err := keyscope.BuildConfig(opts...)
	if err != nil {
		return fmt.Errorf("building configuration: %w", err)
	}
	analyzer := keyscope.NewStandardAnalyzer(cfg, placeholderEngine{})

	subscriber := transport.NewStdioSubscriber(os.Stdin)
	publisher := transport.NewStdioPublisher(os.Stdout)

	session, err := keyscope.New(subscriber, publisher, analyzer, opts...)
	if err != nil {
		return fmt.Errorf("building session: %w", err)
	}

	rep.StateChanged(reporter.StateTransition{From: "idle", To: "initializing"})

	listener, err := net.Listen("tcp", a.controlAddr)
	if err != nil {
		return fmt.Errorf("binding control listener: %w", err)
	}

	dispatcher := control.NewDispatcher(sessionController{session: session}, nil)
	server := control.NewServer(listener, dispatcher)
	server.Serve()
	defer server.Stop()

	if err := session.Start(); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	rep.StateChanged(reporter.StateTransition{From: "initializing", To: "running"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
	case <-dispatcher.ShutdownRequested():
	case <-ctx.Done():
	}

	if err := session.Stop(); err != nil {
		return fmt.Errorf("stopping session: %w", err)
	}
	rep.StateChanged(reporter.StateTransition{From: "running", To: "stopped"})

	counters := session.Counters()
	rep.SessionComplete(reporter.SessionSummary{
		TotalFramesAnalyzed: counters.TotalFramesAnalyzed,
		KeyframesSelected:   len(session.LatestKeyframes()),
	})
	return nil
}
