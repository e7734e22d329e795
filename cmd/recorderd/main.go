// Command recorderd is the recorder-side daemon. Screen/audio capture and
// MP4 encoding are named in §1 as an external frame source outside this
// module's scope, so recorderd here is deliberately thin: it exposes the
// same control protocol the analyzer does (§1's "both processes expose an
// identical control protocol") over its own listen address, tracking a
// minimal running/idle lifecycle, without a real capture pipeline behind
// it. A real deployment would swap recorderController's no-op body for a
// capture loop that feeds frames to transport.NewStdioPublisher (or a real
// pub/sub client) the same way analyzerd consumes them.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/five82/keyscope/internal/control"
	"github.com/five82/keyscope/internal/frame"
	"github.com/five82/keyscope/internal/logging"
	"github.com/five82/keyscope/internal/reporter"
)

const appName = "recorderd"

// recorderController is the minimal PipelineController a capture-less
// recorder can honestly report: Start/Stop flip a running flag under a
// mutex, State reflects it, and there are no frame counters or keyframes
// to report since no analysis happens on this side of the pipeline.
type recorderController struct {
	mu      sync.Mutex
	running bool
}

func (c *recorderController) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("recorderd: already running")
	}
	c.running = true
	return nil
}

func (c *recorderController) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return fmt.Errorf("recorderd: not running")
	}
	c.running = false
	return nil
}

func (c *recorderController) State() control.ServiceStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return control.StatusRunning
	}
	return control.StatusIdle
}

func (c *recorderController) Counters() frame.Counters       { return frame.Counters{} }
func (c *recorderController) LatestKeyframes() []frame.Score { return nil }
func (c *recorderController) LastError() error               { return nil }

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

type cliArgs struct {
	controlAddr string
	logDir      string
	verbose     bool
	noLog       bool
}

func parseArgs(args []string) (*cliArgs, error) {
	fs := pflag.NewFlagSet(appName, pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", appName)
		fs.PrintDefaults()
	}

	var a cliArgs
	fs.StringVarP(&a.controlAddr, "control-addr", "c", "127.0.0.1:7701", "control protocol listen address")
	fs.StringVarP(&a.logDir, "log-dir", "l", "", "log directory (defaults to ~/.local/state/keyscope/logs)")
	fs.BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose logging")
	fs.BoolVar(&a.noLog, "no-log", false, "disable log file creation")

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

	listener, err := net.Listen("tcp", a.controlAddr)
	if err != nil {
		return fmt.Errorf("binding control listener: %w", err)
	}

	controller := &recorderController{}
	dispatcher := control.NewDispatcher(controller, nil)
	server := control.NewServer(listener, dispatcher)
	server.Serve()
	defer server.Stop()

	if err := controller.Start(); err != nil {
		return fmt.Errorf("starting: %w", err)
	}
	rep.StateChanged(reporter.StateTransition{From: "idle", To: "running"})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
	case <-dispatcher.ShutdownRequested():
	}

	_ = controller.Stop()
	rep.StateChanged(reporter.StateTransition{From: "running", To: "stopped"})
	return nil
}
