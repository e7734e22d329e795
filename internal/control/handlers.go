package control

import (
	"encoding/json"

	keyerrors "github.com/five82/keyscope/internal/errors"
	"github.com/five82/keyscope/internal/frame"
)

// PipelineController is the narrow surface of internal/pipeline.Service the
// control protocol drives: lifecycle control plus the read-only snapshots
// GET_STATUS/GET_STATS report.
type PipelineController interface {
	Start() error
	Stop() error
	State() ServiceStatus
	Counters() frame.Counters
	LatestKeyframes() []frame.Score
	LastError() error
}

// ConfigSetFunc validates and applies a CONFIG_SET payload, returning a
// *keyerrors.CoreError (KindInvalidParams/KindConfig) on failure.
type ConfigSetFunc func(raw json.RawMessage) error

// Dispatcher turns decoded Requests into Responses by driving a
// PipelineController, mirroring CommandProtocol.cpp's command-to-handler
// switch but as a table of Go methods rather than a single switch
// statement spread across the service class.
type Dispatcher struct {
	controller PipelineController
	configSet  ConfigSetFunc
	shutdownCh chan struct{}
}

// NewDispatcher builds a Dispatcher. configSet may be nil, in which case
// CONFIG_SET always reports invalid-params.
func NewDispatcher(controller PipelineController, configSet ConfigSetFunc) *Dispatcher {
	return &Dispatcher{
		controller: controller,
		configSet:  configSet,
		shutdownCh: make(chan struct{}),
	}
}

// ShutdownRequested closes when a SHUTDOWN command has been handled; the
// hosting daemon's main loop selects on it to exit the process (§6).
func (d *Dispatcher) ShutdownRequested() <-chan struct{} {
	return d.shutdownCh
}

// Handle dispatches req to the matching command handler.
func (d *Dispatcher) Handle(req Request) Response {
	switch stringToCommandType(req.Command) {
	case CommandPing:
		return d.handlePing()
	case CommandGetStatus:
		return d.handleGetStatus()
	case CommandGetStats:
		return d.handleGetStats()
	case CommandStart:
		return d.handleStart()
	case CommandStop:
		return d.handleStop()
	case CommandShutdown:
		return d.handleShutdown()
	case CommandConfigSet:
		return d.handleConfigSet(req.Parameters)
	default:
		return errorResponse(CodeErrorInvalidCommand, "unrecognized command "+quote(req.Command))
	}
}

func (d *Dispatcher) handlePing() Response {
	return successResponse("pong", nil)
}

type statusPayload struct {
	Status int `json:"status"`
}

func (d *Dispatcher) handleGetStatus() Response {
	status := d.controller.State()
	if d.controller.LastError() != nil {
		status = StatusError
	}
	data, _ := json.Marshal(statusPayload{Status: int(status)})
	return successResponse("", data)
}

type keyframeEntry struct {
	FrameIndex uint64  `json:"frame_index"`
	Score      float32 `json:"score"`
	Timestamp  float64 `json:"timestamp"`
}

type statsPayload struct {
	AnalyzedFrameCount uint64          `json:"analyzed_frame_count"`
	KeyframeCount      int             `json:"keyframe_count"`
	LatestKeyframes    []keyframeEntry `json:"latest_keyframes"`
	ResidentSetBytes   int64           `json:"rss_bytes"`
}

func (d *Dispatcher) handleGetStats() Response {
	counters := d.controller.Counters()
	latest := d.controller.LatestKeyframes()

	entries := make([]keyframeEntry, len(latest))
	for i, sc := range latest {
		entries[i] = keyframeEntry{FrameIndex: sc.FrameIndex, Score: sc.FinalScore, Timestamp: sc.Timestamp}
	}

	payload := statsPayload{
		AnalyzedFrameCount: counters.TotalFramesAnalyzed,
		KeyframeCount:      len(latest),
		LatestKeyframes:    entries,
		ResidentSetBytes:   residentSetSizeBytes(),
	}
	data, _ := json.Marshal(payload)
	return successResponse("", data)
}

func (d *Dispatcher) handleStart() Response {
	if err := d.controller.Start(); err != nil {
		return responseFromError(err)
	}
	return successResponse("started", nil)
}

func (d *Dispatcher) handleStop() Response {
	if err := d.controller.Stop(); err != nil {
		return responseFromError(err)
	}
	return successResponse("stopped", nil)
}

func (d *Dispatcher) handleShutdown() Response {
	_ = d.controller.Stop()
	select {
	case <-d.shutdownCh:
	default:
		close(d.shutdownCh)
	}
	return successResponse("shutting down", nil)
}

func (d *Dispatcher) handleConfigSet(params json.RawMessage) Response {
	if d.configSet == nil {
		return errorResponse(CodeErrorInvalidParams, "config updates are not supported by this process")
	}
	if err := d.configSet(params); err != nil {
		return responseFromError(err)
	}
	return successResponse("config applied", nil)
}

// responseFromError maps a keyerrors.CoreError onto its protocol response
// code (§6); anything else is an internal error.
func responseFromError(err error) Response {
	if ce, ok := err.(*keyerrors.CoreError); ok {
		code := ce.Kind.ResponseCode()
		if code < 0 {
			code = int(CodeErrorInternal)
		}
		return errorResponse(ResponseCode(code), ce.Error())
	}
	return errorResponse(CodeErrorInternal, err.Error())
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
