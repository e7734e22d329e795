package control

import (
	"github.com/five82/keyscope/internal/frame"
	"github.com/five82/keyscope/internal/pipeline"
)

// ServiceAdapter wraps a *pipeline.Service as a PipelineController,
// translating its three-state lifecycle (Idle/Running/Stopped) onto the
// control protocol's five-state GET_STATUS enum. INITIALIZING and STOPPING
// are never reported: Service.Start sets Running under the service's mutex
// before returning, and Service.Stop sets Stopped before it drains the
// stages, so GET_STATUS reports IDLE while a stop is still draining.
type ServiceAdapter struct {
	Service *pipeline.Service
}

func (a ServiceAdapter) Start() error { return a.Service.Start() }
func (a ServiceAdapter) Stop() error  { return a.Service.Stop() }

func (a ServiceAdapter) State() ServiceStatus {
	switch a.Service.State() {
	case pipeline.StateRunning:
		return StatusRunning
	default:
		return StatusIdle
	}
}

func (a ServiceAdapter) Counters() frame.Counters       { return a.Service.Counters() }
func (a ServiceAdapter) LatestKeyframes() []frame.Score { return a.Service.LatestKeyframes() }
func (a ServiceAdapter) LastError() error               { return a.Service.LastError() }
