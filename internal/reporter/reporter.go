package reporter

// Reporter defines the interface for pipeline status reporting.
type Reporter interface {
	StateChanged(transition StateTransition)
	FrameProgress(progress FrameProgress)
	KeyframeSelected(event KeyframeEvent)
	SessionComplete(summary SessionSummary)
	Warning(message string)
	Error(err ReporterError)
	Verbose(message string)
}

// NullReporter is a no-op reporter that discards all updates.
type NullReporter struct{}

func (NullReporter) StateChanged(StateTransition)     {}
func (NullReporter) FrameProgress(FrameProgress)      {}
func (NullReporter) KeyframeSelected(KeyframeEvent)   {}
func (NullReporter) SessionComplete(SessionSummary)   {}
func (NullReporter) Warning(string)                   {}
func (NullReporter) Error(ReporterError)              {}
func (NullReporter) Verbose(string)                   {}
