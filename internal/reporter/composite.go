package reporter

// CompositeReporter fans out events to multiple reporters.
type CompositeReporter struct {
	reporters []Reporter
}

// NewCompositeReporter creates a composite reporter.
func NewCompositeReporter(reporters ...Reporter) *CompositeReporter {
	return &CompositeReporter{reporters: reporters}
}

func (c *CompositeReporter) StateChanged(transition StateTransition) {
	for _, r := range c.reporters {
		r.StateChanged(transition)
	}
}

func (c *CompositeReporter) FrameProgress(progress FrameProgress) {
	for _, r := range c.reporters {
		r.FrameProgress(progress)
	}
}

func (c *CompositeReporter) KeyframeSelected(event KeyframeEvent) {
	for _, r := range c.reporters {
		r.KeyframeSelected(event)
	}
}

func (c *CompositeReporter) SessionComplete(summary SessionSummary) {
	for _, r := range c.reporters {
		r.SessionComplete(summary)
	}
}

func (c *CompositeReporter) Warning(message string) {
	for _, r := range c.reporters {
		r.Warning(message)
	}
}

func (c *CompositeReporter) Error(err ReporterError) {
	for _, r := range c.reporters {
		r.Error(err)
	}
}

func (c *CompositeReporter) Verbose(message string) {
	for _, r := range c.reporters {
		r.Verbose(message)
	}
}
