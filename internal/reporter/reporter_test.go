package reporter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONReporterEmitsOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONReporterWithWriter(&buf)

	r.StateChanged(StateTransition{From: "idle", To: "running"})
	r.FrameProgress(FrameProgress{AnalyzedCount: 10, Total: 100})
	r.KeyframeSelected(KeyframeEvent{FrameIndex: 5, Score: 0.9})
	r.Warning("disk space low")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 NDJSON lines, got %d: %q", len(lines), buf.String())
	}

	var first map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line 1 is not valid JSON: %v", err)
	}
	if first["type"] != "state_changed" || first["from"] != "idle" || first["to"] != "running" {
		t.Errorf("unexpected state_changed payload: %v", first)
	}
}

// countingReporter records how many times each method fired, to verify
// CompositeReporter fans out to every member.
type countingReporter struct {
	stateChanged, frameProgress, keyframe, session, warning, errorCount, verbose int
}

func (c *countingReporter) StateChanged(StateTransition)   { c.stateChanged++ }
func (c *countingReporter) FrameProgress(FrameProgress)    { c.frameProgress++ }
func (c *countingReporter) KeyframeSelected(KeyframeEvent) { c.keyframe++ }
func (c *countingReporter) SessionComplete(SessionSummary) { c.session++ }
func (c *countingReporter) Warning(string)                 { c.warning++ }
func (c *countingReporter) Error(ReporterError)             { c.errorCount++ }
func (c *countingReporter) Verbose(string)                  { c.verbose++ }

func TestCompositeReporterFansOutToAllMembers(t *testing.T) {
	a, b := &countingReporter{}, &countingReporter{}
	composite := NewCompositeReporter(a, b)

	composite.StateChanged(StateTransition{})
	composite.FrameProgress(FrameProgress{})
	composite.KeyframeSelected(KeyframeEvent{})
	composite.SessionComplete(SessionSummary{})
	composite.Warning("w")
	composite.Error(ReporterError{})
	composite.Verbose("v")

	for name, c := range map[string]*countingReporter{"a": a, "b": b} {
		if c.stateChanged != 1 || c.frameProgress != 1 || c.keyframe != 1 ||
			c.session != 1 || c.warning != 1 || c.errorCount != 1 || c.verbose != 1 {
			t.Errorf("reporter %s did not receive every event exactly once: %+v", name, c)
		}
	}
}

func TestNullReporterDiscardsEverything(t *testing.T) {
	var r Reporter = NullReporter{}
	r.StateChanged(StateTransition{})
	r.FrameProgress(FrameProgress{})
	r.KeyframeSelected(KeyframeEvent{})
	r.SessionComplete(SessionSummary{})
	r.Warning("w")
	r.Error(ReporterError{})
	r.Verbose("v")
}
