package reporter

import (
	"fmt"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

// TerminalReporter outputs human-friendly, colored text to the terminal,
// grounded on the teacher's internal/reporter/terminal.go: the same
// fatih/color palette, the same schollz/progressbar/v3 bounded bar, the
// same "finish and clear before the next section" discipline — re-keyed
// from encode progress onto pipeline lifecycle events.
type TerminalReporter struct {
	mu         sync.Mutex
	progress   *progressbar.ProgressBar
	lastTotal  uint64
	maxPercent float32
	cyan       *color.Color
	green      *color.Color
	yellow     *color.Color
	red        *color.Color
	magenta    *color.Color
	bold       *color.Color
}

// NewTerminalReporter creates a new terminal reporter.
func NewTerminalReporter() *TerminalReporter {
	return &TerminalReporter{
		cyan:    color.New(color.FgCyan, color.Bold),
		green:   color.New(color.FgGreen),
		yellow:  color.New(color.FgYellow, color.Bold),
		red:     color.New(color.FgRed, color.Bold),
		magenta: color.New(color.FgMagenta),
		bold:    color.New(color.Bold),
	}
}

func (r *TerminalReporter) finishProgress() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress != nil {
		_ = r.progress.Finish()
		r.progress = nil
	}
	r.maxPercent = 0
	r.lastTotal = 0
}

func (r *TerminalReporter) StateChanged(transition StateTransition) {
	r.finishProgress()
	fmt.Println()
	_, _ = r.cyan.Println("STATE")
	fmt.Printf("  %s %s %s\n", r.bold.Sprint(transition.From), r.magenta.Sprint("->"), r.bold.Sprint(transition.To))
}

func (r *TerminalReporter) FrameProgress(progress FrameProgress) {
	if progress.Total == 0 {
		fmt.Printf("  %s analyzed %d frames\n", r.magenta.Sprint("›"), progress.AnalyzedCount)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.progress == nil || r.lastTotal != progress.Total {
		r.progress = progressbar.NewOptions64(
			int64(progress.Total),
			progressbar.OptionSetDescription(""),
			progressbar.OptionSetWidth(40),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionShowDescriptionAtLineEnd(),
			progressbar.OptionSetElapsedTime(false),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "Analyzing [",
				BarEnd:        "]",
			}),
		)
		r.lastTotal = progress.Total
		r.maxPercent = 0
	}

	percent := float32(progress.AnalyzedCount) / float32(progress.Total) * 100
	if percent >= r.maxPercent {
		r.maxPercent = percent
		_ = r.progress.Set64(int64(progress.AnalyzedCount))
	}

	r.progress.Describe(fmt.Sprintf("fps %.1f, eta %s", progress.FPS, progress.ETA.Round(1e9)))
}

func (r *TerminalReporter) KeyframeSelected(event KeyframeEvent) {
	marker := ""
	if event.IsSceneChange {
		marker = r.yellow.Sprint(" (scene change)")
	}
	fmt.Printf("  %s frame %d @ %.2fs score %.2f%s\n",
		r.green.Sprint("keyframe"), event.FrameIndex, event.Timestamp, event.Score, marker)
}

func (r *TerminalReporter) SessionComplete(summary SessionSummary) {
	r.finishProgress()

	fmt.Println()
	_, _ = r.cyan.Println("SESSION SUMMARY")
	fmt.Printf("  %s %d\n", r.bold.Sprint("Frames analyzed:"), summary.TotalFramesAnalyzed)
	fmt.Printf("  %s %d (%.2f%% compression)\n",
		r.bold.Sprint("Keyframes selected:"), summary.KeyframesSelected, summary.AchievedRatio*100)
	fmt.Printf("  %s %s\n", r.bold.Sprint("Duration:"), summary.Duration.Round(1e9))
}

func (r *TerminalReporter) Warning(message string) {
	fmt.Println()
	_, _ = r.yellow.Printf("WARN: %s\n", message)
}

func (r *TerminalReporter) Error(err ReporterError) {
	_, _ = fmt.Fprintln(os.Stderr)
	_, _ = r.red.Fprintf(os.Stderr, "ERROR %s\n", err.Title)
	_, _ = fmt.Fprintf(os.Stderr, "  %s\n", err.Message)
	if err.Context != "" {
		_, _ = fmt.Fprintf(os.Stderr, "  Context: %s\n", err.Context)
	}
	if err.Suggestion != "" {
		_, _ = fmt.Fprintf(os.Stderr, "  Suggestion: %s\n", err.Suggestion)
	}
}

func (r *TerminalReporter) Verbose(message string) {
	_, _ = color.New(color.Faint).Println(message)
}
