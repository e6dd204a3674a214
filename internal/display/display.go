// Package display renders pipeline progress to the terminal: per-stage
// headers, item lines with quality scores, a spinner while a model call is
// in flight, and the closing summary box.
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Spinner frames using braille characters
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Flusher is an optional interface for writers that support flushing.
type Flusher interface {
	Sync() error
}

// Display handles terminal output with a spinner and formatted status.
type Display struct {
	out      io.Writer
	mu       sync.Mutex
	spinMu   sync.Mutex // separate mutex for spinner to avoid deadlock
	spinning bool
	spinStop chan struct{}
	spinDone chan struct{}
	spinMsg  string

	runStart  time.Time
	callStart time.Time

	// Run totals
	counts map[string]int
}

// New creates a display writing to out.
func New(out io.Writer) *Display {
	return &Display{
		out:      out,
		runStart: time.Now(),
		counts:   make(map[string]int),
	}
}

func (d *Display) flush() {
	if f, ok := d.out.(Flusher); ok {
		f.Sync()
	}
}

// StartSpinner begins the loading spinner with a message.
func (d *Display) StartSpinner(msg string) {
	d.spinMu.Lock()
	if d.spinning {
		d.spinMu.Unlock()
		return
	}
	d.spinning = true
	d.spinMsg = msg
	d.spinStop = make(chan struct{})
	d.spinDone = make(chan struct{})
	d.callStart = time.Now()
	d.spinMu.Unlock()

	go func() {
		defer close(d.spinDone)
		frame := 0
		first := true
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-d.spinStop:
				// Move up, clear line, stay there for next output
				fmt.Fprintf(d.out, "\033[1A\r\033[K")
				d.flush()
				return
			case <-ticker.C:
				elapsed := formatElapsed(time.Since(d.callStart))
				if first {
					fmt.Fprintf(d.out, "   %s %s (%s)\n", spinnerFrames[frame], d.spinMsg, elapsed)
					first = false
				} else {
					fmt.Fprintf(d.out, "\033[1A\r\033[K   %s %s (%s)\n", spinnerFrames[frame], d.spinMsg, elapsed)
				}
				d.flush()
				frame = (frame + 1) % len(spinnerFrames)
			}
		}
	}()
}

// StopSpinner stops the loading spinner.
func (d *Display) StopSpinner() {
	d.spinMu.Lock()
	if !d.spinning {
		d.spinMu.Unlock()
		return
	}
	d.spinning = false
	close(d.spinStop)
	d.spinMu.Unlock()
	<-d.spinDone
}

// ShowRunHeader displays the opening banner for a pipeline run.
func (d *Display) ShowRunHeader(project, provider, model string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.runStart = time.Now()

	header := StyleTitle.Render("backlogsmith") + "\n" +
		fmt.Sprintf("Project:  %s\n", project) +
		fmt.Sprintf("Provider: %s (%s)", provider, model)
	fmt.Fprintln(d.out, HeaderBox().Render(header))
}

// ShowStage displays a stage banner, e.g. "epics for: Checkout".
func (d *Display) ShowStage(stage, context string) {
	d.StopSpinner()
	d.mu.Lock()
	defer d.mu.Unlock()
	line := StyleAccent.Render("▶ " + stage)
	if context != "" {
		line += StyleMuted.Render(" · " + truncate(context, 50))
	}
	fmt.Fprintln(d.out, line)
}

// ShowItem displays one accepted work item with its quality score.
// A negative score means the stage has no scored gate.
func (d *Display) ShowItem(kind, title string, score int) {
	d.StopSpinner()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.counts[kind]++
	if score >= 0 {
		fmt.Fprintf(d.out, "   %s %s %s\n",
			StyleSuccess.Render("+"), truncate(title, 60),
			ScoreStyle(score).Render(fmt.Sprintf("[%d]", score)))
	} else {
		fmt.Fprintf(d.out, "   %s %s\n", StyleSuccess.Render("+"), truncate(title, 60))
	}
}

// ShowRetry displays a quality-gate improvement round.
func (d *Display) ShowRetry(kind string, attempt, max, score int) {
	d.StopSpinner()
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, "   %s %s scored %d, improving (%d/%d)\n",
		StyleWarning.Render("~"), kind, score, attempt, max)
}

// ShowSkip displays a dropped or rejected item.
func (d *Display) ShowSkip(kind, reason string) {
	d.StopSpinner()
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, "   %s %s dropped: %s\n",
		StyleMuted.Render("-"), kind, truncate(reason, 60))
}

// ShowWarning displays a non-fatal problem, e.g. an empty stage.
func (d *Display) ShowWarning(msg string) {
	d.StopSpinner()
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, "   %s %s\n", StyleWarning.Render("!"), msg)
}

// ShowSummary displays the closing box with per-kind totals.
func (d *Display) ShowSummary(outPath string) {
	d.StopSpinner()
	d.mu.Lock()
	defer d.mu.Unlock()

	elapsed := time.Since(d.runStart).Round(time.Second)
	var b strings.Builder
	b.WriteString(StyleSuccess.Render("Backlog generated") + "\n")
	for _, kind := range []string{"epic", "feature", "story", "task", "testcase"} {
		if n := d.counts[kind]; n > 0 {
			fmt.Fprintf(&b, "%-10s %d\n", kind+"s:", n)
		}
	}
	fmt.Fprintf(&b, "%-10s %s\n", "time:", elapsed)
	fmt.Fprintf(&b, "%-10s %s", "output:", outPath)
	fmt.Fprintln(d.out, SuccessBox().Render(b.String()))
}

// ShowError displays a fatal error box.
func (d *Display) ShowError(msg string) {
	d.StopSpinner()
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintln(d.out, ErrorBox().Render(StyleError.Render("Error")+"\n"+msg))
}

// formatElapsed formats duration with fixed width (always 6 chars like " 1.04s")
func formatElapsed(d time.Duration) string {
	secs := d.Seconds()
	if secs < 10 {
		return fmt.Sprintf("%5.2fs", secs)
	} else if secs < 100 {
		return fmt.Sprintf("%5.1fs", secs)
	}
	return fmt.Sprintf("%5.0fs", secs)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
