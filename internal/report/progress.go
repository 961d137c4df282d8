package report

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/roach88/shopcheck/internal/harness"
)

// Progress draws a progress bar while cases run. It implements
// harness.Observer.
type Progress struct {
	w io.Writer

	mu      sync.Mutex
	bar     *progressbar.ProgressBar
	passed  int
	failed  int
	errored int
}

// NewProgress creates a progress bar that draws on w, usually stderr.
func NewProgress(w io.Writer) *Progress {
	return &Progress{w: w}
}

func (p *Progress) RunStarted(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.passed, p.failed, p.errored = 0, 0, 0
	if total <= 0 {
		p.bar = nil
		return
	}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription(p.describe()),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        color.CyanString("█"),
			SaucerHead:    color.CyanString("█"),
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(p.w)
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func (p *Progress) CaseFinished(res harness.CaseResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch res.Verdict.Status {
	case harness.StatusPassed:
		p.passed++
	case harness.StatusFailed:
		p.failed++
	default:
		p.errored++
	}
	if p.bar == nil {
		return
	}
	p.bar.Describe(p.describe())
	_ = p.bar.Add(1)
}

func (p *Progress) RunFinished(harness.Totals) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
}

// Counts returns the verdicts seen so far.
func (p *Progress) Counts() (passed, failed, errored int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.passed, p.failed, p.errored
}

func (p *Progress) describe() string {
	return color.CyanString("Running cases: ") +
		color.GreenString("%d passed", p.passed) + " | " +
		color.RedString("%d failed", p.failed) + " | " +
		color.YellowString("%d errored", p.errored)
}

var _ harness.Observer = (*Progress)(nil)
