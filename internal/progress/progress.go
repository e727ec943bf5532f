// Package progress draws a progress bar on interactive terminals.
package progress

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// Bar is a progress bar that is a no-op when stderr is not a terminal, so
// batch runs and CI logs only carry the structured log lines.
type Bar struct {
	bar *progressbar.ProgressBar
}

// New returns a bar for n steps labelled desc.
func New(n int, desc string) *Bar {
	if n <= 0 || !isatty.IsTerminal(os.Stderr.Fd()) {
		return &Bar{}
	}
	return &Bar{bar: progressbar.NewOptions(n,
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)}
}

// Enabled reports whether the bar is drawn.
func (b *Bar) Enabled() bool { return b.bar != nil }

// Add advances the bar by one step.
func (b *Bar) Add() {
	if b.bar != nil {
		_ = b.bar.Add(1)
	}
}

// Finish completes and clears the bar.
func (b *Bar) Finish() {
	if b.bar != nil {
		_ = b.bar.Finish()
	}
}
