package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
	progressWidth = 20
)

// Progress tracks a fixed number of work items and renders a one-line bar.
// It is safe for concurrent use.
type Progress struct {
	mu        sync.Mutex
	label     string
	total     int
	done      int
	failed    int
	startTime time.Time
}

// NewProgress creates a tracker for total items
func NewProgress(label string, total int) *Progress {
	return &Progress{label: label, total: total, startTime: time.Now()}
}

// Add records one finished item and redraws the line
func (p *Progress) Add(failed bool) {
	p.mu.Lock()
	p.done++
	if failed {
		p.failed++
	}
	line := p.line()
	p.mu.Unlock()

	emit(false, "\r%s", line)
}

// Finish ends the progress line
func (p *Progress) Finish() {
	emit(false, "\n")
}

// Counts returns finished and failed item counts
func (p *Progress) Counts() (done, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done, p.failed
}

// Bar returns the bar for the current state
func (p *Progress) Bar() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bar()
}

// Rate returns finished items per second
func (p *Progress) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	elapsed := time.Since(p.startTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(p.done) / elapsed
}

func (p *Progress) bar() string {
	filled := progressWidth
	if p.total > 0 {
		filled = p.done * progressWidth / p.total
	}
	if filled > progressWidth {
		filled = progressWidth
	}
	return fmt.Sprintf("[%s] %d/%d",
		strings.Repeat(ProgressBar, filled)+strings.Repeat(ProgressEmpty, progressWidth-filled),
		p.done, p.total)
}

func (p *Progress) line() string {
	s := fmt.Sprintf("%s %s", Green(p.label), p.bar())
	if p.failed > 0 {
		s += " " + Red(fmt.Sprintf("(%d failed)", p.failed))
	}
	return s
}
