package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// ProgressBar renders step progress on a single terminal line.
type ProgressBar struct {
	total     int
	current   int
	width     int
	prefix    string
	label     string
	mu        sync.Mutex
	writer    io.Writer
	startTime time.Time
	colorize  bool
}

// NewProgressBar creates a new progress bar.
func NewProgressBar(w io.Writer, total int, prefix string) *ProgressBar {
	if total <= 0 {
		total = 1
	}
	return &ProgressBar{
		total:     total,
		width:     30,
		prefix:    prefix,
		writer:    w,
		startTime: time.Now(),
		colorize:  isTerminal(w),
	}
}

// SetWidth sets the width of the bar.
func (pb *ProgressBar) SetWidth(width int) *ProgressBar {
	pb.width = width
	return pb
}

// Step advances by one and shows label next to the bar.
func (pb *ProgressBar) Step(label string) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	pb.label = label
	if pb.current < pb.total {
		pb.current++
	}
	pb.render()
}

// Finish fills the bar and ends the line.
func (pb *ProgressBar) Finish() {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	pb.current = pb.total
	pb.render()
	fmt.Fprintln(pb.writer)
}

// Current returns the number of completed steps.
func (pb *ProgressBar) Current() int {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return pb.current
}

func (pb *ProgressBar) render() {
	percent := float64(pb.current) / float64(pb.total)
	filled := int(float64(pb.width) * percent)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", pb.width-filled)

	if pb.colorize {
		switch {
		case percent < 0.5:
			bar = color.YellowString(bar)
		case percent < 1.0:
			bar = color.CyanString(bar)
		default:
			bar = color.GreenString(bar)
		}
	}

	out := fmt.Sprintf("\r%s [%s] %3.0f%%", pb.prefix, bar, percent*100)
	if pb.label != "" {
		out += " " + pb.label
	}
	out += " (" + formatDuration(time.Since(pb.startTime)) + ")"
	fmt.Fprint(pb.writer, out)
}

// Spinner shows activity while a long operation runs.
type Spinner struct {
	frames  []string
	current int
	prefix  string
	mu      sync.Mutex
	writer  io.Writer
	active  bool
	done    chan struct{}
	printer *Printer
}

// NewSpinner creates a new spinner bound to a printer.
func NewSpinner(p *Printer, prefix string) *Spinner {
	return &Spinner{
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		prefix:  prefix,
		writer:  p.Writer(),
		printer: p,
	}
}

// Start starts the spinner. Non-terminal writers get no animation.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active || !isTerminal(s.writer) {
		return
	}
	s.active = true
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s.mu.Lock()
				fmt.Fprintf(s.writer, "\r%s %s", color.CyanString(s.frames[s.current]), s.prefix)
				s.current = (s.current + 1) % len(s.frames)
				s.mu.Unlock()
			}
		}
	}(s.done)
}

// Stop stops the spinner and clears its line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.active = false
	close(s.done)
	fmt.Fprint(s.writer, "\r"+strings.Repeat(" ", len(s.prefix)+4)+"\r")
}

// Success stops the spinner and prints a success line.
func (s *Spinner) Success(format string, args ...interface{}) {
	s.Stop()
	s.printer.Success(format, args...)
}

// Error stops the spinner and prints a failure line.
func (s *Spinner) Error(format string, args ...interface{}) {
	s.Stop()
	s.printer.Error(format, args...)
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "< 1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
