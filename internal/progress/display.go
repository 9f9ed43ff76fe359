package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Display periodically writes a one-line status of a Tracker. The stream of
// events has no known end, so there is no percentage or ETA.
type Display struct {
	tracker  *Tracker
	interval time.Duration
	out      io.Writer
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewDisplay creates a display writing to out every interval
func NewDisplay(tracker *Tracker, interval time.Duration, out io.Writer) *Display {
	return &Display{
		tracker:  tracker,
		interval: interval,
		out:      out,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start starts the display loop
func (d *Display) Start() {
	go d.displayLoop()
}

// Stop ends the loop and waits for the final summary to be written
func (d *Display) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
	<-d.doneCh
}

func (d *Display) displayLoop() {
	defer close(d.doneCh)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fmt.Fprintln(d.out, statusLine(d.tracker.GetStatus(), d.tracker.Elapsed()))
		case <-d.stopCh:
			fmt.Fprintln(d.out, summaryLine(d.tracker.GetStatus(), d.tracker.Elapsed()))
			return
		}
	}
}

func statusLine(s Status, elapsed time.Duration) string {
	return fmt.Sprintf("events: %d handled (%d resized, %d skipped, %d failed) | %s | now %s, avg %s | up %s",
		s.HandledEvents, s.ProcessedEvents, s.SkippedEvents, s.FailedEvents,
		FormatBytes(s.ProcessedBytes),
		FormatSpeed(s.CurrentSpeed), FormatSpeed(s.AverageSpeed),
		FormatDuration(elapsed),
	)
}

func summaryLine(s Status, elapsed time.Duration) string {
	return fmt.Sprintf("done: %d handled (%d resized, %d skipped, %d failed), %s in %s, avg %s",
		s.HandledEvents, s.ProcessedEvents, s.SkippedEvents, s.FailedEvents,
		FormatBytes(s.ProcessedBytes), FormatDuration(elapsed), FormatSpeed(s.AverageSpeed),
	)
}

// IsTerminalSupported reports whether stdout is a terminal
func IsTerminalSupported() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fileInfo.Mode()&os.ModeCharDevice != 0
}
