package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	spinFrames   = []rune("⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏")
	spinInterval = 100 * time.Millisecond
)

// WithSpinner runs fn while a spinner labelled message animates on w. The line is then
// replaced with a success or failure mark. When quiet is set nothing is drawn, which keeps
// redirected output free of control sequences.
func WithSpinner(w io.Writer, message string, noColor, quiet bool, fn func() error) error {
	if quiet {
		return fn()
	}

	stop := spin(w, message, noColor)
	err := fn()
	stop()

	if err != nil {
		red := color.New(color.FgRed, color.Bold)
		if noColor {
			red.DisableColor()
		}
		red.Fprintf(w, "✗ %s failed\n", message)
		return err
	}
	WriteSuccess(w, message, noColor)
	return nil
}

// spin animates message on w until the returned func is called; that func waits for the
// last frame and clears the line.
func spin(w io.Writer, message string, noColor bool) func() {
	cyan := color.New(color.FgCyan)
	if noColor {
		cyan.DisableColor()
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(spinInterval)
		defer ticker.Stop()
		for frame := 0; ; frame++ {
			select {
			case <-done:
				return
			case <-ticker.C:
				cyan.Fprintf(w, "\r%c %s", spinFrames[frame%len(spinFrames)], message)
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
		fmt.Fprint(w, "\r\033[K")
	}
}
