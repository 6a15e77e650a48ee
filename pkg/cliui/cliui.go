// Package cliui provides terminal output helpers (styles, step indicators,
// tables) for voxtap CLI commands. Styling is applied only when the output is
// a terminal.
package cliui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"charm.land/lipgloss/v2"
	"golang.org/x/term"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	keyStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// IsTerminal reports whether w is attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Printer renders styled text to a writer, falling back to plain text when
// the writer is not a terminal.
type Printer struct {
	w      io.Writer
	styled bool
}

// NewPrinter creates a Printer for w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, styled: IsTerminal(w)}
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer {
	return p.w
}

func (p *Printer) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func (p *Printer) Key(s string) string   { return p.render(keyStyle, s) }
func (p *Printer) Value(s string) string { return p.render(valueStyle, s) }
func (p *Printer) Dim(s string) string   { return p.render(dimStyle, s) }

// Mark returns a check mark for a nil error and a cross otherwise.
func (p *Printer) Mark(err error) string {
	if err != nil {
		return p.render(failStyle, "✗")
	}
	return p.render(successStyle, "✓")
}

// Printf writes a formatted line.
func (p *Printer) Printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

// Step runs fn, then prints a check or cross mark with the elapsed time. On a
// terminal an animated spinner is shown while fn runs.
func (p *Printer) Step(msg string, fn func() error) error {
	done := make(chan struct{})
	var mu sync.Mutex
	var wg sync.WaitGroup

	if p.styled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			frame := 0
			ticker := time.NewTicker(80 * time.Millisecond)
			defer ticker.Stop()

			for {
				mu.Lock()
				fmt.Fprintf(p.w, "\r  %s %s", spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]), msg)
				mu.Unlock()

				select {
				case <-done:
					return
				case <-ticker.C:
					frame++
				}
			}
		}()
	}

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(done)
	wg.Wait()

	mu.Lock()
	fmt.Fprintf(p.w, "\r  %s %s %s\n", p.Mark(err), msg, p.render(stepStyle, fmt.Sprintf("(%s)", FormatDuration(elapsed))))
	mu.Unlock()

	return err
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// Mask hides all but the last four characters of a secret.
func Mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
