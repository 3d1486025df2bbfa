// Package display renders the end-of-run summary for humans.
package display

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

// Summary describes a finished (or aborted) conversion.
type Summary struct {
	Input       string
	InputBytes  int
	Output      string
	Contacts    int
	Written     int
	Skipped     int
	ParseErrors int
	Err         error // Non-nil when the run stopped early.
}

// Display renders a Summary.
type Display interface {
	Render(s Summary)
}

// Options configures display creation.
type Options struct {
	Writer     io.Writer // Output destination (default: os.Stdout).
	ForcePlain bool      // Force plain text even if TTY.
}

// New returns a styled display when the writer is a TTY, or a plain text
// display otherwise. ForcePlain overrides TTY detection.
func New(opts Options) Display {
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}
	if opts.ForcePlain || !isTTY(opts.Writer) {
		return &PlainDisplay{w: opts.Writer}
	}
	return &StyledDisplay{w: opts.Writer}
}

// isTTY reports whether w is connected to a terminal.
func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// PlainDisplay prints the summary as plain lines.
type PlainDisplay struct {
	w io.Writer
}

func (d *PlainDisplay) Render(s Summary) {
	for _, l := range lines(s) {
		_, _ = fmt.Fprintln(d.w, l.text)
	}
}

// StyledDisplay prints the summary in a bordered box.
type StyledDisplay struct {
	w io.Writer
}

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

func (d *StyledDisplay) Render(s Summary) {
	var b strings.Builder
	for i, l := range lines(s) {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch l.tone {
		case toneOK:
			b.WriteString(okStyle.Render(l.text))
		case toneWarn:
			b.WriteString(warnStyle.Render(l.text))
		case toneErr:
			b.WriteString(errStyle.Render(l.text))
		default:
			b.WriteString(l.text)
		}
	}
	_, _ = fmt.Fprintln(d.w, boxStyle.Render(b.String()))
}

type tone int

const (
	toneNone tone = iota
	toneOK
	toneWarn
	toneErr
)

type line struct {
	text string
	tone tone
}

// lines builds the summary content shared by both displays.
func lines(s Summary) []line {
	out := []line{
		{text: fmt.Sprintf("Converted %s (%s)", s.Input, humanize.Bytes(uint64(s.InputBytes)))},
	}
	rows := fmt.Sprintf("%s of %s contacts written to %s",
		humanize.Comma(int64(s.Written)), humanize.Comma(int64(s.Contacts)), s.Output)
	if s.Err == nil {
		out = append(out, line{text: rows, tone: toneOK})
	} else {
		out = append(out, line{text: rows})
	}
	if s.Skipped > 0 {
		out = append(out, line{text: fmt.Sprintf("%d skipped (missing email or name)", s.Skipped), tone: toneWarn})
	}
	if s.ParseErrors > 0 {
		out = append(out, line{text: fmt.Sprintf("%d malformed", s.ParseErrors), tone: toneWarn})
	}
	if s.Err != nil {
		out = append(out, line{text: fmt.Sprintf("stopped early: %v", s.Err), tone: toneErr})
	}
	return out
}
