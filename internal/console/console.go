// Package console prints what the user sees: role headers, streamed text,
// progress notices and errors.
package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"

	"github.com/thiagozs/go-gptchat/internal/attach"
)

var (
	headerColor = color.New(color.FgGreen, color.Bold)
	savedColor  = color.New(color.FgBlue, color.Bold)
	errorColor  = color.New(color.FgRed, color.Bold)
	warnColor   = color.New(color.FgYellow)
	textColor   = color.New(color.FgBlue, color.Bold)
	imageColor  = color.New(color.FgMagenta, color.Bold)
	fileColor   = color.New(color.FgHiRed, color.Bold)
	sheetColor  = color.New(color.FgGreen, color.Bold)
)

const defaultWidth = 100

// Printer writes to out. Colors follow fatih/color's global NoColor switch,
// which is already off when out is not a terminal.
type Printer struct {
	out      io.Writer
	renderer *glamour.TermRenderer
}

// New returns a Printer. With markdown set, complete (non-streamed) replies
// are rendered through glamour.
func New(out io.Writer, markdown bool) *Printer {
	p := &Printer{out: out}
	if markdown {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(defaultWidth),
		)
		if err == nil {
			p.renderer = r
		}
	}
	return p
}

func (p *Printer) AssistantHeader(label string) {
	headerColor.Fprintf(p.out, "%s assistant:\n", label)
}

// Delta writes a streamed chunk as-is.
func (p *Printer) Delta(s string) { fmt.Fprint(p.out, s) }

// EndStream closes a streamed reply.
func (p *Printer) EndStream() { fmt.Fprint(p.out, "\n\n") }

// Reply prints a complete reply, rendered as Markdown when enabled.
func (p *Printer) Reply(text string) {
	if p.renderer != nil {
		if out, err := p.renderer.Render(text); err == nil {
			fmt.Fprint(p.out, out)
			return
		}
	}
	fmt.Fprint(p.out, strings.TrimRight(text, "\n")+"\n\n")
}

// Attached announces an encoded attachment.
func (p *Printer) Attached(b attach.Block) {
	c := textColor
	switch {
	case b.Spreadsheet:
		c = sheetColor
	case b.Kind == attach.KindImage:
		c = imageColor
	case b.Kind == attach.KindFile:
		c = fileColor
	}
	c.Fprintln(p.out, b.Notice())
}

func (p *Printer) Saved(path string) {
	savedColor.Fprintf(p.out, "Conversation history saved to %s\n", path)
}

func (p *Printer) Warn(msg string) { warnColor.Fprintln(p.out, msg) }

func (p *Printer) Error(format string, args ...any) {
	errorColor.Fprintf(p.out, format+"\n", args...)
}
