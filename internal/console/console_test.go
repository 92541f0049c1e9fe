package console

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/thiagozs/go-gptchat/internal/attach"
)

func newPrinter(t *testing.T, markdown bool) (*Printer, *bytes.Buffer) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
	var buf bytes.Buffer
	return New(&buf, markdown), &buf
}

func TestStreamedReply(t *testing.T) {
	p, buf := newPrinter(t, false)
	p.AssistantHeader("gpt-4o-t0.7")
	p.Delta("Hel")
	p.Delta("lo")
	p.EndStream()
	assert.Equal(t, "gpt-4o-t0.7 assistant:\nHello\n\n", buf.String())
}

func TestPlainReply(t *testing.T) {
	p, buf := newPrinter(t, false)
	p.Reply("# Title\n\nbody\n\n\n")
	assert.Equal(t, "# Title\n\nbody\n\n", buf.String())
}

func TestMarkdownReply(t *testing.T) {
	p, buf := newPrinter(t, true)
	p.Reply("# Title\n\nsome **bold** text")
	out := buf.String()
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "bold")
}

func TestNotices(t *testing.T) {
	p, buf := newPrinter(t, false)
	p.Attached(attach.Block{Kind: attach.KindImage, Ref: "cat.png"})
	p.Attached(attach.Block{Kind: attach.KindText, Ref: "sheet.xlsx", Spreadsheet: true})
	p.Saved("history/gpt-4o_20240101_120000.md")
	p.Error("Request failed: %v", "boom")
	p.Warn("careful")

	assert.Equal(t, "Image loaded and encoded: 'cat.png'\n"+
		"Converted XLSX to JSON successfully: 'sheet.xlsx'\n"+
		"Conversation history saved to history/gpt-4o_20240101_120000.md\n"+
		"Request failed: boom\n"+
		"careful\n", buf.String())
}
