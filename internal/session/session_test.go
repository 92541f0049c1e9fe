package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thiagozs/go-gptchat/internal/chat"
	"github.com/thiagozs/go-gptchat/internal/config"
	"github.com/thiagozs/go-gptchat/internal/console"
	"github.com/thiagozs/go-gptchat/internal/params"
)

type call struct {
	cfg     params.Configuration
	turns   []chat.Turn
	pending []chat.Turn
}

type scripted struct {
	text string
	id   string
	err  error
}

type fakeBackend struct {
	replies []scripted
	calls   []call
}

func (f *fakeBackend) Send(_ context.Context, cfg params.Configuration, log *chat.Log, onDelta func(string)) (chat.Reply, error) {
	f.calls = append(f.calls, call{cfg: cfg, turns: log.Turns(), pending: log.Pending()})
	r := f.replies[len(f.calls)-1]
	if r.err != nil {
		return chat.Reply{}, r.err
	}
	if onDelta != nil {
		for _, w := range []rune(r.text) {
			onDelta(string(w))
		}
	}
	return chat.Reply{Text: r.text, ResponseID: r.id}, nil
}

type lines []string

func (l *lines) ReadLine(string) (string, error) {
	if len(*l) == 0 {
		return "", io.EOF
	}
	next := (*l)[0]
	*l = (*l)[1:]
	return next, nil
}

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func temp(v float64) *float64 { return &v }

func settings(t *testing.T) config.Settings {
	return config.Settings{
		Model:       "gpt-4o",
		Prompt:      "Be brief.",
		Temperature: temp(0.7),
		API:         chat.StyleChat,
		Render:      config.RenderText,
		HistoryDir:  t.TempDir(),
		Delimiter:   config.DefaultDelimiter,
		Retries:     1,
	}
}

func newSession(t *testing.T, s config.Settings, b chat.Backend) (*Session, *bytes.Buffer) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var out bytes.Buffer
	logger, _ := test.NewNullLogger()
	return New(s, b, console.New(&out, false), WithLogger(logger), WithClock(func() time.Time { return fixedNow })), &out
}

func transcripts(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestSummarizeWithAttachment(t *testing.T) {
	notes := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("buy milk"), 0o600))

	s := settings(t)
	b := &fakeBackend{replies: []scripted{{text: "Buy milk."}}}
	sess, out := newSession(t, s, b)

	in := lines{"Summarize this ^ " + notes, ""}
	require.NoError(t, sess.Run(context.Background(), &in))

	require.Len(t, b.calls, 1)
	c := b.calls[0]
	assert.Equal(t, "gpt-4o", c.cfg.Model)
	assert.Equal(t, 0.7, *c.cfg.Temperature)
	require.Len(t, c.turns, 1)
	assert.Equal(t, "Summarize this", c.turns[0].Text)
	require.Len(t, c.turns[0].Attachments, 1)
	assert.Equal(t, "\n\n--- File: "+notes+" ---\n\nbuy milk", c.turns[0].Attachments[0].Text)

	assert.Contains(t, out.String(), "Completed loading the file: '"+notes+"'")
	assert.Contains(t, out.String(), "gpt-4o-t0.7 assistant:\nBuy milk.\n")

	assert.Equal(t, []string{"gpt-4o-t0.7_20240102_030405.md"}, transcripts(t, s.HistoryDir))
	raw, err := os.ReadFile(filepath.Join(s.HistoryDir, "gpt-4o-t0.7_20240102_030405.md"))
	require.NoError(t, err)
	assert.Equal(t, "system: Be brief.\n\n"+
		"user: Summarize this\n\n--- File: "+notes+" ---\n\nbuy milk\n\n"+
		"assistant: Buy milk.\n\n", string(raw))
}

func TestLeadingDelimiterAttachesOnly(t *testing.T) {
	notes := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("buy milk"), 0o600))

	s := settings(t)
	b := &fakeBackend{replies: []scripted{{text: "ok"}}}
	sess, _ := newSession(t, s, b)

	in := lines{" ^ " + notes, ""}
	require.NoError(t, sess.Run(context.Background(), &in))

	require.Len(t, b.calls, 1)
	turn := b.calls[0].turns[0]
	assert.Empty(t, turn.Text)
	require.Len(t, turn.Attachments, 1)
	assert.Equal(t, notes, turn.Attachments[0].Ref)
}

func TestContinuationAcrossTurns(t *testing.T) {
	s := settings(t)
	s.Model = "o4-mini"
	s.API = chat.StyleResponses
	b := &fakeBackend{replies: []scripted{{text: "one", id: "resp_1"}, {text: "two", id: "resp_2"}}}
	sess, _ := newSession(t, s, b)

	in := lines{"first", "second", ""}
	require.NoError(t, sess.Run(context.Background(), &in))

	require.Len(t, b.calls, 2)
	assert.Empty(t, b.calls[0].cfg.Continuation)
	assert.Equal(t, params.EffortLow, b.calls[0].cfg.Effort)
	assert.Equal(t, "resp_1", b.calls[1].cfg.Continuation)
	require.Len(t, b.calls[1].pending, 1)
	assert.Equal(t, "second", b.calls[1].pending[0].Text)
	assert.Equal(t, "resp_2", sess.Log().Continuation())
	assert.Equal(t, []string{"o4-mini-low_20240102_030405.md"}, transcripts(t, s.HistoryDir))
}

func TestSaveCommandKeepsSessionOpen(t *testing.T) {
	s := settings(t)
	b := &fakeBackend{replies: []scripted{{text: "hello"}, {text: "bye"}}}
	sess, out := newSession(t, s, b)

	in := lines{"hi", SaveCommand, "later", ""}
	require.NoError(t, sess.Run(context.Background(), &in))

	assert.Len(t, b.calls, 2)
	assert.Equal(t, []string{
		"gpt-4o-t0.7_20240102_030405-1.md",
		"gpt-4o-t0.7_20240102_030405.md",
	}, transcripts(t, s.HistoryDir))
	assert.Contains(t, out.String(), "Conversation history saved to ")
}

func TestEmptyInputWithoutTurnsSavesNothing(t *testing.T) {
	s := settings(t)
	sess, _ := newSession(t, s, &fakeBackend{})

	in := lines{"   "}
	require.NoError(t, sess.Run(context.Background(), &in))
	assert.Empty(t, transcripts(t, s.HistoryDir))
}

func TestRequestFailureSavesAndContinues(t *testing.T) {
	s := settings(t)
	b := &fakeBackend{replies: []scripted{{err: errors.New("boom")}, {text: "recovered"}}}
	sess, out := newSession(t, s, b)

	in := lines{"first", "second", ""}
	require.NoError(t, sess.Run(context.Background(), &in))

	assert.Contains(t, out.String(), "Request failed: boom")
	require.Len(t, b.calls, 2)
	require.Len(t, b.calls[1].turns, 2)
	assert.Equal(t, "first", b.calls[1].turns[0].Text)
	assert.Equal(t, "second", b.calls[1].turns[1].Text)
	assert.Equal(t, 3, sess.Log().Len())
	// emergency save plus the final one
	assert.Len(t, transcripts(t, s.HistoryDir), 2)
}

func TestAttachmentFailureStillAsks(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(good, []byte("A"), 0o600))
	missing := filepath.Join(dir, "missing.txt")

	s := settings(t)
	b := &fakeBackend{replies: []scripted{{text: "ok"}}}
	sess, out := newSession(t, s, b)

	require.NoError(t, sess.Turn(context.Background(), "look ^ "+good+" ^ "+missing+" ^ "+good))

	assert.Contains(t, out.String(), "Error processing attachment")
	require.Len(t, b.calls, 1)
	assert.Len(t, b.calls[0].turns[0].Attachments, 1)
}

func TestStreamingPrintsChunksOnce(t *testing.T) {
	s := settings(t)
	s.Stream = true
	b := &fakeBackend{replies: []scripted{{text: "Hello world"}}}
	sess, out := newSession(t, s, b)

	require.NoError(t, sess.Turn(context.Background(), "greet"))
	assert.Equal(t, "gpt-4o-t0.7 assistant:\nHello world\n\n", out.String())
	assert.Equal(t, "Hello world", sess.Log().Turns()[1].Text)
}

func TestTranscriptFailureKeepsConversation(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	s := settings(t)
	s.HistoryDir = filepath.Join(blocker, "history")
	b := &fakeBackend{replies: []scripted{{text: "one"}, {text: "two"}}}
	sess, out := newSession(t, s, b)

	in := lines{"a", SaveCommand, "b", ""}
	require.NoError(t, sess.Run(context.Background(), &in))

	assert.Contains(t, out.String(), "Failed to save conversation history")
	assert.Len(t, b.calls, 2)
	assert.Equal(t, 4, sess.Log().Len())
}

func TestEffortDowngradeIsReported(t *testing.T) {
	s := settings(t)
	s.Model = "o3"
	s.Effort = params.EffortMinimal
	b := &fakeBackend{replies: []scripted{{text: "ok"}}}
	sess, out := newSession(t, s, b)

	require.NoError(t, sess.RunOnce(context.Background(), "think"))
	assert.Equal(t, params.EffortLow, b.calls[0].cfg.Effort)
	assert.Contains(t, out.String(), `reasoning effort "minimal" is not available for o3`)
	assert.Equal(t, []string{"o3-low_20240102_030405.md"}, transcripts(t, s.HistoryDir))
}

func TestRunOnceReturnsRequestError(t *testing.T) {
	s := settings(t)
	b := &fakeBackend{replies: []scripted{{err: errors.New("down")}}}
	sess, _ := newSession(t, s, b)

	err := sess.RunOnce(context.Background(), "hello")
	assert.EqualError(t, err, "down")
	assert.Len(t, transcripts(t, s.HistoryDir), 1)
}

func TestEOFAfterLastLine(t *testing.T) {
	s := settings(t)
	b := &fakeBackend{replies: []scripted{{text: "ok"}}}
	sess, _ := newSession(t, s, b)

	in := lines{"only"}
	require.NoError(t, sess.Run(context.Background(), &in))
	assert.Len(t, b.calls, 1)
	assert.Len(t, transcripts(t, s.HistoryDir), 1)
}
