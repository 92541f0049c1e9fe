package transcript

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thiagozs/go-gptchat/internal/attach"
	"github.com/thiagozs/go-gptchat/internal/chat"
)

func sampleLog() *chat.Log {
	log := chat.NewLog("You are a helpful assistant.")
	log.AddUser("Summarize this", []attach.Block{
		{Kind: attach.KindText, Ref: "notes.txt", Text: "\n\n--- File: notes.txt ---\n\nbuy milk"},
		{Kind: attach.KindImage, Ref: "cat.png"},
		{Kind: attach.KindFile, Ref: "q2.pdf"},
	})
	log.AddAssistant("You need milk.")
	return log
}

func TestRender(t *testing.T) {
	want := "system: You are a helpful assistant.\n\n" +
		"user: Summarize this\n\n--- File: notes.txt ---\n\nbuy milk\n\n[image: cat.png]\n\n[file: q2.pdf]\n\n" +
		"assistant: You need milk.\n\n"
	assert.Equal(t, want, Render(sampleLog(), ""))

	dev := Render(sampleLog(), "developer")
	assert.Contains(t, dev, "developer: You are a helpful assistant.\n\n")
}

func TestSaveNamesAndNeverOverwrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "history")
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.Local)

	p1, err := Save(dir, "gpt-5-low", "developer", sampleLog(), now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "gpt-5-low_20260304_050607.md"), p1)

	p2, err := Save(dir, "gpt-5-low", "developer", chat.NewLog("other"), now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "gpt-5-low_20260304_050607-1.md"), p2)

	first, err := os.ReadFile(p1)
	require.NoError(t, err)
	assert.Contains(t, string(first), "assistant: You need milk.")

	second, err := os.ReadFile(p2)
	require.NoError(t, err)
	assert.Equal(t, "developer: other\n\n", string(second))

	// no temp files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSaveSanitizesLabel(t *testing.T) {
	dir := t.TempDir()
	p, err := Save(dir, "org/model:7b", "", chat.NewLog(""), time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local))
	require.NoError(t, err)
	assert.Equal(t, "org_model_7b_20260102_030405.md", filepath.Base(p))
}

func TestSaveFailsOnUnwritableDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, nil, 0o644))
	_, err := Save(filepath.Join(f, "sub"), "x", "", chat.NewLog(""), time.Now())
	assert.Error(t, err)
}
