// Package transcript writes conversation logs to timestamped text files.
package transcript

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/thiagozs/go-gptchat/internal/attach"
	"github.com/thiagozs/go-gptchat/internal/chat"
)

const timeLayout = "20060102_150405"

// Render formats the log as alternating "role: content" paragraphs.
func Render(log *chat.Log, instructionRole string) string {
	var b strings.Builder
	if log.Instructions != "" {
		if instructionRole == "" {
			instructionRole = string(chat.RoleSystem)
		}
		fmt.Fprintf(&b, "%s: %s\n\n", instructionRole, log.Instructions)
	}
	for _, t := range log.Turns() {
		fmt.Fprintf(&b, "%s: %s\n\n", t.Role, turnContent(t))
	}
	return b.String()
}

func turnContent(t chat.Turn) string {
	if !t.Multipart() {
		return t.Text
	}
	var b strings.Builder
	b.WriteString(t.Text)
	for _, a := range t.Attachments {
		switch a.Kind {
		case attach.KindImage:
			fmt.Fprintf(&b, "\n\n[image: %s]", a.Ref)
		case attach.KindFile:
			fmt.Fprintf(&b, "\n\n[file: %s]", a.Ref)
		default:
			b.WriteString(a.Text)
		}
	}
	return b.String()
}

// fileLabel keeps model ids like "org/model:tag" usable as file names.
func fileLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "conversation"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, label)
}

// Save writes the log to dir as <label>_<YYYYmmdd_HHMMSS>.md and returns the
// path. An existing file is never replaced; a -N suffix is added instead.
// The content goes to a temporary file first and is renamed into place.
func Save(dir, label, instructionRole string, log *chat.Log, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create history dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".transcript-*")
	if err != nil {
		return "", fmt.Errorf("create temp transcript: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(Render(log, instructionRole)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write transcript: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return "", fmt.Errorf("chmod transcript: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("sync transcript: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close transcript: %w", err)
	}

	base := fileLabel(label) + "_" + now.Format(timeLayout)
	for i := 0; ; i++ {
		name := base + ".md"
		if i > 0 {
			name = fmt.Sprintf("%s-%d.md", base, i)
		}
		p := filepath.Join(dir, name)
		// os.Link fails if p exists, which keeps earlier transcripts intact.
		err := os.Link(tmp.Name(), p)
		if err == nil {
			return p, nil
		}
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		// Filesystems without hard links: fall back to a checked rename.
		if _, statErr := os.Stat(p); statErr == nil {
			continue
		}
		if err := os.Rename(tmp.Name(), p); err != nil {
			return "", fmt.Errorf("move transcript into place: %w", err)
		}
		return p, nil
	}
}
