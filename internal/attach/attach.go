// Package attach turns attachment references typed at the prompt into
// message content blocks: inline text, inline or remote images, inline or
// remote PDF files, and spreadsheets transcribed to JSON.
package attach

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var (
	ErrInvalidUTF8       = errors.New("file is not valid UTF-8 text")
	ErrUnsupportedRemote = errors.New("remote references are only supported for images and PDFs")
)

// Kind tags the variant held by a Block.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindFile  Kind = "file"
)

// Block is one encoded attachment.
type Block struct {
	Kind Kind
	// Ref is the reference exactly as the user gave it.
	Ref      string
	Filename string
	MIMEType string
	// Text holds the payload of KindText blocks.
	Text string
	// Data is the base64 payload of local images and files.
	Data string
	// URL is set for remote references, which are never fetched.
	URL string
	// Spreadsheet marks text blocks transcribed from a workbook.
	Spreadsheet bool
}

// Remote reports whether the block points at a URL instead of carrying data.
func (b Block) Remote() bool { return b.URL != "" }

// DataURL renders an inline payload as a data: URL. Remote blocks return
// their URL unchanged.
func (b Block) DataURL() string {
	if b.Remote() {
		return b.URL
	}
	return "data:" + b.MIMEType + ";base64," + b.Data
}

// Notice is the progress line shown after a block was encoded.
func (b Block) Notice() string {
	switch {
	case b.Spreadsheet:
		return fmt.Sprintf("Converted XLSX to JSON successfully: '%s'", b.Ref)
	case b.Kind == KindImage && b.Remote():
		return fmt.Sprintf("Image URL attached: '%s'", b.Ref)
	case b.Kind == KindImage:
		return fmt.Sprintf("Image loaded and encoded: '%s'", b.Ref)
	case b.Kind == KindFile && b.Remote():
		return fmt.Sprintf("PDF URL attached: '%s'", b.Ref)
	case b.Kind == KindFile:
		return fmt.Sprintf("PDF loaded and encoded: '%s'", b.Ref)
	default:
		return fmt.Sprintf("Completed loading the file: '%s'", b.Ref)
	}
}

var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

var spreadsheetExts = map[string]bool{
	".xlsx": true,
	".xlsm": true,
}

// IsRemote reports whether ref is an http(s) URL.
func IsRemote(ref string) bool {
	l := strings.ToLower(ref)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// ext returns the lowercased extension of a path or of a URL's path.
func ext(ref string) string {
	if IsRemote(ref) {
		if u, err := url.Parse(ref); err == nil {
			return strings.ToLower(path.Ext(u.Path))
		}
	}
	return strings.ToLower(filepath.Ext(ref))
}

func baseName(ref string) string {
	if IsRemote(ref) {
		if u, err := url.Parse(ref); err == nil {
			return path.Base(u.Path)
		}
	}
	return filepath.Base(ref)
}

// Encode classifies ref by extension (or URL scheme) and encodes it.
func Encode(ref string) (Block, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Block{}, errors.New("empty attachment reference")
	}
	b, err := encode(ref)
	if err != nil {
		return Block{}, fmt.Errorf("encode %q: %w", ref, err)
	}
	return b, nil
}

func encode(ref string) (Block, error) {
	e := ext(ref)
	remote := IsRemote(ref)
	name := baseName(ref)

	if mime, ok := imageTypes[e]; ok {
		if remote {
			return Block{Kind: KindImage, Ref: ref, Filename: name, MIMEType: mime, URL: ref}, nil
		}
		data, err := readBase64(ref)
		if err != nil {
			return Block{}, err
		}
		return Block{Kind: KindImage, Ref: ref, Filename: name, MIMEType: mime, Data: data}, nil
	}

	if e == ".pdf" {
		if remote {
			return Block{Kind: KindFile, Ref: ref, Filename: name, MIMEType: "application/pdf", URL: ref}, nil
		}
		data, err := readBase64(ref)
		if err != nil {
			return Block{}, err
		}
		return Block{Kind: KindFile, Ref: ref, Filename: name, MIMEType: "application/pdf", Data: data}, nil
	}

	if remote {
		return Block{}, ErrUnsupportedRemote
	}

	if spreadsheetExts[e] {
		doc, err := WorkbookJSON(ref)
		if err != nil {
			return Block{}, err
		}
		return Block{
			Kind:        KindText,
			Ref:         ref,
			Filename:    name,
			MIMEType:    "application/json",
			Text:        fmt.Sprintf("\n\n--- Converted JSON from Excel file: %s ---\n\n%s", ref, doc),
			Spreadsheet: true,
		}, nil
	}

	raw, err := os.ReadFile(ref)
	if err != nil {
		return Block{}, err
	}
	if !utf8.Valid(raw) {
		return Block{}, ErrInvalidUTF8
	}
	return Block{
		Kind:     KindText,
		Ref:      ref,
		Filename: name,
		MIMEType: "text/plain",
		Text:     fmt.Sprintf("\n\n--- File: %s ---\n\n%s", ref, raw),
	}, nil
}

func readBase64(p string) (string, error) {
	raw, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// EncodeAll encodes refs in order and stops at the first failure. The
// blocks encoded before the failure are returned together with the error.
// notify, when non-nil, is called after each successful block.
func EncodeAll(refs []string, notify func(Block)) ([]Block, error) {
	blocks := make([]Block, 0, len(refs))
	for _, ref := range refs {
		b, err := Encode(ref)
		if err != nil {
			return blocks, err
		}
		blocks = append(blocks, b)
		if notify != nil {
			notify(b)
		}
	}
	return blocks, nil
}

// SplitInput separates a prompt line into the question and its attachment
// references. Blank references are dropped.
func SplitInput(line, delim string) (string, []string) {
	if delim == "" {
		return strings.TrimSpace(line), nil
	}
	parts := strings.Split(line, delim)
	question := strings.TrimSpace(parts[0])
	var refs []string
	for _, p := range parts[1:] {
		if p = strings.TrimSpace(p); p != "" {
			refs = append(refs, p)
		}
	}
	return question, refs
}
