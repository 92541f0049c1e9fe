// Package chat holds the conversation log and the backends that send it to
// the OpenAI API, one per API style.
package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v2"
	"github.com/sirupsen/logrus"

	"github.com/thiagozs/go-gptchat/internal/params"
)

// APIStyle selects the endpoint family a session talks to.
type APIStyle string

const (
	// StyleChat resends the whole log to chat completions every turn.
	StyleChat APIStyle = "chat"
	// StyleResponses keeps context server-side and sends only new turns.
	StyleResponses APIStyle = "responses"
)

func ParseAPIStyle(s string) (APIStyle, error) {
	switch APIStyle(strings.ToLower(strings.TrimSpace(s))) {
	case "", StyleChat:
		return StyleChat, nil
	case StyleResponses:
		return StyleResponses, nil
	}
	return "", fmt.Errorf("unknown api style %q (want chat or responses)", s)
}

// Reply is the assistant's answer to one request.
type Reply struct {
	Text string
	// ResponseID is set by backends whose server keeps the conversation.
	ResponseID string
}

// Backend sends the log to the model. onDelta receives text chunks as
// they arrive when cfg.Stream is set; it may be nil.
type Backend interface {
	Send(ctx context.Context, cfg params.Configuration, log *Log, onDelta func(string)) (Reply, error)
}

// Options tune every backend.
type Options struct {
	// Attempts is the number of tries per request, including the first.
	Attempts int
	Logger   logrus.FieldLogger
}

// NewBackend returns the backend for style.
func NewBackend(style APIStyle, client openai.Client, opts Options) (Backend, error) {
	if opts.Logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		opts.Logger = l
	}
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	switch style {
	case StyleChat:
		return &completionsBackend{client: client, opts: opts}, nil
	case StyleResponses:
		return &responsesBackend{client: client, opts: opts}, nil
	}
	return nil, fmt.Errorf("unknown api style %q", style)
}

// classify marks client errors (other than rate limiting) as not worth retrying.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests {
			return permanent(err)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return permanent(err)
	}
	return err
}

// streamGuard makes a failed stream permanent once any text reached the
// caller, so a retry never prints the same answer twice.
type streamGuard struct {
	onDelta func(string)
	emitted bool
}

func (g *streamGuard) emit(s string) {
	if s == "" {
		return
	}
	g.emitted = true
	if g.onDelta != nil {
		g.onDelta(s)
	}
}

func (g *streamGuard) fail(err error) error {
	if g.emitted {
		return permanent(err)
	}
	return classify(err)
}
