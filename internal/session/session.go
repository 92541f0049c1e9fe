// Package session runs the conversation loop: read a line, encode its
// attachments, resolve request parameters, ask the backend, print and log
// the answer, and save the transcript when asked or when the session ends.
package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/thiagozs/go-gptchat/internal/attach"
	"github.com/thiagozs/go-gptchat/internal/chat"
	"github.com/thiagozs/go-gptchat/internal/config"
	"github.com/thiagozs/go-gptchat/internal/console"
	"github.com/thiagozs/go-gptchat/internal/params"
	"github.com/thiagozs/go-gptchat/internal/transcript"
)

// SaveCommand flushes the conversation to disk without ending the session.
const SaveCommand = "!save"

// Input yields one line of user input per call. io.EOF ends the session.
type Input interface {
	ReadLine(prompt string) (string, error)
}

type Session struct {
	settings config.Settings
	backend  chat.Backend
	out      *console.Printer
	logger   logrus.FieldLogger
	now      func() time.Time
	reqCtx   func(context.Context) (context.Context, context.CancelFunc)
	conv     *chat.Log
}

type Option func(*Session)

func WithLogger(l logrus.FieldLogger) Option { return func(s *Session) { s.logger = l } }

// WithClock replaces time.Now in transcript names.
func WithClock(now func() time.Time) Option { return func(s *Session) { s.now = now } }

// WithRequestContext sets how each request derives its context from the
// session's, e.g. to let an interrupt cancel just that request.
func WithRequestContext(fn func(context.Context) (context.Context, context.CancelFunc)) Option {
	return func(s *Session) { s.reqCtx = fn }
}

func New(settings config.Settings, backend chat.Backend, out *console.Printer, opts ...Option) *Session {
	s := &Session{
		settings: settings,
		backend:  backend,
		out:      out,
		now:      time.Now,
		reqCtx:   context.WithCancel,
		conv:     chat.NewLog(settings.Instructions()),
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		s.logger = l
	}
	return s
}

// Log exposes the conversation so far.
func (s *Session) Log() *chat.Log { return s.conv }

// Run reads lines from in until an empty line or EOF, then saves the
// conversation if anything was said. Only an input failure is returned.
func (s *Session) Run(ctx context.Context, in Input) error {
	for {
		line, err := in.ReadLine(s.prompt())
		if err != nil && !errors.Is(err, io.EOF) {
			s.finish()
			return err
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			s.finish()
			return nil
		}
		if trimmed == SaveCommand {
			s.Save()
			continue
		}
		_ = s.Turn(ctx, line)
		if errors.Is(err, io.EOF) {
			s.finish()
			return nil
		}
	}
}

// RunOnce answers a single prompt and saves the transcript. The request
// error, if any, is returned after the emergency save.
func (s *Session) RunOnce(ctx context.Context, line string) error {
	err := s.Turn(ctx, line)
	if err == nil {
		s.finish()
	}
	return err
}

// Turn handles one input line. The line is split on the delimiter before
// anything is trimmed, so a line may start with an attachment. Attachment failures are reported and the
// turn goes on with whatever was encoded. A request failure triggers an
// emergency save and is returned; the unanswered question stays in the log.
func (s *Session) Turn(ctx context.Context, line string) error {
	question, refs := attach.SplitInput(line, s.settings.Delimiter)
	blocks, err := attach.EncodeAll(refs, s.out.Attached)
	if err != nil {
		s.logger.WithError(err).WithField("attached", len(blocks)).Debug("Attachment failed, skipping the rest")
		s.out.Error("Error processing attachment: %v", err)
	}
	s.conv.AddUser(question, blocks)

	cfg := s.resolve()
	for _, w := range cfg.Warnings {
		s.logger.WithFields(logrus.Fields{"model": cfg.Model, "rule": cfg.Rule}).Debug(w)
		s.out.Warn(w)
	}

	s.out.AssistantHeader(cfg.Label())
	var onDelta func(string)
	if cfg.Stream {
		onDelta = s.out.Delta
	}
	reqCtx, cancel := s.reqCtx(ctx)
	reply, err := s.backend.Send(reqCtx, cfg, s.conv, onDelta)
	cancel()
	if cfg.Stream {
		s.out.EndStream()
	}
	if err != nil {
		s.logger.WithError(err).WithField("model", cfg.Model).Debug("Request failed")
		s.out.Error("Request failed: %v", err)
		s.save(cfg)
		return err
	}
	if !cfg.Stream {
		s.out.Reply(reply.Text)
	}
	s.conv.AddAssistant(reply.Text)
	s.conv.Acknowledge(reply.ResponseID)
	return nil
}

// Save writes the transcript and reports where it went. A write failure is
// reported and the conversation stays in memory.
func (s *Session) Save() (string, bool) { return s.save(s.resolve()) }

func (s *Session) save(cfg params.Configuration) (string, bool) {
	path, err := transcript.Save(s.settings.HistoryDir, cfg.Label(), cfg.InstructionRole, s.conv, s.now())
	if err != nil {
		s.logger.WithError(err).WithField("dir", s.settings.HistoryDir).Debug("Could not save transcript")
		s.out.Error("Failed to save conversation history: %v", err)
		return "", false
	}
	s.logger.WithField("path", path).Debug("Transcript saved")
	s.out.Saved(path)
	return path, true
}

func (s *Session) finish() {
	if !s.conv.Empty() {
		s.Save()
	}
}

func (s *Session) resolve() params.Configuration {
	return params.Resolve(params.Request{
		Model:        s.settings.Model,
		Temperature:  s.settings.Temperature,
		Effort:       s.settings.Effort,
		Stream:       s.settings.Stream,
		Continuation: s.conv.Continuation(),
	})
}

func (s *Session) prompt() string {
	return "user (question" + s.settings.Delimiter + "files, !save, empty line to exit): "
}
