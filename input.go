package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	"github.com/sirupsen/logrus"

	"github.com/thiagozs/go-gptchat/internal/config"
)

// ===================== Interactive Input =====================

type lineInput interface {
	ReadLine(prompt string) (string, error)
	Close()
}

func historyPath() string { return filepath.Join(config.Dir(), "input_history") }

// newInput uses line editing with history on a real terminal and a plain
// scanner elsewhere (e.g. Cygwin/MSYS consoles).
func newInput(logger logrus.FieldLogger) lineInput {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return &scanInput{sc: bufio.NewScanner(os.Stdin), out: os.Stdout}
	}
	l := liner.NewLiner()
	l.SetCtrlCAborts(true)
	in := &linerInput{line: l, path: historyPath(), logger: logger}
	if f, err := os.Open(in.path); err == nil {
		if _, err := l.ReadHistory(f); err != nil {
			logger.WithError(err).Debug("Could not read input history")
		}
		f.Close()
	}
	return in
}

type linerInput struct {
	line   *liner.State
	path   string
	logger logrus.FieldLogger
}

// ReadLine maps Ctrl-C and Ctrl-D at the prompt to io.EOF, which ends the
// session like an empty line.
func (in *linerInput) ReadLine(prompt string) (string, error) {
	s, err := in.line.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
		fmt.Println()
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s) != "" {
		in.line.AppendHistory(s)
	}
	return s, nil
}

func (in *linerInput) Close() {
	defer in.line.Close()
	if err := os.MkdirAll(filepath.Dir(in.path), 0o755); err != nil {
		in.logger.WithError(err).Debug("Could not create config dir")
		return
	}
	f, err := os.OpenFile(in.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		in.logger.WithError(err).Debug("Could not write input history")
		return
	}
	defer f.Close()
	_, _ = in.line.WriteHistory(f)
}

type scanInput struct {
	sc  *bufio.Scanner
	out io.Writer
}

func (in *scanInput) ReadLine(prompt string) (string, error) {
	fmt.Fprint(in.out, prompt)
	if !in.sc.Scan() {
		if err := in.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return in.sc.Text(), nil
}

func (in *scanInput) Close() {}

// interruptible derives a request context that SIGINT cancels. The session
// survives; only the in-flight request fails.
func interruptible(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		select {
		case <-sig:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sig)
		cancel()
	}
}
