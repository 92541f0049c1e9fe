// Package config loads gptchat settings: a config file with named profiles,
// merged with command-line flags and environment into one Settings value
// that is built once at startup and passed down explicitly.
package config

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/language"
	yaml "gopkg.in/yaml.v3"

	"github.com/thiagozs/go-gptchat/internal/chat"
	"github.com/thiagozs/go-gptchat/internal/params"
)

var ErrUnknownProfile = errors.New("unknown profile")

const (
	DefaultModel      = "gpt-5.1"
	DefaultDelimiter  = " ^ "
	DefaultHistoryDir = "./history"
	DefaultRetries    = 4
	DefaultPrompt     = "You are a helpful assistant. " +
		"Since the conversation will be saved in Markdown format, " +
		"make your responses well-structured and easy to read in Markdown."

	RenderText     = "text"
	RenderMarkdown = "markdown"
)

// ===================== Config & Profiles =====================

// Profile holds one named set of settings. Pointer fields distinguish
// "not set" from the zero value.
type Profile struct {
	Model           string   `yaml:"model" toml:"model"`
	Prompt          string   `yaml:"prompt" toml:"prompt"`
	Temperature     *float64 `yaml:"temperature" toml:"temperature"`
	Stream          *bool    `yaml:"stream" toml:"stream"`
	ReasoningEffort string   `yaml:"reasoning_effort" toml:"reasoning_effort"`
	Country         string   `yaml:"country" toml:"country"`
	API             string   `yaml:"api" toml:"api"` // chat|responses
	BaseURL         string   `yaml:"base_url" toml:"base_url"`
	Proxy           string   `yaml:"proxy" toml:"proxy"`
	Render          string   `yaml:"render" toml:"render"` // text|markdown
	HistoryDir      string   `yaml:"history_dir" toml:"history_dir"`
	Delimiter       string   `yaml:"delimiter" toml:"delimiter"`
	Retries         int      `yaml:"retries" toml:"retries"`
}

type File struct {
	APIKey   string             `yaml:"api_key" toml:"api_key"`
	Default  string             `yaml:"default" toml:"default"`
	Profiles map[string]Profile `yaml:"profiles" toml:"profiles"`
}

func Dir() string {
	usr, err := user.Current()
	if err != nil {
		return "."
	}
	return filepath.Join(usr.HomeDir, ".config", "gptchat")
}

func DefaultPath() string { return filepath.Join(Dir(), "config.yaml") }

// Load reads a config file. A missing file yields an empty config. Files
// ending in .toml are decoded as TOML, everything else as YAML.
func Load(path string) (*File, error) {
	if path == "" {
		path = DefaultPath()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{Profiles: map[string]Profile{}}, nil
		}
		return nil, err
	}
	var cfg File
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(b), &cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]Profile{}
	}
	return &cfg, nil
}

// Profile returns the named profile, or the default one when name is empty.
func (f *File) Profile(name string) (Profile, error) {
	if name == "" {
		name = f.Default
	}
	if name == "" {
		return Profile{}, nil
	}
	p, ok := f.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return p, nil
}

// ===================== Settings =====================

// Settings is the resolved, read-only configuration of a session.
type Settings struct {
	APIKey      string
	Model       string
	Prompt      string
	Temperature *float64
	Stream      bool
	Effort      params.Effort
	Country     string
	API         chat.APIStyle
	BaseURL     string
	Proxy       string
	Render      string
	HistoryDir  string
	Delimiter   string
	Retries     int
}

// Instructions is the instruction block sent at the start of a conversation.
func (s Settings) Instructions() string {
	if s.Country == "" {
		return s.Prompt
	}
	hint := "The user is located in " + s.Country + "."
	if s.Prompt == "" {
		return hint
	}
	return s.Prompt + "\n\n" + hint
}

// Validate checks the values Merge could not check while parsing.
func (s Settings) Validate() error {
	var errs []error
	if strings.TrimSpace(s.Model) == "" {
		errs = append(errs, errors.New("model is required"))
	}
	if s.Temperature != nil && (*s.Temperature < 0 || *s.Temperature > 2) {
		errs = append(errs, fmt.Errorf("temperature %v out of range [0, 2]", *s.Temperature))
	}
	if s.Render != RenderText && s.Render != RenderMarkdown {
		errs = append(errs, fmt.Errorf("unknown render mode %q (want text or markdown)", s.Render))
	}
	if s.Delimiter == "" || strings.TrimSpace(s.Delimiter) == "" {
		errs = append(errs, errors.New("attachment delimiter must contain a visible character"))
	}
	if s.Retries < 1 {
		errs = append(errs, fmt.Errorf("retries must be at least 1, got %d", s.Retries))
	}
	return errors.Join(errs...)
}

// NormalizeCountry upper-cases an ISO 3166-1 alpha-2 code and rejects
// anything that is not a known region.
func NormalizeCountry(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", nil
	}
	r, err := language.ParseRegion(code)
	if err != nil || !r.IsCountry() {
		return "", fmt.Errorf("invalid country code %q", code)
	}
	return r.String(), nil
}
