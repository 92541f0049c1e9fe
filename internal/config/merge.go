package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/thiagozs/go-gptchat/internal/chat"
	"github.com/thiagozs/go-gptchat/internal/params"
)

// Flags are the command-line overrides. Empty strings and nil pointers
// mean "not given".
type Flags struct {
	APIKey      string
	Model       string
	Prompt      string
	Temperature *float64
	Stream      *bool
	Effort      string
	Country     string
	API         string
	Profile     string
	BaseURL     string
	Proxy       string
	Render      string
	HistoryDir  string
	Delimiter   string
	Retries     int
}

// Merge resolves settings with precedence flags > profile > defaults. The
// API key comes from the flag, then OPENAI_API_KEY, then the config file.
func Merge(f Flags, file *File) (Settings, error) {
	if file == nil {
		file = &File{}
	}
	prof, err := file.Profile(f.Profile)
	if err != nil {
		return Settings{}, err
	}

	s := Settings{
		APIKey:      chooseNonEmpty(f.APIKey, os.Getenv("OPENAI_API_KEY"), file.APIKey),
		Model:       chooseNonEmpty(f.Model, prof.Model, DefaultModel),
		Prompt:      chooseNonEmpty(f.Prompt, prof.Prompt, DefaultPrompt),
		Temperature: chooseFloat(f.Temperature, prof.Temperature),
		Stream:      chooseBool(f.Stream, prof.Stream, false),
		BaseURL:     chooseNonEmpty(f.BaseURL, prof.BaseURL),
		Proxy:       chooseNonEmpty(f.Proxy, prof.Proxy),
		Render:      strings.ToLower(chooseNonEmpty(f.Render, prof.Render, RenderText)),
		HistoryDir:  chooseNonEmpty(f.HistoryDir, prof.HistoryDir, DefaultHistoryDir),
		Delimiter:   chooseRaw(f.Delimiter, prof.Delimiter, DefaultDelimiter),
		Retries:     chooseInt(f.Retries, prof.Retries, DefaultRetries),
	}
	s.APIKey = strings.TrimSpace(s.APIKey)

	if s.Effort, err = params.ParseEffort(chooseNonEmpty(f.Effort, prof.ReasoningEffort)); err != nil {
		return Settings{}, err
	}
	if s.API, err = chat.ParseAPIStyle(chooseNonEmpty(f.API, prof.API)); err != nil {
		return Settings{}, err
	}
	if s.Country, err = NormalizeCountry(chooseNonEmpty(f.Country, prof.Country)); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

// ===================== Helpers =====================

func chooseNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// chooseRaw is chooseNonEmpty without trimming; delimiters carry their spaces.
func chooseRaw(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func chooseFloat(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func chooseBool(flagVal, profVal *bool, fallback bool) bool {
	if flagVal != nil {
		return *flagVal
	}
	if profVal != nil {
		return *profVal
	}
	return fallback
}

func chooseInt(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}
