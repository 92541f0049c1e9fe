// Package params derives the per-request options sent to the model endpoint.
//
// Model families are matched against an ordered rule table; the first rule
// whose pattern matches the model id supplies the token ceiling, the
// temperature policy and the accepted reasoning-effort levels. Models that
// match no rule get the default rule, so an unknown id is never an error.
package params

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Instruction roles. Reasoning models take their instruction block as a
// developer message, everything else as a system message.
const (
	RoleSystem    = "system"
	RoleDeveloper = "developer"
)

const (
	DefaultMaxTokens  = 16384
	ExtendedMaxTokens = 32768

	// fixedTemperature is the only sampling temperature reasoning models accept.
	fixedTemperature = 1.0
)

// Rule is one row of the model-family table.
type Rule struct {
	Name      string
	Pattern   *regexp.Regexp
	MaxTokens int64
	// Reasoning rules force the temperature and attach an effort level.
	Reasoning bool
	// Efforts lists the levels the family accepts, lowest first.
	Efforts []Effort
}

// Rules is evaluated top to bottom, first match wins. The interactive
// "-chat" variants sit above the gpt-5 rows so they fall back to default
// sampling behaviour.
var Rules = []Rule{
	{
		Name:      "extended-context",
		Pattern:   regexp.MustCompile(`^gpt-4\.1`),
		MaxTokens: ExtendedMaxTokens,
	},
	{
		Name:      "interactive-chat",
		Pattern:   regexp.MustCompile(`^gpt-5(\.\d+)?-chat`),
		MaxTokens: DefaultMaxTokens,
	},
	{
		Name:      "reasoning-gpt5x",
		Pattern:   regexp.MustCompile(`^gpt-5\.\d+`),
		MaxTokens: 128000,
		Reasoning: true,
		Efforts:   []Effort{EffortNone, EffortLow, EffortMedium, EffortHigh},
	},
	{
		Name:      "reasoning-gpt5",
		Pattern:   regexp.MustCompile(`^gpt-5`),
		MaxTokens: 128000,
		Reasoning: true,
		Efforts:   []Effort{EffortMinimal, EffortLow, EffortMedium, EffortHigh},
	},
	{
		Name:      "reasoning-o",
		Pattern:   regexp.MustCompile(`^o[1-9]`),
		MaxTokens: 100000,
		Reasoning: true,
		Efforts:   []Effort{EffortLow, EffortMedium, EffortHigh},
	},
}

// DefaultRule applies when nothing in Rules matches.
var DefaultRule = Rule{Name: "default", MaxTokens: DefaultMaxTokens}

// Match returns the rule governing model.
func Match(model string) Rule {
	model = strings.ToLower(strings.TrimSpace(model))
	for _, r := range Rules {
		if r.Pattern.MatchString(model) {
			return r
		}
	}
	return DefaultRule
}

// Request is what the caller asks for before family rules are applied.
type Request struct {
	Model string
	// Temperature is nil when the caller wants the model default.
	Temperature *float64
	Effort      Effort
	Stream      bool
	// Continuation is the id of the previous response, if any.
	Continuation string
}

// Configuration is the concrete option set for one request.
type Configuration struct {
	Model           string
	Temperature     *float64
	MaxOutputTokens int64
	Stream          bool
	// Effort is empty for models that take no reasoning-effort parameter.
	Effort          Effort
	Continuation    string
	InstructionRole string
	Rule            string
	Warnings        []string
}

// Reasoning reports whether the configuration carries an effort level.
func (c Configuration) Reasoning() bool { return c.Effort != "" }

// Resolve applies the matching family rule to req.
func Resolve(req Request) Configuration {
	rule := Match(req.Model)
	cfg := Configuration{
		Model:           strings.TrimSpace(req.Model),
		Temperature:     req.Temperature,
		MaxOutputTokens: rule.MaxTokens,
		Stream:          req.Stream,
		Continuation:    req.Continuation,
		InstructionRole: RoleSystem,
		Rule:            rule.Name,
	}
	if !rule.Reasoning {
		return cfg
	}

	t := fixedTemperature
	cfg.Temperature = &t
	cfg.InstructionRole = RoleDeveloper

	want := req.Effort
	if want == "" {
		want = EffortLow
	}
	got := nearestEffort(want, rule.Efforts)
	if got != want {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf(
			"reasoning effort %q is not available for %s, using %q", want, cfg.Model, got))
	}
	cfg.Effort = got
	return cfg
}

// Label names the model settings in transcript file names: model plus
// effort for reasoning models, model plus temperature otherwise.
func (c Configuration) Label() string {
	switch {
	case c.Effort != "":
		return c.Model + "-" + string(c.Effort)
	case c.Temperature != nil:
		return c.Model + "-t" + strconv.FormatFloat(*c.Temperature, 'f', -1, 64)
	default:
		return c.Model
	}
}
