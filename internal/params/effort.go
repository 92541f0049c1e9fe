package params

import (
	"fmt"
	"strings"
)

// Effort is a reasoning-effort level.
type Effort string

const (
	EffortNone    Effort = "none"
	EffortMinimal Effort = "minimal"
	EffortLow     Effort = "low"
	EffortMedium  Effort = "medium"
	EffortHigh    Effort = "high"
)

var effortOrder = []Effort{EffortNone, EffortMinimal, EffortLow, EffortMedium, EffortHigh}

func effortRank(e Effort) int {
	for i, v := range effortOrder {
		if v == e {
			return i
		}
	}
	return -1
}

// ParseEffort accepts any known level, case-insensitively. The empty string
// is valid and means "use the family default".
func ParseEffort(s string) (Effort, error) {
	e := Effort(strings.ToLower(strings.TrimSpace(s)))
	if e == "" || effortRank(e) >= 0 {
		return e, nil
	}
	return "", fmt.Errorf("unknown reasoning effort %q (want one of none, minimal, low, medium, high)", s)
}

// nearestEffort maps want onto the levels a family defines: the lowest
// defined level at or above want, or the highest defined level when want
// exceeds them all.
//
// This is a stopgap policy for levels that only newer model families
// understand (e.g. "minimal" sent to an o-series model becomes "low").
func nearestEffort(want Effort, defined []Effort) Effort {
	if len(defined) == 0 {
		return want
	}
	rank := effortRank(want)
	for _, d := range defined {
		if d == want {
			return d
		}
	}
	for _, d := range defined {
		if effortRank(d) >= rank {
			return d
		}
	}
	return defined[len(defined)-1]
}
