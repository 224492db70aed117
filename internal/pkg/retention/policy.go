// Package retention decides which remote artifacts are old enough to prune
// and deletes them on a best-effort basis.
package retention

import (
	"fmt"
	"strings"
	"time"
)

// Unit is the granularity of a retention window.
type Unit string

const (
	Disabled Unit = "disabled"
	Hour     Unit = "hour"
	Day      Unit = "day"
	Week     Unit = "week"
	Month    Unit = "month"
	Year     Unit = "year"
)

var unitAliases = map[string]Unit{
	"":         Disabled,
	"disabled": Disabled,
	"none":     Disabled,
	"off":      Disabled,
	"hour":     Hour,
	"hourly":   Hour,
	"day":      Day,
	"daily":    Day,
	"week":     Week,
	"weekly":   Week,
	"month":    Month,
	"monthly":  Month,
	"year":     Year,
	"yearly":   Year,
}

// Policy keeps remote artifacts for one Unit.
type Policy struct {
	Unit Unit
}

// ParsePolicy accepts a unit name or one of its aliases, case-insensitively.
func ParsePolicy(s string) (Policy, error) {
	unit, ok := unitAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return Policy{}, fmt.Errorf("unknown retention %q (valid: disabled, hour, day, week, month, year)", s)
	}
	return Policy{Unit: unit}, nil
}

// Enabled reports whether pruning should run.
func (p Policy) Enabled() bool {
	return p.Unit != "" && p.Unit != Disabled
}

// Cutoff returns now minus exactly one unit. Calendar units use AddDate, so a
// month before March 31 normalises the same way time.AddDate does.
func (p Policy) Cutoff(now time.Time) time.Time {
	switch p.Unit {
	case Hour:
		return now.Add(-time.Hour)
	case Day:
		return now.AddDate(0, 0, -1)
	case Week:
		return now.AddDate(0, 0, -7)
	case Month:
		return now.AddDate(0, -1, 0)
	case Year:
		return now.AddDate(-1, 0, 0)
	default:
		return time.Time{}
	}
}

func (p Policy) String() string {
	if !p.Enabled() {
		return string(Disabled)
	}
	return string(p.Unit)
}
