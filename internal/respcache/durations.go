package respcache

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Named TTL classes.
const (
	TrackLayouts   = "TRACK_LAYOUTS"
	Seasons        = "SEASONS"
	Races          = "RACES"
	LapData        = "LAP_DATA"
	Telemetry      = "TELEMETRY"
	GeneralStats   = "GENERAL_STATS"
	TrackDominance = "TRACK_DOMINANCE"
	FastestLaps    = "FASTEST_LAPS"
	ShortCache     = "SHORT_CACHE"
)

const day = 24 * time.Hour

func defaultDurations() map[string]time.Duration {
	return map[string]time.Duration{
		TrackLayouts:   30 * day,
		Seasons:        day,
		Races:          day,
		LapData:        6 * time.Hour,
		Telemetry:      6 * time.Hour,
		GeneralStats:   6 * time.Hour,
		TrackDominance: 6 * time.Hour,
		FastestLaps:    12 * time.Hour,
		ShortCache:     30 * time.Minute,
	}
}

// Durations is the immutable TTL policy table keyed by class name.
type Durations struct {
	table map[string]time.Duration
}

// DefaultDurations returns the built-in policy table.
func DefaultDurations() Durations {
	return Durations{table: defaultDurations()}
}

// NewDurations applies overrides (class name to Go duration string) on top
// of the defaults. Unknown classes and non-positive durations are rejected.
func NewDurations(overrides map[string]string) (Durations, error) {
	table := defaultDurations()
	for name, raw := range overrides {
		class, ok := canonicalClass(table, name)
		if !ok {
			return Durations{}, fmt.Errorf("respcache: unknown duration class %q", name)
		}
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return Durations{}, fmt.Errorf("respcache: duration %s: %w", class, err)
		}
		if d <= 0 {
			return Durations{}, fmt.Errorf("respcache: duration %s must be positive", class)
		}
		table[class] = d
	}
	return Durations{table: table}, nil
}

// canonicalClass matches name against the table ignoring case and
// underscores, so env-sourced names such as "lapdata" resolve to LAP_DATA.
func canonicalClass(table map[string]time.Duration, name string) (string, bool) {
	want := foldClass(name)
	for class := range table {
		if foldClass(class) == want {
			return class, true
		}
	}
	return "", false
}

func foldClass(name string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(name)), "_", "")
}

// TTL returns the duration for class, falling back to SHORT_CACHE for
// unknown names.
func (d Durations) TTL(class string) time.Duration {
	if d.table == nil {
		d = DefaultDurations()
	}
	if ttl, ok := d.table[class]; ok {
		return ttl
	}
	return d.table[ShortCache]
}

// Longest returns the largest configured duration.
func (d Durations) Longest() time.Duration {
	if d.table == nil {
		d = DefaultDurations()
	}
	var longest time.Duration
	for _, ttl := range d.table {
		longest = max(longest, ttl)
	}
	return longest
}

// Table returns a copy of the policy.
func (d Durations) Table() map[string]time.Duration {
	if d.table == nil {
		d = DefaultDurations()
	}
	out := make(map[string]time.Duration, len(d.table))
	for k, v := range d.table {
		out[k] = v
	}
	return out
}

// Names lists the configured classes in sorted order.
func (d Durations) Names() []string {
	table := d.Table()
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
