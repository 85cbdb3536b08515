package expr

import (
	"fmt"
	"strings"
)

// SeasonStatus labels where a season sits relative to the current one.
type SeasonStatus string

const (
	SeasonFinished SeasonStatus = "Finished"
	SeasonActive   SeasonStatus = "Active"
	SeasonUpcoming SeasonStatus = "Upcoming"
)

const (
	DefaultFinishedRule = "season < current"
	DefaultActiveRule   = "season == current"
)

// SeasonFacts is the activation handed to season rules.
type SeasonFacts struct {
	Season    int
	Current   int
	Completed int
	Total     int
}

func (f SeasonFacts) vars() map[string]any {
	return map[string]any{
		"season":    int64(f.Season),
		"current":   int64(f.Current),
		"completed": int64(f.Completed),
		"total":     int64(f.Total),
	}
}

// SeasonRules classifies seasons. The finished rule is evaluated first, then
// the active rule. A season matching neither is upcoming.
type SeasonRules struct {
	finished Program
	active   Program
}

// NewSeasonRules compiles both rules. Blank rules fall back to the defaults.
func NewSeasonRules(finished, active string) (*SeasonRules, error) {
	if strings.TrimSpace(finished) == "" {
		finished = DefaultFinishedRule
	}
	if strings.TrimSpace(active) == "" {
		active = DefaultActiveRule
	}
	env, err := NewEnvironment()
	if err != nil {
		return nil, err
	}
	finishedProgram, err := env.Compile(finished)
	if err != nil {
		return nil, fmt.Errorf("expr: finished rule: %w", err)
	}
	activeProgram, err := env.Compile(active)
	if err != nil {
		return nil, fmt.Errorf("expr: active rule: %w", err)
	}
	return &SeasonRules{finished: finishedProgram, active: activeProgram}, nil
}

// Classify evaluates the rules against facts.
func (r *SeasonRules) Classify(facts SeasonFacts) (SeasonStatus, error) {
	vars := facts.vars()
	finished, err := r.finished.EvalBool(vars)
	if err != nil {
		return "", err
	}
	if finished {
		return SeasonFinished, nil
	}
	active, err := r.active.EvalBool(vars)
	if err != nil {
		return "", err
	}
	if active {
		return SeasonActive, nil
	}
	return SeasonUpcoming, nil
}
