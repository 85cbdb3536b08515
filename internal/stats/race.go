package stats

import "sort"

// RaceResult is one classified driver in a race as read from the database.
// AdjustedPosition is zero when no post-race adjustment exists.
type RaceResult struct {
	RaceID              int64
	Position            int
	AdjustedPosition    int
	Grid                int
	Driver              string
	Team                string
	TimeMs              int64
	FastestLapMs        int64
	PenaltySecs         int
	PostRacePenaltySecs int
	Stints              string
	Status              string
}

// FinalPosition prefers the adjusted classification over the on-track one.
func (r RaceResult) FinalPosition() int {
	if r.AdjustedPosition > 0 {
		return r.AdjustedPosition
	}
	return r.Position
}

// DriverRef names a driver and the team they raced for.
type DriverRef struct {
	Name string `json:"name"`
	Team string `json:"team"`
}

// TimedDriverRef is a DriverRef with a formatted lap time.
type TimedDriverRef struct {
	Name string `json:"name"`
	Team string `json:"team"`
	Time string `json:"time"`
}

// RaceSummary is the headline information for a single race.
type RaceSummary struct {
	Winner     *DriverRef      `json:"winner"`
	PoleSitter *TimedDriverRef `json:"poleSitter"`
	FastestLap *TimedDriverRef `json:"fastestLap"`
}

// SummarizeRace picks the winner, pole sitter and fastest lap from the rows
// of one race. Missing roles stay nil.
func SummarizeRace(rows []RaceResult) RaceSummary {
	var summary RaceSummary
	var fastest *RaceResult
	for i := range rows {
		row := &rows[i]
		if summary.Winner == nil && (row.Position == 1 || row.AdjustedPosition == 1) {
			summary.Winner = &DriverRef{Name: row.Driver, Team: row.Team}
		}
		if summary.PoleSitter == nil && row.Grid == 1 {
			summary.PoleSitter = &TimedDriverRef{Name: row.Driver, Team: row.Team}
		}
		if row.FastestLapMs > 0 && (fastest == nil || row.FastestLapMs < fastest.FastestLapMs) {
			fastest = row
		}
	}
	if fastest != nil {
		summary.FastestLap = &TimedDriverRef{
			Name: fastest.Driver,
			Team: fastest.Team,
			Time: FormatLapTime(fastest.FastestLapMs),
		}
	}
	return summary
}

// ClassifiedResult is a results table row ready for display.
type ClassifiedResult struct {
	Position         int    `json:"position"`
	Driver           string `json:"driver"`
	Team             string `json:"team"`
	Gap              string `json:"gap"`
	FastestLap       string `json:"fastest_lap"`
	PositionsChanged int    `json:"positions_changed"`
	Penalties        string `json:"penalties"`
}

// ClassifyResults orders rows by position and formats gaps against the
// first classified finisher.
func ClassifyResults(rows []RaceResult) []ClassifiedResult {
	ordered := make([]RaceResult, len(rows))
	copy(ordered, rows)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})

	out := make([]ClassifiedResult, 0, len(ordered))
	var winnerMs int64
	if len(ordered) > 0 {
		winnerMs = ordered[0].TimeMs
	}
	for _, row := range ordered {
		out = append(out, ClassifiedResult{
			Position:         row.Position,
			Driver:           row.Driver,
			Team:             row.Team,
			Gap:              FormatGap(row.Position, row.TimeMs, winnerMs),
			FastestLap:       FormatFastestLap(row.FastestLapMs),
			PositionsChanged: row.Grid - row.Position,
			Penalties:        FormatPenalty(row.PenaltySecs),
		})
	}
	return out
}

// FastestLapDrivers returns the drivers sharing the quickest positive lap of
// a race.
func FastestLapDrivers(rows []RaceResult) []string {
	var best int64
	for _, row := range rows {
		if row.FastestLapMs > 0 && (best == 0 || row.FastestLapMs < best) {
			best = row.FastestLapMs
		}
	}
	if best == 0 {
		return nil
	}
	var drivers []string
	for _, row := range rows {
		if row.FastestLapMs == best {
			drivers = append(drivers, row.Driver)
		}
	}
	return drivers
}
