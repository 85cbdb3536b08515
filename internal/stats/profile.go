package stats

import "sort"

// DriverRaceResult is a driver's result with the race context a profile
// needs. HeldFastestLap marks the quickest lap of that race.
type DriverRaceResult struct {
	Season         string
	Track          string
	HeldFastestLap bool
	RaceResult
}

// CareerTotals counts achievements over a set of races. Disqualified and
// non-starting results count only as races, poles and fastest laps.
type CareerTotals struct {
	Races       int `json:"races"`
	Wins        int `json:"wins"`
	Podiums     int `json:"podiums"`
	Poles       int `json:"poles"`
	FastestLaps int `json:"fastestLaps"`
	Points      int `json:"points"`
	BestFinish  int `json:"bestFinish"`
}

// SeasonTotals is CareerTotals for one season.
type SeasonTotals struct {
	Season string   `json:"season"`
	Teams  []string `json:"teams"`
	CareerTotals
}

// TrackTotals is CareerTotals for one circuit.
type TrackTotals struct {
	Track string `json:"track"`
	CareerTotals
}

// DriverProfile is the career summary of a single driver.
type DriverProfile struct {
	Driver  string         `json:"driverName"`
	Career  CareerTotals   `json:"career"`
	Seasons []SeasonTotals `json:"seasons"`
	Tracks  []TrackTotals  `json:"tracks"`
}

// pointsScoring reports whether a status keeps a classified driver's points.
func pointsScoring(status string) bool {
	return status != "DSQ" && status != "DNS"
}

// ResultPoints scores one result, adding the fastest lap bonus for points
// finishers before FastestLapPointUntil.
func ResultPoints(row DriverRaceResult) int {
	if !pointsScoring(row.Status) {
		return 0
	}
	points := PointsFor(row.FinalPosition())
	if points > 0 && row.HeldFastestLap && seasonOrder(row.Season) < FastestLapPointUntil {
		points++
	}
	return points
}

func (t *CareerTotals) add(row DriverRaceResult) {
	t.Races++
	if row.Grid == 1 {
		t.Poles++
	}
	if row.HeldFastestLap {
		t.FastestLaps++
	}
	if !pointsScoring(row.Status) {
		return
	}
	position := row.FinalPosition()
	switch {
	case position == 1:
		t.Wins++
		t.Podiums++
	case position >= 2 && position <= 3:
		t.Podiums++
	}
	t.Points += ResultPoints(row)
	if position > 0 && (t.BestFinish == 0 || position < t.BestFinish) {
		t.BestFinish = position
	}
}

// BuildDriverProfile totals rows by career, season (newest first) and track
// (alphabetical).
func BuildDriverProfile(rows []DriverRaceResult) DriverProfile {
	out := DriverProfile{Seasons: []SeasonTotals{}, Tracks: []TrackTotals{}}
	if len(rows) == 0 {
		return out
	}
	out.Driver = rows[0].Driver

	seasons := make(map[string]*SeasonTotals)
	tracks := make(map[string]*TrackTotals)
	for _, row := range rows {
		out.Career.add(row)

		s, ok := seasons[row.Season]
		if !ok {
			s = &SeasonTotals{Season: row.Season}
			seasons[row.Season] = s
		}
		s.add(row)
		if row.Team != "" && !contains(s.Teams, row.Team) {
			s.Teams = append(s.Teams, row.Team)
		}

		if row.Track != "" {
			t, ok := tracks[row.Track]
			if !ok {
				t = &TrackTotals{Track: row.Track}
				tracks[row.Track] = t
			}
			t.add(row)
		}
	}

	for _, s := range seasons {
		out.Seasons = append(out.Seasons, *s)
	}
	sort.Slice(out.Seasons, func(i, j int) bool {
		return seasonOrder(out.Seasons[i].Season) > seasonOrder(out.Seasons[j].Season)
	})
	for _, t := range tracks {
		out.Tracks = append(out.Tracks, *t)
	}
	sort.Slice(out.Tracks, func(i, j int) bool { return out.Tracks[i].Track < out.Tracks[j].Track })
	return out
}
