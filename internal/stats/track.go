package stats

import (
	"sort"
	"strconv"
)

// TrackInfo is the static description of a circuit.
type TrackInfo struct {
	Slug           string  `json:"slug,omitempty"`
	Name           string  `json:"name"`
	Country        string  `json:"country"`
	LengthKm       float64 `json:"length"`
	Turns          int     `json:"turns"`
	FirstGrandPrix string  `json:"first_grand_prix"`
	Laps           int     `json:"laps"`
}

// SeasonRaceResult tags a race result with the season it belongs to.
type SeasonRaceResult struct {
	Season string
	RaceResult
}

// FastestLapRecord names the holder of a race's fastest lap.
type FastestLapRecord struct {
	Driver string `json:"driver"`
	Time   string `json:"time"`
	Season string `json:"season"`
	Team   string `json:"team"`
}

// TrackHistoryEntry summarizes one season's race at a circuit.
type TrackHistoryEntry struct {
	Season         string            `json:"season"`
	Winner         string            `json:"winner"`
	Team           string            `json:"team"`
	Podium         []string          `json:"podium"`
	FastestLap     string            `json:"fastestLap"`
	Pole           string            `json:"pole"`
	FastestLapData *FastestLapRecord `json:"fastestLapData"`
}

// TrackDetail is the response for a single circuit.
type TrackDetail struct {
	TrackInfo         TrackInfo           `json:"trackInfo"`
	HistoricalResults []TrackHistoryEntry `json:"historicalResults"`
}

// TrackHistory groups results by season, newest season first. Seasons
// without a classified winner are skipped.
func TrackHistory(rows []SeasonRaceResult) []TrackHistoryEntry {
	bySeason := make(map[string][]RaceResult)
	var seasons []string
	for _, row := range rows {
		if _, ok := bySeason[row.Season]; !ok {
			seasons = append(seasons, row.Season)
		}
		bySeason[row.Season] = append(bySeason[row.Season], row.RaceResult)
	}
	sort.SliceStable(seasons, func(i, j int) bool {
		return seasonOrder(seasons[i]) > seasonOrder(seasons[j])
	})

	out := make([]TrackHistoryEntry, 0, len(seasons))
	for _, season := range seasons {
		results := bySeason[season]
		summary := SummarizeRace(results)
		if summary.Winner == nil {
			continue
		}
		entry := TrackHistoryEntry{
			Season:     season,
			Winner:     summary.Winner.Name,
			Team:       orNA(summary.Winner.Team),
			Podium:     podium(results),
			FastestLap: "N/A",
			Pole:       "N/A",
		}
		if summary.PoleSitter != nil {
			entry.Pole = summary.PoleSitter.Name
		}
		if fl := summary.FastestLap; fl != nil {
			var ms int64
			for _, r := range results {
				if r.Driver == fl.Name && r.FastestLapMs > 0 {
					ms = r.FastestLapMs
					break
				}
			}
			lapTime := FormatFastestLap(ms)
			entry.FastestLap = fl.Name + " (" + lapTime + ")"
			entry.FastestLapData = &FastestLapRecord{
				Driver: fl.Name,
				Time:   lapTime,
				Season: season,
				Team:   entry.Team,
			}
		}
		out = append(out, entry)
	}
	return out
}

func podium(results []RaceResult) []string {
	ordered := make([]RaceResult, 0, 3)
	for _, r := range results {
		if p := r.FinalPosition(); p >= 1 && p <= 3 {
			ordered = append(ordered, r)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].FinalPosition() < ordered[j].FinalPosition()
	})
	names := make([]string, 0, len(ordered))
	for _, r := range ordered {
		names = append(names, r.Driver)
	}
	return names
}

func seasonOrder(season string) int {
	n, err := strconv.Atoi(season)
	if err != nil {
		return -1
	}
	return n
}

func orNA(value string) string {
	if value == "" {
		return "N/A"
	}
	return value
}
