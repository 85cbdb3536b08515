package stats

// OverallSeason is the pseudo season that aggregates every season.
const OverallSeason = "overall"

// Season is a season row.
type Season struct {
	Season string
	Game   string
	Dates  string
}

// SeasonInfo describes a season for display.
type SeasonInfo struct {
	Season      string `json:"season"`
	GameVersion string `json:"gameVersion"`
	Status      string `json:"status"`
	Dates       string `json:"dates,omitempty"`
	IsOverall   bool   `json:"isOverall"`
}

// OverallSeasonInfo describes the all-time pseudo season.
func OverallSeasonInfo() SeasonInfo {
	return SeasonInfo{
		Season:      OverallSeason,
		GameVersion: "Multiple",
		Status:      "All-Time",
		IsOverall:   true,
	}
}

// DescribeSeason builds the display info for a stored season and its
// classified status.
func DescribeSeason(s Season, status string) SeasonInfo {
	game := s.Game
	if game == "" {
		game = "Unknown"
	}
	return SeasonInfo{
		Season:      s.Season,
		GameVersion: game,
		Status:      status,
		Dates:       s.Dates,
	}
}

// Lineup pairs a driver with a team for a season.
type Lineup struct {
	ID     int64  `json:"id"`
	Driver string `json:"driver"`
	Team   string `json:"team"`
}
