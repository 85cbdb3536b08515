package stats

// UnknownTeam labels drivers whose team cannot be resolved.
const UnknownTeam = "Unknown Team"

// Team is a constructor row.
type Team struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Entrant ties a driver to the team they raced for in one race. Stints holds
// the raw stint string recorded with the result, if any.
type Entrant struct {
	DriverID int64
	Driver   string
	TeamID   int64
	Stints   string
}

// Lap is a single timed lap.
type Lap struct {
	DriverID     int64  `json:"driver_id"`
	Driver       string `json:"driver"`
	LapNumber    int    `json:"lap_number"`
	LapTimeMs    int64  `json:"lap_time_int"`
	TyreCompound string `json:"tyre_compound"`
	TeamID       *int64 `json:"team_id"`
	Team         string `json:"team"`
}

// LapDriver is a driver in the lap data response.
type LapDriver struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	TeamID int64  `json:"team_id"`
	Team   string `json:"team"`
}

// LapData is the lap chart payload for one race.
type LapData struct {
	RaceID    int64             `json:"raceId"`
	Drivers   []LapDriver       `json:"drivers"`
	Teams     []Team            `json:"teams"`
	LapData   []Lap             `json:"lapData"`
	StintData map[string]string `json:"stintData"`
}

// BuildLapData joins laps with the race's entrants and drops laps without a
// positive time.
func BuildLapData(raceID int64, teams []Team, entrants []Entrant, laps []Lap) LapData {
	teamNames := make(map[int64]string, len(teams))
	for _, t := range teams {
		teamNames[t.ID] = t.Name
	}
	teamName := func(id int64) string {
		if name, ok := teamNames[id]; ok {
			return name
		}
		return UnknownTeam
	}

	out := LapData{
		RaceID:    raceID,
		Drivers:   make([]LapDriver, 0, len(entrants)),
		Teams:     teams,
		LapData:   make([]Lap, 0, len(laps)),
		StintData: make(map[string]string),
	}
	if out.Teams == nil {
		out.Teams = []Team{}
	}

	byDriver := make(map[int64]Entrant, len(entrants))
	for _, e := range entrants {
		if _, seen := byDriver[e.DriverID]; seen {
			continue
		}
		byDriver[e.DriverID] = e
		out.Drivers = append(out.Drivers, LapDriver{
			ID:     e.DriverID,
			Name:   e.Driver,
			TeamID: e.TeamID,
			Team:   teamName(e.TeamID),
		})
		if e.Stints != "" {
			out.StintData[e.Driver] = e.Stints
		}
	}

	for _, lap := range laps {
		if lap.LapTimeMs <= 0 {
			continue
		}
		if e, ok := byDriver[lap.DriverID]; ok {
			teamID := e.TeamID
			lap.TeamID = &teamID
			lap.Team = teamName(e.TeamID)
		} else {
			lap.TeamID = nil
			lap.Team = UnknownTeam
		}
		out.LapData = append(out.LapData, lap)
	}
	return out
}
