package stats

import (
	"math"
	"sort"
)

// PointsTable awards points to the top ten finishers.
var PointsTable = [...]int{25, 18, 15, 12, 10, 8, 6, 4, 2, 1}

// FastestLapPointUntil is the first season that no longer awards a bonus
// point for the fastest lap.
const FastestLapPointUntil = 12

// DefaultStandingsLimit caps standings responses when no limit is given.
const DefaultStandingsLimit = 10

// MaxStandingsLimit bounds the limit a client may request.
const MaxStandingsLimit = 100

// MaxPointsPerRace is a win plus the fastest lap bonus.
const MaxPointsPerRace = 26

// Standing is one row of the drivers' championship.
type Standing struct {
	Position int    `json:"position"`
	Name     string `json:"name"`
	Team     string `json:"team"`
	Points   int    `json:"points"`
}

// PointsFor returns the points earned by a finishing position.
func PointsFor(position int) int {
	if position <= 0 || position > len(PointsTable) {
		return 0
	}
	return PointsTable[position-1]
}

// ComputeStandings totals points across every race in results. fastestLaps
// maps a race id to the drivers holding its fastest lap. Ties keep the order
// in which drivers first appear. A non-positive limit returns every driver.
func ComputeStandings(results []RaceResult, fastestLaps map[int64][]string, season, limit int) []Standing {
	type tally struct {
		name   string
		team   string
		points int
	}
	var order []*tally
	byDriver := make(map[string]*tally)

	for _, row := range results {
		position := row.FinalPosition()
		points := PointsFor(position)
		if season < FastestLapPointUntil && points > 0 && row.FastestLapMs > 0 && contains(fastestLaps[row.RaceID], row.Driver) {
			points++
		}
		t, ok := byDriver[row.Driver]
		if !ok {
			t = &tally{name: row.Driver, team: row.Team}
			byDriver[row.Driver] = t
			order = append(order, t)
		}
		t.points += points
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].points > order[j].points
	})
	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}
	out := make([]Standing, 0, len(order))
	for i, t := range order {
		out = append(out, Standing{Position: i + 1, Name: t.name, Team: t.team, Points: t.points})
	}
	return out
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// Outlook describes whether a driver can still take the title.
type Outlook struct {
	CanMathematicallyWin    bool    `json:"canMathematicallyWin"`
	MaxPossiblePoints       int     `json:"maxPossiblePoints"`
	PointsGap               int     `json:"pointsGap"`
	PointsNeededToGuarantee *int    `json:"pointsNeededToGuarantee"`
	ChampionshipOdds        int     `json:"championshipOdds"`
	Status                  string  `json:"status"`
	PointsNeededPerRace     float64 `json:"pointsNeededPerRace,omitempty"`
}

// StandingOutlook pairs a standing with its championship outlook.
type StandingOutlook struct {
	Standing
	ChampionshipStatus Outlook `json:"championshipStatus"`
}

// Championship status labels.
const (
	StatusEliminated         = "Eliminated"
	StatusLeading            = "Leading"
	StatusStrongContender    = "Strong Contender"
	StatusInContention       = "In Contention"
	StatusOutsideChance      = "Outside Chance"
	StatusMathematicalChance = "Mathematical Chance"
)

// ChampionshipOutlook estimates title chances for standings ordered by
// points. With no races left only the leader can still win.
func ChampionshipOutlook(standings []Standing, remainingRaces, maxPerRace int) []StandingOutlook {
	if len(standings) == 0 {
		return []StandingOutlook{}
	}
	if remainingRaces < 0 {
		remainingRaces = 0
	}
	if maxPerRace <= 0 {
		maxPerRace = MaxPointsPerRace
	}
	maxRemaining := remainingRaces * maxPerRace
	leader := standings[0].Points

	out := make([]StandingOutlook, 0, len(standings))
	for _, s := range standings {
		gap := leader - s.Points
		maxPossible := s.Points + maxRemaining
		canWin := maxPossible > leader || (remainingRaces == 0 && gap == 0)

		o := Outlook{
			CanMathematicallyWin: canWin,
			MaxPossiblePoints:    maxPossible,
			PointsGap:            gap,
			Status:               championshipStatus(canWin, gap),
		}
		if canWin {
			needed := leader + maxRemaining - s.Points + 1
			if needed < 0 {
				needed = 0
			}
			o.PointsNeededToGuarantee = &needed
			o.ChampionshipOdds = int(math.Round(championshipOdds(gap, remainingRaces, maxRemaining)))
			if remainingRaces > 0 {
				o.PointsNeededPerRace = float64(gap+1) / float64(remainingRaces)
			}
		}
		out = append(out, StandingOutlook{Standing: s, ChampionshipStatus: o})
	}
	return out
}

func championshipOdds(gap, remaining, maxRemaining int) float64 {
	if remaining == 0 {
		if gap == 0 {
			return 100
		}
		return 0
	}
	if gap == 0 {
		return math.Max(55, 75-float64(remaining)*1.2)
	}

	perRace := float64(gap+1) / float64(remaining)
	var base float64
	switch {
	case perRace <= 2:
		base = 45
	case perRace <= 4:
		base = 35 - (perRace-2)*8
	case perRace <= 8:
		base = 19 - (perRace-4)*3
	case perRace <= 13:
		base = 7 - (perRace - 8)
	case perRace <= 20:
		base = 2 - (perRace-13)*0.2
	default:
		base = 0.5
	}

	gapShare := float64(gap) / float64(maxRemaining)
	seasonFactor := math.Min(1.3, 0.8+float64(remaining)/20)
	gapFactor := math.Max(0.7, 1.2-gapShare*2)
	return math.Min(48, math.Max(0.1, base*seasonFactor*gapFactor))
}

func championshipStatus(canWin bool, gap int) string {
	switch {
	case !canWin:
		return StatusEliminated
	case gap == 0:
		return StatusLeading
	case gap <= 10:
		return StatusStrongContender
	case gap <= 25:
		return StatusInContention
	case gap <= 50:
		return StatusOutsideChance
	default:
		return StatusMathematicalChance
	}
}
