package stats

import (
	"math"
	"sort"
	"strings"
)

// DriverSlug lowercases a driver name and joins its words with '-'.
func DriverSlug(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), "-"))
}

// FastestLapEntry is one driver's best lap in a session.
type FastestLapEntry struct {
	Position int    `json:"position"`
	Driver   string `json:"driver"`
	Team     string `json:"team"`
	Lap      int    `json:"lap"`
	Time     string `json:"time"`
	TimeMs   int64  `json:"timeMs"`
	Gap      string `json:"gap"`
	Compound string `json:"tyreCompound"`
}

// bestLaps returns each driver's quickest positive lap in first-seen order.
// Equal times keep the earlier lap.
func bestLaps(laps []Lap) []Lap {
	var order []int64
	best := make(map[int64]Lap)
	for _, lap := range laps {
		if lap.LapTimeMs <= 0 {
			continue
		}
		cur, ok := best[lap.DriverID]
		if !ok {
			order = append(order, lap.DriverID)
		}
		if !ok || lap.LapTimeMs < cur.LapTimeMs {
			best[lap.DriverID] = lap
		}
	}
	out := make([]Lap, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	return out
}

// RankFastestLaps orders drivers by their best lap. Gaps are measured
// against the session's quickest lap.
func RankFastestLaps(laps []Lap) []FastestLapEntry {
	best := bestLaps(laps)
	sort.SliceStable(best, func(i, j int) bool {
		return best[i].LapTimeMs < best[j].LapTimeMs
	})
	out := make([]FastestLapEntry, 0, len(best))
	for i, lap := range best {
		gap := "Fastest"
		if i > 0 {
			gap = FormatGap(i+1, lap.LapTimeMs, best[0].LapTimeMs)
		}
		out = append(out, FastestLapEntry{
			Position: i + 1,
			Driver:   lap.Driver,
			Team:     lap.Team,
			Lap:      lap.LapNumber,
			Time:     FormatLapTime(lap.LapTimeMs),
			TimeMs:   lap.LapTimeMs,
			Gap:      gap,
			Compound: lap.TyreCompound,
		})
	}
	return out
}

// SessionStats aggregates every timed lap of a session.
type SessionStats struct {
	TotalLaps     int               `json:"totalLaps"`
	Drivers       int               `json:"drivers"`
	FastestLap    *TimedDriverRef   `json:"fastestLap"`
	AverageLap    string            `json:"averageLap"`
	CompoundUsage map[string]int    `json:"compoundUsage"`
	DriverStats   []DriverLapTotals `json:"driverStats"`
}

// DriverLapTotals summarizes one driver's laps.
type DriverLapTotals struct {
	Driver      string  `json:"driver"`
	Team        string  `json:"team"`
	Laps        int     `json:"laps"`
	BestLap     string  `json:"bestLap"`
	AverageLap  string  `json:"averageLap"`
	Consistency float64 `json:"consistency"`
}

// SummarizeSession counts laps and compounds and reports per-driver best and
// average times. Consistency is the standard deviation of a driver's laps in
// seconds. Drivers are ordered by best lap.
func SummarizeSession(laps []Lap) SessionStats {
	out := SessionStats{CompoundUsage: make(map[string]int), DriverStats: []DriverLapTotals{}}

	type tally struct {
		driver, team string
		times        []int64
		best         int64
	}
	var order []*tally
	byDriver := make(map[int64]*tally)
	var total int64
	for _, lap := range laps {
		if lap.LapTimeMs <= 0 {
			continue
		}
		out.TotalLaps++
		total += lap.LapTimeMs
		if lap.TyreCompound != "" {
			out.CompoundUsage[lap.TyreCompound]++
		}
		t, ok := byDriver[lap.DriverID]
		if !ok {
			t = &tally{driver: lap.Driver, team: lap.Team}
			byDriver[lap.DriverID] = t
			order = append(order, t)
		}
		t.times = append(t.times, lap.LapTimeMs)
		if t.best == 0 || lap.LapTimeMs < t.best {
			t.best = lap.LapTimeMs
		}
	}
	if out.TotalLaps == 0 {
		return out
	}
	out.Drivers = len(order)
	out.AverageLap = FormatLapTime(total / int64(out.TotalLaps))

	sort.SliceStable(order, func(i, j int) bool { return order[i].best < order[j].best })
	lead := order[0]
	out.FastestLap = &TimedDriverRef{Name: lead.driver, Team: lead.team, Time: FormatLapTime(lead.best)}
	for _, t := range order {
		mean, stddev := meanAndDeviation(t.times)
		out.DriverStats = append(out.DriverStats, DriverLapTotals{
			Driver:      t.driver,
			Team:        t.team,
			Laps:        len(t.times),
			BestLap:     FormatLapTime(t.best),
			AverageLap:  FormatLapTime(int64(math.Round(mean))),
			Consistency: math.Round(stddev) / 1000,
		})
	}
	return out
}

func meanAndDeviation(times []int64) (float64, float64) {
	var sum float64
	for _, t := range times {
		sum += float64(t)
	}
	mean := sum / float64(len(times))
	var sq float64
	for _, t := range times {
		d := float64(t) - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(times)))
}

// DominanceShare counts the laps on which a driver or team set the quickest
// time.
type DominanceShare struct {
	Name       string  `json:"name"`
	Laps       int     `json:"laps"`
	Percentage float64 `json:"percentage"`
}

// LapLeader names the quickest driver on one lap number.
type LapLeader struct {
	Lap    int    `json:"lap"`
	Driver string `json:"driver"`
	Team   string `json:"team"`
	Time   string `json:"time"`
}

// Dominance is the lap-by-lap pace picture of a session.
type Dominance struct {
	Laps    []LapLeader      `json:"laps"`
	Drivers []DominanceShare `json:"drivers"`
	Teams   []DominanceShare `json:"teams"`
}

// LapDominance finds the quickest driver on every lap number and totals those
// laps per driver and team. Equal times go to the first lap seen.
func LapDominance(laps []Lap) Dominance {
	leaders := make(map[int]Lap)
	for _, lap := range laps {
		if lap.LapTimeMs <= 0 {
			continue
		}
		if cur, ok := leaders[lap.LapNumber]; !ok || lap.LapTimeMs < cur.LapTimeMs {
			leaders[lap.LapNumber] = lap
		}
	}
	numbers := make([]int, 0, len(leaders))
	for n := range leaders {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	out := Dominance{Laps: make([]LapLeader, 0, len(numbers))}
	drivers := make(map[string]int)
	teams := make(map[string]int)
	for _, n := range numbers {
		lap := leaders[n]
		out.Laps = append(out.Laps, LapLeader{
			Lap:    n,
			Driver: lap.Driver,
			Team:   lap.Team,
			Time:   FormatLapTime(lap.LapTimeMs),
		})
		drivers[lap.Driver]++
		teams[lap.Team]++
	}
	out.Drivers = shares(drivers, len(numbers))
	out.Teams = shares(teams, len(numbers))
	return out
}

func shares(counts map[string]int, total int) []DominanceShare {
	out := make([]DominanceShare, 0, len(counts))
	for name, n := range counts {
		out = append(out, DominanceShare{
			Name:       name,
			Laps:       n,
			Percentage: math.Round(float64(n)*1000/float64(total)) / 10,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Laps != out[j].Laps {
			return out[i].Laps > out[j].Laps
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// TraceLap is one lap in a driver trace.
type TraceLap struct {
	Lap         int    `json:"lap"`
	Time        string `json:"time"`
	TimeMs      int64  `json:"timeMs"`
	Compound    string `json:"tyreCompound"`
	DeltaToBest string `json:"deltaToBest"`
}

// DriverTrace is a single driver's laps in one session.
type DriverTrace struct {
	Driver  string     `json:"driver"`
	Team    string     `json:"team"`
	BestLap string     `json:"bestLap"`
	Laps    []TraceLap `json:"laps"`
}

// TraceDriver selects the timed laps of the driver whose DriverSlug equals
// slug. A positive lap restricts the trace to that lap number. The boolean
// is false when the driver has no matching laps.
func TraceDriver(laps []Lap, slug string, lap int) (DriverTrace, bool) {
	var own []Lap
	for _, l := range laps {
		if l.LapTimeMs > 0 && DriverSlug(l.Driver) == slug {
			own = append(own, l)
		}
	}
	if len(own) == 0 {
		return DriverTrace{}, false
	}
	sort.SliceStable(own, func(i, j int) bool { return own[i].LapNumber < own[j].LapNumber })
	best := own[0].LapTimeMs
	for _, l := range own {
		best = min(best, l.LapTimeMs)
	}

	out := DriverTrace{Driver: own[0].Driver, Team: own[0].Team, BestLap: FormatLapTime(best), Laps: []TraceLap{}}
	for _, l := range own {
		if lap > 0 && l.LapNumber != lap {
			continue
		}
		out.Laps = append(out.Laps, TraceLap{
			Lap:         l.LapNumber,
			Time:        FormatLapTime(l.LapTimeMs),
			TimeMs:      l.LapTimeMs,
			Compound:    l.TyreCompound,
			DeltaToBest: FormatGap(0, l.LapTimeMs, best),
		})
	}
	if len(out.Laps) == 0 {
		return DriverTrace{}, false
	}
	return out, true
}
