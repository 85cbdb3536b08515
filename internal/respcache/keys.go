package respcache

import (
	"strconv"
	"strings"
)

// Key joins a resource name and its parameters with ':'. Identical inputs
// always produce identical keys.
func Key(resource string, params ...string) string {
	var b strings.Builder
	b.WriteString(resource)
	for _, p := range params {
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}

// PatternFor builds a glob matching every key of resource whose leading
// parameters equal params. Empty params match any value.
func PatternFor(resource string, params ...string) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		if p == "" {
			p = "*"
		}
		parts = append(parts, p)
	}
	return Key(resource, parts...) + ":*"
}

// Resource names used as the first key segment.
const (
	ResourceSeasons   = "seasons"
	ResourceRaces     = "races"
	ResourceRaceInfo  = "raceinfo"
	ResourceLapData   = "lapdata"
	ResourceResults   = "results"
	ResourceStandings = "standings"
	ResourceTrack     = "track"
	ResourceLayout    = "layout"
	ResourceLineups   = "lineups"
	ResourceFastest   = "fastest"
	ResourceStats     = "stats"
	ResourceDominance = "dominance"
	ResourceTelemetry = "telemetry"
	ResourceDriver    = "driver"
)

func SeasonsKey() string { return Key(ResourceSeasons, "all") }

func RacesKey(season string) string { return Key(ResourceRaces, season) }

func RaceInfoKey(season, raceSlug string) string {
	return Key(ResourceRaceInfo, season, raceSlug)
}

func LapDataKey(season, raceSlug, session string) string {
	return Key(ResourceLapData, season, raceSlug, session)
}

func ResultsKey(season, raceSlug string) string {
	return Key(ResourceResults, season, raceSlug)
}

func StandingsKey(season string, limit int) string {
	return Key(ResourceStandings, season, strconv.Itoa(limit))
}

func TrackKey(slug string) string { return Key(ResourceTrack, slug) }

func LayoutKey(slug string) string { return Key(ResourceLayout, slug) }

func LineupsKey(season string) string { return Key(ResourceLineups, season) }

func FastestLapsKey(season, raceSlug, session string) string {
	return Key(ResourceFastest, season, raceSlug, session)
}

func SessionStatsKey(season, raceSlug, session string) string {
	return Key(ResourceStats, season, raceSlug, session)
}

func DominanceKey(season, raceSlug, session string) string {
	return Key(ResourceDominance, season, raceSlug, session)
}

// TelemetryKey uses "all" for lap when the whole session is requested.
func TelemetryKey(season, raceSlug, session, lap, driver string) string {
	if lap == "" {
		lap = "all"
	}
	return Key(ResourceTelemetry, season, raceSlug, session, lap, driver)
}

func DriverProfileKey(slug string) string { return Key(ResourceDriver, slug) }

// ResourceOf returns the first segment of key.
func ResourceOf(key string) string {
	resource, _, _ := strings.Cut(key, ":")
	return resource
}
