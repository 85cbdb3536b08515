package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/stretchr/testify/require"

	"github.com/l0p7/pitwall/internal/api"
	"github.com/l0p7/pitwall/internal/layouts"
	"github.com/l0p7/pitwall/internal/respcache"
	"github.com/l0p7/pitwall/internal/stats"
	"github.com/l0p7/pitwall/internal/store"
)

type fakeData struct {
	err        error
	pingErr    error
	seasonHits atomic.Int32
	schedule   []stats.ScheduleEntry
	results    []stats.RaceResult
	total      int
	completed  int
	lineups    []stats.Lineup
	entrants   []stats.Entrant
	laps       []stats.Lap
	careers    map[string][]stats.DriverRaceResult
}

func (f *fakeData) Ping(context.Context) error { return f.pingErr }

func (f *fakeData) Seasons(context.Context) ([]string, error) {
	f.seasonHits.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return []string{"12", "11"}, nil
}

func (f *fakeData) Season(_ context.Context, season string) (stats.Season, error) {
	if season == "99" {
		return stats.Season{}, store.ErrNotFound
	}
	return stats.Season{Season: season, Game: "F1 24"}, f.err
}

func (f *fakeData) SeasonProgress(context.Context, string) (int, int, error) {
	return f.total, f.completed, f.err
}

func (f *fakeData) Races(context.Context, string) ([]string, error) {
	return []string{"bahrain", "spa"}, f.err
}

func (f *fakeData) RaceID(_ context.Context, _ string, track string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if track != "bahrain" {
		return 0, store.ErrNotFound
	}
	return 1, nil
}

func (f *fakeData) RaceResults(context.Context, int64) ([]stats.RaceResult, error) {
	return f.results, f.err
}

func (f *fakeData) SeasonResults(context.Context, string) ([]stats.RaceResult, error) {
	return f.results, f.err
}

func (f *fakeData) RaceEntrants(context.Context, int64) ([]stats.Entrant, error) {
	return f.entrants, f.err
}

func (f *fakeData) Laps(context.Context, int64, string) ([]stats.Lap, error) {
	return f.laps, f.err
}

func (f *fakeData) Schedule(context.Context, string) ([]stats.ScheduleEntry, error) {
	return f.schedule, f.err
}

func (f *fakeData) FullSchedule(context.Context) ([]stats.ScheduleEntry, error) {
	return f.schedule, f.err
}

func (f *fakeData) Tracks(context.Context) ([]stats.TrackInfo, error) {
	return []stats.TrackInfo{{Slug: "bahrain", Name: "Bahrain"}}, f.err
}

func (f *fakeData) Track(_ context.Context, slug string) (stats.TrackInfo, error) {
	if slug != "bahrain" {
		return stats.TrackInfo{}, store.ErrNotFound
	}
	return stats.TrackInfo{Name: "Bahrain", Country: "Bahrain", LengthKm: 5.412, Turns: 15}, f.err
}

func (f *fakeData) TrackResults(context.Context, string) ([]stats.SeasonRaceResult, error) {
	return nil, f.err
}

func (f *fakeData) DriverResults(_ context.Context, slug string) ([]stats.DriverRaceResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	rows, ok := f.careers[slug]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rows, nil
}

func (f *fakeData) Drivers(context.Context) ([]string, error) {
	return []string{"Alpha", "Bravo"}, f.err
}

func (f *fakeData) Teams(context.Context) ([]stats.Team, error) {
	return []stats.Team{{ID: 1, Name: "Red"}, {ID: 2, Name: "Blue"}}, f.err
}

func (f *fakeData) Lineups(context.Context, string) ([]stats.Lineup, error) {
	return f.lineups, f.err
}

func (f *fakeData) AddLineup(_ context.Context, _ string, driver, team string) (stats.Lineup, error) {
	lineup := stats.Lineup{ID: int64(len(f.lineups) + 1), Driver: driver, Team: team}
	f.lineups = append(f.lineups, lineup)
	return lineup, f.err
}

func (f *fakeData) DeleteLineup(_ context.Context, id int64) error {
	for i, l := range f.lineups {
		if l.ID == id {
			f.lineups = append(f.lineups[:i], f.lineups[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

type fixture struct {
	data   *fakeData
	cache  respcache.Backend
	expect *httpexpect.Expect
}

func newFixture(t *testing.T, mutate func(*api.Config)) *fixture {
	t.Helper()
	data := &fakeData{total: 5, completed: 1}
	backend := respcache.NewMemory()
	cfg := api.Config{
		Data:          data,
		Cache:         respcache.NewOrchestrator(respcache.OrchestratorConfig{Store: backend}),
		Durations:     respcache.DefaultDurations(),
		CurrentSeason: 12,
		Now:           func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) },
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv := httptest.NewServer(api.New(cfg).Routes())
	t.Cleanup(srv.Close)
	return &fixture{
		data:  data,
		cache: backend,
		expect: httpexpect.WithConfig(httpexpect.Config{
			BaseURL:  srv.URL,
			Reporter: httpexpect.NewRequireReporter(t),
			Client:   srv.Client(),
		}),
	}
}

func TestCachedResourceHitsAfterMiss(t *testing.T) {
	f := newFixture(t, nil)

	first := f.expect.GET("/api/seasons").Expect().Status(http.StatusOK)
	first.Header("X-Cache").IsEqual("MISS")
	first.Header("X-Cache-Key").IsEqual("seasons:all")
	first.Header("Cache-Control").IsEqual("public, max-age=86400")
	first.JSON().Array().ContainsOnly("12", "11")

	second := f.expect.GET("/api/seasons").Expect().Status(http.StatusOK)
	second.Header("X-Cache").IsEqual("HIT")
	second.JSON().Array().ContainsOnly("12", "11")

	require.Equal(t, int32(1), f.data.seasonHits.Load())
}

func TestParameterValidation(t *testing.T) {
	f := newFixture(t, nil)

	f.expect.GET("/api/race-info").WithQuery("season", "12").
		Expect().Status(http.StatusBadRequest).
		JSON().Object().Value("error").String().Contains("raceSlug")

	f.expect.GET("/api/races").WithQuery("season", "12:*").
		Expect().Status(http.StatusBadRequest)

	f.expect.GET("/api/standings").WithQuery("season", "twelve").
		Expect().Status(http.StatusBadRequest)

	f.expect.GET("/api/standings").WithQuery("season", "12").WithQuery("limit", "-1").
		Expect().Status(http.StatusBadRequest)
}

func TestNotFoundMapping(t *testing.T) {
	f := newFixture(t, nil)

	f.expect.GET("/api/race-info").WithQuery("season", "12").WithQuery("raceSlug", "monza").
		Expect().Status(http.StatusNotFound).
		JSON().Object().IsEqual(map[string]any{"error": "not found"})

	// Known race without results.
	f.expect.GET("/api/race-info").WithQuery("season", "12").WithQuery("raceSlug", "bahrain").
		Expect().Status(http.StatusNotFound)

	f.expect.GET("/api/tracks/monza").Expect().Status(http.StatusNotFound)
	f.expect.GET("/api/seasons/99").Expect().Status(http.StatusNotFound)

	keys, err := f.cache.Keys(context.Background(), "*")
	require.NoError(t, err)
	require.Empty(t, keys, "failed computations must not be cached")
}

func TestDataFailureIsInternalError(t *testing.T) {
	f := newFixture(t, nil)
	f.data.err = errors.New("connection reset")

	f.expect.GET("/api/seasons").Expect().
		Status(http.StatusInternalServerError).
		JSON().Object().IsEqual(map[string]any{"error": "internal server error"})
}

func TestRaceInfoSummary(t *testing.T) {
	f := newFixture(t, nil)
	f.data.results = []stats.RaceResult{
		{RaceID: 1, Position: 1, Grid: 2, Driver: "Alpha", Team: "Red", TimeMs: 5400000, FastestLapMs: 92000},
		{RaceID: 1, Position: 2, Grid: 1, Driver: "Bravo", Team: "Blue", TimeMs: 5405000, FastestLapMs: 91500},
	}

	obj := f.expect.GET("/api/race-info").WithQuery("season", "12").WithQuery("raceSlug", "bahrain").
		Expect().Status(http.StatusOK).JSON().Object()
	obj.Value("winner").Object().Value("name").IsEqual("Alpha")
	obj.Value("poleSitter").Object().Value("name").IsEqual("Bravo")
	obj.Value("fastestLap").Object().Value("name").IsEqual("Bravo")

	results := f.expect.GET("/api/results/12/bahrain").Expect().Status(http.StatusOK).JSON().Array()
	results.Length().IsEqual(2)
	results.Value(0).Object().Value("gap").IsEqual("Winner")
	results.Value(1).Object().Value("gap").IsEqual("+5.000")
}

func TestStandingsWithOutlook(t *testing.T) {
	f := newFixture(t, nil)
	f.data.results = []stats.RaceResult{
		{RaceID: 1, Position: 1, Driver: "Alpha", Team: "Red", FastestLapMs: 92000},
		{RaceID: 1, Position: 2, Driver: "Bravo", Team: "Blue", FastestLapMs: 91500},
		{RaceID: 1, Position: 3, Driver: "Charlie", Team: "Red", FastestLapMs: 93000},
	}

	resp := f.expect.GET("/api/standings").WithQuery("season", "12").WithQuery("limit", "2").Expect().Status(http.StatusOK)
	resp.Header("X-Cache-Key").IsEqual("standings:12:2")
	obj := resp.JSON().Object()
	obj.Value("season").IsEqual("12")
	obj.Value("remainingRaces").IsEqual(4)

	drivers := obj.Value("drivers").Array()
	drivers.Length().IsEqual(2)
	leader := drivers.Value(0).Object()
	leader.Value("name").IsEqual("Alpha")
	leader.Value("points").IsEqual(25)
	leader.Value("championshipStatus").Object().Value("status").IsEqual(stats.StatusLeading)
	drivers.Value(1).Object().Value("points").IsEqual(18)
}

func TestStandingsLimitIsBounded(t *testing.T) {
	f := newFixture(t, nil)

	f.expect.GET("/api/standings").WithQuery("season", "12").WithQuery("limit", "500").
		Expect().Status(http.StatusOK).
		Header("X-Cache-Key").IsEqual("standings:12:100")

	keys, err := f.cache.Keys(context.Background(), "standings:*")
	require.NoError(t, err)
	require.Equal(t, []string{"standings:12:100"}, keys)
}

func TestSeasonInfoClassification(t *testing.T) {
	f := newFixture(t, nil)

	f.expect.GET("/api/seasons/11").Expect().Status(http.StatusOK).
		JSON().Object().Value("status").IsEqual("Finished")
	f.expect.GET("/api/seasons/12").Expect().Status(http.StatusOK).
		JSON().Object().Value("status").IsEqual("Active")
	f.expect.GET("/api/seasons/13").Expect().Status(http.StatusOK).
		JSON().Object().Value("status").IsEqual("Upcoming")
	f.expect.GET("/api/seasons/overall").Expect().Status(http.StatusOK).
		JSON().Object().Value("isOverall").IsEqual(true)
	f.expect.GET("/api/seasons/latest").Expect().Status(http.StatusBadRequest)
}

func TestScheduleLabels(t *testing.T) {
	f := newFixture(t, nil)
	f.data.schedule = []stats.ScheduleEntry{
		{ID: 1, Season: "12", Track: "bahrain", Date: "2024-03-01", Time: "19:00"},
		{ID: 2, Season: "12", Track: "jeddah", Date: "2024-03-15", Time: "19:00"},
		{ID: 3, Season: "12", Track: "melbourne", Date: "2024-03-29", Time: "19:00"},
	}

	entries := f.expect.GET("/api/schedule").Expect().Status(http.StatusOK).
		JSON().Object().Value("schedule").Array()
	entries.Value(0).Object().Value("status").IsEqual(stats.RaceCompleted)
	entries.Value(1).Object().Value("status").IsEqual(stats.RaceNext)
	entries.Value(2).Object().Value("status").IsEqual(stats.RaceUpcoming)

	f.expect.GET("/api/schedule/next").Expect().Status(http.StatusOK).
		JSON().Object().Value("track").IsEqual("jeddah")
	f.expect.GET("/api/schedule/last").Expect().Status(http.StatusOK).
		JSON().Object().Value("track").IsEqual("bahrain")

	f.data.schedule = nil
	f.expect.GET("/api/schedule/next").Expect().Status(http.StatusNotFound)
}

func TestScheduleSingleRace(t *testing.T) {
	f := newFixture(t, nil)
	f.data.schedule = []stats.ScheduleEntry{
		{ID: 1, Season: "12", Track: "bahrain", Date: "2024-03-01", Time: "18:00:00"},
		{ID: 2, Season: "12", Track: "jeddah", Date: "2024-03-15"},
	}

	f.expect.GET("/api/schedule").WithQuery("season", "12").WithQuery("track", "bahrain").
		Expect().Status(http.StatusOK).
		JSON().Object().IsEqual(map[string]any{"date": "2024-03-01", "time": "18:00:00"})
	f.expect.GET("/api/schedule").WithQuery("season", "12").WithQuery("track", "jeddah").
		Expect().Status(http.StatusOK).
		JSON().Object().IsEqual(map[string]any{"date": "2024-03-15", "time": "19:00:00"})
	f.expect.GET("/api/schedule").WithQuery("season", "12").WithQuery("track", "monza").
		Expect().Status(http.StatusOK).
		JSON().Object().IsEqual(map[string]any{"date": "TBD", "time": "19:00:00"})

	f.expect.GET("/api/schedule").WithQuery("track", "bahrain").
		Expect().Status(http.StatusBadRequest)
}

func TestTrackLayouts(t *testing.T) {
	catalog := layouts.NewCatalog("../../examples/layouts")
	_, err := catalog.Load()
	require.NoError(t, err)
	f := newFixture(t, func(cfg *api.Config) { cfg.Layouts = catalog })

	resp := f.expect.GET("/api/track-layouts/bahrain").Expect().Status(http.StatusOK)
	resp.Header("X-Cache").IsEqual("MISS")
	resp.JSON().Object().Value("circuit").IsEqual("bahrain")

	f.expect.GET("/api/track-layouts/monaco").Expect().Status(http.StatusNotFound)
}

func TestTrackLayoutReloadInvalidatesAnyCase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spa.yaml")
	write := func(name string) {
		t.Helper()
		doc := "circuit: spa\nname: " + name + "\nlengthKm: 7.004\npath:\n  - {x: 10, y: 20}\n  - {x: 300, y: 40}\n"
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	}
	write("Spa-Francorchamps")
	catalog := layouts.NewCatalog(dir)
	_, err := catalog.Load()
	require.NoError(t, err)
	f := newFixture(t, func(cfg *api.Config) { cfg.Layouts = catalog })

	first := f.expect.GET("/api/track-layouts/Spa").Expect().Status(http.StatusOK)
	first.Header("X-Cache").IsEqual("MISS")
	first.Header("X-Cache-Key").IsEqual("layout:spa")
	f.expect.GET("/api/track-layouts/SPA").Expect().Status(http.StatusOK).
		Header("X-Cache").IsEqual("HIT")

	write("Circuit de Spa-Francorchamps")
	changed, err := catalog.Load()
	require.NoError(t, err)
	require.Equal(t, []string{"spa"}, changed)
	for _, slug := range changed {
		require.NoError(t, f.cache.Delete(context.Background(), respcache.LayoutKey(slug)))
	}

	again := f.expect.GET("/api/track-layouts/Spa").Expect().Status(http.StatusOK)
	again.Header("X-Cache").IsEqual("MISS")
	again.JSON().Object().Value("name").IsEqual("Circuit de Spa-Francorchamps")
}

func TestTrackLayoutsUnconfigured(t *testing.T) {
	f := newFixture(t, nil)
	f.expect.GET("/api/track-layouts/bahrain").Expect().Status(http.StatusNotFound)
}

func withSession(f *fixture) {
	f.data.entrants = []stats.Entrant{
		{DriverID: 1, Driver: "Alpha", TeamID: 1},
		{DriverID: 2, Driver: "Bravo Charlie", TeamID: 2},
	}
	f.data.laps = []stats.Lap{
		{DriverID: 1, Driver: "Alpha", LapNumber: 1, LapTimeMs: 92000, TyreCompound: "M"},
		{DriverID: 1, Driver: "Alpha", LapNumber: 2, LapTimeMs: 91000, TyreCompound: "M"},
		{DriverID: 2, Driver: "Bravo Charlie", LapNumber: 1, LapTimeMs: 91500, TyreCompound: "S"},
		{DriverID: 2, Driver: "Bravo Charlie", LapNumber: 2, LapTimeMs: 91800, TyreCompound: "S"},
	}
}

func TestFastestLaps(t *testing.T) {
	f := newFixture(t, nil)
	withSession(f)

	resp := f.expect.GET("/api/fastest-laps").WithQuery("season", "12").WithQuery("raceSlug", "bahrain").
		Expect().Status(http.StatusOK)
	resp.Header("X-Cache").IsEqual("MISS")
	resp.Header("X-Cache-Key").IsEqual("fastest:12:bahrain:race")
	resp.Header("Cache-Control").IsEqual("public, max-age=43200")
	laps := resp.JSON().Object().Value("fastestLaps").Array()
	laps.Length().IsEqual(2)
	laps.Value(0).Object().Value("driver").IsEqual("Alpha")
	laps.Value(0).Object().Value("team").IsEqual("Red")
	laps.Value(1).Object().Value("gap").IsEqual("+0.500")

	f.expect.GET("/api/fastest-laps").WithQuery("season", "12").WithQuery("raceSlug", "bahrain").
		Expect().Status(http.StatusOK).Header("X-Cache").IsEqual("HIT")
	f.expect.GET("/api/fastest-laps").WithQuery("season", "12").WithQuery("raceSlug", "monza").
		Expect().Status(http.StatusNotFound)
}

func TestSessionStatsAndDominance(t *testing.T) {
	f := newFixture(t, nil)
	withSession(f)

	statsResp := f.expect.GET("/api/session-stats").
		WithQuery("season", "12").WithQuery("raceSlug", "bahrain").WithQuery("session", "qualifying").
		Expect().Status(http.StatusOK)
	statsResp.Header("X-Cache-Key").IsEqual("stats:12:bahrain:qualifying")
	statsResp.Header("Cache-Control").IsEqual("public, max-age=21600")
	obj := statsResp.JSON().Object()
	obj.Value("totalLaps").IsEqual(4)
	obj.Value("fastestLap").Object().Value("name").IsEqual("Alpha")

	dominance := f.expect.GET("/api/track-dominance").WithQuery("season", "12").WithQuery("raceSlug", "bahrain").
		Expect().Status(http.StatusOK)
	dominance.Header("X-Cache-Key").IsEqual("dominance:12:bahrain:race")
	teams := dominance.JSON().Object().Value("teams").Array()
	teams.Length().IsEqual(2)
	teams.Value(0).Object().Value("percentage").IsEqual(50)

	f.data.laps = nil
	f.expect.GET("/api/track-dominance").WithQuery("season", "12").WithQuery("raceSlug", "bahrain").WithQuery("session", "sprint").
		Expect().Status(http.StatusNotFound)
}

func TestTelemetryTrace(t *testing.T) {
	f := newFixture(t, nil)
	withSession(f)

	resp := f.expect.GET("/api/telemetry").
		WithQuery("season", "12").WithQuery("raceSlug", "bahrain").WithQuery("driver", "Bravo-Charlie").
		Expect().Status(http.StatusOK)
	resp.Header("X-Cache-Key").IsEqual("telemetry:12:bahrain:race:all:bravo-charlie")
	trace := resp.JSON().Object()
	trace.Value("driver").IsEqual("Bravo Charlie")
	trace.Value("laps").Array().Length().IsEqual(2)

	f.expect.GET("/api/telemetry").
		WithQuery("season", "12").WithQuery("raceSlug", "bahrain").WithQuery("driver", "alpha").WithQuery("lap", "2").
		Expect().Status(http.StatusOK).
		Header("X-Cache-Key").IsEqual("telemetry:12:bahrain:race:2:alpha")

	f.expect.GET("/api/telemetry").WithQuery("season", "12").WithQuery("raceSlug", "bahrain").
		Expect().Status(http.StatusBadRequest)
	f.expect.GET("/api/telemetry").
		WithQuery("season", "12").WithQuery("raceSlug", "bahrain").WithQuery("driver", "delta").
		Expect().Status(http.StatusNotFound)
}

func TestDriverProfile(t *testing.T) {
	f := newFixture(t, nil)
	f.data.careers = map[string][]stats.DriverRaceResult{
		"bravo-charlie": {
			{Season: "11", Track: "Bahrain", HeldFastestLap: true, RaceResult: stats.RaceResult{Position: 1, Grid: 1, Driver: "Bravo Charlie", Team: "Blue"}},
			{Season: "12", Track: "Jeddah", RaceResult: stats.RaceResult{Position: 3, Grid: 4, Driver: "Bravo Charlie", Team: "Blue"}},
		},
	}

	resp := f.expect.GET("/api/drivers/Bravo-Charlie").Expect().Status(http.StatusOK)
	resp.Header("X-Cache-Key").IsEqual("driver:bravo-charlie")
	profile := resp.JSON().Object()
	profile.Value("driverName").IsEqual("Bravo Charlie")
	career := profile.Value("career").Object()
	career.Value("wins").IsEqual(1)
	career.Value("podiums").IsEqual(2)
	career.Value("points").IsEqual(26 + 15)
	profile.Value("seasons").Array().Value(0).Object().Value("season").IsEqual("12")

	f.expect.GET("/api/drivers/nobody").Expect().Status(http.StatusNotFound)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	f := newFixture(t, func(cfg *api.Config) { cfg.AdminToken = "s3cret" })

	f.expect.GET("/api/cache").Expect().
		Status(http.StatusUnauthorized).
		Header("WWW-Authenticate").NotEmpty()
	f.expect.GET("/api/cache").WithHeader("Authorization", "Bearer wrong").
		Expect().Status(http.StatusUnauthorized)
	f.expect.GET("/api/cache").WithHeader("Authorization", "Bearer s3cret").
		Expect().Status(http.StatusOK)

	// Reads stay public.
	f.expect.GET("/api/drivers").Expect().Status(http.StatusOK)
}

func TestCorrelationIDEcho(t *testing.T) {
	f := newFixture(t, nil)

	f.expect.GET("/api/drivers").WithHeader("X-Request-ID", "req-42").
		Expect().Header("X-Request-ID").IsEqual("req-42")
	f.expect.GET("/api/drivers").
		Expect().Header("X-Request-ID").NotEmpty()
}

func TestCacheKeysAndInfo(t *testing.T) {
	f := newFixture(t, nil)
	f.expect.GET("/api/seasons").Expect().Status(http.StatusOK)
	f.expect.GET("/api/races").WithQuery("season", "12").Expect().Status(http.StatusOK)

	keys := f.expect.GET("/api/cache").WithQuery("pattern", "races:*").
		Expect().Status(http.StatusOK).JSON().Object()
	keys.Value("count").IsEqual(1)
	keys.Value("keys").Array().ContainsOnly("races:12")

	info := f.expect.GET("/api/cache").WithQuery("info", "true").
		Expect().Status(http.StatusOK).JSON().Object()
	info.Value("totalKeys").IsEqual(2)
	info.Value("keysByType").Object().Value("races").IsEqual(1)
	info.Value("durations").Object().Value(respcache.ShortCache).IsEqual("30m0s")
}

func TestCacheClear(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for _, key := range []string{
		"races:12", "races:11", "raceinfo:12:bahrain", "results:12:bahrain",
		"lapdata:12:bahrain:race", "lapdata:12:spa:race", "standings:12:10",
	} {
		require.NoError(t, f.cache.Set(ctx, key, []byte(`{}`), time.Hour))
	}

	f.expect.POST("/api/cache/clear").WithJSON(map[string]string{"type": "races", "season": "11"}).
		Expect().Status(http.StatusOK).
		JSON().Object().Value("cleared").IsEqual(1)

	f.expect.POST("/api/cache/clear").WithJSON(map[string]string{"type": "race-data", "season": "12", "race": "bahrain"}).
		Expect().Status(http.StatusOK).
		JSON().Object().Value("cleared").IsEqual(5)

	remaining, err := f.cache.Keys(ctx, "*")
	require.NoError(t, err)
	require.Equal(t, []string{"lapdata:12:spa:race"}, remaining)

	f.expect.POST("/api/cache/clear").WithJSON(map[string]string{"type": "race-data", "season": "12"}).
		Expect().Status(http.StatusBadRequest)
	f.expect.POST("/api/cache/clear").WithJSON(map[string]string{"type": "pattern"}).
		Expect().Status(http.StatusBadRequest)
	f.expect.POST("/api/cache/clear").WithJSON(map[string]string{"type": "everything"}).
		Expect().Status(http.StatusBadRequest)

	f.expect.POST("/api/cache/clear").Expect().Status(http.StatusOK).
		JSON().Object().Value("success").IsEqual(true)
	size, err := f.cache.Size(ctx)
	require.NoError(t, err)
	require.Zero(t, size)
}

func TestCacheClearStatsTypes(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	seed := func(keys ...string) {
		t.Helper()
		for _, key := range keys {
			require.NoError(t, f.cache.Set(ctx, key, []byte(`{}`), time.Hour))
		}
	}
	remaining := func() []string {
		t.Helper()
		keys, err := f.cache.Keys(ctx, "*")
		require.NoError(t, err)
		return keys
	}
	seed(
		"fastest:12:bahrain:race", "fastest:11:spa:race",
		"telemetry:12:bahrain:race:all:alpha", "telemetry:12:bahrain:race:3:alpha", "telemetry:11:spa:race:all:bravo",
		"stats:12:bahrain:race", "driver:alpha",
		"dominance:12:bahrain:race", "dominance:12:bahrain:qualifying",
	)

	f.expect.POST("/api/cache/clear").WithJSON(map[string]string{"type": "fastest-laps", "season": "12"}).
		Expect().Status(http.StatusOK).JSON().Object().Value("cleared").IsEqual(1)
	f.expect.POST("/api/cache/clear").WithJSON(map[string]string{"type": "telemetry", "season": "12", "race": "bahrain"}).
		Expect().Status(http.StatusOK).JSON().Object().Value("cleared").IsEqual(2)
	f.expect.POST("/api/cache/clear").WithJSON(map[string]string{"type": "track-dominance", "season": "12", "race": "bahrain", "session": "qualifying"}).
		Expect().Status(http.StatusOK).JSON().Object().Value("cleared").IsEqual(1)
	f.expect.POST("/api/cache/clear").WithJSON(map[string]string{"type": "general-stats"}).
		Expect().Status(http.StatusOK).JSON().Object().Value("cleared").IsEqual(2)
	require.ElementsMatch(t, []string{"fastest:11:spa:race", "telemetry:11:spa:race:all:bravo", "dominance:12:bahrain:race"}, remaining())

	seed("fastest:12:bahrain:race", "stats:12:bahrain:race", "telemetry:12:bahrain:race:all:alpha", "driver:alpha")
	f.expect.POST("/api/cache/clear").WithJSON(map[string]string{"type": "race-data", "season": "12", "race": "bahrain"}).
		Expect().Status(http.StatusOK).JSON().Object().Value("cleared").IsEqual(5)
	require.ElementsMatch(t, []string{"fastest:11:spa:race", "telemetry:11:spa:race:all:bravo"}, remaining())
}

func TestCacheSelfTest(t *testing.T) {
	f := newFixture(t, nil)
	f.expect.GET("/api/cache/selftest").Expect().Status(http.StatusOK).
		JSON().Object().Value("working").IsEqual(true)

	size, err := f.cache.Size(context.Background())
	require.NoError(t, err)
	require.Zero(t, size)
}

func TestLineupWritesInvalidate(t *testing.T) {
	f := newFixture(t, nil)

	f.expect.GET("/api/lineups").WithQuery("season", "12").Expect().
		Status(http.StatusOK).Header("X-Cache").IsEqual("MISS")

	created := f.expect.POST("/api/lineups").
		WithJSON(map[string]string{"season": "12", "driver": "Alpha", "team": "Red"}).
		Expect().Status(http.StatusCreated).JSON().Object()
	created.Value("driver").IsEqual("Alpha")

	after := f.expect.GET("/api/lineups").WithQuery("season", "12").Expect().Status(http.StatusOK)
	after.Header("X-Cache").IsEqual("MISS")
	after.JSON().Array().Length().IsEqual(1)

	f.expect.DELETE("/api/lineups/1").Expect().Status(http.StatusNoContent)
	f.expect.DELETE("/api/lineups/1").Expect().Status(http.StatusNotFound)
	f.expect.DELETE("/api/lineups/abc").Expect().Status(http.StatusBadRequest)

	f.expect.POST("/api/lineups").WithJSON(map[string]string{"season": "12"}).
		Expect().Status(http.StatusBadRequest)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)
	f.expect.GET("/healthz").Expect().Status(http.StatusOK).
		JSON().Object().Value("status").IsEqual("ok")

	f.data.pingErr = errors.New("refused")
	f.expect.GET("/healthz").Expect().Status(http.StatusServiceUnavailable).
		JSON().Object().Value("database").IsEqual("unavailable")
}
