package store_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/l0p7/pitwall/internal/config"
	"github.com/l0p7/pitwall/internal/stats"
	"github.com/l0p7/pitwall/internal/store"
)

// setupStore migrates the database named by DATABASE_URL, seeds one season
// and returns a ready Store. The pool is closed via t.Cleanup.
func setupStore(t *testing.T) *store.Store {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("requires DATABASE_URL")
	}
	ctx := context.Background()
	require.NoError(t, store.RunMigrations(ctx, dsn))

	pool, err := store.NewPool(ctx, config.DatabaseConfig{DSN: dsn, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE lineups, schedule, lap_times, race_results, races, teams, drivers, tracks, seasons RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	seed := []string{
		`INSERT INTO seasons (season, game, dates) VALUES ('10', 'F1 23', 'Sep - Dec 2023'), ('11', NULL, 'Mar - Jul 2024')`,
		`INSERT INTO tracks (slug, name, country, length_km, turns, first_grand_prix, laps)
		 VALUES ('bahrain', 'Bahrain International Circuit', 'Bahrain', 5.412, 15, '2004', 57),
		        ('jeddah', 'Jeddah Corniche Circuit', 'Saudi Arabia', 6.174, 27, '2021', 50)`,
		`INSERT INTO drivers (name) VALUES ('Driver A'), ('Driver B')`,
		`INSERT INTO teams (name) VALUES ('Team X'), ('Team Y')`,
		`INSERT INTO races (season_id, track_id) VALUES (2, 1), (2, 2), (1, 1)`,
		`INSERT INTO race_results (race_id, driver_id, team_id, position, adjusted_position, grid_position, time_int, fastest_lap_time_int, penalty_secs_ingame, stints_raw)
		 VALUES (1, 1, 1, 1, NULL, 2, 3600000, 91234, 0, 'M20-H37'),
		        (1, 2, 2, 2, NULL, 1, 3605123, 91500, 5, NULL),
		        (3, 2, 2, 1, NULL, 1, 3590000, 90000, 0, NULL),
		        (3, 1, 1, 2, NULL, 2, 3591000, 90500, 0, NULL)`,
		`INSERT INTO lap_times (race_id, driver_id, lap_number, lap_time_int, tyre_compound)
		 VALUES (1, 1, 1, 95000, 'M'), (1, 1, 2, 0, 'M'), (1, 2, 1, 96000, 'S')`,
		`INSERT INTO schedule (season, track, date) VALUES ('11', 'bahrain', '2024-03-02'), ('11', 'jeddah', '2024-03-09')`,
		`INSERT INTO lineups (season_id, driver_id, team_id) VALUES (2, 2, 2), (2, 1, 1)`,
	}
	for _, stmt := range seed {
		_, err := pool.Exec(ctx, stmt)
		require.NoError(t, err, stmt)
	}
	return store.New(pool)
}

func TestSeasons(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	seasons, err := s.Seasons(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"11", "10"}, seasons)

	season, err := s.Season(ctx, "11")
	require.NoError(t, err)
	require.Equal(t, stats.Season{Season: "11", Dates: "Mar - Jul 2024"}, season)

	_, err = s.Season(ctx, "99")
	require.True(t, errors.Is(err, store.ErrNotFound))

	total, completed, err := s.SeasonProgress(ctx, "11")
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, 1, completed)
}

func TestRacesAndResults(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	races, err := s.Races(ctx, "11")
	require.NoError(t, err)
	require.Equal(t, []string{"bahrain", "jeddah"}, races)

	id, err := s.RaceID(ctx, "11", "bahrain")
	require.NoError(t, err)
	_, err = s.RaceID(ctx, "11", "monza")
	require.ErrorIs(t, err, store.ErrNotFound)

	results, err := s.RaceResults(ctx, id)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "Driver A", results[0].Driver)
	require.Equal(t, "M20-H37", results[0].Stints)
	require.EqualValues(t, 3605123, results[1].TimeMs)

	seasonResults, err := s.SeasonResults(ctx, "11")
	require.NoError(t, err)
	require.Len(t, seasonResults, 2)

	laps, err := s.Laps(ctx, id, "race")
	require.NoError(t, err)
	require.Len(t, laps, 2)

	entrants, err := s.RaceEntrants(ctx, id)
	require.NoError(t, err)
	require.Len(t, entrants, 2)
}

func TestTracksAndSchedule(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	track, err := s.Track(ctx, "bahrain")
	require.NoError(t, err)
	require.Equal(t, 57, track.Laps)
	require.InDelta(t, 5.412, track.LengthKm, 1e-9)

	_, err = s.Track(ctx, "nowhere")
	require.ErrorIs(t, err, store.ErrNotFound)

	history, err := s.TrackResults(ctx, "bahrain")
	require.NoError(t, err)
	require.Len(t, history, 4)
	require.Equal(t, "11", history[0].Season)

	schedule, err := s.Schedule(ctx, "")
	require.NoError(t, err)
	require.Len(t, schedule, 2)
	require.Equal(t, "2024-03-02", schedule[0].Date)
	require.Equal(t, "19:00:00", schedule[0].Time)
}

func TestDriverResults(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	rows, err := s.DriverResults(ctx, "driver-a")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "11", rows[0].Season)
	require.Equal(t, "Bahrain International Circuit", rows[0].Track)
	require.True(t, rows[0].HeldFastestLap)
	require.Equal(t, "10", rows[1].Season)
	require.False(t, rows[1].HeldFastestLap)

	_, err = s.DriverResults(ctx, "driver-z")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestLineups(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	lineups, err := s.Lineups(ctx, "11")
	require.NoError(t, err)
	require.Equal(t, "Team X", lineups[0].Team)

	_, err = s.AddLineup(ctx, "10", "Driver A", "Team Y")
	require.NoError(t, err)
	_, err = s.AddLineup(ctx, "10", "Nobody", "Team Y")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.DeleteLineup(ctx, lineups[0].ID))
	require.ErrorIs(t, s.DeleteLineup(ctx, lineups[0].ID), store.ErrNotFound)

	drivers, err := s.Drivers(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Driver A", "Driver B"}, drivers)
}
