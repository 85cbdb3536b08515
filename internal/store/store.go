package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/l0p7/pitwall/internal/stats"
)

// ErrNotFound reports a lookup that matched no rows.
var ErrNotFound = errors.New("store: not found")

// MinDriverSeason is the earliest season whose drivers are listed.
const MinDriverSeason = 6

// Store runs the read queries behind every API resource.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an open pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping checks database reachability.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// scannable abstracts pgx.Row and pgx.Rows for shared scan helpers.
type scannable interface {
	Scan(dest ...any) error
}

func notFoundWrap(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", msg, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func execExpectOne(tag pgconn.CommandTag, err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", msg, ErrNotFound)
	}
	return nil
}

// collect scans every row with scan and closes rows.
func collect[T any](rows pgx.Rows, err error, scan func(scannable) (T, error)) ([]T, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func scanString(row scannable) (string, error) {
	var v string
	err := row.Scan(&v)
	return v, err
}

// --- Seasons ---

// Seasons lists season names, newest first.
func (s *Store) Seasons(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT season FROM seasons ORDER BY CAST(season AS INTEGER) DESC`)
	out, err := collect(rows, err, scanString)
	if err != nil {
		return nil, fmt.Errorf("store: list seasons: %w", err)
	}
	return out, nil
}

// Season loads one season row.
func (s *Store) Season(ctx context.Context, season string) (stats.Season, error) {
	var out stats.Season
	var game, dates *string
	err := s.pool.QueryRow(ctx, `SELECT season, game, dates FROM seasons WHERE season = $1`, season).
		Scan(&out.Season, &game, &dates)
	if err != nil {
		return stats.Season{}, notFoundWrap(err, "store: get season %s", season)
	}
	out.Game = deref(game)
	out.Dates = deref(dates)
	return out, nil
}

// SeasonProgress counts the races of a season and how many have results.
func (s *Store) SeasonProgress(ctx context.Context, season string) (total, completed int, err error) {
	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE EXISTS (SELECT 1 FROM race_results rr WHERE rr.race_id = r.id))
		  FROM races r
		  JOIN seasons s ON r.season_id = s.id
		 WHERE s.season = $1`, season).Scan(&total, &completed)
	if err != nil {
		return 0, 0, fmt.Errorf("store: season progress %s: %w", season, err)
	}
	return total, completed, nil
}

// --- Races ---

// Races lists the track slugs scheduled in a season, by date.
func (s *Store) Races(ctx context.Context, season string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT track FROM schedule WHERE season = $1 ORDER BY date ASC`, season)
	out, err := collect(rows, err, scanString)
	if err != nil {
		return nil, fmt.Errorf("store: list races %s: %w", season, err)
	}
	return out, nil
}

// RaceID resolves the race held at a track in a season.
func (s *Store) RaceID(ctx context.Context, season, trackSlug string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		SELECT r.id
		  FROM races r
		  JOIN tracks t ON r.track_id = t.id
		  JOIN seasons s ON r.season_id = s.id
		 WHERE s.season = $1 AND t.slug = $2`, season, trackSlug).Scan(&id)
	if err != nil {
		return 0, notFoundWrap(err, "store: race %s/%s", season, trackSlug)
	}
	return id, nil
}

const resultColumns = `rr.race_id, rr.position, rr.adjusted_position, rr.grid_position, d.name, t.name,
	rr.time_int, rr.fastest_lap_time_int, rr.penalty_secs_ingame, rr.post_race_penalty_secs, rr.stints_raw, rr.status`

func scanResult(row scannable) (stats.RaceResult, error) {
	var r stats.RaceResult
	var adjusted *int
	var stints *string
	err := row.Scan(&r.RaceID, &r.Position, &adjusted, &r.Grid, &r.Driver, &r.Team,
		&r.TimeMs, &r.FastestLapMs, &r.PenaltySecs, &r.PostRacePenaltySecs, &stints, &r.Status)
	if adjusted != nil {
		r.AdjustedPosition = *adjusted
	}
	r.Stints = deref(stints)
	return r, err
}

// RaceResults loads the classification of one race ordered by position.
func (s *Store) RaceResults(ctx context.Context, raceID int64) ([]stats.RaceResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+resultColumns+`
		  FROM race_results rr
		  JOIN drivers d ON rr.driver_id = d.id
		  JOIN teams t ON rr.team_id = t.id
		 WHERE rr.race_id = $1
		 ORDER BY rr.position`, raceID)
	out, err := collect(rows, err, scanResult)
	if err != nil {
		return nil, fmt.Errorf("store: race results %d: %w", raceID, err)
	}
	return out, nil
}

// SeasonResults loads every result of a season in race order.
func (s *Store) SeasonResults(ctx context.Context, season string) ([]stats.RaceResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+resultColumns+`
		  FROM race_results rr
		  JOIN races r ON rr.race_id = r.id
		  JOIN seasons s ON r.season_id = s.id
		  JOIN drivers d ON rr.driver_id = d.id
		  JOIN teams t ON rr.team_id = t.id
		 WHERE s.season = $1
		 ORDER BY r.id, rr.position`, season)
	out, err := collect(rows, err, scanResult)
	if err != nil {
		return nil, fmt.Errorf("store: season results %s: %w", season, err)
	}
	return out, nil
}

// RaceEntrants lists the drivers classified in a race with their team.
func (s *Store) RaceEntrants(ctx context.Context, raceID int64) ([]stats.Entrant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT d.id, d.name, rr.team_id, rr.stints_raw
		  FROM race_results rr
		  JOIN drivers d ON rr.driver_id = d.id
		 WHERE rr.race_id = $1
		 ORDER BY rr.position`, raceID)
	out, err := collect(rows, err, func(row scannable) (stats.Entrant, error) {
		var e stats.Entrant
		var stints *string
		err := row.Scan(&e.DriverID, &e.Driver, &e.TeamID, &stints)
		e.Stints = deref(stints)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("store: race entrants %d: %w", raceID, err)
	}
	return out, nil
}

// Laps loads the timed laps of one session of a race.
func (s *Store) Laps(ctx context.Context, raceID int64, session string) ([]stats.Lap, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT d.id, d.name, lt.lap_number, lt.lap_time_int, lt.tyre_compound
		  FROM lap_times lt
		  JOIN drivers d ON lt.driver_id = d.id
		 WHERE lt.race_id = $1 AND lt.session_type = $2 AND lt.lap_time_int > 0
		 ORDER BY d.name, lt.lap_number`, raceID, session)
	out, err := collect(rows, err, func(row scannable) (stats.Lap, error) {
		var l stats.Lap
		err := row.Scan(&l.DriverID, &l.Driver, &l.LapNumber, &l.LapTimeMs, &l.TyreCompound)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("store: laps %d/%s: %w", raceID, session, err)
	}
	return out, nil
}

// --- Schedule ---

const scheduleColumns = `id, season, track, date::text, time::text`

func scanSchedule(row scannable) (stats.ScheduleEntry, error) {
	var e stats.ScheduleEntry
	err := row.Scan(&e.ID, &e.Season, &e.Track, &e.Date, &e.Time)
	return e, err
}

// Schedule lists a season's races by date. An empty season selects the
// latest scheduled season.
func (s *Store) Schedule(ctx context.Context, season string) ([]stats.ScheduleEntry, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if season == "" {
		rows, err = s.pool.Query(ctx, `SELECT `+scheduleColumns+` FROM schedule
			WHERE season = (SELECT MAX(season::int)::text FROM schedule) ORDER BY date`)
	} else {
		rows, err = s.pool.Query(ctx, `SELECT `+scheduleColumns+` FROM schedule WHERE season = $1 ORDER BY date`, season)
	}
	out, err := collect(rows, err, scanSchedule)
	if err != nil {
		return nil, fmt.Errorf("store: schedule %s: %w", season, err)
	}
	return out, nil
}

// FullSchedule lists every scheduled race across seasons by date.
func (s *Store) FullSchedule(ctx context.Context) ([]stats.ScheduleEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+scheduleColumns+` FROM schedule ORDER BY date`)
	out, err := collect(rows, err, scanSchedule)
	if err != nil {
		return nil, fmt.Errorf("store: full schedule: %w", err)
	}
	return out, nil
}

// --- Tracks ---

const trackColumns = `slug, name, country, length_km, turns, first_grand_prix, laps`

func scanTrack(row scannable) (stats.TrackInfo, error) {
	var t stats.TrackInfo
	err := row.Scan(&t.Slug, &t.Name, &t.Country, &t.LengthKm, &t.Turns, &t.FirstGrandPrix, &t.Laps)
	return t, err
}

// Tracks lists every circuit by slug.
func (s *Store) Tracks(ctx context.Context) ([]stats.TrackInfo, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+trackColumns+` FROM tracks ORDER BY slug ASC`)
	out, err := collect(rows, err, scanTrack)
	if err != nil {
		return nil, fmt.Errorf("store: list tracks: %w", err)
	}
	return out, nil
}

// Track loads a circuit by slug.
func (s *Store) Track(ctx context.Context, slug string) (stats.TrackInfo, error) {
	t, err := scanTrack(s.pool.QueryRow(ctx, `SELECT `+trackColumns+` FROM tracks WHERE slug = $1`, slug))
	if err != nil {
		return stats.TrackInfo{}, notFoundWrap(err, "store: get track %s", slug)
	}
	return t, nil
}

// TrackResults loads every result ever recorded at a circuit.
func (s *Store) TrackResults(ctx context.Context, slug string) ([]stats.SeasonRaceResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT s.season, `+resultColumns+`
		  FROM race_results rr
		  JOIN races r ON rr.race_id = r.id
		  JOIN seasons s ON r.season_id = s.id
		  JOIN tracks tr ON r.track_id = tr.id
		  JOIN drivers d ON rr.driver_id = d.id
		  JOIN teams t ON rr.team_id = t.id
		 WHERE tr.slug = $1
		 ORDER BY CAST(s.season AS INTEGER) DESC, rr.position`, slug)
	out, err := collect(rows, err, func(row scannable) (stats.SeasonRaceResult, error) {
		var season string
		res, err := scanResult(prefixScan{row: row, prefix: []any{&season}})
		return stats.SeasonRaceResult{Season: season, RaceResult: res}, err
	})
	if err != nil {
		return nil, fmt.Errorf("store: track results %s: %w", slug, err)
	}
	return out, nil
}

// DriverResults loads every result of the driver whose name, with spaces
// written as '-', matches slug case-insensitively. Seasons before
// MinDriverSeason are skipped.
func (s *Store) DriverResults(ctx context.Context, slug string) ([]stats.DriverRaceResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT s.season, tr.name,
		       rr.fastest_lap_time_int > 0 AND rr.fastest_lap_time_int = (
		           SELECT MIN(rr2.fastest_lap_time_int) FROM race_results rr2
		            WHERE rr2.race_id = rr.race_id AND rr2.fastest_lap_time_int > 0),
		       `+resultColumns+`
		  FROM race_results rr
		  JOIN races r ON rr.race_id = r.id
		  JOIN seasons s ON r.season_id = s.id
		  JOIN tracks tr ON r.track_id = tr.id
		  JOIN drivers d ON rr.driver_id = d.id
		  JOIN teams t ON rr.team_id = t.id
		 WHERE LOWER(d.name) = LOWER(REPLACE($1, '-', ' '))
		   AND CAST(s.season AS INTEGER) >= $2
		 ORDER BY CAST(s.season AS INTEGER) DESC, r.id`, slug, MinDriverSeason)
	out, err := collect(rows, err, func(row scannable) (stats.DriverRaceResult, error) {
		var r stats.DriverRaceResult
		res, err := scanResult(prefixScan{row: row, prefix: []any{&r.Season, &r.Track, &r.HeldFastestLap}})
		r.RaceResult = res
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("store: driver results %s: %w", slug, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("store: driver %s: %w", slug, ErrNotFound)
	}
	return out, nil
}

// prefixScan prepends destinations so scanResult can be reused for rows
// that select extra leading columns.
type prefixScan struct {
	row    scannable
	prefix []any
}

func (p prefixScan) Scan(dest ...any) error {
	return p.row.Scan(append(append([]any{}, p.prefix...), dest...)...)
}

// --- Drivers, teams, lineups ---

// Drivers lists drivers with results from MinDriverSeason onward.
func (s *Store) Drivers(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT d.name
		  FROM drivers d
		  JOIN race_results rr ON rr.driver_id = d.id
		  JOIN races r ON rr.race_id = r.id
		  JOIN seasons s ON r.season_id = s.id
		 WHERE CAST(s.season AS INTEGER) >= $1
		 ORDER BY d.name`, MinDriverSeason)
	out, err := collect(rows, err, scanString)
	if err != nil {
		return nil, fmt.Errorf("store: list drivers: %w", err)
	}
	return out, nil
}

// Teams lists every team.
func (s *Store) Teams(ctx context.Context) ([]stats.Team, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM teams ORDER BY name`)
	out, err := collect(rows, err, func(row scannable) (stats.Team, error) {
		var t stats.Team
		err := row.Scan(&t.ID, &t.Name)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("store: list teams: %w", err)
	}
	return out, nil
}

func scanLineup(row scannable) (stats.Lineup, error) {
	var l stats.Lineup
	err := row.Scan(&l.ID, &l.Driver, &l.Team)
	return l, err
}

// Lineups lists a season's driver pairings by team then driver.
func (s *Store) Lineups(ctx context.Context, season string) ([]stats.Lineup, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT l.id, d.name, t.name
		  FROM lineups l
		  JOIN drivers d ON l.driver_id = d.id
		  JOIN teams t ON l.team_id = t.id
		  JOIN seasons s ON l.season_id = s.id
		 WHERE s.season = $1
		 ORDER BY t.name, d.name`, season)
	out, err := collect(rows, err, scanLineup)
	if err != nil {
		return nil, fmt.Errorf("store: list lineups %s: %w", season, err)
	}
	return out, nil
}

// AddLineup places a known driver in a known team for a season.
func (s *Store) AddLineup(ctx context.Context, season, driver, team string) (stats.Lineup, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO lineups (season_id, driver_id, team_id)
		SELECT s.id, d.id, t.id
		  FROM seasons s, drivers d, teams t
		 WHERE s.season = $1 AND d.name = $2 AND t.name = $3
		RETURNING id`, season, driver, team).Scan(&id)
	if err != nil {
		return stats.Lineup{}, notFoundWrap(err, "store: add lineup %s/%s/%s", season, driver, team)
	}
	return stats.Lineup{ID: id, Driver: driver, Team: team}, nil
}

// DeleteLineup removes a lineup entry by id.
func (s *Store) DeleteLineup(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM lineups WHERE id = $1`, id)
	return execExpectOne(tag, err, "store: delete lineup %d", id)
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
