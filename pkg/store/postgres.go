package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgerrors "github.com/seisio/stationsync/pkg/errors"
	"github.com/seisio/stationsync/pkg/inventory"
	"github.com/seisio/stationsync/pkg/resolve"
	"github.com/seisio/stationsync/pkg/wildcard"
)

// schema statements, applied in order by Migrate.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS providers (
	id BIGINT PRIMARY KEY,
	name TEXT NOT NULL,
	station_url TEXT NOT NULL,
	dataselect_url TEXT
)`,
	`CREATE TABLE IF NOT EXISTS stations (
	id BIGSERIAL PRIMARY KEY,
	network TEXT NOT NULL,
	station TEXT NOT NULL,
	start_time TIMESTAMPTZ NOT NULL,
	end_time TIMESTAMPTZ,
	latitude DOUBLE PRECISION NOT NULL,
	longitude DOUBLE PRECISION NOT NULL,
	elevation DOUBLE PRECISION NOT NULL DEFAULT 0,
	provider_id BIGINT NOT NULL REFERENCES providers(id),
	UNIQUE (network, station, start_time)
)`,
	`CREATE TABLE IF NOT EXISTS channels (
	id BIGSERIAL PRIMARY KEY,
	station_id BIGINT NOT NULL REFERENCES stations(id),
	location TEXT NOT NULL,
	channel TEXT NOT NULL,
	sample_rate DOUBLE PRECISION,
	depth DOUBLE PRECISION NOT NULL DEFAULT 0,
	UNIQUE (station_id, location, channel)
)`,
	`CREATE INDEX IF NOT EXISTS stations_provider_idx ON stations (provider_id)`,
}

// Postgres is the pgx-backed Repository.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing connection pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Connect opens a pool for the DSN and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, pkgerrors.WrapPersistence("connect", "", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, pkgerrors.WrapPersistence("connect", "", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Migrate creates the inventory tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return pkgerrors.WrapPersistence("migrate", "", err)
		}
	}
	return nil
}

// SaveProviders implements Repository.
func (p *Postgres) SaveProviders(ctx context.Context, providers []inventory.Provider) error {
	if len(providers) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `INSERT INTO providers (id, name, station_url, dataselect_url)
VALUES ($1,$2,$3,NULLIF($4,''))
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name,
    station_url = EXCLUDED.station_url,
    dataselect_url = EXCLUDED.dataselect_url`

	for _, pr := range providers {
		batch.Queue(query, int64(pr.ID), pr.Name, pr.StationURL, pr.DataURL)
	}

	res := p.pool.SendBatch(ctx, batch)
	defer res.Close()

	for range providers {
		if _, err := res.Exec(); err != nil {
			return pkgerrors.WrapPersistence("upsert", "providers", err)
		}
	}
	return nil
}

// UpsertStations implements Repository. With update enabled, non-key
// columns of existing rows are refreshed; otherwise existing rows are left
// untouched and only their generated ids are fetched back.
func (p *Postgres) UpsertStations(ctx context.Context, stations []inventory.Station, update bool) ([]inventory.Station, error) {
	if len(stations) == 0 {
		return nil, nil
	}

	query := `INSERT INTO stations (network, station, start_time, end_time, latitude, longitude, elevation, provider_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (network, station, start_time) DO NOTHING
RETURNING id`
	if update {
		query = `INSERT INTO stations (network, station, start_time, end_time, latitude, longitude, elevation, provider_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (network, station, start_time) DO UPDATE
SET end_time = EXCLUDED.end_time,
    latitude = EXCLUDED.latitude,
    longitude = EXCLUDED.longitude,
    elevation = EXCLUDED.elevation,
    provider_id = EXCLUDED.provider_id
RETURNING id`
	}

	batch := &pgx.Batch{}
	for _, s := range stations {
		batch.Queue(query, s.Network, s.Code, s.StartTime, s.EndTime,
			s.Latitude, s.Longitude, s.Elevation, int64(s.ProviderID))
	}

	out := make([]inventory.Station, len(stations))
	var missing []int

	res := p.pool.SendBatch(ctx, batch)
	for i, s := range stations {
		err := res.QueryRow().Scan(&s.ID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) && !update {
				// Conflict left the existing row untouched; the id is
				// fetched in a second pass below.
				missing = append(missing, i)
				out[i] = s
				continue
			}
			res.Close()
			return nil, pkgerrors.WrapPersistence("upsert", "stations", err)
		}
		out[i] = s
	}
	if err := res.Close(); err != nil {
		return nil, pkgerrors.WrapPersistence("upsert", "stations", err)
	}

	if len(missing) > 0 {
		sel := &pgx.Batch{}
		for _, i := range missing {
			s := out[i]
			sel.Queue(`SELECT id FROM stations WHERE network=$1 AND station=$2 AND start_time=$3`,
				s.Network, s.Code, s.StartTime)
		}
		res := p.pool.SendBatch(ctx, sel)
		for _, i := range missing {
			if err := res.QueryRow().Scan(&out[i].ID); err != nil {
				res.Close()
				return nil, pkgerrors.WrapPersistence("query", "stations", err)
			}
		}
		if err := res.Close(); err != nil {
			return nil, pkgerrors.WrapPersistence("query", "stations", err)
		}
	}

	return out, nil
}

// UpsertChannels implements Repository.
func (p *Postgres) UpsertChannels(ctx context.Context, channels []inventory.Channel, update bool) ([]inventory.Channel, error) {
	if len(channels) == 0 {
		return nil, nil
	}

	query := `INSERT INTO channels (station_id, location, channel, sample_rate, depth)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (station_id, location, channel) DO NOTHING
RETURNING id`
	if update {
		query = `INSERT INTO channels (station_id, location, channel, sample_rate, depth)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (station_id, location, channel) DO UPDATE
SET sample_rate = EXCLUDED.sample_rate,
    depth = EXCLUDED.depth
RETURNING id`
	}

	batch := &pgx.Batch{}
	for _, c := range channels {
		batch.Queue(query, c.StationID, c.Location, c.Code, c.SampleRate, c.Depth)
	}

	out := make([]inventory.Channel, len(channels))
	var missing []int

	res := p.pool.SendBatch(ctx, batch)
	for i, c := range channels {
		err := res.QueryRow().Scan(&c.ID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) && !update {
				missing = append(missing, i)
				out[i] = c
				continue
			}
			res.Close()
			return nil, pkgerrors.WrapPersistence("upsert", "channels", err)
		}
		out[i] = c
	}
	if err := res.Close(); err != nil {
		return nil, pkgerrors.WrapPersistence("upsert", "channels", err)
	}

	if len(missing) > 0 {
		sel := &pgx.Batch{}
		for _, i := range missing {
			c := out[i]
			sel.Queue(`SELECT id FROM channels WHERE station_id=$1 AND location=$2 AND channel=$3`,
				c.StationID, c.Location, c.Code)
		}
		res := p.pool.SendBatch(ctx, sel)
		for _, i := range missing {
			if err := res.QueryRow().Scan(&out[i].ID); err != nil {
				res.Close()
				return nil, pkgerrors.WrapPersistence("query", "channels", err)
			}
		}
		if err := res.Close(); err != nil {
			return nil, pkgerrors.WrapPersistence("query", "channels", err)
		}
	}

	return out, nil
}

// StationAssignments implements resolve.AssignmentSource.
func (p *Postgres) StationAssignments(ctx context.Context, network, station string, start time.Time) ([]resolve.Assignment, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT provider_id, end_time FROM stations WHERE network=$1 AND station=$2 AND start_time=$3`,
		network, station, start)
	if err != nil {
		return nil, pkgerrors.WrapPersistence("query", "stations", err)
	}
	defer rows.Close()

	var out []resolve.Assignment
	for rows.Next() {
		var providerID int64
		var end *time.Time
		if err := rows.Scan(&providerID, &end); err != nil {
			return nil, pkgerrors.WrapPersistence("query", "stations", err)
		}
		out = append(out, resolve.Assignment{Provider: inventory.ProviderID(providerID), EndTime: end})
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.WrapPersistence("query", "stations", err)
	}
	return out, nil
}

// Channels implements Repository. The WHERE clause translates the same
// NSLC wildcard patterns the network path uses into LIKE/NOT LIKE
// conditions, so fallback rows obey the user's filters exactly.
func (p *Postgres) Channels(ctx context.Context, q ChannelQuery) ([]inventory.Row, error) {
	if len(q.Providers) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(q.Providers))
	for i, id := range q.Providers {
		ids[i] = int64(id)
	}

	var sb strings.Builder
	sb.WriteString(`SELECT c.id, c.station_id, s.provider_id, s.network, s.station, c.location, c.channel,
	s.latitude, s.longitude, c.sample_rate, s.start_time, s.end_time
FROM channels c
JOIN stations s ON s.id = c.station_id
WHERE s.provider_id = ANY($1)`)
	args := []any{ids}

	addDimension := func(col string, patterns []string) {
		if len(patterns) == 0 {
			return
		}
		conds := make([]string, 0, len(patterns))
		for _, pat := range patterns {
			negated := wildcard.IsNegation(pat)
			if negated {
				pat = pat[1:]
			}
			var op string
			var arg string
			if wildcard.HasWildcards(pat) {
				op, arg = "LIKE", wildcard.ToSQL(pat)
				if negated {
					op = "NOT LIKE"
				}
			} else {
				op, arg = "=", pat
				if negated {
					op = "<>"
				}
			}
			args = append(args, arg)
			conds = append(conds, fmt.Sprintf("%s %s $%d", col, op, len(args)))
		}
		sb.WriteString(" AND (" + strings.Join(conds, " OR ") + ")")
	}

	addDimension("s.network", q.Criteria.Networks)
	addDimension("s.station", q.Criteria.Stations)
	addDimension("c.location", q.Criteria.Locations)
	addDimension("c.channel", q.Criteria.Channels)

	if q.Criteria.MinSampleRate > 0 {
		args = append(args, q.Criteria.MinSampleRate)
		fmt.Fprintf(&sb, " AND c.sample_rate >= $%d", len(args))
	}
	if q.Start != nil {
		args = append(args, *q.Start)
		fmt.Fprintf(&sb, " AND (s.end_time IS NULL OR s.end_time > $%d)", len(args))
	}
	if q.End != nil {
		args = append(args, *q.End)
		fmt.Fprintf(&sb, " AND s.start_time < $%d", len(args))
	}

	rows, err := p.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, pkgerrors.WrapPersistence("query", "channels", err)
	}
	defer rows.Close()

	var out []inventory.Row
	for rows.Next() {
		var r inventory.Row
		var providerID int64
		if err := rows.Scan(&r.ChannelID, &r.StationID, &providerID, &r.Network, &r.Station,
			&r.Location, &r.Channel, &r.Latitude, &r.Longitude, &r.SampleRate,
			&r.StartTime, &r.EndTime); err != nil {
			return nil, pkgerrors.WrapPersistence("query", "channels", err)
		}
		r.ProviderID = inventory.ProviderID(providerID)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.WrapPersistence("query", "channels", err)
	}
	return out, nil
}
