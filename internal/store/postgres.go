package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/benchradar/benchradar/internal/db"
	"github.com/benchradar/benchradar/internal/geo"
	"github.com/benchradar/benchradar/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"get_bench":           `SELECT id, latitude, longitude, title, description, main_photo_url, status, created_by, created_at, updated_at FROM benches WHERE id = $1`,
	"insert_bench":        `INSERT INTO benches (id, latitude, longitude, title, description, main_photo_url, status, created_by, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
	"update_bench_status": `UPDATE benches SET status = $1, updated_at = $2 WHERE id = $3`,
	"insert_photo":        `INSERT INTO bench_photos (id, bench_id, url, is_main, created_at) VALUES ($1, $2, $3, $4, $5)`,
	"list_photos":         `SELECT id, bench_id, url, is_main, created_at FROM bench_photos WHERE bench_id = $1 ORDER BY created_at, id`,
	"get_profile":         `SELECT user_id, username, is_admin, created_at FROM profiles WHERE user_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems needing direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS benches (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	latitude       DOUBLE PRECISION NOT NULL,
	longitude      DOUBLE PRECISION NOT NULL,
	title          TEXT,
	description    TEXT,
	main_photo_url TEXT,
	status         TEXT NOT NULL DEFAULT 'pending',
	created_by     TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bench_photos (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	bench_id   TEXT NOT NULL REFERENCES benches(id) ON DELETE CASCADE,
	url        TEXT NOT NULL,
	is_main    BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS profiles (
	user_id    TEXT PRIMARY KEY,
	username   TEXT,
	is_admin   BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_benches_status_created ON benches(status, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_benches_location ON benches(latitude, longitude);
CREATE INDEX IF NOT EXISTS idx_bench_photos_bench_id ON bench_photos(bench_id);
CREATE INDEX IF NOT EXISTS idx_bench_photos_url ON bench_photos(url);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ListBenches(ctx context.Context, filter BenchFilter) ([]model.AdminRow, error) {
	query := `SELECT id, latitude, longitude, title, description, main_photo_url, status, created_by, created_at, updated_at
	          FROM benches WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Before != nil {
		query += fmt.Sprintf(` AND created_at < $%d`, argIdx)
		args = append(args, *filter.Before)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list benches")
	}
	defer rows.Close()

	var out []model.AdminRow
	var ids []string
	for rows.Next() {
		b, err := scanBench(rows)
		if err != nil {
			return nil, err
		}
		ids = append(ids, b.ID)
		out = append(out, model.AdminRow{
			Bench:     *b,
			CreatedBy: b.CreatedBy,
			CreatedAt: b.CreatedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list benches iterate")
	}

	if len(ids) == 0 {
		return out, nil
	}

	urlsByBench, err := s.photoURLsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		urls := urlsByBench[out[i].Bench.ID]
		out[i].Bench.PhotoURLs = urls
		out[i].PhotoURLs = urls
	}
	return out, nil
}

// photoURLsFor fetches photo URLs for a set of benches in one query,
// main photo first, then insertion order.
func (s *PostgresStore) photoURLsFor(ctx context.Context, benchIDs []string) (map[string][]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT bench_id, url FROM bench_photos WHERE bench_id = ANY($1) ORDER BY is_main DESC, created_at, id`,
		benchIDs,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list bench photos")
	}
	defer rows.Close()

	byBench := make(map[string][]string)
	for rows.Next() {
		var benchID, url string
		if err := rows.Scan(&benchID, &url); err != nil {
			return nil, eris.Wrap(err, "postgres: scan bench photo")
		}
		byBench[benchID] = append(byBench[benchID], url)
	}
	return byBench, eris.Wrap(rows.Err(), "postgres: list bench photos iterate")
}

func (s *PostgresStore) ListBenchesInBounds(ctx context.Context, bounds geo.Bounds, status model.BenchStatus) ([]model.Bench, error) {
	query := `SELECT id, latitude, longitude, title, description, main_photo_url, status, created_by, created_at, updated_at
	          FROM benches
	          WHERE latitude BETWEEN $1 AND $2 AND longitude BETWEEN $3 AND $4`
	args := []any{bounds.SWLat(), bounds.NELat(), bounds.SWLng(), bounds.NELng()}

	if status != "" {
		query += ` AND status = $5`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list benches in bounds")
	}
	defer rows.Close()

	var benches []model.Bench
	for rows.Next() {
		b, err := scanBench(rows)
		if err != nil {
			return nil, err
		}
		benches = append(benches, *b)
	}
	return benches, eris.Wrap(rows.Err(), "postgres: list benches in bounds iterate")
}

func (s *PostgresStore) GetBench(ctx context.Context, id string) (*model.Bench, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, latitude, longitude, title, description, main_photo_url, status, created_by, created_at, updated_at
		 FROM benches WHERE id = $1`,
		id,
	)
	b, err := scanBenchRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get bench %s", id)
	}

	urls, err := s.photoURLsFor(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	b.PhotoURLs = urls[id]
	return b, nil
}

func (s *PostgresStore) CreateBench(ctx context.Context, bench model.Bench) (*model.Bench, error) {
	if bench.ID == "" {
		bench.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	bench.CreatedAt = now
	bench.UpdatedAt = now
	if bench.Status == "" {
		bench.Status = model.BenchStatusPending
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO benches (id, latitude, longitude, title, description, main_photo_url, status, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		bench.ID, bench.Latitude, bench.Longitude,
		nullable(bench.Title), nullable(bench.Description), nullable(bench.MainPhotoURL),
		string(bench.Status), nullable(bench.CreatedBy), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert bench")
	}
	return &bench, nil
}

func (s *PostgresStore) UpdateBench(ctx context.Context, id string, upd BenchUpdate) error {
	sets := []string{`updated_at = $1`}
	args := []any{time.Now().UTC()}
	argIdx := 2

	if upd.Latitude != nil {
		sets = append(sets, fmt.Sprintf(`latitude = $%d`, argIdx))
		args = append(args, *upd.Latitude)
		argIdx++
	}
	if upd.Longitude != nil {
		sets = append(sets, fmt.Sprintf(`longitude = $%d`, argIdx))
		args = append(args, *upd.Longitude)
		argIdx++
	}
	if upd.Description != nil {
		sets = append(sets, fmt.Sprintf(`description = $%d`, argIdx))
		args = append(args, *upd.Description)
		argIdx++
	}
	if upd.MainPhotoURL != nil {
		sets = append(sets, fmt.Sprintf(`main_photo_url = $%d`, argIdx))
		args = append(args, *upd.MainPhotoURL)
		argIdx++
	}

	query := fmt.Sprintf(`UPDATE benches SET %s WHERE id = $%d`, strings.Join(sets, ", "), argIdx)
	args = append(args, id)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update bench %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("bench not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) UpdateBenchStatus(ctx context.Context, id string, status model.BenchStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE benches SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update bench status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("bench not found: %s", id)
	}
	return nil
}

// DeleteBench removes a bench and its photo rows in one transaction,
// photo rows first.
func (s *PostgresStore) DeleteBench(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin delete bench")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM bench_photos WHERE bench_id = $1`, id); err != nil {
		return eris.Wrapf(err, "postgres: delete bench photos %s", id)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM benches WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete bench %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("bench not found: %s", id)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit delete bench")
}

func (s *PostgresStore) InsertPhotos(ctx context.Context, benchID string, photos []model.BenchPhoto) error {
	if len(photos) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i, p := range photos {
		id := p.ID
		if id == "" {
			id = uuid.New().String()
		}
		// Preserve input order under a shared clock.
		createdAt := now.Add(time.Duration(i) * time.Microsecond)
		_, err := s.pool.Exec(ctx,
			`INSERT INTO bench_photos (id, bench_id, url, is_main, created_at) VALUES ($1, $2, $3, $4, $5)`,
			id, benchID, p.URL, p.IsMain, createdAt,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert photo for bench %s", benchID)
		}
	}
	return nil
}

func (s *PostgresStore) DeletePhotosByURL(ctx context.Context, benchID string, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`DELETE FROM bench_photos WHERE bench_id = $1 AND url = ANY($2)`,
		benchID, urls,
	)
	return eris.Wrapf(err, "postgres: delete photos for bench %s", benchID)
}

func (s *PostgresStore) ListPhotos(ctx context.Context, benchID string) ([]model.BenchPhoto, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, bench_id, url, is_main, created_at FROM bench_photos WHERE bench_id = $1 ORDER BY created_at, id`,
		benchID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list photos for bench %s", benchID)
	}
	defer rows.Close()

	var photos []model.BenchPhoto
	for rows.Next() {
		var p model.BenchPhoto
		if err := rows.Scan(&p.ID, &p.BenchID, &p.URL, &p.IsMain, &p.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan photo")
		}
		photos = append(photos, p)
	}
	return photos, eris.Wrap(rows.Err(), "postgres: list photos iterate")
}

func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	var p model.Profile
	var username *string
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, username, is_admin, created_at FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &username, &p.IsAdmin, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get profile %s", userID)
	}
	if username != nil {
		p.Username = *username
	}
	return &p, nil
}

func (s *PostgresStore) UpsertProfile(ctx context.Context, p model.Profile) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (user_id, username, is_admin, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE SET username = $2, is_admin = $3`,
		p.UserID, nullable(p.Username), p.IsAdmin, now,
	)
	return eris.Wrap(err, "postgres: upsert profile")
}

// benchScanner covers both pgx.Row and pgx.Rows.
type benchScanner interface {
	Scan(dest ...any) error
}

func scanBenchRow(row benchScanner) (*model.Bench, error) {
	var b model.Bench
	var title, description, mainPhoto, createdBy *string
	err := row.Scan(&b.ID, &b.Latitude, &b.Longitude, &title, &description, &mainPhoto,
		&b.Status, &createdBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if title != nil {
		b.Title = *title
	}
	if description != nil {
		b.Description = *description
	}
	if mainPhoto != nil {
		b.MainPhotoURL = *mainPhoto
	}
	if createdBy != nil {
		b.CreatedBy = *createdBy
	}
	return &b, nil
}

func scanBench(rows pgx.Rows) (*model.Bench, error) {
	b, err := scanBenchRow(rows)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan bench")
	}
	return b, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
