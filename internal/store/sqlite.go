package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/benchradar/benchradar/internal/geo"
	"github.com/benchradar/benchradar/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local and
// development deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS benches (
	id             TEXT PRIMARY KEY,
	latitude       REAL NOT NULL,
	longitude      REAL NOT NULL,
	title          TEXT,
	description    TEXT,
	main_photo_url TEXT,
	status         TEXT NOT NULL DEFAULT 'pending',
	created_by     TEXT,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS bench_photos (
	id         TEXT PRIMARY KEY,
	bench_id   TEXT NOT NULL REFERENCES benches(id) ON DELETE CASCADE,
	url        TEXT NOT NULL,
	is_main    INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS profiles (
	user_id    TEXT PRIMARY KEY,
	username   TEXT,
	is_admin   INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_benches_status_created ON benches(status, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_bench_photos_bench_id ON bench_photos(bench_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListBenches(ctx context.Context, filter BenchFilter) ([]model.AdminRow, error) {
	query := `SELECT id, latitude, longitude, title, description, main_photo_url, status, created_by, created_at, updated_at
	          FROM benches WHERE 1=1`
	args := []any{}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Before != nil {
		query += ` AND created_at < ?`
		args = append(args, filter.Before.UTC())
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list benches")
	}
	defer rows.Close()

	var out []model.AdminRow
	for rows.Next() {
		b, err := scanSQLiteBench(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, model.AdminRow{
			Bench:     *b,
			CreatedBy: b.CreatedBy,
			CreatedAt: b.CreatedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list benches iterate")
	}

	for i := range out {
		urls, err := s.photoURLs(ctx, out[i].Bench.ID)
		if err != nil {
			return nil, err
		}
		out[i].Bench.PhotoURLs = urls
		out[i].PhotoURLs = urls
	}
	return out, nil
}

func (s *SQLiteStore) photoURLs(ctx context.Context, benchID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT url FROM bench_photos WHERE bench_id = ? ORDER BY is_main DESC, created_at, id`,
		benchID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list photos for bench %s", benchID)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan photo url")
		}
		urls = append(urls, url)
	}
	return urls, eris.Wrap(rows.Err(), "sqlite: list photos iterate")
}

func (s *SQLiteStore) ListBenchesInBounds(ctx context.Context, bounds geo.Bounds, status model.BenchStatus) ([]model.Bench, error) {
	query := `SELECT id, latitude, longitude, title, description, main_photo_url, status, created_by, created_at, updated_at
	          FROM benches
	          WHERE latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?`
	args := []any{bounds.SWLat(), bounds.NELat(), bounds.SWLng(), bounds.NELng()}

	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list benches in bounds")
	}
	defer rows.Close()

	var benches []model.Bench
	for rows.Next() {
		b, err := scanSQLiteBench(rows)
		if err != nil {
			return nil, err
		}
		benches = append(benches, *b)
	}
	return benches, eris.Wrap(rows.Err(), "sqlite: list benches in bounds iterate")
}

func (s *SQLiteStore) GetBench(ctx context.Context, id string) (*model.Bench, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, latitude, longitude, title, description, main_photo_url, status, created_by, created_at, updated_at
		 FROM benches WHERE id = ?`,
		id,
	)
	b, err := scanSQLiteBenchRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get bench %s", id)
	}

	urls, err := s.photoURLs(ctx, id)
	if err != nil {
		return nil, err
	}
	b.PhotoURLs = urls
	return b, nil
}

func (s *SQLiteStore) CreateBench(ctx context.Context, bench model.Bench) (*model.Bench, error) {
	if bench.ID == "" {
		bench.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	bench.CreatedAt = now
	bench.UpdatedAt = now
	if bench.Status == "" {
		bench.Status = model.BenchStatusPending
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO benches (id, latitude, longitude, title, description, main_photo_url, status, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bench.ID, bench.Latitude, bench.Longitude,
		nullable(bench.Title), nullable(bench.Description), nullable(bench.MainPhotoURL),
		string(bench.Status), nullable(bench.CreatedBy), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert bench")
	}
	return &bench, nil
}

func (s *SQLiteStore) UpdateBench(ctx context.Context, id string, upd BenchUpdate) error {
	sets := []string{`updated_at = ?`}
	args := []any{time.Now().UTC()}

	if upd.Latitude != nil {
		sets = append(sets, `latitude = ?`)
		args = append(args, *upd.Latitude)
	}
	if upd.Longitude != nil {
		sets = append(sets, `longitude = ?`)
		args = append(args, *upd.Longitude)
	}
	if upd.Description != nil {
		sets = append(sets, `description = ?`)
		args = append(args, *upd.Description)
	}
	if upd.MainPhotoURL != nil {
		sets = append(sets, `main_photo_url = ?`)
		args = append(args, *upd.MainPhotoURL)
	}

	query := fmt.Sprintf(`UPDATE benches SET %s WHERE id = ?`, strings.Join(sets, ", "))
	args = append(args, id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update bench %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("bench not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) UpdateBenchStatus(ctx context.Context, id string, status model.BenchStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE benches SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update bench status %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("bench not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) DeleteBench(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin delete bench")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM bench_photos WHERE bench_id = ?`, id); err != nil {
		return eris.Wrapf(err, "sqlite: delete bench photos %s", id)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM benches WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete bench %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("bench not found: %s", id)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit delete bench")
}

func (s *SQLiteStore) InsertPhotos(ctx context.Context, benchID string, photos []model.BenchPhoto) error {
	if len(photos) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i, p := range photos {
		id := p.ID
		if id == "" {
			id = uuid.New().String()
		}
		createdAt := now.Add(time.Duration(i) * time.Microsecond)
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO bench_photos (id, bench_id, url, is_main, created_at) VALUES (?, ?, ?, ?, ?)`,
			id, benchID, p.URL, p.IsMain, createdAt,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert photo for bench %s", benchID)
		}
	}
	return nil
}

func (s *SQLiteStore) DeletePhotosByURL(ctx context.Context, benchID string, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(urls)), ",")
	args := []any{benchID}
	for _, u := range urls {
		args = append(args, u)
	}
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM bench_photos WHERE bench_id = ? AND url IN (%s)`, placeholders),
		args...,
	)
	return eris.Wrapf(err, "sqlite: delete photos for bench %s", benchID)
}

func (s *SQLiteStore) ListPhotos(ctx context.Context, benchID string) ([]model.BenchPhoto, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, bench_id, url, is_main, created_at FROM bench_photos WHERE bench_id = ? ORDER BY created_at, id`,
		benchID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list photos for bench %s", benchID)
	}
	defer rows.Close()

	var photos []model.BenchPhoto
	for rows.Next() {
		var p model.BenchPhoto
		if err := rows.Scan(&p.ID, &p.BenchID, &p.URL, &p.IsMain, &p.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan photo")
		}
		photos = append(photos, p)
	}
	return photos, eris.Wrap(rows.Err(), "sqlite: list photos iterate")
}

func (s *SQLiteStore) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	var p model.Profile
	var username *string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, username, is_admin, created_at FROM profiles WHERE user_id = ?`,
		userID,
	).Scan(&p.UserID, &username, &p.IsAdmin, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get profile %s", userID)
	}
	if username != nil {
		p.Username = *username
	}
	return &p, nil
}

func (s *SQLiteStore) UpsertProfile(ctx context.Context, p model.Profile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, username, is_admin, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET username = excluded.username, is_admin = excluded.is_admin`,
		p.UserID, nullable(p.Username), p.IsAdmin, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: upsert profile")
}

type sqliteScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteBenchRow(row sqliteScanner) (*model.Bench, error) {
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

func scanSQLiteBench(rows *sql.Rows) (*model.Bench, error) {
	b, err := scanSQLiteBenchRow(rows)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan bench")
	}
	return b, nil
}
