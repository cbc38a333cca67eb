package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"licznik.app/server/internal/models"
)

// PostgresStore keeps counters and entries in PostgreSQL behind a pgx
// connection pool.
type PostgresStore struct {
	pool       *pgxpool.Pool
	categories []models.Category
}

// NewPostgresStore connects to PostgreSQL, creates the schema if needed and
// seeds a zeroed counter row for every configured category.
func NewPostgresStore(ctx context.Context, databaseURL string, categories []models.Category) (*PostgresStore, error) {
	if databaseURL == "" {
		host := getEnvOrDefault("POSTGRES_HOST", "localhost")
		port := getEnvOrDefault("POSTGRES_PORT", "5432")
		user := getEnvOrDefault("POSTGRES_USER", "licznik")
		password := os.Getenv("POSTGRES_PASSWORD")
		dbname := getEnvOrDefault("POSTGRES_DB", "licznik")
		sslmode := getEnvOrDefault("POSTGRES_SSLMODE", "disable")

		databaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			user, password, host, port, dbname, sslmode)
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = time.Minute * 30
	config.HealthCheckPeriod = time.Minute * 5

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(initCtx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(initCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &PostgresStore{pool: pool, categories: categories}
	if err := s.createTables(initCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	if err := s.seedCounters(initCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to seed counters: %w", err)
	}

	return s, nil
}

// createTables creates all required tables if they don't exist
func (s *PostgresStore) createTables(ctx context.Context) error {
	countersTable := `
		CREATE TABLE IF NOT EXISTS counters (
			category TEXT PRIMARY KEY,
			count BIGINT NOT NULL DEFAULT 0 CHECK (count >= 0)
		);
	`

	// seq gives strict insertion order; created_at alone can tie under
	// concurrent submissions.
	entriesTable := `
		CREATE TABLE IF NOT EXISTS entries (
			id UUID PRIMARY KEY,
			seq BIGSERIAL,
			category TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			image_url TEXT,
			image_id TEXT,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			display_date TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`

	galleryTable := `
		CREATE TABLE IF NOT EXISTS entry_images (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			entry_id UUID NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
			url TEXT NOT NULL,
			object_id TEXT NOT NULL,
			upload_order INTEGER NOT NULL DEFAULT 0
		);
	`

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_entries_seq ON entries(seq DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_entries_category ON entries(category);`,
		`CREATE INDEX IF NOT EXISTS idx_entry_images_entry_id ON entry_images(entry_id, upload_order);`,
	}

	for _, stmt := range []string{countersTable, entriesTable, galleryTable} {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	for _, index := range indexes {
		if _, err := s.pool.Exec(ctx, index); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

func (s *PostgresStore) seedCounters(ctx context.Context) error {
	for _, cat := range s.categories {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO counters (category, count) VALUES ($1, 0) ON CONFLICT (category) DO NOTHING`,
			string(cat))
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) CounterSet(ctx context.Context) (models.CounterSet, error) {
	rows, err := s.pool.Query(ctx, `SELECT category, count FROM counters`)
	if err != nil {
		return nil, fmt.Errorf("query counters: %w", err)
	}
	defer rows.Close()

	set := make(models.CounterSet, len(s.categories))
	for _, cat := range s.categories {
		set[cat] = 0
	}
	for rows.Next() {
		var cat string
		var count int64
		if err := rows.Scan(&cat, &count); err != nil {
			return nil, fmt.Errorf("scan counter: %w", err)
		}
		set[models.Category(cat)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read counters: %w", err)
	}
	return set, nil
}

func (s *PostgresStore) AtomicAdjust(ctx context.Context, cat models.Category, delta int64) (Adjustment, error) {
	// Single conditional UPDATE; the WHERE clause keeps a concurrent
	// decrement from racing past zero.
	var count int64
	err := s.pool.QueryRow(ctx, `
		UPDATE counters SET count = count + $2
		WHERE category = $1 AND count + $2 >= 0
		RETURNING count
	`, string(cat), delta).Scan(&count)
	if err == nil {
		return Adjustment{Count: count}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Adjustment{}, fmt.Errorf("adjust counter: %w", err)
	}

	// Either the counter row is missing (lazy init) or the decrement
	// would go negative (clamp to the floor).
	err = s.pool.QueryRow(ctx, `
		INSERT INTO counters (category, count) VALUES ($1, GREATEST($2, 0))
		ON CONFLICT (category) DO UPDATE SET count = 0
		RETURNING count
	`, string(cat), delta).Scan(&count)
	if err != nil {
		return Adjustment{}, fmt.Errorf("clamp counter: %w", err)
	}
	return Adjustment{Count: count, Clamped: delta < 0}, nil
}

func (s *PostgresStore) ResetCounterSet(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `UPDATE counters SET count = 0`); err != nil {
		return fmt.Errorf("reset counters: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetCount(ctx context.Context, cat models.Category, count int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO counters (category, count) VALUES ($1, $2)
		ON CONFLICT (category) DO UPDATE SET count = EXCLUDED.count
	`, string(cat), count)
	if err != nil {
		return fmt.Errorf("set counter: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertEntry(ctx context.Context, entry *models.Entry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert entry: %w", err)
	}
	defer tx.Rollback(ctx)

	var imageURL, imageID *string
	if entry.Image != nil {
		imageURL, imageID = &entry.Image.URL, &entry.Image.ID
	}
	var lat, lng *float64
	if entry.Location != nil {
		lat, lng = &entry.Location.Latitude, &entry.Location.Longitude
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO entries (id, category, title, body, image_url, image_id, latitude, longitude, display_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, entry.ID, string(entry.Category), entry.Title, entry.Text, imageURL, imageID, lat, lng, entry.DisplayDate, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}

	for i, img := range entry.Gallery {
		_, err = tx.Exec(ctx, `
			INSERT INTO entry_images (entry_id, url, object_id, upload_order)
			VALUES ($1, $2, $3, $4)
		`, entry.ID, img.URL, img.ID, i)
		if err != nil {
			return fmt.Errorf("insert gallery image: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit insert entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Entry(ctx context.Context, id string) (*models.Entry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, category, title, body, image_url, image_id, latitude, longitude, display_date, created_at
		FROM entries WHERE id = $1
	`, id)

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query entry: %w", err)
	}

	gallery, err := s.galleries(ctx, []string{entry.ID})
	if err != nil {
		return nil, err
	}
	entry.Gallery = gallery[entry.ID]
	return entry, nil
}

func (s *PostgresStore) DeleteEntry(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM entries WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListEntries(ctx context.Context, limit int) ([]models.Entry, error) {
	if limit <= 0 {
		return []models.Entry{}, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, category, title, body, image_url, image_id, latitude, longitude, display_date, created_at
		FROM entries ORDER BY seq DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	entries := make([]models.Entry, 0, limit)
	ids := make([]string, 0, limit)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *entry)
		ids = append(ids, entry.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}

	galleries, err := s.galleries(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Gallery = galleries[entries[i].ID]
	}
	return entries, nil
}

func (s *PostgresStore) DeleteAllEntries(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM entries`); err != nil {
		return fmt.Errorf("delete all entries: %w", err)
	}
	return nil
}

func (s *PostgresStore) LiveTotals(ctx context.Context) (map[models.Category]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT category, COUNT(*) FROM entries GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("query live totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[models.Category]int64, len(s.categories))
	for _, cat := range s.categories {
		totals[cat] = 0
	}
	for rows.Next() {
		var cat string
		var n int64
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, fmt.Errorf("scan live total: %w", err)
		}
		totals[models.Category(cat)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read live totals: %w", err)
	}
	return totals, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// galleries fetches gallery images for a batch of entry ids in one query.
func (s *PostgresStore) galleries(ctx context.Context, ids []string) (map[string][]models.ImageRef, error) {
	out := make(map[string][]models.ImageRef, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT entry_id, url, object_id FROM entry_images
		WHERE entry_id = ANY($1)
		ORDER BY entry_id, upload_order
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("query gallery images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entryID string
		var img models.ImageRef
		if err := rows.Scan(&entryID, &img.URL, &img.ID); err != nil {
			return nil, fmt.Errorf("scan gallery image: %w", err)
		}
		out[entryID] = append(out[entryID], img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read gallery images: %w", err)
	}
	return out, nil
}

func scanEntry(row pgx.Row) (*models.Entry, error) {
	var entry models.Entry
	var cat string
	var imageURL, imageID *string
	var lat, lng *float64

	err := row.Scan(&entry.ID, &cat, &entry.Title, &entry.Text, &imageURL, &imageID, &lat, &lng, &entry.DisplayDate, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}

	entry.Category = models.Category(cat)
	if imageURL != nil && imageID != nil {
		entry.Image = &models.ImageRef{URL: *imageURL, ID: *imageID}
	}
	if lat != nil && lng != nil {
		entry.Location = &models.Location{Latitude: *lat, Longitude: *lng}
	}
	return &entry, nil
}

// getEnvOrDefault returns the environment variable value or a default value if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
