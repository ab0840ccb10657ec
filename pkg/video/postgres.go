package video

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pion/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS camlink_videos (
	file_name   TEXT PRIMARY KEY,
	camera_name TEXT NOT NULL,
	received    BOOLEAN NOT NULL DEFAULT FALSE,
	pending     BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS camlink_videos_camera_idx ON camlink_videos (camera_name, created_at);
`

// PostgresConfig configures a PostgresRepository.
type PostgresConfig struct {
	// DSN is the connection string. Ignored when Pool is set.
	DSN string

	// Pool is an existing pool to use. The repository does not own it.
	Pool *pgxpool.Pool

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// PostgresRepository is a Repository backed by a Postgres table.
type PostgresRepository struct {
	pool    *pgxpool.Pool
	ownPool bool
	log     logging.LeveledLogger
}

// OpenPostgres connects to Postgres and ensures the schema exists.
func OpenPostgres(ctx context.Context, config PostgresConfig) (*PostgresRepository, error) {
	r := &PostgresRepository{pool: config.Pool}
	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("video")
	}

	if r.pool == nil {
		if config.DSN == "" {
			return nil, ErrDSNRequired
		}
		cfg, err := pgxpool.ParseConfig(config.DSN)
		if err != nil {
			return nil, fmt.Errorf("video: parse postgres config: %w", err)
		}
		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("video: open postgres pool: %w", err)
		}
		r.pool = pool
		r.ownPool = true
	}

	if err := r.migrate(ctx); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *PostgresRepository) migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("video: migrate: %w", err)
	}
	if r.log != nil {
		r.log.Debug("schema ready")
	}
	return nil
}

// InsertPending implements Repository.
func (r *PostgresRepository) InsertPending(ctx context.Context, camera, fileName string) error {
	if err := validate(camera, fileName); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `
INSERT INTO camlink_videos (file_name, camera_name, pending)
VALUES ($1, $2, TRUE)
ON CONFLICT (file_name) DO NOTHING
`, fileName, camera)
	if err != nil {
		return fmt.Errorf("video: insert pending %s: %w", fileName, err)
	}
	return nil
}

// MarkReceived implements Repository.
func (r *PostgresRepository) MarkReceived(ctx context.Context, camera, fileName string) error {
	if err := validate(camera, fileName); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, `
INSERT INTO camlink_videos (file_name, camera_name, received, pending)
VALUES ($1, $2, TRUE, FALSE)
ON CONFLICT (file_name) DO UPDATE SET received = TRUE, pending = FALSE
`, fileName, camera)
	if err != nil {
		return fmt.Errorf("video: mark received %s: %w", fileName, err)
	}
	return nil
}

// ListByCamera implements Repository.
func (r *PostgresRepository) ListByCamera(ctx context.Context, camera string) ([]Video, error) {
	rows, err := r.pool.Query(ctx, `
SELECT camera_name, file_name, received, pending, created_at
FROM camlink_videos
WHERE camera_name = $1
ORDER BY created_at, file_name
`, camera)
	if err != nil {
		return nil, fmt.Errorf("video: list %s: %w", camera, err)
	}
	defer rows.Close()

	var out []Video
	for rows.Next() {
		var v Video
		if err := rows.Scan(&v.CameraName, &v.FileName, &v.Received, &v.Pending, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Close releases the pool if the repository opened it.
func (r *PostgresRepository) Close() {
	if r.ownPool && r.pool != nil {
		r.pool.Close()
	}
}

// Verify PostgresRepository implements Repository.
var _ Repository = (*PostgresRepository)(nil)
