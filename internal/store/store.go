// Package store persists the video catalog in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"github.com/videoflix/backend/internal/model"
)

const defaultTimeout = 5 * time.Second

// ErrVideoNotFound is returned when no row matches the requested ID.
var ErrVideoNotFound = errors.New("video not found")

const schema = `
CREATE TABLE IF NOT EXISTS videos (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at INTEGER NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	category TEXT NOT NULL,
	source_path TEXT NOT NULL,
	thumbnail_path TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending'
);

CREATE INDEX IF NOT EXISTS idx_videos_created_at ON videos(created_at);
`

// VideoStore is the sqlite-backed catalog. Updates issued by the conversion
// tasks touch a single column, so a thumbnail write never clobbers a status
// write from a concurrent job.
type VideoStore struct {
	db *sql.DB
}

// Open connects to the database file at path and creates the schema.
func Open(ctx context.Context, path string) (*VideoStore, error) {
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", path)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &VideoStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *VideoStore) Close() error {
	return s.db.Close()
}

// Ping checks the connection. Used by the health endpoint.
func (s *VideoStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Create inserts v and fills in its ID, CreatedAt and Status.
func (s *VideoStore) Create(ctx context.Context, v *model.Video) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	if v.Status == "" {
		v.Status = model.VideoStatusPending
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO videos (created_at, title, description, category, source_path, thumbnail_path, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.CreatedAt.UnixMicro(), v.Title, v.Description, v.Category, v.SourcePath, v.ThumbnailPath, string(v.Status),
	)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	v.ID = id
	return nil
}

const selectColumns = `SELECT id, created_at, title, description, category, source_path, thumbnail_path, status FROM videos`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (*model.Video, error) {
	var (
		v         model.Video
		createdAt int64
		status    string
	)
	if err := row.Scan(&v.ID, &createdAt, &v.Title, &v.Description, &v.Category, &v.SourcePath, &v.ThumbnailPath, &status); err != nil {
		return nil, err
	}
	v.CreatedAt = time.UnixMicro(createdAt).UTC()
	v.Status = model.VideoStatus(status)
	return &v, nil
}

// Get loads a single video.
func (s *VideoStore) Get(ctx context.Context, id int64) (*model.Video, error) {
	v, err := scanVideo(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVideoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get video %d: %w", id, err)
	}
	return v, nil
}

// List returns every video, newest first.
func (s *VideoStore) List(ctx context.Context) ([]model.Video, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	videos := make([]model.Video, 0)
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("list videos: %w", err)
		}
		videos = append(videos, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	return videos, nil
}

// Delete removes the row and returns it as it was just before deletion.
func (s *VideoStore) Delete(ctx context.Context, id int64) (*model.Video, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("delete video %d: %w", id, err)
	}
	defer func() { _ = tx.Rollback() }()

	v, err := scanVideo(tx.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVideoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete video %d: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete video %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("delete video %d: %w", id, err)
	}
	return v, nil
}

// SetThumbnailPath records the thumbnail location relative to the media root.
func (s *VideoStore) SetThumbnailPath(ctx context.Context, id int64, rel string) error {
	return s.updateColumn(ctx, id, "thumbnail_path", rel)
}

// SetStatus records the conversion state.
func (s *VideoStore) SetStatus(ctx context.Context, id int64, status model.VideoStatus) error {
	return s.updateColumn(ctx, id, "status", string(status))
}

// column is one of a fixed set of literals, never user input.
func (s *VideoStore) updateColumn(ctx context.Context, id int64, column, value string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE videos SET `+column+` = ? WHERE id = ?`, value, id)
	if err != nil {
		return fmt.Errorf("update video %d %s: %w", id, column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update video %d %s: %w", id, column, err)
	}
	if n == 0 {
		return ErrVideoNotFound
	}
	return nil
}
