// Package store keeps an archive of posts the watcher has observed and
// notified. The archive backs the history command; the pipeline itself only
// depends on the cursor file, so a disabled or broken archive never blocks
// a run.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// Post is one archived record.
type Post struct {
	ID         int64
	PostID     string
	Content    string
	Link       string
	PostedAt   string // ISO-8601 as observed on the page
	Delivered  bool
	NotifiedAt time.Time
}

// PostInput is the archive payload for one observed post.
type PostInput struct {
	PostID     string
	Content    string
	Link       string
	PostedAt   string
	Delivered  bool
	NotifiedAt time.Time
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := migrate(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordPost upserts one observed post keyed by its post_id, so re-observing
// the same post on a later run updates the row instead of duplicating it.
func (s *Store) RecordPost(ctx context.Context, in PostInput) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if strings.TrimSpace(in.PostID) == "" {
		return errors.New("post_id is required")
	}
	if in.NotifiedAt.IsZero() {
		return errors.New("notified_at is required")
	}

	delivered := 0
	if in.Delivered {
		delivered = 1
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (post_id, content, link, posted_at, delivered, notified_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(post_id) DO UPDATE SET
			content = excluded.content,
			link = excluded.link,
			posted_at = excluded.posted_at,
			delivered = excluded.delivered,
			notified_at = excluded.notified_at
	`,
		in.PostID,
		nullIfEmpty(in.Content),
		nullIfEmpty(in.Link),
		nullIfEmpty(in.PostedAt),
		delivered,
		formatTime(in.NotifiedAt),
	)
	if err != nil {
		return fmt.Errorf("record post: %w", err)
	}
	return nil
}

// Recent returns the most recently notified posts, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Post, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, post_id, content, link, posted_at, delivered, notified_at
		FROM posts
		ORDER BY notified_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var posts []Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent posts: %w", err)
	}

	return posts, nil
}

// PruneOld deletes archive rows notified more than retainDays ago.
// Returns the number of posts removed.
func (s *Store) PruneOld(ctx context.Context, retainDays int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if retainDays <= 0 {
		return 0, nil
	}

	cutoff := formatTime(time.Now().AddDate(0, 0, -retainDays))
	res, err := s.db.ExecContext(ctx, "DELETE FROM posts WHERE notified_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune old posts: %w", err)
	}

	n, _ := res.RowsAffected()
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(scanner rowScanner) (Post, error) {
	var (
		post                          Post
		contentVal, linkVal, postedAt sql.NullString
		delivered                     int
		notifiedAt                    string
	)

	if err := scanner.Scan(
		&post.ID,
		&post.PostID,
		&contentVal,
		&linkVal,
		&postedAt,
		&delivered,
		&notifiedAt,
	); err != nil {
		return Post{}, fmt.Errorf("scan post: %w", err)
	}

	if contentVal.Valid {
		post.Content = contentVal.String
	}
	if linkVal.Valid {
		post.Link = linkVal.String
	}
	if postedAt.Valid {
		post.PostedAt = postedAt.String
	}
	post.Delivered = delivered != 0

	var err error
	post.NotifiedAt, err = parseTime(notifiedAt)
	if err != nil {
		return Post{}, fmt.Errorf("parse notified_at: %w", err)
	}

	return post, nil
}

func nullIfEmpty(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return time.Time{}.UTC().Format(time.RFC3339Nano)
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}
