package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// File is a cached media object served under /cdn/{filename}.
type File struct {
	Filename    string
	ContentType string
	Data        []byte
	SourceURL   string
	UpdatedAt   time.Time
}

// PutFile inserts or replaces a cached file.
func (s *Store) PutFile(ctx context.Context, f File) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO cdn_files (filename, content_type, data, source_url, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(filename) DO UPDATE SET
			content_type = excluded.content_type,
			data = excluded.data,
			source_url = excluded.source_url,
			updated_at = CURRENT_TIMESTAMP;
	`, f.Filename, f.ContentType, f.Data, f.SourceURL)
	if err != nil {
		return fmt.Errorf("put cdn file: %w", err)
	}
	return nil
}

// GetFile loads a cached file.
func (s *Store) GetFile(ctx context.Context, filename string) (*File, bool, error) {
	var f File
	err := s.conn(ctx).QueryRowContext(ctx, `
		SELECT filename, content_type, data, source_url, updated_at FROM cdn_files WHERE filename = ?;
	`, filename).Scan(&f.Filename, &f.ContentType, &f.Data, &f.SourceURL, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cdn file: %w", err)
	}
	return &f, true, nil
}

// ListEmojiReferences returns every distinct emoji used by the catalog.
func (s *Store) ListEmojiReferences(ctx context.Context) ([]string, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `
		SELECT emoji FROM characters WHERE emoji != ''
		UNION SELECT emoji FROM valkyries WHERE emoji != ''
		UNION SELECT aug_emoji FROM valkyries WHERE aug_emoji != ''
		ORDER BY 1;
	`)
	if err != nil {
		return nil, fmt.Errorf("query emoji references: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, fmt.Errorf("scan emoji reference: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("emoji reference rows: %w", err)
	}
	return out, nil
}
