package db

import (
	"context"
	"fmt"
	"time"
)

// ImageRecord is one row of image_history: a persisted output and the
// parameters that produced it.
type ImageRecord struct {
	ID             int64
	UserID         string
	DispatchID     string
	Path           string
	Prompt         string
	NegativePrompt string
	Seed           int64
	Steps          int
	CFGScale       float64
	Width          int
	Height         int
	CreatedAt      time.Time
}

// ImageRepository reads and writes image_history.
type ImageRepository struct {
	db *Database
}

// NewImageRepository wraps database.
func NewImageRepository(database *Database) *ImageRepository {
	return &ImageRepository{db: database}
}

// Insert stores rec and returns its id.
func (r *ImageRepository) Insert(ctx context.Context, rec ImageRecord) (int64, error) {
	conn, err := r.db.conn()
	if err != nil {
		return 0, err
	}
	res, err := conn.ExecContext(ctx, `
		INSERT INTO image_history (
			user_id, dispatch_id, path, prompt, negative_prompt,
			seed, steps, cfg_scale, width, height
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.UserID, rec.DispatchID, rec.Path, rec.Prompt, rec.NegativePrompt,
		rec.Seed, rec.Steps, rec.CFGScale, rec.Width, rec.Height,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert image record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get image record id: %w", err)
	}
	return id, nil
}

// ListByUser returns the newest records of userID first. limit <= 0 means 100.
func (r *ImageRepository) ListByUser(ctx context.Context, userID string, limit int) ([]ImageRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	conn, err := r.db.conn()
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, `
		SELECT id, user_id, dispatch_id, path, prompt, negative_prompt,
		       seed, steps, cfg_scale, width, height, created_at
		FROM image_history
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query image history: %w", err)
	}
	defer rows.Close()

	var out []ImageRecord
	for rows.Next() {
		var rec ImageRecord
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.DispatchID, &rec.Path, &rec.Prompt, &rec.NegativePrompt,
			&rec.Seed, &rec.Steps, &rec.CFGScale, &rec.Width, &rec.Height, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan image record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating image history: %w", err)
	}
	return out, nil
}

// CountByUser returns how many records userID has.
func (r *ImageRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	conn, err := r.db.conn()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM image_history WHERE user_id = ?", userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count image history: %w", err)
	}
	return n, nil
}
