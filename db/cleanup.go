package db

import (
	"context"
	"fmt"
	"time"
)

// CleanupResult describes one retention pass.
type CleanupResult struct {
	Deleted  int64
	Duration time.Duration
}

// Cleanup deletes history rows older than retentionDays and vacuums the
// file. Image files on disk are not touched.
func (d *Database) Cleanup(ctx context.Context, retentionDays int) (CleanupResult, error) {
	start := time.Now()
	if retentionDays < 0 {
		return CleanupResult{}, fmt.Errorf("retentionDays must be non-negative, got %d", retentionDays)
	}
	conn, err := d.conn()
	if err != nil {
		return CleanupResult{}, err
	}

	res, err := conn.ExecContext(ctx,
		"DELETE FROM image_history WHERE created_at < datetime('now', ?)",
		fmt.Sprintf("-%d days", retentionDays))
	if err != nil {
		return CleanupResult{}, fmt.Errorf("failed to delete old history: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return CleanupResult{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	result := CleanupResult{Deleted: deleted}

	if deleted > 0 {
		if _, err := conn.ExecContext(ctx, "VACUUM"); err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("cleanup succeeded but VACUUM failed: %w", err)
		}
	}
	result.Duration = time.Since(start)
	return result, nil
}

// StartCleanupScheduler runs Cleanup now and then every interval until ctx
// is done. onCleanup may be nil.
func (d *Database) StartCleanupScheduler(ctx context.Context, retentionDays int, interval time.Duration, onCleanup func(CleanupResult, error)) {
	go func() {
		run := func() {
			result, err := d.Cleanup(ctx, retentionDays)
			if onCleanup != nil {
				onCleanup(result, err)
			}
		}
		run()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run()
			}
		}
	}()
}
