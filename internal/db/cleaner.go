package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// PurgeDeleted permanently removes wishlist records soft-deleted before now-retention.
func PurgeDeleted(ctx context.Context, db *sql.DB, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UTC()
	res, err := db.ExecContext(ctx, `
        DELETE FROM wishlists
         WHERE deleted_at IS NOT NULL
           AND deleted_at < $1
    `, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge deleted wishlist records: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows, nil
}

// StartSoftDeleteCleaner runs PurgeDeleted every interval until ctx is done.
func StartSoftDeleteCleaner(
	ctx context.Context,
	db *sql.DB,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rows, err := PurgeDeleted(ctx, db, retention)
				if err != nil {
					log.Error("failed to clean soft-deleted wishlist records", zap.Error(err))
					continue
				}
				if rows > 0 {
					log.Info("cleaned soft-deleted wishlist records", zap.Int64("removed", rows))
				}
			}
		}
	}()
}
