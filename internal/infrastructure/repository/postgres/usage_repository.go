package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// UsageRepository counts generation calls per user, operation and calendar
// month.
type UsageRepository struct {
	db *sql.DB
}

func NewUsageRepository(db *sql.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) IncrementUsage(ctx context.Context, userID, operation string) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO usage_counters (user_id, operation, period, count, updated_at)
VALUES ($1,$2,$3,1,$4)
ON CONFLICT (user_id, operation, period)
DO UPDATE SET count = usage_counters.count + 1, updated_at = EXCLUDED.updated_at
`, userID, operation, now.Format("2006-01"), now)
	if err != nil {
		return fmt.Errorf("increment usage: %w", err)
	}
	return nil
}
