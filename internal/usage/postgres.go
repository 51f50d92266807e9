package usage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aimerfeng/TierLink/internal/database"
	"github.com/aimerfeng/TierLink/internal/models"
	"github.com/aimerfeng/TierLink/internal/monitoring"
)

// PostgresRepository stores usage records in the api_usage table
type PostgresRepository struct {
	db *database.DB
}

// NewPostgresRepository creates a Postgres-backed usage repository
func NewPostgresRepository(db *database.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, userID, apiID string) (*models.UsageRecord, error) {
	start := time.Now()
	query := `
		SELECT user_id, api_id, monthly_usage, daily_usage,
		       last_reset_month, last_reset_day, created_at, updated_at
		FROM api_usage
		WHERE user_id = $1 AND api_id = $2
	`

	var record models.UsageRecord
	err := r.db.Pool.QueryRow(ctx, query, userID, apiID).Scan(
		&record.UserID, &record.APIID,
		&record.MonthlyUsage, &record.DailyUsage,
		&record.LastResetMonth, &record.LastResetDay,
		&record.CreatedAt, &record.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		monitoring.RecordStoreOp("usage_get", time.Since(start), nil)
		return nil, nil
	}
	monitoring.RecordStoreOp("usage_get", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Increment performs reconcile-and-add in one statement. The CASE arms
// compare the stored period markers against the caller's: a matching period
// adds to the running counter, a rolled-over period restarts at 1.
func (r *PostgresRepository) Increment(ctx context.Context, userID, apiID, month, day string, now time.Time) error {
	start := time.Now()
	query := `
		INSERT INTO api_usage (
			user_id, api_id, monthly_usage, daily_usage,
			last_reset_month, last_reset_day, created_at, updated_at
		) VALUES ($1, $2, 1, 1, $3, $4, $5, $5)
		ON CONFLICT (user_id, api_id) DO UPDATE SET
			monthly_usage = CASE
				WHEN api_usage.last_reset_month = $3 THEN api_usage.monthly_usage + 1
				ELSE 1
			END,
			daily_usage = CASE
				WHEN api_usage.last_reset_day = $4 THEN api_usage.daily_usage + 1
				ELSE 1
			END,
			last_reset_month = $3,
			last_reset_day = $4,
			updated_at = $5
	`

	_, err := r.db.Pool.Exec(ctx, query, userID, apiID, month, day, now.UTC())
	monitoring.RecordStoreOp("usage_increment", time.Since(start), err)
	return err
}

func (r *PostgresRepository) ListForAPI(ctx context.Context, apiID string) ([]models.UsageRecord, error) {
	start := time.Now()
	query := `
		SELECT user_id, api_id, monthly_usage, daily_usage,
		       last_reset_month, last_reset_day, created_at, updated_at
		FROM api_usage
		WHERE api_id = $1
	`

	rows, err := r.db.Pool.Query(ctx, query, apiID)
	if err != nil {
		monitoring.RecordStoreOp("usage_list", time.Since(start), err)
		return nil, err
	}
	defer rows.Close()

	var records []models.UsageRecord
	for rows.Next() {
		var record models.UsageRecord
		if err := rows.Scan(
			&record.UserID, &record.APIID,
			&record.MonthlyUsage, &record.DailyUsage,
			&record.LastResetMonth, &record.LastResetDay,
			&record.CreatedAt, &record.UpdatedAt,
		); err != nil {
			monitoring.RecordStoreOp("usage_list", time.Since(start), err)
			return nil, err
		}
		records = append(records, record)
	}
	monitoring.RecordStoreOp("usage_list", time.Since(start), rows.Err())
	return records, rows.Err()
}
