package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/medsurvey/internal/config"
	"github.com/stemsi/medsurvey/internal/model"
)

// DeliveryRepository persists submission audit records.
type DeliveryRepository interface {
	Create(ctx context.Context, d *model.Delivery) error
	CountByOutcome(ctx context.Context, variant string) (map[model.DeliveryOutcome]int, error)
}

type deliveryRepository struct {
	db *pgxpool.Pool
}

func NewDeliveryRepository(db *pgxpool.Pool) DeliveryRepository {
	return &deliveryRepository{db: db}
}

// Create inserts d. Re-delivered queue items with a known ID are ignored.
func (r *deliveryRepository) Create(ctx context.Context, d *model.Delivery) error {
	query := `
		INSERT INTO survey_deliveries (id, form_id, variant, outcome, status_code, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query,
		d.ID, d.FormID, d.Variant, string(d.Outcome), d.StatusCode, d.DurationMS, d.CreatedAt,
	)
	return err
}

func (r *deliveryRepository) CountByOutcome(ctx context.Context, variant string) (map[model.DeliveryOutcome]int, error) {
	query := `SELECT outcome, COUNT(*) FROM survey_deliveries WHERE variant = $1 GROUP BY outcome`
	rows, err := r.db.Query(ctx, query, variant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.DeliveryOutcome]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		counts[model.DeliveryOutcome(outcome)] = n
	}
	return counts, rows.Err()
}

// DeliveryQueue hands audit records to the delivery worker through Redis.
type DeliveryQueue struct {
	rdb *redis.Client
}

func NewDeliveryQueue(rdb *redis.Client) *DeliveryQueue {
	return &DeliveryQueue{rdb: rdb}
}

// Record pushes d onto the persistence queue.
func (q *DeliveryQueue) Record(ctx context.Context, d *model.Delivery) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal delivery: %w", err)
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.PersistDeliveriesQueue, payload).Err(); err != nil {
		return fmt.Errorf("queue delivery: %w", err)
	}
	return nil
}
