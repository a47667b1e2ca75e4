package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/medsurvey/internal/config"
	"github.com/stemsi/medsurvey/internal/model"
	"github.com/stemsi/medsurvey/internal/repository"
)

const retryDelay = 5 * time.Second

// DeliveryWorker consumes persist_deliveries_queue and inserts the audit
// records into PostgreSQL.
type DeliveryWorker struct {
	repo repository.DeliveryRepository
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewDeliveryWorker creates a new DeliveryWorker.
func NewDeliveryWorker(repo repository.DeliveryRepository, rdb *redis.Client, log zerolog.Logger) *DeliveryWorker {
	return &DeliveryWorker{
		repo: repo,
		rdb:  rdb,
		log:  log.With().Str("component", "delivery_worker").Logger(),
	}
}

// Start begins the worker loop and blocks until ctx is cancelled.
// Call in a goroutine.
func (w *DeliveryWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *DeliveryWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistDeliveriesQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}
	if len(result) < 2 {
		return
	}

	if err := w.handle(ctx, result[1]); err != nil {
		var perr *persistError
		if !errors.As(err, &perr) {
			// Malformed payloads would fail forever; drop them.
			w.log.Error().Err(err).Msg("Discarding delivery record")
			return
		}
		w.log.Error().Err(err).Msg("Persist error, retrying in 5s")
		w.rdb.RPush(context.WithoutCancel(ctx), config.WorkerKey.PersistDeliveriesQueue, result[1])
		select {
		case <-ctx.Done():
		case <-time.After(retryDelay):
		}
	}
}

type persistError struct{ err error }

func (e *persistError) Error() string { return "persist delivery: " + e.err.Error() }
func (e *persistError) Unwrap() error { return e.err }

// handle decodes one queued record and stores it.
func (w *DeliveryWorker) handle(ctx context.Context, raw string) error {
	var d model.Delivery
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return fmt.Errorf("unmarshal delivery: %w", err)
	}
	if err := w.repo.Create(ctx, &d); err != nil {
		return &persistError{err: err}
	}

	w.log.Debug().
		Str("delivery_id", d.ID.String()).
		Str("outcome", string(d.Outcome)).
		Msg("Delivery persisted")
	return nil
}

// drain processes all remaining items in the queue before shutdown.
func (w *DeliveryWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.PersistDeliveriesQueue).Result()
		if err != nil {
			break
		}

		if err := w.handle(ctx, result); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			var perr *persistError
			if errors.As(err, &perr) {
				w.rdb.RPush(ctx, config.WorkerKey.PersistDeliveriesQueue, result)
				break
			}
			continue
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
