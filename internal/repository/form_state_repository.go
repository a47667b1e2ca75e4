package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/medsurvey/internal/config"
	"github.com/stemsi/medsurvey/internal/model"
)

// ErrFormNotFound is returned when a form instance expired or never existed.
var ErrFormNotFound = errors.New("form instance not found")

// FormStateRepository keeps the field values and submit gate of open form
// instances.
type FormStateRepository interface {
	Create(ctx context.Context, formID string, state model.FormState) error
	Load(ctx context.Context, formID string, keys []string) (model.FormState, error)
	SetField(ctx context.Context, formID, key, value string) error
	Save(ctx context.Context, formID string, state model.FormState) error
	AcquireSubmit(ctx context.Context, formID string, ttl time.Duration) (string, bool, error)
	RefreshSubmit(ctx context.Context, formID, gate string, ttl time.Duration) (bool, error)
	ReleaseSubmit(ctx context.Context, formID, gate string) error
	IsSubmitting(ctx context.Context, formID string) (bool, error)
}

type formStateRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewFormStateRepository stores each instance as a Redis hash that expires
// ttl after its last write.
func NewFormStateRepository(rdb *redis.Client, ttl time.Duration) FormStateRepository {
	return &formStateRepository{rdb: rdb, ttl: ttl}
}

func (r *formStateRepository) Create(ctx context.Context, formID string, state model.FormState) error {
	return r.write(ctx, formID, state)
}

func (r *formStateRepository) Load(ctx context.Context, formID string, keys []string) (model.FormState, error) {
	stateKey := config.CacheKey.FormStateKey(formID)

	values, err := r.rdb.HGetAll(ctx, stateKey).Result()
	if err != nil {
		return model.FormState{}, fmt.Errorf("load form state: %w", err)
	}
	if len(values) == 0 {
		return model.FormState{}, ErrFormNotFound
	}

	state := model.NewFormState(keys)
	for k, v := range values {
		state.Set(k, v)
	}

	r.rdb.Expire(ctx, stateKey, r.ttl)
	return state, nil
}

func (r *formStateRepository) SetField(ctx context.Context, formID, key, value string) error {
	stateKey := config.CacheKey.FormStateKey(formID)

	n, err := r.rdb.Exists(ctx, stateKey).Result()
	if err != nil {
		return fmt.Errorf("check form state: %w", err)
	}
	if n == 0 {
		return ErrFormNotFound
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, stateKey, key, value)
		pipe.Expire(ctx, stateKey, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set field: %w", err)
	}
	return nil
}

func (r *formStateRepository) Save(ctx context.Context, formID string, state model.FormState) error {
	return r.write(ctx, formID, state)
}

// The submit gate holds the token of the attempt that owns it. Refresh and
// release only act while that token is still stored.
var (
	refreshGateScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)
	releaseGateScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
)

// AcquireSubmit sets the submit gate if it is free and returns the token
// identifying this attempt. The gate expires after ttl so a crashed request
// cannot lock a form forever.
func (r *formStateRepository) AcquireSubmit(ctx context.Context, formID string, ttl time.Duration) (string, bool, error) {
	gate := uuid.New().String()
	ok, err := r.rdb.SetNX(ctx, config.CacheKey.FormSubmittingKey(formID), gate, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire submit gate: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return gate, true, nil
}

// RefreshSubmit extends the gate to ttl. It reports false once the gate
// expired or belongs to another attempt.
func (r *formStateRepository) RefreshSubmit(ctx context.Context, formID, gate string, ttl time.Duration) (bool, error) {
	n, err := refreshGateScript.Run(ctx, r.rdb, []string{config.CacheKey.FormSubmittingKey(formID)}, gate, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("refresh submit gate: %w", err)
	}
	return n == 1, nil
}

func (r *formStateRepository) ReleaseSubmit(ctx context.Context, formID, gate string) error {
	if err := releaseGateScript.Run(ctx, r.rdb, []string{config.CacheKey.FormSubmittingKey(formID)}, gate).Err(); err != nil {
		return fmt.Errorf("release submit gate: %w", err)
	}
	return nil
}

func (r *formStateRepository) IsSubmitting(ctx context.Context, formID string) (bool, error) {
	n, err := r.rdb.Exists(ctx, config.CacheKey.FormSubmittingKey(formID)).Result()
	if err != nil {
		return false, fmt.Errorf("check submit gate: %w", err)
	}
	return n > 0, nil
}

// write stores every pair, empty values included, so an instance hash is
// never empty while it is alive.
func (r *formStateRepository) write(ctx context.Context, formID string, state model.FormState) error {
	stateKey := config.CacheKey.FormStateKey(formID)

	pairs := state.Pairs()
	args := make([]interface{}, 0, len(pairs)*2)
	for _, p := range pairs {
		args = append(args, p.Key, p.Value)
	}

	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, stateKey, args...)
		pipe.Expire(ctx, stateKey, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save form state: %w", err)
	}
	return nil
}
