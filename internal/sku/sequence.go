package sku

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/maison-pos/pkg/config"
	pkgerrors "github.com/angelmondragon/maison-pos/pkg/errors"
)

// maxCounterAttempts bounds retries of a standalone increment that lost a
// deadlock or serialization race.
const maxCounterAttempts = 3

// Sequence hands out strictly increasing values per key. Next must be a single
// atomic increment-and-read; a separate read followed by a write races.
type Sequence interface {
	Next(ctx context.Context, key string) (int64, error)
	Backend() string
}

// upsertCounterSQL creates the counter on first use and increments it in the
// same statement. Postgres and SQLite (3.35+) both accept RETURNING here.
const upsertCounterSQL = `
INSERT INTO sku_counters (prefix, value, updated_at)
VALUES (?, 1, CURRENT_TIMESTAMP)
ON CONFLICT (prefix) DO UPDATE
SET value = sku_counters.value + 1,
    updated_at = CURRENT_TIMESTAMP
RETURNING value
`

// GormSequence keeps counters in the sku_counters table.
type GormSequence struct {
	db   *gorm.DB
	inTx bool
}

// NewGormSequence builds a table-backed sequence.
func NewGormSequence(db *gorm.DB) *GormSequence {
	return &GormSequence{db: db}
}

// WithTx binds the sequence to a transaction so the increment commits or rolls
// back with the caller's writes.
func (s *GormSequence) WithTx(tx *gorm.DB) *GormSequence {
	return &GormSequence{db: tx, inTx: true}
}

// Backend implements Sequence.
func (s *GormSequence) Backend() string { return config.SequenceBackendDB }

// Next implements Sequence.
func (s *GormSequence) Next(ctx context.Context, key string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("sequence db required")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return 0, errors.New("sequence key required")
	}
	var (
		value int64
		err   error
	)
	for attempt := 1; attempt <= maxCounterAttempts; attempt++ {
		err = s.db.WithContext(ctx).Raw(upsertCounterSQL, key).Scan(&value).Error
		// An aborted transaction cannot run the statement again.
		if err == nil || s.inTx || !pkgerrors.IsRetryableSQL(err) {
			break
		}
	}
	if err != nil {
		return 0, fmt.Errorf("increment counter %s: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("counter %s returned no value", key)
	}
	return value, nil
}

// Current reads the last issued value for key, or zero when the counter has not been created.
func (s *GormSequence) Current(ctx context.Context, key string) (int64, error) {
	var value int64
	err := s.db.WithContext(ctx).
		Raw(`SELECT COALESCE(MAX(value), 0) FROM sku_counters WHERE prefix = ?`, key).
		Scan(&value).Error
	return value, err
}

type incrementer interface {
	Incr(ctx context.Context, key string) (int64, error)
	SKUCounterKey(prefix string) string
}

// RedisSequence keeps counters in Redis; INCR is atomic by construction.
type RedisSequence struct {
	client incrementer
}

// NewRedisSequence builds a Redis-backed sequence.
func NewRedisSequence(client incrementer) (*RedisSequence, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	return &RedisSequence{client: client}, nil
}

// Backend implements Sequence.
func (s *RedisSequence) Backend() string { return config.SequenceBackendRedis }

// Next implements Sequence.
func (s *RedisSequence) Next(ctx context.Context, key string) (int64, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return 0, errors.New("sequence key required")
	}
	value, err := s.client.Incr(ctx, s.client.SKUCounterKey(key))
	if err != nil {
		return 0, fmt.Errorf("incr counter %s: %w", key, err)
	}
	return value, nil
}
