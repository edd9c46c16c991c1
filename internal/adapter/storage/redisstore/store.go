// Package redisstore keeps entity records in Redis so several processes can
// share one status view. Each request is a hash keyed by entity id.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/bnema/imgbatch/internal/domain"
	"github.com/bnema/imgbatch/internal/port"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "imgbatch:request:"
	maxRetries = 10
)

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore wraps rdb. With a positive ttl a request hash expires once every
// entity in it is terminal; while any entity is still running it has none.
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{
		rdb: rdb,
		ttl: ttl,
	}
}

// Open parses a redis:// URL and checks the server answers.
func Open(ctx context.Context, url string, ttl time.Duration) (*Store, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewStore(rdb, ttl), nil
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) Persist(ctx context.Context, rec *domain.EntityRecord) error {
	key := requestKey(rec.RequestID)
	field := strconv.FormatInt(rec.EntityID, 10)

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: encode: %v", domain.ErrPersistence, err)
	}

	txf := func(tx *redis.Tx) error {
		data, err := tx.HGet(ctx, key, field).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var stored domain.EntityRecord
			if err := json.Unmarshal(data, &stored); err != nil {
				return err
			}
			if !domain.CanOverwrite(stored.Status, rec.Status) {
				return fmt.Errorf("%w: entity %d of %s is already %s", domain.ErrInvalidTransition, rec.EntityID, rec.RequestID, stored.Status)
			}
		}

		expire := false
		if s.ttl > 0 {
			if expire, err = s.settledAfter(ctx, tx, key, field, rec.Status); err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, field, payload)
			if expire {
				pipe.Expire(ctx, key, s.ttl)
			} else if s.ttl > 0 {
				pipe.Persist(ctx, key)
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxRetries; i++ {
		err = s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		break
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrInvalidTransition) {
		return err
	}
	return fmt.Errorf("%w: persist %s/%d: %v", domain.ErrPersistence, rec.RequestID, rec.EntityID, err)
}

// settledAfter reports whether every entity of the hash is terminal once field
// holds status.
func (s *Store) settledAfter(ctx context.Context, tx *redis.Tx, key, field string, status domain.EntityStatus) (bool, error) {
	if !status.IsTerminal() {
		return false, nil
	}
	fields, err := tx.HGetAll(ctx, key).Result()
	if err != nil {
		return false, err
	}
	for f, data := range fields {
		if f == field {
			continue
		}
		var other domain.EntityRecord
		if err := json.Unmarshal([]byte(data), &other); err != nil {
			return false, err
		}
		if !other.Status.IsTerminal() {
			return false, nil
		}
	}
	return true, nil
}

func (s *Store) Query(ctx context.Context, requestID string) ([]*domain.EntityRecord, error) {
	fields, err := s.rdb.HGetAll(ctx, requestKey(requestID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", domain.ErrPersistence, requestID, err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrNotFound
	}

	records, err := decodeRecords(fields)
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Position != records[j].Position {
			return records[i].Position < records[j].Position
		}
		return records[i].EntityID < records[j].EntityID
	})
	return records, nil
}

// DeleteExpired walks every request hash and drops terminal entries last
// updated before cutoff. Key TTLs remain the main expiry mechanism.
func (s *Store) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	deleted := 0
	iter := s.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		fields, err := s.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return deleted, fmt.Errorf("%w: load %s: %v", domain.ErrPersistence, key, err)
		}
		records, err := decodeRecords(fields)
		if err != nil {
			return deleted, err
		}

		var expired []string
		for _, r := range records {
			if r.Status.IsTerminal() && r.UpdatedAt.Before(cutoff) {
				expired = append(expired, strconv.FormatInt(r.EntityID, 10))
			}
		}
		if len(expired) == 0 {
			continue
		}
		n, err := s.rdb.HDel(ctx, key, expired...).Result()
		if err != nil {
			return deleted, fmt.Errorf("%w: delete from %s: %v", domain.ErrPersistence, key, err)
		}
		deleted += int(n)
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("%w: scan: %v", domain.ErrPersistence, err)
	}
	return deleted, nil
}

func decodeRecords(fields map[string]string) ([]*domain.EntityRecord, error) {
	records := make([]*domain.EntityRecord, 0, len(fields))
	for field, data := range fields {
		var rec domain.EntityRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("%w: decode entity %s: %v", domain.ErrPersistence, field, err)
		}
		records = append(records, &rec)
	}
	return records, nil
}

func requestKey(requestID string) string {
	return keyPrefix + requestID
}

var _ port.StatusStore = (*Store)(nil)
