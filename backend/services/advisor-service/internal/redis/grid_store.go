package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"smartcharge/backend/services/advisor-service/internal/models"
)

const gridConditionsKey = "grid:conditions:current"

// ErrGridConditionsNotFound is returned when no snapshot is stored or it expired.
var ErrGridConditionsNotFound = errors.New("grid conditions not found")

// GridStore keeps the latest grid conditions snapshot.
type GridStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewGridStore returns redis-backed store. A zero ttl keeps snapshots until replaced.
func NewGridStore(client *redis.Client, ttl time.Duration) *GridStore {
	return &GridStore{client: client, ttl: ttl}
}

// Save replaces the current snapshot.
func (s *GridStore) Save(ctx context.Context, conditions models.GridConditions) error {
	data, err := json.Marshal(conditions)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, gridConditionsKey, data, s.ttl).Err()
}

// Get returns the current snapshot.
func (s *GridStore) Get(ctx context.Context) (*models.GridConditions, error) {
	result, err := s.client.Get(ctx, gridConditionsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrGridConditionsNotFound
		}
		return nil, err
	}
	var conditions models.GridConditions
	if err := json.Unmarshal([]byte(result), &conditions); err != nil {
		return nil, err
	}
	return &conditions, nil
}
