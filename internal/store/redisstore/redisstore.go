// Package redisstore keeps chat job records and idempotency keys in Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/suPer8Hu/germanleap/internal/models"
	"github.com/suPer8Hu/germanleap/internal/store"
)

const (
	jobTTL        = 24 * time.Hour
	jobKeyPrefix  = "chat:job:"
	idemKeyPrefix = "chat:idem:"
)

type Store struct {
	rdb    *redis.Client
	prefix string
}

// New connects and pings. prefix namespaces every key.
func New(addr, password string, db int, prefix string) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &Store{rdb: rdb, prefix: prefix}, nil
}

func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) jobKey(id string) string { return s.prefix + jobKeyPrefix + id }

func (s *Store) idemKey(studentID, key string) string {
	return s.prefix + idemKeyPrefix + studentID + ":" + key
}

func (s *Store) CreateJob(ctx context.Context, job *models.ChatJob) error {
	return s.SaveJob(ctx, job)
}

func (s *Store) SaveJob(ctx context.Context, job *models.ChatJob) error {
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.jobKey(job.ID), b, jobTTL).Err()
}

func (s *Store) GetJob(ctx context.Context, id string) (*models.ChatJob, error) {
	b, err := s.rdb.Get(ctx, s.jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	var job models.ChatJob
	if err := json.Unmarshal(b, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

func (s *Store) ClaimIdempotencyKey(ctx context.Context, studentID, key, jobID string) (string, bool, error) {
	k := s.idemKey(studentID, key)
	ok, err := s.rdb.SetNX(ctx, k, jobID, jobTTL).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return jobID, true, nil
	}
	existing, err := s.rdb.Get(ctx, k).Result()
	if err != nil {
		return "", false, err
	}
	return existing, false, nil
}

func (s *Store) DeleteJob(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, s.jobKey(id)).Err()
}

// releaseScript deletes KEYS[1] only while it still holds ARGV[1].
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (s *Store) ReleaseIdempotencyKey(ctx context.Context, studentID, key, jobID string) error {
	return releaseScript.Run(ctx, s.rdb, []string{s.idemKey(studentID, key)}, jobID).Err()
}
