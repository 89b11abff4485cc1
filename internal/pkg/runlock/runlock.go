// Package runlock prevents two pipeline runs from executing concurrently.
// Stages exchange data through shared files, so overlapping runs would
// interleave partial tables.
package runlock

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

const key = "campaign-insights:pipeline-run"

// Lock is a single-holder run lock. Acquire returns false when another run
// already holds it.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// New picks the backend: Redis when available, Postgres advisory lock
// otherwise. Both survive a crashed holder, Redis via TTL and Postgres via
// session scoping.
func New(redisClient *redis.Client, db *sql.DB, ttl time.Duration) Lock {
	if redisClient != nil {
		return newRedisLock(redisClient, ttl)
	}
	return newAdvisoryLock(db)
}

type redisLock struct {
	client *redis.Client
	owner  string
	ttl    time.Duration
}

func newRedisLock(client *redis.Client, ttl time.Duration) *redisLock {
	b := make([]byte, 16)
	rand.Read(b)
	return &redisLock{client: client, owner: hex.EncodeToString(b), ttl: ttl}
}

func (l *redisLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire run lock: %w", err)
	}
	return ok, nil
}

// Release deletes the lock only while this process still owns it.
func (l *redisLock) Release(ctx context.Context) error {
	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)
	_, err := script.Run(ctx, l.client, []string{key}, l.owner).Result()
	return err
}

type advisoryLock struct {
	db     *sql.DB
	lockID int64
}

func newAdvisoryLock(db *sql.DB) *advisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &advisoryLock{db: db, lockID: int64(h.Sum64())}
}

func (l *advisoryLock) Acquire(ctx context.Context) (bool, error) {
	var acquired bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired)
	return acquired, err
}

func (l *advisoryLock) Release(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}
