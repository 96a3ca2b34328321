package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// IBatchMarker records that an invoice has been generated for a given
// candidate batch, so racing webhook deliveries cannot produce
// duplicates. The sorted-id leader check narrows deliveries down to
// one; the marker closes the remaining window.
type IBatchMarker interface {
	// Acquire claims the batch key. It returns true when this caller is
	// the first to claim it within the marker TTL.
	Acquire(ctx context.Context, key string) (bool, error)
}

// BatchKey derives the deterministic idempotency key of a candidate
// batch: a SHA-256 over the sorted task ids. Order of the input does
// not matter.
func BatchKey(candidateIDs []string) string {
	ids := make([]string, len(candidateIDs))
	copy(ids, candidateIDs)
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(strings.Join(ids, "\n")))
	return "invoice:batch:" + hex.EncodeToString(sum[:])
}

// redisBatchMarker implements IBatchMarker with SETNX + TTL.
type redisBatchMarker struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisBatchMarker creates a Redis-backed batch marker store.
func NewRedisBatchMarker(rdb *redis.Client, ttl time.Duration) IBatchMarker {
	return &redisBatchMarker{rdb: rdb, ttl: ttl}
}

func (m *redisBatchMarker) Acquire(ctx context.Context, key string) (bool, error) {
	return m.rdb.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), m.ttl).Result()
}
