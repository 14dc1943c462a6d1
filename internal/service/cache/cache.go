// Package cache stores rendered prediction responses keyed by the served
// model and a hash of the request payload.
package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// BytesCache is a minimal cache API storing raw bytes with TTL.
type BytesCache interface {
	GetBytes(ctx context.Context, key string) (b []byte, ok bool, err error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// PredictionKey scopes a payload hash to one model so a reload never serves
// stale predictions.
func PredictionKey(modelID string, trainedAt time.Time, payload []byte) string {
	return "cryptovol:pred:" + modelID + ":" + strconv.FormatInt(trainedAt.UnixNano(), 36) + ":" +
		strconv.FormatUint(xxhash.Sum64(payload), 16)
}
