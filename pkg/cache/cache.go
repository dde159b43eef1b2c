// Package cache stores intermediate pipeline results.
//
// Layouts and rendered artifacts are keyed by a hash of their inputs (see
// [Keyer]) so that unchanged documents skip the expensive stages. Several backends implement [Cache]:
//
//   - [NullCache] never stores anything
//   - [MemoryCache] keeps entries in process, used by the editor server
//   - [FileCache] keeps entries on disk, used by the CLI
//   - [RedisCache] and [MongoCache] share entries between server replicas
//
// [Open] picks a backend from a URL-style location.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/matzehuels/archdiagram/pkg/errors"
)

// Cache is a byte-oriented key/value store with expiry.
type Cache interface {
	// Get returns the value for key. A miss is reported with ok=false and a
	// nil error.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)

	// Set stores data under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every entry owned by this cache.
	Clear(ctx context.Context) error

	// Close releases connections and handles.
	Close() error
}

// Default time-to-live per entry type.
const (
	TTLLayout = 7 * 24 * time.Hour
	TTLRender = 7 * 24 * time.Hour
)

// Open returns the cache described by location:
//
//	""                       NullCache
//	"memory"                 MemoryCache
//	"redis://host:6379/0"    RedisCache
//	"mongodb://host:27017"   MongoCache
//	anything else            FileCache rooted at that directory
func Open(ctx context.Context, location string) (Cache, error) {
	switch {
	case location == "" || location == "none":
		return NewNullCache(), nil
	case location == "memory":
		return NewMemoryCache(DefaultMemoryEntries), nil
	case strings.HasPrefix(location, "redis://"), strings.HasPrefix(location, "rediss://"):
		return NewRedisCache(ctx, location)
	case strings.HasPrefix(location, "mongodb://"), strings.HasPrefix(location, "mongodb+srv://"):
		return NewMongoCache(ctx, location, DefaultMongoDatabase)
	default:
		if err := errors.ValidatePath(location); err != nil {
			return nil, err
		}
		return NewFileCache(location)
	}
}
