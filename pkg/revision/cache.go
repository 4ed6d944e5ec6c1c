package revision

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/deckhand/deckhand/pkg/document"
	"github.com/redis/go-redis/v9"
)

// CachedStore wraps a Store with a Redis-backed cache of each revision's
// document list, the read path hit hardest by repeated renders of the same
// revision. Writes go straight through to the backing store; a successful
// PutBucket invalidates the cache entry for the revision it touched.
type CachedStore struct {
	Store
	rdb *redis.Client
	ttl time.Duration
}

// NewCachedStore wraps backing with a Redis cache at addr.
func NewCachedStore(backing Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{Store: backing, rdb: rdb, ttl: ttl}
}

func docsCacheKey(revisionID int64) string {
	return fmt.Sprintf("deckhand:revision:%d:documents", revisionID)
}

// Documents serves from cache when possible, falling back to the backing
// store and populating the cache on miss.
func (c *CachedStore) Documents(revisionID int64) ([]*document.Document, error) {
	ctx := context.Background()
	key := docsCacheKey(revisionID)

	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var docs []*document.Document
		if jsonErr := json.Unmarshal(raw, &docs); jsonErr == nil {
			return docs, nil
		}
	}

	docs, err := c.Store.Documents(revisionID)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(docs); err == nil {
		c.rdb.Set(ctx, key, raw, c.ttl)
	}
	return docs, nil
}

// PutBucket writes through to the backing store and drops the new
// revision's cache entry so the next Documents call repopulates it.
func (c *CachedStore) PutBucket(bucket string, docs []*document.Document) (*WriteResult, error) {
	result, err := c.Store.PutBucket(bucket, docs)
	if err != nil {
		return nil, err
	}
	c.rdb.Del(context.Background(), docsCacheKey(result.RevisionID))
	return result, nil
}

var _ Store = (*CachedStore)(nil)
