package revision

import (
	"context"

	"github.com/deckhand/deckhand/pkg/document"
)

// renderTracker is the subset of *observability.Provider ObservedStore
// needs; declared locally so this package doesn't import observability
// (which would be a needless dependency for callers that never wrap a store
// with it).
type renderTracker interface {
	TrackBucketWrite(ctx context.Context, bucket string) (context.Context, func(error))
}

// ObservedStore wraps a Store with an OpenTelemetry span and RED metrics
// around every bucket write, following the same embed-and-override shape as
// CachedStore and AuditedStore.
type ObservedStore struct {
	Store
	obs renderTracker
}

// NewObservedStore wraps backing with tracing/metrics via obs.
func NewObservedStore(backing Store, obs renderTracker) *ObservedStore {
	return &ObservedStore{Store: backing, obs: obs}
}

func (o *ObservedStore) PutBucket(bucket string, docs []*document.Document) (*WriteResult, error) {
	_, end := o.obs.TrackBucketWrite(context.Background(), bucket)
	result, err := o.Store.PutBucket(bucket, docs)
	end(err)
	return result, err
}

var _ Store = (*ObservedStore)(nil)
