package revision

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deckhand/deckhand/pkg/document"
)

type fakeTracker struct {
	startedBuckets []string
	endedErrs      []error
}

func (f *fakeTracker) TrackBucketWrite(ctx context.Context, bucket string) (context.Context, func(error)) {
	f.startedBuckets = append(f.startedBuckets, bucket)
	return ctx, func(err error) { f.endedErrs = append(f.endedErrs, err) }
}

func TestObservedStore_PutBucket_TracksSuccess(t *testing.T) {
	backing := NewMemoryStore()
	tracker := &fakeTracker{}
	store := NewObservedStore(backing, tracker)

	docs := []*document.Document{
		{Schema: "deckhand/Config/v1", Metadata: document.Metadata{Name: "a"}, Data: map[string]interface{}{"x": 1}},
	}
	result, err := store.PutBucket("example", docs)
	require.NoError(t, err)
	assert.NotNil(t, result)

	require.Len(t, tracker.startedBuckets, 1)
	assert.Equal(t, "example", tracker.startedBuckets[0])
	require.Len(t, tracker.endedErrs, 1)
	assert.NoError(t, tracker.endedErrs[0])
}

type failingStore struct {
	Store
}

func (failingStore) PutBucket(bucket string, docs []*document.Document) (*WriteResult, error) {
	return nil, errors.New("boom")
}

func TestObservedStore_PutBucket_TracksFailure(t *testing.T) {
	tracker := &fakeTracker{}
	store := NewObservedStore(failingStore{}, tracker)

	_, err := store.PutBucket("example", nil)
	require.Error(t, err)

	require.Len(t, tracker.endedErrs, 1)
	assert.EqualError(t, tracker.endedErrs[0], "boom")
}
