package revision

import (
	"context"
	"fmt"

	"github.com/deckhand/deckhand/pkg/auditlog"
	"github.com/deckhand/deckhand/pkg/document"
)

// AuditedStore wraps a Store with structured audit events on bucket writes
// and rollback, following the same embed-and-override decorator shape as
// CachedStore.
type AuditedStore struct {
	Store
	audit auditlog.Logger
}

// NewAuditedStore wraps backing with audit logging via l.
func NewAuditedStore(backing Store, l auditlog.Logger) *AuditedStore {
	return &AuditedStore{Store: backing, audit: l}
}

// PutBucket writes through to the backing store and records a BucketWrite
// event, plus a RevisionCreated event when the write actually minted one.
func (a *AuditedStore) PutBucket(bucket string, docs []*document.Document) (*WriteResult, error) {
	result, err := a.Store.PutBucket(bucket, docs)
	ctx := context.Background()
	if err != nil {
		return nil, err
	}
	_ = a.audit.Record(ctx, auditlog.EventBucketWrite, bucket, map[string]interface{}{
		"revision_id": result.RevisionID,
		"created":     len(result.Created),
		"updated":     len(result.Updated),
		"deleted":     len(result.Deleted),
	})
	if result.Changed() {
		_ = a.audit.Record(ctx, auditlog.EventRevisionCreated, fmt.Sprintf("revision/%d", result.RevisionID), nil)
	}
	return result, nil
}

// Rollback writes through to the backing store and records the newly
// materialized revision as a RevisionCreated event.
func (a *AuditedStore) Rollback(id int64) (*Revision, error) {
	rev, err := a.Store.Rollback(id)
	if err != nil {
		return nil, err
	}
	_ = a.audit.Record(context.Background(), auditlog.EventRevisionCreated, fmt.Sprintf("revision/%d", rev.ID), map[string]interface{}{"rollback_of": id})
	return rev, nil
}

var _ Store = (*AuditedStore)(nil)
