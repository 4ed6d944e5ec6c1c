// Package revision implements the bucket-scoped, append-only revision store
// (C9): writes that create a new revision only on real change, tag and
// validation-policy CRUD, diff computation across revisions, and rollback.
package revision

import (
	"time"

	"github.com/deckhand/deckhand/pkg/document"
)

// ErrorKind enumerates the store's failure modes.
type ErrorKind string

const (
	ErrRevisionNotFound ErrorKind = "revision-not-found"
	ErrConflict         ErrorKind = "conflict"
)

// Error is a typed revision store failure.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Msg }

// Row is one document's persisted record, carrying the lineage metadata
// that lets an unchanged write skip minting a new revision.
type Row struct {
	RevisionID     int64
	OrigRevisionID int64
	BucketID       string
	Schema         string
	Name           string
	Data           interface{}
	Metadata       document.Metadata
	Deleted        bool
	CreatedAt      time.Time
}

// ToDocument converts a stored Row back into a document.Document.
func (r Row) ToDocument() *document.Document {
	return &document.Document{
		Schema:   r.Schema,
		Metadata: r.Metadata,
		Data:     r.Data,
		Bucket:   r.BucketID,
	}
}

// Revision is an immutable snapshot identified by a monotonically increasing id.
type Revision struct {
	ID        int64
	CreatedAt time.Time
}

// Tag is a mutable, unversioned label attached to a revision.
type Tag struct {
	RevisionID int64
	Name       string
	Data       interface{}
}

// ValidationPolicy names an external validator attached to a revision.
type ValidationPolicy struct {
	RevisionID int64
	Name       string
	Status     string // "succeeded" | "failed" | "expected" | ...
}

// ValidationEntry is one reported result under a ValidationPolicy.
type ValidationEntry struct {
	RevisionID int64
	PolicyName string
	EntryID    string
	Status     string
	Details    map[string]interface{}
}

// WriteResult reports what a bucket write actually did.
type WriteResult struct {
	RevisionID int64
	Created    []document.Key
	Updated    []document.Key
	Deleted    []document.Key
	Unchanged  []document.Key
}

// Changed reports whether this write produced a distinct new revision.
func (r WriteResult) Changed() bool {
	return len(r.Created) > 0 || len(r.Updated) > 0 || len(r.Deleted) > 0
}

// BucketDiffStatus classifies how a bucket differs between two revisions.
type BucketDiffStatus string

const (
	DiffCreated    BucketDiffStatus = "created"
	DiffModified   BucketDiffStatus = "modified"
	DiffDeleted    BucketDiffStatus = "deleted"
	DiffUnmodified BucketDiffStatus = "unmodified"
)

// Diff is the bucket-level diff between two revisions.
type Diff map[string]BucketDiffStatus

// Store is the revision store's contract. Concrete backends (Postgres,
// SQLite) implement it against database/sql; an in-memory implementation
// backs unit tests that don't need real persistence.
type Store interface {
	// PutBucket replaces bucket's contribution with docs, minting a new
	// revision only if the contents actually changed.
	PutBucket(bucket string, docs []*document.Document) (*WriteResult, error)

	// ListRevisions returns every revision in ascending id order.
	ListRevisions() ([]Revision, error)
	// GetRevision returns revision metadata, or ErrRevisionNotFound.
	GetRevision(id int64) (*Revision, error)
	// DeleteAllRevisions wipes the store (admin operation).
	DeleteAllRevisions() error

	// Documents returns the live (non-tombstone) documents visible at
	// revision id.
	Documents(revisionID int64) ([]*document.Document, error)

	// Diff compares two revisions bucket by bucket.
	Diff(from, to int64) (Diff, error)

	// Rollback materializes revision id's documents as a new revision.
	Rollback(id int64) (*Revision, error)

	// Tags.
	PutTag(revisionID int64, name string, data interface{}) error
	GetTag(revisionID int64, name string) (*Tag, bool, error)
	ListTags(revisionID int64) ([]Tag, error)
	DeleteTag(revisionID int64, name string) error

	// Validation policies and entries.
	PutValidationPolicy(p ValidationPolicy) error
	ListValidationPolicies(revisionID int64) ([]ValidationPolicy, error)
	PutValidationEntry(e ValidationEntry) error
	ListValidationEntries(revisionID int64, policyName string) ([]ValidationEntry, error)
}
