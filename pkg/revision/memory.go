package revision

import (
	"sort"
	"sync"
	"time"

	"github.com/deckhand/deckhand/pkg/canonicalize"
	"github.com/deckhand/deckhand/pkg/document"
)

// MemoryStore is a fully-functional, non-persistent Store used by unit tests
// and by the render orchestrator when no database is configured.
type MemoryStore struct {
	mu sync.Mutex

	nextRevisionID int64
	revisions      []Revision
	// rows holds, per revision id, the full set of rows, tombstones included
	// (Documents and Diff skip them).
	rows map[int64][]Row

	tags             map[int64]map[string]Tag
	validationPolicy map[int64]map[string]ValidationPolicy
	validationEntry  map[int64]map[string]ValidationEntry
}

// NewMemoryStore returns an empty MemoryStore seeded with the implicit
// revision 0 (no documents).
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextRevisionID: 1,
		revisions:      []Revision{{ID: 0, CreatedAt: time.Time{}}},
		rows:           map[int64][]Row{0: nil},

		tags:             map[int64]map[string]Tag{},
		validationPolicy: map[int64]map[string]ValidationPolicy{},
		validationEntry:  map[int64]map[string]ValidationEntry{},
	}
}

func rowHash(r Row) (string, error) {
	art, err := canonicalize.Canonicalize(r.Schema, map[string]interface{}{
		"schema":   r.Schema,
		"metadata": r.Metadata,
		"data":     r.Data,
		"deleted":  r.Deleted,
	})
	if err != nil {
		return "", err
	}
	return art.Digest, nil
}

func (s *MemoryStore) latestRevisionID() int64 {
	return s.revisions[len(s.revisions)-1].ID
}

func (s *MemoryStore) liveRows(revisionID int64) []Row {
	return s.rows[revisionID]
}

// PutBucket implements Store.
func (s *MemoryStore) PutBucket(bucket string, docs []*document.Document) (*WriteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.liveRows(s.latestRevisionID())
	prevByKey := map[document.Key]Row{}
	for _, r := range prev {
		prevByKey[document.Key{Schema: r.Schema, Name: r.Name}] = r
	}

	next := map[document.Key]Row{}
	for k, r := range prevByKey {
		if r.BucketID != bucket {
			next[k] = r
		}
	}

	result := &WriteResult{}
	now := time.Time{}

	for _, d := range docs {
		k := document.KeyOf(d)
		candidate := Row{
			BucketID:  bucket,
			Schema:    d.Schema,
			Name:      d.Metadata.Name,
			Data:      d.Data,
			Metadata:  d.Metadata,
			Deleted:   false,
			CreatedAt: now,
		}
		if old, ok := prevByKey[k]; ok && old.BucketID == bucket {
			oldHash, err := rowHash(old)
			if err != nil {
				return nil, err
			}
			newHash, err := rowHash(candidate)
			if err != nil {
				return nil, err
			}
			if oldHash == newHash {
				candidate.OrigRevisionID = old.OrigRevisionID
				next[k] = candidate
				result.Unchanged = append(result.Unchanged, k)
				continue
			}
			candidate.OrigRevisionID = old.OrigRevisionID
			next[k] = candidate
			result.Updated = append(result.Updated, k)
			continue
		}
		candidate.OrigRevisionID = 0
		next[k] = candidate
		result.Created = append(result.Created, k)
	}

	for k, r := range prevByKey {
		if r.BucketID == bucket {
			if _, stillPresent := next[k]; !stillPresent {
				tomb := r
				tomb.Deleted = true
				next[k] = tomb
				if !r.Deleted {
					result.Deleted = append(result.Deleted, k)
				}
			}
		}
	}

	sortKeys(result.Created)
	sortKeys(result.Updated)
	sortKeys(result.Deleted)
	sortKeys(result.Unchanged)

	if !result.Changed() {
		result.RevisionID = s.latestRevisionID()
		return result, nil
	}

	id := s.nextRevisionID
	s.nextRevisionID++
	rows := make([]Row, 0, len(next))
	for k, r := range next {
		r.RevisionID = id
		if r.OrigRevisionID == 0 && !r.Deleted {
			r.OrigRevisionID = id
		}
		next[k] = r
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Schema != rows[j].Schema {
			return rows[i].Schema < rows[j].Schema
		}
		return rows[i].Name < rows[j].Name
	})

	s.revisions = append(s.revisions, Revision{ID: id, CreatedAt: now})
	s.rows[id] = rows
	result.RevisionID = id
	return result, nil
}

func sortKeys(ks []document.Key) {
	sort.Slice(ks, func(i, j int) bool {
		if ks[i].Schema != ks[j].Schema {
			return ks[i].Schema < ks[j].Schema
		}
		return ks[i].Name < ks[j].Name
	})
}

// ListRevisions implements Store.
func (s *MemoryStore) ListRevisions() ([]Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Revision, len(s.revisions))
	copy(out, s.revisions)
	return out, nil
}

// GetRevision implements Store.
func (s *MemoryStore) GetRevision(id int64) (*Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.revisions {
		if r.ID == id {
			cp := r
			return &cp, nil
		}
	}
	return nil, &Error{Kind: ErrRevisionNotFound, Msg: "no such revision"}
}

// DeleteAllRevisions implements Store.
func (s *MemoryStore) DeleteAllRevisions() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRevisionID = 1
	s.revisions = []Revision{{ID: 0, CreatedAt: time.Time{}}}
	s.rows = map[int64][]Row{0: nil}
	s.tags = map[int64]map[string]Tag{}
	s.validationPolicy = map[int64]map[string]ValidationPolicy{}
	s.validationEntry = map[int64]map[string]ValidationEntry{}
	return nil
}

// Documents implements Store.
func (s *MemoryStore) Documents(revisionID int64) ([]*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.rows[revisionID]
	if !ok {
		return nil, &Error{Kind: ErrRevisionNotFound, Msg: "no such revision"}
	}
	out := make([]*document.Document, 0, len(rows))
	for _, r := range rows {
		if r.Deleted {
			continue
		}
		out = append(out, r.ToDocument())
	}
	return out, nil
}

// Diff implements Store.
func (s *MemoryStore) Diff(from, to int64) (Diff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fromRows, ok := s.rows[from]
	if !ok {
		return nil, &Error{Kind: ErrRevisionNotFound, Msg: "no such revision"}
	}
	toRows, ok := s.rows[to]
	if !ok {
		return nil, &Error{Kind: ErrRevisionNotFound, Msg: "no such revision"}
	}

	fromBuckets := map[string]map[document.Key]string{}
	for _, r := range fromRows {
		if r.Deleted {
			continue
		}
		h, err := rowHash(r)
		if err != nil {
			return nil, err
		}
		if fromBuckets[r.BucketID] == nil {
			fromBuckets[r.BucketID] = map[document.Key]string{}
		}
		fromBuckets[r.BucketID][document.Key{Schema: r.Schema, Name: r.Name}] = h
	}
	toBuckets := map[string]map[document.Key]string{}
	for _, r := range toRows {
		if r.Deleted {
			continue
		}
		h, err := rowHash(r)
		if err != nil {
			return nil, err
		}
		if toBuckets[r.BucketID] == nil {
			toBuckets[r.BucketID] = map[document.Key]string{}
		}
		toBuckets[r.BucketID][document.Key{Schema: r.Schema, Name: r.Name}] = h
	}

	diff := Diff{}
	for bucket, toDocs := range toBuckets {
		fromDocs, existed := fromBuckets[bucket]
		if !existed {
			diff[bucket] = DiffCreated
			continue
		}
		modified := false
		for k, h := range toDocs {
			if fh, ok := fromDocs[k]; !ok || fh != h {
				modified = true
				break
			}
		}
		if !modified {
			for k := range fromDocs {
				if _, ok := toDocs[k]; !ok {
					modified = true
					break
				}
			}
		}
		if modified {
			diff[bucket] = DiffModified
		} else {
			diff[bucket] = DiffUnmodified
		}
	}
	for bucket := range fromBuckets {
		if _, ok := toBuckets[bucket]; !ok {
			diff[bucket] = DiffDeleted
		}
	}
	return diff, nil
}

// Rollback implements Store.
func (s *MemoryStore) Rollback(id int64) (*Revision, error) {
	s.mu.Lock()
	target, ok := s.rows[id]
	s.mu.Unlock()
	if !ok {
		return nil, &Error{Kind: ErrRevisionNotFound, Msg: "no such revision"}
	}

	byBucket := map[string][]*document.Document{}
	for _, r := range target {
		if r.Deleted {
			continue
		}
		byBucket[r.BucketID] = append(byBucket[r.BucketID], r.ToDocument())
	}

	s.mu.Lock()
	latest := s.liveRows(s.latestRevisionID())
	liveBuckets := map[string]bool{}
	for _, r := range latest {
		if !r.Deleted {
			liveBuckets[r.BucketID] = true
		}
	}
	s.mu.Unlock()
	for bucket := range liveBuckets {
		if _, ok := byBucket[bucket]; !ok {
			byBucket[bucket] = nil
		}
	}

	var last *WriteResult
	var lastErr error
	for bucket, docs := range byBucket {
		last, lastErr = s.PutBucket(bucket, docs)
		if lastErr != nil {
			return nil, lastErr
		}
	}
	if last == nil {
		rev, err := s.GetRevision(s.latestRevisionID())
		return rev, err
	}
	return s.GetRevision(last.RevisionID)
}

// PutTag implements Store.
func (s *MemoryStore) PutTag(revisionID int64, name string, data interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tags[revisionID] == nil {
		s.tags[revisionID] = map[string]Tag{}
	}
	s.tags[revisionID][name] = Tag{RevisionID: revisionID, Name: name, Data: data}
	return nil
}

// GetTag implements Store.
func (s *MemoryStore) GetTag(revisionID int64, name string) (*Tag, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tags[revisionID][name]
	if !ok {
		return nil, false, nil
	}
	return &t, true, nil
}

// ListTags implements Store.
func (s *MemoryStore) ListTags(revisionID int64) ([]Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Tag, 0, len(s.tags[revisionID]))
	for _, t := range s.tags[revisionID] {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeleteTag implements Store.
func (s *MemoryStore) DeleteTag(revisionID int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tags[revisionID], name)
	return nil
}

// PutValidationPolicy implements Store.
func (s *MemoryStore) PutValidationPolicy(p ValidationPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.validationPolicy[p.RevisionID] == nil {
		s.validationPolicy[p.RevisionID] = map[string]ValidationPolicy{}
	}
	s.validationPolicy[p.RevisionID][p.Name] = p
	return nil
}

// ListValidationPolicies implements Store.
func (s *MemoryStore) ListValidationPolicies(revisionID int64) ([]ValidationPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ValidationPolicy, 0, len(s.validationPolicy[revisionID]))
	for _, p := range s.validationPolicy[revisionID] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// PutValidationEntry implements Store.
func (s *MemoryStore) PutValidationEntry(e ValidationEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := e.RevisionID
	if s.validationEntry[key] == nil {
		s.validationEntry[key] = map[string]ValidationEntry{}
	}
	s.validationEntry[key][e.PolicyName+"/"+e.EntryID] = e
	return nil
}

// ListValidationEntries implements Store.
func (s *MemoryStore) ListValidationEntries(revisionID int64, policyName string) ([]ValidationEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ValidationEntry, 0)
	for _, e := range s.validationEntry[revisionID] {
		if e.PolicyName == policyName {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryID < out[j].EntryID })
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
