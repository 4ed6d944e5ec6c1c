package revision

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/deckhand/deckhand/pkg/document"
)

// Dialect abstracts the two or three syntax differences between the
// Postgres (lib/pq) and SQLite (modernc.org/sqlite) drivers this store
// targets, so the bulk of the SQL stays identical across both.
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

// SQLStore is a database/sql backed Store, usable with either lib/pq
// (Postgres) or modernc.org/sqlite (SQLite).
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore wraps an already-open, already-migrated *sql.DB.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// ph renders the nth ($1 or ?) placeholder for this store's dialect.
func (s *SQLStore) ph(n int) string {
	if s.dialect == DialectPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (s *SQLStore) placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = s.ph(i + 1)
	}
	return strings.Join(parts, ", ")
}

func (s *SQLStore) lockBucketWrite(tx *sql.Tx) error {
	if s.dialect != DialectPostgres {
		return nil
	}
	// Serializes concurrent PutBucket calls across the process (and across
	// other backends sharing the same database) so two writers racing on the
	// same bucket can't both observe the same "latest revision" and mint two
	// divergent next ids.
	_, err := tx.Exec(`SELECT pg_advisory_xact_lock(hashtext('deckhand.revision.putbucket'))`)
	return err
}

func (s *SQLStore) latestRevisionID(tx *sql.Tx) (int64, error) {
	var id sql.NullInt64
	err := tx.QueryRow(`SELECT MAX(id) FROM revision`).Scan(&id)
	if err != nil {
		return 0, err
	}
	if !id.Valid {
		return 0, nil
	}
	return id.Int64, nil
}

func (s *SQLStore) liveRowsTx(tx *sql.Tx, revisionID int64) ([]Row, error) {
	rows, err := tx.Query(
		`SELECT revision_id, orig_revision_id, bucket_id, schema, name, data, _metadata, deleted, created_at
		 FROM document WHERE revision_id = `+s.ph(1), revisionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var dataJSON, metaJSON string
		if err := rows.Scan(&r.RevisionID, &r.OrigRevisionID, &r.BucketID, &r.Schema, &r.Name,
			&dataJSON, &metaJSON, &r.Deleted, &r.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(dataJSON), &r.Data); err != nil {
			return nil, fmt.Errorf("decode document data: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &r.Metadata); err != nil {
			return nil, fmt.Errorf("decode document metadata: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PutBucket implements Store.
func (s *SQLStore) PutBucket(bucket string, docs []*document.Document) (*WriteResult, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.lockBucketWrite(tx); err != nil {
		return nil, err
	}

	latest, err := s.latestRevisionID(tx)
	if err != nil {
		return nil, err
	}
	prev, err := s.liveRowsTx(tx, latest)
	if err != nil {
		return nil, err
	}

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
	for _, d := range docs {
		k := document.KeyOf(d)
		candidate := Row{BucketID: bucket, Schema: d.Schema, Name: d.Metadata.Name, Data: d.Data, Metadata: d.Metadata}
		if old, ok := prevByKey[k]; ok && old.BucketID == bucket {
			oldHash, err := rowHash(old)
			if err != nil {
				return nil, err
			}
			newHash, err := rowHash(candidate)
			if err != nil {
				return nil, err
			}
			candidate.OrigRevisionID = old.OrigRevisionID
			next[k] = candidate
			if oldHash == newHash {
				result.Unchanged = append(result.Unchanged, k)
			} else {
				result.Updated = append(result.Updated, k)
			}
			continue
		}
		next[k] = candidate
		result.Created = append(result.Created, k)
	}
	for k, r := range prevByKey {
		if r.BucketID == bucket {
			if _, ok := next[k]; !ok {
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
		result.RevisionID = latest
		return result, tx.Commit()
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(`INSERT INTO revision (id, created_at) VALUES (`+s.placeholders(2)+`)`,
		latest+1, now); err != nil {
		return nil, err
	}
	newID := latest + 1

	for k, r := range next {
		r.RevisionID = newID
		if r.OrigRevisionID == 0 && !r.Deleted {
			r.OrigRevisionID = newID
		}
		dataJSON, err := json.Marshal(r.Data)
		if err != nil {
			return nil, err
		}
		metaJSON, err := json.Marshal(r.Metadata)
		if err != nil {
			return nil, err
		}
		if _, err := tx.Exec(
			`INSERT INTO document (revision_id, orig_revision_id, bucket_id, schema, name, data, _metadata, deleted, created_at)
			 VALUES (`+s.placeholders(9)+`)`,
			r.RevisionID, r.OrigRevisionID, r.BucketID, k.Schema, k.Name, string(dataJSON), string(metaJSON), r.Deleted, now,
		); err != nil {
			return nil, err
		}
	}

	result.RevisionID = newID
	return result, tx.Commit()
}

// ListRevisions implements Store.
func (s *SQLStore) ListRevisions() ([]Revision, error) {
	rows, err := s.db.Query(`SELECT id, created_at FROM revision ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Revision
	for rows.Next() {
		var r Revision
		if err := rows.Scan(&r.ID, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRevision implements Store.
func (s *SQLStore) GetRevision(id int64) (*Revision, error) {
	var r Revision
	err := s.db.QueryRow(`SELECT id, created_at FROM revision WHERE id = `+s.ph(1), id).Scan(&r.ID, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, &Error{Kind: ErrRevisionNotFound, Msg: "no such revision"}
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteAllRevisions implements Store.
func (s *SQLStore) DeleteAllRevisions() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, stmt := range []string{
		`DELETE FROM validation_entry`,
		`DELETE FROM validation_policy`,
		`DELETE FROM revision_tag`,
		`DELETE FROM document`,
		`DELETE FROM revision`,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Documents implements Store.
func (s *SQLStore) Documents(revisionID int64) ([]*document.Document, error) {
	if _, err := s.GetRevision(revisionID); err != nil {
		return nil, err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	rows, err := s.liveRowsTx(tx, revisionID)
	if err != nil {
		return nil, err
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
func (s *SQLStore) Diff(from, to int64) (Diff, error) {
	if _, err := s.GetRevision(from); err != nil {
		return nil, err
	}
	if _, err := s.GetRevision(to); err != nil {
		return nil, err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	fromRows, err := s.liveRowsTx(tx, from)
	if err != nil {
		return nil, err
	}
	toRows, err := s.liveRowsTx(tx, to)
	if err != nil {
		return nil, err
	}

	hashByBucket := func(rows []Row) (map[string]map[document.Key]string, error) {
		out := map[string]map[document.Key]string{}
		for _, r := range rows {
			if r.Deleted {
				continue
			}
			h, err := rowHash(r)
			if err != nil {
				return nil, err
			}
			if out[r.BucketID] == nil {
				out[r.BucketID] = map[document.Key]string{}
			}
			out[r.BucketID][document.Key{Schema: r.Schema, Name: r.Name}] = h
		}
		return out, nil
	}

	fromBuckets, err := hashByBucket(fromRows)
	if err != nil {
		return nil, err
	}
	toBuckets, err := hashByBucket(toRows)
	if err != nil {
		return nil, err
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
func (s *SQLStore) Rollback(id int64) (*Revision, error) {
	target, err := s.Documents(id)
	if err != nil {
		return nil, err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	latest, err := s.latestRevisionID(tx)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	liveRows, err := s.liveRowsTx(tx, latest)
	tx.Rollback()
	if err != nil {
		return nil, err
	}

	byBucket := map[string][]*document.Document{}
	for _, d := range target {
		byBucket[d.Bucket] = append(byBucket[d.Bucket], d)
	}
	liveBuckets := map[string]bool{}
	for _, r := range liveRows {
		if !r.Deleted {
			liveBuckets[r.BucketID] = true
		}
	}
	for bucket := range liveBuckets {
		if _, ok := byBucket[bucket]; !ok {
			byBucket[bucket] = nil
		}
	}

	// Deterministic order keeps the resulting revision id reproducible
	// across calls on the same backing data.
	buckets := make([]string, 0, len(byBucket))
	for b := range byBucket {
		buckets = append(buckets, b)
	}
	sort.Strings(buckets)

	var last *WriteResult
	for _, bucket := range buckets {
		last, err = s.PutBucket(bucket, byBucket[bucket])
		if err != nil {
			return nil, err
		}
	}
	if last == nil {
		return s.GetRevision(latest)
	}
	return s.GetRevision(last.RevisionID)
}

// PutTag implements Store.
func (s *SQLStore) PutTag(revisionID int64, name string, data interface{}) error {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return err
	}
	var q string
	if s.dialect == DialectPostgres {
		q = `INSERT INTO revision_tag (revision_id, name, data) VALUES ($1, $2, $3)
		     ON CONFLICT (revision_id, name) DO UPDATE SET data = $3`
	} else {
		q = `INSERT INTO revision_tag (revision_id, name, data) VALUES (?, ?, ?)
		     ON CONFLICT (revision_id, name) DO UPDATE SET data = excluded.data`
	}
	_, err = s.db.Exec(q, revisionID, name, string(dataJSON))
	return err
}

// GetTag implements Store.
func (s *SQLStore) GetTag(revisionID int64, name string) (*Tag, bool, error) {
	var dataJSON sql.NullString
	err := s.db.QueryRow(
		`SELECT data FROM revision_tag WHERE revision_id = `+s.ph(1)+` AND name = `+s.ph(2),
		revisionID, name,
	).Scan(&dataJSON)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	t := &Tag{RevisionID: revisionID, Name: name}
	if dataJSON.Valid {
		if err := json.Unmarshal([]byte(dataJSON.String), &t.Data); err != nil {
			return nil, false, err
		}
	}
	return t, true, nil
}

// ListTags implements Store.
func (s *SQLStore) ListTags(revisionID int64) ([]Tag, error) {
	rows, err := s.db.Query(`SELECT name, data FROM revision_tag WHERE revision_id = `+s.ph(1)+` ORDER BY name ASC`, revisionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Tag
	for rows.Next() {
		var name string
		var dataJSON sql.NullString
		if err := rows.Scan(&name, &dataJSON); err != nil {
			return nil, err
		}
		t := Tag{RevisionID: revisionID, Name: name}
		if dataJSON.Valid {
			if err := json.Unmarshal([]byte(dataJSON.String), &t.Data); err != nil {
				return nil, err
			}
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteTag implements Store.
func (s *SQLStore) DeleteTag(revisionID int64, name string) error {
	_, err := s.db.Exec(`DELETE FROM revision_tag WHERE revision_id = `+s.ph(1)+` AND name = `+s.ph(2), revisionID, name)
	return err
}

// PutValidationPolicy implements Store.
func (s *SQLStore) PutValidationPolicy(p ValidationPolicy) error {
	var q string
	if s.dialect == DialectPostgres {
		q = `INSERT INTO validation_policy (revision_id, name, status) VALUES ($1, $2, $3)
		     ON CONFLICT (revision_id, name) DO UPDATE SET status = $3`
	} else {
		q = `INSERT INTO validation_policy (revision_id, name, status) VALUES (?, ?, ?)
		     ON CONFLICT (revision_id, name) DO UPDATE SET status = excluded.status`
	}
	_, err := s.db.Exec(q, p.RevisionID, p.Name, p.Status)
	return err
}

// ListValidationPolicies implements Store.
func (s *SQLStore) ListValidationPolicies(revisionID int64) ([]ValidationPolicy, error) {
	rows, err := s.db.Query(`SELECT name, status FROM validation_policy WHERE revision_id = `+s.ph(1)+` ORDER BY name ASC`, revisionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ValidationPolicy
	for rows.Next() {
		p := ValidationPolicy{RevisionID: revisionID}
		if err := rows.Scan(&p.Name, &p.Status); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PutValidationEntry implements Store.
func (s *SQLStore) PutValidationEntry(e ValidationEntry) error {
	detailsJSON, err := json.Marshal(e.Details)
	if err != nil {
		return err
	}
	var q string
	if s.dialect == DialectPostgres {
		q = `INSERT INTO validation_entry (revision_id, policy_name, entry_id, status, details) VALUES ($1, $2, $3, $4, $5)
		     ON CONFLICT (revision_id, policy_name, entry_id) DO UPDATE SET status = $4, details = $5`
	} else {
		q = `INSERT INTO validation_entry (revision_id, policy_name, entry_id, status, details) VALUES (?, ?, ?, ?, ?)
		     ON CONFLICT (revision_id, policy_name, entry_id) DO UPDATE SET status = excluded.status, details = excluded.details`
	}
	_, err = s.db.Exec(q, e.RevisionID, e.PolicyName, e.EntryID, e.Status, string(detailsJSON))
	return err
}

// ListValidationEntries implements Store.
func (s *SQLStore) ListValidationEntries(revisionID int64, policyName string) ([]ValidationEntry, error) {
	rows, err := s.db.Query(
		`SELECT entry_id, status, details FROM validation_entry WHERE revision_id = `+s.ph(1)+` AND policy_name = `+s.ph(2)+` ORDER BY entry_id ASC`,
		revisionID, policyName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ValidationEntry
	for rows.Next() {
		e := ValidationEntry{RevisionID: revisionID, PolicyName: policyName}
		var detailsJSON sql.NullString
		if err := rows.Scan(&e.EntryID, &e.Status, &detailsJSON); err != nil {
			return nil, err
		}
		if detailsJSON.Valid && detailsJSON.String != "" {
			if err := json.Unmarshal([]byte(detailsJSON.String), &e.Details); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ Store = (*SQLStore)(nil)
