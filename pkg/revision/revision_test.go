package revision

import (
	"testing"

	"github.com/deckhand/deckhand/pkg/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(schema, name string, data interface{}) *document.Document {
	return &document.Document{
		Schema: schema,
		Metadata: document.Metadata{
			Schema: document.MetaSchemaDocument,
			Name:   name,
		},
		Data: data,
	}
}

func TestPutBucket_EmptyDocumentListYieldsNoNewRevision(t *testing.T) {
	s := NewMemoryStore()
	result, err := s.PutBucket("b1", nil)
	require.NoError(t, err)
	assert.False(t, result.Changed())
	assert.Equal(t, int64(0), result.RevisionID)
}

func TestPutBucket_CreateThenIdempotentWriteReusesRevision(t *testing.T) {
	s := NewMemoryStore()
	r1, err := s.PutBucket("b1", []*document.Document{doc("certificates/Certificate/v1", "a", map[string]interface{}{"x": 1})})
	require.NoError(t, err)
	require.True(t, r1.Changed())
	require.Equal(t, int64(1), r1.RevisionID)

	r2, err := s.PutBucket("b1", []*document.Document{doc("certificates/Certificate/v1", "a", map[string]interface{}{"x": 1})})
	require.NoError(t, err)
	assert.False(t, r2.Changed())
	assert.Equal(t, r1.RevisionID, r2.RevisionID)
	assert.Len(t, r2.Unchanged, 1)
}

func TestPutBucket_ChangedDataMintsNewRevision(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.PutBucket("b1", []*document.Document{doc("certificates/Certificate/v1", "a", map[string]interface{}{"x": 1})})
	require.NoError(t, err)

	r2, err := s.PutBucket("b1", []*document.Document{doc("certificates/Certificate/v1", "a", map[string]interface{}{"x": 2})})
	require.NoError(t, err)
	assert.True(t, r2.Changed())
	assert.Equal(t, int64(2), r2.RevisionID)
	assert.Len(t, r2.Updated, 1)
}

func TestPutBucket_RemovingADocumentFromBucketDeletesIt(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.PutBucket("b1", []*document.Document{
		doc("certificates/Certificate/v1", "a", map[string]interface{}{"x": 1}),
		doc("certificates/Certificate/v1", "b", map[string]interface{}{"x": 1}),
	})
	require.NoError(t, err)

	r2, err := s.PutBucket("b1", []*document.Document{
		doc("certificates/Certificate/v1", "a", map[string]interface{}{"x": 1}),
	})
	require.NoError(t, err)
	require.True(t, r2.Changed())
	assert.Equal(t, []document.Key{{Schema: "certificates/Certificate/v1", Name: "b"}}, r2.Deleted)

	docs, err := s.Documents(r2.RevisionID)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestDiff_BucketLevelClassification(t *testing.T) {
	s := NewMemoryStore()

	r1, err := s.PutBucket("b1", []*document.Document{doc("certificates/Certificate/v1", "a", map[string]interface{}{"x": 1})})
	require.NoError(t, err)

	r2, err := s.PutBucket("b2", []*document.Document{doc("certificates/Certificate/v1", "c", map[string]interface{}{"x": 1})})
	require.NoError(t, err)

	d01, err := s.Diff(0, r1.RevisionID)
	require.NoError(t, err)
	assert.Equal(t, Diff{"b1": DiffCreated}, d01)

	d02, err := s.Diff(0, r2.RevisionID)
	require.NoError(t, err)
	assert.Equal(t, Diff{"b1": DiffCreated, "b2": DiffCreated}, d02)

	d12, err := s.Diff(r1.RevisionID, r2.RevisionID)
	require.NoError(t, err)
	assert.Equal(t, Diff{"b1": DiffUnmodified, "b2": DiffCreated}, d12)
}

func TestDiff_UnknownRevisionIsNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Diff(0, 99)
	require.Error(t, err)
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, ErrRevisionNotFound, rerr.Kind)
}

func TestRollback_RestoresPriorBucketContents(t *testing.T) {
	s := NewMemoryStore()
	r1, err := s.PutBucket("b1", []*document.Document{doc("certificates/Certificate/v1", "a", map[string]interface{}{"x": 1})})
	require.NoError(t, err)

	_, err = s.PutBucket("b1", []*document.Document{doc("certificates/Certificate/v1", "a", map[string]interface{}{"x": 2})})
	require.NoError(t, err)

	rolledBack, err := s.Rollback(r1.RevisionID)
	require.NoError(t, err)

	docs, err := s.Documents(rolledBack.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, map[string]interface{}{"x": 1}, docs[0].Data)
}

func TestTags_PutGetListDelete(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.PutTag(0, "release", map[string]interface{}{"note": "initial"}))

	tag, ok, err := s.GetTag(0, "release")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "release", tag.Name)

	tags, err := s.ListTags(0)
	require.NoError(t, err)
	assert.Len(t, tags, 1)

	require.NoError(t, s.DeleteTag(0, "release"))
	_, ok, err = s.GetTag(0, "release")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidationPolicyAndEntry_CRUD(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.PutValidationPolicy(ValidationPolicy{RevisionID: 0, Name: "deckhand-validation", Status: "expected"}))

	policies, err := s.ListValidationPolicies(0)
	require.NoError(t, err)
	require.Len(t, policies, 1)
	assert.Equal(t, "expected", policies[0].Status)

	require.NoError(t, s.PutValidationEntry(ValidationEntry{
		RevisionID: 0, PolicyName: "deckhand-validation", EntryID: "e1", Status: "success",
	}))
	entries, err := s.ListValidationEntries(0, "deckhand-validation")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "success", entries[0].Status)
}

func TestDeleteAllRevisions_ResetsStore(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.PutBucket("b1", []*document.Document{doc("certificates/Certificate/v1", "a", map[string]interface{}{"x": 1})})
	require.NoError(t, err)

	require.NoError(t, s.DeleteAllRevisions())
	revs, err := s.ListRevisions()
	require.NoError(t, err)
	assert.Len(t, revs, 1)
	assert.Equal(t, int64(0), revs[0].ID)
}

func TestGetRevision_UnknownIsNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.GetRevision(42)
	require.Error(t, err)
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, ErrRevisionNotFound, rerr.Kind)
}
