package revision

import (
	"database/sql"
	"testing"

	"github.com/deckhand/deckhand/pkg/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// testDB returns a fresh in-memory SQLite database with the revision store's
// schema applied, and a cleanup function to close it.
func testDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	db, err := sql.Open("sqlite", "file::memory:?cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, Migrate(db))
	return db, func() { db.Close() }
}

func TestSQLStore_PutBucketCreateAndIdempotentWrite(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()
	s := NewSQLStore(db, DialectSQLite)

	r1, err := s.PutBucket("b1", []*document.Document{doc("certificates/Certificate/v1", "a", map[string]interface{}{"x": float64(1)})})
	require.NoError(t, err)
	require.True(t, r1.Changed())
	assert.Equal(t, int64(1), r1.RevisionID)

	r2, err := s.PutBucket("b1", []*document.Document{doc("certificates/Certificate/v1", "a", map[string]interface{}{"x": float64(1)})})
	require.NoError(t, err)
	assert.False(t, r2.Changed())
	assert.Equal(t, r1.RevisionID, r2.RevisionID)
}

func TestSQLStore_DiffAcrossRevisions(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()
	s := NewSQLStore(db, DialectSQLite)

	r1, err := s.PutBucket("b1", []*document.Document{doc("certificates/Certificate/v1", "a", map[string]interface{}{"x": float64(1)})})
	require.NoError(t, err)
	r2, err := s.PutBucket("b2", []*document.Document{doc("certificates/Certificate/v1", "c", map[string]interface{}{"x": float64(1)})})
	require.NoError(t, err)

	diff, err := s.Diff(r1.RevisionID, r2.RevisionID)
	require.NoError(t, err)
	assert.Equal(t, Diff{"b1": DiffUnmodified, "b2": DiffCreated}, diff)
}

func TestSQLStore_TagAndValidationRoundTrip(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()
	s := NewSQLStore(db, DialectSQLite)

	require.NoError(t, s.PutTag(0, "release", map[string]interface{}{"note": "initial"}))
	tag, ok, err := s.GetTag(0, "release")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"note": "initial"}, tag.Data)

	require.NoError(t, s.PutValidationPolicy(ValidationPolicy{RevisionID: 0, Name: "deckhand-validation", Status: "expected"}))
	require.NoError(t, s.PutValidationEntry(ValidationEntry{RevisionID: 0, PolicyName: "deckhand-validation", EntryID: "e1", Status: "success"}))

	entries, err := s.ListValidationEntries(0, "deckhand-validation")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "success", entries[0].Status)
}

func TestSQLStore_RollbackRestoresPriorContents(t *testing.T) {
	db, cleanup := testDB(t)
	defer cleanup()
	s := NewSQLStore(db, DialectSQLite)

	r1, err := s.PutBucket("b1", []*document.Document{doc("certificates/Certificate/v1", "a", map[string]interface{}{"x": float64(1)})})
	require.NoError(t, err)

	_, err = s.PutBucket("b1", []*document.Document{doc("certificates/Certificate/v1", "a", map[string]interface{}{"x": float64(2)})})
	require.NoError(t, err)

	rolledBack, err := s.Rollback(r1.RevisionID)
	require.NoError(t, err)

	docs, err := s.Documents(rolledBack.ID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, map[string]interface{}{"x": float64(1)}, docs[0].Data)
}
