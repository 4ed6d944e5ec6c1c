package substitution

import "github.com/deckhand/deckhand/pkg/document"

// key identifies a document in the index by (schema, name).
type key struct{ schema, name string }

// MemoryIndex is a SourceIndex backed by an in-memory map, seeded with a
// revision's documents and updated as the render orchestrator substitutes
// each document in DAG order.
type MemoryIndex struct {
	docs map[key]*document.Document
	data map[key]interface{}
}

// NewMemoryIndex seeds an index from docs, using each document's own data as
// its initial "rendered" value (callers update it via Put as layering and
// substitution run).
func NewMemoryIndex(docs []*document.Document) *MemoryIndex {
	idx := &MemoryIndex{
		docs: make(map[key]*document.Document, len(docs)),
		data: make(map[key]interface{}, len(docs)),
	}
	for _, d := range docs {
		k := key{d.Schema, d.Metadata.Name}
		idx.docs[k] = d
		idx.data[k] = d.Data
	}
	return idx
}

func (idx *MemoryIndex) Lookup(schema, name string) (*document.Document, interface{}, bool) {
	k := key{schema, name}
	d, ok := idx.docs[k]
	if !ok {
		return nil, nil, false
	}
	return d, idx.data[k], true
}

func (idx *MemoryIndex) Put(schema, name string, data interface{}) {
	idx.data[key{schema, name}] = data
}
