package document

import "strconv"

// Filter narrows a document set per the query parameters recognized by
// GET /revisions/{id}/documents.
type Filter struct {
	Schema   string
	Name     string
	Label    map[string]string
	Layer    string
	Abstract *bool
	Bucket   string
}

// Match reports whether d satisfies every non-zero field of f.
func (f Filter) Match(d *Document) bool {
	if f.Schema != "" && d.Schema != f.Schema {
		return false
	}
	if f.Name != "" && d.Metadata.Name != f.Name {
		return false
	}
	for k, v := range f.Label {
		if d.Metadata.Labels[k] != v {
			return false
		}
	}
	if f.Layer != "" && d.Metadata.LayeringDefinition.Layer != f.Layer {
		return false
	}
	if f.Abstract != nil && d.Metadata.LayeringDefinition.Abstract != *f.Abstract {
		return false
	}
	if f.Bucket != "" && d.Bucket != f.Bucket {
		return false
	}
	return true
}

// Apply returns the subset of docs matching f.
func Apply(docs []*Document, f Filter) []*Document {
	out := make([]*Document, 0, len(docs))
	for _, d := range docs {
		if f.Match(d) {
			out = append(out, d)
		}
	}
	return out
}

// ParseAbstract parses the "true"/"false" query value used for the abstract filter.
func ParseAbstract(s string) (*bool, error) {
	if s == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
