package apierr

import (
	"github.com/deckhand/deckhand/pkg/document"
	"github.com/deckhand/deckhand/pkg/jsonpath"
	"github.com/deckhand/deckhand/pkg/secretstore"
)

// redactedPlaceholder is the fixed placeholder spec §7 requires in place of
// sanitized values.
const redactedPlaceholder = "<redacted>"

// SanitizeDocumentData returns a copy of d.Data with every substitution
// destination path overwritten by the fixed placeholder, and every
// secret-reference-shaped scalar anywhere in the tree redacted the same way.
// Call this before a document's data is embedded in an error response.
func SanitizeDocumentData(d *document.Document) interface{} {
	data := document.DeepCopy(d.Data)

	for _, sub := range d.Metadata.Substitutions {
		for _, dest := range sub.Dest {
			path, err := jsonpath.Parse(dest.Path)
			if err != nil {
				continue
			}
			if injected, err := path.Inject(data, redactedPlaceholder); err == nil {
				data = injected
			}
		}
	}

	return redactReferences(data)
}

// redactReferences walks a generic JSON-ish tree and replaces any string
// leaf matching secretstore.IsReference's heuristic with the placeholder.
func redactReferences(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = redactReferences(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = redactReferences(val)
		}
		return out
	case string:
		if secretstore.IsReference(t) {
			return redactedPlaceholder
		}
		return t
	default:
		return v
	}
}
