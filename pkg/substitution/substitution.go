// Package substitution implements the substitution engine (C6): extracting
// values from source documents by JSONPath and injecting them into
// destination documents, with optional secret-store indirection and regex
// pattern replacement.
package substitution

import (
	"context"
	"fmt"

	"github.com/deckhand/deckhand/pkg/document"
	"github.com/deckhand/deckhand/pkg/jsonpath"
	"github.com/deckhand/deckhand/pkg/secretstore"
)

// ErrorKind enumerates the engine's failure modes.
type ErrorKind string

const (
	ErrSourceNotFound    ErrorKind = "substitution-source-not-found"
	ErrSourceDataMissing ErrorKind = "substitution-source-data-missing"
	ErrSecretStore       ErrorKind = "secret-store-error"
)

// Error is a typed substitution failure.
type Error struct {
	Kind ErrorKind
	Doc  document.Key
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Doc, e.Msg)
}

// FailurePolicy controls whether a missing substitution source is fatal.
type FailurePolicy int

const (
	// FailOnMissingSource is the default (strict) policy.
	FailOnMissingSource FailurePolicy = iota
	// WarnOnMissingSource treats a missing source as a no-op, not an error.
	WarnOnMissingSource
)

// SourceIndex resolves a substitution source document by (schema, name) and
// observes the latest rendered data for documents as they are substituted,
// so later documents in the DAG can draw from earlier ones' results.
type SourceIndex interface {
	Lookup(schema, name string) (*document.Document, interface{}, bool)
	Put(schema, name string, data interface{})
}

// Engine applies substitutions to a single destination document's rendered
// data.
type Engine struct {
	index  SourceIndex
	store  secretstore.Client
	policy FailurePolicy
}

// NewEngine builds an Engine bound to a SourceIndex and an optional secret
// store client (may be nil if no document uses encrypted storage).
func NewEngine(index SourceIndex, store secretstore.Client, policy FailurePolicy) *Engine {
	return &Engine{index: index, store: store, policy: policy}
}

// Apply runs every substitution attached to d's metadata against workingData
// (d's layered data) in list order, returning the substituted result.
func (e *Engine) Apply(ctx context.Context, d *document.Document, workingData interface{}) (interface{}, error) {
	data := workingData
	for _, sub := range d.Metadata.Substitutions {
		var err error
		data, err = e.applyOne(ctx, d, sub, data)
		if err != nil {
			return nil, err
		}
	}
	return data, nil
}

func (e *Engine) applyOne(ctx context.Context, d *document.Document, sub document.Substitution, working interface{}) (interface{}, error) {
	srcDoc, srcData, ok := e.index.Lookup(sub.Src.Schema, sub.Src.Name)
	if !ok {
		if e.policy == WarnOnMissingSource {
			return working, nil
		}
		return nil, &Error{Kind: ErrSourceNotFound, Doc: document.KeyOf(d),
			Msg: fmt.Sprintf("source %s/%s not found", sub.Src.Schema, sub.Src.Name)}
	}

	value, err := extract(srcData, sub.Src.Path)
	if err != nil {
		return nil, &Error{Kind: ErrSourceDataMissing, Doc: document.KeyOf(d),
			Msg: fmt.Sprintf("source %s/%s: %v", sub.Src.Schema, sub.Src.Name, err)}
	}

	if srcDoc.Metadata.StoragePolicy == document.StorageEncrypted && secretstore.IsReference(value) {
		if e.store == nil {
			return nil, &Error{Kind: ErrSecretStore, Doc: document.KeyOf(d), Msg: "no secret store client configured"}
		}
		ref, _ := value.(string)
		payload, err := e.store.Fetch(ctx, ref)
		if err != nil {
			return nil, &Error{Kind: ErrSecretStore, Doc: document.KeyOf(d), Msg: err.Error()}
		}
		value = string(payload)
	}

	for _, dest := range sub.Dest {
		path, perr := jsonpath.Parse(dest.Path)
		if perr != nil {
			return nil, &Error{Kind: ErrSourceDataMissing, Doc: document.KeyOf(d), Msg: perr.Error()}
		}

		if dest.Pattern != "" {
			strValue, ok := value.(string)
			if !ok {
				return nil, &Error{Kind: ErrSourceDataMissing, Doc: document.KeyOf(d),
					Msg: "pattern substitution requires a string value"}
			}
			out, err := path.InjectPattern(working, strValue, dest.Pattern)
			if err != nil {
				return nil, &Error{Kind: ErrSourceDataMissing, Doc: document.KeyOf(d), Msg: err.Error()}
			}
			working = out
			continue
		}

		out, err := path.Inject(working, value)
		if err != nil {
			return nil, &Error{Kind: ErrSourceDataMissing, Doc: document.KeyOf(d), Msg: err.Error()}
		}
		working = out
	}

	// The substituted document becomes a source for later documents in the DAG.
	e.index.Put(d.Schema, d.Metadata.Name, working)

	return working, nil
}

// extract returns srcData itself if it is not an object (a scalar source's
// whole value is "the value"), or the JSONPath extraction from it otherwise.
func extract(srcData interface{}, path string) (interface{}, error) {
	if _, ok := srcData.(map[string]interface{}); !ok {
		return srcData, nil
	}
	p, err := jsonpath.Parse(path)
	if err != nil {
		return nil, err
	}
	return p.Get(srcData)
}
