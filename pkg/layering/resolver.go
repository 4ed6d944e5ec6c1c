// Package layering implements the layering resolver and applier: computing
// each document's parent from a layer order and a label selector, and
// applying a child's ordered merge/replace/delete actions onto its parent's
// rendered data.
package layering

import (
	"fmt"

	"github.com/deckhand/deckhand/pkg/document"
)

// ErrorKind enumerates the resolver and applier's failure modes.
type ErrorKind string

const (
	ErrLayeringPolicyMissing   ErrorKind = "layering-policy-missing"
	ErrLayeringPolicyMalformed ErrorKind = "layering-policy-malformed"
	ErrMissingParent           ErrorKind = "missing-parent"
	ErrIndeterminateParent     ErrorKind = "indeterminate-parent"
	ErrInvalidAction           ErrorKind = "invalid-action"
	ErrMissingKey              ErrorKind = "missing-key"
)

// Error is a typed layering failure, identifying the offending document.
type Error struct {
	Kind ErrorKind
	Doc  document.Key
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Doc, e.Msg)
}

// Parentage is the resolver's verdict for one document: either a parent
// reference, or "bottom layer, no parent" (nil Parent), or an error.
type Parentage struct {
	Parent *document.Document
}

// Resolver computes parent/child relationships from a layer order.
type Resolver struct {
	layerOrder []string
	layerIndex map[string]int
}

// NewResolver builds a Resolver from a LayeringPolicy document's layerOrder,
// read top-down with the last element as the topmost layer.
func NewResolver(policy *document.Document) (*Resolver, error) {
	if policy == nil {
		return nil, &Error{Kind: ErrLayeringPolicyMissing, Msg: "no LayeringPolicy in revision"}
	}
	order, err := document.LayerOrder(policy)
	if err != nil {
		return nil, &Error{Kind: ErrLayeringPolicyMalformed, Msg: err.Error()}
	}
	if len(order) == 0 {
		return nil, &Error{Kind: ErrLayeringPolicyMalformed, Msg: "layerOrder is empty"}
	}
	idx := make(map[string]int, len(order))
	for i, l := range order {
		idx[l] = i
	}
	return &Resolver{layerOrder: order, layerIndex: idx}, nil
}

// LayerOrder returns the resolved layer order, topmost last.
func (r *Resolver) LayerOrder() []string { return r.layerOrder }

// IsTopmost reports whether layer is the highest layer in the order.
func (r *Resolver) IsTopmost(layer string) bool {
	i, ok := r.layerIndex[layer]
	return ok && i == len(r.layerOrder)-1
}

// Resolve computes d's parent among candidates, the full document set of the
// current revision (the policy document may be among them; its schema never
// matches). Candidates must share d's schema and sit exactly one layer below
// d. Documents in the first (bottom) layer of the order have no parent.
func (r *Resolver) Resolve(d *document.Document, candidates []*document.Document) (*Parentage, error) {
	layer := d.Metadata.LayeringDefinition.Layer
	idx, ok := r.layerIndex[layer]
	if !ok {
		return nil, &Error{Kind: ErrLayeringPolicyMalformed, Doc: document.KeyOf(d),
			Msg: fmt.Sprintf("layer %q not present in layerOrder", layer)}
	}

	if idx == 0 {
		// The bottom layer has no layer below it to draw a parent from, so
		// its documents have no parent.
		return &Parentage{}, nil
	}
	parentLayer := r.layerOrder[idx-1]

	var matches []*document.Document
	for _, c := range candidates {
		if c.Schema != d.Schema {
			continue
		}
		if c.Metadata.LayeringDefinition.Layer != parentLayer {
			continue
		}
		if labelsSatisfy(c.Metadata.Labels, d.Metadata.LayeringDefinition.ParentSelector) {
			matches = append(matches, c)
		}
	}

	switch len(matches) {
	case 0:
		return nil, &Error{Kind: ErrMissingParent, Doc: document.KeyOf(d),
			Msg: fmt.Sprintf("no document in layer %q satisfies parentSelector", parentLayer)}
	case 1:
		return &Parentage{Parent: matches[0]}, nil
	default:
		return nil, &Error{Kind: ErrIndeterminateParent, Doc: document.KeyOf(d),
			Msg: fmt.Sprintf("%d documents in layer %q satisfy parentSelector", len(matches), parentLayer)}
	}
}

// labelsSatisfy reports whether every key/value pair in selector is present
// and equal in labels (a label subset match).
func labelsSatisfy(labels map[string]string, selector map[string]string) bool {
	for k, v := range selector {
		if labels[k] != v {
			return false
		}
	}
	return true
}
