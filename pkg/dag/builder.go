package dag

import "github.com/deckhand/deckhand/pkg/document"

// ParentLookup resolves a document's layering parent, mirroring
// layering.Resolver.Resolve without importing the layering package; the
// caller supplies the resolution.
type ParentLookup func(d *document.Document) (parent *document.Document, missing bool)

// Build constructs the per-document operation graph for docs (which may
// include the layering policy document itself) per the node/edge rules: source,
// structural, layer, substitute, render, validate.
func Build(docs []*document.Document, policy *document.Document, resolveParent ParentLookup) *Graph {
	g := New()

	policyValidate := NodeID{Op: OpValidate, Schema: document.SchemaLayeringPolicy, Name: "layering-policy"}
	if policy != nil {
		g.AddNode(policyValidate)
	}

	for _, d := range docs {
		k := document.KeyOf(d)
		source := NodeID{Op: OpSource, Schema: k.Schema, Name: k.Name}
		structural := NodeID{Op: OpStructural, Schema: k.Schema, Name: k.Name}
		render := NodeID{Op: OpRender, Schema: k.Schema, Name: k.Name}

		g.AddEdge(source, structural)

		if !d.Metadata.IsControl() && policy != nil {
			g.AddEdge(policyValidate, structural)
		}

		prev := structural

		if d.Metadata.LayeringDefinition.Layer != "" {
			layer := NodeID{Op: OpLayer, Schema: k.Schema, Name: k.Name}
			g.AddEdge(structural, layer)

			if resolveParent != nil {
				if parent, missing := resolveParent(d); missing {
					missingParent := NodeID{Op: OpRender, Schema: "deckhand/MissingParent/v1", Name: k.String()}
					g.AddEdge(missingParent, layer)
				} else if parent != nil {
					pk := document.KeyOf(parent)
					g.AddEdge(NodeID{Op: OpRender, Schema: pk.Schema, Name: pk.Name}, layer)
				}
			}
			prev = layer
		}

		if len(d.Metadata.Substitutions) > 0 {
			substitute := NodeID{Op: OpSubstitute, Schema: k.Schema, Name: k.Name}
			g.AddEdge(prev, substitute)
			for _, sub := range d.Metadata.Substitutions {
				g.AddEdge(NodeID{Op: OpValidate, Schema: sub.Src.Schema, Name: sub.Src.Name}, substitute)
			}
			prev = substitute
		}

		g.AddEdge(prev, render)

		if !d.Metadata.LayeringDefinition.Abstract {
			validate := NodeID{Op: OpValidate, Schema: k.Schema, Name: k.Name}
			g.AddEdge(render, validate)
			g.AddEdge(NodeID{Op: OpRender, Schema: document.SchemaDataSchema, Name: document.Kind(d.Schema)}, validate)
		}
	}

	return g
}
