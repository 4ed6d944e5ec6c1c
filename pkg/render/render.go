// Package render orchestrates a single revision's render: it loads the
// revision's documents, registers any DataSchema documents into a schema
// registry, builds the per-document dependency graph (C8), and evaluates it
// by dispatching each node to the validator, layering resolver/applier, and
// substitution engine in the order the graph demands.
package render

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/deckhand/deckhand/pkg/auditlog"
	"github.com/deckhand/deckhand/pkg/dag"
	"github.com/deckhand/deckhand/pkg/document"
	"github.com/deckhand/deckhand/pkg/layering"
	"github.com/deckhand/deckhand/pkg/observability"
	"github.com/deckhand/deckhand/pkg/revision"
	"github.com/deckhand/deckhand/pkg/schema"
	"github.com/deckhand/deckhand/pkg/secretstore"
	"github.com/deckhand/deckhand/pkg/substitution"
)

// missingParentSchema is the synthetic render-node schema dag.Build emits in
// place of a real predecessor when a document's layering parent cannot be
// resolved, so the real layer(D) node is blocked rather than silently run.
const missingParentSchema = "deckhand/MissingParent/v1"

// layeringPolicyValidateName is the synthetic validate-node name dag.Build
// emits for the LayeringPolicy document itself (it has no (schema, name)
// counterpart among the rendered documents).
const layeringPolicyValidateName = "layering-policy"

// Result is one rendered revision's outcome: the rendered documents (in
// deterministic schema/name order) plus any per-node failures the DAG
// evaluation reported.
type Result struct {
	Documents []*document.Document
	Eval      *dag.Result
}

// Failed reports whether any node in the render graph failed outright.
func (r *Result) Failed() bool { return r.Eval.Failed() }

// Orchestrator wires the schema registry, layering resolver, and
// substitution engine together for one store. A fresh Registry and
// substitution index are created per Render call so DataSchema documents
// registered during one render never leak into another.
type Orchestrator struct {
	Store        revision.Store
	SecretClient secretstore.Client
	SubPolicy    substitution.FailurePolicy

	// Audit records render lifecycle events (RenderStarted/RenderFailed/
	// NodeBlocked). Defaults to a no-op sink.
	Audit auditlog.Logger
	// Obs, if set, wraps each render in a trace span and RED metrics.
	Obs *observability.Provider
	// Timeout bounds a single Render call; zero means no deadline.
	Timeout time.Duration
}

// NewOrchestrator builds an Orchestrator. If secretClient is nil, an
// in-memory secret client is used (fine for dev/test; production wiring
// should pass an *secretstore.S3Client).
func NewOrchestrator(store revision.Store, secretClient secretstore.Client, subPolicy substitution.FailurePolicy) *Orchestrator {
	if secretClient == nil {
		secretClient = secretstore.NewMemoryClient()
	}
	return &Orchestrator{Store: store, SecretClient: secretClient, SubPolicy: subPolicy, Audit: auditlog.NopLogger{}}
}

// WithAudit attaches an audit log sink, returning o for chaining.
func (o *Orchestrator) WithAudit(l auditlog.Logger) *Orchestrator {
	o.Audit = l
	return o
}

// WithObservability attaches an OpenTelemetry provider, returning o for chaining.
func (o *Orchestrator) WithObservability(p *observability.Provider) *Orchestrator {
	o.Obs = p
	return o
}

// WithTimeout sets the per-render deadline, returning o for chaining.
func (o *Orchestrator) WithTimeout(d time.Duration) *Orchestrator {
	o.Timeout = d
	return o
}

// Render executes the full C2-C8 pipeline over revisionID's documents.
func (o *Orchestrator) Render(ctx context.Context, revisionID int64) (*Result, error) {
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	audit := o.Audit
	if audit == nil {
		audit = auditlog.NopLogger{}
	}

	if o.Obs != nil {
		var end func(error)
		ctx, end = o.Obs.TrackRender(ctx, revisionID)
		defer func() { end(nil) }()
	}

	_ = audit.Record(ctx, auditlog.EventRenderStarted, fmt.Sprintf("revision/%d", revisionID), nil)

	docs, err := o.Store.Documents(revisionID)
	if err != nil {
		_ = audit.Record(ctx, auditlog.EventRenderFailed, fmt.Sprintf("revision/%d", revisionID), map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	result, err := o.renderDocuments(ctx, docs)
	if err != nil {
		_ = audit.Record(ctx, auditlog.EventRenderFailed, fmt.Sprintf("revision/%d", revisionID), map[string]interface{}{"error": err.Error()})
		return nil, err
	}
	if result.Failed() {
		for id, nodeErr := range result.Eval.Errors {
			_ = audit.Record(ctx, auditlog.EventNodeBlocked, id.String(), map[string]interface{}{"error": nodeErr.Error()})
		}
	}
	return result, nil
}

func (o *Orchestrator) renderDocuments(ctx context.Context, docs []*document.Document) (*Result, error) {
	reg, err := schema.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("render: building schema registry: %w", err)
	}

	var policyDoc *document.Document
	dataSchemaDocs := map[string]*document.Document{} // kind -> DataSchema doc
	ordinary := make([]*document.Document, 0, len(docs))
	byKey := make(map[document.Key]*document.Document, len(docs))

	for _, d := range docs {
		byKey[document.KeyOf(d)] = d
		switch d.Schema {
		case document.SchemaLayeringPolicy:
			policyDoc = d
		case document.SchemaDataSchema:
			dataSchemaDocs[d.Metadata.Name] = d
		}
		ordinary = append(ordinary, d)
	}

	for kind, d := range dataSchemaDocs {
		version, schemaJSON, err := dataSchemaPayload(d)
		if err != nil {
			return nil, fmt.Errorf("render: %s: %w", kind, err)
		}
		if err := reg.RegisterDataSchema(kind, version, schemaJSON); err != nil {
			return nil, fmt.Errorf("render: registering data schema for %q: %w", kind, err)
		}
	}

	var resolver *layering.Resolver
	if policyDoc != nil {
		resolver, err = layering.NewResolver(policyDoc)
		if err != nil {
			return nil, err
		}
	}

	parentOf := map[document.Key]*document.Document{}
	missingParent := map[document.Key]bool{}
	parentErr := map[document.Key]error{}
	if resolver != nil {
		for _, d := range ordinary {
			if d.Metadata.LayeringDefinition.Layer == "" {
				continue
			}
			parentage, err := resolver.Resolve(d, ordinary)
			if err != nil {
				missingParent[document.KeyOf(d)] = true
				parentErr[document.KeyOf(d)] = err
				continue
			}
			if parentage.Parent != nil {
				parentOf[document.KeyOf(d)] = parentage.Parent
			}
		}
	}

	resolveParent := func(d *document.Document) (*document.Document, bool) {
		k := document.KeyOf(d)
		if missingParent[k] {
			return nil, true
		}
		return parentOf[k], false
	}

	g := dag.Build(ordinary, policyDoc, resolveParent)

	audit := o.Audit
	if audit == nil {
		audit = auditlog.NopLogger{}
	}

	validator := schema.NewValidator(reg)
	index := substitution.NewMemoryIndex(ordinary)
	secretClient := secretstore.NewAuditedClient(o.SecretClient, audit)
	subEngine := substitution.NewEngine(index, secretClient, o.SubPolicy)

	working := map[document.Key]interface{}{}
	rendered := map[document.Key]interface{}{}

	run := func(id dag.NodeID) error {
		if id.Schema == missingParentSchema {
			k := keyFromNodeName(id.Name)
			return parentErr[k]
		}

		d, ok := byKey[document.Key{Schema: id.Schema, Name: id.Name}]
		if !ok {
			// No document backs this node (an unregistered DataSchema kind,
			// or the synthetic layering-policy validate node): nothing to do.
			return nil
		}
		k := document.KeyOf(d)

		switch id.Op {
		case dag.OpSource:
			return nil

		case dag.OpStructural:
			if errs := validator.Structural(d); len(errs) > 0 {
				return combineValidationErrors(errs)
			}
			return nil

		case dag.OpLayer:
			parent, isMissing := resolveParent(d)
			if isMissing {
				return parentErr[k]
			}
			if parent == nil {
				working[k] = document.DeepCopy(d.Data)
				return nil
			}
			parentRendered := rendered[document.KeyOf(parent)]
			result, err := layering.Apply(d, parentRendered)
			if err != nil {
				return err
			}
			working[k] = result
			return nil

		case dag.OpSubstitute:
			base, ok := working[k]
			if !ok {
				base = d.Data
			}
			result, err := subEngine.Apply(ctx, d, base)
			if err != nil {
				return err
			}
			working[k] = result
			return nil

		case dag.OpRender:
			val, ok := working[k]
			if !ok {
				val = d.Data
			}
			rendered[k] = val
			index.Put(k.Schema, k.Name, val)
			return nil

		case dag.OpValidate:
			if k.Schema == document.SchemaLayeringPolicy && k.Name == layeringPolicyValidateName {
				return nil
			}
			final := &document.Document{Schema: d.Schema, Metadata: d.Metadata, Data: rendered[k]}
			if errs := validator.Data(final); len(errs) > 0 {
				return combineValidationErrors(errs)
			}
			return nil
		}
		return nil
	}

	evalResult, err := g.Evaluate(run)
	if err != nil {
		return nil, err
	}

	// Abstract documents exist only to be inherited from; they never appear in
	// the rendered output, only in the revision's full document set.
	out := make([]*document.Document, 0, len(ordinary))
	for _, d := range ordinary {
		if d.Metadata.LayeringDefinition.Abstract {
			continue
		}
		k := document.KeyOf(d)
		data, ok := rendered[k]
		if !ok {
			data = d.Data
		}
		out = append(out, &document.Document{Schema: d.Schema, Metadata: d.Metadata, Data: data, Bucket: d.Bucket})
	}

	return &Result{Documents: out, Eval: evalResult}, nil
}

// keyFromNodeName recovers the (schema, name) the missing-parent placeholder
// node stands in for, reversing document.Key.String()'s "schema/name" form.
func keyFromNodeName(name string) document.Key {
	idx := strings.LastIndex(name, "/")
	if idx < 0 {
		return document.Key{Name: name}
	}
	return document.Key{Schema: name[:idx], Name: name[idx+1:]}
}

// dataSchemaPayload extracts the major.minor version and the JSON Schema
// body a DataSchema control document registers. By convention its
// metadata.name is the bare kind ("group/Kind", no /vN.M) and its data
// carries {"version": "N.M", "schema": {...}}.
func dataSchemaPayload(d *document.Document) (string, interface{}, error) {
	m, ok := d.Data.(map[string]interface{})
	if !ok {
		return "", nil, fmt.Errorf("data is not an object")
	}
	version, ok := m["version"].(string)
	if !ok {
		return "", nil, fmt.Errorf("data.version missing or not a string")
	}
	schemaBody, ok := m["schema"]
	if !ok {
		return "", nil, fmt.Errorf("data.schema missing")
	}
	return version, schemaBody, nil
}

func combineValidationErrors(errs []*schema.ValidationError) error {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
