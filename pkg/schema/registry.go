// Package schema implements the schema registry (C2) and validator (C3) of
// the registry: a root structural schema, per-kind metadata schemas, and a
// dynamic set of runtime-registered DataSchema documents.
package schema

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/deckhand/deckhand/pkg/document"
)

const (
	rootSchemaURL     = "deckhand://schema/root.json"
	documentSchemaURL = "deckhand://schema/metadata-document.json"
	controlSchemaURL  = "deckhand://schema/metadata-control.json"
)

const rootSchemaJSON = `{
  "$id": "deckhand://schema/root.json",
  "type": "object",
  "required": ["schema", "metadata", "data"],
  "properties": {
    "schema": {"type": "string", "pattern": "^[^/]+/[^/]+/v[0-9]+\\.[0-9]+$"},
    "metadata": {
      "type": "object",
      "required": ["schema", "name"],
      "properties": {
        "schema": {"type": "string"},
        "name": {"type": "string", "minLength": 1}
      }
    }
  }
}`

const documentMetadataSchemaJSON = `{
  "$id": "deckhand://schema/metadata-document.json",
  "type": "object",
  "required": ["schema", "name", "layeringDefinition"],
  "properties": {
    "schema": {"const": "metadata/Document/v1"},
    "name": {"type": "string"},
    "labels": {"type": "object"},
    "layeringDefinition": {
      "type": "object",
      "required": ["layer"],
      "properties": {
        "layer": {"type": "string"},
        "parentSelector": {"type": "object"},
        "actions": {"type": "array"},
        "abstract": {"type": "boolean"}
      }
    },
    "substitutions": {"type": "array"}
  }
}`

const controlMetadataSchemaJSON = `{
  "$id": "deckhand://schema/metadata-control.json",
  "type": "object",
  "required": ["schema", "name"],
  "properties": {
    "schema": {"const": "metadata/Control/v1"},
    "name": {"type": "string"}
  }
}`

// versionedSchema pairs a compiled data schema with the major.minor it was
// registered against, so Registry.Lookup can apply semver-aware matching
// across repeated DataSchema registrations for the same kind.
type versionedSchema struct {
	version *semver.Version
	schema  *jsonschema.Schema
}

// Registry holds the root structural schema, the two metadata schemas, and a
// dynamic set of data schemas keyed by kind. A Registry is scoped to a single
// rendering session ("DataSchema documents registered during a
// render stay in the registry for that render only") — callers create a new
// Registry per revision render rather than sharing one
// process-wide.
type Registry struct {
	mu          sync.RWMutex
	root        *jsonschema.Schema
	metaSchemas map[string]*jsonschema.Schema
	dataSchemas map[string][]versionedSchema
}

// NewRegistry compiles the base structural and metadata schemas and returns
// an empty dynamic registry.
func NewRegistry() (*Registry, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(rootSchemaURL, mustJSON(rootSchemaJSON)); err != nil {
		return nil, fmt.Errorf("schema: compiling root schema: %w", err)
	}
	root, err := compiler.Compile(rootSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("schema: compiling root schema: %w", err)
	}

	metaDefs := []struct {
		key, src, url string
	}{
		{document.MetaSchemaDocument, documentMetadataSchemaJSON, documentSchemaURL},
		{document.MetaSchemaControl, controlMetadataSchemaJSON, controlSchemaURL},
	}

	metaSchemas := make(map[string]*jsonschema.Schema, len(metaDefs))
	for _, def := range metaDefs {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(def.url, mustJSON(def.src)); err != nil {
			return nil, fmt.Errorf("schema: compiling %s: %w", def.key, err)
		}
		s, err := c.Compile(def.url)
		if err != nil {
			return nil, fmt.Errorf("schema: compiling %s: %w", def.key, err)
		}
		metaSchemas[def.key] = s
	}

	return &Registry{
		root:        root,
		metaSchemas: metaSchemas,
		dataSchemas: make(map[string][]versionedSchema),
	}, nil
}

func mustJSON(src string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(src), &v); err != nil {
		panic(err)
	}
	return v
}

// RootSchema returns the compiled root structural schema.
func (r *Registry) RootSchema() *jsonschema.Schema { return r.root }

// MetadataSchema returns the compiled metadata schema registered for the
// given metadata.schema value, or nil if unrecognized.
func (r *Registry) MetadataSchema(metaSchema string) *jsonschema.Schema {
	return r.metaSchemas[metaSchema]
}

// RegisterDataSchema compiles and stores schemaJSON as the data schema for
// kind at the given major.minor version, per a DataSchema control document
// found in the current revision.
func (r *Registry) RegisterDataSchema(kind string, version string, schemaJSON interface{}) error {
	v, err := semver.NewVersion(normalizeVersion(version))
	if err != nil {
		return fmt.Errorf("schema: invalid DataSchema version %q for kind %q: %w", version, kind, err)
	}

	id := fmt.Sprintf("deckhand://schema/data/%s/%s", kind, version)
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(id, schemaJSON); err != nil {
		return fmt.Errorf("schema: adding data schema for kind %q: %w", kind, err)
	}
	compiled, err := compiler.Compile(id)
	if err != nil {
		return fmt.Errorf("schema: compiling data schema for kind %q: %w", kind, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.dataSchemas[kind] = append(r.dataSchemas[kind], versionedSchema{version: v, schema: compiled})
	return nil
}

// normalizeVersion turns a bare "N.M" into a semver-parseable "N.M.0".
func normalizeVersion(v string) string {
	return v + ".0"
}

// Lookup returns the data schema registered for the kind (and major version)
// embedded in fullSchema (e.g. "certificates/Certificate/v1.2"), or false if
// no schema is registered for that kind at a compatible major version.
// Among same-major registrations it prefers the highest registered minor.
func (r *Registry) Lookup(fullSchema string) (*jsonschema.Schema, bool) {
	kind := document.Kind(fullSchema)
	major, _, err := splitSchemaVersion(fullSchema)
	if err != nil {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	candidates, ok := r.dataSchemas[kind]
	if !ok {
		return nil, false
	}

	var best *versionedSchema
	for i := range candidates {
		c := &candidates[i]
		if c.version.Major() != major {
			continue
		}
		if best == nil || c.version.GreaterThan(best.version) {
			best = c
		}
	}
	if best == nil {
		return nil, false
	}
	return best.schema, true
}

func splitSchemaVersion(fullSchema string) (int64, int64, error) {
	v, err := semver.NewVersion(normalizeVersion(versionSuffix(fullSchema)))
	if err != nil {
		return 0, 0, err
	}
	return v.Major(), v.Minor(), nil
}

func versionSuffix(fullSchema string) string {
	for i := len(fullSchema) - 1; i >= 0; i-- {
		if fullSchema[i] == 'v' && (i == 0 || fullSchema[i-1] == '/') {
			return fullSchema[i+1:]
		}
	}
	return "0.0"
}
