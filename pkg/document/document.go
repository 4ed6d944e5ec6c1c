// Package document defines the Deckhand document model: the self-describing
// YAML objects that flow through validation, layering, and substitution.
package document

import (
	"fmt"
	"regexp"
	"strings"
)

// StoragePolicy controls whether a document's data is persisted as cleartext
// or routed through the secret store before it touches the revision store.
type StoragePolicy string

const (
	StorageCleartext StoragePolicy = "cleartext"
	StorageEncrypted StoragePolicy = "encrypted"
)

// Action is one step of a layering definition's ordered transform list.
type Action struct {
	Path   string `yaml:"path" json:"path"`
	Method string `yaml:"method" json:"method"`
}

const (
	ActionMerge   = "merge"
	ActionReplace = "replace"
	ActionDelete  = "delete"
)

// LayeringDefinition describes where a document sits in the layering
// hierarchy and how it derives from its parent.
type LayeringDefinition struct {
	Layer          string            `yaml:"layer" json:"layer"`
	ParentSelector map[string]string `yaml:"parentSelector,omitempty" json:"parentSelector,omitempty"`
	Actions        []Action          `yaml:"actions,omitempty" json:"actions,omitempty"`
	Abstract       bool              `yaml:"abstract,omitempty" json:"abstract,omitempty"`
}

// SubstitutionSource identifies where a substituted value comes from.
type SubstitutionSource struct {
	Schema string `yaml:"schema" json:"schema"`
	Name   string `yaml:"name" json:"name"`
	Path   string `yaml:"path" json:"path"`
}

// SubstitutionDest identifies where a substituted value is written, with an
// optional regex pattern restricting the injection to a pattern-replace.
type SubstitutionDest struct {
	Path    string `yaml:"path" json:"path"`
	Pattern string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
}

// Substitution is one extract/inject rule attached to a destination document.
type Substitution struct {
	Src  SubstitutionSource `yaml:"src" json:"src"`
	Dest []SubstitutionDest `yaml:"dest" json:"dest"`
}

// UnmarshalYAML accepts dest as either a single mapping or a list.
func (s *Substitution) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw struct {
		Src  SubstitutionSource `yaml:"src"`
		Dest interface{}        `yaml:"dest"`
	}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	s.Src = raw.Src
	switch v := raw.Dest.(type) {
	case nil:
		s.Dest = nil
	case []interface{}:
		for _, item := range v {
			d, err := coerceDest(item)
			if err != nil {
				return err
			}
			s.Dest = append(s.Dest, d)
		}
	default:
		d, err := coerceDest(v)
		if err != nil {
			return err
		}
		s.Dest = []SubstitutionDest{d}
	}
	return nil
}

func coerceDest(v interface{}) (SubstitutionDest, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		if m2, ok2 := v.(map[interface{}]interface{}); ok2 {
			m = make(map[string]interface{}, len(m2))
			for k, val := range m2 {
				ks, ok := k.(string)
				if !ok {
					return SubstitutionDest{}, fmt.Errorf("substitution dest: non-string key %v", k)
				}
				m[ks] = val
			}
		} else {
			return SubstitutionDest{}, fmt.Errorf("substitution dest: expected mapping, got %T", v)
		}
	}
	d := SubstitutionDest{}
	if p, ok := m["path"].(string); ok {
		d.Path = p
	}
	if p, ok := m["pattern"].(string); ok {
		d.Pattern = p
	}
	return d, nil
}

// MetadataSchema values recognized in metadata.schema.
const (
	MetaSchemaDocument = "metadata/Document/v1"
	MetaSchemaControl  = "metadata/Control/v1"
)

// Metadata is the recognized sub-structure of a document's metadata field.
type Metadata struct {
	Schema             string             `yaml:"schema" json:"schema"`
	Name               string             `yaml:"name" json:"name"`
	Labels             map[string]string  `yaml:"labels,omitempty" json:"labels,omitempty"`
	LayeringDefinition LayeringDefinition `yaml:"layeringDefinition,omitempty" json:"layeringDefinition,omitempty"`
	Substitutions      []Substitution     `yaml:"substitutions,omitempty" json:"substitutions,omitempty"`
	StoragePolicy      StoragePolicy      `yaml:"storagePolicy,omitempty" json:"storagePolicy,omitempty"`
}

// IsControl reports whether this document is a control document (no layering).
func (m Metadata) IsControl() bool {
	return m.Schema == MetaSchemaControl
}

// Document is the top-level self-describing configuration object.
type Document struct {
	Schema   string      `yaml:"schema" json:"schema"`
	Metadata Metadata    `yaml:"metadata" json:"metadata"`
	Data     interface{} `yaml:"data" json:"data"`

	// Bucket is not part of the wire document; it is stamped by the revision
	// store to record which bucket last wrote this (schema, name) pair.
	Bucket string `yaml:"-" json:"-"`
}

var schemaPattern = regexp.MustCompile(`^[^/]+/[^/]+/v\d+\.\d+$`)

// ValidSchemaForm reports whether s has the <group>/<kind>/v<major>.<minor> shape.
func ValidSchemaForm(s string) bool {
	return schemaPattern.MatchString(s)
}

// Kind strips the /vN.M suffix from a schema string, used as the schema
// registry lookup key.
func Kind(schema string) string {
	idx := strings.LastIndex(schema, "/v")
	if idx < 0 {
		return schema
	}
	return schema[:idx]
}

// Key identifies a document uniquely within a bucket or revision.
type Key struct {
	Schema string
	Name   string
}

func (k Key) String() string {
	return k.Schema + "/" + k.Name
}

// KeyOf returns the (schema, name) identity of d.
func KeyOf(d *Document) Key {
	return Key{Schema: d.Schema, Name: d.Metadata.Name}
}

const (
	SchemaLayeringPolicy = "deckhand/LayeringPolicy/v1.0"
	SchemaDataSchema     = "deckhand/DataSchema/v1.0"
)

// LayerOrder extracts data.layerOrder from a LayeringPolicy document.
func LayerOrder(policy *Document) ([]string, error) {
	m, ok := policy.Data.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("layering-policy-malformed: data is not an object")
	}
	raw, ok := m["layerOrder"]
	if !ok {
		return nil, fmt.Errorf("layering-policy-malformed: layerOrder missing")
	}
	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("layering-policy-malformed: layerOrder is not a list")
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("layering-policy-malformed: layerOrder entry is not a string")
		}
		out = append(out, s)
	}
	return out, nil
}
