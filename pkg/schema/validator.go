package schema

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/deckhand/deckhand/pkg/document"
)

// ErrorKind enumerates the validator's two failure modes.
type ErrorKind string

const (
	ErrStructuralInvalid ErrorKind = "structural-invalid"
	ErrDataInvalid       ErrorKind = "data-invalid"
)

// ValidationError is one structured message produced by the validator. A
// single document may accumulate several.
type ValidationError struct {
	Kind    ErrorKind
	Doc     document.Key
	Pointer string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s at %s: %s", e.Kind, e.Doc, e.Pointer, e.Message)
}

// Validator runs the two-phase structural/data validation
// against a Registry.
type Validator struct {
	reg *Registry
}

// NewValidator builds a Validator bound to reg.
func NewValidator(reg *Registry) *Validator {
	return &Validator{reg: reg}
}

// Structural validates d's whole shape against the root schema, then against
// the metadata schema registered for d.Metadata.Schema. A document failing
// structural validation cannot progress further (no further phases
// run), so Structural returns on the first failing phase.
func (v *Validator) Structural(d *document.Document) []*ValidationError {
	var errs []*ValidationError

	asMap, err := toGenericMap(d)
	if err != nil {
		return []*ValidationError{{
			Kind: ErrStructuralInvalid, Doc: document.KeyOf(d), Pointer: "",
			Message: err.Error(),
		}}
	}

	if verr := v.reg.root.Validate(asMap); verr != nil {
		errs = append(errs, structuralErrors(d, verr)...)
		return errs
	}

	if meta := v.reg.MetadataSchema(d.Metadata.Schema); meta != nil {
		metaMap, _ := asMap.(map[string]interface{})
		metaVal := metaMap["metadata"]
		if verr := meta.Validate(metaVal); verr != nil {
			errs = append(errs, structuralErrors(d, verr)...)
		}
	}

	return errs
}

// Data validates d.Data against the data schema registered for d's kind.
// Abstract documents skip data validation. Absence of a schema
// registration is not an error (callers should log it, not fail the render).
func (v *Validator) Data(d *document.Document) []*ValidationError {
	if d.Metadata.LayeringDefinition.Abstract {
		return nil
	}
	s, ok := v.reg.Lookup(d.Schema)
	if !ok {
		return nil
	}
	if verr := s.Validate(d.Data); verr != nil {
		return dataErrors(d, verr)
	}
	return nil
}

// toGenericMap round-trips d through JSON to get the same generic
// map[string]interface{} shape the jsonschema library expects, including
// every metadata sub-field (labels, layeringDefinition, substitutions,
// storagePolicy) the structural schemas check for.
func toGenericMap(d *document.Document) (interface{}, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var m interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func structuralErrors(d *document.Document, verr error) []*ValidationError {
	return causesToValidationErrors(d, ErrStructuralInvalid, verr)
}

func dataErrors(d *document.Document, verr error) []*ValidationError {
	return causesToValidationErrors(d, ErrDataInvalid, verr)
}

// causesToValidationErrors flattens a jsonschema.ValidationError tree into
// one entry per leaf cause, each carrying the JSON Pointer of the offense
// one entry per leaf cause, each carrying the JSON Pointer of the offense.
func causesToValidationErrors(d *document.Document, kind ErrorKind, err error) []*ValidationError {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []*ValidationError{{Kind: kind, Doc: document.KeyOf(d), Message: err.Error()}}
	}
	var out []*ValidationError
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			out = append(out, &ValidationError{
				Kind:    kind,
				Doc:     document.KeyOf(d),
				Pointer: e.InstanceLocation,
				Message: e.Message,
			})
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return out
}
