package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deckhand/deckhand/pkg/document"
)

func newTestDoc() *document.Document {
	return &document.Document{
		Schema: "certificates/Certificate/v1.0",
		Metadata: document.Metadata{
			Schema: document.MetaSchemaDocument,
			Name:   "example-cert",
			LayeringDefinition: document.LayeringDefinition{
				Layer: "site",
			},
		},
		Data: map[string]interface{}{"value": "abc"},
	}
}

func TestValidator_StructuralValid(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	v := NewValidator(reg)

	errs := v.Structural(newTestDoc())
	assert.Empty(t, errs)
}

func TestValidator_StructuralMissingMetadataName(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	v := NewValidator(reg)

	d := newTestDoc()
	d.Metadata.Name = ""

	errs := v.Structural(d)
	require.NotEmpty(t, errs)
	assert.Equal(t, ErrStructuralInvalid, errs[0].Kind)
}

func TestValidator_StructuralBadSchemaForm(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	v := NewValidator(reg)

	d := newTestDoc()
	d.Schema = "not-a-valid-schema-string"

	errs := v.Structural(d)
	require.NotEmpty(t, errs)
}

func TestValidator_DataSkippedWhenAbstract(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	require.NoError(t, reg.RegisterDataSchema("certificates/Certificate", "1.0", map[string]interface{}{
		"type": "object", "required": []interface{}{"value"},
	}))
	v := NewValidator(reg)

	d := newTestDoc()
	d.Metadata.LayeringDefinition.Abstract = true
	d.Data = map[string]interface{}{} // would fail if validated

	assert.Empty(t, v.Data(d))
}

func TestValidator_DataInvalid(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	require.NoError(t, reg.RegisterDataSchema("certificates/Certificate", "1.0", map[string]interface{}{
		"type": "object", "required": []interface{}{"value"},
	}))
	v := NewValidator(reg)

	d := newTestDoc()
	d.Data = map[string]interface{}{}

	errs := v.Data(d)
	require.NotEmpty(t, errs)
	assert.Equal(t, ErrDataInvalid, errs[0].Kind)
}

func TestValidator_DataNoRegisteredSchemaIsNotAnError(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	v := NewValidator(reg)

	assert.Empty(t, v.Data(newTestDoc()))
}
