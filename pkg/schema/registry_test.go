package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_CompilesBaseSchemas(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)
	assert.NotNil(t, reg.RootSchema())
	assert.NotNil(t, reg.MetadataSchema("metadata/Document/v1"))
	assert.NotNil(t, reg.MetadataSchema("metadata/Control/v1"))
	assert.Nil(t, reg.MetadataSchema("metadata/Unknown/v1"))
}

func TestRegistry_LookupUnregisteredKind(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	_, ok := reg.Lookup("certificates/Certificate/v1.0")
	assert.False(t, ok)
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	dataSchema := map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"value"},
	}
	require.NoError(t, reg.RegisterDataSchema("certificates/Certificate", "1.0", dataSchema))

	s, ok := reg.Lookup("certificates/Certificate/v1.2")
	require.True(t, ok)
	assert.NotNil(t, s)

	// Different major version is not a match.
	_, ok = reg.Lookup("certificates/Certificate/v2.0")
	assert.False(t, ok)
}

func TestRegistry_PrefersHighestRegisteredMinorWithinMajor(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	schemaV1_0 := map[string]interface{}{"type": "object", "required": []interface{}{"old"}}
	schemaV1_1 := map[string]interface{}{"type": "object", "required": []interface{}{"new"}}
	require.NoError(t, reg.RegisterDataSchema("pki/Passphrase", "1.0", schemaV1_0))
	require.NoError(t, reg.RegisterDataSchema("pki/Passphrase", "1.1", schemaV1_1))

	s, ok := reg.Lookup("pki/Passphrase/v1.0")
	require.True(t, ok)

	// The highest registered minor within the major wins, so v1.1 (requiring
	// "new") is enforced, not v1.0 (requiring "old").
	err = s.Validate(map[string]interface{}{"old": "x"})
	assert.Error(t, err)
	err = s.Validate(map[string]interface{}{"new": "x"})
	assert.NoError(t, err)
}
