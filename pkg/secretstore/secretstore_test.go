package secretstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsReference(t *testing.T) {
	assert.True(t, IsReference("https://bucket.s3.amazonaws.com/secrets/Passphrase/x/550e8400-e29b-41d4-a716-446655440000"))
	assert.True(t, IsReference("mem://secrets/Passphrase/x/550e8400-e29b-41d4-a716-446655440000"))
	assert.False(t, IsReference("my-secret-password"))
	assert.False(t, IsReference("https://example.com/not-a-secret/550e8400-e29b-41d4-a716-446655440000"))
	assert.False(t, IsReference("https://bucket.s3.amazonaws.com/secrets/Passphrase/x/not-a-uuid"))
	assert.False(t, IsReference(42))
}

func TestKindFromSchema(t *testing.T) {
	assert.Equal(t, "Certificate", KindFromSchema("certificates/Certificate/v1"))
	assert.Equal(t, "Passphrase", KindFromSchema("pki/Passphrase/v1.0"))
}

func TestMemoryClient_StoreFetchRoundTrip(t *testing.T) {
	c := NewMemoryClient()
	ref, err := c.Store(context.Background(), "Passphrase", "example-password", []byte("my-secret-password"))
	require.NoError(t, err)
	assert.True(t, IsReference(ref))

	payload, err := c.Fetch(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "my-secret-password", string(payload))
}

func TestMemoryClient_FetchUnknownReference(t *testing.T) {
	c := NewMemoryClient()
	_, err := c.Fetch(context.Background(), "mem://secrets/Passphrase/x/550e8400-e29b-41d4-a716-446655440000")
	require.Error(t, err)
}

func TestEnvelope_SealOpenRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	env, err := NewEnvelope(key)
	require.NoError(t, err)

	ciphertext, err := env.Seal([]byte("my-secret-password"))
	require.NoError(t, err)
	assert.NotEqual(t, []byte("my-secret-password"), ciphertext)

	plaintext, err := env.Open(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "my-secret-password", string(plaintext))
}

func TestEnvelope_InvalidKeySize(t *testing.T) {
	_, err := NewEnvelope([]byte("too-short"))
	require.Error(t, err)
}
