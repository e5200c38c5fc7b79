package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptedStoreRoundtripsThroughInner(t *testing.T) {
	inner := NewFileStore(t.TempDir())
	store := NewEncryptedStore(inner, "machine-identifier")

	require.NoError(t, store.SetKey("termscp", "s3cr3t"))

	plain, err := store.GetKey("termscp")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", plain)

	raw, err := inner.GetKey("termscp")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cr3t", raw)
}

func TestEncryptedStoreDeleteDelegatesToInner(t *testing.T) {
	inner := NewFileStore(t.TempDir())
	store := NewEncryptedStore(inner, "machine-identifier")
	require.NoError(t, store.SetKey("termscp", "s3cr3t"))
	require.NoError(t, store.DeleteKey("termscp"))
	_, err := store.GetKey("termscp")
	assert.Equal(t, ErrKindNoSuchKey, KindOf(err))
}
