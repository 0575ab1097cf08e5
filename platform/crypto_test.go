package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHexKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestSealOpenRoundTrip(t *testing.T) {
	sealer, err := NewKeySealer(testHexKey)
	require.NoError(t, err)

	cipher, err := sealer.Seal("sk-very-secret")
	require.NoError(t, err)
	assert.NotContains(t, cipher, "sk-very-secret")

	plain, err := sealer.Open(cipher)
	require.NoError(t, err)
	assert.Equal(t, "sk-very-secret", plain)
}

func TestSealProducesFreshNonce(t *testing.T) {
	sealer, err := NewKeySealer(testHexKey)
	require.NoError(t, err)

	first, err := sealer.Seal("sk-very-secret")
	require.NoError(t, err)
	second, err := sealer.Seal("sk-very-secret")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestNewKeySealerRejectsBadKeys(t *testing.T) {
	for _, key := range []string{"", "abcd", "zz", testHexKey + "00"} {
		_, err := NewKeySealer(key)
		assert.ErrorIs(t, err, ErrBadEncryptionKey, "key %q", key)
	}
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	sealer, err := NewKeySealer(testHexKey)
	require.NoError(t, err)

	_, err = sealer.Open("not base64 at all ***")
	assert.Error(t, err)

	_, err = sealer.Open("c2hvcnQ=")
	assert.Error(t, err)
}

func TestOpenWithWrongKey(t *testing.T) {
	sealer, err := NewKeySealer(testHexKey)
	require.NoError(t, err)
	other, err := NewKeySealer("ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
	require.NoError(t, err)

	cipher, err := sealer.Seal("sk-very-secret")
	require.NoError(t, err)
	_, err = other.Open(cipher)
	assert.Error(t, err)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "", MaskKey(""))
	assert.Equal(t, "****", MaskKey("short"))
	assert.Equal(t, "****1234", MaskKey("sk-live-abcdef1234"))
}
