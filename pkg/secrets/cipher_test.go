package secrets

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCipherRoundTrip(t *testing.T) {
	c, err := NewCipher("test-passphrase")
	require.NoError(t, err)

	token, err := c.Encrypt("FPC-0042")
	require.NoError(t, err)
	require.NotEqual(t, "FPC-0042", token)

	plain, err := c.Decrypt(token)
	require.NoError(t, err)
	require.Equal(t, "FPC-0042", plain)
}

func TestCipherUniqueNonces(t *testing.T) {
	c, err := NewCipher("test-passphrase")
	require.NoError(t, err)

	first, err := c.Encrypt("FPC-0042")
	require.NoError(t, err)
	second, err := c.Encrypt("FPC-0042")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestCipherRejectsEmptyKey(t *testing.T) {
	_, err := NewCipher("")
	require.Error(t, err)
}

func TestCipherRejectsTamperedToken(t *testing.T) {
	c, err := NewCipher("test-passphrase")
	require.NoError(t, err)

	_, err = c.Decrypt("bm90LWEtcmVhbC10b2tlbg")
	require.Error(t, err)
}

func TestDigestStable(t *testing.T) {
	require.Equal(t, Digest("FPC-0042"), Digest("FPC-0042"))
	require.NotEqual(t, Digest("FPC-0042"), Digest("FPC-0043"))
	require.Len(t, Digest("FPC-0042"), 64)
}

func TestRandomPasswordGenerator(t *testing.T) {
	gen := RandomPasswordGenerator{}
	first, err := gen.Generate()
	require.NoError(t, err)
	second, err := gen.Generate()
	require.NoError(t, err)
	require.NotEmpty(t, first)
	require.NotEqual(t, first, second)
}
