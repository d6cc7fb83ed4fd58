package keys

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyManager(t *testing.T) {
	km := NewManager()

	t.Run("no current key before generation", func(t *testing.T) {
		_, err := km.Current()
		assert.Error(t, err)
	})

	require.NoError(t, km.GenerateKeyPair(2048))

	t.Run("current key has a kid and key material", func(t *testing.T) {
		key, err := km.Current()
		require.NoError(t, err)
		assert.NotEmpty(t, key.KID)
		assert.NotNil(t, key.Private())
		assert.NotNil(t, key.Public())
	})

	t.Run("rejects undersized keys", func(t *testing.T) {
		err := NewManager().GenerateKeyPair(1024)
		assert.Error(t, err)
	})

	t.Run("rotation retires the old key but keeps it verifiable", func(t *testing.T) {
		oldKey, err := km.Current()
		require.NoError(t, err)

		require.NoError(t, km.Rotate(2048))

		newKey, err := km.Current()
		require.NoError(t, err)
		assert.NotEqual(t, oldKey.KID, newKey.KID)

		// the retired public key still resolves for verification
		pub, ok := km.VerificationKey(oldKey.KID)
		require.True(t, ok)
		assert.Equal(t, oldKey.Public(), pub)

		_, ok = km.VerificationKey("no-such-kid")
		assert.False(t, ok)
	})

	t.Run("JWKS carries all keys and no private material", func(t *testing.T) {
		set, err := km.PublicKeySet()
		require.NoError(t, err)
		assert.Equal(t, 2, set.Len())

		raw, err := json.Marshal(set)
		require.NoError(t, err)

		var doc struct {
			Keys []map[string]interface{} `json:"keys"`
		}
		require.NoError(t, json.Unmarshal(raw, &doc))
		require.Len(t, doc.Keys, 2)

		for _, k := range doc.Keys {
			assert.Equal(t, "RSA", k["kty"])
			assert.Equal(t, "sig", k["use"])
			assert.Equal(t, SigningAlgorithm, k["alg"])
			assert.NotEmpty(t, k["kid"])
			assert.NotEmpty(t, k["n"])
			assert.NotEmpty(t, k["e"])
			for _, private := range []string{"d", "p", "q", "dp", "dq", "qi"} {
				assert.NotContains(t, k, private)
			}
		}
	})
}

func TestKeyPersistence(t *testing.T) {
	dir := t.TempDir()
	privatePath := filepath.Join(dir, "private.pem")
	publicPath := filepath.Join(dir, "public.pem")

	km := NewManager()
	require.NoError(t, km.GenerateKeyPair(2048))
	require.NoError(t, km.SavePrivateKey(privatePath))
	require.NoError(t, km.SavePublicKey(publicPath))

	info, err := os.Stat(privatePath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	original, err := km.Current()
	require.NoError(t, err)

	reloaded := NewManager()
	require.NoError(t, reloaded.LoadPrivateKey(privatePath))

	key, err := reloaded.Current()
	require.NoError(t, err)
	assert.Equal(t, original.KID, key.KID)
	assert.True(t, original.Public().Equal(key.Public()))
}
