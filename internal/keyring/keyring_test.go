package keyring_test

import (
	"testing"

	"achieveit/internal/keyring"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gokeyring "github.com/zalando/go-keyring"
)

func TestKeyring_SetGetDelete(t *testing.T) {
	gokeyring.MockInit()

	require.NoError(t, keyring.Set(keyring.GeminiAPIKey, "key-123"))

	val, err := keyring.Get(keyring.GeminiAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "key-123", val)

	require.NoError(t, keyring.Delete(keyring.GeminiAPIKey))

	_, err = keyring.Get(keyring.GeminiAPIKey)
	assert.ErrorIs(t, err, keyring.ErrNotFound)
}

func TestKeyring_SetEmpty(t *testing.T) {
	gokeyring.MockInit()
	assert.Error(t, keyring.Set(keyring.SessionSecret, ""))
}

func TestKeyring_DeleteMissing(t *testing.T) {
	gokeyring.MockInit()
	assert.ErrorIs(t, keyring.Delete(keyring.DatabaseURL), keyring.ErrNotFound)
}
