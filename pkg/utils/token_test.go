package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyToken(t *testing.T) {
	hash, err := HashToken("super-secret-admin-token")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	ok, err := VerifyToken("super-secret-admin-token", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyToken("wrong-token", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashTokenUniqueSalts(t *testing.T) {
	h1, err := HashToken("same-token")
	require.NoError(t, err)
	h2, err := HashToken("same-token")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestVerifyTokenMalformedHash(t *testing.T) {
	_, err := VerifyToken("token", "not-a-hash")
	assert.Error(t, err)

	_, err = VerifyToken("token", "$bcrypt$v=19$m=65536,t=3,p=2$abc$def")
	assert.Error(t, err)
}
