package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("password123")
	require.NoError(t, err)
	require.NotEqual(t, "password123", hash)

	require.True(t, VerifyPassword("password123", hash))
	require.False(t, VerifyPassword("wrong", hash))
}

func TestContentHash(t *testing.T) {
	a := ContentHash([]byte("same bytes"))
	b := ContentHash([]byte("same bytes"))
	c := ContentHash([]byte("other bytes"))

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Len(t, a, 64)
}

func TestHashReaderMatchesContentHash(t *testing.T) {
	sum, err := HashReader(strings.NewReader("same bytes"))
	require.NoError(t, err)
	require.Equal(t, ContentHash([]byte("same bytes")), sum)
}

func TestGenerateRandomString(t *testing.T) {
	a, err := GenerateRandomString(16)
	require.NoError(t, err)
	b, err := GenerateRandomString(16)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
