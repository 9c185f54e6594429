package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	hash, err := Hash("secret-1")
	require.NoError(t, err)
	require.NotEqual(t, "secret-1", hash)
	require.NoError(t, Compare(hash, "secret-1"))
	require.Error(t, Compare(hash, "secret-2"))
	require.Error(t, Compare("", "secret-1"))
}

func TestValidate(t *testing.T) {
	require.ErrorIs(t, Validate("abc"), ErrTooShort)
	require.NoError(t, Validate("newpass"))
	require.Error(t, Validate(strings.Repeat("x", 73)))
}
