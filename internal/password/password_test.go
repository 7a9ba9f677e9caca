package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	encoded, err := Hash("supersecret")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(encoded, "$argon2id$"))

	require.True(t, Verify("supersecret", encoded))
	require.False(t, Verify("wrong-password", encoded))
}

func TestHashIsSalted(t *testing.T) {
	first, err := Hash("supersecret")
	require.NoError(t, err)
	second, err := Hash("supersecret")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestVerifyRejectsMalformedEncoding(t *testing.T) {
	require.False(t, Verify("supersecret", "not-an-encoded-hash"))
	require.False(t, Verify("supersecret", ""))
}
