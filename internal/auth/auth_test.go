package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	require.NotEqual(t, "hunter2", hash)

	require.True(t, CheckPassword(hash, "hunter2"))
	require.False(t, CheckPassword(hash, "hunter3"))
}

func TestSessions_IssueLookupRevoke(t *testing.T) {
	t.Parallel()

	s := NewSessions()

	token := s.Issue("alice")
	require.NotEmpty(t, token)

	username, ok := s.Lookup(token)
	require.True(t, ok)
	require.Equal(t, "alice", username)

	s.Revoke(token)
	_, ok = s.Lookup(token)
	require.False(t, ok)

	_, ok = s.Lookup("not-a-token")
	require.False(t, ok)
}
