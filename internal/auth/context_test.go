package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserIDRoundTrip(t *testing.T) {
	_, ok := GetUserID(context.Background())
	require.False(t, ok)

	_, ok = GetUserID(SetUserID(context.Background(), ""))
	require.False(t, ok)

	id, ok := GetUserID(SetUserID(context.Background(), "u1"))
	require.True(t, ok)
	require.Equal(t, "u1", id)
}
