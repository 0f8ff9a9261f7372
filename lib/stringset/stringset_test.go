package stringset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringSet(t *testing.T) {
	set := New("redis", "bolt", "diskv", "bolt")

	require.Len(t, set, 3)
	require.True(t, set.Contains("bolt"))
	require.False(t, set.Contains("BOLT"))
	require.True(t, set.ContainsFold("BOLT"))
	require.False(t, set.Contains("memory"))
	require.Equal(t, []string{"bolt", "diskv", "redis"}, set.Sorted())
	require.Equal(t, "bolt, diskv, redis", set.String())
	require.Empty(t, New().Sorted())
}
