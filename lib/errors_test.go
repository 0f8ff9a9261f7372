package lib

import (
	"context"
	"testing"

	"github.com/gravitational/trace"
	"github.com/stretchr/testify/require"
)

func TestIsCanceled(t *testing.T) {
	require.True(t, IsCanceled(context.Canceled))
	require.True(t, IsCanceled(trace.Wrap(context.Canceled)))
	require.False(t, IsCanceled(context.DeadlineExceeded))
	require.False(t, IsCanceled(nil))
}

func TestIsDeadline(t *testing.T) {
	require.True(t, IsDeadline(context.DeadlineExceeded))
	require.True(t, IsDeadline(trace.Wrap(context.DeadlineExceeded)))
	require.False(t, IsDeadline(context.Canceled))
	require.False(t, IsDeadline(trace.BadParameter("nope")))
}
