package lib

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gravitational/trace"
	"github.com/stretchr/testify/require"
)

func TestAPIConfigCheckAndSetDefaults(t *testing.T) {
	cfg := APIConfig{URL: "finance.example.com"}
	require.NoError(t, cfg.CheckAndSetDefaults())
	require.Equal(t, "https://finance.example.com/", cfg.URL)
	require.Equal(t, 15*time.Second, cfg.Timeout)

	cfg = APIConfig{}
	err := cfg.CheckAndSetDefaults()
	require.True(t, trace.IsBadParameter(err), "got %v", err)

	cfg = APIConfig{URL: "http://localhost:8080", Timeout: -time.Second}
	err = cfg.CheckAndSetDefaults()
	require.True(t, trace.IsBadParameter(err), "got %v", err)
}

func TestResolveSecret(t *testing.T) {
	value, err := ResolveSecret("plain")
	require.NoError(t, err)
	require.Equal(t, "plain", value)

	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte("  s3cret\n"), 0600))
	value, err = ResolveSecret(path)
	require.NoError(t, err)
	require.Equal(t, "s3cret", value)

	require.NoError(t, os.WriteFile(path, []byte("\n"), 0600))
	_, err = ResolveSecret(path)
	require.True(t, trace.IsBadParameter(err), "got %v", err)

	_, err = ResolveSecret(filepath.Join(t.TempDir(), "missing"))
	require.True(t, trace.IsBadParameter(err), "got %v", err)
}
