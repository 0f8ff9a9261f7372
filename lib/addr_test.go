package lib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddrToURL(t *testing.T) {
	url, err := AddrToURL("foo")
	assert.NoError(t, err)
	assert.Equal(t, "https://foo/", url.String())

	url, err = AddrToURL("foo:443")
	assert.NoError(t, err)
	assert.Equal(t, "https://foo/", url.String())

	url, err = AddrToURL("http://foo:3080/api/v1")
	assert.NoError(t, err)
	assert.Equal(t, "http://foo:3080/api/v1/", url.String())

	url, err = AddrToURL("https://finance.example.com/api/")
	assert.NoError(t, err)
	assert.Equal(t, "https://finance.example.com/api/", url.String())

	_, err = AddrToURL("  ")
	require.Error(t, err)
}
