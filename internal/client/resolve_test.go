package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreferIPv4(t *testing.T) {
	t.Parallel()

	ip, err := preferIPv4([]string{"::1", "127.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", ip)

	ip, err = preferIPv4([]string{"::1"})
	require.NoError(t, err)
	assert.Equal(t, "::1", ip)

	_, err = preferIPv4(nil)
	assert.Error(t, err)
}

func TestLookupHostLiteral(t *testing.T) {
	t.Parallel()

	ip, err := lookupHost(context.Background(), "10.1.2.3")
	require.NoError(t, err)
	assert.Equal(t, "10.1.2.3", ip)

	ip, err = lookupHost(context.Background(), "::1")
	require.NoError(t, err)
	assert.Equal(t, "::1", ip)
}
