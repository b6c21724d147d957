package tsnetutil

import (
	"context"
	"testing"

	"github.com/minidoracat/mcp-feedback-enhanced/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenAddr_PlainTCP(t *testing.T) {
	ln, err := ListenAddr("127.0.0.1:0", config.TailscaleConfig{})
	require.NoError(t, err)
	defer ln.Close()

	assert.Nil(t, ln.TS)
	assert.Nil(t, ln.LC)
	assert.NotZero(t, ln.Port())

	url, err := ln.TailnetURL(context.Background())
	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestListenAddr_PortInUse(t *testing.T) {
	first, err := ListenAddr("127.0.0.1:0", config.TailscaleConfig{})
	require.NoError(t, err)
	defer first.Close()

	_, err = ListenAddr(first.Addr().String(), config.TailscaleConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tcp listen")
}
