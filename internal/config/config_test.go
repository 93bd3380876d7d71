package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesSpecConstants(t *testing.T) {
	cfg := Default()
	require.Equal(t, 1000, cfg.PayloadSize)
	require.Equal(t, 200*time.Millisecond, cfg.RTO)
	require.Equal(t, 50*time.Millisecond, cfg.RecvPoll)
	require.Equal(t, 2000*time.Millisecond, cfg.HandshakeTimeout)
	require.Equal(t, 5, cfg.RecvBufferPkts)
	require.Equal(t, 1.0, cfg.InitCwnd)
	require.Equal(t, 64.0, cfg.InitSsthresh)
	require.Equal(t, 3, cfg.DupAckThreshold)
}

func TestLoadWithNoPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadOverlaysPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transport.toml")
	contents := "recv_buffer_pkts = 10\nlisten_addr = \"0.0.0.0:9100\"\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 10, cfg.RecvBufferPkts)
	require.Equal(t, "0.0.0.0:9100", cfg.ListenAddr)
	// Untouched fields keep their defaults.
	require.Equal(t, 1000, cfg.PayloadSize)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/path/transport.toml")
	require.Error(t, err)
}
