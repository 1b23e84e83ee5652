package main

import (
	"net/netip"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-sctp/server"
)

func bound(t *testing.T, args ...string) *viper.Viper {
	t.Helper()
	fs := newFlags()
	require.NoError(t, fs.Parse(args))
	v := viper.New()
	require.NoError(t, v.BindPFlags(fs))
	return v
}

func TestConfigDefaults(t *testing.T) {
	cfg, err := configFrom(bound(t))
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddrPort("0.0.0.0:54321"), cfg.ListenAddr())
	assert.True(t, cfg.ReuseAddr)
	assert.Equal(t, server.DefaultConfig().Tuning, cfg.Tuning)
}

func TestConfigFlags(t *testing.T) {
	cfg, err := configFrom(bound(t, "--port=3868", "--bind-extra=10.0.0.2,10.0.1.2", "--min-message-size=1"))
	require.NoError(t, err)
	assert.Equal(t, uint16(3868), cfg.Port)
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("10.0.0.2"), netip.MustParseAddr("10.0.1.2")}, cfg.ExtraAddresses)
	assert.Equal(t, 1, cfg.MinMessageSize)
}

func TestConfigRejectsBadAddress(t *testing.T) {
	_, err := configFrom(bound(t, "--address=nowhere"))
	assert.Error(t, err)
	_, err = configFrom(bound(t, "--bind-extra=::1"))
	assert.Error(t, err)
}
