package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestBindFlagsDefaultsMatchNew(t *testing.T) {
	c := New()
	fs := pflag.NewFlagSet("crawlerd", pflag.ContinueOnError)
	c.BindFlags(fs)
	require.NoError(t, fs.Parse(nil))

	require.Equal(t, ":0", c.Engine.ListenAddr)
	require.Len(t, c.Engine.BootstrapNodes, 3)
	require.False(t, c.Engine.EnableUTP)
	require.Equal(t, "./torrents", c.SinkDir)
	require.Equal(t, ":9191", c.MetricsAddr)
}

func TestBindFlagsOverride(t *testing.T) {
	c := New()
	fs := pflag.NewFlagSet("crawlerd", pflag.ContinueOnError)
	c.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--listen=0.0.0.0:6881", "--enable-utp", "--sink-dir=/tmp/x"}))

	require.Equal(t, "0.0.0.0:6881", c.Engine.ListenAddr)
	require.True(t, c.Engine.EnableUTP)
	require.Equal(t, "/tmp/x", c.SinkDir)
}

func TestValidateRejectsZeroDigInterval(t *testing.T) {
	c := New()
	c.Engine.DigInterval = 0
	require.Error(t, c.Validate())
}
