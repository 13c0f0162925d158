package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chg95211/msx-ethernet-audio/internal/audio"
	"github.com/chg95211/msx-ethernet-audio/internal/config"
	"github.com/chg95211/msx-ethernet-audio/internal/transport"
)

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("ETHERAUDIO_MODE", "2")
	t.Setenv("ETHERAUDIO_PORT", "5000")
	t.Setenv("ETHERAUDIO_HTTP_ADDR", "127.0.0.1:8080")

	a := &app{}
	root := newRootCmd(a)
	play, _, err := root.Find([]string{"play"})
	require.NoError(t, err)
	require.NoError(t, play.ParseFlags([]string{"-m", "3", "--multicast", "239.1.2.3"}))
	require.NoError(t, a.setup(play))

	assert.Equal(t, 3, a.cfg.Mode)
	assert.Equal(t, 5000, a.cfg.Port)
	assert.Equal(t, "239.1.2.3", a.cfg.MulticastGroup)
	assert.Equal(t, "127.0.0.1:8080", a.cfg.HTTPAddr)
	assert.NotNil(t, a.logger)
}

func TestDestinationFlagReplacesConfigured(t *testing.T) {
	t.Setenv("ETHERAUDIO_DESTINATIONS", "10.0.0.1:6502")

	a := &app{}
	root := newRootCmd(a)
	send, _, err := root.Find([]string{"send"})
	require.NoError(t, err)
	require.NoError(t, send.ParseFlags([]string{"-d", "127.0.0.1:4000", "-d", "127.0.0.1:4001"}))
	require.NoError(t, a.setup(send))

	assert.Equal(t, []string{"127.0.0.1:4000", "127.0.0.1:4001"}, a.cfg.Destinations)
	assert.NoError(t, a.cfg.ValidateSend())
}

func TestBadDestinationIsConfigurationError(t *testing.T) {
	a := &app{cfg: config.Default(), logger: zap.NewNop()}
	a.cfg.Destinations = []string{"127.0.0.1:99999"}
	f, err := audio.ModeFormat(1)
	require.NoError(t, err)

	fan, closeFan, err := a.openFanout(f)
	require.Error(t, err)
	assert.Nil(t, fan)
	assert.Nil(t, closeFan)
	assert.True(t, errors.Is(err, config.ErrConfiguration))
	assert.True(t, errors.Is(err, transport.ErrBadDestination))
}
