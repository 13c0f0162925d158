package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "etheraudio.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Mode)
	assert.Equal(t, 6502, cfg.Port)
	assert.Equal(t, 10*time.Millisecond, cfg.Playback.PollInterval)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
mode: 2
port: 5000
destinations:
  - 192.168.1.255:5000
  - 10.0.0.7:5000
playback:
  start_delay: 40ms
  fill_partial: true
pacing:
  fine_gain: 0.02
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Mode)
	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, []string{"192.168.1.255:5000", "10.0.0.7:5000"}, cfg.Destinations)
	assert.Equal(t, 40*time.Millisecond, cfg.Playback.StartDelay)
	assert.True(t, cfg.Playback.FillPartial)
	assert.Equal(t, 0.02, cfg.Pacing.FineGain)
	assert.Equal(t, 0.25, cfg.Pacing.CoarseGain, "unset keys keep defaults")
	assert.NoError(t, cfg.ValidateSend())
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "mode: 1\nbogus: true\n")
	_, err := Load(path)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ETHERAUDIO_MODE", "3")
	t.Setenv("ETHERAUDIO_PORT", "4321")
	t.Setenv("ETHERAUDIO_DESTINATIONS", "a:1, b:2 ,")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Mode)
	assert.Equal(t, 4321, cfg.Port)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Destinations)
}

func TestEnvBadNumber(t *testing.T) {
	t.Setenv("ETHERAUDIO_PORT", "lots")
	_, err := Load("")
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Mode = 9
	cfg.Port = 0
	cfg.Destinations = []string{"nope"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.Contains(t, err.Error(), "unknown audio configuration mode")
	assert.Contains(t, err.Error(), "port 0")
	assert.Contains(t, err.Error(), "invalid destination")
}

func TestValidateSendNeedsDestination(t *testing.T) {
	cfg := Default()
	assert.True(t, errors.Is(cfg.ValidateSend(), ErrConfiguration))
}

func TestFormat(t *testing.T) {
	cfg := Default()
	f, err := cfg.Format()
	require.NoError(t, err)
	assert.Equal(t, 256, f.PacketSize)

	cfg.Mode = 0
	_, err = cfg.Format()
	assert.True(t, errors.Is(err, ErrConfiguration))
}
