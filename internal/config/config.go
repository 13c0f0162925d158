package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chg95211/msx-ethernet-audio/internal/audio"
	"github.com/chg95211/msx-ethernet-audio/internal/pacing"
	"github.com/chg95211/msx-ethernet-audio/internal/transport"
)

// ErrConfiguration wraps every invalid setting.
var ErrConfiguration = errors.New("invalid configuration")

// DefaultPort is the receive port used when none is configured.
const DefaultPort = 6502

type Config struct {
	Mode           int      `yaml:"mode"`
	Device         string   `yaml:"device"`
	Port           int      `yaml:"port"`
	MulticastGroup string   `yaml:"multicast_group"`
	Interface      string   `yaml:"interface"`
	Destinations   []string `yaml:"destinations"`
	HTTPAddr       string   `yaml:"http_addr"`
	GRPCAddr       string   `yaml:"grpc_addr"`
	APIToken       string   `yaml:"api_token"`
	Verbose        bool     `yaml:"verbose"`

	Playback PlaybackConfig `yaml:"playback"`
	Send     SendConfig     `yaml:"send"`
	Pacing   PacingConfig   `yaml:"pacing"`
}

type PlaybackConfig struct {
	StartDelay   time.Duration `yaml:"start_delay"`
	PollInterval time.Duration `yaml:"poll_interval"`
	FillPartial  bool          `yaml:"fill_partial"`
}

type SendConfig struct {
	ULaw            bool `yaml:"ulaw"`
	Loop            bool `yaml:"loop"`
	ContinueOnError bool `yaml:"continue_on_error"`
}

type PacingConfig struct {
	CoarseGain      float64 `yaml:"coarse_gain"`
	FineGain        float64 `yaml:"fine_gain"`
	CoarseThreshold float64 `yaml:"coarse_threshold"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Mode:   audio.DefaultMode,
		Device: "default",
		Port:   DefaultPort,
		Playback: PlaybackConfig{
			PollInterval: 10 * time.Millisecond,
		},
		Pacing: PacingConfig{
			CoarseGain:      pacing.DefaultCoarseGain,
			FineGain:        pacing.DefaultFineGain,
			CoarseThreshold: pacing.DefaultCoarseThreshold,
		},
	}
}

// Load starts from Default, overlays the YAML file at path when path is not
// empty, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: open config file: %v", ErrConfiguration, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrConfiguration, path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error
	c.Mode = getEnvInt("ETHERAUDIO_MODE", c.Mode, &errs)
	c.Port = getEnvInt("ETHERAUDIO_PORT", c.Port, &errs)
	c.Device = getEnv("ETHERAUDIO_DEVICE", c.Device)
	c.MulticastGroup = getEnv("ETHERAUDIO_MULTICAST", c.MulticastGroup)
	c.HTTPAddr = getEnv("ETHERAUDIO_HTTP_ADDR", c.HTTPAddr)
	c.GRPCAddr = getEnv("ETHERAUDIO_GRPC_ADDR", c.GRPCAddr)
	c.APIToken = getEnv("ETHERAUDIO_API_TOKEN", c.APIToken)
	if v := getEnv("ETHERAUDIO_DESTINATIONS", ""); v != "" {
		c.Destinations = splitList(v)
	}
	return errors.Join(errs...)
}

// Format returns the audio preset selected by Mode.
func (c *Config) Format() (audio.Format, error) {
	f, err := audio.ModeFormat(c.Mode)
	if err != nil {
		return audio.Format{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return f, nil
}

// PacingFor builds controller settings for format f.
func (c *Config) PacingFor(f audio.Format) pacing.Config {
	return pacing.Config{
		BytesPerSecond:  f.BytesPerSecond(),
		PacketSize:      f.PacketSize,
		CoarseGain:      c.Pacing.CoarseGain,
		FineGain:        c.Pacing.FineGain,
		CoarseThreshold: c.Pacing.CoarseThreshold,
	}
}

// Validate checks the settings every command shares.
func (c *Config) Validate() error {
	var errs []error
	f, err := audio.ModeFormat(c.Mode)
	if err != nil {
		errs = append(errs, err)
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range 1-65535", c.Port))
	}
	if c.Playback.StartDelay < 0 {
		errs = append(errs, fmt.Errorf("playback start delay must not be negative"))
	}
	if c.Playback.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("playback poll interval must not be negative"))
	}
	if err == nil {
		if perr := c.PacingFor(f).Validate(); perr != nil {
			errs = append(errs, perr)
		}
	}
	for _, d := range c.Destinations {
		if _, derr := transport.ParseDestination(d); derr != nil {
			errs = append(errs, derr)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// ValidateSend additionally requires at least one destination.
func (c *Config) ValidateSend() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(c.Destinations) == 0 {
		return fmt.Errorf("%w: at least one destination is required", ErrConfiguration)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%w: %s=%q is not a number", ErrConfiguration, key, v))
		return fallback
	}
	return n
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
