package afsk

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, text string) string {
	t.Helper()

	var path = filepath.Join(t.TempDir(), "afsk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0600))

	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	var cfg = DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 48000, cfg.Audio.SampleRate)
	assert.Equal(t, 300, cfg.Modem.Baud)
	assert.Equal(t, DefaultFramerConfig(), cfg.FramerConfig())
}

func TestLoadConfig(t *testing.T) {
	var path = writeConfig(t, `
audio:
  device: "USB"
  sample_rate: 44100
modem:
  baud: 1200
  exact_bins: true
framing:
  end_timeout: 2s
  restart_on_preamble: true
kiss:
  tcp_port: 8001
transmit:
  callsign: KE0SGQ
  ptt:
    method: gpiod
    device: gpiochip0
    line: 17
`)

	var cfg, err = LoadConfig(path, true)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "USB", cfg.Audio.Device)
	assert.Equal(t, 44100, cfg.Audio.SampleRate)
	assert.Equal(t, 1200, cfg.Modem.Baud)
	assert.True(t, cfg.Modem.ExactBins)
	assert.Equal(t, 2*time.Second, cfg.Framing.EndTimeout)
	assert.True(t, cfg.Framing.RestartOnPreamble)
	assert.Equal(t, 8001, cfg.KISS.TCPPort)
	assert.Equal(t, PTTConfig{Method: PTT_METHOD_GPIOD, Device: "gpiochip0", Line: 17}, cfg.Transmit.PTT)

	// Untouched settings keep their defaults.
	assert.InDelta(t, DEFAULT_MARK_FREQ, cfg.Modem.MarkFreq, 0)
	assert.Equal(t, DefaultPreamble, cfg.Framing.Preamble)
	assert.True(t, cfg.Framing.CompleteLastChar)

	var d = cfg.ToneDetector()
	assert.Equal(t, 44100, d.SampleRate)
	assert.True(t, d.ExactBins)

	var tc = cfg.TransmitterConfig()
	assert.Equal(t, "KE0SGQ", tc.Callsign)
	assert.Equal(t, 1200, tc.Baud)
}

func TestLoadConfigMissingFile(t *testing.T) {
	var missing = filepath.Join(t.TempDir(), "nope.yaml")

	var cfg, err = LoadConfig(missing, false)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = LoadConfig(missing, true)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadConfigBadYAML(t *testing.T) {
	var _, err = LoadConfig(writeConfig(t, "modem: [nonsense"), true)
	require.ErrorIs(t, err, ErrConfig)
}

func TestValidate(t *testing.T) {
	var cases = map[string]func(c *Config){
		"sample rate":  func(c *Config) { c.Audio.SampleRate = 1000 },
		"buffer":       func(c *Config) { c.Audio.FramesPerBuffer = 0 },
		"baud":         func(c *Config) { c.Modem.Baud = 0 },
		"fast baud":    func(c *Config) { c.Modem.Baud = 96000 },
		"nyquist":      func(c *Config) { c.Modem.SpaceFreq = 30000 },
		"same tones":   func(c *Config) { c.Modem.SpaceFreq = c.Modem.MarkFreq },
		"preamble":     func(c *Config) { c.Framing.Preamble = "10a" },
		"end marker":   func(c *Config) { c.Framing.EndMarker = "" },
		"timeout":      func(c *Config) { c.Framing.EndTimeout = 0 },
		"queue":        func(c *Config) { c.Queues.AudioChunks = 0 },
		"poll":         func(c *Config) { c.Queues.PollInterval = -time.Second },
		"log file+dir": func(c *Config) { c.Log.File = "a.log"; c.Log.Dir = "logs" },
		"kiss port":    func(c *Config) { c.KISS.TCPPort = 70000 },
		"amplitude":    func(c *Config) { c.Transmit.Amplitude = 150 },
		"unknown ptt":  func(c *Config) { c.Transmit.PTT.Method = "cm108" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			var cfg = DefaultConfig()
			mutate(cfg)

			require.ErrorIs(t, cfg.Validate(), ErrConfig)
		})
	}
}
