package afsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Read configuration for the receiver and the tools.
 *
 * Description:	Everything has a sensible default matching the KB2040
 *		transmitter, so the configuration file is optional.
 *		The file is YAML, for example:
 *
 *			audio:
 *			  device: "USB Audio"
 *			  sample_rate: 48000
 *			modem:
 *			  baud: 300
 *			framing:
 *			  end_timeout: 5s
 *			log:
 *			  dir: /var/log/afsk
 *
 *		Command line options are applied on top afterwards.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const DEFAULT_CONFIG_FILE = "samoyed-afsk.yaml"

const DEFAULT_SAMPLES_PER_SEC = 48000
const MIN_SAMPLES_PER_SEC = 8000
const MAX_SAMPLES_PER_SEC = 192000

const DEFAULT_BAUD = 300
const DEFAULT_MARK_FREQ = 1200
const DEFAULT_SPACE_FREQ = 2200

var ErrConfig = errors.New("invalid configuration")

type AudioConfig struct {
	Device          string  `yaml:"device"`        // Input device index or name prefix.  Empty for default.
	OutputDevice    string  `yaml:"output_device"` // For transmitting.
	Input           string  `yaml:"input"`         // "" for the sound card, "-" for stdin, or a .wav file.
	SampleRate      int     `yaml:"sample_rate"`
	FramesPerBuffer int     `yaml:"frames_per_buffer"`
	Gain            float64 `yaml:"gain"`
	StatsInterval   int     `yaml:"stats_interval"` // Seconds.  0 to disable.
}

type ModemConfig struct {
	Baud      int     `yaml:"baud"`
	MarkFreq  float64 `yaml:"mark_freq"`
	SpaceFreq float64 `yaml:"space_freq"`
	ExactBins bool    `yaml:"exact_bins"`
}

type FramingConfig struct {
	Preamble          string        `yaml:"preamble"`
	EndMarker         string        `yaml:"end_marker"`
	EndTimeout        time.Duration `yaml:"end_timeout"`
	RestartOnPreamble bool          `yaml:"restart_on_preamble"`
	CompleteLastChar  bool          `yaml:"complete_last_char"`
}

type QueueConfig struct {
	AudioChunks  int           `yaml:"audio_chunks"`
	Messages     int           `yaml:"messages"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type LogConfig struct {
	Level           string `yaml:"level"`
	File            string `yaml:"file"` // Single data log file.
	Dir             string `yaml:"dir"`  // Daily data log files.
	TimestampFormat string `yaml:"timestamp_format"`
	Diagnostics     bool   `yaml:"diagnostics"` // Log every bit with tone powers.
}

type KISSConfig struct {
	TCPPort   int    `yaml:"tcp_port"` // 0 to disable.
	DNSSD     bool   `yaml:"dns_sd"`
	DNSSDName string `yaml:"dns_sd_name"`
	PTY       bool   `yaml:"pty"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"` // e.g. tcp://localhost:1883.  Empty to disable.
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"` // e.g. :9110.  Empty to disable.
}

type PTTConfig struct {
	Method string `yaml:"method"` // none, serial-rts, serial-dtr, gpiod
	Device string `yaml:"device"` // Serial port or GPIO chip.
	Line   int    `yaml:"line"`   // GPIO line offset.
	Invert bool   `yaml:"invert"`
}

type TransmitConfig struct {
	Callsign  string        `yaml:"callsign"`
	Interval  time.Duration `yaml:"interval"`
	TXDelay   time.Duration `yaml:"txdelay"`
	TXTail    time.Duration `yaml:"txtail"`
	Amplitude int           `yaml:"amplitude"` // Percent of full scale.
	PTT       PTTConfig     `yaml:"ptt"`
}

type Config struct {
	Audio    AudioConfig    `yaml:"audio"`
	Modem    ModemConfig    `yaml:"modem"`
	Framing  FramingConfig  `yaml:"framing"`
	Queues   QueueConfig    `yaml:"queues"`
	Log      LogConfig      `yaml:"log"`
	KISS     KISSConfig     `yaml:"kiss"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Transmit TransmitConfig `yaml:"transmit"`
}

func DefaultConfig() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate:      DEFAULT_SAMPLES_PER_SEC,
			FramesPerBuffer: 256,
			Gain:            1.0,
			StatsInterval:   0,
		},
		Modem: ModemConfig{
			Baud:      DEFAULT_BAUD,
			MarkFreq:  DEFAULT_MARK_FREQ,
			SpaceFreq: DEFAULT_SPACE_FREQ,
		},
		Framing: FramingConfig{
			Preamble:         DefaultPreamble,
			EndMarker:        DefaultEndMarker,
			EndTimeout:       DefaultEndTimeout,
			CompleteLastChar: true,
		},
		Queues: QueueConfig{
			AudioChunks:  10,
			Messages:     10,
			PollInterval: time.Second,
		},
		Log: LogConfig{
			Level:           "info",
			TimestampFormat: "%Y-%m-%d %H:%M:%S",
		},
		MQTT: MQTTConfig{
			Topic:    "afsk/rx",
			ClientID: "samoyed-afsk",
		},
		Transmit: TransmitConfig{
			Interval:  5 * time.Minute,
			TXDelay:   100 * time.Millisecond,
			TXTail:    100 * time.Millisecond,
			Amplitude: 50,
			PTT:       PTTConfig{Method: PTT_METHOD_NONE},
		},
	}
}

/*------------------------------------------------------------------
 *
 * Name:        LoadConfig
 *
 * Purpose:     Read the YAML file on top of the defaults.
 *
 * Inputs:	path	- File name.  If it doesn't exist and
 *			  mustExist is false, defaults are returned.
 *
 *----------------------------------------------------------------*/

func LoadConfig(path string, mustExist bool) (*Config, error) {
	var cfg = DefaultConfig()

	var data, readErr = os.ReadFile(path)
	if readErr != nil {
		if errors.Is(readErr, os.ErrNotExist) && !mustExist {
			return cfg, nil
		}

		return nil, fmt.Errorf("reading config file: %w", readErr)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfig, path, err)
	}

	return cfg, nil
}

// Validate checks ranges and that the bit patterns parse.
func (c *Config) Validate() error {
	var fail = func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
	}

	if c.Audio.SampleRate < MIN_SAMPLES_PER_SEC || c.Audio.SampleRate > MAX_SAMPLES_PER_SEC {
		return fail("sample rate %d out of range %d..%d", c.Audio.SampleRate, MIN_SAMPLES_PER_SEC, MAX_SAMPLES_PER_SEC)
	}

	if c.Audio.FramesPerBuffer < 1 {
		return fail("frames per buffer must be at least 1")
	}

	if c.Modem.Baud < 1 || c.Modem.Baud > c.Audio.SampleRate {
		return fail("baud %d must be between 1 and the sample rate", c.Modem.Baud)
	}

	var nyquist = float64(c.Audio.SampleRate) / 2
	if c.Modem.MarkFreq <= 0 || c.Modem.MarkFreq >= nyquist || c.Modem.SpaceFreq <= 0 || c.Modem.SpaceFreq >= nyquist {
		return fail("tone frequencies must be between 0 and %.0f Hz", nyquist)
	}

	if c.Modem.MarkFreq == c.Modem.SpaceFreq {
		return fail("mark and space frequencies must differ")
	}

	if _, err := ParseBits(c.Framing.Preamble); err != nil {
		return fail("preamble: %s", err)
	}

	if _, err := ParseBits(c.Framing.EndMarker); err != nil {
		return fail("end marker: %s", err)
	}

	if c.Framing.EndTimeout <= 0 {
		return fail("end timeout must be positive")
	}

	if c.Queues.AudioChunks < 1 || c.Queues.Messages < 1 {
		return fail("queue capacities must be at least 1")
	}

	if c.Queues.PollInterval <= 0 {
		return fail("poll interval must be positive")
	}

	if c.Log.File != "" && c.Log.Dir != "" {
		return fail("log file and log dir can't be used together.  Pick one or the other")
	}

	if c.KISS.TCPPort < 0 || c.KISS.TCPPort > 65535 {
		return fail("KISS TCP port %d out of range", c.KISS.TCPPort)
	}

	if c.Transmit.Amplitude < 0 || c.Transmit.Amplitude > 100 {
		return fail("transmit amplitude must be 0 to 100 percent")
	}

	switch c.Transmit.PTT.Method {
	case PTT_METHOD_NONE, PTT_METHOD_SERIAL_RTS, PTT_METHOD_SERIAL_DTR, PTT_METHOD_GPIOD:
	default:
		return fail("unknown PTT method %q", c.Transmit.PTT.Method)
	}

	return nil
}

// ToneDetector builds the detector described by the modem and audio sections.
func (c *Config) ToneDetector() *ToneDetector {
	return &ToneDetector{
		SampleRate: c.Audio.SampleRate,
		MarkFreq:   c.Modem.MarkFreq,
		SpaceFreq:  c.Modem.SpaceFreq,
		Gain:       c.Audio.Gain,
		ExactBins:  c.Modem.ExactBins,
	}
}

// FramerConfig converts the framing section.  Call Validate first.
func (c *Config) FramerConfig() FramerConfig {
	var p, _ = ParseBits(c.Framing.Preamble)
	var e, _ = ParseBits(c.Framing.EndMarker)

	return FramerConfig{
		Preamble:          p,
		EndMarker:         e,
		EndTimeout:        c.Framing.EndTimeout,
		RestartOnPreamble: c.Framing.RestartOnPreamble,
		CompleteLastChar:  c.Framing.CompleteLastChar,
	}
}

// TransmitterConfig collects what the transmitter needs.  Call Validate first.
func (c *Config) TransmitterConfig() TransmitterConfig {
	return TransmitterConfig{
		Baud:      c.Modem.Baud,
		MarkFreq:  c.Modem.MarkFreq,
		SpaceFreq: c.Modem.SpaceFreq,
		Amplitude: c.Transmit.Amplitude,
		Framing:   c.FramerConfig(),
		Callsign:  c.Transmit.Callsign,
		TXDelay:   c.Transmit.TXDelay,
		TXTail:    c.Transmit.TXTail,
	}
}
