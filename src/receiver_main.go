package afsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Main program for the receiver, "samoyed-afsk".
 *
 *		Listens to a sound card (or a file, or stdin), decodes
 *		AFSK messages from the KB2040 transmitter, and passes
 *		them on to:
 *
 *			the console
 *			a data log file
 *			KISS over TCP, optionally announced with DNS-SD
 *			a KISS pseudo terminal
 *			an MQTT broker
 *
 *		Prometheus metrics are available over HTTP.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"
)

/*------------------------------------------------------------------
 *
 * Name:        OpenAudioSource
 *
 * Purpose:     Open whatever audio.input says.
 *
 * Inputs:	cfg.Audio.Input	- Empty for the sound card, "-" for raw
 *				  samples on stdin, otherwise a .WAV file.
 *
 *----------------------------------------------------------------*/

func OpenAudioSource(cfg *Config) (AudioSource, error) {
	switch cfg.Audio.Input {
	case "":
		return OpenPortAudioInput(cfg.Audio.Device, cfg.Audio.SampleRate, cfg.Audio.FramesPerBuffer)
	case "-", "stdin":
		return NewRawSource(os.Stdin, cfg.Audio.SampleRate, cfg.Audio.FramesPerBuffer), nil
	default:
		return OpenWAVSource(cfg.Audio.Input, cfg.Audio.FramesPerBuffer)
	}
}

/*------------------------------------------------------------------
 *
 * Name:        OpenSinks
 *
 * Purpose:     Set up everywhere decoded messages should go.
 *
 * Description:	The console always gets them.  The rest depend on
 *		the configuration.  If anything fails, what was
 *		already opened is closed again.
 *
 *----------------------------------------------------------------*/

func OpenSinks(ctx context.Context, cfg *Config, logger *log.Logger) ([]Sink, error) {
	var sinks = []Sink{ConsoleSink{Logger: logger}}

	var fail = func(err error) ([]Sink, error) {
		for _, s := range sinks {
			s.Close() //nolint:errcheck
		}

		return nil, err
	}

	if cfg.Log.File != "" || cfg.Log.Dir != "" {
		var daily = cfg.Log.Dir != ""
		var path = cfg.Log.File
		if daily {
			path = cfg.Log.Dir
		}

		var d, err = NewDataLog(daily, path, cfg.Log.TimestampFormat, logger.WithPrefix("datalog"))
		if err != nil {
			return fail(err)
		}

		sinks = append(sinks, d)
	}

	if cfg.KISS.TCPPort > 0 {
		var k, err = ListenKISS(":"+strconv.Itoa(cfg.KISS.TCPPort), logger)
		if err != nil {
			return fail(fmt.Errorf("KISS TCP port %d: %w", cfg.KISS.TCPPort, err))
		}

		sinks = append(sinks, k)

		if cfg.KISS.DNSSD {
			AnnounceKISS(ctx, cfg.KISS.DNSSDName, k.Port(), logger)
		}
	}

	if cfg.KISS.PTY {
		var p, err = OpenKISSPty(TMP_KISSTNC_SYMLINK, logger)
		if err != nil {
			return fail(fmt.Errorf("could not create pseudo terminal for KISS TNC: %w", err))
		}

		sinks = append(sinks, p)
	}

	if cfg.MQTT.Broker != "" {
		sinks = append(sinks, NewMQTTSink(cfg.MQTT, logger))
	}

	return sinks, nil
}

func ReceiverMain() {
	var configFile = pflag.StringP("config-file", "c", DEFAULT_CONFIG_FILE, "Read configuration from this YAML file.")
	var input = pflag.StringP("input", "i", "", "Audio input.  Omit for the sound card, - for raw S16_LE on stdin, or a .wav file.")
	var device = pflag.StringP("audio-device", "a", "", "Sound card index or name prefix.  See afsk-devices.")
	var sampleRate = pflag.IntP("audio-sample-rate", "r", DEFAULT_SAMPLES_PER_SEC, "Audio sample rate.")
	var baud = pflag.IntP("bitrate", "B", DEFAULT_BAUD, "Bits / second.")
	var exactBins = pflag.BoolP("exact-bins", "x", false, "Use unrounded Goertzel bins.  Needed for 1200 baud.")
	var endTimeout = pflag.DurationP("end-timeout", "t", DefaultEndTimeout, "Give up on a message without an end marker after this long.")
	var restart = pflag.BoolP("restart-on-preamble", "R", false, "Start over when a preamble appears inside a message.")
	var logFile = pflag.StringP("log-file", "L", "", "Append decoded messages to this file.")
	var logDir = pflag.StringP("log-dir", "l", "", "Append decoded messages to daily files in this directory.")
	var timestampFormat = pflag.StringP("timestamp-format", "T", "", "strftime format for data log timestamps.")
	var kissPort = pflag.IntP("kiss-port", "k", 0, "KISS TCP port.  0 to disable.")
	var dnsSD = pflag.Bool("dns-sd", false, "Announce the KISS TCP port with DNS-SD.")
	var pty = pflag.BoolP("pty", "p", false, "Create a pseudo terminal for KISS applications.")
	var mqttBroker = pflag.StringP("mqtt-broker", "m", "", "Publish decoded messages to this MQTT broker, e.g. tcp://localhost:1883.")
	var metricsListen = pflag.StringP("metrics-listen", "M", "", "Serve Prometheus metrics on this address, e.g. :9110.")
	var statsInterval = pflag.IntP("stats-interval", "s", 0, "Seconds between audio statistics reports.  0 to disable.")
	var debug = pflag.BoolP("debug", "d", false, "Debug level logging.")
	var diagnostics = pflag.BoolP("diagnostics", "D", false, "Log every bit with its tone powers.  Implies -d.")
	var version = pflag.BoolP("version", "v", false, "Print version and exit.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - AFSK receiver for the KB2040 transmitter.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Options override the configuration file, %s by default.\n", DEFAULT_CONFIG_FILE)
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Example:  arecord -t raw -f S16_LE -r 48000 -c 1 | %s -i -\n", os.Args[0])
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(1)
	}

	if *version {
		printVersion("samoyed-afsk", *debug)
		return
	}

	var cfg, cfgErr = LoadConfig(*configFile, pflag.CommandLine.Changed("config-file"))
	if cfgErr != nil {
		fmt.Fprintf(os.Stderr, "%s\n", cfgErr)
		os.Exit(1)
	}

	var changed = pflag.CommandLine.Changed

	if changed("input") {
		cfg.Audio.Input = *input
	}

	if changed("audio-device") {
		cfg.Audio.Device = *device
	}

	if changed("audio-sample-rate") {
		cfg.Audio.SampleRate = *sampleRate
	}

	if changed("bitrate") {
		cfg.Modem.Baud = *baud
	}

	if changed("exact-bins") {
		cfg.Modem.ExactBins = *exactBins
	}

	if changed("end-timeout") {
		cfg.Framing.EndTimeout = *endTimeout
	}

	if changed("restart-on-preamble") {
		cfg.Framing.RestartOnPreamble = *restart
	}

	if changed("log-file") {
		cfg.Log.File = *logFile
	}

	if changed("log-dir") {
		cfg.Log.Dir = *logDir
	}

	if changed("timestamp-format") {
		cfg.Log.TimestampFormat = *timestampFormat
	}

	if changed("kiss-port") {
		cfg.KISS.TCPPort = *kissPort
	}

	if changed("dns-sd") {
		cfg.KISS.DNSSD = *dnsSD
	}

	if changed("pty") {
		cfg.KISS.PTY = *pty
	}

	if changed("mqtt-broker") {
		cfg.MQTT.Broker = *mqttBroker
	}

	if changed("metrics-listen") {
		cfg.Metrics.Listen = *metricsListen
	}

	if changed("stats-interval") {
		cfg.Audio.StatsInterval = *statsInterval
	}

	if *diagnostics {
		cfg.Log.Diagnostics = true
	}

	if *debug || cfg.Log.Diagnostics {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}

	var logger, logErr = NewLogger(os.Stderr, cfg.Log.Level)
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "%s\n", logErr)
		os.Exit(1)
	}

	if err := runReceiver(cfg, logger); err != nil {
		logger.Error("Exiting", "err", err)
		os.Exit(1)
	}
}

func runReceiver(cfg *Config, logger *log.Logger) error {
	var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	var source, sourceErr = OpenAudioSource(cfg)
	if sourceErr != nil {
		return sourceErr
	}

	var sinks, sinkErr = OpenSinks(ctx, cfg, logger)
	if sinkErr != nil {
		source.Close() //nolint:errcheck
		return sinkErr
	}

	var metrics = NewMetrics()

	if cfg.Metrics.Listen != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, logger.WithPrefix("metrics")); err != nil {
				logger.Error("Metrics server failed", "err", err)
			}
		}()
	}

	var r, err = NewReceiver(cfg, source, sinks, logger, metrics)
	if err != nil {
		source.Close() //nolint:errcheck

		for _, s := range sinks {
			s.Close() //nolint:errcheck
		}

		return err
	}

	logger.Info("Ready to receive",
		"rate", source.SampleRate(),
		"baud", cfg.Modem.Baud,
		"mark", cfg.Modem.MarkFreq,
		"space", cfg.Modem.SpaceFreq,
		"timeout", cfg.Framing.EndTimeout.Round(time.Millisecond))

	return r.Run(ctx)
}
