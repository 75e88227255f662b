package afsk

/*------------------------------------------------------------------
 *
 * Name:	gen_packets
 *
 * Purpose:	Send AFSK messages the same way as the KB2040 transmitter.
 *
 * Description:	Given messages are converted to audio and written
 *		to a .WAV type audio file, or played through the sound
 *		card with PTT.
 *
 * Examples:	Test file for atest:
 *
 *			afsk-gen -o z.wav
 *			afsk-atest z.wav
 *
 *		User-defined content:
 *
 *			afsk-gen -o z.wav "first message" "second message"
 *
 *		Faster:
 *
 *			afsk-gen -B 1200 -o z12.wav
 *			afsk-atest -B 1200 -x z12.wav
 *
 *		On the air, every 5 minutes, keying a radio with the
 *		RTS line of a serial port:
 *
 *			afsk-gen -C N0CALL -i 5m -P serial-rts -p /dev/ttyUSB0 "hello world"
 *
 *------------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"
)

const DEFAULT_MESSAGE = "hello world"

func GenPacketsMain() {
	var configFile = pflag.StringP("config-file", "c", DEFAULT_CONFIG_FILE, "Read transmit settings from this YAML file.")
	var outputFile = pflag.StringP("output-file", "o", "", "Send output to .wav file rather than the sound card.")
	var device = pflag.StringP("audio-device", "a", "", "Sound card index or name prefix for output.")
	var sampleRate = pflag.IntP("audio-sample-rate", "r", DEFAULT_SAMPLES_PER_SEC, "Audio sample rate.")
	var baud = pflag.IntP("bitrate", "B", DEFAULT_BAUD, "Bits / second.")
	var markFreq = pflag.Float64P("mark", "m", DEFAULT_MARK_FREQ, "Mark frequency.")
	var spaceFreq = pflag.Float64P("space", "s", DEFAULT_SPACE_FREQ, "Space frequency.")
	var amplitude = pflag.IntP("amplitude", "A", 50, "Signal amplitude in range of 0 - 100%.")
	var callsign = pflag.StringP("callsign", "C", "", "Appended to each message.")
	var count = pflag.IntP("packet-count", "N", 1, "Send each message this many times.")
	var interval = pflag.DurationP("interval", "i", 0, "Repeat forever at this interval.  Sound card only.")
	var txdelay = pflag.Duration("txdelay", 100*time.Millisecond, "Time between keying PTT and the start of the data.")
	var txtail = pflag.Duration("txtail", 100*time.Millisecond, "Time between the end of the data and unkeying PTT.")
	var pttMethod = pflag.StringP("ptt", "P", "", "PTT method: none, serial-rts, serial-dtr, gpiod.")
	var pttDevice = pflag.StringP("ptt-device", "p", "", "Serial port or GPIO chip for PTT.")
	var pttLine = pflag.Int("ptt-line", 0, "GPIO line offset for PTT.")
	var pttInvert = pflag.Bool("ptt-invert", false, "Invert the PTT signal.")
	var debug = pflag.BoolP("debug", "d", false, "Debug level logging.")
	var version = pflag.BoolP("version", "v", false, "Print version and exit.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - Generate AFSK messages.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options] [message ...]\n", os.Args[0])
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Without any messages, %q is sent.\n", DEFAULT_MESSAGE)
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Example:  %s -o x.wav\n", os.Args[0])
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(1)
	}

	if *version {
		printVersion("afsk-gen", *debug)
		return
	}

	var cfg, cfgErr = LoadConfig(*configFile, pflag.CommandLine.Changed("config-file"))
	if cfgErr != nil {
		fmt.Fprintf(os.Stderr, "%s\n", cfgErr)
		os.Exit(1)
	}

	var changed = pflag.CommandLine.Changed

	if changed("audio-device") {
		cfg.Audio.OutputDevice = *device
	}

	if changed("audio-sample-rate") {
		cfg.Audio.SampleRate = *sampleRate
	}

	if changed("bitrate") {
		cfg.Modem.Baud = *baud
	}

	if changed("mark") {
		cfg.Modem.MarkFreq = *markFreq
	}

	if changed("space") {
		cfg.Modem.SpaceFreq = *spaceFreq
	}

	if changed("amplitude") {
		cfg.Transmit.Amplitude = *amplitude
	}

	if changed("callsign") {
		cfg.Transmit.Callsign = *callsign
	}

	if changed("interval") {
		cfg.Transmit.Interval = *interval
	}

	if changed("txdelay") {
		cfg.Transmit.TXDelay = *txdelay
	}

	if changed("txtail") {
		cfg.Transmit.TXTail = *txtail
	}

	if changed("ptt") {
		cfg.Transmit.PTT.Method = *pttMethod
	}

	if changed("ptt-device") {
		cfg.Transmit.PTT.Device = *pttDevice
	}

	if changed("ptt-line") {
		cfg.Transmit.PTT.Line = *pttLine
	}

	if changed("ptt-invert") {
		cfg.Transmit.PTT.Invert = *pttInvert
	}

	if *debug {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}

	var logger, _ = NewLogger(os.Stderr, cfg.Log.Level)

	var messages = pflag.Args()
	if len(messages) == 0 {
		messages = []string{DEFAULT_MESSAGE}
	}

	var hw TxHardware

	if *outputFile != "" {
		var w, err = CreateWAVWriter(*outputFile, cfg.Audio.SampleRate)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Can't open %s for write: %s\n", *outputFile, err)
			os.Exit(1)
		}

		hw.Output = w
	} else {
		var out, err = OpenPortAudioOutput(cfg.Audio.OutputDevice, cfg.Audio.SampleRate, cfg.Audio.FramesPerBuffer)
		if err != nil {
			logger.Error("Could not open audio output", "err", err)
			os.Exit(1)
		}

		var pttCfg = cfg.Transmit.PTT
		hw.Output = out
		hw.OpenPTT = func() (PTT, error) { return OpenPTT(pttCfg) }
	}

	var tx, txErr = NewTransmitter(hw, cfg.TransmitterConfig(), logger)
	if txErr != nil {
		hw.Output.Close() //nolint:errcheck
		logger.Error("Could not set up transmitter", "err", txErr)
		os.Exit(1)
	}

	var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	var err error
	if *outputFile == "" && changed("interval") && cfg.Transmit.Interval > 0 {
		err = tx.Beacon(ctx, []byte(messages[0]), cfg.Transmit.Interval)
	} else {
		err = sendAll(ctx, tx, messages, *count)
	}

	if closeErr := tx.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	if err != nil {
		logger.Error("Transmit failed", "err", err)
		stop()
		os.Exit(1) //nolint:gocritic
	}
}

func sendAll(ctx context.Context, tx *Transmitter, messages []string, count int) error {
	for range count {
		for _, m := range messages {
			if err := tx.Transmit(ctx, []byte(m)); err != nil {
				return err
			}
		}
	}

	return nil
}
