package afsk

/*-------------------------------------------------------------------
 *
 * Name:        atest
 *
 * Purpose:     Test fixture for the AFSK demodulator.
 *
 * Inputs:	Takes audio from .WAV files and runs it through the
 *		same receive pipeline as the real thing.  The framing
 *		timeout is measured in audio time so the result doesn't
 *		depend on how fast the machine is.
 *
 * Outputs:	Decoded messages are printed, one per line.
 *
 * Examples:	afsk-gen -o z.wav "hi"
 *		afsk-atest z.wav
 *
 *		afsk-gen -B 1200 -o z12.wav
 *		afsk-atest -B 1200 -x z12.wav
 *
 *--------------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
)

func AtestMain() {
	var baud = pflag.IntP("bitrate", "B", DEFAULT_BAUD, "Bits / second.")
	var markFreq = pflag.Float64P("mark", "m", DEFAULT_MARK_FREQ, "Mark frequency.")
	var spaceFreq = pflag.Float64P("space", "s", DEFAULT_SPACE_FREQ, "Space frequency.")
	var exactBins = pflag.BoolP("exact-bins", "x", false, "Use unrounded Goertzel bins.  Needed for 1200 baud.")
	var endTimeout = pflag.DurationP("end-timeout", "t", DefaultEndTimeout, "Give up on a message without an end marker after this long.")
	var restart = pflag.BoolP("restart-on-preamble", "R", false, "Start over when a preamble appears inside a message.")
	var hexOpt = pflag.BoolP("hex", "H", false, "Print the payload in hexadecimal too.")
	var decodeOnlyLower = pflag.IntP("lower-limit", "L", -1, "Error if fewer than this number decoded.")
	var decodeOnlyUpper = pflag.IntP("upper-limit", "G", -1, "Error if more than this number decoded.")
	var debug = pflag.BoolP("debug", "d", false, "Debug level logging.")
	var version = pflag.BoolP("version", "v", false, "Print version and exit.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - Decode AFSK messages from .WAV files.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options] wav-file-in ...\n", os.Args[0])
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(1)
	}

	if *version {
		printVersion("afsk-atest", *debug)
		return
	}

	if pflag.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Specify .WAV file name on command line.\n")
		pflag.Usage()
		os.Exit(1)
	}

	var level = "warn"
	if *debug {
		level = "debug"
	}

	var logger, _ = NewLogger(os.Stderr, level)

	var cfg = DefaultConfig()
	cfg.Modem.Baud = *baud
	cfg.Modem.MarkFreq = *markFreq
	cfg.Modem.SpaceFreq = *spaceFreq
	cfg.Modem.ExactBins = *exactBins
	cfg.Framing.EndTimeout = *endTimeout
	cfg.Framing.RestartOnPreamble = *restart

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}

	var total = 0
	var start = time.Now()
	var audioSeconds = 0.0

	for _, fname := range pflag.Args() {
		var source, err = OpenWAVSource(fname, cfg.Audio.FramesPerBuffer)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Couldn't open file for read: %s\n", err)
			os.Exit(1)
		}

		fmt.Printf("%d samples per second.  %d baud.\n", source.SampleRate(), cfg.Modem.Baud)

		var count = 0
		var samples = 0

		var sink = SinkFunc(func(msg Message, _ time.Time) error {
			count++
			fmt.Printf("[%d] %s\n", count, msg.Text())

			if *hexOpt {
				fmt.Printf("    % x\n", msg.Payload)
			}

			return nil
		})

		var r, rErr = NewReceiver(cfg, source, []Sink{sink}, logger, nil)
		if rErr != nil {
			source.Close() //nolint:errcheck
			fmt.Fprintf(os.Stderr, "%s\n", rErr)
			os.Exit(1)
		}

		r.capture.OnRead = func(s []float32, _ error) { samples += len(s) }

		if err := r.Run(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %s\n", fname, err)
			os.Exit(1)
		}

		audioSeconds += float64(samples) / float64(source.SampleRate())
		total += count

		fmt.Printf("%d from %s\n", count, fname)
	}

	var elapsed = time.Since(start).Seconds()
	fmt.Printf("\n\n")
	fmt.Printf("%d messages decoded in %.3f seconds.  %.1f x realtime\n", total, elapsed, audioSeconds/max(elapsed, 1e-6))

	if *decodeOnlyLower >= 0 && total < *decodeOnlyLower {
		fmt.Printf("\n * * * TOO FEW messages decoded * * *\n\n")
		os.Exit(1)
	}

	if *decodeOnlyUpper >= 0 && total > *decodeOnlyUpper {
		fmt.Printf("\n * * * TOO MANY messages decoded * * *\n\n")
		os.Exit(1)
	}
}
