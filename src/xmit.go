package afsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Transmit messages the way the KB2040 transmitter does.
 *
 * Description:	For each transmission:
 *
 *			open PTT and key the transmitter
 *			txdelay of silence while it comes up to power
 *			preamble, payload, callsign, end marker
 *			txtail of silence so the end isn't chopped off
 *			unkey and close PTT
 *
 *		The silences go through the audio output rather than a
 *		sleep, so PTT follows the audio actually played.  A sound
 *		card plays in real time.  A .WAV file is written as fast
 *		as possible and gets the silence in the file.
 *
 *		The PTT device is only held open while transmitting.
 *		Unkeying is attempted however the transmission ends.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// AudioOutput plays or records samples.
type AudioOutput interface {
	Write(samples []float32) error
	SampleRate() int
	Close() error
}

// TxHardware is everything the transmitter owns.
type TxHardware struct {
	OpenPTT func() (PTT, error)
	Output  AudioOutput
}

type TransmitterConfig struct {
	Baud      int
	MarkFreq  float64
	SpaceFreq float64
	Amplitude int
	Framing   FramerConfig
	Callsign  string
	TXDelay   time.Duration
	TXTail    time.Duration
}

type Transmitter struct {
	hw      TxHardware
	gen     *ToneGenerator
	cfg     TransmitterConfig
	logger  *log.Logger
	samples []float32
}

func NewTransmitter(hw TxHardware, cfg TransmitterConfig, logger *log.Logger) (*Transmitter, error) {
	if hw.Output == nil {
		return nil, errors.New("transmitter needs an audio output")
	}

	if hw.OpenPTT == nil {
		hw.OpenPTT = func() (PTT, error) { return nonePTT{}, nil }
	}

	var gen, err = NewToneGenerator(hw.Output.SampleRate(), cfg.Baud, cfg.MarkFreq, cfg.SpaceFreq, cfg.Amplitude)
	if err != nil {
		return nil, err
	}

	return &Transmitter{
		hw:     hw,
		gen:    gen,
		cfg:    cfg,
		logger: logger.WithPrefix("xmit"),
	}, nil
}

/*-------------------------------------------------------------------
 *
 * Name:        Transmit
 *
 * Purpose:     Send one message.
 *
 * Returns:	The first thing that went wrong, if anything.
 *		A failure to unkey is always reported.
 *
 *--------------------------------------------------------------------*/

func (t *Transmitter) Transmit(ctx context.Context, payload []byte) (err error) {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var bits = EncodeFrame(t.cfg.Framing, payload, t.cfg.Callsign)

	t.samples = t.gen.PutQuiet(t.samples[:0], t.cfg.TXDelay)
	t.samples = t.gen.PutBits(t.samples, bits)
	t.samples = t.gen.PutQuiet(t.samples, t.cfg.TXTail)

	var ptt, openErr = t.hw.OpenPTT()
	if openErr != nil {
		return openErr
	}

	defer func() {
		if closeErr := ptt.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("%w: close: %w", ErrPTT, closeErr)
		}
	}()

	t.logger.Info("Transmitting", "payload", string(payload), "callsign", t.cfg.Callsign, "bits", len(bits))

	if keyErr := ptt.Set(true); keyErr != nil {
		ptt.Set(false) //nolint:errcheck
		return keyErr
	}

	var writeErr = t.hw.Output.Write(t.samples)

	if unkeyErr := ptt.Set(false); unkeyErr != nil {
		t.logger.Error("Could not unkey transmitter", "err", unkeyErr)
		return errors.Join(writeErr, unkeyErr)
	}

	return writeErr
}

/*-------------------------------------------------------------------
 *
 * Name:        Beacon
 *
 * Purpose:     Send the same message every interval until ctx is done.
 *
 * Description:	The first one goes right away.  A failed transmission
 *		is logged and we try again next time.
 *
 *--------------------------------------------------------------------*/

func (t *Transmitter) Beacon(ctx context.Context, payload []byte, interval time.Duration) error {
	var ticker = time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := t.Transmit(ctx, payload); err != nil {
			if ctx.Err() != nil {
				return nil
			}

			t.logger.Error("Transmission failed", "err", err)
		}

		t.logger.Debug("Waiting for next transmission", "interval", interval)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Close releases the audio output.
func (t *Transmitter) Close() error {
	return t.hw.Output.Close()
}
