package afsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Turn audio chunks into decoded messages.
 *
 * Description:	This is the middle of the pipeline.  It owns the bit
 *		sampler and the framer, so nothing else touches their
 *		state.  Chunks come in from the capture queue and
 *		complete messages go out on the message queue.
 *
 *		The framer timeout is measured on one of two clocks.
 *		With a sound card it is the wall clock.  For a file or
 *		stdin, which is read much faster than real time, each
 *		bit advances a sample clock by one bit time instead.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

type DemodConfig struct {
	Detector *ToneDetector
	Baud     int
	Framing  FramerConfig

	// Offline selects the sample clock.  Use it when the source isn't paced.
	Offline bool

	// PollInterval bounds each wait for audio so cancellation is noticed
	// even when nothing is arriving.
	PollInterval time.Duration

	// Diagnostics logs every bit with its tone powers at debug level.
	Diagnostics bool
}

type Demodulator struct {
	sampler *BitSampler
	framer  *Framer
	clock   *SampleClock // nil when using the wall clock.
	bitTime time.Duration
	poll    time.Duration
	logger  *log.Logger
	metrics *Metrics
}

func NewDemodulator(cfg DemodConfig, logger *log.Logger, metrics *Metrics) (*Demodulator, error) {
	var sampler, err = NewBitSampler(cfg.Detector, cfg.Baud)
	if err != nil {
		return nil, err
	}

	var d = &Demodulator{ //nolint:exhaustruct
		sampler: sampler,
		bitTime: time.Duration(sampler.SamplesPerBit()) * time.Second / time.Duration(cfg.Detector.SampleRate),
		poll:    cfg.PollInterval,
		logger:  logger.WithPrefix("demod"),
		metrics: metrics,
	}

	if d.poll <= 0 {
		d.poll = time.Second
	}

	var clock Clock = WallClock{}
	if cfg.Offline {
		d.clock = NewSampleClock(time.Now())
		clock = d.clock
	}

	d.framer, err = NewFramer(cfg.Framing, clock)
	if err != nil {
		return nil, err
	}

	if cfg.Diagnostics {
		sampler.Observer = func(o BitObservation) {
			d.logger.Debug("bit", "n", o.Index, "mark", o.MarkPower, "space", o.SpacePower, "bit", o.Bit)
		}
	}

	return d, nil
}

// BitTime is how long one bit lasts on the air.
func (d *Demodulator) BitTime() time.Duration {
	return d.bitTime
}

func (d *Demodulator) State() FramerState {
	return d.framer.State()
}

/*------------------------------------------------------------------
 *
 * Name:        Process
 *
 * Purpose:     Run one chunk of samples through the sampler and framer.
 *
 * Returns:	Messages completed within this chunk, in order.
 *		Usually none.
 *
 *----------------------------------------------------------------*/

func (d *Demodulator) Process(samples []float32) []Message {
	var messages []Message

	for bit := range d.sampler.Feed(samples) {
		if d.clock != nil {
			d.clock.Advance(d.bitTime)
		}

		if d.metrics != nil {
			d.metrics.BitsDemodulated.Inc()
		}

		var msg, ev = d.framer.Push(bit)

		if d.metrics != nil {
			d.metrics.countEvent(ev)
		}

		switch ev {
		case EventNone:
		case EventPreamble:
			d.logger.Info("Preamble detected, collecting message")
		case EventRestart:
			d.logger.Info("Preamble detected again, starting over")
		case EventTimeout:
			d.logger.Warn("Timeout waiting for end marker, resetting")
		case EventMessage:
			d.logger.Debug("End marker detected", "bytes", len(msg.Payload), "duration", msg.End.Sub(msg.Start))
			messages = append(messages, msg)
		}
	}

	return messages
}

/*------------------------------------------------------------------
 *
 * Name:        Run
 *
 * Purpose:     Demodulate until the audio queue is closed or ctx is done.
 *
 * Inputs:	in	- Audio from the capture stage.
 *
 *		out	- Decoded messages.  Sends wait for room.
 *			  Messages are never dropped here.
 *
 * Returns:	nil.  Running out of audio or being cancelled is
 *		a normal way to stop.
 *
 *----------------------------------------------------------------*/

func (d *Demodulator) Run(ctx context.Context, in <-chan Chunk, out chan<- Message) error {
	var timer = time.NewTimer(d.poll)
	defer timer.Stop()

	for {
		timer.Reset(d.poll)

		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			// Nothing arrived.  Go around and check for cancellation.
			continue
		case chunk, ok := <-in:
			if !ok {
				d.logger.Debug("Audio queue closed", "state", d.framer.State())
				return nil
			}

			if d.metrics != nil {
				d.metrics.AudioQueueDepth.Set(float64(len(in)))
			}

			for _, msg := range d.Process(chunk.Samples) {
				select {
				case out <- msg:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}
