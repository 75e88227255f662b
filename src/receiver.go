package afsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Tie the receive pipeline together.
 *
 * Description:	Three stages run concurrently:
 *
 *		capture		audio source -> audio queue
 *		demodulator	audio queue -> message queue
 *		dispatcher	message queue -> sinks
 *
 *		The audio queue is the only place anything is thrown
 *		away, and only for a sound card.  A failure of the audio
 *		source stops everything and is returned from Run.  Sink
 *		failures are logged and the receiver carries on.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

type Receiver struct {
	capture *Capture
	demod   *Demodulator
	sinks   []Sink
	logger  *log.Logger
	metrics *Metrics
	stats   *AudioStats

	messageQueue int
	poll         time.Duration
}

/*------------------------------------------------------------------
 *
 * Name:        NewReceiver
 *
 * Purpose:     Build the pipeline for one audio source.
 *
 * Inputs:	cfg	- Validated configuration.
 *
 *		source	- Where the audio comes from.  Its sample rate
 *			  overrides the configured one, which matters
 *			  for .WAV files.
 *
 *		sinks	- Where decoded messages go.  They are closed
 *			  when Run returns.
 *
 *		metrics	- May be nil.
 *
 *----------------------------------------------------------------*/

func NewReceiver(cfg *Config, source AudioSource, sinks []Sink, logger *log.Logger, metrics *Metrics) (*Receiver, error) {
	var detector = cfg.ToneDetector()
	detector.SampleRate = source.SampleRate()

	var demod, err = NewDemodulator(DemodConfig{
		Detector:     detector,
		Baud:         cfg.Modem.Baud,
		Framing:      cfg.FramerConfig(),
		Offline:      !source.Paced(),
		PollInterval: cfg.Queues.PollInterval,
		Diagnostics:  cfg.Log.Diagnostics,
	}, logger, metrics)
	if err != nil {
		return nil, err
	}

	var r = &Receiver{
		capture:      NewCapture(source, cfg.Queues.AudioChunks, logger),
		demod:        demod,
		sinks:        sinks,
		logger:       logger,
		metrics:      metrics,
		stats:        NewAudioStats(cfg.Audio.StatsInterval, logger),
		messageQueue: cfg.Queues.Messages,
		poll:         cfg.Queues.PollInterval,
	}

	r.capture.OnRead = func(samples []float32, err error) {
		r.stats.Add(samples, err)

		if r.metrics == nil {
			return
		}

		if len(samples) > 0 {
			r.metrics.ChunksCaptured.Inc()
		}

		if errors.Is(err, ErrInputOverflow) {
			r.metrics.InputOverflows.Inc()
		}
	}

	r.capture.OnDrop = func(Chunk) {
		if r.metrics != nil {
			r.metrics.ChunksDropped.Inc()
		}
	}

	return r, nil
}

// Dropped is the number of audio chunks lost to a full queue.
func (r *Receiver) Dropped() uint64 {
	return r.capture.Dropped()
}

/*------------------------------------------------------------------
 *
 * Name:        Run
 *
 * Purpose:     Receive until cancelled, the source ends, or the
 *		source fails.
 *
 * Returns:	nil for cancellation or the end of a file.
 *		An error wrapping ErrAudioDevice for a dead source.
 *
 *----------------------------------------------------------------*/

func (r *Receiver) Run(ctx context.Context) error {
	defer r.closeSinks()

	var messages = make(chan Message, r.messageQueue)
	var g, gctx = errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.capture.Run(gctx)
	})

	g.Go(func() error {
		defer close(messages)
		return r.demod.Run(gctx, r.capture.Chunks(), messages)
	})

	g.Go(func() error {
		return r.dispatch(gctx, messages)
	})

	var err = g.Wait()
	if err != nil {
		r.logger.Error("Receiver stopped", "err", err)
		return err
	}

	r.logger.Info("Receiver stopped")

	return nil
}

// dispatch hands each message to every sink.  The wait is bounded so
// cancellation is noticed while idle.
func (r *Receiver) dispatch(ctx context.Context, messages <-chan Message) error {
	var timer = time.NewTimer(r.poll)
	defer timer.Stop()

	for {
		timer.Reset(r.poll)

		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			continue
		case msg, ok := <-messages:
			if !ok {
				return nil
			}

			r.deliver(msg, time.Now())
		}
	}
}

func (r *Receiver) deliver(msg Message, heard time.Time) {
	for _, s := range r.sinks {
		if err := s.Deliver(msg, heard); err != nil {
			r.logger.Error("Could not deliver message", "sink", s.Name(), "err", err)

			if r.metrics != nil {
				r.metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
			}
		}
	}
}

func (r *Receiver) closeSinks() {
	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			r.logger.Warn("Error closing sink", "sink", s.Name(), "err", err)
		}
	}
}
