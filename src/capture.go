package afsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Keep audio flowing from the source to the demodulator.
 *
 * Description:	A sound card runs on its own clock and can't be paused.
 *		If the demodulator falls behind and the queue fills up,
 *		the chunk is thrown away and we complain about it rather
 *		than holding up the sound card.  Losing a little audio
 *		loses at most the message it was part of.
 *
 *		Files and stdin are different.  Nothing is lost by waiting
 *		for the demodulator so they get a blocking send.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// ErrInputOverflow is returned by a source along with good samples when
// the hardware reported that some input was lost.  It isn't fatal.
var ErrInputOverflow = errors.New("audio input overflow")

// ErrAudioDevice wraps anything that means the audio source is gone.
var ErrAudioDevice = errors.New("audio device failure")

// Chunk is one read's worth of mono samples.
type Chunk struct {
	Seq     uint64
	Time    time.Time
	Samples []float32
}

// AudioSource produces mono samples at a fixed rate.
type AudioSource interface {
	// Read blocks until the next buffer is available.  The returned
	// slice may be reused by the next call.  io.EOF means a finite
	// source has ended.
	Read() ([]float32, error)
	SampleRate() int
	// Paced is true for sources running on a hardware clock.
	Paced() bool
	Close() error
}

type Capture struct {
	source AudioSource
	out    chan Chunk
	logger *log.Logger

	seq      uint64
	dropped  atomic.Uint64
	overruns atomic.Uint64

	// OnDrop is called for each chunk thrown away.
	OnDrop func(Chunk)
	// OnRead is called for every buffer read, successful or not.
	OnRead func(samples []float32, err error)
}

func NewCapture(source AudioSource, capacity int, logger *log.Logger) *Capture {
	return &Capture{
		source: source,
		out:    make(chan Chunk, capacity),
		logger: logger.WithPrefix("capture"),
	}
}

// Chunks is the receive side of the audio queue.  It is closed when
// Run returns.
func (c *Capture) Chunks() <-chan Chunk {
	return c.out
}

func (c *Capture) Dropped() uint64  { return c.dropped.Load() }
func (c *Capture) Overruns() uint64 { return c.overruns.Load() }

/*------------------------------------------------------------------
 *
 * Name:        Offer
 *
 * Purpose:     Try to queue a chunk without waiting.
 *
 * Returns:	true if queued, false if it was dropped because the
 *		queue was full.
 *
 *----------------------------------------------------------------*/

func (c *Capture) Offer(chunk Chunk) bool {
	select {
	case c.out <- chunk:
		return true
	default:
	}

	var n = c.dropped.Add(1)
	c.logger.Warn("Audio queue is full.  Dropping chunk.", "seq", chunk.Seq, "dropped", n)

	if c.OnDrop != nil {
		c.OnDrop(chunk)
	}

	return false
}

func (c *Capture) send(ctx context.Context, chunk Chunk) error {
	if c.source.Paced() {
		c.Offer(chunk)
		return nil
	}

	select {
	case c.out <- chunk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

/*------------------------------------------------------------------
 *
 * Name:        Run
 *
 * Purpose:     Read from the source until cancelled or it ends.
 *
 * Returns:	nil for cancellation or the end of a file.
 *		An error wrapping ErrAudioDevice if the source failed.
 *
 * Description:	The source is closed and the chunk queue is closed on
 *		the way out, so the demodulator sees the end too.
 *
 *----------------------------------------------------------------*/

func (c *Capture) Run(ctx context.Context) error {
	defer close(c.out)
	defer c.source.Close() //nolint:errcheck

	c.logger.Info("Audio capture running", "rate", c.source.SampleRate(), "paced", c.source.Paced())

	for ctx.Err() == nil {
		var samples, err = c.source.Read()

		if c.OnRead != nil {
			c.OnRead(samples, err)
		}

		switch {
		case err == nil:
		case errors.Is(err, ErrInputOverflow):
			c.overruns.Add(1)
			c.logger.Warn("Audio input overflow", "seq", c.seq)
		case errors.Is(err, io.EOF):
			c.logger.Info("End of audio input")
			return nil
		default:
			return fmt.Errorf("%w: %w", ErrAudioDevice, err)
		}

		if len(samples) == 0 {
			continue
		}

		var chunk = Chunk{
			Seq:     c.seq,
			Time:    time.Now(),
			Samples: append([]float32(nil), samples...),
		}
		c.seq++

		if sendErr := c.send(ctx, chunk); sendErr != nil {
			return nil //nolint:nilerr // Cancelled.
		}
	}

	return nil
}
