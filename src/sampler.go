package afsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Slice a continuous audio stream into bit windows.
 *
 * Description:	There is no clock recovery.  Every floor(rate/baud)
 *		samples is one bit, starting from the first sample we
 *		ever saw.  Samples left over at the end of a chunk are
 *		kept until the next chunk completes the window, so the
 *		way the stream is chopped into chunks never changes the
 *		bits that come out.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"iter"
)

var ErrBadBaud = errors.New("baud rate must be positive and no more than the sample rate")

// BitObservation is passed to the observer for every bit produced.
type BitObservation struct {
	Index uint64 // Count of bits produced before this one.
	ToneMeasurement
}

type BitSampler struct {
	detector      *ToneDetector
	samplesPerBit int

	pending []float32
	bits    uint64

	// Observer, if set, sees every bit after it has been decided.
	// It can't change anything.
	Observer func(BitObservation)
}

/*------------------------------------------------------------------
 *
 * Name:        NewBitSampler
 *
 * Purpose:     Set up a sampler for the detector's sample rate.
 *
 * Inputs:	detector	- Tone decision parameters.
 *
 *		baud		- Bits per second.  Must leave at least
 *				  one sample per bit.
 *
 *----------------------------------------------------------------*/

func NewBitSampler(detector *ToneDetector, baud int) (*BitSampler, error) {
	if baud <= 0 || detector.SampleRate < baud {
		return nil, fmt.Errorf("%w: %d baud at %d samples/sec", ErrBadBaud, baud, detector.SampleRate)
	}

	var spb = detector.SampleRate / baud

	return &BitSampler{
		detector:      detector,
		samplesPerBit: spb,
		pending:       make([]float32, 0, 4*spb),
	}, nil
}

func (s *BitSampler) SamplesPerBit() int {
	return s.samplesPerBit
}

// Pending is the number of samples waiting for a full window.
func (s *BitSampler) Pending() int {
	return len(s.pending)
}

// Feed appends samples and yields a bit for each complete window.
// Windows are taken only as the sequence is consumed.  Anything not
// consumed, including a trailing partial window, stays for next time.
func (s *BitSampler) Feed(samples []float32) iter.Seq[Bit] {
	s.pending = append(s.pending, samples...)

	return func(yield func(Bit) bool) {
		var used = 0

		defer func() {
			// Shift the remainder down to reuse the backing array.
			var n = copy(s.pending, s.pending[used:])
			s.pending = s.pending[:n]
		}()

		for len(s.pending)-used >= s.samplesPerBit {
			var window = s.pending[used : used+s.samplesPerBit]
			var m = s.detector.Measure(window)
			used += s.samplesPerBit

			if s.Observer != nil {
				s.Observer(BitObservation{Index: s.bits, ToneMeasurement: m})
			}
			s.bits++

			if !yield(m.Bit) {
				return
			}
		}
	}
}
