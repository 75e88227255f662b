package afsk

/*------------------------------------------------------------------
 *
 * Purpose:     Convert bits to AFSK for writing to .WAV sound file
 *		or a sound device.
 *
 * Description:	Direct digital synthesis.  A 32 bit phase accumulator
 *		is advanced by a different amount for mark and space so
 *		the phase is continuous across bit changes.
 *
 *		Bits rarely come out to a whole number of samples.
 *		The fraction is carried over to the next bit so the
 *		average bit length is exactly right.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"math"
	"time"
)

const TICKS_PER_CYCLE = 256.0 * 256.0 * 256.0 * 256.0

type ToneGenerator struct {
	sampleRate    int
	samplesPerBit float64
	markStep      uint32
	spaceStep     uint32
	amplitude     float64

	phase     uint32  // Phase accumulator.
	bitLenAcc float64 // Fractional samples carried between bits.
}

/*------------------------------------------------------------------
 *
 * Name:        NewToneGenerator
 *
 * Inputs:	amplitude	- Signal amplitude on scale of 0 .. 100.
 *				  100% uses the full sample range.
 *
 *----------------------------------------------------------------*/

func NewToneGenerator(sampleRate int, baud int, markFreq, spaceFreq float64, amplitude int) (*ToneGenerator, error) {
	if baud <= 0 || baud > sampleRate {
		return nil, fmt.Errorf("%w: %d baud at %d samples/sec", ErrBadBaud, baud, sampleRate)
	}

	if amplitude < 0 || amplitude > 100 {
		return nil, fmt.Errorf("amplitude %d must be 0 to 100", amplitude)
	}

	var step = func(f float64) uint32 {
		return uint32(f*TICKS_PER_CYCLE/float64(sampleRate) + 0.5)
	}

	return &ToneGenerator{
		sampleRate:    sampleRate,
		samplesPerBit: float64(sampleRate) / float64(baud),
		markStep:      step(markFreq),
		spaceStep:     step(spaceFreq),
		amplitude:     float64(amplitude) / 100.0,
	}, nil
}

func (g *ToneGenerator) SampleRate() int {
	return g.sampleRate
}

// PutBit appends the samples for one bit to dst.
func (g *ToneGenerator) PutBit(dst []float32, b Bit) []float32 {
	var change = g.markStep
	if b == SpaceBit {
		change = g.spaceStep
	}

	g.bitLenAcc += g.samplesPerBit
	var n = int(g.bitLenAcc)
	g.bitLenAcc -= float64(n)

	for range n {
		g.phase += change
		var sam = g.amplitude * math.Sin(2*math.Pi*float64(g.phase)/TICKS_PER_CYCLE)
		dst = append(dst, float32(sam))
	}

	return dst
}

func (g *ToneGenerator) PutBits(dst []float32, bits []Bit) []float32 {
	for _, b := range bits {
		dst = g.PutBit(dst, b)
	}

	return dst
}

// PutQuiet appends silence.  The next tone starts at zero phase.
func (g *ToneGenerator) PutQuiet(dst []float32, d time.Duration) []float32 {
	var n = int(d.Seconds() * float64(g.sampleRate))

	for range n {
		dst = append(dst, 0)
	}

	g.phase = 0

	return dst
}

/*------------------------------------------------------------------
 *
 * Name:        EncodeFrame
 *
 * Purpose:     Build the bits for one transmission.
 *
 * Inputs:	payload		- Message text.
 *
 *		callsign	- Appended to the payload, as the KB2040
 *				  transmitter does.  May be empty.
 *
 * Returns:	preamble, payload and callsign MSB first, end marker.
 *
 *----------------------------------------------------------------*/

func EncodeFrame(cfg FramerConfig, payload []byte, callsign string) []Bit {
	var data = make([]byte, 0, len(payload)+len(callsign))
	data = append(data, payload...)
	data = append(data, callsign...)

	var bits = make([]Bit, 0, len(cfg.Preamble)+8*len(data)+len(cfg.EndMarker))
	bits = append(bits, cfg.Preamble...)
	bits = append(bits, BytesToBits(data)...)
	bits = append(bits, cfg.EndMarker...)

	return bits
}
