package afsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Decide which of two AFSK tones is present in one bit
 *		window of audio.
 *
 * Description: This uses the Goertzel Algorithm, run once for the mark
 *		frequency and once for the space frequency, over exactly
 *		one bit period of samples.  Whichever has more energy wins.
 *
 * References:	http://eetimes.com/design/embedded/4024443/The-Goertzel-Algorithm
 *
 *---------------------------------------------------------------*/

import "math"

// Bit is one demodulated symbol.  Mark is 0 and space is 1.
type Bit uint8

const (
	MarkBit  Bit = 0
	SpaceBit Bit = 1
)

func (b Bit) String() string {
	if b == MarkBit {
		return "0"
	}

	return "1"
}

/*------------------------------------------------------------------
 *
 * Name:        goertzelBin
 *
 * Purpose:     Bin index for a frequency over an N sample window.
 *
 * Description:	The classic form is round(0.5 + N*f/rate).  Rounding is
 *		half to even so that a tone landing on exactly x.5 stays on
 *		the lower integer bin.  For 1200 Hz in 160 samples at
 *		48 kHz (300 baud) that is bin 4, where the tone has all of
 *		its energy.  Rounding half away from zero would pick bin 5,
 *		which is orthogonal to it.
 *
 *		With exact set, k is not rounded at all.  That keeps the
 *		filter centered on the tone, which is what the DTMF decoder
 *		does, and is needed when the window is only a cycle or two
 *		long (1200 baud).
 *
 *----------------------------------------------------------------*/

func goertzelBin(n int, freq float64, sampleRate int, exact bool) float64 {
	var k = float64(n) * freq / float64(sampleRate)
	if exact {
		return k
	}

	return math.RoundToEven(0.5 + k)
}

// goertzelPower runs the second order recursion over the whole window
// and returns the squared magnitude at bin k.
func goertzelPower(window []float32, k float64, gain float64) float64 {
	var n = len(window)
	if n == 0 {
		return 0
	}

	var omega = 2.0 * math.Pi * k / float64(n)
	var coeff = 2.0 * math.Cos(omega)

	var sPrev, sPrev2 float64

	for _, x := range window {
		var s = float64(x)*gain + coeff*sPrev - sPrev2
		sPrev2 = sPrev
		sPrev = s
	}

	return sPrev2*sPrev2 + sPrev*sPrev - coeff*sPrev*sPrev2
}

// Goertzel returns the energy at freq in window using the rounded bin index.
func Goertzel(window []float32, freq float64, sampleRate int) float64 {
	return goertzelPower(window, goertzelBin(len(window), freq, sampleRate, false), 1.0)
}

// DetectTone returns SpaceBit when the space tone has at least as much
// energy as the mark tone, MarkBit otherwise.  Ties go to SpaceBit.
func DetectTone(window []float32, markFreq, spaceFreq float64, sampleRate int) Bit {
	return decide(Goertzel(window, markFreq, sampleRate), Goertzel(window, spaceFreq, sampleRate))
}

func decide(markPower, spacePower float64) Bit {
	if markPower <= spacePower {
		return SpaceBit
	}

	return MarkBit
}

// ToneMeasurement is what the detector saw in one window.
type ToneMeasurement struct {
	MarkPower  float64
	SpacePower float64
	Bit        Bit
}

// ToneDetector holds the fixed parameters of the two-tone decision.
//
// Gain scales samples before the transform.  It changes absolute power
// but never the decision, so it only matters to whoever looks at the
// powers.
type ToneDetector struct {
	SampleRate int
	MarkFreq   float64
	SpaceFreq  float64
	Gain       float64
	ExactBins  bool
}

func (d *ToneDetector) gain() float64 {
	if d.Gain == 0 {
		return 1.0
	}

	return d.Gain
}

// Measure computes both tone powers for the window.
func (d *ToneDetector) Measure(window []float32) ToneMeasurement {
	var n = len(window)
	var markPower = goertzelPower(window, goertzelBin(n, d.MarkFreq, d.SampleRate, d.ExactBins), d.gain())
	var spacePower = goertzelPower(window, goertzelBin(n, d.SpaceFreq, d.SampleRate, d.ExactBins), d.gain())

	return ToneMeasurement{
		MarkPower:  markPower,
		SpacePower: spacePower,
		Bit:        decide(markPower, spacePower),
	}
}

// Detect returns the bit for one window.
func (d *ToneDetector) Detect(window []float32) Bit {
	return d.Measure(window).Bit
}
