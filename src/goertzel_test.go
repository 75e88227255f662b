package afsk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func sine(freq float64, n int, sampleRate int, amplitude float64) []float32 {
	var out = make([]float32, n)
	for i := range out {
		out[i] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}

	return out
}

// modulate produces the audio for bits, padded with a few mark bits on
// each side so the frame doesn't start on the very first sample.
func modulate(t *testing.T, bits []Bit, sampleRate int, baud int) []float32 {
	t.Helper()

	var gen, err = NewToneGenerator(sampleRate, baud, DEFAULT_MARK_FREQ, DEFAULT_SPACE_FREQ, 50)
	require.NoError(t, err)

	var pad = make([]Bit, 8)

	var samples = gen.PutBits(nil, pad)
	samples = gen.PutBits(samples, bits)
	samples = gen.PutBits(samples, pad)

	return samples
}

func TestGoertzelBin(t *testing.T) {
	// 300 baud at 48 kHz is 160 samples per bit.
	assert.InDelta(t, 4.0, goertzelBin(160, 1200, 48000, false), 0)
	assert.InDelta(t, 8.0, goertzelBin(160, 2200, 48000, false), 0)

	assert.InDelta(t, 4.0, goertzelBin(160, 1200, 48000, true), 1e-12)
	assert.InDelta(t, 7.3333, goertzelBin(160, 2200, 48000, true), 1e-4)
}

func TestDetectToneMark(t *testing.T) {
	var window = sine(1200, 160, 48000, 0.5)

	assert.Equal(t, MarkBit, DetectTone(window, 1200, 2200, 48000))
}

func TestDetectToneSpace(t *testing.T) {
	var window = sine(2200, 160, 48000, 0.5)

	assert.Equal(t, SpaceBit, DetectTone(window, 1200, 2200, 48000))
}

func TestDetectToneTie(t *testing.T) {
	// Silence has no power at either frequency.
	var window = make([]float32, 160)

	assert.Equal(t, SpaceBit, DetectTone(window, 1200, 2200, 48000))
	assert.Equal(t, SpaceBit, decide(1.5, 1.5))
	assert.Equal(t, MarkBit, decide(1.6, 1.5))
}

func TestToneDetectorExactBins1200Baud(t *testing.T) {
	var d = &ToneDetector{SampleRate: 48000, MarkFreq: 1200, SpaceFreq: 2200, ExactBins: true}

	assert.Equal(t, MarkBit, d.Detect(sine(1200, 40, 48000, 0.5)))
	assert.Equal(t, SpaceBit, d.Detect(sine(2200, 40, 48000, 0.5)))
}

func TestToneDetectorMeasure(t *testing.T) {
	var d = &ToneDetector{SampleRate: 48000, MarkFreq: 1200, SpaceFreq: 2200}
	var m = d.Measure(sine(1200, 160, 48000, 0.5))

	assert.Greater(t, m.MarkPower, m.SpacePower)
	assert.Equal(t, MarkBit, m.Bit)
}

func TestGainNeverChangesDecision(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var window = rapid.SliceOfN(rapid.Float32Range(-1, 1), 160, 160).Draw(t, "window")
		var gain = rapid.Float64Range(0.01, 100).Draw(t, "gain")

		var plain = &ToneDetector{SampleRate: 48000, MarkFreq: 1200, SpaceFreq: 2200}
		var scaled = &ToneDetector{SampleRate: 48000, MarkFreq: 1200, SpaceFreq: 2200, Gain: gain}

		var a = plain.Measure(window)
		var b = scaled.Measure(window)

		// Ratios are preserved, so only a near tie could flip.
		if math.Abs(a.MarkPower-a.SpacePower) > 1e-6*(a.MarkPower+a.SpacePower) {
			assert.Equal(t, a.Bit, b.Bit)
		}
	})
}

func TestBitString(t *testing.T) {
	assert.Equal(t, "0", MarkBit.String())
	assert.Equal(t, "1", SpaceBit.String())
}
