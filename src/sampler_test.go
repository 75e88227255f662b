package afsk

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func testDetector() *ToneDetector {
	return &ToneDetector{SampleRate: 48000, MarkFreq: DEFAULT_MARK_FREQ, SpaceFreq: DEFAULT_SPACE_FREQ}
}

func TestNewBitSamplerBadBaud(t *testing.T) {
	var _, err = NewBitSampler(testDetector(), 0)
	require.ErrorIs(t, err, ErrBadBaud)

	_, err = NewBitSampler(testDetector(), 96000)
	require.ErrorIs(t, err, ErrBadBaud)
}

func TestSamplesPerBit(t *testing.T) {
	var s, err = NewBitSampler(testDetector(), 300)
	require.NoError(t, err)
	assert.Equal(t, 160, s.SamplesPerBit())

	var d = testDetector()
	d.SampleRate = 44100
	s, err = NewBitSampler(d, 300)
	require.NoError(t, err)
	assert.Equal(t, 147, s.SamplesPerBit())
}

func TestFeedKeepsPartialWindow(t *testing.T) {
	var s, err = NewBitSampler(testDetector(), 300)
	require.NoError(t, err)

	var tone = sine(2200, 320, 48000, 0.5)

	assert.Empty(t, slices.Collect(s.Feed(tone[:100])))
	assert.Equal(t, 100, s.Pending())

	assert.Equal(t, []Bit{SpaceBit}, slices.Collect(s.Feed(tone[100:170])))
	assert.Equal(t, 10, s.Pending())

	assert.Equal(t, []Bit{SpaceBit}, slices.Collect(s.Feed(tone[170:])))
	assert.Equal(t, 0, s.Pending())
}

func TestFeedStopEarly(t *testing.T) {
	var s, err = NewBitSampler(testDetector(), 300)
	require.NoError(t, err)

	var bits = []Bit{MarkBit, SpaceBit, MarkBit}
	var samples = modulate(t, bits, 48000, 300)

	var first Bit
	for b := range s.Feed(samples) {
		first = b
		break
	}

	assert.Equal(t, MarkBit, first)

	// The rest come out next time, in order.
	var rest = slices.Collect(s.Feed(nil))
	assert.Len(t, rest, len(samples)/160-1)
	assert.Equal(t, bits, rest[7:10])
}

func TestFeedObserver(t *testing.T) {
	var s, err = NewBitSampler(testDetector(), 300)
	require.NoError(t, err)

	var seen []BitObservation
	s.Observer = func(o BitObservation) { seen = append(seen, o) }

	var bits = slices.Collect(s.Feed(modulate(t, []Bit{SpaceBit, SpaceBit}, 48000, 300)))

	require.Len(t, seen, len(bits))

	for i, o := range seen {
		assert.Equal(t, uint64(i), o.Index)
		assert.Equal(t, bits[i], o.Bit)
	}
}

func TestFeedRoundTrip(t *testing.T) {
	var s, err = NewBitSampler(testDetector(), 300)
	require.NoError(t, err)

	var bits = BytesToBits([]byte("Hello, 0\x00\xff"))
	var got = slices.Collect(s.Feed(modulate(t, bits, 48000, 300)))

	assert.Equal(t, bits, got[8:8+len(bits)])
}

func TestFeedChunkingDoesNotMatter(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		var raw = rapid.SliceOfN(rapid.IntRange(0, 1), 1, 40).Draw(rt, "bits")
		var bits = make([]Bit, len(raw))
		for i, b := range raw {
			bits[i] = Bit(b)
		}

		var samples = modulate(t, bits, 48000, 300)

		var whole, _ = NewBitSampler(testDetector(), 300)
		var expected = slices.Collect(whole.Feed(samples))

		var chunked, _ = NewBitSampler(testDetector(), 300)
		var got []Bit

		for rest := samples; len(rest) > 0; {
			var n = rapid.IntRange(1, 500).Draw(rt, "chunk")
			n = min(n, len(rest))
			got = append(got, slices.Collect(chunked.Feed(rest[:n]))...)
			rest = rest[n:]
		}

		assert.Equal(rt, expected, got)
		assert.Equal(rt, whole.Pending(), chunked.Pending())
	})
}
