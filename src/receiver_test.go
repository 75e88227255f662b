package afsk

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink remembers what it was given.
type recordingSink struct {
	name string
	err  error

	mu     sync.Mutex
	texts  []string
	closed bool
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Deliver(msg Message, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.texts = append(s.texts, msg.Text())

	return s.err
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	return nil
}

// chunked splits samples into reads of n, like a file source would.
func chunked(samples []float32, n int) []fakeRead {
	var reads []fakeRead

	for len(samples) > 0 {
		var k = min(n, len(samples))
		reads = append(reads, fakeRead{samples: samples[:k]})
		samples = samples[k:]
	}

	return reads
}

func frameAudio(t *testing.T, baud int, texts ...string) []float32 {
	t.Helper()

	var bits []Bit
	for _, text := range texts {
		bits = append(bits, EncodeFrame(DefaultFramerConfig(), []byte(text), "")...)
		bits = append(bits, make([]Bit, 16)...)
	}

	return modulate(t, bits, 48000, baud)
}

func TestDemodulatorProcess(t *testing.T) {
	var d, err = NewDemodulator(DemodConfig{
		Detector: testDetector(),
		Baud:     300,
		Framing:  DefaultFramerConfig(),
		Offline:  true,
	}, quietLogger(), nil)
	require.NoError(t, err)

	assert.Equal(t, time.Second/300, d.BitTime())

	var got []string
	for _, r := range chunked(frameAudio(t, 300, "hi", "hello world"), 999) {
		for _, m := range d.Process(r.samples) {
			got = append(got, m.Text())
		}
	}

	assert.Equal(t, []string{"hi", "hello world"}, got)
	assert.Equal(t, SearchingPreamble, d.State())
}

func TestDemodulatorSampleClockTimeout(t *testing.T) {
	var m = NewMetrics()

	var d, err = NewDemodulator(DemodConfig{
		Detector: testDetector(),
		Baud:     300,
		Framing:  DefaultFramerConfig(),
		Offline:  true,
	}, quietLogger(), m)
	require.NoError(t, err)

	// A preamble then six seconds of mark tone.  Processing takes
	// far less than that but the timeout still fires.
	var bits = append(mustBits(t, "101010101010"), make([]Bit, 6*300)...)
	assert.Empty(t, d.Process(modulate(t, bits, 48000, 300)))

	assert.InDelta(t, 1.0, testutil.ToFloat64(m.PreamblesFound), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.FramingTimeouts), 0)
	assert.Equal(t, SearchingPreamble, d.State())
}

func TestDemodulatorRunStopsWhenQueueCloses(t *testing.T) {
	var d, err = NewDemodulator(DemodConfig{
		Detector:     testDetector(),
		Baud:         300,
		Framing:      DefaultFramerConfig(),
		Offline:      true,
		PollInterval: 10 * time.Millisecond,
	}, quietLogger(), nil)
	require.NoError(t, err)

	var in = make(chan Chunk, 100)
	var out = make(chan Message, 10)

	for i, r := range chunked(frameAudio(t, 300, "hi"), 512) {
		in <- Chunk{Seq: uint64(i), Samples: r.samples}
	}
	close(in)

	require.NoError(t, d.Run(context.Background(), in, out))
	require.Len(t, out, 1)
	assert.Equal(t, "hi", (<-out).Text())
}

func TestDemodulatorRunCancel(t *testing.T) {
	var d, err = NewDemodulator(DemodConfig{
		Detector:     testDetector(),
		Baud:         300,
		Framing:      DefaultFramerConfig(),
		PollInterval: 5 * time.Millisecond,
	}, quietLogger(), nil)
	require.NoError(t, err)

	var ctx, cancel = context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	// Nothing ever arrives.
	require.NoError(t, d.Run(ctx, make(chan Chunk), make(chan Message)))
}

func testReceiverConfig() *Config {
	var cfg = DefaultConfig()
	cfg.Queues.PollInterval = 10 * time.Millisecond

	return cfg
}

func TestReceiverDecodesOnce(t *testing.T) {
	var src = newFakeSource(false, chunked(frameAudio(t, 300, "hi"), 256)...)
	var sink = &recordingSink{name: "rec"}
	var m = NewMetrics()

	var r, err = NewReceiver(testReceiverConfig(), src, []Sink{sink}, quietLogger(), m)
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, []string{"hi"}, sink.texts)
	assert.True(t, sink.closed)
	assert.Equal(t, uint64(0), r.Dropped())
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.MessagesDecoded), 0)
	assert.Positive(t, testutil.ToFloat64(m.ChunksCaptured))
}

func TestReceiverEmptyAndZeroBytePayloads(t *testing.T) {
	var src = newFakeSource(false, chunked(frameAudio(t, 300, "", "a\x00b", ""), 777)...)
	var sink = &recordingSink{name: "rec"}

	var r, err = NewReceiver(testReceiverConfig(), src, []Sink{sink}, quietLogger(), nil)
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, []string{"", "a\x00b", ""}, sink.texts)
}

func TestReceiver1200BaudExactBins(t *testing.T) {
	var cfg = testReceiverConfig()
	cfg.Modem.Baud = 1200
	cfg.Modem.ExactBins = true

	var src = newFakeSource(false, chunked(frameAudio(t, 1200, "hi", "fast"), 1000)...)
	var sink = &recordingSink{name: "rec"}

	var r, err = NewReceiver(cfg, src, []Sink{sink}, quietLogger(), nil)
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, []string{"hi", "fast"}, sink.texts)
}

func TestReceiverUsesSourceSampleRate(t *testing.T) {
	var cfg = testReceiverConfig()
	cfg.Audio.SampleRate = 8000

	var src = newFakeSource(false, chunked(frameAudio(t, 300, "rate"), 4096)...)
	var sink = &recordingSink{name: "rec"}

	var r, err = NewReceiver(cfg, src, []Sink{sink}, quietLogger(), nil)
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, []string{"rate"}, sink.texts)
}

func TestReceiverSinkErrorsAreCounted(t *testing.T) {
	var bad = &recordingSink{name: "bad", err: errors.New("disk full")}
	var good = &recordingSink{name: "good"}
	var m = NewMetrics()

	var src = newFakeSource(false, chunked(frameAudio(t, 300, "one", "two"), 2048)...)

	var r, err = NewReceiver(testReceiverConfig(), src, []Sink{bad, good}, quietLogger(), m)
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, []string{"one", "two"}, good.texts)
	assert.Equal(t, []string{"one", "two"}, bad.texts)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.SinkErrors.WithLabelValues("bad")), 0)
	assert.InDelta(t, 0.0, testutil.ToFloat64(m.SinkErrors.WithLabelValues("good")), 0)
}

func TestReceiverDeviceFailureStopsEverything(t *testing.T) {
	var boom = errors.New("device went away")
	var src = newFakeSource(true, fakeRead{samples: make([]float32, 256)}, fakeRead{err: boom})
	var sink = &recordingSink{name: "rec"}

	var r, err = NewReceiver(testReceiverConfig(), src, []Sink{sink}, quietLogger(), nil)
	require.NoError(t, err)

	err = r.Run(context.Background())
	require.ErrorIs(t, err, ErrAudioDevice)
	require.ErrorIs(t, err, boom)
	assert.True(t, sink.closed)
}

func TestReceiverCancel(t *testing.T) {
	var r, err = NewReceiver(testReceiverConfig(), endlessSource{}, nil, quietLogger(), nil)
	require.NoError(t, err)

	var ctx, cancel = context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, r.Run(ctx))
}

// endlessSource produces silence at roughly real time.
type endlessSource struct{}

func (endlessSource) Read() ([]float32, error) {
	time.Sleep(time.Millisecond)
	return make([]float32, 48), nil
}

func (endlessSource) SampleRate() int { return 48000 }
func (endlessSource) Paced() bool     { return true }
func (endlessSource) Close() error    { return nil }

func TestOpenSinks(t *testing.T) {
	var cfg = DefaultConfig()
	cfg.Log.File = filepath.Join(t.TempDir(), "rx.log")

	var sinks, err = OpenSinks(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	require.Len(t, sinks, 2)
	assert.Equal(t, "console", sinks[0].Name())
	assert.Equal(t, "datalog", sinks[1].Name())

	for _, s := range sinks {
		require.NoError(t, s.Close())
	}

	cfg.Log.TimestampFormat = "%"
	_, err = OpenSinks(context.Background(), cfg, quietLogger())
	require.ErrorIs(t, err, ErrConfig)
}

func TestOpenAudioSourceWAV(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "in.wav")
	var w, err = CreateWAVWriter(path, 22050)
	require.NoError(t, err)
	require.NoError(t, w.Write(make([]float32, 100)))
	require.NoError(t, w.Close())

	var cfg = DefaultConfig()
	cfg.Audio.Input = path

	var src AudioSource
	src, err = OpenAudioSource(cfg)
	require.NoError(t, err)
	defer src.Close() //nolint:errcheck

	assert.Equal(t, 22050, src.SampleRate())
	assert.False(t, src.Paced())
}
