package afsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Audio from somewhere other than a sound card.
 *
 * Description:	.WAV files are used for testing and for decoding
 *		recordings.  Raw signed 16 bit little endian samples can
 *		be piped in on stdin, e.g.
 *
 *			arecord -t raw -f S16_LE -r 48000 -c 1 | samoyed-afsk -
 *
 *		Only the first channel of a stereo file is used.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSource reads a .WAV file.  It is an AudioSource.
type WAVSource struct {
	file     *os.File
	decoder  *wav.Decoder
	pcm      *audio.IntBuffer
	out      []float32
	channels int
	depth    int
	rate     int
}

func OpenWAVSource(path string, framesPerBuffer int) (*WAVSource, error) {
	var f, err = os.Open(path)
	if err != nil {
		return nil, err
	}

	var d = wav.NewDecoder(f)
	if !d.IsValidFile() {
		f.Close() //nolint:errcheck
		return nil, fmt.Errorf("%s: not a valid WAV file", path)
	}

	var format = d.Format()
	var depth = int(d.BitDepth)

	if format.NumChannels < 1 || (depth != 8 && depth != 16 && depth != 24 && depth != 32) {
		f.Close() //nolint:errcheck
		return nil, fmt.Errorf("%s: unsupported WAV format, %d channels, %d bits per sample", path, format.NumChannels, depth)
	}

	return &WAVSource{
		file:    f,
		decoder: d,
		pcm: &audio.IntBuffer{
			Format:         format,
			Data:           make([]int, framesPerBuffer*format.NumChannels),
			SourceBitDepth: depth,
		},
		out:      make([]float32, 0, framesPerBuffer),
		channels: format.NumChannels,
		depth:    depth,
		rate:     format.SampleRate,
	}, nil
}

func (w *WAVSource) SampleRate() int { return w.rate }
func (w *WAVSource) Paced() bool     { return false }
func (w *WAVSource) Close() error    { return w.file.Close() }

func (w *WAVSource) Read() ([]float32, error) {
	var n, err = w.decoder.PCMBuffer(w.pcm)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	if n == 0 {
		return nil, io.EOF
	}

	w.out = w.out[:0]

	for i := 0; i+w.channels <= n; i += w.channels {
		w.out = append(w.out, normalizeSample(w.pcm.Data[i], w.depth))
	}

	return w.out, nil
}

// normalizeSample scales an integer PCM sample to -1..+1.
func normalizeSample(v int, depth int) float32 {
	if depth == 8 {
		// 8 bit WAV is unsigned.
		return float32(v-128) / 128.0
	}

	return float32(v) / float32(int(1)<<(depth-1))
}

// RawSource reads signed 16 bit little endian mono samples, e.g. from stdin.
type RawSource struct {
	r    io.Reader
	buf  []byte
	raw  []int16
	out  []float32
	rate int
}

func NewRawSource(r io.Reader, sampleRate int, framesPerBuffer int) *RawSource {
	return &RawSource{
		r:    r,
		buf:  make([]byte, 2*framesPerBuffer),
		raw:  make([]int16, framesPerBuffer),
		out:  make([]float32, framesPerBuffer),
		rate: sampleRate,
	}
}

func (s *RawSource) SampleRate() int { return s.rate }
func (s *RawSource) Paced() bool     { return false }

func (s *RawSource) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}

	return nil
}

func (s *RawSource) Read() ([]float32, error) {
	var n, err = io.ReadFull(s.r, s.buf)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}

	if err != nil {
		return nil, err
	}

	var count = n / 2
	if count == 0 {
		return nil, io.EOF
	}

	if _, decodeErr := binary.Decode(s.buf[:2*count], binary.LittleEndian, s.raw[:count]); decodeErr != nil {
		return nil, decodeErr
	}

	for i := range count {
		s.out[i] = float32(s.raw[i]) / 32768.0
	}

	return s.out[:count], nil
}

// WAVWriter writes mono 16 bit samples to a .WAV file.  It is an AudioOutput.
type WAVWriter struct {
	file    *os.File
	encoder *wav.Encoder
	rate    int
}

func CreateWAVWriter(path string, sampleRate int) (*WAVWriter, error) {
	var f, err = os.Create(path)
	if err != nil {
		return nil, err
	}

	return &WAVWriter{
		file:    f,
		encoder: wav.NewEncoder(f, sampleRate, 16, 1, 1),
		rate:    sampleRate,
	}, nil
}

func (w *WAVWriter) SampleRate() int { return w.rate }

func (w *WAVWriter) Write(samples []float32) error {
	var data = make([]int, len(samples))

	for i, s := range samples {
		var v = int(s * 32767)
		data[i] = max(-32768, min(32767, v))
	}

	return w.encoder.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: w.rate},
		Data:           data,
		SourceBitDepth: 16,
	})
}

// Close finishes the header and closes the file.
func (w *WAVWriter) Close() error {
	var err = w.encoder.Close()
	if closeErr := w.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	return err
}
