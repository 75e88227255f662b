package afsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Find messages in the demodulated bit stream.
 *
 * Description:	A transmission looks like this:
 *
 *			preamble	101010101010
 *			payload		8 bits per character, MSB first
 *			end marker	11111111
 *
 *		We start out searching for the preamble.  Once found,
 *		bits are collected until the end marker shows up at the
 *		tail or too much time goes by.  There is no way to get
 *		back in sync part way through a frame so a timeout
 *		throws away everything collected.
 *
 *		There are two ways of handling a preamble that appears
 *		again while collecting.  By default it is just more
 *		payload bits (only the tail is ever compared).  With
 *		RestartOnPreamble, the old partial message is discarded
 *		and the timer starts over from the new preamble.
 *
 *		The end marker is all ones, so when the last character
 *		ends with one bits the marker is found early, before the
 *		character is complete.  With CompleteLastChar, the missing
 *		bits are taken from the marker if that makes a 7 bit
 *		ASCII character.  Otherwise the partial byte is dropped.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

const DefaultPreamble = "101010101010"
const DefaultEndMarker = "11111111"
const DefaultEndTimeout = 5 * time.Second

var ErrBadPattern = errors.New("bit pattern must be a non-empty string of 0 and 1")

// ParseBits converts text like "1010" into bits.
func ParseBits(pattern string) ([]Bit, error) {
	if pattern == "" {
		return nil, ErrBadPattern
	}

	var bits = make([]Bit, 0, len(pattern))

	for i, c := range pattern {
		switch c {
		case '0':
			bits = append(bits, MarkBit)
		case '1':
			bits = append(bits, SpaceBit)
		default:
			return nil, fmt.Errorf("%w: %q at position %d", ErrBadPattern, c, i)
		}
	}

	return bits, nil
}

// FormatBits is the inverse of ParseBits.
func FormatBits(bits []Bit) string {
	var b = make([]byte, len(bits))
	for i, bit := range bits {
		b[i] = '0' + byte(bit)
	}

	return string(b)
}

/*------------------------------------------------------------------
 *
 * Name:        BitsToBytes
 *
 * Purpose:     Group bits into bytes, most significant bit first.
 *
 * Description:	Anything left over that doesn't make a whole byte is
 *		dropped.  It is never carried into another message.
 *
 *----------------------------------------------------------------*/

func BitsToBytes(bits []Bit) []byte {
	var out = make([]byte, 0, len(bits)/8)

	for i := 0; i+8 <= len(bits); i += 8 {
		var v byte
		for _, b := range bits[i : i+8] {
			v = v<<1 | byte(b&1)
		}
		out = append(out, v)
	}

	return out
}

// BytesToBits is the transmit side of BitsToBytes.
func BytesToBits(data []byte) []Bit {
	var out = make([]Bit, 0, len(data)*8)

	for _, v := range data {
		for i := 7; i >= 0; i-- {
			out = append(out, Bit((v>>i)&1))
		}
	}

	return out
}

// Message is one decoded transmission.
type Message struct {
	Payload []byte
	Start   time.Time // When the preamble was found.
	End     time.Time // When the end marker was found.
}

// Text is the payload as an ASCII string.
func (m Message) Text() string {
	return string(m.Payload)
}

type FramerState int

const (
	SearchingPreamble FramerState = iota
	InMessage
)

func (s FramerState) String() string {
	switch s {
	case SearchingPreamble:
		return "searching"
	case InMessage:
		return "in-message"
	default:
		return fmt.Sprintf("FramerState(%d)", int(s))
	}
}

type FrameEvent int

const (
	EventNone     FrameEvent = iota
	EventPreamble            // Preamble found, now collecting.
	EventMessage             // End marker found, message complete.
	EventTimeout             // Gave up waiting for end marker.
	EventRestart             // Preamble seen again, partial message dropped.
)

func (e FrameEvent) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventPreamble:
		return "preamble"
	case EventMessage:
		return "message"
	case EventTimeout:
		return "timeout"
	case EventRestart:
		return "restart"
	default:
		return fmt.Sprintf("FrameEvent(%d)", int(e))
	}
}

type FramerConfig struct {
	Preamble          []Bit
	EndMarker         []Bit
	EndTimeout        time.Duration
	RestartOnPreamble bool

	// CompleteLastChar fills a trailing partial byte out from the end
	// marker when the result is below 0x7f.  Off, a payload of n bits
	// is always n/8 bytes.
	CompleteLastChar bool
}

// DefaultFramerConfig matches the KB2040 transmitter.
func DefaultFramerConfig() FramerConfig {
	var p, _ = ParseBits(DefaultPreamble)
	var e, _ = ParseBits(DefaultEndMarker)

	return FramerConfig{
		Preamble:         p,
		EndMarker:        e,
		EndTimeout:       DefaultEndTimeout,
		CompleteLastChar: true,
	}
}

type Framer struct {
	cfg   FramerConfig
	clock Clock

	state FramerState
	buf   []Bit
	t0    time.Time
}

func NewFramer(cfg FramerConfig, clock Clock) (*Framer, error) {
	if len(cfg.Preamble) == 0 || len(cfg.EndMarker) == 0 {
		return nil, ErrBadPattern
	}

	if cfg.EndTimeout <= 0 {
		return nil, fmt.Errorf("end timeout must be positive, got %s", cfg.EndTimeout)
	}

	if clock == nil {
		clock = WallClock{}
	}

	return &Framer{
		cfg:   cfg,
		clock: clock,
		state: SearchingPreamble,
		buf:   make([]Bit, 0, 256),
	}, nil
}

func (f *Framer) State() FramerState {
	return f.state
}

// Buffered is the number of bits currently held, preamble included.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

func (f *Framer) tailIs(pattern []Bit) bool {
	return len(f.buf) >= len(pattern) && slices.Equal(f.buf[len(f.buf)-len(pattern):], pattern)
}

func (f *Framer) reset() {
	f.state = SearchingPreamble
	f.buf = f.buf[:0]
	f.t0 = time.Time{}
}

func (f *Framer) startMessage() {
	f.state = InMessage
	f.buf = append(f.buf[:0], f.cfg.Preamble...)
	f.t0 = f.clock.Now()
}

// payloadBits is everything between the preamble and the end marker,
// which has just been found at the tail.
func (f *Framer) payloadBits() []Bit {
	var p = len(f.cfg.Preamble)
	var e = len(f.cfg.EndMarker)
	var bits = f.buf[p : len(f.buf)-e]

	var r = len(bits) % 8
	if !f.cfg.CompleteLastChar || r == 0 || 8-r > e {
		return bits
	}

	var completed = f.buf[p : len(f.buf)-e+8-r]
	if last := BitsToBytes(completed[len(completed)-8:])[0]; last < 0x7f {
		return completed
	}

	return bits
}

/*------------------------------------------------------------------
 *
 * Name:        Push
 *
 * Purpose:     Advance the state machine by one bit.
 *
 * Returns:	What happened.  The Message is only filled in for
 *		EventMessage.
 *
 *----------------------------------------------------------------*/

func (f *Framer) Push(bit Bit) (Message, FrameEvent) {
	f.buf = append(f.buf, bit)

	if f.state == SearchingPreamble {
		if f.tailIs(f.cfg.Preamble) {
			f.startMessage()
			return Message{}, EventPreamble
		}

		// Only the tail is ever compared so there's no point keeping more.
		if len(f.buf) > len(f.cfg.Preamble) {
			var n = copy(f.buf, f.buf[len(f.buf)-len(f.cfg.Preamble):])
			f.buf = f.buf[:n]
		}

		return Message{}, EventNone
	}

	var p = len(f.cfg.Preamble)
	var e = len(f.cfg.EndMarker)

	if len(f.buf) >= p+e && f.tailIs(f.cfg.EndMarker) {
		var msg = Message{
			Payload: BitsToBytes(f.payloadBits()),
			Start:   f.t0,
			End:     f.clock.Now(),
		}
		f.reset()

		return msg, EventMessage
	}

	if f.clock.Now().Sub(f.t0) > f.cfg.EndTimeout {
		f.reset()
		return Message{}, EventTimeout
	}

	// The preamble itself is already in the buffer, so a restart needs a
	// match that isn't just the one we started with.
	if f.cfg.RestartOnPreamble && len(f.buf) > p && f.tailIs(f.cfg.Preamble) {
		f.startMessage()
		return Message{}, EventRestart
	}

	return Message{}, EventNone
}

// Clock is where the framer gets the time for its timeout.
type Clock interface {
	Now() time.Time
}

type WallClock struct{}

func (WallClock) Now() time.Time { return time.Now() }

// SampleClock measures time by the audio that has gone by rather than
// the wall.  Decoding a file runs much faster than real time and the
// timeout should still mean the same amount of signal.
type SampleClock struct {
	now time.Time
}

func NewSampleClock(start time.Time) *SampleClock {
	return &SampleClock{now: start}
}

func (c *SampleClock) Now() time.Time { return c.now }

func (c *SampleClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
