package afsk

/*------------------------------------------------------------------
 *
 * Purpose:   	KISS framing, shared by the network and pseudo terminal
 *		versions of the KISS interface.
 *
 * Description: The KISS TNC protocol is described in http://www.ka9q.net/papers/kiss.html
 *
 * 		Briefly, a frame is composed of
 *
 *			* FEND (0xC0)
 *			* Type indicator.  Channel in upper nybble,
 *			  command in lower nybble.
 *			* Contents - with special escape sequences so a 0xc0
 *				byte in the data is not taken as end of frame.
 *			* FEND
 *
 *		Our "frames" are the decoded message payloads, sent to the
 *		client as data frames on channel 0.  Existing KISS
 *		clients can then be pointed at the receiver without
 *		knowing anything about the modem.
 *
 *		Anything a client sends us is decoded and logged.  We are
 *		receive only so nothing else is done with it.
 *
 *---------------------------------------------------------------*/

import (
	"bytes"
	"errors"
	"fmt"
)

const KISS_CMD_DATA_FRAME = 0
const KISS_CMD_TXDELAY = 1
const KISS_CMD_PERSISTENCE = 2
const KISS_CMD_SLOTTIME = 3
const KISS_CMD_TXTAIL = 4
const KISS_CMD_FULLDUPLEX = 5
const KISS_CMD_SET_HARDWARE = 6
const KISS_CMD_END_KISS = 15

/*
 * Special characters used by SLIP protocol.
 */

const FEND = 0xC0
const FESC = 0xDB
const TFEND = 0xDC
const TFESC = 0xDD

const MAX_KISS_LEN = 2048 // The KISS protocol calls for at least 1024.

var ErrKISSFrame = errors.New("bad KISS frame")

/*-------------------------------------------------------------------
 *
 * Name:        KISSEncapsulate
 *
 * Purpose:     Wrap a data frame for sending to a client.
 *
 * Inputs:	channel	- Radio channel, 0..15.
 *
 *		cmd	- Command, usually KISS_CMD_DATA_FRAME.
 *
 *		data	- Frame contents.  This is "binary" data and
 *			  can contain any byte value.
 *
 * Returns:	FEND, type indicator, escaped data, FEND.
 *		Absolute max length is twice input plus 4.
 *
 *-----------------------------------------------------------------*/

func KISSEncapsulate(channel int, cmd byte, data []byte) []byte {
	var buf bytes.Buffer

	buf.Grow(len(data) + 4)
	buf.WriteByte(FEND)
	writeEscaped(&buf, byte(channel&0x0f)<<4|cmd&0x0f)

	for _, b := range data {
		writeEscaped(&buf, b)
	}

	buf.WriteByte(FEND)

	return buf.Bytes()
}

func writeEscaped(buf *bytes.Buffer, b byte) {
	switch b {
	case FEND:
		buf.WriteByte(FESC)
		buf.WriteByte(TFEND)
	case FESC:
		buf.WriteByte(FESC)
		buf.WriteByte(TFESC)
	default:
		buf.WriteByte(b)
	}
}

/*-------------------------------------------------------------------
 *
 * Name:        KISSUnwrap
 *
 * Purpose:     Extract original data from a KISS frame.
 *
 * Inputs:	in	- The KISS encoded representation.
 *			  The leading FEND is optional.
 *
 * Returns:	The type indicator byte followed by the data, with
 *		escapes and FENDs removed.
 *
 *-----------------------------------------------------------------*/

func KISSUnwrap(in []byte) ([]byte, error) {
	if len(in) < 2 {
		// Need at least the "type indicator" byte and FEND.
		return nil, fmt.Errorf("%w: less than minimum length", ErrKISSFrame)
	}

	if in[len(in)-1] != FEND {
		return nil, fmt.Errorf("%w: should end with FEND", ErrKISSFrame)
	}

	in = in[:len(in)-1]

	if in[0] == FEND {
		in = in[1:]
	}

	var escapedMode = false
	var buf bytes.Buffer

	for _, b := range in {
		if b == FEND {
			return nil, fmt.Errorf("%w: FEND in the middle", ErrKISSFrame)
		}

		switch {
		case escapedMode:
			switch b {
			case TFESC:
				buf.WriteByte(FESC)
			case TFEND:
				buf.WriteByte(FEND)
			default:
				return nil, fmt.Errorf("%w: found 0x%02x after FESC", ErrKISSFrame, b)
			}
			escapedMode = false
		case b == FESC:
			escapedMode = true
		default:
			buf.WriteByte(b)
		}
	}

	if buf.Len() == 0 {
		return nil, fmt.Errorf("%w: no type indicator", ErrKISSFrame)
	}

	return buf.Bytes(), nil
}

// KISSFrame is a frame received from a client.
type KISSFrame struct {
	Channel int
	Command byte
	Data    []byte
}

// KISSDecoder collects frames from a byte stream.  Anything outside a
// frame is noise and is thrown away.
type KISSDecoder struct {
	collecting bool
	msg        []byte
}

/*-------------------------------------------------------------------
 *
 * Name:        Write
 *
 * Purpose:     Process bytes from a client.
 *
 * Returns:	Complete frames found, and the first error for a bad
 *		frame.  A bad frame is skipped and decoding carries on.
 *
 *-----------------------------------------------------------------*/

func (d *KISSDecoder) Write(p []byte) ([]KISSFrame, error) {
	var frames []KISSFrame
	var firstErr error

	for _, ch := range p {
		if !d.collecting {
			if ch == FEND {
				d.collecting = true
				d.msg = append(d.msg[:0], ch)
			}

			continue
		}

		if ch != FEND {
			if len(d.msg) < MAX_KISS_LEN {
				d.msg = append(d.msg, ch)
			}

			continue
		}

		if len(d.msg) == 1 {
			// Back to back FENDs.  Just go on collecting.
			continue
		}

		d.msg = append(d.msg, ch)

		var unwrapped, err = KISSUnwrap(d.msg)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else {
			frames = append(frames, KISSFrame{
				Channel: int(unwrapped[0] >> 4),
				Command: unwrapped[0] & 0x0f,
				Data:    unwrapped[1:],
			})
		}

		// The closing FEND can also open the next frame.
		d.msg = append(d.msg[:0], FEND)
	}

	return frames, firstErr
}
