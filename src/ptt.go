package afsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Activate the push to talk (PTT) signal to turn on the
 *		transmitter.
 *
 * Description:	Traditionally this has been done with the RTS signal
 *		of the serial port.
 *
 *		If we are only using RTS or DTR, there is no reason we
 *		couldn't use the same serial port for PTT and something
 *		else.  That isn't done here.  The port is opened for
 *		each transmission and closed afterwards.
 *
 *		A GPIO line on a Raspberry Pi or similar works just as
 *		well.  This uses the GPIO character device, not the old
 *		sysfs interface which is deprecated.
 *
 *		Without any PTT the radio has to be set for VOX.
 *
 *		Normally higher voltage means transmit.  Invert flips
 *		that for interfaces with an inverting transistor.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"

	"github.com/pkg/term"
	"github.com/warthog618/go-gpiocdev"
)

const PTT_METHOD_NONE = "none"
const PTT_METHOD_SERIAL_RTS = "serial-rts"
const PTT_METHOD_SERIAL_DTR = "serial-dtr"
const PTT_METHOD_GPIOD = "gpiod"

var ErrPTT = errors.New("PTT failure")

// PTT keys and unkeys a transmitter.
type PTT interface {
	Set(on bool) error
	Close() error
}

// level is the line state for a PTT state.
func level(on bool, invert bool) int {
	if on != invert {
		return 1
	}

	return 0
}

type nonePTT struct{}

func (nonePTT) Set(bool) error { return nil }
func (nonePTT) Close() error   { return nil }

// gpiodOutputLine is the part of *gpiocdev.Line we use, so tests can
// substitute a mock without GPIO hardware.
type gpiodOutputLine interface {
	SetValue(value int) error
	Close() error
}

type gpiodPTT struct {
	line   gpiodOutputLine
	invert bool
}

func (g *gpiodPTT) Set(on bool) error {
	if g.line == nil {
		return fmt.Errorf("%w: GPIO line not open", ErrPTT)
	}

	if err := g.line.SetValue(level(on, g.invert)); err != nil {
		return fmt.Errorf("%w: %w", ErrPTT, err)
	}

	return nil
}

func (g *gpiodPTT) Close() error {
	if g.line == nil {
		return nil
	}

	var err = g.line.Close()
	g.line = nil

	return err
}

// serialControlLines is the part of *term.Term we use.
type serialControlLines interface {
	SetRTS(v bool) error
	SetDTR(v bool) error
	Close() error
}

type serialPTT struct {
	port   serialControlLines
	dtr    bool // DTR rather than RTS.
	invert bool
}

func (s *serialPTT) Set(on bool) error {
	var v = level(on, s.invert) == 1

	var err error
	if s.dtr {
		err = s.port.SetDTR(v)
	} else {
		err = s.port.SetRTS(v)
	}

	if err != nil {
		return fmt.Errorf("%w: %w", ErrPTT, err)
	}

	return nil
}

func (s *serialPTT) Close() error {
	return s.port.Close()
}

/*-------------------------------------------------------------------
 *
 * Name:        OpenPTT
 *
 * Purpose:    	Open the device used for PTT and set it to the
 *		not transmitting state.
 *
 * Inputs:	cfg.Method	- none, serial-rts, serial-dtr, gpiod.
 *
 *		cfg.Device	- Serial port such as /dev/ttyUSB0, or
 *				  GPIO chip such as gpiochip0.
 *
 *		cfg.Line	- GPIO line offset.  gpiod only.
 *
 *		cfg.Invert	- Invert the signal.
 *
 *--------------------------------------------------------------------*/

func OpenPTT(cfg PTTConfig) (PTT, error) {
	switch cfg.Method {
	case "", PTT_METHOD_NONE:
		return nonePTT{}, nil

	case PTT_METHOD_SERIAL_RTS, PTT_METHOD_SERIAL_DTR:
		var port, err = term.Open(cfg.Device, term.RawMode)
		if err != nil {
			return nil, fmt.Errorf("%w: can't open serial port %s for PTT: %w", ErrPTT, cfg.Device, err)
		}

		var p = &serialPTT{port: port, dtr: cfg.Method == PTT_METHOD_SERIAL_DTR, invert: cfg.Invert}
		if err := p.Set(false); err != nil {
			port.Close() //nolint:errcheck
			return nil, err
		}

		return p, nil

	case PTT_METHOD_GPIOD:
		var line, err = gpiocdev.RequestLine(cfg.Device, cfg.Line,
			gpiocdev.AsOutput(level(false, cfg.Invert)),
			gpiocdev.WithConsumer("samoyed-afsk"))
		if err != nil {
			return nil, fmt.Errorf("%w: can't get GPIOD line %d of %s: %w", ErrPTT, cfg.Line, cfg.Device, err)
		}

		return &gpiodPTT{line: line, invert: cfg.Invert}, nil

	default:
		return nil, fmt.Errorf("%w: unknown PTT method %q", ErrPTT, cfg.Method)
	}
}
