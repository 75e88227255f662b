package afsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Act as a virtual KISS TNC for use by other applications
 *		on the same machine.  Decoded messages are written to a
 *		pseudo terminal as KISS data frames.
 *
 * Description:	The device name is not the same every time.  A symlink,
 *		/tmp/kisstnc, is created so the application configuration
 *		does not need to change.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

const TMP_KISSTNC_SYMLINK = "/tmp/kisstnc"

// KISSPty is a Sink.
type KISSPty struct {
	master  *os.File
	slave   *os.File
	symlink string
	logger  *log.Logger
}

/*-------------------------------------------------------------------
 *
 * Name:        OpenKISSPty
 *
 * Inputs:	symlink	- Where to point at the slave side.  Empty for none.
 *
 *--------------------------------------------------------------------*/

func OpenKISSPty(symlink string, logger *log.Logger) (*KISSPty, error) {
	logger = logger.WithPrefix("kiss-pty")

	var ptmx, pts, err = pty.Open()
	if err != nil {
		return nil, err
	}

	// Like cfmakeraw, so the line discipline leaves our bytes alone.
	if termios, getErr := unix.IoctlGetTermios(int(pts.Fd()), unix.TCGETS); getErr == nil {
		termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
		termios.Oflag &^= unix.OPOST
		termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
		termios.Cflag &^= unix.CSIZE | unix.PARENB
		termios.Cflag |= unix.CS8
		termios.Cc[unix.VMIN] = 1
		termios.Cc[unix.VTIME] = 0

		if setErr := unix.IoctlSetTermios(int(pts.Fd()), unix.TCSETS, termios); setErr != nil {
			logger.Warn("Could not set pseudo terminal to raw mode", "err", setErr)
		}
	}

	logger.Info("Virtual KISS TNC is available", "device", pts.Name())

	var k = &KISSPty{master: ptmx, slave: pts, logger: logger}

	if symlink != "" {
		os.Remove(symlink) //nolint:errcheck

		if linkErr := os.Symlink(pts.Name(), symlink); linkErr != nil {
			logger.Error("Failed to create symlink", "link", symlink, "err", linkErr)
		} else {
			logger.Info("Created symlink", "link", symlink, "device", pts.Name())
			k.symlink = symlink
		}
	}

	return k, nil
}

// DeviceName is the slave side, for the client application to open.
func (k *KISSPty) DeviceName() string {
	return k.slave.Name()
}

func (k *KISSPty) Name() string { return "kiss-pty" }

func (k *KISSPty) Deliver(msg Message, _ time.Time) error {
	var frame = KISSEncapsulate(0, KISS_CMD_DATA_FRAME, msg.Payload)

	// If no one is reading from the other end, the buffer eventually
	// fills and the write would block the dispatcher.
	k.master.SetWriteDeadline(time.Now().Add(kissWriteTimeout)) //nolint:errcheck

	var _, err = k.master.Write(frame)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		k.logger.Info("KISS SEND - Discarding message because no one is listening")
		return nil
	}

	return err
}

func (k *KISSPty) Close() error {
	if k.symlink != "" {
		os.Remove(k.symlink) //nolint:errcheck
	}

	var err = k.master.Close()
	if slaveErr := k.slave.Close(); slaveErr != nil && err == nil {
		err = slaveErr
	}

	return err
}
