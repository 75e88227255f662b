package afsk

/*------------------------------------------------------------------
 *
 * Purpose:	Console logging, and saving received messages to a log file.
 *
 * Description: Diagnostics go to the console through one structured
 *		logger.  Decoded messages also go to a data log so there
 *		is a permanent record, one line each:
 *
 *			[2025-01-02 12:34:56] RX MESSAGE: hello worldke0sgq
 *
 *		There are two alternatives for the data log.
 *
 *		-L logfile		Specify full file path.
 *
 *		-l logdir		Daily names will be created here.
 *
 *		Use one or the other but not both.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

// NewLogger creates the console logger.  level is debug, info, warn or error.
func NewLogger(w io.Writer, level string) (*log.Logger, error) {
	var lvl, err = log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%w: log level: %w", ErrConfig, err)
	}

	var logger = log.NewWithOptions(w, log.Options{ //nolint:exhaustruct
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
	})

	return logger, nil
}

// DataLog appends decoded messages to a file.  It is a Sink.
type DataLog struct {
	dailyNames bool
	path       string // Directory for daily names, otherwise the file.
	stamp      *strftime.Strftime
	logger     *log.Logger

	mu        sync.Mutex
	fp        *os.File
	openFname string
}

/*------------------------------------------------------------------
 *
 * Function:	NewDataLog
 *
 * Purpose:	Initialization at start of application.
 *
 * Inputs:	dailyNames	- True if daily names should be generated.
 *				  In this case path is a directory.
 *				  When false, path would be the file name.
 *
 *		path		- Log file name or just directory.
 *				  Use "." for current directory.
 *
 *		timestampFormat	- strftime pattern for the start of each line.
 *
 * Description:	The file is kept open.  We don't open/close for every
 *		new item.
 *
 *------------------------------------------------------------------*/

func NewDataLog(dailyNames bool, path string, timestampFormat string, logger *log.Logger) (*DataLog, error) {
	var stamp, stampErr = strftime.New(timestampFormat)
	if stampErr != nil {
		return nil, fmt.Errorf("%w: timestamp format %q: %w", ErrConfig, timestampFormat, stampErr)
	}

	var d = &DataLog{
		dailyNames: dailyNames,
		path:       path,
		stamp:      stamp,
		logger:     logger,
	}

	if !dailyNames {
		logger.Info("Data log file", "path", path)
		return d, nil
	}

	// Automatic daily file names.
	var stat, statErr = os.Stat(path)

	switch {
	case statErr == nil && stat.IsDir():
		// Specified directory exists.
	case statErr == nil:
		logger.Error("Log file location is not a directory.  Using current working directory instead.", "path", path)
		d.path = "."
	default:
		// Doesn't exist.  Try to create it.
		// parent directory must exist.
		// We don't create multiple levels like "mkdir -p"
		if mkdirErr := os.Mkdir(path, 0755); mkdirErr != nil {
			logger.Error("Failed to create log file location.  Using current working directory instead.", "path", path, "err", mkdirErr)
			d.path = "."
		} else {
			logger.Info("Log file location has been created.", "path", path)
		}
	}

	return d, nil
}

func (d *DataLog) Name() string { return "datalog" }

// Deliver writes one line for the message.
func (d *DataLog) Deliver(msg Message, heard time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var fname = d.path
	if d.dailyNames {
		// Close current and open new when day changes.
		fname = filepath.Join(d.path, heard.Format("2006-01-02.log"))
	}

	if d.fp != nil && fname != d.openFname {
		d.closeLocked()
	}

	if d.fp == nil {
		d.logger.Info("Opening data log file", "path", fname)

		var f, openErr = os.OpenFile(fname, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
		if openErr != nil {
			return fmt.Errorf("can't open data log file %q for write: %w", fname, openErr)
		}

		d.fp = f
		d.openFname = fname
	}

	var _, err = fmt.Fprintf(d.fp, "[%s] RX MESSAGE: %s\n", d.stamp.FormatString(heard), msg.Text())

	return err
}

func (d *DataLog) closeLocked() {
	if d.fp != nil {
		d.logger.Info("Closing data log file", "path", d.openFname)
		d.fp.Close() //nolint:gosec
	}

	d.fp = nil
	d.openFname = ""
}

func (d *DataLog) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closeLocked()

	return nil
}
