package afsk

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	var logger, err = NewLogger(&buf, "warn")
	require.NoError(t, err)

	logger.Info("not shown")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "not shown")
	assert.Contains(t, buf.String(), "shown")

	_, err = NewLogger(&buf, "chatty")
	require.ErrorIs(t, err, ErrConfig)
}

func TestDataLogSingleFile(t *testing.T) {
	var path = filepath.Join(t.TempDir(), "rx.log")

	var d, err = NewDataLog(false, path, "%Y-%m-%d %H:%M:%S", quietLogger())
	require.NoError(t, err)

	var heard = time.Date(2025, 1, 2, 12, 34, 56, 0, time.UTC)
	require.NoError(t, d.Deliver(Message{Payload: []byte("hello worldke0sgq")}, heard))
	require.NoError(t, d.Deliver(Message{Payload: []byte("again")}, heard.Add(time.Second)))
	require.NoError(t, d.Close())

	var data, readErr = os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t,
		"[2025-01-02 12:34:56] RX MESSAGE: hello worldke0sgq\n"+
			"[2025-01-02 12:34:57] RX MESSAGE: again\n",
		string(data))
}

func TestDataLogDailyNames(t *testing.T) {
	var dir = filepath.Join(t.TempDir(), "logs")

	// The directory doesn't exist yet and gets created.
	var d, err = NewDataLog(true, dir, "%H:%M", quietLogger())
	require.NoError(t, err)
	defer d.Close() //nolint:errcheck

	var day1 = time.Date(2025, 6, 30, 23, 59, 0, 0, time.UTC)
	var day2 = day1.Add(2 * time.Minute)

	require.NoError(t, d.Deliver(Message{Payload: []byte("late")}, day1))
	require.NoError(t, d.Deliver(Message{Payload: []byte("early")}, day2))

	var first, _ = os.ReadFile(filepath.Join(dir, "2025-06-30.log"))
	var second, _ = os.ReadFile(filepath.Join(dir, "2025-07-01.log"))

	assert.Equal(t, "[23:59] RX MESSAGE: late\n", string(first))
	assert.Equal(t, "[00:01] RX MESSAGE: early\n", string(second))
}

func TestDataLogBadTimestampFormat(t *testing.T) {
	var _, err = NewDataLog(false, "x.log", "%", quietLogger())
	require.ErrorIs(t, err, ErrConfig)
}

func TestConsoleSink(t *testing.T) {
	var buf bytes.Buffer
	var logger, _ = NewLogger(&buf, "info")

	var sink = ConsoleSink{Logger: logger}
	require.NoError(t, sink.Deliver(Message{Payload: []byte("hi there")}, time.Now()))
	require.NoError(t, sink.Close())

	assert.Contains(t, buf.String(), "RX MESSAGE")
	assert.Contains(t, buf.String(), "hi there")
}
