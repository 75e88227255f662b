package afsk

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountEvent(t *testing.T) {
	var m = NewMetrics()

	for _, ev := range []FrameEvent{EventNone, EventPreamble, EventPreamble, EventMessage, EventTimeout, EventRestart} {
		m.countEvent(ev)
	}

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.PreamblesFound), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.MessagesDecoded), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.FramingTimeouts), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.PreambleRestarts), 0)
}

// Each Metrics has its own registry, so two can exist at once.
func TestMetricsIndependent(t *testing.T) {
	var a = NewMetrics()
	var b = NewMetrics()

	a.ChunksDropped.Inc()

	assert.InDelta(t, 1.0, testutil.ToFloat64(a.ChunksDropped), 0)
	assert.InDelta(t, 0.0, testutil.ToFloat64(b.ChunksDropped), 0)
}

func TestMetricsServe(t *testing.T) {
	var m = NewMetrics()
	m.MessagesDecoded.Inc()
	m.SinkErrors.WithLabelValues("mqtt").Inc()

	// Find a free port.
	var l, err = net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	var addr = l.Addr().String()
	require.NoError(t, l.Close())

	var ctx, cancel = context.WithCancel(context.Background())

	var done = make(chan error, 1)
	go func() { done <- m.Serve(ctx, addr, quietLogger()) }()

	var body string
	require.Eventually(t, func() bool {
		var resp, getErr = http.Get("http://" + addr + "/metrics") //nolint:noctx
		if getErr != nil {
			return false
		}
		defer resp.Body.Close() //nolint:errcheck

		var b, _ = io.ReadAll(resp.Body)
		body = string(b)

		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	assert.Contains(t, body, "afsk_messages_decoded_total 1")
	assert.Contains(t, body, `afsk_sink_errors_total{sink="mqtt"} 1`)

	cancel()
	require.NoError(t, <-done)
}
