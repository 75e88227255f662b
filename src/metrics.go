package afsk

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the receiver counters.  Each instance has its own
// registry so several receivers (or tests) don't collide.
type Metrics struct {
	Registry *prometheus.Registry

	ChunksCaptured   prometheus.Counter
	ChunksDropped    prometheus.Counter
	InputOverflows   prometheus.Counter
	BitsDemodulated  prometheus.Counter
	PreamblesFound   prometheus.Counter
	MessagesDecoded  prometheus.Counter
	FramingTimeouts  prometheus.Counter
	PreambleRestarts prometheus.Counter
	SinkErrors       *prometheus.CounterVec
	AudioQueueDepth  prometheus.Gauge
}

func NewMetrics() *Metrics {
	var reg = prometheus.NewRegistry()
	var f = promauto.With(reg)

	return &Metrics{
		Registry: reg,
		ChunksCaptured: f.NewCounter(prometheus.CounterOpts{
			Name: "afsk_audio_chunks_captured_total",
			Help: "Audio chunks read from the source",
		}),
		ChunksDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "afsk_audio_chunks_dropped_total",
			Help: "Audio chunks dropped because the demodulator queue was full",
		}),
		InputOverflows: f.NewCounter(prometheus.CounterOpts{
			Name: "afsk_audio_input_overflows_total",
			Help: "Overflow conditions reported by the audio device",
		}),
		BitsDemodulated: f.NewCounter(prometheus.CounterOpts{
			Name: "afsk_bits_demodulated_total",
			Help: "Bits produced by the tone detector",
		}),
		PreamblesFound: f.NewCounter(prometheus.CounterOpts{
			Name: "afsk_preambles_found_total",
			Help: "Preambles detected",
		}),
		MessagesDecoded: f.NewCounter(prometheus.CounterOpts{
			Name: "afsk_messages_decoded_total",
			Help: "Complete messages decoded",
		}),
		FramingTimeouts: f.NewCounter(prometheus.CounterOpts{
			Name: "afsk_framing_timeouts_total",
			Help: "Preambles abandoned because no end marker arrived in time",
		}),
		PreambleRestarts: f.NewCounter(prometheus.CounterOpts{
			Name: "afsk_preamble_restarts_total",
			Help: "Partial messages discarded because a new preamble arrived",
		}),
		SinkErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "afsk_sink_errors_total",
			Help: "Failures delivering decoded messages",
		}, []string{"sink"}),
		AudioQueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "afsk_audio_queue_depth",
			Help: "Audio chunks waiting for the demodulator",
		}),
	}
}

// countEvent bumps the counter for a framing event.
func (m *Metrics) countEvent(ev FrameEvent) {
	switch ev {
	case EventPreamble:
		m.PreamblesFound.Inc()
	case EventMessage:
		m.MessagesDecoded.Inc()
	case EventTimeout:
		m.FramingTimeouts.Inc()
	case EventRestart:
		m.PreambleRestarts.Inc()
	case EventNone:
	}
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *log.Logger) error {
	var mux = http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})) //nolint:exhaustruct

	var srv = &http.Server{ //nolint:exhaustruct
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		var shutdownCtx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		srv.Shutdown(shutdownCtx) //nolint:errcheck,contextcheck
	}()

	logger.Info("Metrics available", "addr", addr, "path", "/metrics")

	var err = srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}
