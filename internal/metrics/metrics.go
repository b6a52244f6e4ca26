// Package metrics exposes Prometheus collectors for the bot.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	tracksStarted = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "jellycord_tracks_started_total", Help: "Tracks the voice output started streaming"},
	)
	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "jellycord_sessions_active", Help: "Guild sessions currently open"},
	)
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "jellycord_commands_total", Help: "Commands handled by source"},
		[]string{"source", "command"},
	)
	radioRefills = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "jellycord_radio_refills_total", Help: "Radio refill attempts by result"},
		[]string{"result"},
	)
	jellyfinRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "jellycord_jellyfin_requests_total", Help: "Jellyfin API requests"},
		[]string{"method", "path", "outcome"},
	)
	jellyfinDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jellycord_jellyfin_request_duration_seconds",
			Help:    "Jellyfin API request time including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "path"},
	)
)

var registerOnce sync.Once

// Register adds the collectors to the default registry. Safe to call more
// than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(tracksStarted, sessionsActive, commandsTotal, radioRefills, jellyfinRequests, jellyfinDuration)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func TrackStarted() { tracksStarted.Inc() }

func SessionOpened() { sessionsActive.Inc() }

func SessionClosed() { sessionsActive.Dec() }

// Command counts a handled command; source is "slash", "button" or "remote".
func Command(source, name string) {
	commandsTotal.WithLabelValues(source, name).Inc()
}

// RadioRefill counts a radio refill; ok is false when nothing was queued.
func RadioRefill(ok bool) {
	radioRefills.WithLabelValues(strconv.FormatBool(ok)).Inc()
}

// ObserveJellyfinRequest records one logical API call.
func ObserveJellyfinRequest(method, path string, err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	jellyfinRequests.WithLabelValues(method, path, outcome).Inc()
	jellyfinDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
