package realtime

import "github.com/prometheus/client_golang/prometheus"

var (
	connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_connections",
		Help: "Open websocket connections on this instance.",
	})
	framesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_frames_total",
		Help: "Frames pushed to clients by result (sent|dropped).",
	}, []string{"result"})
	eventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "realtime_events_published_total",
		Help: "Events handed to the broker by type and result.",
	}, []string{"type", "result"})
)

func init() {
	prometheus.MustRegister(connections, framesSent, eventsPublished)
}
