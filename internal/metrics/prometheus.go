package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	ActiveConnectionsGauge prometheus.Gauge
	ConnectionsOpenedTotal prometheus.Counter
	ConnectionsClosedTotal prometheus.Counter
	EvictionsTotal         prometheus.Counter
	SessionsRecordedTotal  prometheus.Counter
	DailyUsersInsertsTotal prometheus.Counter
)

func init() {
	ActiveConnectionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "presence_active_connections",
		Help: "Current number of live websocket connections.",
	})
	ConnectionsOpenedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "presence_connections_opened_total",
		Help: "Total number of websocket connections opened.",
	})
	ConnectionsClosedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "presence_connections_closed_total",
		Help: "Total number of websocket connections closed by the client.",
	})
	EvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "presence_evictions_total",
		Help: "Total number of connections evicted by the heartbeat monitor.",
	})
	SessionsRecordedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "presence_sessions_recorded_total",
		Help: "Total number of session records persisted.",
	})
	DailyUsersInsertsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "presence_daily_users_inserts_total",
		Help: "Total number of new (identity, day) daily-user facts inserted.",
	})
}

// Register registers the custom metrics on reg. It should be called once at
// application startup.
func Register(reg prometheus.Registerer) {
	if reg == nil {
		log.Error().Msg("Prometheus registry is nil, cannot register custom metrics.")
		return
	}
	collectors := []prometheus.Collector{
		ActiveConnectionsGauge,
		ConnectionsOpenedTotal,
		ConnectionsClosedTotal,
		EvictionsTotal,
		SessionsRecordedTotal,
		DailyUsersInsertsTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register presence metric")
		}
	}
	log.Info().Msg("Custom Prometheus metrics registered.")
}
