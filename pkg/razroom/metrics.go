package razroom

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roomsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "razroom_rooms_created_total",
		Help: "Rooms created, by variant.",
	}, []string{"variant"})

	gamesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "razroom_games_started_total",
		Help: "Rounds started, by variant.",
	}, []string{"variant"})

	gamesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "razroom_games_finished_total",
		Help: "Rounds finished, by variant and reason.",
	}, []string{"variant", "reason"})

	forfeits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "razroom_forfeits_total",
		Help: "Seats that forfeited on a clock, by kind (undertime or timeout).",
	}, []string{"kind"})

	seatsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "razroom_seats_evicted_total",
		Help: "Seats forced to leave after missing activity pings.",
	})

	connections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "razroom_connections",
		Help: "Open websocket connections.",
	})
)
