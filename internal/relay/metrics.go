package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "relay_deliveries_total",
	Help: "Lead submissions delivered to third-party collectors, by relay and outcome.",
}, []string{"relay", "outcome"})
