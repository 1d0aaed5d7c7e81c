package intake

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "card_scans_total",
		Help: "Insurance card scans, by outcome.",
	}, []string{"outcome"})

	leadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leads_total",
		Help: "Assessment submissions, by outcome.",
	}, []string{"outcome"})
)
