package sessions

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	admissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessiongate_admissions_total",
		Help: "Login admissions by outcome.",
	}, []string{"result"})

	rotationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessiongate_rotations_total",
		Help: "Sessions evicted to make room for a new login.",
	})

	validationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessiongate_validations_total",
		Help: "Session validations by resulting status.",
	}, []string{"status"})

	terminationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sessiongate_terminations_total",
		Help: "Sessions removed outside of rotation, by kind.",
	}, []string{"kind"})
)
