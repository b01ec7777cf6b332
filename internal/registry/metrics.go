package registry

import "github.com/prometheus/client_golang/prometheus"

var (
	loadedModels = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "modelreg",
			Subsystem: "registry",
			Name:      "loaded_models",
			Help:      "Number of model handles currently registered",
		},
	)

	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelreg",
			Subsystem: "registry",
			Name:      "loads_total",
			Help:      "Load attempts by result (ok, conflict, invalid, engine_error)",
		},
		[]string{"result"},
	)

	unloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelreg",
			Subsystem: "registry",
			Name:      "unloads_total",
			Help:      "Unload attempts by result (ok, not_found, invalid, close_error)",
		},
		[]string{"result"},
	)

	predictDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "modelreg",
			Subsystem: "registry",
			Name:      "predict_duration_seconds",
			Help:      "Time spent in engine generation, including waiting for the handle",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(loadedModels, loadsTotal, unloadsTotal, predictDuration)
}
