// Package metrics counts what an import run did, for the node_exporter
// textfile collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "floodload"

const (
	ResultImported = "imported"
	ResultSkipped  = "skipped"
	ResultFailed   = "failed"
	ResultLoaded   = "loaded"
	ResultOK       = "ok"
)

type Recorder struct {
	reg            *prometheus.Registry
	features       *prometheus.CounterVec
	depthClasses   *prometheus.CounterVec
	conflicts      prometheus.Counter
	tableSetup     *prometheus.CounterVec
	importDuration prometheus.Gauge
}

// New registers the loader metrics on a private registry.
func New(version string) *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		reg: reg,
		features: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "features_total",
			Help:      "Features processed, by result.",
		}, []string{"result"}),
		depthClasses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "depth_classes_total",
			Help:      "Depth classes written, by result.",
		}, []string{"result"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "depth_class_conflicts_total",
			Help:      "Features whose depth bounds disagree with an earlier feature of the same class.",
		}),
		tableSetup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "table_setup_total",
			Help:      "Table creation attempts, by table and result.",
		}, []string{"table", "result"}),
		importDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "import_duration_seconds",
			Help:      "Wall clock duration of the last import.",
		}),
	}
	build := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "Build info for this binary (value is always 1).",
	}, []string{"version"})
	if version == "" {
		version = "dev"
	}
	build.WithLabelValues(version).Set(1)

	reg.MustRegister(r.features, r.depthClasses, r.conflicts, r.tableSetup, r.importDuration, build)
	return r
}

// Nil receivers are no-ops so callers can run without metrics.

func (r *Recorder) Feature(result string) {
	if r == nil {
		return
	}
	r.features.WithLabelValues(result).Inc()
}

func (r *Recorder) DepthClass(result string) {
	if r == nil {
		return
	}
	r.depthClasses.WithLabelValues(result).Inc()
}

func (r *Recorder) Conflicts(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.conflicts.Add(float64(n))
}

func (r *Recorder) TableSetup(table, result string) {
	if r == nil {
		return
	}
	r.tableSetup.WithLabelValues(table, result).Inc()
}

func (r *Recorder) ImportDuration(seconds float64) {
	if r == nil {
		return
	}
	r.importDuration.Set(seconds)
}

func (r *Recorder) Gatherer() prometheus.Gatherer { return r.reg }

// WriteTextfile writes the registry in text exposition format. The file is
// written to a temporary name and renamed.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
