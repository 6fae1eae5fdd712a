package telemetry

import (
	"image"

	"github.com/prometheus/client_golang/prometheus"
)

// Prom exports scalar telemetry as Prometheus gauges labeled by tag, for live
// inspection of a running training job. Text and image records have no gauge
// representation and are dropped.
type Prom struct {
	scalars *prometheus.GaugeVec
	step    *prometheus.GaugeVec
	reg     *prometheus.Registry
}

// NewProm builds the sink and registers its collectors on a fresh registry.
func NewProm() *Prom {
	p := &Prom{
		scalars: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "advforge",
			Name:      "scalar",
			Help:      "Most recent value of each training scalar.",
		}, []string{"tag"}),
		step: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "advforge",
			Name:      "scalar_step",
			Help:      "Step at which each training scalar was last written.",
		}, []string{"tag"}),
		reg: prometheus.NewRegistry(),
	}
	p.reg.MustRegister(p.scalars, p.step)
	return p
}

// Registry exposes the sink's collectors for an HTTP handler.
func (p *Prom) Registry() *prometheus.Registry { return p.reg }

// AddScalar sets the gauge for tag.
func (p *Prom) AddScalar(tag string, step int, value float64) error {
	p.scalars.WithLabelValues(tag).Set(value)
	p.step.WithLabelValues(tag).Set(float64(step))
	return nil
}

// AddText is not representable as a gauge.
func (p *Prom) AddText(tag, text string) error { return nil }

// AddImages is not representable as a gauge.
func (p *Prom) AddImages(tag string, step int, img image.Image) error { return nil }
