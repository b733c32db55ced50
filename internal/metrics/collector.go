package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"groupevo/internal/evo"
)

const namespace = "groupevo"

// Collector exports engine progress as prometheus metrics. It implements
// evo.Observer and owns its registry, so several runs in one process do
// not collide.
type Collector struct {
	registry *prometheus.Registry

	generations       prometheus.Counter
	bestFitness       prometheus.Gauge
	meanFitness       prometheus.Gauge
	finiteFraction    prometheus.Gauge
	diversity         prometheus.Gauge
	crossovers        *prometheus.CounterVec
	mutations         *prometheus.CounterVec
	generationSeconds prometheus.Histogram

	mu      sync.Mutex
	started time.Time
}

var _ evo.Observer = (*Collector)(nil)

func NewCollector(runID string) *Collector {
	labels := prometheus.Labels{"run_id": runID}
	c := &Collector{
		registry: prometheus.NewRegistry(),
		generations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "generations_total",
			Help:        "Committed generations.",
			ConstLabels: labels,
		}),
		bestFitness: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "best_fitness",
			Help:        "Best fitness of the current population.",
			ConstLabels: labels,
		}),
		meanFitness: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "mean_fitness",
			Help:        "Mean of the finite fitness values of the current population.",
			ConstLabels: labels,
		}),
		finiteFraction: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "finite_fitness_ratio",
			Help:        "Share of the population with a finite fitness.",
			ConstLabels: labels,
		}),
		diversity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "population_diversity",
			Help:        "Distinct structure keys in the current population.",
			ConstLabels: labels,
		}),
		crossovers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "crossovers_total",
			Help:        "Crossover outcomes by kind.",
			ConstLabels: labels,
		}, []string{"kind"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "mutations_total",
			Help:        "Mutation outcomes by kind.",
			ConstLabels: labels,
		}, []string{"kind"}),
		generationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "generation_duration_seconds",
			Help:        "Wall time of one generation including fitness evaluation.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
	c.registry.MustRegister(
		c.generations,
		c.bestFitness,
		c.meanFitness,
		c.finiteFraction,
		c.diversity,
		c.crossovers,
		c.mutations,
		c.generationSeconds,
	)
	return c
}

func (c *Collector) GenerationStarted(int) {
	c.mu.Lock()
	c.started = time.Now()
	c.mu.Unlock()
}

func (c *Collector) GenerationCompleted(report evo.GenerationReport) {
	c.mu.Lock()
	started := c.started
	c.started = time.Time{}
	c.mu.Unlock()

	if !started.IsZero() {
		c.generationSeconds.Observe(time.Since(started).Seconds())
	}
	c.generations.Inc()
	c.bestFitness.Set(report.BestFitness)
	c.meanFitness.Set(report.MeanFitness)
	c.diversity.Set(float64(report.Diversity))
	if report.Size > 0 {
		c.finiteFraction.Set(float64(report.FiniteCount) / float64(report.Size))
	}
	for kind, n := range report.Crossovers {
		c.crossovers.WithLabelValues(kind).Add(float64(n))
	}
	for kind, n := range report.Mutations {
		c.mutations.WithLabelValues(kind).Add(float64(n))
	}
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry in the prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
