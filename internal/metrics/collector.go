package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulerStats exposes the live scheduler counters the Collector
// reads at scrape time.
type SchedulerStats interface {
	Ticks() int64
	Skips() int64
	LastTick() time.Time
}

// CatalogStats exposes the live open-event count the Collector reads
// at scrape time.
type CatalogStats interface {
	OpenEventCount() int
}

// Collector implements prometheus.Collector, reading live gauges at
// scrape time rather than tracking them as they change.
type Collector struct {
	scheduler SchedulerStats
	catalog   CatalogStats

	ticks       *prometheus.Desc
	skips       *prometheus.Desc
	lastTickAge *prometheus.Desc
	openEvents  *prometheus.Desc
}

// NewCollector creates a collector over the given scheduler and catalog
// writer. Either may be nil (those metrics report 0).
func NewCollector(scheduler SchedulerStats, catalog CatalogStats) *Collector {
	return &Collector{
		scheduler: scheduler,
		catalog:   catalog,
		ticks: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "scheduler_ticks_total"),
			"Total minute ticks dispatched.",
			nil, nil,
		),
		skips: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "scheduler_skips_total"),
			"Total minute ticks skipped because the previous tick was still running.",
			nil, nil,
		),
		lastTickAge: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "scheduler_last_tick_age_seconds"),
			"Seconds since the most recent minute tick was dispatched.",
			nil, nil,
		),
		openEvents: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "catalog_open_events"),
			"Current number of filters with an open tremor catalog event.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.ticks
	ch <- c.skips
	ch <- c.lastTickAge
	ch <- c.openEvents
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.scheduler != nil {
		ch <- prometheus.MustNewConstMetric(c.ticks, prometheus.CounterValue, float64(c.scheduler.Ticks()))
		ch <- prometheus.MustNewConstMetric(c.skips, prometheus.CounterValue, float64(c.scheduler.Skips()))
		age := 0.0
		if last := c.scheduler.LastTick(); !last.IsZero() {
			age = time.Since(last).Seconds()
		}
		ch <- prometheus.MustNewConstMetric(c.lastTickAge, prometheus.GaugeValue, age)
	} else {
		ch <- prometheus.MustNewConstMetric(c.ticks, prometheus.CounterValue, 0)
		ch <- prometheus.MustNewConstMetric(c.skips, prometheus.CounterValue, 0)
		ch <- prometheus.MustNewConstMetric(c.lastTickAge, prometheus.GaugeValue, 0)
	}

	if c.catalog != nil {
		ch <- prometheus.MustNewConstMetric(c.openEvents, prometheus.GaugeValue, float64(c.catalog.OpenEventCount()))
	} else {
		ch <- prometheus.MustNewConstMetric(c.openEvents, prometheus.GaugeValue, 0)
	}
}
