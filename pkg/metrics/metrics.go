package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openclaw/launcher/pkg/manager"
	"github.com/openclaw/launcher/pkg/types"
)

var (
	instancesTotalDesc = prometheus.NewDesc(
		"openclaw_instances_total",
		"Number of instance records in the store",
		nil, nil,
	)
	instancesRunningDesc = prometheus.NewDesc(
		"openclaw_instances_running",
		"Number of instances whose snapshot status is running",
		nil, nil,
	)
	restartsDesc = prometheus.NewDesc(
		"openclaw_instance_restarts_total",
		"Unexpected terminations observed for an instance",
		[]string{"instance", "pubkey"}, nil,
	)
	cpuDesc = prometheus.NewDesc(
		"openclaw_instance_cpu_percent",
		"Most recent CPU usage sample for an instance",
		[]string{"instance", "pubkey"}, nil,
	)
	memoryDesc = prometheus.NewDesc(
		"openclaw_instance_memory_bytes",
		"Most recent memory usage sample for an instance",
		[]string{"instance", "pubkey"}, nil,
	)
)

// Collector exposes the orchestrator state as Prometheus metrics. Samples
// are read from the store and the snapshot at scrape time; no runtime
// calls happen during collection.
type Collector struct {
	mgr *manager.Manager
}

// NewCollector creates a collector over mgr.
func NewCollector(mgr *manager.Manager) *Collector {
	return &Collector{mgr: mgr}
}

var _ prometheus.Collector = (*Collector)(nil)

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- instancesTotalDesc
	ch <- instancesRunningDesc
	ch <- restartsDesc
	ch <- cpuDesc
	ch <- memoryDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	db, err := c.mgr.Store().Load()
	if err != nil {
		return
	}
	snaps := c.mgr.Snapshots()

	running := 0
	for _, snap := range snaps {
		if snap.Status == types.StatusRunning {
			running++
		}
	}

	ch <- prometheus.MustNewConstMetric(instancesTotalDesc, prometheus.GaugeValue, float64(len(db.Instances)))
	ch <- prometheus.MustNewConstMetric(instancesRunningDesc, prometheus.GaugeValue, float64(running))

	for id, rec := range db.Instances {
		snap := snaps[id]
		ch <- prometheus.MustNewConstMetric(restartsDesc, prometheus.CounterValue,
			float64(c.mgr.RestartCount(id)), id, rec.Pubkey)
		ch <- prometheus.MustNewConstMetric(cpuDesc, prometheus.GaugeValue,
			snap.CPUPercent, id, rec.Pubkey)
		ch <- prometheus.MustNewConstMetric(memoryDesc, prometheus.GaugeValue,
			float64(snap.MemoryBytes), id, rec.Pubkey)
	}
}

// Handler serves the text exposition for the /metrics endpoint from a
// private registry holding only the orchestrator collector.
func Handler(mgr *manager.Manager) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(mgr))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
