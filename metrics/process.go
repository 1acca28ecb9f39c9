package metrics

import (
	"context"
	"math"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/process"
)

// ProcessMonitor samples the resident memory and CPU usage of the current
// process into gauges.
type ProcessMonitor struct {
	proc     *process.Process
	memUsage prometheus.Gauge
	cpuUsage prometheus.Gauge
}

// NewProcessMonitor registers the process gauges on the collector registry.
//
// Arguments:
//   - c: The collector whose registry receives the gauges.
//
// Returns:
//   - *ProcessMonitor: The monitor, ready to Sample or Run.
//   - error: An error if the current process cannot be inspected.
func NewProcessMonitor(c *Collector) (*ProcessMonitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, errors.Wrap(err, "inspect current process")
	}

	m := &ProcessMonitor{
		proc: proc,
		memUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "detector_memory_usage_megabytes",
			Help: "Resident memory of the detector process in megabytes.",
		}),
		cpuUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "detector_cpu_usage_percent",
			Help: "CPU usage of the detector process in percent.",
		}),
	}
	c.registry.MustRegister(m.memUsage, m.cpuUsage)
	return m, nil
}

// Sample reads the process counters once.
func (m *ProcessMonitor) Sample() error {
	mem, err := m.proc.MemoryInfo()
	if err != nil {
		return errors.Wrap(err, "read memory info")
	}
	cpu, err := m.proc.CPUPercent()
	if err != nil {
		return errors.Wrap(err, "read cpu percent")
	}

	m.memUsage.Set(float64(mem.RSS / 1024 / 1024))
	m.cpuUsage.Set(math.Round(cpu*100) / 100)
	return nil
}

// Run samples every interval until ctx is done. Sampling errors are skipped.
func (m *ProcessMonitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = m.Sample()
		}
	}
}
