package workers

import (
	"context"
	"gym-chat/observability"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

type presence interface {
	Count() int
	Users() int
}

// HealthMonitoringWorker samples presence and the server process footprint
// and publishes them as gauges.
type HealthMonitoringWorker struct {
	log            *slog.Logger
	presence       presence
	metrics        *observability.Metrics
	metricInterval time.Duration
	pid            int32
}

func NewHealthMonitoringWorker(log *slog.Logger, presence presence,
	metrics *observability.Metrics, metricInterval time.Duration) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{
		log:            log,
		presence:       presence,
		metrics:        metrics,
		metricInterval: metricInterval,
		pid:            int32(os.Getpid()),
	}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitoring")
			return nil
		case <-ticker.C:
			w.sample()
		}
	}
}

func (w *HealthMonitoringWorker) sample() {
	connections, users := w.presence.Count(), w.presence.Users()
	w.metrics.Connections.Set(float64(connections))
	w.metrics.OnlineUsers.Set(float64(users))

	p, err := process.NewProcess(w.pid)
	if err != nil {
		w.log.Debug("Error while retrieving process", "pid", w.pid, "err", err)
		return
	}
	if mem, err := p.MemoryInfo(); err == nil {
		w.metrics.ProcessRSSBytes.Set(float64(mem.RSS))
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		w.log.Debug("Error while finding process cpu usage", "err", err)
		return
	}
	w.metrics.ProcessCPUPercent.Set(cpu)
	w.log.Debug("Health sample", "connections", connections, "users", users, "cpu", cpu)
}
