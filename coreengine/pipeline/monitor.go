package pipeline

import (
	"sync"
	"time"

	"github.com/jeeves-cluster-organization/answerhub/agentcomm"
	"github.com/jeeves-cluster-organization/answerhub/coreengine/envelope"
	"github.com/jeeves-cluster-organization/answerhub/coreengine/observability"
)

// HealthMonitor periodically snapshots worker status. Side channel only: it
// logs, updates gauges, and drives the optional serving callback, but never
// feeds back into routing or scheduling.
type HealthMonitor struct {
	controller *Controller
	interval   time.Duration
	logger     agentcomm.Logger

	// setServing, when non-nil, is invoked per worker on every poll.
	// The gRPC health surface hooks in here.
	setServing func(role envelope.Role, healthy bool)

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewHealthMonitor creates a monitor polling at the given interval.
func NewHealthMonitor(controller *Controller, interval time.Duration, logger agentcomm.Logger) *HealthMonitor {
	if logger == nil {
		logger = agentcomm.NopLogger{}
	}
	return &HealthMonitor{
		controller: controller,
		interval:   interval,
		logger:     logger.Bind("component", "health_monitor"),
	}
}

// OnServingChange installs the per-worker serving callback. Must be called
// before Start.
func (m *HealthMonitor) OnServingChange(fn func(role envelope.Role, healthy bool)) {
	m.setServing = fn
}

// Start begins the polling loop.
func (m *HealthMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.loop(m.stop, m.done)
	m.logger.Info("health_monitor_started", "interval", m.interval.String())
}

// Stop halts the polling loop and waits for it to exit.
func (m *HealthMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stop)
	done := m.done
	m.mu.Unlock()

	<-done
	m.logger.Info("health_monitor_stopped")
}

func (m *HealthMonitor) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// One eager poll so serving status is populated before the first tick.
	m.poll()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.poll()
		}
	}
}

func (m *HealthMonitor) poll() {
	for role, status := range m.controller.WorkerStatuses() {
		observability.SetWorkerInboxDepth(string(role), status.InboxDepth)
		if !status.Running {
			m.logger.Warn("worker_not_running",
				"role", string(role),
				"pending_requests", status.PendingRequests,
			)
		}
		if m.setServing != nil {
			m.setServing(role, status.Running)
		}
	}
}

// Snapshot returns the current status of every worker.
func (m *HealthMonitor) Snapshot() map[envelope.Role]agentcomm.StatusSnapshot {
	return m.controller.WorkerStatuses()
}
