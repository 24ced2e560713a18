package network

import (
	"context"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Baleenmedia2512/recordingapp--ramesh/ccc/logging"
)

// ProbeFunc reports whether the network currently reaches the storage backend
type ProbeFunc func(ctx context.Context) bool

// Monitor watches connectivity and fires a callback when the network comes
// back after an outage. The callback is the queue's reconnect trigger.
type Monitor interface {
	// Start begins periodic connectivity probing. Calling Start on a running
	// monitor is a no-op.
	Start()

	// Stop ends probing
	Stop()

	// IsOnline returns the last observed connectivity state
	IsOnline() bool
}

// connectivityMonitor implements Monitor with a polling probe
type connectivityMonitor struct {
	probe       ProbeFunc
	interval    time.Duration
	onReconnect func()
	logger      logging.Logger

	mu        sync.Mutex
	isRunning bool
	online    bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// NewMonitor creates a connectivity monitor. onReconnect runs on every
// offline-to-online transition.
func NewMonitor(probe ProbeFunc, interval time.Duration, onReconnect func(), logger logging.Logger) Monitor {
	if logger == nil {
		logger = logging.NopLogger
	}

	return &connectivityMonitor{
		probe:       probe,
		interval:    interval,
		onReconnect: onReconnect,
		logger:      logger,
		// Assume online until the first probe says otherwise, so startup
		// on a healthy network never counts as a reconnect
		online: true,
	}
}

// Start begins periodic connectivity probing
func (m *connectivityMonitor) Start() {
	m.mu.Lock()
	if m.isRunning {
		m.mu.Unlock()
		m.logger.Warn("Network monitor already running")
		return
	}
	m.isRunning = true
	m.stopChan = make(chan struct{})
	m.mu.Unlock()

	m.logger.Info("Starting network monitor", "interval", m.interval)

	m.wg.Add(1)
	go m.run(m.stopChan)
}

// Stop ends probing
func (m *connectivityMonitor) Stop() {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return
	}
	m.isRunning = false
	close(m.stopChan)
	m.mu.Unlock()

	m.wg.Wait()
}

// IsOnline returns the last observed connectivity state
func (m *connectivityMonitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *connectivityMonitor) run(stopChan <-chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.check()
		case <-stopChan:
			return
		}
	}
}

// check probes connectivity and fires the reconnect callback on transition
func (m *connectivityMonitor) check() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	online := m.probe(ctx)
	cancel()

	m.mu.Lock()
	wasOnline := m.online
	m.online = online
	m.mu.Unlock()

	if online && !wasOnline {
		m.logger.Info("Network reconnected, triggering upload retry")
		if m.onReconnect != nil {
			m.onReconnect()
		}
	} else if !online && wasOnline {
		m.logger.Warn("Network connection lost")
	}
}

// HTTPProbe builds a ProbeFunc that issues a HEAD request to the given URL.
// Any response, including an error status, proves the network path works.
func HTTPProbe(url string) ProbeFunc {
	client := resty.New()

	return func(ctx context.Context) bool {
		_, err := client.R().SetContext(ctx).Head(url)
		return err == nil
	}
}
