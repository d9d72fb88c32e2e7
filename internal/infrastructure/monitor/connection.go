package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Pinger is anything that can report its own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to the Pinger interface.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// RedisPinger checks a go-redis client.
func RedisPinger(client *redislib.Client) Pinger {
	return PingFunc(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}

type check struct {
	name   string
	pinger Pinger
}

// Monitor periodically pings the task store and the optional scan lock backend.
type Monitor struct {
	checks []check

	status   Status
	mu       sync.RWMutex
	interval time.Duration
	timeout  time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

func New(interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		interval: interval,
		timeout:  3 * time.Second,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

// Add registers a named dependency. Call before Start.
func (m *Monitor) Add(name string, p Pinger) {
	if p == nil {
		return
	}
	m.checks = append(m.checks, check{name: name, pinger: p})
}

func (m *Monitor) Start() {
	m.Refresh(context.Background())
	go m.loop()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.Healthy
}

func (m *Monitor) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	components := make(map[string]bool, len(m.status.Components))
	for k, v := range m.status.Components {
		components[k] = v
	}
	status := m.status
	status.Components = components
	return status
}

// Names lists the registered dependency names in sorted order.
func (m *Monitor) Names() []string {
	names := make([]string, 0, len(m.checks))
	for _, c := range m.checks {
		names = append(names, c.name)
	}
	sort.Strings(names)
	return names
}

func (m *Monitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Refresh(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// Refresh pings every dependency once and stores the outcome.
func (m *Monitor) Refresh(ctx context.Context) Status {
	status := Status{
		Components: make(map[string]bool, len(m.checks)),
		Healthy:    true,
		LastCheck:  time.Now(),
	}
	for _, c := range m.checks {
		pingCtx, cancel := context.WithTimeout(ctx, m.timeout)
		err := c.pinger.Ping(pingCtx)
		cancel()
		if err != nil {
			m.logger.Warn("dependency check failed", zap.String("component", c.name), zap.Error(err))
			status.Healthy = false
		}
		status.Components[c.name] = err == nil
	}

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
	return status
}
