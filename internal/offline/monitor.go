package offline

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Monitor tracks network reachability by probing a URL. Any HTTP response
// counts as reachable; a transport failure counts as offline.
type Monitor struct {
	url      string
	interval time.Duration
	timeout  time.Duration
	client   *http.Client
	logger   *slog.Logger

	mu      sync.RWMutex
	offline bool
	subs    map[int]chan bool
	nextSub int
}

// NewMonitor creates a Monitor that starts out online.
func NewMonitor(url string, interval, timeout time.Duration, logger *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		url:      url,
		interval: interval,
		timeout:  timeout,
		client:   &http.Client{},
		logger:   logger.With("component", "offline"),
		subs:     make(map[int]chan bool),
	}
}

// Run checks immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check tests reachability once, updates the state, and returns whether the
// network is reachable.
func (m *Monitor) Check(ctx context.Context) bool {
	if m.url == "" {
		return !m.IsOffline()
	}

	pctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	reachable := false
	req, err := http.NewRequestWithContext(pctx, http.MethodHead, m.url, nil)
	if err == nil {
		resp, err := m.client.Do(req)
		if err == nil {
			resp.Body.Close()
			reachable = true
		} else {
			m.logger.Debug("reachability check failed", "url", m.url, "error", err)
		}
	}

	if ctx.Err() == nil {
		m.Set(!reachable)
	}
	return reachable
}

// IsOffline reports the last observed state.
func (m *Monitor) IsOffline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.offline
}

// Set records a reachability state and notifies subscribers on a transition.
func (m *Monitor) Set(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.offline == offline {
		return
	}
	m.offline = offline
	m.logger.Info("network state changed", "offline", offline)
	for _, ch := range m.subs {
		select {
		case ch <- offline:
		default:
		}
	}
}

// Subscribe returns a channel that receives the new state on every
// transition, and a function that cancels the subscription. Slow receivers
// miss transitions rather than block the monitor.
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	ch := make(chan bool, 1)
	m.subs[id] = ch
	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(ch)
		}
	}
}
