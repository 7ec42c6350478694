// Package netmon derives an effective online/offline signal for the
// client.
//
// Two probes run independently on a fixed cadence: one against the
// remote store's health endpoint, one against a well-known external
// host. Effective online is their conjunction — a coarse OS-level
// "online" event can report connectivity with no real route to either
// endpoint, so such events are only accepted as a hint to re-probe
// sooner, never as ground truth.
package netmon

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Status is a named connectivity state. Transitions between the two
// states are explicit: the monitor reports every edge through the
// OnTransition callback, and only the offline->online edge carries an
// action (it triggers the sync driver).
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// DefaultNetworkProbeURL is a conventional captive-portal check host
// answering 204 with no body.
const DefaultNetworkProbeURL = "http://clients3.google.com/generate_204"

// ProbeFunc checks reachability of one endpoint. A non-nil error means
// unreachable.
type ProbeFunc func(ctx context.Context) error

// Config configures the monitor.
type Config struct {
	// StoreProbe checks the remote store's health endpoint. Required.
	StoreProbe ProbeFunc

	// NetworkProbe checks general network reachability. Defaults to an
	// HTTP probe of DefaultNetworkProbeURL.
	NetworkProbe ProbeFunc

	// OnTransition is invoked from the monitor goroutine on every
	// status edge. Optional.
	OnTransition func(Status)

	Logger *slog.Logger

	// Interval between probe rounds. Defaults to 1s.
	Interval time.Duration

	// Timeout per probe call. Defaults to 800ms.
	Timeout time.Duration
}

// Monitor polls both probes and exposes the derived status.
type Monitor struct {
	storeProbe   ProbeFunc
	networkProbe ProbeFunc
	onTransition func(Status)
	logger       *slog.Logger
	hint         chan struct{}
	done         chan struct{}
	cancel       context.CancelFunc
	interval     time.Duration
	timeout      time.Duration

	mu               sync.Mutex
	status           Status
	storeReachable   bool
	networkReachable bool
	started          bool
}

// HTTPProbe returns a ProbeFunc performing a GET against url with the
// given client. Any HTTP response counts as reachable.
func HTTPProbe(client *http.Client, url string) ProbeFunc {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		return resp.Body.Close()
	}
}

// New creates a monitor. Call Start to begin probing.
func New(cfg Config) *Monitor {
	if cfg.NetworkProbe == nil {
		cfg.NetworkProbe = HTTPProbe(&http.Client{}, DefaultNetworkProbeURL)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 800 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Monitor{
		storeProbe:   cfg.StoreProbe,
		networkProbe: cfg.NetworkProbe,
		onTransition: cfg.OnTransition,
		logger:       cfg.Logger,
		interval:     cfg.Interval,
		timeout:      cfg.Timeout,
		hint:         make(chan struct{}, 1),
		done:         make(chan struct{}),
		status:       StatusOffline,
	}
}

// Start launches the probe loop. The loop runs until Stop is called or
// ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	ctx, m.cancel = context.WithCancel(ctx)

	go func() {
		defer close(m.done)

		// probe immediately on start, then on the fixed cadence
		m.probeRound(ctx)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.probeRound(ctx)
			case <-m.hint:
				m.probeRound(ctx)
			}
		}
	}()
}

// Stop cancels the probe loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if !started || m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
}

// ProbeOnce runs a single probe round synchronously and returns the
// resulting status. One-shot callers that never start the loop use it
// to observe real connectivity before deciding between the direct path
// and the pending queue.
func (m *Monitor) ProbeOnce(ctx context.Context) Status {
	m.probeRound(ctx)
	return m.Status()
}

// Hint asks the monitor to re-probe sooner than the next tick. Used for
// coarse OS connectivity-change events, which are never trusted by
// themselves.
func (m *Monitor) Hint() {
	select {
	case m.hint <- struct{}{}:
	default:
	}
}

// Status returns the current effective status.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Online reports whether the effective status is online.
func (m *Monitor) Online() bool {
	return m.Status() == StatusOnline
}

// Reachability returns the two underlying probe results.
func (m *Monitor) Reachability() (storeReachable, networkReachable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.storeReachable, m.networkReachable
}

// probeRound runs both probes concurrently and folds the results into
// the status, firing OnTransition on an edge.
func (m *Monitor) probeRound(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var wg sync.WaitGroup
	var storeOK, networkOK bool

	wg.Add(2)
	go func() {
		defer wg.Done()
		storeOK = m.storeProbe(probeCtx) == nil
	}()
	go func() {
		defer wg.Done()
		networkOK = m.networkProbe(probeCtx) == nil
	}()
	wg.Wait()

	if ctx.Err() != nil {
		return
	}

	newStatus := StatusOffline
	if storeOK && networkOK {
		newStatus = StatusOnline
	}

	m.mu.Lock()
	m.storeReachable = storeOK
	m.networkReachable = networkOK
	changed := m.status != newStatus
	m.status = newStatus
	m.mu.Unlock()

	if !changed {
		return
	}

	m.logger.Info("connectivity changed",
		"status", newStatus,
		"store_reachable", storeOK,
		"network_reachable", networkOK)

	if m.onTransition != nil {
		m.onTransition(newStatus)
	}
}
