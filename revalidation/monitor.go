// Package revalidation re-checks live admin sessions on a fixed interval while
// their tabs stay open.
package revalidation

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-admin-gate/login"
	"github.com/jrsteele09/go-admin-gate/sessions"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultInterval is how often each tracked session is revalidated.
const DefaultInterval = 60 * time.Second

const defaultConcurrency = 8

// Revalidator is the part of login.Flow the monitor drives.
type Revalidator interface {
	Revalidate(ctx context.Context, tabID string, fp sessions.Fingerprint) (*sessions.Record, error)
}

// Monitor periodically revalidates every tracked tab. A tab whose session fails
// revalidation is logged out by the flow and dropped from tracking.
type Monitor struct {
	flow        Revalidator
	interval    time.Duration
	concurrency int

	mu   sync.Mutex
	tabs map[string]sessions.Fingerprint
}

// New returns a Monitor. A non-positive interval uses DefaultInterval.
func New(flow Revalidator, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		flow:        flow,
		interval:    interval,
		concurrency: defaultConcurrency,
		tabs:        make(map[string]sessions.Fingerprint),
	}
}

// Interval returns the revalidation period.
func (m *Monitor) Interval() time.Duration {
	return m.interval
}

// Track starts revalidating tabID with the fingerprint its session is sealed for.
func (m *Monitor) Track(tabID string, fp sessions.Fingerprint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tabs[tabID] = fp
}

// Untrack stops revalidating tabID.
func (m *Monitor) Untrack(tabID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tabs, tabID)
}

// Tracking reports whether tabID is being revalidated.
func (m *Monitor) Tracking(tabID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tabs[tabID]
	return ok
}

// Len returns the number of tracked tabs.
func (m *Monitor) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tabs)
}

// LogoutHook untracks tabs as they are logged out. Register it with
// login.Flow.OnLogout.
func (m *Monitor) LogoutHook(tabID string, _ login.LogoutReason) {
	m.Untrack(tabID)
}

// Sweep revalidates every tracked tab once.
func (m *Monitor) Sweep(ctx context.Context) {
	m.mu.Lock()
	snapshot := make(map[string]sessions.Fingerprint, len(m.tabs))
	for id, fp := range m.tabs {
		snapshot[id] = fp
	}
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for tabID, fp := range snapshot {
		g.Go(func() error {
			if _, err := m.flow.Revalidate(gctx, tabID, fp); err != nil {
				log.Debug().Str("tab", tabID).Str("kind", login.KindOf(err).String()).Msg("session dropped by revalidation")
				m.Untrack(tabID)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Run sweeps every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", m.interval).Msg("session revalidation started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("session revalidation stopped")
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}
