package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// TrialSweeper revokes entitlement for trials that ran out without the billing
// provider saying so.
type TrialSweeper interface {
	SweepExpiredTrials(ctx context.Context) (int, error)
}

// Manager owns the background tickers: the dispatch cycle and the expired
// trial sweep. Constructed once at startup and injected where needed.
type Manager struct {
	dispatcher       *Dispatcher
	trials           TrialSweeper
	dispatchInterval time.Duration
	sweepInterval    time.Duration
	dispatchTicker   *time.Ticker
	sweepTicker      *time.Ticker
	stopCh           chan struct{}
	wg               sync.WaitGroup
	mu               sync.Mutex
	running          bool
}

// NewManager creates a manager. trials may be nil, in which case the sweep
// worker is not started.
func NewManager(dispatcher *Dispatcher, trials TrialSweeper, dispatchInterval, sweepInterval time.Duration) *Manager {
	if dispatchInterval <= 0 {
		dispatchInterval = time.Minute
	}
	if sweepInterval <= 0 {
		sweepInterval = time.Hour
	}
	return &Manager{
		dispatcher:       dispatcher,
		trials:           trials,
		dispatchInterval: dispatchInterval,
		sweepInterval:    sweepInterval,
	}
}

// Start starts the background workers
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel on each start so the manager can be restarted.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[Dispatch Manager] Starting background workers")

	m.dispatchTicker = time.NewTicker(m.dispatchInterval)
	m.wg.Add(1)
	go m.dispatchWorker()

	if m.trials != nil {
		m.sweepTicker = time.NewTicker(m.sweepInterval)
		m.wg.Add(1)
		go m.trialSweepWorker()
	}

	log.Info("[Dispatch Manager] Started successfully")
}

// Stop stops the background workers and waits for them to finish
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[Dispatch Manager] Stopping background workers...")

	if m.dispatchTicker != nil {
		m.dispatchTicker.Stop()
	}
	if m.sweepTicker != nil {
		m.sweepTicker.Stop()
	}

	close(m.stopCh)
	m.running = false

	m.wg.Wait()
	log.Info("[Dispatch Manager] Stopped successfully")
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// dispatchWorker runs delivery cycles on the dispatch interval
func (m *Manager) dispatchWorker() {
	defer m.wg.Done()
	log.Infof("[Dispatch Manager] Started dispatch worker (interval: %s)", m.dispatchInterval)

	for {
		select {
		case <-m.stopCh:
			log.Info("[Dispatch Manager] Dispatch worker stopping")
			return
		case <-m.dispatchTicker.C:
			if _, err := m.dispatcher.RunCycle(context.Background()); err != nil {
				log.Errorf("[Dispatch Manager] Cycle error: %v", err)
			}
		}
	}
}

// trialSweepWorker revokes expired trials on the sweep interval
func (m *Manager) trialSweepWorker() {
	defer m.wg.Done()
	log.Infof("[Dispatch Manager] Started trial sweep worker (interval: %s)", m.sweepInterval)

	for {
		select {
		case <-m.stopCh:
			log.Info("[Dispatch Manager] Trial sweep worker stopping")
			return
		case <-m.sweepTicker.C:
			revoked, err := m.trials.SweepExpiredTrials(context.Background())
			if err != nil {
				log.Errorf("[Dispatch Manager] Trial sweep error: %v", err)
			}
			if revoked > 0 {
				log.Infof("[Dispatch Manager] Trial sweep revoked %d expired trial(s)", revoked)
			}
		}
	}
}
