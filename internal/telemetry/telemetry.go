// SPDX-License-Identifier: MIT
// Package telemetry publishes engine snapshots to external consumers. It is
// the host-side adapter for the engine's output boundary: the engine stays
// single-threaded while a publisher goroutine fans completed snapshots out
// to the configured transports at a bounded rate.
package telemetry

import (
	"sync"
	"time"

	"ici/internal/coherence"

	applog "ici/internal/log"
)

// Transport defines a generic interface for sending snapshot data.
// Implementations must be safe for use from the publisher goroutine.
type Transport interface {
	Send(data any) error
	Close() error
}

// Publisher receives snapshots from the processing goroutine (latest-wins,
// never blocking the block path) and broadcasts the most recent one to all
// transports on a fixed interval. Managed by Start and Stop.
type Publisher struct {
	transports []Transport
	interval   time.Duration

	latest chan coherence.Snapshot // Capacity 1; Submit overwrites.

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.
}

// NewPublisher creates a publisher broadcasting to the given transports.
// An interval <= 0 defaults to 33ms (~30Hz).
func NewPublisher(interval time.Duration, transports ...Transport) *Publisher {
	if interval <= 0 {
		interval = 33 * time.Millisecond
		applog.Warnf("Telemetry: invalid publish interval, defaulting to %s", interval)
	}
	return &Publisher{
		transports: transports,
		interval:   interval,
		latest:     make(chan coherence.Snapshot, 1),
	}
}

// Submit hands a snapshot to the publisher without blocking. If a snapshot
// is already pending it is replaced; consumers only ever care about the
// newest state.
func (p *Publisher) Submit(s coherence.Snapshot) {
	select {
	case p.latest <- s:
	default:
		// Drop the stale pending snapshot and try once more. If another
		// writer won the race, losing this snapshot is fine.
		select {
		case <-p.latest:
		default:
		}
		select {
		case p.latest <- s:
		default:
		}
	}
}

// Start launches the broadcast goroutine. Safe to call more than once;
// subsequent calls are no-ops while running.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("Telemetry: Start called but publisher already running")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Capture for the goroutine to avoid races with Stop.
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	applog.Infof("Telemetry: publishing every %s to %d transport(s)", p.interval, len(p.transports))

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ticker.C:
				p.broadcastLatest()
			case <-doneChan:
				return
			}
		}
	}()
}

// broadcastLatest sends the pending snapshot, if any, to every transport.
func (p *Publisher) broadcastLatest() {
	var snapshot coherence.Snapshot
	select {
	case snapshot = <-p.latest:
	default:
		return // Nothing new since the last tick.
	}

	for _, t := range p.transports {
		if err := t.Send(snapshot); err != nil {
			applog.Errorf("Telemetry: send failed: %v", err)
		}
	}
}

// Stop halts the broadcast goroutine, waits for it to finish, and closes
// all transports. Safe to call more than once.
func (p *Publisher) Stop() {
	p.mu.Lock()
	ticker := p.ticker
	doneChan := p.doneChan
	p.ticker = nil
	p.doneChan = nil
	p.mu.Unlock()

	if ticker == nil {
		return
	}

	p.stopOnce.Do(func() {
		ticker.Stop()
		close(doneChan)
	})
	p.wg.Wait()

	for _, t := range p.transports {
		if err := t.Close(); err != nil {
			applog.Errorf("Telemetry: transport close failed: %v", err)
		}
	}
}
