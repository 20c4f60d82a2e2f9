package poll

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"missionboard/internal/fanout"
)

const DefaultInterval = 10 * time.Second

type Config struct {
	Interval time.Duration
	// Fetch issues the status request of one tick.
	Fetch func(ctx context.Context) (json.RawMessage, error)
}

// Poller requests a status payload on a fixed interval while started
// and hands every successful response to its subscribers. It is the
// fallback for servers that push nothing.
type Poller struct {
	ctx      context.Context
	interval time.Duration
	fetch    func(ctx context.Context) (json.RawMessage, error)

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex

	subscribers fanout.Hub[json.RawMessage]
}

func New(ctx context.Context, cfg Config) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{ctx: ctx, interval: interval, fetch: cfg.Fetch}
}

// Start begins ticking. Calling it while already running does nothing.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(p.ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx, p.done)
}

// Stop halts ticking and waits for an in-flight request to finish.
// Calling it while stopped does nothing.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Poller) Subscribe(fn func(json.RawMessage)) func() {
	return p.subscribers.Subscribe(fn)
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick runs on the ticker goroutine, so ticks never overlap.
func (p *Poller) tick(ctx context.Context) {
	payload, err := p.fetch(ctx)
	if err != nil {
		slog.Debug("poll failed, waiting for next tick", "error", err)
		return
	}
	if ctx.Err() != nil {
		return
	}
	p.subscribers.Publish(payload)
}
