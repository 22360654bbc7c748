package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Reconciler brings an external copy of the ledger back in step.
type Reconciler interface {
	Reconcile(ctx context.Context) error
}

type ReconcileProcessorConfig struct {
	// Interval between runs (default: 15m).
	Interval time.Duration

	// RunOnStart runs once immediately (default: true).
	RunOnStart bool
}

func DefaultReconcileProcessorConfig() ReconcileProcessorConfig {
	return ReconcileProcessorConfig{
		Interval:   15 * time.Minute,
		RunOnStart: true,
	}
}

// ReconcileProcessor runs a Reconciler on a fixed interval until stopped.
type ReconcileProcessor struct {
	reconciler Reconciler
	config     ReconcileProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewReconcileProcessor(reconciler Reconciler, config ReconcileProcessorConfig) *ReconcileProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultReconcileProcessorConfig().Interval
	}
	return &ReconcileProcessor{reconciler: reconciler, config: config}
}

// Start begins the loop. Returns an error if already running.
func (p *ReconcileProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("reconcile processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Reconcile processor started",
		"component", "worker",
		"interval", p.config.Interval.String())
	return nil
}

// Stop signals the loop and waits for the current run to finish.
func (p *ReconcileProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Reconcile processor stopped", "component", "worker")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Reconcile processor stop timed out", "component", "worker")
		return ctx.Err()
	}
}

func (p *ReconcileProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ReconcileProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	if p.config.RunOnStart {
		p.runOnce(ctx)
	}

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *ReconcileProcessor) runOnce(ctx context.Context) {
	if err := p.reconciler.Reconcile(ctx); err != nil {
		slog.ErrorContext(ctx, "Reconciliation failed", "component", "worker", "error", err)
	}
}
