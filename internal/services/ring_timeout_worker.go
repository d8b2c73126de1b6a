package services

import (
	"context"
	"sync"
	"time"

	"pulse-chat/internal/repository"
	"pulse-chat/pkg/logger"

	"go.uber.org/zap"
)

// RingTimeoutWorker polls for calls nobody answered within the ring timeout
// and ends them as MISSED.
type RingTimeoutWorker struct {
	calls     repository.CallRepository
	service   *CallService
	timeout   time.Duration
	interval  time.Duration
	batchSize int
	logger    *logger.Logger
	now       func() time.Time
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewRingTimeoutWorker(calls repository.CallRepository, service *CallService, timeout time.Duration, l *logger.Logger) *RingTimeoutWorker {
	if l == nil {
		l = logger.NewNop()
	}
	interval := timeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	return &RingTimeoutWorker{
		calls:     calls,
		service:   service,
		timeout:   timeout,
		interval:  interval,
		batchSize: 100,
		logger:    l.Named("ring_timeout"),
		now:       time.Now,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the worker loop
func (w *RingTimeoutWorker) Start() {
	w.wg.Add(1)
	go w.run()
}

// Stop gracefully shuts down
func (w *RingTimeoutWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
}

func (w *RingTimeoutWorker) run() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.processBatch(context.Background())
		}
	}
}

// processBatch expires one batch of stale calls and returns how many were
// ended.
func (w *RingTimeoutWorker) processBatch(ctx context.Context) int {
	cutoff := w.now().Add(-w.timeout)
	stale, err := w.calls.GetUnansweredBefore(ctx, cutoff, w.batchSize)
	if err != nil {
		w.logger.Logger.Warn("list unanswered calls", zap.Error(err))
		return 0
	}

	expired := 0
	for _, c := range stale {
		ok, err := w.service.ExpireUnanswered(ctx, c.ID)
		if err != nil {
			w.logger.Logger.Warn("expire call", zap.String("call_id", c.ID.String()), zap.Error(err))
			continue
		}
		if ok {
			expired++
		}
	}
	if expired > 0 {
		w.logger.Infof("marked %d unanswered calls as missed", expired)
	}
	return expired
}
