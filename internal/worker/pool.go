package worker

import (
	"context"
	"sync"

	"imgresize/internal/event"

	"go.uber.org/zap"
)

// Pool runs independent handler invocations concurrently
type Pool struct {
	size      int
	processor *Processor
	logger    *zap.Logger
}

// NewPool creates a new worker pool
func NewPool(size int, processor *Processor, logger *zap.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		size:      size,
		processor: processor,
		logger:    logger,
	}
}

// Start starts the workers; wg is released as each one exits
func (p *Pool) Start(ctx context.Context, tasks <-chan event.UploadEvent, wg *sync.WaitGroup) {
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go p.worker(ctx, i, tasks, wg)
	}
}

func (p *Pool) worker(ctx context.Context, id int, tasks <-chan event.UploadEvent, wg *sync.WaitGroup) {
	defer wg.Done()

	logger := p.logger.With(zap.Int("worker_id", id))
	logger.Debug("Worker started")

	for {
		select {
		case ev, ok := <-tasks:
			if !ok {
				logger.Debug("Worker finished - no more tasks")
				return
			}

			// Failures are logged and counted by the processor
			p.processor.Process(ctx, ev)

		case <-ctx.Done():
			logger.Debug("Worker stopped - context cancelled")
			return
		}
	}
}
