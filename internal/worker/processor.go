package worker

import (
	"context"
	"errors"
	"strings"
	"time"

	"imgresize/internal/event"
	"imgresize/internal/handler"
	"imgresize/internal/journal"
	"imgresize/internal/metrics"

	"go.uber.org/zap"
)

// EventHandler handles a single upload event
type EventHandler interface {
	Handle(ctx context.Context, ev event.UploadEvent) (handler.Result, error)
}

// Processor wraps an EventHandler with metrics, journaling and logging
type Processor struct {
	handler EventHandler
	journal journal.Store
	metrics *metrics.Collector
	logger  *zap.Logger
}

// NewProcessor creates a Processor. The journal may be nil.
func NewProcessor(h EventHandler, journalStore journal.Store, metricsCollector *metrics.Collector, logger *zap.Logger) *Processor {
	return &Processor{
		handler: h,
		journal: journalStore,
		metrics: metricsCollector,
		logger:  logger,
	}
}

// Process handles one event and returns the handler's error
func (p *Processor) Process(ctx context.Context, ev event.UploadEvent) (handler.Result, error) {
	startTime := time.Now()
	done := p.metrics.Begin()
	defer done()

	res, err := p.handler.Handle(ctx, ev)
	if err != nil {
		p.metrics.IncFailed()
		p.record(ev, res, journal.StatusFailed, err.Error())
		p.logger.Error("Event failed",
			zap.String("bucket", ev.Bucket),
			zap.String("key", ev.Key),
			zap.Bool("cancelled", errors.Is(err, context.Canceled)),
			zap.Error(err),
		)
		return res, err
	}

	if res.Outcome.Skipped() {
		p.metrics.IncSkipped(string(res.Outcome))
		p.record(ev, res, journal.StatusSkipped, string(res.Outcome))
		return res, nil
	}

	p.metrics.IncProcessedWithBytes(ev.Size)
	p.metrics.ObserveDuration(time.Since(startTime))
	p.metrics.ObserveOutputSize(res.Resize.Width, res.Resize.Height)
	p.record(ev, res, journal.StatusProcessed, "")

	p.logger.Info("Event processed",
		zap.String("bucket", ev.Bucket),
		zap.String("key", ev.Key),
		zap.String("resized_key", res.Paths.ResizedKey),
		zap.Duration("duration", time.Since(startTime)),
	)
	return res, nil
}

func (p *Processor) record(ev event.UploadEvent, res handler.Result, status journal.Status, detail string) {
	if p.journal == nil {
		return
	}

	entry := &journal.Entry{
		Bucket:      ev.Bucket,
		Key:         ev.Key,
		ResizedKey:  res.Paths.ResizedKey,
		ContentType: ev.ContentType,
		Status:      status,
		Detail:      detail,
	}

	if err := p.journal.Record(entry); err != nil {
		// Check if this is a database closed error
		if strings.Contains(err.Error(), "closed") {
			p.logger.Warn("Cannot record event - journal is closed",
				zap.String("bucket", ev.Bucket),
				zap.String("key", ev.Key))
		} else {
			p.logger.Error("Failed to record event",
				zap.String("bucket", ev.Bucket),
				zap.String("key", ev.Key),
				zap.Error(err))
		}
	}
}
