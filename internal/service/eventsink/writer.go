// Package eventsink streams committed ledger logs into the event store.
package eventsink

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/goodnatureofminers/reach-engine/internal/chain"
	"github.com/goodnatureofminers/reach-engine/internal/model"
	"github.com/goodnatureofminers/reach-engine/pkg/batcher"
)

const (
	batchCapacity      = 1000
	batchFlushInterval = 2 * time.Second
	batchRPS           = 20
)

// eventNamespace seeds deterministic record ids so a replayed batch
// produces the same rows.
var eventNamespace = uuid.MustParse("6f1c1b9e-4c77-4d0b-9a43-2f52b8f0c0de")

// Writer is a chain.LogSink that batches logs into the repository.
// Sequences continue from what the store already holds.
type Writer struct {
	repo    Repository
	metrics Metrics
	logger  *zap.Logger
	batcher *batcher.Batcher[model.EventRecord]

	mu     sync.Mutex
	ctx    context.Context
	offset uint64
}

func NewWriter(repo Repository, metrics Metrics, clk clockwork.Clock, logger *zap.Logger) *Writer {
	w := &Writer{
		repo:    repo,
		metrics: metrics,
		logger:  logger,
		ctx:     context.Background(),
	}
	w.batcher = batcher.New[model.EventRecord](
		logger.Named("eventBatcher"),
		clk,
		w.flush,
		batchCapacity,
		batchFlushInterval,
		batchRPS,
	)
	return w
}

// Start resumes numbering after the stored maximum and starts flushing.
func (w *Writer) Start(ctx context.Context) error {
	offset, err := w.repo.MaxSequence(ctx)
	if err != nil {
		return fmt.Errorf("resume event sequence: %w", err)
	}
	w.mu.Lock()
	w.ctx = ctx
	w.offset = offset
	w.mu.Unlock()

	w.logger.Info("event sink started", zap.Uint64("offset", offset))
	w.batcher.Start(ctx)
	return nil
}

// Stop flushes what is queued.
func (w *Writer) Stop() {
	w.batcher.Stop()
}

// Consume implements chain.LogSink.
func (w *Writer) Consume(logs []chain.Log) {
	w.mu.Lock()
	ctx, offset := w.ctx, w.offset
	w.mu.Unlock()

	for _, l := range logs {
		record, err := Record(l, offset)
		if err != nil {
			w.metrics.ObserveDropped()
			w.logger.Warn("event not encoded", zap.Uint64("seq", l.Seq), zap.Error(err))
			continue
		}
		if err := w.batcher.Add(ctx, record); err != nil {
			w.metrics.ObserveDropped()
			w.logger.Warn("event not queued", zap.Uint64("seq", record.Sequence), zap.Error(err))
		}
	}
}

func (w *Writer) flush(ctx context.Context, records []model.EventRecord) error {
	started := time.Now()
	err := w.repo.InsertEvents(ctx, records)
	w.metrics.ObserveFlush(err, len(records), started)
	return err
}

// Record converts a committed log into its stored form.
func Record(l chain.Log, offset uint64) (model.EventRecord, error) {
	payload, err := json.Marshal(l.Event)
	if err != nil {
		return model.EventRecord{}, fmt.Errorf("encode %s: %w", l.Event.EventName(), err)
	}
	seq := offset + l.Seq
	return model.EventRecord{
		ID:        uuid.NewSHA1(eventNamespace, []byte(strconv.FormatUint(seq, 10))),
		Sequence:  seq,
		Contract:  l.Contract.Hex(),
		Name:      l.Event.EventName(),
		Payload:   string(payload),
		Timestamp: l.Timestamp.UTC(),
	}, nil
}
