package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/goodnatureofminers/reach-engine/internal/model"
)

const insertEventsQuery = `
INSERT INTO ledger_events (
	id,
	sequence,
	contract,
	name,
	payload,
	timestamp
) VALUES`

// InsertEvents stores committed ledger events in ClickHouse.
func (r *Repository) InsertEvents(ctx context.Context, events []model.EventRecord) error {
	start := time.Now()
	var err error
	defer func() {
		r.metrics.Observe("insert_events", err, start)
	}()

	if len(events) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, insertEventsQuery)
	if err != nil {
		return fmt.Errorf("prepare events batch: %w", err)
	}

	for _, e := range events {
		if err = batch.Append(
			e.ID,
			e.Sequence,
			e.Contract,
			e.Name,
			e.Payload,
			e.Timestamp,
		); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append event %d: %w", e.Sequence, err)
		}
	}

	if err = batch.Send(); err != nil {
		return fmt.Errorf("insert events: %w", err)
	}
	return nil
}
