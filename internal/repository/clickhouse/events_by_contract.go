package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/goodnatureofminers/reach-engine/internal/model"
)

const eventsByContractQuery = `
SELECT id, sequence, contract, name, payload, timestamp
FROM ledger_events FINAL
WHERE contract = ? AND sequence > ?
ORDER BY sequence
LIMIT ?`

// EventsByContract returns up to limit events of contract with a sequence
// above after, oldest first.
func (r *Repository) EventsByContract(ctx context.Context, contract string, after uint64, limit int) (events []model.EventRecord, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("events_by_contract", err, start)
	}()

	if limit <= 0 {
		return nil, nil
	}

	rows, err := r.conn.Query(ctx, eventsByContractQuery, contract, after, limit)
	if err != nil {
		return nil, fmt.Errorf("query events by contract: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close rows: %w", closeErr)
		}
	}()

	events = make([]model.EventRecord, 0, limit)
	for rows.Next() {
		var e model.EventRecord
		if err = rows.Scan(&e.ID, &e.Sequence, &e.Contract, &e.Name, &e.Payload, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
