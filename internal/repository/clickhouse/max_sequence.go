package clickhouse

import (
	"context"
	"fmt"
	"time"
)

const maxSequenceQuery = `
SELECT coalesce(max(sequence), toUInt64(0)) AS max_sequence
FROM ledger_events`

// MaxSequence returns the highest stored log sequence, or zero.
func (r *Repository) MaxSequence(ctx context.Context) (seq uint64, err error) {
	start := time.Now()
	defer func() {
		r.metrics.Observe("max_sequence", err, start)
	}()

	rows, err := r.conn.Query(ctx, maxSequenceQuery)
	if err != nil {
		return 0, fmt.Errorf("query max sequence: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close rows: %w", closeErr)
		}
	}()

	if !rows.Next() {
		return 0, fmt.Errorf("max sequence not found")
	}
	if err = rows.Scan(&seq); err != nil {
		return 0, fmt.Errorf("scan max sequence: %w", err)
	}
	if err = rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate max sequence: %w", err)
	}
	return seq, nil
}
