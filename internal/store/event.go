package store

import (
	"context"
	"fmt"
	"sync"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// sequenceCounter manages the global monotonic sequence number shared across
// all tables. Each document table and the LLM event table get their own
// rows, so per-table ids can't establish a cross-table order. The shared
// counter assigns a single increasing sequence to every record, giving
// queries a stable insertion order ("ordered sequence of rows") and letting
// the attempt ledger be read back in the order it was written.
//
// The mutex serializes within the process; the RETURNING clause makes the
// increment atomic at the database level. Next accepts the executor so it
// can run inside an open transaction.
type sequenceCounter struct {
	mu sync.Mutex
}

// newSequenceCounter seeds the counter row if it does not exist yet.
func newSequenceCounter(ctx context.Context, conn dialect.ExecQuerier) (*sequenceCounter, error) {
	err := conn.Exec(ctx,
		`INSERT OR IGNORE INTO global_sequence (id, next_val) VALUES (1, 1)`,
		[]any{}, nil)
	if err != nil {
		return nil, fmt.Errorf("seed sequence: %w", err)
	}
	return &sequenceCounter{}, nil
}

// Next atomically returns the next sequence number and increments the counter.
func (sc *sequenceCounter) Next(ctx context.Context, conn dialect.ExecQuerier) (int64, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var rows entsql.Rows
	err := conn.Query(ctx,
		`UPDATE global_sequence SET next_val = next_val + 1 WHERE id = 1 RETURNING next_val - 1`,
		[]any{}, &rows)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	defer rows.Close()

	seq, err := entsql.ScanInt64(&rows)
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return seq, nil
}
