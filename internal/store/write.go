package store

import (
	"context"
	"fmt"

	"github.com/roach88/plcscan/internal/ir"
)

// WriteRun inserts a run record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) WriteRun(ctx context.Context, run ir.RunRecord) error {
	if run.ID == "" {
		return fmt.Errorf("write run: empty id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, project_name, project_digest, period_ms)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.ProjectName,
		run.ProjectDigest,
		run.PeriodMillis,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// WriteScan records one published snapshot and its tag values in a single
// transaction. A (run, seq) pair already recorded is left untouched and
// reported as not inserted.
//
// Note: The run referenced by RunID must exist (foreign key constraint).
func (s *Store) WriteScan(ctx context.Context, scan ir.ScanRecord) (inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("write scan: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	res, err := tx.ExecContext(ctx, `
		INSERT INTO scans (run_id, seq, scans, mode, digest)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		scan.RunID,
		scan.Seq,
		scan.Scans,
		string(scan.Mode),
		scan.Digest,
	)
	if err != nil {
		return false, fmt.Errorf("write scan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write scan: rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tag_values (run_id, seq, position, tag_id, value, forced)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return false, fmt.Errorf("write scan: prepare: %w", err)
	}
	defer stmt.Close()

	for i, tag := range scan.Tags {
		value, err := marshalValue(tag.Value)
		if err != nil {
			return false, fmt.Errorf("write scan: tag %s: %w", tag.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, scan.RunID, scan.Seq, i, tag.ID, value, boolToInt(tag.Forced)); err != nil {
			return false, fmt.Errorf("write scan: tag %s: %w", tag.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("write scan: commit: %w", err)
	}
	return true, nil
}
