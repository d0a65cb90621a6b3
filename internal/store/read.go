package store

import (
	"context"
	"fmt"

	"github.com/roach88/plcscan/internal/ir"
)

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (ir.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_name, project_digest, period_ms
		FROM runs
		WHERE id = ?
	`, id)

	var r ir.RunRecord
	if err := row.Scan(&r.ID, &r.ProjectName, &r.ProjectDigest, &r.PeriodMillis); err != nil {
		return ir.RunRecord{}, err
	}
	return r, nil
}

// ReadRuns returns all runs ordered by id. Run ids are UUIDv7, so this is
// creation order.
//
// Returns an empty slice (not nil) if nothing was recorded.
func (s *Store) ReadRuns(ctx context.Context) ([]ir.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_name, project_digest, period_ms
		FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.RunRecord{}
	for rows.Next() {
		var r ir.RunRecord
		if err := rows.Scan(&r.ID, &r.ProjectName, &r.ProjectDigest, &r.PeriodMillis); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the most recently created run.
// Returns sql.ErrNoRows if the store is empty.
func (s *Store) LatestRun(ctx context.Context) (ir.RunRecord, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM runs ORDER BY id COLLATE BINARY DESC LIMIT 1
	`).Scan(&id)
	if err != nil {
		return ir.RunRecord{}, err
	}
	return s.ReadRun(ctx, id)
}

// ReadScans returns every recorded scan of a run, ordered by seq, with
// tag values in project order.
//
// Returns an empty slice (not nil) if the run has no scans.
func (s *Store) ReadScans(ctx context.Context, runID string) ([]ir.ScanRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, scans, mode, digest
		FROM scans
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}

	scans := []ir.ScanRecord{}
	index := make(map[int64]int)
	for rows.Next() {
		rec := ir.ScanRecord{RunID: runID}
		var mode string
		if err := rows.Scan(&rec.Seq, &rec.Scans, &mode, &rec.Digest); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan scan row: %w", err)
		}
		rec.Mode = ir.Mode(mode)
		index[rec.Seq] = len(scans)
		scans = append(scans, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate scans: %w", err)
	}
	rows.Close()

	// One pass over tag_values instead of one query per scan.
	tagRows, err := s.db.QueryContext(ctx, `
		SELECT seq, tag_id, value, forced
		FROM tag_values
		WHERE run_id = ?
		ORDER BY seq ASC, position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query tag values: %w", err)
	}
	defer tagRows.Close()

	for tagRows.Next() {
		var (
			seq    int64
			tag    ir.Tag
			value  string
			forced int
		)
		if err := tagRows.Scan(&seq, &tag.ID, &value, &forced); err != nil {
			return nil, fmt.Errorf("scan tag value: %w", err)
		}
		if tag.Value, err = unmarshalValue(value); err != nil {
			return nil, fmt.Errorf("tag %s at seq %d: %w", tag.ID, seq, err)
		}
		tag.Forced = forced != 0
		if i, ok := index[seq]; ok {
			scans[i].Tags = append(scans[i].Tags, tag)
		}
	}
	if err := tagRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tag values: %w", err)
	}

	return scans, nil
}

// ReadTagHistory returns every recorded value of one tag in a run,
// ordered by seq.
//
// Returns an empty slice (not nil) if the tag was never recorded.
func (s *Store) ReadTagHistory(ctx context.Context, runID, tagID string) ([]ir.TagSample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, value, forced
		FROM tag_values
		WHERE run_id = ? AND tag_id = ?
		ORDER BY seq ASC
	`, runID, tagID)
	if err != nil {
		return nil, fmt.Errorf("query tag history: %w", err)
	}
	defer rows.Close()

	samples := []ir.TagSample{}
	for rows.Next() {
		var (
			sample ir.TagSample
			value  string
			forced int
		)
		if err := rows.Scan(&sample.Seq, &value, &forced); err != nil {
			return nil, fmt.Errorf("scan tag sample: %w", err)
		}
		if sample.Value, err = unmarshalValue(value); err != nil {
			return nil, fmt.Errorf("seq %d: %w", sample.Seq, err)
		}
		sample.Forced = forced != 0
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tag history: %w", err)
	}
	return samples, nil
}
