package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/talgya/mini-economy/internal/agents"
)

// Shared codecs; EncodeAll and DecodeAll are safe for concurrent use.
var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(fmt.Sprintf("zstd encoder: %v", err))
	}
	decoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("zstd decoder: %v", err))
	}
}

func compressReport(r agents.CycleReport) ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return encoder.EncodeAll(raw, nil), nil
}

func decompressReport(blob []byte) (agents.CycleReport, error) {
	var r agents.CycleReport
	raw, err := decoder.DecodeAll(blob, nil)
	if err != nil {
		return r, fmt.Errorf("zstd: %w", err)
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return r, err
	}
	return r, nil
}

// SaveCycleReports appends one compressed report per pop under a fresh id.
func (db *DB) SaveCycleReports(ctx context.Context, cycle uint64, reports []agents.CycleReport) error {
	if len(reports) == 0 {
		return nil
	}
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `INSERT INTO cycles
		(id, cycle, pop_id, full_tier, health, value, residual, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range reports {
		blob, err := compressReport(r)
		if err != nil {
			return fmt.Errorf("encode report %d/%d: %w", cycle, r.Pop, err)
		}
		residual := r.Residual.ProductTotal() + r.Residual.WantTotal()
		if _, err := stmt.ExecContext(ctx,
			uuid.NewString(), cycle, r.Pop, r.FullTier, r.Health, r.Value, residual, blob,
		); err != nil {
			return fmt.Errorf("insert report %d/%d: %w", cycle, r.Pop, err)
		}
	}
	return tx.Commit()
}

// RecentReports returns the latest reports of a pop, newest first.
func (db *DB) RecentReports(ctx context.Context, pop agents.PopID, limit int) ([]agents.CycleReport, error) {
	var blobs [][]byte
	if err := db.conn.SelectContext(ctx, &blobs,
		"SELECT report FROM cycles WHERE pop_id = ? ORDER BY cycle DESC LIMIT ?",
		pop, limit,
	); err != nil {
		return nil, err
	}
	out := make([]agents.CycleReport, 0, len(blobs))
	for _, b := range blobs {
		r, err := decompressReport(b)
		if err != nil {
			return out, err
		}
		out = append(out, r)
	}
	return out, nil
}

// RecordCycle implements engine.Recorder: reports, ledgers and the cycle
// marker are saved after every cycle.
func (db *DB) RecordCycle(ctx context.Context, cycle uint64, pops []*agents.Pop, reports []agents.CycleReport) error {
	if err := db.SaveCycleReports(ctx, cycle, reports); err != nil {
		return fmt.Errorf("save reports: %w", err)
	}
	if err := db.SavePops(ctx, pops); err != nil {
		return fmt.Errorf("save pops: %w", err)
	}
	return db.SaveMeta("last_cycle", strconv.FormatUint(cycle, 10))
}
