package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ashare-data/kline/kline/common"
)

// FundSplit is one ETF split/merge event. Ratio is post-split shares per
// pre-split share.
type FundSplit struct {
	Symbol string
	Date   time.Time
	Ratio  float64
}

// UpsertFundSplits records ETF split events. The table is write-only from this
// module's point of view; downstream consumers adjust NAV series with it.
func (s *Store) UpsertFundSplits(ctx context.Context, splits []FundSplit) error {
	if len(splits) == 0 {
		return nil
	}
	const q = `
		INSERT INTO fund_split (code, split_date, split_ratio)
		VALUES ($1, $2, $3)
		ON CONFLICT (code, split_date) DO UPDATE SET
			split_ratio = EXCLUDED.split_ratio`

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storageErr(err)
	}
	defer tx.Rollback(ctx)

	b := &pgx.Batch{}
	for _, sp := range splits {
		b.Queue(q, sp.Symbol, common.DateOf(sp.Date), sp.Ratio)
	}
	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return storageErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return storageErr(err)
	}
	return nil
}
