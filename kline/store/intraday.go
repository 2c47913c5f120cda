package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/ashare-data/kline/kline/common"
)

// QueryIntraday returns the forming candles for a symbol on the given date,
// ordered ascending by EndTS.
func (s *Store) QueryIntraday(ctx context.Context, symbol string, resolution common.Resolution, today time.Time) ([]common.Candle, error) {
	if !resolution.Valid() {
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedResolution, resolution)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT datetime, COALESCE(open, 0), COALESCE(high, 0), COALESCE(low, 0), COALESCE(close, 0),
		       COALESCE(volume, 0), COALESCE(amount, 0), turn
		FROM stock_kline_realtime
		WHERE code = $1 AND kline_type = $2 AND datetime::date = $3
		ORDER BY datetime ASC`,
		symbol, resolution.KlineType(), common.DateOf(today))
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	candles := []common.Candle{}
	for rows.Next() {
		c := common.Candle{Symbol: symbol, Resolution: resolution}
		var ts time.Time
		if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Amount, &c.Turn); err != nil {
			return nil, storageErr(err)
		}
		if resolution.IsMinute() {
			c.EndTS = ts.In(common.CST)
		} else {
			c.EndTS = common.DateOf(ts)
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return candles, nil
}

// UpsertIntraday writes a batch atomically. The conflict key is
// (code, kline_type, datetime); OHLCV, turn and seal state are replaced and
// updated_at refreshed.
func (s *Store) UpsertIntraday(ctx context.Context, batch []common.IntradayCandle) error {
	if len(batch) == 0 {
		return nil
	}
	const q = `
		INSERT INTO stock_kline_realtime (code, kline_type, datetime, open, high, low, close, volume, amount, turn, is_finished, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (code, kline_type, datetime) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			amount = EXCLUDED.amount,
			turn = EXCLUDED.turn,
			is_finished = EXCLUDED.is_finished,
			updated_at = NOW()`

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storageErr(err)
	}
	defer tx.Rollback(ctx)

	b := &pgx.Batch{}
	for _, c := range batch {
		b.Queue(q, c.Symbol, c.Resolution.KlineType(), c.EndTS, c.Open, c.High, c.Low, c.Close, c.Volume, c.Amount, c.Turn, c.Sealed)
	}
	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return storageErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return storageErr(err)
	}
	return nil
}

// CountIntradayOnDate counts intraday rows for a symbol on the given date.
func (s *Store) CountIntradayOnDate(ctx context.Context, symbol string, resolution common.Resolution, date time.Time) (int, error) {
	if !resolution.Valid() {
		return 0, fmt.Errorf("%w: %q", common.ErrUnsupportedResolution, resolution)
	}
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM stock_kline_realtime
		WHERE code = $1 AND kline_type = $2 AND datetime::date = $3`,
		symbol, resolution.KlineType(), common.DateOf(date)).Scan(&n)
	if err != nil {
		return 0, storageErr(err)
	}
	return n, nil
}

// SweepIntraday deletes intraday rows from before the given date. All
// resolutions of all symbols are swept together.
func (s *Store) SweepIntraday(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM stock_kline_realtime WHERE datetime::date < $1`, common.DateOf(before))
	if err != nil {
		log.Warn().Err(err).Msg("intraday sweep failed")
		return 0, storageErr(err)
	}
	if n := tag.RowsAffected(); n > 0 {
		log.Info().Int64("rows", n).Str("before", common.FormatDate(before)).Msg("swept stale intraday rows")
		return n, nil
	}
	return 0, nil
}
