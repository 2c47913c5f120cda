package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ashare-data/kline/kline/common"
)

// QueryHistorical returns sealed candles for [begin, end] ordered ascending.
// For minute resolutions the upper bound is inclusive of the whole end date.
func (s *Store) QueryHistorical(ctx context.Context, symbol string, resolution common.Resolution, begin, end time.Time) ([]common.Candle, error) {
	if !resolution.Valid() {
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedResolution, resolution)
	}
	table := resolution.TableName()

	var (
		rows pgx.Rows
		err  error
	)
	if resolution.IsMinute() {
		q := fmt.Sprintf(`
			SELECT time, COALESCE(open, 0), COALESCE(high, 0), COALESCE(low, 0), COALESCE(close, 0),
			       COALESCE(volume, 0), COALESCE(amount, 0)
			FROM %s
			WHERE code = $1 AND time >= $2 AND time::date <= $3
			ORDER BY time ASC`, table)
		rows, err = s.pool.Query(ctx, q, symbol, begin, common.DateOf(end))
	} else {
		q := fmt.Sprintf(`
			SELECT date, COALESCE(open, 0), COALESCE(high, 0), COALESCE(low, 0), COALESCE(close, 0),
			       COALESCE(volume, 0), COALESCE(amount, 0), turn
			FROM %s
			WHERE code = $1 AND date >= $2 AND date <= $3
			ORDER BY date ASC`, table)
		rows, err = s.pool.Query(ctx, q, symbol, common.DateOf(begin), common.DateOf(end))
	}
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()

	candles := []common.Candle{}
	for rows.Next() {
		c := common.Candle{Symbol: symbol, Resolution: resolution}
		var ts time.Time
		if resolution.IsMinute() {
			err = rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Amount)
		} else {
			err = rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Amount, &c.Turn)
		}
		if err != nil {
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

// UpsertHistorical writes a batch atomically. On conflict the OHLCV fields are
// replaced; reference fields are left alone.
func (s *Store) UpsertHistorical(ctx context.Context, resolution common.Resolution, batch []common.Candle) error {
	if len(batch) == 0 {
		return nil
	}
	if !resolution.Valid() {
		return fmt.Errorf("%w: %q", common.ErrUnsupportedResolution, resolution)
	}
	table := resolution.TableName()

	var q string
	if resolution.IsMinute() {
		q = fmt.Sprintf(`
			INSERT INTO %s (date, time, code, open, high, low, close, volume, amount)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (time, code) DO UPDATE SET
				date = EXCLUDED.date,
				open = EXCLUDED.open,
				high = EXCLUDED.high,
				low = EXCLUDED.low,
				close = EXCLUDED.close,
				volume = EXCLUDED.volume,
				amount = EXCLUDED.amount`, table)
	} else {
		q = fmt.Sprintf(`
			INSERT INTO %s (date, code, open, high, low, close, volume, amount, turn)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (date, code) DO UPDATE SET
				open = EXCLUDED.open,
				high = EXCLUDED.high,
				low = EXCLUDED.low,
				close = EXCLUDED.close,
				volume = EXCLUDED.volume,
				amount = EXCLUDED.amount,
				turn = EXCLUDED.turn`, table)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storageErr(err)
	}
	defer tx.Rollback(ctx)

	b := &pgx.Batch{}
	for _, c := range batch {
		if resolution.IsMinute() {
			b.Queue(q, common.DateOf(c.EndTS), c.EndTS, c.Symbol, c.Open, c.High, c.Low, c.Close, c.Volume, c.Amount)
		} else {
			b.Queue(q, common.DateOf(c.EndTS), c.Symbol, c.Open, c.High, c.Low, c.Close, c.Volume, c.Amount, c.Turn)
		}
	}
	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return storageErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return storageErr(err)
	}
	return nil
}

// CountHistoricalOnDate counts sealed rows for a symbol whose candle date
// equals the given date.
func (s *Store) CountHistoricalOnDate(ctx context.Context, symbol string, resolution common.Resolution, date time.Time) (int, error) {
	if !resolution.Valid() {
		return 0, fmt.Errorf("%w: %q", common.ErrUnsupportedResolution, resolution)
	}
	table := resolution.TableName()

	var q string
	if resolution.IsMinute() {
		q = fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE code = $1 AND time::date = $2`, table)
	} else {
		q = fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE code = $1 AND date = $2`, table)
	}
	var n int
	if err := s.pool.QueryRow(ctx, q, symbol, common.DateOf(date)).Scan(&n); err != nil {
		return 0, storageErr(err)
	}
	return n, nil
}
