// Package reader implements the read-through candle pipeline: snap the
// window to trading days, read the historical store, heal leading and
// trailing gaps from the bulk vendor, refresh today's candles from the
// intraday vendor, and merge the two stores into one ordered series.
package reader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ashare-data/kline/kline/calendar"
	"github.com/ashare-data/kline/kline/common"
	"github.com/ashare-data/kline/kline/gaps"
)

// Refresher is the intraday refresh step, run when the window reaches today.
type Refresher interface {
	Refresh(ctx context.Context, symbol string, resolution common.Resolution) error
}

// Reader serves ordered candle series, healing the stores as it reads.
type Reader struct {
	historical common.HistoricalStore
	intraday   common.IntradayStore
	bulk       common.BulkProvider
	refresher  Refresher
	universe   common.UniverseProvider
	now        func() time.Time
	debug      bool
}

// New is the constructor for Reader.
func New(historical common.HistoricalStore, intradayStore common.IntradayStore, bulk common.BulkProvider, refresher Refresher, universe common.UniverseProvider) *Reader {
	return &Reader{
		historical: historical,
		intraday:   intradayStore,
		bulk:       bulk,
		refresher:  refresher,
		universe:   universe,
		now:        func() time.Time { return time.Now().In(common.CST) },
	}
}

// SetDebug sets reader-wide debug logging.
func (r *Reader) SetDebug(debug bool) {
	r.debug = debug
}

// Read returns the candles for [begin, end] ordered strictly ascending by
// EndTS, with each EndTS appearing exactly once. Historical rows win over
// intraday rows for the same EndTS.
func (r *Reader) Read(ctx context.Context, symbol string, resolution common.Resolution, begin, end time.Time) ([]common.Candle, error) {
	if !resolution.Valid() {
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedResolution, resolution)
	}
	if _, _, err := common.SplitSymbol(symbol); err != nil {
		return nil, err
	}

	entry, err := r.universe.Entry(ctx, symbol)
	if err != nil {
		return nil, err
	}

	// SNAP: clamp to the listing date, then to trading days.
	if entry.ListDate != nil && begin.Before(*entry.ListDate) {
		begin = *entry.ListDate
	}
	begin = calendar.Snap(common.DateOf(begin), calendar.Forward)
	end = calendar.Snap(common.DateOf(end), calendar.Back)
	if begin.After(end) {
		return []common.Candle{}, nil
	}

	now := r.now()
	today := common.DateOf(now)

	stored, err := r.historical.QueryHistorical(ctx, symbol, resolution, begin, end)
	if err != nil {
		return nil, err
	}

	for _, gap := range gaps.Detect(stored, begin, end) {
		if err := r.backfill(ctx, symbol, resolution, gap); err != nil {
			return nil, err
		}
	}

	touchesToday := !end.Before(today)
	if touchesToday {
		// best-effort: a failed sweep never fails the read
		_, _ = r.intraday.SweepIntraday(ctx, today)

		if err := r.refresher.Refresh(ctx, symbol, resolution); err != nil {
			if errors.Is(err, common.ErrStorageUnavailable) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", common.ErrVendorUnavailable, err)
		}
	}

	merged, err := r.historical.QueryHistorical(ctx, symbol, resolution, begin, end)
	if err != nil {
		return nil, err
	}
	if touchesToday {
		forming, err := r.intraday.QueryIntraday(ctx, symbol, resolution, today)
		if err != nil {
			return nil, err
		}
		merged = merge(merged, forming)
	}

	if r.debug {
		log.Info().Str("symbol", symbol).Str("resolution", string(resolution)).Str("begin", common.FormatDate(begin)).Str("end", common.FormatDate(end)).Int("candle_count", len(merged)).Msg("Read complete")
	}
	return merged, nil
}

// backfill heals one gap from the bulk vendor. A session silently expired
// server-side is re-logged-in and retried once; an empty vendor result is
// only a warning (delistings, pre-data ranges).
func (r *Reader) backfill(ctx context.Context, symbol string, resolution common.Resolution, gap gaps.Gap) error {
	if !r.bulk.LoggedIn() {
		if err := r.bulk.Login(ctx); err != nil {
			return fmt.Errorf("%w: %v", common.ErrVendorUnavailable, err)
		}
	}

	candles, err := r.bulk.Fetch(ctx, symbol, resolution, gap.Begin, gap.End, common.AdjustForward)
	if isSessionExpired(err) {
		log.Warn().Str("symbol", symbol).Msg("vendor session expired, re-logging in")
		if err = r.bulk.Login(ctx); err != nil {
			return fmt.Errorf("%w: %v", common.ErrVendorUnavailable, err)
		}
		candles, err = r.bulk.Fetch(ctx, symbol, resolution, gap.Begin, gap.End, common.AdjustForward)
	}
	if errors.Is(err, common.ErrVendorEmptyResult) {
		log.Warn().Str("symbol", symbol).Str("resolution", string(resolution)).Str("begin", common.FormatDate(gap.Begin)).Str("end", common.FormatDate(gap.End)).Msg("vendor returned no rows for gap")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrVendorUnavailable, err)
	}

	if err := r.historical.UpsertHistorical(ctx, resolution, candles); err != nil {
		return err
	}
	if r.debug {
		log.Info().Str("symbol", symbol).Str("resolution", string(resolution)).Int("candle_count", len(candles)).Msg("gap backfilled")
	}
	return nil
}

func isSessionExpired(err error) bool {
	var vErr common.VendorReqError
	return errors.As(err, &vErr) && vErr.IsSessionExpired
}

// merge appends the intraday rows whose EndTS is strictly greater than the
// last historical EndTS. Duplicate EndTS between the stores (a seal race
// between the two queries) resolves in favour of the historical row.
func merge(historical, forming []common.Candle) []common.Candle {
	out := historical
	var last time.Time
	if n := len(historical); n > 0 {
		last = historical[n-1].EndTS
	}
	for _, c := range forming {
		if c.EndTS.After(last) {
			out = append(out, c)
			last = c.EndTS
		}
	}
	return out
}
