// Package intraday refreshes the current trading day's candles from the
// aggregated vendor, routing each row by seal state: sealed candles go to the
// historical store, forming ones to the intraday store.
package intraday

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ashare-data/kline/kline/clock"
	"github.com/ashare-data/kline/kline/common"
)

// Classifier decides the vendor endpoint variant for a symbol.
type Classifier interface {
	IsIndex(ctx context.Context, symbol string) bool
}

// Router is the per-read intraday refresh step.
type Router struct {
	historical common.HistoricalStore
	intraday   common.IntradayStore
	vendor     common.IntradayProvider
	classifier Classifier
	now        func() time.Time
	debug      bool
}

// NewRouter is the constructor for Router.
func NewRouter(historical common.HistoricalStore, intradayStore common.IntradayStore, vendor common.IntradayProvider, classifier Classifier) *Router {
	return &Router{
		historical: historical,
		intraday:   intradayStore,
		vendor:     vendor,
		classifier: classifier,
		now:        func() time.Time { return time.Now().In(common.CST) },
	}
}

// SetDebug sets router-wide debug logging.
func (r *Router) SetDebug(debug bool) {
	r.debug = debug
}

// SetNow overrides the clock source, for tests.
func (r *Router) SetNow(now func() time.Time) {
	r.now = now
}

// Refresh pulls today's candles for a symbol at a resolution and routes them.
//
// Intraday rows that have sealed since the last refresh are first promoted to
// the historical store. A freshness check then short-circuits the vendor call
// when the stores already hold every candle that should have finished by now.
// Unsupported vendor combinations (index + minute) log and no-op; the caller
// proceeds with whatever the historical store has.
func (r *Router) Refresh(ctx context.Context, symbol string, resolution common.Resolution) error {
	now := r.now()
	today := common.DateOf(now)

	if err := r.promote(ctx, symbol, resolution, today, now); err != nil {
		return err
	}

	expected := clock.ExpectedFinished(resolution, now)
	if expected >= 1 {
		nHist, err := r.historical.CountHistoricalOnDate(ctx, symbol, resolution, today)
		if err != nil {
			return err
		}
		nIntra, err := r.intraday.CountIntradayOnDate(ctx, symbol, resolution, today)
		if err != nil {
			return err
		}
		if nHist+nIntra >= expected {
			if r.debug {
				log.Info().Str("symbol", symbol).Str("resolution", string(resolution)).Int("expected_finished", expected).Msg("intraday stores fresh, skipping vendor call")
			}
			return nil
		}
	}

	var (
		rows []common.Candle
		err  error
	)
	if r.classifier.IsIndex(ctx, symbol) {
		rows, err = r.vendor.FetchIndex(ctx, symbol, resolution)
	} else {
		rows, err = r.vendor.FetchStock(ctx, symbol, resolution, common.AdjustForward)
	}
	if errors.Is(err, common.ErrIndexMinuteUnsupported) {
		log.Info().Str("symbol", symbol).Str("resolution", string(resolution)).Msg("vendor has no minute data for indices, skipping intraday refresh")
		return nil
	}
	if errors.Is(err, common.ErrVendorEmptyResult) {
		log.Warn().Str("symbol", symbol).Str("resolution", string(resolution)).Msg("intraday vendor returned no rows")
		return nil
	}
	if err != nil {
		return err
	}

	var (
		sealed  []common.Candle
		forming []common.IntradayCandle
	)
	for _, c := range rows {
		if !common.SameDate(c.EndTS, today) {
			continue
		}
		if clock.IsSealed(resolution, c.EndTS, now) {
			sealed = append(sealed, c)
		} else {
			forming = append(forming, common.IntradayCandle{Candle: c, Sealed: false})
		}
	}

	// Historical and intraday batches commit separately, never in one tx.
	if err := r.historical.UpsertHistorical(ctx, resolution, sealed); err != nil {
		return err
	}
	if err := r.intraday.UpsertIntraday(ctx, forming); err != nil {
		return err
	}

	if r.debug {
		log.Info().Str("symbol", symbol).Str("resolution", string(resolution)).Int("sealed", len(sealed)).Int("forming", len(forming)).Msg("intraday refresh routed")
	}
	return nil
}

// promote copies today's intraday rows whose EndTS has passed into the
// historical store. The intraday rows are left behind; the daily sweep
// removes them once their date rolls over, and merges always prefer the
// historical copy.
func (r *Router) promote(ctx context.Context, symbol string, resolution common.Resolution, today, now time.Time) error {
	stored, err := r.intraday.QueryIntraday(ctx, symbol, resolution, today)
	if err != nil {
		return err
	}
	var sealed []common.Candle
	for _, c := range stored {
		if clock.IsSealed(resolution, c.EndTS, now) {
			sealed = append(sealed, c)
		}
	}
	if len(sealed) == 0 {
		return nil
	}
	if err := r.historical.UpsertHistorical(ctx, resolution, sealed); err != nil {
		return err
	}
	if r.debug {
		log.Info().Str("symbol", symbol).Str("resolution", string(resolution)).Int("candle_count", len(sealed)).Msg("sealed intraday candles promoted")
	}
	return nil
}
