// Package backfill walks the symbol universe and imports daily, weekly and
// monthly history for every symbol through the bulk vendor.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ashare-data/kline/kline/common"
)

// defaultYears is how far back a symbol's window reaches when no start date
// is given and the listing is more recent than that.
const defaultYears = 5

// resolutions imported per symbol, in fetch order.
var resolutions = []common.Resolution{common.ResDay, common.ResWeek, common.ResMonth}

// Universe lists the symbols to walk.
type Universe interface {
	ListForBackfill(ctx context.Context) ([]common.UniverseEntry, error)
}

// Options tune a batch run. The zero value means: window derived per symbol,
// 0.5s pacing, relogin every 300 symbols, whole universe.
type Options struct {
	StartDate       time.Time // zero: min(5 years back, list date) per symbol
	EndDate         time.Time // zero: today
	Delay           time.Duration
	MaxStocks       int // 0: no limit
	ReloginInterval int
	StartIndex      int
}

func (o Options) withDefaults() Options {
	if o.Delay == 0 {
		o.Delay = 500 * time.Millisecond
	}
	if o.ReloginInterval == 0 {
		o.ReloginInterval = 300
	}
	return o
}

// Failure is one symbol the walk could not import.
type Failure struct {
	Symbol string
	Name   string
	Err    error
}

// Summary is the outcome of a batch run.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Failures  []Failure
	Elapsed   time.Duration
}

// Driver runs batch imports. It owns the bulk vendor session for the run's
// lifetime and is the only caller of Login/Logout.
type Driver struct {
	store    common.HistoricalStore
	bulk     common.BulkProvider
	universe Universe
	now      func() time.Time
	sleep    func(time.Duration)
}

// NewDriver is the constructor for Driver.
func NewDriver(store common.HistoricalStore, bulk common.BulkProvider, universe Universe) *Driver {
	return &Driver{
		store:    store,
		bulk:     bulk,
		universe: universe,
		now:      func() time.Time { return time.Now().In(common.CST) },
		sleep:    time.Sleep,
	}
}

// Run walks the universe and imports each symbol. Individual symbol failures
// are recorded in the summary and never abort the batch; Run itself fails only
// when the universe cannot be listed, the first login fails, or the context
// is cancelled.
func (d *Driver) Run(ctx context.Context, opts Options) (Summary, error) {
	opts = opts.withDefaults()
	started := d.now()

	all, err := d.universe.ListForBackfill(ctx)
	if err != nil {
		return Summary{}, err
	}
	if opts.StartIndex < 0 || opts.StartIndex >= len(all) {
		return Summary{}, fmt.Errorf("start index %v out of range, universe has %v symbols", opts.StartIndex, len(all))
	}
	entries := all[opts.StartIndex:]
	if opts.MaxStocks > 0 && len(entries) > opts.MaxStocks {
		entries = entries[:opts.MaxStocks]
	}

	endDate := opts.EndDate
	if endDate.IsZero() {
		endDate = common.DateOf(d.now())
	}

	if err := d.bulk.Login(ctx); err != nil {
		return Summary{}, fmt.Errorf("%w: %v", common.ErrVendorUnavailable, err)
	}
	defer func() {
		if err := d.bulk.Logout(context.Background()); err != nil {
			log.Warn().Err(err).Msg("vendor logout failed")
		}
	}()

	summary := Summary{Total: len(entries)}
	log.Info().Int("symbols", len(entries)).Int("start_index", opts.StartIndex).Str("end_date", common.FormatDate(endDate)).Msg("batch import starting")

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			summary.Elapsed = d.now().Sub(started)
			return summary, err
		}

		// rotate the session periodically to keep it alive
		if i > 0 && i%opts.ReloginInterval == 0 {
			log.Info().Int("processed", i).Msg("rotating vendor session")
			if err := d.relogin(ctx); err != nil {
				summary.Elapsed = d.now().Sub(started)
				return summary, err
			}
		}

		begin := opts.StartDate
		if begin.IsZero() {
			begin = d.startDateFor(entry)
		}

		if err := d.importSymbol(ctx, entry, begin, endDate); err != nil {
			summary.Failed++
			summary.Failures = append(summary.Failures, Failure{Symbol: entry.Symbol, Name: entry.Name, Err: err})
			log.Warn().Err(err).Str("symbol", entry.Symbol).Str("name", entry.Name).Msg("symbol import failed")
		} else {
			summary.Succeeded++
		}
		log.Info().Int("done", i+1).Int("total", len(entries)).Int("succeeded", summary.Succeeded).Int("failed", summary.Failed).Msg("batch progress")

		if i < len(entries)-1 {
			d.sleep(opts.Delay)
		}
	}

	summary.Elapsed = d.now().Sub(started)
	log.Info().Int("succeeded", summary.Succeeded).Int("failed", summary.Failed).Dur("elapsed", summary.Elapsed).Msg("batch import finished")
	for _, f := range summary.Failures {
		log.Warn().Str("symbol", f.Symbol).Str("name", f.Name).Err(f.Err).Msg("failed symbol")
	}
	return summary, nil
}

// startDateFor derives a symbol's window start: five years back, extended to
// the listing date when that is earlier.
func (d *Driver) startDateFor(entry common.UniverseEntry) time.Time {
	start := common.DateOf(d.now()).AddDate(-defaultYears, 0, 0)
	if entry.ListDate != nil && entry.ListDate.Before(start) {
		start = *entry.ListDate
	}
	return start
}

// importSymbol fetches and persists all three resolutions. A symbol counts as
// failed only when every resolution fails; an empty vendor result is not a
// failure (recent listings have no monthly rows yet).
func (d *Driver) importSymbol(ctx context.Context, entry common.UniverseEntry, begin, end time.Time) error {
	var firstErr error
	succeeded := 0
	for _, resolution := range resolutions {
		n, err := d.importResolution(ctx, entry.Symbol, resolution, begin, end)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		succeeded++
		log.Info().Str("symbol", entry.Symbol).Str("resolution", string(resolution)).Int("candle_count", n).Msg("imported")
	}
	if succeeded == 0 && firstErr != nil {
		return firstErr
	}
	return nil
}

func (d *Driver) importResolution(ctx context.Context, symbol string, resolution common.Resolution, begin, end time.Time) (int, error) {
	candles, err := d.bulk.Fetch(ctx, symbol, resolution, begin, end, common.AdjustForward)
	if isSessionExpired(err) {
		log.Warn().Str("symbol", symbol).Msg("vendor session expired, re-logging in")
		if err = d.relogin(ctx); err != nil {
			return 0, err
		}
		candles, err = d.bulk.Fetch(ctx, symbol, resolution, begin, end, common.AdjustForward)
	}
	if errors.Is(err, common.ErrVendorEmptyResult) {
		log.Warn().Str("symbol", symbol).Str("resolution", string(resolution)).Msg("no rows in window")
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if err := d.store.UpsertHistorical(ctx, resolution, candles); err != nil {
		return 0, err
	}
	return len(candles), nil
}

func (d *Driver) relogin(ctx context.Context) error {
	if err := d.bulk.Logout(ctx); err != nil {
		log.Warn().Err(err).Msg("vendor logout failed")
	}
	if err := d.bulk.Login(ctx); err != nil {
		return fmt.Errorf("%w: %v", common.ErrVendorUnavailable, err)
	}
	return nil
}

func isSessionExpired(err error) bool {
	var vErr common.VendorReqError
	return errors.As(err, &vErr) && vErr.IsSessionExpired
}
