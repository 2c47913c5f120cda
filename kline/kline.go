// Package kline is a tiered, self-healing candle service for A-share
// equities, indices and ETFs. Reads flow through a historical store that is
// healed on demand from the bulk vendor, topped up with the current trading
// day's forming candles from the intraday vendor.
package kline

import (
	"context"
	"time"

	"github.com/ashare-data/kline/kline/backfill"
	"github.com/ashare-data/kline/kline/baostock"
	"github.com/ashare-data/kline/kline/common"
	"github.com/ashare-data/kline/kline/eastmoney"
	"github.com/ashare-data/kline/kline/intraday"
	"github.com/ashare-data/kline/kline/reader"
	"github.com/ashare-data/kline/kline/registry"
	"github.com/ashare-data/kline/kline/store"
)

// Service wires the store, the vendor adapters, the registry and the
// read/backfill pipelines together.
type Service struct {
	cfg      *Config
	store    *store.Store
	registry *registry.Registry
	bulk     common.BulkProvider
	reader   *reader.Reader
	router   *intraday.Router
	driver   *backfill.Driver
	debug    bool
}

// NewService constructs a connected service.
func NewService(ctx context.Context, options ...func(*Service)) (*Service, error) {
	s := &Service{cfg: LoadConfig()}
	for _, option := range options {
		option(s)
	}

	st, err := store.Connect(ctx, s.cfg.ConnString())
	if err != nil {
		return nil, err
	}
	s.store = st
	s.registry = registry.New(st.Pool())

	if s.bulk == nil {
		bs := baostock.New()
		if s.cfg.BulkVendorURL != "" {
			bs.SetAPIURL(s.cfg.BulkVendorURL)
		}
		bs.SetDebug(s.debug)
		s.bulk = bs
	}

	em := eastmoney.New()
	if s.cfg.IntradayVendorURL != "" {
		em.SetAPIURL(s.cfg.IntradayVendorURL)
	}
	em.SetDebug(s.debug)

	s.router = intraday.NewRouter(st, st, em, s.registry)
	s.reader = reader.New(st, st, s.bulk, s.router, s.registry)
	s.driver = backfill.NewDriver(st, s.bulk, s.registry)

	s.reader.SetDebug(s.debug)
	s.router.SetDebug(s.debug)
	return s, nil
}

// WithConfig overrides the environment-derived configuration.
func WithConfig(cfg *Config) func(*Service) {
	return func(s *Service) {
		s.cfg = cfg
	}
}

// WithBulkProvider overrides the bulk vendor adapter.
func WithBulkProvider(bulk common.BulkProvider) func(*Service) {
	return func(s *Service) {
		s.bulk = bulk
	}
}

// WithDebug enables debug logging across the service's components.
func WithDebug() func(*Service) {
	return func(s *Service) {
		s.debug = true
	}
}

// Read returns the candles for [begin, end] ordered strictly ascending by
// EndTS, healing the stores along the way.
func (s *Service) Read(ctx context.Context, symbol string, resolution common.Resolution, begin, end time.Time) ([]common.Candle, error) {
	return s.reader.Read(ctx, symbol, resolution, begin, end)
}

// Backfill batch-imports daily, weekly and monthly history for the universe.
func (s *Service) Backfill(ctx context.Context, opts backfill.Options) (backfill.Summary, error) {
	return s.driver.Run(ctx, opts)
}

// ImportUniverse upserts reference data into the registry, generating the
// pinyin search columns.
func (s *Service) ImportUniverse(ctx context.Context, entries []common.UniverseEntry) error {
	return s.registry.Import(ctx, entries)
}

// ImportFundSplits records ETF split events for downstream NAV adjustment.
func (s *Service) ImportFundSplits(ctx context.Context, splits []store.FundSplit) error {
	return s.store.UpsertFundSplits(ctx, splits)
}

// Registry exposes the symbol universe.
func (s *Service) Registry() *registry.Registry { return s.registry }

// Close releases the database pool and any vendor session.
func (s *Service) Close(ctx context.Context) {
	if s.bulk != nil && s.bulk.LoggedIn() {
		_ = s.bulk.Logout(ctx)
	}
	s.store.Close()
}
