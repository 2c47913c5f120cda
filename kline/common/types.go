// Package common contains shared types, interfaces and errors across the kline super-package.
package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CST is the exchange timezone for the Shanghai, Shenzhen and Beijing markets.
// All candle timestamps in this module are expressed in it.
var CST = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}()

// Resolution is the aggregation window of a candle, e.g. Res60m or ResDay.
type Resolution string

const (
	// Res1m is the 1-minute resolution.
	Res1m Resolution = "1m"
	// Res5m is the 5-minute resolution.
	Res5m Resolution = "5m"
	// Res15m is the 15-minute resolution.
	Res15m Resolution = "15m"
	// Res30m is the 30-minute resolution.
	Res30m Resolution = "30m"
	// Res60m is the 60-minute resolution.
	Res60m Resolution = "60m"
	// ResDay is the daily resolution.
	ResDay Resolution = "day"
	// ResWeek is the weekly resolution. Weekly candles are produced whole by the bulk vendor.
	ResWeek Resolution = "week"
	// ResMonth is the monthly resolution. Monthly candles are produced whole by the bulk vendor.
	ResMonth Resolution = "month"
)

// Resolutions lists every supported resolution.
var Resolutions = []Resolution{Res1m, Res5m, Res15m, Res30m, Res60m, ResDay, ResWeek, ResMonth}

// Valid returns true if r is one of the supported resolutions.
func (r Resolution) Valid() bool {
	switch r {
	case Res1m, Res5m, Res15m, Res30m, Res60m, ResDay, ResWeek, ResMonth:
		return true
	}
	return false
}

// IsMinute returns true for the intra-day (minute) resolutions.
func (r Resolution) IsMinute() bool {
	switch r {
	case Res1m, Res5m, Res15m, Res30m, Res60m:
		return true
	}
	return false
}

// Minutes returns the minute count for minute resolutions, and 0 otherwise.
func (r Resolution) Minutes() int {
	switch r {
	case Res1m:
		return 1
	case Res5m:
		return 5
	case Res15m:
		return 15
	case Res30m:
		return 30
	case Res60m:
		return 60
	}
	return 0
}

// TableName returns the historical table holding sealed candles of this resolution.
func (r Resolution) TableName() string {
	switch r {
	case Res1m:
		return "stock_kline_1min"
	case Res5m:
		return "stock_kline_5min"
	case Res15m:
		return "stock_kline_15min"
	case Res30m:
		return "stock_kline_30min"
	case Res60m:
		return "stock_kline_60min"
	case ResDay:
		return "stock_kline_daily"
	case ResWeek:
		return "stock_kline_weekly"
	case ResMonth:
		return "stock_kline_monthly"
	}
	return ""
}

// KlineType returns the discriminator value used by the intraday table's kline_type column.
func (r Resolution) KlineType() string {
	switch r {
	case Res1m:
		return "1min"
	case Res5m:
		return "5min"
	case Res15m:
		return "15min"
	case Res30m:
		return "30min"
	case Res60m:
		return "60min"
	case ResDay:
		return "daily"
	case ResWeek:
		return "weekly"
	case ResMonth:
		return "monthly"
	}
	return ""
}

// HasTurn returns true for the resolutions that carry a turnover-rate column.
func (r Resolution) HasTurn() bool {
	return r == ResDay || r == ResWeek || r == ResMonth
}

// Adjustment is the price-adjustment mode requested from the bulk vendor.
type Adjustment int

const (
	// AdjustForward is forward-adjusted prices (qfq). The default.
	AdjustForward Adjustment = iota
	// AdjustBackward is back-adjusted prices (hfq).
	AdjustBackward
	// AdjustNone is unadjusted prices.
	AdjustNone
)

// Candle is the canonical candle value. EndTS is the instant the candle closes
// (exclusive upper bound of its aggregation window); for day/week/month it
// degenerates to the session date at midnight CST.
type Candle struct {
	Symbol     string
	Resolution Resolution
	EndTS      time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	Amount     float64

	// Turn is the turnover-rate fraction; present only for day/week/month.
	Turn *float64
}

// IntradayCandle is a candle plus its seal state, as held by the intraday store.
type IntradayCandle struct {
	Candle
	Sealed bool
}

// SplitSymbol splits a "{market}.{digits}" symbol, e.g. "sh.600519" into ("sh", "600519").
func SplitSymbol(symbol string) (market, code string, err error) {
	parts := strings.SplitN(symbol, ".", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	switch parts[0] {
	case "sh", "sz", "bj":
		return parts[0], parts[1], nil
	}
	return "", "", fmt.Errorf("%w: unknown market prefix in %q", ErrInvalidSymbol, symbol)
}

// PureCode strips the market prefix: "sh.600519" -> "600519".
func PureCode(symbol string) string {
	if i := strings.IndexByte(symbol, '.'); i >= 0 {
		return symbol[i+1:]
	}
	return symbol
}

// IsIndexCode reports whether a symbol structurally identifies an index
// (sh.000* and sz.399* ranges).
func IsIndexCode(symbol string) bool {
	return strings.HasPrefix(symbol, "sh.000") || strings.HasPrefix(symbol, "sz.399")
}

// DateOf truncates an instant to its CST calendar date (midnight CST).
func DateOf(t time.Time) time.Time {
	t = t.In(CST)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, CST)
}

// SameDate reports whether two instants fall on the same CST calendar date.
func SameDate(a, b time.Time) bool {
	return DateOf(a).Equal(DateOf(b))
}

// FormatDate renders a date as YYYY-MM-DD in CST.
func FormatDate(t time.Time) string {
	return t.In(CST).Format("2006-01-02")
}

// ParseDate parses a YYYY-MM-DD date into midnight CST.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, CST)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

var (
	// ErrInvalidSymbol means: symbol is not of the {market}.{digits} form
	ErrInvalidSymbol = errors.New("invalid symbol")

	// ErrUnknownSymbol means: symbol is absent from the universe registry
	ErrUnknownSymbol = errors.New("unknown symbol")

	// ErrUnsupportedResolution means: unsupported candle resolution
	ErrUnsupportedResolution = errors.New("unsupported candle resolution")

	// ErrVendorUnavailable means: a vendor call failed and could not be recovered
	ErrVendorUnavailable = errors.New("vendor unavailable")

	// ErrStorageUnavailable means: the database could not be reached or a write failed
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrSessionExpired means: the bulk vendor silently expired our session server-side
	ErrSessionExpired = errors.New("vendor session expired")

	// ErrNotLoggedIn means: a bulk vendor fetch was attempted without a live session
	ErrNotLoggedIn = errors.New("not logged in to vendor")

	// ErrIndexMinuteUnsupported means: the intraday vendor has no minute-resolution data for indices
	ErrIndexMinuteUnsupported = errors.New("minute resolutions unsupported for indices")

	// ErrVendorEmptyResult means: vendor got the request and returned no rows
	ErrVendorEmptyResult = errors.New("vendor returned no rows")

	// ErrExecutingRequest means: error executing client.Do() http request method
	ErrExecutingRequest = errors.New("error executing client.Do() http request method")

	// ErrBrokenBodyResponse means: vendor returned broken body response
	ErrBrokenBodyResponse = errors.New("vendor returned broken body response")

	// ErrInvalidJSONResponse means: vendor returned invalid JSON response
	ErrInvalidJSONResponse = errors.New("vendor returned invalid JSON response")
)

// VendorReqError is an error arising from a vendor request.
type VendorReqError struct {
	Code             int
	Err              error
	IsNotRetryable   bool
	IsVendorSide     bool
	IsSessionExpired bool
}

func (e VendorReqError) Error() string { return e.Err.Error() }

// Unwrap exposes the wrapped cause to errors.Is / errors.As.
func (e VendorReqError) Unwrap() error { return e.Err }

// HistoricalStore is typed access to the per-resolution sealed-candle tables.
type HistoricalStore interface {
	// QueryHistorical returns sealed candles ordered ascending by EndTS. For
	// minute resolutions the end bound is inclusive of the whole end date.
	QueryHistorical(ctx context.Context, symbol string, resolution Resolution, begin, end time.Time) ([]Candle, error)

	// UpsertHistorical writes a batch atomically; conflicting rows have their
	// OHLCV fields replaced.
	UpsertHistorical(ctx context.Context, resolution Resolution, batch []Candle) error

	// CountHistoricalOnDate counts sealed rows for a symbol whose candle date
	// equals the given date.
	CountHistoricalOnDate(ctx context.Context, symbol string, resolution Resolution, date time.Time) (int, error)
}

// IntradayStore is typed access to the still-forming candles of the current trading day.
type IntradayStore interface {
	// QueryIntraday returns today's forming candles ordered ascending by EndTS.
	QueryIntraday(ctx context.Context, symbol string, resolution Resolution, today time.Time) ([]Candle, error)

	// UpsertIntraday writes a batch atomically, replacing OHLCV and seal state on conflict.
	UpsertIntraday(ctx context.Context, batch []IntradayCandle) error

	// CountIntradayOnDate counts intraday rows for a symbol on the given date.
	CountIntradayOnDate(ctx context.Context, symbol string, resolution Resolution, date time.Time) (int, error)

	// SweepIntraday deletes intraday rows from before the given date. Failures
	// are non-fatal to callers; implementations log and return the error anyway.
	SweepIntraday(ctx context.Context, before time.Time) (int64, error)
}

// BulkProvider wraps the session-authenticated bulk history vendor.
//
// Implementations are NOT safe for concurrent use: a process holds a single
// vendor session and callers must serialise access, including Login/Logout.
type BulkProvider interface {
	// Login opens a vendor session. Idempotent on a live session.
	Login(ctx context.Context) error

	// Logout closes the vendor session, if any.
	Logout(ctx context.Context) error

	// LoggedIn reports whether a session is currently held.
	LoggedIn() bool

	// Fetch requests sealed candles for [begin, end] in trading-day space.
	//
	// Fails with a VendorReqError whose IsSessionExpired is set when the server
	// silently dropped the session; callers re-login and retry once.
	Fetch(ctx context.Context, symbol string, resolution Resolution, begin, end time.Time, adjustment Adjustment) ([]Candle, error)
}

// IntradayProvider wraps the aggregated intraday vendor. Stateless per call.
type IntradayProvider interface {
	// FetchStock pulls today's candles for a stock or ETF. Timestamps are
	// end-of-interval; rows may include dates other than today.
	FetchStock(ctx context.Context, symbol string, resolution Resolution, adjustment Adjustment) ([]Candle, error)

	// FetchIndex pulls today's candles for an index. Minute resolutions fail
	// with ErrIndexMinuteUnsupported.
	FetchIndex(ctx context.Context, symbol string, resolution Resolution) ([]Candle, error)
}

// UniverseEntry is the reference-data record for one symbol.
type UniverseEntry struct {
	Symbol        string
	Name          string
	Type          string // "stock", "index" or "etf"
	ListDate      *time.Time
	Pinyin        string
	PinyinInitial string
}

// UniverseProvider is read-only access to the symbol universe.
type UniverseProvider interface {
	// Entry resolves a symbol to its universe record. Fails with
	// ErrUnknownSymbol when the registry has no row for it.
	Entry(ctx context.Context, symbol string) (UniverseEntry, error)
}
