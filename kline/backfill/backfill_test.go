package backfill

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ashare-data/kline/kline/common"
)

func d(s string) time.Time {
	t, err := common.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

type memHistorical struct {
	upserts map[string]int // symbol -> candle rows written
}

func (m *memHistorical) QueryHistorical(ctx context.Context, symbol string, resolution common.Resolution, begin, end time.Time) ([]common.Candle, error) {
	return nil, nil
}

func (m *memHistorical) UpsertHistorical(ctx context.Context, resolution common.Resolution, batch []common.Candle) error {
	if m.upserts == nil {
		m.upserts = map[string]int{}
	}
	for _, c := range batch {
		m.upserts[c.Symbol]++
	}
	return nil
}

func (m *memHistorical) CountHistoricalOnDate(ctx context.Context, symbol string, resolution common.Resolution, date time.Time) (int, error) {
	return 0, nil
}

type scriptedBulk struct {
	loggedIn    bool
	loginCalls  int
	logoutCalls int
	failSymbols map[string]bool
	expireOn    string // symbol whose first fetch reports session expiry
	windows     map[string]time.Time
}

func (b *scriptedBulk) Login(ctx context.Context) error {
	b.loginCalls++
	b.loggedIn = true
	return nil
}

func (b *scriptedBulk) Logout(ctx context.Context) error {
	b.logoutCalls++
	b.loggedIn = false
	return nil
}

func (b *scriptedBulk) LoggedIn() bool { return b.loggedIn }

func (b *scriptedBulk) Fetch(ctx context.Context, symbol string, resolution common.Resolution, begin, end time.Time, adjustment common.Adjustment) ([]common.Candle, error) {
	if !b.loggedIn {
		return nil, common.VendorReqError{IsNotRetryable: true, Err: common.ErrNotLoggedIn}
	}
	if b.expireOn == symbol {
		b.expireOn = ""
		b.loggedIn = false
		return nil, common.VendorReqError{IsVendorSide: true, IsSessionExpired: true, Err: common.ErrSessionExpired}
	}
	if b.failSymbols[symbol] {
		return nil, common.VendorReqError{IsVendorSide: true, Err: errors.New("vendor exploded")}
	}
	if b.windows == nil {
		b.windows = map[string]time.Time{}
	}
	b.windows[symbol] = begin
	return []common.Candle{{Symbol: symbol, Resolution: resolution, EndTS: common.DateOf(end), Close: 100}}, nil
}

type staticUniverse []common.UniverseEntry

func (u staticUniverse) ListForBackfill(ctx context.Context) ([]common.UniverseEntry, error) {
	return u, nil
}

func fiveSymbols() staticUniverse {
	u := staticUniverse{}
	for _, code := range []string{"sh.600001", "sh.600002", "sh.600003", "sh.600004", "sh.600005"} {
		u = append(u, common.UniverseEntry{Symbol: code, Name: code, Type: "stock"})
	}
	return u
}

func newTestDriver(store *memHistorical, bulk *scriptedBulk, universe Universe) *Driver {
	drv := NewDriver(store, bulk, universe)
	drv.now = func() time.Time { return d("2026-08-25") }
	drv.sleep = func(time.Duration) {}
	return drv
}

func TestSessionRotation(t *testing.T) {
	store, bulk := &memHistorical{}, &scriptedBulk{failSymbols: map[string]bool{"sh.600003": true}}
	drv := newTestDriver(store, bulk, fiveSymbols())

	summary, err := drv.Run(context.Background(), Options{ReloginInterval: 2})
	require.NoError(t, err)

	// login at start and after the 2nd and 4th symbol; logout on each
	// rotation plus the final one
	require.Equal(t, 3, bulk.loginCalls)
	require.Equal(t, 3, bulk.logoutCalls)

	// symbol 3's failure aborts nothing
	require.Equal(t, 5, summary.Total)
	require.Equal(t, 4, summary.Succeeded)
	require.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Failures, 1)
	require.Equal(t, "sh.600003", summary.Failures[0].Symbol)

	require.Contains(t, store.upserts, "sh.600004")
	require.Contains(t, store.upserts, "sh.600005")
}

func TestSessionExpiredMidBatch(t *testing.T) {
	store, bulk := &memHistorical{}, &scriptedBulk{expireOn: "sh.600002"}
	drv := newTestDriver(store, bulk, fiveSymbols())

	summary, err := drv.Run(context.Background(), Options{})
	require.NoError(t, err)
	require.Equal(t, 5, summary.Succeeded)
	require.Equal(t, 0, summary.Failed)

	// one extra login from the expiry retry
	require.Equal(t, 2, bulk.loginCalls)
}

func TestResumableCursorAndLimit(t *testing.T) {
	store, bulk := &memHistorical{}, &scriptedBulk{}
	drv := newTestDriver(store, bulk, fiveSymbols())

	summary, err := drv.Run(context.Background(), Options{StartIndex: 2, MaxStocks: 2})
	require.NoError(t, err)
	require.Equal(t, 2, summary.Total)
	require.Contains(t, store.upserts, "sh.600003")
	require.Contains(t, store.upserts, "sh.600004")
	require.NotContains(t, store.upserts, "sh.600005")

	_, err = drv.Run(context.Background(), Options{StartIndex: 99})
	require.Error(t, err)
}

func TestWindowDerivation(t *testing.T) {
	listedEarly := d("2001-08-27")
	listedLate := d("2024-03-01")
	universe := staticUniverse{
		{Symbol: "sh.600519", Name: "old", ListDate: &listedEarly},
		{Symbol: "sh.688888", Name: "new", ListDate: &listedLate},
		{Symbol: "sh.600000", Name: "unknown"},
	}

	store, bulk := &memHistorical{}, &scriptedBulk{}
	drv := newTestDriver(store, bulk, universe)

	_, err := drv.Run(context.Background(), Options{})
	require.NoError(t, err)

	// five years back from 2026-08-25 unless the listing is older
	require.Equal(t, d("2001-08-27"), bulk.windows["sh.600519"])
	require.Equal(t, d("2021-08-25"), bulk.windows["sh.688888"])
	require.Equal(t, d("2021-08-25"), bulk.windows["sh.600000"])

	// an explicit start date overrides the derivation
	bulk.windows = nil
	_, err = drv.Run(context.Background(), Options{StartDate: d("2024-01-02")})
	require.NoError(t, err)
	require.Equal(t, d("2024-01-02"), bulk.windows["sh.600519"])
}
