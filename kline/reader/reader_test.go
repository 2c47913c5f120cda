package reader

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ashare-data/kline/kline/calendar"
	"github.com/ashare-data/kline/kline/common"
	"github.com/ashare-data/kline/kline/intraday"
)

func tp(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", s, common.CST)
	if err != nil {
		panic(err)
	}
	return t
}

func d(s string) time.Time {
	t, err := common.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

type candleKey struct {
	symbol string
	res    common.Resolution
	endTS  time.Time
}

// memStore implements both store interfaces over maps, keyed like the real
// tables' primary keys.
type memStore struct {
	hist  map[candleKey]common.Candle
	intra map[candleKey]common.IntradayCandle
}

func newMemStore() *memStore {
	return &memStore{
		hist:  map[candleKey]common.Candle{},
		intra: map[candleKey]common.IntradayCandle{},
	}
}

func sortCandles(cs []common.Candle) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].EndTS.Before(cs[j].EndTS) })
}

func (m *memStore) QueryHistorical(ctx context.Context, symbol string, resolution common.Resolution, begin, end time.Time) ([]common.Candle, error) {
	out := []common.Candle{}
	for k, c := range m.hist {
		if k.symbol != symbol || k.res != resolution {
			continue
		}
		date := common.DateOf(c.EndTS)
		if date.Before(common.DateOf(begin)) || date.After(common.DateOf(end)) {
			continue
		}
		out = append(out, c)
	}
	sortCandles(out)
	return out, nil
}

func (m *memStore) UpsertHistorical(ctx context.Context, resolution common.Resolution, batch []common.Candle) error {
	for _, c := range batch {
		m.hist[candleKey{c.Symbol, resolution, c.EndTS}] = c
	}
	return nil
}

func (m *memStore) CountHistoricalOnDate(ctx context.Context, symbol string, resolution common.Resolution, date time.Time) (int, error) {
	n := 0
	for k, c := range m.hist {
		if k.symbol == symbol && k.res == resolution && common.SameDate(c.EndTS, date) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) QueryIntraday(ctx context.Context, symbol string, resolution common.Resolution, today time.Time) ([]common.Candle, error) {
	out := []common.Candle{}
	for k, c := range m.intra {
		if k.symbol == symbol && k.res == resolution && common.SameDate(c.EndTS, today) {
			out = append(out, c.Candle)
		}
	}
	sortCandles(out)
	return out, nil
}

func (m *memStore) UpsertIntraday(ctx context.Context, batch []common.IntradayCandle) error {
	for _, c := range batch {
		m.intra[candleKey{c.Symbol, c.Resolution, c.EndTS}] = c
	}
	return nil
}

func (m *memStore) CountIntradayOnDate(ctx context.Context, symbol string, resolution common.Resolution, date time.Time) (int, error) {
	n := 0
	for k, c := range m.intra {
		if k.symbol == symbol && k.res == resolution && common.SameDate(c.EndTS, date) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) SweepIntraday(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	for k, c := range m.intra {
		if common.DateOf(c.EndTS).Before(common.DateOf(before)) {
			delete(m.intra, k)
			n++
		}
	}
	return n, nil
}

type fetchWindow struct {
	begin, end time.Time
}

// fakeBulk synthesises one daily candle per trading day of each requested
// window, and records session and fetch activity.
type fakeBulk struct {
	loggedIn     bool
	loginCalls   int
	logoutCalls  int
	fetches      []fetchWindow
	empty        bool
	expireNext   bool
}

func (b *fakeBulk) Login(ctx context.Context) error {
	b.loginCalls++
	b.loggedIn = true
	return nil
}

func (b *fakeBulk) Logout(ctx context.Context) error {
	b.logoutCalls++
	b.loggedIn = false
	return nil
}

func (b *fakeBulk) LoggedIn() bool { return b.loggedIn }

func (b *fakeBulk) Fetch(ctx context.Context, symbol string, resolution common.Resolution, begin, end time.Time, adjustment common.Adjustment) ([]common.Candle, error) {
	if !b.loggedIn {
		return nil, common.VendorReqError{IsNotRetryable: true, Err: common.ErrNotLoggedIn}
	}
	if b.expireNext {
		b.expireNext = false
		b.loggedIn = false
		return nil, common.VendorReqError{IsVendorSide: true, IsSessionExpired: true, Err: common.ErrSessionExpired}
	}
	b.fetches = append(b.fetches, fetchWindow{begin, end})
	if b.empty || resolution != common.ResDay {
		return nil, common.VendorReqError{IsVendorSide: true, Err: common.ErrVendorEmptyResult}
	}

	candles := []common.Candle{}
	for cur := common.DateOf(begin); !cur.After(common.DateOf(end)); cur = cur.AddDate(0, 0, 1) {
		if !calendar.IsTradingDay(cur) {
			continue
		}
		candles = append(candles, common.Candle{Symbol: symbol, Resolution: resolution, EndTS: cur, Close: 100})
	}
	if len(candles) == 0 {
		return nil, common.VendorReqError{IsVendorSide: true, Err: common.ErrVendorEmptyResult}
	}
	return candles, nil
}

type fakeUniverse map[string]common.UniverseEntry

func (u fakeUniverse) Entry(ctx context.Context, symbol string) (common.UniverseEntry, error) {
	entry, ok := u[symbol]
	if !ok {
		return common.UniverseEntry{}, fmt.Errorf("%w: %q", common.ErrUnknownSymbol, symbol)
	}
	return entry, nil
}

type fakeIntradayVendor struct {
	rows []common.Candle
}

func (v *fakeIntradayVendor) FetchStock(ctx context.Context, symbol string, resolution common.Resolution, adjustment common.Adjustment) ([]common.Candle, error) {
	if len(v.rows) == 0 {
		return nil, common.VendorReqError{IsVendorSide: true, Err: common.ErrVendorEmptyResult}
	}
	return v.rows, nil
}

func (v *fakeIntradayVendor) FetchIndex(ctx context.Context, symbol string, resolution common.Resolution) ([]common.Candle, error) {
	if resolution.IsMinute() {
		return nil, common.VendorReqError{IsNotRetryable: true, Err: common.ErrIndexMinuteUnsupported}
	}
	return v.FetchStock(ctx, symbol, resolution, common.AdjustNone)
}

type stockClassifier struct{}

func (stockClassifier) IsIndex(ctx context.Context, symbol string) bool {
	return common.IsIndexCode(symbol)
}

type testHarness struct {
	store    *memStore
	bulk     *fakeBulk
	vendor   *fakeIntradayVendor
	universe fakeUniverse
	reader   *Reader
	router   *intraday.Router
}

func newHarness(now time.Time) *testHarness {
	h := &testHarness{
		store:  newMemStore(),
		bulk:   &fakeBulk{},
		vendor: &fakeIntradayVendor{},
		universe: fakeUniverse{
			"sh.600519": {Symbol: "sh.600519", Name: "贵州茅台", Type: "stock"},
		},
	}
	h.router = intraday.NewRouter(h.store, h.store, h.vendor, stockClassifier{})
	h.reader = New(h.store, h.store, h.bulk, h.router, h.universe)
	h.setNow(now)
	return h
}

func (h *testHarness) setNow(now time.Time) {
	h.reader.now = func() time.Time { return now }
	h.router.SetNow(func() time.Time { return now })
}

func endDates(candles []common.Candle) []string {
	out := make([]string, len(candles))
	for i, c := range candles {
		out[i] = common.FormatDate(c.EndTS)
	}
	return out
}

func requireStrictlyIncreasing(t *testing.T, candles []common.Candle) {
	t.Helper()
	for i := 1; i < len(candles); i++ {
		require.True(t, candles[i].EndTS.After(candles[i-1].EndTS), "EndTS not strictly increasing at %v", i)
	}
}

func TestColdReadPastWindow(t *testing.T) {
	h := newHarness(tp("2026-08-25 12:00"))

	got, err := h.reader.Read(context.Background(), "sh.600519", common.ResDay, d("2024-01-02"), d("2024-01-05"))
	require.NoError(t, err)
	require.Equal(t, []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"}, endDates(got))
	requireStrictlyIncreasing(t, got)

	// the store now holds exactly those rows
	stored, err := h.store.QueryHistorical(context.Background(), "sh.600519", common.ResDay, d("2024-01-01"), d("2024-01-31"))
	require.NoError(t, err)
	require.Len(t, stored, 4)
}

func TestGapClosure(t *testing.T) {
	h := newHarness(tp("2026-08-25 12:00"))

	_, err := h.reader.Read(context.Background(), "sh.600519", common.ResDay, d("2024-01-02"), d("2024-01-05"))
	require.NoError(t, err)
	fetchesAfterFirst := len(h.bulk.fetches)
	require.Equal(t, 1, fetchesAfterFirst)

	// the second identical read finds no gaps and does zero backfill work
	got, err := h.reader.Read(context.Background(), "sh.600519", common.ResDay, d("2024-01-02"), d("2024-01-05"))
	require.NoError(t, err)
	require.Len(t, got, 4)
	require.Equal(t, fetchesAfterFirst, len(h.bulk.fetches))
}

func TestNonTradingEndpointsAreSnapped(t *testing.T) {
	h := newHarness(tp("2026-08-25 12:00"))

	// Jan 1 is a holiday, Jan 6 a Saturday
	got, err := h.reader.Read(context.Background(), "sh.600519", common.ResDay, d("2024-01-01"), d("2024-01-06"))
	require.NoError(t, err)
	require.Equal(t, []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"}, endDates(got))

	require.Len(t, h.bulk.fetches, 1)
	require.Equal(t, d("2024-01-02"), h.bulk.fetches[0].begin)
	require.Equal(t, d("2024-01-05"), h.bulk.fetches[0].end)
}

func TestEmptyWindowAfterSnap(t *testing.T) {
	h := newHarness(tp("2026-08-25 12:00"))

	// Saturday..Sunday snaps to an inverted window
	got, err := h.reader.Read(context.Background(), "sh.600519", common.ResDay, d("2024-01-06"), d("2024-01-07"))
	require.NoError(t, err)
	require.Empty(t, got)
	require.Empty(t, h.bulk.fetches)
}

func TestIntradaySplit(t *testing.T) {
	// Monday 2025-12-22 at 10:45: 10:30 sealed, the rest still forming
	h := newHarness(tp("2025-12-22 10:45"))
	h.vendor.rows = []common.Candle{
		{Symbol: "sh.600519", Resolution: common.Res60m, EndTS: tp("2025-12-22 10:30"), Close: 1},
		{Symbol: "sh.600519", Resolution: common.Res60m, EndTS: tp("2025-12-22 11:30"), Close: 2},
		{Symbol: "sh.600519", Resolution: common.Res60m, EndTS: tp("2025-12-22 14:00"), Close: 3},
		{Symbol: "sh.600519", Resolution: common.Res60m, EndTS: tp("2025-12-22 15:00"), Close: 4},
	}

	got, err := h.reader.Read(context.Background(), "sh.600519", common.Res60m, d("2025-12-22"), d("2025-12-22"))
	require.NoError(t, err)
	require.Len(t, got, 4)
	requireStrictlyIncreasing(t, got)

	// 10:30 went to historical, the rest to intraday
	require.Contains(t, h.store.hist, candleKey{"sh.600519", common.Res60m, tp("2025-12-22 10:30")})
	require.Len(t, h.store.intra, 3)
}

func TestSealPromotion(t *testing.T) {
	h := newHarness(tp("2025-12-22 10:45"))
	h.vendor.rows = []common.Candle{
		{Symbol: "sh.600519", Resolution: common.Res60m, EndTS: tp("2025-12-22 10:30"), Close: 1},
		{Symbol: "sh.600519", Resolution: common.Res60m, EndTS: tp("2025-12-22 11:30"), Close: 2},
		{Symbol: "sh.600519", Resolution: common.Res60m, EndTS: tp("2025-12-22 14:00"), Close: 3},
		{Symbol: "sh.600519", Resolution: common.Res60m, EndTS: tp("2025-12-22 15:00"), Close: 4},
	}

	_, err := h.reader.Read(context.Background(), "sh.600519", common.Res60m, d("2025-12-22"), d("2025-12-22"))
	require.NoError(t, err)

	// re-read after the 11:30 candle seals
	h.setNow(tp("2025-12-22 11:31"))
	got, err := h.reader.Read(context.Background(), "sh.600519", common.Res60m, d("2025-12-22"), d("2025-12-22"))
	require.NoError(t, err)
	require.Len(t, got, 4)
	requireStrictlyIncreasing(t, got)

	require.Contains(t, h.store.hist, candleKey{"sh.600519", common.Res60m, tp("2025-12-22 11:30")})

	// each EndTS appears exactly once even though the 11:30 row still
	// lingers in the intraday store
	seen := map[time.Time]int{}
	for _, c := range got {
		seen[c.EndTS]++
	}
	for ts, n := range seen {
		require.Equal(t, 1, n, "EndTS %v appears %v times", ts, n)
	}
}

func TestListDateClamping(t *testing.T) {
	h := newHarness(tp("2026-08-25 12:00"))
	listed := d("2021-06-10")
	h.universe["sh.688888"] = common.UniverseEntry{Symbol: "sh.688888", Name: "测试", Type: "stock", ListDate: &listed}

	got, err := h.reader.Read(context.Background(), "sh.688888", common.ResDay, d("2020-01-01"), d("2021-07-01"))
	require.NoError(t, err)

	require.Len(t, h.bulk.fetches, 1)
	require.Equal(t, d("2021-06-10"), h.bulk.fetches[0].begin)
	for _, c := range got {
		require.False(t, c.EndTS.Before(listed), "candle %v predates the listing", c.EndTS)
	}
}

func TestSessionExpiredRetriesOnce(t *testing.T) {
	h := newHarness(tp("2026-08-25 12:00"))
	h.bulk.expireNext = true

	got, err := h.reader.Read(context.Background(), "sh.600519", common.ResDay, d("2024-01-02"), d("2024-01-05"))
	require.NoError(t, err)
	require.Len(t, got, 4)
	require.Equal(t, 2, h.bulk.loginCalls)
}

func TestUnknownSymbol(t *testing.T) {
	h := newHarness(tp("2026-08-25 12:00"))

	_, err := h.reader.Read(context.Background(), "sh.999999", common.ResDay, d("2024-01-02"), d("2024-01-05"))
	require.ErrorIs(t, err, common.ErrUnknownSymbol)
}

func TestInvalidInputs(t *testing.T) {
	h := newHarness(tp("2026-08-25 12:00"))

	_, err := h.reader.Read(context.Background(), "sh.600519", "7m", d("2024-01-02"), d("2024-01-05"))
	require.ErrorIs(t, err, common.ErrUnsupportedResolution)

	_, err = h.reader.Read(context.Background(), "600519", common.ResDay, d("2024-01-02"), d("2024-01-05"))
	require.ErrorIs(t, err, common.ErrInvalidSymbol)
}

func TestEmptyVendorResultIsNotAnError(t *testing.T) {
	h := newHarness(tp("2026-08-25 12:00"))
	h.bulk.empty = true

	got, err := h.reader.Read(context.Background(), "sh.600519", common.ResDay, d("2024-01-02"), d("2024-01-05"))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestSweepRemovesStaleIntradayRows(t *testing.T) {
	h := newHarness(tp("2025-12-22 10:45"))
	stale := common.IntradayCandle{Candle: common.Candle{Symbol: "sh.600519", Resolution: common.Res60m, EndTS: tp("2025-12-19 15:00")}}
	require.NoError(t, h.store.UpsertIntraday(context.Background(), []common.IntradayCandle{stale}))

	_, err := h.reader.Read(context.Background(), "sh.600519", common.Res60m, d("2025-12-22"), d("2025-12-22"))
	require.NoError(t, err)
	require.NotContains(t, h.store.intra, candleKey{"sh.600519", common.Res60m, tp("2025-12-19 15:00")})
}

func TestMergeSuppressesDuplicates(t *testing.T) {
	hist := []common.Candle{
		{EndTS: tp("2025-12-22 10:30")},
		{EndTS: tp("2025-12-22 11:30")},
	}
	forming := []common.Candle{
		{EndTS: tp("2025-12-22 11:30")},
		{EndTS: tp("2025-12-22 14:00")},
	}
	got := merge(hist, forming)
	require.Len(t, got, 3)
	requireStrictlyIncreasing(t, got)
}
