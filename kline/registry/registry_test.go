package registry

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/ashare-data/kline/kline/common"
)

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

type fakeDB struct {
	queryRowCalls int
	row           fakeRow
}

func (db *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	db.queryRowCalls++
	return db.row
}

func (db *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not used")
}

func (db *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	panic("not used")
}

func (db *fakeDB) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not used")
}

func stockRow(name, entType string, listDate *time.Time) fakeRow {
	return fakeRow{scan: func(dest ...any) error {
		*dest[0].(*string) = name
		*dest[1].(**string) = &entType
		*dest[2].(**time.Time) = listDate
		py, pys := Pinyinize(name)
		*dest[3].(**string) = &py
		*dest[4].(**string) = &pys
		return nil
	}}
}

func TestEntryIsCached(t *testing.T) {
	listed := time.Date(2001, 8, 27, 0, 0, 0, 0, common.CST)
	db := &fakeDB{row: stockRow("贵州茅台", "stock", &listed)}
	r := New(db)

	entry, err := r.Entry(context.Background(), "sh.600519")
	require.NoError(t, err)
	require.Equal(t, "贵州茅台", entry.Name)
	require.Equal(t, "stock", entry.Type)
	require.Equal(t, "guizhoumaotai", entry.Pinyin)
	require.Equal(t, "gzmt", entry.PinyinInitial)
	require.NotNil(t, entry.ListDate)
	require.Equal(t, "2001-08-27", common.FormatDate(*entry.ListDate))

	again, err := r.Entry(context.Background(), "sh.600519")
	require.NoError(t, err)
	require.Equal(t, entry, again)
	require.Equal(t, 1, db.queryRowCalls)
}

func TestEntryUnknownSymbol(t *testing.T) {
	db := &fakeDB{row: fakeRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}}
	r := New(db)

	_, err := r.Entry(context.Background(), "sh.999999")
	require.ErrorIs(t, err, common.ErrUnknownSymbol)

	// misses are not cached
	_, _ = r.Entry(context.Background(), "sh.999999")
	require.Equal(t, 2, db.queryRowCalls)
}

func TestIsIndex(t *testing.T) {
	// registry row wins over the structural rule
	db := &fakeDB{row: stockRow("上证指数", "index", nil)}
	r := New(db)
	require.True(t, r.IsIndex(context.Background(), "sh.000001"))

	// unknown symbols fall back to the code-range rule
	missing := &fakeDB{row: fakeRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}}
	r = New(missing)
	require.True(t, r.IsIndex(context.Background(), "sz.399001"))
	require.False(t, r.IsIndex(context.Background(), "sh.600519"))
}

func TestPinyinize(t *testing.T) {
	tss := []struct {
		name     string
		in       string
		full     string
		initials string
	}{
		{name: "plain stock name", in: "贵州茅台", full: "guizhoumaotai", initials: "gzmt"},
		{name: "bank", in: "平安银行", full: "pinganyinhang", initials: "payh"},
		{name: "ETF name with digits", in: "沪深300ETF", full: "hushen300etf", initials: "hs300etf"},
		{name: "name with space", in: "万科 A", full: "wankea", initials: "wka"},
		{name: "empty", in: "", full: "", initials: ""},
	}
	for _, ts := range tss {
		t.Run(ts.name, func(t *testing.T) {
			full, initials := Pinyinize(ts.in)
			require.Equal(t, ts.full, full)
			require.Equal(t, ts.initials, initials)
		})
	}
}
