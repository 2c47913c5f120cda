// Package registry is the symbol universe: code, name, type, list date and
// the pinyin search columns.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ashare-data/kline/kline/common"
)

const defaultCacheSize = 4096

// querier is the subset of pgxpool.Pool the registry needs. Narrowed for
// fakeability in tests.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Registry resolves symbols against the stocks table, with an LRU read cache
// in front. Universe rows change rarely (new listings), so cached entries are
// never invalidated within a process lifetime.
type Registry struct {
	db    querier
	cache *lru.Cache
}

// New is the constructor for Registry.
func New(db querier) *Registry {
	cache, _ := lru.New(defaultCacheSize)
	return &Registry{db: db, cache: cache}
}

// Entry resolves a symbol to its universe record. Fails with ErrUnknownSymbol
// when the registry has no row for it.
func (r *Registry) Entry(ctx context.Context, symbol string) (common.UniverseEntry, error) {
	if cached, ok := r.cache.Get(symbol); ok {
		return cached.(common.UniverseEntry), nil
	}

	var (
		entry    = common.UniverseEntry{Symbol: symbol}
		entType  *string
		listDate *time.Time
		py, pys  *string
	)
	err := r.db.QueryRow(ctx, `
		SELECT name, type, list_date, pinyin, pinyin_short
		FROM stocks
		WHERE code = $1`, symbol).Scan(&entry.Name, &entType, &listDate, &py, &pys)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.UniverseEntry{}, fmt.Errorf("%w: %q", common.ErrUnknownSymbol, symbol)
	}
	if err != nil {
		return common.UniverseEntry{}, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	if entType != nil {
		entry.Type = *entType
	}
	if listDate != nil {
		d := common.DateOf(*listDate)
		entry.ListDate = &d
	}
	if py != nil {
		entry.Pinyin = *py
	}
	if pys != nil {
		entry.PinyinInitial = *pys
	}

	r.cache.Add(symbol, entry)
	return entry, nil
}

// IsIndex classifies a symbol. The registry's type field is authoritative when
// populated; unknown symbols fall back to the structural code-range rule.
func (r *Registry) IsIndex(ctx context.Context, symbol string) bool {
	entry, err := r.Entry(ctx, symbol)
	if err == nil && entry.Type != "" {
		return entry.Type == "index"
	}
	return common.IsIndexCode(symbol)
}

// ListDate returns the listing date of a symbol, or nil when unknown.
func (r *Registry) ListDate(ctx context.Context, symbol string) *time.Time {
	entry, err := r.Entry(ctx, symbol)
	if err != nil {
		return nil
	}
	return entry.ListDate
}

// ListForBackfill returns the universe symbols the bulk vendor can serve,
// ordered by code. Beijing exchange codes are excluded: the vendor has no
// data for them.
func (r *Registry) ListForBackfill(ctx context.Context) ([]common.UniverseEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT code, name, type, list_date
		FROM stocks
		WHERE code NOT LIKE 'bj.%'
		ORDER BY code ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	entries := []common.UniverseEntry{}
	for rows.Next() {
		var (
			entry    common.UniverseEntry
			entType  *string
			listDate *time.Time
		)
		if err := rows.Scan(&entry.Symbol, &entry.Name, &entType, &listDate); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
		}
		if entType != nil {
			entry.Type = *entType
		}
		if listDate != nil {
			d := common.DateOf(*listDate)
			entry.ListDate = &d
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}
	return entries, nil
}
