package registry

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/ashare-data/kline/kline/common"
)

// Import upserts universe entries into the stocks table, generating the
// pinyin search columns from each name. Existing rows keep their created_at.
func (r *Registry) Import(ctx context.Context, entries []common.UniverseEntry) error {
	if len(entries) == 0 {
		return nil
	}
	const q = `
		INSERT INTO stocks (code, name, type, list_date, pinyin, pinyin_short, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			list_date = EXCLUDED.list_date,
			pinyin = EXCLUDED.pinyin,
			pinyin_short = EXCLUDED.pinyin_short`

	b := &pgx.Batch{}
	for _, entry := range entries {
		full, initials := entry.Pinyin, entry.PinyinInitial
		if full == "" && initials == "" {
			full, initials = Pinyinize(entry.Name)
		}
		b.Queue(q, entry.Symbol, entry.Name, entry.Type, entry.ListDate, full, initials)
	}

	if err := r.db.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStorageUnavailable, err)
	}

	log.Info().Int("entries", len(entries)).Msg("universe import complete")
	return nil
}
