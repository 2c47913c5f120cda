// Package gaps finds the uncovered sub-intervals of a historical read window.
package gaps

import (
	"time"

	"github.com/ashare-data/kline/kline/calendar"
	"github.com/ashare-data/kline/kline/common"
)

// Gap is an uncovered [Begin, End] interval in trading-day space.
type Gap struct {
	Begin time.Time
	End   time.Time
}

// Detect computes the gaps of [begin, end] not covered by the sorted candles
// already in the historical store.
//
// Only leading and trailing gaps are emitted. Historical candles are persisted
// exclusively through contiguous backfills, so interior holes are structurally
// improbable and not searched for.
func Detect(candles []common.Candle, begin, end time.Time) []Gap {
	begin, end = common.DateOf(begin), common.DateOf(end)
	if len(candles) == 0 {
		return []Gap{{Begin: begin, End: end}}
	}

	first := common.DateOf(candles[0].EndTS)
	last := common.DateOf(candles[len(candles)-1].EndTS)

	gaps := []Gap{}
	if begin.Before(first) {
		if upTo := calendar.PrevTradingDay(first); !upTo.Before(begin) {
			gaps = append(gaps, Gap{Begin: begin, End: upTo})
		}
	}
	if last.Before(end) {
		if from := calendar.NextTradingDay(last); !from.After(end) {
			gaps = append(gaps, Gap{Begin: from, End: end})
		}
	}
	return gaps
}
