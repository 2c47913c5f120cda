// Package calendar is the trading-day oracle for the PRC A-share market.
//
// A day is a trading day iff it is a weekday AND not a listed market-closure
// holiday. The holiday table covers 2004-2026; outside that range only the
// weekend rule applies, and a one-time informational log line is emitted.
package calendar

import (
	"sync"
	"time"

	"github.com/ashare-data/kline/kline/common"
	"github.com/rs/zerolog/log"
)

// MinYear and MaxYear bound the supported holiday table.
const (
	MinYear = 2004
	MaxYear = 2026
)

// Direction is the direction in which Snap moves a non-trading date.
type Direction int

const (
	// Back snaps toward earlier dates.
	Back Direction = iota
	// Forward snaps toward later dates.
	Forward
)

// maxSnapAttempts bounds the walk; no closure streak comes close to 30 days.
const maxSnapAttempts = 30

var outOfRangeOnce sync.Once

// IsTradingDay reports whether the given date is an A-share trading day.
func IsTradingDay(date time.Time) bool {
	date = common.DateOf(date)
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	year := date.Year()
	if year < MinYear || year > MaxYear {
		outOfRangeOnce.Do(func() {
			log.Info().Int("year", year).Msgf("date outside holiday table range (%d-%d), applying weekend rule only", MinYear, MaxYear)
		})
		return true
	}
	return !holidaySet[date.Format("2006-01-02")]
}

// Snap moves a date to the nearest trading day in the given direction. It is
// idempotent on trading days. If no trading day is found within 30 calendar
// days (structurally impossible), the input is returned and a warning logged.
func Snap(date time.Time, dir Direction) time.Time {
	date = common.DateOf(date)
	if IsTradingDay(date) {
		return date
	}
	step := -1
	if dir == Forward {
		step = 1
	}
	d := date
	for i := 0; i < maxSnapAttempts; i++ {
		d = d.AddDate(0, 0, step)
		if IsTradingDay(d) {
			return d
		}
	}
	log.Warn().Str("date", common.FormatDate(date)).Msg("no trading day found within 30 days, returning input")
	return date
}

// PrevTradingDay returns the last trading day strictly before the given date.
func PrevTradingDay(date time.Time) time.Time {
	return Snap(common.DateOf(date).AddDate(0, 0, -1), Back)
}

// NextTradingDay returns the first trading day strictly after the given date.
func NextTradingDay(date time.Time) time.Time {
	return Snap(common.DateOf(date).AddDate(0, 0, 1), Forward)
}
