// Package clock implements candle-time arithmetic for the A-share session.
//
// Sessions are 09:30-11:30 and 13:00-15:00 CST, 240 trading minutes per day.
// All stored candle timestamps are end-of-interval: a minute candle's EndTS is
// its start plus the resolution's minute count; day/week/month candles are
// keyed by session date.
package clock

import (
	"time"

	"github.com/ashare-data/kline/kline/common"
)

// Session boundaries as minutes from midnight.
const (
	morningOpenMin   = 9*60 + 30
	morningCloseMin  = 11*60 + 30
	afternoonOpenMin = 13 * 60
	sessionCloseMin  = 15 * 60
)

// TradingMinutes is the number of trading minutes in a full session day.
const TradingMinutes = 240

func at(date time.Time, minutes int) time.Time {
	date = common.DateOf(date)
	return date.Add(time.Duration(minutes) * time.Minute)
}

// SessionOpen returns 09:30 CST of the given date.
func SessionOpen(date time.Time) time.Time { return at(date, morningOpenMin) }

// SessionClose returns 15:00 CST of the given date.
func SessionClose(date time.Time) time.Time { return at(date, sessionCloseMin) }

// CandleStarts enumerates the start instants of every candle of the given
// resolution on the given date, stepping the minute count from each session
// open. Day/week/month resolutions have a single candle starting at 09:30.
func CandleStarts(resolution common.Resolution, date time.Time) []time.Time {
	if !resolution.IsMinute() {
		return []time.Time{SessionOpen(date)}
	}
	m := resolution.Minutes()
	step := time.Duration(m) * time.Minute
	starts := make([]time.Time, 0, TradingMinutes/m)
	for cur, end := at(date, morningOpenMin), at(date, morningCloseMin); cur.Before(end); cur = cur.Add(step) {
		starts = append(starts, cur)
	}
	for cur, end := at(date, afternoonOpenMin), at(date, sessionCloseMin); cur.Before(end); cur = cur.Add(step) {
		starts = append(starts, cur)
	}
	return starts
}

// ExpectedCount returns how many candles of the resolution a full session day has.
func ExpectedCount(resolution common.Resolution) int {
	if !resolution.IsMinute() {
		return 1
	}
	return TradingMinutes / resolution.Minutes()
}

// Interval is a classified candle window.
type Interval struct {
	Start  time.Time
	End    time.Time
	Sealed bool
}

// Classify locates the candle window containing `now` on now's date.
//
// Pre-open returns the day's first candle unsealed; after the last candle's
// close it returns the last candle sealed; during the mid-day break it returns
// the previous candle sealed.
func Classify(resolution common.Resolution, now time.Time) Interval {
	now = now.In(common.CST)
	date := common.DateOf(now)

	if !resolution.IsMinute() {
		start, end := SessionOpen(date), SessionClose(date)
		return Interval{Start: start, End: end, Sealed: !now.Before(end)}
	}

	step := time.Duration(resolution.Minutes()) * time.Minute
	starts := CandleStarts(resolution, date)
	first, last := starts[0], starts[len(starts)-1]

	if now.Before(first) {
		return Interval{Start: first, End: first.Add(step), Sealed: false}
	}
	if !now.Before(last.Add(step)) {
		return Interval{Start: last, End: last.Add(step), Sealed: true}
	}
	var prev Interval
	for _, start := range starts {
		end := start.Add(step)
		if !now.Before(start) && now.Before(end) {
			return Interval{Start: start, End: end, Sealed: false}
		}
		if !now.Before(end) {
			prev = Interval{Start: start, End: end, Sealed: true}
		}
	}
	// mid-day break: the previous candle, sealed
	return prev
}

// ExpectedFinished counts the candles of the resolution on now's date whose
// EndTS is at or before now.
func ExpectedFinished(resolution common.Resolution, now time.Time) int {
	now = now.In(common.CST)
	if !resolution.IsMinute() {
		if !now.Before(SessionClose(now)) {
			return 1
		}
		return 0
	}
	step := time.Duration(resolution.Minutes()) * time.Minute
	n := 0
	for _, start := range CandleStarts(resolution, now) {
		if !now.Before(start.Add(step)) {
			n++
		}
	}
	return n
}

// IsSealed reports whether a candle with the given EndTS is sealed at `now`.
// For day/week/month candles EndTS degenerates to the session date, so the
// seal instant is that date's session close.
func IsSealed(resolution common.Resolution, endTS, now time.Time) bool {
	if resolution.IsMinute() {
		return !now.Before(endTS)
	}
	return !now.In(common.CST).Before(SessionClose(endTS))
}
