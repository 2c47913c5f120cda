// Package eastmoney implements the aggregated intraday vendor adapter.
//
// Unlike the bulk vendor there is no session: every pull is a stateless HTTP
// request, so the adapter is safe for concurrent use.
package eastmoney

import (
	"context"
	"net/http"
	"time"

	"github.com/ashare-data/kline/kline/common"
)

// Eastmoney requests the current trading day's forming candles.
type Eastmoney struct {
	apiURL string
	debug  bool
	client *http.Client
}

// New is the constructor for Eastmoney.
func New() *Eastmoney {
	return &Eastmoney{
		apiURL: "https://push2his.eastmoney.com/api/qt/stock/kline/get",
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// FetchStock pulls today's candles for a stock or ETF. The vendor reports
// volume in lots; it is converted to shares here. Returned rows may include
// trailing days other than today; the caller filters.
func (e *Eastmoney) FetchStock(ctx context.Context, symbol string, resolution common.Resolution, adjustment common.Adjustment) ([]common.Candle, error) {
	return e.requestKlines(ctx, symbol, resolution, adjustment)
}

// FetchIndex pulls today's candles for an index. The vendor has no
// minute-resolution endpoint for indices, so minute resolutions fail with
// ErrIndexMinuteUnsupported. Index prices are never adjusted.
func (e *Eastmoney) FetchIndex(ctx context.Context, symbol string, resolution common.Resolution) ([]common.Candle, error) {
	if resolution.IsMinute() {
		return nil, common.VendorReqError{IsNotRetryable: true, Err: common.ErrIndexMinuteUnsupported}
	}
	return e.requestKlines(ctx, symbol, resolution, common.AdjustNone)
}

// SetDebug sets vendor-wide debug logging. It's useful to know how many times requests are being sent to vendors.
func (e *Eastmoney) SetDebug(debug bool) {
	e.debug = debug
}

// SetAPIURL points the adapter at a non-default endpoint, e.g. a mirror.
func (e *Eastmoney) SetAPIURL(apiURL string) {
	e.apiURL = apiURL
}
