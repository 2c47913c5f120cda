package baostock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ashare-data/kline/kline/common"
)

// Vendor error codes that mean the server dropped our session. The server does
// not use a dedicated HTTP status for this; it answers 200 with one of these.
const (
	codeNotLoggedIn    = "10001001"
	codeSessionExpired = "10002007"
)

type vendorResponse struct {
	ErrorCode string     `json:"error_code"`
	ErrorMsg  string     `json:"error_msg"`
	SessionID string     `json:"session_id"`
	Fields    []string   `json:"fields"`
	Data      [][]string `json:"data"`
}

func (r vendorResponse) toError() error {
	if r.ErrorCode == "" || r.ErrorCode == "0" {
		return nil
	}
	if r.ErrorCode == codeNotLoggedIn || r.ErrorCode == codeSessionExpired {
		return common.VendorReqError{
			IsVendorSide:     true,
			IsSessionExpired: true,
			Err:              fmt.Errorf("%w: %v", common.ErrSessionExpired, r.ErrorMsg),
		}
	}
	return common.VendorReqError{
		IsVendorSide: true,
		Err:          fmt.Errorf("baostock returned error code! Code: %v, Message: %v", r.ErrorCode, r.ErrorMsg),
	}
}

func frequency(resolution common.Resolution) (string, error) {
	switch resolution {
	case common.Res1m, common.Res5m, common.Res15m, common.Res30m, common.Res60m:
		return strconv.Itoa(resolution.Minutes()), nil
	case common.ResDay:
		return "d", nil
	case common.ResWeek:
		return "w", nil
	case common.ResMonth:
		return "m", nil
	}
	return "", common.VendorReqError{IsNotRetryable: true, Err: common.ErrUnsupportedResolution}
}

func adjustFlag(adjustment common.Adjustment) string {
	switch adjustment {
	case common.AdjustBackward:
		return "1"
	case common.AdjustNone:
		return "3"
	default:
		return "2"
	}
}

func fields(resolution common.Resolution) string {
	if resolution.IsMinute() {
		return "date,time,code,open,high,low,close,volume,amount"
	}
	return "date,code,open,high,low,close,volume,amount,turn"
}

// Minute rows carry a 17-digit end-of-interval timestamp, YYYYMMDDHHMMSSsss.
const minuteTimeLayout = "20060102150405"

func parseMinuteTime(s string) (time.Time, error) {
	if len(s) < len(minuteTimeLayout) {
		return time.Time{}, fmt.Errorf("minute timestamp %q too short", s)
	}
	return time.ParseInLocation(minuteTimeLayout, s[:len(minuteTimeLayout)], common.CST)
}

func parsePrice(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseVolume(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

func (r vendorResponse) toCandles(symbol string, resolution common.Resolution) ([]common.Candle, error) {
	isMinute := resolution.IsMinute()
	want := 9
	candles := make([]common.Candle, len(r.Data))
	for i, raw := range r.Data {
		if len(raw) != want {
			return nil, fmt.Errorf("kline row %v has len %v != %v! Invalid syntax from baostock", i, len(raw), want)
		}
		c := common.Candle{Symbol: symbol, Resolution: resolution}

		var err error
		if isMinute {
			// date, time, code, open, high, low, close, volume, amount
			if c.EndTS, err = parseMinuteTime(raw[1]); err != nil {
				return nil, fmt.Errorf("kline row %v has bad time! Invalid syntax from baostock: %v", i, err)
			}
			if c.Open, err = parsePrice(raw[3]); err != nil {
				return nil, fmt.Errorf("kline row %v has bad open! Invalid syntax from baostock", i)
			}
			if c.High, err = parsePrice(raw[4]); err != nil {
				return nil, fmt.Errorf("kline row %v has bad high! Invalid syntax from baostock", i)
			}
			if c.Low, err = parsePrice(raw[5]); err != nil {
				return nil, fmt.Errorf("kline row %v has bad low! Invalid syntax from baostock", i)
			}
			if c.Close, err = parsePrice(raw[6]); err != nil {
				return nil, fmt.Errorf("kline row %v has bad close! Invalid syntax from baostock", i)
			}
			if c.Volume, err = parseVolume(raw[7]); err != nil {
				return nil, fmt.Errorf("kline row %v has bad volume! Invalid syntax from baostock", i)
			}
			if c.Amount, err = parsePrice(raw[8]); err != nil {
				return nil, fmt.Errorf("kline row %v has bad amount! Invalid syntax from baostock", i)
			}
		} else {
			// date, code, open, high, low, close, volume, amount, turn
			if c.EndTS, err = common.ParseDate(raw[0]); err != nil {
				return nil, fmt.Errorf("kline row %v has bad date! Invalid syntax from baostock: %v", i, err)
			}
			if c.Open, err = parsePrice(raw[2]); err != nil {
				return nil, fmt.Errorf("kline row %v has bad open! Invalid syntax from baostock", i)
			}
			if c.High, err = parsePrice(raw[3]); err != nil {
				return nil, fmt.Errorf("kline row %v has bad high! Invalid syntax from baostock", i)
			}
			if c.Low, err = parsePrice(raw[4]); err != nil {
				return nil, fmt.Errorf("kline row %v has bad low! Invalid syntax from baostock", i)
			}
			if c.Close, err = parsePrice(raw[5]); err != nil {
				return nil, fmt.Errorf("kline row %v has bad close! Invalid syntax from baostock", i)
			}
			if c.Volume, err = parseVolume(raw[6]); err != nil {
				return nil, fmt.Errorf("kline row %v has bad volume! Invalid syntax from baostock", i)
			}
			if c.Amount, err = parsePrice(raw[7]); err != nil {
				return nil, fmt.Errorf("kline row %v has bad amount! Invalid syntax from baostock", i)
			}
			if raw[8] != "" {
				turn, err := strconv.ParseFloat(raw[8], 64)
				if err != nil {
					return nil, fmt.Errorf("kline row %v has bad turn! Invalid syntax from baostock", i)
				}
				c.Turn = &turn
			}
		}
		candles[i] = c
	}
	return candles, nil
}

func (e *Baostock) do(ctx context.Context, path string, params map[string]string) (vendorResponse, error) {
	req, _ := http.NewRequestWithContext(ctx, "GET", e.apiURL+path, nil)
	q := req.URL.Query()
	for k, v := range params {
		q.Add(k, v)
	}
	req.URL.RawQuery = q.Encode()

	resp, err := e.client.Do(req)
	if err != nil {
		return vendorResponse{}, common.VendorReqError{IsNotRetryable: true, Err: common.ErrExecutingRequest}
	}
	defer resp.Body.Close()

	byts, err := io.ReadAll(resp.Body)
	if err != nil {
		return vendorResponse{}, common.VendorReqError{IsVendorSide: true, Err: common.ErrBrokenBodyResponse}
	}

	r := vendorResponse{}
	if err := json.Unmarshal(byts, &r); err != nil {
		return vendorResponse{}, common.VendorReqError{IsVendorSide: true, Err: common.ErrInvalidJSONResponse}
	}
	if err := r.toError(); err != nil {
		return vendorResponse{}, err
	}
	return r, nil
}

func (e *Baostock) requestLogin(ctx context.Context) (string, error) {
	r, err := e.do(ctx, "login", nil)
	if err != nil {
		return "", err
	}
	if r.SessionID == "" {
		return "", common.VendorReqError{IsVendorSide: true, Err: errors.New("baostock login returned no session id")}
	}
	return r.SessionID, nil
}

func (e *Baostock) requestLogout(ctx context.Context, sessionID string) error {
	_, err := e.do(ctx, "logout", map[string]string{"session_id": sessionID})
	return err
}

// Example request:
// http://www.baostock.com/api/v1/query_history_k_data?code=sh.600519&fields=date,code,open,high,low,close,volume,amount,turn&start_date=2024-01-02&end_date=2024-01-05&frequency=d&adjustflag=2&session_id=...
//
// Returns
//
//	{
//	  "error_code": "0",
//	  "error_msg": "",
//	  "fields": ["date","code","open","high","low","close","volume","amount","turn"],
//	  "data": [
//	    ["2024-01-02","sh.600519","1685.01","1696.00","1676.33","1685.01","3215644","5424481234.00","0.025600"],
//	    ["2024-01-03","sh.600519","1680.00","1692.88","1671.00","1688.88","2954411","4978123411.00","0.023500"]
//	  ]
//	}
//
// Minute rows replace the leading date with a (date, time) pair where time is
// the 17-digit end-of-interval timestamp, e.g. "20240102103000000" for the
// candle closing at 10:30.
func (e *Baostock) requestKlines(ctx context.Context, symbol string, resolution common.Resolution, begin, end time.Time, adjustment common.Adjustment) ([]common.Candle, error) {
	freq, err := frequency(resolution)
	if err != nil {
		return nil, err
	}
	r, err := e.do(ctx, "query_history_k_data", map[string]string{
		"session_id": e.sessionID,
		"code":       symbol,
		"fields":     fields(resolution),
		"start_date": common.FormatDate(begin),
		"end_date":   common.FormatDate(end),
		"frequency":  freq,
		"adjustflag": adjustFlag(adjustment),
	})
	if err != nil {
		return nil, err
	}

	candles, err := r.toCandles(symbol, resolution)
	if err != nil {
		return nil, common.VendorReqError{IsVendorSide: true, Err: err}
	}
	if len(candles) == 0 {
		return nil, common.VendorReqError{IsVendorSide: true, Err: common.ErrVendorEmptyResult}
	}

	if e.debug {
		log.Info().Str("vendor", "baostock").Str("symbol", symbol).Str("resolution", string(resolution)).Int("candle_count", len(candles)).Msg("Kline request successful!")
	}

	return candles, nil
}
