package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ashare-data/kline/kline/common"
)

// lotSize converts the vendor's volume unit (lots) to shares.
const lotSize = 100

type successfulResponse struct {
	Rc   int    `json:"rc"`
	Msg  string `json:"msg"`
	Data *struct {
		Code   string   `json:"code"`
		Market int      `json:"market"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

func secid(symbol string) (string, error) {
	market, code, err := common.SplitSymbol(symbol)
	if err != nil {
		return "", err
	}
	if market == "sh" {
		return "1." + code, nil
	}
	return "0." + code, nil
}

func klt(resolution common.Resolution) (string, error) {
	switch resolution {
	case common.Res1m, common.Res5m, common.Res15m, common.Res30m, common.Res60m:
		return strconv.Itoa(resolution.Minutes()), nil
	case common.ResDay:
		return "101", nil
	case common.ResWeek:
		return "102", nil
	case common.ResMonth:
		return "103", nil
	}
	return "", common.VendorReqError{IsNotRetryable: true, Err: common.ErrUnsupportedResolution}
}

func fqt(adjustment common.Adjustment) string {
	switch adjustment {
	case common.AdjustBackward:
		return "2"
	case common.AdjustNone:
		return "0"
	default:
		return "1"
	}
}

// Each kline string is 11 comma-joined fields:
// timestamp, open, close, high, low, volume(lots), amount, amplitude, pct_change, change, turnover_rate.
// Minute timestamps look like "2024-01-02 10:30" and are end-of-interval;
// day/week/month rows carry a bare "2024-01-02" session date.
func parseKline(symbol string, resolution common.Resolution, raw string) (common.Candle, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 11 {
		return common.Candle{}, fmt.Errorf("kline %q has %v fields != 11! Invalid syntax from eastmoney", raw, len(parts))
	}

	c := common.Candle{Symbol: symbol, Resolution: resolution}

	var err error
	if resolution.IsMinute() {
		c.EndTS, err = time.ParseInLocation("2006-01-02 15:04", parts[0], common.CST)
	} else {
		c.EndTS, err = common.ParseDate(parts[0])
	}
	if err != nil {
		return common.Candle{}, fmt.Errorf("kline %q has bad timestamp! Invalid syntax from eastmoney", raw)
	}

	floats := make([]float64, 5)
	for i, idx := range []int{1, 2, 3, 4, 6} {
		floats[i], err = strconv.ParseFloat(parts[idx], 64)
		if err != nil {
			return common.Candle{}, fmt.Errorf("kline %q has bad field %v! Invalid syntax from eastmoney", raw, idx)
		}
	}
	c.Open, c.Close, c.High, c.Low, c.Amount = floats[0], floats[1], floats[2], floats[3], floats[4]

	lots, err := strconv.ParseInt(parts[5], 10, 64)
	if err != nil {
		return common.Candle{}, fmt.Errorf("kline %q has bad volume! Invalid syntax from eastmoney", raw)
	}
	c.Volume = lots * lotSize

	if !resolution.IsMinute() && parts[10] != "" && parts[10] != "-" {
		turn, err := strconv.ParseFloat(parts[10], 64)
		if err != nil {
			return common.Candle{}, fmt.Errorf("kline %q has bad turnover! Invalid syntax from eastmoney", raw)
		}
		c.Turn = &turn
	}

	return c, nil
}

// Example request:
// https://push2his.eastmoney.com/api/qt/stock/kline/get?secid=1.600519&klt=60&fqt=1&beg=0&end=20500101&fields1=f1,f2,f3,f4,f5,f6&fields2=f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61
//
// Returns
//
//	{
//	  "rc": 0,
//	  "data": {
//	    "code": "600519",
//	    "market": 1,
//	    "klines": [
//	      "2024-01-02 10:30,1685.01,1685.50,1686.00,1684.00,2156,363481234.00,0.12,0.03,0.49,0.03",
//	      "2024-01-02 11:30,1685.50,1686.10,1687.00,1685.00,1800,303512345.00,0.12,0.04,0.60,0.02"
//	    ]
//	  }
//	}
func (e *Eastmoney) requestKlines(ctx context.Context, symbol string, resolution common.Resolution, adjustment common.Adjustment) ([]common.Candle, error) {
	id, err := secid(symbol)
	if err != nil {
		return nil, common.VendorReqError{IsNotRetryable: true, Err: err}
	}
	kltVal, err := klt(resolution)
	if err != nil {
		return nil, err
	}

	req, _ := http.NewRequestWithContext(ctx, "GET", e.apiURL, nil)
	q := req.URL.Query()
	q.Add("secid", id)
	q.Add("klt", kltVal)
	q.Add("fqt", fqt(adjustment))
	q.Add("beg", "0")
	q.Add("end", "20500101")
	q.Add("fields1", "f1,f2,f3,f4,f5,f6")
	q.Add("fields2", "f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61")
	req.URL.RawQuery = q.Encode()

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, common.VendorReqError{IsNotRetryable: true, Err: common.ErrExecutingRequest}
	}
	defer resp.Body.Close()

	byts, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, common.VendorReqError{IsVendorSide: true, Err: common.ErrBrokenBodyResponse}
	}

	r := successfulResponse{}
	if err := json.Unmarshal(byts, &r); err != nil {
		return nil, common.VendorReqError{IsVendorSide: true, Err: common.ErrInvalidJSONResponse}
	}
	if r.Rc != 0 || r.Data == nil {
		return nil, common.VendorReqError{
			IsVendorSide: true,
			Code:         r.Rc,
			Err:          fmt.Errorf("eastmoney returned error! Code: %v, Message: %v", r.Rc, r.Msg),
		}
	}
	if len(r.Data.Klines) == 0 {
		return nil, common.VendorReqError{IsVendorSide: true, Err: common.ErrVendorEmptyResult}
	}

	candles := make([]common.Candle, len(r.Data.Klines))
	for i, raw := range r.Data.Klines {
		candles[i], err = parseKline(symbol, resolution, raw)
		if err != nil {
			return nil, common.VendorReqError{IsVendorSide: true, Err: err}
		}
	}

	if e.debug {
		log.Info().Str("vendor", "eastmoney").Str("symbol", symbol).Str("resolution", string(resolution)).Int("candle_count", len(candles)).Msg("Kline request successful!")
	}

	return candles, nil
}
