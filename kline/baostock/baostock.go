// Package baostock implements the bulk history vendor adapter.
//
// The vendor is session-authenticated: Login acquires a session id that every
// query carries, and the server may silently expire it. The adapter is NOT
// safe for concurrent use beyond its own mutex; a process holds one session
// and callers serialise Fetch/Login/Logout through it.
package baostock

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ashare-data/kline/kline/common"
)

// Baostock requests sealed candles from the bulk history vendor.
type Baostock struct {
	apiURL    string
	debug     bool
	lock      sync.Mutex
	client    *http.Client
	sessionID string
}

// New is the constructor for Baostock.
func New() *Baostock {
	return &Baostock{
		apiURL: "http://www.baostock.com/api/v1/",
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Login opens a vendor session. Idempotent on a live session.
func (e *Baostock) Login(ctx context.Context) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.sessionID != "" {
		return nil
	}
	sessionID, err := e.requestLogin(ctx)
	if err != nil {
		return err
	}
	e.sessionID = sessionID
	if e.debug {
		log.Info().Str("vendor", "baostock").Msg("Vendor login successful!")
	}
	return nil
}

// Logout closes the vendor session, if any. The local session id is dropped
// even when the server-side call fails.
func (e *Baostock) Logout(ctx context.Context) error {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.sessionID == "" {
		return nil
	}
	err := e.requestLogout(ctx, e.sessionID)
	e.sessionID = ""
	return err
}

// LoggedIn reports whether a session is currently held.
func (e *Baostock) LoggedIn() bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.sessionID != ""
}

// Fetch requests sealed candles for [begin, end] in trading-day space.
//
// Minute timestamps from the vendor are already end-of-interval, and
// day/week/month rows are keyed by session date, so no timestamp translation
// happens here beyond parsing. A server-side session expiry surfaces as a
// VendorReqError with IsSessionExpired set; the local session id is dropped so
// that the caller's re-login starts clean.
func (e *Baostock) Fetch(ctx context.Context, symbol string, resolution common.Resolution, begin, end time.Time, adjustment common.Adjustment) ([]common.Candle, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.sessionID == "" {
		return nil, common.VendorReqError{IsNotRetryable: true, Err: common.ErrNotLoggedIn}
	}
	candles, err := e.requestKlines(ctx, symbol, resolution, begin, end, adjustment)
	if err != nil {
		if vErr, ok := err.(common.VendorReqError); ok && vErr.IsSessionExpired {
			e.sessionID = ""
		}
		return nil, err
	}
	return candles, nil
}

// SetDebug sets vendor-wide debug logging. It's useful to know how many times requests are being sent to vendors.
func (e *Baostock) SetDebug(debug bool) {
	e.debug = debug
}

// SetAPIURL points the adapter at a non-default gateway, e.g. a mirror.
func (e *Baostock) SetAPIURL(apiURL string) {
	e.apiURL = apiURL
}
