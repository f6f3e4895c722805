package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/etnz/delta"
	"github.com/shopspring/decimal"
)

// --- Authentication ---

// LoginResponse is the credential returned by a successful login.
type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Login exchanges a username and password for a session token.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResponse, error) {
	var resp LoginResponse
	err := c.getJSON(ctx, call{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   map[string]string{"username": username, "password": password},
	}, &resp)
	if err != nil {
		return LoginResponse{}, err
	}
	if resp.Token == "" {
		return LoginResponse{}, fmt.Errorf("login response has no token")
	}
	return resp, nil
}

// RegisterRequest is the payload to create an account.
type RegisterRequest struct {
	Username string          `json:"username"`
	Password string          `json:"password"`
	Pin      string          `json:"pin,omitempty"`
	Balance  decimal.Decimal `json:"balance"`
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, r RegisterRequest) error {
	_, err := c.do(ctx, call{method: http.MethodPost, path: "/auth/register", body: r})
	return err
}

// --- PIN ---

// PinStatus returns true if username has a PIN registered.
func (c *Client) PinStatus(ctx context.Context, username string) (bool, error) {
	var resp struct {
		HasPin bool `json:"hasPin"`
	}
	err := c.getJSON(ctx, call{method: http.MethodGet, path: "/pin/status/" + username}, &resp)
	return resp.HasPin, err
}

// SetPin registers the PIN of username.
func (c *Client) SetPin(ctx context.Context, username, pin string) error {
	_, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/pin/set",
		body:   map[string]string{"username": username, "pin": pin},
	})
	return err
}

// VerifyPin checks the PIN of username. A wrong PIN is an *Error with status 401.
func (c *Client) VerifyPin(ctx context.Context, username, pin string) error {
	_, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/pin/verify",
		body:   map[string]string{"username": username, "pin": pin},
	})
	return err
}

// --- Users ---

// Profile returns the profile, and balance, of username.
func (c *Client) Profile(ctx context.Context, username string) (delta.Profile, error) {
	var p delta.Profile
	err := c.getJSON(ctx, call{method: http.MethodGet, path: "/users/" + username, auth: true}, &p)
	return p, err
}

// UpdateProfile updates the editable fields of username's profile.
func (c *Client) UpdateProfile(ctx context.Context, username string, u delta.ProfileUpdate) (delta.Profile, error) {
	var p delta.Profile
	err := c.getJSON(ctx, call{method: http.MethodPut, path: "/users/" + username, auth: true, body: u}, &p)
	return p, err
}

// --- Market ---

// Prices returns the latest price of every symbol.
func (c *Client) Prices(ctx context.Context) (delta.Prices, error) {
	var p delta.Prices
	err := c.getJSON(ctx, call{method: http.MethodGet, path: "/trade/prices"}, &p)
	return p, err
}

// Stats returns the market overview of every tradable asset.
func (c *Client) Stats(ctx context.Context) ([]delta.MarketStat, error) {
	var s []delta.MarketStat
	err := c.getJSON(ctx, call{method: http.MethodGet, path: "/trade/stats"}, &s)
	return s, err
}

// History returns the price history of symbol over the timeframe.
func (c *Client) History(ctx context.Context, symbol string, tf delta.Timeframe) ([]delta.PricePoint, error) {
	var points []delta.PricePoint
	err := c.getJSON(ctx, call{
		method: http.MethodGet,
		path:   "/trade/history/" + symbol,
		query:  url.Values{"timeframe": {string(tf)}},
	}, &points)
	return points, err
}

// --- Trading ---

// Portfolio returns the positions of the logged in user.
func (c *Client) Portfolio(ctx context.Context) ([]delta.Position, error) {
	var p []delta.Position
	err := c.getJSON(ctx, call{method: http.MethodGet, path: "/trade/portfolio", auth: true}, &p)
	return p, err
}

// Trade places a buy or sell order, and returns the platform acknowledgement.
func (c *Client) Trade(ctx context.Context, side delta.Side, r delta.TradeRequest) (string, error) {
	return c.text(ctx, call{method: http.MethodPost, path: "/trade/" + side.Path(), auth: true, body: r})
}

// Orders returns the trade history of the logged in user.
func (c *Client) Orders(ctx context.Context) ([]delta.Order, error) {
	var o []delta.Order
	err := c.getJSON(ctx, call{method: http.MethodGet, path: "/trade/orders", auth: true}, &o)
	return o, err
}

// --- Wallet ---

// Transact moves amount in or out of the wallet, and returns the platform
// acknowledgement. A non empty key is sent as Idempotency-Key.
func (c *Client) Transact(ctx context.Context, kind delta.Kind, amount decimal.Decimal, key string) (string, error) {
	cl := call{
		method: http.MethodPost,
		path:   "/wallet/" + kind.Path(),
		auth:   true,
		body:   map[string]decimal.Decimal{"amount": amount},
	}
	if key != "" {
		cl.header = http.Header{"Idempotency-Key": {key}}
	}
	return c.text(ctx, cl)
}

// Transactions returns the wallet history of username, most recent first.
func (c *Client) Transactions(ctx context.Context, username string) ([]delta.WalletTransaction, error) {
	var t []delta.WalletTransaction
	err := c.getJSON(ctx, call{method: http.MethodGet, path: "/wallet/" + username + "/transactions", auth: true}, &t)
	return t, err
}

// --- Notifications ---

// Notifications returns the notifications of the logged in user.
func (c *Client) Notifications(ctx context.Context) ([]delta.Notification, error) {
	var n []delta.Notification
	err := c.getJSON(ctx, call{method: http.MethodGet, path: "/notifications", auth: true}, &n)
	return n, err
}

// MarkRead marks the notification id as read.
func (c *Client) MarkRead(ctx context.Context, id int64) error {
	_, err := c.do(ctx, call{method: http.MethodPut, path: "/notifications/" + strconv.FormatInt(id, 10) + "/read", auth: true})
	return err
}

// --- Community ---

// Leaderboard returns the global ranking, or the weekly one.
func (c *Client) Leaderboard(ctx context.Context, weekly bool) ([]delta.LeaderboardEntry, error) {
	path := "/leaderboard"
	if weekly {
		path += "/weekly"
	}
	var l []delta.LeaderboardEntry
	err := c.getJSON(ctx, call{method: http.MethodGet, path: path}, &l)
	return l, err
}

// Achievements returns the badges of the logged in user.
func (c *Client) Achievements(ctx context.Context) ([]delta.Achievement, error) {
	var a []delta.Achievement
	err := c.getJSON(ctx, call{method: http.MethodGet, path: "/achievements", auth: true}, &a)
	return a, err
}
