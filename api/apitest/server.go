// Package apitest provides an in-memory Delta platform for tests.
//
// The server implements the REST contract consumed by the client with a
// minimal in-memory state. It is not a simulation of the platform: prices do
// not move unless a test sets them, orders are recorded but never matched.
package apitest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/etnz/delta"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Secret signs the tokens issued by the server.
const Secret = "apitest-secret"

type user struct {
	password      []byte // bcrypt
	pin           []byte // bcrypt, nil until set
	profile       delta.Profile
	positions     []delta.Position
	orders        []delta.Order
	transactions  []delta.WalletTransaction
	notifications []delta.Notification
}

// Hook alters the handling of one endpoint.
type Hook struct {
	Status  int           // if not 0, respond with this status and Message instead.
	Message string        // plain text body sent with Status.
	Block   chan struct{} // if not nil, wait for it to be closed before handling.
}

// Server is an in-memory platform listening on a local port.
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	users   map[string]*user
	prices  delta.Prices
	stats   []delta.MarketStat
	history map[string][]delta.PricePoint
	hooks   map[string]Hook
	calls   map[string]int
	keys    map[string]string // idempotency key -> response
	nextID  int64
}

// NewServer starts a server, it is closed at the end of the test.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		users:   make(map[string]*user),
		prices:  make(delta.Prices),
		history: make(map[string][]delta.PricePoint),
		hooks:   make(map[string]Hook),
		calls:   make(map[string]int),
		keys:    make(map[string]string),
	}
	s.Server = httptest.NewServer(s.router())
	t.Cleanup(s.Close)
	return s
}

// BaseURL returns the api base url to give to api.New.
func (s *Server) BaseURL() string { return s.URL + "/api" }

func (s *Server) router() http.Handler {
	r := mux.NewRouter()
	a := r.PathPrefix("/api").Subrouter()
	a.Use(s.intercept)

	a.HandleFunc("/auth/login", s.login).Methods(http.MethodPost)
	a.HandleFunc("/auth/register", s.register).Methods(http.MethodPost)

	a.HandleFunc("/pin/status/{username}", s.pinStatus).Methods(http.MethodGet)
	a.HandleFunc("/pin/set", s.pinSet).Methods(http.MethodPost)
	a.HandleFunc("/pin/verify", s.pinVerify).Methods(http.MethodPost)

	a.HandleFunc("/users/{username}", s.authed(s.getProfile)).Methods(http.MethodGet)
	a.HandleFunc("/users/{username}", s.authed(s.putProfile)).Methods(http.MethodPut)

	a.HandleFunc("/trade/prices", s.getPrices).Methods(http.MethodGet)
	a.HandleFunc("/trade/stats", s.getStats).Methods(http.MethodGet)
	a.HandleFunc("/trade/history/{symbol}", s.getHistory).Methods(http.MethodGet)
	a.HandleFunc("/trade/portfolio", s.authed(s.getPortfolio)).Methods(http.MethodGet)
	a.HandleFunc("/trade/orders", s.authed(s.getOrders)).Methods(http.MethodGet)
	a.HandleFunc("/trade/{side:buy|sell}", s.authed(s.trade)).Methods(http.MethodPost)

	a.HandleFunc("/wallet/{kind:deposit|withdraw}", s.authed(s.transact)).Methods(http.MethodPost)
	a.HandleFunc("/wallet/{username}/transactions", s.authed(s.getTransactions)).Methods(http.MethodGet)

	a.HandleFunc("/notifications", s.authed(s.getNotifications)).Methods(http.MethodGet)
	a.HandleFunc("/notifications/{id:[0-9]+}/read", s.authed(s.markRead)).Methods(http.MethodPut)

	a.HandleFunc("/leaderboard", s.getLeaderboard).Methods(http.MethodGet)
	a.HandleFunc("/leaderboard/weekly", s.getLeaderboard).Methods(http.MethodGet)
	a.HandleFunc("/achievements", s.authed(s.getAchievements)).Methods(http.MethodGet)
	return r
}

// --- test controls ---

// endpoint returns the key of an endpoint, e.g. "GET /trade/prices".
func endpoint(method, path string) string { return method + " " + path }

// SetHook installs a hook on the endpoint "METHOD /path" (path without /api).
func (s *Server) SetHook(method, path string, h Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[endpoint(method, path)] = h
}

// ClearHook removes the hook on an endpoint.
func (s *Server) ClearHook(method, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hooks, endpoint(method, path))
}

// Calls returns how many requests reached the endpoint "METHOD /path".
func (s *Server) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[endpoint(method, path)]
}

// AddUser creates an account, pin can be empty.
func (s *Server) AddUser(username, password, pin string, balance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addUser(username, password, pin, balance)
}

func (s *Server) addUser(username, password, pin string, balance decimal.Decimal) *user {
	s.nextID++
	u := &user{
		password: hash(password),
		profile:  delta.Profile{ID: s.nextID, Username: username, Balance: balance, Level: 1},
	}
	if pin != "" {
		u.pin = hash(pin)
	}
	s.users[username] = u
	return u
}

// Token returns a valid token for username.
func (s *Server) Token(username string) string {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Subject:   username,
		IssuedAt:  time.Now().Unix(),
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(Secret))
	if err != nil {
		panic(err)
	}
	return tok
}

// SetPrices replaces the price snapshot.
func (s *Server) SetPrices(p delta.Prices) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices = p.Clone()
}

// SetStats replaces the market overview.
func (s *Server) SetStats(stats []delta.MarketStat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = append([]delta.MarketStat(nil), stats...)
}

// SetHistory replaces the price history of symbol, for every timeframe.
func (s *Server) SetHistory(symbol string, points []delta.PricePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[symbol] = append([]delta.PricePoint(nil), points...)
}

// SetPositions replaces the positions of username.
func (s *Server) SetPositions(username string, positions []delta.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username].positions = append([]delta.Position(nil), positions...)
}

// Notify adds an unread notification for username and returns its id.
func (s *Server) Notify(username, message string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	u := s.users[username]
	u.notifications = append(u.notifications, delta.Notification{
		ID:        s.nextID,
		Message:   message,
		CreatedAt: delta.NewTimestamp(time.Now().UTC()),
	})
	return s.nextID
}

// Balance returns the balance of username.
func (s *Server) Balance(username string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[username].profile.Balance
}

// Read returns the read flag of notification id of username.
func (s *Server) Read(username string, id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.users[username].notifications {
		if n.ID == id {
			return n.Read
		}
	}
	return false
}

// --- middlewares ---

// intercept counts calls and applies hooks.
func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := endpoint(r.Method, strings.TrimPrefix(r.URL.Path, "/api"))
		s.mu.Lock()
		s.calls[key]++
		h, ok := s.hooks[key]
		s.mu.Unlock()
		if ok && h.Block != nil {
			select {
			case <-h.Block:
			case <-r.Context().Done():
				return
			}
		}
		if ok && h.Status != 0 {
			http.Error(w, h.Message, h.Status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ctxKey struct{}

// authed requires a valid bearer token.
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		var claims jwt.StandardClaims
		_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
			return []byte(Secret), nil
		})
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		s.mu.Lock()
		_, exists := s.users[claims.Subject]
		s.mu.Unlock()
		if !exists {
			http.Error(w, "User not found", http.StatusUnauthorized)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims.Subject)))
	}
}

// principal returns the authenticated user. Caller holds s.mu.
func (s *Server) principal(r *http.Request) *user {
	name, _ := r.Context().Value(ctxKey{}).(string)
	return s.users[name]
}

// --- handlers ---

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct{ Username, Password string }
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	u, ok := s.users[req.Username]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "User not found", http.StatusUnauthorized)
		return
	}
	if bcrypt.CompareHashAndPassword(u.password, []byte(req.Password)) != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	reply(w, map[string]string{"token": s.Token(req.Username), "username": req.Username})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username, Password, Pin string
		Balance                 decimal.Decimal
	}
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[req.Username]; exists {
		http.Error(w, "User already exists", http.StatusBadRequest)
		return
	}
	u := s.addUser(req.Username, req.Password, req.Pin, req.Balance)
	reply(w, u.profile)
}

func (s *Server) pinStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[mux.Vars(r)["username"]]
	if !ok {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	reply(w, map[string]bool{"hasPin": u.pin != nil})
}

func (s *Server) pinSet(w http.ResponseWriter, r *http.Request) {
	var req struct{ Username, Pin string }
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[req.Username]
	if !ok {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	u.pin = hash(req.Pin)
	fmt.Fprint(w, "PIN set successfully")
}

func (s *Server) pinVerify(w http.ResponseWriter, r *http.Request) {
	var req struct{ Username, Pin string }
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	u, ok := s.users[req.Username]
	s.mu.Unlock()
	if !ok || u.pin == nil || bcrypt.CompareHashAndPassword(u.pin, []byte(req.Pin)) != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "Invalid PIN"})
		return
	}
	reply(w, map[string]bool{"success": true})
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[mux.Vars(r)["username"]]
	if !ok {
		http.NotFound(w, r)
		return
	}
	reply(w, u.profile)
}

func (s *Server) putProfile(w http.ResponseWriter, r *http.Request) {
	var req delta.ProfileUpdate
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[mux.Vars(r)["username"]]
	if !ok {
		http.NotFound(w, r)
		return
	}
	u.profile.FullName, u.profile.Email, u.profile.Phone, u.profile.Bio = req.FullName, req.Email, req.Phone, req.Bio
	reply(w, u.profile)
}

func (s *Server) getPrices(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reply(w, s.prices)
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reply(w, nonNil(s.stats))
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reply(w, nonNil(s.history[mux.Vars(r)["symbol"]]))
}

func (s *Server) getPortfolio(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reply(w, nonNil(s.principal(r).positions))
}

func (s *Server) getOrders(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reply(w, nonNil(s.principal(r).orders))
}

func (s *Server) trade(w http.ResponseWriter, r *http.Request) {
	var req delta.TradeRequest
	if !decode(w, r, &req) {
		return
	}
	side, _ := delta.ParseSide(mux.Vars(r)["side"])
	s.mu.Lock()
	defer s.mu.Unlock()
	price, ok := s.prices[req.Symbol]
	if !ok {
		http.Error(w, "Unknown symbol: "+req.Symbol, http.StatusBadRequest)
		return
	}
	u := s.principal(r)
	s.nextID++
	u.orders = append(u.orders, delta.Order{
		ID:          s.nextID,
		Symbol:      req.Symbol,
		Side:        side,
		Price:       price,
		Quantity:    req.Quantity,
		TargetPrice: req.TargetPrice,
		StopLoss:    req.StopLoss,
		Status:      "OPEN",
		CreatedAt:   delta.NewTimestamp(time.Now().UTC()),
	})
	fmt.Fprintf(w, "%s order placed successfully", side)
}

// transact follows the platform wallet rules.
func (s *Server) transact(w http.ResponseWriter, r *http.Request) {
	var req struct{ Amount decimal.Decimal }
	if !decode(w, r, &req) {
		return
	}
	kind, _ := delta.ParseKind(mux.Vars(r)["kind"])
	key := r.Header.Get("Idempotency-Key")
	if key != "" {
		if _, err := uuid.Parse(key); err != nil {
			http.Error(w, "Invalid Idempotency-Key", http.StatusBadRequest)
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if resp, replayed := s.keys[key]; key != "" && replayed {
		fmt.Fprint(w, resp)
		return
	}
	u := s.principal(r)
	switch {
	case !req.Amount.IsPositive():
		http.Error(w, "Amount must be positive", http.StatusBadRequest)
		return
	case kind == delta.Deposit && req.Amount.GreaterThan(delta.DepositLimit):
		http.Error(w, "Deposit limit exceeded. Max: 1,000,000", http.StatusBadRequest)
		return
	case kind == delta.Withdraw && u.profile.Balance.LessThan(req.Amount):
		http.Error(w, "Insufficient funds", http.StatusBadRequest)
		return
	}
	u.profile.Balance = delta.TransactionRequest{Kind: kind, Amount: req.Amount}.Apply(u.profile.Balance)
	s.nextID++
	u.transactions = append([]delta.WalletTransaction{{
		ID:        s.nextID,
		Kind:      kind,
		Amount:    req.Amount,
		CreatedAt: delta.NewTimestamp(time.Now().UTC()),
	}}, u.transactions...)

	resp := "Deposit successful"
	if kind == delta.Withdraw {
		resp = "Withdrawal successful"
	}
	if key != "" {
		s.keys[key] = resp
	}
	fmt.Fprint(w, resp)
}

func (s *Server) getTransactions(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[mux.Vars(r)["username"]]
	if !ok {
		reply(w, []delta.WalletTransaction{})
		return
	}
	reply(w, nonNil(u.transactions))
}

func (s *Server) getNotifications(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reply(w, nonNil(s.principal(r).notifications))
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.principal(r)
	for i := range u.notifications {
		if u.notifications[i].ID == id {
			u.notifications[i].Read = true
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := decimal.NewFromInt(10_000)
	entries := []delta.LeaderboardEntry{}
	for name, u := range s.users {
		entries = append(entries, delta.LeaderboardEntry{
			Username:        name,
			NetWorth:        u.profile.Balance,
			GainLossPercent: u.profile.Balance.Sub(start).Div(start).Mul(decimal.NewFromInt(100)),
		})
	}
	reply(w, entries)
}

func (s *Server) getAchievements(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.principal(r)
	reply(w, []delta.Achievement{
		{Name: "First Trade", Description: "Place your first order", BadgeURL: "rocket", Unlocked: len(u.orders) > 0},
	})
}

// --- helpers ---

func hash(secret string) []byte {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return h
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Malformed request: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func reply(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// nonNil makes sure empty lists are encoded as [] and not null.
func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
