// Package kistest provides an in-process KIS open API server for tests.
// It implements the token, hashkey, quotation, balance and order endpoints the client uses.
package kistest

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// ServerConfig seeds a MockKISServer.
type ServerConfig struct {
	AppKey       string
	AppSecret    string
	CashKRW      float64
	ExchangeRate float64
	Prices       map[string]float64
	// Daily rows per code, most recent first, in the API's output2 shape.
	Daily map[string][]map[string]string
}

// Order is an order the server accepted.
type Order struct {
	OrderNo  string
	TrID     string
	Exchange string
	Code     string
	Quantity int
	Price    float64
	HashKey  string
}

// Holding is a simulated balance line.
type Holding struct {
	Code     string
	Name     string
	Quantity int
}

type failure struct {
	status int
	times  int
}

// MockKISServer simulates the brokerage.
type MockKISServer struct {
	mu sync.RWMutex

	httpServer *http.Server
	listener   net.Listener

	config       ServerConfig
	token        string
	tokenCount   int
	prices       map[string]float64
	daily        map[string][]map[string]string
	holdings     map[string]*Holding
	orders       []Order
	rejectReason string
	failures     map[string]*failure
	requests     map[string]int
}

func NewMockKISServer(config ServerConfig) *MockKISServer {
	s := &MockKISServer{
		mu:           sync.RWMutex{},
		httpServer:   nil,
		listener:     nil,
		config:       config,
		token:        "",
		tokenCount:   0,
		prices:       make(map[string]float64),
		daily:        make(map[string][]map[string]string),
		holdings:     make(map[string]*Holding),
		orders:       nil,
		rejectReason: "",
		failures:     make(map[string]*failure),
		requests:     make(map[string]int),
	}

	for code, p := range config.Prices {
		s.prices[code] = p
	}

	for code, rows := range config.Daily {
		s.daily[code] = rows
	}

	if s.config.ExchangeRate == 0 {
		s.config.ExchangeRate = 1350
	}

	return s
}

// Start listens on address (":0" when empty) and serves in the background.
func (s *MockKISServer) Start(address string) error {
	if address == "" {
		address = "127.0.0.1:0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.listener = listener

	router := mux.NewRouter()
	router.Use(s.failureMiddleware)
	router.HandleFunc("/oauth2/tokenP", s.handleToken).Methods(http.MethodPost)
	router.HandleFunc("/uapi/hashkey", s.handleHashKey).Methods(http.MethodPost)
	router.HandleFunc("/uapi/overseas-price/v1/quotations/price", s.authorized(s.handlePrice)).Methods(http.MethodGet)
	router.HandleFunc("/uapi/overseas-price/v1/quotations/dailyprice", s.authorized(s.handleDaily)).Methods(http.MethodGet)
	router.HandleFunc("/uapi/overseas-stock/v1/trading/inquire-balance", s.authorized(s.handleBalance)).Methods(http.MethodGet)
	router.HandleFunc("/uapi/domestic-stock/v1/trading/inquire-psbl-order", s.authorized(s.handleOrderableCash)).Methods(http.MethodGet)
	router.HandleFunc("/uapi/overseas-stock/v1/trading/inquire-present-balance", s.authorized(s.handlePresentBalance)).Methods(http.MethodGet)
	router.HandleFunc("/uapi/overseas-stock/v1/trading/order", s.authorized(s.handleOrder)).Methods(http.MethodPost)

	s.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != http.ErrServerClosed {
			fmt.Printf("HTTP server error: %v\n", err)
		}
	}()

	return nil
}

func (s *MockKISServer) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// BaseURL returns the server's base URL.
func (s *MockKISServer) BaseURL() string {
	return "http://" + s.listener.Addr().String()
}

func (s *MockKISServer) SetPrice(code string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prices[code] = price
}

func (s *MockKISServer) SetDaily(code string, rows []map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.daily[code] = rows
}

func (s *MockKISServer) SetHolding(code, name string, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.holdings[code] = &Holding{Code: code, Name: name, Quantity: quantity}
}

// RejectOrders makes every following order fail with rt_cd "1" and reason as msg1.
// An empty reason accepts orders again.
func (s *MockKISServer) RejectOrders(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rejectReason = reason
}

// FailNext answers the next times requests to path with status.
func (s *MockKISServer) FailNext(path string, status, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[path] = &failure{status: status, times: times}
}

func (s *MockKISServer) Orders() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]Order(nil), s.orders...)
}

func (s *MockKISServer) Holdings() []Holding {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Holding, 0, len(s.holdings))
	for _, h := range s.holdings {
		out = append(out, *h)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })

	return out
}

// TokenCount is the number of tokens issued.
func (s *MockKISServer) TokenCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tokenCount
}

// Requests is the number of requests received for path, including failed ones.
func (s *MockKISServer) Requests(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.requests[path]
}

func (s *MockKISServer) failureMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[r.URL.Path]++

		f, ok := s.failures[r.URL.Path]
		if ok && f.times > 0 {
			f.times--
			status := f.status
			s.mu.Unlock()

			w.WriteHeader(status)

			return
		}
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *MockKISServer) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		token := s.token
		s.mu.RUnlock()

		if token == "" || r.Header.Get("authorization") != "Bearer "+token || r.Header.Get("tr_id") == "" {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}

		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *MockKISServer) handleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GrantType string `json:"grant_type"`
		AppKey    string `json:"appkey"`
		AppSecret string `json:"appsecret"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)

		return
	}

	if req.AppKey != s.config.AppKey || req.AppSecret != s.config.AppSecret {
		w.WriteHeader(http.StatusForbidden)
		writeJSON(w, map[string]string{"error_description": "invalid appkey"})

		return
	}

	s.mu.Lock()
	s.token = uuid.NewString()
	s.tokenCount++
	token := s.token
	s.mu.Unlock()

	writeJSON(w, map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   86400,
	})
}

func (s *MockKISServer) handleHashKey(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)

		return
	}

	writeJSON(w, map[string]string{"HASH": fmt.Sprintf("hash-%s-%v", body["PDNO"], body["ORD_QTY"])})
}

func (s *MockKISServer) handlePrice(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("SYMB")

	s.mu.RLock()
	price, ok := s.prices[code]
	s.mu.RUnlock()

	if !ok {
		writeJSON(w, map[string]any{"rt_cd": "1", "msg1": "unknown symbol", "output": map[string]string{"last": ""}})

		return
	}

	writeJSON(w, map[string]any{
		"rt_cd":  "0",
		"msg1":   "OK",
		"output": map[string]string{"last": strconv.FormatFloat(price, 'f', 4, 64)},
	})
}

func (s *MockKISServer) handleDaily(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("SYMB")

	s.mu.RLock()
	rows := s.daily[code]
	s.mu.RUnlock()

	writeJSON(w, map[string]any{"rt_cd": "0", "msg1": "OK", "output2": rows})
}

func (s *MockKISServer) handleBalance(w http.ResponseWriter, _ *http.Request) {
	lines := make([]map[string]string, 0)
	for _, h := range s.Holdings() {
		lines = append(lines, map[string]string{
			"ovrs_pdno":      h.Code,
			"ovrs_item_name": h.Name,
			"ovrs_cblc_qty":  strconv.Itoa(h.Quantity),
		})
	}

	writeJSON(w, map[string]any{
		"rt_cd":   "0",
		"msg1":    "OK",
		"output1": lines,
		"output2": map[string]string{"tot_evlu_pfls_amt": "12.50", "ovrs_tot_pfls": "30.00"},
	})
}

func (s *MockKISServer) handleOrderableCash(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	cash := s.config.CashKRW
	s.mu.RUnlock()

	writeJSON(w, map[string]any{
		"rt_cd":  "0",
		"msg1":   "OK",
		"output": map[string]string{"ord_psbl_cash": strconv.FormatFloat(cash, 'f', 0, 64)},
	})
}

func (s *MockKISServer) handlePresentBalance(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	rate := s.config.ExchangeRate
	s.mu.RUnlock()

	writeJSON(w, map[string]any{
		"rt_cd":   "0",
		"msg1":    "OK",
		"output2": []map[string]string{{"frst_bltn_exrt": strconv.FormatFloat(rate, 'f', 2, 64)}},
	})
}

func (s *MockKISServer) handleOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Exchange string `json:"OVRS_EXCG_CD"`
		Code     string `json:"PDNO"`
		Quantity string `json:"ORD_QTY"`
		Price    string `json:"OVRS_ORD_UNPR"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)

		return
	}

	hash := r.Header.Get("hashkey")
	if hash == "" {
		writeJSON(w, map[string]any{"rt_cd": "1", "msg1": "missing hashkey"})

		return
	}

	qty, _ := strconv.Atoi(body.Quantity)
	price, _ := strconv.ParseFloat(body.Price, 64)
	trID := r.Header.Get("tr_id")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rejectReason != "" {
		writeJSON(w, map[string]any{"rt_cd": "1", "msg_cd": "APBK0919", "msg1": s.rejectReason})

		return
	}

	order := Order{
		OrderNo:  uuid.NewString()[:10],
		TrID:     trID,
		Exchange: body.Exchange,
		Code:     body.Code,
		Quantity: qty,
		Price:    price,
		HashKey:  hash,
	}
	s.orders = append(s.orders, order)

	switch trID {
	case "TTTT1002U", "VTTT1002U":
		h, ok := s.holdings[body.Code]
		if !ok {
			h = &Holding{Code: body.Code, Name: body.Code, Quantity: 0}
			s.holdings[body.Code] = h
		}

		h.Quantity += qty
	default:
		if h, ok := s.holdings[body.Code]; ok {
			h.Quantity -= qty
			if h.Quantity <= 0 {
				delete(s.holdings, body.Code)
			}
		}
	}

	writeJSON(w, map[string]any{
		"rt_cd":  "0",
		"msg_cd": "APBK0013",
		"msg1":   "order accepted",
		"output": map[string]string{"KRX_FWDG_ORD_ORGNO": "01790", "ODNO": order.OrderNo, "ORD_TMD": "093500"},
	})
}

// Row builds a daily output2 row with the close under "clos".
func Row(date string, open, high, low, clos float64) map[string]string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }

	return map[string]string{
		"xymd": date,
		"open": f(open),
		"high": f(high),
		"low":  f(low),
		"clos": f(clos),
	}
}
