package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"restaurant-insights/internal/assistant"
	"restaurant-insights/internal/services"
	"restaurant-insights/internal/session"
	"restaurant-insights/internal/store"
)

type stubAnswerer struct {
	mu     sync.Mutex
	reply  string
	err    error
	system string
}

func (s *stubAnswerer) Answer(ctx context.Context, history []assistant.Message, systemPrompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.system = systemPrompt
	return s.reply, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func createTestAnalytics(t testing.TB) *services.Analytics {
	t.Helper()
	s, err := store.Default()
	if err != nil {
		t.Fatalf("store.Default() error = %v", err)
	}
	clock := services.FixedClock(time.Date(2024, 11, 20, 12, 0, 0, 0, time.UTC))
	return services.NewAnalytics(s, clock, testLogger())
}

func createTestState(answerer assistant.Answerer) *session.State {
	return session.New(store.AllLocations, assistant.NewConversation(answerer, testLogger()))
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected content-type 'application/json', got %q", ct)
	}
	var env envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	return env
}

func TestNewAPIHandlers(t *testing.T) {
	analytics := createTestAnalytics(t)
	state := createTestState(nil)
	handlers := NewAPIHandlers(analytics, state, testLogger())

	if handlers == nil {
		t.Fatal("NewAPIHandlers() returned nil")
	}
	if handlers.analytics != analytics || handlers.state != state {
		t.Error("NewAPIHandlers() should set fields")
	}
}

func TestAPIHandlers_HandleLocations(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(t), createTestState(nil), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleLocations(w, httptest.NewRequest(http.MethodGet, "/api/locations", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
	if cc := w.Header().Get("Cache-Control"); cc != cacheMaxAge {
		t.Errorf("Cache-Control = %q", cc)
	}

	env := decodeEnvelope(t, w)
	var locs []struct{ ID, Name string }
	if err := json.Unmarshal(env.Data, &locs); err != nil {
		t.Fatal(err)
	}
	if len(locs) != 3 || locs[0].ID != "loc_001" {
		t.Errorf("locations = %+v", locs)
	}
}

func TestAPIHandlers_HandlePerformance(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(t), createTestState(nil), testLogger())

	tests := []struct {
		url     string
		orders  int
		revenue float64
	}{
		{"/api/performance", 7, 427.50},
		{"/api/performance?location=all", 7, 427.50},
		{"/api/performance?location=loc_001", 6, 372.40},
		{"/api/performance?location=loc_999", 0, 0},
		{"/api/performance?location=loc_001&range=week", 4, 254.83},
		{"/api/performance?range=recent", 1, 48.87},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			w := httptest.NewRecorder()
			handlers.HandlePerformance(w, httptest.NewRequest(http.MethodGet, tt.url, nil))

			env := decodeEnvelope(t, w)
			var perf struct {
				TotalOrders  int     `json:"total_orders"`
				TotalRevenue float64 `json:"total_revenue"`
			}
			if err := json.Unmarshal(env.Data, &perf); err != nil {
				t.Fatal(err)
			}
			if perf.TotalOrders != tt.orders || diff(perf.TotalRevenue, tt.revenue) > 0.005 {
				t.Errorf("got %d / %.2f, want %d / %.2f", perf.TotalOrders, perf.TotalRevenue, tt.orders, tt.revenue)
			}
		})
	}
}

func TestAPIHandlers_HandlePerformance_UnknownRange(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(t), createTestState(nil), testLogger())

	w := httptest.NewRecorder()
	handlers.HandlePerformance(w, httptest.NewRequest(http.MethodGet, "/api/performance?range=fortnight", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if env := decodeEnvelope(t, w); env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("envelope = %+v", env)
	}
}

func TestAPIHandlers_HandlePerformance_ServersAndMonths(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(t), createTestState(nil), testLogger())

	w := httptest.NewRecorder()
	handlers.HandlePerformance(w, httptest.NewRequest(http.MethodGet, "/api/performance?location=loc_001", nil))

	env := decodeEnvelope(t, w)
	var perf struct {
		ServerPerformance []struct {
			Server string `json:"server"`
			Orders int    `json:"orders"`
		} `json:"server_performance"`
		MonthlyRevenue []struct {
			Label string `json:"label"`
		} `json:"monthly_revenue"`
	}
	if err := json.Unmarshal(env.Data, &perf); err != nil {
		t.Fatal(err)
	}
	if len(perf.ServerPerformance) != 3 || perf.ServerPerformance[0].Server != "Daniel W." {
		t.Errorf("server_performance = %+v", perf.ServerPerformance)
	}
	if len(perf.MonthlyRevenue) != 2 || perf.MonthlyRevenue[0].Label != "Oct 2024" {
		t.Errorf("monthly_revenue = %+v", perf.MonthlyRevenue)
	}
}

func diff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

func TestAPIHandlers_HandleLocationSummaries(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(t), createTestState(nil), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleLocationSummaries(w, httptest.NewRequest(http.MethodGet, "/api/locations/summary", nil))

	env := decodeEnvelope(t, w)
	var summaries []json.RawMessage
	if err := json.Unmarshal(env.Data, &summaries); err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 3 {
		t.Errorf("summaries = %d, want 3", len(summaries))
	}
}

func TestAPIHandlers_HandleDrilldown(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(t), createTestState(nil), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/drilldown/items?location=all", nil)
	req.SetPathValue("metric", "items")
	w := httptest.NewRecorder()
	handlers.HandleDrilldown(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body := w.Body.String(); !strings.Contains(body, "Pork Xiao Long Bao") {
		t.Errorf("drilldown missing top item: %s", body)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/drilldown/tips", nil)
	req.SetPathValue("metric", "tips")
	w = httptest.NewRecorder()
	handlers.HandleDrilldown(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown metric status = %d, want 400", w.Code)
	}
	if env := decodeEnvelope(t, w); env.Success || env.Error == nil || env.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("unknown metric envelope = %+v", env)
	}
}

func TestAPIHandlers_HandleCustomers(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(t), createTestState(nil), testLogger())

	tests := []struct {
		url  string
		want int
	}{
		{"/api/customers", 5},
		{"/api/customers?location=loc_001", 2},
		{"/api/customers?q=chen", 1},
		{"/api/customers?q=206", 2},
		{"/api/customers?location=loc_003&q=chen", 0},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		handlers.HandleCustomers(w, httptest.NewRequest(http.MethodGet, tt.url, nil))

		env := decodeEnvelope(t, w)
		var customers []json.RawMessage
		if err := json.Unmarshal(env.Data, &customers); err != nil {
			t.Fatal(err)
		}
		if len(customers) != tt.want {
			t.Errorf("%s: %d customers, want %d", tt.url, len(customers), tt.want)
		}
	}
}

func TestAPIHandlers_RecordsUseSnakeCase(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(t), createTestState(nil), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleCustomers(w, httptest.NewRequest(http.MethodGet, "/api/customers?q=chen", nil))
	body := w.Body.String()
	for _, key := range []string{`"first_name"`, `"last_name"`, `"loyalty_status"`, `"loyalty_points"`, `"member_number"`} {
		if !strings.Contains(body, key) {
			t.Errorf("customer JSON missing %s: %s", key, body)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/drilldown/orders?location=loc_001", nil)
	req.SetPathValue("metric", "orders")
	w = httptest.NewRecorder()
	handlers.HandleDrilldown(w, req)
	body = w.Body.String()
	for _, key := range []string{`"customer_id"`, `"tip_percent"`} {
		if !strings.Contains(body, key) {
			t.Errorf("order JSON missing %s", key)
		}
	}
	if strings.Contains(body, "customerId") || strings.Contains(body, "tipPercent") {
		t.Error("order JSON should not use camelCase keys")
	}
}

func TestAPIHandlers_HandleCustomer(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(t), createTestState(nil), testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/customers/cust_001", nil)
	req.SetPathValue("id", "cust_001")
	w := httptest.NewRecorder()
	handlers.HandleCustomer(w, req)

	env := decodeEnvelope(t, w)
	var m struct {
		LifetimeSpend      float64 `json:"lifetime_spend"`
		DaysSinceLastOrder *int    `json:"days_since_last_order"`
	}
	if err := json.Unmarshal(env.Data, &m); err != nil {
		t.Fatal(err)
	}
	if diff(m.LifetimeSpend, 214.80) > 0.005 {
		t.Errorf("lifetime spend = %v, want 214.80", m.LifetimeSpend)
	}
	if m.DaysSinceLastOrder == nil || *m.DaysSinceLastOrder != 5 {
		t.Errorf("days since last order = %v, want 5", m.DaysSinceLastOrder)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/customers/cust_404", nil)
	req.SetPathValue("id", "cust_404")
	w = httptest.NewRecorder()
	handlers.HandleCustomer(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown customer status = %d, want 404", w.Code)
	}
}

func TestAPIHandlers_HandleQuery(t *testing.T) {
	stub := &stubAnswerer{reply: "Sarah Chen is your top customer."}
	state := createTestState(stub)
	state.SetScope("loc_002")
	handlers := NewAPIHandlers(createTestAnalytics(t), state, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"question":"Who is the top customer?"}`))
	w := httptest.NewRecorder()
	handlers.HandleQuery(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	env := decodeEnvelope(t, w)
	var reply assistant.Message
	if err := json.Unmarshal(env.Data, &reply); err != nil {
		t.Fatal(err)
	}
	if reply.Content != stub.reply || reply.Role != assistant.RoleAssistant {
		t.Errorf("reply = %+v", reply)
	}

	if !strings.Contains(stub.system, "DATA SNAPSHOT") || !strings.Contains(stub.system, "Total orders: 1") {
		t.Error("system prompt should carry the session scope's metrics")
	}
	if state.Conversation.Len() != 2 {
		t.Errorf("conversation length = %d, want 2", state.Conversation.Len())
	}
}

func TestAPIHandlers_HandleQuery_DateRange(t *testing.T) {
	stub := &stubAnswerer{reply: "ok"}
	state := createTestState(stub)
	state.SetScope("loc_001")
	state.SetDateRange(services.RangePastWeek)
	handlers := NewAPIHandlers(createTestAnalytics(t), state, testLogger())

	w := httptest.NewRecorder()
	handlers.HandleQuery(w, httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"question":"How was the week?"}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(stub.system, "Total orders: 4") {
		t.Error("system prompt should use the session's date range")
	}

	w = httptest.NewRecorder()
	handlers.HandleQuery(w, httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"question":"And overall?","range":"all"}`)))
	if !strings.Contains(stub.system, "Total orders: 6") {
		t.Error("request range should override the session's")
	}

	w = httptest.NewRecorder()
	handlers.HandleQuery(w, httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"question":"?","range":"decade"}`)))
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown range status = %d, want 400", w.Code)
	}
}

func TestAPIHandlers_HandleQuery_RemoteFailure(t *testing.T) {
	state := createTestState(&stubAnswerer{err: errors.New("connection refused")})
	handlers := NewAPIHandlers(createTestAnalytics(t), state, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"question":"Revenue?"}`))
	w := httptest.NewRecorder()
	handlers.HandleQuery(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	env := decodeEnvelope(t, w)
	var reply assistant.Message
	if err := json.Unmarshal(env.Data, &reply); err != nil {
		t.Fatal(err)
	}
	if reply.Content != assistant.FallbackMessage {
		t.Errorf("reply = %q, want fallback", reply.Content)
	}
	if state.Conversation.Pending() {
		t.Error("conversation should not be pending")
	}
}

func TestAPIHandlers_HandleQuery_BadInput(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(t), createTestState(&stubAnswerer{reply: "x"}), testLogger())

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"invalid json", `{"question":`, http.StatusBadRequest},
		{"empty question", `{"question":"   "}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handlers.HandleQuery(w, httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(tt.body)))
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

func TestAPIHandlers_HandleConversation(t *testing.T) {
	state := createTestState(&stubAnswerer{reply: "ok"})
	handlers := NewAPIHandlers(createTestAnalytics(t), state, testLogger())
	_, _ = state.Conversation.Ask(context.Background(), "hello", "")

	w := httptest.NewRecorder()
	handlers.HandleConversation(w, httptest.NewRequest(http.MethodGet, "/api/conversation", nil))

	env := decodeEnvelope(t, w)
	var conv conversationResponse
	if err := json.Unmarshal(env.Data, &conv); err != nil {
		t.Fatal(err)
	}
	if len(conv.Messages) != 2 || conv.Pending {
		t.Errorf("conversation = %+v", conv)
	}
}

func TestAPIHandlers_HandleHealth(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(t), createTestState(nil), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	env := decodeEnvelope(t, w)
	var data map[string]string
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data["status"] != "healthy" {
		t.Errorf("expected status 'healthy', got %q", data["status"])
	}
	if _, err := time.Parse(time.RFC3339, data["timestamp"]); err != nil {
		t.Errorf("invalid timestamp format: %v", err)
	}
	if w.Header().Get("Cache-Control") != "" {
		t.Error("health should not be cached")
	}
}

func TestAPIHandlers_HandleStats(t *testing.T) {
	handlers := NewAPIHandlers(createTestAnalytics(t), createTestState(nil), testLogger())

	w := httptest.NewRecorder()
	handlers.HandleStats(w, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))

	env := decodeEnvelope(t, w)
	var data map[string]any
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"orders", "customers", "locations", "uptime", "session", "conversation_messages"} {
		if _, ok := data[key]; !ok {
			t.Errorf("stats missing %q", key)
		}
	}
	if data["orders"] != float64(7) {
		t.Errorf("orders = %v, want 7", data["orders"])
	}
}
