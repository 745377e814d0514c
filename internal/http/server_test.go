package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

// memStore is an in-memory stand-in for the SQLite repository, satisfying
// every storage surface the server touches.
type memStore struct {
	users        map[string]*core.User
	categories   map[string]*core.Category
	transactions map[string]*core.Transaction
	trips        map[string]*core.Trip
	reports      map[string]*core.Report
	sentMail     []*amqp.ReportEmailMessage
}

func newMemStore() *memStore {
	return &memStore{
		users:        make(map[string]*core.User),
		categories:   make(map[string]*core.Category),
		transactions: make(map[string]*core.Transaction),
		trips:        make(map[string]*core.Trip),
		reports:      make(map[string]*core.Report),
	}
}

func (m *memStore) CreateUser(ctx context.Context, u *core.User) error {
	m.users[u.ID] = u
	return nil
}

func (m *memStore) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) ListUsers(ctx context.Context) ([]core.User, error) {
	out := make([]core.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, nil
}

func (m *memStore) CreateCategory(ctx context.Context, c *core.Category) error {
	m.categories[c.ID] = c
	return nil
}

func (m *memStore) GetCategory(ctx context.Context, ownerID, id string) (*core.Category, error) {
	if c, ok := m.categories[id]; ok && c.OwnerID == ownerID {
		return c, nil
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) ListCategories(ctx context.Context, ownerID string) ([]core.Category, error) {
	var out []core.Category
	for _, c := range m.categories {
		if c.OwnerID == ownerID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memStore) UpdateCategory(ctx context.Context, c *core.Category) error {
	if _, err := m.GetCategory(ctx, c.OwnerID, c.ID); err != nil {
		return err
	}
	m.categories[c.ID] = c
	return nil
}

func (m *memStore) DeleteCategory(ctx context.Context, ownerID, id string) error {
	if _, err := m.GetCategory(ctx, ownerID, id); err != nil {
		return err
	}
	delete(m.categories, id)
	return nil
}

func (m *memStore) CreateTransaction(ctx context.Context, t *core.Transaction) error {
	m.transactions[t.ID] = t
	return nil
}

func (m *memStore) GetTransaction(ctx context.Context, ownerID, id string) (*core.Transaction, error) {
	if t, ok := m.transactions[id]; ok && t.OwnerID == ownerID {
		return t, nil
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) ListTransactions(ctx context.Context, ownerID string, dir core.Direction) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, t := range m.transactions {
		if t.OwnerID == ownerID && t.Direction == dir {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memStore) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	if _, err := m.GetTransaction(ctx, ownerID, id); err != nil {
		return err
	}
	delete(m.transactions, id)
	return nil
}

func (m *memStore) ListEntries(ctx context.Context, ownerID string, dir core.Direction, dateRange *core.DateRange) ([]core.Entry, error) {
	var out []core.Entry
	for _, t := range m.transactions {
		if t.OwnerID != ownerID || t.Direction != dir {
			continue
		}
		if dateRange != nil && !dateRange.Contains(t.Date) {
			continue
		}
		var categoryName string
		if c, ok := m.categories[t.CategoryID]; ok {
			categoryName = c.Name
		}
		out = append(out, core.Entry{
			ID:         t.ID,
			Amount:     t.Amount,
			Kind:       t.Kind,
			NeedOrWant: t.NeedOrWant,
			Date:       t.Date,
			Category:   categoryName,
		})
	}
	return out, nil
}

func (m *memStore) CreateTrip(ctx context.Context, t *core.Trip) error {
	m.trips[t.ID] = t
	return nil
}

func (m *memStore) GetTrip(ctx context.Context, ownerID, id string) (*core.Trip, error) {
	if t, ok := m.trips[id]; ok && t.OwnerID == ownerID {
		return t, nil
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) ListTrips(ctx context.Context, ownerID string) ([]core.Trip, error) {
	var out []core.Trip
	for _, t := range m.trips {
		if t.OwnerID == ownerID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memStore) UpdateTrip(ctx context.Context, t *core.Trip) error {
	if _, err := m.GetTrip(ctx, t.OwnerID, t.ID); err != nil {
		return err
	}
	m.trips[t.ID] = t
	return nil
}

func (m *memStore) DeleteTrip(ctx context.Context, ownerID, id string) error {
	if _, err := m.GetTrip(ctx, ownerID, id); err != nil {
		return err
	}
	delete(m.trips, id)
	return nil
}

func (m *memStore) ListTripEntries(ctx context.Context, ownerID, tripID string) ([]core.Entry, error) {
	trip, err := m.GetTrip(ctx, ownerID, tripID)
	if err != nil {
		return nil, err
	}
	var out []core.Entry
	for _, id := range trip.TransactionIDs {
		t, ok := m.transactions[id]
		if !ok || t.Direction != core.Expense {
			continue
		}
		out = append(out, core.Entry{
			ID:     t.ID,
			Amount: t.Amount,
			Kind:   t.Kind,
			Date:   t.Date,
		})
	}
	return out, nil
}

func (m *memStore) CreateReport(ctx context.Context, rep *core.Report) error {
	m.reports[rep.ID] = rep
	return nil
}

func (m *memStore) GetReport(ctx context.Context, ownerID, id string) (*core.Report, error) {
	if rep, ok := m.reports[id]; ok && rep.OwnerID == ownerID {
		return rep, nil
	}
	return nil, storage.ErrNotFound
}

func (m *memStore) ListReports(ctx context.Context, ownerID string) ([]core.Report, error) {
	var out []core.Report
	for _, rep := range m.reports {
		if rep.OwnerID == ownerID {
			out = append(out, *rep)
		}
	}
	return out, nil
}

func (m *memStore) UpdateReport(ctx context.Context, rep *core.Report) error {
	if _, err := m.GetReport(ctx, rep.OwnerID, rep.ID); err != nil {
		return err
	}
	m.reports[rep.ID] = rep
	return nil
}

func (m *memStore) DeleteReport(ctx context.Context, ownerID, id string) error {
	if _, err := m.GetReport(ctx, ownerID, id); err != nil {
		return err
	}
	delete(m.reports, id)
	return nil
}

func (m *memStore) PublishReportEmail(ctx context.Context, msg *amqp.ReportEmailMessage) error {
	m.sentMail = append(m.sentMail, msg)
	return nil
}

func newTestServer(t *testing.T) (*Server, *memStore) {
	t.Helper()
	store := newMemStore()
	tokens := auth.NewJWTManager("test-secret-key-0123456789", time.Hour)
	authenticator := auth.NewPasswordAuthenticator(store)
	stats := services.NewStatsService(store, store)
	trips := services.NewTripService(store)
	dispatcher := services.NewReportDispatcher(store, store)
	srv := NewServer(":0", store, authenticator, tokens, stats, trips, dispatcher)
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	return srv, store
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func registerUser(t *testing.T, srv *Server, email string) string {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/api/auth/register", "", registerRequest{
		Email:    email,
		Password: "correct-horse",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp authResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode auth response: %v", err)
	}
	return resp.Token
}

func TestAuthFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	token := registerUser(t, srv, "alice@example.com")
	if token == "" {
		t.Fatal("register should return a token")
	}

	rec := doJSON(t, srv, http.MethodPost, "/api/auth/login", "", loginRequest{
		Email: "alice@example.com", Password: "correct-horse",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/auth/login", "", loginRequest{
		Email: "alice@example.com", Password: "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/categories", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d, want 401", rec.Code)
	}
}

func TestTransactionAndStatsFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	token := registerUser(t, srv, "bob@example.com")

	rec := doJSON(t, srv, http.MethodPost, "/api/categories", token, categoryRequest{
		Name: "Rent", Direction: "expense",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create category status = %d, body %s", rec.Code, rec.Body.String())
	}
	var cat categoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &cat); err != nil {
		t.Fatalf("decode category: %v", err)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/transactions", token, transactionRequest{
		CategoryID: cat.ID,
		Amount:     "100",
		Date:       "2024-01-05",
		Kind:       "fixed",
		Direction:  "expense",
		NeedOrWant: "need",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create transaction status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/transactions", token, transactionRequest{
		CategoryID: cat.ID,
		Amount:     "-5",
		Date:       "2024-01-05",
		Kind:       "fixed",
		Direction:  "expense",
		NeedOrWant: "need",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("negative amount status = %d, want 422", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/stats?direction=expense&granularity=monthly", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d, body %s", rec.Code, rec.Body.String())
	}
	var agg core.Aggregate
	if err := json.Unmarshal(rec.Body.Bytes(), &agg); err != nil {
		t.Fatalf("decode aggregate: %v", err)
	}
	if agg.Total.String() != "100" {
		t.Errorf("Total = %s, want 100", agg.Total)
	}
	if got := agg.ByBucket["2024-01"]; got.String() != "100" {
		t.Errorf("ByBucket[2024-01] = %s, want 100", got)
	}
	if got := agg.ByCategory["Rent"]; got.String() != "100" {
		t.Errorf("ByCategory[Rent] = %s, want 100", got)
	}

	// Unknown granularity degrades instead of failing.
	rec = doJSON(t, srv, http.MethodGet, "/api/stats?granularity=hourly", token, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("stats with unknown granularity status = %d, want 200", rec.Code)
	}
}

func TestTripRollupEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	token := registerUser(t, srv, "carol@example.com")

	rec := doJSON(t, srv, http.MethodPost, "/api/categories", token, categoryRequest{
		Name: "Travel", Direction: "expense",
	})
	var cat categoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &cat); err != nil {
		t.Fatalf("decode category: %v", err)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/transactions", token, transactionRequest{
		CategoryID: cat.ID,
		Amount:     "200",
		Date:       "2024-06-02",
		Kind:       "variable",
		Direction:  "expense",
		NeedOrWant: "want",
	})
	var txn transactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &txn); err != nil {
		t.Fatalf("decode transaction: %v", err)
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/trips", token, tripRequest{
		Name:           "Lisbon",
		StartDate:      "2024-06-01",
		EndDate:        "2024-06-04",
		TransactionIDs: []string{txn.ID},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create trip status = %d, body %s", rec.Code, rec.Body.String())
	}
	var trip tripResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &trip); err != nil {
		t.Fatalf("decode trip: %v", err)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/trips/"+trip.ID+"/rollup", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("rollup status = %d, body %s", rec.Code, rec.Body.String())
	}
	var summary core.TripSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Total.String() != "200" {
		t.Errorf("Total = %s, want 200", summary.Total)
	}
	if summary.DurationDays != 4 {
		t.Errorf("DurationDays = %d, want 4", summary.DurationDays)
	}
	if summary.AverageDaily.String() != "50" {
		t.Errorf("AverageDaily = %s, want 50", summary.AverageDaily)
	}

	// Strict endpoints reject unknown granularities.
	rec = doJSON(t, srv, http.MethodGet, "/api/trips/rollup?granularity=hourly", token, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("rollup with unknown granularity status = %d, want 422", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "granularity") {
		t.Errorf("error body should mention granularity, got %s", rec.Body.String())
	}
}

func TestOwnerIsolation(t *testing.T) {
	srv, _ := newTestServer(t)
	aliceToken := registerUser(t, srv, "alice@example.com")
	bobToken := registerUser(t, srv, "bob@example.com")

	rec := doJSON(t, srv, http.MethodPost, "/api/categories", aliceToken, categoryRequest{
		Name: "Groceries", Direction: "expense",
	})
	var cat categoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &cat); err != nil {
		t.Fatalf("decode category: %v", err)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/categories/"+cat.ID, bobToken, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("cross-owner read status = %d, want 404", rec.Code)
	}
}

func TestReportLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)
	token := registerUser(t, srv, "alice@example.com")

	rec := doJSON(t, srv, http.MethodPost, "/api/categories", token, categoryRequest{
		Name: "Rent", Direction: "expense",
	})
	var cat categoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &cat); err != nil {
		t.Fatalf("decode category: %v", err)
	}
	rec = doJSON(t, srv, http.MethodPost, "/api/transactions", token, transactionRequest{
		CategoryID: cat.ID, Amount: "800", Date: "2024-01-05",
		Kind: "fixed", Direction: "expense", NeedOrWant: "need",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create transaction status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, srv, http.MethodPost, "/api/reports", token, saveReportRequest{
		Name: "January", Start: "2024-01-01", End: "2024-01-31",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("save report status = %d, body %s", rec.Code, rec.Body.String())
	}
	var rep reportResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if rep.Aggregate.Total.String() != "800" {
		t.Errorf("report total = %s, want 800", rep.Aggregate.Total)
	}

	rec = doJSON(t, srv, http.MethodPut, "/api/reports/"+rep.ID, token, map[string]string{
		"name": "January rent",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("rename status = %d, body %s", rec.Code, rec.Body.String())
	}
	var renamed reportResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &renamed); err != nil {
		t.Fatalf("decode renamed report: %v", err)
	}
	if renamed.Name != "January rent" {
		t.Errorf("name = %q, want %q", renamed.Name, "January rent")
	}
	if renamed.Aggregate.Total.String() != "800" {
		t.Errorf("rename must not touch the snapshot, total = %s", renamed.Aggregate.Total)
	}

	rec = doJSON(t, srv, http.MethodPut, "/api/reports/"+rep.ID, token, map[string]string{
		"name": "   ",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("blank name status = %d, want 422", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodDelete, "/api/reports/"+rep.ID, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodGet, "/api/reports/"+rep.ID, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestDispatchSendsOnlyCallersReport(t *testing.T) {
	srv, store := newTestServer(t)
	aliceToken := registerUser(t, srv, "alice@example.com")
	bobToken := registerUser(t, srv, "bob@example.com")

	for _, token := range []string{aliceToken, bobToken} {
		rec := doJSON(t, srv, http.MethodPost, "/api/categories", token, categoryRequest{
			Name: "Food", Direction: "expense",
		})
		var cat categoryResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &cat); err != nil {
			t.Fatalf("decode category: %v", err)
		}
		rec = doJSON(t, srv, http.MethodPost, "/api/transactions", token, transactionRequest{
			CategoryID: cat.ID, Amount: "40", Date: "2024-01-10",
			Kind: "variable", Direction: "expense", NeedOrWant: "need",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create transaction status = %d, body %s", rec.Code, rec.Body.String())
		}
	}

	rec := doJSON(t, srv, http.MethodPost, "/api/reports/dispatch", aliceToken, dispatchRequest{
		Start: "2024-01-01", End: "2024-01-31",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("dispatch status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp dispatchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode dispatch response: %v", err)
	}
	if resp.Recipient != "alice@example.com" || !resp.Sent {
		t.Errorf("dispatch result = %+v, want alice's sent report", resp)
	}

	if len(store.sentMail) != 1 {
		t.Fatalf("published %d emails, want 1", len(store.sentMail))
	}
	if store.sentMail[0].Recipient != "alice@example.com" {
		t.Errorf("email went to %s, want alice@example.com", store.sentMail[0].Recipient)
	}
}
