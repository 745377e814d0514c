package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
)

func mustAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fakeDispatchStorage struct {
	users   []core.User
	entries map[string][]core.Entry
	err     error
}

func (f *fakeDispatchStorage) ListUsers(ctx context.Context) ([]core.User, error) {
	return f.users, f.err
}

func (f *fakeDispatchStorage) ListEntries(ctx context.Context, ownerID string, dir core.Direction, dateRange *core.DateRange) ([]core.Entry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return core.FilterEntries(f.entries[ownerID], dateRange), nil
}

// fakePublisher is called concurrently by DispatchAll, so access to
// published goes through the mutex.
type fakePublisher struct {
	mu        sync.Mutex
	published []*amqp.ReportEmailMessage
	failFor   map[string]error
}

func (f *fakePublisher) PublishReportEmail(ctx context.Context, msg *amqp.ReportEmailMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[msg.Recipient]; err != nil {
		return err
	}
	f.published = append(f.published, msg)
	return nil
}

func (f *fakePublisher) publishedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func expenseEntry(amount, category string, date core.Date) core.Entry {
	return core.Entry{
		Amount:     mustAmount(amount),
		Kind:       core.Variable,
		NeedOrWant: core.Want,
		Date:       date,
		Category:   category,
	}
}

func janRange() core.DateRange {
	return core.DateRange{Start: core.NewDate(2024, 1, 1), End: core.NewDate(2024, 1, 31)}
}

func TestDispatchSendsRenderedReport(t *testing.T) {
	user := core.User{ID: "u1", Email: "alice@example.com", DisplayName: "Alice"}
	storage := &fakeDispatchStorage{
		entries: map[string][]core.Entry{
			"u1": {
				expenseEntry("100", "Rent", core.NewDate(2024, 1, 5)),
				expenseEntry("50", "Food", core.NewDate(2024, 1, 20)),
			},
		},
	}
	publisher := &fakePublisher{}
	dispatcher := NewReportDispatcher(storage, publisher)

	result := dispatcher.Dispatch(context.Background(), user, janRange(), core.Monthly)

	if result.Err != nil {
		t.Fatalf("Dispatch() error = %v", result.Err)
	}
	if !result.Sent {
		t.Fatal("Dispatch() should have sent a report")
	}
	if len(publisher.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(publisher.published))
	}

	msg := publisher.published[0]
	if msg.Recipient != "alice@example.com" {
		t.Errorf("Recipient = %s", msg.Recipient)
	}
	if !strings.Contains(msg.Subject, "2024-01-01") || !strings.Contains(msg.Subject, "2024-01-31") {
		t.Errorf("Subject %q should carry the date range", msg.Subject)
	}
	if !strings.Contains(msg.Body, "150.00") {
		t.Errorf("Body should contain the total, got: %s", msg.Body)
	}
	// Categories are sorted descending by amount.
	if strings.Index(msg.Body, "Rent") > strings.Index(msg.Body, "Food") {
		t.Error("Body should list Rent before Food")
	}
}

func TestDispatchZeroTotalNotSent(t *testing.T) {
	user := core.User{ID: "u1", Email: "alice@example.com"}
	storage := &fakeDispatchStorage{entries: map[string][]core.Entry{
		"u1": {expenseEntry("99", "Food", core.NewDate(2023, 6, 1))}, // outside range
	}}
	publisher := &fakePublisher{}
	dispatcher := NewReportDispatcher(storage, publisher)

	result := dispatcher.Dispatch(context.Background(), user, janRange(), core.Monthly)

	if result.Err != nil {
		t.Fatalf("Dispatch() error = %v", result.Err)
	}
	if result.Sent {
		t.Error("zero-total dispatch must not send")
	}
	if len(publisher.published) != 0 {
		t.Errorf("published %d messages, want 0", len(publisher.published))
	}
}

func TestDispatchAllIsolatesFailures(t *testing.T) {
	users := []core.User{
		{ID: "u1", Email: "one@example.com"},
		{ID: "u2", Email: "two@example.com"},
		{ID: "u3", Email: "three@example.com"},
	}
	entries := map[string][]core.Entry{}
	for _, u := range users {
		entries[u.ID] = []core.Entry{expenseEntry("10", "Food", core.NewDate(2024, 1, 10))}
	}
	storage := &fakeDispatchStorage{users: users, entries: entries}
	publisher := &fakePublisher{
		failFor: map[string]error{"two@example.com": errors.New("smtp relay down")},
	}
	dispatcher := NewReportDispatcher(storage, publisher)

	results, err := dispatcher.DispatchAll(context.Background(), janRange(), core.Monthly)
	if err != nil {
		t.Fatalf("DispatchAll() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	for _, r := range results {
		switch r.OwnerID {
		case "u2":
			if r.Sent || r.Err == nil {
				t.Errorf("u2: Sent=%v Err=%v, want failed result", r.Sent, r.Err)
			}
		default:
			if !r.Sent || r.Err != nil {
				t.Errorf("%s: Sent=%v Err=%v, want sent", r.OwnerID, r.Sent, r.Err)
			}
		}
	}
	if n := publisher.publishedCount(); n != 2 {
		t.Errorf("published %d messages, want 2", n)
	}
}
