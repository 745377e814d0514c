package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func seedUser(t *testing.T, repo *SQLiteRepository, id, email string) {
	t.Helper()
	err := repo.CreateUser(context.Background(), &core.User{
		ID:           id,
		Email:        email,
		PasswordHash: "hash",
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
}

func amount(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad amount %q: %v", s, err)
	}
	return d
}

func TestUserRoundtrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedUser(t, repo, "u1", "alice@example.com")

	u, err := repo.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if u.ID != "u1" {
		t.Errorf("ID = %s, want u1", u.ID)
	}

	err = repo.CreateUser(ctx, &core.User{
		ID: "u2", Email: "alice@example.com", PasswordHash: "other", CreatedAt: time.Now(),
	})
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate email error = %v, want ErrEmailTaken", err)
	}

	if _, err := repo.GetUserByID(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUserByID(nope) error = %v, want ErrNotFound", err)
	}
}

func TestEntriesJoinAndOrphanedCategory(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedUser(t, repo, "u1", "alice@example.com")

	cat := &core.Category{OwnerID: "u1", Name: "Rent", Direction: core.Expense, Threshold: decimal.Zero}
	if err := repo.CreateCategory(ctx, cat); err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}

	txn := &core.Transaction{
		OwnerID:    "u1",
		CategoryID: cat.ID,
		Amount:     amount(t, "100.50"),
		Date:       core.NewDate(2024, 1, 5),
		Kind:       core.Fixed,
		Direction:  core.Expense,
		NeedOrWant: core.Need,
	}
	if err := repo.CreateTransaction(ctx, txn); err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}

	entries, err := repo.ListEntries(ctx, "u1", core.Expense, nil)
	if err != nil {
		t.Fatalf("ListEntries() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Category != "Rent" {
		t.Errorf("Category = %q, want Rent", entries[0].Category)
	}
	if entries[0].Amount.String() != "100.5" {
		t.Errorf("Amount = %s, want 100.5", entries[0].Amount)
	}

	// Deleting the category orphans the transaction but keeps it listed.
	if err := repo.DeleteCategory(ctx, "u1", cat.ID); err != nil {
		t.Fatalf("DeleteCategory() error = %v", err)
	}
	entries, err = repo.ListEntries(ctx, "u1", core.Expense, nil)
	if err != nil {
		t.Fatalf("ListEntries() after delete error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries after category delete, want 1", len(entries))
	}
	if entries[0].Category != "" {
		t.Errorf("orphaned Category = %q, want empty", entries[0].Category)
	}
}

func TestListEntriesDateFilter(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedUser(t, repo, "u1", "alice@example.com")

	cat := &core.Category{OwnerID: "u1", Name: "Food", Direction: core.Expense, Threshold: decimal.Zero}
	if err := repo.CreateCategory(ctx, cat); err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}

	for _, day := range []int{1, 15, 31} {
		err := repo.CreateTransaction(ctx, &core.Transaction{
			OwnerID:    "u1",
			CategoryID: cat.ID,
			Amount:     amount(t, "10"),
			Date:       core.NewDate(2024, 1, day),
			Kind:       core.Variable,
			Direction:  core.Expense,
			NeedOrWant: core.Need,
		})
		if err != nil {
			t.Fatalf("CreateTransaction() error = %v", err)
		}
	}

	dateRange := &core.DateRange{Start: core.NewDate(2024, 1, 10), End: core.NewDate(2024, 1, 31)}
	entries, err := repo.ListEntries(ctx, "u1", core.Expense, dateRange)
	if err != nil {
		t.Fatalf("ListEntries() error = %v", err)
	}
	// Both boundary days are inclusive, so the 15th and the 31st match.
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
}

func TestTripMembershipIsExclusive(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedUser(t, repo, "u1", "alice@example.com")

	cat := &core.Category{OwnerID: "u1", Name: "Travel", Direction: core.Expense, Threshold: decimal.Zero}
	if err := repo.CreateCategory(ctx, cat); err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	txn := &core.Transaction{
		OwnerID:    "u1",
		CategoryID: cat.ID,
		Amount:     amount(t, "200"),
		Date:       core.NewDate(2024, 6, 2),
		Kind:       core.Variable,
		Direction:  core.Expense,
		NeedOrWant: core.Want,
	}
	if err := repo.CreateTransaction(ctx, txn); err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}

	trip := &core.Trip{
		OwnerID:        "u1",
		Name:           "Lisbon",
		StartDate:      core.NewDate(2024, 6, 1),
		EndDate:        core.NewDate(2024, 6, 4),
		TransactionIDs: []string{txn.ID},
	}
	if err := repo.CreateTrip(ctx, trip); err != nil {
		t.Fatalf("CreateTrip() error = %v", err)
	}

	got, err := repo.GetTrip(ctx, "u1", trip.ID)
	if err != nil {
		t.Fatalf("GetTrip() error = %v", err)
	}
	if len(got.TransactionIDs) != 1 || got.TransactionIDs[0] != txn.ID {
		t.Errorf("TransactionIDs = %v", got.TransactionIDs)
	}
	if got.EndDate.String() != "2024-06-04" {
		t.Errorf("EndDate = %s", got.EndDate)
	}

	// The same transaction cannot join a second trip.
	other := &core.Trip{
		OwnerID:        "u1",
		Name:           "Porto",
		StartDate:      core.NewDate(2024, 7, 1),
		TransactionIDs: []string{txn.ID},
	}
	if err := repo.CreateTrip(ctx, other); !errors.Is(err, ErrTransactionInTrip) {
		t.Errorf("CreateTrip() error = %v, want ErrTransactionInTrip", err)
	}

	entries, err := repo.ListTripEntries(ctx, "u1", trip.ID)
	if err != nil {
		t.Fatalf("ListTripEntries() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Category != "Travel" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestOpenTripRoundtrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedUser(t, repo, "u1", "alice@example.com")

	trip := &core.Trip{
		OwnerID:   "u1",
		Name:      "Sabbatical",
		StartDate: core.NewDate(2024, 3, 1),
	}
	if err := repo.CreateTrip(ctx, trip); err != nil {
		t.Fatalf("CreateTrip() error = %v", err)
	}

	got, err := repo.GetTrip(ctx, "u1", trip.ID)
	if err != nil {
		t.Fatalf("GetTrip() error = %v", err)
	}
	if !got.EndDate.IsZero() {
		t.Errorf("open trip EndDate = %v, want zero", got.EndDate)
	}
}

func TestReportSnapshotRoundtrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	seedUser(t, repo, "u1", "alice@example.com")

	agg := core.Aggregate{
		Total:      amount(t, "150"),
		ByType:     core.TypeTotals{Fixed: amount(t, "100"), Variable: amount(t, "50")},
		ByBucket:   map[string]decimal.Decimal{"2024-01": amount(t, "150")},
		ByCategory: map[string]decimal.Decimal{"Rent": amount(t, "100"), "Food": amount(t, "50")},
	}
	rep := &core.Report{
		OwnerID:     "u1",
		Name:        "January",
		PeriodStart: core.NewDate(2024, 1, 1),
		PeriodEnd:   core.NewDate(2024, 1, 31),
		Granularity: core.Monthly,
		Aggregate:   agg,
	}
	if err := repo.CreateReport(ctx, rep); err != nil {
		t.Fatalf("CreateReport() error = %v", err)
	}

	got, err := repo.GetReport(ctx, "u1", rep.ID)
	if err != nil {
		t.Fatalf("GetReport() error = %v", err)
	}
	if got.Aggregate.Total.String() != "150" {
		t.Errorf("Total = %s, want 150", got.Aggregate.Total)
	}
	if got.Aggregate.ByBucket["2024-01"].String() != "150" {
		t.Errorf("ByBucket = %v", got.Aggregate.ByBucket)
	}
	if got.Granularity != core.Monthly {
		t.Errorf("Granularity = %s", got.Granularity)
	}

	// A snapshot is frozen: later transactions must not change it.
	cat := &core.Category{OwnerID: "u1", Name: "Rent", Direction: core.Expense, Threshold: decimal.Zero}
	if err := repo.CreateCategory(ctx, cat); err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	err = repo.CreateTransaction(ctx, &core.Transaction{
		OwnerID:    "u1",
		CategoryID: cat.ID,
		Amount:     amount(t, "999"),
		Date:       core.NewDate(2024, 1, 20),
		Kind:       core.Fixed,
		Direction:  core.Expense,
		NeedOrWant: core.Need,
	})
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	got, err = repo.GetReport(ctx, "u1", rep.ID)
	if err != nil {
		t.Fatalf("GetReport() error = %v", err)
	}
	if got.Aggregate.Total.String() != "150" {
		t.Errorf("snapshot Total changed to %s", got.Aggregate.Total)
	}
}
