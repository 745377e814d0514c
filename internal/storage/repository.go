package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrTransactionInTrip = errors.New("transaction already belongs to a trip")
	ErrEmailTaken        = errors.New("email already registered")
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- users ---

func (r *SQLiteRepository) CreateUser(ctx context.Context, u *core.User) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO users (id, email, display_name, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		u.ID, u.Email, u.DisplayName, u.PasswordHash, u.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}

	slog.InfoContext(ctx, "User created", "id", u.ID, "email", u.Email)
	return nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	return r.getUser(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	return r.getUser(ctx, "id = ?", id)
}

func (r *SQLiteRepository) getUser(ctx context.Context, where string, arg any) (*core.User, error) {
	var (
		u         core.User
		createdAt string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, email, display_name, password_hash, created_at FROM users WHERE "+where, arg,
	).Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &u, nil
}

// ListUsers returns every registered user, used by the batch report dispatch.
func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, email, display_name, password_hash, created_at FROM users ORDER BY created_at",
	)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		var (
			u         core.User
			createdAt string
		)
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &createdAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		users = append(users, u)
	}
	return users, rows.Err()
}

// --- categories ---

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c *core.Category) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO categories (id, owner_id, name, direction, threshold) VALUES (?, ?, ?, ?, ?)",
		c.ID, c.OwnerID, c.Name, string(c.Direction), c.Threshold.String(),
	)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, ownerID, id string) (*core.Category, error) {
	var (
		c         core.Category
		direction string
		threshold string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, owner_id, name, direction, threshold FROM categories WHERE owner_id = ? AND id = ?",
		ownerID, id,
	).Scan(&c.ID, &c.OwnerID, &c.Name, &direction, &threshold)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select category: %w", err)
	}
	c.Direction = core.Direction(direction)
	c.Threshold, _ = decimal.NewFromString(threshold)
	return &c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, ownerID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, owner_id, name, direction, threshold FROM categories WHERE owner_id = ? ORDER BY name",
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select categories: %w", err)
	}
	defer rows.Close()

	var cats []core.Category
	for rows.Next() {
		var (
			c         core.Category
			direction string
			threshold string
		)
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &direction, &threshold); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Direction = core.Direction(direction)
		c.Threshold, _ = decimal.NewFromString(threshold)
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c *core.Category) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE categories SET name = ?, direction = ?, threshold = ? WHERE owner_id = ? AND id = ?",
		c.Name, string(c.Direction), c.Threshold.String(), c.OwnerID, c.ID,
	)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return requireRow(res)
}

// DeleteCategory removes the category only. Transactions keep their
// category_id and become orphaned for aggregation purposes.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM categories WHERE owner_id = ? AND id = ?", ownerID, id,
	)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return requireRow(res)
}

// --- transactions ---

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t *core.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, owner_id, category_id, amount, date, kind, direction, need_or_want)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.CategoryID, t.Amount.String(), t.Date.String(),
		string(t.Kind), string(t.Direction), string(t.NeedOrWant),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", t.ID,
		applog.FieldOwnerID, t.OwnerID,
		"direction", t.Direction,
		"amount", t.Amount.String(),
		"date", t.Date.String())
	return nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, ownerID, id string) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, category_id, amount, date, kind, direction, need_or_want
		 FROM transactions WHERE owner_id = ? AND id = ?`,
		ownerID, id,
	)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select transaction: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, ownerID string, dir core.Direction) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, category_id, amount, date, kind, direction, need_or_want
		 FROM transactions WHERE owner_id = ? AND direction = ? ORDER BY date, id`,
		ownerID, string(dir),
	)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, *t)
	}
	return txs, rows.Err()
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM transactions WHERE owner_id = ? AND id = ?", ownerID, id,
	)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireRow(res)
}

// ListEntries returns the owner's transactions joined with their category
// name, ready for aggregation. The join is a LEFT JOIN: transactions whose
// category was deleted come back with an empty name. A nil range means no
// date filtering.
func (r *SQLiteRepository) ListEntries(ctx context.Context, ownerID string, dir core.Direction, dateRange *core.DateRange) ([]core.Entry, error) {
	query := `SELECT t.id, t.amount, t.kind, t.need_or_want, t.date, COALESCE(c.name, '')
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id AND c.owner_id = t.owner_id
		WHERE t.owner_id = ? AND t.direction = ?`
	args := []any{ownerID, string(dir)}
	if dateRange != nil {
		query += " AND t.date >= ? AND t.date <= ?"
		args = append(args, dateRange.Start.String(), dateRange.End.String())
	}
	query += " ORDER BY t.date, t.id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// --- trips ---

func (r *SQLiteRepository) CreateTrip(ctx context.Context, t *core.Trip) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var endDate any
	if !t.EndDate.IsZero() {
		endDate = t.EndDate.String()
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO trips (id, owner_id, name, start_date, end_date) VALUES (?, ?, ?, ?, ?)",
		t.ID, t.OwnerID, t.Name, t.StartDate.String(), endDate,
	)
	if err != nil {
		return fmt.Errorf("insert trip: %w", err)
	}

	if err := insertTripTransactions(ctx, tx, t); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit trip: %w", err)
	}

	slog.InfoContext(ctx, "Trip saved", "id", t.ID, applog.FieldOwnerID, t.OwnerID, "name", t.Name)
	return nil
}

func (r *SQLiteRepository) UpdateTrip(ctx context.Context, t *core.Trip) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var endDate any
	if !t.EndDate.IsZero() {
		endDate = t.EndDate.String()
	}
	res, err := tx.ExecContext(ctx,
		"UPDATE trips SET name = ?, start_date = ?, end_date = ? WHERE owner_id = ? AND id = ?",
		t.Name, t.StartDate.String(), endDate, t.OwnerID, t.ID,
	)
	if err != nil {
		return fmt.Errorf("update trip: %w", err)
	}
	if err := requireRow(res); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM trip_transactions WHERE trip_id = ?", t.ID); err != nil {
		return fmt.Errorf("clear trip transactions: %w", err)
	}
	if err := insertTripTransactions(ctx, tx, t); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit trip: %w", err)
	}
	return nil
}

func insertTripTransactions(ctx context.Context, tx *sql.Tx, t *core.Trip) error {
	for i, txnID := range t.TransactionIDs {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO trip_transactions (trip_id, transaction_id, position) VALUES (?, ?, ?)",
			t.ID, txnID, i,
		)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE") {
				return fmt.Errorf("%w: %s", ErrTransactionInTrip, txnID)
			}
			return fmt.Errorf("insert trip transaction: %w", err)
		}
	}
	return nil
}

func (r *SQLiteRepository) GetTrip(ctx context.Context, ownerID, id string) (*core.Trip, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, owner_id, name, start_date, end_date FROM trips WHERE owner_id = ? AND id = ?",
		ownerID, id,
	)
	t, err := scanTrip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select trip: %w", err)
	}

	if err := r.loadTripTransactionIDs(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *SQLiteRepository) ListTrips(ctx context.Context, ownerID string) ([]core.Trip, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, owner_id, name, start_date, end_date FROM trips WHERE owner_id = ? ORDER BY start_date, id",
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select trips: %w", err)
	}
	defer rows.Close()

	var trips []core.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		trips = append(trips, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range trips {
		if err := r.loadTripTransactionIDs(ctx, &trips[i]); err != nil {
			return nil, err
		}
	}
	return trips, nil
}

func (r *SQLiteRepository) DeleteTrip(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM trips WHERE owner_id = ? AND id = ?", ownerID, id,
	)
	if err != nil {
		return fmt.Errorf("delete trip: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) loadTripTransactionIDs(ctx context.Context, t *core.Trip) error {
	rows, err := r.db.QueryContext(ctx,
		"SELECT transaction_id FROM trip_transactions WHERE trip_id = ? ORDER BY position",
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("select trip transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan trip transaction: %w", err)
		}
		t.TransactionIDs = append(t.TransactionIDs, id)
	}
	return rows.Err()
}

// ListTripEntries returns a trip's expenses joined with their category name,
// in trip order.
func (r *SQLiteRepository) ListTripEntries(ctx context.Context, ownerID, tripID string) ([]core.Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.id, t.amount, t.kind, t.need_or_want, t.date, COALESCE(c.name, '')
		 FROM trip_transactions tt
		 JOIN transactions t ON t.id = tt.transaction_id
		 LEFT JOIN categories c ON c.id = t.category_id AND c.owner_id = t.owner_id
		 WHERE tt.trip_id = ? AND t.owner_id = ?
		 ORDER BY tt.position`,
		tripID, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select trip entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// --- reports ---

func (r *SQLiteRepository) CreateReport(ctx context.Context, rep *core.Report) error {
	if rep.ID == "" {
		rep.ID = uuid.New().String()
	}
	if rep.CreatedAt.IsZero() {
		rep.CreatedAt = time.Now().UTC()
	}

	blob, err := rep.Aggregate.MarshalSnapshot()
	if err != nil {
		return fmt.Errorf("marshal aggregate: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO reports (id, owner_id, name, period_start, period_end, granularity, aggregate, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.ID, rep.OwnerID, rep.Name, rep.PeriodStart.String(), rep.PeriodEnd.String(),
		string(rep.Granularity), string(blob), rep.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetReport(ctx context.Context, ownerID, id string) (*core.Report, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, period_start, period_end, granularity, aggregate, created_at
		 FROM reports WHERE owner_id = ? AND id = ?`,
		ownerID, id,
	)
	rep, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select report: %w", err)
	}
	return rep, nil
}

func (r *SQLiteRepository) ListReports(ctx context.Context, ownerID string) ([]core.Report, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, name, period_start, period_end, granularity, aggregate, created_at
		 FROM reports WHERE owner_id = ? ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select reports: %w", err)
	}
	defer rows.Close()

	var reports []core.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, *rep)
	}
	return reports, rows.Err()
}

func (r *SQLiteRepository) UpdateReport(ctx context.Context, rep *core.Report) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE reports SET name = ? WHERE owner_id = ? AND id = ?",
		rep.Name, rep.OwnerID, rep.ID,
	)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	return requireRow(res)
}

func (r *SQLiteRepository) DeleteReport(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM reports WHERE owner_id = ? AND id = ?", ownerID, id,
	)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	return requireRow(res)
}

// --- scan helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*core.Transaction, error) {
	var (
		t          core.Transaction
		amount     string
		date       string
		kind       string
		direction  string
		needOrWant string
	)
	err := row.Scan(&t.ID, &t.OwnerID, &t.CategoryID, &amount, &date, &kind, &direction, &needOrWant)
	if err != nil {
		return nil, err
	}

	t.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	t.Date, err = core.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", date, err)
	}
	t.Kind = core.Kind(kind)
	t.Direction = core.Direction(direction)
	t.NeedOrWant = core.NeedOrWant(needOrWant)
	return &t, nil
}

func scanTrip(row rowScanner) (*core.Trip, error) {
	var (
		t         core.Trip
		startDate string
		endDate   sql.NullString
	)
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Name, &startDate, &endDate); err != nil {
		return nil, err
	}

	var err error
	t.StartDate, err = core.ParseDate(startDate)
	if err != nil {
		return nil, fmt.Errorf("parse start date %q: %w", startDate, err)
	}
	if endDate.Valid {
		t.EndDate, err = core.ParseDate(endDate.String)
		if err != nil {
			return nil, fmt.Errorf("parse end date %q: %w", endDate.String, err)
		}
	}
	return &t, nil
}

func scanReport(row rowScanner) (*core.Report, error) {
	var (
		rep         core.Report
		periodStart string
		periodEnd   string
		granularity string
		blob        string
		createdAt   string
	)
	err := row.Scan(&rep.ID, &rep.OwnerID, &rep.Name, &periodStart, &periodEnd, &granularity, &blob, &createdAt)
	if err != nil {
		return nil, err
	}

	rep.PeriodStart, _ = core.ParseDate(periodStart)
	rep.PeriodEnd, _ = core.ParseDate(periodEnd)
	rep.Granularity = core.Granularity(granularity)
	rep.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if err := rep.Aggregate.UnmarshalSnapshot([]byte(blob)); err != nil {
		return nil, fmt.Errorf("unmarshal aggregate: %w", err)
	}
	return &rep, nil
}

func scanEntries(rows *sql.Rows) ([]core.Entry, error) {
	var entries []core.Entry
	for rows.Next() {
		var (
			e          core.Entry
			amount     string
			kind       string
			needOrWant string
			date       string
		)
		if err := rows.Scan(&e.ID, &amount, &kind, &needOrWant, &date, &e.Category); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}

		var err error
		e.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		e.Date, err = core.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", date, err)
		}
		e.Kind = core.Kind(kind)
		e.NeedOrWant = core.NeedOrWant(needOrWant)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
