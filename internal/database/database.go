package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"student-deals-admin-api/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("database: row not found")

// DB wraps the database connection and provides methods for data access.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema.
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables if they don't exist.
func (db *DB) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS students (
			id TEXT PRIMARY KEY,
			full_name TEXT NOT NULL,
			email TEXT NOT NULL,
			college_id TEXT NOT NULL DEFAULT '',
			college TEXT,
			city TEXT,
			state TEXT,
			gender TEXT,
			date_of_birth TEXT,
			profile_image_url TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			total_savings REAL NOT NULL DEFAULT 0,
			total_redemptions INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS merchants (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS offers (
			id TEXT PRIMARY KEY,
			merchant_id TEXT NOT NULL,
			title TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'inactive',
			discount_type TEXT NOT NULL DEFAULT 'percent',
			discount_value REAL NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			student_id TEXT NOT NULL,
			merchant_id TEXT NOT NULL,
			offer_id TEXT NOT NULL,
			final_amount REAL,
			discount_amount REAL,
			redeemed_at TEXT,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS online_brands (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS online_offers (
			id TEXT PRIMARY KEY,
			online_brand_id TEXT NOT NULL,
			title TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS online_redemptions (
			id TEXT PRIMARY KEY,
			student_id TEXT NOT NULL,
			online_brand_id TEXT NOT NULL,
			online_offer_id TEXT NOT NULL,
			code_used TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'revealed',
			revealed_at TEXT,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_txn_student_id ON transactions(student_id)`,
		`CREATE INDEX IF NOT EXISTS idx_txn_redeemed_at ON transactions(redeemed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_online_student_id ON online_redemptions(student_id)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

// TransactionRow is a raw transaction read used by the dashboard aggregation.
// Amounts are scanned untyped: legacy imports left some of them NULL or as
// text, and the aggregator is responsible for coercing them.
type TransactionRow struct {
	FinalAmount    interface{}
	DiscountAmount interface{}
	RedeemedAt     *time.Time
}

// StudentRow is a raw student row as stored (snake_case columns).
type StudentRow struct {
	ID               string
	FullName         string
	Email            string
	CollegeID        string
	College          sql.NullString
	City             sql.NullString
	State            sql.NullString
	Gender           sql.NullString
	DateOfBirth      sql.NullString
	ProfileImageURL  sql.NullString
	Status           string
	TotalSavings     float64
	TotalRedemptions int
}

// OfflineTransactionRow is a raw in-person redemption joined with merchant
// and offer display fields. Join columns are nullable: the referenced rows
// may have been deleted.
type OfflineTransactionRow struct {
	ID             string
	MerchantName   sql.NullString
	OfferTitle     sql.NullString
	FinalAmount    interface{}
	DiscountAmount interface{}
	RedeemedAt     *time.Time
}

// OnlineRedemptionRow is a raw code reveal joined with brand and offer
// display fields.
type OnlineRedemptionRow struct {
	ID         string
	BrandName  sql.NullString
	OfferTitle sql.NullString
	CodeUsed   string
	Status     string
	RevealedAt *time.Time
	CreatedAt  *time.Time
}

// SnapshotStats is the precomputed stats block of a student snapshot.
type SnapshotStats struct {
	TotalSavings     float64
	TotalRedemptions int
	OfflineCount     int
	OnlineCount      int
}

// StudentSnapshot bundles everything the admin student-detail view needs,
// read against a single consistent snapshot.
type StudentSnapshot struct {
	Student             StudentRow
	OfflineTransactions []OfflineTransactionRow
	OnlineRedemptions   []OnlineRedemptionRow
	Stats               SnapshotStats
}

// ListStudentStatuses returns the status of every student.
func (db *DB) ListStudentStatuses(ctx context.Context) ([]string, error) {
	return db.listStatuses(ctx, `SELECT status FROM students`)
}

// ListMerchantStatuses returns the status of every merchant.
func (db *DB) ListMerchantStatuses(ctx context.Context) ([]string, error) {
	return db.listStatuses(ctx, `SELECT status FROM merchants`)
}

// ListOfferStatuses returns the status of every offer.
func (db *DB) ListOfferStatuses(ctx context.Context) ([]string, error) {
	return db.listStatuses(ctx, `SELECT status FROM offers`)
}

func (db *DB) listStatuses(ctx context.Context, query string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query statuses: %w", err)
	}
	defer rows.Close()

	var statuses []string
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return nil, fmt.Errorf("failed to scan status: %w", err)
		}
		statuses = append(statuses, status)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating statuses: %w", err)
	}

	return statuses, nil
}

// ListTransactionRows returns amounts and redemption timestamps for every
// in-person transaction.
func (db *DB) ListTransactionRows(ctx context.Context) ([]TransactionRow, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT final_amount, discount_amount, redeemed_at FROM transactions`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var result []TransactionRow
	for rows.Next() {
		var row TransactionRow
		var redeemedAt sql.NullString

		if err := rows.Scan(&row.FinalAmount, &row.DiscountAmount, &redeemedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		row.RedeemedAt = parseNullableTime(redeemedAt)
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return result, nil
}

// GetStudentSnapshot reads a student together with both redemption histories
// and precomputed stats in a single read transaction, so the detail view
// never mixes rows from different points in time. Returns ErrNotFound when
// the student does not exist.
func (db *DB) GetStudentSnapshot(ctx context.Context, studentID string) (*StudentSnapshot, error) {
	tx, err := db.conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot read: %w", err)
	}
	defer tx.Rollback()

	snapshot := &StudentSnapshot{}

	err = tx.QueryRowContext(ctx,
		`SELECT id, full_name, email, college_id, college, city, state, gender,
			date_of_birth, profile_image_url, status, total_savings, total_redemptions
		FROM students WHERE id = ?`, studentID).Scan(
		&snapshot.Student.ID,
		&snapshot.Student.FullName,
		&snapshot.Student.Email,
		&snapshot.Student.CollegeID,
		&snapshot.Student.College,
		&snapshot.Student.City,
		&snapshot.Student.State,
		&snapshot.Student.Gender,
		&snapshot.Student.DateOfBirth,
		&snapshot.Student.ProfileImageURL,
		&snapshot.Student.Status,
		&snapshot.Student.TotalSavings,
		&snapshot.Student.TotalRedemptions,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read student: %w", err)
	}

	offline, err := db.readOfflineTransactions(ctx, tx, studentID)
	if err != nil {
		return nil, err
	}
	snapshot.OfflineTransactions = offline

	online, err := db.readOnlineRedemptions(ctx, tx, studentID)
	if err != nil {
		return nil, err
	}
	snapshot.OnlineRedemptions = online

	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(discount_amount), 0), COUNT(*)
		FROM transactions WHERE student_id = ?`, studentID).Scan(
		&snapshot.Stats.TotalSavings,
		&snapshot.Stats.OfflineCount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read student stats: %w", err)
	}
	snapshot.Stats.OnlineCount = len(online)
	snapshot.Stats.TotalRedemptions = snapshot.Stats.OfflineCount + snapshot.Stats.OnlineCount

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to finish snapshot read: %w", err)
	}

	return snapshot, nil
}

func (db *DB) readOfflineTransactions(ctx context.Context, tx *sql.Tx, studentID string) ([]OfflineTransactionRow, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT t.id, m.name, o.title, t.final_amount, t.discount_amount, t.redeemed_at
		FROM transactions t
		LEFT JOIN merchants m ON m.id = t.merchant_id
		LEFT JOIN offers o ON o.id = t.offer_id
		WHERE t.student_id = ?
		ORDER BY t.redeemed_at DESC`, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query offline transactions: %w", err)
	}
	defer rows.Close()

	var result []OfflineTransactionRow
	for rows.Next() {
		var row OfflineTransactionRow
		var redeemedAt sql.NullString

		err := rows.Scan(
			&row.ID,
			&row.MerchantName,
			&row.OfferTitle,
			&row.FinalAmount,
			&row.DiscountAmount,
			&redeemedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offline transaction: %w", err)
		}

		row.RedeemedAt = parseNullableTime(redeemedAt)
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating offline transactions: %w", err)
	}

	return result, nil
}

func (db *DB) readOnlineRedemptions(ctx context.Context, tx *sql.Tx, studentID string) ([]OnlineRedemptionRow, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT r.id, b.name, o.title, r.code_used, r.status, r.revealed_at, r.created_at
		FROM online_redemptions r
		LEFT JOIN online_brands b ON b.id = r.online_brand_id
		LEFT JOIN online_offers o ON o.id = r.online_offer_id
		WHERE r.student_id = ?
		ORDER BY r.created_at DESC`, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query online redemptions: %w", err)
	}
	defer rows.Close()

	var result []OnlineRedemptionRow
	for rows.Next() {
		var row OnlineRedemptionRow
		var revealedAt, createdAt sql.NullString

		err := rows.Scan(
			&row.ID,
			&row.BrandName,
			&row.OfferTitle,
			&row.CodeUsed,
			&row.Status,
			&revealedAt,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan online redemption: %w", err)
		}

		row.RevealedAt = parseNullableTime(revealedAt)
		row.CreatedAt = parseNullableTime(createdAt)
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating online redemptions: %w", err)
	}

	return result, nil
}

// parseNullableTime parses a nullable RFC3339 text column. Legacy rows can
// hold malformed timestamps; those are treated as absent rather than failing
// the whole read.
func parseNullableTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v.String)
	if err != nil {
		return nil
	}
	return &t
}

// InsertStudent inserts a student row. The admin API itself never writes
// marketplace entities; these inserts exist for fixtures and data imports.
func (db *DB) InsertStudent(s models.Student) error {
	_, err := db.conn.Exec(
		`INSERT INTO students (id, full_name, email, college_id, college, city, state,
			gender, date_of_birth, profile_image_url, status, total_savings, total_redemptions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.FullName, s.Email, s.CollegeID,
		nullIfEmpty(s.College), nullIfEmpty(s.City), nullIfEmpty(s.State),
		nullIfEmpty(s.Gender), nullIfEmpty(s.DateOfBirth), nullIfEmpty(s.ProfileImageURL),
		s.Status, s.TotalSavings, s.TotalRedemptions,
	)
	if err != nil {
		return fmt.Errorf("failed to insert student: %w", err)
	}
	return nil
}

// InsertMerchant inserts a merchant row.
func (db *DB) InsertMerchant(m models.Merchant) error {
	_, err := db.conn.Exec(
		`INSERT INTO merchants (id, name, status) VALUES (?, ?, ?)`,
		m.ID, m.Name, m.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to insert merchant: %w", err)
	}
	return nil
}

// InsertOffer inserts an offer row.
func (db *DB) InsertOffer(o models.Offer) error {
	_, err := db.conn.Exec(
		`INSERT INTO offers (id, merchant_id, title, status, discount_type, discount_value)
		VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, o.MerchantID, o.Title, o.Status, o.DiscountType, o.DiscountValue,
	)
	if err != nil {
		return fmt.Errorf("failed to insert offer: %w", err)
	}
	return nil
}

// InsertTransaction inserts an in-person redemption row.
func (db *DB) InsertTransaction(t models.Transaction) error {
	_, err := db.conn.Exec(
		`INSERT INTO transactions (id, student_id, merchant_id, offer_id,
			final_amount, discount_amount, redeemed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.StudentID, t.MerchantID, t.OfferID,
		t.FinalAmount, t.DiscountAmount, formatNullableTime(t.RedeemedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// InsertOnlineBrand inserts an online brand row.
func (db *DB) InsertOnlineBrand(id, name string) error {
	_, err := db.conn.Exec(`INSERT INTO online_brands (id, name) VALUES (?, ?)`, id, name)
	if err != nil {
		return fmt.Errorf("failed to insert online brand: %w", err)
	}
	return nil
}

// InsertOnlineOffer inserts an online offer row.
func (db *DB) InsertOnlineOffer(id, brandID, title string) error {
	_, err := db.conn.Exec(
		`INSERT INTO online_offers (id, online_brand_id, title) VALUES (?, ?, ?)`,
		id, brandID, title,
	)
	if err != nil {
		return fmt.Errorf("failed to insert online offer: %w", err)
	}
	return nil
}

// InsertOnlineRedemption inserts a code-reveal row.
func (db *DB) InsertOnlineRedemption(r models.OnlineRedemption) error {
	_, err := db.conn.Exec(
		`INSERT INTO online_redemptions (id, student_id, online_brand_id,
			online_offer_id, code_used, status, revealed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StudentID, r.OnlineBrandID, r.OnlineOfferID,
		r.CodeUsed, r.Status, formatNullableTime(r.RevealedAt),
		r.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert online redemption: %w", err)
	}
	return nil
}

func formatNullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
