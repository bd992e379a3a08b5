package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/loanledger/pkg/models"

	_ "github.com/mattn/go-sqlite3"
)

const dateLayout = "2006-01-02"

const contractColumns = `id, customer_key, principal_amount, interest_rate, interest_mode, payment_type,
	installment_count, installment_value, installment_due_dates, start_date, due_date,
	stored_total_interest, outstanding_balance, total_paid, annotation, status,
	skip_saturday, skip_sunday, skip_holidays, created_at, updated_at`

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// NewSQLiteStore creates a new SQLiteStore and initializes the database.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	// PRAGMAs are per connection; a single connection keeps foreign keys enforced.
	db.SetMaxOpenConns(1)

	if _, err = db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err = db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	slog.Info("database ready", "source", dataSourceName)
	return s, nil
}

// initSchema creates the tables and adds columns introduced after the first release.
// Money is stored as TEXT so no precision is lost.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		customer_key TEXT NOT NULL,
		principal_amount TEXT NOT NULL,
		interest_rate TEXT NOT NULL,
		interest_mode TEXT NOT NULL,
		payment_type TEXT NOT NULL,
		installment_count INTEGER NOT NULL DEFAULT 1,
		installment_due_dates TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL DEFAULT '',
		due_date TEXT NOT NULL DEFAULT '',
		stored_total_interest TEXT,
		outstanding_balance TEXT NOT NULL,
		total_paid TEXT NOT NULL DEFAULT '0',
		annotation TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		contract_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		type TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		FOREIGN KEY(contract_id) REFERENCES contracts(id)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	migrations := []struct{ table, column string }{
		{"contracts", "installment_value TEXT NOT NULL DEFAULT '0'"},
		{"contracts", "skip_saturday INTEGER NOT NULL DEFAULT 0"},
		{"contracts", "skip_sunday INTEGER NOT NULL DEFAULT 0"},
		{"contracts", "skip_holidays INTEGER NOT NULL DEFAULT 0"},
		{"transactions", "principal_amount TEXT NOT NULL DEFAULT '0'"},
		{"transactions", "interest_amount TEXT NOT NULL DEFAULT '0'"},
	}
	for _, m := range migrations {
		_, err := s.db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", m.table, m.column))
		if err != nil && !isDuplicateColumnError(err) {
			return fmt.Errorf("failed to add column %s.%s: %w", m.table, m.column, err)
		}
	}
	return nil
}

func isDuplicateColumnError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "duplicate column name")
}

// CreateContract inserts a new contract into the database.
func (s *SQLiteStore) CreateContract(c *models.Contract) error {
	_, err := s.db.Exec(
		`INSERT INTO contracts (`+contractColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID.String(), c.CustomerKey, c.PrincipalAmount, c.InterestRate, c.InterestMode, c.PaymentType,
		c.InstallmentCount, c.InstallmentValue, joinDates(c.InstallmentDueDates), formatDate(c.StartDate), formatDate(c.DueDate),
		c.StoredTotalInterest, c.OutstandingBalance, c.TotalPaid, c.Annotation, c.Status,
		c.SkipSaturday, c.SkipSunday, c.SkipHolidays, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create contract: %w", err)
	}
	return nil
}

// GetContract retrieves a contract by its ID.
func (s *SQLiteStore) GetContract(id uuid.UUID) (*models.Contract, error) {
	row := s.db.QueryRow(`SELECT `+contractColumns+` FROM contracts WHERE id = ?`, id.String())
	c, err := scanContract(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}
	return c, nil
}

// UpdateContract updates an existing contract in the database.
func (s *SQLiteStore) UpdateContract(c *models.Contract) error {
	return updateContract(s.db, c)
}

func updateContract(db execer, c *models.Contract) error {
	result, err := db.Exec(
		`UPDATE contracts SET customer_key = ?, principal_amount = ?, interest_rate = ?, interest_mode = ?, payment_type = ?,
		installment_count = ?, installment_value = ?, installment_due_dates = ?, start_date = ?, due_date = ?,
		stored_total_interest = ?, outstanding_balance = ?, total_paid = ?, annotation = ?, status = ?,
		skip_saturday = ?, skip_sunday = ?, skip_holidays = ?, updated_at = ? WHERE id = ?`,
		c.CustomerKey, c.PrincipalAmount, c.InterestRate, c.InterestMode, c.PaymentType,
		c.InstallmentCount, c.InstallmentValue, joinDates(c.InstallmentDueDates), formatDate(c.StartDate), formatDate(c.DueDate),
		c.StoredTotalInterest, c.OutstandingBalance, c.TotalPaid, c.Annotation, c.Status,
		c.SkipSaturday, c.SkipSunday, c.SkipHolidays, c.UpdatedAt, c.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update contract: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveMutation updates the contract and records its audit transaction in one database transaction.
func (s *SQLiteStore) SaveMutation(c *models.Contract, transaction *models.Transaction) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := updateContract(tx, c); err != nil {
		return err
	}
	if transaction != nil {
		if err := createTransaction(tx, transaction); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DeleteContract removes a contract and its transactions from the database within a transaction.
func (s *SQLiteStore) DeleteContract(id uuid.UUID) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err = tx.Exec(`DELETE FROM transactions WHERE contract_id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete associated transactions: %w", err)
	}

	result, err := tx.Exec(`DELETE FROM contracts WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete contract: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// GetAllContracts retrieves all contracts.
func (s *SQLiteStore) GetAllContracts() ([]*models.Contract, error) {
	rows, err := s.db.Query(`SELECT ` + contractColumns + ` FROM contracts ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all contracts: %w", err)
	}
	defer rows.Close()
	return scanContracts(rows)
}

// GetActiveContracts retrieves every contract not yet paid.
func (s *SQLiteStore) GetActiveContracts() ([]*models.Contract, error) {
	rows, err := s.db.Query(`SELECT `+contractColumns+` FROM contracts WHERE status = ? ORDER BY created_at ASC`, models.ContractStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to get active contracts: %w", err)
	}
	defer rows.Close()
	return scanContracts(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContract(row scanner) (*models.Contract, error) {
	var c models.Contract
	var id, dueDates, start, due string
	err := row.Scan(&id, &c.CustomerKey, &c.PrincipalAmount, &c.InterestRate, &c.InterestMode, &c.PaymentType,
		&c.InstallmentCount, &c.InstallmentValue, &dueDates, &start, &due,
		&c.StoredTotalInterest, &c.OutstandingBalance, &c.TotalPaid, &c.Annotation, &c.Status,
		&c.SkipSaturday, &c.SkipSunday, &c.SkipHolidays, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if c.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid contract id %q: %w", id, err)
	}
	c.InstallmentDueDates = splitDates(dueDates)
	c.StartDate = parseDate(start)
	c.DueDate = parseDate(due)
	return &c, nil
}

func scanContracts(rows *sql.Rows) ([]*models.Contract, error) {
	var contracts []*models.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contract row: %w", err)
		}
		contracts = append(contracts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return contracts, nil
}

// CreateTransaction inserts a new transaction into the database.
func (s *SQLiteStore) CreateTransaction(transaction *models.Transaction) error {
	return createTransaction(s.db, transaction)
}

func createTransaction(db execer, t *models.Transaction) error {
	_, err := db.Exec(
		`INSERT INTO transactions (id, contract_id, amount, principal_amount, interest_amount, type, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.ContractID.String(), t.Amount, t.PrincipalAmount, t.InterestAmount, t.Type, t.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// GetTransactionsForContract retrieves all transactions for a contract, oldest first.
func (s *SQLiteStore) GetTransactionsForContract(contractID uuid.UUID) ([]*models.Transaction, error) {
	rows, err := s.db.Query(`SELECT id, contract_id, amount, principal_amount, interest_amount, type, timestamp
		FROM transactions WHERE contract_id = ? ORDER BY timestamp ASC`, contractID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions for contract %s: %w", contractID, err)
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		var t models.Transaction
		var txID, cID string
		if err := rows.Scan(&txID, &cID, &t.Amount, &t.PrincipalAmount, &t.InterestAmount, &t.Type, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		t.ID = uuid.MustParse(txID)
		t.ContractID = uuid.MustParse(cID)
		transactions = append(transactions, &t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for contract transactions: %w", err)
	}
	return transactions, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func parseDate(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func joinDates(dates []time.Time) string {
	parts := make([]string, len(dates))
	for i, d := range dates {
		parts[i] = formatDate(d)
	}
	return strings.Join(parts, ",")
}

func splitDates(s string) []time.Time {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	dates := make([]time.Time, 0, len(parts))
	for _, p := range parts {
		dates = append(dates, parseDate(p))
	}
	return dates
}
