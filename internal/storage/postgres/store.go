package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // registers the "postgres" driver

	interfaces "github.com/sheikh-saqib/wallet-ledger/internal/interfaces"
	"github.com/sheikh-saqib/wallet-ledger/internal/models"
)

type PostgresLedgerStore struct {
	db *sqlx.DB
}

func NewPostgresLedgerStore(db *sqlx.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{
		db: db,
	}
}

// Open connects to dsn and pings it.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

func (p *PostgresLedgerStore) Accounts() interfaces.AccountStore {
	return &accountRepo{q: p.db}
}

func (p *PostgresLedgerStore) Transactions() interfaces.TransactionLog {
	return &transactionRepo{q: p.db}
}

// WithinTx runs fn inside one SQL transaction. Any error from fn, or from
// the commit itself, rolls everything back.
func (p *PostgresLedgerStore) WithinTx(ctx context.Context, fn interfaces.TxFunc) (err error) {
	dbTx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = dbTx.Rollback()
		}
	}()

	if err = fn(ctx, &accountRepo{q: dbTx}, &transactionRepo{q: dbTx}); err != nil {
		return err
	}
	if err = dbTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type accountRow struct {
	ID        string        `db:"id"`
	Balance   models.Amount `db:"balance"`
	CreatedAt time.Time     `db:"created_at"`
}

func (r accountRow) toModel() models.Account {
	return models.Account{ID: r.ID, Balance: r.Balance, CreatedAt: r.CreatedAt}
}

// accountRepo runs against either the pool or an open transaction.
type accountRepo struct {
	q sqlx.ExtContext
}

func (r *accountRepo) EnsureAccount(ctx context.Context, accountID string, initial models.Amount) (models.Account, error) {
	if accountID == "" {
		return models.Account{}, models.ErrInvalidAccount
	}
	if initial < 0 {
		return models.Account{}, fmt.Errorf("%w: initial balance %s is negative", models.ErrInvalidAmount, initial)
	}

	const insert = `INSERT INTO accounts (id, balance) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`
	if _, err := r.q.ExecContext(ctx, insert, accountID, initial); err != nil {
		return models.Account{}, fmt.Errorf("insert account %s: %w", accountID, err)
	}

	const query = `SELECT id, balance, created_at FROM accounts WHERE id = $1`
	var row accountRow
	if err := sqlx.GetContext(ctx, r.q, &row, query, accountID); err != nil {
		return models.Account{}, fmt.Errorf("load account %s: %w", accountID, err)
	}
	return row.toModel(), nil
}

func (r *accountRepo) GetBalance(ctx context.Context, accountID string) (models.Amount, error) {
	const query = `SELECT balance FROM accounts WHERE id = $1`

	var balance models.Amount
	err := sqlx.GetContext(ctx, r.q, &balance, query, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", models.ErrAccountNotFound, accountID)
	}
	if err != nil {
		return 0, fmt.Errorf("get balance %s: %w", accountID, err)
	}
	return balance, nil
}

func (r *accountRepo) Credit(ctx context.Context, accountID string, amount models.Amount) error {
	if amount <= 0 {
		return models.ErrInvalidAmount
	}
	const query = `UPDATE accounts SET balance = balance + $1 WHERE id = $2`

	res, err := r.q.ExecContext(ctx, query, amount, accountID)
	if err != nil {
		return fmt.Errorf("credit %s: %w", accountID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("credit %s: %w", accountID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", models.ErrAccountNotFound, accountID)
	}
	return nil
}

// Debit only matches when the balance covers the amount; zero rows means
// either a missing account or insufficient funds.
func (r *accountRepo) Debit(ctx context.Context, accountID string, amount models.Amount) error {
	if amount <= 0 {
		return models.ErrInvalidAmount
	}
	const query = `UPDATE accounts SET balance = balance - $1 WHERE id = $2 AND balance >= $1`

	res, err := r.q.ExecContext(ctx, query, amount, accountID)
	if err != nil {
		return fmt.Errorf("debit %s: %w", accountID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit %s: %w", accountID, err)
	}
	if n == 0 {
		if _, err := r.GetBalance(ctx, accountID); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", models.ErrInsufficientFunds, accountID)
	}
	return nil
}

func (r *accountRepo) ListAccounts(ctx context.Context) ([]models.Account, error) {
	const query = `SELECT id, balance, created_at FROM accounts ORDER BY id`

	var rows []accountRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, query); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]models.Account, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

type transactionRow struct {
	ID          uint64        `db:"id"`
	SenderID    string        `db:"sender_id"`
	RecipientID string        `db:"recipient_id"`
	Amount      models.Amount `db:"amount"`
	Status      string        `db:"status"`
	CreatedAt   time.Time     `db:"created_at"`
}

func (r transactionRow) toModel() models.Transaction {
	return models.Transaction{
		ID:          r.ID,
		SenderID:    r.SenderID,
		RecipientID: r.RecipientID,
		Amount:      r.Amount,
		Status:      models.TransactionStatus(r.Status),
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

type transactionRepo struct {
	q sqlx.ExtContext
}

// Append inserts the transaction and its two ledger entries. Outside
// WithinTx the three inserts are not atomic, so the ledger only appends
// through a unit of work.
func (r *transactionRepo) Append(ctx context.Context, senderID, recipientID string, amount models.Amount) (models.Transaction, error) {
	const insert = `INSERT INTO transactions (sender_id, recipient_id, amount, status)
	VALUES ($1, $2, $3, $4) RETURNING id, created_at`

	tx := models.Transaction{
		SenderID:    senderID,
		RecipientID: recipientID,
		Amount:      amount,
		Status:      models.StatusCommitted,
	}
	if err := r.q.QueryRowxContext(ctx, insert, senderID, recipientID, amount, string(tx.Status)).Scan(&tx.ID, &tx.CreatedAt); err != nil {
		return models.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	tx.CreatedAt = tx.CreatedAt.UTC()

	debit, credit := models.Postings(tx)
	for _, entry := range []models.LedgerEntry{debit, credit} {
		if err := r.saveEntry(ctx, entry); err != nil {
			return models.Transaction{}, err
		}
	}
	return tx, nil
}

func (r *transactionRepo) saveEntry(ctx context.Context, entry models.LedgerEntry) error {
	const query = `INSERT INTO ledger_entries (transaction_id, account_id, amount, created_at)
	VALUES ($1, $2, $3, $4)`

	_, err := r.q.ExecContext(ctx, query, entry.TransactionID, entry.AccountID, entry.Amount, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert ledger entry for %s: %w", entry.AccountID, err)
	}
	return nil
}

func (r *transactionRepo) ListByAccount(ctx context.Context, accountID string) ([]models.Transaction, error) {
	const query = `SELECT id, sender_id, recipient_id, amount, status, created_at FROM transactions
	WHERE sender_id = $1 OR recipient_id = $1 ORDER BY id`

	var rows []transactionRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, query, accountID); err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", accountID, err)
	}
	out := make([]models.Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

func (r *transactionRepo) Get(ctx context.Context, transactionID uint64) (models.Transaction, error) {
	const query = `SELECT id, sender_id, recipient_id, amount, status, created_at FROM transactions
	WHERE id = $1`

	var row transactionRow
	err := sqlx.GetContext(ctx, r.q, &row, query, transactionID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Transaction{}, fmt.Errorf("%w: %d", models.ErrTransactionNotFound, transactionID)
	}
	if err != nil {
		return models.Transaction{}, fmt.Errorf("get transaction %d: %w", transactionID, err)
	}
	return row.toModel(), nil
}

var (
	_ interfaces.LedgerStore    = (*PostgresLedgerStore)(nil)
	_ interfaces.AccountStore   = (*accountRepo)(nil)
	_ interfaces.TransactionLog = (*transactionRepo)(nil)
)
