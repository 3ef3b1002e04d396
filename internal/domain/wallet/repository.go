package wallet

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/carebook/carebook-api/internal/pkg/database"
)

const queryTimeout = 3 * time.Second

// DefaultCommissionRate applies to wallets created lazily on first credit.
const DefaultCommissionRate = 20

// Repository owns doctor_wallets and the append-only ledger_transactions
// table. Per-doctor mutations are serialized through a FOR UPDATE lock on
// the wallet row, and every balance change appends a ledger row in the same
// transaction.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// EnsureWallet creates the doctor's wallet if it does not exist yet.
func (r *Repository) EnsureWallet(ctx context.Context, doctorID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO doctor_wallets (doctor_id, commission_rate)
		VALUES ($1, $2)
		ON CONFLICT (doctor_id) DO NOTHING
	`, doctorID, DefaultCommissionRate)
	return err
}

// Get returns the doctor's wallet, creating it lazily.
func (r *Repository) Get(ctx context.Context, doctorID uuid.UUID) (*Wallet, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if err := r.EnsureWallet(ctx2, doctorID); err != nil {
		return nil, fmt.Errorf("%w: ensure wallet", ErrInternal)
	}

	var w Wallet
	if err := r.db.GetContext(ctx2, &w, `
		SELECT doctor_id, current_balance, total_earned, total_withdrawn, total_spent,
		       commission_rate, last_payment_at, last_withdrawal_at, updated_at
		FROM doctor_wallets
		WHERE doctor_id = $1
	`, doctorID); err != nil {
		return nil, fmt.Errorf("%w: get wallet", ErrInternal)
	}
	return &w, nil
}

// LockWallet creates the wallet row if needed and locks it FOR UPDATE so
// that concurrent credits and debits for the same doctor serialize.
func (r *Repository) LockWallet(ctx context.Context, tx *sqlx.Tx, doctorID uuid.UUID) (*Wallet, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO doctor_wallets (doctor_id, commission_rate)
		VALUES ($1, $2)
		ON CONFLICT (doctor_id) DO NOTHING
	`, doctorID, DefaultCommissionRate); err != nil {
		return nil, fmt.Errorf("%w: ensure wallet", ErrInternal)
	}

	var w Wallet
	if err := tx.GetContext(ctx, &w, `
		SELECT doctor_id, current_balance, total_earned, total_withdrawn, total_spent,
		       commission_rate, last_payment_at, last_withdrawal_at, updated_at
		FROM doctor_wallets
		WHERE doctor_id = $1
		FOR UPDATE
	`, doctorID); err != nil {
		return nil, fmt.Errorf("%w: lock wallet", ErrInternal)
	}
	return &w, nil
}

// Credit atomically credits the doctor's wallet and appends a completed
// doctor_credit ledger row.
func (r *Repository) Credit(ctx context.Context, doctorID uuid.UUID, amount int64, ref Reference, notes string) (*Transaction, error) {
	var out *Transaction
	err := database.WithinTx(ctx, r.db, func(tx *sqlx.Tx) error {
		t, err := r.CreditTx(ctx, tx, doctorID, amount, ref, notes)
		if err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreditTx is Credit within an external transaction. Used when the credit
// must be atomic with another operation (e.g. releasing an upcoming earning).
func (r *Repository) CreditTx(ctx context.Context, tx *sqlx.Tx, doctorID uuid.UUID, amount int64, ref Reference, notes string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	if _, err := r.LockWallet(ctx, tx, doctorID); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE doctor_wallets
		SET current_balance = current_balance + $2,
		    total_earned = total_earned + $2,
		    last_payment_at = now(),
		    updated_at = now()
		WHERE doctor_id = $1
	`, doctorID, amount); err != nil {
		return nil, fmt.Errorf("%w: update wallet balance", ErrInternal)
	}

	t := &Transaction{
		UserID: doctorID,
		Type:   TxTypeDoctorCredit,
		Amount: amount,
		Status: TxStatusCompleted,
		Notes:  notes,
	}
	t.SetReference(ref)
	if err := r.InsertTransactionTx(ctx, tx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// DebitForWithdrawalTx moves balance out of the wallet for a withdrawal.
// Fails with ErrInsufficientBalance without partial application; the caller's
// transaction aborts as a whole.
func (r *Repository) DebitForWithdrawalTx(ctx context.Context, tx *sqlx.Tx, doctorID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	w, err := r.LockWallet(ctx, tx, doctorID)
	if err != nil {
		return err
	}
	if w.CurrentBalance < amount {
		return ErrInsufficientBalance
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE doctor_wallets
		SET current_balance = current_balance - $2,
		    total_withdrawn = total_withdrawn + $2,
		    last_withdrawal_at = now(),
		    updated_at = now()
		WHERE doctor_id = $1
	`, doctorID, amount); err != nil {
		return fmt.Errorf("%w: update wallet balance", ErrInternal)
	}
	return nil
}

// DebitForSpendTx charges the wallet for a platform purchase (coins,
// paid services) and appends the matching negative ledger row.
func (r *Repository) DebitForSpendTx(ctx context.Context, tx *sqlx.Tx, doctorID uuid.UUID, amount int64, txType TransactionType, ref Reference, notes string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if txType != TxTypeCoinPurchase && txType != TxTypeServicePayment {
		return nil, fmt.Errorf("%w: unsupported spend type %q", ErrInternal, txType)
	}

	w, err := r.LockWallet(ctx, tx, doctorID)
	if err != nil {
		return nil, err
	}
	if w.CurrentBalance < amount {
		return nil, ErrInsufficientBalance
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE doctor_wallets
		SET current_balance = current_balance - $2,
		    total_spent = total_spent + $2,
		    updated_at = now()
		WHERE doctor_id = $1
	`, doctorID, amount); err != nil {
		return nil, fmt.Errorf("%w: update wallet balance", ErrInternal)
	}

	t := &Transaction{
		UserID: doctorID,
		Type:   txType,
		Amount: -amount,
		Status: TxStatusCompleted,
		Notes:  notes,
	}
	t.SetReference(ref)
	if err := r.InsertTransactionTx(ctx, tx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// InsertTransactionTx appends a ledger row. The unique index over
// (type, reference) turns duplicate financial events into
// ErrDuplicateReference, which survives process restarts.
func (r *Repository) InsertTransactionTx(ctx context.Context, tx *sqlx.Tx, t *Transaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = TxStatusCompleted
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_transactions (id, user_id, type, amount, reference_type, reference_id, status, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, t.ID, t.UserID, t.Type, t.Amount, t.ReferenceType, t.ReferenceID, t.Status, t.Notes, t.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateReference
		}
		return fmt.Errorf("%w: insert transaction", ErrInternal)
	}
	return nil
}

// UpdateTransactionStatusTx advances a non-completed ledger row. Completed
// rows are immutable, so the guard excludes them.
func (r *Repository) UpdateTransactionStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status TransactionStatus) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE ledger_transactions
		SET status = $2
		WHERE id = $1 AND status NOT IN ('completed', 'failed')
	`, id, status)
	if err != nil {
		return fmt.Errorf("%w: update transaction status", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// GetTransaction returns a ledger row by id.
func (r *Repository) GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var t Transaction
	err := r.db.GetContext(ctx2, &t, `
		SELECT id, user_id, type, amount, reference_type, reference_id, status, notes, created_at
		FROM ledger_transactions
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get transaction", ErrInternal)
	}
	return &t, nil
}

// ListUnclaimedCredits returns completed doctor_credit rows that no live
// withdrawal has claimed. Claims of rejected withdrawals are released, so
// absence from withdrawal_claims is the claimability test.
func (r *Repository) ListUnclaimedCredits(ctx context.Context, doctorID uuid.UUID) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	transactions := make([]Transaction, 0)
	err := r.db.SelectContext(ctx2, &transactions, `
		SELECT t.id, t.user_id, t.type, t.amount, t.reference_type, t.reference_id, t.status, t.notes, t.created_at
		FROM ledger_transactions t
		WHERE t.user_id = $1
		  AND t.type = 'doctor_credit'
		  AND t.status = 'completed'
		  AND NOT EXISTS (
			SELECT 1 FROM withdrawal_claims c WHERE c.transaction_id = t.id
		  )
		ORDER BY t.created_at ASC
	`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("%w: list unclaimed credits", ErrInternal)
	}
	return transactions, nil
}

// ListClaimableByIDsTx resolves a claim candidate set inside the caller's
// transaction: completed, unclaimed doctor_credit rows owned by the doctor.
func (r *Repository) ListClaimableByIDsTx(ctx context.Context, tx *sqlx.Tx, doctorID uuid.UUID, ids []uuid.UUID) ([]Transaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT t.id, t.user_id, t.type, t.amount, t.reference_type, t.reference_id, t.status, t.notes, t.created_at
		FROM ledger_transactions t
		WHERE t.user_id = ?
		  AND t.id IN (?)
		  AND t.type = 'doctor_credit'
		  AND t.status = 'completed'
		  AND NOT EXISTS (
			SELECT 1 FROM withdrawal_claims c WHERE c.transaction_id = t.id
		  )
	`, doctorID, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: build claimable query", ErrInternal)
	}
	query = tx.Rebind(query)

	transactions := make([]Transaction, 0, len(ids))
	if err := tx.SelectContext(ctx, &transactions, query, args...); err != nil {
		return nil, fmt.Errorf("%w: list claimable credits", ErrInternal)
	}
	return transactions, nil
}

// ListByUser returns paginated transaction history for a user.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, pagination Pagination) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	limit := pagination.Limit
	if limit <= 0 {
		limit = 20
	}

	transactions := make([]Transaction, 0)
	err := r.db.SelectContext(ctx2, &transactions, `
		SELECT id, user_id, type, amount, reference_type, reference_id, status, notes, created_at
		FROM ledger_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, pagination.Offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions", ErrInternal)
	}
	return transactions, nil
}

// Search returns filtered transactions (admin use).
func (r *Repository) Search(ctx context.Context, filters SearchFilters) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	base := `
		SELECT id, user_id, type, amount, reference_type, reference_id, status, notes, created_at
		FROM ledger_transactions
		WHERE 1=1`
	args := make([]interface{}, 0, 8)
	idx := 1

	if filters.UserID != nil {
		base += fmt.Sprintf(" AND user_id = $%d", idx)
		args = append(args, *filters.UserID)
		idx++
	}
	if filters.Type != nil && *filters.Type != "" {
		base += fmt.Sprintf(" AND type = $%d", idx)
		args = append(args, *filters.Type)
		idx++
	}
	if filters.Status != nil && *filters.Status != "" {
		base += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, *filters.Status)
		idx++
	}
	if filters.ReferenceType != nil && *filters.ReferenceType != "" {
		base += fmt.Sprintf(" AND reference_type = $%d", idx)
		args = append(args, *filters.ReferenceType)
		idx++
	}
	if filters.ReferenceID != nil {
		base += fmt.Sprintf(" AND reference_id = $%d", idx)
		args = append(args, *filters.ReferenceID)
		idx++
	}
	if filters.DateFrom != nil {
		base += fmt.Sprintf(" AND created_at >= $%d", idx)
		args = append(args, *filters.DateFrom)
		idx++
	}
	if filters.DateTo != nil {
		base += fmt.Sprintf(" AND created_at <= $%d", idx)
		args = append(args, *filters.DateTo)
		idx++
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	base = strings.TrimSpace(base) + fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, filters.Offset)

	transactions := make([]Transaction, 0)
	if err := r.db.SelectContext(ctx2, &transactions, base, args...); err != nil {
		return nil, fmt.Errorf("%w: search transactions", ErrInternal)
	}
	return transactions, nil
}

// CommissionRate reads the doctor's current rate, creating the wallet lazily.
func (r *Repository) CommissionRate(ctx context.Context, doctorID uuid.UUID) (int, error) {
	w, err := r.Get(ctx, doctorID)
	if err != nil {
		return 0, err
	}
	return w.CommissionRate, nil
}

// SetCommissionRate updates the doctor's rate. Affects future captures only;
// already-opened earnings keep their snapshotted amounts.
func (r *Repository) SetCommissionRate(ctx context.Context, doctorID uuid.UUID, rate int) error {
	if rate < 0 || rate > 100 {
		return ErrInvalidCommissionRate
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if err := r.EnsureWallet(ctx2, doctorID); err != nil {
		return fmt.Errorf("%w: ensure wallet", ErrInternal)
	}
	if _, err := r.db.ExecContext(ctx2, `
		UPDATE doctor_wallets SET commission_rate = $2, updated_at = now() WHERE doctor_id = $1
	`, doctorID, rate); err != nil {
		return fmt.Errorf("%w: set commission rate", ErrInternal)
	}
	return nil
}
