package withdrawal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/carebook/carebook-api/internal/pkg/database"
)

const queryTimeout = 3 * time.Second

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const withdrawalColumns = `
	id, doctor_id, hospital_id, amount, method, status, request_tx_id,
	reject_reason, otp_hash, otp_expires_at,
	approved_by, hospital_payment_reference, hospital_payment_proof,
	doctor_payment_reference, doctor_payment_proof, settled_by, verified_by,
	approved_at, hospital_paid_at, otp_verified_at, completed_at, rejected_at,
	created_at, updated_at`

// CreateTx inserts a new pending withdrawal inside the caller's transaction.
func (r *Repository) CreateTx(ctx context.Context, tx *sqlx.Tx, w *Withdrawal) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.Status == "" {
		w.Status = StatusPending
	}
	now := time.Now()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now

	_, err := tx.ExecContext(ctx, `
		INSERT INTO withdrawals (id, doctor_id, hospital_id, amount, method, status, request_tx_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, w.ID, w.DoctorID, w.HospitalID, w.Amount, w.Method, w.Status, w.RequestTxID, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: create withdrawal", ErrInternal)
	}
	return nil
}

// InsertClaimTx reserves one credit row for the withdrawal. A unique index
// on transaction_id turns a concurrent double claim into
// ErrCreditAlreadyClaimed.
func (r *Repository) InsertClaimTx(ctx context.Context, tx *sqlx.Tx, withdrawalID, transactionID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO withdrawal_claims (withdrawal_id, transaction_id, created_at)
		VALUES ($1, $2, now())
	`, withdrawalID, transactionID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrCreditAlreadyClaimed
		}
		return fmt.Errorf("%w: insert claim", ErrInternal)
	}
	return nil
}

// DeleteClaimsTx frees all credits claimed by a rejected withdrawal.
func (r *Repository) DeleteClaimsTx(ctx context.Context, tx *sqlx.Tx, withdrawalID uuid.UUID) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM withdrawal_claims WHERE withdrawal_id = $1
	`, withdrawalID); err != nil {
		return fmt.Errorf("%w: delete claims", ErrInternal)
	}
	return nil
}

// ListClaims returns the credit rows a withdrawal claimed.
func (r *Repository) ListClaims(ctx context.Context, withdrawalID uuid.UUID) ([]Claim, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	claims := make([]Claim, 0)
	err := r.db.SelectContext(ctx2, &claims, `
		SELECT withdrawal_id, transaction_id, created_at
		FROM withdrawal_claims
		WHERE withdrawal_id = $1
	`, withdrawalID)
	if err != nil {
		return nil, fmt.Errorf("%w: list claims", ErrInternal)
	}
	return claims, nil
}

// Get returns a withdrawal by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Withdrawal, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var w Withdrawal
	err := r.db.GetContext(ctx2, &w, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get withdrawal", ErrInternal)
	}
	return &w, nil
}

// TransitionTx advances the state machine with a compare-and-set on status.
// Zero rows means another actor moved the withdrawal first; the caller maps
// that to ErrStateConflict. Each target state stamps its own timestamp.
func (r *Repository) TransitionTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, from, to Status) (bool, error) {
	var stamp string
	switch to {
	case StatusAdminApproved:
		stamp = ", approved_at = now()"
	case StatusHospitalPaid:
		stamp = ", hospital_paid_at = now()"
	case StatusDoctorOTPVerified:
		stamp = ", otp_verified_at = now()"
	case StatusCompleted:
		stamp = ", completed_at = now()"
	case StatusRejected:
		stamp = ", rejected_at = now()"
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE withdrawals SET status = $3, updated_at = now()`+stamp+`
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return false, fmt.Errorf("%w: transition withdrawal", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected", ErrInternal)
	}
	return rows > 0, nil
}

// SetApprovedByTx records which admin signed off on the withdrawal.
func (r *Repository) SetApprovedByTx(ctx context.Context, tx *sqlx.Tx, id, adminID uuid.UUID) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE withdrawals SET approved_by = $2, updated_at = now() WHERE id = $1
	`, id, adminID); err != nil {
		return fmt.Errorf("%w: set approved by", ErrInternal)
	}
	return nil
}

// SetHospitalTransferProofTx records the platform-to-hospital bank transfer
// reference and optional proof document.
func (r *Repository) SetHospitalTransferProofTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, reference, proof string) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE withdrawals
		SET hospital_payment_reference = $2, hospital_payment_proof = NULLIF($3, ''), updated_at = now()
		WHERE id = $1
	`, id, reference, proof); err != nil {
		return fmt.Errorf("%w: set hospital transfer proof", ErrInternal)
	}
	return nil
}

// SetDoctorPaymentProofTx records the hospital-to-doctor payout reference,
// optional proof, and the hospital user who settled it.
func (r *Repository) SetDoctorPaymentProofTx(ctx context.Context, tx *sqlx.Tx, id, settledBy uuid.UUID, reference, proof string) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE withdrawals
		SET doctor_payment_reference = $2, doctor_payment_proof = NULLIF($3, ''), settled_by = $4, updated_at = now()
		WHERE id = $1
	`, id, reference, proof, settledBy); err != nil {
		return fmt.Errorf("%w: set doctor payment proof", ErrInternal)
	}
	return nil
}

// SetVerifiedByTx records the doctor's final receipt confirmation.
func (r *Repository) SetVerifiedByTx(ctx context.Context, tx *sqlx.Tx, id, doctorID uuid.UUID) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE withdrawals SET verified_by = $2, updated_at = now() WHERE id = $1
	`, id, doctorID); err != nil {
		return fmt.Errorf("%w: set verified by", ErrInternal)
	}
	return nil
}

// SetRejectReasonTx records why a withdrawal was rejected.
func (r *Repository) SetRejectReasonTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, reason string) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE withdrawals SET reject_reason = $2, updated_at = now() WHERE id = $1
	`, id, reason); err != nil {
		return fmt.Errorf("%w: set reject reason", ErrInternal)
	}
	return nil
}

// SetOTP stores a fresh code hash, overwriting any previous one. Issuing a
// new code invalidates the old one by construction.
func (r *Repository) SetOTP(ctx context.Context, id uuid.UUID, hash string, expiresAt time.Time) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE withdrawals SET otp_hash = $2, otp_expires_at = $3, updated_at = now()
		WHERE id = $1 AND status = 'hospital_payment_completed'
	`, id, hash, expiresAt)
	if err != nil {
		return fmt.Errorf("%w: set otp", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrStateConflict
	}
	return nil
}

// ListByDoctor returns the doctor's withdrawals, newest first.
func (r *Repository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Withdrawal, error) {
	return r.list(ctx, `WHERE doctor_id = $1`, doctorID, limit, offset)
}

// ListByHospital returns a hospital's withdrawals, newest first.
func (r *Repository) ListByHospital(ctx context.Context, hospitalID uuid.UUID, limit, offset int) ([]Withdrawal, error) {
	return r.list(ctx, `WHERE hospital_id = $1`, hospitalID, limit, offset)
}

// ListByStatus returns withdrawals in one state for the admin queue.
func (r *Repository) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]Withdrawal, error) {
	return r.list(ctx, `WHERE status = $1`, status, limit, offset)
}

func (r *Repository) list(ctx context.Context, where string, arg interface{}, limit, offset int) ([]Withdrawal, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	withdrawals := make([]Withdrawal, 0)
	err := r.db.SelectContext(ctx2, &withdrawals, `
		SELECT `+withdrawalColumns+` FROM withdrawals
		`+where+`
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, arg, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list withdrawals", ErrInternal)
	}
	return withdrawals, nil
}
