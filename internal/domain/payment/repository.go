package payment

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

const paymentColumns = `
	id, appointment_id, patient_id, doctor_id, method,
	base_amount, gst_amount, total_amount,
	commission_rate, doctor_share, platform_fee,
	status, gateway_payment_id, captured_at,
	refund_amount, refund_percent, refund_initiator, refund_reason, gateway_refund_id, refunded_at,
	created_at, updated_at`

// Create inserts a pending payment. The unique index on appointment_id turns
// a second payment for the same appointment into ErrDuplicateAppointment.
func (r *Repository) Create(ctx context.Context, p *Payment) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = StatusPending
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO payments (id, appointment_id, patient_id, doctor_id, method,
			base_amount, gst_amount, total_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, p.ID, p.AppointmentID, p.PatientID, p.DoctorID, p.Method,
		p.BaseAmount, p.GSTAmount, p.TotalAmount, p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateAppointment
		}
		return fmt.Errorf("%w: create payment", ErrInternal)
	}
	return nil
}

// Get returns a payment by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Payment, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p Payment
	err := r.db.GetContext(ctx2, &p, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get payment", ErrInternal)
	}
	return &p, nil
}

// GetByAppointment returns the payment for an appointment.
func (r *Repository) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Payment, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p Payment
	err := r.db.GetContext(ctx2, &p, `SELECT `+paymentColumns+` FROM payments WHERE appointment_id = $1`, appointmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get payment by appointment", ErrInternal)
	}
	return &p, nil
}

// MarkCapturedTx flips a pending payment to captured and stores the split
// snapshot. The conditional guard makes replayed capture events a no-op.
func (r *Repository) MarkCapturedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, gatewayPaymentID string, commissionRate int, doctorShare, platformFee int64) (bool, error) {
	result, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = 'captured',
		    gateway_payment_id = $2,
		    commission_rate = $3,
		    doctor_share = $4,
		    platform_fee = $5,
		    captured_at = now(),
		    updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id, gatewayPaymentID, commissionRate, doctorShare, platformFee)
	if err != nil {
		return false, fmt.Errorf("%w: mark payment captured", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected", ErrInternal)
	}
	return rows > 0, nil
}

// MarkRefundedTx flips a captured payment to refunded and stores the refund
// record. One refund per payment: the guard rejects the second attempt.
func (r *Repository) MarkRefundedTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, amount int64, percent int, initiator Initiator, reason, gatewayRefundID string) (bool, error) {
	result, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET status = 'refunded',
		    refund_amount = $2,
		    refund_percent = $3,
		    refund_initiator = $4,
		    refund_reason = $5,
		    gateway_refund_id = NULLIF($6, ''),
		    refunded_at = now(),
		    updated_at = now()
		WHERE id = $1 AND status = 'captured'
	`, id, amount, percent, initiator, reason, gatewayRefundID)
	if err != nil {
		return false, fmt.Errorf("%w: mark payment refunded", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected", ErrInternal)
	}
	return rows > 0, nil
}

// MarkFailed abandons a pending payment that will never be captured.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		UPDATE payments SET status = 'failed', updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return fmt.Errorf("%w: mark payment failed", ErrInternal)
	}
	return nil
}

// ListByPatient returns the patient's payment history, newest first.
func (r *Repository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Payment, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	payments := make([]Payment, 0)
	err := r.db.SelectContext(ctx2, &payments, `
		SELECT `+paymentColumns+` FROM payments
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list payments", ErrInternal)
	}
	return payments, nil
}
