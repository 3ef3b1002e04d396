package earnings

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

// Create opens a pending earning. The unique index on appointment_id makes
// a second open for the same appointment fail with ErrDuplicateAppointment.
func (r *Repository) Create(ctx context.Context, e *UpcomingEarning) error {
	return r.CreateTx(ctx, nil, e)
}

// CreateTx is Create within an optional external transaction.
func (r *Repository) CreateTx(ctx context.Context, tx *sqlx.Tx, e *UpcomingEarning) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = StatusPending
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO upcoming_earnings (id, doctor_id, appointment_id, payment_id, amount, status, appointment_time, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	args := []interface{}{e.ID, e.DoctorID, e.AppointmentID, e.PaymentID, e.Amount, e.Status, e.AppointmentTime, e.CreatedAt}

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
		defer cancel()
		_, err = r.db.ExecContext(ctx2, query, args...)
	}
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateAppointment
		}
		return fmt.Errorf("%w: create upcoming earning", ErrInternal)
	}
	return nil
}

// GetByAppointment returns the earning opened for an appointment.
func (r *Repository) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*UpcomingEarning, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var e UpcomingEarning
	err := r.db.GetContext(ctx2, &e, `
		SELECT id, doctor_id, appointment_id, payment_id, amount, status, appointment_time, released_at, cancelled_at, created_at
		FROM upcoming_earnings
		WHERE appointment_id = $1
	`, appointmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get upcoming earning", ErrInternal)
	}
	return &e, nil
}

// getByAppointmentTx reads the earning inside the caller's transaction.
func (r *Repository) getByAppointmentTx(ctx context.Context, tx *sqlx.Tx, appointmentID uuid.UUID) (*UpcomingEarning, error) {
	var e UpcomingEarning
	err := tx.GetContext(ctx, &e, `
		SELECT id, doctor_id, appointment_id, payment_id, amount, status, appointment_time, released_at, cancelled_at, created_at
		FROM upcoming_earnings
		WHERE appointment_id = $1
	`, appointmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get upcoming earning", ErrInternal)
	}
	return &e, nil
}

// MarkCreditedTx flips a pending earning to credited. The conditional guard
// makes the transition happen at most once: a second caller sees zero rows
// and reads the terminal row instead.
func (r *Repository) MarkCreditedTx(ctx context.Context, tx *sqlx.Tx, appointmentID uuid.UUID) (bool, error) {
	result, err := tx.ExecContext(ctx, `
		UPDATE upcoming_earnings
		SET status = 'credited', released_at = now()
		WHERE appointment_id = $1 AND status = 'pending'
	`, appointmentID)
	if err != nil {
		return false, fmt.Errorf("%w: mark earning credited", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected", ErrInternal)
	}
	return rows > 0, nil
}

// MarkCancelledTx flips a pending earning to cancelled.
func (r *Repository) MarkCancelledTx(ctx context.Context, tx *sqlx.Tx, appointmentID uuid.UUID) (bool, error) {
	result, err := tx.ExecContext(ctx, `
		UPDATE upcoming_earnings
		SET status = 'cancelled', cancelled_at = now()
		WHERE appointment_id = $1 AND status = 'pending'
	`, appointmentID)
	if err != nil {
		return false, fmt.Errorf("%w: mark earning cancelled", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected", ErrInternal)
	}
	return rows > 0, nil
}

// ListPendingByDoctor returns pending earnings ordered by appointment time.
func (r *Repository) ListPendingByDoctor(ctx context.Context, doctorID uuid.UUID) ([]UpcomingEarning, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	list := make([]UpcomingEarning, 0)
	err := r.db.SelectContext(ctx2, &list, `
		SELECT id, doctor_id, appointment_id, payment_id, amount, status, appointment_time, released_at, cancelled_at, created_at
		FROM upcoming_earnings
		WHERE doctor_id = $1 AND status = 'pending'
		ORDER BY appointment_time ASC
	`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("%w: list pending earnings", ErrInternal)
	}
	return list, nil
}

// TotalPending sums the doctor's pending earning amounts.
func (r *Repository) TotalPending(ctx context.Context, doctorID uuid.UUID) (int64, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var total int64
	err := r.db.GetContext(ctx2, &total, `
		SELECT COALESCE(SUM(amount), 0)
		FROM upcoming_earnings
		WHERE doctor_id = $1 AND status = 'pending'
	`, doctorID)
	if err != nil {
		return 0, fmt.Errorf("%w: total pending earnings", ErrInternal)
	}
	return total, nil
}
