package appointment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Upsert mirrors a booking-service appointment into the local table. The
// booking service is the source of truth; replays overwrite with the latest
// snapshot unless the row already reached a terminal status.
func (r *Repository) Upsert(ctx context.Context, a *Appointment) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if a.Status == "" {
		a.Status = StatusBooked
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO appointments (id, patient_id, doctor_id, hospital_id, scheduled_at, fee, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET scheduled_at = EXCLUDED.scheduled_at,
		    fee = EXCLUDED.fee
		WHERE appointments.status = 'booked'
	`, a.ID, a.PatientID, a.DoctorID, a.HospitalID, a.ScheduledAt, a.Fee, a.Status, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: upsert appointment", ErrInternal)
	}
	return nil
}

// Get returns an appointment by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var a Appointment
	err := r.db.GetContext(ctx2, &a, `
		SELECT id, patient_id, doctor_id, hospital_id, scheduled_at, fee, status, created_at
		FROM appointments
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get appointment", ErrInternal)
	}
	return &a, nil
}

// SetStatus advances a booked appointment to a terminal status. Replayed
// events find zero rows and report no transition.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status Status) (bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE appointments SET status = $2 WHERE id = $1 AND status = 'booked'
	`, id, status)
	if err != nil {
		return false, fmt.Errorf("%w: set appointment status", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected", ErrInternal)
	}
	return rows > 0, nil
}
