package earnings

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle of an upcoming earning. A credited or cancelled
// earning is terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCredited  Status = "credited"
	StatusCancelled Status = "cancelled"
)

// UpcomingEarning tracks money a doctor will receive once an appointment
// completes. Amount is the doctor's net share, snapshotted when the patient's
// payment was captured; later commission changes do not touch it. At most one
// earning exists per appointment.
type UpcomingEarning struct {
	ID              uuid.UUID    `db:"id" json:"id"`
	DoctorID        uuid.UUID    `db:"doctor_id" json:"doctor_id"`
	AppointmentID   uuid.UUID    `db:"appointment_id" json:"appointment_id"`
	PaymentID       uuid.UUID    `db:"payment_id" json:"payment_id"`
	Amount          int64        `db:"amount" json:"amount"`
	Status          Status       `db:"status" json:"status"`
	AppointmentTime time.Time    `db:"appointment_time" json:"appointment_time"`
	ReleasedAt      sql.NullTime `db:"released_at" json:"released_at,omitempty"`
	CancelledAt     sql.NullTime `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
}
