package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Status is the booking lifecycle as seen by the settlement side.
type Status string

const (
	StatusBooked    Status = "booked"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Appointment is the booking record the financial flows hang off. Scheduling
// itself lives in the booking service; this table mirrors the fields the
// ledger needs.
type Appointment struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PatientID   uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID    uuid.UUID `db:"doctor_id" json:"doctor_id"`
	HospitalID  uuid.UUID `db:"hospital_id" json:"hospital_id"`
	ScheduledAt time.Time `db:"scheduled_at" json:"scheduled_at"`
	Fee         int64     `db:"fee" json:"fee"`
	Status      Status    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
