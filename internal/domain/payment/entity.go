package payment

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status is the payment lifecycle. A refunded payment is terminal even when
// the refunded amount is zero; the zero-refund case records that a
// cancellation was applied.
type Status string

const (
	StatusPending  Status = "pending"
	StatusCaptured Status = "captured"
	StatusRefunded Status = "refunded"
	StatusFailed   Status = "failed"
)

// Initiator identifies who triggered a cancellation or refund.
type Initiator string

const (
	InitiatorPatient  Initiator = "patient"
	InitiatorDoctor   Initiator = "doctor"
	InitiatorHospital Initiator = "hospital"
	InitiatorAdmin    Initiator = "admin"
)

// Payment is the patient's charge for one appointment. Amounts are in the
// smallest currency unit. BaseAmount is the consultation fee; GSTAmount is
// tax on top; TotalAmount is what the patient pays.
//
// CommissionRate, DoctorShare and PlatformFee are snapshotted at capture
// time and never recomputed, so later commission changes cannot alter an
// already-captured split.
type Payment struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`
	DoctorID      uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Method        string    `db:"method" json:"method"`
	BaseAmount    int64     `db:"base_amount" json:"base_amount"`
	GSTAmount     int64     `db:"gst_amount" json:"gst_amount"`
	TotalAmount   int64     `db:"total_amount" json:"total_amount"`

	CommissionRate int   `db:"commission_rate" json:"commission_rate"`
	DoctorShare    int64 `db:"doctor_share" json:"doctor_share"`
	PlatformFee    int64 `db:"platform_fee" json:"platform_fee"`

	Status           Status         `db:"status" json:"status"`
	GatewayPaymentID sql.NullString `db:"gateway_payment_id" json:"gateway_payment_id,omitempty"`
	CapturedAt       sql.NullTime   `db:"captured_at" json:"captured_at,omitempty"`

	RefundAmount    int64          `db:"refund_amount" json:"refund_amount"`
	RefundPercent   int            `db:"refund_percent" json:"refund_percent"`
	RefundInitiator sql.NullString `db:"refund_initiator" json:"refund_initiator,omitempty"`
	RefundReason    sql.NullString `db:"refund_reason" json:"refund_reason,omitempty"`
	GatewayRefundID sql.NullString `db:"gateway_refund_id" json:"gateway_refund_id,omitempty"`
	RefundedAt      sql.NullTime   `db:"refunded_at" json:"refunded_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
