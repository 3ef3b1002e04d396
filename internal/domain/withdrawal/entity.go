package withdrawal

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status is the settlement pipeline of a withdrawal. Money moves in two
// hops: the platform pays the hospital, then the hospital pays the doctor
// in person against a one-time code. Completed and rejected are terminal.
type Status string

const (
	StatusPending           Status = "pending"
	StatusAdminApproved     Status = "admin_approved"
	StatusHospitalPaid      Status = "hospital_payment_completed"
	StatusDoctorOTPVerified Status = "doctor_otp_verified"
	StatusCompleted         Status = "completed"
	StatusRejected          Status = "rejected"
)

// Withdrawal is one doctor payout request. Amount is the sum of the claimed
// credit rows, fixed at creation. RequestTxID points at the pending
// withdrawal_request ledger row opened alongside it.
type Withdrawal struct {
	ID          uuid.UUID `db:"id" json:"id"`
	DoctorID    uuid.UUID `db:"doctor_id" json:"doctor_id"`
	HospitalID  uuid.UUID `db:"hospital_id" json:"hospital_id"`
	Amount      int64     `db:"amount" json:"amount"`
	Method      string    `db:"method" json:"method"`
	Status      Status    `db:"status" json:"status"`
	RequestTxID uuid.UUID `db:"request_tx_id" json:"request_tx_id"`

	RejectReason sql.NullString `db:"reject_reason" json:"reject_reason,omitempty"`

	OTPHash      sql.NullString `db:"otp_hash" json:"-"`
	OTPExpiresAt sql.NullTime   `db:"otp_expires_at" json:"otp_expires_at,omitempty"`

	// Proof trail: which admin approved, the platform-to-hospital transfer
	// reference, the hospital-to-doctor payout reference and the hospital
	// user who settled it, and the doctor's final confirmation.
	ApprovedBy               uuid.NullUUID  `db:"approved_by" json:"approved_by,omitempty"`
	HospitalPaymentReference sql.NullString `db:"hospital_payment_reference" json:"hospital_payment_reference,omitempty"`
	HospitalPaymentProof     sql.NullString `db:"hospital_payment_proof" json:"hospital_payment_proof,omitempty"`
	DoctorPaymentReference   sql.NullString `db:"doctor_payment_reference" json:"doctor_payment_reference,omitempty"`
	DoctorPaymentProof       sql.NullString `db:"doctor_payment_proof" json:"doctor_payment_proof,omitempty"`
	SettledBy                uuid.NullUUID  `db:"settled_by" json:"settled_by,omitempty"`
	VerifiedBy               uuid.NullUUID  `db:"verified_by" json:"verified_by,omitempty"`

	ApprovedAt     sql.NullTime `db:"approved_at" json:"approved_at,omitempty"`
	HospitalPaidAt sql.NullTime `db:"hospital_paid_at" json:"hospital_paid_at,omitempty"`
	OTPVerifiedAt  sql.NullTime `db:"otp_verified_at" json:"otp_verified_at,omitempty"`
	CompletedAt    sql.NullTime `db:"completed_at" json:"completed_at,omitempty"`
	RejectedAt     sql.NullTime `db:"rejected_at" json:"rejected_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Claim reserves one completed credit row for one withdrawal. The unique
// index on transaction_id stops two live withdrawals from claiming the same
// credit; rejection deletes the rows so the credits become claimable again.
type Claim struct {
	WithdrawalID  uuid.UUID `db:"withdrawal_id" json:"withdrawal_id"`
	TransactionID uuid.UUID `db:"transaction_id" json:"transaction_id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
