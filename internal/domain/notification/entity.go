package notification

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Type enumerates the financial events this service announces.
type Type string

const (
	TypeDoctorCreditIssued   Type = "doctor_credit_issued"
	TypeUpcomingEarningOpen  Type = "upcoming_earning_opened"
	TypeWithdrawalRejected   Type = "withdrawal_rejected"
	TypeWithdrawalCompleted  Type = "withdrawal_completed"
	TypePaymentRefunded      Type = "payment_refunded"
)

// Notification is a durable record of an announced event. Delivery to
// SMS/email/push channels is a downstream collaborator concern.
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Type      Type            `db:"type" json:"type"`
	Title     string          `db:"title" json:"title"`
	Body      string          `db:"body" json:"body,omitempty"`
	Data      json.RawMessage `db:"data" json:"data,omitempty"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
