package wallet

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// TransactionType classifies ledger entries.
type TransactionType string

const (
	TxTypeAppointmentPayment  TransactionType = "appointment_payment"
	TxTypeDoctorCredit        TransactionType = "doctor_credit"
	TxTypeWithdrawalRequest   TransactionType = "withdrawal_request"
	TxTypeWithdrawalProcessed TransactionType = "withdrawal_processed"
	TxTypeCoinPurchase        TransactionType = "coin_purchase"
	TxTypeServicePayment      TransactionType = "service_payment"
	TxTypeRefund              TransactionType = "refund"
)

// TransactionStatus is the lifecycle of a ledger entry. A completed entry is
// immutable; corrections are new offsetting entries, never edits.
type TransactionStatus string

const (
	TxStatusPending    TransactionStatus = "pending"
	TxStatusProcessing TransactionStatus = "processing"
	TxStatusCompleted  TransactionStatus = "completed"
	TxStatusFailed     TransactionStatus = "failed"
)

// ReferenceType tags what a ledger entry points at.
type ReferenceType string

const (
	RefAppointment ReferenceType = "appointment"
	RefPayment     ReferenceType = "payment"
	RefWithdrawal  ReferenceType = "withdrawal"
	RefService     ReferenceType = "service"
)

// Reference is a typed link from a ledger entry to the record that caused it.
type Reference struct {
	Type ReferenceType
	ID   uuid.UUID
}

func AppointmentRef(id uuid.UUID) Reference { return Reference{Type: RefAppointment, ID: id} }
func PaymentRef(id uuid.UUID) Reference     { return Reference{Type: RefPayment, ID: id} }
func WithdrawalRef(id uuid.UUID) Reference  { return Reference{Type: RefWithdrawal, ID: id} }
func ServiceRef(id uuid.UUID) Reference     { return Reference{Type: RefService, ID: id} }

// IsZero reports whether the reference is unset.
func (r Reference) IsZero() bool {
	return r.Type == "" || r.ID == uuid.Nil
}

// Wallet is the mutable per-doctor summary. All amounts are in the smallest
// currency unit. CommissionRate is the platform's cut in percent, read at
// payment capture time.
type Wallet struct {
	DoctorID         uuid.UUID    `db:"doctor_id" json:"doctor_id"`
	CurrentBalance   int64        `db:"current_balance" json:"current_balance"`
	TotalEarned      int64        `db:"total_earned" json:"total_earned"`
	TotalWithdrawn   int64        `db:"total_withdrawn" json:"total_withdrawn"`
	TotalSpent       int64        `db:"total_spent" json:"total_spent"`
	CommissionRate   int          `db:"commission_rate" json:"commission_rate"`
	LastPaymentAt    sql.NullTime `db:"last_payment_at" json:"last_payment_at,omitempty"`
	LastWithdrawalAt sql.NullTime `db:"last_withdrawal_at" json:"last_withdrawal_at,omitempty"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updated_at"`
}

// Consistent reports whether the balance equation holds:
// current == earned - withdrawn - spent.
func (w *Wallet) Consistent() bool {
	return w.CurrentBalance == w.TotalEarned-w.TotalWithdrawn-w.TotalSpent
}

// Transaction is an append-only ledger row.
type Transaction struct {
	ID            uuid.UUID         `db:"id" json:"id"`
	UserID        uuid.UUID         `db:"user_id" json:"user_id"`
	Type          TransactionType   `db:"type" json:"type"`
	Amount        int64             `db:"amount" json:"amount"`
	ReferenceType sql.NullString    `db:"reference_type" json:"reference_type,omitempty"`
	ReferenceID   uuid.NullUUID     `db:"reference_id" json:"reference_id,omitempty"`
	Status        TransactionStatus `db:"status" json:"status"`
	Notes         string            `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
}

// Reference resolves the typed link of a transaction, if any.
func (t *Transaction) Reference() (Reference, bool) {
	if !t.ReferenceType.Valid || !t.ReferenceID.Valid {
		return Reference{}, false
	}
	return Reference{Type: ReferenceType(t.ReferenceType.String), ID: t.ReferenceID.UUID}, true
}

// SetReference stores the typed link on the row.
func (t *Transaction) SetReference(ref Reference) {
	if ref.IsZero() {
		t.ReferenceType = sql.NullString{}
		t.ReferenceID = uuid.NullUUID{}
		return
	}
	t.ReferenceType = sql.NullString{String: string(ref.Type), Valid: true}
	t.ReferenceID = uuid.NullUUID{UUID: ref.ID, Valid: true}
}

// Pagination controls simple list pagination.
type Pagination struct {
	Limit  int
	Offset int
}

// SearchFilters provides admin-facing transaction filtering.
type SearchFilters struct {
	UserID        *uuid.UUID
	Type          *TransactionType
	Status        *TransactionStatus
	ReferenceType *ReferenceType
	ReferenceID   *uuid.UUID
	DateFrom      *time.Time
	DateTo        *time.Time
	Limit         int
	Offset        int
}
