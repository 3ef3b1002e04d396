package notification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Service announces financial events. Every publish is fire-and-forget: a
// failed insert is logged and swallowed so that it can never roll back the
// ledger mutation that produced the event.
type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) publish(ctx context.Context, userID uuid.UUID, notifType Type, title, body string, data map[string]interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		payload = nil
	}

	n := &Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      notifType,
		Title:     title,
		Body:      body,
		Data:      payload,
		CreatedAt: time.Now(),
	}

	if err := s.repo.Create(ctx, n); err != nil {
		log.Warn().
			Err(err).
			Str("user_id", userID.String()).
			Str("type", string(notifType)).
			Msg("notification publish failed")
		return
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("type", string(notifType)).
		Msg("notification published")
}

// DoctorCreditIssued announces a wallet credit to the doctor.
func (s *Service) DoctorCreditIssued(ctx context.Context, doctorID uuid.UUID, amount int64, appointmentID uuid.UUID) {
	s.publish(ctx, doctorID, TypeDoctorCreditIssued,
		"Consultation fee credited",
		"Your earnings for a completed appointment were added to your wallet",
		map[string]interface{}{"amount": amount, "appointment_id": appointmentID},
	)
}

// UpcomingEarningOpened announces a newly tracked future earning.
func (s *Service) UpcomingEarningOpened(ctx context.Context, doctorID uuid.UUID, amount int64, appointmentID uuid.UUID) {
	s.publish(ctx, doctorID, TypeUpcomingEarningOpen,
		"Upcoming earning added",
		"A paid appointment was added to your upcoming earnings",
		map[string]interface{}{"amount": amount, "appointment_id": appointmentID},
	)
}

// WithdrawalRejected announces a rejection, including the mandatory reason.
func (s *Service) WithdrawalRejected(ctx context.Context, doctorID uuid.UUID, amount int64, withdrawalID uuid.UUID, reason string) {
	s.publish(ctx, doctorID, TypeWithdrawalRejected,
		"Withdrawal rejected",
		reason,
		map[string]interface{}{"amount": amount, "withdrawal_id": withdrawalID},
	)
}

// WithdrawalCompleted announces the end of the settlement pipeline.
func (s *Service) WithdrawalCompleted(ctx context.Context, doctorID uuid.UUID, amount int64, withdrawalID uuid.UUID) {
	s.publish(ctx, doctorID, TypeWithdrawalCompleted,
		"Withdrawal completed",
		"Your withdrawal was settled and confirmed",
		map[string]interface{}{"amount": amount, "withdrawal_id": withdrawalID},
	)
}

// PaymentRefunded announces a refund to the patient.
func (s *Service) PaymentRefunded(ctx context.Context, patientID uuid.UUID, amount int64, paymentID uuid.UUID) {
	s.publish(ctx, patientID, TypePaymentRefunded,
		"Payment refunded",
		"A refund for your cancelled appointment has been initiated",
		map[string]interface{}{"amount": amount, "payment_id": paymentID},
	)
}
