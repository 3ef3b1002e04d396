package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/carebook/carebook-api/internal/domain/appointment"
	"github.com/carebook/carebook-api/internal/domain/earnings"
	"github.com/carebook/carebook-api/internal/domain/notification"
	"github.com/carebook/carebook-api/internal/domain/refundpolicy"
	"github.com/carebook/carebook-api/internal/domain/wallet"
	"github.com/carebook/carebook-api/internal/pkg/database"
	"github.com/carebook/carebook-api/internal/pkg/gateway"
	"github.com/carebook/carebook-api/internal/pkg/money"
)

// Gateway is the slice of the gateway client the payment service needs.
type Gateway interface {
	Refund(ctx context.Context, req gateway.RefundRequest) (*gateway.RefundResponse, error)
}

// Service owns the patient payment lifecycle: creation with GST, capture
// with the commission split snapshot, and the single-refund cancellation
// path.
type Service struct {
	db           *sqlx.DB
	repo         *Repository
	appointments *appointment.Repository
	wallet       *wallet.Service
	earnings     *earnings.Service
	gw           Gateway
	notifier     *notification.Service
	gstRate      int
}

func NewService(db *sqlx.DB, repo *Repository, appointments *appointment.Repository, walletSvc *wallet.Service, earningsSvc *earnings.Service, gw Gateway, notifier *notification.Service, gstRate int) *Service {
	return &Service{
		db:           db,
		repo:         repo,
		appointments: appointments,
		wallet:       walletSvc,
		earnings:     earningsSvc,
		gw:           gw,
		notifier:     notifier,
		gstRate:      gstRate,
	}
}

// Create opens a pending payment for a booked appointment. GST is added on
// top of the consultation fee; the patient pays the total at the gateway.
func (s *Service) Create(ctx context.Context, patientID, appointmentID uuid.UUID, method string) (*Payment, error) {
	appt, err := s.appointments.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status != appointment.StatusBooked {
		return nil, fmt.Errorf("%w: appointment is %s", ErrInternal, appt.Status)
	}
	if appt.PatientID != patientID {
		return nil, ErrNotFound
	}

	gst := money.Percent(appt.Fee, s.gstRate)
	p := &Payment{
		AppointmentID: appointmentID,
		PatientID:     patientID,
		DoctorID:      appt.DoctorID,
		Method:        method,
		BaseAmount:    appt.Fee,
		GSTAmount:     gst,
		TotalAmount:   appt.Fee + gst,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	log.Info().
		Str("payment_id", p.ID.String()).
		Str("appointment_id", appointmentID.String()).
		Int64("total", p.TotalAmount).
		Msg("payment created")
	return p, nil
}

// Capture records the gateway's confirmation. It snapshots the doctor's
// commission rate into the payment, appends the patient's ledger row and
// opens the upcoming earning, all in one transaction. Replayed capture
// events find the payment already captured and return it unchanged.
func (s *Service) Capture(ctx context.Context, paymentID uuid.UUID, gatewayPaymentID string) (*Payment, error) {
	p, err := s.repo.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusPending {
		return p, nil
	}

	rate, err := s.wallet.CommissionRate(ctx, p.DoctorID)
	if err != nil {
		return nil, err
	}
	platformFee := money.Percent(p.BaseAmount, rate)
	doctorShare := p.BaseAmount - platformFee

	appt, err := s.appointments.Get(ctx, p.AppointmentID)
	if err != nil {
		return nil, err
	}

	var opened bool
	err = database.WithinTx(ctx, s.db, func(tx *sqlx.Tx) error {
		opened = false

		transitioned, err := s.repo.MarkCapturedTx(ctx, tx, p.ID, gatewayPaymentID, rate, doctorShare, platformFee)
		if err != nil {
			return err
		}
		if !transitioned {
			return nil
		}

		t := &wallet.Transaction{
			UserID: p.PatientID,
			Type:   wallet.TxTypeAppointmentPayment,
			Amount: -p.TotalAmount,
			Status: wallet.TxStatusCompleted,
			Notes:  "appointment payment captured",
		}
		t.SetReference(wallet.PaymentRef(p.ID))
		if err := s.wallet.Repo().InsertTransactionTx(ctx, tx, t); err != nil && !errors.Is(err, wallet.ErrDuplicateReference) {
			return err
		}

		e := &earnings.UpcomingEarning{
			DoctorID:        p.DoctorID,
			AppointmentID:   p.AppointmentID,
			PaymentID:       p.ID,
			Amount:          doctorShare,
			AppointmentTime: appt.ScheduledAt,
		}
		if err := s.earnings.Repo().CreateTx(ctx, tx, e); err != nil {
			if errors.Is(err, earnings.ErrDuplicateAppointment) {
				return nil
			}
			return err
		}
		opened = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if opened {
		s.notifier.UpcomingEarningOpened(ctx, p.DoctorID, doctorShare, p.AppointmentID)
	}

	log.Info().
		Str("payment_id", p.ID.String()).
		Int("commission_rate", rate).
		Int64("doctor_share", doctorShare).
		Msg("payment captured")
	return s.repo.Get(ctx, paymentID)
}

// PreviewRefund quotes the refund a cancellation would produce right now,
// without mutating anything.
func (s *Service) PreviewRefund(ctx context.Context, paymentID uuid.UUID, initiator Initiator) (*refundpolicy.Quote, error) {
	p, err := s.repo.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.Status == StatusRefunded {
		return nil, ErrAlreadyRefunded
	}
	if p.Status != StatusCaptured {
		return nil, ErrNotCaptured
	}

	if initiator == InitiatorHospital {
		return &refundpolicy.Quote{Percent: 100, RefundAmount: p.TotalAmount}, nil
	}

	appt, err := s.appointments.Get(ctx, p.AppointmentID)
	if err != nil {
		return nil, err
	}
	q := refundpolicy.Compute(p.TotalAmount, appt.ScheduledAt, time.Now())
	return &q, nil
}

// Refund applies a cancellation to a captured payment. Hospital-initiated
// cancellations refund the full amount; everything else goes through the
// notice-period tiers. The gateway call happens before the local commit so
// a crash between the two leaves a retryable gateway-side idempotent refund
// rather than a phantom local one. A zero-percent quote still marks the
// payment refunded and cancels the pending earning.
func (s *Service) Refund(ctx context.Context, paymentID uuid.UUID, initiator Initiator, reason string) (*Payment, error) {
	p, err := s.repo.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	switch p.Status {
	case StatusCaptured:
	case StatusRefunded:
		return nil, ErrAlreadyRefunded
	default:
		return nil, ErrNotCaptured
	}

	quote, err := s.PreviewRefund(ctx, paymentID, initiator)
	if err != nil {
		return nil, err
	}

	gatewayRefundID := ""
	if quote.RefundAmount > 0 {
		if !p.GatewayPaymentID.Valid {
			return nil, fmt.Errorf("%w: captured payment has no gateway id", ErrInternal)
		}
		resp, err := s.gw.Refund(ctx, gateway.RefundRequest{
			PaymentID:      p.GatewayPaymentID.String,
			Amount:         quote.RefundAmount,
			Reason:         reason,
			IdempotencyKey: "refund-" + p.ID.String(),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGateway, err)
		}
		gatewayRefundID = resp.RefundID
	}

	err = database.WithinTx(ctx, s.db, func(tx *sqlx.Tx) error {
		transitioned, err := s.repo.MarkRefundedTx(ctx, tx, p.ID, quote.RefundAmount, quote.Percent, initiator, reason, gatewayRefundID)
		if err != nil {
			return err
		}
		if !transitioned {
			return ErrAlreadyRefunded
		}

		if quote.RefundAmount > 0 {
			t := &wallet.Transaction{
				UserID: p.PatientID,
				Type:   wallet.TxTypeRefund,
				Amount: quote.RefundAmount,
				Status: wallet.TxStatusCompleted,
				Notes:  fmt.Sprintf("refund %d%% (%s)", quote.Percent, initiator),
			}
			t.SetReference(wallet.PaymentRef(p.ID))
			if err := s.wallet.Repo().InsertTransactionTx(ctx, tx, t); err != nil && !errors.Is(err, wallet.ErrDuplicateReference) {
				return err
			}
		}

		if _, err := s.earnings.Repo().MarkCancelledTx(ctx, tx, p.AppointmentID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if quote.RefundAmount > 0 {
		s.notifier.PaymentRefunded(ctx, p.PatientID, quote.RefundAmount, p.ID)
	}

	log.Info().
		Str("payment_id", p.ID.String()).
		Str("initiator", string(initiator)).
		Int("percent", quote.Percent).
		Int64("amount", quote.RefundAmount).
		Msg("payment refunded")
	return s.repo.Get(ctx, paymentID)
}

// ApplyCancellation is the appointment-cancelled entry point. Unpaid
// appointments have nothing to settle; pending payments are abandoned;
// captured payments go through the refund path.
func (s *Service) ApplyCancellation(ctx context.Context, appointmentID uuid.UUID, initiator Initiator, reason string) (*Payment, error) {
	p, err := s.repo.GetByAppointment(ctx, appointmentID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	switch p.Status {
	case StatusPending:
		if err := s.repo.MarkFailed(ctx, p.ID); err != nil {
			return nil, err
		}
		return s.repo.Get(ctx, p.ID)
	case StatusCaptured:
		return s.Refund(ctx, p.ID, initiator, reason)
	default:
		return p, nil
	}
}

// Get returns a payment by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return s.repo.Get(ctx, id)
}

// ListByPatient returns the patient's payment history.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Payment, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
