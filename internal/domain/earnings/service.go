package earnings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/carebook/carebook-api/internal/domain/notification"
	"github.com/carebook/carebook-api/internal/domain/wallet"
	"github.com/carebook/carebook-api/internal/pkg/database"
)

// Service manages the upcoming-earnings pipeline: open on payment capture,
// release into the wallet on appointment completion, cancel on refund.
type Service struct {
	db       *sqlx.DB
	repo     *Repository
	wallet   *wallet.Service
	notifier *notification.Service
}

func NewService(db *sqlx.DB, repo *Repository, walletSvc *wallet.Service, notifier *notification.Service) *Service {
	return &Service{db: db, repo: repo, wallet: walletSvc, notifier: notifier}
}

// Repo exposes the repository for sibling services that open or cancel
// earnings inside their own transaction scopes.
func (s *Service) Repo() *Repository {
	return s.repo
}

// Open tracks a future earning for a paid appointment. The doctor share must
// already be computed by the caller.
func (s *Service) Open(ctx context.Context, doctorID, appointmentID, paymentID uuid.UUID, amount int64, appointmentTime time.Time) (*UpcomingEarning, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	e := &UpcomingEarning{
		DoctorID:        doctorID,
		AppointmentID:   appointmentID,
		PaymentID:       paymentID,
		Amount:          amount,
		AppointmentTime: appointmentTime,
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, err
	}

	s.notifier.UpcomingEarningOpened(ctx, doctorID, amount, appointmentID)
	return e, nil
}

// Release converts the appointment's pending earning into a wallet credit.
// The status flip and the credit commit atomically; replays of the completion
// event find the earning already credited and return it unchanged.
func (s *Service) Release(ctx context.Context, appointmentID uuid.UUID) (*UpcomingEarning, error) {
	var (
		released *UpcomingEarning
		credited bool
	)

	err := database.WithinTx(ctx, s.db, func(tx *sqlx.Tx) error {
		credited = false

		transitioned, err := s.repo.MarkCreditedTx(ctx, tx, appointmentID)
		if err != nil {
			return err
		}

		e, err := s.repo.getByAppointmentTx(ctx, tx, appointmentID)
		if err != nil {
			return err
		}
		released = e

		if !transitioned {
			if e.Status == StatusCancelled {
				return ErrAlreadyCancelled
			}
			return nil
		}

		ref := wallet.AppointmentRef(appointmentID)
		if _, err := s.wallet.Repo().CreditTx(ctx, tx, e.DoctorID, e.Amount, ref, "consultation earning released"); err != nil {
			return err
		}
		credited = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if credited {
		s.wallet.InvalidateBalance(ctx, released.DoctorID)
		s.notifier.DoctorCreditIssued(ctx, released.DoctorID, released.Amount, appointmentID)
		log.Info().
			Str("doctor_id", released.DoctorID.String()).
			Str("appointment_id", appointmentID.String()).
			Int64("amount", released.Amount).
			Msg("upcoming earning released")
	}
	return released, nil
}

// Cancel voids the appointment's pending earning. Already-cancelled earnings
// are a no-op; credited earnings cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, appointmentID uuid.UUID) (*UpcomingEarning, error) {
	var cancelled *UpcomingEarning

	err := database.WithinTx(ctx, s.db, func(tx *sqlx.Tx) error {
		transitioned, err := s.repo.MarkCancelledTx(ctx, tx, appointmentID)
		if err != nil {
			return err
		}

		e, err := s.repo.getByAppointmentTx(ctx, tx, appointmentID)
		if err != nil {
			return err
		}
		cancelled = e

		if !transitioned && e.Status == StatusCredited {
			return ErrAlreadyCredited
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// GetByAppointment returns the earning for an appointment.
func (s *Service) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*UpcomingEarning, error) {
	return s.repo.GetByAppointment(ctx, appointmentID)
}

// ListPending returns the doctor's pending earnings.
func (s *Service) ListPending(ctx context.Context, doctorID uuid.UUID) ([]UpcomingEarning, error) {
	return s.repo.ListPendingByDoctor(ctx, doctorID)
}

// TotalPending sums the doctor's pending earnings for the wallet summary.
func (s *Service) TotalPending(ctx context.Context, doctorID uuid.UUID) (int64, error) {
	return s.repo.TotalPending(ctx, doctorID)
}
