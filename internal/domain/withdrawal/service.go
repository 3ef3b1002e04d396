package withdrawal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/carebook/carebook-api/internal/domain/notification"
	"github.com/carebook/carebook-api/internal/domain/wallet"
	"github.com/carebook/carebook-api/internal/pkg/database"
	"github.com/carebook/carebook-api/internal/pkg/otp"
)

// Service drives the withdrawal settlement pipeline. A withdrawal claims
// specific credit rows at creation, the platform admin approves it and
// records its bank transfer to the hospital (which debits the wallet), and
// the in-person handoff to the doctor is proven by a one-time code before
// the doctor confirms receipt.
type Service struct {
	db        *sqlx.DB
	repo      *Repository
	wallet    *wallet.Service
	notifier  *notification.Service
	sender    otp.Sender
	otpTTL    time.Duration
	minAmount int64
}

func NewService(db *sqlx.DB, repo *Repository, walletSvc *wallet.Service, notifier *notification.Service, sender otp.Sender, otpTTL time.Duration, minAmount int64) *Service {
	return &Service{
		db:        db,
		repo:      repo,
		wallet:    walletSvc,
		notifier:  notifier,
		sender:    sender,
		otpTTL:    otpTTL,
		minAmount: minAmount,
	}
}

// Create opens a pending withdrawal over a specific set of credit rows. The
// amount is the sum of the claimed credits; claims and the pending
// withdrawal_request ledger row commit atomically with the withdrawal, so a
// credit can never back two live withdrawals.
func (s *Service) Create(ctx context.Context, doctorID, hospitalID uuid.UUID, transactionIDs []uuid.UUID, method string) (*Withdrawal, error) {
	seen := make(map[uuid.UUID]struct{}, len(transactionIDs))
	ids := make([]uuid.UUID, 0, len(transactionIDs))
	for _, id := range transactionIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, ErrCreditNotClaimable
	}

	var created *Withdrawal
	err := database.WithinTx(ctx, s.db, func(tx *sqlx.Tx) error {
		claimable, err := s.wallet.Repo().ListClaimableByIDsTx(ctx, tx, doctorID, ids)
		if err != nil {
			return err
		}
		if len(claimable) != len(ids) {
			return ErrCreditNotClaimable
		}

		var amount int64
		for _, c := range claimable {
			amount += c.Amount
		}
		if amount < s.minAmount {
			return ErrBelowMinimum
		}

		w := &Withdrawal{
			ID:         uuid.New(),
			DoctorID:   doctorID,
			HospitalID: hospitalID,
			Amount:     amount,
			Method:     method,
		}

		t := &wallet.Transaction{
			UserID: doctorID,
			Type:   wallet.TxTypeWithdrawalRequest,
			Amount: -amount,
			Status: wallet.TxStatusPending,
			Notes:  "withdrawal requested",
		}
		t.SetReference(wallet.WithdrawalRef(w.ID))
		if err := s.wallet.Repo().InsertTransactionTx(ctx, tx, t); err != nil {
			return err
		}
		w.RequestTxID = t.ID

		if err := s.repo.CreateTx(ctx, tx, w); err != nil {
			return err
		}
		for _, c := range claimable {
			if err := s.repo.InsertClaimTx(ctx, tx, w.ID, c.ID); err != nil {
				return err
			}
		}

		created = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("withdrawal_id", created.ID.String()).
		Str("doctor_id", doctorID.String()).
		Int64("amount", created.Amount).
		Int("credits", len(ids)).
		Msg("withdrawal created")
	return created, nil
}

// Approve moves a pending withdrawal into the hospital payment queue,
// stamping the approving admin and flipping the request ledger row to
// processing in the same transaction.
func (s *Service) Approve(ctx context.Context, id, approvedBy uuid.UUID) (*Withdrawal, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	err = database.WithinTx(ctx, s.db, func(tx *sqlx.Tx) error {
		transitioned, err := s.repo.TransitionTx(ctx, tx, id, StatusPending, StatusAdminApproved)
		if err != nil {
			return err
		}
		if !transitioned {
			return ErrStateConflict
		}
		if err := s.repo.SetApprovedByTx(ctx, tx, id, approvedBy); err != nil {
			return err
		}
		return s.wallet.Repo().UpdateTransactionStatusTx(ctx, tx, w.RequestTxID, wallet.TxStatusProcessing)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Reject terminates a pending withdrawal. Claimed credits are freed and the
// request ledger row fails, so the money stays withdrawable. The reason is
// mandatory and reaches the doctor.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason string) (*Withdrawal, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	err = database.WithinTx(ctx, s.db, func(tx *sqlx.Tx) error {
		transitioned, err := s.repo.TransitionTx(ctx, tx, id, StatusPending, StatusRejected)
		if err != nil {
			return err
		}
		if !transitioned {
			return ErrStateConflict
		}
		if err := s.repo.SetRejectReasonTx(ctx, tx, id, reason); err != nil {
			return err
		}
		if err := s.repo.DeleteClaimsTx(ctx, tx, id); err != nil {
			return err
		}
		return s.wallet.Repo().UpdateTransactionStatusTx(ctx, tx, w.RequestTxID, wallet.TxStatusFailed)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.WithdrawalRejected(ctx, w.DoctorID, w.Amount, id, reason)
	log.Info().Str("withdrawal_id", id.String()).Str("reason", reason).Msg("withdrawal rejected")
	return s.repo.Get(ctx, id)
}

// RecordHospitalTransfer records the platform admin's bank transfer to the
// hospital, with its payment reference and optional proof. This is the
// single point where the wallet is debited: the state transition and the
// debit share a transaction, and the compare-and-set on status means a
// replay cannot debit twice. hospitalID confirms which hospital was paid
// and must match the withdrawal.
func (s *Service) RecordHospitalTransfer(ctx context.Context, id, hospitalID uuid.UUID, paymentReference, paymentProof string) (*Withdrawal, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.HospitalID != hospitalID {
		return nil, ErrWrongHospital
	}

	err = database.WithinTx(ctx, s.db, func(tx *sqlx.Tx) error {
		transitioned, err := s.repo.TransitionTx(ctx, tx, id, StatusAdminApproved, StatusHospitalPaid)
		if err != nil {
			return err
		}
		if !transitioned {
			return ErrStateConflict
		}
		if err := s.repo.SetHospitalTransferProofTx(ctx, tx, id, paymentReference, paymentProof); err != nil {
			return err
		}

		if err := s.wallet.Repo().DebitForWithdrawalTx(ctx, tx, w.DoctorID, w.Amount); err != nil {
			return err
		}

		t := &wallet.Transaction{
			UserID: w.DoctorID,
			Type:   wallet.TxTypeWithdrawalProcessed,
			Amount: -w.Amount,
			Status: wallet.TxStatusCompleted,
			Notes:  "recipient: hospital",
		}
		t.SetReference(wallet.WithdrawalRef(id))
		return s.wallet.Repo().InsertTransactionTx(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}

	s.wallet.InvalidateBalance(ctx, w.DoctorID)
	log.Info().
		Str("withdrawal_id", id.String()).
		Int64("amount", w.Amount).
		Msg("hospital transfer recorded, wallet debited")
	return s.repo.Get(ctx, id)
}

// GenerateOTP issues a fresh handoff code for a hospital-paid withdrawal.
// Reissuing overwrites the stored hash, so only the latest code verifies.
func (s *Service) GenerateOTP(ctx context.Context, id, hospitalID uuid.UUID) (time.Time, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	if w.HospitalID != hospitalID {
		return time.Time{}, ErrWrongHospital
	}

	code := otp.GenerateCode()
	hash, err := otp.HashCode(code)
	if err != nil {
		return time.Time{}, ErrInternal
	}

	expiresAt := time.Now().Add(s.otpTTL)
	if err := s.repo.SetOTP(ctx, id, hash, expiresAt); err != nil {
		return time.Time{}, err
	}

	if err := s.sender.SendCode(ctx, w.DoctorID.String(), code, expiresAt); err != nil {
		log.Warn().Err(err).Str("withdrawal_id", id.String()).Msg("otp delivery failed")
	}
	return expiresAt, nil
}

// RecordDoctorPayment proves the in-person handoff: the hospital submits the
// code the doctor received plus the payout reference. A valid code advances
// the withdrawal, records the settler and proof, and completes the request
// ledger row.
func (s *Service) RecordDoctorPayment(ctx context.Context, id, hospitalID, settledBy uuid.UUID, code, paymentReference, paymentProof string) (*Withdrawal, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.HospitalID != hospitalID {
		return nil, ErrWrongHospital
	}
	if w.Status != StatusHospitalPaid {
		return nil, ErrStateConflict
	}
	if !w.OTPHash.Valid || !w.OTPExpiresAt.Valid {
		return nil, ErrInvalidOrExpiredOTP
	}
	if time.Now().After(w.OTPExpiresAt.Time) {
		return nil, ErrInvalidOrExpiredOTP
	}
	if !otp.CompareCode(w.OTPHash.String, code) {
		return nil, ErrInvalidOrExpiredOTP
	}

	err = database.WithinTx(ctx, s.db, func(tx *sqlx.Tx) error {
		transitioned, err := s.repo.TransitionTx(ctx, tx, id, StatusHospitalPaid, StatusDoctorOTPVerified)
		if err != nil {
			return err
		}
		if !transitioned {
			return ErrStateConflict
		}
		if err := s.repo.SetDoctorPaymentProofTx(ctx, tx, id, settledBy, paymentReference, paymentProof); err != nil {
			return err
		}
		return s.wallet.Repo().UpdateTransactionStatusTx(ctx, tx, w.RequestTxID, wallet.TxStatusCompleted)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("withdrawal_id", id.String()).Msg("doctor payment recorded")
	return s.repo.Get(ctx, id)
}

// VerifyReceipt is the doctor's final confirmation that the cash reached
// them, closing the withdrawal.
func (s *Service) VerifyReceipt(ctx context.Context, id, doctorID uuid.UUID) (*Withdrawal, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.DoctorID != doctorID {
		return nil, ErrNotFound
	}

	err = database.WithinTx(ctx, s.db, func(tx *sqlx.Tx) error {
		transitioned, err := s.repo.TransitionTx(ctx, tx, id, StatusDoctorOTPVerified, StatusCompleted)
		if err != nil {
			return err
		}
		if !transitioned {
			return ErrStateConflict
		}
		return s.repo.SetVerifiedByTx(ctx, tx, id, doctorID)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.WithdrawalCompleted(ctx, doctorID, w.Amount, id)
	log.Info().Str("withdrawal_id", id.String()).Msg("withdrawal completed")
	return s.repo.Get(ctx, id)
}

// Get returns a withdrawal by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Withdrawal, error) {
	return s.repo.Get(ctx, id)
}

// ListByDoctor returns the doctor's withdrawal history.
func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Withdrawal, error) {
	return s.repo.ListByDoctor(ctx, doctorID, limit, offset)
}

// ListByHospital returns the hospital's withdrawal queue.
func (s *Service) ListByHospital(ctx context.Context, hospitalID uuid.UUID, limit, offset int) ([]Withdrawal, error) {
	return s.repo.ListByHospital(ctx, hospitalID, limit, offset)
}

// ListByStatus returns the admin review queue for one state.
func (s *Service) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]Withdrawal, error) {
	return s.repo.ListByStatus(ctx, status, limit, offset)
}

// ListClaims returns the credit rows backing a withdrawal.
func (s *Service) ListClaims(ctx context.Context, withdrawalID uuid.UUID) ([]Claim, error) {
	return s.repo.ListClaims(ctx, withdrawalID)
}
