package wallet

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/carebook/carebook-api/internal/pkg/database"
)

// Service exposes the ledger store to handlers and sibling domains.
type Service struct {
	db    *sqlx.DB
	repo  *Repository
	cache *BalanceCache
}

func NewService(db *sqlx.DB, repo *Repository, cache *BalanceCache) *Service {
	return &Service{db: db, repo: repo, cache: cache}
}

// Repo exposes the repository for sibling services that compose ledger
// writes into their own transaction scopes.
func (s *Service) Repo() *Repository {
	return s.repo
}

// GetWallet returns the doctor's wallet summary.
func (s *Service) GetWallet(ctx context.Context, doctorID uuid.UUID) (*Wallet, error) {
	return s.repo.Get(ctx, doctorID)
}

// GetBalance returns the current balance, read through the cache.
func (s *Service) GetBalance(ctx context.Context, doctorID uuid.UUID) (int64, error) {
	if balance, ok := s.cache.Get(ctx, doctorID); ok {
		return balance, nil
	}
	w, err := s.repo.Get(ctx, doctorID)
	if err != nil {
		return 0, err
	}
	s.cache.Set(ctx, doctorID, w.CurrentBalance)
	return w.CurrentBalance, nil
}

// Credit adds earned money to the wallet and appends the doctor_credit row.
func (s *Service) Credit(ctx context.Context, doctorID uuid.UUID, amount int64, ref Reference, notes string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	t, err := s.repo.Credit(ctx, doctorID, amount, ref, notes)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, doctorID)
	log.Info().
		Str("doctor_id", doctorID.String()).
		Int64("amount", amount).
		Str("transaction_id", t.ID.String()).
		Msg("wallet credited")
	return t, nil
}

// Spend charges the wallet for a platform purchase (coins, paid services).
func (s *Service) Spend(ctx context.Context, doctorID uuid.UUID, amount int64, txType TransactionType, ref Reference, notes string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var t *Transaction
	err := database.WithinTx(ctx, s.db, func(tx *sqlx.Tx) error {
		spent, err := s.repo.DebitForSpendTx(ctx, tx, doctorID, amount, txType, ref, notes)
		if err != nil {
			return err
		}
		t = spent
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, doctorID)
	log.Info().
		Str("doctor_id", doctorID.String()).
		Int64("amount", amount).
		Str("type", string(txType)).
		Msg("wallet spend applied")
	return t, nil
}

// AvailableForWithdrawal sums unclaimed completed doctor_credit rows. With no
// withdrawal mid-flight this equals the wallet's current balance minus spends.
func (s *Service) AvailableForWithdrawal(ctx context.Context, doctorID uuid.UUID) (int64, error) {
	credits, err := s.repo.ListUnclaimedCredits(ctx, doctorID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, c := range credits {
		total += c.Amount
	}
	return total, nil
}

// ListUnclaimedCredits returns the ledger rows a withdrawal may claim.
func (s *Service) ListUnclaimedCredits(ctx context.Context, doctorID uuid.UUID) ([]Transaction, error) {
	return s.repo.ListUnclaimedCredits(ctx, doctorID)
}

// ListTransactions returns paginated transaction history for a user.
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListByUser(ctx, userID, Pagination{Limit: limit, Offset: offset})
}

// SearchTransactions returns filtered transactions (admin use).
func (s *Service) SearchTransactions(ctx context.Context, filters SearchFilters) ([]Transaction, error) {
	return s.repo.Search(ctx, filters)
}

// CommissionRate reads the doctor's current platform cut.
func (s *Service) CommissionRate(ctx context.Context, doctorID uuid.UUID) (int, error) {
	return s.repo.CommissionRate(ctx, doctorID)
}

// SetCommissionRate adjusts the doctor's platform cut for future captures.
func (s *Service) SetCommissionRate(ctx context.Context, doctorID uuid.UUID, rate int) error {
	if err := s.repo.SetCommissionRate(ctx, doctorID, rate); err != nil {
		return err
	}
	log.Info().Str("doctor_id", doctorID.String()).Int("rate", rate).Msg("commission rate updated")
	return nil
}

// InvalidateBalance drops the cached balance after a sibling service commits
// a wallet mutation in its own transaction scope.
func (s *Service) InvalidateBalance(ctx context.Context, doctorID uuid.UUID) {
	s.cache.Invalidate(ctx, doctorID)
}
