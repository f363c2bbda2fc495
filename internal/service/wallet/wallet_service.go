package wallet

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/saburov/airfare/internal/domain"
	"github.com/saburov/airfare/internal/repository"
)

type WalletUseCase interface {
	GetBalance(ctx context.Context, externalID string) (int64, error)
	Resolve(ctx context.Context, externalID string) (*domain.User, error)
	ResolveOrProvision(ctx context.Context, externalID string) (*domain.User, error)
	Debit(ctx context.Context, userID, amountCents int64) (int64, error)
	Credit(ctx context.Context, userID, amountCents int64) (int64, error)
}

type WalletService struct {
	wallets             repository.WalletRepository
	defaultBalanceCents int64
}

func NewWalletService(wallets repository.WalletRepository, defaultBalanceCents int64) *WalletService {
	return &WalletService{
		wallets:             wallets,
		defaultBalanceCents: defaultBalanceCents,
	}
}

// GetBalance provisions unknown identifiers, matching the demo-account
// behavior of the wallet endpoints.
func (s *WalletService) GetBalance(ctx context.Context, externalID string) (int64, error) {
	user, err := s.ResolveOrProvision(ctx, externalID)
	if err != nil {
		return 0, err
	}
	return user.WalletBalanceCents, nil
}

// Resolve looks up an existing account and never provisions one.
func (s *WalletService) Resolve(ctx context.Context, externalID string) (*domain.User, error) {
	return s.wallets.GetByExternalID(ctx, externalID)
}

// ResolveOrProvision maps an identifier to an account, creating one with the
// default starting balance when it does not exist. Provisioning is logged so
// demo-account creation stays visible.
func (s *WalletService) ResolveOrProvision(ctx context.Context, externalID string) (*domain.User, error) {
	user, err := s.wallets.GetByExternalID(ctx, externalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	provisioned := &domain.User{
		ExternalID:         externalID,
		Name:               "Guest " + externalID,
		Email:              fmt.Sprintf("%s@example.com", externalID),
		WalletBalanceCents: s.defaultBalanceCents,
	}
	if err := s.wallets.Provision(ctx, provisioned); err != nil {
		return nil, err
	}
	log.Printf("provisioned wallet account %q with starting balance %d", externalID, s.defaultBalanceCents)
	return provisioned, nil
}

// Debit removes amountCents from the wallet as one atomic unit of work. The
// balance is untouched on any failure.
func (s *WalletService) Debit(ctx context.Context, userID, amountCents int64) (int64, error) {
	if amountCents <= 0 {
		return 0, domain.ErrInvalidAmount
	}

	var balance int64
	err := s.wallets.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		balance, err = s.wallets.Debit(txCtx, userID, amountCents)
		return err
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *WalletService) Credit(ctx context.Context, userID, amountCents int64) (int64, error) {
	if amountCents <= 0 {
		return 0, domain.ErrInvalidAmount
	}

	var balance int64
	err := s.wallets.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		balance, err = s.wallets.Credit(txCtx, userID, amountCents)
		return err
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

var _ WalletUseCase = (*WalletService)(nil)
