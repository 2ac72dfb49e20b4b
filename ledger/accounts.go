package ledger

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	// MaxAccountsPerUser caps how many accounts one user may hold.
	MaxAccountsPerUser = 3

	// AccountPrefix leads every account number.
	AccountPrefix = "4000"

	accountRandomDigits = 12
	numberAttempts      = 10
)

// NumberGenerator produces candidate account numbers.
type NumberGenerator func() (AccountNumber, error)

var accountSpace = new(big.Int).Exp(big.NewInt(10), big.NewInt(accountRandomDigits), nil)

// RandomAccountNumber returns AccountPrefix followed by 12 random digits.
func RandomAccountNumber() (AccountNumber, error) {
	n, err := rand.Int(rand.Reader, accountSpace)
	if err != nil {
		return "", fmt.Errorf("could not generate account number: %w", err)
	}
	return AccountNumber(fmt.Sprintf("%s%0*d", AccountPrefix, accountRandomDigits, n)), nil
}

// =============================================================================
// ACCOUNT MANAGER
// =============================================================================

// ListAccounts returns the user's accounts in creation order.
func (b *Bank) ListAccounts(ctx context.Context, userID UserID) ([]Account, error) {
	var out []Account
	err := b.view(ctx, func(s *Snapshot) error {
		u := s.userByID(userID)
		if u == nil {
			return ErrUserNotFound
		}
		out = append([]Account{}, u.Accounts...)
		return nil
	})
	return out, err
}

// CreateAccount opens a zero-balance account for the user.
func (b *Bank) CreateAccount(ctx context.Context, userID UserID) (AccountNumber, error) {
	var number AccountNumber
	err := b.update(ctx, func(s *Snapshot) ([]Entry, error) {
		u := s.userByID(userID)
		if u == nil {
			return nil, ErrUserNotFound
		}
		if len(u.Accounts) >= MaxAccountsPerUser {
			return nil, fmt.Errorf("%w: at most %d accounts per user", ErrAccountLimit, MaxAccountsPerUser)
		}

		n, err := b.uniqueNumber(s)
		if err != nil {
			return nil, err
		}
		u.Accounts = append(u.Accounts, Account{Number: n, Balance: Zero})
		number = n
		return nil, nil
	})
	if err != nil {
		return "", err
	}

	b.log.InfoContext(ctx, "account created", "user_id", userID, "account", number)
	return number, nil
}

// uniqueNumber draws numbers until one is unused, up to numberAttempts.
func (b *Bank) uniqueNumber(s *Snapshot) (AccountNumber, error) {
	for i := 0; i < numberAttempts; i++ {
		n, err := b.newNumber()
		if err != nil {
			return "", err
		}
		if s.account(n) == nil {
			return n, nil
		}
	}
	return "", ErrNumberSpace
}

// DeleteAccount removes one of the user's accounts. The balance must be zero.
func (b *Bank) DeleteAccount(ctx context.Context, userID UserID, number AccountNumber) error {
	err := b.update(ctx, func(s *Snapshot) ([]Entry, error) {
		u := s.userByID(userID)
		if u == nil {
			return nil, ErrUserNotFound
		}
		for i, a := range u.Accounts {
			if a.Number != number {
				continue
			}
			if !a.Balance.IsZero() {
				return nil, fmt.Errorf("%w: balance is %s", ErrNonZeroBalance, a.Balance)
			}
			u.Accounts = append(u.Accounts[:i], u.Accounts[i+1:]...)
			return nil, nil
		}
		return nil, ErrAccountNotFound
	})
	if err != nil {
		return err
	}

	b.log.InfoContext(ctx, "account deleted", "user_id", userID, "account", number)
	return nil
}
