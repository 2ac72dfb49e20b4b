package ledger

import (
	"context"
	"fmt"
)

// =============================================================================
// TRANSACTION ENGINE
// =============================================================================

// Deposit adds amount to the account and returns the new balance.
func (b *Bank) Deposit(ctx context.Context, number AccountNumber, amount Money) (Money, error) {
	if err := validateAmount(amount); err != nil {
		return Money{}, err
	}

	var balance Money
	err := b.update(ctx, func(s *Snapshot) ([]Entry, error) {
		a := s.account(number)
		if a == nil {
			return nil, ErrAccountNotFound
		}
		a.Balance = a.Balance.Add(amount)
		balance = a.Balance
		return []Entry{{AccountNumber: number, Kind: EntryDeposit, Amount: amount, BalanceAfter: balance}}, nil
	})
	if err != nil {
		return Money{}, err
	}
	return balance, nil
}

// Withdraw subtracts amount from the account and returns the new balance.
func (b *Bank) Withdraw(ctx context.Context, number AccountNumber, amount Money) (Money, error) {
	if err := validateAmount(amount); err != nil {
		return Money{}, err
	}

	var balance Money
	err := b.update(ctx, func(s *Snapshot) ([]Entry, error) {
		a := s.account(number)
		if a == nil {
			return nil, ErrAccountNotFound
		}
		if a.Balance.LessThan(amount) {
			return nil, &InsufficientFundsError{Account: number, Available: a.Balance, Requested: amount}
		}
		a.Balance = a.Balance.Sub(amount)
		balance = a.Balance
		return []Entry{{AccountNumber: number, Kind: EntryWithdrawal, Amount: amount, BalanceAfter: balance}}, nil
	})
	if err != nil {
		return Money{}, err
	}
	return balance, nil
}

// Transfer moves amount between any two accounts, regardless of owner, and
// returns the source account's new balance. Both legs commit together.
func (b *Bank) Transfer(ctx context.Context, from, to AccountNumber, amount Money) (Money, error) {
	if from == to {
		return Money{}, ErrSameAccount
	}
	if err := validateAmount(amount); err != nil {
		return Money{}, err
	}

	var balance Money
	err := b.update(ctx, func(s *Snapshot) ([]Entry, error) {
		src := s.account(from)
		if src == nil {
			return nil, fmt.Errorf("source: %w", ErrAccountNotFound)
		}
		dst := s.account(to)
		if dst == nil {
			return nil, fmt.Errorf("destination: %w", ErrAccountNotFound)
		}
		if src.Balance.LessThan(amount) {
			return nil, &InsufficientFundsError{Account: from, Available: src.Balance, Requested: amount}
		}

		src.Balance = src.Balance.Sub(amount)
		dst.Balance = dst.Balance.Add(amount)
		balance = src.Balance

		return []Entry{
			{AccountNumber: from, Kind: EntryTransferOut, Amount: amount, BalanceAfter: src.Balance, Counterparty: to},
			{AccountNumber: to, Kind: EntryTransferIn, Amount: amount, BalanceAfter: dst.Balance, Counterparty: from},
		}, nil
	})
	if err != nil {
		return Money{}, err
	}

	b.log.InfoContext(ctx, "transfer completed", "from", from, "to", to, "amount", amount.String())
	return balance, nil
}

// Balance returns the account's current balance.
func (b *Bank) Balance(ctx context.Context, number AccountNumber) (Money, error) {
	var balance Money
	err := b.view(ctx, func(s *Snapshot) error {
		a := s.account(number)
		if a == nil {
			return ErrAccountNotFound
		}
		balance = a.Balance
		return nil
	})
	return balance, err
}

// History returns journal entries for the account, newest first. Stores
// without a journal yield an empty history.
func (b *Bank) History(ctx context.Context, number AccountNumber, limit int) ([]Entry, error) {
	if _, err := b.Balance(ctx, number); err != nil {
		return nil, err
	}
	js, ok := b.store.(JournalStore)
	if !ok {
		return []Entry{}, nil
	}
	return js.Entries(ctx, number, limit)
}
