package ledger_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/mockbank/ledger"
	"github.com/warp/mockbank/ledger/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var fixedNow = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

func newTestBank(t *testing.T, opts ...ledger.Option) (*ledger.Bank, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	opts = append([]ledger.Option{
		ledger.WithHashCost(bcrypt.MinCost),
		ledger.WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	return ledger.New(mem, opts...), mem
}

// sequentialNumbers yields 4000000000000001, 4000000000000002, ...
func sequentialNumbers() ledger.NumberGenerator {
	n := 0
	return func() (ledger.AccountNumber, error) {
		n++
		return ledger.AccountNumber(fmt.Sprintf("%s%012d", ledger.AccountPrefix, n)), nil
	}
}

func money(s string) ledger.Money {
	return ledger.MustMoney(s)
}

func mustRegister(t *testing.T, b *ledger.Bank, name, email string) ledger.Identity {
	t.Helper()
	id, err := b.Register(context.Background(), name, email, "abcdef")
	require.NoError(t, err)
	return id
}

func mustAccount(t *testing.T, b *ledger.Bank, user ledger.UserID) ledger.AccountNumber {
	t.Helper()
	n, err := b.CreateAccount(context.Background(), user)
	require.NoError(t, err)
	return n
}

func mustDeposit(t *testing.T, b *ledger.Bank, n ledger.AccountNumber, amount string) {
	t.Helper()
	_, err := b.Deposit(context.Background(), n, money(amount))
	require.NoError(t, err)
}

func balanceOf(t *testing.T, b *ledger.Bank, n ledger.AccountNumber) string {
	t.Helper()
	m, err := b.Balance(context.Background(), n)
	require.NoError(t, err)
	return m.String()
}
