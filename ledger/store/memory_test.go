package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/mockbank/ledger"
)

func TestMemory_StartsEmpty(t *testing.T) {
	m := NewMemory()

	snap, err := m.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ledger.EmptySnapshot(), snap)
	assert.Zero(t, m.Saves())
}

func TestMemory_LoadReturnsACopy(t *testing.T) {
	// GIVEN: A saved snapshot
	m := NewMemory()
	ctx := context.Background()
	snap := ledger.Snapshot{NextUserID: 2, Users: []ledger.User{{
		ID: 1, FullName: "Ann", Accounts: []ledger.Account{{Number: "4000000000000001", Balance: ledger.MustMoney("5")}},
	}}}
	require.NoError(t, m.Save(ctx, snap))

	// WHEN: Mutating what Load returned, and what was passed to Save
	loaded, err := m.Load(ctx)
	require.NoError(t, err)
	loaded.Users[0].Accounts[0].Balance = ledger.MustMoney("100")
	snap.Users[0].Accounts[0].Balance = ledger.MustMoney("200")

	// THEN: The store is unaffected
	again, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "5.00", again.Users[0].Accounts[0].Balance.String())
	assert.Equal(t, 1, m.Saves())
}

func TestMemory_SaveNormalizes(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.Save(ctx, ledger.Snapshot{Users: []ledger.User{{ID: 4}}}))

	snap, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.UserID(5), snap.NextUserID)
	assert.NotNil(t, snap.Users[0].Accounts)
}

func TestMemory_EntriesNewestFirst(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	a := ledger.AccountNumber("4000000000000001")
	b := ledger.AccountNumber("4000000000000002")

	require.NoError(t, m.SaveWithEntries(ctx, ledger.EmptySnapshot(), []ledger.Entry{
		{ID: "1", AccountNumber: a, Kind: ledger.EntryDeposit},
		{ID: "2", AccountNumber: b, Kind: ledger.EntryDeposit},
	}))
	require.NoError(t, m.SaveWithEntries(ctx, ledger.EmptySnapshot(), []ledger.Entry{
		{ID: "3", AccountNumber: a, Kind: ledger.EntryWithdrawal},
	}))

	all, err := m.Entries(ctx, a, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "3", all[0].ID)
	assert.Equal(t, "1", all[1].ID)

	one, err := m.Entries(ctx, a, 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)

	none, err := m.Entries(ctx, "4000000000000009", 0)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
	assert.Equal(t, 2, m.Saves())
}
