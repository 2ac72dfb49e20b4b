package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/mockbank/ledger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleSnapshot() ledger.Snapshot {
	return ledger.Snapshot{
		NextUserID: 3,
		Users: []ledger.User{
			{
				ID: 1, FullName: "Ann", Email: "ann@x.com", CredentialSecret: "$2a$04$hash",
				Accounts: []ledger.Account{
					{Number: "4000000000000002", Balance: ledger.MustMoney("10.50")},
					{Number: "4000000000000001", Balance: ledger.MustMoney("0")},
				},
			},
			{ID: 2, FullName: "Bob", Email: "bob@x.com", CredentialSecret: "$2a$04$other", Accounts: []ledger.Account{}},
		},
	}
}

func TestStore_EmptyDatabaseLoadsEmptySnapshot(t *testing.T) {
	store := newTestStore(t)

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ledger.EmptySnapshot(), snap)
}

func TestStore_RoundTrip(t *testing.T) {
	// GIVEN: A saved snapshot
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleSnapshot()))

	// WHEN: Loading it back
	snap, err := store.Load(ctx)
	require.NoError(t, err)

	// THEN: Users, account order and balances survive
	require.Len(t, snap.Users, 2)
	assert.Equal(t, ledger.UserID(3), snap.NextUserID)
	assert.Equal(t, "Ann", snap.Users[0].FullName)
	assert.Equal(t, "$2a$04$hash", snap.Users[0].CredentialSecret)
	require.Len(t, snap.Users[0].Accounts, 2)
	assert.Equal(t, ledger.AccountNumber("4000000000000002"), snap.Users[0].Accounts[0].Number)
	assert.Equal(t, "10.50", snap.Users[0].Accounts[0].Balance.String())
	assert.NotNil(t, snap.Users[1].Accounts)
	assert.Empty(t, snap.Users[1].Accounts)
}

func TestStore_SaveReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleSnapshot()))

	// Ann deletes her second account
	snap := sampleSnapshot()
	snap.Users[0].Accounts = snap.Users[0].Accounts[:1]
	require.NoError(t, store.Save(ctx, snap))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded.Users[0].Accounts, 1)
}

func TestStore_DuplicateEmailRejectedBySchema(t *testing.T) {
	// GIVEN: Two users whose emails differ only in case
	store := newTestStore(t)
	snap := sampleSnapshot()
	snap.Users[1].Email = "ANN@x.com"

	// WHEN: Saving
	err := store.Save(context.Background(), snap)

	// THEN: The unique index refuses and nothing is written
	require.Error(t, err)
	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded.Users)
}

func TestStore_Journal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	a := ledger.AccountNumber("4000000000000002")

	require.NoError(t, store.SaveWithEntries(ctx, sampleSnapshot(), []ledger.Entry{
		{ID: "e1", AccountNumber: a, Kind: ledger.EntryDeposit, Amount: ledger.MustMoney("10.50"), BalanceAfter: ledger.MustMoney("10.50"), CreatedAt: at},
	}))
	require.NoError(t, store.SaveWithEntries(ctx, sampleSnapshot(), []ledger.Entry{
		{ID: "e2", AccountNumber: a, Kind: ledger.EntryTransferOut, Amount: ledger.MustMoney("1"), BalanceAfter: ledger.MustMoney("9.50"), Counterparty: "4000000000000001", CreatedAt: at},
		{ID: "e3", AccountNumber: "4000000000000001", Kind: ledger.EntryTransferIn, Amount: ledger.MustMoney("1"), BalanceAfter: ledger.MustMoney("1"), Counterparty: a, CreatedAt: at},
	}))

	entries, err := store.Entries(ctx, a, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "e2", entries[0].ID)
	assert.Equal(t, ledger.EntryTransferOut, entries[0].Kind)
	assert.Equal(t, ledger.AccountNumber("4000000000000001"), entries[0].Counterparty)
	assert.Equal(t, "9.50", entries[0].BalanceAfter.String())
	assert.True(t, at.Equal(entries[0].CreatedAt))
	assert.Equal(t, "e1", entries[1].ID)
	assert.Empty(t, entries[1].Counterparty)

	limited, err := store.Entries(ctx, a, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStore_FailedSaveDropsEntries(t *testing.T) {
	// GIVEN: A snapshot the schema rejects
	store := newTestStore(t)
	snap := sampleSnapshot()
	snap.Users[1].Email = "ann@x.com"

	// WHEN: Saving it together with a journal entry
	err := store.SaveWithEntries(context.Background(), snap, []ledger.Entry{
		{ID: "e1", AccountNumber: "4000000000000002", Kind: ledger.EntryDeposit, Amount: ledger.MustMoney("1"), BalanceAfter: ledger.MustMoney("1"), CreatedAt: time.Now()},
	})

	// THEN: Neither the snapshot nor the entry is persisted
	require.Error(t, err)
	entries, err := store.Entries(context.Background(), "4000000000000002", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_BankOnFile(t *testing.T) {
	// GIVEN: A bank on a database file
	path := filepath.Join(t.TempDir(), "bank.db")
	store, err := New(path, nil)
	require.NoError(t, err)
	ctx := context.Background()

	bank := ledger.New(store, ledger.WithHashCost(bcrypt.MinCost))
	ann, err := bank.Register(ctx, "Ann", "ann@x.com", "abcdef")
	require.NoError(t, err)
	n, err := bank.CreateAccount(ctx, ann.UserID)
	require.NoError(t, err)
	_, err = bank.Deposit(ctx, n, ledger.MustMoney("42"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// WHEN: Reopening the file
	reopened, err := New(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })
	bank = ledger.New(reopened, ledger.WithHashCost(bcrypt.MinCost))

	// THEN: State, credentials and journal are all there
	balance, err := bank.Balance(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, "42.00", balance.String())

	_, err = bank.Login(ctx, "ann@x.com", "abcdef")
	assert.NoError(t, err)

	bob, err := bank.Register(ctx, "Bob", "bob@x.com", "abcdef")
	require.NoError(t, err)
	assert.Equal(t, ledger.UserID(2), bob.UserID)

	history, err := bank.History(ctx, n, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
