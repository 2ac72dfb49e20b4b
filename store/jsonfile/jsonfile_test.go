package jsonfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/mockbank/ledger"
)

func TestStore_MissingFileIsEmpty(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope.json"), nil)

	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ledger.EmptySnapshot(), snap)
}

func TestStore_CorruptFileIsEmpty(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "truncated", content: `{"users": [`},
		{name: "not json", content: "hello"},
		{name: "wrong shape", content: `{"users": "everyone"}`},
		{name: "negative balance", content: `{"users":[{"id":1,"fullName":"Ann","email":"a@x.com","credentialSecret":"h","accounts":[{"number":"4000000000000001","balance":-10}]}],"nextUserId":2}`},
		{name: "duplicate account", content: `{"users":[{"id":1,"fullName":"Ann","email":"a@x.com","credentialSecret":"h","accounts":[{"number":"4000000000000001","balance":1}]},{"id":2,"fullName":"Bob","email":"b@x.com","credentialSecret":"h","accounts":[{"number":"4000000000000001","balance":1}]}],"nextUserId":3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bank.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			snap, err := New(path, nil).Load(context.Background())

			require.NoError(t, err)
			assert.Equal(t, ledger.EmptySnapshot(), snap)
		})
	}
}

func TestStore_RoundTripAndLayout(t *testing.T) {
	// GIVEN: A snapshot with one user and one account
	path := filepath.Join(t.TempDir(), "nested", "bank.json")
	s := New(path, nil)
	snap := ledger.Snapshot{
		NextUserID: 2,
		Users: []ledger.User{{
			ID: 1, FullName: "Ann", Email: "ann@x.com", CredentialSecret: "hash",
			Accounts: []ledger.Account{{Number: "4000000000000001", Balance: ledger.MustMoney("100")}},
		}},
	}

	// WHEN: Saving
	require.NoError(t, s.Save(context.Background(), snap))

	// THEN: The file has the documented layout
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"users": [{
			"id": 1, "fullName": "Ann", "email": "ann@x.com", "credentialSecret": "hash",
			"accounts": [{"number": "4000000000000001", "balance": 100.00}]
		}],
		"nextUserId": 2
	}`, string(raw))
	assert.Contains(t, string(raw), `"balance": 100.00`)

	// AND: No temp file is left behind
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "100.00", loaded.Users[0].Accounts[0].Balance.String())
}

func TestStore_BalanceAsString(t *testing.T) {
	// Older snapshots stored balances as strings.
	path := filepath.Join(t.TempDir(), "bank.json")
	legacy := map[string]any{
		"users": []any{map[string]any{
			"id": 1, "fullName": "Ann", "email": "a@x.com", "credentialSecret": "h",
			"accounts": []any{map[string]any{"number": "4000000000000001", "balance": "12.5"}},
		}},
		"nextUserId": 2,
	}
	b, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o644))

	snap, err := New(path, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "12.50", snap.Users[0].Accounts[0].Balance.String())
}

func TestStore_BankSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.json")
	ctx := context.Background()

	bank := ledger.New(New(path, nil), ledger.WithHashCost(bcrypt.MinCost))
	ann, err := bank.Register(ctx, "Ann", "ann@x.com", "abcdef")
	require.NoError(t, err)
	n, err := bank.CreateAccount(ctx, ann.UserID)
	require.NoError(t, err)
	_, err = bank.Deposit(ctx, n, ledger.MustMoney("7.77"))
	require.NoError(t, err)

	restarted := ledger.New(New(path, nil), ledger.WithHashCost(bcrypt.MinCost))
	balance, err := restarted.Balance(ctx, n)
	require.NoError(t, err)
	assert.Equal(t, "7.77", balance.String())

	// No journal on this store
	history, err := restarted.History(ctx, n, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}
