package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/mockbank/api"
	"github.com/warp/mockbank/dispatch"
	"github.com/warp/mockbank/ledger"
	"github.com/warp/mockbank/ledger/store"
)

func decode(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func TestParsePairs(t *testing.T) {
	values, err := parsePairs([]string{"fullName=Ann Lee", "amount=1.50", "email="})
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee", values.Get("fullName"))
	assert.Equal(t, "1.50", values.Get("amount"))
	assert.True(t, values.Has("email"))

	_, err = parsePairs([]string{"noequals"})
	assert.Error(t, err)
	_, err = parsePairs([]string{"=value"})
	assert.Error(t, err)
}

func stubTerminal(t *testing.T, tty bool, read func(int) ([]byte, error)) {
	t.Helper()
	origTerminal, origRead := isTerminal, readPassword
	isTerminal = func(int) bool { return tty }
	readPassword = read
	t.Cleanup(func() {
		isTerminal, readPassword = origTerminal, origRead
	})
}

func TestPromptSecret_ReadsFromTerminal(t *testing.T) {
	stubTerminal(t, true, func(int) ([]byte, error) { return []byte("s3cret!"), nil })

	// GIVEN: a login without a secret
	values, _ := parsePairs([]string{"loginIdentifier=ann@x.io"})

	// WHEN: prompting
	var out bytes.Buffer
	require.NoError(t, promptSecret("login", values, &out))

	// THEN: the secret is filled in from the terminal
	assert.Equal(t, "s3cret!", values.Get(dispatch.FieldCredentialSecret))
	assert.Contains(t, out.String(), "Enter password")
}

func TestPromptSecret_SkipsWhenGivenOrNotNeeded(t *testing.T) {
	stubTerminal(t, true, func(int) ([]byte, error) {
		t.Fatal("password should not be read")
		return nil, nil
	})

	values, _ := parsePairs([]string{"credentialSecret=given"})
	require.NoError(t, promptSecret("register", values, &bytes.Buffer{}))
	assert.Equal(t, "given", values.Get(dispatch.FieldCredentialSecret))

	values, _ = parsePairs([]string{"accountNumber=4000"})
	require.NoError(t, promptSecret("getBalance", values, &bytes.Buffer{}))
}

func TestRun_Local(t *testing.T) {
	db := filepath.Join(t.TempDir(), "bank.db")
	ctx := context.Background()

	// GIVEN: a registration through the in-process ledger
	var out, errOut bytes.Buffer
	code := run(ctx, []string{"-mode", "local", "-db", db,
		"register", "fullName=Ann Lee", "email=ann@x.io", "credentialSecret=secret1"}, &out, &errOut)

	// THEN: the envelope is printed and the exit code is 0
	require.Equal(t, 0, code, errOut.String())
	env := decode(t, out.Bytes())
	assert.Equal(t, true, env["success"])
	assert.Equal(t, float64(1), env["userId"])

	// WHEN: the same email registers again against the same database
	out.Reset()
	code = run(ctx, []string{"-mode", "local", "-db", db,
		"register", "fullName=Ann Lee", "email=ann@x.io", "credentialSecret=secret1"}, &out, &errOut)

	// THEN: the failure envelope comes back with exit code 1
	assert.Equal(t, 1, code)
	assert.Equal(t, false, decode(t, out.Bytes())["success"])
}

func TestRun_Remote(t *testing.T) {
	bank := ledger.New(store.NewMemory())
	h := api.NewHandler(bank, dispatch.NewLocal(bank, nil, nil), nil, nil)
	srv := httptest.NewServer(api.NewRouter(h, []string{"*"}))
	t.Cleanup(srv.Close)

	var out, errOut bytes.Buffer
	code := run(context.Background(), []string{"-url", srv.URL + "/api/bank",
		"register", "fullName=Bo", "email=bo@x.io", "credentialSecret=secret1"}, &out, &errOut)

	require.Equal(t, 0, code, errOut.String())
	env := decode(t, out.Bytes())
	assert.Equal(t, "Bo", env["fullName"])
}

func TestRun_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no action", args: nil},
		{name: "bad pair", args: []string{"getBalance", "accountNumber"}},
		{name: "bad mode", args: []string{"-mode", "carrier-pigeon", "getBalance", "accountNumber=1"}},
		{name: "bad flag", args: []string{"-nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			assert.Equal(t, 2, run(context.Background(), tt.args, &out, &errOut))
		})
	}
}

func TestRun_UnknownActionPrintsFailureEnvelope(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run(context.Background(), []string{"-mode", "local", "-db", filepath.Join(t.TempDir(), "b.db"), "launderMoney"}, &out, &errOut)

	assert.Equal(t, 1, code)
	env := decode(t, out.Bytes())
	assert.Equal(t, false, env["success"])
	assert.Equal(t, "unknown action: launderMoney", env["message"])
}
