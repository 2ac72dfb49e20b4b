/*
main.go - Command-line client for the mock bank

PURPOSE:
  Submits one action and prints the resulting envelope as JSON. The same
  request goes either to a running server (-mode=remote) or straight to a
  ledger opened in process (-mode=local), which makes the two transports
  easy to compare.

USAGE:
  client [flags] <action> [field=value ...]

  client -mode=remote -url=http://localhost:8080/api/bank \
      register fullName="Ann Lee" email=ann@x.io
  client -mode=local -db=./bank.db topup accountNumber=4000... amount=100

  credentialSecret is prompted for without echo when it is missing and
  stdin is a terminal.

FLAGS:
  -mode   local | remote (default: remote)
  -url    Action endpoint for remote mode
  -db     SQLite database path for local mode
*/
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/warp/mockbank/dispatch"
	"github.com/warp/mockbank/ledger"
	"github.com/warp/mockbank/store/sqlite"
)

// readPassword and isTerminal are seams over golang.org/x/term.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code: 0 for a success envelope, 1 for a
// failure envelope and 2 for usage errors.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.SetOutput(stderr)
	mode := fs.String("mode", "remote", "local or remote")
	endpoint := fs.String("url", "http://localhost:8080/api/bank", "action endpoint (remote mode)")
	dbPath := fs.String("db", "mockbank.db", "SQLite database path (local mode)")
	timeout := fs.Duration("timeout", 15*time.Second, "request timeout")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: client [flags] <action> [field=value ...]")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	action := fs.Arg(0)
	values, err := parsePairs(fs.Args()[1:])
	if err != nil {
		fmt.Fprintf(stderr, "client: %v\n", err)
		return 2
	}
	if err := promptSecret(action, values, stderr); err != nil {
		fmt.Fprintf(stderr, "client: %v\n", err)
		return 2
	}

	submitter, closeFn, err := newSubmitter(*mode, *endpoint, *dbPath)
	if err != nil {
		fmt.Fprintf(stderr, "client: %v\n", err)
		return 2
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	var env dispatch.Envelope
	req, err := dispatch.Parse(action, values)
	if err != nil {
		env = dispatch.Fail(err.Error())
	} else {
		env = submitter.Submit(ctx, req)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		fmt.Fprintf(stderr, "client: %v\n", err)
		return 2
	}
	if !env.Success {
		return 1
	}
	return 0
}

func newSubmitter(mode, endpoint, dbPath string) (dispatch.Submitter, func(), error) {
	switch mode {
	case "remote":
		return dispatch.NewRemote(endpoint, nil), func() {}, nil
	case "local":
		store, err := sqlite.New(dbPath, slog.New(slog.NewTextHandler(io.Discard, nil)))
		if err != nil {
			return nil, nil, err
		}
		bank := ledger.New(store)
		return dispatch.NewLocal(bank, nil, nil), func() { store.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown mode %q", mode)
	}
}

// parsePairs turns field=value arguments into wire values.
func parsePairs(pairs []string) (url.Values, error) {
	values := url.Values{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("argument %q is not field=value", p)
		}
		values.Set(k, v)
	}
	return values, nil
}

// promptSecret asks for credentialSecret when an action needs it and
// none was given on the command line.
func promptSecret(action string, values url.Values, w io.Writer) error {
	switch dispatch.Action(action) {
	case dispatch.ActionRegister, dispatch.ActionLogin:
	default:
		return nil
	}
	if values.Get(dispatch.FieldCredentialSecret) != "" || values.Get("password") != "" {
		return nil
	}

	fd := int(os.Stdin.Fd())
	if !isTerminal(fd) {
		return nil
	}

	fmt.Fprint(w, "Enter password: ")
	secret, err := readPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return errors.Join(errors.New("could not read password"), err)
	}
	values.Set(dispatch.FieldCredentialSecret, string(secret))
	return nil
}
