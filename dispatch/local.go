package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/warp/mockbank/ledger"
	"github.com/warp/mockbank/metrics"
)

// Submitter executes a request and always answers with an envelope.
type Submitter interface {
	Submit(ctx context.Context, req Request) Envelope
}

// internalErrorMessage is shown for failures that are not the caller's fault.
const internalErrorMessage = "internal error, please try again later"

// =============================================================================
// LOCAL SUBMITTER - Runs the ledger in process
// =============================================================================

// Local executes requests against a ledger.Bank in the same process.
type Local struct {
	bank    *ledger.Bank
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewLocal creates a Local submitter. log and m may be nil.
func NewLocal(bank *ledger.Bank, log *slog.Logger, m *metrics.Metrics) *Local {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Local{bank: bank, log: log, metrics: m}
}

// Submit runs req and converts the outcome into an envelope.
func (l *Local) Submit(ctx context.Context, req Request) Envelope {
	if req == nil {
		return Fail(ErrUnknownAction.Error())
	}
	start := time.Now()
	action := string(req.Action())

	result, message, err := l.execute(ctx, req)

	var env Envelope
	switch {
	case err == nil:
		env = Ok(message, result)
		l.count(req)
	case ledger.IsClientError(err):
		env = Fail(err.Error())
		l.log.InfoContext(ctx, "action rejected", "action", action, "reason", err.Error())
	default:
		env = Fail(internalErrorMessage)
		l.log.ErrorContext(ctx, "action failed", "action", action, "error", err)
	}

	l.metrics.ObserveAction(action, env.Success, time.Since(start))
	return env
}

func (l *Local) count(req Request) {
	switch req.(type) {
	case Register:
		l.metrics.IncUsersRegistered()
	case CreateAccount:
		l.metrics.IncAccountsOpened()
	}
}

// execute is the total switch over request variants.
func (l *Local) execute(ctx context.Context, req Request) (Result, string, error) {
	switch r := req.(type) {
	case Register:
		id, err := l.bank.Register(ctx, r.FullName, r.Email, r.CredentialSecret)
		return IdentityResult{UserID: id.UserID, FullName: id.FullName}, "Registration completed.", err

	case Login:
		id, err := l.bank.Login(ctx, r.LoginIdentifier, r.CredentialSecret)
		return IdentityResult{UserID: id.UserID, FullName: id.FullName}, "Login successful.", err

	case GetAccounts:
		accounts, err := l.bank.ListAccounts(ctx, r.UserID)
		return AccountsResult{Accounts: accounts}, "Accounts retrieved.", err

	case CreateAccount:
		number, err := l.bank.CreateAccount(ctx, r.UserID)
		return CreatedResult{AccountNumber: number}, "Account created.", err

	case DeleteAccount:
		err := l.bank.DeleteAccount(ctx, r.UserID, r.AccountNumber)
		return nil, "Account deleted.", err

	case Topup:
		balance, err := l.bank.Deposit(ctx, r.AccountNumber, r.Amount)
		return NewBalanceResult{NewBalance: balance}, "Balance topped up.", err

	case Withdraw:
		balance, err := l.bank.Withdraw(ctx, r.AccountNumber, r.Amount)
		return NewBalanceResult{NewBalance: balance}, "Withdrawal completed.", err

	case Transfer:
		balance, err := l.bank.Transfer(ctx, r.FromAccount, r.ToAccount, r.Amount)
		return NewBalanceResult{NewBalance: balance}, "Transfer completed.", err

	case GetBalance:
		balance, err := l.bank.Balance(ctx, r.AccountNumber)
		return BalanceResult{Balance: balance}, "Balance retrieved.", err

	default:
		return nil, "", fmt.Errorf("%w: %T", ErrUnknownAction, req)
	}
}
