/*
Package dispatch maps named actions onto ledger operations and wraps every
outcome in a uniform envelope.

PURPOSE:
  The dispatcher is the seam between callers and the ledger. A caller
  builds a Request (one struct per action), hands it to a Submitter and
  gets back an Envelope. Whether the Submitter runs the ledger in process
  (Local) or posts the request to a server (Remote) is invisible to the
  caller.

KEY TYPES:
  Request:   Sealed interface, one variant per action
  Envelope:  {success, message, ...result fields}
  Submitter: Submit(ctx, Request) Envelope
  Local:     Runs requests against a *ledger.Bank
  Remote:    Posts requests to an HTTP endpoint

WIRE FORMAT:
  Requests travel as form values: "action" plus the payload fields
  listed in the action table. Parse turns wire values back into a
  Request; an unknown action name is an error, not a panic.

SEE ALSO:
  - envelope.go: Envelope and result types
  - api/handlers.go: The HTTP endpoint that feeds Parse
*/
package dispatch

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/warp/mockbank/ledger"
)

// Action is the wire name of an operation.
type Action string

const (
	ActionRegister      Action = "register"
	ActionLogin         Action = "login"
	ActionGetAccounts   Action = "getAccounts"
	ActionCreateAccount Action = "createAccount"
	ActionDeleteAccount Action = "deleteAccount"
	ActionTopup         Action = "topup"
	ActionWithdraw      Action = "withdraw"
	ActionTransfer      Action = "transfer"
	ActionGetBalance    Action = "getBalance"
)

// Actions lists every supported action.
var Actions = []Action{
	ActionRegister, ActionLogin, ActionGetAccounts, ActionCreateAccount, ActionDeleteAccount,
	ActionTopup, ActionWithdraw, ActionTransfer, ActionGetBalance,
}

// ReadOnly reports whether the action leaves the ledger unchanged and
// carries no credential secret.
func (a Action) ReadOnly() bool {
	return a == ActionGetBalance || a == ActionGetAccounts
}

// Payload field names.
const (
	FieldAction           = "action"
	FieldFullName         = "fullName"
	FieldEmail            = "email"
	FieldCredentialSecret = "credentialSecret"
	FieldLoginIdentifier  = "loginIdentifier"
	FieldUserID           = "userId"
	FieldAccountNumber    = "accountNumber"
	FieldFromAccount      = "fromAccount"
	FieldToAccount        = "toAccount"
	FieldAmount           = "amount"
)

// Older clients send these names instead.
var fieldAliases = map[string]string{
	FieldCredentialSecret: "password",
	FieldLoginIdentifier:  "login",
}

// ErrUnknownAction is returned by Parse for an action name it does not know.
var ErrUnknownAction = errors.New("unknown action")

// =============================================================================
// REQUEST VARIANTS
// =============================================================================

// Request is implemented only by the variants in this file.
type Request interface {
	Action() Action
	isRequest()
}

type Register struct {
	FullName         string
	Email            string
	CredentialSecret string
}

type Login struct {
	LoginIdentifier  string
	CredentialSecret string
}

type GetAccounts struct {
	UserID ledger.UserID
}

type CreateAccount struct {
	UserID ledger.UserID
}

type DeleteAccount struct {
	UserID        ledger.UserID
	AccountNumber ledger.AccountNumber
}

type Topup struct {
	AccountNumber ledger.AccountNumber
	Amount        ledger.Money
}

type Withdraw struct {
	AccountNumber ledger.AccountNumber
	Amount        ledger.Money
}

type Transfer struct {
	FromAccount ledger.AccountNumber
	ToAccount   ledger.AccountNumber
	Amount      ledger.Money
}

type GetBalance struct {
	AccountNumber ledger.AccountNumber
}

func (Register) Action() Action      { return ActionRegister }
func (Login) Action() Action         { return ActionLogin }
func (GetAccounts) Action() Action   { return ActionGetAccounts }
func (CreateAccount) Action() Action { return ActionCreateAccount }
func (DeleteAccount) Action() Action { return ActionDeleteAccount }
func (Topup) Action() Action         { return ActionTopup }
func (Withdraw) Action() Action      { return ActionWithdraw }
func (Transfer) Action() Action      { return ActionTransfer }
func (GetBalance) Action() Action    { return ActionGetBalance }

func (Register) isRequest()      {}
func (Login) isRequest()         {}
func (GetAccounts) isRequest()   {}
func (CreateAccount) isRequest() {}
func (DeleteAccount) isRequest() {}
func (Topup) isRequest()         {}
func (Withdraw) isRequest()      {}
func (Transfer) isRequest()      {}
func (GetBalance) isRequest()    {}

// =============================================================================
// WIRE ENCODING
// =============================================================================

// Parse builds a Request from wire values. Missing or malformed fields fail
// with ledger.ErrInvalidInput (or ledger.ErrInvalidAmount).
func Parse(action string, values url.Values) (Request, error) {
	p := parser{values: values}

	var req Request
	switch Action(strings.TrimSpace(action)) {
	case ActionRegister:
		req = Register{
			FullName:         p.text(FieldFullName),
			Email:            p.text(FieldEmail),
			CredentialSecret: p.secret(FieldCredentialSecret),
		}
	case ActionLogin:
		req = Login{
			LoginIdentifier:  p.text(FieldLoginIdentifier),
			CredentialSecret: p.secret(FieldCredentialSecret),
		}
	case ActionGetAccounts:
		req = GetAccounts{UserID: p.userID()}
	case ActionCreateAccount:
		req = CreateAccount{UserID: p.userID()}
	case ActionDeleteAccount:
		req = DeleteAccount{UserID: p.userID(), AccountNumber: p.account(FieldAccountNumber)}
	case ActionTopup:
		req = Topup{AccountNumber: p.account(FieldAccountNumber), Amount: p.amount()}
	case ActionWithdraw:
		req = Withdraw{AccountNumber: p.account(FieldAccountNumber), Amount: p.amount()}
	case ActionTransfer:
		req = Transfer{
			FromAccount: p.account(FieldFromAccount),
			ToAccount:   p.account(FieldToAccount),
			Amount:      p.amount(),
		}
	case ActionGetBalance:
		req = GetBalance{AccountNumber: p.account(FieldAccountNumber)}
	case "":
		return nil, fmt.Errorf("%w: action is required", ledger.ErrInvalidInput)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}

	if p.err != nil {
		return nil, p.err
	}
	return req, nil
}

// Values encodes req as wire values, including the action name.
func Values(req Request) url.Values {
	v := url.Values{}
	v.Set(FieldAction, string(req.Action()))

	switch r := req.(type) {
	case Register:
		v.Set(FieldFullName, r.FullName)
		v.Set(FieldEmail, r.Email)
		v.Set(FieldCredentialSecret, r.CredentialSecret)
	case Login:
		v.Set(FieldLoginIdentifier, r.LoginIdentifier)
		v.Set(FieldCredentialSecret, r.CredentialSecret)
	case GetAccounts:
		v.Set(FieldUserID, formatUserID(r.UserID))
	case CreateAccount:
		v.Set(FieldUserID, formatUserID(r.UserID))
	case DeleteAccount:
		v.Set(FieldUserID, formatUserID(r.UserID))
		v.Set(FieldAccountNumber, string(r.AccountNumber))
	case Topup:
		v.Set(FieldAccountNumber, string(r.AccountNumber))
		v.Set(FieldAmount, r.Amount.Decimal.String())
	case Withdraw:
		v.Set(FieldAccountNumber, string(r.AccountNumber))
		v.Set(FieldAmount, r.Amount.Decimal.String())
	case Transfer:
		v.Set(FieldFromAccount, string(r.FromAccount))
		v.Set(FieldToAccount, string(r.ToAccount))
		v.Set(FieldAmount, r.Amount.Decimal.String())
	case GetBalance:
		v.Set(FieldAccountNumber, string(r.AccountNumber))
	}
	return v
}

func formatUserID(id ledger.UserID) string {
	return strconv.FormatInt(int64(id), 10)
}

// parser collects the first field error so Parse can report one failure.
type parser struct {
	values url.Values
	err    error
}

func (p *parser) raw(name string) string {
	if v := p.values.Get(name); v != "" {
		return v
	}
	if alias, ok := fieldAliases[name]; ok {
		return p.values.Get(alias)
	}
	return ""
}

func (p *parser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *parser) required(name string) string {
	v := p.raw(name)
	if strings.TrimSpace(v) == "" {
		p.fail(fmt.Errorf("%w: %s is required", ledger.ErrInvalidInput, name))
	}
	return v
}

// text and secret leave emptiness checks to the registry, which owns the
// registration and login rules.
func (p *parser) text(name string) string   { return strings.TrimSpace(p.raw(name)) }
func (p *parser) secret(name string) string { return p.raw(name) }

func (p *parser) account(name string) ledger.AccountNumber {
	return ledger.AccountNumber(strings.TrimSpace(p.required(name)))
}

func (p *parser) userID() ledger.UserID {
	v := strings.TrimSpace(p.required(FieldUserID))
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		p.fail(fmt.Errorf("%w: userId must be a positive integer", ledger.ErrInvalidInput))
		return 0
	}
	return ledger.UserID(n)
}

func (p *parser) amount() ledger.Money {
	v := p.required(FieldAmount)
	if strings.TrimSpace(v) == "" {
		return ledger.Money{}
	}
	m, err := ledger.ParseMoney(v)
	if err != nil {
		p.fail(err)
		return ledger.Money{}
	}
	return m
}
