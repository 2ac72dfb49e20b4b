package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/warp/mockbank/ledger"
)

// =============================================================================
// ENVELOPE - Uniform response for every action
// =============================================================================

// Envelope is the response to every submitted request. On the wire the
// result fields sit next to success and message:
//
//	{"success": true, "message": "Balance topped up.", "newBalance": 100.00}
//
// Failure envelopes never carry result fields.
type Envelope struct {
	Success bool
	Message string
	Result  Result
}

// Result is implemented by the per-action result types below.
type Result interface {
	isResult()
}

// IdentityResult answers register and login.
type IdentityResult struct {
	UserID   ledger.UserID `json:"userId"`
	FullName string        `json:"fullName"`
}

// AccountsResult answers getAccounts.
type AccountsResult struct {
	Accounts []ledger.Account `json:"accounts"`
}

// CreatedResult answers createAccount.
type CreatedResult struct {
	AccountNumber ledger.AccountNumber `json:"accountNumber"`
}

// NewBalanceResult answers topup, withdraw and transfer.
type NewBalanceResult struct {
	NewBalance ledger.Money `json:"newBalance"`
}

// BalanceResult answers getBalance.
type BalanceResult struct {
	Balance ledger.Money `json:"balance"`
}

func (IdentityResult) isResult()   {}
func (AccountsResult) isResult()   {}
func (CreatedResult) isResult()    {}
func (NewBalanceResult) isResult() {}
func (BalanceResult) isResult()    {}

// Ok builds a success envelope.
func Ok(message string, result Result) Envelope {
	return Envelope{Success: true, Message: message, Result: result}
}

// Fail builds a failure envelope.
func Fail(message string) Envelope {
	return Envelope{Success: false, Message: message}
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if e.Success && e.Result != nil {
		b, err := json.Marshal(e.Result)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(b, &fields); err != nil {
			return nil, err
		}
	}

	success, _ := json.Marshal(e.Success)
	message, _ := json.Marshal(e.Message)
	fields["success"] = success
	fields["message"] = message
	return json.Marshal(fields)
}

// DecodeEnvelope parses a wire envelope returned for action.
func DecodeEnvelope(action Action, body []byte) (Envelope, error) {
	var head struct {
		Success *bool  `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return Envelope{}, err
	}
	if head.Success == nil {
		return Envelope{}, fmt.Errorf("envelope has no success field")
	}
	if !*head.Success {
		return Fail(head.Message), nil
	}

	var (
		result Result
		err    error
	)
	switch action {
	case ActionRegister, ActionLogin:
		var r IdentityResult
		err = json.Unmarshal(body, &r)
		result = r
	case ActionGetAccounts:
		var r AccountsResult
		err = json.Unmarshal(body, &r)
		if r.Accounts == nil {
			r.Accounts = []ledger.Account{}
		}
		result = r
	case ActionCreateAccount:
		var r CreatedResult
		err = json.Unmarshal(body, &r)
		result = r
	case ActionDeleteAccount:
	case ActionTopup, ActionWithdraw, ActionTransfer:
		var r NewBalanceResult
		err = json.Unmarshal(body, &r)
		result = r
	case ActionGetBalance:
		var r BalanceResult
		err = json.Unmarshal(body, &r)
		result = r
	default:
		return Envelope{}, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	if err != nil {
		return Envelope{}, err
	}
	return Ok(head.Message, result), nil
}
