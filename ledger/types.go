/*
Package ledger provides the mock bank ledger engine.

PURPOSE:
  This package owns the data model (users, accounts, balances) and the
  operations that mutate it: registration and login, account management,
  and balance-affecting transactions. It stands in for a banking backend
  that is not available, so everything lives in a local persisted store.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A decimal amount rendered with two decimals
  - User / Account: The records held in a Snapshot
  - Snapshot: The complete ledger at a point in time
  - Entry: An append-only journal record of one balance change

DESIGN PRINCIPLES:
  1. Explicit store: No globals. Bank owns a Store and nothing else persists.
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Copy-on-write: Operations mutate a private copy of the snapshot and
     persist it as a whole, so a failed operation never leaves a trace.

USAGE:
  bank := ledger.New(store.NewMemory())
  user, err := bank.Register(ctx, "Ann", "ann@x.com", "abcdef")
  num, err := bank.CreateAccount(ctx, user.UserID)
  bal, err := bank.Deposit(ctx, num, ledger.MustMoney("100"))

SEE ALSO:
  - bank.go: The Bank aggregate and its commit cycle
  - store.go: Persistence interfaces
  - errors.go: Error taxonomy
*/
package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Two-decimal display amount
// =============================================================================

// Money is a non-currency decimal amount. It is stored with full precision
// and rendered in JSON as a number with exactly two decimals.
type Money struct {
	decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{decimal.Zero}

func NewMoney(d decimal.Decimal) Money { return Money{d} }

func MoneyFromInt(v int64) Money { return Money{decimal.NewFromInt(v)} }

// ParseMoney parses a caller-supplied amount.
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}
	return Money{d}, nil
}

// MustMoney parses s and panics on failure. For tests and constants.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Add(o Money) Money         { return Money{m.Decimal.Add(o.Decimal)} }
func (m Money) Sub(o Money) Money         { return Money{m.Decimal.Sub(o.Decimal)} }
func (m Money) LessThan(o Money) bool     { return m.Decimal.LessThan(o.Decimal) }
func (m Money) Equal(o Money) bool        { return m.Decimal.Equal(o.Decimal) }
func (m Money) String() string            { return m.Decimal.StringFixed(2) }
func (m Money) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted strings.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		m.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("money: %w", err)
	}
	m.Decimal = d
	return nil
}

// validateAmount enforces the rules for caller-supplied amounts:
// strictly positive, at most two fractional digits.
func validateAmount(m Money) error {
	if !m.IsPositive() {
		return fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	if !m.Decimal.Equal(m.Decimal.Truncate(2)) {
		return fmt.Errorf("%w: at most two decimal places", ErrInvalidAmount)
	}
	return nil
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID int64

type AccountNumber string

// =============================================================================
// USER / ACCOUNT
// =============================================================================

type Account struct {
	Number  AccountNumber `json:"number"`
	Balance Money         `json:"balance"`
}

type User struct {
	ID       UserID `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	// CredentialSecret holds a bcrypt hash, never the plain secret.
	CredentialSecret string    `json:"credentialSecret"`
	Accounts         []Account `json:"accounts"`
}

// Identity is what registration and login return. It never carries
// account data.
type Identity struct {
	UserID   UserID `json:"userId"`
	FullName string `json:"fullName"`
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is the complete persisted ledger.
type Snapshot struct {
	Users      []User `json:"users"`
	NextUserID UserID `json:"nextUserId"`
}

// EmptySnapshot is what a store returns when nothing (valid) is persisted.
func EmptySnapshot() Snapshot {
	return Snapshot{Users: []User{}, NextUserID: 1}
}

// Clone returns a deep copy so callers can mutate freely.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Users: make([]User, len(s.Users)), NextUserID: s.NextUserID}
	for i, u := range s.Users {
		u.Accounts = append([]Account{}, u.Accounts...)
		out.Users[i] = u
	}
	return out
}

// Normalize repairs a loaded snapshot: nil slices become empty and
// NextUserID is moved past every stored id.
func (s Snapshot) Normalize() Snapshot {
	if s.Users == nil {
		s.Users = []User{}
	}
	var maxID UserID
	for i := range s.Users {
		if s.Users[i].Accounts == nil {
			s.Users[i].Accounts = []Account{}
		}
		if s.Users[i].ID > maxID {
			maxID = s.Users[i].ID
		}
	}
	if s.NextUserID <= maxID {
		s.NextUserID = maxID + 1
	}
	if s.NextUserID < 1 {
		s.NextUserID = 1
	}
	return s
}

// DecodeSnapshot parses the persisted JSON layout. Malformed input, or a
// snapshot that breaks a ledger invariant, yields an error; callers decide whether to fall back to EmptySnapshot.
func DecodeSnapshot(b []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return Snapshot{}, err
	}
	s = s.Normalize()
	if err := s.Validate(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// Validate checks the ledger invariants a hand-edited snapshot may break:
// unique user ids and emails, at most MaxAccountsPerUser accounts each,
// globally unique account numbers and non-negative balances.
func (s Snapshot) Validate() error {
	ids := make(map[UserID]bool, len(s.Users))
	emails := make(map[string]bool, len(s.Users))
	numbers := make(map[AccountNumber]bool)
	for _, u := range s.Users {
		if u.ID < 1 || ids[u.ID] {
			return fmt.Errorf("invalid or duplicate user id %d", u.ID)
		}
		ids[u.ID] = true

		email := strings.ToLower(strings.TrimSpace(u.Email))
		if emails[email] {
			return fmt.Errorf("duplicate email for user %d", u.ID)
		}
		emails[email] = true

		if len(u.Accounts) > MaxAccountsPerUser {
			return fmt.Errorf("user %d holds %d accounts", u.ID, len(u.Accounts))
		}
		for _, a := range u.Accounts {
			if numbers[a.Number] {
				return fmt.Errorf("duplicate account number %s", a.Number)
			}
			numbers[a.Number] = true
			if a.Balance.IsNegative() {
				return fmt.Errorf("account %s has negative balance %s", a.Number, a.Balance)
			}
		}
	}
	return nil
}

func (s *Snapshot) userByID(id UserID) *User {
	for i := range s.Users {
		if s.Users[i].ID == id {
			return &s.Users[i]
		}
	}
	return nil
}

func (s *Snapshot) userByEmail(email string) *User {
	for i := range s.Users {
		if strings.EqualFold(s.Users[i].Email, email) {
			return &s.Users[i]
		}
	}
	return nil
}

// account scans every user; account numbers are global keys.
func (s *Snapshot) account(number AccountNumber) *Account {
	for i := range s.Users {
		for j := range s.Users[i].Accounts {
			if s.Users[i].Accounts[j].Number == number {
				return &s.Users[i].Accounts[j]
			}
		}
	}
	return nil
}

// =============================================================================
// JOURNAL ENTRY - Append-only record of a balance change
// =============================================================================

type EntryKind string

const (
	EntryDeposit     EntryKind = "deposit"
	EntryWithdrawal  EntryKind = "withdrawal"
	EntryTransferOut EntryKind = "transfer_out"
	EntryTransferIn  EntryKind = "transfer_in"
)

type Entry struct {
	ID            string        `json:"id"`
	AccountNumber AccountNumber `json:"accountNumber"`
	Kind          EntryKind     `json:"kind"`
	Amount        Money         `json:"amount"`
	BalanceAfter  Money         `json:"balanceAfter"`
	Counterparty  AccountNumber `json:"counterparty,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
}
