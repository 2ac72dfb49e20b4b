package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// MinSecretLength is the shortest credential secret accepted at registration.
const MinSecretLength = 6

// =============================================================================
// IDENTITY REGISTRY
// =============================================================================

// Register creates a user with zero accounts and returns its identity.
func (b *Bank) Register(ctx context.Context, fullName, email, secret string) (Identity, error) {
	fullName = strings.TrimSpace(fullName)
	email = strings.TrimSpace(email)

	if fullName == "" || email == "" || secret == "" {
		return Identity{}, fmt.Errorf("%w: full name, email and secret are required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(secret) < MinSecretLength {
		return Identity{}, fmt.Errorf("%w: secret must be at least %d characters", ErrInvalidInput, MinSecretLength)
	}

	hash, err := b.hashSecret(secret)
	if err != nil {
		return Identity{}, err
	}

	var id Identity
	err = b.update(ctx, func(s *Snapshot) ([]Entry, error) {
		if s.userByEmail(email) != nil {
			return nil, ErrDuplicateEmail
		}
		u := User{
			ID:               s.NextUserID,
			FullName:         fullName,
			Email:            email,
			CredentialSecret: string(hash),
			Accounts:         []Account{},
		}
		s.NextUserID++
		s.Users = append(s.Users, u)
		id = Identity{UserID: u.ID, FullName: u.FullName}
		return nil, nil
	})
	if err != nil {
		return Identity{}, err
	}

	b.log.InfoContext(ctx, "user registered", "user_id", id.UserID)
	return id, nil
}

// Login resolves identifier (a numeric user id, otherwise an email) and
// checks secret against it.
func (b *Bank) Login(ctx context.Context, identifier, secret string) (Identity, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return Identity{}, fmt.Errorf("%w: login and secret are required", ErrInvalidInput)
	}

	var (
		found bool
		id    Identity
		hash  []byte
	)
	err := b.view(ctx, func(s *Snapshot) error {
		var u *User
		if n, err := strconv.ParseInt(identifier, 10, 64); err == nil {
			u = s.userByID(UserID(n))
		} else {
			u = s.userByEmail(identifier)
		}
		if u != nil {
			found = true
			id = Identity{UserID: u.ID, FullName: u.FullName}
			hash = []byte(u.CredentialSecret)
		}
		return nil
	})
	if err != nil {
		return Identity{}, err
	}

	if !found {
		// Burn the same bcrypt work as a real comparison.
		_ = bcrypt.CompareHashAndPassword(b.dummy(), []byte(secret))
		return Identity{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return Identity{}, ErrInvalidCredentials
		}
		// A stored value that is not a bcrypt hash cannot match either.
		b.log.WarnContext(ctx, "unreadable credential hash", "user_id", id.UserID, "error", err)
		return Identity{}, ErrInvalidCredentials
	}
	return id, nil
}

func (b *Bank) hashSecret(secret string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), b.hashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: secret is too long", ErrInvalidInput)
		}
		return nil, fmt.Errorf("could not hash secret: %w", err)
	}
	return hash, nil
}

func (b *Bank) dummy() []byte {
	b.dummyOnce.Do(func() {
		b.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-secret"), b.hashCost)
	})
	return b.dummyHash
}
