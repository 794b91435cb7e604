// Password hashing.
//
// Secrets are stored only as bcrypt hashes. bcrypt salts every hash and
// embeds the salt and cost in its output, so a single column holds everything
// needed to verify a login:
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (2^12 rounds)
//	 version
//
// The plaintext never leaves this file: it is not logged, not stored, and
// not included in any error message.
package auth

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used in production.
// Tune it so one hash takes roughly 200–300ms on the deployment hardware.
const DefaultCost = 12

// MaxSecretBytes is bcrypt's input limit. Longer inputs are rejected rather
// than silently truncated.
const MaxSecretBytes = 72

var (
	// ErrSecretTooLong is returned by Hash for secrets over MaxSecretBytes.
	ErrSecretTooLong = errors.New("auth: password must be 72 bytes or fewer")

	// ErrMismatch is returned by Verify when the secret does not match.
	ErrMismatch = errors.New("auth: invalid password")
)

// PasswordService provides bcrypt hashing and verification.
//
// It's a struct so the cost can be injected: tests use cost 4 (the minimum)
// to keep the suite fast.
type PasswordService struct {
	cost int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewPasswordService creates a PasswordService. A cost outside bcrypt's
// accepted range falls back to DefaultCost.
func NewPasswordService(cost int) *PasswordService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &PasswordService{cost: cost}
}

// Hash hashes the given plaintext password with bcrypt.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxSecretBytes {
		return "", ErrSecretTooLong
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks whether a plaintext password matches a stored bcrypt hash.
// It returns ErrMismatch for a wrong password and a wrapped error for a
// malformed hash.
//
// bcrypt.CompareHashAndPassword compares in constant time but ignores input
// past MaxSecretBytes, so an over-long secret never matches. It still pays
// for one comparison to keep the failure as slow as any other.
func (p *PasswordService) Verify(hash, plaintext string) error {
	tooLong := len(plaintext) > MaxSecretBytes
	err := bcrypt.CompareHashAndPassword([]byte(hash), capSecret(plaintext))
	if tooLong && (err == nil || errors.Is(err, bcrypt.ErrMismatchedHashAndPassword)) {
		return ErrMismatch
	}
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatch
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}

// VerifyDummy burns the same CPU time as Verify against a real hash.
//
// USERNAME ENUMERATION:
// If an unknown handle returned instantly while a known handle took 250ms to
// fail, response timing would reveal which handles exist. Login calls this on
// the unknown-handle path so both failures cost one bcrypt comparison.
func (p *PasswordService) VerifyDummy(plaintext string) {
	p.dummyOnce.Do(func() {
		// The hashed value is irrelevant; only the cost matters.
		p.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("rzn-dummy-secret"), p.cost)
	})
	_ = bcrypt.CompareHashAndPassword(p.dummyHash, capSecret(plaintext))
}

func capSecret(plaintext string) []byte {
	if len(plaintext) > MaxSecretBytes {
		plaintext = plaintext[:MaxSecretBytes]
	}
	return []byte(plaintext)
}
