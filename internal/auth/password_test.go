package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newTestPasswordService() *PasswordService {
	return NewPasswordService(bcrypt.MinCost)
}

// =========================================================================
// CONSTRUCTION
// =========================================================================

func TestNewPasswordService_CostFallback(t *testing.T) {
	for _, cost := range []int{0, 2, 99} {
		if got := NewPasswordService(cost).cost; got != DefaultCost {
			t.Errorf("NewPasswordService(%d).cost = %d, want %d", cost, got, DefaultCost)
		}
	}
	if got := NewPasswordService(5).cost; got != 5 {
		t.Errorf("NewPasswordService(5).cost = %d, want 5", got)
	}
}

// =========================================================================
// HASH
// =========================================================================

func TestHash_OutputLooksBcrypt(t *testing.T) {
	ps := newTestPasswordService()

	hash, err := ps.Hash("RZN2025")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("Hash() does not look like a bcrypt hash: %q", hash)
	}
	if strings.Contains(hash, "RZN2025") {
		t.Error("Hash() output contains the plaintext")
	}
}

func TestHash_SaltIsRandom(t *testing.T) {
	ps := newTestPasswordService()

	hash1, _ := ps.Hash("same-password")
	hash2, _ := ps.Hash("same-password")

	if hash1 == hash2 {
		t.Error("Hash() produced identical hashes for the same password")
	}
}

func TestHash_LengthLimit(t *testing.T) {
	ps := newTestPasswordService()

	if _, err := ps.Hash(strings.Repeat("a", MaxSecretBytes)); err != nil {
		t.Fatalf("Hash() should accept %d bytes, got %v", MaxSecretBytes, err)
	}

	_, err := ps.Hash(strings.Repeat("a", MaxSecretBytes+1))
	if !errors.Is(err, ErrSecretTooLong) {
		t.Fatalf("Hash() error = %v, want ErrSecretTooLong", err)
	}
}

// =========================================================================
// VERIFY
// =========================================================================

func TestVerify(t *testing.T) {
	ps := newTestPasswordService()
	hash, err := ps.Hash("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	tests := []struct {
		name      string
		hash      string
		plaintext string
		wantErr   error
	}{
		{"correct password", hash, "correct-horse-battery-staple", nil},
		{"wrong password", hash, "tr0ub4dor&3", ErrMismatch},
		{"empty password", hash, "", ErrMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ps.Verify(tt.hash, tt.plaintext)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerify_GarbageHash(t *testing.T) {
	ps := newTestPasswordService()

	err := ps.Verify("not-a-valid-bcrypt-hash", "password")
	if err == nil {
		t.Fatal("Verify() should return an error for a garbage hash")
	}
	if errors.Is(err, ErrMismatch) {
		t.Error("a malformed hash should not be reported as a mismatch")
	}
}

func TestVerify_RejectsInputPastLimit(t *testing.T) {
	ps := newTestPasswordService()
	secret := strings.Repeat("a", MaxSecretBytes)

	hash, err := ps.Hash(secret)
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if err := ps.Verify(hash, secret); err != nil {
		t.Errorf("Verify() at the limit = %v, want nil", err)
	}
	if err := ps.Verify(hash, secret+"WRONG-SUFFIX"); !errors.Is(err, ErrMismatch) {
		t.Errorf("Verify() with a suffix past the limit = %v, want ErrMismatch", err)
	}
	ps.VerifyDummy(secret + "WRONG-SUFFIX")
}

func TestHashVerify_RoundTrip(t *testing.T) {
	ps := newTestPasswordService()

	for _, pw := range []string{"pw1", "p@$$w0rd!#%", "пароль-密码", "  spaced  "} {
		hash, err := ps.Hash(pw)
		if err != nil {
			t.Fatalf("Hash(%q) error = %v", pw, err)
		}
		if err := ps.Verify(hash, pw); err != nil {
			t.Errorf("Verify() failed for %q: %v", pw, err)
		}
	}
}

func TestVerifyDummy_DoesNotPanic(t *testing.T) {
	ps := newTestPasswordService()
	ps.VerifyDummy("anything")
	ps.VerifyDummy("again")
	if len(ps.dummyHash) == 0 {
		t.Error("VerifyDummy() should initialise the dummy hash")
	}
}
