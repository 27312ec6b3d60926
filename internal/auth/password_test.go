package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newTestPasswordService() *PasswordService {
	return NewPasswordServiceWithCost(bcrypt.MinCost)
}

func TestHash_OutputLooksBcrypt(t *testing.T) {
	ps := newTestPasswordService()

	hash, err := ps.Hash("password123")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("Hash() does not look like a bcrypt hash: %q", hash)
	}
}

func TestHash_SaltIsRandom(t *testing.T) {
	ps := newTestPasswordService()

	h1, _ := ps.Hash("same-password")
	h2, _ := ps.Hash("same-password")
	if h1 == h2 {
		t.Error("Hash() produced identical hashes for the same password")
	}
}

func TestHash_TooLong(t *testing.T) {
	ps := newTestPasswordService()

	if _, err := ps.Hash(strings.Repeat("a", MaxPasswordLength+1)); err == nil {
		t.Error("Hash() should reject passwords over 72 bytes")
	}
}

func TestVerify(t *testing.T) {
	ps := newTestPasswordService()
	hash, err := ps.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	tests := []struct {
		name    string
		hash    string
		input   string
		wantErr error
	}{
		{"matching password", hash, "correct horse", nil},
		{"wrong password", hash, "battery staple", ErrInvalidPassword},
		{"empty input", hash, "", ErrInvalidPassword},
		{"account without password", "", "anything", ErrInvalidPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ps.Verify(tt.hash, tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerify_CorruptHash(t *testing.T) {
	ps := newTestPasswordService()

	err := ps.Verify("not-a-bcrypt-hash", "pw")
	if err == nil || errors.Is(err, ErrInvalidPassword) {
		t.Errorf("Verify() with corrupt hash error = %v, want a non-mismatch error", err)
	}
}

func TestCheckLength(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"short", true},
		{"12345678", false},
		{strings.Repeat("x", MaxPasswordLength), false},
		{strings.Repeat("x", MaxPasswordLength+1), true},
	}
	for _, tt := range tests {
		if err := CheckLength(tt.in); (err != nil) != tt.wantErr {
			t.Errorf("CheckLength(len %d) error = %v, wantErr %v", len(tt.in), err, tt.wantErr)
		}
	}
}
