package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/projecthub/internal/domain/user"
	"github.com/golang-jwt/jwt/v5"
)

func signMap(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("any-key"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return raw
}

func TestDecode_AcceptsIssuedAccessToken(t *testing.T) {
	m := NewManager("secret", 15*time.Minute, time.Hour)
	u := user.User{ID: "u-1", Email: "a@b.com", Name: "Ann", Role: user.RoleAdmin}

	raw, err := m.GenerateAccessToken(u)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	id, err := NewDecoder().Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if id.UserID != "u-1" || id.Email != "a@b.com" || id.Role != user.RoleAdmin {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if id.TokenID == "" || id.ExpiresAt.IsZero() {
		t.Fatalf("expected jti and expiry, got %+v", id)
	}
}

func TestDecode_DoesNotVerifySignature(t *testing.T) {
	raw := signMap(t, jwt.MapClaims{"sub": "u-2", "role": "USER"})

	id, err := NewDecoder().Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if id.Role != user.RoleUser {
		t.Fatalf("role = %q, want user", id.Role)
	}
}

func TestDecode_FailsClosed(t *testing.T) {
	past := time.Now().Add(-time.Minute).Unix()

	tests := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{name: "empty", raw: "", wantErr: ErrMalformedToken},
		{name: "garbage", raw: "not-a-jwt", wantErr: ErrMalformedToken},
		{name: "two parts", raw: "abc.def", wantErr: ErrMalformedToken},
		{name: "missing subject", raw: signMap(t, jwt.MapClaims{"role": "admin"}), wantErr: ErrMalformedToken},
		{name: "unknown role", raw: signMap(t, jwt.MapClaims{"sub": "x", "role": "root"}), wantErr: ErrMalformedToken},
		{name: "missing role", raw: signMap(t, jwt.MapClaims{"sub": "x"}), wantErr: ErrMalformedToken},
		{name: "role wrong type", raw: signMap(t, jwt.MapClaims{"sub": "x", "role": 7}), wantErr: ErrMalformedToken},
		{name: "refresh token", raw: signMap(t, jwt.MapClaims{"sub": "x", "role": "user", "typ": "refresh"}), wantErr: ErrMalformedToken},
		{name: "expired", raw: signMap(t, jwt.MapClaims{"sub": "x", "role": "user", "exp": past}), wantErr: ErrTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecoder().Decode(tt.raw)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFingerprintStable(t *testing.T) {
	if Fingerprint("abc") != Fingerprint("abc") {
		t.Fatalf("fingerprint must be deterministic")
	}
	if Fingerprint("abc") == Fingerprint("abd") {
		t.Fatalf("fingerprint collision on different input")
	}
}
