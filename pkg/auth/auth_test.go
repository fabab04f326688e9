package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
)

func TestIssueAndVerify(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	issuer, err := NewIssuer("secret", WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}

	user := User{ID: 42, Login: "octocat", Email: "octo@example.com"}
	token, expiresAt, err := issuer.Issue(user)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if want := now.Add(DefaultTTL); !expiresAt.Equal(want) {
		t.Errorf("expiresAt = %v, want %v", expiresAt, want)
	}

	got, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if diff := cmp.Diff(&user, got); diff != "" {
		t.Errorf("Verify() mismatch (-want +got):\n%s", diff)
	}
}

func TestVerifyErrors(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := now
	issuer, err := NewIssuer("secret", WithTTL(time.Hour), WithClock(func() time.Time { return clock }))
	if err != nil {
		t.Fatal(err)
	}
	token, _, err := issuer.Issue(User{ID: 1, Login: "a"})
	if err != nil {
		t.Fatal(err)
	}

	other, _ := NewIssuer("other-secret", WithClock(func() time.Time { return now }))
	forged, _, _ := other.Issue(User{ID: 1, Login: "a"})

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "1", "exp": now.Add(time.Hour).Unix()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		token   string
		advance time.Duration
		wantErr error
	}{
		{name: "expired", token: token, advance: 2 * time.Hour, wantErr: ErrExpiredToken},
		{name: "wrong key", token: forged, wantErr: ErrInvalidToken},
		{name: "garbage", token: "not.a.token", wantErr: ErrInvalidToken},
		{name: "alg none", token: none, wantErr: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock = now.Add(tt.advance)
			_, err := issuer.Verify(tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewIssuer(t *testing.T) {
	if _, err := NewIssuer(""); err == nil {
		t.Error("Expected error for empty key")
	}
	if _, err := NewIssuer("k", WithTTL(-time.Second)); err == nil {
		t.Error("Expected error for negative ttl")
	}
}
