package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestNewTokenService(t *testing.T) {
	if _, err := NewTokenService("", "activerow", time.Hour); err != ErrNoSecret {
		t.Errorf("NewTokenService() error = %v, want ErrNoSecret", err)
	}

	service, err := NewTokenService("test-secret", "activerow", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	if service.tokenTTL != time.Hour {
		t.Errorf("TokenService.tokenTTL = %v, want %v", service.tokenTTL, time.Hour)
	}
}

func TestTokenService_IssueVerify(t *testing.T) {
	service, _ := NewTokenService("test-secret-key", "activerow", time.Hour)

	tests := []struct {
		name    string
		subject string
		roles   []string
	}{
		{name: "with roles", subject: "user-123", roles: []string{"admin", "editor"}},
		{name: "single role", subject: "user-456", roles: []string{"viewer"}},
		{name: "no roles", subject: "user-789", roles: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := service.Issue(tt.subject, tt.roles)
			if err != nil {
				t.Fatalf("Issue() error = %v", err)
			}

			// Token should have 3 parts separated by dots
			if parts := strings.Split(token, "."); len(parts) != 3 {
				t.Errorf("Token has %d parts, expected 3", len(parts))
			}

			claims, err := service.Verify(token)
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if claims.Subject != tt.subject {
				t.Errorf("Subject = %v, want %v", claims.Subject, tt.subject)
			}
			if len(claims.Roles) != len(tt.roles) {
				t.Errorf("Roles = %v, want %v", claims.Roles, tt.roles)
			}
		})
	}
}

func TestTokenService_VerifyRejects(t *testing.T) {
	service, _ := NewTokenService("test-secret-key", "activerow", time.Hour)
	other, _ := NewTokenService("other-secret", "activerow", time.Hour)
	foreign, _ := NewTokenService("test-secret-key", "someone-else", time.Hour)
	expired, _ := NewTokenService("test-secret-key", "activerow", -time.Minute)

	wrongKey, _ := other.Issue("user-1", nil)
	wrongIssuer, _ := foreign.Issue("user-1", nil)
	stale, _ := expired.Issue("user-1", nil)
	noSubject, _ := service.Issue("", nil)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-1", "iss": "activerow"})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "invalid.token.here"},
		{name: "wrong key", token: wrongKey},
		{name: "wrong issuer", token: wrongIssuer},
		{name: "expired", token: stale},
		{name: "no subject", token: noSubject},
		{name: "alg none", token: unsigned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := service.Verify(tt.token); err == nil {
				t.Error("Verify() expected error")
			}
		})
	}
}

func TestPrincipalContext(t *testing.T) {
	ctx := context.Background()
	if _, ok := PrincipalFrom(ctx); ok {
		t.Error("PrincipalFrom() found a principal in an empty context")
	}
	if roles := RolesFrom(ctx); roles != nil {
		t.Errorf("RolesFrom() = %v, want nil", roles)
	}

	ctx = WithPrincipal(ctx, Principal{Subject: "user-1", Roles: []string{"admin"}})
	p, ok := PrincipalFrom(ctx)
	if !ok || p.Subject != "user-1" {
		t.Errorf("PrincipalFrom() = %+v, %v", p, ok)
	}
	if roles := RolesFrom(ctx); len(roles) != 1 || roles[0] != "admin" {
		t.Errorf("RolesFrom() = %v", roles)
	}
}
