package services

import (
	"errors"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/config"
	"github.com/ahmetcoskunkizilkaya/confined-space-inventory/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		confirm  string
		wantErr  bool
	}{
		{"ok", "longenough", "longenough", false},
		{"too short", "short", "short", true},
		{"mismatch", "longenough", "longenougH", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePassword(tt.password, tt.confirm)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	if err := validateEmail("tech@example.com"); err != nil {
		t.Errorf("valid email rejected: %v", err)
	}
	if err := validateEmail(""); !errors.Is(err, ErrValidation) {
		t.Errorf("empty email: %v", err)
	}
	if err := validateEmail("not-an-email"); !errors.Is(err, ErrValidation) {
		t.Errorf("bad email: %v", err)
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := normalizeEmail("  Tech@Example.COM "); got != "tech@example.com" {
		t.Errorf("got %q", got)
	}
}

func TestParseUserType(t *testing.T) {
	tests := map[string]string{"": "user", "user": "user", "ADMIN": "admin", " admin ": "admin"}
	for in, want := range tests {
		got, err := parseUserType(in)
		if err != nil || got != want {
			t.Errorf("parseUserType(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := parseUserType("supervisor"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHashTokenIsStable(t *testing.T) {
	if hashToken("abc") != hashToken("abc") {
		t.Fatal("hash must be deterministic")
	}
	if len(hashToken("abc")) != 64 {
		t.Errorf("hash length = %d", len(hashToken("abc")))
	}
}

func TestGenerateAccessTokenClaims(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret", JWTAccessExpiry: time.Minute}
	s := &AuthService{cfg: cfg}
	user := &models.User{ID: uuid.New(), Email: "admin@example.com", UserType: models.UserTypeAdmin, IsAdmin: true}

	signed, err := s.generateAccessToken(user)
	if err != nil {
		t.Fatal(err)
	}

	token, err := jwt.Parse(signed, func(*jwt.Token) (interface{}, error) { return []byte(cfg.JWTSecret), nil })
	if err != nil {
		t.Fatal(err)
	}
	claims := token.Claims.(jwt.MapClaims)
	if claims["sub"] != user.ID.String() {
		t.Errorf("sub = %v", claims["sub"])
	}
	if claims["is_admin"] != true {
		t.Errorf("is_admin = %v", claims["is_admin"])
	}
	if claims["user_type"] != models.UserTypeAdmin {
		t.Errorf("user_type = %v", claims["user_type"])
	}
}

func TestNewAuthServiceParsesAdminEmails(t *testing.T) {
	s := NewAuthService(nil, &config.Config{AdminEmails: "Boss@Example.com, ops@example.com ,"})
	if !contains(s.adminEmails, "boss@example.com") || !contains(s.adminEmails, "ops@example.com") {
		t.Errorf("admin emails = %v", s.adminEmails)
	}
	if len(s.adminEmails) != 2 {
		t.Errorf("len = %d", len(s.adminEmails))
	}
}
