package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coedit/coedit-server/internal/store/memory"
)

func testJWTConfig() *JWTConfig {
	return &JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "coedit",
		Audience: "coedit-frontend",
		TTL:      time.Hour,
	}
}

func validInput() RegisterInput {
	return RegisterInput{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Username:  "ada",
		Email:     "ada@example.com",
		Password:  "secret123",
	}
}

func TestRegisterAndLogin(t *testing.T) {
	svc := NewService(memory.New(), testJWTConfig())
	ctx := context.Background()

	if err := svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("register: %v", err)
	}

	token, err := svc.Login(ctx, "ada", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Username != "ada" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.UserID == "" {
		t.Fatal("claims must carry the user id")
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(memory.New(), testJWTConfig())
	ctx := context.Background()

	cases := []struct {
		name    string
		mutate  func(*RegisterInput)
		wantErr error
	}{
		{"missing first name", func(in *RegisterInput) { in.FirstName = " " }, ErrMissingFields},
		{"missing email", func(in *RegisterInput) { in.Email = "" }, ErrMissingFields},
		{"missing password", func(in *RegisterInput) { in.Password = "" }, ErrMissingFields},
		{"short username", func(in *RegisterInput) { in.Username = "ab" }, ErrInvalidUsername},
		{"short password", func(in *RegisterInput) { in.Password = "12345" }, ErrInvalidPassword},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			if err := svc.Register(ctx, in); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	svc := NewService(memory.New(), testJWTConfig())
	ctx := context.Background()

	if err := svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := svc.Register(ctx, validInput()); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	// Same email under another username is also taken.
	in := validInput()
	in.Username = "ada2"
	if err := svc.Register(ctx, in); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists for reused email, got %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := NewService(memory.New(), testJWTConfig())
	ctx := context.Background()

	if err := svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Login(ctx, "ada", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody", "secret123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestValidateTokenRejectsForgedSecret(t *testing.T) {
	svc := NewService(memory.New(), testJWTConfig())

	otherCfg := testJWTConfig()
	otherCfg.Secret = []byte("other-secret")
	forged, err := GenerateToken(otherCfg, "id", "ada")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := svc.ValidateToken(forged); err == nil {
		t.Fatal("token signed with another secret must not validate")
	}
}

func TestValidateTokenRejectsWrongIssuer(t *testing.T) {
	svc := NewService(memory.New(), testJWTConfig())

	otherCfg := testJWTConfig()
	otherCfg.Issuer = "someone-else"
	token, err := GenerateToken(otherCfg, "id", "ada")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := svc.ValidateToken(token); err == nil {
		t.Fatal("token from another issuer must not validate")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	cfg := testJWTConfig()
	cfg.TTL = -time.Minute
	svc := NewService(memory.New(), cfg)

	token, err := GenerateToken(cfg, "id", "ada")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	if _, err := svc.ValidateToken(token); err == nil {
		t.Fatal("expired token must not validate")
	}
}
