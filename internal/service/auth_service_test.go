package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"alcyxob/fitness-booking/internal/domain"
	"alcyxob/fitness-booking/internal/repository/memory"
)

func TestAuthService_RegisterAndLogin(t *testing.T) {
	svc := NewAuthService(memory.NewUserRepository(), "secret", time.Hour)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{
		Name:      "Dana",
		Email:     " Dana@Example.com ",
		Password:  "correct-horse",
		Role:      domain.RoleTrainer,
		Specialty: "Yoga",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "dana@example.com" || user.PasswordHash != "" || user.Specialty != "Yoga" {
		t.Errorf("registered user = %+v", user)
	}

	if _, err := svc.Register(ctx, RegisterInput{Name: "D", Email: "dana@example.com", Password: "x", Role: domain.RoleClient}); !errors.Is(err, ErrUserAlreadyExists) {
		t.Errorf("duplicate email: err = %v, want ErrUserAlreadyExists", err)
	}
	if _, err := svc.Register(ctx, RegisterInput{Name: "Eve", Email: "eve@example.com", Password: "x", Role: domain.RoleAdmin}); !errors.Is(err, ErrRoleNotAllowed) {
		t.Errorf("self-assigned admin: err = %v, want ErrRoleNotAllowed", err)
	}

	token, loggedIn, err := svc.Login(ctx, "DANA@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if loggedIn.ID != user.ID {
		t.Errorf("logged in as %s, want %s", loggedIn.ID.Hex(), user.ID.Hex())
	}

	claims := &TokenClaims{}
	if _, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) { return []byte("secret"), nil }); err != nil {
		t.Fatalf("token does not verify: %v", err)
	}
	if claims.UserID != user.ID.Hex() || claims.Role != domain.RoleTrainer {
		t.Errorf("claims = %+v", claims)
	}

	if _, _, err := svc.Login(ctx, "dana@example.com", "wrong"); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("wrong password: err = %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@example.com", "whatever"); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("unknown user: err = %v", err)
	}
}

func TestAuthService_EnsureAdmin(t *testing.T) {
	users := memory.NewUserRepository()
	svc := NewAuthService(users, "secret", time.Hour)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := svc.EnsureAdmin(ctx, "", "admin@example.com", "admin-pass"); err != nil {
			t.Fatalf("EnsureAdmin #%d: %v", i+1, err)
		}
	}

	admins, _ := users.ListByRole(ctx, domain.RoleAdmin)
	if len(admins) != 1 || admins[0].Name != "Administrator" {
		t.Fatalf("admins = %+v, want exactly one", admins)
	}
	if _, _, err := svc.Login(ctx, "admin@example.com", "admin-pass"); err != nil {
		t.Errorf("admin login: %v", err)
	}
}
