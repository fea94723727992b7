package services

import (
	"context"
	"errors"
	"testing"
)

func TestRegisterAndLogin(t *testing.T) {
	store := newMemStore()
	svc := NewAuthService(userStore{store})
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Password: "short"}); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("short password err = %v, want ErrPasswordTooShort", err)
	}

	user, err := svc.Register(ctx, RegisterInput{
		Nickname: "keeper",
		Email:    "keeper@example.com",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.ID == 0 {
		t.Error("registered user has no id")
	}
	if user.PasswordHash != "" {
		t.Error("password hash leaked in response")
	}

	if _, err := svc.Register(ctx, RegisterInput{
		Email: "keeper@example.com", Password: "another pass",
	}); !errors.Is(err, ErrEmailConflict) {
		t.Errorf("duplicate email err = %v, want ErrEmailConflict", err)
	}

	logged, err := svc.Login(ctx, LoginInput{Email: "keeper@example.com", Password: "correct horse battery"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if logged.ID != user.ID {
		t.Errorf("logged in user id = %d, want %d", logged.ID, user.ID)
	}
	if logged.PasswordHash != "" {
		t.Error("password hash leaked on login")
	}

	if _, err := svc.Login(ctx, LoginInput{Email: "keeper@example.com", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "whatever"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email err = %v, want ErrInvalidCredentials", err)
	}
}
