package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"shopdesk/internal/domain"
	"shopdesk/internal/repository"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"golang.org/x/crypto/bcrypt"
)

func newTestUserService() (UserService, *mockUserRepository, *mockRefreshTokenRepository) {
	userRepo := newMockUserRepository()
	refreshTokenRepo := newMockRefreshTokenRepository()
	return NewUserService(userRepo, refreshTokenRepo, "test-secret"), userRepo, refreshTokenRepo
}

func seedUser(t *testing.T, repo *mockUserRepository, email, password string, active bool) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		Username:     "tester",
		Role:         domain.RoleAdmin,
		IsActive:     active,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	repo.users[email] = user
	return user
}

func TestLoginSuccess(t *testing.T) {
	svc, userRepo, _ := newTestUserService()
	seedUser(t, userRepo, "admin@example.com", "correct-horse", true)

	accessToken, refreshToken, user, err := svc.Login(context.Background(), "admin@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if accessToken == "" || refreshToken == "" {
		t.Error("expected both tokens to be issued")
	}
	if user.Email != "admin@example.com" {
		t.Errorf("unexpected user: %s", user.Email)
	}

	claims, err := svc.ValidateToken(accessToken)
	if err != nil {
		t.Fatalf("issued access token failed validation: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != domain.RoleAdmin {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, userRepo, _ := newTestUserService()
	seedUser(t, userRepo, "admin@example.com", "correct-horse", true)

	_, _, _, err := svc.Login(context.Background(), "admin@example.com", "battery-staple")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _, _ := newTestUserService()

	_, _, _, err := svc.Login(context.Background(), "ghost@example.com", "whatever")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginDeactivatedAccount(t *testing.T) {
	svc, userRepo, _ := newTestUserService()
	seedUser(t, userRepo, "gone@example.com", "correct-horse", false)

	_, _, _, err := svc.Login(context.Background(), "gone@example.com", "correct-horse")
	if !errors.Is(err, ErrAccountDeactivated) {
		t.Fatalf("deactivated accounts must not log in, got %v", err)
	}
}

func TestRefreshTokenFlow(t *testing.T) {
	svc, userRepo, _ := newTestUserService()
	seedUser(t, userRepo, "admin@example.com", "correct-horse", true)

	_, refreshToken, _, err := svc.Login(context.Background(), "admin@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	newAccessToken, err := svc.RefreshToken(context.Background(), refreshToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.ValidateToken(newAccessToken); err != nil {
		t.Errorf("refreshed access token failed validation: %v", err)
	}

	// After logout the same refresh token is rejected.
	if err := svc.Logout(context.Background(), refreshToken); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.RefreshToken(context.Background(), refreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after logout, got %v", err)
	}
}

func TestRefreshTokenExpired(t *testing.T) {
	svc, userRepo, refreshTokenRepo := newTestUserService()
	user := seedUser(t, userRepo, "admin@example.com", "correct-horse", true)

	expired := &domain.RefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     "stale-token",
		ExpiresAt: time.Now().Add(-time.Hour),
		CreatedAt: time.Now().Add(-8 * 24 * time.Hour),
	}
	refreshTokenRepo.tokens[expired.Token] = expired

	if _, err := svc.RefreshToken(context.Background(), "stale-token"); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestCreateUserDefaultsAndDuplicates(t *testing.T) {
	svc, _, _ := newTestUserService()

	user, err := svc.Create(context.Background(), CreateUserInput{
		Email:    "new@example.com",
		Username: "newbie",
		Password: "long-enough-pass",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Role != domain.RoleCustomer {
		t.Errorf("expected default CUSTOMER role, got %s", user.Role)
	}
	if !user.IsActive {
		t.Error("new accounts must start active")
	}
	if user.PasswordHash == "long-enough-pass" {
		t.Error("password must not be stored as plaintext")
	}

	_, err = svc.Create(context.Background(), CreateUserInput{
		Email:    "new@example.com",
		Username: "other",
		Password: "another-password",
	})
	if !errors.Is(err, repository.ErrUserAlreadyExists) {
		t.Fatalf("expected ErrUserAlreadyExists, got %v", err)
	}
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	svc, _, _ := newTestUserService()

	_, err := svc.Create(context.Background(), CreateUserInput{
		Email:    "new@example.com",
		Username: "newbie",
		Password: "long-enough-pass",
		Role:     "SUPERUSER",
	})
	if !errors.Is(err, ErrBadRole) {
		t.Fatalf("expected ErrBadRole, got %v", err)
	}
}

func TestUpdateUserRehashesPassword(t *testing.T) {
	svc, userRepo, _ := newTestUserService()
	user := seedUser(t, userRepo, "admin@example.com", "old-password", true)
	oldHash := user.PasswordHash

	newPassword := "brand-new-password"
	updated, err := svc.Update(context.Background(), user.ID, UpdateUserInput{Password: &newPassword})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.PasswordHash == oldHash {
		t.Error("expected password hash to change")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte(newPassword)); err != nil {
		t.Errorf("new hash does not match new password: %v", err)
	}
}

func TestDeactivateIsSoftDelete(t *testing.T) {
	svc, userRepo, _ := newTestUserService()
	user := seedUser(t, userRepo, "admin@example.com", "correct-horse", true)

	if err := svc.Deactivate(context.Background(), user.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The row survives for history; only the flag flips.
	got, err := svc.GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("deactivated account must still be readable: %v", err)
	}
	if got.IsActive {
		t.Error("expected is_active false after deactivation")
	}

	active, _ := svc.List(context.Background(), true)
	for _, u := range active {
		if u.ID == user.ID {
			t.Error("deactivated account must not appear in active-only listing")
		}
	}
}

func TestProperty_CreatedPasswordsAreHashed(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("stored hashes verify against the original password", prop.ForAll(
		func(password string) bool {
			svc, _, _ := newTestUserService()
			user, err := svc.Create(context.Background(), CreateUserInput{
				Email:    "p@example.com",
				Username: "p",
				Password: password,
			})
			if err != nil {
				return false
			}
			if user.PasswordHash == password {
				return false
			}
			return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
		},
		gen.AlphaString().SuchThat(func(s string) bool { return len(s) >= 8 && len(s) <= 64 }),
	))

	properties.TestingRun(t)
}
