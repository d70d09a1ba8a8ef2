package auth

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/kelvinchng/storefront-backend/internal/users"
	pkgauth "github.com/kelvinchng/storefront-backend/pkg/auth"
	"github.com/kelvinchng/storefront-backend/pkg/config"
	"github.com/kelvinchng/storefront-backend/pkg/db/dbtest"
	"github.com/kelvinchng/storefront-backend/pkg/db/models"
	"github.com/kelvinchng/storefront-backend/pkg/enums"
	pkgerrors "github.com/kelvinchng/storefront-backend/pkg/errors"
)

var testJWT = config.JWTConfig{Secret: "test-secret", Issuer: "storefront", ExpirationMinutes: 60}

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()

	db := dbtest.Open(t, dbtest.Users)
	svc, err := NewService(users.NewRepository(db), testJWT, config.PasswordConfig{}, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, db
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterRequest{
		Name:     "Alice Tan",
		Email:    "Alice@Example.com",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if registered.User.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %s", registered.User.Email)
	}
	if registered.User.Role != enums.UserRoleCustomer {
		t.Fatalf("expected customer role, got %s", registered.User.Role)
	}

	claims, err := pkgauth.ParseAccessToken(testJWT, registered.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != registered.User.ID || claims.Role != enums.UserRoleCustomer {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	logged, err := svc.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "correct horse battery"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if logged.User.ID != registered.User.ID {
		t.Fatalf("expected same account, got %s", logged.User.ID)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	req := RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "correct horse battery"}
	if _, err := svc.Register(ctx, req); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, req); !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "correct horse battery"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "wrong"}); !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized on wrong password, got %v", err)
	}
	if _, err := svc.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "whatever"}); !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized on unknown email, got %v", err)
	}

	if err := db.Model(&models.User{}).Where("email = ?", "alice@example.com").Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "correct horse battery"}); !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for inactive account, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []RegisterRequest{
		{Name: "", Email: "a@example.com", Password: "correct horse battery"},
		{Name: "Alice", Email: "not-an-email", Password: "correct horse battery"},
		{Name: "Alice", Email: "a@example.com", Password: "short"},
	}
	for _, req := range cases {
		if _, err := svc.Register(ctx, req); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error for %+v, got %v", req, err)
		}
	}
}
