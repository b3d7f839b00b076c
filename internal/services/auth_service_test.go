package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/alptraumtech/lms/internal/auth"
	"github.com/alptraumtech/lms/internal/licensing"
	"github.com/alptraumtech/lms/internal/models"
	"github.com/alptraumtech/lms/internal/scanner"
)

func newAuthService(t *testing.T, db *gorm.DB, licenseService *licensing.Service) *AuthService {
	t.Helper()

	jwtService, err := auth.NewJWTService(auth.JWTConfig{Secret: "test-secret", Issuer: "lms"})
	require.NoError(t, err)

	svc, err := NewAuthService(db, jwtService, licenseService, nil)
	require.NoError(t, err)
	return svc
}

func TestAuthLoginWithBadge(t *testing.T) {
	db := openServicesTestDB(t)
	directory := newDirectoryService(t, db)
	authService := newAuthService(t, db, nil)
	ctx := context.Background()

	employee := mustCreateEmployee(t, directory, CreateEmployeeInput{
		LastName: "Moser", FirstName: "Jan",
	})

	session, err := authService.LoginWithBadge(ctx, scanner.EncodeBadge(employee.ID))
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	require.Equal(t, employee.ID, session.Employee.ID)

	_, err = authService.LoginWithBadge(ctx, "not a badge")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = authService.LoginWithBadge(ctx, scanner.EncodeBadge(9999))
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthLoginWithRFID(t *testing.T) {
	db := openServicesTestDB(t)
	directory := newDirectoryService(t, db)
	authService := newAuthService(t, db, nil)
	ctx := context.Background()

	uid := "04A1B2C3"
	employee := mustCreateEmployee(t, directory, CreateEmployeeInput{
		LastName: "Moser", FirstName: "Jan", RFIDUID: &uid,
	})

	session, err := authService.LoginWithRFID(ctx, " 04A1B2C3 ")
	require.NoError(t, err)
	require.Equal(t, employee.ID, session.Employee.ID)

	_, err = authService.LoginWithRFID(ctx, "unknown")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = authService.LoginWithRFID(ctx, "")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthLoginWithPassword(t *testing.T) {
	db := openServicesTestDB(t)
	directory := newDirectoryService(t, db)
	authService := newAuthService(t, db, nil)
	ctx := context.Background()

	employee := mustCreateEmployee(t, directory, CreateEmployeeInput{
		LastName: "Moser", FirstName: "Jan",
		Email:    "jan.moser@example.com",
		Password: "correct horse",
	})

	session, err := authService.LoginWithPassword(ctx, "Jan.Moser@Example.com", "correct horse")
	require.NoError(t, err)
	require.Equal(t, employee.ID, session.Employee.ID)

	claims, err := mustJWT(t).ValidateAccessToken(session.Token)
	require.NoError(t, err)
	require.Equal(t, employee.ID, claims.EmployeeID)
	require.Equal(t, models.RoleEmployee, claims.Role)

	_, err = authService.LoginWithPassword(ctx, "jan.moser@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = authService.LoginWithPassword(ctx, "nobody@example.com", "correct horse")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthLoginDisabledAccount(t *testing.T) {
	db := openServicesTestDB(t)
	directory := newDirectoryService(t, db)
	authService := newAuthService(t, db, nil)
	ctx := context.Background()

	employee := mustCreateEmployee(t, directory, CreateEmployeeInput{
		LastName: "Moser", FirstName: "Jan",
	})

	active := false
	_, err := directory.Update(ctx, employee.ID, UpdateEmployeeInput{IsActive: &active})
	require.NoError(t, err)

	_, err = authService.LoginWithBadge(ctx, scanner.EncodeBadge(employee.ID))
	require.ErrorIs(t, err, ErrAccountDisabled)
}

func TestAuthLoginLicenseGate(t *testing.T) {
	db := openServicesTestDB(t)
	directory := newDirectoryService(t, db)

	licenseService, err := licensing.NewService(db, nil)
	require.NoError(t, err)
	authService := newAuthService(t, db, licenseService)
	ctx := context.Background()

	employee := mustCreateEmployee(t, directory, CreateEmployeeInput{
		LastName: "Moser", FirstName: "Jan",
	})

	// No cached license blocks login entirely.
	_, err = authService.LoginWithBadge(ctx, scanner.EncodeBadge(employee.ID))
	require.ErrorIs(t, err, ErrLicenseBlocked)

	expire := time.Now().Add(24 * time.Hour)
	require.NoError(t, db.Create(&models.Company{
		ID:                1,
		Name:              "Acme Labs",
		RootAdminEmail:    "admin@example.com",
		LicenceExpireDate: &expire,
	}).Error)

	session, err := authService.LoginWithBadge(ctx, scanner.EncodeBadge(employee.ID))
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)

	past := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(&models.Company{ID: 1}).
		Update("licence_expire_date", &past).Error)

	_, err = authService.LoginWithBadge(ctx, scanner.EncodeBadge(employee.ID))
	require.ErrorIs(t, err, ErrLicenseBlocked)
}

func mustJWT(t *testing.T) *auth.JWTService {
	t.Helper()
	jwtService, err := auth.NewJWTService(auth.JWTConfig{Secret: "test-secret", Issuer: "lms"})
	require.NoError(t, err)
	return jwtService
}
