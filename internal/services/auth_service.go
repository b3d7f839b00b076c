package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/alptraumtech/lms/internal/auth"
	"github.com/alptraumtech/lms/internal/licensing"
	"github.com/alptraumtech/lms/internal/models"
	"github.com/alptraumtech/lms/internal/scanner"
	"github.com/alptraumtech/lms/pkg/metrics"
)

var (
	// ErrInvalidCredentials covers bad badge codes, unknown accounts and
	// wrong passwords without distinguishing them to the caller.
	ErrInvalidCredentials = errors.New("auth service: invalid badge code or password")
	// ErrAccountDisabled indicates the employee record is inactive.
	ErrAccountDisabled = errors.New("auth service: account is disabled")
	// ErrLicenseBlocked indicates login is refused because no valid license is active.
	ErrLicenseBlocked = errors.New("auth service: license is missing or expired")
)

// AuthenticatedSession is the result of a successful login.
type AuthenticatedSession struct {
	Token    string           `json:"token"`
	Employee *models.Employee `json:"employee"`
}

// AuthService authenticates employees by badge, RFID tag or password.
type AuthService struct {
	db             *gorm.DB
	jwtService     *auth.JWTService
	licenseService *licensing.Service
	auditService   *AuditService
}

// NewAuthService constructs an AuthService instance. licenseService may be
// nil, which disables the license gate.
func NewAuthService(db *gorm.DB, jwtService *auth.JWTService, licenseService *licensing.Service, auditService *AuditService) (*AuthService, error) {
	if db == nil {
		return nil, errors.New("auth service: db is required")
	}
	if jwtService == nil {
		return nil, errors.New("auth service: jwt service is required")
	}
	return &AuthService{
		db:             db,
		jwtService:     jwtService,
		licenseService: licenseService,
		auditService:   auditService,
	}, nil
}

// LoginWithBadge authenticates a scanned badge code.
func (s *AuthService) LoginWithBadge(ctx context.Context, badgeCode string) (*AuthenticatedSession, error) {
	ctx = ensureContext(ctx)

	employeeID, err := scanner.DecodeBadge(badgeCode)
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, ErrInvalidCredentials
	}

	var employee models.Employee
	dbErr := s.db.WithContext(ctx).First(&employee, "id = ?", employeeID).Error
	if errors.Is(dbErr, gorm.ErrRecordNotFound) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, ErrInvalidCredentials
	}
	if dbErr != nil {
		return nil, fmt.Errorf("auth service: load employee: %w", dbErr)
	}

	metrics.ScanEvents.WithLabelValues("badge").Inc()
	return s.establishSession(ctx, &employee, "badge")
}

// LoginWithRFID authenticates a scanned RFID tag.
func (s *AuthService) LoginWithRFID(ctx context.Context, uid string) (*AuthenticatedSession, error) {
	ctx = ensureContext(ctx)

	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, ErrInvalidCredentials
	}

	var employee models.Employee
	err := s.db.WithContext(ctx).First(&employee, "rfid_uid = ?", uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("auth service: load employee: %w", err)
	}

	return s.establishSession(ctx, &employee, "rfid")
}

// LoginWithPassword authenticates an email and password pair.
func (s *AuthService) LoginWithPassword(ctx context.Context, email, password string) (*AuthenticatedSession, error) {
	ctx = ensureContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var employee models.Employee
	err := s.db.WithContext(ctx).First(&employee, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("auth service: load employee: %w", err)
	}

	if employee.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(employee.PasswordHash), []byte(password)) != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		recordAudit(s.auditService, ctx, AuditEntry{
			EmployeeID: &employee.ID,
			Action:     "auth.login",
			Result:     "failure",
		})
		return nil, ErrInvalidCredentials
	}

	return s.establishSession(ctx, &employee, "password")
}

func (s *AuthService) establishSession(ctx context.Context, employee *models.Employee, method string) (*AuthenticatedSession, error) {
	if !employee.IsActive {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, ErrAccountDisabled
	}

	if s.licenseService != nil {
		if err := s.licenseService.Valid(ctx); err != nil {
			metrics.AuthAttempts.WithLabelValues("failure").Inc()
			recordAudit(s.auditService, ctx, AuditEntry{
				EmployeeID: &employee.ID,
				Action:     "auth.login",
				Result:     "license_blocked",
			})
			return nil, ErrLicenseBlocked
		}
	}

	token, err := s.jwtService.GenerateAccessToken(auth.AccessTokenInput{
		EmployeeID: employee.ID,
		Role:       employee.Role,
		CompanyID:  employee.CompanyID,
	})
	if err != nil {
		return nil, fmt.Errorf("auth service: issue token: %w", err)
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	recordAudit(s.auditService, ctx, AuditEntry{
		EmployeeID: &employee.ID,
		Action:     "auth.login",
		Result:     "success",
		Metadata:   map[string]any{"method": method},
	})

	return &AuthenticatedSession{Token: token, Employee: employee}, nil
}
