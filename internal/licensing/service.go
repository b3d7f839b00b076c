package licensing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/alptraumtech/lms/internal/models"
)

var (
	// ErrNoLicense indicates no activated company record exists locally.
	ErrNoLicense = errors.New("licensing: no activated license")
	// ErrLicenseExpired indicates the local license record is past its expiry.
	ErrLicenseExpired = errors.New("licensing: license expired")
)

// Service validates and maintains the locally cached license state against
// the remote licensing server.
type Service struct {
	db     *gorm.DB
	client *Client
	now    func() time.Time
}

// NewService constructs a licensing Service. client may be nil for
// offline-only validation against the cached record.
func NewService(db *gorm.DB, client *Client) (*Service, error) {
	if db == nil {
		return nil, errors.New("licensing: db is required")
	}
	return &Service{db: db, client: client, now: time.Now}, nil
}

// Company returns the locally cached company record.
func (s *Service) Company(ctx context.Context) (*models.Company, error) {
	var company models.Company
	err := s.db.WithContext(ctx).First(&company).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoLicense
	}
	if err != nil {
		return nil, fmt.Errorf("licensing: load company: %w", err)
	}
	return &company, nil
}

// Valid reports whether the cached license permits operation right now.
func (s *Service) Valid(ctx context.Context) error {
	company, err := s.Company(ctx)
	if err != nil {
		return err
	}
	if company.LicenceExpireDate != nil && !company.LicenceExpireDate.After(s.now()) {
		return ErrLicenseExpired
	}
	return nil
}

// Activate exchanges a license code for a company record, binds this device
// and caches the result locally.
func (s *Service) Activate(ctx context.Context, licenseCode, email string) (*models.Company, error) {
	if s.client == nil {
		return nil, errors.New("licensing: no remote client configured")
	}

	result, err := s.client.Activate(ctx, licenseCode, email)
	if err != nil {
		return nil, err
	}

	deviceID, err := DeviceID()
	if err != nil {
		return nil, err
	}
	if err := s.client.RegisterDevice(ctx, result.CompanyID, deviceID); err != nil {
		return nil, err
	}

	company := models.Company{
		ID:                result.CompanyID,
		Name:              result.CompanyName,
		RootAdminEmail:    strings.TrimSpace(email),
		LicenceCode:       strings.TrimSpace(licenseCode),
		LicenceType:       result.LicenceType,
		LicenceExpireDate: result.ExpireDate,
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&company).Error; err != nil {
			return fmt.Errorf("save company: %w", err)
		}
		activation := models.DeviceActivation{CompanyID: company.ID, DeviceID: deviceID}
		if err := tx.Save(&activation).Error; err != nil {
			return fmt.Errorf("save device activation: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return nil, fmt.Errorf("licensing: %w", txErr)
	}

	return &company, nil
}

// Refresh re-validates the license with the server and updates the cached
// expiry. Network failures leave the cached record untouched.
func (s *Service) Refresh(ctx context.Context) error {
	if s.client == nil {
		return nil
	}

	company, err := s.Company(ctx)
	if err != nil {
		return err
	}

	result, err := s.client.Activate(ctx, company.LicenceCode, company.RootAdminEmail)
	if err != nil {
		if errors.Is(err, ErrLicenseRejected) {
			expired := s.now().Add(-time.Minute)
			return s.db.WithContext(ctx).Model(company).
				Update("licence_expire_date", &expired).Error
		}
		return err
	}

	return s.db.WithContext(ctx).Model(company).Updates(map[string]any{
		"licence_type":        result.LicenceType,
		"licence_expire_date": result.ExpireDate,
	}).Error
}

// PushCompanyUpdate mirrors edited company details to the server and the
// local cache.
func (s *Service) PushCompanyUpdate(ctx context.Context, name, address string) (*models.Company, error) {
	company, err := s.Company(ctx)
	if err != nil {
		return nil, err
	}

	if s.client != nil {
		if err := s.client.UpdateCompany(ctx, company.ID, name, address); err != nil {
			return nil, err
		}
	}

	if err := s.db.WithContext(ctx).Model(company).Updates(map[string]any{
		"company_name":    strings.TrimSpace(name),
		"company_address": strings.TrimSpace(address),
	}).Error; err != nil {
		return nil, fmt.Errorf("licensing: update company: %w", err)
	}

	company.Name = strings.TrimSpace(name)
	company.Address = strings.TrimSpace(address)
	return company, nil
}

// DeviceID derives a stable machine identifier from the hardware addresses
// of the machine's network interfaces.
func DeviceID() (string, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("licensing: enumerate interfaces: %w", err)
	}

	var addrs []string
	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if mac := iface.HardwareAddr.String(); mac != "" {
			addrs = append(addrs, mac)
		}
	}
	if len(addrs) == 0 {
		return "", errors.New("licensing: no hardware addresses found")
	}
	sort.Strings(addrs)

	sum := sha256.Sum256([]byte(strings.Join(addrs, "|")))
	return hex.EncodeToString(sum[:16]), nil
}
