package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/alptraumtech/lms/internal/models"
)

var (
	// ErrEmployeeNotFound indicates the requested employee does not exist.
	ErrEmployeeNotFound = errors.New("directory service: employee not found")
	// ErrSupervisorNotFound indicates the referenced supervisor does not exist.
	ErrSupervisorNotFound = errors.New("directory service: supervisor not found")
	// ErrSupervisorNotEligible indicates the referenced employee cannot take reports.
	ErrSupervisorNotEligible = errors.New("directory service: supervisor must hold the SUPERVISOR or ADMIN role")
	// ErrSupervisorCycle indicates the new supervisor sits inside the employee's own subtree.
	ErrSupervisorCycle = errors.New("directory service: supervisor assignment would create a reporting cycle")
	// ErrRFIDInUse indicates the RFID tag is already bound to another employee.
	ErrRFIDInUse = errors.New("directory service: rfid tag already assigned")
	// ErrEmailInUse indicates the login email already belongs to another employee.
	ErrEmailInUse = errors.New("directory service: email already assigned")
	// ErrInvalidRole indicates an unknown role string.
	ErrInvalidRole = errors.New("directory service: invalid role")
)

// CreateEmployeeInput captures the attributes required to register an employee.
type CreateEmployeeInput struct {
	SupervisorID *uint
	LastName     string
	FirstName    string
	Role         string
	RFIDUID      *string
	Email        string
	Password     string
}

// UpdateEmployeeInput represents mutable employee fields. Nil pointers leave
// the current value untouched; SetSupervisor distinguishes "clear supervisor"
// from "no change".
type UpdateEmployeeInput struct {
	SupervisorID  *uint
	SetSupervisor bool
	LastName      *string
	FirstName     *string
	Role          *string
	IsActive      *bool
	RFIDUID       *string
	SetRFID       bool
	Email         *string
	Password      *string
}

// EmployeeListOptions filters and paginates directory listings.
type EmployeeListOptions struct {
	Search   string
	Role     string
	Active   *bool
	Page     int
	PageSize int
}

// DirectoryService manages the employee reporting forest.
type DirectoryService struct {
	db           *gorm.DB
	auditService *AuditService
}

// NewDirectoryService constructs a DirectoryService instance.
func NewDirectoryService(db *gorm.DB, auditService *AuditService) (*DirectoryService, error) {
	if db == nil {
		return nil, errors.New("directory service: db is required")
	}
	return &DirectoryService{db: db, auditService: auditService}, nil
}

// Create registers a new employee under an optional supervisor.
func (s *DirectoryService) Create(ctx context.Context, input CreateEmployeeInput) (*models.Employee, error) {
	ctx = ensureContext(ctx)

	lastName := normalizeName(input.LastName)
	firstName := normalizeName(input.FirstName)
	if lastName == "" || firstName == "" {
		return nil, errors.New("directory service: first and last name are required")
	}

	role := strings.ToUpper(strings.TrimSpace(input.Role))
	if role == "" {
		role = models.RoleEmployee
	}
	if !validRole(role) {
		return nil, ErrInvalidRole
	}

	if input.SupervisorID != nil {
		if err := s.checkSupervisor(ctx, s.db, *input.SupervisorID); err != nil {
			return nil, err
		}
	}

	employee := &models.Employee{
		CompanyID:    1,
		SupervisorID: input.SupervisorID,
		LastName:     lastName,
		FirstName:    firstName,
		Role:         role,
		IsActive:     true,
	}

	// Emails are the password-login key, stored lowercased and unique.
	if email := normalizeEmail(input.Email); email != "" {
		taken, err := s.emailTaken(ctx, email, 0)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrEmailInUse
		}
		employee.Email = &email
	}

	if input.RFIDUID != nil {
		uid := strings.TrimSpace(*input.RFIDUID)
		if uid != "" {
			employee.RFIDUID = &uid
		}
	}

	if input.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("directory service: hash password: %w", err)
		}
		employee.PasswordHash = string(hash)
	}

	if err := s.db.WithContext(ctx).Create(employee).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrRFIDInUse
		}
		return nil, fmt.Errorf("directory service: create employee: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "employee.create",
		Resource: fmt.Sprintf("employee:%d", employee.ID),
		Result:   "success",
		Metadata: map[string]any{"name": employee.FullName(), "role": role},
	})

	return employee, nil
}

// GetByID loads a single employee record.
func (s *DirectoryService) GetByID(ctx context.Context, id uint) (*models.Employee, error) {
	ctx = ensureContext(ctx)

	var employee models.Employee
	err := s.db.WithContext(ctx).First(&employee, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEmployeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("directory service: get employee: %w", err)
	}
	return &employee, nil
}

// FindByRFID resolves an employee from a scanned RFID tag.
func (s *DirectoryService) FindByRFID(ctx context.Context, uid string) (*models.Employee, error) {
	ctx = ensureContext(ctx)

	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, ErrEmployeeNotFound
	}

	var employee models.Employee
	err := s.db.WithContext(ctx).First(&employee, "rfid_uid = ?", uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEmployeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("directory service: find by rfid: %w", err)
	}
	return &employee, nil
}

// List returns employees matching the provided filters, ordered by id.
func (s *DirectoryService) List(ctx context.Context, opts EmployeeListOptions) ([]models.Employee, int64, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 || perPage > 500 {
		perPage = 100
	}

	query := s.db.WithContext(ctx).Model(&models.Employee{})

	if search := strings.TrimSpace(opts.Search); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("last_name LIKE ? OR first_name LIKE ?", pattern, pattern)
	}
	if role := strings.ToUpper(strings.TrimSpace(opts.Role)); role != "" {
		query = query.Where("role = ?", role)
	}
	if opts.Active != nil {
		query = query.Where("is_active = ?", *opts.Active)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("directory service: count employees: %w", err)
	}

	var employees []models.Employee
	if err := query.
		Order("id ASC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&employees).Error; err != nil {
		return nil, 0, fmt.Errorf("directory service: list employees: %w", err)
	}

	return employees, total, nil
}

// ListDirectReports returns the employees reporting directly to supervisorID.
func (s *DirectoryService) ListDirectReports(ctx context.Context, supervisorID uint) ([]models.Employee, error) {
	ctx = ensureContext(ctx)

	var reports []models.Employee
	if err := s.db.WithContext(ctx).
		Where("supervisor_id = ?", supervisorID).
		Order("id ASC").
		Find(&reports).Error; err != nil {
		return nil, fmt.Errorf("directory service: list direct reports: %w", err)
	}
	return reports, nil
}

// Subtree returns the root employee followed by every transitive report,
// breadth first. A visited set guards against malformed supervisor links.
func (s *DirectoryService) Subtree(ctx context.Context, rootID uint) ([]models.Employee, error) {
	ctx = ensureContext(ctx)

	root, err := s.GetByID(ctx, rootID)
	if err != nil {
		return nil, err
	}

	result := []models.Employee{*root}
	visited := map[uint]bool{rootID: true}
	frontier := []uint{rootID}

	for len(frontier) > 0 {
		var next []models.Employee
		if err := s.db.WithContext(ctx).
			Where("supervisor_id IN ?", frontier).
			Order("id ASC").
			Find(&next).Error; err != nil {
			return nil, fmt.Errorf("directory service: expand subtree: %w", err)
		}

		frontier = frontier[:0]
		for _, emp := range next {
			if visited[emp.ID] {
				continue
			}
			visited[emp.ID] = true
			result = append(result, emp)
			frontier = append(frontier, emp.ID)
		}
	}

	return result, nil
}

// IsInSubtree reports whether candidateID sits within the subtree rooted at rootID.
func (s *DirectoryService) IsInSubtree(ctx context.Context, rootID, candidateID uint) (bool, error) {
	subtree, err := s.Subtree(ctx, rootID)
	if err != nil {
		return false, err
	}
	for _, emp := range subtree {
		if emp.ID == candidateID {
			return true, nil
		}
	}
	return false, nil
}

// Update modifies an employee. Demoting a supervisor re-parents their direct
// reports onto the demoted employee's own supervisor so the forest stays
// connected.
func (s *DirectoryService) Update(ctx context.Context, id uint, input UpdateEmployeeInput) (*models.Employee, error) {
	ctx = ensureContext(ctx)

	var employee models.Employee
	err := s.db.WithContext(ctx).First(&employee, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEmployeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("directory service: load employee: %w", err)
	}

	updates := map[string]any{}

	if input.LastName != nil {
		if name := normalizeName(*input.LastName); name != "" {
			updates["last_name"] = name
		}
	}
	if input.FirstName != nil {
		if name := normalizeName(*input.FirstName); name != "" {
			updates["first_name"] = name
		}
	}
	if input.Email != nil {
		if email := normalizeEmail(*input.Email); email != "" {
			taken, err := s.emailTaken(ctx, email, id)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, ErrEmailInUse
			}
			updates["email"] = email
		} else {
			updates["email"] = nil
		}
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}
	if input.SetRFID {
		if input.RFIDUID == nil || strings.TrimSpace(*input.RFIDUID) == "" {
			updates["rfid_uid"] = nil
		} else {
			uid := strings.TrimSpace(*input.RFIDUID)
			updates["rfid_uid"] = uid
		}
	}
	if input.Password != nil && *input.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("directory service: hash password: %w", err)
		}
		updates["password_hash"] = string(hash)
	}

	newRole := employee.Role
	if input.Role != nil {
		role := strings.ToUpper(strings.TrimSpace(*input.Role))
		if !validRole(role) {
			return nil, ErrInvalidRole
		}
		newRole = role
		updates["role"] = role
	}

	if input.SetSupervisor {
		if input.SupervisorID != nil {
			if *input.SupervisorID == id {
				return nil, ErrSupervisorCycle
			}
			if err := s.checkSupervisor(ctx, s.db, *input.SupervisorID); err != nil {
				return nil, err
			}
			inSubtree, err := s.IsInSubtree(ctx, id, *input.SupervisorID)
			if err != nil {
				return nil, err
			}
			if inSubtree {
				return nil, ErrSupervisorCycle
			}
			updates["supervisor_id"] = *input.SupervisorID
		} else {
			updates["supervisor_id"] = nil
		}
	}

	demoted := employee.Role == models.RoleSupervisor && newRole != models.RoleSupervisor && newRole != models.RoleAdmin

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if demoted {
			if err := tx.Model(&models.Employee{}).
				Where("supervisor_id = ?", employee.ID).
				Update("supervisor_id", employee.SupervisorID).Error; err != nil {
				return fmt.Errorf("reparent reports: %w", err)
			}
		}

		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&models.Employee{}).Where("id = ?", employee.ID).Updates(updates).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrRFIDInUse
			}
			return fmt.Errorf("update employee: %w", err)
		}
		return nil
	})
	if txErr != nil {
		if errors.Is(txErr, ErrRFIDInUse) {
			return nil, ErrRFIDInUse
		}
		return nil, fmt.Errorf("directory service: %w", txErr)
	}

	if err := s.db.WithContext(ctx).First(&employee, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("directory service: reload employee: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "employee.update",
		Resource: fmt.Sprintf("employee:%d", employee.ID),
		Result:   "success",
		Metadata: map[string]any{"demoted": demoted},
	})

	return &employee, nil
}

// Delete removes an employee. Direct reports move up to the deleted
// employee's supervisor, the employee's grants are removed, and any items
// they hold return to stock, all in one transaction.
func (s *DirectoryService) Delete(ctx context.Context, id uint) error {
	ctx = ensureContext(ctx)

	var employee models.Employee
	err := s.db.WithContext(ctx).First(&employee, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrEmployeeNotFound
	}
	if err != nil {
		return fmt.Errorf("directory service: load employee: %w", err)
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Employee{}).
			Where("supervisor_id = ?", employee.ID).
			Update("supervisor_id", employee.SupervisorID).Error; err != nil {
			return fmt.Errorf("reparent reports: %w", err)
		}

		if err := tx.Where("employee_id = ?", employee.ID).Delete(&models.PermitGrant{}).Error; err != nil {
			return fmt.Errorf("remove grants: %w", err)
		}

		if err := tx.Model(&models.Item{}).
			Where("holder_id = ?", employee.ID).
			Updates(map[string]any{"holder_id": nil, "status": models.ItemInStock}).Error; err != nil {
			return fmt.Errorf("release held items: %w", err)
		}

		if err := tx.Delete(&models.Employee{}, "id = ?", employee.ID).Error; err != nil {
			return fmt.Errorf("delete employee: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return fmt.Errorf("directory service: %w", txErr)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "employee.delete",
		Resource: fmt.Sprintf("employee:%d", employee.ID),
		Result:   "success",
		Metadata: map[string]any{"name": employee.FullName()},
	})

	return nil
}

// emailTaken reports whether another employee already owns the email. The
// unique index still backs this up against concurrent writes.
func (s *DirectoryService) emailTaken(ctx context.Context, email string, excludeID uint) (bool, error) {
	var count int64
	query := s.db.WithContext(ctx).Model(&models.Employee{}).Where("email = ?", email)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("directory service: check email: %w", err)
	}
	return count > 0, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *DirectoryService) checkSupervisor(ctx context.Context, db *gorm.DB, supervisorID uint) error {
	var supervisor models.Employee
	err := db.WithContext(ctx).First(&supervisor, "id = ?", supervisorID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrSupervisorNotFound
	}
	if err != nil {
		return fmt.Errorf("directory service: load supervisor: %w", err)
	}
	if !supervisor.IsSupervisor() && !supervisor.IsAdmin() {
		return ErrSupervisorNotEligible
	}
	return nil
}

func validRole(role string) bool {
	switch role {
	case models.RoleEmployee, models.RoleSupervisor, models.RoleAdmin:
		return true
	}
	return false
}
