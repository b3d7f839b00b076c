package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/alptraumtech/lms/internal/models"
	"github.com/alptraumtech/lms/pkg/metrics"
)

var (
	// ErrPermitTypeNotFound indicates the requested permit type does not exist.
	ErrPermitTypeNotFound = errors.New("permit service: permit type not found")
	// ErrPermitTypeExists indicates a duplicate permit type name.
	ErrPermitTypeExists = errors.New("permit service: permit type already exists")
	// ErrGrantNotFound indicates no grant exists for the employee and type.
	ErrGrantNotFound = errors.New("permit service: grant not found")

	// ErrAssignSelf rejects issuing a permit to oneself.
	ErrAssignSelf = errors.New("permit service: cannot issue a permit to yourself")
	// ErrAssignRoleDenied rejects issuance by plain employees.
	ErrAssignRoleDenied = errors.New("permit service: employees cannot issue permits")
	// ErrAssignNotDirectReport restricts supervisors to their own direct reports.
	ErrAssignNotDirectReport = errors.New("permit service: supervisors may only issue permits to their direct reports")
	// ErrAssignIssuerLacksGrant requires a supervisor to hold the permit being issued.
	ErrAssignIssuerLacksGrant = errors.New("permit service: issuer does not hold an active grant of this permit")
	// ErrAssignExceedsIssuerGrant caps an issued expiry at the issuer's own.
	ErrAssignExceedsIssuerGrant = errors.New("permit service: issued expiry exceeds issuer's own grant")
	// ErrAssignTargetAdmin rejects issuing permits to administrators.
	ErrAssignTargetAdmin = errors.New("permit service: administrators do not receive permits")
	// ErrInvalidDuration rejects malformed durations.
	ErrInvalidDuration = errors.New("permit service: invalid permit duration")
	// ErrDurationTooLong caps non-permanent grants at 366 days.
	ErrDurationTooLong = errors.New("permit service: permit duration exceeds 366 days")
	// ErrRequirementDenied gates requirement edits on the actor's own grants.
	ErrRequirementDenied = errors.New("permit service: actor does not hold the permit required to edit this requirement")
)

// Duration units accepted when issuing a permit.
const (
	DurationHours     = "Hours"
	DurationDays      = "Days"
	DurationMonths    = "Months"
	DurationPermanent = "Permanent"
)

// maxGrantSpan caps any non-permanent grant at one leap year.
const maxGrantSpan = 366 * 24 * time.Hour

// PermitDuration describes how long an issued grant remains valid.
type PermitDuration struct {
	Value int    `json:"value"`
	Unit  string `json:"unit"`
}

// GrantInfo pairs a grant with its permit type name for listings.
type GrantInfo struct {
	Grant      models.PermitGrant `json:"grant"`
	PermitName string             `json:"permit_name"`
	Active     bool               `json:"active"`
}

// PermitService manages permit types, grants and item requirements.
type PermitService struct {
	db           *gorm.DB
	auditService *AuditService
	now          func() time.Time
}

// NewPermitService constructs a PermitService instance.
func NewPermitService(db *gorm.DB, auditService *AuditService) (*PermitService, error) {
	if db == nil {
		return nil, errors.New("permit service: db is required")
	}
	return &PermitService{db: db, auditService: auditService, now: time.Now}, nil
}

// CreateType registers a new permit type with a unique name.
func (s *PermitService) CreateType(ctx context.Context, name string) (*models.PermitType, error) {
	ctx = ensureContext(ctx)

	name = normalizeName(name)
	if name == "" {
		return nil, errors.New("permit service: permit type name is required")
	}

	permitType := &models.PermitType{Name: name}
	if err := s.db.WithContext(ctx).Create(permitType).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrPermitTypeExists
		}
		return nil, fmt.Errorf("permit service: create permit type: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "permit.type.create",
		Resource: fmt.Sprintf("permit_type:%d", permitType.ID),
		Result:   "success",
		Metadata: map[string]any{"name": name},
	})

	return permitType, nil
}

// ListTypes returns all permit types ordered by name.
func (s *PermitService) ListTypes(ctx context.Context) ([]models.PermitType, error) {
	ctx = ensureContext(ctx)

	var types []models.PermitType
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&types).Error; err != nil {
		return nil, fmt.Errorf("permit service: list permit types: %w", err)
	}
	return types, nil
}

// GetType loads a permit type by id.
func (s *PermitService) GetType(ctx context.Context, id uint) (*models.PermitType, error) {
	ctx = ensureContext(ctx)

	var permitType models.PermitType
	err := s.db.WithContext(ctx).First(&permitType, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPermitTypeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("permit service: get permit type: %w", err)
	}
	return &permitType, nil
}

// RenameType updates a permit type's name.
func (s *PermitService) RenameType(ctx context.Context, id uint, name string) (*models.PermitType, error) {
	ctx = ensureContext(ctx)

	permitType, err := s.GetType(ctx, id)
	if err != nil {
		return nil, err
	}

	name = normalizeName(name)
	if name == "" {
		return nil, errors.New("permit service: permit type name is required")
	}

	if err := s.db.WithContext(ctx).Model(permitType).Update("name", name).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrPermitTypeExists
		}
		return nil, fmt.Errorf("permit service: rename permit type: %w", err)
	}

	permitType.Name = name
	return permitType, nil
}

// DeleteType removes a permit type together with every grant and item
// requirement referencing it, in one transaction.
func (s *PermitService) DeleteType(ctx context.Context, id uint) error {
	ctx = ensureContext(ctx)

	permitType, err := s.GetType(ctx, id)
	if err != nil {
		return err
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("permit_type_id = ?", id).Delete(&models.PermitGrant{}).Error; err != nil {
			return fmt.Errorf("delete grants: %w", err)
		}
		if err := tx.Where("permit_type_id = ?", id).Delete(&models.ItemPermitRequirement{}).Error; err != nil {
			return fmt.Errorf("delete requirements: %w", err)
		}
		if err := tx.Delete(&models.PermitType{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete permit type: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return fmt.Errorf("permit service: %w", txErr)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "permit.type.delete",
		Resource: fmt.Sprintf("permit_type:%d", id),
		Result:   "success",
		Metadata: map[string]any{"name": permitType.Name},
	})

	return nil
}

// Assign issues a new grant of permitTypeID to employeeID on behalf of
// actor. The issuance policy is evaluated before any write.
func (s *PermitService) Assign(ctx context.Context, actor *models.Employee, employeeID, permitTypeID uint, duration PermitDuration) (*models.PermitGrant, error) {
	ctx = ensureContext(ctx)

	expire, err := s.resolveExpiry(s.now(), duration)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeIssuance(ctx, actor, employeeID, permitTypeID, expire); err != nil {
		metrics.PermitDecisions.WithLabelValues("deny").Inc()
		recordAudit(s.auditService, ctx, AuditEntry{
			EmployeeID: &actor.ID,
			Action:     "permit.assign",
			Resource:   fmt.Sprintf("employee:%d", employeeID),
			Result:     "denied",
			Metadata:   map[string]any{"permit_type_id": permitTypeID, "reason": err.Error()},
		})
		return nil, err
	}

	grant := &models.PermitGrant{
		EmployeeID:   employeeID,
		PermitTypeID: permitTypeID,
		IssueDate:    s.now(),
		ExpireDate:   expire,
		IssuerID:     actor.ID,
	}
	if err := s.db.WithContext(ctx).Create(grant).Error; err != nil {
		return nil, fmt.Errorf("permit service: create grant: %w", err)
	}

	metrics.PermitDecisions.WithLabelValues("allow").Inc()
	recordAudit(s.auditService, ctx, AuditEntry{
		EmployeeID: &actor.ID,
		Action:     "permit.assign",
		Resource:   fmt.Sprintf("employee:%d", employeeID),
		Result:     "success",
		Metadata:   map[string]any{"permit_type_id": permitTypeID},
	})

	return grant, nil
}

// ExtendOrCreate prolongs the employee's current grant by duration, counted
// from the later of now and the current expiry. The extension lands as a new
// grant row; a permanent current grant is left untouched.
func (s *PermitService) ExtendOrCreate(ctx context.Context, actor *models.Employee, employeeID, permitTypeID uint, duration PermitDuration) (*models.PermitGrant, error) {
	ctx = ensureContext(ctx)

	now := s.now()
	current, err := s.CurrentGrant(ctx, employeeID, permitTypeID)
	if err != nil && !errors.Is(err, ErrGrantNotFound) {
		return nil, err
	}

	if current == nil {
		return s.Assign(ctx, actor, employeeID, permitTypeID, duration)
	}
	if current.Permanent() {
		return current, nil
	}

	base := now
	if current.ExpireDate.After(base) {
		base = *current.ExpireDate
	}

	span, permanent, err := durationSpan(duration)
	if err != nil {
		return nil, err
	}

	var expire *time.Time
	if !permanent {
		e := addSpan(base, duration, span)
		if e.Sub(now) > maxGrantSpan {
			return nil, ErrDurationTooLong
		}
		expire = &e
	}

	if err := s.authorizeIssuance(ctx, actor, employeeID, permitTypeID, expire); err != nil {
		metrics.PermitDecisions.WithLabelValues("deny").Inc()
		return nil, err
	}

	grant := &models.PermitGrant{
		EmployeeID:   employeeID,
		PermitTypeID: permitTypeID,
		IssueDate:    now,
		ExpireDate:   expire,
		IssuerID:     actor.ID,
	}
	if err := s.db.WithContext(ctx).Create(grant).Error; err != nil {
		return nil, fmt.Errorf("permit service: extend grant: %w", err)
	}

	metrics.PermitDecisions.WithLabelValues("allow").Inc()
	recordAudit(s.auditService, ctx, AuditEntry{
		EmployeeID: &actor.ID,
		Action:     "permit.extend",
		Resource:   fmt.Sprintf("employee:%d", employeeID),
		Result:     "success",
		Metadata:   map[string]any{"permit_type_id": permitTypeID},
	})

	return grant, nil
}

// Revoke removes the single grant identified by its composite key. Older
// expired rows of the pair stay behind as history. The issuance policy
// applies, minus the expiry comparison.
func (s *PermitService) Revoke(ctx context.Context, actor *models.Employee, employeeID, permitTypeID uint, issueDate time.Time) error {
	ctx = ensureContext(ctx)

	if err := s.authorizeIssuance(ctx, actor, employeeID, permitTypeID, nil); err != nil && !errors.Is(err, ErrAssignIssuerLacksGrant) {
		return err
	}

	result := s.db.WithContext(ctx).
		Where("employee_id = ? AND permit_type_id = ? AND issue_date = ?", employeeID, permitTypeID, issueDate).
		Delete(&models.PermitGrant{})
	if result.Error != nil {
		return fmt.Errorf("permit service: revoke grants: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrGrantNotFound
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		EmployeeID: &actor.ID,
		Action:     "permit.revoke",
		Resource:   fmt.Sprintf("employee:%d", employeeID),
		Result:     "success",
		Metadata:   map[string]any{"permit_type_id": permitTypeID},
	})

	return nil
}

// GrantsFor lists every grant held by an employee, newest first, with the
// permit type name resolved.
func (s *PermitService) GrantsFor(ctx context.Context, employeeID uint) ([]GrantInfo, error) {
	ctx = ensureContext(ctx)

	var grants []models.PermitGrant
	if err := s.db.WithContext(ctx).
		Where("employee_id = ?", employeeID).
		Order("issue_date DESC").
		Find(&grants).Error; err != nil {
		return nil, fmt.Errorf("permit service: list grants: %w", err)
	}

	types, err := s.typeNames(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	infos := make([]GrantInfo, 0, len(grants))
	for _, grant := range grants {
		infos = append(infos, GrantInfo{
			Grant:      grant,
			PermitName: types[grant.PermitTypeID],
			Active:     grant.Active(now),
		})
	}
	return infos, nil
}

// CurrentGrant returns the grant with the latest issue date for the pair.
func (s *PermitService) CurrentGrant(ctx context.Context, employeeID, permitTypeID uint) (*models.PermitGrant, error) {
	ctx = ensureContext(ctx)

	var grant models.PermitGrant
	err := s.db.WithContext(ctx).
		Where("employee_id = ? AND permit_type_id = ?", employeeID, permitTypeID).
		Order("issue_date DESC").
		First(&grant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrGrantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("permit service: current grant: %w", err)
	}
	return &grant, nil
}

// HolderSatisfies checks whether employeeID holds active grants for every
// permit the item requires. When not, the missing permit names are returned.
func (s *PermitService) HolderSatisfies(ctx context.Context, employeeID uint, itemID string) (bool, []string, error) {
	ctx = ensureContext(ctx)

	var requirements []models.ItemPermitRequirement
	if err := s.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Find(&requirements).Error; err != nil {
		return false, nil, fmt.Errorf("permit service: load requirements: %w", err)
	}
	if len(requirements) == 0 {
		return true, nil, nil
	}

	types, err := s.typeNames(ctx)
	if err != nil {
		return false, nil, err
	}

	now := s.now()
	var missing []string
	for _, req := range requirements {
		grant, err := s.CurrentGrant(ctx, employeeID, req.PermitTypeID)
		if errors.Is(err, ErrGrantNotFound) || (err == nil && !grant.Active(now)) {
			missing = append(missing, types[req.PermitTypeID])
			continue
		}
		if err != nil {
			return false, nil, err
		}
	}

	return len(missing) == 0, missing, nil
}

// AddRequirement attaches a permit requirement to an item. Non-admin actors
// must themselves hold an active grant of the permit they are requiring.
func (s *PermitService) AddRequirement(ctx context.Context, actor *models.Employee, itemID string, permitTypeID uint) error {
	ctx = ensureContext(ctx)

	if _, err := s.GetType(ctx, permitTypeID); err != nil {
		return err
	}

	if !actor.IsAdmin() {
		holds, err := s.holdsActiveGrant(ctx, actor.ID, permitTypeID)
		if err != nil {
			return err
		}
		if !holds {
			return ErrRequirementDenied
		}
	}

	req := models.ItemPermitRequirement{ItemID: itemID, PermitTypeID: permitTypeID}
	if err := s.db.WithContext(ctx).Create(&req).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil
		}
		return fmt.Errorf("permit service: add requirement: %w", err)
	}
	return nil
}

// RemoveRequirement detaches a permit requirement from an item, under the
// same gating as AddRequirement.
func (s *PermitService) RemoveRequirement(ctx context.Context, actor *models.Employee, itemID string, permitTypeID uint) error {
	ctx = ensureContext(ctx)

	if !actor.IsAdmin() {
		holds, err := s.holdsActiveGrant(ctx, actor.ID, permitTypeID)
		if err != nil {
			return err
		}
		if !holds {
			return ErrRequirementDenied
		}
	}

	return s.db.WithContext(ctx).
		Where("item_id = ? AND permit_type_id = ?", itemID, permitTypeID).
		Delete(&models.ItemPermitRequirement{}).Error
}

// RequirementsFor lists the permit types an item requires.
func (s *PermitService) RequirementsFor(ctx context.Context, itemID string) ([]models.PermitType, error) {
	ctx = ensureContext(ctx)

	var types []models.PermitType
	if err := s.db.WithContext(ctx).
		Joins("JOIN item_permit_requirements r ON r.permit_type_id = permit_types.id").
		Where("r.item_id = ?", itemID).
		Order("permit_types.name ASC").
		Find(&types).Error; err != nil {
		return nil, fmt.Errorf("permit service: list item requirements: %w", err)
	}
	return types, nil
}

// authorizeIssuance applies the issuance policy. expire is the expiry the
// caller intends to grant (nil for permanent, or when only the relationship
// rules matter).
func (s *PermitService) authorizeIssuance(ctx context.Context, actor *models.Employee, employeeID, permitTypeID uint, expire *time.Time) error {
	if actor == nil {
		return ErrAssignRoleDenied
	}
	if actor.ID == employeeID {
		return ErrAssignSelf
	}

	var target models.Employee
	err := s.db.WithContext(ctx).First(&target, "id = ?", employeeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrEmployeeNotFound
	}
	if err != nil {
		return fmt.Errorf("permit service: load target: %w", err)
	}

	switch actor.Role {
	case models.RoleEmployee:
		return ErrAssignRoleDenied

	case models.RoleSupervisor:
		if target.SupervisorID == nil || *target.SupervisorID != actor.ID || target.Role != models.RoleEmployee {
			return ErrAssignNotDirectReport
		}
		own, err := s.CurrentGrant(ctx, actor.ID, permitTypeID)
		if errors.Is(err, ErrGrantNotFound) {
			return ErrAssignIssuerLacksGrant
		}
		if err != nil {
			return err
		}
		if !own.Active(s.now()) {
			return ErrAssignIssuerLacksGrant
		}
		if !own.Permanent() {
			if expire == nil || expire.After(*own.ExpireDate) {
				return ErrAssignExceedsIssuerGrant
			}
		}
		return nil

	case models.RoleAdmin:
		if target.IsAdmin() {
			return ErrAssignTargetAdmin
		}
		return nil
	}

	return ErrAssignRoleDenied
}

func (s *PermitService) holdsActiveGrant(ctx context.Context, employeeID, permitTypeID uint) (bool, error) {
	grant, err := s.CurrentGrant(ctx, employeeID, permitTypeID)
	if errors.Is(err, ErrGrantNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return grant.Active(s.now()), nil
}

func (s *PermitService) typeNames(ctx context.Context) (map[uint]string, error) {
	types, err := s.ListTypes(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(types))
	for _, t := range types {
		names[t.ID] = t.Name
	}
	return names, nil
}

// resolveExpiry converts a duration into an absolute expiry from now,
// enforcing the 366-day cap. Permanent durations yield a nil expiry.
func (s *PermitService) resolveExpiry(now time.Time, duration PermitDuration) (*time.Time, error) {
	span, permanent, err := durationSpan(duration)
	if err != nil {
		return nil, err
	}
	if permanent {
		return nil, nil
	}

	expire := addSpan(now, duration, span)
	if expire.Sub(now) > maxGrantSpan {
		return nil, ErrDurationTooLong
	}
	if !expire.After(now) {
		return nil, ErrInvalidDuration
	}
	return &expire, nil
}

// durationSpan validates the unit and returns the fixed-span part. Month
// arithmetic is calendar-based and handled by addSpan.
func durationSpan(duration PermitDuration) (time.Duration, bool, error) {
	unit := strings.TrimSpace(duration.Unit)
	if strings.EqualFold(unit, DurationPermanent) {
		return 0, true, nil
	}
	if duration.Value <= 0 {
		return 0, false, ErrInvalidDuration
	}

	switch {
	case strings.EqualFold(unit, DurationHours):
		return time.Duration(duration.Value) * time.Hour, false, nil
	case strings.EqualFold(unit, DurationDays):
		return time.Duration(duration.Value) * 24 * time.Hour, false, nil
	case strings.EqualFold(unit, DurationMonths):
		return 0, false, nil
	}
	return 0, false, ErrInvalidDuration
}

func addSpan(base time.Time, duration PermitDuration, span time.Duration) time.Time {
	if strings.EqualFold(strings.TrimSpace(duration.Unit), DurationMonths) {
		return base.AddDate(0, duration.Value, 0)
	}
	return base.Add(span)
}
