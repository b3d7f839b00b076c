package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/alptraumtech/lms/internal/models"
)

var (
	// ErrCategoryNotFound indicates the requested category does not exist.
	ErrCategoryNotFound = errors.New("taxonomy service: category not found")
	// ErrCategoryExists indicates a duplicate category code.
	ErrCategoryExists = errors.New("taxonomy service: category already exists")
	// ErrCategoryInUse blocks deleting a category referenced by items.
	ErrCategoryInUse = errors.New("taxonomy service: category is referenced by items")
	// ErrSubCategoryNotFound indicates the requested subcategory does not exist.
	ErrSubCategoryNotFound = errors.New("taxonomy service: subcategory not found")
	// ErrSubCategoryExists indicates a duplicate subcategory code.
	ErrSubCategoryExists = errors.New("taxonomy service: subcategory already exists")
	// ErrSubCategoryInUse blocks deleting a subcategory referenced by items.
	ErrSubCategoryInUse = errors.New("taxonomy service: subcategory is referenced by items")
	// ErrParameterNotFound indicates no parameter at the given slot.
	ErrParameterNotFound = errors.New("taxonomy service: parameter not found")
	// ErrParameterLimit caps the parameter slots per subcategory.
	ErrParameterLimit = errors.New("taxonomy service: parameter slot limit reached")
	// ErrParameterInUse blocks deleting a slot that item ids still encode.
	ErrParameterInUse = errors.New("taxonomy service: parameter position is used by existing item ids")
	// ErrBadPosition indicates a position outside the dense 1..N run.
	ErrBadPosition = errors.New("taxonomy service: position out of range")
)

// TaxonomyService manages categories, subcategories and their ordered
// id-template parameters.
type TaxonomyService struct {
	db           *gorm.DB
	auditService *AuditService
}

// NewTaxonomyService constructs a TaxonomyService instance.
func NewTaxonomyService(db *gorm.DB, auditService *AuditService) (*TaxonomyService, error) {
	if db == nil {
		return nil, errors.New("taxonomy service: db is required")
	}
	return &TaxonomyService{db: db, auditService: auditService}, nil
}

// CreateCategory registers a top-level category.
func (s *TaxonomyService) CreateCategory(ctx context.Context, code, description string) (*models.Category, error) {
	ctx = ensureContext(ctx)

	code = normalizeCode(code)
	if code == "" {
		return nil, errors.New("taxonomy service: category code is required")
	}

	category := &models.Category{Code: code, Description: strings.TrimSpace(description)}
	if err := s.db.WithContext(ctx).Create(category).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrCategoryExists
		}
		return nil, fmt.Errorf("taxonomy service: create category: %w", err)
	}
	return category, nil
}

// ListCategories returns every category ordered by code.
func (s *TaxonomyService) ListCategories(ctx context.Context) ([]models.Category, error) {
	ctx = ensureContext(ctx)

	var categories []models.Category
	if err := s.db.WithContext(ctx).Order("code ASC").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("taxonomy service: list categories: %w", err)
	}
	return categories, nil
}

// UpdateCategory changes a category's description. Codes are immutable
// because item ids embed them.
func (s *TaxonomyService) UpdateCategory(ctx context.Context, code, description string) (*models.Category, error) {
	ctx = ensureContext(ctx)

	category, err := s.getCategory(ctx, normalizeCode(code))
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(category).
		Update("description", strings.TrimSpace(description)).Error; err != nil {
		return nil, fmt.Errorf("taxonomy service: update category: %w", err)
	}
	category.Description = strings.TrimSpace(description)
	return category, nil
}

// DeleteCategory removes a category and its subcategories when no items
// reference it.
func (s *TaxonomyService) DeleteCategory(ctx context.Context, code string) error {
	ctx = ensureContext(ctx)

	code = normalizeCode(code)
	if _, err := s.getCategory(ctx, code); err != nil {
		return err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Item{}).
		Where("category_code = ?", code).Count(&count).Error; err != nil {
		return fmt.Errorf("taxonomy service: check category usage: %w", err)
	}
	if count > 0 {
		return ErrCategoryInUse
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var subs []models.SubCategory
		if err := tx.Where("category_code = ?", code).Find(&subs).Error; err != nil {
			return fmt.Errorf("load subcategories: %w", err)
		}
		for _, sub := range subs {
			if err := tx.Where("sub_category_code = ?", sub.Code).Delete(&models.Parameter{}).Error; err != nil {
				return fmt.Errorf("delete parameters: %w", err)
			}
		}
		if err := tx.Where("category_code = ?", code).Delete(&models.SubCategory{}).Error; err != nil {
			return fmt.Errorf("delete subcategories: %w", err)
		}
		if err := tx.Delete(&models.Category{}, "code = ?", code).Error; err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return fmt.Errorf("taxonomy service: %w", txErr)
	}
	return nil
}

// CreateSubCategory registers a subcategory under an existing category.
func (s *TaxonomyService) CreateSubCategory(ctx context.Context, categoryCode, code, description string) (*models.SubCategory, error) {
	ctx = ensureContext(ctx)

	categoryCode = normalizeCode(categoryCode)
	code = normalizeCode(code)
	if code == "" {
		return nil, errors.New("taxonomy service: subcategory code is required")
	}
	if _, err := s.getCategory(ctx, categoryCode); err != nil {
		return nil, err
	}

	sub := &models.SubCategory{
		Code:         code,
		CategoryCode: categoryCode,
		Description:  strings.TrimSpace(description),
	}
	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrSubCategoryExists
		}
		return nil, fmt.Errorf("taxonomy service: create subcategory: %w", err)
	}
	return sub, nil
}

// ListSubCategories returns the subcategories of a category ordered by code.
func (s *TaxonomyService) ListSubCategories(ctx context.Context, categoryCode string) ([]models.SubCategory, error) {
	ctx = ensureContext(ctx)

	var subs []models.SubCategory
	query := s.db.WithContext(ctx).Order("code ASC")
	if code := normalizeCode(categoryCode); code != "" {
		query = query.Where("category_code = ?", code)
	}
	if err := query.Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("taxonomy service: list subcategories: %w", err)
	}
	return subs, nil
}

// DeleteSubCategory removes a subcategory and its parameters when no items
// reference it.
func (s *TaxonomyService) DeleteSubCategory(ctx context.Context, code string) error {
	ctx = ensureContext(ctx)

	code = normalizeCode(code)
	if _, err := s.getSubCategory(ctx, code); err != nil {
		return err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Item{}).
		Where("sub_category_code = ?", code).Count(&count).Error; err != nil {
		return fmt.Errorf("taxonomy service: check subcategory usage: %w", err)
	}
	if count > 0 {
		return ErrSubCategoryInUse
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("sub_category_code = ?", code).Delete(&models.Parameter{}).Error; err != nil {
			return fmt.Errorf("delete parameters: %w", err)
		}
		if err := tx.Delete(&models.SubCategory{}, "code = ?", code).Error; err != nil {
			return fmt.Errorf("delete subcategory: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return fmt.Errorf("taxonomy service: %w", txErr)
	}
	return nil
}

// AddParameter appends a named slot at the end of the subcategory's run.
func (s *TaxonomyService) AddParameter(ctx context.Context, subCategoryCode, name string) (*models.Parameter, error) {
	ctx = ensureContext(ctx)

	subCategoryCode = normalizeCode(subCategoryCode)
	name = normalizeName(name)
	if name == "" {
		return nil, errors.New("taxonomy service: parameter name is required")
	}
	if _, err := s.getSubCategory(ctx, subCategoryCode); err != nil {
		return nil, err
	}

	params, err := s.ListParameters(ctx, subCategoryCode)
	if err != nil {
		return nil, err
	}
	if len(params) >= models.MaxParameterSlots {
		return nil, ErrParameterLimit
	}

	param := &models.Parameter{
		SubCategoryCode: subCategoryCode,
		Position:        len(params) + 1,
		Name:            name,
	}
	if err := s.db.WithContext(ctx).Create(param).Error; err != nil {
		return nil, fmt.Errorf("taxonomy service: add parameter: %w", err)
	}
	return param, nil
}

// ListParameters returns the subcategory's parameters ordered by position.
func (s *TaxonomyService) ListParameters(ctx context.Context, subCategoryCode string) ([]models.Parameter, error) {
	ctx = ensureContext(ctx)

	var params []models.Parameter
	if err := s.db.WithContext(ctx).
		Where("sub_category_code = ?", normalizeCode(subCategoryCode)).
		Order("position ASC").
		Find(&params).Error; err != nil {
		return nil, fmt.Errorf("taxonomy service: list parameters: %w", err)
	}
	return params, nil
}

// RenameParameter updates the name of the slot at position.
func (s *TaxonomyService) RenameParameter(ctx context.Context, subCategoryCode string, position int, name string) error {
	ctx = ensureContext(ctx)

	name = normalizeName(name)
	if name == "" {
		return errors.New("taxonomy service: parameter name is required")
	}

	result := s.db.WithContext(ctx).Model(&models.Parameter{}).
		Where("sub_category_code = ? AND position = ?", normalizeCode(subCategoryCode), position).
		Update("name", name)
	if result.Error != nil {
		return fmt.Errorf("taxonomy service: rename parameter: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrParameterNotFound
	}
	return nil
}

// ReorderParameter moves the slot at oldPos to newPos, shifting the slots in
// between by one so positions stay a dense 1..N run.
func (s *TaxonomyService) ReorderParameter(ctx context.Context, subCategoryCode string, oldPos, newPos int) error {
	ctx = ensureContext(ctx)

	subCategoryCode = normalizeCode(subCategoryCode)
	params, err := s.ListParameters(ctx, subCategoryCode)
	if err != nil {
		return err
	}
	n := len(params)
	if oldPos < 1 || oldPos > n || newPos < 1 || newPos > n {
		return ErrBadPosition
	}
	if oldPos == newPos {
		return nil
	}

	var moving models.Parameter
	if err := s.db.WithContext(ctx).
		Where("sub_category_code = ? AND position = ?", subCategoryCode, oldPos).
		First(&moving).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrParameterNotFound
		}
		return fmt.Errorf("taxonomy service: load parameter: %w", err)
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Park the moving row outside the run so the shifted rows never
		// collide with it on the composite key.
		if err := tx.Model(&models.Parameter{}).
			Where("sub_category_code = ? AND position = ?", subCategoryCode, oldPos).
			Update("position", 0).Error; err != nil {
			return fmt.Errorf("park moving slot: %w", err)
		}

		// SQLite enforces the (sub_category_code, position) key per updated
		// row, so the shift walks one slot at a time into the position just
		// vacated instead of moving the whole range in one statement.
		if newPos < oldPos {
			for pos := oldPos - 1; pos >= newPos; pos-- {
				if err := tx.Model(&models.Parameter{}).
					Where("sub_category_code = ? AND position = ?", subCategoryCode, pos).
					Update("position", pos+1).Error; err != nil {
					return fmt.Errorf("shift slot %d up: %w", pos, err)
				}
			}
		} else {
			for pos := oldPos + 1; pos <= newPos; pos++ {
				if err := tx.Model(&models.Parameter{}).
					Where("sub_category_code = ? AND position = ?", subCategoryCode, pos).
					Update("position", pos-1).Error; err != nil {
					return fmt.Errorf("shift slot %d down: %w", pos, err)
				}
			}
		}

		if err := tx.Model(&models.Parameter{}).
			Where("sub_category_code = ? AND position = 0", subCategoryCode).
			Update("position", newPos).Error; err != nil {
			return fmt.Errorf("place moving slot: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return fmt.Errorf("taxonomy service: %w", txErr)
	}
	return nil
}

// DeleteParameter removes the slot at position and closes the gap. The slot
// must not be encoded by any existing item id: the segment at its offset has
// to be empty for every item of the subcategory.
func (s *TaxonomyService) DeleteParameter(ctx context.Context, subCategoryCode string, position int) error {
	ctx = ensureContext(ctx)

	subCategoryCode = normalizeCode(subCategoryCode)
	params, err := s.ListParameters(ctx, subCategoryCode)
	if err != nil {
		return err
	}
	if position < 1 || position > len(params) {
		return ErrParameterNotFound
	}

	inUse, err := s.parameterInUse(ctx, subCategoryCode, position)
	if err != nil {
		return err
	}
	if inUse {
		return ErrParameterInUse
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("sub_category_code = ? AND position = ?", subCategoryCode, position).
			Delete(&models.Parameter{}).Error; err != nil {
			return fmt.Errorf("delete parameter: %w", err)
		}
		// Same per-row key constraint as in ReorderParameter: close the gap
		// slot by slot in ascending order.
		for pos := position + 1; pos <= len(params); pos++ {
			if err := tx.Model(&models.Parameter{}).
				Where("sub_category_code = ? AND position = ?", subCategoryCode, pos).
				Update("position", pos-1).Error; err != nil {
				return fmt.Errorf("close position gap: %w", err)
			}
		}
		return nil
	})
	if txErr != nil {
		return fmt.Errorf("taxonomy service: %w", txErr)
	}
	return nil
}

// parameterInUse reports whether any item of the subcategory carries a
// non-empty value in the id segment the slot occupies. Segment 0 is the
// category code and segment 1 the subcategory code, so slot p maps to
// segment p+1.
func (s *TaxonomyService) parameterInUse(ctx context.Context, subCategoryCode string, position int) (bool, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.Item{}).
		Where("sub_category_code = ?", subCategoryCode).
		Pluck("item_id", &ids).Error; err != nil {
		return false, fmt.Errorf("taxonomy service: scan item ids: %w", err)
	}

	segment := position + 1
	for _, id := range ids {
		parts := strings.Split(id, "-")
		if segment < len(parts) && strings.TrimSpace(parts[segment]) != "" {
			return true, nil
		}
	}
	return false, nil
}

func (s *TaxonomyService) getCategory(ctx context.Context, code string) (*models.Category, error) {
	var category models.Category
	err := s.db.WithContext(ctx).First(&category, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("taxonomy service: get category: %w", err)
	}
	return &category, nil
}

func (s *TaxonomyService) getSubCategory(ctx context.Context, code string) (*models.SubCategory, error) {
	var sub models.SubCategory
	err := s.db.WithContext(ctx).First(&sub, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("taxonomy service: get subcategory: %w", err)
	}
	return &sub, nil
}
