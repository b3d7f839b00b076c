package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/alptraumtech/lms/internal/labels"
	"github.com/alptraumtech/lms/internal/models"
	"github.com/alptraumtech/lms/internal/scanner"
)

var (
	// ErrTemplateNotFound indicates the requested label template does not exist.
	ErrTemplateNotFound = errors.New("label service: template not found")
	// ErrTemplateExists indicates a duplicate template name.
	ErrTemplateExists = errors.New("label service: template already exists")
	// ErrNoDefaultTemplate indicates no default template is configured for the kind.
	ErrNoDefaultTemplate = errors.New("label service: no default template for kind")
	// ErrBadTemplateKind indicates an unknown template kind.
	ErrBadTemplateKind = errors.New("label service: kind must be employee or item")
)

// CreateTemplateInput captures a new label template.
type CreateTemplateInput struct {
	Name      string
	Kind      string
	Body      string
	Defaults  map[string]string
	IsDefault bool
}

// LabelService stores label templates and renders them against directory
// and inventory records.
type LabelService struct {
	db *gorm.DB
}

// NewLabelService constructs a LabelService instance.
func NewLabelService(db *gorm.DB) (*LabelService, error) {
	if db == nil {
		return nil, errors.New("label service: db is required")
	}
	return &LabelService{db: db}, nil
}

// Create validates and stores a template. Marking it default clears the
// previous default of the same kind.
func (s *LabelService) Create(ctx context.Context, input CreateTemplateInput) (*models.LabelTemplate, error) {
	ctx = ensureContext(ctx)

	name := normalizeName(input.Name)
	if name == "" {
		return nil, errors.New("label service: template name is required")
	}
	kind := strings.ToLower(strings.TrimSpace(input.Kind))
	if kind != models.LabelKindEmployee && kind != models.LabelKindItem {
		return nil, ErrBadTemplateKind
	}
	if _, err := labels.Parse(input.Body); err != nil {
		return nil, err
	}

	template := &models.LabelTemplate{
		Name:      name,
		Kind:      kind,
		Body:      input.Body,
		IsDefault: input.IsDefault,
	}
	if input.Defaults != nil {
		data, err := json.Marshal(input.Defaults)
		if err != nil {
			return nil, fmt.Errorf("label service: marshal defaults: %w", err)
		}
		template.Defaults = data
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if input.IsDefault {
			if err := tx.Model(&models.LabelTemplate{}).
				Where("kind = ?", kind).
				Update("is_default", false).Error; err != nil {
				return fmt.Errorf("clear previous default: %w", err)
			}
		}
		if err := tx.Create(template).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrTemplateExists
			}
			return fmt.Errorf("create template: %w", err)
		}
		return nil
	})
	if txErr != nil {
		if errors.Is(txErr, ErrTemplateExists) {
			return nil, ErrTemplateExists
		}
		return nil, fmt.Errorf("label service: %w", txErr)
	}

	return template, nil
}

// GetByID loads a template by id.
func (s *LabelService) GetByID(ctx context.Context, id uint) (*models.LabelTemplate, error) {
	ctx = ensureContext(ctx)

	var template models.LabelTemplate
	err := s.db.WithContext(ctx).First(&template, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("label service: get template: %w", err)
	}
	return &template, nil
}

// List returns templates, optionally filtered by kind, ordered by name.
func (s *LabelService) List(ctx context.Context, kind string) ([]models.LabelTemplate, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Order("name ASC")
	if kind = strings.ToLower(strings.TrimSpace(kind)); kind != "" {
		query = query.Where("kind = ?", kind)
	}

	var templates []models.LabelTemplate
	if err := query.Find(&templates).Error; err != nil {
		return nil, fmt.Errorf("label service: list templates: %w", err)
	}
	return templates, nil
}

// SetDefault marks the template as its kind's default.
func (s *LabelService) SetDefault(ctx context.Context, id uint) error {
	ctx = ensureContext(ctx)

	template, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.LabelTemplate{}).
			Where("kind = ?", template.Kind).
			Update("is_default", false).Error; err != nil {
			return fmt.Errorf("clear previous default: %w", err)
		}
		if err := tx.Model(&models.LabelTemplate{}).
			Where("id = ?", id).
			Update("is_default", true).Error; err != nil {
			return fmt.Errorf("set default: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return fmt.Errorf("label service: %w", txErr)
	}
	return nil
}

// Delete removes a template.
func (s *LabelService) Delete(ctx context.Context, id uint) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Delete(&models.LabelTemplate{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("label service: delete template: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

// DefaultForKind returns the kind's default template.
func (s *LabelService) DefaultForKind(ctx context.Context, kind string) (*models.LabelTemplate, error) {
	ctx = ensureContext(ctx)

	var template models.LabelTemplate
	err := s.db.WithContext(ctx).
		First(&template, "kind = ? AND is_default = ?", strings.ToLower(strings.TrimSpace(kind)), true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoDefaultTemplate
	}
	if err != nil {
		return nil, fmt.Errorf("label service: default template: %w", err)
	}
	return &template, nil
}

// RenderForEmployee resolves a template against an employee record.
func (s *LabelService) RenderForEmployee(ctx context.Context, templateID uint, employee *models.Employee) ([]labels.DrawCommand, error) {
	template, err := s.GetByID(ensureContext(ctx), templateID)
	if err != nil {
		return nil, err
	}
	if template.Kind != models.LabelKindEmployee {
		return nil, ErrBadTemplateKind
	}

	email := ""
	if employee.Email != nil {
		email = *employee.Email
	}
	values := map[string]string{
		"EmployeeID": strconv.FormatUint(uint64(employee.ID), 10),
		"FirstName":  employee.FirstName,
		"LastName":   employee.LastName,
		"FullName":   employee.FullName(),
		"Role":       employee.Role,
		"Email":      email,
		"Badge":      scanner.EncodeBadge(employee.ID),
	}
	return s.render(template, values)
}

// RenderForItem resolves a template against an item record.
func (s *LabelService) RenderForItem(ctx context.Context, templateID uint, item *models.Item) ([]labels.DrawCommand, error) {
	template, err := s.GetByID(ensureContext(ctx), templateID)
	if err != nil {
		return nil, err
	}
	if template.Kind != models.LabelKindItem {
		return nil, ErrBadTemplateKind
	}

	values := map[string]string{
		"ItemID":      item.ItemID,
		"Category":    item.CategoryCode,
		"SubCategory": item.SubCategoryCode,
		"Description": item.Description,
		"Status":      item.Status,
		"Location":    item.Location,
		"Quantity":    strconv.Itoa(item.Quantity),
	}
	return s.render(template, values)
}

func (s *LabelService) render(template *models.LabelTemplate, values map[string]string) ([]labels.DrawCommand, error) {
	if len(template.Defaults) > 0 {
		var defaults map[string]string
		if err := json.Unmarshal(template.Defaults, &defaults); err != nil {
			return nil, fmt.Errorf("label service: unmarshal defaults: %w", err)
		}
		for name, value := range defaults {
			if _, ok := values[name]; !ok {
				values[name] = value
			}
		}
	}

	parsed, err := labels.Parse(template.Body)
	if err != nil {
		return nil, err
	}
	return parsed.Render(values)
}
