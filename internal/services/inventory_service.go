package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/alptraumtech/lms/internal/models"
	"github.com/alptraumtech/lms/pkg/metrics"
)

var (
	// ErrItemNotFound indicates the requested item does not exist.
	ErrItemNotFound = errors.New("inventory service: item not found")
	// ErrItemExists indicates a duplicate item id.
	ErrItemExists = errors.New("inventory service: item already exists")
	// ErrItemUnavailable indicates the item is not in stock.
	ErrItemUnavailable = errors.New("inventory service: item is not available for checkout")
	// ErrItemNotHeld indicates a return was attempted on an item nobody holds.
	ErrItemNotHeld = errors.New("inventory service: item is not checked out")
	// ErrNotHolder indicates a return by someone other than the holder.
	ErrNotHolder = errors.New("inventory service: item is held by another employee")
)

// MissingPermitsError reports a checkout blocked by unsatisfied permit
// requirements, naming each missing permit.
type MissingPermitsError struct {
	Missing []string
}

func (e *MissingPermitsError) Error() string {
	return "inventory service: missing permits: " + strings.Join(e.Missing, ", ")
}

// CreateItemInput captures the attributes of a new inventory item.
type CreateItemInput struct {
	CategoryCode    string
	SubCategoryCode string
	Parameters      []string
	Description     string
	Quantity        int
	Location        string
	ManualPath      string
	SOPPath         string
	ImagePath       string
	Price           *float64
}

// UpdateItemInput represents mutable item fields. NewItemID moves the record
// to a different primary key.
type UpdateItemInput struct {
	NewItemID   *string
	Description *string
	Quantity    *int
	Status      *string
	Location    *string
	ManualPath  *string
	SOPPath     *string
	ImagePath   *string
	Price       *float64
	SetPrice    bool
}

// ItemListOptions filters and paginates inventory listings.
type ItemListOptions struct {
	Search          string
	CategoryCode    string
	SubCategoryCode string
	Status          string
	HolderID        *uint
	Page            int
	PageSize        int
}

// InventoryService manages items, checkouts and returns.
type InventoryService struct {
	db            *gorm.DB
	permitService *PermitService
	auditService  *AuditService
}

// NewInventoryService constructs an InventoryService instance.
func NewInventoryService(db *gorm.DB, permitService *PermitService, auditService *AuditService) (*InventoryService, error) {
	if db == nil {
		return nil, errors.New("inventory service: db is required")
	}
	if permitService == nil {
		return nil, errors.New("inventory service: permit service is required")
	}
	return &InventoryService{db: db, permitService: permitService, auditService: auditService}, nil
}

// ComposeItemID builds the canonical item id from taxonomy codes and
// parameter values, joined by dashes.
func ComposeItemID(categoryCode, subCategoryCode string, parameters []string) string {
	parts := make([]string, 0, 2+len(parameters))
	parts = append(parts, normalizeCode(categoryCode), normalizeCode(subCategoryCode))
	for _, p := range parameters {
		parts = append(parts, strings.TrimSpace(p))
	}
	return strings.Join(parts, "-")
}

// Create registers a new item under an existing category and subcategory.
func (s *InventoryService) Create(ctx context.Context, input CreateItemInput) (*models.Item, error) {
	ctx = ensureContext(ctx)

	category := normalizeCode(input.CategoryCode)
	subCategory := normalizeCode(input.SubCategoryCode)
	if category == "" || subCategory == "" {
		return nil, errors.New("inventory service: category and subcategory are required")
	}

	if err := s.checkTaxonomy(ctx, category, subCategory); err != nil {
		return nil, err
	}

	quantity := input.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	item := &models.Item{
		ItemID:          ComposeItemID(category, subCategory, input.Parameters),
		CategoryCode:    category,
		SubCategoryCode: subCategory,
		Description:     strings.TrimSpace(input.Description),
		Quantity:        quantity,
		Status:          models.ItemInStock,
		Location:        strings.TrimSpace(input.Location),
		ManualPath:      strings.TrimSpace(input.ManualPath),
		SOPPath:         strings.TrimSpace(input.SOPPath),
		ImagePath:       strings.TrimSpace(input.ImagePath),
		Price:           input.Price,
	}

	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrItemExists
		}
		return nil, fmt.Errorf("inventory service: create item: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "item.create",
		Resource: "item:" + item.ItemID,
		Result:   "success",
	})

	return item, nil
}

// GetByID loads a single item record.
func (s *InventoryService) GetByID(ctx context.Context, itemID string) (*models.Item, error) {
	ctx = ensureContext(ctx)

	var item models.Item
	err := s.db.WithContext(ctx).First(&item, "item_id = ?", itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("inventory service: get item: %w", err)
	}
	return &item, nil
}

// List returns items matching the provided filters ordered by id.
func (s *InventoryService) List(ctx context.Context, opts ItemListOptions) ([]models.Item, int64, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 || perPage > 500 {
		perPage = 100
	}

	query := s.db.WithContext(ctx).Model(&models.Item{})

	if search := strings.TrimSpace(opts.Search); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("item_id LIKE ? OR description LIKE ?", pattern, pattern)
	}
	if code := normalizeCode(opts.CategoryCode); code != "" {
		query = query.Where("category_code = ?", code)
	}
	if code := normalizeCode(opts.SubCategoryCode); code != "" {
		query = query.Where("sub_category_code = ?", code)
	}
	if status := strings.TrimSpace(opts.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if opts.HolderID != nil {
		query = query.Where("holder_id = ?", *opts.HolderID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("inventory service: count items: %w", err)
	}

	var items []models.Item
	if err := query.
		Order("item_id ASC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("inventory service: list items: %w", err)
	}

	return items, total, nil
}

// Update modifies an item. Changing the item id re-keys the record and its
// permit requirements in one transaction.
func (s *InventoryService) Update(ctx context.Context, itemID string, input UpdateItemInput) (*models.Item, error) {
	ctx = ensureContext(ctx)

	item, err := s.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Quantity != nil && *input.Quantity > 0 {
		updates["quantity"] = *input.Quantity
	}
	if input.Status != nil {
		status := strings.TrimSpace(*input.Status)
		if status != models.ItemInStock && status != models.ItemDamaged {
			return nil, errors.New("inventory service: status may only be set to In Stock or Damaged directly")
		}
		if item.Held() {
			return nil, errors.New("inventory service: return the item before changing its status")
		}
		updates["status"] = status
	}
	if input.Location != nil {
		updates["location"] = strings.TrimSpace(*input.Location)
	}
	if input.ManualPath != nil {
		updates["manual_path"] = strings.TrimSpace(*input.ManualPath)
	}
	if input.SOPPath != nil {
		updates["sop_path"] = strings.TrimSpace(*input.SOPPath)
	}
	if input.ImagePath != nil {
		updates["image_path"] = strings.TrimSpace(*input.ImagePath)
	}
	if input.SetPrice {
		updates["price"] = input.Price
	}

	newID := item.ItemID
	if input.NewItemID != nil {
		candidate := strings.TrimSpace(*input.NewItemID)
		if candidate != "" && candidate != item.ItemID {
			newID = candidate
		}
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if newID != item.ItemID {
			var count int64
			if err := tx.Model(&models.Item{}).Where("item_id = ?", newID).Count(&count).Error; err != nil {
				return fmt.Errorf("check new id: %w", err)
			}
			if count > 0 {
				return ErrItemExists
			}
			if err := tx.Model(&models.Item{}).Where("item_id = ?", item.ItemID).
				Update("item_id", newID).Error; err != nil {
				return fmt.Errorf("rekey item: %w", err)
			}
			if err := tx.Model(&models.ItemPermitRequirement{}).
				Where("item_id = ?", item.ItemID).
				Update("item_id", newID).Error; err != nil {
				return fmt.Errorf("rekey requirements: %w", err)
			}
		}
		if len(updates) > 0 {
			if err := tx.Model(&models.Item{}).Where("item_id = ?", newID).Updates(updates).Error; err != nil {
				return fmt.Errorf("update item: %w", err)
			}
		}
		return nil
	})
	if txErr != nil {
		if errors.Is(txErr, ErrItemExists) {
			return nil, ErrItemExists
		}
		return nil, fmt.Errorf("inventory service: %w", txErr)
	}

	return s.GetByID(ctx, newID)
}

// Delete removes an item and its permit requirements.
func (s *InventoryService) Delete(ctx context.Context, itemID string) error {
	ctx = ensureContext(ctx)

	item, err := s.GetByID(ctx, itemID)
	if err != nil {
		return err
	}
	if item.Held() {
		return errors.New("inventory service: return the item before deleting it")
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("item_id = ?", itemID).Delete(&models.ItemPermitRequirement{}).Error; err != nil {
			return fmt.Errorf("delete requirements: %w", err)
		}
		if err := tx.Delete(&models.Item{}, "item_id = ?", itemID).Error; err != nil {
			return fmt.Errorf("delete item: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return fmt.Errorf("inventory service: %w", txErr)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "item.delete",
		Resource: "item:" + itemID,
		Result:   "success",
	})

	return nil
}

// Checkout hands the item to the employee if it is in stock and the
// employee holds every required permit.
func (s *InventoryService) Checkout(ctx context.Context, employee *models.Employee, itemID string) (*models.Item, error) {
	ctx = ensureContext(ctx)

	item, err := s.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.Status != models.ItemInStock || item.Held() {
		return nil, ErrItemUnavailable
	}

	ok, missing, err := s.permitService.HolderSatisfies(ctx, employee.ID, item.ItemID)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.CheckoutBlocks.Inc()
		recordAudit(s.auditService, ctx, AuditEntry{
			EmployeeID: &employee.ID,
			Action:     "item.checkout",
			Resource:   "item:" + item.ItemID,
			Result:     "denied",
			Metadata:   map[string]any{"missing_permits": missing},
		})
		return nil, &MissingPermitsError{Missing: missing}
	}

	if err := s.db.WithContext(ctx).Model(item).
		Updates(map[string]any{"holder_id": employee.ID, "status": models.ItemInUse}).Error; err != nil {
		return nil, fmt.Errorf("inventory service: checkout item: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		EmployeeID: &employee.ID,
		Action:     "item.checkout",
		Resource:   "item:" + item.ItemID,
		Result:     "success",
	})

	item.HolderID = &employee.ID
	item.Status = models.ItemInUse
	return item, nil
}

// Return puts the item back in stock. Only the holder, or an admin acting
// on their behalf, may return it.
func (s *InventoryService) Return(ctx context.Context, employee *models.Employee, itemID string) (*models.Item, error) {
	ctx = ensureContext(ctx)

	item, err := s.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !item.Held() {
		return nil, ErrItemNotHeld
	}
	if *item.HolderID != employee.ID && !employee.IsAdmin() {
		return nil, ErrNotHolder
	}

	if err := s.db.WithContext(ctx).Model(item).
		Updates(map[string]any{"holder_id": nil, "status": models.ItemInStock}).Error; err != nil {
		return nil, fmt.Errorf("inventory service: return item: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		EmployeeID: &employee.ID,
		Action:     "item.return",
		Resource:   "item:" + item.ItemID,
		Result:     "success",
	})

	item.HolderID = nil
	item.Status = models.ItemInStock
	return item, nil
}

// ProcessScan toggles an item between checkout and return for the scanning
// employee: in-stock items are checked out, items they already hold are
// returned.
func (s *InventoryService) ProcessScan(ctx context.Context, employee *models.Employee, itemID string) (*models.Item, string, error) {
	ctx = ensureContext(ctx)

	item, err := s.GetByID(ctx, itemID)
	if err != nil {
		return nil, "", err
	}

	if item.Held() && *item.HolderID == employee.ID {
		returned, err := s.Return(ctx, employee, itemID)
		return returned, "returned", err
	}

	checked, err := s.Checkout(ctx, employee, itemID)
	return checked, "checked_out", err
}

// ExportCSV renders the full inventory as CSV. Parameter segments beyond the
// category and subcategory are padded to the maximum slot count so every row
// has the same shape.
func (s *InventoryService) ExportCSV(ctx context.Context) ([]byte, error) {
	ctx = ensureContext(ctx)

	var items []models.Item
	if err := s.db.WithContext(ctx).Order("item_id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("inventory service: export items: %w", err)
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{"item_id", "category", "subcategory"}
	for i := 1; i <= models.MaxParameterSlots; i++ {
		header = append(header, "param"+strconv.Itoa(i))
	}
	header = append(header, "description", "quantity", "status", "holder_id", "location", "price")
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("inventory service: write csv header: %w", err)
	}

	for _, item := range items {
		segments := strings.Split(item.ItemID, "-")
		params := make([]string, models.MaxParameterSlots)
		for i := 0; i < models.MaxParameterSlots; i++ {
			if idx := i + 2; idx < len(segments) {
				params[i] = segments[idx]
			}
		}

		holder := ""
		if item.HolderID != nil {
			holder = strconv.FormatUint(uint64(*item.HolderID), 10)
		}
		price := ""
		if item.Price != nil {
			price = strconv.FormatFloat(*item.Price, 'f', 2, 64)
		}

		row := []string{item.ItemID, item.CategoryCode, item.SubCategoryCode}
		row = append(row, params...)
		row = append(row, item.Description, strconv.Itoa(item.Quantity), item.Status, holder, item.Location, price)
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("inventory service: write csv row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("inventory service: flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *InventoryService) checkTaxonomy(ctx context.Context, categoryCode, subCategoryCode string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Category{}).
		Where("code = ?", categoryCode).Count(&count).Error; err != nil {
		return fmt.Errorf("inventory service: check category: %w", err)
	}
	if count == 0 {
		return ErrCategoryNotFound
	}

	if err := s.db.WithContext(ctx).Model(&models.SubCategory{}).
		Where("code = ? AND category_code = ?", subCategoryCode, categoryCode).
		Count(&count).Error; err != nil {
		return fmt.Errorf("inventory service: check subcategory: %w", err)
	}
	if count == 0 {
		return ErrSubCategoryNotFound
	}
	return nil
}
