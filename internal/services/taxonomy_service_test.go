package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/alptraumtech/lms/internal/models"
)

func newTaxonomyService(t *testing.T, db *gorm.DB) *TaxonomyService {
	t.Helper()
	svc, err := NewTaxonomyService(db, nil)
	require.NoError(t, err)
	return svc
}

func seedSubCategory(t *testing.T, svc *TaxonomyService) {
	t.Helper()
	ctx := context.Background()
	_, err := svc.CreateCategory(ctx, "EL", "Electronics")
	require.NoError(t, err)
	_, err = svc.CreateSubCategory(ctx, "EL", "RES", "Resistors")
	require.NoError(t, err)
}

func parameterNames(t *testing.T, svc *TaxonomyService, sub string) []string {
	t.Helper()
	params, err := svc.ListParameters(context.Background(), sub)
	require.NoError(t, err)
	names := make([]string, 0, len(params))
	for i, p := range params {
		require.Equal(t, i+1, p.Position)
		names = append(names, p.Name)
	}
	return names
}

func TestTaxonomyCategoryLifecycle(t *testing.T) {
	db := openServicesTestDB(t)
	svc := newTaxonomyService(t, db)
	ctx := context.Background()

	created, err := svc.CreateCategory(ctx, "el", "Electronics")
	require.NoError(t, err)
	require.Equal(t, "EL", created.Code)

	_, err = svc.CreateCategory(ctx, "EL", "again")
	require.ErrorIs(t, err, ErrCategoryExists)

	updated, err := svc.UpdateCategory(ctx, "EL", "Electronic components")
	require.NoError(t, err)
	require.Equal(t, "Electronic components", updated.Description)

	require.NoError(t, svc.DeleteCategory(ctx, "EL"))
	_, err = svc.UpdateCategory(ctx, "EL", "gone")
	require.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestTaxonomyCategoryInUseGuard(t *testing.T) {
	db := openServicesTestDB(t)
	svc := newTaxonomyService(t, db)
	seedSubCategory(t, svc)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.Item{
		ItemID: "EL-RES-1", CategoryCode: "EL", SubCategoryCode: "RES",
		Status: models.ItemInStock,
	}).Error)

	require.ErrorIs(t, svc.DeleteCategory(ctx, "EL"), ErrCategoryInUse)
	require.ErrorIs(t, svc.DeleteSubCategory(ctx, "RES"), ErrSubCategoryInUse)

	require.NoError(t, db.Delete(&models.Item{}, "item_id = ?", "EL-RES-1").Error)

	// Deleting the category takes its subcategories and parameters with it.
	_, err := svc.AddParameter(ctx, "RES", "Resistance")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteCategory(ctx, "EL"))

	var paramCount, subCount int64
	require.NoError(t, db.Model(&models.Parameter{}).Count(&paramCount).Error)
	require.NoError(t, db.Model(&models.SubCategory{}).Count(&subCount).Error)
	require.Zero(t, paramCount)
	require.Zero(t, subCount)
}

func TestTaxonomySubCategoryNeedsCategory(t *testing.T) {
	db := openServicesTestDB(t)
	svc := newTaxonomyService(t, db)

	_, err := svc.CreateSubCategory(context.Background(), "XX", "RES", "Resistors")
	require.ErrorIs(t, err, ErrCategoryNotFound)
}

func TestTaxonomyParameterAppendAndLimit(t *testing.T) {
	db := openServicesTestDB(t)
	svc := newTaxonomyService(t, db)
	seedSubCategory(t, svc)
	ctx := context.Background()

	names := []string{"Resistance", "Tolerance", "Package", "Power", "Series"}
	for _, name := range names {
		_, err := svc.AddParameter(ctx, "RES", name)
		require.NoError(t, err)
	}
	require.Equal(t, names, parameterNames(t, svc, "RES"))

	_, err := svc.AddParameter(ctx, "RES", "One too many")
	require.ErrorIs(t, err, ErrParameterLimit)
}

func TestTaxonomyParameterRename(t *testing.T) {
	db := openServicesTestDB(t)
	svc := newTaxonomyService(t, db)
	seedSubCategory(t, svc)
	ctx := context.Background()

	_, err := svc.AddParameter(ctx, "RES", "Resistance")
	require.NoError(t, err)

	require.NoError(t, svc.RenameParameter(ctx, "RES", 1, "Value"))
	require.Equal(t, []string{"Value"}, parameterNames(t, svc, "RES"))

	require.ErrorIs(t, svc.RenameParameter(ctx, "RES", 2, "Nope"), ErrParameterNotFound)
}

func TestTaxonomyParameterReorder(t *testing.T) {
	db := openServicesTestDB(t)
	svc := newTaxonomyService(t, db)
	seedSubCategory(t, svc)
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C", "D"} {
		_, err := svc.AddParameter(ctx, "RES", name)
		require.NoError(t, err)
	}

	// Move backwards: D from 4 to 2.
	require.NoError(t, svc.ReorderParameter(ctx, "RES", 4, 2))
	require.Equal(t, []string{"A", "D", "B", "C"}, parameterNames(t, svc, "RES"))

	// Move forwards: D from 2 to 4 restores the original run.
	require.NoError(t, svc.ReorderParameter(ctx, "RES", 2, 4))
	require.Equal(t, []string{"A", "B", "C", "D"}, parameterNames(t, svc, "RES"))

	// Move to the front, shifting two slots at once.
	require.NoError(t, svc.ReorderParameter(ctx, "RES", 3, 1))
	require.Equal(t, []string{"C", "A", "B", "D"}, parameterNames(t, svc, "RES"))

	// And all the way to the back.
	require.NoError(t, svc.ReorderParameter(ctx, "RES", 1, 4))
	require.Equal(t, []string{"A", "B", "D", "C"}, parameterNames(t, svc, "RES"))

	// No-op move.
	require.NoError(t, svc.ReorderParameter(ctx, "RES", 3, 3))
	require.Equal(t, []string{"A", "B", "C", "D"}, parameterNames(t, svc, "RES"))

	require.ErrorIs(t, svc.ReorderParameter(ctx, "RES", 0, 2), ErrBadPosition)
	require.ErrorIs(t, svc.ReorderParameter(ctx, "RES", 1, 5), ErrBadPosition)
}

func TestTaxonomyParameterDeleteClosesGap(t *testing.T) {
	db := openServicesTestDB(t)
	svc := newTaxonomyService(t, db)
	seedSubCategory(t, svc)
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C", "D", "E"} {
		_, err := svc.AddParameter(ctx, "RES", name)
		require.NoError(t, err)
	}

	// Deleting the head slot shifts the whole run down.
	require.NoError(t, svc.DeleteParameter(ctx, "RES", 1))
	require.Equal(t, []string{"B", "C", "D", "E"}, parameterNames(t, svc, "RES"))

	require.NoError(t, svc.DeleteParameter(ctx, "RES", 2))
	require.Equal(t, []string{"B", "D", "E"}, parameterNames(t, svc, "RES"))

	require.ErrorIs(t, svc.DeleteParameter(ctx, "RES", 4), ErrParameterNotFound)
}

func TestTaxonomyParameterDeleteInUseGuard(t *testing.T) {
	db := openServicesTestDB(t)
	svc := newTaxonomyService(t, db)
	seedSubCategory(t, svc)
	ctx := context.Background()

	for _, name := range []string{"Resistance", "Package"} {
		_, err := svc.AddParameter(ctx, "RES", name)
		require.NoError(t, err)
	}

	// EL-RES-100R encodes slot 1 only; slot 2 stays empty.
	require.NoError(t, db.Create(&models.Item{
		ItemID: "EL-RES-100R", CategoryCode: "EL", SubCategoryCode: "RES",
		Status: models.ItemInStock,
	}).Error)

	require.ErrorIs(t, svc.DeleteParameter(ctx, "RES", 1), ErrParameterInUse)
	require.NoError(t, svc.DeleteParameter(ctx, "RES", 2))
}
