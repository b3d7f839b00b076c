package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/alptraumtech/lms/internal/labels"
	"github.com/alptraumtech/lms/internal/models"
	"github.com/alptraumtech/lms/internal/scanner"
)

const employeeLayout = `<Label width="62" height="29">
  <Text x="2" y="4" fontSize="10">%%%FullName%%%</Text>
  <Text x="2" y="12" fontSize="6">%%%Company%%%</Text>
  <QRCode x="40" y="4" width="20" height="20">%%%Badge%%%</QRCode>
</Label>`

const itemLayout = `<Label width="62" height="29">
  <Text x="2" y="4" fontSize="8">%%%ItemID%%%</Text>
  <Text x="2" y="12" fontSize="6">%%%Location%%%</Text>
</Label>`

func newLabelService(t *testing.T, db *gorm.DB) *LabelService {
	t.Helper()
	svc, err := NewLabelService(db)
	require.NoError(t, err)
	return svc
}

func TestLabelTemplateCreateValidation(t *testing.T) {
	db := openServicesTestDB(t)
	svc := newLabelService(t, db)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateTemplateInput{Name: "Badge", Kind: "vehicle", Body: employeeLayout})
	require.ErrorIs(t, err, ErrBadTemplateKind)

	_, err = svc.Create(ctx, CreateTemplateInput{Name: "Badge", Kind: "employee", Body: "<Label></Label>"})
	require.ErrorIs(t, err, labels.ErrEmptyTemplate)

	created, err := svc.Create(ctx, CreateTemplateInput{Name: "Badge", Kind: "employee", Body: employeeLayout})
	require.NoError(t, err)
	require.Equal(t, models.LabelKindEmployee, created.Kind)

	_, err = svc.Create(ctx, CreateTemplateInput{Name: "Badge", Kind: "employee", Body: employeeLayout})
	require.ErrorIs(t, err, ErrTemplateExists)
}

func TestLabelDefaultExclusivePerKind(t *testing.T) {
	db := openServicesTestDB(t)
	svc := newLabelService(t, db)
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateTemplateInput{
		Name: "Badge v1", Kind: "employee", Body: employeeLayout, IsDefault: true,
	})
	require.NoError(t, err)

	second, err := svc.Create(ctx, CreateTemplateInput{
		Name: "Badge v2", Kind: "employee", Body: employeeLayout, IsDefault: true,
	})
	require.NoError(t, err)

	// Defaults of another kind are untouched.
	itemTpl, err := svc.Create(ctx, CreateTemplateInput{
		Name: "Shelf tag", Kind: "item", Body: itemLayout, IsDefault: true,
	})
	require.NoError(t, err)

	current, err := svc.DefaultForKind(ctx, "employee")
	require.NoError(t, err)
	require.Equal(t, second.ID, current.ID)

	require.NoError(t, svc.SetDefault(ctx, first.ID))
	current, err = svc.DefaultForKind(ctx, "employee")
	require.NoError(t, err)
	require.Equal(t, first.ID, current.ID)

	current, err = svc.DefaultForKind(ctx, "item")
	require.NoError(t, err)
	require.Equal(t, itemTpl.ID, current.ID)

	require.NoError(t, svc.Delete(ctx, itemTpl.ID))
	_, err = svc.DefaultForKind(ctx, "item")
	require.ErrorIs(t, err, ErrNoDefaultTemplate)
}

func TestLabelRenderForEmployee(t *testing.T) {
	db := openServicesTestDB(t)
	svc := newLabelService(t, db)
	ctx := context.Background()

	template, err := svc.Create(ctx, CreateTemplateInput{
		Name: "Badge", Kind: "employee", Body: employeeLayout,
		Defaults: map[string]string{"Company": "Alptraum Technologies"},
	})
	require.NoError(t, err)

	employee := &models.Employee{
		ID:        7,
		FirstName: "Jan",
		LastName:  "Moser",
		Role:      models.RoleEmployee,
	}

	commands, err := svc.RenderForEmployee(ctx, template.ID, employee)
	require.NoError(t, err)
	require.Len(t, commands, 3)
	require.Equal(t, "Jan Moser", commands[0].Content)
	require.Equal(t, "Alptraum Technologies", commands[1].Content)
	require.Equal(t, scanner.EncodeBadge(7), commands[2].Content)
}

func TestLabelRenderKindMismatch(t *testing.T) {
	db := openServicesTestDB(t)
	svc := newLabelService(t, db)
	ctx := context.Background()

	template, err := svc.Create(ctx, CreateTemplateInput{
		Name: "Shelf tag", Kind: "item", Body: itemLayout,
	})
	require.NoError(t, err)

	_, err = svc.RenderForEmployee(ctx, template.ID, &models.Employee{})
	require.ErrorIs(t, err, ErrBadTemplateKind)

	item := &models.Item{
		ItemID:   "EL-RES-100R",
		Location: "Shelf A",
		Quantity: 1,
		Status:   models.ItemInStock,
	}
	commands, err := svc.RenderForItem(ctx, template.ID, item)
	require.NoError(t, err)
	require.Equal(t, "EL-RES-100R", commands[0].Content)
	require.Equal(t, "Shelf A", commands[1].Content)

	_, err = svc.RenderForItem(ctx, 9999, item)
	require.ErrorIs(t, err, ErrTemplateNotFound)
}
