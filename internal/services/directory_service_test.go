package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/alptraumtech/lms/internal/database/testutil"
	"github.com/alptraumtech/lms/internal/models"
)

func openServicesTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
}

func newDirectoryService(t *testing.T, db *gorm.DB) *DirectoryService {
	t.Helper()
	svc, err := NewDirectoryService(db, nil)
	require.NoError(t, err)
	return svc
}

func mustCreateEmployee(t *testing.T, svc *DirectoryService, input CreateEmployeeInput) *models.Employee {
	t.Helper()
	employee, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	return employee
}

func TestDirectoryServiceCreateAndGet(t *testing.T) {
	db := openServicesTestDB(t)
	svc := newDirectoryService(t, db)
	ctx := context.Background()

	supervisor := mustCreateEmployee(t, svc, CreateEmployeeInput{
		LastName: "Huber", FirstName: "Eva", Role: models.RoleSupervisor,
	})

	employee := mustCreateEmployee(t, svc, CreateEmployeeInput{
		SupervisorID: &supervisor.ID,
		LastName:     "Moser",
		FirstName:    "Jan",
	})
	require.Equal(t, models.RoleEmployee, employee.Role)
	require.NotNil(t, employee.SupervisorID)
	require.Equal(t, supervisor.ID, *employee.SupervisorID)

	loaded, err := svc.GetByID(ctx, employee.ID)
	require.NoError(t, err)
	require.Equal(t, "Jan Moser", loaded.FullName())

	_, err = svc.GetByID(ctx, 9999)
	require.ErrorIs(t, err, ErrEmployeeNotFound)
}

func TestDirectoryServiceEmailUniqueness(t *testing.T) {
	db := openServicesTestDB(t)
	svc := newDirectoryService(t, db)
	ctx := context.Background()

	first := mustCreateEmployee(t, svc, CreateEmployeeInput{
		LastName: "Moser", FirstName: "Jan",
		Email: "Jan.Moser@Example.com",
	})
	require.NotNil(t, first.Email)
	require.Equal(t, "jan.moser@example.com", *first.Email)

	_, err := svc.Create(ctx, CreateEmployeeInput{
		LastName: "Huber", FirstName: "Eva",
		Email: "jan.moser@example.com",
	})
	require.ErrorIs(t, err, ErrEmailInUse)

	// Employees without a login email do not collide with each other.
	mustCreateEmployee(t, svc, CreateEmployeeInput{LastName: "Keller", FirstName: "Ida"})
	mustCreateEmployee(t, svc, CreateEmployeeInput{LastName: "Frey", FirstName: "Urs"})

	other := mustCreateEmployee(t, svc, CreateEmployeeInput{
		LastName: "Huber", FirstName: "Eva",
		Email: "eva.huber@example.com",
	})
	taken := "jan.moser@example.com"
	_, err = svc.Update(ctx, other.ID, UpdateEmployeeInput{Email: &taken})
	require.ErrorIs(t, err, ErrEmailInUse)

	// Re-saving your own email is not a conflict.
	own := "Eva.Huber@Example.com"
	updated, err := svc.Update(ctx, other.ID, UpdateEmployeeInput{Email: &own})
	require.NoError(t, err)
	require.Equal(t, "eva.huber@example.com", *updated.Email)

	cleared := ""
	updated, err = svc.Update(ctx, other.ID, UpdateEmployeeInput{Email: &cleared})
	require.NoError(t, err)
	require.Nil(t, updated.Email)
}

func TestDirectoryServiceRejectsIneligibleSupervisor(t *testing.T) {
	db := openServicesTestDB(t)
	svc := newDirectoryService(t, db)

	plain := mustCreateEmployee(t, svc, CreateEmployeeInput{
		LastName: "Berg", FirstName: "Ana",
	})

	_, err := svc.Create(context.Background(), CreateEmployeeInput{
		SupervisorID: &plain.ID,
		LastName:     "Keller",
		FirstName:    "Tim",
	})
	require.ErrorIs(t, err, ErrSupervisorNotEligible)
}

func TestDirectoryServiceDemotionReparentsReports(t *testing.T) {
	db := openServicesTestDB(t)
	svc := newDirectoryService(t, db)
	ctx := context.Background()

	top := mustCreateEmployee(t, svc, CreateEmployeeInput{
		LastName: "Wagner", FirstName: "Ute", Role: models.RoleSupervisor,
	})
	middle := mustCreateEmployee(t, svc, CreateEmployeeInput{
		SupervisorID: &top.ID,
		LastName:     "Graf", FirstName: "Leo", Role: models.RoleSupervisor,
	})
	report := mustCreateEmployee(t, svc, CreateEmployeeInput{
		SupervisorID: &middle.ID,
		LastName:     "Falk", FirstName: "Ida",
	})

	role := models.RoleEmployee
	_, err := svc.Update(ctx, middle.ID, UpdateEmployeeInput{Role: &role})
	require.NoError(t, err)

	reloaded, err := svc.GetByID(ctx, report.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.SupervisorID)
	require.Equal(t, top.ID, *reloaded.SupervisorID)
}

func TestDirectoryServiceDeleteReparentsAndReleasesItems(t *testing.T) {
	db := openServicesTestDB(t)
	svc := newDirectoryService(t, db)
	ctx := context.Background()

	top := mustCreateEmployee(t, svc, CreateEmployeeInput{
		LastName: "Stein", FirstName: "Mia", Role: models.RoleSupervisor,
	})
	middle := mustCreateEmployee(t, svc, CreateEmployeeInput{
		SupervisorID: &top.ID,
		LastName:     "Vogel", FirstName: "Kai", Role: models.RoleSupervisor,
	})
	report := mustCreateEmployee(t, svc, CreateEmployeeInput{
		SupervisorID: &middle.ID,
		LastName:     "Roth", FirstName: "Nora",
	})

	item := models.Item{
		ItemID:          "EL-RES-100",
		CategoryCode:    "EL",
		SubCategoryCode: "RES",
		Status:          models.ItemInUse,
		HolderID:        &middle.ID,
	}
	require.NoError(t, db.Create(&item).Error)

	require.NoError(t, svc.Delete(ctx, middle.ID))

	reloaded, err := svc.GetByID(ctx, report.ID)
	require.NoError(t, err)
	require.Equal(t, top.ID, *reloaded.SupervisorID)

	var releasedItem models.Item
	require.NoError(t, db.First(&releasedItem, "item_id = ?", "EL-RES-100").Error)
	require.Nil(t, releasedItem.HolderID)
	require.Equal(t, models.ItemInStock, releasedItem.Status)
}

func TestDirectoryServiceSubtree(t *testing.T) {
	db := openServicesTestDB(t)
	svc := newDirectoryService(t, db)
	ctx := context.Background()

	root := mustCreateEmployee(t, svc, CreateEmployeeInput{
		LastName: "Lang", FirstName: "Pia", Role: models.RoleSupervisor,
	})
	childA := mustCreateEmployee(t, svc, CreateEmployeeInput{
		SupervisorID: &root.ID,
		LastName:     "Peters", FirstName: "Ole", Role: models.RoleSupervisor,
	})
	childB := mustCreateEmployee(t, svc, CreateEmployeeInput{
		SupervisorID: &root.ID,
		LastName:     "Kurz", FirstName: "Emil",
	})
	grandchild := mustCreateEmployee(t, svc, CreateEmployeeInput{
		SupervisorID: &childA.ID,
		LastName:     "Brandt", FirstName: "Luisa",
	})
	mustCreateEmployee(t, svc, CreateEmployeeInput{
		LastName: "Unrelated", FirstName: "Max",
	})

	subtree, err := svc.Subtree(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, subtree, 4)

	ids := make([]uint, 0, len(subtree))
	for _, emp := range subtree {
		ids = append(ids, emp.ID)
	}
	require.Contains(t, ids, root.ID)
	require.Contains(t, ids, childA.ID)
	require.Contains(t, ids, childB.ID)
	require.Contains(t, ids, grandchild.ID)

	inSubtree, err := svc.IsInSubtree(ctx, root.ID, grandchild.ID)
	require.NoError(t, err)
	require.True(t, inSubtree)
}

func TestDirectoryServiceSupervisorCycleRejected(t *testing.T) {
	db := openServicesTestDB(t)
	svc := newDirectoryService(t, db)
	ctx := context.Background()

	root := mustCreateEmployee(t, svc, CreateEmployeeInput{
		LastName: "Arnold", FirstName: "Zoe", Role: models.RoleSupervisor,
	})
	child := mustCreateEmployee(t, svc, CreateEmployeeInput{
		SupervisorID: &root.ID,
		LastName:     "Busch", FirstName: "Rik", Role: models.RoleSupervisor,
	})

	_, err := svc.Update(ctx, root.ID, UpdateEmployeeInput{
		SupervisorID:  &child.ID,
		SetSupervisor: true,
	})
	require.ErrorIs(t, err, ErrSupervisorCycle)

	_, err = svc.Update(ctx, root.ID, UpdateEmployeeInput{
		SupervisorID:  &root.ID,
		SetSupervisor: true,
	})
	require.ErrorIs(t, err, ErrSupervisorCycle)
}

func TestDirectoryServiceFindByRFID(t *testing.T) {
	db := openServicesTestDB(t)
	svc := newDirectoryService(t, db)
	ctx := context.Background()

	uid := "04A1B2C3"
	employee := mustCreateEmployee(t, svc, CreateEmployeeInput{
		LastName: "Frey", FirstName: "Sam", RFIDUID: &uid,
	})

	found, err := svc.FindByRFID(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, employee.ID, found.ID)

	_, err = svc.FindByRFID(ctx, "unknown")
	require.ErrorIs(t, err, ErrEmployeeNotFound)

	// A second employee may not claim the same tag.
	_, err = svc.Create(ctx, CreateEmployeeInput{
		LastName: "Dupe", FirstName: "Tag", RFIDUID: &uid,
	})
	require.ErrorIs(t, err, ErrRFIDInUse)
}
