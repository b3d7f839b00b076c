package database

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/alptraumtech/lms/internal/models"
	"github.com/alptraumtech/lms/pkg/logger"
)

// AutoMigrate creates or updates the schema for all local tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Employee{},
		&models.PermitType{},
		&models.PermitGrant{},
		&models.ItemPermitRequirement{},
		&models.Item{},
		&models.Category{},
		&models.SubCategory{},
		&models.Parameter{},
		&models.Company{},
		&models.DeviceActivation{},
		&models.LabelTemplate{},
		&models.AuditLog{},
	)
}

// SeedData inserts the bootstrap administrator if no employees exist yet.
// The password must be changed on first login in any real deployment.
func SeedData(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Employee{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count employees: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash bootstrap password: %w", err)
	}

	adminEmail := "admin@localhost"
	admin := models.Employee{
		CompanyID:    1,
		LastName:     "Administrator",
		FirstName:    "Root",
		Role:         models.RoleAdmin,
		IsActive:     true,
		Email:        &adminEmail,
		PasswordHash: string(hash),
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}

	logger.Warn("seeded bootstrap administrator account, change its password")
	return nil
}
