package db

import (
	"fmt"

	"github.com/Fechomap/cargas-gas-sub000/internal/config"
	"github.com/Fechomap/cargas-gas-sub000/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns every GORM model, in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&models.Tenant{},
		&models.Unit{},
		&models.KilometerLog{},
		&models.FuelCharge{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedTenants upserts Tenant rows (and their units) from configuration.
// Existing tenants are matched by name; units by (tenant, unit number).
func SeedTenants(gdb *gorm.DB, tenants []config.TenantConfig) error {
	for _, tc := range tenants {
		tenant := models.Tenant{
			Name:      tc.Name,
			ChannelID: tc.ChannelID,
			Active:    true,
		}
		result := gdb.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"channel_id", "active"}),
		}).Create(&tenant)
		if result.Error != nil {
			return fmt.Errorf("db: seed tenant %q: %w", tc.Name, result.Error)
		}

		// OnConflict DoUpdates does not refresh the ID on conflict paths for
		// every driver, so re-read by name.
		if err := gdb.Where("name = ?", tc.Name).First(&tenant).Error; err != nil {
			return fmt.Errorf("db: reload tenant %q: %w", tc.Name, err)
		}

		for _, uc := range tc.Units {
			unit := models.Unit{
				TenantID:     tenant.ID,
				UnitNumber:   uc.UnitNumber,
				OperatorName: uc.OperatorName,
				Active:       true,
			}
			result := gdb.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "unit_number"}},
				DoUpdates: clause.AssignmentColumns([]string{"operator_name", "active"}),
			}).Create(&unit)
			if result.Error != nil {
				return fmt.Errorf("db: seed unit %q for tenant %q: %w", uc.UnitNumber, tc.Name, result.Error)
			}
		}
	}
	return nil
}
