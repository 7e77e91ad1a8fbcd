package database

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"terrascope/server/internal/models"
)

// UpsertProperties inserts or updates a batch of scraped listings keyed on
// reference_code. Market deviation fields, blacklist state and coordinates
// are owned by other processes and never overwritten here; a re-scraped
// listing with a changed address gets its geocoding redone.
func UpsertProperties(tx *gorm.DB, batch []*models.Property) error {
	if len(batch) == 0 {
		return nil
	}

	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "reference_code"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title",
			"price",
			"currency",
			"m2",
			"link",
			"address",
			"description_short",
			"property_type",
			"zone",
			"description_full",
			"image_urls",
			"bathrooms",
			"bedrooms",
			"garages",
			"year_built",
			"built_area_m2",
			"sold",
			"updated_at",
		}),
	}).Create(&batch).Error
	if err != nil {
		return fmt.Errorf("failed to upsert %d properties: %w", len(batch), err)
	}

	return nil
}
