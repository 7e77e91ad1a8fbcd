package database

import "fmt"

func (d *Database) RunMigrations() error {
	_, err := d.db.Exec(`
		CREATE TABLE IF NOT EXISTS properties (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL DEFAULT '',
			price REAL NOT NULL DEFAULT 0,
			currency TEXT NOT NULL DEFAULT 'Gs.',
			m2 REAL NOT NULL DEFAULT 0,
			link TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			description_short TEXT NOT NULL DEFAULT '',
			reference_code TEXT UNIQUE NOT NULL,
			property_type TEXT NOT NULL DEFAULT '',
			zone TEXT,
			description_full TEXT NOT NULL DEFAULT '',
			image_urls TEXT NOT NULL DEFAULT '[]',
			bathrooms TEXT,
			bedrooms TEXT,
			garages TEXT,
			year_built TEXT,
			built_area_m2 TEXT,
			price_per_sqm_avg_price TEXT NOT NULL DEFAULT '',
			price_per_sqm_diff_percent REAL NOT NULL DEFAULT 0,
			sale_price_avg_price TEXT NOT NULL DEFAULT '',
			sale_price_diff_percent REAL NOT NULL DEFAULT 0,
			publication_time_avg TEXT NOT NULL DEFAULT '',
			publication_time_diff_percent REAL NOT NULL DEFAULT 0,
			sold BOOLEAN NOT NULL DEFAULT 0,
			blacklisted BOOLEAN NOT NULL DEFAULT 0,
			latitude REAL,
			longitude REAL,
			geocoding_attempted BOOLEAN NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create properties table: %w", err)
	}

	// Every read query filters on these two
	_, err = d.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_properties_type_blacklisted
		ON properties(property_type, blacklisted);
	`)
	if err != nil {
		return err
	}

	_, err = d.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_properties_zone
		ON properties(zone);
	`)
	if err != nil {
		return err
	}

	// Default ordering column
	_, err = d.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_properties_sqm_diff
		ON properties(price_per_sqm_diff_percent);
	`)
	if err != nil {
		return err
	}

	// Spatial index for the map query
	_, err = d.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_properties_coordinates
		ON properties(latitude, longitude);
	`)
	if err != nil {
		return err
	}

	return nil
}
