package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	sqlitegorm "gorm.io/driver/sqlite"

	"terrascope/server/internal/models"
	"terrascope/server/internal/query"
)

// Geocoder resolves an address within a zone to coordinates.
type Geocoder interface {
	GeocodeAddress(address, zone string) (float64, float64, error)
}

type Database struct {
	db       *sql.DB
	orm      *gorm.DB
	gsPerUSD float64
}

func NewDatabase(dbPath string, gsPerUSD float64) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys
	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, err
	}

	// The ingest pipeline upserts through gorm over the same connection
	orm, err := gorm.Open(sqlitegorm.Dialector{Conn: db}, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open gorm handle: %w", err)
	}

	if gsPerUSD <= 0 {
		gsPerUSD = 8000
	}

	return &Database{db: db, orm: orm, gsPerUSD: gsPerUSD}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) GetDB() *sql.DB {
	return d.db
}

// ORM exposes the gorm handle used by the batch upsert path.
func (d *Database) ORM() *gorm.DB {
	return d.orm
}

const propertyColumns = `
	id, title, price, currency, m2, link, address, description_short,
	reference_code, property_type, zone, description_full, image_urls,
	bathrooms, bedrooms, garages, year_built, built_area_m2,
	price_per_sqm_avg_price, price_per_sqm_diff_percent,
	sale_price_avg_price, sale_price_diff_percent,
	publication_time_avg, publication_time_diff_percent,
	sold, blacklisted, latitude, longitude,
	COALESCE(created_at, CURRENT_TIMESTAMP) as created_at,
	COALESCE(updated_at, CURRENT_TIMESTAMP) as updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProperty(row rowScanner) (*models.Property, error) {
	var p models.Property
	var zone, bathrooms, bedrooms, garages, yearBuilt, builtArea sql.NullString
	var imageURLs string
	var latitude, longitude sql.NullFloat64
	var createdAt, updatedAt sql.NullTime

	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Price,
		&p.Currency,
		&p.M2,
		&p.Link,
		&p.Address,
		&p.DescriptionShort,
		&p.ReferenceCode,
		&p.PropertyType,
		&zone,
		&p.DescriptionFull,
		&imageURLs,
		&bathrooms,
		&bedrooms,
		&garages,
		&yearBuilt,
		&builtArea,
		&p.PricePerSqmAvgPrice,
		&p.PricePerSqmDiffPercent,
		&p.SalePriceAvgPrice,
		&p.SalePriceDiffPercent,
		&p.PublicationTimeAvg,
		&p.PublicationTimeDiffPercent,
		&p.Sold,
		&p.Blacklisted,
		&latitude,
		&longitude,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if zone.Valid {
		p.Zone = zone.String
	}

	p.ImageURLs = []string{}
	if imageURLs != "" {
		// Malformed image data is not worth failing a listing over
		_ = json.Unmarshal([]byte(imageURLs), &p.ImageURLs)
	}

	if bathrooms.Valid {
		p.Bathrooms = &bathrooms.String
	}
	if bedrooms.Valid {
		p.Bedrooms = &bedrooms.String
	}
	if garages.Valid {
		p.Garages = &garages.String
	}
	if yearBuilt.Valid {
		p.YearBuilt = &yearBuilt.String
	}
	if builtArea.Valid {
		p.BuiltAreaM2 = &builtArea.String
	}

	if latitude.Valid {
		lat := latitude.Float64
		p.Latitude = &lat
	}
	if longitude.Valid {
		lon := longitude.Float64
		p.Longitude = &lon
	}

	if createdAt.Valid {
		p.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		p.UpdatedAt = updatedAt.Time
	}

	return &p, nil
}

// GetProperties returns one page of listings matching the filters, ordered
// per the requested sort. An empty page is a valid outcome; a store
// failure is not, and wraps ErrUnavailable.
func (d *Database) GetProperties(filters query.Filters, sort query.Sort, limit, offset int) ([]models.Property, error) {
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}

	pred := query.BuildPredicate(filters)
	q := fmt.Sprintf(
		"SELECT %s FROM properties WHERE %s ORDER BY %s LIMIT ? OFFSET ?",
		propertyColumns, pred.SQL(), query.OrderBy(sort, d.gsPerUSD),
	)
	args := append(pred.Args(), limit, offset)

	rows, err := d.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	return collectProperties(rows)
}

// GetPropertiesForMap returns listings with usable coordinates matching
// the filters, best deals first.
func (d *Database) GetPropertiesForMap(filters query.Filters, limit int) ([]models.Property, error) {
	if limit < 0 {
		limit = 0
	}

	pred := query.BuildPredicate(filters).Mappable()
	q := fmt.Sprintf(
		"SELECT %s FROM properties WHERE %s ORDER BY %s LIMIT ?",
		propertyColumns, pred.SQL(), query.OrderBy(query.DefaultSort, d.gsPerUSD),
	)
	args := append(pred.Args(), limit)

	rows, err := d.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	return collectProperties(rows)
}

func collectProperties(rows *sql.Rows) ([]models.Property, error) {
	properties := make([]models.Property, 0)
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		properties = append(properties, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return properties, nil
}

// GetPropertyByID looks up one listing by identifier. Direct lookup
// bypasses the land-plot and blacklist restrictions so a blacklisted
// listing can still be inspected.
func (d *Database) GetPropertyByID(id string) (*models.Property, error) {
	numericID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	q := fmt.Sprintf("SELECT %s FROM properties WHERE id = ?", propertyColumns)
	p, err := scanProperty(d.db.QueryRow(q, numericID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return p, nil
}

// GetPropertyStats aggregates the whole non-blacklisted land-plot
// population. User filters are deliberately ignored here: the dashboard
// shows the market, not the current page.
func (d *Database) GetPropertyStats() (models.PropertyStats, error) {
	stats := models.PropertyStats{Zones: []models.ZoneStats{}}

	err := d.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(AVG(CASE WHEN price > 0 THEN price END), 0),
			COALESCE(AVG(CASE WHEN m2 > 0 THEN m2 END), 0),
			COALESCE(AVG(CASE WHEN price > 0 AND m2 > 0 THEN price / m2 END), 0),
			COALESCE(SUM(CASE WHEN sold = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN price_per_sqm_diff_percent < -10 THEN 1 ELSE 0 END), 0)
		FROM properties
		WHERE property_type = ? AND blacklisted = 0
	`, models.LandPlotType).Scan(
		&stats.Total,
		&stats.AvgPrice,
		&stats.AvgM2,
		&stats.AvgPricePerM2,
		&stats.SoldCount,
		&stats.BestDealsCount,
	)
	if err != nil {
		return stats, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	rows, err := d.db.Query(`
		SELECT zone, COUNT(*) as count, AVG(price) as avg_price, AVG(price / m2) as avg_price_per_m2
		FROM properties
		WHERE property_type = ? AND blacklisted = 0
		  AND zone IS NOT NULL AND zone != ''
		  AND price > 0 AND m2 > 0
		GROUP BY zone
		ORDER BY count DESC
		LIMIT 10
	`, models.LandPlotType)
	if err != nil {
		return stats, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var zs models.ZoneStats
		if err := rows.Scan(&zs.Zone, &zs.Count, &zs.AvgPrice, &zs.AvgPricePerM2); err != nil {
			return stats, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		stats.Zones = append(stats.Zones, zs)
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return stats, nil
}

// GetUniqueZones returns the distinct zones the filter dropdown offers,
// alphabetical. Every zone here has at least one live land-plot listing.
func (d *Database) GetUniqueZones() ([]string, error) {
	rows, err := d.db.Query(`
		SELECT DISTINCT zone
		FROM properties
		WHERE property_type = ? AND blacklisted = 0
		  AND zone IS NOT NULL AND zone != ''
		ORDER BY zone
	`, models.LandPlotType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	zones := make([]string, 0)
	for rows.Next() {
		var zone string
		if err := rows.Scan(&zone); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		zones = append(zones, zone)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return zones, nil
}

// BlacklistProperty marks one listing as no longer relevant and refreshes
// its updated_at. Idempotent: blacklisting twice succeeds.
func (d *Database) BlacklistProperty(id string) (*models.BlacklistResult, error) {
	numericID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	result, err := d.db.Exec(`
		UPDATE properties
		SET blacklisted = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, numericID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	return &models.BlacklistResult{ID: numericID, Blacklisted: true}, nil
}

// RefreshMarketStats recomputes each zone's average price and price/m2
// over the live population and rewrites every listing's deviation
// percentages against its zone average. Listings without a usable area
// keep their price/m2 deviation untouched.
func (d *Database) RefreshMarketStats() error {
	norm := query.NormalizedPrice(d.gsPerUSD)

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(fmt.Sprintf(`
		SELECT zone, AVG(%s / m2) as avg_price_per_m2, AVG(%s) as avg_price
		FROM properties
		WHERE property_type = ? AND blacklisted = 0
		  AND zone IS NOT NULL AND zone != ''
		  AND price > 0 AND m2 > 0
		GROUP BY zone
	`, norm, norm), models.LandPlotType)
	if err != nil {
		return fmt.Errorf("failed to compute zone averages: %w", err)
	}

	type zoneAvg struct {
		zone          string
		avgPricePerM2 float64
		avgPrice      float64
	}
	var averages []zoneAvg
	for rows.Next() {
		var za zoneAvg
		if err := rows.Scan(&za.zone, &za.avgPricePerM2, &za.avgPrice); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan zone average: %w", err)
		}
		averages = append(averages, za)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate zone averages: %w", err)
	}

	stmt, err := tx.Prepare(fmt.Sprintf(`
		UPDATE properties
		SET price_per_sqm_avg_price = ?,
		    price_per_sqm_diff_percent = CASE
		        WHEN m2 > 0 AND ? > 0 THEN ((%s / m2) - ?) / ? * 100
		        ELSE price_per_sqm_diff_percent
		    END,
		    sale_price_avg_price = ?,
		    sale_price_diff_percent = CASE
		        WHEN ? > 0 THEN (%s - ?) / ? * 100
		        ELSE sale_price_diff_percent
		    END
		WHERE zone = ? AND property_type = ?
	`, norm, norm))
	if err != nil {
		return fmt.Errorf("failed to prepare deviation update: %w", err)
	}
	defer stmt.Close()

	for _, za := range averages {
		avgM2Str := strconv.FormatFloat(za.avgPricePerM2, 'f', 2, 64)
		avgPriceStr := strconv.FormatFloat(za.avgPrice, 'f', 2, 64)
		_, err := stmt.Exec(
			avgM2Str,
			za.avgPricePerM2, za.avgPricePerM2, za.avgPricePerM2,
			avgPriceStr,
			za.avgPrice, za.avgPrice, za.avgPrice,
			za.zone, models.LandPlotType,
		)
		if err != nil {
			return fmt.Errorf("failed to update deviations for zone %s: %w", za.zone, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit market refresh: %w", err)
	}

	return nil
}

// UpdateMissingCoordinates geocodes listings that have an address but no
// coordinates yet, one batch per transaction. Failed lookups are marked
// attempted so they are not retried forever.
func (d *Database) UpdateMissingCoordinates(geocoder Geocoder) (int, error) {
	const batchSize = 10

	var updated int
	for {
		tx, err := d.db.Begin()
		if err != nil {
			return updated, fmt.Errorf("failed to begin transaction: %w", err)
		}

		rows, err := tx.Query(`
			SELECT id, address, COALESCE(zone, '')
			FROM properties
			WHERE (latitude IS NULL OR longitude IS NULL)
			  AND geocoding_attempted = 0
			  AND address != ''
			LIMIT ?
		`, batchSize)
		if err != nil {
			tx.Rollback()
			return updated, fmt.Errorf("failed to query properties: %w", err)
		}

		type pending struct {
			id      int64
			address string
			zone    string
		}
		var batch []pending
		for rows.Next() {
			var p pending
			if err := rows.Scan(&p.id, &p.address, &p.zone); err != nil {
				rows.Close()
				tx.Rollback()
				return updated, fmt.Errorf("failed to scan row: %w", err)
			}
			batch = append(batch, p)
		}
		rows.Close()

		if len(batch) == 0 {
			tx.Rollback()
			return updated, nil
		}

		for _, p := range batch {
			lat, lon, err := geocoder.GeocodeAddress(p.address, p.zone)
			if err != nil {
				// Mark as attempted even when geocoding failed
				if _, err := tx.Exec(
					"UPDATE properties SET geocoding_attempted = 1 WHERE id = ?", p.id,
				); err != nil {
					tx.Rollback()
					return updated, fmt.Errorf("failed to mark geocoding attempt: %w", err)
				}
				continue
			}

			if _, err := tx.Exec(`
				UPDATE properties
				SET latitude = ?, longitude = ?, geocoding_attempted = 1
				WHERE id = ?
			`, lat, lon, p.id); err != nil {
				tx.Rollback()
				return updated, fmt.Errorf("failed to update coordinates: %w", err)
			}
			updated++
		}

		if err := tx.Commit(); err != nil {
			return updated, fmt.Errorf("failed to commit transaction: %w", err)
		}
	}
}
