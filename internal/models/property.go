package models

import "time"

// LandPlotType is the only property type the browsing, map and stats
// queries operate on; other scraped types stay in the table but are never
// served.
const LandPlotType = "Terreno"

// LocalCurrency marks prices quoted in guaranies. Price sorting divides
// these by the configured Gs/USD rate so mixed-currency listings order by
// economic value.
const LocalCurrency = "Gs."

type Property struct {
	ID                         int64     `json:"id" gorm:"primaryKey"`
	Title                      string    `json:"title"`
	Price                      float64   `json:"price"`
	Currency                   string    `json:"currency"`
	M2                         float64   `json:"m2" gorm:"column:m2"`
	Link                       string    `json:"link"`
	Address                    string    `json:"address"`
	DescriptionShort           string    `json:"description_short" gorm:"column:description_short"`
	ReferenceCode              string    `json:"reference_code" gorm:"uniqueIndex"`
	PropertyType               string    `json:"property_type"`
	Zone                       string    `json:"zone"`
	DescriptionFull            string    `json:"description_full" gorm:"column:description_full"`
	ImageURLs                  []string  `json:"image_urls" gorm:"column:image_urls;serializer:json"`
	Bathrooms                  *string   `json:"bathrooms,omitempty"`
	Bedrooms                   *string   `json:"bedrooms,omitempty"`
	Garages                    *string   `json:"garages,omitempty"`
	YearBuilt                  *string   `json:"year_built,omitempty"`
	BuiltAreaM2                *string   `json:"built_area_m2,omitempty" gorm:"column:built_area_m2"`
	PricePerSqmAvgPrice        string    `json:"price_per_sqm_avg_price"`
	PricePerSqmDiffPercent     float64   `json:"price_per_sqm_diff_percent"` // negative = below market
	SalePriceAvgPrice          string    `json:"sale_price_avg_price"`
	SalePriceDiffPercent       float64   `json:"sale_price_diff_percent"` // negative = below market
	PublicationTimeAvg         string    `json:"publication_time_avg"`
	PublicationTimeDiffPercent float64   `json:"publication_time_diff_percent"`
	CreatedAt                  time.Time `json:"created_at"`
	UpdatedAt                  time.Time `json:"updated_at"`
	Sold                       bool      `json:"sold"`
	Blacklisted                bool      `json:"blacklisted"`
	Latitude                   *float64  `json:"latitude,omitempty"`
	Longitude                  *float64  `json:"longitude,omitempty"`
	GeocodingAttempted         bool      `json:"-" gorm:"column:geocoding_attempted"`
}

func (Property) TableName() string {
	return "properties"
}

// Mappable reports whether the listing carries usable coordinates. Zero
// values mean the geocoder found nothing, not a real position.
func (p *Property) Mappable() bool {
	return p.Latitude != nil && p.Longitude != nil && *p.Latitude != 0 && *p.Longitude != 0
}

// ZoneStats is one row of the per-zone stats breakdown
type ZoneStats struct {
	Zone          string  `json:"zone"`
	Count         int     `json:"count"`
	AvgPrice      float64 `json:"avg_price"`
	AvgPricePerM2 float64 `json:"avg_price_per_m2"`
}

// PropertyStats aggregates the non-blacklisted land-plot population
type PropertyStats struct {
	Total          int         `json:"total"`
	AvgPrice       float64     `json:"avgPrice"`
	AvgM2          float64     `json:"avgM2"`
	AvgPricePerM2  float64     `json:"avgPricePerM2"`
	Zones          []ZoneStats `json:"zones"`
	SoldCount      int         `json:"soldCount"`
	BestDealsCount int         `json:"bestDealsCount"`
}

// FilterValues holds the distinct attribute values the filter widgets offer
type FilterValues struct {
	Zones []string `json:"zones"`
}

// BlacklistResult is returned by the blacklist mutation
type BlacklistResult struct {
	ID          int64 `json:"id"`
	Blacklisted bool  `json:"blacklisted"`
}
