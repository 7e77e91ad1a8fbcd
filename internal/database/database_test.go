package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terrascope/server/internal/models"
	"terrascope/server/internal/query"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(":memory:", 8000)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })
	return db
}

type seed struct {
	ref         string
	title       string
	address     string
	descShort   string
	zone        string
	ptype       string
	price       float64
	currency    string
	m2          float64
	sqmDiff     float64
	saleDiff    float64
	sold        bool
	blacklisted bool
	lat, lon    *float64
}

func (s seed) insert(t *testing.T, db *Database) int64 {
	t.Helper()
	if s.ptype == "" {
		s.ptype = models.LandPlotType
	}
	if s.currency == "" {
		s.currency = "USD"
	}
	p := models.Property{
		ReferenceCode:          s.ref,
		Title:                  s.title,
		Address:                s.address,
		DescriptionShort:       s.descShort,
		Zone:                   s.zone,
		PropertyType:           s.ptype,
		Price:                  s.price,
		Currency:               s.currency,
		M2:                     s.m2,
		PricePerSqmDiffPercent: s.sqmDiff,
		SalePriceDiffPercent:   s.saleDiff,
		Sold:                   s.sold,
		Blacklisted:            s.blacklisted,
		Latitude:               s.lat,
		Longitude:              s.lon,
		ImageURLs:              []string{},
	}
	require.NoError(t, db.ORM().Create(&p).Error)
	return p.ID
}

func ids(properties []models.Property) []int64 {
	out := make([]int64, len(properties))
	for i, p := range properties {
		out[i] = p.ID
	}
	return out
}

func fptr(v float64) *float64 { return &v }

func TestGetProperties_DomainRestriction(t *testing.T) {
	db := newTestDB(t)
	live := seed{ref: "R1", title: "Terreno en Luque", zone: "Luque"}.insert(t, db)
	seed{ref: "R2", title: "Terreno blacklisted", zone: "Luque", blacklisted: true}.insert(t, db)
	seed{ref: "R3", title: "Casa en Luque", zone: "Luque", ptype: "Casa"}.insert(t, db)

	properties, err := db.GetProperties(query.Filters{}, query.DefaultSort, 24, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{live}, ids(properties))
	for _, p := range properties {
		assert.Equal(t, models.LandPlotType, p.PropertyType)
		assert.False(t, p.Blacklisted)
	}
}

func TestGetProperties_EmptyResultIsNotAnError(t *testing.T) {
	db := newTestDB(t)

	properties, err := db.GetProperties(query.Filters{}, query.DefaultSort, 24, 0)
	require.NoError(t, err)
	assert.NotNil(t, properties)
	assert.Empty(t, properties)
}

func TestGetProperties_CurrencyNormalizedPriceSort(t *testing.T) {
	db := newTestDB(t)
	// A: 100 USD. B: Gs. 1,600,000 -> 200 effective. Ascending = [A, B].
	a := seed{ref: "A", price: 100, currency: "USD", m2: 50}.insert(t, db)
	b := seed{ref: "B", price: 1600000, currency: models.LocalCurrency, m2: 100}.insert(t, db)

	asc, err := db.GetProperties(query.Filters{}, query.Sort{Field: query.FieldPrice, Direction: "asc"}, 24, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{a, b}, ids(asc))

	desc, err := db.GetProperties(query.Filters{}, query.Sort{Field: query.FieldPrice, Direction: "desc"}, 24, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{b, a}, ids(desc))
}

func TestGetProperties_DefaultOrderingIsBestDealsFirst(t *testing.T) {
	db := newTestDB(t)
	worst := seed{ref: "W", sqmDiff: 25}.insert(t, db)
	best := seed{ref: "B", sqmDiff: -30}.insert(t, db)
	mid := seed{ref: "M", sqmDiff: 0}.insert(t, db)

	got, err := db.GetProperties(query.Filters{}, query.Sort{}, 24, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{best, mid, worst}, ids(got))

	// An unrecognized sort falls back to the same ordering
	fallback, err := db.GetProperties(query.Filters{}, query.Sort{Field: "bogus", Direction: "asc"}, 24, 0)
	require.NoError(t, err)
	assert.Equal(t, ids(got), ids(fallback))
}

func TestGetProperties_SearchIsCaseInsensitive(t *testing.T) {
	db := newTestDB(t)
	byTitle := seed{ref: "R1", title: "Terreno COSTANERA norte"}.insert(t, db)
	byAddress := seed{ref: "R2", address: "Avda. Costanera 123"}.insert(t, db)
	byDesc := seed{ref: "R3", descShort: "cerca de la costanera"}.insert(t, db)
	seed{ref: "R4", title: "Terreno en Capiatá"}.insert(t, db)

	got, err := db.GetProperties(query.Filters{Search: "Costanera"}, query.DefaultSort, 24, 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{byTitle, byAddress, byDesc}, ids(got))
}

func TestGetProperties_BoundsAreInclusive(t *testing.T) {
	db := newTestDB(t)
	seed{ref: "R1", price: 999, m2: 100}.insert(t, db)
	onMin := seed{ref: "R2", price: 1000, m2: 200}.insert(t, db)
	onMax := seed{ref: "R3", price: 5000, m2: 300}.insert(t, db)
	seed{ref: "R4", price: 5001, m2: 400}.insert(t, db)

	got, err := db.GetProperties(query.Filters{
		MinPrice: fptr(1000),
		MaxPrice: fptr(5000),
	}, query.DefaultSort, 24, 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{onMin, onMax}, ids(got))

	byArea, err := db.GetProperties(query.Filters{
		MinM2: fptr(200),
		MaxM2: fptr(300),
	}, query.DefaultSort, 24, 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{onMin, onMax}, ids(byArea))
}

func TestGetProperties_ZoneAndSoldFilters(t *testing.T) {
	db := newTestDB(t)
	luqueSold := seed{ref: "R1", zone: "Luque", sold: true}.insert(t, db)
	seed{ref: "R2", zone: "Luque", sold: false}.insert(t, db)
	seed{ref: "R3", zone: "Areguá", sold: true}.insert(t, db)

	sold := true
	got, err := db.GetProperties(query.Filters{Zone: "Luque", Sold: &sold}, query.DefaultSort, 24, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{luqueSold}, ids(got))

	// Sentinel zone means no constraint
	all, err := db.GetProperties(query.Filters{Zone: "all"}, query.DefaultSort, 24, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGetProperties_PaginationIsDisjointAndStable(t *testing.T) {
	db := newTestDB(t)
	for i := 0; i < 48; i++ {
		// Duplicate diff values force the id tie-break to matter
		seed{ref: fmt.Sprintf("R%02d", i), sqmDiff: float64(i % 6)}.insert(t, db)
	}

	page1, err := db.GetProperties(query.Filters{}, query.DefaultSort, 24, 0)
	require.NoError(t, err)
	page2, err := db.GetProperties(query.Filters{}, query.DefaultSort, 24, 24)
	require.NoError(t, err)

	require.Len(t, page1, 24)
	require.Len(t, page2, 24)

	seen := make(map[int64]bool)
	for _, id := range ids(page1) {
		seen[id] = true
	}
	for _, id := range ids(page2) {
		assert.False(t, seen[id], "page overlap on id %d", id)
	}
}

func TestGetPropertiesForMap(t *testing.T) {
	db := newTestDB(t)
	mappable := seed{ref: "R1", zone: "Luque", lat: fptr(-25.27), lon: fptr(-57.48), sqmDiff: -5}.insert(t, db)
	seed{ref: "R2", zone: "Luque"}.insert(t, db)                                 // no coordinates
	seed{ref: "R3", zone: "Luque", lat: fptr(0), lon: fptr(0)}.insert(t, db)     // zero coordinates
	seed{ref: "R4", zone: "Areguá", lat: fptr(-25.3), lon: fptr(-57.4)}.insert(t, db)

	got, err := db.GetPropertiesForMap(query.Filters{}, 200)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// The map query composes the same user predicate as the list
	luque, err := db.GetPropertiesForMap(query.Filters{Zone: "Luque"}, 200)
	require.NoError(t, err)
	assert.Equal(t, []int64{mappable}, ids(luque))
}

func TestGetPropertyByID(t *testing.T) {
	db := newTestDB(t)
	id := seed{ref: "R1", title: "Terreno", blacklisted: true}.insert(t, db)

	// Direct lookup bypasses the blacklist restriction
	p, err := db.GetPropertyByID(fmt.Sprintf("%d", id))
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)
	assert.True(t, p.Blacklisted)

	_, err = db.GetPropertyByID("999999")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.GetPropertyByID("abc")
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestBlacklistProperty(t *testing.T) {
	db := newTestDB(t)
	id := seed{ref: "R1", title: "Terreno", lat: fptr(-25.2), lon: fptr(-57.5)}.insert(t, db)
	idStr := fmt.Sprintf("%d", id)

	result, err := db.BlacklistProperty(idStr)
	require.NoError(t, err)
	assert.Equal(t, id, result.ID)
	assert.True(t, result.Blacklisted)

	// Gone from every read path
	list, err := db.GetProperties(query.Filters{}, query.DefaultSort, 24, 0)
	require.NoError(t, err)
	assert.NotContains(t, ids(list), id)

	mapped, err := db.GetPropertiesForMap(query.Filters{}, 200)
	require.NoError(t, err)
	assert.NotContains(t, ids(mapped), id)

	// ...except direct lookup
	p, err := db.GetPropertyByID(idStr)
	require.NoError(t, err)
	assert.True(t, p.Blacklisted)

	// Idempotent
	again, err := db.BlacklistProperty(idStr)
	require.NoError(t, err)
	assert.True(t, again.Blacklisted)

	_, err = db.BlacklistProperty("999999")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.BlacklistProperty("abc")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestGetPropertyStats(t *testing.T) {
	db := newTestDB(t)
	seed{ref: "R1", zone: "Luque", price: 100, m2: 50, sqmDiff: -20}.insert(t, db)
	seed{ref: "R2", zone: "Luque", price: 300, m2: 0, sqmDiff: 5, sold: true}.insert(t, db)  // m2 = 0 excluded from area averages
	seed{ref: "R3", zone: "Areguá", price: 0, m2: 100, sqmDiff: -15}.insert(t, db)          // price = 0 excluded from price averages
	seed{ref: "R4", zone: "Luque", price: 500, m2: 100, sqmDiff: 0, blacklisted: true}.insert(t, db)
	seed{ref: "R5", zone: "Luque", price: 900, m2: 100, ptype: "Casa"}.insert(t, db)

	stats, err := db.GetPropertyStats()
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Total)
	assert.InDelta(t, 200.0, stats.AvgPrice, 0.001)  // (100+300)/2
	assert.InDelta(t, 75.0, stats.AvgM2, 0.001)      // (50+100)/2
	assert.InDelta(t, 2.0, stats.AvgPricePerM2, 0.001) // only R1 qualifies: 100/50
	assert.Equal(t, 1, stats.SoldCount)
	assert.Equal(t, 2, stats.BestDealsCount) // sqmDiff < -10: R1, R3

	// Zone breakdown only counts rows with usable price and area
	require.Len(t, stats.Zones, 1)
	assert.Equal(t, "Luque", stats.Zones[0].Zone)
	assert.Equal(t, 1, stats.Zones[0].Count)
}

func TestGetPropertyStats_EmptyStore(t *testing.T) {
	db := newTestDB(t)

	stats, err := db.GetPropertyStats()
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
	assert.Zero(t, stats.AvgPrice)
	assert.Empty(t, stats.Zones)
}

func TestGetUniqueZones(t *testing.T) {
	db := newTestDB(t)
	seed{ref: "R1", zone: "Luque"}.insert(t, db)
	seed{ref: "R2", zone: "Areguá"}.insert(t, db)
	seed{ref: "R3", zone: "Areguá"}.insert(t, db)
	seed{ref: "R4", zone: "Capiatá", blacklisted: true}.insert(t, db) // its zone has no live listing
	seed{ref: "R5", zone: "Villa Elisa", ptype: "Casa"}.insert(t, db)
	seed{ref: "R6", zone: ""}.insert(t, db)

	zones, err := db.GetUniqueZones()
	require.NoError(t, err)
	assert.Equal(t, []string{"Areguá", "Luque"}, zones)
}

func TestRefreshMarketStats(t *testing.T) {
	db := newTestDB(t)
	cheap := seed{ref: "R1", zone: "Luque", price: 100, m2: 100}.insert(t, db)   // 1 per m2
	pricey := seed{ref: "R2", zone: "Luque", price: 300, m2: 100}.insert(t, db)  // 3 per m2
	noArea := seed{ref: "R3", zone: "Luque", price: 500, m2: 0, sqmDiff: 42}.insert(t, db)

	require.NoError(t, db.RefreshMarketStats())

	// Zone average is 2 per m2: cheap sits 50% below, pricey 50% above
	p, err := db.GetPropertyByID(fmt.Sprintf("%d", cheap))
	require.NoError(t, err)
	assert.InDelta(t, -50.0, p.PricePerSqmDiffPercent, 0.001)
	assert.Equal(t, "2.00", p.PricePerSqmAvgPrice)

	p, err = db.GetPropertyByID(fmt.Sprintf("%d", pricey))
	require.NoError(t, err)
	assert.InDelta(t, 50.0, p.PricePerSqmDiffPercent, 0.001)

	// Area-less listing keeps its previous deviation
	p, err = db.GetPropertyByID(fmt.Sprintf("%d", noArea))
	require.NoError(t, err)
	assert.InDelta(t, 42.0, p.PricePerSqmDiffPercent, 0.001)
}

type fakeGeocoder struct {
	failFor map[string]bool
}

func (f *fakeGeocoder) GeocodeAddress(address, zone string) (float64, float64, error) {
	if f.failFor[address] {
		return 0, 0, errors.New("no results")
	}
	return -25.3, -57.6, nil
}

func TestUpdateMissingCoordinates(t *testing.T) {
	db := newTestDB(t)
	ok := seed{ref: "R1", address: "Calle 1"}.insert(t, db)
	bad := seed{ref: "R2", address: "Calle perdida"}.insert(t, db)
	seed{ref: "R3"}.insert(t, db) // no address, never attempted

	updated, err := db.UpdateMissingCoordinates(&fakeGeocoder{failFor: map[string]bool{"Calle perdida": true}})
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	p, err := db.GetPropertyByID(fmt.Sprintf("%d", ok))
	require.NoError(t, err)
	require.NotNil(t, p.Latitude)
	assert.InDelta(t, -25.3, *p.Latitude, 0.001)

	// Failed lookups are marked attempted and not retried
	p, err = db.GetPropertyByID(fmt.Sprintf("%d", bad))
	require.NoError(t, err)
	assert.Nil(t, p.Latitude)

	updated, err = db.UpdateMissingCoordinates(&fakeGeocoder{})
	require.NoError(t, err)
	assert.Equal(t, 0, updated)
}

func TestReadPathsSurfaceUnavailable(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Close())

	_, err := db.GetProperties(query.Filters{}, query.DefaultSort, 24, 0)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = db.GetPropertiesForMap(query.Filters{}, 200)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = db.GetPropertyByID("1")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = db.GetPropertyStats()
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = db.GetUniqueZones()
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = db.BlacklistProperty("1")
	assert.ErrorIs(t, err, ErrUnavailable)
}
