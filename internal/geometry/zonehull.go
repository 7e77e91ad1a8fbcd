package geometry

import (
	"database/sql"
	"fmt"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"

	"terrascope/server/config"
	"terrascope/server/internal/models"
)

// ZoneHullManager builds per-zone boundary overlays for the map view from
// the coordinates of the listings themselves.
type ZoneHullManager struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewZoneHullManager(db *sql.DB, logger *logrus.Logger) *ZoneHullManager {
	return &ZoneHullManager{
		db:     db,
		logger: logger,
	}
}

type zonePoints struct {
	points       []orb.Point
	listingCount int
	avgDiff      float64
}

// collectZonePoints gathers the mappable live land-plot listings per zone.
func (zm *ZoneHullManager) collectZonePoints() (map[string]*zonePoints, error) {
	rows, err := zm.db.Query(`
		SELECT zone, longitude, latitude, price_per_sqm_diff_percent
		FROM properties
		WHERE property_type = ? AND blacklisted = 0
		  AND zone IS NOT NULL AND zone != ''
		  AND latitude IS NOT NULL AND longitude IS NOT NULL
		  AND latitude != 0 AND longitude != 0
	`, models.LandPlotType)
	if err != nil {
		return nil, fmt.Errorf("failed to query zone points: %w", err)
	}
	defer rows.Close()

	zones := make(map[string]*zonePoints)
	for rows.Next() {
		var zone string
		var lon, lat, diff float64
		if err := rows.Scan(&zone, &lon, &lat, &diff); err != nil {
			return nil, fmt.Errorf("failed to scan zone point: %w", err)
		}

		zp, ok := zones[zone]
		if !ok {
			zp = &zonePoints{}
			zones[zone] = zp
		}
		zp.points = append(zp.points, orb.Point{lon, lat})
		zp.avgDiff += diff
		zp.listingCount++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate zone points: %w", err)
	}

	for _, zp := range zones {
		if zp.listingCount > 0 {
			zp.avgDiff /= float64(zp.listingCount)
		}
	}

	return zones, nil
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

// convexHull runs an Andrew monotone chain over the points and returns a
// closed ring, or nil when the points are collinear or too few.
func convexHull(points []orb.Point) orb.Ring {
	if len(points) < 3 {
		return nil
	}

	sorted := make([]orb.Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i][0] != sorted[j][0] {
			return sorted[i][0] < sorted[j][0]
		}
		return sorted[i][1] < sorted[j][1]
	})

	var lower []orb.Point
	for _, p := range sorted {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}

	var upper []orb.Point
	for i := len(sorted) - 1; i >= 0; i-- {
		p := sorted[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}

	hull := append(lower[:len(lower)-1], upper[:len(upper)-1]...)
	if len(hull) < 3 {
		return nil
	}

	// Close the ring
	hull = append(hull, hull[0])
	return bufferRing(orb.Ring(hull), 0.002)
}

// bufferRing pushes every vertex outward from the ring's centroid so the
// overlay clears the outermost markers instead of cutting through them.
func bufferRing(ring orb.Ring, distance float64) orb.Ring {
	if len(ring) < 4 {
		return ring
	}

	var cx, cy float64
	for _, p := range ring[:len(ring)-1] {
		cx += p[0]
		cy += p[1]
	}
	n := float64(len(ring) - 1)
	center := orb.Point{cx / n, cy / n}

	buffered := make(orb.Ring, len(ring))
	for i, p := range ring {
		dx := p[0] - center[0]
		dy := p[1] - center[1]
		length := math.Hypot(dx, dy)
		if length == 0 {
			buffered[i] = p
			continue
		}
		buffered[i] = orb.Point{
			p[0] + dx/length*distance,
			p[1] + dy/length*distance,
		}
	}

	return buffered
}

// BuildFeatureCollection produces the GeoJSON overlay: one polygon per
// zone with at least three mappable listings, carrying the zone's listing
// count and average market deviation.
func (zm *ZoneHullManager) BuildFeatureCollection() (*geojson.FeatureCollection, error) {
	zones, err := zm.collectZonePoints()
	if err != nil {
		return nil, err
	}

	fc := geojson.NewFeatureCollection()
	for zone, zp := range zones {
		hull := convexHull(zp.points)
		if hull == nil {
			zm.logger.Warnf("Not enough points for zone %s (minimum 3 required)", zone)
			continue
		}

		feature := geojson.NewFeature(orb.Polygon{hull})
		feature.Properties = geojson.Properties{
			"zone":                 zone,
			"listing_count":        zp.listingCount,
			"avg_sqm_diff_percent": zp.avgDiff,
		}

		if view := config.GetZoneByName(zone); view != nil {
			feature.Properties["center"] = view.Center
			feature.Properties["zoom_level"] = view.ZoomLevel
		}

		fc.Append(feature)
	}

	// Stable output order for clients and tests
	sort.Slice(fc.Features, func(i, j int) bool {
		return fc.Features[i].Properties["zone"].(string) < fc.Features[j].Properties["zone"].(string)
	})

	return fc, nil
}
