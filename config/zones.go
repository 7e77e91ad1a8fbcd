package config

// Zone represents map-view defaults for a known zone
type Zone struct {
	Name      string    `json:"name"`
	Center    []float64 `json:"center"`
	ZoomLevel int       `json:"zoom_level"`
}

// KnownZones lists zones with curated map defaults; zones scraped into the
// database but missing here fall back to the country-level view.
var KnownZones = []Zone{
	{
		Name:      "Asunción",
		Center:    []float64{-25.2637, -57.5759},
		ZoomLevel: 12,
	},
	{
		Name:      "Luque",
		Center:    []float64{-25.2700, -57.4872},
		ZoomLevel: 13,
	},
	{
		Name:      "San Bernardino",
		Center:    []float64{-25.3108, -57.2958},
		ZoomLevel: 13,
	},
	{
		Name:      "Ciudad del Este",
		Center:    []float64{-25.5097, -54.6111},
		ZoomLevel: 12,
	},
	// Add more zones here as scraping coverage grows
}

// DefaultMapView is used when a zone has no curated entry.
var DefaultMapView = Zone{
	Name:      "Paraguay",
	Center:    []float64{-23.4425, -58.4438},
	ZoomLevel: 6,
}

// GetZoneNames returns the names of all zones with curated map defaults
func GetZoneNames() []string {
	names := make([]string, len(KnownZones))
	for i, zone := range KnownZones {
		names[i] = zone.Name
	}
	return names
}

// GetZoneByName returns a zone's map defaults by name
func GetZoneByName(name string) *Zone {
	for _, zone := range KnownZones {
		if zone.Name == name {
			return &zone
		}
	}
	return nil
}
