package api

import (
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"terrascope/server/config"
	"terrascope/server/internal/database"
	"terrascope/server/internal/geometry"
	"terrascope/server/internal/ingest"
	"terrascope/server/internal/query"
)

type Handler struct {
	db          *database.Database
	logger      *logrus.Logger
	cfg         *config.Config
	hullManager *geometry.ZoneHullManager
	importer    *ingest.Manager
	geocoder    database.Geocoder
}

func NewHandler(db *database.Database, cfg *config.Config, importer *ingest.Manager, geocoder database.Geocoder, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Handler{
		db:          db,
		logger:      logger,
		cfg:         cfg,
		hullManager: geometry.NewZoneHullManager(db.GetDB(), logger),
		importer:    importer,
		geocoder:    geocoder,
	}
}

// parseFilters reads the optional filter parameters. Absent, sentinel and
// malformed values all mean "no constraint", never an error.
func parseFilters(c *gin.Context) query.Filters {
	f := query.Filters{
		Search: c.Query("search"),
		Zone:   c.Query("zone"),
	}

	if v := c.Query("min_price"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			f.MinPrice = &n
		}
	}
	if v := c.Query("max_price"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			f.MaxPrice = &n
		}
	}
	if v := c.Query("min_m2"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			f.MinM2 = &n
		}
	}
	if v := c.Query("max_m2"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			f.MaxM2 = &n
		}
	}
	if v := c.Query("sold"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			f.Sold = &b
		}
	}

	return f
}

func parseSort(c *gin.Context) query.Sort {
	s := query.Sort{
		Field:     c.DefaultQuery("sort_field", query.DefaultSort.Field),
		Direction: c.DefaultQuery("sort_direction", query.DefaultSort.Direction),
	}
	return s
}

func intQuery(c *gin.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.DefaultQuery(name, strconv.Itoa(fallback)))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

// storeError maps the store's error taxonomy onto HTTP statuses
func (h *Handler) storeError(c *gin.Context, err error, what string) {
	switch {
	case errors.Is(err, database.ErrInvalidID):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property ID"})
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
	default:
		h.logger.WithError(err).Error("Failed to " + what)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + what, "details": err.Error()})
	}
}

func (h *Handler) GetProperties(c *gin.Context) {
	filters := parseFilters(c)
	sort := parseSort(c)
	limit := intQuery(c, "limit", h.cfg.Listings.DefaultLimit)
	offset := intQuery(c, "offset", 0)

	properties, err := h.db.GetProperties(filters, sort, limit, offset)
	if err != nil {
		h.storeError(c, err, "fetch properties")
		return
	}

	c.JSON(http.StatusOK, properties)
}

func (h *Handler) GetPropertiesForMap(c *gin.Context) {
	filters := parseFilters(c)
	limit := intQuery(c, "limit", h.cfg.Listings.MapLimit)

	properties, err := h.db.GetPropertiesForMap(filters, limit)
	if err != nil {
		h.storeError(c, err, "fetch map properties")
		return
	}

	c.JSON(http.StatusOK, properties)
}

func (h *Handler) GetPropertyByID(c *gin.Context) {
	property, err := h.db.GetPropertyByID(c.Param("id"))
	if err != nil {
		h.storeError(c, err, "fetch property")
		return
	}

	c.JSON(http.StatusOK, property)
}

func (h *Handler) GetPropertyStats(c *gin.Context) {
	stats, err := h.db.GetPropertyStats()
	if err != nil {
		h.storeError(c, err, "fetch property stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetFilterValues(c *gin.Context) {
	zones, err := h.db.GetUniqueZones()
	if err != nil {
		h.storeError(c, err, "fetch filter values")
		return
	}

	c.JSON(http.StatusOK, gin.H{"zones": zones})
}

func (h *Handler) BlacklistProperty(c *gin.Context) {
	result, err := h.db.BlacklistProperty(c.Param("id"))
	if err != nil {
		h.storeError(c, err, "remove property")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Property successfully removed from listings",
		"property": result,
	})
}

func (h *Handler) GetZoneHulls(c *gin.Context) {
	fc, err := h.hullManager.BuildFeatureCollection()
	if err != nil {
		h.storeError(c, err, "build zone hulls")
		return
	}

	c.JSON(http.StatusOK, fc)
}

func (h *Handler) RunImport(c *gin.Context) {
	imported, err := h.importer.ImportFeeds()
	if err != nil {
		h.logger.WithError(err).Error("Failed to import feeds")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to import feeds", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"imported": imported,
	})
}

func (h *Handler) UpdateCoordinates(c *gin.Context) {
	updated, err := h.db.UpdateMissingCoordinates(h.geocoder)
	if err != nil {
		h.logger.WithError(err).Error("Failed to update coordinates")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update coordinates", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"updated": updated,
	})
}

func (h *Handler) RefreshMarketStats(c *gin.Context) {
	if err := h.db.RefreshMarketStats(); err != nil {
		h.logger.WithError(err).Error("Failed to refresh market stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh market stats", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
