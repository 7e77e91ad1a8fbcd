package api

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	api := router.Group("/api")
	{
		api.GET("/properties", handler.GetProperties)
		api.GET("/properties/map", handler.GetPropertiesForMap)
		api.GET("/properties/filters", handler.GetFilterValues)
		api.GET("/properties/stats", handler.GetPropertyStats)
		api.GET("/properties/zones/hulls", handler.GetZoneHulls)
		api.GET("/properties/:id", handler.GetPropertyByID)
		api.PUT("/properties/:id/blacklist", handler.BlacklistProperty)

		api.POST("/import", handler.RunImport)
		api.POST("/update-coordinates", handler.UpdateCoordinates)
		api.POST("/refresh-market", handler.RefreshMarketStats)
	}
}
