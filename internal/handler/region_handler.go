package handler

import (
	"net/http"

	"github.com/fabiodmueller-cmd/CASSINO/internal/middleware"
	"github.com/fabiodmueller-cmd/CASSINO/internal/service"
	"github.com/fabiodmueller-cmd/CASSINO/pkg/pagination"
	"github.com/fabiodmueller-cmd/CASSINO/pkg/response"

	"github.com/gin-gonic/gin"
)

type RegionHandler struct {
	regionService service.RegionService
}

func NewRegionHandler(regionService service.RegionService) *RegionHandler {
	return &RegionHandler{regionService: regionService}
}

func (h *RegionHandler) RegisterRoutes(router *gin.RouterGroup) {
	regions := router.Group("/regions")
	{
		regions.GET("", h.ListRegions)
		regions.POST("", h.CreateRegion)
		regions.PUT("/:id", h.UpdateRegion)
		regions.DELETE("/:id", h.DeleteRegion)
	}
}

// @Summary      List regions
// @Tags         regions
// @Security     BearerAuth
// @Produce      json
// @Param        page    query     int     false  "Page number (default: 1)"
// @Param        limit   query     int     false  "Items per page (default: 20)"
// @Param        search  query     string  false  "Search by name"
// @Success      200     {object}  response.Response{data=[]model.Region}
// @Router       /api/regions [get]
func (h *RegionHandler) ListRegions(c *gin.Context) {
	p := pagination.Parse(c)

	regions, total, err := h.regionService.GetRegions(c.Request.Context(), c.Query("search"), p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, regions, p.Page, p.Limit, total))
}

// @Summary      Create region
// @Tags         regions
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.RegionRequest  true  "Region payload"
// @Success      201      {object}  response.Response{data=model.Region}
// @Failure      400      {object}  response.Response
// @Router       /api/regions [post]
func (h *RegionHandler) CreateRegion(c *gin.Context) {
	var req service.RegionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}

	region, err := h.regionService.CreateRegion(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, region))
}

func (h *RegionHandler) UpdateRegion(c *gin.Context) {
	var req service.RegionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}

	region, err := h.regionService.UpdateRegion(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, region))
}

func (h *RegionHandler) DeleteRegion(c *gin.Context) {
	if err := h.regionService.DeleteRegion(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Region deleted successfully"}))
}
