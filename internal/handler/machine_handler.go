package handler

import (
	"net/http"
	"strconv"

	"github.com/fabiodmueller-cmd/CASSINO/internal/middleware"
	"github.com/fabiodmueller-cmd/CASSINO/internal/service"
	"github.com/fabiodmueller-cmd/CASSINO/internal/settlement"
	"github.com/fabiodmueller-cmd/CASSINO/pkg/pagination"
	"github.com/fabiodmueller-cmd/CASSINO/pkg/response"

	"github.com/gin-gonic/gin"
)

type MachineHandler struct {
	machineService service.MachineService
}

func NewMachineHandler(machineService service.MachineService) *MachineHandler {
	return &MachineHandler{machineService: machineService}
}

func (h *MachineHandler) RegisterRoutes(router *gin.RouterGroup) {
	machines := router.Group("/machines")
	{
		machines.GET("", h.ListMachines)
		machines.GET("/:id", h.GetMachine)
		machines.POST("", h.CreateMachine)
		machines.PUT("/:id", h.UpdateMachine)
		machines.DELETE("/:id", h.DeleteMachine)
	}
}

// ListMachines returns paginated machines filtered by client, region or status
// @Summary      List machines
// @Tags         machines
// @Security     BearerAuth
// @Produce      json
// @Param        page       query     int     false  "Page number (default: 1)"
// @Param        limit      query     int     false  "Items per page (default: 20)"
// @Param        search     query     string  false  "Search by code or name"
// @Param        client_id  query     string  false  "Owning client"
// @Param        region_id  query     string  false  "Region"
// @Param        active     query     bool    false  "Only active (true) or inactive (false)"
// @Success      200        {object}  response.Response{data=[]model.Machine}
// @Failure      400        {object}  response.Response
// @Router       /api/machines [get]
func (h *MachineHandler) ListMachines(c *gin.Context) {
	p := pagination.Parse(c)

	query := service.MachineListQuery{
		Search:   c.Query("search"),
		ClientID: c.Query("client_id"),
		RegionID: c.Query("region_id"),
	}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(c, settlement.Invalid("active", "must be true or false"))
			return
		}
		query.Active = &active
	}

	machines, total, err := h.machineService.GetMachines(c.Request.Context(), query, p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, machines, p.Page, p.Limit, total))
}

// @Summary      Get machine
// @Tags         machines
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Machine ID"
// @Success      200  {object}  response.Response{data=model.Machine}
// @Failure      404  {object}  response.Response
// @Router       /api/machines/{id} [get]
func (h *MachineHandler) GetMachine(c *gin.Context) {
	machine, err := h.machineService.GetMachine(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, machine))
}

// @Summary      Create machine
// @Tags         machines
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateMachineRequest  true  "Machine payload"
// @Success      201      {object}  response.Response{data=model.Machine}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/machines [post]
func (h *MachineHandler) CreateMachine(c *gin.Context) {
	var req service.CreateMachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}

	machine, err := h.machineService.CreateMachine(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, machine))
}

// @Summary      Update machine
// @Tags         machines
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                        true  "Machine ID"
// @Param        payload  body      service.UpdateMachineRequest  true  "Update payload"
// @Success      200      {object}  response.Response{data=model.Machine}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/machines/{id} [put]
func (h *MachineHandler) UpdateMachine(c *gin.Context) {
	var req service.UpdateMachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}

	machine, err := h.machineService.UpdateMachine(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, machine))
}

func (h *MachineHandler) DeleteMachine(c *gin.Context) {
	if err := h.machineService.DeleteMachine(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Machine deleted successfully"}))
}
