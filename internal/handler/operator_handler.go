package handler

import (
	"net/http"

	"github.com/fabiodmueller-cmd/CASSINO/internal/middleware"
	"github.com/fabiodmueller-cmd/CASSINO/internal/service"
	"github.com/fabiodmueller-cmd/CASSINO/pkg/pagination"
	"github.com/fabiodmueller-cmd/CASSINO/pkg/response"

	"github.com/gin-gonic/gin"
)

type OperatorHandler struct {
	operatorService service.OperatorService
}

func NewOperatorHandler(operatorService service.OperatorService) *OperatorHandler {
	return &OperatorHandler{operatorService: operatorService}
}

func (h *OperatorHandler) RegisterRoutes(router *gin.RouterGroup) {
	operators := router.Group("/operators")
	{
		operators.GET("", h.ListOperators)
		operators.GET("/:id", h.GetOperator)
		operators.POST("", h.CreateOperator)
		operators.PUT("/:id", h.UpdateOperator)
		operators.DELETE("/:id", h.DeleteOperator)
	}
}

// @Summary      List operators
// @Tags         operators
// @Security     BearerAuth
// @Produce      json
// @Param        page    query     int     false  "Page number (default: 1)"
// @Param        limit   query     int     false  "Items per page (default: 20)"
// @Param        search  query     string  false  "Search by name"
// @Success      200     {object}  response.Response{data=[]model.Operator}
// @Router       /api/operators [get]
func (h *OperatorHandler) ListOperators(c *gin.Context) {
	p := pagination.Parse(c)

	operators, total, err := h.operatorService.GetOperators(c.Request.Context(), c.Query("search"), p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, operators, p.Page, p.Limit, total))
}

func (h *OperatorHandler) GetOperator(c *gin.Context) {
	operator, err := h.operatorService.GetOperator(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, operator))
}

// @Summary      Create operator
// @Tags         operators
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateOperatorRequest  true  "Operator payload"
// @Success      201      {object}  response.Response{data=model.Operator}
// @Failure      400      {object}  response.Response
// @Router       /api/operators [post]
func (h *OperatorHandler) CreateOperator(c *gin.Context) {
	var req service.CreateOperatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}

	operator, err := h.operatorService.CreateOperator(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, operator))
}

func (h *OperatorHandler) UpdateOperator(c *gin.Context) {
	var req service.UpdateOperatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}

	operator, err := h.operatorService.UpdateOperator(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, operator))
}

func (h *OperatorHandler) DeleteOperator(c *gin.Context) {
	if err := h.operatorService.DeleteOperator(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Operator deleted successfully"}))
}
