package handler

import (
	"net/http"

	"github.com/fabiodmueller-cmd/CASSINO/internal/middleware"
	"github.com/fabiodmueller-cmd/CASSINO/internal/service"
	"github.com/fabiodmueller-cmd/CASSINO/pkg/response"

	"github.com/gin-gonic/gin"
)

type LinkHandler struct {
	linkService service.LinkService
}

func NewLinkHandler(linkService service.LinkService) *LinkHandler {
	return &LinkHandler{linkService: linkService}
}

func (h *LinkHandler) RegisterRoutes(router *gin.RouterGroup) {
	links := router.Group("/links")
	{
		links.GET("", h.ListLinks)
		links.POST("", h.CreateLink)
		links.DELETE("/:id", h.DeleteLink)
	}
}

// @Summary      List client-operator links
// @Tags         links
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.LinkResponse}
// @Router       /api/links [get]
func (h *LinkHandler) ListLinks(c *gin.Context) {
	links, err := h.linkService.GetLinks(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, links))
}

// CreateLink makes an operator responsible for a client. A client has at most one link.
// @Summary      Create link
// @Tags         links
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateLinkRequest  true  "Link payload"
// @Success      201      {object}  response.Response{data=model.Link}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/links [post]
func (h *LinkHandler) CreateLink(c *gin.Context) {
	var req service.CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}

	link, err := h.linkService.CreateLink(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, link))
}

func (h *LinkHandler) DeleteLink(c *gin.Context) {
	if err := h.linkService.DeleteLink(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Link deleted successfully"}))
}
