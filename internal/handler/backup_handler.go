package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fabiodmueller-cmd/CASSINO/internal/middleware"
	"github.com/fabiodmueller-cmd/CASSINO/internal/service"
	"github.com/fabiodmueller-cmd/CASSINO/pkg/response"

	"github.com/gin-gonic/gin"
)

type BackupHandler struct {
	backupService service.BackupService
}

func NewBackupHandler(backupService service.BackupService) *BackupHandler {
	return &BackupHandler{backupService: backupService}
}

func (h *BackupHandler) RegisterRoutes(router *gin.RouterGroup) {
	backup := router.Group("/backup")
	{
		backup.GET("/export", h.Export)
		backup.POST("/import", h.Import)
	}
}

// Export downloads the whole dataset as one JSON document
// @Summary      Export backup
// @Tags         backup
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  service.Backup
// @Router       /api/backup/export [get]
func (h *BackupHandler) Export(c *gin.Context) {
	backup, err := h.backupService.Export(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	filename := fmt.Sprintf("backup-%s.json", backup.ExportedAt.Format("20060102-150405"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.JSON(http.StatusOK, backup)
}

// Import restores a backup, either as the JSON body or as a multipart "file"
// @Summary      Import backup
// @Description  Upserts every entity by id and settles the readings again against the imported configuration
// @Tags         backup
// @Security     BearerAuth
// @Accept       json
// @Accept       multipart/form-data
// @Produce      json
// @Param        payload  body      service.Backup  false  "Backup document"
// @Success      200      {object}  response.Response{data=service.BackupImportResult}
// @Failure      400      {object}  response.Response
// @Router       /api/backup/import [post]
func (h *BackupHandler) Import(c *gin.Context) {
	var backup service.Backup
	if fileHeader, err := c.FormFile("file"); err == nil {
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "cannot open file: "+err.Error()))
			return
		}
		defer file.Close()
		if err := json.NewDecoder(file).Decode(&backup); err != nil {
			badPayload(c, err)
			return
		}
	} else if err := c.ShouldBindJSON(&backup); err != nil {
		badPayload(c, err)
		return
	}

	result, err := h.backupService.Import(c.Request.Context(), middleware.UserID(c), backup)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
