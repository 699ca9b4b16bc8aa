package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fabiodmueller-cmd/CASSINO/internal/export"
	"github.com/fabiodmueller-cmd/CASSINO/internal/middleware"
	"github.com/fabiodmueller-cmd/CASSINO/internal/service"
	"github.com/fabiodmueller-cmd/CASSINO/internal/settlement"
	"github.com/fabiodmueller-cmd/CASSINO/pkg/pagination"
	"github.com/fabiodmueller-cmd/CASSINO/pkg/response"

	"github.com/gin-gonic/gin"
)

type ReadingHandler struct {
	readingService service.ReadingService
}

func NewReadingHandler(readingService service.ReadingService) *ReadingHandler {
	return &ReadingHandler{readingService: readingService}
}

func (h *ReadingHandler) RegisterRoutes(router *gin.RouterGroup) {
	readings := router.Group("/readings")
	{
		readings.GET("", h.ListReadings)
		readings.GET("/export", h.ExportReadings)
		readings.POST("", h.CreateReading)
		readings.POST("/batch", h.CreateBatch)
		readings.POST("/import", h.ImportReadings)
		readings.DELETE("/:id", h.DeleteReading)
	}
}

func listQuery(c *gin.Context) service.ReadingListQuery {
	return service.ReadingListQuery{
		MachineID: c.Query("machine_id"),
		ClientID:  c.Query("client_id"),
		From:      c.Query("from"),
		To:        c.Query("to"),
	}
}

// CreateReading settles one set of meters for a machine
// @Summary      Create reading
// @Description  Computes gross, client and operator commission and net from the four meters and stores the result
// @Tags         readings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateReadingRequest  true  "Meters"
// @Success      201      {object}  response.Response{data=service.ReadingResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/readings [post]
func (h *ReadingHandler) CreateReading(c *gin.Context) {
	var req service.CreateReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}

	reading, err := h.readingService.CreateReading(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, reading))
}

// CreateBatch settles a full round at one client. Nothing is stored if any machine fails.
// @Summary      Settle a round
// @Tags         readings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.BatchReadingRequest  true  "Round"
// @Success      201      {object}  response.Response{data=model.Receipt}
// @Failure      400      {object}  response.Response
// @Router       /api/readings/batch [post]
func (h *ReadingHandler) CreateBatch(c *gin.Context) {
	var req service.BatchReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badPayload(c, err)
		return
	}

	receipt, err := h.readingService.CreateBatch(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, receipt))
}

func parseDelimiter(raw string) (rune, error) {
	switch raw {
	case "":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(raw)
	if size != len(raw) {
		return 0, settlement.Invalid("delimiter", "must be a single character")
	}
	return r, nil
}

// ImportReadings settles every row of an uploaded CSV
// @Summary      Import readings from CSV
// @Description  Columns: machine_id, previous_in, previous_out, current_in, current_out and optional reading_date. Bad rows are reported and skipped.
// @Tags         readings
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        file       formData  file    true   "CSV file"
// @Param        encoding   formData  string  false  "utf-8 (default) or windows-1252"
// @Param        delimiter  formData  string  false  "Column separator (default ,)"
// @Success      200        {object}  response.Response{data=service.ImportResult}
// @Failure      400        {object}  response.Response
// @Router       /api/readings/import [post]
func (h *ReadingHandler) ImportReadings(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "file is required: "+err.Error()))
		return
	}
	delimiter, err := parseDelimiter(c.PostForm("delimiter"))
	if err != nil {
		writeError(c, err)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "cannot open file: "+err.Error()))
		return
	}
	defer file.Close()

	result, err := h.readingService.ImportReadings(c.Request.Context(), middleware.UserID(c), service.ImportFile{
		Reader:    file,
		Encoding:  c.PostForm("encoding"),
		Delimiter: delimiter,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// ListReadings returns readings newest first
// @Summary      List readings
// @Tags         readings
// @Security     BearerAuth
// @Produce      json
// @Param        page        query     int     false  "Page number (default: 1)"
// @Param        limit       query     int     false  "Items per page (default: 20)"
// @Param        machine_id  query     string  false  "Machine"
// @Param        client_id   query     string  false  "Client at settlement time"
// @Param        from        query     string  false  "From date (2006-01-02 or RFC3339)"
// @Param        to          query     string  false  "To date, inclusive"
// @Success      200         {object}  response.Response{data=[]service.ReadingResponse}
// @Failure      400         {object}  response.Response
// @Router       /api/readings [get]
func (h *ReadingHandler) ListReadings(c *gin.Context) {
	p := pagination.Parse(c)

	readings, total, err := h.readingService.GetReadings(c.Request.Context(), listQuery(c), p.Page, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, readings, p.Page, p.Limit, total))
}

// ExportReadings downloads the filtered readings as CSV or XLSX
// @Summary      Export readings
// @Tags         readings
// @Security     BearerAuth
// @Produce      octet-stream
// @Param        format      query  string  false  "csv (default) or xlsx"
// @Param        machine_id  query  string  false  "Machine"
// @Param        client_id   query  string  false  "Client"
// @Param        from        query  string  false  "From date"
// @Param        to          query  string  false  "To date"
// @Success      200
// @Failure      400  {object}  response.Response
// @Router       /api/readings/export [get]
func (h *ReadingHandler) ExportReadings(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", export.FormatCSV))

	out, err := h.readingService.ExportReadings(c.Request.Context(), listQuery(c), format)
	if err != nil {
		writeError(c, err)
		return
	}

	filename := fmt.Sprintf("readings-%s.%s", time.Now().UTC().Format("20060102"), format)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, export.ContentType(format), out)
}

// @Summary      Delete reading
// @Tags         readings
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Reading ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/readings/{id} [delete]
func (h *ReadingHandler) DeleteReading(c *gin.Context) {
	if err := h.readingService.DeleteReading(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Reading deleted successfully"}))
}
