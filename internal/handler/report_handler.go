package handler

import (
	"net/http"
	"strconv"

	"github.com/fabiodmueller-cmd/CASSINO/internal/export"
	"github.com/fabiodmueller-cmd/CASSINO/internal/service"
	"github.com/fabiodmueller-cmd/CASSINO/internal/settlement"
	"github.com/fabiodmueller-cmd/CASSINO/pkg/response"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	reportService service.ReportService
}

func NewReportHandler(reportService service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

func (h *ReportHandler) RegisterRoutes(router *gin.RouterGroup) {
	reports := router.Group("/reports")
	{
		reports.GET("/dashboard", h.GetDashboard)
		reports.GET("/top-machines", h.GetTopMachines)
		reports.GET("/by-machine/:id", h.GetMachineReport)
		reports.GET("/by-client/:id", h.GetClientReport)
		reports.GET("/by-client/:id/receipt", h.GetReceipt)
		reports.GET("/by-region/:id", h.GetRegionReport)
	}
}

func reportRange(c *gin.Context) service.ReportRange {
	return service.ReportRange{From: c.Query("from"), To: c.Query("to")}
}

// GetDashboard returns global totals and the top machines
// @Summary      Dashboard
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Param        from  query     string  false  "From date"
// @Param        to    query     string  false  "To date, inclusive"
// @Success      200   {object}  response.Response{data=model.DashboardTotals}
// @Router       /api/reports/dashboard [get]
func (h *ReportHandler) GetDashboard(c *gin.Context) {
	dash, err := h.reportService.GetDashboard(c.Request.Context(), reportRange(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, dash))
}

// GetTopMachines ranks machines by gross revenue
// @Summary      Top machines
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Param        n     query     int     false  "How many (default 5)"
// @Param        from  query     string  false  "From date"
// @Param        to    query     string  false  "To date, inclusive"
// @Success      200   {object}  response.Response{data=[]model.MachineRanking}
// @Router       /api/reports/top-machines [get]
func (h *ReportHandler) GetTopMachines(c *gin.Context) {
	n, err := strconv.Atoi(c.DefaultQuery("n", strconv.Itoa(settlement.DefaultTopN)))
	if err != nil {
		writeError(c, settlement.Invalid("n", "must be an integer"))
		return
	}

	top, err := h.reportService.GetTopMachines(c.Request.Context(), n, reportRange(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, top))
}

// @Summary      Machine report
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Param        id    path      string  true   "Machine ID"
// @Param        from  query     string  false  "From date"
// @Param        to    query     string  false  "To date, inclusive"
// @Success      200   {object}  response.Response{data=model.MachineReport}
// @Failure      404   {object}  response.Response
// @Router       /api/reports/by-machine/{id} [get]
func (h *ReportHandler) GetMachineReport(c *gin.Context) {
	report, err := h.reportService.GetMachineReport(c.Request.Context(), c.Param("id"), reportRange(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}

// @Summary      Client report
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Param        id    path      string  true   "Client ID"
// @Param        from  query     string  false  "From date"
// @Param        to    query     string  false  "To date, inclusive"
// @Success      200   {object}  response.Response{data=model.ClientReport}
// @Failure      404   {object}  response.Response
// @Router       /api/reports/by-client/{id} [get]
func (h *ReportHandler) GetClientReport(c *gin.Context) {
	report, err := h.reportService.GetClientReport(c.Request.Context(), c.Param("id"), reportRange(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}

// GetReceipt returns the receipt of the round settled at a client on one day
// @Summary      Client receipt
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Produce      application/pdf
// @Param        id      path      string  true   "Client ID"
// @Param        date    query     string  false  "Day of the round (default today)"
// @Param        format  query     string  false  "json (default) or pdf"
// @Success      200     {object}  response.Response{data=model.Receipt}
// @Failure      404     {object}  response.Response
// @Router       /api/reports/by-client/{id}/receipt [get]
func (h *ReportHandler) GetReceipt(c *gin.Context) {
	switch c.DefaultQuery("format", "json") {
	case "json":
		receipt, err := h.reportService.GetReceipt(c.Request.Context(), c.Param("id"), c.Query("date"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.Success(http.StatusOK, receipt))
	case export.FormatPDF:
		out, err := h.reportService.RenderReceiptPDF(c.Request.Context(), c.Param("id"), c.Query("date"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="receipt.pdf"`)
		c.Data(http.StatusOK, export.ContentType(export.FormatPDF), out)
	default:
		writeError(c, settlement.Invalid("format", "must be one of: json, pdf"))
	}
}

// @Summary      Region report
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Param        id    path      string  true   "Region ID"
// @Param        from  query     string  false  "From date"
// @Param        to    query     string  false  "To date, inclusive"
// @Success      200   {object}  response.Response{data=model.RegionReport}
// @Failure      404   {object}  response.Response
// @Router       /api/reports/by-region/{id} [get]
func (h *ReportHandler) GetRegionReport(c *gin.Context) {
	report, err := h.reportService.GetRegionReport(c.Request.Context(), c.Param("id"), reportRange(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}
