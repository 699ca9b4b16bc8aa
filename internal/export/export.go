// Package export renders readings and receipts into downloadable files.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/fabiodmueller-cmd/CASSINO/internal/model"
	"github.com/fabiodmueller-cmd/CASSINO/internal/settlement"

	"github.com/go-gota/gota/dataframe"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

const dateLayout = "2006-01-02 15:04"

// ContentType returns the MIME type served for a format.
func ContentType(format string) string {
	switch format {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// ReadingRow is one reading joined with the names shown in reports.
type ReadingRow struct {
	ReadingDate        time.Time
	MachineCode        string
	MachineName        string
	ClientName         string
	OperatorName       string
	PreviousIn         decimal.Decimal
	PreviousOut        decimal.Decimal
	CurrentIn          decimal.Decimal
	CurrentOut         decimal.Decimal
	GrossValue         decimal.Decimal
	ClientCommission   decimal.Decimal
	OperatorCommission decimal.Decimal
	NetValue           decimal.Decimal
}

var readingHeader = []string{
	"reading_date", "machine_code", "machine_name", "client", "operator",
	"previous_in", "previous_out", "current_in", "current_out",
	"gross_value", "client_commission", "operator_commission", "net_value",
}

func money(d decimal.Decimal) string {
	return d.StringFixed(settlement.MoneyPlaces)
}

func (r ReadingRow) record() []string {
	return []string{
		r.ReadingDate.Format(dateLayout), r.MachineCode, r.MachineName, r.ClientName, r.OperatorName,
		r.PreviousIn.String(), r.PreviousOut.String(), r.CurrentIn.String(), r.CurrentOut.String(),
		money(r.GrossValue), money(r.ClientCommission), money(r.OperatorCommission), money(r.NetValue),
	}
}

// ReadingsCSV writes rows with a header line. Every cell is written as text so
// money keeps its two decimals.
func ReadingsCSV(rows []ReadingRow) ([]byte, error) {
	var buf bytes.Buffer
	if len(rows) == 0 {
		// gota cannot build a frame without rows
		buf.WriteString(joinCSV(readingHeader))
		return buf.Bytes(), nil
	}

	records := make([][]string, 0, len(rows)+1)
	records = append(records, readingHeader)
	for _, r := range rows {
		records = append(records, r.record())
	}

	df := dataframe.LoadRecords(records, dataframe.DetectTypes(false), dataframe.HasHeader(true))
	if df.Err != nil {
		return nil, fmt.Errorf("build readings frame: %w", df.Err)
	}
	if err := df.WriteCSV(&buf); err != nil {
		return nil, fmt.Errorf("write readings csv: %w", err)
	}
	return buf.Bytes(), nil
}

func joinCSV(cells []string) string {
	var b bytes.Buffer
	for i, c := range cells {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(c)
	}
	b.WriteByte('\n')
	return b.String()
}

// ReadingsXLSX renders a summary sheet with the totals and a readings sheet.
func ReadingsXLSX(rows []ReadingRow, totals settlement.Totals) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	readingsSheet := "readings"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(readingsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Readings report")
	_ = f.SetCellValue(summarySheet, "A3", "Readings")
	_ = f.SetCellValue(summarySheet, "B3", totals.Count)
	_ = f.SetCellValue(summarySheet, "A4", "Total gross")
	_ = f.SetCellValue(summarySheet, "B4", money(totals.Gross))
	_ = f.SetCellValue(summarySheet, "A5", "Client commission")
	_ = f.SetCellValue(summarySheet, "B5", money(totals.ClientCommission))
	_ = f.SetCellValue(summarySheet, "A6", "Operator commission")
	_ = f.SetCellValue(summarySheet, "B6", money(totals.OperatorCommission))
	_ = f.SetCellValue(summarySheet, "A7", "Total net")
	_ = f.SetCellValue(summarySheet, "B7", money(totals.Net))

	for col, name := range readingHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(readingsSheet, cell, name)
	}
	for i, r := range rows {
		for col, value := range r.record() {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(readingsSheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReceiptPDF renders the receipt handed to a client at the end of a round.
func ReceiptPDF(receipt model.Receipt) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.Cell(0, 8, "Settlement Receipt")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, tr(fmt.Sprintf("Client: %s", receipt.ClientName)))
	pdf.Ln(5)
	if receipt.OperatorName != "" {
		pdf.Cell(0, 6, tr(fmt.Sprintf("Operator: %s", receipt.OperatorName)))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Date: %s", receipt.Date.Format("2006-01-02")))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(30, 6, "Code", "1", 0, "C", false, 0, "")
	pdf.CellFormat(70, 6, "Machine", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Gross", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Net", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, line := range receipt.Lines {
		pdf.CellFormat(30, 6, tr(line.MachineCode), "1", 0, "L", false, 0, "")
		pdf.CellFormat(70, 6, tr(line.MachineName), "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, money(line.GrossValue), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, money(line.NetValue), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.Cell(0, 6, fmt.Sprintf("Total gross: %s", money(receipt.TotalGross)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Client commission: %s", money(receipt.TotalClientCommission)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Operator commission: %s", money(receipt.TotalOperatorCommission)))
	pdf.Ln(5)
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Total net: %s", money(receipt.TotalNet)))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
