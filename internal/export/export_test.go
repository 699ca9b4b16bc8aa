package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fabiodmueller-cmd/CASSINO/internal/model"
	"github.com/fabiodmueller-cmd/CASSINO/internal/settlement"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleRows() []ReadingRow {
	d := decimal.RequireFromString
	return []ReadingRow{
		{
			ReadingDate:        time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC),
			MachineCode:        "M-01",
			MachineName:        "Fruit",
			ClientName:         "Bar Central",
			OperatorName:       "Ana",
			PreviousIn:         d("1000"),
			PreviousOut:        d("400"),
			CurrentIn:          d("1500"),
			CurrentOut:         d("600"),
			GrossValue:         d("30"),
			ClientCommission:   d("6"),
			OperatorCommission: d("3"),
			NetValue:           d("21"),
		},
	}
}

func TestReadingsCSV(t *testing.T) {
	out, err := ReadingsCSV(sampleRows())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(readingHeader, ","), lines[0])
	assert.Equal(t, "2026-03-02 10:30,M-01,Fruit,Bar Central,Ana,1000,400,1500,600,30.00,6.00,3.00,21.00", lines[1])
}

func TestReadingsCSVEmpty(t *testing.T) {
	out, err := ReadingsCSV(nil)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(readingHeader, ",")+"\n", string(out))
}

func TestReadingsXLSX(t *testing.T) {
	rows := sampleRows()
	totals := settlement.Totals{
		Count:              1,
		Gross:              rows[0].GrossValue,
		ClientCommission:   rows[0].ClientCommission,
		OperatorCommission: rows[0].OperatorCommission,
		Net:                rows[0].NetValue,
	}

	out, err := ReadingsXLSX(rows, totals)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	gross, err := f.GetCellValue("summary", "B4")
	require.NoError(t, err)
	assert.Equal(t, "30.00", gross)

	code, err := f.GetCellValue("readings", "B2")
	require.NoError(t, err)
	assert.Equal(t, "M-01", code)

	net, err := f.GetCellValue("readings", "M2")
	require.NoError(t, err)
	assert.Equal(t, "21.00", net)
}

func TestReceiptPDF(t *testing.T) {
	receipt := model.Receipt{
		ClientID:     uuid.New(),
		ClientName:   "Padaria São João",
		OperatorName: "Ana",
		Date:         time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Lines: []model.ReceiptLine{
			{ReadingID: uuid.New(), MachineCode: "M-01", MachineName: "Fruit", GrossValue: decimal.NewFromInt(30), NetValue: decimal.NewFromInt(21)},
		},
		TotalGross:              decimal.NewFromInt(30),
		TotalClientCommission:   decimal.NewFromInt(6),
		TotalOperatorCommission: decimal.NewFromInt(3),
		TotalNet:                decimal.NewFromInt(21),
	}

	out, err := ReceiptPDF(receipt)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentType(FormatPDF))
	assert.Contains(t, ContentType(FormatCSV), "text/csv")
	assert.Equal(t, "application/octet-stream", ContentType("zip"))
}
