package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fabiodmueller-cmd/CASSINO/internal/metrics"
	"github.com/fabiodmueller-cmd/CASSINO/internal/model"
	"github.com/fabiodmueller-cmd/CASSINO/internal/settlement"
	ws "github.com/fabiodmueller-cmd/CASSINO/internal/websocket"

	"github.com/go-gota/gota/dataframe"
	"github.com/google/uuid"
	"golang.org/x/text/encoding/charmap"
)

// EncodingWindows1252 is accepted for spreadsheets exported by legacy office tools.
const EncodingWindows1252 = "windows-1252"

var requiredImportColumns = []string{"machine_id", "previous_in", "previous_out", "current_in", "current_out"}

// ImportFile is an uploaded CSV of readings, one row per machine.
type ImportFile struct {
	Reader    io.Reader
	Encoding  string // "" for UTF-8
	Delimiter rune   // 0 for ','
}

type ImportResult struct {
	Imported int      `json:"imported"`
	Errors   []string `json:"errors"`
}

func readImportFrame(file ImportFile) (dataframe.DataFrame, error) {
	src := file.Reader
	switch strings.ToLower(file.Encoding) {
	case "", "utf-8", "utf8":
	case EncodingWindows1252, "cp1252":
		src = charmap.Windows1252.NewDecoder().Reader(src)
	default:
		return dataframe.DataFrame{}, settlement.Invalid("encoding", "unsupported encoding %q", file.Encoding)
	}

	delimiter := file.Delimiter
	if delimiter == 0 {
		delimiter = ','
	}

	df := dataframe.ReadCSV(src,
		dataframe.WithDelimiter(delimiter),
		dataframe.WithLazyQuotes(true),
		dataframe.DetectTypes(false),
		dataframe.NaNValues(nil),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, settlement.Invalid("file", "cannot read csv: %v", df.Err)
	}

	present := make(map[string]bool)
	for _, name := range df.Names() {
		present[name] = true
	}
	for _, name := range requiredImportColumns {
		if !present[name] {
			return dataframe.DataFrame{}, settlement.Invalid("file", "missing column %q", name)
		}
	}
	return df, nil
}

func column(df dataframe.DataFrame, name string) []string {
	for _, n := range df.Names() {
		if n == name {
			return df.Col(name).Records()
		}
	}
	return nil
}

// ImportReadings settles every row on its own. Rows that fail are reported as
// "row N: reason" (N counts data rows from 1) and skipped; the rest are
// written in one transaction.
func (s *readingService) ImportReadings(ctx context.Context, userID string, file ImportFile) (ImportResult, error) {
	start := time.Now()

	df, err := readImportFrame(file)
	if err != nil {
		return ImportResult{}, err
	}

	machineIDs := column(df, "machine_id")
	previousIn := column(df, "previous_in")
	previousOut := column(df, "previous_out")
	currentIn := column(df, "current_in")
	currentOut := column(df, "current_out")
	dates := column(df, "reading_date")

	result := ImportResult{Errors: []string{}}
	good := make([]settled, 0, df.Nrow())
	for i := 0; i < df.Nrow(); i++ {
		row := i + 1

		m, err := parseMeterRow(previousIn[i], previousOut[i], currentIn[i], currentOut[i])
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", row, err))
			metrics.IncSettlementError("validation")
			continue
		}

		var readingDate time.Time
		if dates != nil {
			if readingDate, err = ParseDate("reading_date", dates[i]); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", row, err))
				metrics.IncSettlementError("validation")
				continue
			}
		}

		res, err := s.settle(ctx, machineIDs[i], m, readingDate)
		if err != nil {
			if rejectReason(err) != "validation" {
				return ImportResult{}, fmt.Errorf("row %d: %w", row, err)
			}
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", row, err))
			metrics.IncSettlementError("validation")
			continue
		}
		good = append(good, res)
	}

	if len(good) == 0 {
		return result, nil
	}

	readings := make([]model.Reading, len(good))
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		for i := range good {
			readings[i] = good[i].reading
			if err := s.readingRepo.Create(txCtx, &readings[i]); err != nil {
				return fmt.Errorf("failed to create reading for machine %s: %w", good[i].machine.Code, err)
			}
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionImportReadings, "", "", map[string]interface{}{
			"imported": len(readings),
			"rejected": len(result.Errors),
		})
	})
	if err != nil {
		metrics.IncSettlementError("store")
		return ImportResult{}, err
	}

	result.Imported = len(readings)
	metrics.ObserveSettlement(metrics.SourceImport, len(readings), time.Since(start))
	s.publish(ws.EventReadingsImported, uuid.Nil, result)
	return result, nil
}

func parseMeterRow(previousIn, previousOut, currentIn, currentOut string) (settlement.Meters, error) {
	var m settlement.Meters
	var err error
	if m.PreviousIn, err = settlement.ParseMeter("previous_in", previousIn); err != nil {
		return m, err
	}
	if m.PreviousOut, err = settlement.ParseMeter("previous_out", previousOut); err != nil {
		return m, err
	}
	if m.CurrentIn, err = settlement.ParseMeter("current_in", currentIn); err != nil {
		return m, err
	}
	if m.CurrentOut, err = settlement.ParseMeter("current_out", currentOut); err != nil {
		return m, err
	}
	return m, nil
}
