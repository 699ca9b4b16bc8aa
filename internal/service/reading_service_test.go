package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fabiodmueller-cmd/CASSINO/internal/export"
	"github.com/fabiodmueller-cmd/CASSINO/internal/model"
	"github.com/fabiodmueller-cmd/CASSINO/internal/repository"
	"github.com/fabiodmueller-cmd/CASSINO/internal/settlement"
	ws "github.com/fabiodmueller-cmd/CASSINO/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser = "7d4f0c5e-7a48-4f4a-9f0e-3c1b8a9d2e11"

type world struct {
	repos
	client     model.Client
	unlinked   model.Client
	operator   model.Operator
	region     model.Region
	m1         model.Machine
	m2         model.Machine
	stray      model.Machine // belongs to the unlinked client
	hub        *recordingHub
	readingSvc ReadingService
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	v := dec(s)
	return &v
}

// newWorld seeds one linked client with two machines (multipliers 1 and 0.5)
// and one client without a link.
func newWorld(t *testing.T) *world {
	t.Helper()
	ctx := context.Background()
	w := &world{repos: newRepos(), hub: &recordingHub{}}

	w.client = model.Client{Name: "Bar Central", CommissionType: model.CommissionPercentage, CommissionValue: dec("10")}
	w.unlinked = model.Client{Name: "Lanchonete Sol", CommissionType: model.CommissionFixed, CommissionValue: dec("20")}
	w.operator = model.Operator{Name: "Joana", CommissionType: model.CommissionFixed, CommissionValue: dec("5")}
	w.region = model.Region{Name: "Centro"}
	require.NoError(t, w.clients.Create(ctx, &w.client))
	require.NoError(t, w.clients.Create(ctx, &w.unlinked))
	require.NoError(t, w.operators.Create(ctx, &w.operator))
	require.NoError(t, w.regions.Create(ctx, &w.region))

	w.m1 = model.Machine{Code: "M-001", Name: "Fruit", Multiplier: dec("1"), ClientID: w.client.ID, RegionID: w.region.ID, Active: true}
	w.m2 = model.Machine{Code: "M-002", Name: "Poker", Multiplier: dec("0.5"), ClientID: w.client.ID, RegionID: w.region.ID, Active: true}
	w.stray = model.Machine{Code: "M-100", Name: "Bingo", Multiplier: dec("1"), ClientID: w.unlinked.ID, RegionID: w.region.ID, Active: true}
	require.NoError(t, w.machines.Create(ctx, &w.m1))
	require.NoError(t, w.machines.Create(ctx, &w.m2))
	require.NoError(t, w.machines.Create(ctx, &w.stray))

	link := model.Link{ClientID: w.client.ID, OperatorID: w.operator.ID}
	require.NoError(t, w.links.Create(ctx, &link))

	w.readingSvc = NewReadingService(w.repos.readings, w.machines, w.clients, w.operators,
		NewLinkResolver(w.links, w.operators), w.audits, w.tx, w.hub)
	return w
}

// standardMeters gives a raw delta of 300: (1500-1000) - (600-400).
func standardMeters(machineID uuid.UUID) CreateReadingRequest {
	return CreateReadingRequest{
		MachineID:   machineID.String(),
		PreviousIn:  decPtr("1000"),
		PreviousOut: decPtr("400"),
		CurrentIn:   decPtr("1500"),
		CurrentOut:  decPtr("600"),
	}
}

func storedReadings(t *testing.T, w *world) []model.Reading {
	t.Helper()
	all, _, err := w.repos.readings.List(context.Background(), repository.ReadingFilter{})
	require.NoError(t, err)
	return all
}

func TestCreateReading(t *testing.T) {
	ctx := context.Background()

	t.Run("linked client", func(t *testing.T) {
		w := newWorld(t)
		req := standardMeters(w.m1.ID)
		req.ReadingDate = "2024-03-05"

		resp, err := w.readingSvc.CreateReading(ctx, testUser, req)
		require.NoError(t, err)

		assert.Equal(t, "300.00", resp.GrossValue)
		assert.Equal(t, "30.00", resp.ClientCommission)
		assert.Equal(t, "5.00", resp.OperatorCommission)
		assert.Equal(t, "265.00", resp.NetValue)
		require.NotNil(t, resp.OperatorID)
		assert.Equal(t, w.operator.ID, *resp.OperatorID)
		assert.Equal(t, model.CommissionPercentage, resp.ClientCommissionType)
		assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), resp.ReadingDate)

		assert.Len(t, storedReadings(t, w), 1)
		assert.Equal(t, []string{model.ActionCreateReading}, w.audits.actions())
		assert.Equal(t, []string{ws.EventReadingCreated}, w.hub.types())
	})

	t.Run("client without link pays no operator", func(t *testing.T) {
		w := newWorld(t)
		resp, err := w.readingSvc.CreateReading(ctx, testUser, standardMeters(w.stray.ID))
		require.NoError(t, err)

		assert.Equal(t, "300.00", resp.GrossValue)
		assert.Equal(t, "20.00", resp.ClientCommission)
		assert.Equal(t, "0.00", resp.OperatorCommission)
		assert.Equal(t, "280.00", resp.NetValue)
		assert.Nil(t, resp.OperatorID)
		assert.Nil(t, resp.OperatorCommissionType)
	})

	t.Run("later commission change does not touch stored readings", func(t *testing.T) {
		w := newWorld(t)
		_, err := w.readingSvc.CreateReading(ctx, testUser, standardMeters(w.m1.ID))
		require.NoError(t, err)

		changed := w.client
		changed.CommissionValue = dec("50")
		require.NoError(t, w.clients.Update(ctx, &changed))

		stored := storedReadings(t, w)
		require.Len(t, stored, 1)
		assert.Equal(t, "30.00", stored[0].ClientCommission.StringFixed(2))
		assert.Equal(t, "10", stored[0].ClientCommissionValue.String())
	})

	t.Run("rejections", func(t *testing.T) {
		w := newWorld(t)

		missing := standardMeters(w.m1.ID)
		missing.CurrentOut = nil
		unknown := standardMeters(uuid.New())
		badID := standardMeters(w.m1.ID)
		badID.MachineID = "not-an-id"
		badDate := standardMeters(w.m1.ID)
		badDate.ReadingDate = "05/03/2024"
		tooFine := standardMeters(w.m1.ID)
		tooFine.CurrentIn = decPtr("1500.00001")

		for name, req := range map[string]CreateReadingRequest{
			"missing meter":          missing,
			"unknown machine":        unknown,
			"malformed id":           badID,
			"malformed date":         badDate,
			"meter past four places": tooFine,
		} {
			_, err := w.readingSvc.CreateReading(ctx, testUser, req)
			var ve *settlement.ValidationError
			assert.True(t, errors.As(err, &ve), "%s: got %v", name, err)
		}
		assert.Empty(t, storedReadings(t, w))
		assert.Empty(t, w.audits.actions())
		assert.Empty(t, w.hub.types())
	})
}

func TestCreateBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("settles the round and returns a receipt", func(t *testing.T) {
		w := newWorld(t)
		receipt, err := w.readingSvc.CreateBatch(ctx, testUser, BatchReadingRequest{
			ClientID:    w.client.ID.String(),
			ReadingDate: "2024-03-10",
			Readings:    []CreateReadingRequest{standardMeters(w.m1.ID), standardMeters(w.m2.ID)},
		})
		require.NoError(t, err)

		assert.Equal(t, w.client.Name, receipt.ClientName)
		assert.Equal(t, w.operator.Name, receipt.OperatorName)
		require.Len(t, receipt.Lines, 2)
		assert.Equal(t, "M-001", receipt.Lines[0].MachineCode)
		assert.Equal(t, "M-002", receipt.Lines[1].MachineCode)
		assert.Equal(t, "450.00", receipt.TotalGross.StringFixed(2))
		assert.Equal(t, "45.00", receipt.TotalClientCommission.StringFixed(2))
		assert.Equal(t, "10.00", receipt.TotalOperatorCommission.StringFixed(2))
		assert.Equal(t, "395.00", receipt.TotalNet.StringFixed(2))

		stored := storedReadings(t, w)
		require.Len(t, stored, 2)
		for _, r := range stored {
			assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), r.ReadingDate)
		}
		assert.Equal(t, []string{model.ActionSettleRound}, w.audits.actions())
		assert.Len(t, w.hub.types(), 2)
	})

	t.Run("one bad machine rejects the whole round", func(t *testing.T) {
		w := newWorld(t)
		_, err := w.readingSvc.CreateBatch(ctx, testUser, BatchReadingRequest{
			ClientID: w.client.ID.String(),
			Readings: []CreateReadingRequest{standardMeters(w.m1.ID), standardMeters(uuid.New())},
		})
		var ve *settlement.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Contains(t, err.Error(), "readings[1]")
		assert.Empty(t, storedReadings(t, w))
	})

	t.Run("machine of another client", func(t *testing.T) {
		w := newWorld(t)
		_, err := w.readingSvc.CreateBatch(ctx, testUser, BatchReadingRequest{
			ClientID: w.client.ID.String(),
			Readings: []CreateReadingRequest{standardMeters(w.m1.ID), standardMeters(w.stray.ID)},
		})
		var ve *settlement.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Empty(t, storedReadings(t, w))
	})

	t.Run("machine listed twice", func(t *testing.T) {
		w := newWorld(t)
		_, err := w.readingSvc.CreateBatch(ctx, testUser, BatchReadingRequest{
			ClientID: w.client.ID.String(),
			Readings: []CreateReadingRequest{standardMeters(w.m1.ID), standardMeters(w.m1.ID)},
		})
		var ve *settlement.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Contains(t, ve.Message, "listed twice")
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		w := newWorld(t)
		w.store.readingCreateErr = errors.New("disk full")
		w.store.failAfter = 1

		_, err := w.readingSvc.CreateBatch(ctx, testUser, BatchReadingRequest{
			ClientID: w.client.ID.String(),
			Readings: []CreateReadingRequest{standardMeters(w.m1.ID), standardMeters(w.m2.ID)},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disk full")
		assert.Empty(t, w.audits.actions())
		assert.Empty(t, w.hub.types())
	})
}

func importCSV(rows ...string) string {
	return "machine_id,previous_in,previous_out,current_in,current_out,reading_date\n" + strings.Join(rows, "\n") + "\n"
}

func TestImportReadings(t *testing.T) {
	ctx := context.Background()

	t.Run("keeps good rows and reports bad ones", func(t *testing.T) {
		w := newWorld(t)
		body := importCSV(
			fmt.Sprintf("%s,1000,400,1500,600,2024-03-01", w.m1.ID),
			fmt.Sprintf("%s,1,1,1,1,", uuid.New()),
			fmt.Sprintf("%s,abc,0,0,0,", w.m2.ID),
			fmt.Sprintf("%s,1000,400,1500,600,2024-03-02", w.m2.ID),
		)

		result, err := w.readingSvc.ImportReadings(ctx, testUser, ImportFile{Reader: strings.NewReader(body)})
		require.NoError(t, err)

		assert.Equal(t, 2, result.Imported)
		require.Len(t, result.Errors, 2)
		assert.True(t, strings.HasPrefix(result.Errors[0], "row 2: "), result.Errors[0])
		assert.Contains(t, result.Errors[0], "not found")
		assert.True(t, strings.HasPrefix(result.Errors[1], "row 3: previous_in"), result.Errors[1])

		stored := storedReadings(t, w)
		require.Len(t, stored, 2)
		assert.Equal(t, "150.00", stored[0].GrossValue.StringFixed(2)) // 2024-03-02, multiplier 0.5
		assert.Equal(t, "300.00", stored[1].GrossValue.StringFixed(2))
		assert.Equal(t, []string{model.ActionImportReadings}, w.audits.actions())
		assert.Equal(t, []string{ws.EventReadingsImported}, w.hub.types())
	})

	t.Run("semicolon separated windows-1252", func(t *testing.T) {
		w := newWorld(t)
		body := "machine_id;previous_in;previous_out;current_in;current_out\n" +
			fmt.Sprintf("%s;0;0;10;4\n", w.m1.ID)

		result, err := w.readingSvc.ImportReadings(ctx, testUser, ImportFile{
			Reader:    strings.NewReader(body),
			Encoding:  EncodingWindows1252,
			Delimiter: ';',
		})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Imported)
		assert.Empty(t, result.Errors)
	})

	t.Run("nothing valid writes nothing", func(t *testing.T) {
		w := newWorld(t)
		body := importCSV(fmt.Sprintf("%s,x,0,0,0,", w.m1.ID))

		result, err := w.readingSvc.ImportReadings(ctx, testUser, ImportFile{Reader: strings.NewReader(body)})
		require.NoError(t, err)
		assert.Zero(t, result.Imported)
		assert.Len(t, result.Errors, 1)
		assert.Empty(t, w.audits.actions())
	})

	t.Run("file level problems", func(t *testing.T) {
		w := newWorld(t)

		_, err := w.readingSvc.ImportReadings(ctx, testUser, ImportFile{
			Reader: strings.NewReader("machine_id,previous_in\nx,1\n"),
		})
		var ve *settlement.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Contains(t, ve.Message, "missing column")

		_, err = w.readingSvc.ImportReadings(ctx, testUser, ImportFile{
			Reader:   strings.NewReader(importCSV()),
			Encoding: "ebcdic",
		})
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "encoding", ve.Field)
	})
}

func TestGetReadingsAndDelete(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)

	early := standardMeters(w.m1.ID)
	early.ReadingDate = "2024-03-01"
	late := standardMeters(w.m2.ID)
	late.ReadingDate = "2024-03-03"
	first, err := w.readingSvc.CreateReading(ctx, testUser, early)
	require.NoError(t, err)
	second, err := w.readingSvc.CreateReading(ctx, testUser, late)
	require.NoError(t, err)

	list, total, err := w.readingSvc.GetReadings(ctx, ReadingListQuery{}, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	list, total, err = w.readingSvc.GetReadings(ctx, ReadingListQuery{To: "2024-03-02"}, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, first.ID, list[0].ID)

	_, _, err = w.readingSvc.GetReadings(ctx, ReadingListQuery{MachineID: "nope"}, 1, 10)
	var ve *settlement.ValidationError
	assert.True(t, errors.As(err, &ve))

	require.NoError(t, w.readingSvc.DeleteReading(ctx, testUser, first.ID.String()))
	err = w.readingSvc.DeleteReading(ctx, testUser, first.ID.String())
	var nf *settlement.NotFoundError
	assert.True(t, errors.As(err, &nf))
	assert.Contains(t, w.hub.types(), ws.EventReadingDeleted)
}

func TestExportReadings(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	_, err := w.readingSvc.CreateReading(ctx, testUser, standardMeters(w.m1.ID))
	require.NoError(t, err)

	out, err := w.readingSvc.ExportReadings(ctx, ReadingListQuery{}, export.FormatCSV)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "reading_date,machine_code"))
	assert.Contains(t, lines[1], "M-001")
	assert.Contains(t, lines[1], "Joana")
	assert.Contains(t, lines[1], "265.00")

	out, err = w.readingSvc.ExportReadings(ctx, ReadingListQuery{}, export.FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, "PK", string(out[:2]))

	_, err = w.readingSvc.ExportReadings(ctx, ReadingListQuery{}, "docx")
	var ve *settlement.ValidationError
	assert.True(t, errors.As(err, &ve))
}
