package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fabiodmueller-cmd/CASSINO/internal/export"
	"github.com/fabiodmueller-cmd/CASSINO/internal/metrics"
	"github.com/fabiodmueller-cmd/CASSINO/internal/model"
	"github.com/fabiodmueller-cmd/CASSINO/internal/repository"
	"github.com/fabiodmueller-cmd/CASSINO/internal/settlement"

	"golang.org/x/sync/errgroup"
)

// ReportRange bounds the readings a report covers. Both ends are optional.
type ReportRange struct {
	From string
	To   string
}

type ReportService interface {
	GetDashboard(ctx context.Context, rng ReportRange) (model.DashboardTotals, error)
	GetTopMachines(ctx context.Context, n int, rng ReportRange) ([]model.MachineRanking, error)
	GetMachineReport(ctx context.Context, machineID string, rng ReportRange) (model.MachineReport, error)
	GetClientReport(ctx context.Context, clientID string, rng ReportRange) (model.ClientReport, error)
	GetRegionReport(ctx context.Context, regionID string, rng ReportRange) (model.RegionReport, error)
	GetReceipt(ctx context.Context, clientID, date string) (model.Receipt, error)
	RenderReceiptPDF(ctx context.Context, clientID, date string) ([]byte, error)
}

type reportService struct {
	readingRepo  repository.ReadingRepository
	machineRepo  repository.MachineRepository
	clientRepo   repository.ClientRepository
	regionRepo   repository.RegionRepository
	operatorRepo repository.OperatorRepository
}

func NewReportService(
	readingRepo repository.ReadingRepository,
	machineRepo repository.MachineRepository,
	clientRepo repository.ClientRepository,
	regionRepo repository.RegionRepository,
	operatorRepo repository.OperatorRepository,
) ReportService {
	return &reportService{
		readingRepo:  readingRepo,
		machineRepo:  machineRepo,
		clientRepo:   clientRepo,
		regionRepo:   regionRepo,
		operatorRepo: operatorRepo,
	}
}

// load fetches the readings in scope and every metadata list concurrently.
// Reports are read-only so any store error fails the whole report.
func (s *reportService) load(ctx context.Context, filter repository.ReadingFilter) (settlement.Catalog, []model.Reading, error) {
	var (
		readings  []model.Reading
		machines  []model.Machine
		clients   []model.Client
		regions   []model.Region
		operators []model.Operator
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		readings, _, err = s.readingRepo.List(gctx, filter)
		return err
	})
	g.Go(func() (err error) {
		machines, err = s.machineRepo.ListAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		clients, err = s.clientRepo.ListAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		regions, err = s.regionRepo.ListAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		operators, err = s.operatorRepo.ListAll(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return settlement.Catalog{}, nil, fmt.Errorf("failed to load report data: %w", err)
	}

	return settlement.NewCatalog(machines, clients, regions, operators), readings, nil
}

func rangeFilter(rng ReportRange) (repository.ReadingFilter, error) {
	from, to, err := DateRange(rng.From, rng.To)
	if err != nil {
		return repository.ReadingFilter{}, err
	}
	return repository.ReadingFilter{From: from, To: to}, nil
}

func (s *reportService) GetDashboard(ctx context.Context, rng ReportRange) (model.DashboardTotals, error) {
	filter, err := rangeFilter(rng)
	if err != nil {
		return model.DashboardTotals{}, err
	}
	catalog, readings, err := s.load(ctx, filter)
	if err != nil {
		return model.DashboardTotals{}, err
	}
	return settlement.Dashboard(readings, catalog, settlement.DefaultTopN), nil
}

func (s *reportService) GetTopMachines(ctx context.Context, n int, rng ReportRange) ([]model.MachineRanking, error) {
	filter, err := rangeFilter(rng)
	if err != nil {
		return nil, err
	}
	catalog, readings, err := s.load(ctx, filter)
	if err != nil {
		return nil, err
	}
	return settlement.TopMachines(readings, catalog, n), nil
}

func (s *reportService) GetMachineReport(ctx context.Context, machineID string, rng ReportRange) (model.MachineReport, error) {
	id, err := parseID("machine_id", machineID)
	if err != nil {
		return model.MachineReport{}, err
	}
	filter, err := rangeFilter(rng)
	if err != nil {
		return model.MachineReport{}, err
	}
	filter.MachineID = &id

	catalog, readings, err := s.load(ctx, filter)
	if err != nil {
		return model.MachineReport{}, err
	}
	return settlement.MachineReport(id, readings, catalog)
}

func (s *reportService) GetClientReport(ctx context.Context, clientID string, rng ReportRange) (model.ClientReport, error) {
	id, err := parseID("client_id", clientID)
	if err != nil {
		return model.ClientReport{}, err
	}
	filter, err := rangeFilter(rng)
	if err != nil {
		return model.ClientReport{}, err
	}

	// Readings are matched through the client's current machines, not the
	// client snapshot, so a machine moved to another client follows it.
	catalog, readings, err := s.load(ctx, filter)
	if err != nil {
		return model.ClientReport{}, err
	}
	return settlement.ClientReport(id, readings, catalog)
}

func (s *reportService) GetRegionReport(ctx context.Context, regionID string, rng ReportRange) (model.RegionReport, error) {
	id, err := parseID("region_id", regionID)
	if err != nil {
		return model.RegionReport{}, err
	}
	filter, err := rangeFilter(rng)
	if err != nil {
		return model.RegionReport{}, err
	}
	catalog, readings, err := s.load(ctx, filter)
	if err != nil {
		return model.RegionReport{}, err
	}
	return settlement.RegionReport(id, readings, catalog)
}

// GetReceipt rebuilds the receipt of the round settled at a client on date
// (default today, UTC) from the stored readings.
func (s *reportService) GetReceipt(ctx context.Context, clientID, date string) (model.Receipt, error) {
	id, err := parseID("client_id", clientID)
	if err != nil {
		return model.Receipt{}, err
	}
	day, err := ParseDate("date", date)
	if err != nil {
		return model.Receipt{}, err
	}
	if day.IsZero() {
		day = time.Now().UTC()
	}
	day = day.Truncate(24 * time.Hour)

	filter := repository.ReadingFilter{ClientID: &id, From: day, To: endOfDay(day)}
	catalog, readings, err := s.load(ctx, filter)
	if err != nil {
		return model.Receipt{}, err
	}

	client, ok := catalog.Client(id)
	if !ok {
		return model.Receipt{}, &settlement.NotFoundError{Entity: "client", ID: id.String()}
	}

	// lines in the order the machines were read
	ordered := make([]model.Reading, len(readings))
	for i, r := range readings {
		ordered[len(readings)-1-i] = r
	}
	return settlement.BuildReceipt(client, ordered, catalog, day), nil
}

func (s *reportService) RenderReceiptPDF(ctx context.Context, clientID, date string) ([]byte, error) {
	receipt, err := s.GetReceipt(ctx, clientID, date)
	if err != nil {
		return nil, err
	}
	out, err := export.ReceiptPDF(receipt)
	if err != nil {
		return nil, fmt.Errorf("failed to render receipt: %w", err)
	}
	metrics.IncExport(export.FormatPDF)
	return out, nil
}
