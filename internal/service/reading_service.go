package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fabiodmueller-cmd/CASSINO/internal/export"
	"github.com/fabiodmueller-cmd/CASSINO/internal/metrics"
	"github.com/fabiodmueller-cmd/CASSINO/internal/model"
	"github.com/fabiodmueller-cmd/CASSINO/internal/repository"
	"github.com/fabiodmueller-cmd/CASSINO/internal/settlement"
	ws "github.com/fabiodmueller-cmd/CASSINO/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// CreateReadingRequest carries the four meters of one machine. Meters are
// pointers so a missing one is told apart from zero.
type CreateReadingRequest struct {
	MachineID   string           `json:"machine_id" binding:"required"`
	PreviousIn  *decimal.Decimal `json:"previous_in"`
	PreviousOut *decimal.Decimal `json:"previous_out"`
	CurrentIn   *decimal.Decimal `json:"current_in"`
	CurrentOut  *decimal.Decimal `json:"current_out"`
	ReadingDate string           `json:"reading_date"`
}

// BatchReadingRequest settles one round at a client. ReadingDate applies to
// every item that does not set its own.
type BatchReadingRequest struct {
	ClientID    string                 `json:"client_id" binding:"required"`
	ReadingDate string                 `json:"reading_date"`
	Readings    []CreateReadingRequest `json:"readings" binding:"required,min=1,dive"`
}

type ReadingListQuery struct {
	MachineID string
	ClientID  string
	From      string
	To        string
}

// ReadingResponse prints money with two decimals
type ReadingResponse struct {
	ID                      uuid.UUID  `json:"id"`
	MachineID               uuid.UUID  `json:"machine_id"`
	ClientID                uuid.UUID  `json:"client_id"`
	OperatorID              *uuid.UUID `json:"operator_id"`
	PreviousIn              string     `json:"previous_in"`
	PreviousOut             string     `json:"previous_out"`
	CurrentIn               string     `json:"current_in"`
	CurrentOut              string     `json:"current_out"`
	Multiplier              string     `json:"multiplier"`
	GrossValue              string     `json:"gross_value"`
	ClientCommission        string     `json:"client_commission"`
	OperatorCommission      string     `json:"operator_commission"`
	NetValue                string     `json:"net_value"`
	ClientCommissionType    string     `json:"client_commission_type"`
	ClientCommissionValue   string     `json:"client_commission_value"`
	OperatorCommissionType  *string    `json:"operator_commission_type"`
	OperatorCommissionValue *string    `json:"operator_commission_value"`
	ReadingDate             time.Time  `json:"reading_date"`
	CreatedAt               time.Time  `json:"created_at"`
}

type ReadingService interface {
	CreateReading(ctx context.Context, userID string, req CreateReadingRequest) (ReadingResponse, error)
	CreateBatch(ctx context.Context, userID string, req BatchReadingRequest) (model.Receipt, error)
	ImportReadings(ctx context.Context, userID string, file ImportFile) (ImportResult, error)
	DeleteReading(ctx context.Context, userID, id string) error
	GetReadings(ctx context.Context, query ReadingListQuery, page, limit int) ([]ReadingResponse, int64, error)
	ExportReadings(ctx context.Context, query ReadingListQuery, format string) ([]byte, error)
}

type readingService struct {
	readingRepo repository.ReadingRepository
	machineRepo repository.MachineRepository
	clientRepo  repository.ClientRepository
	opRepo      repository.OperatorRepository
	resolver    LinkResolver
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	hub         Broadcaster
}

func NewReadingService(
	readingRepo repository.ReadingRepository,
	machineRepo repository.MachineRepository,
	clientRepo repository.ClientRepository,
	opRepo repository.OperatorRepository,
	resolver LinkResolver,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub Broadcaster,
) ReadingService {
	return &readingService{
		readingRepo: readingRepo,
		machineRepo: machineRepo,
		clientRepo:  clientRepo,
		opRepo:      opRepo,
		resolver:    resolver,
		auditRepo:   auditRepo,
		txManager:   txManager,
		hub:         hub,
	}
}

// settled is a reading ready to persist plus what it was settled against.
type settled struct {
	reading  model.Reading
	machine  model.Machine
	client   model.Client
	operator *model.Operator
}

// settle loads the machine, then its client and the linked operator in
// parallel, and runs the settlement engine. It must not run inside a
// transaction: the parallel loads would share one connection.
func (s *readingService) settle(ctx context.Context, machineRaw string, m settlement.Meters, readingDate time.Time) (settled, error) {
	machineID, err := parseID("machine_id", machineRaw)
	if err != nil {
		return settled{}, err
	}

	machine, err := s.machineRepo.FindByID(ctx, machineID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return settled{}, settlement.MachineNotFound(machineID)
		}
		return settled{}, fmt.Errorf("failed to load machine: %w", err)
	}

	var client *model.Client
	var operator *model.Operator

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.clientRepo.FindByID(gctx, machine.ClientID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return settlement.ClientNotFound(machine.ClientID)
			}
			return fmt.Errorf("failed to load client: %w", err)
		}
		client = c
		return nil
	})
	g.Go(func() error {
		op, err := s.resolver.Resolve(gctx, machine.ClientID)
		if err != nil {
			return err
		}
		operator = op
		return nil
	})
	if err := g.Wait(); err != nil {
		return settled{}, err
	}

	reading, err := settlement.BuildReading(m, *machine, *client, operator, readingDate)
	if err != nil {
		return settled{}, err
	}
	return settled{reading: reading, machine: *machine, client: *client, operator: operator}, nil
}

func (s *readingService) settleRequest(ctx context.Context, req CreateReadingRequest, defaultDate time.Time) (settled, error) {
	m, err := settlement.RequireMeters(req.PreviousIn, req.PreviousOut, req.CurrentIn, req.CurrentOut)
	if err != nil {
		return settled{}, err
	}
	readingDate, err := ParseDate("reading_date", req.ReadingDate)
	if err != nil {
		return settled{}, err
	}
	if readingDate.IsZero() {
		readingDate = defaultDate
	}
	return s.settle(ctx, req.MachineID, m, readingDate)
}

func rejectReason(err error) string {
	var ve *settlement.ValidationError
	if errors.As(err, &ve) {
		return "validation"
	}
	return "store"
}

func (s *readingService) publish(eventType string, clientID uuid.UUID, data interface{}) {
	if s.hub != nil {
		s.hub.BroadcastEvent(eventType, clientID, data)
	}
}

func (s *readingService) CreateReading(ctx context.Context, userID string, req CreateReadingRequest) (ReadingResponse, error) {
	start := time.Now()

	res, err := s.settleRequest(ctx, req, time.Time{})
	if err != nil {
		metrics.IncSettlementError(rejectReason(err))
		return ReadingResponse{}, err
	}
	reading := res.reading

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.readingRepo.Create(txCtx, &reading); err != nil {
			return fmt.Errorf("failed to create reading: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionCreateReading, reading.ID.String(), res.machine.Code, map[string]interface{}{
			"machine_id": reading.MachineID,
			"gross":      reading.GrossValue.StringFixed(settlement.MoneyPlaces),
			"net":        reading.NetValue.StringFixed(settlement.MoneyPlaces),
		})
	})
	if err != nil {
		metrics.IncSettlementError("store")
		return ReadingResponse{}, err
	}

	metrics.ObserveSettlement(metrics.SourceAPI, 1, time.Since(start))
	resp := toReadingResponse(reading)
	s.publish(ws.EventReadingCreated, resp.ClientID, resp)
	return resp, nil
}

func (s *readingService) CreateBatch(ctx context.Context, userID string, req BatchReadingRequest) (model.Receipt, error) {
	start := time.Now()

	clientID, err := parseID("client_id", req.ClientID)
	if err != nil {
		return model.Receipt{}, err
	}
	if len(req.Readings) == 0 {
		return model.Receipt{}, settlement.Invalid("readings", "at least one reading is required")
	}
	roundDate, err := ParseDate("reading_date", req.ReadingDate)
	if err != nil {
		return model.Receipt{}, err
	}
	if roundDate.IsZero() {
		roundDate = time.Now().UTC()
	}

	client, err := s.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Receipt{}, settlement.ClientNotFound(clientID)
		}
		return model.Receipt{}, fmt.Errorf("failed to load client: %w", err)
	}

	// Settle everything before writing anything: one bad machine rejects the round.
	round := make([]settled, 0, len(req.Readings))
	seen := make(map[string]bool, len(req.Readings))
	for i, item := range req.Readings {
		field := fmt.Sprintf("readings[%d].machine_id", i)
		if seen[item.MachineID] {
			return model.Receipt{}, settlement.Invalid(field, "machine %s is listed twice", item.MachineID)
		}
		seen[item.MachineID] = true

		res, err := s.settleRequest(ctx, item, roundDate)
		if err != nil {
			metrics.IncSettlementError(rejectReason(err))
			return model.Receipt{}, fmt.Errorf("readings[%d]: %w", i, err)
		}
		if res.machine.ClientID != clientID {
			metrics.IncSettlementError("validation")
			return model.Receipt{}, settlement.Invalid(field, "machine %s does not belong to client %s", res.machine.Code, client.Name)
		}
		round = append(round, res)
	}

	readings := make([]model.Reading, len(round))
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		ids := make([]string, 0, len(round))
		for i := range round {
			readings[i] = round[i].reading
			if err := s.readingRepo.Create(txCtx, &readings[i]); err != nil {
				return fmt.Errorf("failed to create reading for machine %s: %w", round[i].machine.Code, err)
			}
			ids = append(ids, readings[i].ID.String())
		}
		totals := settlement.Sum(readings)
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionSettleRound, client.ID.String(), client.Name, map[string]interface{}{
			"readings": ids,
			"gross":    totals.Gross.StringFixed(settlement.MoneyPlaces),
			"net":      totals.Net.StringFixed(settlement.MoneyPlaces),
		})
	})
	if err != nil {
		metrics.IncSettlementError("store")
		return model.Receipt{}, err
	}

	metrics.ObserveSettlement(metrics.SourceBatch, len(readings), time.Since(start))

	machines := make([]model.Machine, 0, len(round))
	operators := make([]model.Operator, 0, 1)
	for _, r := range round {
		machines = append(machines, r.machine)
		if r.operator != nil {
			operators = append(operators, *r.operator)
		}
	}
	for _, r := range readings {
		s.publish(ws.EventReadingCreated, r.ClientID, toReadingResponse(r))
	}

	catalog := settlement.NewCatalog(machines, []model.Client{*client}, nil, operators)
	return settlement.BuildReceipt(*client, readings, catalog, roundDate), nil
}

func (s *readingService) DeleteReading(ctx context.Context, userID, id string) error {
	uid, err := parseID("id", id)
	if err != nil {
		return err
	}

	var clientID uuid.UUID
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		reading, err := s.readingRepo.FindByID(txCtx, uid)
		if err != nil {
			return notFoundOr(err, "reading", uid)
		}
		if err := s.readingRepo.Delete(txCtx, uid); err != nil {
			return notFoundOr(err, "reading", uid)
		}
		clientID = reading.ClientID
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionDeleteReading, uid.String(), "", map[string]interface{}{
			"machine_id":  reading.MachineID,
			"net_value":   reading.NetValue.StringFixed(settlement.MoneyPlaces),
			"reading_day": reading.ReadingDate.Format("2006-01-02"),
		})
	})
	if err != nil {
		return err
	}

	s.publish(ws.EventReadingDeleted, clientID, map[string]string{"id": uid.String()})
	return nil
}

func (q ReadingListQuery) filter() (repository.ReadingFilter, error) {
	var f repository.ReadingFilter
	var err error
	if f.MachineID, err = parseOptionalID("machine_id", &q.MachineID); err != nil {
		return f, err
	}
	if f.ClientID, err = parseOptionalID("client_id", &q.ClientID); err != nil {
		return f, err
	}
	if f.From, f.To, err = DateRange(q.From, q.To); err != nil {
		return f, err
	}
	return f, nil
}

func (s *readingService) GetReadings(ctx context.Context, query ReadingListQuery, page, limit int) ([]ReadingResponse, int64, error) {
	filter, err := query.filter()
	if err != nil {
		return nil, 0, err
	}
	filter.Page, filter.Limit = normalizePage(page, limit)

	readings, total, err := s.readingRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch readings: %w", err)
	}

	res := make([]ReadingResponse, 0, len(readings))
	for _, r := range readings {
		res = append(res, toReadingResponse(r))
	}
	return res, total, nil
}

func (s *readingService) ExportReadings(ctx context.Context, query ReadingListQuery, format string) ([]byte, error) {
	if format == "" {
		format = export.FormatCSV
	}
	if format != export.FormatCSV && format != export.FormatXLSX {
		return nil, settlement.Invalid("format", "must be one of: csv, xlsx")
	}
	filter, err := query.filter()
	if err != nil {
		return nil, err
	}

	var (
		readings  []model.Reading
		machines  []model.Machine
		clients   []model.Client
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
		operators, err = s.opRepo.ListAll(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load export data: %w", err)
	}

	catalog := settlement.NewCatalog(machines, clients, nil, operators)
	rows := make([]export.ReadingRow, 0, len(readings))
	for _, r := range readings {
		row := export.ReadingRow{
			ReadingDate:        r.ReadingDate,
			MachineCode:        model.NotAvailable,
			MachineName:        model.NotAvailable,
			ClientName:         catalog.ClientName(r.ClientID),
			OperatorName:       catalog.OperatorName(r.OperatorID),
			PreviousIn:         r.PreviousIn,
			PreviousOut:        r.PreviousOut,
			CurrentIn:          r.CurrentIn,
			CurrentOut:         r.CurrentOut,
			GrossValue:         r.GrossValue,
			ClientCommission:   r.ClientCommission,
			OperatorCommission: r.OperatorCommission,
			NetValue:           r.NetValue,
		}
		if m, ok := catalog.Machine(r.MachineID); ok {
			row.MachineCode = m.Code
			row.MachineName = m.Name
		}
		rows = append(rows, row)
	}

	var out []byte
	if format == export.FormatXLSX {
		out, err = export.ReadingsXLSX(rows, settlement.Sum(readings))
	} else {
		out, err = export.ReadingsCSV(rows)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to render %s export: %w", format, err)
	}
	metrics.IncExport(format)
	return out, nil
}

func toReadingResponse(r model.Reading) ReadingResponse {
	resp := ReadingResponse{
		ID:                     r.ID,
		MachineID:              r.MachineID,
		ClientID:               r.ClientID,
		OperatorID:             r.OperatorID,
		PreviousIn:             r.PreviousIn.String(),
		PreviousOut:            r.PreviousOut.String(),
		CurrentIn:              r.CurrentIn.String(),
		CurrentOut:             r.CurrentOut.String(),
		Multiplier:             r.Multiplier.String(),
		GrossValue:             r.GrossValue.StringFixed(settlement.MoneyPlaces),
		ClientCommission:       r.ClientCommission.StringFixed(settlement.MoneyPlaces),
		OperatorCommission:     r.OperatorCommission.StringFixed(settlement.MoneyPlaces),
		NetValue:               r.NetValue.StringFixed(settlement.MoneyPlaces),
		ClientCommissionType:   r.ClientCommissionType,
		ClientCommissionValue:  r.ClientCommissionValue.String(),
		OperatorCommissionType: r.OperatorCommissionType,
		ReadingDate:            r.ReadingDate,
		CreatedAt:              r.CreatedAt,
	}
	if r.OperatorCommissionValue != nil {
		v := r.OperatorCommissionValue.String()
		resp.OperatorCommissionValue = &v
	}
	return resp
}
