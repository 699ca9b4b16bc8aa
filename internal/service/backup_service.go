package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fabiodmueller-cmd/CASSINO/internal/metrics"
	"github.com/fabiodmueller-cmd/CASSINO/internal/model"
	"github.com/fabiodmueller-cmd/CASSINO/internal/repository"
	"github.com/fabiodmueller-cmd/CASSINO/internal/settlement"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const BackupVersion = 1

// Backup is the full dataset as exchanged by export and import.
type Backup struct {
	Version    int              `json:"version"`
	ExportedAt time.Time        `json:"exported_at"`
	Clients    []model.Client   `json:"clients"`
	Operators  []model.Operator `json:"operators"`
	Regions    []model.Region   `json:"regions"`
	Machines   []model.Machine  `json:"machines"`
	Links      []model.Link     `json:"links"`
	Readings   []model.Reading  `json:"readings"`
}

type BackupImportResult struct {
	Clients   int      `json:"clients"`
	Operators int      `json:"operators"`
	Regions   int      `json:"regions"`
	Machines  int      `json:"machines"`
	Links     int      `json:"links"`
	Readings  int      `json:"readings"`
	Existing  int      `json:"existing"` // readings already stored, left untouched
	Errors    []string `json:"errors"`
}

type BackupService interface {
	Export(ctx context.Context) (Backup, error)
	Import(ctx context.Context, userID string, backup Backup) (BackupImportResult, error)
}

type backupService struct {
	clientRepo   repository.ClientRepository
	operatorRepo repository.OperatorRepository
	regionRepo   repository.RegionRepository
	machineRepo  repository.MachineRepository
	linkRepo     repository.LinkRepository
	readingRepo  repository.ReadingRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
}

func NewBackupService(
	clientRepo repository.ClientRepository,
	operatorRepo repository.OperatorRepository,
	regionRepo repository.RegionRepository,
	machineRepo repository.MachineRepository,
	linkRepo repository.LinkRepository,
	readingRepo repository.ReadingRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) BackupService {
	return &backupService{
		clientRepo:   clientRepo,
		operatorRepo: operatorRepo,
		regionRepo:   regionRepo,
		machineRepo:  machineRepo,
		linkRepo:     linkRepo,
		readingRepo:  readingRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
	}
}

func (s *backupService) Export(ctx context.Context) (Backup, error) {
	b := Backup{Version: BackupVersion, ExportedAt: time.Now().UTC()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		b.Clients, err = s.clientRepo.ListAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		b.Operators, err = s.operatorRepo.ListAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		b.Regions, err = s.regionRepo.ListAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		b.Machines, err = s.machineRepo.ListAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		b.Links, err = s.linkRepo.ListAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		b.Readings, _, err = s.readingRepo.List(gctx, repository.ReadingFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return Backup{}, fmt.Errorf("failed to export backup: %w", err)
	}
	return b, nil
}

func validateBackup(b Backup) error {
	if b.Version != BackupVersion {
		return settlement.Invalid("version", "unsupported backup version %d", b.Version)
	}
	for i, c := range b.Clients {
		if c.ID == uuid.Nil {
			return settlement.Invalid(fmt.Sprintf("clients[%d].id", i), "is required")
		}
		if err := validateCommission(c.CommissionType, c.CommissionValue); err != nil {
			return fmt.Errorf("clients[%d]: %w", i, err)
		}
	}
	for i, o := range b.Operators {
		if o.ID == uuid.Nil {
			return settlement.Invalid(fmt.Sprintf("operators[%d].id", i), "is required")
		}
		if err := validateCommission(o.CommissionType, o.CommissionValue); err != nil {
			return fmt.Errorf("operators[%d]: %w", i, err)
		}
	}
	for i, r := range b.Regions {
		if r.ID == uuid.Nil {
			return settlement.Invalid(fmt.Sprintf("regions[%d].id", i), "is required")
		}
	}
	for i, m := range b.Machines {
		if m.ID == uuid.Nil {
			return settlement.Invalid(fmt.Sprintf("machines[%d].id", i), "is required")
		}
		if err := validateMachine(&m); err != nil {
			return fmt.Errorf("machines[%d]: %w", i, err)
		}
	}
	return nil
}

// resettle recomputes every reading from its meters. Stored money fields in the
// file are ignored; the commission configuration comes from the reading's own
// snapshot, or from the backup's entities when the reading has none.
func resettle(b Backup) ([]model.Reading, []model.Link, []string) {
	machines := make(map[uuid.UUID]model.Machine, len(b.Machines))
	for _, m := range b.Machines {
		machines[m.ID] = m
	}
	clients := make(map[uuid.UUID]model.Client, len(b.Clients))
	for _, c := range b.Clients {
		clients[c.ID] = c
	}
	operators := make(map[uuid.UUID]model.Operator, len(b.Operators))
	for _, o := range b.Operators {
		operators[o.ID] = o
	}

	var problems []string

	byClient := make(map[uuid.UUID][]model.Link)
	for _, l := range b.Links {
		byClient[l.ClientID] = append(byClient[l.ClientID], l)
	}
	links := make([]model.Link, 0, len(byClient))
	chosen := make(map[uuid.UUID]*model.Operator, len(byClient))
	for _, l := range b.Links {
		candidates := byClient[l.ClientID]
		picked, _ := settlement.PickLink(candidates)
		if picked.ID != l.ID {
			problems = append(problems, fmt.Sprintf("link %s: client %s already has link %s", l.ID, l.ClientID, picked.ID))
			continue
		}
		links = append(links, l)
		if op, ok := operators[l.OperatorID]; ok {
			chosen[l.ClientID] = &op
		}
	}

	readings := make([]model.Reading, 0, len(b.Readings))
	for _, r := range b.Readings {
		machine, ok := machines[r.MachineID]
		if !ok {
			problems = append(problems, fmt.Sprintf("reading %s: %v", r.ID, settlement.MachineNotFound(r.MachineID)))
			continue
		}
		snapMachine, client, operator, ok := settlement.SnapshotConfig(r)
		if ok {
			machine = snapMachine
		} else {
			if client, ok = clients[machine.ClientID]; !ok {
				problems = append(problems, fmt.Sprintf("reading %s: %v", r.ID, settlement.ClientNotFound(machine.ClientID)))
				continue
			}
			operator = chosen[client.ID]
		}

		meters := settlement.Meters{
			PreviousIn:  r.PreviousIn,
			PreviousOut: r.PreviousOut,
			CurrentIn:   r.CurrentIn,
			CurrentOut:  r.CurrentOut,
		}
		settledReading, err := settlement.BuildReading(meters, machine, client, operator, r.ReadingDate)
		if err != nil {
			problems = append(problems, fmt.Sprintf("reading %s: %v", r.ID, err))
			continue
		}
		settledReading.ID = r.ID
		settledReading.CreatedAt = r.CreatedAt
		readings = append(readings, settledReading)
	}

	return readings, links, problems
}

// Import upserts configuration entities by id in one transaction. Readings are
// insert-only: one already stored under the same id is kept as is. Links and
// readings that cannot be applied are reported and skipped; anything else aborts.
func (s *backupService) Import(ctx context.Context, userID string, b Backup) (BackupImportResult, error) {
	start := time.Now()

	if err := validateBackup(b); err != nil {
		return BackupImportResult{}, err
	}
	readings, links, problems := resettle(b)

	result := BackupImportResult{Errors: problems}
	if result.Errors == nil {
		result.Errors = []string{}
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		for i := range b.Clients {
			if err := s.clientRepo.Update(txCtx, &b.Clients[i]); err != nil {
				return fmt.Errorf("failed to import client %s: %w", b.Clients[i].ID, err)
			}
		}
		for i := range b.Operators {
			if err := s.operatorRepo.Update(txCtx, &b.Operators[i]); err != nil {
				return fmt.Errorf("failed to import operator %s: %w", b.Operators[i].ID, err)
			}
		}
		for i := range b.Regions {
			if err := s.regionRepo.Update(txCtx, &b.Regions[i]); err != nil {
				return fmt.Errorf("failed to import region %s: %w", b.Regions[i].ID, err)
			}
		}
		for i := range b.Machines {
			if err := s.machineRepo.Update(txCtx, &b.Machines[i]); err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return fmt.Errorf("machine code %q already in use: %w", b.Machines[i].Code, ErrConflict)
				}
				return fmt.Errorf("failed to import machine %s: %w", b.Machines[i].ID, err)
			}
		}
		for i := range links {
			if err := s.linkRepo.Save(txCtx, &links[i]); err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return fmt.Errorf("client %s is already linked to an operator: %w", links[i].ClientID, ErrConflict)
				}
				return fmt.Errorf("failed to import link %s: %w", links[i].ID, err)
			}
		}
		imported := 0
		for i := range readings {
			_, err := s.readingRepo.FindByID(txCtx, readings[i].ID)
			if err == nil {
				result.Existing++
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to check reading %s: %w", readings[i].ID, err)
			}
			if err := s.readingRepo.Save(txCtx, &readings[i]); err != nil {
				return fmt.Errorf("failed to import reading %s: %w", readings[i].ID, err)
			}
			imported++
		}

		result.Clients = len(b.Clients)
		result.Operators = len(b.Operators)
		result.Regions = len(b.Regions)
		result.Machines = len(b.Machines)
		result.Links = len(links)
		result.Readings = imported
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionImportBackup, "", "", result)
	})
	if err != nil {
		return BackupImportResult{}, err
	}

	metrics.ObserveSettlement(metrics.SourceBackup, result.Readings, time.Since(start))
	return result, nil
}
