package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fabiodmueller-cmd/CASSINO/internal/model"
	"github.com/fabiodmueller-cmd/CASSINO/internal/repository"
	"github.com/fabiodmueller-cmd/CASSINO/internal/settlement"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateMachineRequest struct {
	Code       string          `json:"code" binding:"required"`
	Name       string          `json:"name" binding:"required"`
	Multiplier decimal.Decimal `json:"multiplier"`
	ClientID   string          `json:"client_id" binding:"required"`
	RegionID   string          `json:"region_id" binding:"required"`
	OperatorID *string         `json:"operator_id"`
	Active     *bool           `json:"active"`
}

type UpdateMachineRequest struct {
	Code       *string          `json:"code"`
	Name       *string          `json:"name"`
	Multiplier *decimal.Decimal `json:"multiplier"`
	ClientID   *string          `json:"client_id"`
	RegionID   *string          `json:"region_id"`
	OperatorID *string          `json:"operator_id"` // "" clears the assignment
	Active     *bool            `json:"active"`
}

type MachineListQuery struct {
	Search   string
	ClientID string
	RegionID string
	Active   *bool
}

type MachineService interface {
	CreateMachine(ctx context.Context, userID string, req CreateMachineRequest) (model.Machine, error)
	UpdateMachine(ctx context.Context, userID, id string, req UpdateMachineRequest) (model.Machine, error)
	DeleteMachine(ctx context.Context, userID, id string) error
	GetMachine(ctx context.Context, id string) (model.Machine, error)
	GetMachines(ctx context.Context, query MachineListQuery, page, limit int) ([]model.Machine, int64, error)
}

type machineService struct {
	machineRepo  repository.MachineRepository
	clientRepo   repository.ClientRepository
	regionRepo   repository.RegionRepository
	operatorRepo repository.OperatorRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
}

func NewMachineService(
	machineRepo repository.MachineRepository,
	clientRepo repository.ClientRepository,
	regionRepo repository.RegionRepository,
	operatorRepo repository.OperatorRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) MachineService {
	return &machineService{
		machineRepo:  machineRepo,
		clientRepo:   clientRepo,
		regionRepo:   regionRepo,
		operatorRepo: operatorRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
	}
}

// checkRefs verifies that the machine's client, region and optional operator exist.
func (s *machineService) checkRefs(ctx context.Context, m *model.Machine) error {
	if _, err := s.clientRepo.FindByID(ctx, m.ClientID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return settlement.ClientNotFound(m.ClientID)
		}
		return fmt.Errorf("failed to load client: %w", err)
	}
	if _, err := s.regionRepo.FindByID(ctx, m.RegionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return settlement.Invalid("region_id", "region %s not found", m.RegionID)
		}
		return fmt.Errorf("failed to load region: %w", err)
	}
	if m.OperatorID != nil {
		if _, err := s.operatorRepo.FindByID(ctx, *m.OperatorID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return settlement.Invalid("operator_id", "operator %s not found", *m.OperatorID)
			}
			return fmt.Errorf("failed to load operator: %w", err)
		}
	}
	return nil
}

func (s *machineService) checkCodeFree(ctx context.Context, code string, self uuid.UUID) error {
	existing, err := s.machineRepo.FindByCode(ctx, code)
	if err == nil && existing.ID != self {
		return fmt.Errorf("machine code %q already in use: %w", code, ErrConflict)
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check machine code: %w", err)
	}
	return nil
}

func validateMachine(m *model.Machine) error {
	if strings.TrimSpace(m.Code) == "" {
		return settlement.Invalid("code", "is required")
	}
	if err := requireName(m.Name); err != nil {
		return err
	}
	if !m.Multiplier.IsPositive() {
		return settlement.Invalid("multiplier", "must be greater than 0")
	}
	return settlement.CheckScale("multiplier", m.Multiplier, settlement.RatePlaces)
}

func (s *machineService) CreateMachine(ctx context.Context, userID string, req CreateMachineRequest) (model.Machine, error) {
	clientID, err := parseID("client_id", req.ClientID)
	if err != nil {
		return model.Machine{}, err
	}
	regionID, err := parseID("region_id", req.RegionID)
	if err != nil {
		return model.Machine{}, err
	}
	operatorID, err := parseOptionalID("operator_id", req.OperatorID)
	if err != nil {
		return model.Machine{}, err
	}

	machine := model.Machine{
		Code:       strings.TrimSpace(req.Code),
		Name:       req.Name,
		Multiplier: req.Multiplier,
		ClientID:   clientID,
		RegionID:   regionID,
		OperatorID: operatorID,
		Active:     true,
	}
	if req.Active != nil {
		machine.Active = *req.Active
	}

	if err := validateMachine(&machine); err != nil {
		return model.Machine{}, err
	}
	if err := s.checkRefs(ctx, &machine); err != nil {
		return model.Machine{}, err
	}
	if err := s.checkCodeFree(ctx, machine.Code, uuid.Nil); err != nil {
		return model.Machine{}, err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.machineRepo.Create(txCtx, &machine); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("machine code %q already in use: %w", machine.Code, ErrConflict)
			}
			return fmt.Errorf("failed to create machine: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionCreateMachine, machine.ID.String(), machine.Code, req)
	})
	if err != nil {
		return model.Machine{}, err
	}
	return machine, nil
}

func (s *machineService) UpdateMachine(ctx context.Context, userID, id string, req UpdateMachineRequest) (model.Machine, error) {
	uid, err := parseID("id", id)
	if err != nil {
		return model.Machine{}, err
	}

	machine, err := s.machineRepo.FindByID(ctx, uid)
	if err != nil {
		return model.Machine{}, notFoundOr(err, "machine", uid)
	}

	if req.Code != nil {
		machine.Code = strings.TrimSpace(*req.Code)
	}
	if req.Name != nil {
		machine.Name = *req.Name
	}
	if req.Multiplier != nil {
		machine.Multiplier = *req.Multiplier
	}
	if req.ClientID != nil {
		if machine.ClientID, err = parseID("client_id", *req.ClientID); err != nil {
			return model.Machine{}, err
		}
	}
	if req.RegionID != nil {
		if machine.RegionID, err = parseID("region_id", *req.RegionID); err != nil {
			return model.Machine{}, err
		}
	}
	if req.OperatorID != nil {
		if machine.OperatorID, err = parseOptionalID("operator_id", req.OperatorID); err != nil {
			return model.Machine{}, err
		}
	}
	if req.Active != nil {
		machine.Active = *req.Active
	}

	if err := validateMachine(machine); err != nil {
		return model.Machine{}, err
	}
	if err := s.checkRefs(ctx, machine); err != nil {
		return model.Machine{}, err
	}
	if err := s.checkCodeFree(ctx, machine.Code, machine.ID); err != nil {
		return model.Machine{}, err
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.machineRepo.Update(txCtx, machine); err != nil {
			return fmt.Errorf("failed to update machine: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionUpdateMachine, machine.ID.String(), machine.Code, req)
	})
	if err != nil {
		return model.Machine{}, err
	}
	return *machine, nil
}

func (s *machineService) DeleteMachine(ctx context.Context, userID, id string) error {
	uid, err := parseID("id", id)
	if err != nil {
		return err
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.machineRepo.Delete(txCtx, uid); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundOr(err, "machine", uid)
			}
			return fmt.Errorf("failed to delete machine: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionDeleteMachine, uid.String(), "", map[string]bool{"deleted": true})
	})
}

func (s *machineService) GetMachine(ctx context.Context, id string) (model.Machine, error) {
	uid, err := parseID("id", id)
	if err != nil {
		return model.Machine{}, err
	}
	machine, err := s.machineRepo.FindByID(ctx, uid)
	if err != nil {
		return model.Machine{}, notFoundOr(err, "machine", uid)
	}
	return *machine, nil
}

func (s *machineService) GetMachines(ctx context.Context, query MachineListQuery, page, limit int) ([]model.Machine, int64, error) {
	page, limit = normalizePage(page, limit)

	filter := repository.MachineFilter{Search: query.Search, Active: query.Active}
	var err error
	if query.ClientID != "" {
		if filter.ClientID, err = parseOptionalID("client_id", &query.ClientID); err != nil {
			return nil, 0, err
		}
	}
	if query.RegionID != "" {
		if filter.RegionID, err = parseOptionalID("region_id", &query.RegionID); err != nil {
			return nil, 0, err
		}
	}

	machines, total, err := s.machineRepo.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch machines: %w", err)
	}
	return machines, total, nil
}
