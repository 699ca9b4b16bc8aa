package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fabiodmueller-cmd/CASSINO/internal/model"
	"github.com/fabiodmueller-cmd/CASSINO/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateOperatorRequest struct {
	Name            string          `json:"name" binding:"required"`
	CommissionType  string          `json:"commission_type" binding:"required"`
	CommissionValue decimal.Decimal `json:"commission_value"`
	Phone           *string         `json:"phone"`
}

type UpdateOperatorRequest struct {
	Name            *string          `json:"name"`
	CommissionType  *string          `json:"commission_type"`
	CommissionValue *decimal.Decimal `json:"commission_value"`
	Phone           *string          `json:"phone"`
}

type OperatorService interface {
	CreateOperator(ctx context.Context, userID string, req CreateOperatorRequest) (model.Operator, error)
	UpdateOperator(ctx context.Context, userID, id string, req UpdateOperatorRequest) (model.Operator, error)
	DeleteOperator(ctx context.Context, userID, id string) error
	GetOperator(ctx context.Context, id string) (model.Operator, error)
	GetOperators(ctx context.Context, search string, page, limit int) ([]model.Operator, int64, error)
}

type operatorService struct {
	operatorRepo repository.OperatorRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
}

func NewOperatorService(operatorRepo repository.OperatorRepository, auditRepo repository.AuditRepository, txManager repository.TransactionManager) OperatorService {
	return &operatorService{operatorRepo: operatorRepo, auditRepo: auditRepo, txManager: txManager}
}

func (s *operatorService) CreateOperator(ctx context.Context, userID string, req CreateOperatorRequest) (model.Operator, error) {
	if err := requireName(req.Name); err != nil {
		return model.Operator{}, err
	}
	if err := validateCommission(req.CommissionType, req.CommissionValue); err != nil {
		return model.Operator{}, err
	}

	operator := model.Operator{
		Name:            req.Name,
		CommissionType:  req.CommissionType,
		CommissionValue: req.CommissionValue,
		Phone:           req.Phone,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.operatorRepo.Create(txCtx, &operator); err != nil {
			return fmt.Errorf("failed to create operator: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionCreateOperator, operator.ID.String(), operator.Name, req)
	})
	if err != nil {
		return model.Operator{}, err
	}
	return operator, nil
}

func (s *operatorService) UpdateOperator(ctx context.Context, userID, id string, req UpdateOperatorRequest) (model.Operator, error) {
	uid, err := parseID("id", id)
	if err != nil {
		return model.Operator{}, err
	}

	operator, err := s.operatorRepo.FindByID(ctx, uid)
	if err != nil {
		return model.Operator{}, notFoundOr(err, "operator", uid)
	}

	if req.Name != nil {
		if err := requireName(*req.Name); err != nil {
			return model.Operator{}, err
		}
		operator.Name = *req.Name
	}
	if req.CommissionType != nil {
		operator.CommissionType = *req.CommissionType
	}
	if req.CommissionValue != nil {
		operator.CommissionValue = *req.CommissionValue
	}
	if err := validateCommission(operator.CommissionType, operator.CommissionValue); err != nil {
		return model.Operator{}, err
	}
	if req.Phone != nil {
		operator.Phone = req.Phone
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.operatorRepo.Update(txCtx, operator); err != nil {
			return fmt.Errorf("failed to update operator: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionUpdateOperator, operator.ID.String(), operator.Name, req)
	})
	if err != nil {
		return model.Operator{}, err
	}
	return *operator, nil
}

func (s *operatorService) DeleteOperator(ctx context.Context, userID, id string) error {
	uid, err := parseID("id", id)
	if err != nil {
		return err
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.operatorRepo.Delete(txCtx, uid); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundOr(err, "operator", uid)
			}
			return fmt.Errorf("failed to delete operator: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionDeleteOperator, uid.String(), "", map[string]bool{"deleted": true})
	})
}

func (s *operatorService) GetOperator(ctx context.Context, id string) (model.Operator, error) {
	uid, err := parseID("id", id)
	if err != nil {
		return model.Operator{}, err
	}
	operator, err := s.operatorRepo.FindByID(ctx, uid)
	if err != nil {
		return model.Operator{}, notFoundOr(err, "operator", uid)
	}
	return *operator, nil
}

func (s *operatorService) GetOperators(ctx context.Context, search string, page, limit int) ([]model.Operator, int64, error) {
	page, limit = normalizePage(page, limit)
	operators, total, err := s.operatorRepo.List(ctx, search, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch operators: %w", err)
	}
	return operators, total, nil
}
