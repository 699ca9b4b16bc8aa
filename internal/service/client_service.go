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

type CreateClientRequest struct {
	Name            string          `json:"name" binding:"required"`
	CommissionType  string          `json:"commission_type" binding:"required"`
	CommissionValue decimal.Decimal `json:"commission_value"`
	Phone           *string         `json:"phone"`
	Email           *string         `json:"email"`
}

// UpdateClientRequest changes only the fields that are sent. Readings already
// settled keep the commission they were settled with.
type UpdateClientRequest struct {
	Name            *string          `json:"name"`
	CommissionType  *string          `json:"commission_type"`
	CommissionValue *decimal.Decimal `json:"commission_value"`
	Phone           *string          `json:"phone"`
	Email           *string          `json:"email"`
}

type ClientService interface {
	CreateClient(ctx context.Context, userID string, req CreateClientRequest) (model.Client, error)
	UpdateClient(ctx context.Context, userID, id string, req UpdateClientRequest) (model.Client, error)
	DeleteClient(ctx context.Context, userID, id string) error
	GetClient(ctx context.Context, id string) (model.Client, error)
	GetClients(ctx context.Context, search string, page, limit int) ([]model.Client, int64, error)
}

type clientService struct {
	clientRepo repository.ClientRepository
	auditRepo  repository.AuditRepository
	txManager  repository.TransactionManager
}

func NewClientService(clientRepo repository.ClientRepository, auditRepo repository.AuditRepository, txManager repository.TransactionManager) ClientService {
	return &clientService{clientRepo: clientRepo, auditRepo: auditRepo, txManager: txManager}
}

func (s *clientService) CreateClient(ctx context.Context, userID string, req CreateClientRequest) (model.Client, error) {
	if err := requireName(req.Name); err != nil {
		return model.Client{}, err
	}
	if err := validateCommission(req.CommissionType, req.CommissionValue); err != nil {
		return model.Client{}, err
	}
	if err := validateEmail(req.Email); err != nil {
		return model.Client{}, err
	}

	client := model.Client{
		Name:            req.Name,
		CommissionType:  req.CommissionType,
		CommissionValue: req.CommissionValue,
		Phone:           req.Phone,
		Email:           req.Email,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.clientRepo.Create(txCtx, &client); err != nil {
			return fmt.Errorf("failed to create client: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionCreateClient, client.ID.String(), client.Name, req)
	})
	if err != nil {
		return model.Client{}, err
	}
	return client, nil
}

func (s *clientService) UpdateClient(ctx context.Context, userID, id string, req UpdateClientRequest) (model.Client, error) {
	uid, err := parseID("id", id)
	if err != nil {
		return model.Client{}, err
	}

	client, err := s.clientRepo.FindByID(ctx, uid)
	if err != nil {
		return model.Client{}, notFoundOr(err, "client", uid)
	}

	if req.Name != nil {
		if err := requireName(*req.Name); err != nil {
			return model.Client{}, err
		}
		client.Name = *req.Name
	}
	if req.CommissionType != nil {
		client.CommissionType = *req.CommissionType
	}
	if req.CommissionValue != nil {
		client.CommissionValue = *req.CommissionValue
	}
	if err := validateCommission(client.CommissionType, client.CommissionValue); err != nil {
		return model.Client{}, err
	}
	if req.Phone != nil {
		client.Phone = req.Phone
	}
	if req.Email != nil {
		if err := validateEmail(req.Email); err != nil {
			return model.Client{}, err
		}
		client.Email = req.Email
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.clientRepo.Update(txCtx, client); err != nil {
			return fmt.Errorf("failed to update client: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionUpdateClient, client.ID.String(), client.Name, req)
	})
	if err != nil {
		return model.Client{}, err
	}
	return *client, nil
}

func (s *clientService) DeleteClient(ctx context.Context, userID, id string) error {
	uid, err := parseID("id", id)
	if err != nil {
		return err
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.clientRepo.Delete(txCtx, uid); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundOr(err, "client", uid)
			}
			return fmt.Errorf("failed to delete client: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionDeleteClient, uid.String(), "", map[string]bool{"deleted": true})
	})
}

func (s *clientService) GetClient(ctx context.Context, id string) (model.Client, error) {
	uid, err := parseID("id", id)
	if err != nil {
		return model.Client{}, err
	}
	client, err := s.clientRepo.FindByID(ctx, uid)
	if err != nil {
		return model.Client{}, notFoundOr(err, "client", uid)
	}
	return *client, nil
}

func (s *clientService) GetClients(ctx context.Context, search string, page, limit int) ([]model.Client, int64, error) {
	page, limit = normalizePage(page, limit)
	clients, total, err := s.clientRepo.List(ctx, search, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch clients: %w", err)
	}
	return clients, total, nil
}
