package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/fabiodmueller-cmd/CASSINO/internal/metrics"
	"github.com/fabiodmueller-cmd/CASSINO/internal/model"
	"github.com/fabiodmueller-cmd/CASSINO/internal/repository"
	"github.com/fabiodmueller-cmd/CASSINO/internal/settlement"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreateLinkRequest struct {
	ClientID   string `json:"client_id" binding:"required"`
	OperatorID string `json:"operator_id" binding:"required"`
}

// LinkResponse is a link with the names of both ends
type LinkResponse struct {
	model.Link
	ClientName   string `json:"client_name"`
	OperatorName string `json:"operator_name"`
}

type LinkService interface {
	CreateLink(ctx context.Context, userID string, req CreateLinkRequest) (model.Link, error)
	DeleteLink(ctx context.Context, userID, id string) error
	GetLinks(ctx context.Context) ([]LinkResponse, error)
}

// LinkResolver finds the operator responsible for a client at settlement time.
type LinkResolver interface {
	// Resolve returns nil when the client has no link or the linked operator is gone.
	Resolve(ctx context.Context, clientID uuid.UUID) (*model.Operator, error)
}

type linkService struct {
	linkRepo     repository.LinkRepository
	clientRepo   repository.ClientRepository
	operatorRepo repository.OperatorRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
}

func NewLinkService(
	linkRepo repository.LinkRepository,
	clientRepo repository.ClientRepository,
	operatorRepo repository.OperatorRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) LinkService {
	return &linkService{
		linkRepo:     linkRepo,
		clientRepo:   clientRepo,
		operatorRepo: operatorRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
	}
}

func (s *linkService) CreateLink(ctx context.Context, userID string, req CreateLinkRequest) (model.Link, error) {
	clientID, err := parseID("client_id", req.ClientID)
	if err != nil {
		return model.Link{}, err
	}
	operatorID, err := parseID("operator_id", req.OperatorID)
	if err != nil {
		return model.Link{}, err
	}

	client, err := s.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Link{}, settlement.ClientNotFound(clientID)
		}
		return model.Link{}, fmt.Errorf("failed to load client: %w", err)
	}
	operator, err := s.operatorRepo.FindByID(ctx, operatorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Link{}, settlement.Invalid("operator_id", "operator %s not found", operatorID)
		}
		return model.Link{}, fmt.Errorf("failed to load operator: %w", err)
	}

	existing, err := s.linkRepo.ListByClient(ctx, clientID)
	if err != nil {
		return model.Link{}, fmt.Errorf("failed to load links: %w", err)
	}
	if len(existing) > 0 {
		return model.Link{}, fmt.Errorf("client %s is already linked to an operator: %w", client.Name, ErrConflict)
	}

	link := model.Link{ClientID: clientID, OperatorID: operatorID}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.linkRepo.Create(txCtx, &link); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("client %s is already linked to an operator: %w", client.Name, ErrConflict)
			}
			return fmt.Errorf("failed to create link: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionCreateLink, link.ID.String(),
			client.Name+" -> "+operator.Name, req)
	})
	if err != nil {
		return model.Link{}, err
	}
	return link, nil
}

func (s *linkService) DeleteLink(ctx context.Context, userID, id string) error {
	uid, err := parseID("id", id)
	if err != nil {
		return err
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.linkRepo.Delete(txCtx, uid); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundOr(err, "link", uid)
			}
			return fmt.Errorf("failed to delete link: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionDeleteLink, uid.String(), "", map[string]bool{"deleted": true})
	})
}

func (s *linkService) GetLinks(ctx context.Context) ([]LinkResponse, error) {
	links, err := s.linkRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch links: %w", err)
	}
	clients, err := s.clientRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch clients: %w", err)
	}
	operators, err := s.operatorRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch operators: %w", err)
	}

	catalog := settlement.NewCatalog(nil, clients, nil, operators)
	res := make([]LinkResponse, 0, len(links))
	for _, l := range links {
		operatorID := l.OperatorID
		res = append(res, LinkResponse{
			Link:         l,
			ClientName:   catalog.ClientName(l.ClientID),
			OperatorName: catalog.OperatorName(&operatorID),
		})
	}
	return res, nil
}

type linkResolver struct {
	linkRepo     repository.LinkRepository
	operatorRepo repository.OperatorRepository
}

func NewLinkResolver(linkRepo repository.LinkRepository, operatorRepo repository.OperatorRepository) LinkResolver {
	return &linkResolver{linkRepo: linkRepo, operatorRepo: operatorRepo}
}

func (r *linkResolver) Resolve(ctx context.Context, clientID uuid.UUID) (*model.Operator, error) {
	links, err := r.linkRepo.ListByClient(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load links: %w", err)
	}

	link, ok := settlement.PickLink(links)
	if !ok {
		return nil, nil
	}
	if len(links) > 1 {
		log.Printf("data anomaly: client %s has %d links, using link %s", clientID, len(links), link.ID)
		metrics.IncLinkAnomaly()
	}

	operator, err := r.operatorRepo.FindByID(ctx, link.OperatorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("data anomaly: link %s points at missing operator %s", link.ID, link.OperatorID)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load operator: %w", err)
	}
	return operator, nil
}
