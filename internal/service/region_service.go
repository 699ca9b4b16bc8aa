package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fabiodmueller-cmd/CASSINO/internal/model"
	"github.com/fabiodmueller-cmd/CASSINO/internal/repository"

	"gorm.io/gorm"
)

type RegionRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

type RegionService interface {
	CreateRegion(ctx context.Context, userID string, req RegionRequest) (model.Region, error)
	UpdateRegion(ctx context.Context, userID, id string, req RegionRequest) (model.Region, error)
	DeleteRegion(ctx context.Context, userID, id string) error
	GetRegions(ctx context.Context, search string, page, limit int) ([]model.Region, int64, error)
}

type regionService struct {
	regionRepo repository.RegionRepository
	auditRepo  repository.AuditRepository
	txManager  repository.TransactionManager
}

func NewRegionService(regionRepo repository.RegionRepository, auditRepo repository.AuditRepository, txManager repository.TransactionManager) RegionService {
	return &regionService{regionRepo: regionRepo, auditRepo: auditRepo, txManager: txManager}
}

func (s *regionService) CreateRegion(ctx context.Context, userID string, req RegionRequest) (model.Region, error) {
	if err := requireName(req.Name); err != nil {
		return model.Region{}, err
	}

	region := model.Region{Name: req.Name, Description: req.Description}
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.regionRepo.Create(txCtx, &region); err != nil {
			return fmt.Errorf("failed to create region: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionCreateRegion, region.ID.String(), region.Name, req)
	})
	if err != nil {
		return model.Region{}, err
	}
	return region, nil
}

func (s *regionService) UpdateRegion(ctx context.Context, userID, id string, req RegionRequest) (model.Region, error) {
	uid, err := parseID("id", id)
	if err != nil {
		return model.Region{}, err
	}
	if err := requireName(req.Name); err != nil {
		return model.Region{}, err
	}

	region, err := s.regionRepo.FindByID(ctx, uid)
	if err != nil {
		return model.Region{}, notFoundOr(err, "region", uid)
	}
	region.Name = req.Name
	region.Description = req.Description

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.regionRepo.Update(txCtx, region); err != nil {
			return fmt.Errorf("failed to update region: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionUpdateRegion, region.ID.String(), region.Name, req)
	})
	if err != nil {
		return model.Region{}, err
	}
	return *region, nil
}

func (s *regionService) DeleteRegion(ctx context.Context, userID, id string) error {
	uid, err := parseID("id", id)
	if err != nil {
		return err
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.regionRepo.Delete(txCtx, uid); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundOr(err, "region", uid)
			}
			return fmt.Errorf("failed to delete region: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, userID, model.ActionDeleteRegion, uid.String(), "", map[string]bool{"deleted": true})
	})
}

func (s *regionService) GetRegions(ctx context.Context, search string, page, limit int) ([]model.Region, int64, error) {
	page, limit = normalizePage(page, limit)
	regions, total, err := s.regionRepo.List(ctx, search, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch regions: %w", err)
	}
	return regions, total, nil
}
