package repository

import (
	"context"

	"github.com/fabiodmueller-cmd/CASSINO/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MachineFilter narrows List. Zero fields are ignored.
type MachineFilter struct {
	Search   string
	ClientID *uuid.UUID
	RegionID *uuid.UUID
	Active   *bool
}

type MachineRepository interface {
	Create(ctx context.Context, machine *model.Machine) error
	Update(ctx context.Context, machine *model.Machine) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Machine, error)
	FindByCode(ctx context.Context, code string) (*model.Machine, error)
	List(ctx context.Context, filter MachineFilter, page, limit int) ([]model.Machine, int64, error)
	ListAll(ctx context.Context) ([]model.Machine, error)
}

type machineRepository struct {
	db *gorm.DB
}

func NewMachineRepository(db *gorm.DB) MachineRepository {
	return &machineRepository{db: db}
}

func (r *machineRepository) Create(ctx context.Context, machine *model.Machine) error {
	return GetDB(ctx, r.db).Create(machine).Error
}

func (r *machineRepository) Update(ctx context.Context, machine *model.Machine) error {
	return GetDB(ctx, r.db).Save(machine).Error
}

func (r *machineRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Machine{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *machineRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Machine, error) {
	var machine model.Machine
	if err := GetDB(ctx, r.db).First(&machine, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &machine, nil
}

func (r *machineRepository) FindByCode(ctx context.Context, code string) (*model.Machine, error) {
	var machine model.Machine
	if err := GetDB(ctx, r.db).First(&machine, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &machine, nil
}

func (r *machineRepository) List(ctx context.Context, filter MachineFilter, page, limit int) ([]model.Machine, int64, error) {
	var machines []model.Machine
	var total int64

	filtered := func() *gorm.DB {
		query := GetDB(ctx, r.db).Model(&model.Machine{})
		if filter.Search != "" {
			p := searchPattern(filter.Search)
			query = query.Where("code ILIKE ? OR name ILIKE ?", p, p)
		}
		if filter.ClientID != nil {
			query = query.Where("client_id = ?", *filter.ClientID)
		}
		if filter.RegionID != nil {
			query = query.Where("region_id = ?", *filter.RegionID)
		}
		if filter.Active != nil {
			query = query.Where("active = ?", *filter.Active)
		}
		return query
	}

	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := filtered().Order("code ASC").Offset(offset(page, limit)).Limit(limit).Find(&machines).Error; err != nil {
		return nil, 0, err
	}
	return machines, total, nil
}

func (r *machineRepository) ListAll(ctx context.Context) ([]model.Machine, error) {
	var machines []model.Machine
	if err := GetDB(ctx, r.db).Order("code ASC").Find(&machines).Error; err != nil {
		return nil, err
	}
	return machines, nil
}
