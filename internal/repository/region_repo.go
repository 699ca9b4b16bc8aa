package repository

import (
	"context"

	"github.com/fabiodmueller-cmd/CASSINO/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RegionRepository interface {
	Create(ctx context.Context, region *model.Region) error
	Update(ctx context.Context, region *model.Region) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Region, error)
	List(ctx context.Context, search string, page, limit int) ([]model.Region, int64, error)
	ListAll(ctx context.Context) ([]model.Region, error)
}

type regionRepository struct {
	db *gorm.DB
}

func NewRegionRepository(db *gorm.DB) RegionRepository {
	return &regionRepository{db: db}
}

func (r *regionRepository) Create(ctx context.Context, region *model.Region) error {
	return GetDB(ctx, r.db).Create(region).Error
}

func (r *regionRepository) Update(ctx context.Context, region *model.Region) error {
	return GetDB(ctx, r.db).Save(region).Error
}

func (r *regionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Region{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *regionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Region, error) {
	var region model.Region
	if err := GetDB(ctx, r.db).First(&region, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &region, nil
}

func (r *regionRepository) List(ctx context.Context, search string, page, limit int) ([]model.Region, int64, error) {
	var regions []model.Region
	var total int64

	filtered := func() *gorm.DB {
		query := GetDB(ctx, r.db).Model(&model.Region{})
		if search != "" {
			query = query.Where("name ILIKE ?", searchPattern(search))
		}
		return query
	}

	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := filtered().Order("name ASC").Offset(offset(page, limit)).Limit(limit).Find(&regions).Error; err != nil {
		return nil, 0, err
	}
	return regions, total, nil
}

func (r *regionRepository) ListAll(ctx context.Context) ([]model.Region, error) {
	var regions []model.Region
	if err := GetDB(ctx, r.db).Order("name ASC").Find(&regions).Error; err != nil {
		return nil, err
	}
	return regions, nil
}
