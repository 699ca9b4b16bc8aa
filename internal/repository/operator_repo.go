package repository

import (
	"context"

	"github.com/fabiodmueller-cmd/CASSINO/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OperatorRepository interface {
	Create(ctx context.Context, operator *model.Operator) error
	Update(ctx context.Context, operator *model.Operator) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Operator, error)
	List(ctx context.Context, search string, page, limit int) ([]model.Operator, int64, error)
	ListAll(ctx context.Context) ([]model.Operator, error)
}

type operatorRepository struct {
	db *gorm.DB
}

func NewOperatorRepository(db *gorm.DB) OperatorRepository {
	return &operatorRepository{db: db}
}

func (r *operatorRepository) Create(ctx context.Context, operator *model.Operator) error {
	return GetDB(ctx, r.db).Create(operator).Error
}

// Update saves every column; a preset id that does not exist yet is inserted.
func (r *operatorRepository) Update(ctx context.Context, operator *model.Operator) error {
	return GetDB(ctx, r.db).Save(operator).Error
}

func (r *operatorRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Operator{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *operatorRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Operator, error) {
	var operator model.Operator
	if err := GetDB(ctx, r.db).First(&operator, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &operator, nil
}

func (r *operatorRepository) List(ctx context.Context, search string, page, limit int) ([]model.Operator, int64, error) {
	var operators []model.Operator
	var total int64

	filtered := func() *gorm.DB {
		query := GetDB(ctx, r.db).Model(&model.Operator{})
		if search != "" {
			p := searchPattern(search)
			query = query.Where("name ILIKE ? OR phone ILIKE ?", p, p)
		}
		return query
	}

	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := filtered().Order("name ASC").Offset(offset(page, limit)).Limit(limit).Find(&operators).Error; err != nil {
		return nil, 0, err
	}
	return operators, total, nil
}

func (r *operatorRepository) ListAll(ctx context.Context) ([]model.Operator, error) {
	var operators []model.Operator
	if err := GetDB(ctx, r.db).Order("name ASC").Find(&operators).Error; err != nil {
		return nil, err
	}
	return operators, nil
}
