package repository

import (
	"context"

	"github.com/fabiodmueller-cmd/CASSINO/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LinkRepository interface {
	Create(ctx context.Context, link *model.Link) error
	Save(ctx context.Context, link *model.Link) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Link, error)
	// ListByClient returns the client's links oldest first, ties by id.
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]model.Link, error)
	ListAll(ctx context.Context) ([]model.Link, error)
}

type linkRepository struct {
	db *gorm.DB
}

func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(ctx context.Context, link *model.Link) error {
	return GetDB(ctx, r.db).Create(link).Error
}

func (r *linkRepository) Save(ctx context.Context, link *model.Link) error {
	return GetDB(ctx, r.db).Save(link).Error
}

func (r *linkRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Link{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *linkRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Link, error) {
	var link model.Link
	if err := GetDB(ctx, r.db).First(&link, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]model.Link, error) {
	var links []model.Link
	err := GetDB(ctx, r.db).
		Where("client_id = ?", clientID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (r *linkRepository) ListAll(ctx context.Context) ([]model.Link, error) {
	var links []model.Link
	if err := GetDB(ctx, r.db).Order("created_at ASC").Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}
