package repository

import (
	"context"
	"time"

	"github.com/fabiodmueller-cmd/CASSINO/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReadingFilter narrows List. Zero fields are ignored; Limit 0 returns every match.
type ReadingFilter struct {
	MachineID  *uuid.UUID
	MachineIDs []uuid.UUID
	ClientID   *uuid.UUID
	From       time.Time
	To         time.Time
	Page       int
	Limit      int
}

type ReadingRepository interface {
	Create(ctx context.Context, reading *model.Reading) error
	Save(ctx context.Context, reading *model.Reading) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Reading, error)
	// List returns matches newest first along with the unpaged total.
	List(ctx context.Context, filter ReadingFilter) ([]model.Reading, int64, error)
}

type readingRepository struct {
	db *gorm.DB
}

func NewReadingRepository(db *gorm.DB) ReadingRepository {
	return &readingRepository{db: db}
}

func (r *readingRepository) Create(ctx context.Context, reading *model.Reading) error {
	return GetDB(ctx, r.db).Create(reading).Error
}

// Save upserts by id. Only backup import writes readings this way.
func (r *readingRepository) Save(ctx context.Context, reading *model.Reading) error {
	return GetDB(ctx, r.db).Save(reading).Error
}

func (r *readingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Reading{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *readingRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Reading, error) {
	var reading model.Reading
	if err := GetDB(ctx, r.db).First(&reading, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &reading, nil
}

func (r *readingRepository) List(ctx context.Context, filter ReadingFilter) ([]model.Reading, int64, error) {
	var readings []model.Reading
	var total int64

	filtered := func() *gorm.DB {
		query := GetDB(ctx, r.db).Model(&model.Reading{})
		if filter.MachineID != nil {
			query = query.Where("machine_id = ?", *filter.MachineID)
		}
		if len(filter.MachineIDs) > 0 {
			query = query.Where("machine_id IN ?", filter.MachineIDs)
		}
		if filter.ClientID != nil {
			query = query.Where("client_id = ?", *filter.ClientID)
		}
		if !filter.From.IsZero() {
			query = query.Where("reading_date >= ?", filter.From)
		}
		if !filter.To.IsZero() {
			query = query.Where("reading_date <= ?", filter.To)
		}
		return query
	}

	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	fetch := filtered().Order("reading_date DESC").Order("created_at DESC")
	if filter.Limit > 0 {
		fetch = fetch.Offset(offset(filter.Page, filter.Limit)).Limit(filter.Limit)
	}
	if err := fetch.Find(&readings).Error; err != nil {
		return nil, 0, err
	}
	return readings, total, nil
}
