package models

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type CategoriesRepository struct {
	db *gorm.DB
}

type CategoryFilters struct {
	IsActive *bool
}

func NewCategoriesRepository(db *gorm.DB) *CategoriesRepository {
	return &CategoriesRepository{db: db}
}

func (r *CategoriesRepository) List(ctx context.Context, filters CategoryFilters) ([]Category, error) {
	query := r.db.WithContext(ctx).Order("id")
	if filters.IsActive != nil {
		query = query.Where("is_active = ?", *filters.IsActive)
	}

	categories := []Category{}
	if err := query.Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (r *CategoriesRepository) Get(ctx context.Context, id uint) (*Category, error) {
	var category Category
	if err := r.db.WithContext(ctx).First(&category, id).Error; err != nil {
		return nil, translate(err, ErrCategoryNotFound)
	}
	return &category, nil
}

func (r *CategoriesRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Category{}).Count(&n).Error
	return n, err
}

func (r *CategoriesRepository) Create(ctx context.Context, category *Category) error {
	if err := r.check(ctx, category); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(category).Error; err != nil {
		return translate(err, ErrCategoryNotFound)
	}
	return nil
}

// Update saves every column of category. The row must already exist.
func (r *CategoriesRepository) Update(ctx context.Context, category *Category) error {
	if _, err := r.Get(ctx, category.ID); err != nil {
		return err
	}
	if err := r.check(ctx, category); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Save(category).Error; err != nil {
		return translate(err, ErrCategoryNotFound)
	}
	return nil
}

func (r *CategoriesRepository) SetActive(ctx context.Context, id uint, active bool) error {
	res := r.db.WithContext(ctx).Model(&Category{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return fmt.Errorf("update category %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// Delete removes the category unless a product still references it.
func (r *CategoriesRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var category Category
		if err := tx.First(&category, id).Error; err != nil {
			return translate(err, ErrCategoryNotFound)
		}

		var products int64
		if err := tx.Model(&Product{}).Where("category_id = ?", id).Count(&products).Error; err != nil {
			return fmt.Errorf("count products of category %d: %w", id, err)
		}
		if products > 0 {
			return ErrCategoryInUse
		}

		if err := tx.Delete(&category).Error; err != nil {
			return fmt.Errorf("delete category %d: %w", id, err)
		}
		return nil
	})
}

// check validates category and enforces the unique name.
func (r *CategoriesRepository) check(ctx context.Context, category *Category) error {
	if err := category.Validate(); err != nil {
		return err
	}

	var existing Category
	err := r.db.WithContext(ctx).
		Where("name = ? AND id <> ?", category.Name, category.ID).
		First(&existing).Error
	switch {
	case err == nil:
		return ValidationErrors{"name": {"category with this name already exists."}}
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return fmt.Errorf("check category name: %w", err)
	}
}
