package models

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

type ProductsRepository struct {
	db *gorm.DB
}

type ProductFilters struct {
	CategoryID uint
	IsActive   *bool
	// Search matches name or description, case-insensitively.
	Search string
}

func NewProductsRepository(db *gorm.DB) *ProductsRepository {
	return &ProductsRepository{
		db: db,
	}
}

// List returns products ordered by id together with the number of rows that
// match filters. A limit of zero or less returns every match.
func (r *ProductsRepository) List(ctx context.Context, filters ProductFilters, offset, limit int) ([]Product, int64, error) {
	query := r.db.WithContext(ctx).Model(&Product{})

	if filters.CategoryID != 0 {
		query = query.Where("products.category_id = ?", filters.CategoryID)
	}
	if filters.IsActive != nil {
		query = query.Where("products.is_active = ?", *filters.IsActive)
	}
	if s := strings.TrimSpace(filters.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		query = query.Where("LOWER(products.name) LIKE ? OR LOWER(products.description) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query = query.Preload("Category").Order("products.id").Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}

	products := []Product{}
	if err := query.Find(&products).Error; err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return products, total, nil
}

func (r *ProductsRepository) Get(ctx context.Context, id uint) (*Product, error) {
	var product Product
	if err := r.db.WithContext(ctx).
		Preload("Category").
		First(&product, id).Error; err != nil {
		return nil, translate(err, ErrProductNotFound)
	}
	return &product, nil
}

func (r *ProductsRepository) Create(ctx context.Context, product *Product) error {
	if err := r.check(ctx, product); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Omit("Category").Create(product).Error; err != nil {
		return translate(err, ErrProductNotFound)
	}
	return nil
}

// Update saves every column of product. The row must already exist.
func (r *ProductsRepository) Update(ctx context.Context, product *Product) error {
	current, err := r.Get(ctx, product.ID)
	if err != nil {
		return err
	}
	if err := r.check(ctx, product); err != nil {
		return err
	}
	product.CreatedAt = current.CreatedAt
	if err := r.db.WithContext(ctx).Omit("Category").Save(product).Error; err != nil {
		return translate(err, ErrProductNotFound)
	}
	return nil
}

func (r *ProductsRepository) SetActive(ctx context.Context, id uint, active bool) error {
	res := r.db.WithContext(ctx).Model(&Product{}).Where("id = ?", id).Update("is_active", active)
	if res.Error != nil {
		return fmt.Errorf("update product %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// Delete removes the product and its reviews.
func (r *ProductsRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&Review{}).Error; err != nil {
			return fmt.Errorf("delete reviews of product %d: %w", id, err)
		}
		res := tx.Delete(&Product{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete product %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrProductNotFound
		}
		return nil
	})
}

func (r *ProductsRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Product{}).Count(&n).Error
	return n, err
}

// check validates product and resolves its category, which must exist.
func (r *ProductsRepository) check(ctx context.Context, product *Product) error {
	if err := product.Validate(); err != nil {
		return err
	}

	var category Category
	err := r.db.WithContext(ctx).First(&category, product.CategoryID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ValidationErrors{"category": {invalidChoiceMsg}}
	case err != nil:
		return fmt.Errorf("load category %d: %w", product.CategoryID, err)
	}
	product.Category = category
	return nil
}
