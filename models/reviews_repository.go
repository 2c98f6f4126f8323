package models

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type ReviewsRepository struct {
	db *gorm.DB
}

type ReviewFilters struct {
	ProductID uint
	Rating    int
}

func NewReviewsRepository(db *gorm.DB) *ReviewsRepository {
	return &ReviewsRepository{db: db}
}

// List returns reviews newest first, with their product and author loaded.
func (r *ReviewsRepository) List(ctx context.Context, filters ReviewFilters) ([]Review, error) {
	query := r.db.WithContext(ctx).
		Preload("Product").
		Preload("User").
		Order("created_at DESC, id DESC")
	if filters.ProductID != 0 {
		query = query.Where("product_id = ?", filters.ProductID)
	}
	if filters.Rating != 0 {
		query = query.Where("rating = ?", filters.Rating)
	}

	reviews := []Review{}
	if err := query.Find(&reviews).Error; err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

func (r *ReviewsRepository) Get(ctx context.Context, id uint) (*Review, error) {
	var review Review
	if err := r.db.WithContext(ctx).
		Preload("Product").
		Preload("User").
		First(&review, id).Error; err != nil {
		return nil, translate(err, ErrReviewNotFound)
	}
	return &review, nil
}

func (r *ReviewsRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Review{}).Count(&n).Error
	return n, err
}

func (r *ReviewsRepository) Create(ctx context.Context, review *Review) error {
	if err := r.check(ctx, review); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Omit("Product", "User").Create(review).Error; err != nil {
		return translate(err, ErrReviewNotFound)
	}
	return nil
}

func (r *ReviewsRepository) Update(ctx context.Context, review *Review) error {
	current, err := r.Get(ctx, review.ID)
	if err != nil {
		return err
	}
	if err := r.check(ctx, review); err != nil {
		return err
	}
	review.CreatedAt = current.CreatedAt
	if err := r.db.WithContext(ctx).Omit("Product", "User").Save(review).Error; err != nil {
		return translate(err, ErrReviewNotFound)
	}
	return nil
}

func (r *ReviewsRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&Review{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete review %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrReviewNotFound
	}
	return nil
}

func (r *ReviewsRepository) check(ctx context.Context, review *Review) error {
	if err := review.Validate(); err != nil {
		return err
	}

	var product Product
	err := r.db.WithContext(ctx).First(&product, review.ProductID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ValidationErrors{"product": {invalidChoiceMsg}}
	case err != nil:
		return fmt.Errorf("load product %d: %w", review.ProductID, err)
	}

	var user User
	err = r.db.WithContext(ctx).First(&user, review.UserID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ValidationErrors{"user": {invalidChoiceMsg}}
	case err != nil:
		return fmt.Errorf("load user %d: %w", review.UserID, err)
	}

	review.Product = product
	review.User = user
	return nil
}
