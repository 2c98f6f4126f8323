package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups products. Categories are switched off through IsActive
// rather than deleted.
type Category struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:100;uniqueIndex;not null"`
	IsActive  bool   `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *Category) TableName() string {
	return "categories"
}

// Product is a sellable catalog item. Image holds the path of the stored
// file relative to the media root, or "" when the product has no image.
type Product struct {
	ID          uint            `gorm:"primaryKey"`
	Name        string          `gorm:"size:200;not null"`
	Description string          `gorm:"type:text"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Image       string          `gorm:"size:255"`
	CategoryID  uint            `gorm:"not null;index"`
	Category    Category        `gorm:"foreignKey:CategoryID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	IsActive    bool            `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (p *Product) TableName() string {
	return "products"
}

// Review is a rating with a comment left by a user on a product.
type Review struct {
	ID        uint    `gorm:"primaryKey"`
	ProductID uint    `gorm:"not null;index"`
	Product   Product `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	UserID    uint    `gorm:"not null;index"`
	User      User    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Rating    int     `gorm:"not null"`
	Comment   string  `gorm:"type:text"`
	CreatedAt time.Time
}

func (r *Review) TableName() string {
	return "reviews"
}

// User is a site account. Staff users can reach the admin pages.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"size:150;uniqueIndex;not null"`
	Email        string `gorm:"size:254;index"`
	PasswordHash string `gorm:"size:128;not null"`
	IsStaff      bool   `gorm:"not null"`
	IsActive     bool   `gorm:"not null"`
	DateJoined   time.Time
	LastLogin    *time.Time
}

func (u *User) TableName() string {
	return "users"
}

// All lists every persisted entity in migration order.
func All() []interface{} {
	return []interface{}{&User{}, &Category{}, &Product{}, &Review{}}
}
