// backend/internal/domain/book/entity.go
package book

import (
	"errors"
	"strings"

	"booknest/internal/domain/common"
)

// Book is a catalog entry (global collection "books", local key "booksData").
type Book struct {
	ID        common.ID `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author,omitempty"`
	Price     float64   `json:"price"`
	Stock     int       `json:"stock"`
	Condition string    `json:"condition,omitempty"`
	Format    string    `json:"format,omitempty"`
	Origin    string    `json:"origin,omitempty"`
	Status    string    `json:"status,omitempty"`
	Shelf     string    `json:"shelf,omitempty"`
	Image     string    `json:"image,omitempty"`
	Images    []string  `json:"images,omitempty"`
}

// Errors (single source)
var (
	ErrNotFound     = errors.New("book: not found")
	ErrInvalidTitle = errors.New("book: title is required")
	ErrInvalidPrice = errors.New("book: price must be >= 0")
	ErrInvalidStock = errors.New("book: stock must be >= 0")
)

func (b Book) Validate() error {
	if strings.TrimSpace(b.Title) == "" {
		return ErrInvalidTitle
	}
	if b.Price < 0 {
		return ErrInvalidPrice
	}
	if b.Stock < 0 {
		return ErrInvalidStock
	}
	return nil
}

// Cover returns the first image.
func (b Book) Cover() string {
	if strings.TrimSpace(b.Image) != "" {
		return b.Image
	}
	if len(b.Images) > 0 {
		return b.Images[0]
	}
	return ""
}
