// backend/internal/application/usecase/catalog_usecase.go
package usecase

import (
	"context"
	"sort"
	"strings"

	bookdom "booknest/internal/domain/book"
)

type CatalogUsecase struct {
	books bookdom.Repository
}

func NewCatalogUsecase(books bookdom.Repository) *CatalogUsecase {
	return &CatalogUsecase{books: books}
}

// CatalogFilter narrows List. Zero values match everything.
type CatalogFilter struct {
	Query     string
	Condition string
	Format    string
	InStock   bool
}

func (f CatalogFilter) match(b bookdom.Book) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(b.Title), q) && !strings.Contains(strings.ToLower(b.Author), q) {
			return false
		}
	}
	if f.Condition != "" && !strings.EqualFold(b.Condition, f.Condition) {
		return false
	}
	if f.Format != "" && !strings.EqualFold(b.Format, f.Format) {
		return false
	}
	if f.InStock && b.Stock <= 0 {
		return false
	}
	return true
}

func (uc *CatalogUsecase) List(ctx context.Context, f CatalogFilter) ([]bookdom.Book, error) {
	all, err := uc.books.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]bookdom.Book, 0, len(all))
	for _, b := range all {
		if f.match(b) {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
	})
	return out, nil
}

func (uc *CatalogUsecase) Get(ctx context.Context, id string) (*bookdom.Book, error) {
	return uc.books.GetByID(ctx, strings.TrimSpace(id))
}

func (uc *CatalogUsecase) Create(ctx context.Context, b bookdom.Book) (bookdom.Book, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return b, err
	}
	if err := b.Validate(); err != nil {
		return b, err
	}
	return uc.books.Create(ctx, b)
}

// Update replaces the editable fields of a book.
func (uc *CatalogUsecase) Update(ctx context.Context, id string, b bookdom.Book) (*bookdom.Book, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	cur, err := uc.books.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{
		"title":     strings.TrimSpace(b.Title),
		"author":    strings.TrimSpace(b.Author),
		"price":     b.Price,
		"stock":     b.Stock,
		"condition": b.Condition,
		"format":    b.Format,
		"origin":    b.Origin,
		"status":    b.Status,
		"shelf":     b.Shelf,
		"image":     b.Image,
	}
	if len(b.Images) > 0 {
		fields["images"] = b.Images
	}
	if err := uc.books.Update(ctx, cur.ID.String(), fields); err != nil {
		return nil, err
	}
	return uc.books.GetByID(ctx, cur.ID.String())
}

func (uc *CatalogUsecase) Delete(ctx context.Context, id string) error {
	if _, err := requireAdmin(ctx); err != nil {
		return err
	}
	return uc.books.Delete(ctx, id)
}
