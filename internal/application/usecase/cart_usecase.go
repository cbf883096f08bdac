// backend/internal/application/usecase/cart_usecase.go
package usecase

import (
	"context"
	"errors"
	"strings"

	bookdom "booknest/internal/domain/book"
	cartdom "booknest/internal/domain/cart"
)

var ErrCartInvalidArgument = errors.New("cart_usecase: invalid argument")

// CartUsecase coordinates cart operations for the acting user.
// The cart collection is user-scoped, so ctx must carry the user (or guest) id.
type CartUsecase struct {
	repo  cartdom.Repository
	books bookdom.Repository
	clock Clock
}

func NewCartUsecase(repo cartdom.Repository, books bookdom.Repository) *CartUsecase {
	return &CartUsecase{
		repo:  repo,
		books: books,
		clock: systemClock{},
	}
}

// NewCartUsecaseWithClock is useful for tests.
func NewCartUsecaseWithClock(repo cartdom.Repository, books bookdom.Repository, clock Clock) *CartUsecase {
	if clock == nil {
		clock = systemClock{}
	}
	return &CartUsecase{repo: repo, books: books, clock: clock}
}

func (uc *CartUsecase) Get(ctx context.Context) (*cartdom.Cart, error) {
	return uc.repo.Get(ctx)
}

// AddBook puts one more copy of bookID in the cart, bounded by the book's stock.
func (uc *CartUsecase) AddBook(ctx context.Context, bookID string) (*cartdom.Cart, error) {
	bid := strings.TrimSpace(bookID)
	if bid == "" {
		return nil, ErrCartInvalidArgument
	}
	b, err := uc.books.GetByID(ctx, bid)
	if err != nil {
		return nil, err
	}

	c, err := uc.repo.Get(ctx)
	if err != nil {
		return nil, err
	}
	item := cartdom.CartItem{
		BookID: b.ID,
		Title:  b.Title,
		Author: b.Author,
		Price:  b.Price,
		Stock:  b.Stock,
		Image:  b.Cover(),
	}
	if err := c.Add(item, uc.clock.Now()); err != nil {
		return nil, err
	}
	if err := uc.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// SetQty sets the quantity of a line; qty <= 0 removes it.
func (uc *CartUsecase) SetQty(ctx context.Context, bookID string, qty int) (*cartdom.Cart, error) {
	bid := strings.TrimSpace(bookID)
	if bid == "" {
		return nil, ErrCartInvalidArgument
	}
	c, err := uc.repo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.SetQty(bid, qty, uc.clock.Now()); err != nil {
		return nil, err
	}
	if err := uc.repo.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (uc *CartUsecase) Remove(ctx context.Context, bookID string) (*cartdom.Cart, error) {
	return uc.SetQty(ctx, bookID, 0)
}

func (uc *CartUsecase) Clear(ctx context.Context) error {
	return uc.repo.Clear(ctx)
}
