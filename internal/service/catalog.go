// Package service provides the business logic layer for the circulation
// server: catalog management, copy inventory, and the borrow/return flows.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openshelf/openshelf-server/internal/domain"
	apperrors "github.com/openshelf/openshelf-server/internal/errors"
	"github.com/openshelf/openshelf-server/internal/id"
	"github.com/openshelf/openshelf-server/internal/store"
	"github.com/openshelf/openshelf-server/internal/validation"
)

// mapStoreError translates store sentinels into coded application errors.
// Unknown errors pass through for the transport layer to treat as internal.
func mapStoreError(err error) error {
	switch {
	case errors.Is(err, store.ErrBookNotFound):
		return apperrors.NotFound("book not found").WithCause(err)
	case errors.Is(err, store.ErrCopyNotFound):
		return apperrors.NotFound("copy not found").WithCause(err)
	case errors.Is(err, store.ErrLoanNotFound):
		return apperrors.NotFound("loan not found").WithCause(err)
	case errors.Is(err, store.ErrFeeNotFound):
		return apperrors.NotFound("fee not found").WithCause(err)
	case errors.Is(err, store.ErrAlreadyExists):
		return apperrors.AlreadyExists("record already exists").WithCause(err)
	case errors.Is(err, store.ErrInsufficientInventory):
		return apperrors.InsufficientInventory("not enough available copies").WithCause(err)
	case errors.Is(err, store.ErrLoanClosed):
		return apperrors.InvalidState("loan is already returned").WithCause(err)
	case errors.Is(err, store.ErrCopyBorrowed):
		return apperrors.InvalidState("copy is currently borrowed").WithCause(err)
	case errors.Is(err, store.ErrCopyNotBorrowed):
		return apperrors.InvalidState("copy is not borrowed").WithCause(err)
	default:
		return err
	}
}

// CatalogService manages book titles.
type CatalogService struct {
	store    store.Store
	validate *validation.Validator
	logger   *slog.Logger
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(store store.Store, validate *validation.Validator, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		store:    store,
		validate: validate,
		logger:   logger,
	}
}

// CreateBookRequest carries the fields for a new catalog title.
type CreateBookRequest struct {
	Title  string `json:"title" validate:"required,max=500"`
	Author string `json:"author" validate:"required,max=200"`
	ISBN   string `json:"isbn,omitempty" validate:"omitempty,max=20"`
	OLID   string `json:"olid,omitempty" validate:"omitempty,max=20"`
}

// CreateBook adds a title to the catalog.
func (s *CatalogService) CreateBook(ctx context.Context, req CreateBookRequest) (*domain.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	bookID, err := id.Generate(id.PrefixBook)
	if err != nil {
		return nil, fmt.Errorf("generate book ID: %w", err)
	}

	book := domain.NewBook(bookID, req.Title, req.Author)
	book.ISBN = req.ISBN
	book.OLID = req.OLID

	if err := s.store.CreateBook(ctx, book); err != nil {
		return nil, mapStoreError(err)
	}

	s.logger.Info("book created",
		"book_id", bookID,
		"title", req.Title,
	)
	return book, nil
}

// UpdateBookRequest carries catalog field updates. Empty fields are left
// unchanged.
type UpdateBookRequest struct {
	Title  string `json:"title,omitempty" validate:"omitempty,max=500"`
	Author string `json:"author,omitempty" validate:"omitempty,max=200"`
	ISBN   string `json:"isbn,omitempty" validate:"omitempty,max=20"`
	OLID   string `json:"olid,omitempty" validate:"omitempty,max=20"`
}

// UpdateBook updates a title's catalog fields.
func (s *CatalogService) UpdateBook(ctx context.Context, bookID string, req UpdateBookRequest) (*domain.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	if req.Title != "" {
		book.Title = req.Title
	}
	if req.Author != "" {
		book.Author = req.Author
	}
	if req.ISBN != "" {
		book.ISBN = req.ISBN
	}
	if req.OLID != "" {
		book.OLID = req.OLID
	}
	book.Touch()

	if err := s.store.UpdateBook(ctx, book); err != nil {
		return nil, mapStoreError(err)
	}

	s.logger.Info("book updated", "book_id", bookID)
	return book, nil
}

// GetBook retrieves a title by ID.
func (s *CatalogService) GetBook(ctx context.Context, bookID string) (*domain.Book, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return book, nil
}

// ListBooks returns all catalog titles.
func (s *CatalogService) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	books, err := s.store.ListBooks(ctx)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return books, nil
}

// Availability reports how many copies of a title are available to borrow.
type Availability struct {
	BookID         string `json:"book_id"`
	AvailableCount int    `json:"available_count"`
}

// GetAvailability counts the allocatable copies of a title.
func (s *CatalogService) GetAvailability(ctx context.Context, bookID string) (*Availability, error) {
	if _, err := s.store.GetBook(ctx, bookID); err != nil {
		return nil, mapStoreError(err)
	}

	n, err := s.store.CountAvailableCopies(ctx, bookID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return &Availability{BookID: bookID, AvailableCount: n}, nil
}
