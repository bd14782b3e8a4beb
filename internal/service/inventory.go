package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openshelf/openshelf-server/internal/domain"
	apperrors "github.com/openshelf/openshelf-server/internal/errors"
	"github.com/openshelf/openshelf-server/internal/id"
	"github.com/openshelf/openshelf-server/internal/store"
	"github.com/openshelf/openshelf-server/internal/validation"
)

// InventoryService manages the physical copy registry.
type InventoryService struct {
	store    store.Store
	validate *validation.Validator
	logger   *slog.Logger
}

// NewInventoryService creates a new inventory service.
func NewInventoryService(store store.Store, validate *validation.Validator, logger *slog.Logger) *InventoryService {
	return &InventoryService{
		store:    store,
		validate: validate,
		logger:   logger,
	}
}

// AddCopiesRequest registers a batch of new copies for a title.
type AddCopiesRequest struct {
	BookID   string `json:"book_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gte=1,lte=100"`
}

// AddCopies registers quantity new copies of a book, all in Good condition
// and available.
func (s *InventoryService) AddCopies(ctx context.Context, req AddCopiesRequest) ([]*domain.Copy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	if _, err := s.store.GetBook(ctx, req.BookID); err != nil {
		return nil, mapStoreError(err)
	}

	copies := make([]*domain.Copy, 0, req.Quantity)
	for range req.Quantity {
		copyID, err := id.Generate(id.PrefixCopy)
		if err != nil {
			return nil, fmt.Errorf("generate copy ID: %w", err)
		}
		copies = append(copies, domain.NewCopy(copyID, req.BookID))
	}

	if err := s.store.CreateCopies(ctx, copies); err != nil {
		return nil, mapStoreError(err)
	}

	s.logger.Info("copies added",
		"book_id", req.BookID,
		"quantity", req.Quantity,
	)
	return copies, nil
}

// GetCopy retrieves a copy by ID.
func (s *InventoryService) GetCopy(ctx context.Context, copyID string) (*domain.Copy, error) {
	c, err := s.store.GetCopy(ctx, copyID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return c, nil
}

// ListCopies returns copies matching the filter with cursor pagination.
func (s *InventoryService) ListCopies(ctx context.Context, filter store.CopyFilter, params store.PaginationParams) (*store.PaginatedResult[*domain.Copy], error) {
	if filter.Condition != "" && !domain.ValidCondition(string(filter.Condition)) {
		return nil, apperrors.Validationf("unknown condition %q", filter.Condition)
	}

	result, err := s.store.ListCopies(ctx, filter, params)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return result, nil
}

// SetCondition updates a copy's physical condition. A borrowed copy can only
// be marked Lost; the loan stays open until the return is reconciled.
func (s *InventoryService) SetCondition(ctx context.Context, copyID, condition string) (*domain.Copy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !domain.ValidCondition(condition) {
		return nil, apperrors.Validationf("unknown condition %q", condition)
	}

	c, err := s.store.SetCopyCondition(ctx, copyID, domain.Condition(condition))
	if err != nil {
		return nil, mapStoreError(err)
	}

	s.logger.Info("copy condition updated",
		"copy_id", copyID,
		"condition", condition,
	)
	return c, nil
}

// RemoveCopy deletes a copy from the registry. Borrowed copies cannot be
// removed.
func (s *InventoryService) RemoveCopy(ctx context.Context, copyID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.store.DeleteCopy(ctx, copyID); err != nil {
		return mapStoreError(err)
	}

	s.logger.Info("copy removed", "copy_id", copyID)
	return nil
}
