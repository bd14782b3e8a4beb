package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openshelf/openshelf-server/internal/config"
	"github.com/openshelf/openshelf-server/internal/domain"
	apperrors "github.com/openshelf/openshelf-server/internal/errors"
	"github.com/openshelf/openshelf-server/internal/id"
	"github.com/openshelf/openshelf-server/internal/store"
	"github.com/openshelf/openshelf-server/internal/validation"
)

// CirculationService orchestrates the borrow and return flows. All
// time-dependent operations take the current instant as a parameter so the
// transport layer owns the clock and the logic stays reproducible.
type CirculationService struct {
	store    store.Store
	validate *validation.Validator
	cfg      config.CirculationConfig
	logger   *slog.Logger
}

// NewCirculationService creates a new circulation service.
func NewCirculationService(store store.Store, validate *validation.Validator, cfg config.CirculationConfig, logger *slog.Logger) *CirculationService {
	return &CirculationService{
		store:    store,
		validate: validate,
		cfg:      cfg,
		logger:   logger,
	}
}

// BorrowRequest asks for quantity copies of one title for one student.
type BorrowRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	BookID    string `json:"book_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
	Days      int    `json:"days" validate:"required"`
}

// Borrow allocates quantity available copies of the requested book to the
// student, recording one loan per copy. The allocation is all-or-nothing:
// if fewer copies are available than requested, no loan is recorded.
//
// Validation failures are reported before availability is consulted, so a
// malformed request never surfaces as an inventory problem.
func (s *CirculationService) Borrow(ctx context.Context, req BorrowRequest, now time.Time) ([]*domain.Loan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}
	if req.Days < s.cfg.MinBorrowDays || req.Days > s.cfg.MaxBorrowDays {
		return nil, apperrors.Validationf("days must be between %d and %d", s.cfg.MinBorrowDays, s.cfg.MaxBorrowDays)
	}

	loans, err := s.store.AllocateLoans(ctx, req.BookID, req.Quantity, func(c *domain.Copy) (*domain.Loan, error) {
		loanID, err := id.Generate(id.PrefixLoan)
		if err != nil {
			return nil, fmt.Errorf("generate loan ID: %w", err)
		}
		return domain.NewLoan(loanID, req.StudentID, c.ID, now, req.Days), nil
	})
	if err != nil {
		return nil, mapStoreError(err)
	}

	s.logger.Info("loans allocated",
		"student_id", req.StudentID,
		"book_id", req.BookID,
		"quantity", req.Quantity,
		"due_date", loans[0].DueDate,
	)
	return loans, nil
}

// ReturnRequest settles one loan, optionally with a payment against the fine.
type ReturnRequest struct {
	Payment int64 `json:"payment" validate:"gte=0"`
}

// ReturnResult reports the reconciled return.
type ReturnResult struct {
	Loan *domain.Loan `json:"loan"`
	Fee  *domain.Fee  `json:"fee"`
}

// ConfirmReturn closes a loan at the given instant: it computes the fine,
// checks the payment against it, frees the copy, and records the fee, all
// atomically. A payment above the computed fine rejects the whole return.
func (s *CirculationService) ConfirmReturn(ctx context.Context, loanID string, req ReturnRequest, now time.Time) (*ReturnResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// An unknown loan is not-found regardless of the payload.
	if _, err := s.store.GetLoan(ctx, loanID); err != nil {
		return nil, mapStoreError(err)
	}
	if err := s.validate.Validate(req); err != nil {
		return nil, err
	}

	fee, err := s.store.CloseLoan(ctx, loanID, now, func(loan *domain.Loan) (*domain.Fee, error) {
		fine := domain.Fine(loan.DueDate, now, s.cfg.FinePerDay)
		if req.Payment > fine {
			return nil, apperrors.Overpayment(fmt.Sprintf("payment %d exceeds fine %d", req.Payment, fine))
		}

		feeID, err := id.Generate(id.PrefixFee)
		if err != nil {
			return nil, fmt.Errorf("generate fee ID: %w", err)
		}
		return domain.NewFee(feeID, loan, fine, req.Payment, now), nil
	})
	if err != nil {
		return nil, mapStoreError(err)
	}

	loan, err := s.store.GetLoan(ctx, loanID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	s.logger.Info("loan returned",
		"loan_id", loanID,
		"fee_id", fee.ID,
		"amount", fee.Amount,
		"status", fee.Status,
	)
	return &ReturnResult{Loan: loan, Fee: fee}, nil
}

// FinePreview reports what a return would cost at a given instant, without
// touching any state.
type FinePreview struct {
	LoanID   string    `json:"loan_id"`
	DueDate  time.Time `json:"due_date"`
	LateDays int       `json:"late_days"`
	Fine     int64     `json:"fine"`
	Overdue  bool      `json:"overdue"`
}

// PreviewFine computes the fine a return at now would incur. The loan must
// still be open.
func (s *CirculationService) PreviewFine(ctx context.Context, loanID string, now time.Time) (*FinePreview, error) {
	loan, err := s.store.GetLoan(ctx, loanID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if !loan.Active() {
		return nil, apperrors.InvalidState("loan is already returned")
	}

	lateDays := domain.LateDays(loan.DueDate, now)
	return &FinePreview{
		LoanID:   loanID,
		DueDate:  loan.DueDate,
		LateDays: lateDays,
		Fine:     int64(lateDays) * s.cfg.FinePerDay,
		Overdue:  lateDays > 0,
	}, nil
}

// GetLoan retrieves a loan by ID.
func (s *CirculationService) GetLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	loan, err := s.store.GetLoan(ctx, loanID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return loan, nil
}

// ListLoans returns loans matching the filter.
func (s *CirculationService) ListLoans(ctx context.Context, filter store.LoanFilter) ([]*domain.Loan, error) {
	if filter.Status != "" && filter.Status != store.LoanStatusAll &&
		filter.Status != store.LoanStatusActive && filter.Status != store.LoanStatusClosed {
		return nil, apperrors.Validationf("unknown loan status %q", filter.Status)
	}

	loans, err := s.store.ListLoans(ctx, filter)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return loans, nil
}

// GetFee retrieves a fee by ID.
func (s *CirculationService) GetFee(ctx context.Context, feeID string) (*domain.Fee, error) {
	fee, err := s.store.GetFee(ctx, feeID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return fee, nil
}

// ListFees returns fee records matching the filter.
func (s *CirculationService) ListFees(ctx context.Context, filter store.FeeFilter) ([]*domain.Fee, error) {
	fees, err := s.store.ListFees(ctx, filter)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return fees, nil
}
