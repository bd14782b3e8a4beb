package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/service"
	"github.com/openshelf/openshelf-server/internal/store"
)

func (s *Server) registerLoanRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listLoans",
		Method:      http.MethodGet,
		Path:        "/api/v1/loans",
		Summary:     "List loans",
		Description: "Returns loans matching the filters, most recent first",
		Tags:        []string{"Loans"},
	}, s.handleListLoans)

	huma.Register(s.api, huma.Operation{
		OperationID:   "borrowBook",
		Method:        http.MethodPost,
		Path:          "/api/v1/loans",
		Summary:       "Borrow copies",
		Description:   "Allocates available copies of a title to a student. All-or-nothing: if fewer copies are available than requested, nothing is allocated",
		Tags:          []string{"Loans"},
		DefaultStatus: http.StatusCreated,
	}, s.handleBorrowBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "getLoan",
		Method:      http.MethodGet,
		Path:        "/api/v1/loans/{id}",
		Summary:     "Get loan",
		Description: "Returns a loan by ID",
		Tags:        []string{"Loans"},
	}, s.handleGetLoan)

	huma.Register(s.api, huma.Operation{
		OperationID: "previewFine",
		Method:      http.MethodGet,
		Path:        "/api/v1/loans/{id}/fine",
		Summary:     "Preview fine",
		Description: "Returns the fine a return right now would incur, without touching any state",
		Tags:        []string{"Loans"},
	}, s.handlePreviewFine)

	huma.Register(s.api, huma.Operation{
		OperationID: "returnLoan",
		Method:      http.MethodPost,
		Path:        "/api/v1/loans/{id}/return",
		Summary:     "Return loan",
		Description: "Closes a loan: computes the fine, checks the payment, frees the copy, and records the fee, atomically",
		Tags:        []string{"Loans"},
	}, s.handleReturnLoan)
}

// === DTOs ===

// LoanResponse contains loan data in API responses.
type LoanResponse struct {
	ID         string     `json:"id" doc:"Loan ID"`
	StudentID  string     `json:"student_id" doc:"Borrowing student"`
	CopyID     string     `json:"copy_id" doc:"Borrowed copy"`
	BorrowDate time.Time  `json:"borrow_date" doc:"Borrow date (UTC calendar day)"`
	DueDate    time.Time  `json:"due_date" doc:"Due date (UTC calendar day)"`
	ReturnDate *time.Time `json:"return_date,omitempty" doc:"Return date, absent while the loan is open"`
	Active     bool       `json:"active" doc:"Whether the loan is still open"`
}

func mapLoanResponse(l *domain.Loan) LoanResponse {
	return LoanResponse{
		ID:         l.ID,
		StudentID:  l.StudentID,
		CopyID:     l.CopyID,
		BorrowDate: l.BorrowDate,
		DueDate:    l.DueDate,
		ReturnDate: l.ReturnDate,
		Active:     l.Active(),
	}
}

// ListLoansInput contains filters for listing loans.
type ListLoansInput struct {
	StudentID string `query:"student_id" doc:"Filter by student"`
	CopyID    string `query:"copy_id" doc:"Filter by copy"`
	Status    string `query:"status" doc:"Filter by lifecycle state" enum:"all,active,closed,"`
}

// ListLoansOutput wraps the loan list for Huma.
type ListLoansOutput struct {
	Body struct {
		Loans []LoanResponse `json:"loans" doc:"Matching loans"`
	}
}

// BorrowInput wraps the borrow request for Huma.
type BorrowInput struct {
	Body struct {
		StudentID string `json:"student_id" doc:"Borrowing student"`
		BookID    string `json:"book_id" doc:"Title to borrow"`
		Quantity  int    `json:"quantity" doc:"Number of copies" minimum:"1"`
		Days      int    `json:"days" doc:"Loan duration in days" minimum:"1" maximum:"30"`
	}
}

// BorrowOutput wraps the allocated loans for Huma.
type BorrowOutput struct {
	Body struct {
		Loans []LoanResponse `json:"loans" doc:"Allocated loans, one per copy"`
	}
}

// GetLoanInput contains parameters for getting a loan.
type GetLoanInput struct {
	ID string `path:"id" doc:"Loan ID"`
}

// LoanOutput wraps a single loan response for Huma.
type LoanOutput struct {
	Body LoanResponse
}

// FinePreviewOutput wraps the fine preview for Huma.
type FinePreviewOutput struct {
	Body struct {
		LoanID   string    `json:"loan_id" doc:"Loan ID"`
		DueDate  time.Time `json:"due_date" doc:"Due date"`
		LateDays int       `json:"late_days" doc:"Late days if returned now"`
		Fine     int64     `json:"fine" doc:"Fine if returned now"`
		Overdue  bool      `json:"overdue" doc:"Whether the loan is past due"`
	}
}

// ReturnLoanInput wraps the return request for Huma.
type ReturnLoanInput struct {
	ID   string `path:"id" doc:"Loan ID"`
	Body struct {
		Payment int64 `json:"payment,omitempty" doc:"Payment tendered against the fine" minimum:"0"`
	}
}

// FeeResponse contains fee data in API responses.
type FeeResponse struct {
	ID         string    `json:"id" doc:"Fee ID"`
	LoanID     string    `json:"loan_id" doc:"Settled loan"`
	StudentID  string    `json:"student_id" doc:"Charged student"`
	Amount     int64     `json:"amount" doc:"Recorded fine amount"`
	PaidAmount int64     `json:"paid_amount" doc:"Payment received at return time"`
	Status     string    `json:"status" doc:"Payment status: none, paid, or unpaid"`
	Reason     string    `json:"reason" doc:"Why the fee exists: overdue or on time"`
	CreatedAt  time.Time `json:"created_at" doc:"Return time"`
}

func mapFeeResponse(f *domain.Fee) FeeResponse {
	return FeeResponse{
		ID:         f.ID,
		LoanID:     f.LoanID,
		StudentID:  f.StudentID,
		Amount:     f.Amount,
		PaidAmount: f.PaidAmount,
		Status:     string(f.Status),
		Reason:     string(f.Reason),
		CreatedAt:  f.CreatedAt,
	}
}

// ReturnLoanOutput wraps the reconciled return for Huma.
type ReturnLoanOutput struct {
	Body struct {
		Loan LoanResponse `json:"loan" doc:"Closed loan"`
		Fee  FeeResponse  `json:"fee" doc:"Recorded fee"`
	}
}

// === Handlers ===

func (s *Server) handleListLoans(ctx context.Context, input *ListLoansInput) (*ListLoansOutput, error) {
	loans, err := s.services.Circulation.ListLoans(ctx, store.LoanFilter{
		StudentID: input.StudentID,
		CopyID:    input.CopyID,
		Status:    store.LoanStatus(input.Status),
	})
	if err != nil {
		return nil, err
	}

	out := &ListLoansOutput{}
	out.Body.Loans = make([]LoanResponse, len(loans))
	for i, l := range loans {
		out.Body.Loans[i] = mapLoanResponse(l)
	}
	return out, nil
}

func (s *Server) handleBorrowBook(ctx context.Context, input *BorrowInput) (*BorrowOutput, error) {
	loans, err := s.services.Circulation.Borrow(ctx, service.BorrowRequest{
		StudentID: input.Body.StudentID,
		BookID:    input.Body.BookID,
		Quantity:  input.Body.Quantity,
		Days:      input.Body.Days,
	}, s.now())
	if err != nil {
		return nil, err
	}

	out := &BorrowOutput{}
	out.Body.Loans = make([]LoanResponse, len(loans))
	for i, l := range loans {
		out.Body.Loans[i] = mapLoanResponse(l)
	}
	return out, nil
}

func (s *Server) handleGetLoan(ctx context.Context, input *GetLoanInput) (*LoanOutput, error) {
	loan, err := s.services.Circulation.GetLoan(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &LoanOutput{Body: mapLoanResponse(loan)}, nil
}

func (s *Server) handlePreviewFine(ctx context.Context, input *GetLoanInput) (*FinePreviewOutput, error) {
	preview, err := s.services.Circulation.PreviewFine(ctx, input.ID, s.now())
	if err != nil {
		return nil, err
	}

	out := &FinePreviewOutput{}
	out.Body.LoanID = preview.LoanID
	out.Body.DueDate = preview.DueDate
	out.Body.LateDays = preview.LateDays
	out.Body.Fine = preview.Fine
	out.Body.Overdue = preview.Overdue
	return out, nil
}

func (s *Server) handleReturnLoan(ctx context.Context, input *ReturnLoanInput) (*ReturnLoanOutput, error) {
	result, err := s.services.Circulation.ConfirmReturn(ctx, input.ID, service.ReturnRequest{
		Payment: input.Body.Payment,
	}, s.now())
	if err != nil {
		return nil, err
	}

	out := &ReturnLoanOutput{}
	out.Body.Loan = mapLoanResponse(result.Loan)
	out.Body.Fee = mapFeeResponse(result.Fee)
	return out, nil
}
