package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/store"
)

func testLoanBuilder(studentID string, borrowedAt time.Time, days int) store.LoanBuilder {
	seq := 0
	return func(c *domain.Copy) (*domain.Loan, error) {
		seq++
		return domain.NewLoan(loanID(seq), studentID, c.ID, borrowedAt, days), nil
	}
}

func loanID(seq int) string {
	return "loan-" + string(rune('0'+seq))
}

func TestAllocateLoans(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insertTestBook(t, s, "book-1", "The Dispossessed")
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	insertTestCopy(t, s, "copy-old", "book-1", domain.ConditionGood, false, base)
	insertTestCopy(t, s, "copy-new", "book-1", domain.ConditionGood, false, base.Add(time.Hour))
	insertTestCopy(t, s, "copy-damaged", "book-1", domain.ConditionDamaged, false, base)

	borrowedAt := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
	loans, err := s.AllocateLoans(ctx, "book-1", 2, testLoanBuilder("student-1", borrowedAt, 14))
	if err != nil {
		t.Fatalf("AllocateLoans: %v", err)
	}
	if len(loans) != 2 {
		t.Fatalf("expected 2 loans, got %d", len(loans))
	}

	// Oldest copy claimed first.
	if loans[0].CopyID != "copy-old" || loans[1].CopyID != "copy-new" {
		t.Errorf("claim order: got %s, %s", loans[0].CopyID, loans[1].CopyID)
	}

	for _, loan := range loans {
		c, err := s.GetCopy(ctx, loan.CopyID)
		if err != nil {
			t.Fatalf("GetCopy %s: %v", loan.CopyID, err)
		}
		if !c.Borrowed {
			t.Errorf("copy %s should be borrowed", c.ID)
		}

		got, err := s.GetLoan(ctx, loan.ID)
		if err != nil {
			t.Fatalf("GetLoan %s: %v", loan.ID, err)
		}
		if !got.Active() {
			t.Errorf("loan %s should be active", loan.ID)
		}
		wantDue := time.Date(2024, 3, 24, 0, 0, 0, 0, time.UTC)
		if !got.DueDate.Equal(wantDue) {
			t.Errorf("due date: got %v, want %v", got.DueDate, wantDue)
		}
	}
}

func TestAllocateLoansInsufficientInventory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insertTestBook(t, s, "book-1", "The Dispossessed")
	insertTestCopy(t, s, "copy-1", "book-1", domain.ConditionGood, false, time.Now())

	_, err := s.AllocateLoans(ctx, "book-1", 2, testLoanBuilder("student-1", time.Now(), 14))
	if !errors.Is(err, store.ErrInsufficientInventory) {
		t.Fatalf("expected ErrInsufficientInventory, got %v", err)
	}

	// Nothing claimed: the single copy stays available.
	c, err := s.GetCopy(ctx, "copy-1")
	if err != nil {
		t.Fatalf("GetCopy: %v", err)
	}
	if c.Borrowed {
		t.Error("failed allocation must not claim copies")
	}
	loans, err := s.ListLoans(ctx, store.LoanFilter{})
	if err != nil {
		t.Fatalf("ListLoans: %v", err)
	}
	if len(loans) != 0 {
		t.Errorf("failed allocation must not record loans, got %d", len(loans))
	}
}

func TestAllocateLoansUnknownBook(t *testing.T) {
	s := newTestStore(t)

	_, err := s.AllocateLoans(context.Background(), "missing", 1, testLoanBuilder("student-1", time.Now(), 14))
	if !errors.Is(err, store.ErrBookNotFound) {
		t.Fatalf("expected ErrBookNotFound, got %v", err)
	}
}

func TestAllocateLoansBuilderErrorAborts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insertTestBook(t, s, "book-1", "The Dispossessed")
	insertTestCopy(t, s, "copy-1", "book-1", domain.ConditionGood, false, time.Now())

	boom := errors.New("boom")
	_, err := s.AllocateLoans(ctx, "book-1", 1, func(c *domain.Copy) (*domain.Loan, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected builder error, got %v", err)
	}

	c, err := s.GetCopy(ctx, "copy-1")
	if err != nil {
		t.Fatalf("GetCopy: %v", err)
	}
	if c.Borrowed {
		t.Error("aborted allocation must not claim copies")
	}
}

func TestCloseLoan(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insertTestBook(t, s, "book-1", "The Dispossessed")
	insertTestCopy(t, s, "copy-1", "book-1", domain.ConditionGood, false, time.Now())

	borrowedAt := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	loans, err := s.AllocateLoans(ctx, "book-1", 1, testLoanBuilder("student-1", borrowedAt, 3))
	if err != nil {
		t.Fatalf("AllocateLoans: %v", err)
	}
	loan := loans[0]

	returnedAt := time.Date(2024, 1, 7, 15, 0, 0, 0, time.UTC)
	fee, err := s.CloseLoan(ctx, loan.ID, returnedAt, func(l *domain.Loan) (*domain.Fee, error) {
		fine := domain.Fine(l.DueDate, returnedAt, domain.DefaultFinePerDay)
		return domain.NewFee("fee-1", l, fine, 0, returnedAt), nil
	})
	if err != nil {
		t.Fatalf("CloseLoan: %v", err)
	}

	// Due 2024-01-04, returned 2024-01-07: three late days.
	if fee.Amount != 3*domain.DefaultFinePerDay {
		t.Errorf("fee amount: got %d, want %d", fee.Amount, 3*domain.DefaultFinePerDay)
	}
	if fee.Status != domain.FeeStatusUnpaid {
		t.Errorf("fee status: got %q, want unpaid", fee.Status)
	}

	got, err := s.GetLoan(ctx, loan.ID)
	if err != nil {
		t.Fatalf("GetLoan: %v", err)
	}
	if got.Active() {
		t.Error("loan should be closed")
	}

	c, err := s.GetCopy(ctx, "copy-1")
	if err != nil {
		t.Fatalf("GetCopy: %v", err)
	}
	if c.Borrowed {
		t.Error("copy should be freed on return")
	}

	stored, err := s.GetFee(ctx, "fee-1")
	if err != nil {
		t.Fatalf("GetFee: %v", err)
	}
	if stored.LoanID != loan.ID {
		t.Errorf("fee loan id: got %q, want %q", stored.LoanID, loan.ID)
	}
}

func TestCloseLoanTwice(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insertTestBook(t, s, "book-1", "The Dispossessed")
	insertTestCopy(t, s, "copy-1", "book-1", domain.ConditionGood, false, time.Now())

	loans, err := s.AllocateLoans(ctx, "book-1", 1, testLoanBuilder("student-1", time.Now(), 7))
	if err != nil {
		t.Fatalf("AllocateLoans: %v", err)
	}

	buildFee := func(l *domain.Loan) (*domain.Fee, error) {
		return domain.NewFee("fee-1", l, 0, 0, time.Now()), nil
	}
	if _, err := s.CloseLoan(ctx, loans[0].ID, time.Now(), buildFee); err != nil {
		t.Fatalf("first CloseLoan: %v", err)
	}
	if _, err := s.CloseLoan(ctx, loans[0].ID, time.Now(), buildFee); !errors.Is(err, store.ErrLoanClosed) {
		t.Fatalf("second CloseLoan: expected ErrLoanClosed, got %v", err)
	}

	fees, err := s.ListFees(ctx, store.FeeFilter{})
	if err != nil {
		t.Fatalf("ListFees: %v", err)
	}
	if len(fees) != 1 {
		t.Errorf("expected exactly one fee, got %d", len(fees))
	}
}

func TestCloseLoanFeeBuilderErrorAborts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insertTestBook(t, s, "book-1", "The Dispossessed")
	insertTestCopy(t, s, "copy-1", "book-1", domain.ConditionGood, false, time.Now())

	loans, err := s.AllocateLoans(ctx, "book-1", 1, testLoanBuilder("student-1", time.Now(), 7))
	if err != nil {
		t.Fatalf("AllocateLoans: %v", err)
	}

	boom := errors.New("overpayment")
	_, err = s.CloseLoan(ctx, loans[0].ID, time.Now(), func(l *domain.Loan) (*domain.Fee, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fee builder error, got %v", err)
	}

	// Return did not happen: loan still active, copy still out.
	got, err := s.GetLoan(ctx, loans[0].ID)
	if err != nil {
		t.Fatalf("GetLoan: %v", err)
	}
	if !got.Active() {
		t.Error("loan should still be active after aborted return")
	}
	c, err := s.GetCopy(ctx, "copy-1")
	if err != nil {
		t.Fatalf("GetCopy: %v", err)
	}
	if !c.Borrowed {
		t.Error("copy should still be borrowed after aborted return")
	}
}

func TestListLoansFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insertTestBook(t, s, "book-1", "The Dispossessed")
	insertTestCopy(t, s, "copy-1", "book-1", domain.ConditionGood, false, time.Now())
	insertTestCopy(t, s, "copy-2", "book-1", domain.ConditionGood, false, time.Now())

	if _, err := s.AllocateLoans(ctx, "book-1", 1, testLoanBuilder("student-1", time.Now(), 7)); err != nil {
		t.Fatalf("AllocateLoans: %v", err)
	}
	loans2, err := s.AllocateLoans(ctx, "book-1", 1, testLoanBuilder("student-2", time.Now(), 7))
	if err != nil {
		t.Fatalf("AllocateLoans: %v", err)
	}
	if _, err := s.CloseLoan(ctx, loans2[0].ID, time.Now(), func(l *domain.Loan) (*domain.Fee, error) {
		return domain.NewFee("fee-1", l, 0, 0, time.Now()), nil
	}); err != nil {
		t.Fatalf("CloseLoan: %v", err)
	}

	byStudent, err := s.ListLoans(ctx, store.LoanFilter{StudentID: "student-1"})
	if err != nil {
		t.Fatalf("ListLoans by student: %v", err)
	}
	if len(byStudent) != 1 || byStudent[0].StudentID != "student-1" {
		t.Errorf("student filter: got %d loans", len(byStudent))
	}

	active, err := s.ListLoans(ctx, store.LoanFilter{Status: store.LoanStatusActive})
	if err != nil {
		t.Fatalf("ListLoans active: %v", err)
	}
	if len(active) != 1 || active[0].StudentID != "student-1" {
		t.Errorf("active filter: got %d loans", len(active))
	}

	closed, err := s.ListLoans(ctx, store.LoanFilter{Status: store.LoanStatusClosed})
	if err != nil {
		t.Fatalf("ListLoans closed: %v", err)
	}
	if len(closed) != 1 || closed[0].StudentID != "student-2" {
		t.Errorf("closed filter: got %d loans", len(closed))
	}
}

func TestAllocateLoansConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insertTestBook(t, s, "book-1", "The Dispossessed")
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	insertTestCopy(t, s, "copy-1", "book-1", domain.ConditionGood, false, base)
	insertTestCopy(t, s, "copy-2", "book-1", domain.ConditionGood, false, base.Add(time.Minute))
	insertTestCopy(t, s, "copy-3", "book-1", domain.ConditionGood, false, base.Add(2*time.Minute))

	borrowedAt := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
	const callers = 4

	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			builder := func(c *domain.Copy) (*domain.Loan, error) {
				id := fmt.Sprintf("loan-%d-%s", i, c.ID)
				return domain.NewLoan(id, fmt.Sprintf("student-%d", i), c.ID, borrowedAt, 14), nil
			}
			_, errs[i] = s.AllocateLoans(ctx, "book-1", 2, builder)
		}(i)
	}
	wg.Wait()

	wins := 0
	for i, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, store.ErrInsufficientInventory):
		default:
			t.Errorf("caller %d: unexpected error: %v", i, err)
		}
	}
	if wins != 1 {
		t.Errorf("wins = %d, want 1", wins)
	}

	loans, err := s.ListLoans(ctx, store.LoanFilter{})
	if err != nil {
		t.Fatalf("ListLoans: %v", err)
	}
	if len(loans) != 2 {
		t.Errorf("got %d loans, want 2", len(loans))
	}

	var borrowed int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM copies WHERE is_borrowed = 1`).Scan(&borrowed); err != nil {
		t.Fatalf("count borrowed: %v", err)
	}
	if borrowed != 2 {
		t.Errorf("borrowed copies = %d, want 2", borrowed)
	}
}
