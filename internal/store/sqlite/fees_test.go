package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/store"
)

func TestListFeesFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	fees := []*domain.Fee{
		{ID: "fee-1", LoanID: "loan-1", StudentID: "student-1", Amount: 15000, Status: domain.FeeStatusUnpaid, Reason: domain.FeeReasonOverdue, CreatedAt: base},
		{ID: "fee-2", LoanID: "loan-2", StudentID: "student-1", Amount: 5000, PaidAmount: 5000, Status: domain.FeeStatusPaid, Reason: domain.FeeReasonOverdue, CreatedAt: base.Add(time.Hour)},
		{ID: "fee-3", LoanID: "loan-3", StudentID: "student-2", Amount: 0, Status: domain.FeeStatusNone, Reason: domain.FeeReasonOnTime, CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, f := range fees {
		_, err := s.db.Exec(`INSERT INTO fees (id, loan_id, student_id, amount, paid_amount, status, reason, created_at) VALUES (?,?,?,?,?,?,?,?)`,
			f.ID, f.LoanID, f.StudentID, f.Amount, f.PaidAmount, string(f.Status), string(f.Reason), formatTime(f.CreatedAt))
		if err != nil {
			t.Fatalf("insert fee %s: %v", f.ID, err)
		}
	}

	all, err := s.ListFees(ctx, store.FeeFilter{})
	if err != nil {
		t.Fatalf("ListFees: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 fees, got %d", len(all))
	}
	// Most recent first.
	if all[0].ID != "fee-3" {
		t.Errorf("order: got %s first", all[0].ID)
	}

	byStudent, err := s.ListFees(ctx, store.FeeFilter{StudentID: "student-1"})
	if err != nil {
		t.Fatalf("ListFees by student: %v", err)
	}
	if len(byStudent) != 2 {
		t.Errorf("student filter: got %d fees", len(byStudent))
	}

	outstanding, err := s.ListFees(ctx, store.FeeFilter{OutstandingOnly: true})
	if err != nil {
		t.Fatalf("ListFees outstanding: %v", err)
	}
	if len(outstanding) != 1 || outstanding[0].ID != "fee-1" {
		t.Errorf("outstanding filter: got %d fees", len(outstanding))
	}

	got, err := s.GetFee(ctx, "fee-2")
	if err != nil {
		t.Fatalf("GetFee: %v", err)
	}
	if got.PaidAmount != 5000 || got.Status != domain.FeeStatusPaid {
		t.Errorf("fee-2: got %+v", got)
	}

	if _, err := s.GetFee(ctx, "missing"); !errors.Is(err, store.ErrFeeNotFound) {
		t.Errorf("expected ErrFeeNotFound, got %v", err)
	}
}
