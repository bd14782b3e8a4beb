package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var borrowTime = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

// borrowTestLoan walks a book through intake and borrow, returning the loan.
func borrowTestLoan(t *testing.T, ts *testServer, days int) LoanResponse {
	t.Helper()

	bookID := createTestBook(t, ts, "Borrowed Title")
	addTestCopies(t, ts, bookID, 1)

	resp := ts.api.Post("/api/v1/loans", map[string]any{
		"student_id": "student-1",
		"book_id":    bookID,
		"quantity":   1,
		"days":       days,
	})
	require.Equal(t, http.StatusCreated, resp.Code)

	var out struct {
		Loans []LoanResponse `json:"loans"`
	}
	decodeBody(t, resp.Body.Bytes(), &out)
	require.Len(t, out.Loans, 1)
	return out.Loans[0]
}

func TestBorrow(t *testing.T) {
	ts := setupTestServer(t)
	ts.setClock(borrowTime)

	bookID := createTestBook(t, ts, "Lending Title")
	addTestCopies(t, ts, bookID, 3)

	resp := ts.api.Post("/api/v1/loans", map[string]any{
		"student_id": "student-1",
		"book_id":    bookID,
		"quantity":   2,
		"days":       3,
	})
	require.Equal(t, http.StatusCreated, resp.Code)

	var out struct {
		Loans []LoanResponse `json:"loans"`
	}
	decodeBody(t, resp.Body.Bytes(), &out)
	require.Len(t, out.Loans, 2)

	wantDue := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	for _, loan := range out.Loans {
		assert.Equal(t, "student-1", loan.StudentID)
		assert.True(t, loan.Active)
		assert.Nil(t, loan.ReturnDate)
		assert.True(t, loan.DueDate.Equal(wantDue), "due date %v", loan.DueDate)
	}
	assert.NotEqual(t, out.Loans[0].CopyID, out.Loans[1].CopyID)

	// Both copies are now out.
	resp = ts.api.Get("/api/v1/books/" + bookID + "/availability")
	require.Equal(t, http.StatusOK, resp.Code)

	var avail struct {
		AvailableCount int `json:"available_count"`
	}
	decodeBody(t, resp.Body.Bytes(), &avail)
	assert.Equal(t, 1, avail.AvailableCount)
}

func TestBorrowInsufficientInventory(t *testing.T) {
	ts := setupTestServer(t)
	ts.setClock(borrowTime)

	bookID := createTestBook(t, ts, "Scarce Title")
	addTestCopies(t, ts, bookID, 1)

	resp := ts.api.Post("/api/v1/loans", map[string]any{
		"student_id": "student-1",
		"book_id":    bookID,
		"quantity":   2,
		"days":       7,
	})
	assert.Equal(t, http.StatusConflict, resp.Code)

	var apiErr APIError
	decodeBody(t, resp.Body.Bytes(), &apiErr)
	assert.Equal(t, "INSUFFICIENT_INVENTORY", apiErr.Code)

	// The lone copy stays available.
	resp = ts.api.Get("/api/v1/books/" + bookID + "/availability")
	require.Equal(t, http.StatusOK, resp.Code)

	var avail struct {
		AvailableCount int `json:"available_count"`
	}
	decodeBody(t, resp.Body.Bytes(), &avail)
	assert.Equal(t, 1, avail.AvailableCount)
}

func TestBorrowDaysOutOfRange(t *testing.T) {
	ts := setupTestServer(t)
	bookID := createTestBook(t, ts, "Long Loan Title")
	addTestCopies(t, ts, bookID, 1)

	resp := ts.api.Post("/api/v1/loans", map[string]any{
		"student_id": "student-1",
		"book_id":    bookID,
		"quantity":   1,
		"days":       45,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}

func TestFinePreview(t *testing.T) {
	ts := setupTestServer(t)
	ts.setClock(borrowTime)
	loan := borrowTestLoan(t, ts, 3)

	// Still within the window.
	ts.setClock(time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC))
	resp := ts.api.Get("/api/v1/loans/" + loan.ID + "/fine")
	require.Equal(t, http.StatusOK, resp.Code)

	var preview struct {
		LoanID   string `json:"loan_id"`
		LateDays int    `json:"late_days"`
		Fine     int64  `json:"fine"`
		Overdue  bool   `json:"overdue"`
	}
	decodeBody(t, resp.Body.Bytes(), &preview)
	assert.Equal(t, loan.ID, preview.LoanID)
	assert.Equal(t, 0, preview.LateDays)
	assert.Equal(t, int64(0), preview.Fine)
	assert.False(t, preview.Overdue)

	// Three days past due.
	ts.setClock(time.Date(2024, 1, 7, 9, 0, 0, 0, time.UTC))
	resp = ts.api.Get("/api/v1/loans/" + loan.ID + "/fine")
	require.Equal(t, http.StatusOK, resp.Code)

	decodeBody(t, resp.Body.Bytes(), &preview)
	assert.Equal(t, 3, preview.LateDays)
	assert.Equal(t, int64(15000), preview.Fine)
	assert.True(t, preview.Overdue)

	// Previewing does not close the loan.
	resp = ts.api.Get("/api/v1/loans/" + loan.ID)
	require.Equal(t, http.StatusOK, resp.Code)

	var fetched LoanResponse
	decodeBody(t, resp.Body.Bytes(), &fetched)
	assert.True(t, fetched.Active)
}

func TestReturnOnTime(t *testing.T) {
	ts := setupTestServer(t)
	ts.setClock(borrowTime)
	loan := borrowTestLoan(t, ts, 7)

	ts.setClock(time.Date(2024, 1, 5, 14, 0, 0, 0, time.UTC))
	resp := ts.api.Post("/api/v1/loans/"+loan.ID+"/return", map[string]any{})
	require.Equal(t, http.StatusOK, resp.Code)

	var out struct {
		Loan LoanResponse `json:"loan"`
		Fee  FeeResponse  `json:"fee"`
	}
	decodeBody(t, resp.Body.Bytes(), &out)
	assert.False(t, out.Loan.Active)
	require.NotNil(t, out.Loan.ReturnDate)
	assert.Equal(t, int64(0), out.Fee.Amount)
	assert.Equal(t, "none", out.Fee.Status)
	assert.Equal(t, "on time", out.Fee.Reason)

	// The copy is available again.
	resp = ts.api.Get("/api/v1/copies/" + loan.CopyID)
	require.Equal(t, http.StatusOK, resp.Code)

	var c CopyResponse
	decodeBody(t, resp.Body.Bytes(), &c)
	assert.False(t, c.Borrowed)
}

func TestReturnLateWithFullPayment(t *testing.T) {
	ts := setupTestServer(t)
	ts.setClock(borrowTime)
	loan := borrowTestLoan(t, ts, 3)

	ts.setClock(time.Date(2024, 1, 7, 14, 0, 0, 0, time.UTC))
	resp := ts.api.Post("/api/v1/loans/"+loan.ID+"/return", map[string]any{
		"payment": 15000,
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var out struct {
		Loan LoanResponse `json:"loan"`
		Fee  FeeResponse  `json:"fee"`
	}
	decodeBody(t, resp.Body.Bytes(), &out)
	assert.Equal(t, int64(15000), out.Fee.Amount)
	assert.Equal(t, int64(15000), out.Fee.PaidAmount)
	assert.Equal(t, "paid", out.Fee.Status)
	assert.Equal(t, "overdue", out.Fee.Reason)
}

func TestReturnLateWithPartialPayment(t *testing.T) {
	ts := setupTestServer(t)
	ts.setClock(borrowTime)
	loan := borrowTestLoan(t, ts, 3)

	ts.setClock(time.Date(2024, 1, 7, 14, 0, 0, 0, time.UTC))
	resp := ts.api.Post("/api/v1/loans/"+loan.ID+"/return", map[string]any{
		"payment": 10000,
	})
	require.Equal(t, http.StatusOK, resp.Code)

	var out struct {
		Fee FeeResponse `json:"fee"`
	}
	decodeBody(t, resp.Body.Bytes(), &out)
	assert.Equal(t, int64(15000), out.Fee.Amount)
	assert.Equal(t, int64(10000), out.Fee.PaidAmount)
	assert.Equal(t, "unpaid", out.Fee.Status)

	// The unpaid fee shows up as outstanding.
	resp = ts.api.Get("/api/v1/fees?student_id=student-1&outstanding=true")
	require.Equal(t, http.StatusOK, resp.Code)

	var fees struct {
		Fees []FeeResponse `json:"fees"`
	}
	decodeBody(t, resp.Body.Bytes(), &fees)
	require.Len(t, fees.Fees, 1)
	assert.Equal(t, out.Fee.ID, fees.Fees[0].ID)
}

func TestReturnOverpaymentRejected(t *testing.T) {
	ts := setupTestServer(t)
	ts.setClock(borrowTime)
	loan := borrowTestLoan(t, ts, 3)

	ts.setClock(time.Date(2024, 1, 7, 14, 0, 0, 0, time.UTC))
	resp := ts.api.Post("/api/v1/loans/"+loan.ID+"/return", map[string]any{
		"payment": 20000,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	var apiErr APIError
	decodeBody(t, resp.Body.Bytes(), &apiErr)
	assert.Equal(t, "OVERPAYMENT", apiErr.Code)

	// The rejected return leaves the loan open.
	resp = ts.api.Get("/api/v1/loans/" + loan.ID)
	require.Equal(t, http.StatusOK, resp.Code)

	var fetched LoanResponse
	decodeBody(t, resp.Body.Bytes(), &fetched)
	assert.True(t, fetched.Active)
}

func TestReturnTwiceRejected(t *testing.T) {
	ts := setupTestServer(t)
	ts.setClock(borrowTime)
	loan := borrowTestLoan(t, ts, 7)

	ts.setClock(time.Date(2024, 1, 5, 14, 0, 0, 0, time.UTC))
	resp := ts.api.Post("/api/v1/loans/"+loan.ID+"/return", map[string]any{})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Post("/api/v1/loans/"+loan.ID+"/return", map[string]any{})
	assert.Equal(t, http.StatusConflict, resp.Code)

	var apiErr APIError
	decodeBody(t, resp.Body.Bytes(), &apiErr)
	assert.Equal(t, "INVALID_STATE", apiErr.Code)
}

func TestListLoansByStatus(t *testing.T) {
	ts := setupTestServer(t)
	ts.setClock(borrowTime)

	bookID := createTestBook(t, ts, "Ledger Title")
	addTestCopies(t, ts, bookID, 2)

	resp := ts.api.Post("/api/v1/loans", map[string]any{
		"student_id": "student-1",
		"book_id":    bookID,
		"quantity":   2,
		"days":       7,
	})
	require.Equal(t, http.StatusCreated, resp.Code)

	var out struct {
		Loans []LoanResponse `json:"loans"`
	}
	decodeBody(t, resp.Body.Bytes(), &out)
	require.Len(t, out.Loans, 2)

	ts.setClock(time.Date(2024, 1, 5, 14, 0, 0, 0, time.UTC))
	resp = ts.api.Post("/api/v1/loans/"+out.Loans[0].ID+"/return", map[string]any{})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Get("/api/v1/loans?student_id=student-1&status=active")
	require.Equal(t, http.StatusOK, resp.Code)

	var active struct {
		Loans []LoanResponse `json:"loans"`
	}
	decodeBody(t, resp.Body.Bytes(), &active)
	require.Len(t, active.Loans, 1)
	assert.Equal(t, out.Loans[1].ID, active.Loans[0].ID)

	resp = ts.api.Get("/api/v1/loans?student_id=student-1&status=closed")
	require.Equal(t, http.StatusOK, resp.Code)

	var closed struct {
		Loans []LoanResponse `json:"loans"`
	}
	decodeBody(t, resp.Body.Bytes(), &closed)
	require.Len(t, closed.Loans, 1)
	assert.Equal(t, out.Loans[0].ID, closed.Loans[0].ID)
}
