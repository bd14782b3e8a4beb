package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/openshelf/openshelf-server/internal/store"
)

func (s *Server) registerFeeRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listFees",
		Method:      http.MethodGet,
		Path:        "/api/v1/fees",
		Summary:     "List fees",
		Description: "Returns fee records matching the filters, most recent first",
		Tags:        []string{"Fees"},
	}, s.handleListFees)

	huma.Register(s.api, huma.Operation{
		OperationID: "getFee",
		Method:      http.MethodGet,
		Path:        "/api/v1/fees/{id}",
		Summary:     "Get fee",
		Description: "Returns a fee record by ID",
		Tags:        []string{"Fees"},
	}, s.handleGetFee)
}

// ListFeesInput contains filters for listing fees.
type ListFeesInput struct {
	StudentID   string `query:"student_id" doc:"Filter by student"`
	Outstanding bool   `query:"outstanding" doc:"Only fees with recorded unpaid debt"`
}

// ListFeesOutput wraps the fee list for Huma.
type ListFeesOutput struct {
	Body struct {
		Fees []FeeResponse `json:"fees" doc:"Matching fee records"`
	}
}

// GetFeeInput contains parameters for getting a fee.
type GetFeeInput struct {
	ID string `path:"id" doc:"Fee ID"`
}

// FeeOutput wraps a single fee response for Huma.
type FeeOutput struct {
	Body FeeResponse
}

func (s *Server) handleListFees(ctx context.Context, input *ListFeesInput) (*ListFeesOutput, error) {
	fees, err := s.services.Circulation.ListFees(ctx, store.FeeFilter{
		StudentID:       input.StudentID,
		OutstandingOnly: input.Outstanding,
	})
	if err != nil {
		return nil, err
	}

	out := &ListFeesOutput{}
	out.Body.Fees = make([]FeeResponse, len(fees))
	for i, f := range fees {
		out.Body.Fees[i] = mapFeeResponse(f)
	}
	return out, nil
}

func (s *Server) handleGetFee(ctx context.Context, input *GetFeeInput) (*FeeOutput, error) {
	fee, err := s.services.Circulation.GetFee(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &FeeOutput{Body: mapFeeResponse(fee)}, nil
}
