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

func (s *Server) registerCopyRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listCopies",
		Method:      http.MethodGet,
		Path:        "/api/v1/copies",
		Summary:     "List copies",
		Description: "Returns copies matching the filters, newest first, with cursor pagination",
		Tags:        []string{"Copies"},
	}, s.handleListCopies)

	huma.Register(s.api, huma.Operation{
		OperationID:   "addCopies",
		Method:        http.MethodPost,
		Path:          "/api/v1/copies",
		Summary:       "Add copies",
		Description:   "Registers a batch of new copies for a title, all in Good condition",
		Tags:          []string{"Copies"},
		DefaultStatus: http.StatusCreated,
	}, s.handleAddCopies)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCopy",
		Method:      http.MethodGet,
		Path:        "/api/v1/copies/{id}",
		Summary:     "Get copy",
		Description: "Returns a copy by ID",
		Tags:        []string{"Copies"},
	}, s.handleGetCopy)

	huma.Register(s.api, huma.Operation{
		OperationID: "setCopyCondition",
		Method:      http.MethodPatch,
		Path:        "/api/v1/copies/{id}/condition",
		Summary:     "Set copy condition",
		Description: "Updates a copy's physical condition. A borrowed copy can only be marked Lost",
		Tags:        []string{"Copies"},
	}, s.handleSetCopyCondition)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeCopy",
		Method:      http.MethodDelete,
		Path:        "/api/v1/copies/{id}",
		Summary:     "Remove copy",
		Description: "Deletes a copy from the registry. Borrowed copies cannot be removed",
		Tags:        []string{"Copies"},
	}, s.handleRemoveCopy)
}

// === DTOs ===

// CopyResponse contains copy data in API responses.
type CopyResponse struct {
	ID        string    `json:"id" doc:"Copy ID"`
	BookID    string    `json:"book_id" doc:"Owning book ID"`
	Condition string    `json:"condition" doc:"Physical condition: Good, Damaged, or Lost"`
	Borrowed  bool      `json:"is_borrowed" doc:"Whether the copy is currently out"`
	CreatedAt time.Time `json:"created_at" doc:"Registration time"`
}

func mapCopyResponse(c *domain.Copy) CopyResponse {
	return CopyResponse{
		ID:        c.ID,
		BookID:    c.BookID,
		Condition: string(c.Condition),
		Borrowed:  c.Borrowed,
		CreatedAt: c.CreatedAt,
	}
}

// ListCopiesInput contains filters for listing copies.
type ListCopiesInput struct {
	BookID    string `query:"book_id" doc:"Filter by book ID"`
	Condition string `query:"condition" doc:"Filter by condition" enum:"Good,Damaged,Lost,"`
	Borrowed  *bool  `query:"is_borrowed" doc:"Filter by borrowed state"`
	Limit     int    `query:"limit" doc:"Page size" minimum:"0" maximum:"1000"`
	Cursor    string `query:"cursor" doc:"Opaque cursor from a previous page"`
}

// ListCopiesOutput wraps the paginated copy list for Huma.
type ListCopiesOutput struct {
	Body struct {
		Copies     []CopyResponse `json:"copies" doc:"Copies on this page"`
		NextCursor string         `json:"next_cursor,omitempty" doc:"Cursor for the next page"`
		HasMore    bool           `json:"has_more" doc:"Whether more pages exist"`
	}
}

// AddCopiesInput wraps the copy intake request for Huma.
type AddCopiesInput struct {
	Body struct {
		BookID   string `json:"book_id" doc:"Book to add copies for"`
		Quantity int    `json:"quantity" doc:"Number of copies to register" minimum:"1" maximum:"100"`
	}
}

// AddCopiesOutput wraps the created copies for Huma.
type AddCopiesOutput struct {
	Body struct {
		Copies []CopyResponse `json:"copies" doc:"Newly registered copies"`
	}
}

// CopyOutput wraps a single copy response for Huma.
type CopyOutput struct {
	Body CopyResponse
}

// GetCopyInput contains parameters for getting a copy.
type GetCopyInput struct {
	ID string `path:"id" doc:"Copy ID"`
}

// SetCopyConditionInput wraps the condition update request for Huma.
type SetCopyConditionInput struct {
	ID   string `path:"id" doc:"Copy ID"`
	Body struct {
		Condition string `json:"condition" doc:"New condition" enum:"Good,Damaged,Lost"`
	}
}

// === Handlers ===

func (s *Server) handleListCopies(ctx context.Context, input *ListCopiesInput) (*ListCopiesOutput, error) {
	filter := store.CopyFilter{
		BookID:    input.BookID,
		Condition: domain.Condition(input.Condition),
		Borrowed:  input.Borrowed,
	}
	params := store.PaginationParams{Limit: input.Limit, Cursor: input.Cursor}

	result, err := s.services.Inventory.ListCopies(ctx, filter, params)
	if err != nil {
		return nil, err
	}

	out := &ListCopiesOutput{}
	out.Body.Copies = make([]CopyResponse, len(result.Items))
	for i, c := range result.Items {
		out.Body.Copies[i] = mapCopyResponse(c)
	}
	out.Body.NextCursor = result.NextCursor
	out.Body.HasMore = result.HasMore
	return out, nil
}

func (s *Server) handleAddCopies(ctx context.Context, input *AddCopiesInput) (*AddCopiesOutput, error) {
	copies, err := s.services.Inventory.AddCopies(ctx, service.AddCopiesRequest{
		BookID:   input.Body.BookID,
		Quantity: input.Body.Quantity,
	})
	if err != nil {
		return nil, err
	}

	out := &AddCopiesOutput{}
	out.Body.Copies = make([]CopyResponse, len(copies))
	for i, c := range copies {
		out.Body.Copies[i] = mapCopyResponse(c)
	}
	return out, nil
}

func (s *Server) handleGetCopy(ctx context.Context, input *GetCopyInput) (*CopyOutput, error) {
	c, err := s.services.Inventory.GetCopy(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &CopyOutput{Body: mapCopyResponse(c)}, nil
}

func (s *Server) handleSetCopyCondition(ctx context.Context, input *SetCopyConditionInput) (*CopyOutput, error) {
	c, err := s.services.Inventory.SetCondition(ctx, input.ID, input.Body.Condition)
	if err != nil {
		return nil, err
	}
	return &CopyOutput{Body: mapCopyResponse(c)}, nil
}

func (s *Server) handleRemoveCopy(ctx context.Context, input *GetCopyInput) (*struct{}, error) {
	if err := s.services.Inventory.RemoveCopy(ctx, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}
