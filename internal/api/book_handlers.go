package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/service"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books",
		Summary:     "List books",
		Description: "Returns all catalog titles ordered by title",
		Tags:        []string{"Books"},
	}, s.handleListBooks)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createBook",
		Method:        http.MethodPost,
		Path:          "/api/v1/books",
		Summary:       "Create book",
		Description:   "Adds a title to the catalog",
		Tags:          []string{"Books"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBook",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}",
		Summary:     "Get book",
		Description: "Returns a catalog title by ID",
		Tags:        []string{"Books"},
	}, s.handleGetBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateBook",
		Method:      http.MethodPatch,
		Path:        "/api/v1/books/{id}",
		Summary:     "Update book",
		Description: "Updates a title's catalog fields",
		Tags:        []string{"Books"},
	}, s.handleUpdateBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBookAvailability",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}/availability",
		Summary:     "Get availability",
		Description: "Returns how many copies of a title are available to borrow",
		Tags:        []string{"Books"},
	}, s.handleGetBookAvailability)
}

// === DTOs ===

// BookResponse contains book data in API responses.
type BookResponse struct {
	ID        string    `json:"id" doc:"Book ID"`
	Title     string    `json:"title" doc:"Book title"`
	Author    string    `json:"author" doc:"Book author"`
	ISBN      string    `json:"isbn,omitempty" doc:"ISBN"`
	OLID      string    `json:"olid,omitempty" doc:"Open Library identifier"`
	CreatedAt time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt time.Time `json:"updated_at" doc:"Last update time"`
}

func mapBookResponse(b *domain.Book) BookResponse {
	return BookResponse{
		ID:        b.ID,
		Title:     b.Title,
		Author:    b.Author,
		ISBN:      b.ISBN,
		OLID:      b.OLID,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

// ListBooksOutput wraps the book list for Huma.
type ListBooksOutput struct {
	Body struct {
		Books []BookResponse `json:"books" doc:"Catalog titles"`
	}
}

// CreateBookInput wraps the create book request for Huma.
type CreateBookInput struct {
	Body struct {
		Title  string `json:"title" doc:"Book title"`
		Author string `json:"author" doc:"Book author"`
		ISBN   string `json:"isbn,omitempty" doc:"ISBN"`
		OLID   string `json:"olid,omitempty" doc:"Open Library identifier"`
	}
}

// BookOutput wraps a single book response for Huma.
type BookOutput struct {
	Body BookResponse
}

// GetBookInput contains parameters for getting a book.
type GetBookInput struct {
	ID string `path:"id" doc:"Book ID"`
}

// UpdateBookInput wraps the update book request for Huma.
type UpdateBookInput struct {
	ID   string `path:"id" doc:"Book ID"`
	Body struct {
		Title  string `json:"title,omitempty" doc:"New title"`
		Author string `json:"author,omitempty" doc:"New author"`
		ISBN   string `json:"isbn,omitempty" doc:"New ISBN"`
		OLID   string `json:"olid,omitempty" doc:"New Open Library identifier"`
	}
}

// AvailabilityOutput wraps the availability response for Huma.
type AvailabilityOutput struct {
	Body struct {
		BookID         string `json:"book_id" doc:"Book ID"`
		AvailableCount int    `json:"available_count" doc:"Copies available to borrow"`
	}
}

// === Handlers ===

func (s *Server) handleListBooks(ctx context.Context, _ *struct{}) (*ListBooksOutput, error) {
	books, err := s.services.Catalog.ListBooks(ctx)
	if err != nil {
		return nil, err
	}

	out := &ListBooksOutput{}
	out.Body.Books = make([]BookResponse, len(books))
	for i, b := range books {
		out.Body.Books[i] = mapBookResponse(b)
	}
	return out, nil
}

func (s *Server) handleCreateBook(ctx context.Context, input *CreateBookInput) (*BookOutput, error) {
	book, err := s.services.Catalog.CreateBook(ctx, service.CreateBookRequest{
		Title:  input.Body.Title,
		Author: input.Body.Author,
		ISBN:   input.Body.ISBN,
		OLID:   input.Body.OLID,
	})
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: mapBookResponse(book)}, nil
}

func (s *Server) handleGetBook(ctx context.Context, input *GetBookInput) (*BookOutput, error) {
	book, err := s.services.Catalog.GetBook(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: mapBookResponse(book)}, nil
}

func (s *Server) handleUpdateBook(ctx context.Context, input *UpdateBookInput) (*BookOutput, error) {
	book, err := s.services.Catalog.UpdateBook(ctx, input.ID, service.UpdateBookRequest{
		Title:  input.Body.Title,
		Author: input.Body.Author,
		ISBN:   input.Body.ISBN,
		OLID:   input.Body.OLID,
	})
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: mapBookResponse(book)}, nil
}

func (s *Server) handleGetBookAvailability(ctx context.Context, input *GetBookInput) (*AvailabilityOutput, error) {
	avail, err := s.services.Catalog.GetAvailability(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	out := &AvailabilityOutput{}
	out.Body.BookID = avail.BookID
	out.Body.AvailableCount = avail.AvailableCount
	return out, nil
}
