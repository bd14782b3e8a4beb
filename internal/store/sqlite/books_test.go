package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/store"
)

func TestCreateAndGetBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	book := domain.NewBook("book-1", "A Wizard of Earthsea", "Ursula K. Le Guin")
	book.ISBN = "9780547773742"
	if err := s.CreateBook(ctx, book); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	got, err := s.GetBook(ctx, "book-1")
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if got.Title != book.Title || got.Author != book.Author || got.ISBN != book.ISBN {
		t.Errorf("got %+v, want %+v", got, book)
	}

	if err := s.CreateBook(ctx, book); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("duplicate create: expected ErrAlreadyExists, got %v", err)
	}
	if _, err := s.GetBook(ctx, "missing"); !errors.Is(err, store.ErrBookNotFound) {
		t.Errorf("expected ErrBookNotFound, got %v", err)
	}
}

func TestUpdateBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	book := domain.NewBook("book-1", "A Wizard of Earthsea", "Ursula K. Le Guin")
	if err := s.CreateBook(ctx, book); err != nil {
		t.Fatalf("CreateBook: %v", err)
	}

	book.Title = "The Tombs of Atuan"
	book.Touch()
	if err := s.UpdateBook(ctx, book); err != nil {
		t.Fatalf("UpdateBook: %v", err)
	}

	got, err := s.GetBook(ctx, "book-1")
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if got.Title != "The Tombs of Atuan" {
		t.Errorf("title: got %q", got.Title)
	}

	missing := domain.NewBook("missing", "x", "y")
	if err := s.UpdateBook(ctx, missing); !errors.Is(err, store.ErrBookNotFound) {
		t.Errorf("expected ErrBookNotFound, got %v", err)
	}
}

func TestListBooks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, b := range []*domain.Book{
		domain.NewBook("book-2", "The Left Hand of Darkness", "Ursula K. Le Guin"),
		domain.NewBook("book-1", "A Wizard of Earthsea", "Ursula K. Le Guin"),
	} {
		if err := s.CreateBook(ctx, b); err != nil {
			t.Fatalf("CreateBook: %v", err)
		}
	}

	books, err := s.ListBooks(ctx)
	if err != nil {
		t.Fatalf("ListBooks: %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("expected 2 books, got %d", len(books))
	}
	// Ordered by title.
	if books[0].ID != "book-1" || books[1].ID != "book-2" {
		t.Errorf("order: got %s, %s", books[0].ID, books[1].ID)
	}
}
