// Package domain contains the core types of the circulation system: books,
// physical copies, loans, and fees. Types here carry their own state rules;
// persistence and transport live elsewhere.
package domain

import "time"

// Book is a catalog title. Copies reference it by ID only; deleting a book
// does not cascade to its copies.
type Book struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	ISBN      string    `json:"isbn,omitempty"`
	OLID      string    `json:"olid,omitempty"` // Open Library identifier
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewBook creates a book with timestamps set.
func NewBook(id, title, author string) *Book {
	now := time.Now().UTC()
	return &Book{
		ID:        id,
		Title:     title,
		Author:    author,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch updates the modification timestamp.
func (b *Book) Touch() {
	b.UpdatedAt = time.Now().UTC()
}
