// Package main provides a tool to seed the database with test circulation data.
//
// This creates a small catalog of books with copies, then borrows a few of
// them for generated students so list endpoints and fine calculations have
// something to show.
//
// Usage:
//
//	DATA_PATH=~/openshelf/data go run ./cmd/seed
//	DATA_PATH=~/openshelf/data go run ./cmd/seed --with-loans=false
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/id"
	"github.com/openshelf/openshelf-server/internal/store"
	"github.com/openshelf/openshelf-server/internal/store/badgerdb"
	"github.com/openshelf/openshelf-server/internal/store/sqlite"
)

var withLoans = flag.Bool("with-loans", true, "Borrow some copies for generated students")

// seedTitles is the catalog created by the tool.
var seedTitles = []struct {
	title  string
	author string
	isbn   string
}{
	{"The Go Programming Language", "Alan A. A. Donovan", "9780134190440"},
	{"Designing Data-Intensive Applications", "Martin Kleppmann", "9781449373320"},
	{"The Pragmatic Programmer", "David Thomas", "9780135957059"},
	{"Structure and Interpretation of Computer Programs", "Harold Abelson", "9780262510875"},
	{"A Tour of C++", "Bjarne Stroustrup", "9780136816485"},
	{"Database Internals", "Alex Petrov", "9781492040347"},
	{"Operating Systems: Three Easy Pieces", "Remzi Arpaci-Dusseau", ""},
	{"Distributed Systems", "Maarten van Steen", ""},
}

func main() {
	flag.Parse()

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = "data"
	}

	fmt.Printf("Opening database under: %s\n", dataPath)

	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	var (
		s   store.Store
		err error
	)
	if os.Getenv("STORAGE_ENGINE") == "badger" {
		s, err = badgerdb.Open(filepath.Join(dataPath, "badger"), nil)
	} else {
		s, err = sqlite.Open(filepath.Join(dataPath, "openshelf.db"), nil)
	}
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	// Create books with a random handful of copies each.
	books := make([]*domain.Book, 0, len(seedTitles))
	for _, t := range seedTitles {
		book := domain.NewBook(id.MustGenerate(id.PrefixBook), t.title, t.author)
		book.ISBN = t.isbn

		if err := s.CreateBook(ctx, book); err != nil {
			log.Printf("Failed to create book %q: %v", t.title, err)
			continue
		}

		numCopies := 1 + rng.Intn(5)
		copies := make([]*domain.Copy, 0, numCopies)
		for range numCopies {
			copies = append(copies, domain.NewCopy(id.MustGenerate(id.PrefixCopy), book.ID))
		}
		if err := s.CreateCopies(ctx, copies); err != nil {
			log.Printf("Failed to create copies for %q: %v", t.title, err)
			continue
		}

		fmt.Printf("  Created %q with %d copies\n", t.title, numCopies)
		books = append(books, book)
	}

	if len(books) == 0 {
		log.Fatal("No books created, nothing to seed")
	}

	if *withLoans {
		seedLoans(ctx, s, books, rng)
	}

	fmt.Println("\nSeeding complete!")
}

// seedLoans borrows one copy of a few random titles per generated student.
// Some loans start far enough in the past to already be overdue.
func seedLoans(ctx context.Context, s store.Store, books []*domain.Book, rng *rand.Rand) {
	fmt.Println("\n=== Borrowing copies ===")

	now := time.Now()
	loansCreated := 0

	for i := 0; i < 4; i++ {
		studentID := uuid.NewString()
		numTitles := 1 + rng.Intn(2)

		for j := 0; j < numTitles; j++ {
			book := books[rng.Intn(len(books))]

			// Borrow for 3-14 days, starting 0-10 days ago.
			days := 3 + rng.Intn(12)
			borrowedAt := now.AddDate(0, 0, -rng.Intn(11))

			loans, err := s.AllocateLoans(ctx, book.ID, 1, func(c *domain.Copy) (*domain.Loan, error) {
				return domain.NewLoan(id.MustGenerate(id.PrefixLoan), studentID, c.ID, borrowedAt, days), nil
			})
			if err != nil {
				log.Printf("  Could not borrow %q for %s: %v", book.Title, studentID, err)
				continue
			}

			for _, loan := range loans {
				overdue := ""
				if loan.Overdue(now) {
					overdue = " (overdue)"
				}
				fmt.Printf("  %s borrowed %q, due %s%s\n",
					studentID[:8], book.Title, loan.DueDate.Format("2006-01-02"), overdue)
			}
			loansCreated += len(loans)
		}
	}

	fmt.Printf("=== %d loans created ===\n", loansCreated)
}
