// Command generate_demo creates a demo catalog database with the seed
// dataset plus sample loan history, so a fresh install has something to
// show: one loan returned late with a fine on record, and one loan that
// is currently overdue.
// Usage: go run cmd/generate_demo/main.go [-db path/to/demo.db]
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/bookstacks/catalog/internal/catalog"
	"github.com/bookstacks/catalog/internal/store/sqlstore"
)

const defaultDemoDatabasePath = "./demo/catalog.db"

func main() {
	dbPath := flag.String("db", defaultDemoDatabasePath, "path to the demo database file")
	flag.Parse()

	log.Printf("Generating demo catalog at %s...", *dbPath)

	// Delete existing demo database to start fresh
	if err := os.Remove(*dbPath); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to remove existing demo database: %v", err)
	}

	ctx := context.Background()

	st, err := sqlstore.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to create database: %v", err)
	}
	defer st.Close()

	if err := st.Reset(ctx); err != nil {
		log.Fatalf("Failed to load seed data: %v", err)
	}

	service := catalog.NewService(st, 0)
	today := time.Now().UTC().Truncate(24 * time.Hour)

	// A finished loan, returned five days past its due date
	borrowDate := today.AddDate(0, -2, 0)
	if _, err := service.Borrow(ctx, "1", "1", borrowDate); err != nil {
		log.Fatalf("Failed to record past borrow: %v", err)
	}
	returnDate := borrowDate.AddDate(0, 1, 5)
	ret, err := service.Return(ctx, "1", returnDate)
	if err != nil {
		log.Fatalf("Failed to record past return: %v", err)
	}
	log.Printf("Recorded returned loan: book 1, fine %.2f", ret.Fine)

	// An active loan that is already past due
	if _, err := service.Borrow(ctx, "8", "3", today.AddDate(0, -1, -10)); err != nil {
		log.Fatalf("Failed to record overdue borrow: %v", err)
	}
	log.Printf("Recorded active overdue loan: book 8")

	// An active loan inside its due window
	if _, err := service.Borrow(ctx, "3", "5", today.AddDate(0, 0, -3)); err != nil {
		log.Fatalf("Failed to record active borrow: %v", err)
	}
	log.Printf("Recorded active loan: book 3")

	log.Println("Demo catalog generated successfully!")
}
