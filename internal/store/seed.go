package store

import (
	"context"
	"encoding/json"
	"log"
	"os"
)

// SeedBook is one record of the static startup dataset.
type SeedBook struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Genre  string `json:"genre"`
}

// Seeder is the slice of the store the catalog seeder needs.
type Seeder interface {
	CountBooks(ctx context.Context) (int, error)
	SeedBooks(ctx context.Context, seeds []SeedBook) error
}

// SeedCatalog loads the static book dataset into an empty catalog. A
// catalog that already has books is left alone, as is a missing seed file.
func SeedCatalog(ctx context.Context, s Seeder, seedFile string) error {
	count, err := s.CountBooks(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	data, err := os.ReadFile(seedFile)
	if os.IsNotExist(err) {
		log.Printf("seed file %s not found, starting with an empty catalog", seedFile)
		return nil
	}
	if err != nil {
		return err
	}

	var seeds []SeedBook
	if err := json.Unmarshal(data, &seeds); err != nil {
		return err
	}
	return s.SeedBooks(ctx, seeds)
}
