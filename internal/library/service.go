package library

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/ayan/bookrack/internal/models"
)

// DefaultPageSize is the limit applied to genre listings and
// recommendations when the caller does not ask for a specific count.
const DefaultPageSize = 15

// CatalogStore defines the interface for book persistence.
type CatalogStore interface {
	GetBook(ctx context.Context, id int64) (*models.Book, error)
	ListBooks(ctx context.Context, offset, limit int) ([]models.Book, error)
	CountBooks(ctx context.Context) (int, error)
	SearchBooksByTitle(ctx context.Context, title string) ([]models.Book, error)
	ListGenres(ctx context.Context) ([]string, error)
	ListBooksByGenre(ctx context.Context, genre string) ([]models.Book, error)
	DeleteBook(ctx context.Context, id int64) error
}

// EntryStore defines the interface for reading-list persistence.
type EntryStore interface {
	ListEntries(ctx context.Context, userID int64) ([]models.ReadingEntry, error)
	GetEntry(ctx context.Context, userID, bookID int64) (*models.ReadingEntry, error)
	CreateEntry(ctx context.Context, userID, bookID int64, status models.Status) error
	UpdateEntryStatus(ctx context.Context, userID, bookID int64, status models.Status) error
	DeleteEntry(ctx context.Context, userID, bookID int64) error
}

// Catalog exposes read operations over the book catalog.
type Catalog struct {
	store CatalogStore
}

func NewCatalog(store CatalogStore) *Catalog {
	return &Catalog{store: store}
}

// GetBook returns a single book or ErrNotFound.
func (c *Catalog) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	return c.store.GetBook(ctx, id)
}

// GetBooks returns one page of the catalog in catalog (id) order, plus the
// previous offset (clamped to 0) and the next offset (nil past the end).
func (c *Catalog) GetBooks(ctx context.Context, start, n int) (*models.BookPage, error) {
	if start < 0 || n <= 0 {
		return nil, fmt.Errorf("%w: start must be non-negative and n positive", ErrValidation)
	}
	books, err := c.store.ListBooks(ctx, start, n)
	if err != nil {
		return nil, err
	}
	count, err := c.store.CountBooks(ctx)
	if err != nil {
		return nil, err
	}
	if books == nil {
		books = []models.Book{}
	}

	page := &models.BookPage{Books: books}
	if prev := start - n; prev > 0 {
		page.PreviousN = prev
	}
	if next := start + n; next < count {
		page.NextN = &next
	}
	return page, nil
}

// SearchBooks returns all books whose title contains the query,
// case-insensitively. An empty result is not an error.
func (c *Catalog) SearchBooks(ctx context.Context, title string) ([]models.Book, error) {
	books, err := c.store.SearchBooksByTitle(ctx, title)
	if err != nil {
		return nil, err
	}
	if books == nil {
		books = []models.Book{}
	}
	log.Printf("service: %d books found for: %s", len(books), title)
	return books, nil
}

// Genres returns the distinct genres present in the catalog.
func (c *Catalog) Genres(ctx context.Context) ([]string, error) {
	return c.store.ListGenres(ctx)
}

// BooksByGenre returns up to DefaultPageSize books in the genre, most
// completed reads first, ties in catalog order.
func (c *Catalog) BooksByGenre(ctx context.Context, genre string) ([]models.Book, error) {
	books, err := c.store.ListBooksByGenre(ctx, genre)
	if err != nil {
		return nil, err
	}
	sortByReads(books)
	if len(books) > DefaultPageSize {
		books = books[:DefaultPageSize]
	}
	if books == nil {
		books = []models.Book{}
	}
	return books, nil
}

// sortByReads orders books by completed-read count descending. The store
// returns books in catalog (id) order, so the stable sort keeps that order
// among ties.
func sortByReads(books []models.Book) {
	sort.SliceStable(books, func(i, j int) bool {
		return books[i].Reads > books[j].Reads
	})
}

// ReadingList holds one user's current reading-list entries, reloaded after
// every mutation.
type ReadingList struct {
	userID  int64
	books   []models.ReadingEntry
	catalog CatalogStore
	entries EntryStore
}

// LoadReadingList fetches the user's entries merged with their catalog
// books. Entries whose book no longer resolves are skipped by the store's
// join.
func LoadReadingList(ctx context.Context, catalog CatalogStore, entries EntryStore, userID int64) (*ReadingList, error) {
	rl := &ReadingList{userID: userID, catalog: catalog, entries: entries}
	if err := rl.load(ctx); err != nil {
		return nil, err
	}
	return rl, nil
}

func (rl *ReadingList) load(ctx context.Context) error {
	books, err := rl.entries.ListEntries(ctx, rl.userID)
	if err != nil {
		return fmt.Errorf("load reading list: %w", err)
	}
	rl.books = books
	log.Printf("service: reading list loaded for user %d, total books: %d", rl.userID, len(rl.books))
	return nil
}

// Books returns the loaded entries, never nil.
func (rl *ReadingList) Books() []models.ReadingEntry {
	if rl.books == nil {
		return []models.ReadingEntry{}
	}
	return rl.books
}

// Genres returns the distinct genres across the loaded entries, in
// first-seen order.
func (rl *ReadingList) Genres() []string {
	seen := make(map[string]bool, len(rl.books))
	var genres []string
	for _, e := range rl.books {
		if !seen[e.Genre] {
			seen[e.Genre] = true
			genres = append(genres, e.Genre)
		}
	}
	return genres
}

// AddBook inserts a (user, book) entry. It fails with ErrNotFound when the
// book does not exist and ErrConflict when the entry already does.
func (rl *ReadingList) AddBook(ctx context.Context, bookID int64, status models.Status) error {
	if _, err := rl.catalog.GetBook(ctx, bookID); err != nil {
		return err
	}
	if _, err := rl.entries.GetEntry(ctx, rl.userID, bookID); err == nil {
		log.Printf("service: book %d already in reading list for user %d", bookID, rl.userID)
		return fmt.Errorf("%w: book already in reading list", ErrConflict)
	}
	if err := rl.entries.CreateEntry(ctx, rl.userID, bookID, status); err != nil {
		return err
	}
	log.Printf("service: book %d added to reading list for user %d", bookID, rl.userID)
	return rl.load(ctx)
}

// RemoveBook deletes the (user, book) entry. Removing an absent entry is a
// no-op, not an error.
func (rl *ReadingList) RemoveBook(ctx context.Context, bookID int64) error {
	if err := rl.entries.DeleteEntry(ctx, rl.userID, bookID); err != nil {
		return err
	}
	log.Printf("service: book %d removed from reading list for user %d", bookID, rl.userID)
	return rl.load(ctx)
}

// ChangeStatus updates the status and refresh timestamp of the entry. A
// missing entry is a no-op.
func (rl *ReadingList) ChangeStatus(ctx context.Context, bookID int64, status models.Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	if err := rl.entries.UpdateEntryStatus(ctx, rl.userID, bookID, status); err != nil {
		return err
	}
	log.Printf("service: book %d status updated to %s for user %d", bookID, status, rl.userID)
	return rl.load(ctx)
}

// CompletedBooks returns the entries the user has marked complete.
func (rl *ReadingList) CompletedBooks() []models.ReadingEntry {
	completed := []models.ReadingEntry{}
	for _, e := range rl.books {
		if e.Status == models.StatusComplete {
			completed = append(completed, e)
		}
	}
	return completed
}

// Recommendations returns up to n catalog books in the genres the user is
// already reading, excluding books in the list, most completed reads first
// with ties in catalog order. An empty reading list yields an empty slice.
func (rl *ReadingList) Recommendations(ctx context.Context, n int) ([]models.Book, error) {
	if len(rl.books) == 0 {
		return []models.Book{}, nil
	}

	inList := make(map[int64]bool, len(rl.books))
	for _, e := range rl.books {
		inList[e.ID] = true
	}

	seen := make(map[int64]bool)
	candidates := []models.Book{}
	for _, genre := range rl.Genres() {
		books, err := rl.catalog.ListBooksByGenre(ctx, genre)
		if err != nil {
			return nil, err
		}
		for _, b := range books {
			if seen[b.ID] || inList[b.ID] {
				continue
			}
			seen[b.ID] = true
			candidates = append(candidates, b)
		}
	}

	// Candidates arrive grouped by genre; restore catalog order before the
	// stable sort so ties always break the same way.
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	sortByReads(candidates)

	log.Printf("service: %d recommendations generated for user %d", len(candidates), rl.userID)
	if n > len(candidates) {
		n = len(candidates)
	}
	return candidates[:n], nil
}
