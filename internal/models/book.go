package models

import "time"

// Book represents a row in the books table. Reads is the number of users
// who have marked the book complete; it is computed per query, never stored.
type Book struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Genre  string `json:"genre"`
	Reads  int64  `json:"reads"`
}

// BookPage is the paginated response for GET /api/books. NextN is nil when
// there is no further page.
type BookPage struct {
	Books     []Book `json:"books"`
	PreviousN int    `json:"previous_n"`
	NextN     *int   `json:"next_n"`
}

// Status of a book in a user's reading list.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusStarted    Status = "started"
	StatusComplete   Status = "complete"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusStarted, StatusComplete:
		return true
	}
	return false
}

// ReadingEntry is a reading_list row merged with its catalog book.
type ReadingEntry struct {
	Book
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EditReadingListRequest is the JSON body for POST and PUT /api/reads.
type EditReadingListRequest struct {
	BookID int64  `json:"book_id"`
	Status Status `json:"status"`
}
