package library_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/ayan/bookrack/internal/auth"
	"github.com/ayan/bookrack/internal/library"
	"github.com/ayan/bookrack/internal/middleware"
	"github.com/ayan/bookrack/internal/models"
)

// memStore is a minimal in-memory store for handler tests.
type memStore struct {
	books   []models.Book
	entries map[int64]map[int64]models.Status
}

func newMemStore(count int) *memStore {
	s := &memStore{entries: map[int64]map[int64]models.Status{}}
	for i := 1; i <= count; i++ {
		s.books = append(s.books, models.Book{
			ID: int64(i), Title: fmt.Sprintf("Book %d", i), Author: "A", Genre: "Fiction",
		})
	}
	return s
}

func (s *memStore) GetBook(_ context.Context, id int64) (*models.Book, error) {
	for _, b := range s.books {
		if b.ID == id {
			return &b, nil
		}
	}
	return nil, fmt.Errorf("book %d: %w", id, library.ErrNotFound)
}

func (s *memStore) ListBooks(_ context.Context, offset, limit int) ([]models.Book, error) {
	if offset >= len(s.books) {
		return []models.Book{}, nil
	}
	end := offset + limit
	if end > len(s.books) {
		end = len(s.books)
	}
	return s.books[offset:end], nil
}

func (s *memStore) CountBooks(_ context.Context) (int, error) { return len(s.books), nil }

func (s *memStore) SearchBooksByTitle(_ context.Context, title string) ([]models.Book, error) {
	out := []models.Book{}
	for _, b := range s.books {
		if strings.Contains(strings.ToLower(b.Title), strings.ToLower(title)) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *memStore) ListGenres(_ context.Context) ([]string, error) { return []string{"Fiction"}, nil }

func (s *memStore) ListBooksByGenre(_ context.Context, genre string) ([]models.Book, error) {
	out := []models.Book{}
	for _, b := range s.books {
		if b.Genre == genre {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *memStore) DeleteBook(_ context.Context, id int64) error {
	kept := s.books[:0]
	for _, b := range s.books {
		if b.ID != id {
			kept = append(kept, b)
		}
	}
	s.books = kept
	for _, byBook := range s.entries {
		delete(byBook, id)
	}
	return nil
}

func (s *memStore) ListEntries(_ context.Context, userID int64) ([]models.ReadingEntry, error) {
	out := []models.ReadingEntry{}
	for _, b := range s.books {
		if status, ok := s.entries[userID][b.ID]; ok {
			out = append(out, models.ReadingEntry{Book: b, Status: status, UpdatedAt: time.Now()})
		}
	}
	return out, nil
}

func (s *memStore) GetEntry(_ context.Context, userID, bookID int64) (*models.ReadingEntry, error) {
	if status, ok := s.entries[userID][bookID]; ok {
		return &models.ReadingEntry{Status: status}, nil
	}
	return nil, fmt.Errorf("entry: %w", library.ErrNotFound)
}

func (s *memStore) CreateEntry(_ context.Context, userID, bookID int64, status models.Status) error {
	if _, ok := s.entries[userID][bookID]; ok {
		return fmt.Errorf("entry: %w", library.ErrConflict)
	}
	if s.entries[userID] == nil {
		s.entries[userID] = map[int64]models.Status{}
	}
	s.entries[userID][bookID] = status
	return nil
}

func (s *memStore) UpdateEntryStatus(_ context.Context, userID, bookID int64, status models.Status) error {
	if _, ok := s.entries[userID][bookID]; ok {
		s.entries[userID][bookID] = status
	}
	return nil
}

func (s *memStore) DeleteEntry(_ context.Context, userID, bookID int64) error {
	delete(s.entries[userID], bookID)
	return nil
}

// memCovers is an in-memory CoverStore.
type memCovers struct {
	data map[int64][]byte
	ct   map[int64]string
}

func newMemCovers() *memCovers {
	return &memCovers{data: map[int64][]byte{}, ct: map[int64]string{}}
}

func (c *memCovers) Put(_ context.Context, bookID int64, data []byte, contentType string) error {
	c.data[bookID] = data
	c.ct[bookID] = contentType
	return nil
}

func (c *memCovers) Get(_ context.Context, bookID int64) ([]byte, string, error) {
	data, ok := c.data[bookID]
	if !ok {
		return nil, "", fmt.Errorf("cover: %w", library.ErrNotFound)
	}
	return data, c.ct[bookID], nil
}

func (c *memCovers) Remove(_ context.Context, bookID int64) error {
	delete(c.data, bookID)
	return nil
}

type memRevocations struct{ revoked map[string]bool }

func (m *memRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	return m.revoked[jti], nil
}

// newTestRouter wires the library handler behind the real auth middleware
// and returns a bearer token for user 1.
func newTestRouter(t *testing.T, store *memStore) (chi.Router, string) {
	t.Helper()

	tokens, err := auth.NewTokenManager("test-secret", time.Hour)
	require.NoError(t, err)
	token, err := tokens.Issue(1)
	require.NoError(t, err)

	h := library.NewHandler(store, store, newMemCovers())
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/books", h.ListBooks)
		r.Get("/books/genre", h.BooksByGenre)
		r.Get("/books/{id}", h.GetBook)
		r.Get("/books/{id}/cover", h.GetCover)
		r.Get("/search", h.SearchBooks)
		r.Get("/genre", h.Genres)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(tokens, &memRevocations{revoked: map[string]bool{}}))
			r.Delete("/books/{id}", h.DeleteBook)
			r.Put("/books/{id}/cover", h.PutCover)
			r.Get("/reads", h.GetReadingList)
			r.Post("/reads", h.AddToReadingList)
			r.Put("/reads", h.ChangeReadingStatus)
			r.Delete("/reads", h.RemoveFromReadingList)
			r.Get("/recommend", h.Recommendations)
		})
	})
	return r, token
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestReadingListEndpointsRequireAuth(t *testing.T) {
	r, _ := newTestRouter(t, newMemStore(5))

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/reads"},
		{http.MethodPost, "/api/reads"},
		{http.MethodPut, "/api/reads"},
		{http.MethodDelete, "/api/reads?book_id=1"},
		{http.MethodGet, "/api/recommend"},
	} {
		w := doJSON(t, r, route.method, route.path, "", nil)
		require.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", route.method, route.path)
	}
}

func TestReadingListFlow(t *testing.T) {
	r, token := newTestRouter(t, newMemStore(10))

	// Add book 7.
	w := doJSON(t, r, http.MethodPost, "/api/reads", token, models.EditReadingListRequest{BookID: 7})
	require.Equal(t, http.StatusCreated, w.Code)

	// Adding it again conflicts.
	w = doJSON(t, r, http.MethodPost, "/api/reads", token, models.EditReadingListRequest{BookID: 7})
	require.Equal(t, http.StatusConflict, w.Code)

	// Mark it complete.
	w = doJSON(t, r, http.MethodPut, "/api/reads", token,
		models.EditReadingListRequest{BookID: 7, Status: models.StatusComplete})
	require.Equal(t, http.StatusOK, w.Code)

	// The list shows exactly book 7, completed.
	w = doJSON(t, r, http.MethodGet, "/api/reads", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []models.ReadingEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	require.Equal(t, int64(7), entries[0].ID)
	require.Equal(t, models.StatusComplete, entries[0].Status)

	// Removing an absent book succeeds.
	w = doJSON(t, r, http.MethodDelete, "/api/reads?book_id=99", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Recommendations never include the owned book.
	w = doJSON(t, r, http.MethodGet, "/api/recommend", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var recs []models.Book
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recs))
	require.Len(t, recs, 9)
	for _, b := range recs {
		require.NotEqual(t, int64(7), b.ID)
	}
}

func TestAddUnknownBookIs404(t *testing.T) {
	r, token := newTestRouter(t, newMemStore(3))
	w := doJSON(t, r, http.MethodPost, "/api/reads", token, models.EditReadingListRequest{BookID: 42})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddRejectsUnknownStatus(t *testing.T) {
	r, token := newTestRouter(t, newMemStore(3))
	w := doJSON(t, r, http.MethodPost, "/api/reads", token,
		map[string]any{"book_id": 1, "status": "skimming"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListBooksPaginationResponse(t *testing.T) {
	r, _ := newTestRouter(t, newMemStore(20))

	w := doJSON(t, r, http.MethodGet, "/api/books?start=15&n=15", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page models.BookPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Books, 5)
	require.Equal(t, 0, page.PreviousN)
	require.Nil(t, page.NextN)
}

func TestGetBookNotFound(t *testing.T) {
	r, _ := newTestRouter(t, newMemStore(3))
	w := doJSON(t, r, http.MethodGet, "/api/books/99", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	w = doJSON(t, r, http.MethodGet, "/api/books/not-a-number", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCoverUploadAndDownload(t *testing.T) {
	r, token := newTestRouter(t, newMemStore(3))

	// No cover yet.
	w := doJSON(t, r, http.MethodGet, "/api/books/2/cover", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	// Upload requires auth.
	req := httptest.NewRequest(http.MethodPut, "/api/books/2/cover", bytes.NewReader([]byte("png-bytes")))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Authorized upload.
	req = httptest.NewRequest(http.MethodPut, "/api/books/2/cover", bytes.NewReader([]byte("png-bytes")))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "image/png")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	// Download round-trips bytes and content type.
	w = doJSON(t, r, http.MethodGet, "/api/books/2/cover", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "image/png", w.Header().Get("Content-Type"))
	require.Equal(t, "png-bytes", w.Body.String())

	// Uploading for an unknown book is 404.
	req = httptest.NewRequest(http.MethodPut, "/api/books/42/cover", bytes.NewReader([]byte("x")))
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteBookPurgesReadingListRows(t *testing.T) {
	store := newMemStore(5)
	r, token := newTestRouter(t, store)

	w := doJSON(t, r, http.MethodPost, "/api/reads", token, models.EditReadingListRequest{BookID: 3})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/api/books/3", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// The book is gone from the catalog and from the reading list.
	w = doJSON(t, r, http.MethodGet, "/api/books/3", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/reads", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, "[]", w.Body.String())
}

func TestRecommendationsEmptyListOverHTTP(t *testing.T) {
	r, token := newTestRouter(t, newMemStore(10))
	w := doJSON(t, r, http.MethodGet, "/api/recommend", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, "[]", w.Body.String())
}
