package library

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ayan/bookrack/internal/models"
)

// maxCoverBytes caps cover image uploads.
const maxCoverBytes = 5 << 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps a service error onto its HTTP status with a JSON body.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, ErrConflict):
		status, msg = http.StatusConflict, err.Error()
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// CoverStore defines the interface for cover image storage.
type CoverStore interface {
	Put(ctx context.Context, bookID int64, data []byte, contentType string) error
	Get(ctx context.Context, bookID int64) ([]byte, string, error)
	Remove(ctx context.Context, bookID int64) error
}

// Handler holds catalog and reading-list HTTP handlers.
type Handler struct {
	catalog *Catalog
	store   CatalogStore
	entries EntryStore
	covers  CoverStore
}

func NewHandler(store CatalogStore, entries EntryStore, covers CoverStore) *Handler {
	return &Handler{catalog: NewCatalog(store), store: store, entries: entries, covers: covers}
}

func userID(r *http.Request) (int64, bool) {
	id, ok := r.Context().Value("user_id").(int64)
	return id, ok
}

func bookIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// queryInt parses an integer query parameter with a default.
func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

// ------------------ Catalog ------------------

// ListBooks returns one page of the catalog.
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	start, err := queryInt(r, "start", 0)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start must be an integer"})
		return
	}
	n, err := queryInt(r, "n", DefaultPageSize)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "n must be an integer"})
		return
	}

	page, err := h.catalog.GetBooks(r.Context(), start, n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// GetBook returns a single book.
func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, err := bookIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid book id"})
		return
	}
	book, err := h.catalog.GetBook(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// SearchBooks searches titles case-insensitively.
func (h *Handler) SearchBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.catalog.SearchBooks(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

// Genres returns the distinct genres in the catalog.
func (h *Handler) Genres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.catalog.Genres(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, genres)
}

// BooksByGenre returns the top books of one genre.
func (h *Handler) BooksByGenre(w http.ResponseWriter, r *http.Request) {
	genre := r.URL.Query().Get("genre")
	if genre == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "genre is required"})
		return
	}
	books, err := h.catalog.BooksByGenre(r.Context(), genre)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

// DeleteBook removes a book from the catalog along with every reading-list
// row that references it, and drops its cover image.
func (h *Handler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := bookIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid book id"})
		return
	}
	if _, err := h.store.GetBook(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	if err := h.store.DeleteBook(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	// Cover cleanup is best effort; a missing object is fine.
	h.covers.Remove(r.Context(), id)

	writeJSON(w, http.StatusOK, map[string]string{"message": "book deleted"})
}

// ------------------ Covers ------------------

// GetCover streams a book's cover image.
func (h *Handler) GetCover(w http.ResponseWriter, r *http.Request) {
	id, err := bookIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid book id"})
		return
	}
	data, contentType, err := h.covers.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// PutCover stores the request body as the book's cover image.
func (h *Handler) PutCover(w http.ResponseWriter, r *http.Request) {
	id, err := bookIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid book id"})
		return
	}
	if _, err := h.store.GetBook(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCoverBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cover too large"})
		return
	}
	if len(data) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty cover image"})
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := h.covers.Put(r.Context(), id, data, contentType); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "cover uploaded"})
}

// DeleteCover removes a book's cover image.
func (h *Handler) DeleteCover(w http.ResponseWriter, r *http.Request) {
	id, err := bookIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid book id"})
		return
	}
	if err := h.covers.Remove(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "cover removed"})
}

// ------------------ Reading list ------------------

func (h *Handler) loadReadingList(w http.ResponseWriter, r *http.Request) (*ReadingList, bool) {
	uid, ok := userID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return nil, false
	}
	rl, err := LoadReadingList(r.Context(), h.store, h.entries, uid)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return rl, true
}

// GetReadingList returns the user's entries merged with catalog data.
func (h *Handler) GetReadingList(w http.ResponseWriter, r *http.Request) {
	rl, ok := h.loadReadingList(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rl.Books())
}

// AddToReadingList adds a book to the user's reading list and returns the
// book.
func (h *Handler) AddToReadingList(w http.ResponseWriter, r *http.Request) {
	var req models.EditReadingListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.BookID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "book_id is required"})
		return
	}
	status := req.Status
	if status == "" {
		status = models.StatusNotStarted
	}
	if !status.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown status"})
		return
	}

	rl, ok := h.loadReadingList(w, r)
	if !ok {
		return
	}
	if err := rl.AddBook(r.Context(), req.BookID, status); err != nil {
		writeError(w, err)
		return
	}

	book, err := h.catalog.GetBook(r.Context(), req.BookID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

// ChangeReadingStatus updates the status of an entry and returns the book.
// A missing entry is a no-op.
func (h *Handler) ChangeReadingStatus(w http.ResponseWriter, r *http.Request) {
	var req models.EditReadingListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.BookID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "book_id is required"})
		return
	}

	rl, ok := h.loadReadingList(w, r)
	if !ok {
		return
	}
	if err := rl.ChangeStatus(r.Context(), req.BookID, req.Status); err != nil {
		writeError(w, err)
		return
	}

	book, err := h.catalog.GetBook(r.Context(), req.BookID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// RemoveFromReadingList removes an entry. Removing an absent entry succeeds.
func (h *Handler) RemoveFromReadingList(w http.ResponseWriter, r *http.Request) {
	bookID, err := strconv.ParseInt(r.URL.Query().Get("book_id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "book_id is required"})
		return
	}

	rl, ok := h.loadReadingList(w, r)
	if !ok {
		return
	}
	if err := rl.RemoveBook(r.Context(), bookID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "book removed from reading list"})
}

// Recommendations returns genre-based recommendations for the user.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "n", DefaultPageSize)
	if err != nil || n < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "n must be a non-negative integer"})
		return
	}

	rl, ok := h.loadReadingList(w, r)
	if !ok {
		return
	}
	books, err := rl.Recommendations(r.Context(), n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}
