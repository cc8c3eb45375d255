package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/ayan/bookrack/internal/library"
	"github.com/ayan/bookrack/internal/models"
)

// UserStore defines the interface for user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, username, hashedPw string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// EntryLister provides the reading-list rows needed for profile counts.
type EntryLister interface {
	ListEntries(ctx context.Context, userID int64) ([]models.ReadingEntry, error)
}

// TokenRevoker denylists a resolved token.
type TokenRevoker interface {
	Revoke(ctx context.Context, claims *Claims) error
}

// BearerToken extracts the token from an Authorization: Bearer header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

// Handler holds auth-related HTTP handlers.
type Handler struct {
	users   UserStore
	entries EntryLister
	tokens  *TokenManager
	revoker TokenRevoker
}

func NewHandler(users UserStore, entries EntryLister, tokens *TokenManager, revoker TokenRevoker) *Handler {
	return &Handler{users: users, entries: entries, tokens: tokens, revoker: revoker}
}

// Register creates a new user.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, `{"error":"username and password are required"}`, http.StatusBadRequest)
		return
	}
	if req.Password != req.ConfirmPassword {
		http.Error(w, `{"error":"password and confirmation don't match"}`, http.StatusBadRequest)
		return
	}

	// Pre-check keeps the friendly message; the UNIQUE constraint in
	// storage closes the race this check leaves open.
	if _, err := h.users.GetUserByUsername(r.Context(), req.Username); err == nil {
		log.Printf("auth: username already exists: %s", req.Username)
		http.Error(w, `{"error":"username already exists"}`, http.StatusConflict)
		return
	} else if !errors.Is(err, library.ErrNotFound) {
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.Username, string(hashed))
	if errors.Is(err, library.ErrConflict) {
		http.Error(w, `{"error":"username already exists"}`, http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	log.Printf("auth: user created: %s", user.Username)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

// Login authenticates a user and returns a bearer token. Unknown username
// and wrong password produce the same response on purpose.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	user, err := h.users.GetUserByUsername(r.Context(), req.Username)
	if errors.Is(err, library.ErrNotFound) {
		http.Error(w, `{"error":"invalid username or password"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		log.Printf("auth: credentials mismatch for %s", req.Username)
		http.Error(w, `{"error":"invalid username or password"}`, http.StatusNotFound)
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		http.Error(w, `{"error":"token creation failed"}`, http.StatusInternalServerError)
		return
	}

	log.Printf("auth: user logged in: %s", user.Username)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.LoginResponse{
		ID:       user.ID,
		Username: user.Username,
		Token:    token,
	})
}

// Logout revokes the presented token until it would have expired.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := BearerToken(r); ok {
		if claims, err := h.tokens.Resolve(token); err == nil {
			if err := h.revoker.Revoke(r.Context(), claims); err != nil {
				http.Error(w, `{"error":"logout failed"}`, http.StatusInternalServerError)
				return
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"message":"logged out"}`))
}

// Me returns the authenticated user plus reading-list counts.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(int64)
	if !ok {
		http.Error(w, `{"error":"not authenticated"}`, http.StatusUnauthorized)
		return
	}

	user, err := h.users.GetUserByID(r.Context(), userID)
	if err != nil {
		http.Error(w, `{"error":"user not found"}`, http.StatusNotFound)
		return
	}

	entries, err := h.entries.ListEntries(r.Context(), userID)
	if err != nil {
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	reads := 0
	for _, e := range entries {
		if e.Status == models.StatusComplete {
			reads++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.Profile{
		ID:         user.ID,
		Username:   user.Username,
		TotalBooks: len(entries),
		Reads:      reads,
	})
}

// DeleteMe removes the account, its reading-list rows, and revokes the
// presented token.
func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("user_id").(int64)
	if !ok {
		http.Error(w, `{"error":"not authenticated"}`, http.StatusUnauthorized)
		return
	}

	if err := h.users.DeleteUser(r.Context(), userID); err != nil {
		http.Error(w, `{"error":"delete failed"}`, http.StatusInternalServerError)
		return
	}

	if token, ok := BearerToken(r); ok {
		if claims, err := h.tokens.Resolve(token); err == nil {
			h.revoker.Revoke(r.Context(), claims)
		}
	}

	log.Printf("auth: user deleted: %d", userID)
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"message":"account deleted"}`))
}
