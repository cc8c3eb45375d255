package store

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayan/bookrack/internal/library"
	"github.com/ayan/bookrack/internal/models"
)

// uniqueViolation is the Postgres error code raised when an INSERT hits a
// UNIQUE constraint.
const uniqueViolation = "23505"

// bookColumns selects a book row plus its completed-read count.
const bookColumns = `
	b.id, b.title, b.author, b.genre,
	(SELECT COUNT(*) FROM reading_list r
	 WHERE r.book_id = b.id AND r.status = 'complete') AS reads`

// PostgresStore handles book, user, and reading-list CRUD against PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the three tables if they don't exist. Username and the
// (user, book) pair carry UNIQUE constraints so duplicate registrations and
// duplicate reading-list adds fail in storage rather than racing a pre-check.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS books (
			id         BIGSERIAL PRIMARY KEY,
			title      TEXT NOT NULL,
			author     TEXT NOT NULL,
			genre      TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id         BIGSERIAL PRIMARY KEY,
			username   TEXT UNIQUE NOT NULL,
			password   TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS reading_list (
			id         BIGSERIAL PRIMARY KEY,
			book_id    BIGINT NOT NULL REFERENCES books (id),
			user_id    BIGINT NOT NULL REFERENCES users (id),
			status     TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, book_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ------------------ Books ------------------

// SeedBooks inserts the startup dataset. Callers only invoke it when
// CountBooks reports an empty catalog.
func (s *PostgresStore) SeedBooks(ctx context.Context, seeds []SeedBook) error {
	for _, b := range seeds {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO books (title, author, genre) VALUES ($1, $2, $3)`,
			b.Title, b.Author, b.Genre,
		)
		if err != nil {
			return fmt.Errorf("seed book %q: %w", b.Title, err)
		}
	}
	log.Printf("store: seeded %d books", len(seeds))
	return nil
}

func (s *PostgresStore) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	var b models.Book
	err := s.pool.QueryRow(ctx,
		`SELECT `+bookColumns+` FROM books b WHERE b.id = $1`, id,
	).Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &b.Reads)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("book %d: %w", id, library.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return &b, nil
}

func (s *PostgresStore) ListBooks(ctx context.Context, offset, limit int) ([]models.Book, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+bookColumns+` FROM books b ORDER BY b.id LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return scanBooks(rows)
}

func (s *PostgresStore) CountBooks(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM books`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) SearchBooksByTitle(ctx context.Context, title string) ([]models.Book, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+bookColumns+` FROM books b
		 WHERE b.title ILIKE '%' || $1 || '%' ORDER BY b.id`,
		title,
	)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	return scanBooks(rows)
}

func (s *PostgresStore) ListGenres(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT genre FROM books`)
	if err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	defer rows.Close()

	genres := []string{}
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		genres = append(genres, g)
	}
	return genres, rows.Err()
}

func (s *PostgresStore) ListBooksByGenre(ctx context.Context, genre string) ([]models.Book, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+bookColumns+` FROM books b WHERE b.genre = $1 ORDER BY b.id`,
		genre,
	)
	if err != nil {
		return nil, fmt.Errorf("list books by genre: %w", err)
	}
	return scanBooks(rows)
}

// DeleteBook removes a book and every reading-list row that points at it.
func (s *PostgresStore) DeleteBook(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM reading_list WHERE book_id = $1`, id); err != nil {
		return fmt.Errorf("delete book entries: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM books WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	return nil
}

func scanBooks(rows pgx.Rows) ([]models.Book, error) {
	defer rows.Close()
	books := []models.Book{}
	for rows.Next() {
		var b models.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &b.Reads); err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// ------------------ Users ------------------

func (s *PostgresStore) CreateUser(ctx context.Context, username, hashedPassword string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, password)
		 VALUES ($1, $2)
		 RETURNING id, username, created_at`,
		username, hashedPassword,
	).Scan(&u.ID, &u.Username, &u.CreatedAt)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("username %q: %w", username, library.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, password, created_at FROM users WHERE username = $1`, username,
	).Scan(&u.ID, &u.Username, &u.Password, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", username, library.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, library.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUser removes a user and every reading-list row they own.
func (s *PostgresStore) DeleteUser(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM reading_list WHERE user_id = $1`, id); err != nil {
		return fmt.Errorf("delete user entries: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// ------------------ Reading list ------------------

// ListEntries returns the user's reading-list rows joined with their books,
// in insertion order. Rows whose book is gone drop out of the join.
func (s *PostgresStore) ListEntries(ctx context.Context, userID int64) ([]models.ReadingEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+bookColumns+`, r.status, r.updated_at
		 FROM reading_list r
		 JOIN books b ON b.id = r.book_id
		 WHERE r.user_id = $1
		 ORDER BY r.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	entries := []models.ReadingEntry{}
	for rows.Next() {
		var e models.ReadingEntry
		if err := rows.Scan(&e.ID, &e.Title, &e.Author, &e.Genre, &e.Reads, &e.Status, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) GetEntry(ctx context.Context, userID, bookID int64) (*models.ReadingEntry, error) {
	var e models.ReadingEntry
	err := s.pool.QueryRow(ctx,
		`SELECT `+bookColumns+`, r.status, r.updated_at
		 FROM reading_list r
		 JOIN books b ON b.id = r.book_id
		 WHERE r.user_id = $1 AND r.book_id = $2`,
		userID, bookID,
	).Scan(&e.ID, &e.Title, &e.Author, &e.Genre, &e.Reads, &e.Status, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("entry (%d, %d): %w", userID, bookID, library.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *PostgresStore) CreateEntry(ctx context.Context, userID, bookID int64, status models.Status) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO reading_list (book_id, user_id, status) VALUES ($1, $2, $3)`,
		bookID, userID, status,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("entry (%d, %d): %w", userID, bookID, library.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	return nil
}

// UpdateEntryStatus sets the status and refresh timestamp. Updating an
// absent row affects nothing and is not an error.
func (s *PostgresStore) UpdateEntryStatus(ctx context.Context, userID, bookID int64, status models.Status) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE reading_list
		 SET status = $1, updated_at = NOW()
		 WHERE user_id = $2 AND book_id = $3`,
		status, userID, bookID,
	)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	return nil
}

// DeleteEntry removes the row. Deleting an absent row is a no-op.
func (s *PostgresStore) DeleteEntry(ctx context.Context, userID, bookID int64) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM reading_list WHERE user_id = $1 AND book_id = $2`,
		userID, bookID,
	)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
