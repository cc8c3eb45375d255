package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayan/bookrack/internal/auth"
	"github.com/ayan/bookrack/internal/config"
	"github.com/ayan/bookrack/internal/library"
	"github.com/ayan/bookrack/internal/middleware"
	"github.com/ayan/bookrack/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	// ── PostgreSQL ────────────────────────────────────────────
	pgPool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("postgres connect: %v", err)
	}
	defer pgPool.Close()
	pgStore := store.NewPostgresStore(pgPool)
	if err := pgStore.Migrate(ctx); err != nil {
		log.Fatalf("postgres migrate: %v", err)
	}
	if err := store.SeedCatalog(ctx, pgStore, cfg.SeedFile); err != nil {
		log.Fatalf("seed catalog: %v", err)
	}

	// ── Redis ────────────────────────────────────────────────
	revoker, err := auth.NewRevoker(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connect: %v", err)
	}
	defer revoker.Close()

	// ── MinIO ────────────────────────────────────────────────
	covers, err := store.NewCoverStore(
		ctx, cfg.MinioEndpoint, cfg.MinioAccessKey,
		cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL,
	)
	if err != nil {
		log.Fatalf("minio connect: %v", err)
	}

	// ── Tokens ───────────────────────────────────────────────
	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		log.Fatalf("token manager: %v", err)
	}

	// ── Handlers ─────────────────────────────────────────────
	authHandler := auth.NewHandler(pgStore, pgStore, tokens, revoker)
	libHandler := library.NewHandler(pgStore, pgStore, covers)
	requireAuth := middleware.RequireAuth(tokens, revoker)

	// ── Router ───────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		// Auth routes (public)
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)

		// Catalog routes (public)
		r.Get("/books", libHandler.ListBooks)
		r.Get("/books/genre", libHandler.BooksByGenre)
		r.Get("/books/{id}", libHandler.GetBook)
		r.Get("/books/{id}/cover", libHandler.GetCover)
		r.Get("/search", libHandler.SearchBooks)
		r.Get("/genre", libHandler.Genres)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
			r.Delete("/me", authHandler.DeleteMe)

			r.Delete("/books/{id}", libHandler.DeleteBook)
			r.Put("/books/{id}/cover", libHandler.PutCover)
			r.Delete("/books/{id}/cover", libHandler.DeleteCover)

			r.Get("/reads", libHandler.GetReadingList)
			r.Post("/reads", libHandler.AddToReadingList)
			r.Put("/reads", libHandler.ChangeReadingStatus)
			r.Delete("/reads", libHandler.RemoveFromReadingList)
			r.Get("/recommend", libHandler.Recommendations)
		})
	})

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Printf("Backend listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	srv.Shutdown(shutCtx)
}
