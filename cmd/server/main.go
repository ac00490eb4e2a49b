package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/MehulSharma-259/chat-app/internal/config"
	"github.com/MehulSharma-259/chat-app/internal/db"
	myMiddleware "github.com/MehulSharma-259/chat-app/internal/middleware"
	"github.com/MehulSharma-259/chat-app/internal/relay"
	"github.com/MehulSharma-259/chat-app/internal/user"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// 1. Config
	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// 2. Connect to Database (Platform Layer)
	database, err := db.NewDatabase(cfg.DBDSN)
	if err != nil {
		log.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	log.Info("connected to PostgreSQL")

	if err := database.AutoMigrate(); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("database schema initialized")

	// 3. Connect to Redis (presence mirror)
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Redis")

	// 4. User feature
	userRepo := user.NewRepository(database.Conn)
	userService := user.NewService(userRepo, cfg.JWTSecret, cfg.TokenTTL)
	userHandler := user.NewHandler(userService)

	// 5. Relay feature
	relayRepo := relay.NewRepository(database.Conn)
	presence := relay.NewPresence(redisClient, log)

	hub := relay.NewHub(relayRepo, relayRepo, presence, log)
	go hub.Run()

	relayHandler := relay.NewHandler(hub, relayRepo, relayRepo, presence, log)

	authMiddleware := myMiddleware.NewAuthMiddleware(userService)

	// 6. Routes
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Public
	r.Post("/register", userHandler.Register)
	r.Post("/login", userHandler.Login)

	// Protected (require JWT; websocket clients pass ?token=)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)
		r.Get("/api/users/search", userHandler.SearchUsers)

		r.Get("/ws", relayHandler.ServeWs)

		r.Post("/api/conversations", relayHandler.StartConversation)
		r.Get("/api/conversations", relayHandler.GetConversations)
		r.Get("/api/messages", relayHandler.GetChatHistory)
		r.Get("/api/presence", relayHandler.GetPresence)
	})

	log.Info("server starting", "addr", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, r); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
