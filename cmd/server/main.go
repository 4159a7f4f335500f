package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/KhaoticNeutral/Garden-Chat-FullStack/internal/auth"
	"github.com/KhaoticNeutral/Garden-Chat-FullStack/internal/broker"
	"github.com/KhaoticNeutral/Garden-Chat-FullStack/internal/config"
	"github.com/KhaoticNeutral/Garden-Chat-FullStack/internal/database"
	"github.com/KhaoticNeutral/Garden-Chat-FullStack/internal/handlers"
	"github.com/KhaoticNeutral/Garden-Chat-FullStack/internal/presence"
	"github.com/KhaoticNeutral/Garden-Chat-FullStack/internal/services"
	"github.com/KhaoticNeutral/Garden-Chat-FullStack/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresDB(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		logger.Fatal("Failed to run migrations: %v", err)
	}

	// Core: router, presence tracker, chat service
	router := broker.NewRouter()
	tracker := presence.NewTracker()
	chatService := services.NewChatService(db, tracker, router)

	// Auth and handlers
	authService := auth.NewService(db, cfg)
	authHandlers := handlers.NewAuthHandlers(authService, db)
	messageHandlers := handlers.NewMessageHandlers(chatService, db)
	wsHandlers := handlers.NewWebSocketHandlers(authService, router, chatService)

	// Routes
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("Welcome to the Garden Chat API!"))
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Post("/register", authHandlers.Register)
		r.Post("/login", authHandlers.Login)
		r.Get("/", authHandlers.ListUsers)
		r.Put("/{username}/profile-icon", authHandlers.UpdateProfileIcon)
	})

	r.Route("/api/messages", func(r chi.Router) {
		r.Get("/{username}", messageHandlers.GetMessages)
		r.Post("/", messageHandlers.SendMessage)
	})

	r.Get("/ws", wsHandlers.HandleWebSocket)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Server started on %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Shutdown error: %v", err)
	}
}
