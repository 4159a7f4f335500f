package handlers

import (
	"net/http"

	"github.com/KhaoticNeutral/Garden-Chat-FullStack/internal/auth"
	"github.com/KhaoticNeutral/Garden-Chat-FullStack/internal/broker"
	"github.com/KhaoticNeutral/Garden-Chat-FullStack/internal/services"
	ws "github.com/KhaoticNeutral/Garden-Chat-FullStack/internal/websocket"
	"github.com/KhaoticNeutral/Garden-Chat-FullStack/pkg/logger"

	"github.com/gorilla/websocket"
)

type WebSocketHandlers struct {
	authService *auth.Service
	router      *broker.Router
	chatService *services.ChatService
	upgrader    websocket.Upgrader
}

func NewWebSocketHandlers(authService *auth.Service, router *broker.Router, chatService *services.ChatService) *WebSocketHandlers {
	return &WebSocketHandlers{
		authService: authService,
		router:      router,
		chatService: chatService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // Configure for production
		},
	}
}

func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Get JWT token from query parameters
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	username, err := h.authService.ValidateToken(tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	session := ws.NewSession(conn, h.router, h.chatService)
	session.Start()
	logger.Info("WebSocket session opened for %s", username)
}
