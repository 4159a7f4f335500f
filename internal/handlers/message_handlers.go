package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/KhaoticNeutral/Garden-Chat-FullStack/internal/database"
	"github.com/KhaoticNeutral/Garden-Chat-FullStack/internal/models"
	"github.com/KhaoticNeutral/Garden-Chat-FullStack/internal/services"
	"github.com/KhaoticNeutral/Garden-Chat-FullStack/pkg/logger"

	"github.com/go-chi/chi/v5"
)

type MessageHandlers struct {
	chatService *services.ChatService
	store       database.MessageStore
}

func NewMessageHandlers(chatService *services.ChatService, store database.MessageStore) *MessageHandlers {
	return &MessageHandlers{chatService: chatService, store: store}
}

// GetMessages returns the messages addressed to a username.
func (h *MessageHandlers) GetMessages(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	messages, err := h.store.QueryByReceiver(r.Context(), username)
	if err != nil {
		logger.Error("Error querying messages for %s: %v", username, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []*models.ChatMessage{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messages)
}

// SendMessage persists a direct message. The timestamp in the request is
// ignored; the service assigns its own.
func (h *MessageHandlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	var msg models.ChatMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	stored, err := h.chatService.SaveDirectMessage(r.Context(), &msg)
	if err != nil {
		var vErr *services.ValidationError
		if errors.As(err, &vErr) {
			http.Error(w, vErr.Reason, http.StatusBadRequest)
			return
		}
		logger.Error("Error saving message: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stored)
}
