package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/KhaoticNeutral/Garden-Chat-FullStack/internal/auth"
	"github.com/KhaoticNeutral/Garden-Chat-FullStack/internal/database"
	"github.com/KhaoticNeutral/Garden-Chat-FullStack/internal/models"
	"github.com/KhaoticNeutral/Garden-Chat-FullStack/pkg/logger"

	"github.com/go-chi/chi/v5"
)

type AuthHandlers struct {
	authService *auth.Service
	users       database.UserDirectory
}

func NewAuthHandlers(authService *auth.Service, users database.UserDirectory) *AuthHandlers {
	return &AuthHandlers{authService: authService, users: users}
}

func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		if errors.Is(err, auth.ErrUsernameTaken) {
			http.Error(w, "Username already taken", http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		http.Error(w, "Invalid Credentials", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func (h *AuthHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		logger.Error("Error listing users: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(users)
}

func (h *AuthHandlers) UpdateProfileIcon(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var profileIcon string
	if err := json.NewDecoder(r.Body).Decode(&profileIcon); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.users.UpdateProfileIcon(r.Context(), username, profileIcon); err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		logger.Error("Error updating profile icon: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Write([]byte("Profile icon updated successfully"))
}
