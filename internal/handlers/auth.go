package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/propeld/propeld/internal/middleware"
	"github.com/propeld/propeld/internal/services/oidc"
	"github.com/propeld/propeld/internal/validation"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	oidcProvider *oidc.Provider
	providerName string
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(oidcProvider *oidc.Provider, providerName string) *AuthHandler {
	return &AuthHandler{oidcProvider: oidcProvider, providerName: providerName}
}

// OIDCCallbackRequest carries the authorization code from the frontend
type OIDCCallbackRequest struct {
	Code string `json:"code" validate:"required"`
}

// OIDCCallbackResponse returns the exchanged tokens to the frontend
type OIDCCallbackResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token,omitempty"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// PostOIDCCallback exchanges an authorization code for tokens server-side,
// keeping the client secret out of the frontend.
func (h *AuthHandler) PostOIDCCallback(w http.ResponseWriter, r *http.Request) {
	var req OIDCCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}
	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "code is required")
		return
	}

	config, err := h.oidcProvider.GetConfig(r.Context(), h.providerName)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to get OIDC configuration")
		return
	}

	token, err := oidc.NewClient(config).ExchangeCode(r.Context(), req.Code)
	if err != nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Failed to exchange authorization code")
		return
	}

	resp := OIDCCallbackResponse{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
		ExpiresIn:   int64(token.ExpiresIn),
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		resp.IDToken = idToken
	}

	respondJSON(w, http.StatusOK, resp)
}

// GetOIDCLogin returns OIDC configuration for frontend
func (h *AuthHandler) GetOIDCLogin(w http.ResponseWriter, r *http.Request) {
	loginConfig, err := h.oidcProvider.GetLoginConfig(r.Context(), h.providerName)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Failed to get OIDC configuration", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, loginConfig)
}

// GetMe returns current user information
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r)
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	respondJSON(w, http.StatusOK, user)
}
