package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/hitoshi/ecofinds/internal/auth"
	"github.com/hitoshi/ecofinds/internal/middleware"
)

// DevSignInServiceInterface は開発用IDプロバイダーのサインイン。
type DevSignInServiceInterface interface {
	SignIn(ctx context.Context, email, password string) (string, error)
}

// DevTokenHandler は開発用IDプロバイダーでのトークン発行を扱う。
// IDENTITY_PROVIDER=dev の場合のみルーティングされる。
type DevTokenHandler struct {
	service DevSignInServiceInterface
}

// NewDevTokenHandler はDevTokenHandlerを生成する。
func NewDevTokenHandler(service DevSignInServiceInterface) *DevTokenHandler {
	return &DevTokenHandler{service: service}
}

type devTokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type devTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// IssueToken はメールアドレスとパスワードを照合してベアラートークンを返す。
// POST /dev/token
func (h *DevTokenHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req devTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		middleware.WriteError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, devTokenResponse{AccessToken: token, TokenType: "bearer"})
}
