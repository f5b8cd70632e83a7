package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/ecofinds/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Signup は認証基盤にユーザーを作成し、プロフィールを保存する。
	Signup(ctx context.Context, email, password, username string) (*model.User, error)
	GetProfile(ctx context.Context, actor string) (*model.Profile, error)
	UpdateProfile(ctx context.Context, actor, username string) (*model.Profile, error)
}

// UserHandler はサインアップとプロフィールのHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type updateProfileRequest struct {
	Username string `json:"username"`
}

type userResponse struct {
	User *model.User `json:"user"`
}

type profileResponse struct {
	Profile *model.Profile `json:"profile"`
}

// Signup はユーザー登録を処理する。
// POST /signup
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.Signup(r.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{User: user})
}

// GetProfile は自分のプロフィールを返す。
// GET /profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	profile, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{Profile: profile})
}

// UpdateProfile はユーザー名を更新する。
// PUT /profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	profile, err := h.service.UpdateProfile(r.Context(), userID, req.Username)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{Profile: profile})
}
