// Package handler はHTTP APIのハンドラーとルーティングを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/ecofinds/internal/middleware"
	"github.com/hitoshi/ecofinds/internal/model"
)

const (
	msgInvalidBody  = "Invalid request body"
	msgUnauthorized = "Unauthorized"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをdstにデコードする。失敗時は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, msgInvalidBody)
		return false
	}
	return true
}

// requireUserID はコンテキストから認証済みユーザーIDを取り出す。
// 見つからない場合は401を書き込みfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteError(w, http.StatusUnauthorized, msgUnauthorized)
		return "", false
	}
	return userID, true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Kind != model.ErrKindUnexpected {
		middleware.WriteError(w, statusForKind(apiErr.Kind), apiErr.Message)
		return
	}

	// APIError以外のエラーは詳細をログに残し、汎用メッセージを返す
	slog.Error("internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

// statusForKind はErrorKindからHTTPステータスコードにマッピングする。
func statusForKind(kind model.ErrorKind) int {
	switch kind {
	case model.ErrKindValidation:
		return http.StatusBadRequest
	case model.ErrKindAuthentication:
		return http.StatusUnauthorized
	case model.ErrKindAuthorization:
		return http.StatusForbidden
	case model.ErrKindNotFound:
		return http.StatusNotFound
	case model.ErrKindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
