// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/ecofinds/internal/auth"
)

const (
	msgTokenRequired = "Authorization token required"
	msgUnauthorized  = "Unauthorized"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
	userIDContextKey = contextKey("user_id")
	// requestUserContextKey は外側のミドルウェアに認証結果を伝えるためのキー。
	requestUserContextKey = contextKey("request_user")
)

// requestUser は内側の認証ミドルウェアで解決したユーザーIDを、
// ロギングなど外側のミドルウェアから参照するための入れ物。
type requestUser struct {
	id string
}

// TokenResolver はベアラートークンの検証に必要なインターフェース。
// auth.IdentityGatewayの部分集合として定義する。
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (string, error)
}

// bearerToken はAuthorizationヘッダーからトークンを取り出す。
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// resolveUser はトークンを検証し、失敗時はエラーレスポンスを書き込んでfalseを返す。
func resolveUser(w http.ResponseWriter, r *http.Request, resolver TokenResolver, token string) (string, bool) {
	userID, err := resolver.Resolve(r.Context(), token)
	if err == nil {
		return userID, true
	}
	if errors.Is(err, auth.ErrInvalidToken) {
		WriteError(w, http.StatusUnauthorized, msgUnauthorized)
		return "", false
	}
	slog.Error("failed to resolve token",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	WriteInternalServerError(w)
	return "", false
}

// NewAuthMiddleware はAuthorizationヘッダーのベアラートークンを検証するミドルウェアを返す。
// 認証済みユーザーIDをリクエストコンテキストに注入する。
// トークンがなければ "Authorization token required"、無効なら "Unauthorized" の401を返す。
func NewAuthMiddleware(resolver TokenResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				WriteError(w, http.StatusUnauthorized, msgTokenRequired)
				return
			}

			userID, ok := resolveUser(w, r, resolver, token)
			if !ok {
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
		})
	}
}

// NewAnonKeyMiddleware は公開エンドポイント用のミドルウェアを返す。
// 公開キーそのもの、または有効なユーザートークンを受け付ける。
// ユーザートークンの場合はユーザーIDをコンテキストに注入する。
// anonKeyが空の場合は検査しない。
func NewAnonKeyMiddleware(anonKey string, resolver TokenResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if anonKey == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				WriteError(w, http.StatusUnauthorized, msgTokenRequired)
				return
			}

			if subtle.ConstantTimeCompare([]byte(token), []byte(anonKey)) == 1 {
				next.ServeHTTP(w, r)
				return
			}

			userID, ok := resolveUser(w, r, resolver, token)
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
		})
	}
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	if holder, ok := ctx.Value(requestUserContextKey).(*requestUser); ok {
		holder.id = userID
	}
	return context.WithValue(ctx, userIDContextKey, userID)
}
