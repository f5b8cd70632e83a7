// Package auth はベアラートークンの検証とユーザー作成を行うIdentity Gatewayを提供する。
package auth

import (
	"context"
	"errors"

	"github.com/hitoshi/ecofinds/internal/model"
)

var (
	// ErrInvalidToken はトークンが不正または期限切れであることを示す。
	ErrInvalidToken = errors.New("invalid token")
	// ErrEmailExists は同じメールアドレスのユーザーが既に存在することを示す。
	ErrEmailExists = errors.New("email already registered")
	// ErrInvalidCredentials はメールアドレスまたはパスワードが一致しないことを示す。
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// RejectedError はIDプロバイダーが入力を受け付けなかったことを示す。
// Messageはそのまま利用者に返してよい。
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	return "identity provider rejected the request: " + e.Message
}

// IdentityGateway は外部のIDプロバイダーを抽象化する。
type IdentityGateway interface {
	// Resolve はベアラートークンを検証し、ユーザーIDを返す。
	// 不正なトークンの場合はErrInvalidTokenを返す。
	Resolve(ctx context.Context, token string) (string, error)
	// CreateUser はメール確認済みのユーザーを作成する。
	CreateUser(ctx context.Context, email, password, username string) (*model.User, error)
}
