// Package model はドメインモデルを定義する。
package model

import "fmt"

// ErrorKind はAPIエラーの分類を表す。HTTPステータスへの変換はhandler層が行う。
type ErrorKind string

const (
	ErrKindValidation     ErrorKind = "validation"
	ErrKindAuthentication ErrorKind = "authentication"
	ErrKindAuthorization  ErrorKind = "authorization"
	ErrKindNotFound       ErrorKind = "not_found"
	ErrKindConflict       ErrorKind = "conflict"
	ErrKindUnexpected     ErrorKind = "unexpected"
)

// APIError はサービス層から返す利用者向けエラー。
// Message はそのままレスポンスの error フィールドに出力される。
type APIError struct {
	Kind    ErrorKind
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// NewValidationError は入力不備エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{Kind: ErrKindValidation, Message: message}
}

// NewAuthenticationError は認証情報の欠落・無効エラーを生成する。
func NewAuthenticationError(message string) *APIError {
	return &APIError{Kind: ErrKindAuthentication, Message: message}
}

// NewAuthorizationError は所有者以外による操作のエラーを生成する。
func NewAuthorizationError(message string) *APIError {
	return &APIError{Kind: ErrKindAuthorization, Message: message}
}

// NewNotFoundError はエンティティ未検出エラーを生成する。
func NewNotFoundError(message string) *APIError {
	return &APIError{Kind: ErrKindNotFound, Message: message}
}

// NewConflictError は売却済み商品への操作など状態競合のエラーを生成する。
func NewConflictError(message string) *APIError {
	return &APIError{Kind: ErrKindConflict, Message: message}
}

// NewProductNotFoundError は商品未検出エラーを生成する。
func NewProductNotFoundError() *APIError {
	return NewNotFoundError("Product not found")
}

// NewProfileNotFoundError はプロフィール未検出エラーを生成する。
func NewProfileNotFoundError() *APIError {
	return NewNotFoundError("Profile not found")
}

// NewProductSoldError は売却済み商品エラーを生成する。
func NewProductSoldError() *APIError {
	return NewConflictError("Product has already been sold")
}
