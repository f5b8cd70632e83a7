// Package security はユーザー入力の無害化を提供する。
//
// 商品のタイトル・説明やユーザー名はプレーンテキストとして保存するため、
// bluemondayのStrictPolicyで全てのHTMLを除去してから検証する。
package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はプレーンテキスト入力の無害化機能のインターフェース。
type TextSanitizer interface {
	// Clean はHTMLタグを除去し、前後の空白を取り除いたテキストを返す。
	// タグのみの入力は空文字列になる。
	Clean(raw string) string
	// CleanURL はhttp/httpsの絶対URLのみを受け付ける。それ以外はfalseを返す。
	CleanURL(raw string) (string, bool)
}

// textSanitizer はTextSanitizerの実装。
// bluemonday.Policyはgoroutineセーフなので共有して使う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean はHTMLを除去したプレーンテキストを返す。
// StrictPolicyは残したテキストの & や < をエスケープするため、最後に元へ戻す。
func (s *textSanitizer) Clean(raw string) string {
	stripped := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(stripped))
}

// CleanURL はURLを検証し、前後の空白を除いて返す。
func (s *textSanitizer) CleanURL(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return "", false
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", false
	}
	return trimmed, true
}

var _ TextSanitizer = (*textSanitizer)(nil)
