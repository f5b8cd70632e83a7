package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/ecofinds/internal/model"
)

// devTokenIssuer はDevGatewayが発行するトークンのiss。
const devTokenIssuer = "ecofinds-dev"

// DevGateway はローカル開発とテスト用のIdentityGateway。
// HS256で署名したJWTを発行・検証し、ユーザーはメモリ上に保持する。
type DevGateway struct {
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time

	mu      sync.Mutex
	byEmail map[string]*devUser
}

// devUser はパスワードハッシュ付きのユーザー。
type devUser struct {
	user         *model.User
	passwordHash []byte
}

// NewDevGateway はDevGatewayを生成する。
func NewDevGateway(secret string, tokenTTL time.Duration) *DevGateway {
	return &DevGateway{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		now:      time.Now,
		byEmail:  make(map[string]*devUser),
	}
}

// IssueToken は指定ユーザーのトークンを発行する。
func (g *DevGateway) IssueToken(userID string) (string, error) {
	now := g.now()
	claims := jwt.RegisteredClaims{
		Issuer:    devTokenIssuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(g.tokenTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Resolve はJWTを検証し、subをユーザーIDとして返す。
func (g *DevGateway) Resolve(_ context.Context, token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return g.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(devTokenIssuer),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// CreateUser はメモリ上にユーザーを作成する。メールアドレスは大文字小文字を区別しない。
func (g *DevGateway) CreateUser(_ context.Context, email, password, username string) (*model.User, error) {
	if password == "" {
		return nil, &RejectedError{Message: "Password is required"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, &RejectedError{Message: "Password is too long"}
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	key := devEmailKey(email)
	if _, exists := g.byEmail[key]; exists {
		return nil, ErrEmailExists
	}

	user := &model.User{
		ID:       uuid.New().String(),
		Email:    email,
		Username: username,
	}
	g.byEmail[key] = &devUser{user: user, passwordHash: hash}
	return user, nil
}

// SignIn はメールアドレスとパスワードを照合してトークンを発行する。
// 一致しない場合はErrInvalidCredentialsを返す。
func (g *DevGateway) SignIn(_ context.Context, email, password string) (string, error) {
	g.mu.Lock()
	u, ok := g.byEmail[devEmailKey(email)]
	g.mu.Unlock()
	if !ok {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return g.IssueToken(u.user.ID)
}

func devEmailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// compile-time interface check
var _ IdentityGateway = (*DevGateway)(nil)
