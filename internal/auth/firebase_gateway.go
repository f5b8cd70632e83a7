package auth

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/errorutils"
	"google.golang.org/api/option"

	"github.com/hitoshi/ecofinds/internal/model"
)

// firebaseAuthClient はFirebaseGatewayが使用するfirebaseauth.Clientのメソッド。
type firebaseAuthClient interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
	CreateUser(ctx context.Context, user *firebaseauth.UserToCreate) (*firebaseauth.UserRecord, error)
}

// FirebaseGateway はFirebase AuthenticationによるIdentityGateway。
type FirebaseGateway struct {
	client firebaseAuthClient
}

// NewFirebaseAuthClient はFirebase Admin SDKのAuthクライアントを生成する。
// credentialsFileが空の場合はApplication Default Credentialsを使用する。
func NewFirebaseAuthClient(ctx context.Context, projectID, credentialsFile string) (*firebaseauth.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase auth: %w", err)
	}
	return client, nil
}

// NewFirebaseGateway はFirebaseGatewayを生成する。
func NewFirebaseGateway(client firebaseAuthClient) *FirebaseGateway {
	return &FirebaseGateway{client: client}
}

// Resolve はFirebase IDトークンを検証し、UIDを返す。
func (g *FirebaseGateway) Resolve(ctx context.Context, token string) (string, error) {
	verified, err := g.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	uid := strings.TrimSpace(verified.UID)
	if uid == "" {
		return "", ErrInvalidToken
	}
	return uid, nil
}

// CreateUser はメール確認済みのFirebaseユーザーを作成する。
// usernameは表示名として保存する。
func (g *FirebaseGateway) CreateUser(ctx context.Context, email, password, username string) (*model.User, error) {
	params := (&firebaseauth.UserToCreate{}).
		Email(email).
		Password(password).
		DisplayName(username).
		EmailVerified(true)

	record, err := g.client.CreateUser(ctx, params)
	if err != nil {
		if firebaseauth.IsEmailAlreadyExists(err) {
			return nil, ErrEmailExists
		}
		if errorutils.IsInvalidArgument(err) {
			return nil, &RejectedError{Message: rejectionMessage(err)}
		}
		return nil, fmt.Errorf("failed to create firebase user: %w", err)
	}

	return &model.User{
		ID:       record.UID,
		Email:    record.Email,
		Username: username,
	}, nil
}

// rejectionMessage はFirebaseのエラーから利用者向けの文言を取り出す。
// "CODE : detail" 形式の場合はdetail部分を返す。
func rejectionMessage(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, " : "); i >= 0 {
		msg = msg[i+3:]
	}
	return strings.TrimSpace(msg)
}

// compile-time interface check
var _ IdentityGateway = (*FirebaseGateway)(nil)
