// Package user はユーザー登録とプロフィール管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/ecofinds/internal/auth"
	"github.com/hitoshi/ecofinds/internal/model"
	"github.com/hitoshi/ecofinds/internal/repository"
	"github.com/hitoshi/ecofinds/internal/security"
)

const (
	msgSignupFieldsRequired = "Email, password, and username are required"
	msgInvalidEmail         = "Invalid email address"
	msgWeakPassword         = "Password must be at least 6 characters"
	msgEmailExists          = "A user with this email address has already been registered"
	msgUsernameRequired     = "Username is required"

	// minPasswordLength はFirebase Authenticationの最小パスワード長に合わせる。
	minPasswordLength = 6

	// demoUsernameMarker を含むユーザー名で登録するとデモ商品を作成する。
	demoUsernameMarker = "demo_user_"
)

// DemoSeeder はデモ商品の作成インターフェース。
type DemoSeeder interface {
	SeedDemo(ctx context.Context) (int, error)
}

// Service はユーザー管理のサービス層。
type Service struct {
	gateway   auth.IdentityGateway
	profiles  repository.ProfileRepository
	sanitizer security.TextSanitizer
	seeder    DemoSeeder
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// seederがnilの場合はデモ商品を作成しない。
func NewService(
	gateway auth.IdentityGateway,
	profiles repository.ProfileRepository,
	sanitizer security.TextSanitizer,
	seeder DemoSeeder,
) *Service {
	return &Service{
		gateway:   gateway,
		profiles:  profiles,
		sanitizer: sanitizer,
		seeder:    seeder,
		now:       time.Now,
	}
}

// Signup はIDプロバイダーにユーザーを作成し、プロフィールを保存する。
func (s *Service) Signup(ctx context.Context, email, password, username string) (*model.User, error) {
	email = strings.TrimSpace(email)
	username = s.sanitizer.Clean(username)
	if email == "" || password == "" || username == "" {
		return nil, model.NewValidationError(msgSignupFieldsRequired)
	}
	// 表示名付きの "Bob <bob@example.com>" 形式は受け付けない
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, model.NewValidationError(msgInvalidEmail)
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return nil, model.NewValidationError(msgWeakPassword)
	}

	user, err := s.gateway.CreateUser(ctx, email, password, username)
	if err != nil {
		if errors.Is(err, auth.ErrEmailExists) {
			return nil, model.NewValidationError(msgEmailExists)
		}
		var rejected *auth.RejectedError
		if errors.As(err, &rejected) {
			return nil, model.NewValidationError(rejected.Message)
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	profile := &model.Profile{
		ID:        user.ID,
		Email:     email,
		Username:  username,
		CreatedAt: s.now().UTC(),
	}
	if err := s.profiles.Save(ctx, profile); err != nil {
		return nil, fmt.Errorf("プロフィールの保存に失敗しました: %w", err)
	}

	slog.Info("user signed up", slog.String("user_id", user.ID))

	if s.seeder != nil && strings.Contains(username, demoUsernameMarker) {
		if n, err := s.seeder.SeedDemo(ctx); err != nil {
			slog.Warn("demo listings not seeded",
				slog.String("user_id", user.ID),
				slog.Int("created", n),
				slog.String("error", err.Error()),
			)
		}
	}

	return user, nil
}

// GetProfile はactorのプロフィールを返す。
func (s *Service) GetProfile(ctx context.Context, actor string) (*model.Profile, error) {
	profile, err := s.profiles.FindByID(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if profile == nil {
		return nil, model.NewProfileNotFoundError()
	}
	return profile, nil
}

// UpdateProfile はactorのユーザー名を変更する。他のフィールドは保持する。
func (s *Service) UpdateProfile(ctx context.Context, actor, username string) (*model.Profile, error) {
	username = s.sanitizer.Clean(username)
	if username == "" {
		return nil, model.NewValidationError(msgUsernameRequired)
	}

	profile, err := s.GetProfile(ctx, actor)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	profile.Username = username
	profile.UpdatedAt = &now
	if err := s.profiles.Save(ctx, profile); err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}
	return profile, nil
}
