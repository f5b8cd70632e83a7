package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDevGateway_IssueAndResolve(t *testing.T) {
	g := NewDevGateway("test-secret", time.Hour)

	token, err := g.IssueToken("user-1")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	uid, err := g.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if uid != "user-1" {
		t.Errorf("uid = %q, want %q", uid, "user-1")
	}
}

// 期限切れのトークンはErrInvalidTokenになる
func TestDevGateway_Resolve_Expired(t *testing.T) {
	g := NewDevGateway("test-secret", time.Minute)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return base }

	token, err := g.IssueToken("user-1")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	g.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, err := g.Resolve(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}

// 別の鍵で署名されたトークンは拒否される
func TestDevGateway_Resolve_WrongSecret(t *testing.T) {
	issuer := NewDevGateway("secret-a", time.Hour)
	verifier := NewDevGateway("secret-b", time.Hour)

	token, _ := issuer.IssueToken("user-1")
	if _, err := verifier.Resolve(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}

func TestDevGateway_Resolve_Garbage(t *testing.T) {
	g := NewDevGateway("test-secret", time.Hour)
	if _, err := g.Resolve(context.Background(), "not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("error = %v, want ErrInvalidToken", err)
	}
}

func TestDevGateway_CreateUser_DuplicateEmail(t *testing.T) {
	g := NewDevGateway("test-secret", time.Hour)
	ctx := context.Background()

	u, err := g.CreateUser(ctx, "alice@example.com", "password1", "alice")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == "" || u.Username != "alice" {
		t.Errorf("unexpected user: %+v", u)
	}

	// メールアドレスの大文字小文字は区別しない
	if _, err := g.CreateUser(ctx, "Alice@Example.com", "password2", "alice2"); !errors.Is(err, ErrEmailExists) {
		t.Errorf("error = %v, want ErrEmailExists", err)
	}
}

func TestDevGateway_CreateUser_EmptyPasswordRejected(t *testing.T) {
	g := NewDevGateway("test-secret", time.Hour)

	_, err := g.CreateUser(context.Background(), "bob@example.com", "", "bob")
	var rej *RejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("error = %v, want *RejectedError", err)
	}
	if rej.Message != "Password is required" {
		t.Errorf("Message = %q", rej.Message)
	}
}

func TestDevGateway_SignIn(t *testing.T) {
	g := NewDevGateway("test-secret", time.Hour)
	ctx := context.Background()

	u, err := g.CreateUser(ctx, "carol@example.com", "secret1", "carol")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "一致", email: "carol@example.com", password: "secret1"},
		{name: "メールの大文字小文字は無視", email: " Carol@Example.com ", password: "secret1"},
		{name: "パスワード不一致", email: "carol@example.com", password: "wrong", wantErr: ErrInvalidCredentials},
		{name: "未登録", email: "nobody@example.com", password: "secret1", wantErr: ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := g.SignIn(ctx, tt.email, tt.password)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SignIn: %v", err)
			}
			uid, err := g.Resolve(ctx, token)
			if err != nil || uid != u.ID {
				t.Errorf("Resolve = (%q, %v), want %q", uid, err, u.ID)
			}
		})
	}
}
