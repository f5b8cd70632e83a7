package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/ecofinds/internal/checkout"
	"github.com/hitoshi/ecofinds/internal/listing"
	"github.com/hitoshi/ecofinds/internal/middleware"
	"github.com/hitoshi/ecofinds/internal/model"
)

// --- モック定義 ---

// mockListingService はListingServiceInterfaceのモック実装。
type mockListingService struct {
	createFn      func(ctx context.Context, actor string, in listing.Input) (*model.Listing, error)
	updateFn      func(ctx context.Context, actor, id string, in listing.Input) (*model.Listing, error)
	deleteFn      func(ctx context.Context, actor, id string) error
	getFn         func(ctx context.Context, id string) (*model.Listing, error)
	listFn        func(ctx context.Context, filter model.ListingFilter) ([]*model.Listing, error)
	listByOwnerFn func(ctx context.Context, actor string) ([]*model.Listing, error)
}

func (m *mockListingService) Create(ctx context.Context, actor string, in listing.Input) (*model.Listing, error) {
	if m.createFn != nil {
		return m.createFn(ctx, actor, in)
	}
	return &model.Listing{ID: "new"}, nil
}

func (m *mockListingService) Update(ctx context.Context, actor, id string, in listing.Input) (*model.Listing, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, actor, id, in)
	}
	return &model.Listing{ID: id}, nil
}

func (m *mockListingService) Delete(ctx context.Context, actor, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, actor, id)
	}
	return nil
}

func (m *mockListingService) Get(ctx context.Context, id string) (*model.Listing, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return &model.Listing{ID: id}, nil
}

func (m *mockListingService) List(ctx context.Context, filter model.ListingFilter) ([]*model.Listing, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return []*model.Listing{}, nil
}

func (m *mockListingService) ListByOwner(ctx context.Context, actor string) ([]*model.Listing, error) {
	if m.listByOwnerFn != nil {
		return m.listByOwnerFn(ctx, actor)
	}
	return []*model.Listing{}, nil
}

// mockCartService はCartServiceInterfaceのモック実装。
type mockCartService struct {
	addFn    func(ctx context.Context, actor, productID string) (*model.CartEntry, error)
	removeFn func(ctx context.Context, actor, productID string) error
	listFn   func(ctx context.Context, actor string) ([]*model.CartItem, error)
}

func (m *mockCartService) Add(ctx context.Context, actor, productID string) (*model.CartEntry, error) {
	if m.addFn != nil {
		return m.addFn(ctx, actor, productID)
	}
	return &model.CartEntry{UserID: actor, ProductID: productID}, nil
}

func (m *mockCartService) Remove(ctx context.Context, actor, productID string) error {
	if m.removeFn != nil {
		return m.removeFn(ctx, actor, productID)
	}
	return nil
}

func (m *mockCartService) List(ctx context.Context, actor string) ([]*model.CartItem, error) {
	if m.listFn != nil {
		return m.listFn(ctx, actor)
	}
	return []*model.CartItem{}, nil
}

// mockCheckoutService はCheckoutServiceInterfaceのモック実装。
type mockCheckoutService struct {
	checkoutFn      func(ctx context.Context, actor string, productIDs []string) (*checkout.Result, error)
	listPurchasesFn func(ctx context.Context, actor string) ([]*model.PurchaseHistoryEntry, error)
}

func (m *mockCheckoutService) Checkout(ctx context.Context, actor string, productIDs []string) (*checkout.Result, error) {
	if m.checkoutFn != nil {
		return m.checkoutFn(ctx, actor, productIDs)
	}
	return &checkout.Result{Message: "Purchase completed"}, nil
}

func (m *mockCheckoutService) ListPurchases(ctx context.Context, actor string) ([]*model.PurchaseHistoryEntry, error) {
	if m.listPurchasesFn != nil {
		return m.listPurchasesFn(ctx, actor)
	}
	return []*model.PurchaseHistoryEntry{}, nil
}

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	signupFn        func(ctx context.Context, email, password, username string) (*model.User, error)
	getProfileFn    func(ctx context.Context, actor string) (*model.Profile, error)
	updateProfileFn func(ctx context.Context, actor, username string) (*model.Profile, error)
}

func (m *mockUserService) Signup(ctx context.Context, email, password, username string) (*model.User, error) {
	if m.signupFn != nil {
		return m.signupFn(ctx, email, password, username)
	}
	return &model.User{ID: "user-1", Email: email, Username: username}, nil
}

func (m *mockUserService) GetProfile(ctx context.Context, actor string) (*model.Profile, error) {
	if m.getProfileFn != nil {
		return m.getProfileFn(ctx, actor)
	}
	return &model.Profile{ID: actor}, nil
}

func (m *mockUserService) UpdateProfile(ctx context.Context, actor, username string) (*model.Profile, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, actor, username)
	}
	return &model.Profile{ID: actor, Username: username}, nil
}

// mockImageService はImageServiceInterfaceのモック実装。
type mockImageService struct {
	uploadFn func(ctx context.Context, userID, declaredType string, r io.Reader) (*model.UploadedImage, error)
}

func (m *mockImageService) Upload(ctx context.Context, userID, declaredType string, r io.Reader) (*model.UploadedImage, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, userID, declaredType, r)
	}
	return &model.UploadedImage{ImageURL: "https://img.example/x", ImagePath: userID + "/x.png"}, nil
}

// --- テストヘルパー ---

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decodeBody はレスポンスボディをJSONとしてデコードする。
func decodeBody[T any](t *testing.T, body io.Reader) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

// errorBody はエラーレスポンスのerrorフィールドを返す。
func errorBody(t *testing.T, body io.Reader) string {
	t.Helper()
	return decodeBody[middleware.ErrorResponseBody](t, body).Error
}
