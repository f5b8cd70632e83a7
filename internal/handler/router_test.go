package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/ecofinds/internal/auth"
	"github.com/hitoshi/ecofinds/internal/cart"
	"github.com/hitoshi/ecofinds/internal/checkout"
	"github.com/hitoshi/ecofinds/internal/imagestore"
	"github.com/hitoshi/ecofinds/internal/listing"
	"github.com/hitoshi/ecofinds/internal/metrics"
	"github.com/hitoshi/ecofinds/internal/middleware"
	"github.com/hitoshi/ecofinds/internal/repository"
	"github.com/hitoshi/ecofinds/internal/security"
	"github.com/hitoshi/ecofinds/internal/user"
)

const testAnonKey = "anon-public-key"

// testServer はメモリ上のバックエンドで全ルートを構成したテスト用サーバー。
type testServer struct {
	t       *testing.T
	handler http.Handler
	gateway *auth.DevGateway
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := repository.NewMemoryStore()
	listings := repository.NewKVListingRepo(store)
	carts := repository.NewKVCartRepo(store)
	profiles := repository.NewKVProfileRepo(store)
	gateway := auth.NewDevGateway("test-secret", time.Hour)
	sanitizer := security.NewTextSanitizer()

	reg := prometheus.NewRegistry()
	mc := metrics.NewCollector(reg)

	listingSvc := listing.NewService(listings, sanitizer, mc)
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	deps := &RouterDeps{
		BasePath:           "/api",
		Metrics:            mc,
		MetricsHandler:     metrics.Handler(reg),
		TokenResolver:      gateway,
		AnonKey:            testAnonKey,
		CORSAllowedOrigins: []string{"*"},
		RateLimiter:        rl,
		ListingService:     listingSvc,
		CartService:        cart.NewService(carts, listings),
		CheckoutService: checkout.NewService(checkout.Repositories{
			Listings:  listings,
			Carts:     carts,
			Purchases: repository.NewKVPurchaseRepo(store),
			Intents:   repository.NewKVCheckoutIntentRepo(store),
			Profiles:  profiles,
		}, nil, mc),
		UserService: user.NewService(gateway, profiles, sanitizer, listingSvc),
		ImageService: imagestore.NewService(
			imagestore.NewMemoryStore("http://blobs.local"),
			imagestore.Config{MaxBytes: 5 << 20, URLTTL: time.Hour},
			mc,
		),
		DevSignIn: gateway,
	}

	return &testServer{t: t, handler: NewRouter(deps), gateway: gateway}
}

// do はリクエストを送信してレスポンスを返す。tokenが空の場合はAuthorizationヘッダーを付けない。
func (s *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	s.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

// signup はユーザーを登録し、/dev/token で取得したトークンを返す。
func (s *testServer) signup(email, username string) string {
	s.t.Helper()
	body := `{"email":"` + email + `","password":"secret1","username":"` + username + `"}`
	w := s.do(http.MethodPost, "/api/signup", testAnonKey, body)
	if w.Code != http.StatusOK {
		s.t.Fatalf("signup status = %d, body = %s", w.Code, w.Body.String())
	}

	w = s.do(http.MethodPost, "/api/dev/token", testAnonKey, `{"email":"`+email+`","password":"secret1"}`)
	if w.Code != http.StatusOK {
		s.t.Fatalf("dev token status = %d, body = %s", w.Code, w.Body.String())
	}
	return decodeBody[devTokenResponse](s.t, w.Body).AccessToken
}

func mustStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d (body = %s)", w.Code, want, w.Body.String())
	}
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/health", "", "")
	mustStatus(t, w, http.StatusOK)
	if got := strings.TrimSpace(w.Body.String()); got != `{"status":"ok"}` {
		t.Errorf("body = %s", got)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers on every response")
	}
}

func TestRouter_AuthRequirements(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		method   string
		path     string
		token    string
		wantCode int
	}{
		{name: "公開ルートは公開キーで呼べる", method: http.MethodGet, path: "/api/products", token: testAnonKey, wantCode: http.StatusOK},
		{name: "公開ルートもキーなしは拒否", method: http.MethodGet, path: "/api/products", wantCode: http.StatusUnauthorized},
		{name: "不正なキーは拒否", method: http.MethodGet, path: "/api/products", token: "bogus", wantCode: http.StatusUnauthorized},
		{name: "ユーザールートに公開キーは使えない", method: http.MethodGet, path: "/api/cart", token: testAnonKey, wantCode: http.StatusUnauthorized},
		{name: "ユーザールートはトークン必須", method: http.MethodGet, path: "/api/profile", wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(tt.method, tt.path, tt.token, "")
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestRouter_MarketplaceFlow(t *testing.T) {
	s := newTestServer(t)
	seller := s.signup("seller@example.com", "seller")
	buyer := s.signup("buyer@example.com", "buyer")

	// 出品
	w := s.do(http.MethodPost, "/api/products", seller,
		`{"title":"Desk Lamp","description":"Brass lamp","category":"Home & Garden","price":"25.50"}`)
	mustStatus(t, w, http.StatusCreated)
	created := decodeBody[struct {
		Product struct {
			ID    string          `json:"id"`
			Price json.RawMessage `json:"price"`
		} `json:"product"`
	}](t, w.Body)
	productID := created.Product.ID
	if string(created.Product.Price) != "25.5" {
		t.Errorf("price = %s, want JSON number 25.5", created.Product.Price)
	}

	// 一覧・詳細は公開キーで取得できる
	w = s.do(http.MethodGet, "/api/products?category=Home%20%26%20Garden", testAnonKey, "")
	mustStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), productID) {
		t.Errorf("listing missing from category filter: %s", w.Body.String())
	}
	mustStatus(t, s.do(http.MethodGet, "/api/products/"+productID, testAnonKey, ""), http.StatusOK)

	// 自分の商品はカートに入れられない
	w = s.do(http.MethodPost, "/api/cart", seller, `{"productId":"`+productID+`"}`)
	mustStatus(t, w, http.StatusBadRequest)

	// 他人は編集・削除できない
	mustStatus(t, s.do(http.MethodPut, "/api/products/"+productID, buyer,
		`{"title":"Hijack","description":"x","category":"Home & Garden","price":1}`), http.StatusForbidden)
	mustStatus(t, s.do(http.MethodDelete, "/api/products/"+productID, buyer, ""), http.StatusForbidden)

	// カート追加と取得
	mustStatus(t, s.do(http.MethodPost, "/api/cart", buyer, `{"productId":"`+productID+`"}`), http.StatusOK)
	w = s.do(http.MethodGet, "/api/cart", buyer, "")
	mustStatus(t, w, http.StatusOK)
	cartResp := decodeBody[struct {
		CartItems []struct {
			ProductID string `json:"product_id"`
		} `json:"cartItems"`
	}](t, w.Body)
	if len(cartResp.CartItems) != 1 || cartResp.CartItems[0].ProductID != productID {
		t.Fatalf("cartItems = %+v", cartResp.CartItems)
	}

	// 購入
	w = s.do(http.MethodPost, "/api/purchase", buyer, `{"productIds":["`+productID+`","missing"]}`)
	mustStatus(t, w, http.StatusOK)
	result := decodeBody[checkout.Result](t, w.Body)
	if len(result.Purchases) != 1 || result.Purchases[0].ProductID != productID {
		t.Fatalf("purchases = %+v", result.Purchases)
	}

	// 購入後はカートが空になり、出品一覧からも消える
	w = s.do(http.MethodGet, "/api/cart", buyer, "")
	if got := strings.TrimSpace(w.Body.String()); got != `{"cartItems":[]}` {
		t.Errorf("cart after checkout = %s", got)
	}
	w = s.do(http.MethodGet, "/api/products", testAnonKey, "")
	if strings.Contains(w.Body.String(), productID) {
		t.Errorf("sold listing still listed: %s", w.Body.String())
	}

	// 2回目の購入は売却済みで競合
	mustStatus(t, s.do(http.MethodPost, "/api/purchase", buyer, `{"productIds":["`+productID+`"]}`), http.StatusConflict)

	// 出品者が削除しても購入履歴はスナップショットで残る
	mustStatus(t, s.do(http.MethodDelete, "/api/products/"+productID, seller, ""), http.StatusOK)
	w = s.do(http.MethodGet, "/api/purchases", buyer, "")
	mustStatus(t, w, http.StatusOK)
	history := decodeBody[struct {
		Purchases []struct {
			Title          string `json:"title"`
			ProductDeleted bool   `json:"product_deleted"`
		} `json:"purchases"`
	}](t, w.Body)
	if len(history.Purchases) != 1 || !history.Purchases[0].ProductDeleted || history.Purchases[0].Title != "Desk Lamp" {
		t.Errorf("history = %+v", history.Purchases)
	}
}

func TestRouter_UpdateProduct_NonOwnerForbiddenRegardlessOfBody(t *testing.T) {
	s := newTestServer(t)
	seller := s.signup("seller@example.com", "seller")
	buyer := s.signup("buyer@example.com", "buyer")

	w := s.do(http.MethodPost, "/api/products", seller,
		`{"title":"Desk Lamp","description":"Brass lamp","category":"Home & Garden","price":25}`)
	mustStatus(t, w, http.StatusCreated)
	productID := decodeBody[productResponse](t, w.Body).Product.ID

	tests := []struct {
		name string
		body string
	}{
		{name: "真偽値の価格", body: `{"title":"T","description":"d","category":"Books","price":true}`},
		{name: "数値のタイトル", body: `{"title":1}`},
		{name: "壊れたJSON", body: `{invalid`},
		{name: "空オブジェクト", body: `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPut, "/api/products/"+productID, buyer, tt.body)
			mustStatus(t, w, http.StatusForbidden)
		})
	}

	// 出品者本人の不正なボディは400
	w = s.do(http.MethodPut, "/api/products/"+productID, seller, `{"title":"T","description":"d","category":"Books","price":true}`)
	mustStatus(t, w, http.StatusBadRequest)
	if msg := errorBody(t, w.Body); msg != msgInvalidPrice {
		t.Errorf("error = %q, want %q", msg, msgInvalidPrice)
	}
	w = s.do(http.MethodPut, "/api/products/"+productID, seller, `{"title":1}`)
	mustStatus(t, w, http.StatusBadRequest)
	if msg := errorBody(t, w.Body); msg != msgInvalidBody {
		t.Errorf("error = %q, want %q", msg, msgInvalidBody)
	}
}

func TestRouter_DevToken(t *testing.T) {
	s := newTestServer(t)
	token := s.signup("dana@example.com", "dana")
	mustStatus(t, s.do(http.MethodGet, "/api/profile", token, ""), http.StatusOK)

	w := s.do(http.MethodPost, "/api/dev/token", testAnonKey, `{"email":"dana@example.com","password":"wrong"}`)
	mustStatus(t, w, http.StatusUnauthorized)
	if msg := errorBody(t, w.Body); msg != "Invalid email or password" {
		t.Errorf("error = %q", msg)
	}
}

func TestRouter_DevTokenNotMountedWithoutDevProvider(t *testing.T) {
	deps := &RouterDeps{
		BasePath:      "/api",
		TokenResolver: auth.NewDevGateway("test-secret", time.Hour),
		RateLimiter:   middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig()),
	}
	t.Cleanup(deps.RateLimiter.Stop)
	h := NewRouter(deps)

	req := httptest.NewRequest(http.MethodPost, "/api/dev/token", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRouter_SignupRejectsDisplayNameEmail(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/signup", testAnonKey,
		`{"email":"Bob <bob@example.com>","password":"secret1","username":"bob"}`)
	mustStatus(t, w, http.StatusBadRequest)
	if msg := errorBody(t, w.Body); msg != "Invalid email address" {
		t.Errorf("error = %q", msg)
	}
}

func TestRouter_ProfileAndDemoSignup(t *testing.T) {
	s := newTestServer(t)
	token := s.signup("demo@example.com", "demo_user_42")

	w := s.do(http.MethodGet, "/api/profile", token, "")
	mustStatus(t, w, http.StatusOK)

	w = s.do(http.MethodPut, "/api/profile", token, `{"username":"renamed"}`)
	mustStatus(t, w, http.StatusOK)
	if resp := decodeBody[profileResponse](t, w.Body); resp.Profile.Username != "renamed" {
		t.Errorf("username = %q, want renamed", resp.Profile.Username)
	}

	// デモユーザーの登録でデモ商品が作成される
	w = s.do(http.MethodGet, "/api/products", token, "")
	products := decodeBody[productsResponse](t, w.Body)
	if len(products.Products) != 3 {
		t.Errorf("demo products = %d, want 3", len(products.Products))
	}
}

func TestRouter_UploadImage(t *testing.T) {
	s := newTestServer(t)
	token := s.signup("u@example.com", "uploader")

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	req := newMultipartRequest(t, "file", "a.png", "image/png", png)
	req.URL.Path = "/api/upload-image"
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	mustStatus(t, w, http.StatusOK)
	img := decodeBody[struct {
		ImageURL  string `json:"imageUrl"`
		ImagePath string `json:"imagePath"`
	}](t, w.Body)
	if !strings.HasSuffix(img.ImagePath, ".png") || !strings.HasPrefix(img.ImageURL, "http://blobs.local/") {
		t.Errorf("upload = %+v", img)
	}
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodGet, "/api/health", "", "")

	w := s.do(http.MethodGet, "/metrics", "", "")
	mustStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), "ecofinds_http_status_total") {
		t.Errorf("metrics output missing http status counter")
	}
}
