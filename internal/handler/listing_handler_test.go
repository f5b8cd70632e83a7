package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/ecofinds/internal/listing"
	"github.com/hitoshi/ecofinds/internal/model"
)

// --- POST /products テスト ---

func TestListingHandler_CreateProduct_Success(t *testing.T) {
	var gotActor string
	var gotInput listing.Input
	svc := &mockListingService{
		createFn: func(ctx context.Context, actor string, in listing.Input) (*model.Listing, error) {
			gotActor = actor
			gotInput = in
			return &model.Listing{ID: "p1", Title: in.Title, SellerID: actor}, nil
		},
	}
	h := NewListingHandler(svc)

	body := `{"title":"Lamp","description":"Brass","category":"Home & Garden","price":25.5,"imageUrl":"https://img/x","imagePath":"u1/x.png"}`
	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body))
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.CreateProduct(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if gotActor != "user-1" {
		t.Errorf("actor = %q, want user-1", gotActor)
	}
	if gotInput.Price != "25.5" {
		t.Errorf("Price = %q, want 25.5", gotInput.Price)
	}
	if !gotInput.ImageURL.Set || gotInput.ImageURL.Value == nil || *gotInput.ImageURL.Value != "https://img/x" {
		t.Errorf("ImageURL = %+v, want set", gotInput.ImageURL)
	}
	resp := decodeBody[struct {
		Product model.Listing `json:"product"`
	}](t, w.Body)
	if resp.Product.ID != "p1" || resp.Product.Title != "Lamp" {
		t.Errorf("product = %+v", resp.Product)
	}
}

func TestListingHandler_CreateProduct_PriceForms(t *testing.T) {
	tests := []struct {
		name          string
		price         string
		wantPrice     string
		wantMalformed string
	}{
		{name: "数値", price: `12`, wantPrice: "12"},
		{name: "小数", price: `0.99`, wantPrice: "0.99"},
		{name: "文字列", price: `"45.00"`, wantPrice: "45.00"},
		{name: "null", price: `null`, wantPrice: ""},
		{name: "真偽値は不正", price: `true`, wantMalformed: msgInvalidPrice},
		{name: "オブジェクトは不正", price: `{}`, wantMalformed: msgInvalidPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got listing.Input
			svc := &mockListingService{
				createFn: func(ctx context.Context, actor string, in listing.Input) (*model.Listing, error) {
					got = in
					return &model.Listing{ID: "p1"}, nil
				},
			}
			h := NewListingHandler(svc)

			req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(`{"title":"x","price":`+tt.price+`}`))
			req = withUserID(req, "user-1")
			w := httptest.NewRecorder()

			h.CreateProduct(w, req)

			if got.Malformed != tt.wantMalformed {
				t.Errorf("Malformed = %q, want %q", got.Malformed, tt.wantMalformed)
			}
			if tt.wantMalformed == "" && got.Price != tt.wantPrice {
				t.Errorf("Price = %q, want %q", got.Price, tt.wantPrice)
			}
		})
	}
}

func TestListingHandler_CreateProduct_InvalidJSON(t *testing.T) {
	var got listing.Input
	svc := &mockListingService{
		createFn: func(ctx context.Context, actor string, in listing.Input) (*model.Listing, error) {
			got = in
			return nil, model.NewValidationError(in.Malformed)
		},
	}
	h := NewListingHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader("{invalid"))
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.CreateProduct(w, req)

	if got.Malformed != msgInvalidBody {
		t.Errorf("Malformed = %q, want %q", got.Malformed, msgInvalidBody)
	}
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if msg := errorBody(t, w.Body); msg != msgInvalidBody {
		t.Errorf("error = %q, want %q", msg, msgInvalidBody)
	}
}

func TestListingHandler_CreateProduct_NoUserID_ReturnsUnauthorized(t *testing.T) {
	h := NewListingHandler(&mockListingService{})

	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(`{}`))
	// ユーザーIDを注入しない
	w := httptest.NewRecorder()

	h.CreateProduct(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestListingHandler_CreateProduct_ValidationError(t *testing.T) {
	svc := &mockListingService{
		createFn: func(ctx context.Context, actor string, in listing.Input) (*model.Listing, error) {
			return nil, model.NewValidationError("All product fields are required")
		},
	}
	h := NewListingHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(`{}`))
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()

	h.CreateProduct(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if msg := errorBody(t, w.Body); msg != "All product fields are required" {
		t.Errorf("error = %q", msg)
	}
}

// --- GET /products テスト ---

func TestListingHandler_ListProducts_PassesFilter(t *testing.T) {
	var got model.ListingFilter
	svc := &mockListingService{
		listFn: func(ctx context.Context, filter model.ListingFilter) ([]*model.Listing, error) {
			got = filter
			return []*model.Listing{{ID: "a"}, {ID: "b"}}, nil
		},
	}
	h := NewListingHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/products?category=Electronics&search=phone", nil)
	w := httptest.NewRecorder()

	h.ListProducts(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got.Category != "Electronics" || got.Search != "phone" {
		t.Errorf("filter = %+v", got)
	}
	resp := decodeBody[struct {
		Products []model.Listing `json:"products"`
	}](t, w.Body)
	if len(resp.Products) != 2 || resp.Products[0].ID != "a" {
		t.Errorf("products = %+v", resp.Products)
	}
}

func TestListingHandler_ListProducts_EmptyIsArray(t *testing.T) {
	h := NewListingHandler(&mockListingService{})

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	w := httptest.NewRecorder()

	h.ListProducts(w, req)

	if got := strings.TrimSpace(w.Body.String()); got != `{"products":[]}` {
		t.Errorf("body = %s, want empty array", got)
	}
}

func TestListingHandler_ListMyProducts(t *testing.T) {
	svc := &mockListingService{
		listByOwnerFn: func(ctx context.Context, actor string) ([]*model.Listing, error) {
			if actor != "user-1" {
				t.Errorf("actor = %q, want user-1", actor)
			}
			return []*model.Listing{{ID: "mine"}}, nil
		},
	}
	h := NewListingHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/my-products", nil), "user-1")
	w := httptest.NewRecorder()

	h.ListMyProducts(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	resp := decodeBody[struct {
		Products []model.Listing `json:"products"`
	}](t, w.Body)
	if len(resp.Products) != 1 || resp.Products[0].ID != "mine" {
		t.Errorf("products = %+v", resp.Products)
	}
}

// --- GET /products/{id} テスト ---

func TestListingHandler_GetProduct(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "存在する", wantCode: http.StatusOK},
		{name: "存在しない", err: model.NewProductNotFoundError(), wantCode: http.StatusNotFound},
		{name: "ストア障害", err: errors.New("connection reset"), wantCode: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockListingService{
				getFn: func(ctx context.Context, id string) (*model.Listing, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					return &model.Listing{ID: id}, nil
				},
			}
			h := NewListingHandler(svc)

			req := httptest.NewRequest(http.MethodGet, "/products/p1", nil)
			req = withChiURLParam(req, "id", "p1")
			w := httptest.NewRecorder()

			h.GetProduct(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

// --- PUT /products/{id} テスト ---

func TestListingHandler_UpdateProduct_PassesIDAndOmittedImage(t *testing.T) {
	var gotID string
	var gotInput listing.Input
	svc := &mockListingService{
		updateFn: func(ctx context.Context, actor, id string, in listing.Input) (*model.Listing, error) {
			gotID = id
			gotInput = in
			return &model.Listing{ID: id}, nil
		},
	}
	h := NewListingHandler(svc)

	body := `{"title":"Lamp","description":"Brass","category":"Home & Garden","price":"30","imagePath":null}`
	req := httptest.NewRequest(http.MethodPut, "/products/p1", strings.NewReader(body))
	req = withUserID(req, "user-1")
	req = withChiURLParam(req, "id", "p1")
	w := httptest.NewRecorder()

	h.UpdateProduct(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotID != "p1" {
		t.Errorf("id = %q, want p1", gotID)
	}
	// imageUrl は省略、imagePath は null 指定
	if gotInput.ImageURL.Set {
		t.Error("ImageURL should be unset when key is omitted")
	}
	if !gotInput.ImagePath.Set || gotInput.ImagePath.Value != nil {
		t.Errorf("ImagePath = %+v, want set to null", gotInput.ImagePath)
	}
}

func TestListingHandler_UpdateProduct_NotOwner(t *testing.T) {
	svc := &mockListingService{
		updateFn: func(ctx context.Context, actor, id string, in listing.Input) (*model.Listing, error) {
			return nil, model.NewAuthorizationError("Not authorized to edit this product")
		},
	}
	h := NewListingHandler(svc)

	req := httptest.NewRequest(http.MethodPut, "/products/p1", strings.NewReader(`{}`))
	req = withUserID(req, "intruder")
	req = withChiURLParam(req, "id", "p1")
	w := httptest.NewRecorder()

	h.UpdateProduct(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

// --- DELETE /products/{id} テスト ---

func TestListingHandler_DeleteProduct(t *testing.T) {
	deleted := ""
	svc := &mockListingService{
		deleteFn: func(ctx context.Context, actor, id string) error {
			deleted = id
			return nil
		},
	}
	h := NewListingHandler(svc)

	req := httptest.NewRequest(http.MethodDelete, "/products/p1", nil)
	req = withUserID(req, "user-1")
	req = withChiURLParam(req, "id", "p1")
	w := httptest.NewRecorder()

	h.DeleteProduct(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if deleted != "p1" {
		t.Errorf("deleted = %q, want p1", deleted)
	}
	resp := decodeBody[messageResponse](t, w.Body)
	if resp.Message != "Product deleted successfully" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestRawPrice(t *testing.T) {
	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{``, "", true},
		{`null`, "", true},
		{` 7 `, "7", true},
		{`1e2`, "1e2", true},
		{`"abc"`, "abc", true},
		{`[1]`, "", false},
	}
	for _, tt := range tests {
		got, ok := rawPrice([]byte(tt.raw))
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("rawPrice(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}
