package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/ecofinds/internal/listing"
	"github.com/hitoshi/ecofinds/internal/model"
)

const msgInvalidPrice = "Price must be a positive number"

// ListingServiceInterface は商品ハンドラーが必要とするサービスインターフェース。
type ListingServiceInterface interface {
	Create(ctx context.Context, actor string, in listing.Input) (*model.Listing, error)
	Update(ctx context.Context, actor, id string, in listing.Input) (*model.Listing, error)
	Delete(ctx context.Context, actor, id string) error
	Get(ctx context.Context, id string) (*model.Listing, error)
	List(ctx context.Context, filter model.ListingFilter) ([]*model.Listing, error)
	ListByOwner(ctx context.Context, actor string) ([]*model.Listing, error)
}

// ListingHandler は商品管理のHTTPハンドラー。
type ListingHandler struct {
	service ListingServiceInterface
}

// NewListingHandler はListingHandlerを生成する。
func NewListingHandler(service ListingServiceInterface) *ListingHandler {
	return &ListingHandler{service: service}
}

// listingRequest は商品作成・更新リクエストのボディ。
// priceは数値と数値文字列の両方を受け付ける。
type listingRequest struct {
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Category    string               `json:"category"`
	Price       json.RawMessage      `json:"price"`
	ImageURL    model.OptionalString `json:"imageUrl"`
	ImagePath   model.OptionalString `json:"imagePath"`
}

func (req *listingRequest) toInput() listing.Input {
	price, ok := rawPrice(req.Price)
	if !ok {
		return listing.Input{Malformed: msgInvalidPrice}
	}
	return listing.Input{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Price:       price,
		ImageURL:    req.ImageURL,
		ImagePath:   req.ImagePath,
	}
}

// rawPrice はJSONのprice値を文字列表現に変換する。
// 未指定とnullは空文字列、文字列はその中身、数値はリテラルのまま返す。
func rawPrice(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", true
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", false
	}
	return n.String(), true
}

type productResponse struct {
	Product *model.Listing `json:"product"`
}

type productsResponse struct {
	Products []*model.Listing `json:"products"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// CreateProduct は商品を出品する。
// POST /products
func (h *ListingHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	l, err := h.service.Create(r.Context(), userID, decodeInput(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, productResponse{Product: l})
}

// ListProducts は販売中の商品一覧を返す。
// GET /products?category=&search=
func (h *ListingHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	products, err := h.service.List(r.Context(), model.ListingFilter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, productsResponse{Products: products})
}

// ListMyProducts は自分の出品一覧を返す。
// GET /my-products
func (h *ListingHandler) ListMyProducts(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	products, err := h.service.ListByOwner(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, productsResponse{Products: products})
}

// GetProduct は商品詳細を返す。
// GET /products/{id}
func (h *ListingHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	l, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, productResponse{Product: l})
}

// UpdateProduct は出品者による商品の更新を処理する。
// PUT /products/{id}
func (h *ListingHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	l, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), decodeInput(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, productResponse{Product: l})
}

// DeleteProduct は出品者による商品の削除を処理する。
// DELETE /products/{id}
func (h *ListingHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Product deleted successfully"})
}

// decodeInput はボディを商品入力に変換する。
// 解読に失敗してもここではレスポンスを書かず、Input.Malformedとしてサービスに渡す。
// 更新では所有者確認がボディの内容より先に行われる。
func decodeInput(r *http.Request) listing.Input {
	var req listingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return listing.Input{Malformed: msgInvalidBody}
	}
	return req.toInput()
}
