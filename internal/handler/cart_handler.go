package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/ecofinds/internal/model"
)

// CartServiceInterface はカートハンドラーが必要とするサービスインターフェース。
type CartServiceInterface interface {
	Add(ctx context.Context, actor, productID string) (*model.CartEntry, error)
	Remove(ctx context.Context, actor, productID string) error
	List(ctx context.Context, actor string) ([]*model.CartItem, error)
}

// CartHandler はカート操作のHTTPハンドラー。
type CartHandler struct {
	service CartServiceInterface
}

// NewCartHandler はCartHandlerを生成する。
func NewCartHandler(service CartServiceInterface) *CartHandler {
	return &CartHandler{service: service}
}

type addToCartRequest struct {
	ProductID string `json:"productId"`
}

type addToCartResponse struct {
	Message  string           `json:"message"`
	CartItem *model.CartEntry `json:"cartItem"`
}

type cartItemsResponse struct {
	CartItems []*model.CartItem `json:"cartItems"`
}

// AddToCart は商品をカートに追加する。
// POST /cart
func (h *CartHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req addToCartRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.service.Add(r.Context(), userID, req.ProductID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, addToCartResponse{Message: "Product added to cart", CartItem: entry})
}

// GetCart はカートの内容を商品情報付きで返す。
// GET /cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	items, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, cartItemsResponse{CartItems: items})
}

// RemoveFromCart はカートから商品を取り除く。
// DELETE /cart/{productId}
func (h *CartHandler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Remove(r.Context(), userID, chi.URLParam(r, "productId")); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Product removed from cart"})
}
