package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/ecofinds/internal/checkout"
	"github.com/hitoshi/ecofinds/internal/model"
)

// CheckoutServiceInterface はチェックアウトと購入履歴のサービスインターフェース。
type CheckoutServiceInterface interface {
	Checkout(ctx context.Context, actor string, productIDs []string) (*checkout.Result, error)
	ListPurchases(ctx context.Context, actor string) ([]*model.PurchaseHistoryEntry, error)
}

// CheckoutHandler は購入関連のHTTPハンドラー。
type CheckoutHandler struct {
	service CheckoutServiceInterface
}

// NewCheckoutHandler はCheckoutHandlerを生成する。
func NewCheckoutHandler(service CheckoutServiceInterface) *CheckoutHandler {
	return &CheckoutHandler{service: service}
}

type checkoutRequest struct {
	ProductIDs []string `json:"productIds"`
}

type purchaseHistoryResponse struct {
	Purchases []*model.PurchaseHistoryEntry `json:"purchases"`
}

// Checkout は指定商品をまとめて購入する。
// POST /purchase
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req checkoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Checkout(r.Context(), userID, req.ProductIDs)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ListPurchases は購入履歴を新しい順に返す。
// GET /purchases
func (h *CheckoutHandler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	purchases, err := h.service.ListPurchases(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, purchaseHistoryResponse{Purchases: purchases})
}
