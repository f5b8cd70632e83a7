package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hitoshi/ecofinds/internal/model"
)

// modifyMaxAttempts は商品更新CASの最大試行回数。
// 競合相手は同一商品の編集かチェックアウトのみ。
const modifyMaxAttempts = 5

// KVListingRepo はEntityStore上の商品リポジトリ。
type KVListingRepo struct {
	store EntityStore
}

// NewKVListingRepo はKVListingRepoを生成する。
func NewKVListingRepo(store EntityStore) *KVListingRepo {
	return &KVListingRepo{store: store}
}

// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
func (r *KVListingRepo) FindByID(ctx context.Context, id string) (*model.Listing, error) {
	var l model.Listing
	ok, err := getJSON(ctx, r.store, productKey(id), &l)
	if err != nil {
		return nil, fmt.Errorf("failed to find listing: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &l, nil
}

// Save は商品を作成または上書きする。
func (r *KVListingRepo) Save(ctx context.Context, listing *model.Listing) error {
	if err := setJSON(ctx, r.store, productKey(listing.ID), listing); err != nil {
		return fmt.Errorf("failed to save listing: %w", err)
	}
	return nil
}

// Delete は商品を削除する。
func (r *KVListingRepo) Delete(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, productKey(id)); err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	return nil
}

// ListAll は全商品を返す。
func (r *KVListingRepo) ListAll(ctx context.Context) ([]*model.Listing, error) {
	listings, err := scanJSON[model.Listing](ctx, r.store, productPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	return listings, nil
}

// Modify は商品を読み出してfnで変更し、CASで書き戻す。
// 読み出した生の値をそのまま比較値に使うため、間に入った書き込みはCAS失敗として検出され、
// 最新の値に対してfnを再適用する。商品が存在しない場合はnilを返す。
// fnがエラーを返した場合は書き込まずに、その時点の商品とエラーを返す。
func (r *KVListingRepo) Modify(ctx context.Context, id string, fn func(*model.Listing) error) (*model.Listing, error) {
	key := productKey(id)
	for attempt := 0; attempt < modifyMaxAttempts; attempt++ {
		raw, err := r.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to read listing: %w", err)
		}
		if raw == nil {
			return nil, nil
		}

		var l model.Listing
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", key, err)
		}
		if err := fn(&l); err != nil {
			return &l, err
		}

		next, err := json.Marshal(&l)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", key, err)
		}
		swapped, err := r.store.CompareAndSwap(ctx, key, raw, next)
		if err != nil {
			return nil, fmt.Errorf("failed to write listing: %w", err)
		}
		if swapped {
			return &l, nil
		}
	}
	return nil, ErrContention
}

// errSoldToSamePurchase は同じ購入IDで売却済みのとき書き込みを省略するための内部値。
var errSoldToSamePurchase = errors.New("already sold to this purchase")

// MarkSold は商品を売却済みに更新する。
// 同じpurchaseIDで売却済みなら成功として扱い、別の購入で売却済みならErrAlreadySoldを返す。
func (r *KVListingRepo) MarkSold(ctx context.Context, id, purchaseID string) (*model.Listing, error) {
	l, err := r.Modify(ctx, id, func(l *model.Listing) error {
		if l.IsSold() {
			if l.SoldPurchaseID == purchaseID {
				return errSoldToSamePurchase
			}
			return ErrAlreadySold
		}
		l.Status = model.ListingStatusSold
		l.SoldPurchaseID = purchaseID
		return nil
	})
	if errors.Is(err, errSoldToSamePurchase) {
		return l, nil
	}
	return l, err
}

// compile-time interface check
var _ ListingRepository = (*KVListingRepo)(nil)
