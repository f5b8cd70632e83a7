package repository

import (
	"context"
	"encoding/json"
	"fmt"
)

// キー体系。値はすべてJSON。
const (
	productPrefix  = "product:"
	cartPrefix     = "cart:"
	purchasePrefix = "purchase:"
	userPrefix     = "user:"
	checkoutPrefix = "checkout:"
)

func productKey(id string) string { return productPrefix + id }

func cartUserPrefix(userID string) string { return cartPrefix + userID + ":" }

func cartKey(userID, productID string) string { return cartUserPrefix(userID) + productID }

func purchaseUserPrefix(userID string) string { return purchasePrefix + userID + ":" }

func purchaseKey(userID, purchaseID string) string { return purchaseUserPrefix(userID) + purchaseID }

func userKey(id string) string { return userPrefix + id }

func checkoutKey(id string) string { return checkoutPrefix + id }

// getJSON はキーの値をdstにデコードする。キーが存在しない場合はfalseを返す。
func getJSON(ctx context.Context, store EntityStore, key string, dst any) (bool, error) {
	raw, err := store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// setJSON はvをJSONにエンコードしてキーに書き込む。
func setJSON(ctx context.Context, store EntityStore, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return store.Set(ctx, key, raw)
}

// scanJSON はprefix配下の全値をデコードして返す。
func scanJSON[T any](ctx context.Context, store EntityStore, prefix string) ([]*T, error) {
	entries, err := store.ScanPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	results := make([]*T, 0, len(entries))
	for _, e := range entries {
		v := new(T)
		if err := json.Unmarshal(e.Value, v); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", e.Key, err)
		}
		results = append(results, v)
	}
	return results, nil
}
