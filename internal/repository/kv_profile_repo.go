package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/ecofinds/internal/model"
)

// KVProfileRepo はEntityStore上のプロフィールリポジトリ。
type KVProfileRepo struct {
	store EntityStore
}

// NewKVProfileRepo はKVProfileRepoを生成する。
func NewKVProfileRepo(store EntityStore) *KVProfileRepo {
	return &KVProfileRepo{store: store}
}

// FindByID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
func (r *KVProfileRepo) FindByID(ctx context.Context, userID string) (*model.Profile, error) {
	var p model.Profile
	ok, err := getJSON(ctx, r.store, userKey(userID), &p)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// Save はプロフィールを作成または上書きする。
func (r *KVProfileRepo) Save(ctx context.Context, profile *model.Profile) error {
	if err := setJSON(ctx, r.store, userKey(profile.ID), profile); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProfileRepository = (*KVProfileRepo)(nil)
