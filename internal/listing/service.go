// Package listing は商品の出品・編集・削除・検索のドメインロジックを提供する。
package listing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hitoshi/ecofinds/internal/metrics"
	"github.com/hitoshi/ecofinds/internal/model"
	"github.com/hitoshi/ecofinds/internal/repository"
	"github.com/hitoshi/ecofinds/internal/security"
)

const (
	msgFieldsRequired = "All product fields are required"
	msgInvalidPrice   = "Price must be a positive number"
	msgInvalidCat     = "Invalid category"
	msgInvalidImage   = "Invalid image reference"
	msgNotOwnerEdit   = "Not authorized to edit this product"
	msgNotOwnerDelete = "Not authorized to delete this product"
)

// Input は商品の作成・更新の入力。
// Priceはクライアントが送った数値または数値文字列をそのまま保持する。
// 画像フィールドはキー省略時に既存値を保持する。
type Input struct {
	Title       string
	Description string
	Category    string
	Price       string
	ImageURL    model.OptionalString
	ImagePath   model.OptionalString

	// Malformed はボディの解読に失敗した場合の利用者向けメッセージ。
	// 更新では所有者確認の後に検証エラーとして返す。
	Malformed string
}

// Service は商品管理のサービス層。
type Service struct {
	repo      repository.ListingRepository
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	now       func() time.Time
	newID     func() string
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.ListingRepository,
	sanitizer security.TextSanitizer,
	mc metrics.MetricsCollector,
) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		metrics:   mc,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// validated は検証済みの必須フィールド。
type validated struct {
	title       string
	description string
	category    string
	price       decimal.Decimal
}

func (s *Service) validate(in Input) (*validated, error) {
	if in.Malformed != "" {
		return nil, model.NewValidationError(in.Malformed)
	}
	v := &validated{
		title:       s.sanitizer.Clean(in.Title),
		description: s.sanitizer.Clean(in.Description),
		category:    strings.TrimSpace(in.Category),
	}
	priceText := strings.TrimSpace(in.Price)

	if v.title == "" || v.description == "" || v.category == "" || priceText == "" {
		return nil, model.NewValidationError(msgFieldsRequired)
	}

	price, err := decimal.NewFromString(priceText)
	if err != nil || !price.IsPositive() {
		return nil, model.NewValidationError(msgInvalidPrice)
	}
	v.price = price

	if !model.IsValidCategory(v.category) {
		return nil, model.NewValidationError(msgInvalidCat)
	}
	return v, nil
}

// applyImage は指定された画像フィールドだけを商品に反映する。
// 画像パスはアップロード時に払い出した <userID>/ 配下のみ受け付ける。
func (s *Service) applyImage(actor string, l *model.Listing, in Input) error {
	if in.ImageURL.Set {
		if in.ImageURL.Value == nil || strings.TrimSpace(*in.ImageURL.Value) == "" {
			l.ImageURL = nil
		} else {
			u, ok := s.sanitizer.CleanURL(*in.ImageURL.Value)
			if !ok {
				return model.NewValidationError(msgInvalidImage)
			}
			l.ImageURL = &u
		}
	}
	if in.ImagePath.Set {
		if in.ImagePath.Value == nil || strings.TrimSpace(*in.ImagePath.Value) == "" {
			l.ImagePath = nil
		} else {
			p := strings.TrimSpace(*in.ImagePath.Value)
			if !strings.HasPrefix(p, actor+"/") || strings.Contains(p, "..") {
				return model.NewValidationError(msgInvalidImage)
			}
			l.ImagePath = &p
		}
	}
	return nil
}

// Create はactorを出品者として商品を作成する。
func (s *Service) Create(ctx context.Context, actor string, in Input) (*model.Listing, error) {
	v, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	l := &model.Listing{
		ID:               s.newID(),
		Title:            v.title,
		Description:      v.description,
		Category:         v.category,
		Price:            v.price,
		SellerID:         actor,
		CreatedAt:        s.now().UTC(),
		ImagePlaceholder: model.DefaultPlaceholder,
		Status:           model.ListingStatusActive,
	}
	if err := s.applyImage(actor, l, in); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, l); err != nil {
		return nil, fmt.Errorf("商品の作成に失敗しました: %w", err)
	}

	s.metrics.RecordListingCreated()
	slog.Info("listing created",
		slog.String("listing_id", l.ID),
		slog.String("seller_id", actor),
		slog.String("category", l.Category),
	)
	return l, nil
}

// Update は出品者による商品の更新を行う。
// ID・出品者・作成日時・販売状態は変更しない。
// チェックアウトと同時に実行されても売却状態を上書きしないよう、単一キーCASで書き戻す。
func (s *Service) Update(ctx context.Context, actor, id string, in Input) (*model.Listing, error) {
	v, verr := s.validate(in)

	l, err := s.repo.Modify(ctx, id, func(l *model.Listing) error {
		// 所有者でなければ入力内容に関わらず拒否する
		if l.SellerID != actor {
			return model.NewAuthorizationError(msgNotOwnerEdit)
		}
		if verr != nil {
			return verr
		}
		l.Title = v.title
		l.Description = v.description
		l.Category = v.category
		l.Price = v.price
		if err := s.applyImage(actor, l, in); err != nil {
			return err
		}
		now := s.now().UTC()
		l.UpdatedAt = &now
		return nil
	})

	var apiErr *model.APIError
	switch {
	case errors.As(err, &apiErr):
		return nil, apiErr
	case err != nil:
		return nil, fmt.Errorf("商品の更新に失敗しました: %w", err)
	case l == nil:
		return nil, model.NewProductNotFoundError()
	}
	return l, nil
}

// Delete は出品者による商品の削除を行う。
// カートや購入記録は連鎖削除しない。
func (s *Service) Delete(ctx context.Context, actor, id string) error {
	l, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	if l == nil {
		return model.NewProductNotFoundError()
	}
	if l.SellerID != actor {
		return model.NewAuthorizationError(msgNotOwnerDelete)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("商品の削除に失敗しました: %w", err)
	}

	slog.Info("listing deleted",
		slog.String("listing_id", id),
		slog.String("seller_id", actor),
	)
	return nil
}

// Get は商品を1件返す。売却済みの商品も返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Listing, error) {
	l, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	if l == nil {
		return nil, model.NewProductNotFoundError()
	}
	return l, nil
}

// List は販売中の商品を新しい順に返す。
// カテゴリは完全一致、検索語はタイトルと説明に対する大文字小文字を区別しない部分一致。
func (s *Service) List(ctx context.Context, filter model.ListingFilter) ([]*model.Listing, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("商品一覧の取得に失敗しました: %w", err)
	}

	category := strings.TrimSpace(filter.Category)
	if category == model.CategoryAll {
		category = ""
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	results := make([]*model.Listing, 0, len(all))
	for _, l := range all {
		if l.IsSold() {
			continue
		}
		if category != "" && l.Category != category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(l.Title), search) &&
			!strings.Contains(strings.ToLower(l.Description), search) {
			continue
		}
		results = append(results, l)
	}

	sortNewestFirst(results)
	return results, nil
}

// ListByOwner はactorの出品を売却済みも含めて新しい順に返す。
func (s *Service) ListByOwner(ctx context.Context, actor string) ([]*model.Listing, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("商品一覧の取得に失敗しました: %w", err)
	}

	results := make([]*model.Listing, 0)
	for _, l := range all {
		if l.SellerID == actor {
			results = append(results, l)
		}
	}

	sortNewestFirst(results)
	return results, nil
}

// sortNewestFirst は作成日時の降順に並べる。同時刻はID昇順。
func sortNewestFirst(listings []*model.Listing) {
	sort.SliceStable(listings, func(i, j int) bool {
		if !listings[i].CreatedAt.Equal(listings[j].CreatedAt) {
			return listings[i].CreatedAt.After(listings[j].CreatedAt)
		}
		return listings[i].ID < listings[j].ID
	})
}
