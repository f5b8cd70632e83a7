package imagestore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/ecofinds/internal/metrics"
	"github.com/hitoshi/ecofinds/internal/model"
)

// allowedTypes は受け付ける画像のContent-Typeと保存時の拡張子。
var allowedTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

// Config はアップロードサービスの設定。
type Config struct {
	MaxBytes int64
	URLTTL   time.Duration
}

// Service は画像の検証と保存を行う。
type Service struct {
	blobs   BlobStore
	config  Config
	metrics metrics.MetricsCollector
	newID   func() string
}

// NewService はServiceを生成する。mcがnilの場合はメトリクスを記録しない。
func NewService(blobs BlobStore, config Config, mc metrics.MetricsCollector) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		blobs:   blobs,
		config:  config,
		metrics: mc,
		newID:   func() string { return uuid.New().String() },
	}
}

// Upload は画像を検証して<userID>/<uuid>.<ext>に保存し、署名付きURLを返す。
// 申告されたContent-Typeと先頭バイトから判定した型の両方が許可リストに含まれる必要がある。
func (s *Service) Upload(ctx context.Context, userID, declaredType string, r io.Reader) (*model.UploadedImage, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.config.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("画像の読み込みに失敗しました: %w", err)
	}
	if len(data) == 0 {
		return nil, model.NewValidationError("No file provided")
	}
	if int64(len(data)) > s.config.MaxBytes {
		return nil, model.NewValidationError("File too large. Maximum size is " + formatSize(s.config.MaxBytes))
	}

	contentType, ok := detectType(declaredType, data)
	if !ok {
		return nil, model.NewValidationError("Invalid file type. Only JPEG, PNG, and WebP are allowed")
	}

	path := fmt.Sprintf("%s/%s.%s", userID, s.newID(), allowedTypes[contentType])
	if err := s.blobs.Put(ctx, path, contentType, data); err != nil {
		return nil, fmt.Errorf("画像の保存に失敗しました: %w", err)
	}

	signed, err := s.blobs.SignedURL(ctx, path, s.config.URLTTL)
	if err != nil {
		return nil, fmt.Errorf("署名付きURLの発行に失敗しました: %w", err)
	}

	s.metrics.RecordImageUpload()
	slog.Info("image uploaded",
		slog.String("user_id", userID),
		slog.String("path", path),
		slog.Int("bytes", len(data)),
	)

	return &model.UploadedImage{ImageURL: signed, ImagePath: path}, nil
}

// detectType は申告型と実データの型が一致して許可されている場合にその型を返す。
func detectType(declared string, data []byte) (string, bool) {
	mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(declared))
	if err != nil {
		return "", false
	}
	mediaType = strings.ToLower(mediaType)
	if mediaType == "image/jpg" {
		mediaType = "image/jpeg"
	}
	if _, ok := allowedTypes[mediaType]; !ok {
		return "", false
	}

	sniffed := http.DetectContentType(data[:min(len(data), 512)])
	if sniffed != mediaType {
		return "", false
	}
	return mediaType, true
}

// formatSize はエラーメッセージ用にバイト数を表示する。
func formatSize(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	return fmt.Sprintf("%d bytes", n)
}
