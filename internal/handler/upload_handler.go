package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/hitoshi/ecofinds/internal/middleware"
	"github.com/hitoshi/ecofinds/internal/model"
)

const (
	uploadFieldName = "file"
	msgNoFile       = "No file provided"
)

// ImageServiceInterface は画像アップロードのサービスインターフェース。
type ImageServiceInterface interface {
	Upload(ctx context.Context, userID, declaredType string, r io.Reader) (*model.UploadedImage, error)
}

// UploadHandler は商品画像アップロードのHTTPハンドラー。
type UploadHandler struct {
	service ImageServiceInterface
}

// NewUploadHandler はUploadHandlerを生成する。
func NewUploadHandler(service ImageServiceInterface) *UploadHandler {
	return &UploadHandler{service: service}
}

// UploadImage はmultipartの file フィールドを画像として保存する。
// パートはメモリに展開せずサービスへストリームで渡す。
// POST /upload-image
func (h *UploadHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	mr, err := r.MultipartReader()
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, msgNoFile)
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			middleware.WriteError(w, http.StatusBadRequest, msgNoFile)
			return
		}
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, msgInvalidBody)
			return
		}
		if part.FormName() != uploadFieldName || part.FileName() == "" {
			part.Close()
			continue
		}

		img, err := h.service.Upload(r.Context(), userID, part.Header.Get("Content-Type"), part)
		part.Close()
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, img)
		return
	}
}
