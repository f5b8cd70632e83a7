package model

// UploadedImage は画像アップロードの結果。
// ImagePathは商品のimage_pathとして保存され、署名付きURLの再発行に使う。
type UploadedImage struct {
	ImageURL  string `json:"imageUrl"`
	ImagePath string `json:"imagePath"`
}
