package model

// CategoryAll はカテゴリ絞り込みなしを表すクエリ値。
const CategoryAll = "all"

// Categories は出品可能なカテゴリの一覧。
var Categories = []string{
	"Electronics",
	"Clothing",
	"Home & Garden",
	"Books",
	"Sports",
	"Toys & Games",
	"Furniture",
	"Other",
}

// IsValidCategory は指定カテゴリが定義済みかどうかを返す。大文字小文字は区別する。
func IsValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}
