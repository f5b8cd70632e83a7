package model

import (
	"encoding/json"
	"time"
)

// User は認証基盤に登録されたユーザーを表す。
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Profile はユーザーの公開プロフィール。signup時に作成し、削除はしない。
type Profile struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Username  string     `json:"username"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// OptionalString はJSONのキー省略とnull指定を区別して受け取る文字列。
// キーが存在しない場合 Set は false のまま。
type OptionalString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON はキーが存在する場合にのみ呼ばれる。
func (o *OptionalString) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}
