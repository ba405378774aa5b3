package model

import "time"

// StoredDocument は抽出済みドキュメントテキストを表す。
// オーナーIDごとに1件のみ保持し、新しいアップロードは前の値を上書きする。
type StoredDocument struct {
	OwnerID   string
	Text      string
	UpdatedAt time.Time
}

// ChatRecord は質問と回答のアーカイブレコードを表す。
type ChatRecord struct {
	ID        string
	OwnerID   string
	Question  string
	Answer    string
	CreatedAt time.Time
}
