// Package chunk は抽出テキストのチャンク分割とコンテキスト選択を提供する。
package chunk

import "strings"

// DefaultMaxChunkSize はチャンクの最大文字数のデフォルト値。
const DefaultMaxChunkSize = 4000

// Split はテキストを空白区切りトークン単位で最大maxSize文字のチャンクに分割する。
// トークンを区切りスペース1文字付きで追加するとmaxSizeを超える場合に
// 新しいチャンクを開始する。トークンが途中で分割されることはない。
// maxSizeを単独で超えるトークンは、それだけで1つの超過チャンクになる。
// 空文字列・空白のみのテキストは空スライスを返す。
func Split(text string, maxSize int) []string {
	if maxSize <= 0 {
		maxSize = DefaultMaxChunkSize
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	chunks := make([]string, 0, 1)
	var current strings.Builder

	for _, word := range words {
		if current.Len() == 0 {
			current.WriteString(word)
			continue
		}
		if current.Len()+1+len(word) <= maxSize {
			current.WriteByte(' ')
			current.WriteString(word)
			continue
		}
		chunks = append(chunks, current.String())
		current.Reset()
		current.WriteString(word)
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}

// FirstChunk はチャンク列からLLMコンテキストとして使用するチャンクを選択する。
// 先頭チャンクのみを使用する固定ポリシー。関連コンテンツがチャンク2以降にある
// ドキュメントには回答できないという既知の制約であり、ランキングや検索への
// 置き換えはこの関数の契約外。チャンクが存在しない場合は空文字列を返す。
func FirstChunk(chunks []string) string {
	if len(chunks) == 0 {
		return ""
	}
	return chunks[0]
}
