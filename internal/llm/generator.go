// Package llm はホストされた生成モデルによる回答生成を提供する。
package llm

import (
	"context"
	"fmt"
)

// Generator は質問とドキュメントコンテキストから回答を生成するインターフェース。
type Generator interface {
	// Generate は質問とコンテキストを生成モデルに送り、回答テキストを返す。
	// 上流の失敗（タイムアウト・クォータ・不正レスポンス）はすべて
	// *GenerationErrorとして返す。リトライは行わない。
	Generate(ctx context.Context, question, docContext string) (string, error)
}

// GenerationError は生成モデルの上流エラーを表す。
// 呼び出し元はこれを一般的な失敗としてユーザーに提示し、詳細はログに残す。
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("answer generation failed: %s", e.Reason)
}

func (e *GenerationError) Unwrap() error { return e.Err }
