// Package extract はアップロードされたPDFからのテキスト抽出を提供する。
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
)

// DefaultMaxFileSize は入力ファイルサイズのデフォルト上限（10MiB）。
const DefaultMaxFileSize = 10 * 1024 * 1024

// 抽出の入力検証エラー。errors.Isで判定する。
var (
	// ErrInvalidFileType はファイル名がPDFを示していない場合のエラー。
	// 判定は拡張子のみで行い、マジックバイトのスニッフィングはしない
	// （意図的な簡略化。偽装拡張子はパース段階でParseErrorになる）。
	ErrInvalidFileType = errors.New("unsupported file type")
	// ErrEmptyFile は入力バイト列が空の場合のエラー。
	ErrEmptyFile = errors.New("empty file data")
	// ErrFileTooLarge は入力がサイズ上限を超えた場合のエラー。
	ErrFileTooLarge = errors.New("file size exceeds limit")
	// ErrEmptyExtraction は抽出結果が空または空白のみだった場合のエラー。
	// 空文字列での成功は返さない。
	ErrEmptyExtraction = errors.New("no text content extracted")
)

// ParseError は特定のドキュメントのパース失敗を表す。
// 同じファイルを再送しても解決しない。
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("pdf parse failed: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// InitError は抽出エンジンの1回限りの初期化失敗を表す。
// ParseErrorとは区別され、呼び出し側は初期化完了後のリトライを案内できる。
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("extraction engine initialization failed: %v", e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// Extractor はPDFバイト列からプレーンテキストを抽出する。
// 初回利用時にエンジンのウォームアップを1回だけ実行する。
type Extractor struct {
	maxFileSize int64

	initOnce sync.Once
	initErr  error
}

// NewExtractor はExtractorを生成する。
// maxFileSizeが0以下の場合はDefaultMaxFileSizeを使用する。
func NewExtractor(maxFileSize int64) *Extractor {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &Extractor{maxFileSize: maxFileSize}
}

// Extract はPDFバイト列からプレーンテキストを抽出する。
// ファイル名の拡張子・サイズ・空入力を検証し、パース結果の空白のみの
// テキストはErrEmptyExtractionとして失敗させる。
func (e *Extractor) Extract(fileName string, data []byte) (string, error) {
	if !strings.EqualFold(filepath.Ext(fileName), ".pdf") {
		return "", fmt.Errorf("%w: %s", ErrInvalidFileType, fileName)
	}
	if len(data) == 0 {
		return "", ErrEmptyFile
	}
	if int64(len(data)) > e.maxFileSize {
		return "", fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, len(data), e.maxFileSize)
	}

	if err := e.warmUp(); err != nil {
		return "", err
	}

	raw, err := parsePlainText(data)
	if err != nil {
		return "", err
	}

	return normalize(raw)
}

// normalize は抽出結果の前後空白を除去し、空または空白のみの結果を
// ErrEmptyExtractionとして失敗させる。
func normalize(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", ErrEmptyExtraction
	}
	return text, nil
}

// parsePlainText はPDFバイト列をパースしてプレーンテキストを返す。
// 下層ライブラリは不正なドキュメントでpanicすることがあるため、
// recoverでParseErrorに変換する。
func parsePlainText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ParseError{Reason: "parser panic", Err: fmt.Errorf("%v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &ParseError{Reason: "invalid pdf structure", Err: err}
	}

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", &ParseError{Reason: "text extraction failed", Err: err}
	}

	raw, err := io.ReadAll(textReader)
	if err != nil {
		return "", &ParseError{Reason: "text read failed", Err: err}
	}

	return string(raw), nil
}

// warmUp は初回呼び出し時に最小のPDFでエンジンを検証する。
// 失敗は記憶され、以降の呼び出しも同じInitErrorを返す。
func (e *Extractor) warmUp() error {
	e.initOnce.Do(func() {
		sample := minimalPDF()
		if _, err := pdf.NewReader(bytes.NewReader(sample), int64(len(sample))); err != nil {
			e.initErr = &InitError{Err: err}
		}
	})
	return e.initErr
}

// minimalPDF はウォームアップ用の最小構成のPDFを生成する。
// xrefオフセットを正確にするため実行時に組み立てる。
func minimalPDF() []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	objects := []string{
		"1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n",
		"2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n",
		"3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>\nendobj\n",
	}

	offsets := make([]int, 0, len(objects))
	for _, obj := range objects {
		offsets = append(offsets, buf.Len())
		buf.WriteString(obj)
	}

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xrefStart)

	return buf.Bytes()
}
