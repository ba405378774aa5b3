package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/chat2doc/internal/model"
)

// ErrRealtimeTokenUnauthorized は認証済みでないIdentityによる
// リアルタイムトークン要求を表す。
var ErrRealtimeTokenUnauthorized = errors.New("realtime token requires an authenticated identity")

// DefaultRealtimeTokenTTL はリアルタイムトークンのデフォルト有効期間。
const DefaultRealtimeTokenTTL = time.Hour

// RealtimeTokenMinter はリアルタイム連携基盤向けの短命カスタムトークンを発行する。
// セッショントークンとは別の秘密鍵で署名し、用途を分離する。
type RealtimeTokenMinter struct {
	secret []byte
	ttl    time.Duration
}

// NewRealtimeTokenMinter はRealtimeTokenMinterを生成する。
// ttlが0以下の場合はDefaultRealtimeTokenTTLを使用する。
func NewRealtimeTokenMinter(secret string, ttl time.Duration) *RealtimeTokenMinter {
	if ttl <= 0 {
		ttl = DefaultRealtimeTokenTTL
	}
	return &RealtimeTokenMinter{secret: []byte(secret), ttl: ttl}
}

// Mint は認証済みIdentityに対してカスタムトークンを発行する。
// 匿名Identityに対してはErrRealtimeTokenUnauthorizedを返す。
func (m *RealtimeTokenMinter) Mint(identity model.Identity) (string, error) {
	if !identity.Authenticated {
		return "", ErrRealtimeTokenUnauthorized
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"uid": identity.ID,
		"iat": now.Unix(),
		"exp": now.Add(m.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign realtime token: %w", err)
	}
	return signed, nil
}
