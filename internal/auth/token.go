package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/chat2doc/internal/model"
)

// ErrMalformedToken は改ざん・期限切れ・署名不正のセッショントークンを表す。
// トークンが存在しないケースとは区別する。呼び出し元はこのエラーを
// 受け取ったらCookieを破棄して401を返す。
var ErrMalformedToken = errors.New("malformed session token")

// DefaultSessionTTL はセッショントークンのデフォルト有効期間（7日）。
const DefaultSessionTTL = 7 * 24 * time.Hour

// TokenCodec はIdentityをHS256署名付きJWTとして符号化・復号する。
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenCodec はTokenCodecを生成する。
// ttlが0以下の場合はDefaultSessionTTLを使用する。
func NewTokenCodec(secret string, ttl time.Duration) *TokenCodec {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenCodec{secret: []byte(secret), ttl: ttl}
}

// Encode はIdentityをセッショントークンに符号化する。
func (c *TokenCodec) Encode(identity model.Identity) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":           identity.ID,
		"name":          identity.Name,
		"email":         identity.Email,
		"picture":       identity.Picture,
		"authenticated": identity.Authenticated,
		"iat":           now.Unix(),
		"exp":           now.Add(c.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Decode はセッショントークンを検証してIdentityを復元する。
// 署名不正・期限切れ・形式不正はすべてErrMalformedTokenにラップして返す。
func (c *TokenCodec) Decode(tokenString string) (model.Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return model.Identity{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return model.Identity{}, ErrMalformedToken
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return model.Identity{}, fmt.Errorf("%w: missing sub claim", ErrMalformedToken)
	}

	name, _ := claims["name"].(string)
	email, _ := claims["email"].(string)
	picture, _ := claims["picture"].(string)
	authenticated, _ := claims["authenticated"].(bool)

	return model.Identity{
		ID:            sub,
		Name:          name,
		Email:         email,
		Picture:       picture,
		Authenticated: authenticated,
	}, nil
}
