package auth

import (
	"github.com/google/uuid"

	"github.com/hitoshi/chat2doc/internal/model"
)

// Resolver はリクエストに付随するトークンからIdentityを決定する。
// 優先順位: 有効なセッショントークン > 既存の匿名トークン > 新規匿名ID発行。
type Resolver struct {
	codec *TokenCodec
}

// NewResolver はResolverを生成する。
func NewResolver(codec *TokenCodec) *Resolver {
	return &Resolver{codec: codec}
}

// Resolve はセッショントークンと匿名IDからIdentityを解決する。
// mintedは新しい匿名IDを発行した場合にtrueとなり、呼び出し元は
// Cookieの書き戻しが必要になる。
// トークンの不在はエラーではない。改ざんされたセッショントークンのみ
// ErrMalformedTokenを返し、呼び出し元はCookie破棄と401で応答する。
func (r *Resolver) Resolve(sessionToken, anonymousID string) (identity model.Identity, minted bool, err error) {
	if sessionToken != "" {
		identity, err = r.codec.Decode(sessionToken)
		if err != nil {
			return model.Identity{}, false, err
		}
		return identity, false, nil
	}

	if model.IsAnonymousID(anonymousID) {
		return model.NewAnonymousIdentity(anonymousID), false, nil
	}

	// 匿名IDが無い、またはプレフィックスが不正な場合は新規発行する。
	// 不正な値を信用するとクォータの名前空間を偽装できてしまう。
	newID := model.AnonymousIDPrefix + uuid.NewString()
	return model.NewAnonymousIdentity(newID), true, nil
}
