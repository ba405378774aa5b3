package auth

import (
	"context"
	"fmt"

	"github.com/hitoshi/chat2doc/internal/model"
)

// Service はOAuthコールバック処理とセッショントークン発行をまとめる。
type Service struct {
	provider OAuthProvider
	codec    *TokenCodec
}

// NewService はServiceを生成する。
func NewService(provider OAuthProvider, codec *TokenCodec) *Service {
	return &Service{provider: provider, codec: codec}
}

// LoginURL はstateを埋め込んだOAuth認証URLを返す。
func (s *Service) LoginURL(state string) string {
	return s.provider.GetLoginURL(state)
}

// LogoutURL はIdP側のセッションも終了させるログアウトURLを返す。
func (s *Service) LogoutURL(returnTo string) string {
	return s.provider.GetLogoutURL(returnTo)
}

// HandleCallback は認可コードを検証してセッショントークンを発行する。
// 返されるIdentityは認証済みで、IDにはIdPのユーザーIDをそのまま使用する。
// 同一ユーザーの再ログインで同じIDに解決され、ドキュメントと履歴が引き継がれる。
func (s *Service) HandleCallback(ctx context.Context, code string) (string, model.Identity, error) {
	userInfo, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		return "", model.Identity{}, fmt.Errorf("oauth callback failed: %w", err)
	}

	identity := model.Identity{
		ID:            userInfo.ProviderUserID,
		Name:          userInfo.Name,
		Email:         userInfo.Email,
		Picture:       userInfo.Picture,
		Authenticated: true,
	}

	token, err := s.codec.Encode(identity)
	if err != nil {
		return "", model.Identity{}, fmt.Errorf("failed to issue session token: %w", err)
	}

	return token, identity, nil
}
