// Package auth はOAuth認証フロー、セッショントークン、Identity解決を提供する。
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Picture        string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// 将来的に複数IdPに対応するための抽象化。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
	// GetLogoutURL はIdP側のセッションも終了させるログアウトURLを生成する。
	GetLogoutURL(returnTo string) string
}

// Auth0Config はAuth0プロバイダーの設定。
type Auth0Config struct {
	Domain       string
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なベースURL。
	// 空の場合は https://{Domain} を使用する。
	BaseURL string
}

// Auth0Provider はAuth0による認証を提供する。
type Auth0Provider struct {
	config  Auth0Config
	baseURL string
}

// NewAuth0Provider はAuth0Providerを生成する。
func NewAuth0Provider(config Auth0Config) *Auth0Provider {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://" + config.Domain
	}
	return &Auth0Provider{config: config, baseURL: baseURL}
}

// GetLoginURL はAuth0の認証URLを生成する。
// スコープにはopenid, email, profileを含む。
func (p *Auth0Provider) GetLoginURL(state string) string {
	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectURL},
		"response_type": {"code"},
		"scope":         {"openid email profile"},
		"state":         {state},
	}
	return p.baseURL + "/authorize?" + params.Encode()
}

// GetLogoutURL はAuth0のログアウトURLを生成する。
func (p *Auth0Provider) GetLogoutURL(returnTo string) string {
	params := url.Values{
		"client_id": {p.config.ClientID},
		"returnTo":  {returnTo},
	}
	return p.baseURL + "/v2/logout?" + params.Encode()
}

// auth0TokenResponse はAuth0のトークンエンドポイントのレスポンス。
type auth0TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// auth0UserInfo はAuth0のユーザー情報エンドポイントのレスポンス。
type auth0UserInfo struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、ユーザー情報を取得する。
func (p *Auth0Provider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	// 1. 認可コードをアクセストークンに交換
	tokenResp, err := p.exchangeToken(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	// 2. アクセストークンでユーザー情報を取得
	userInfo, err := p.fetchUserInfo(ctx, tokenResp.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	return &OAuthUserInfo{
		ProviderUserID: userInfo.Sub,
		Email:          userInfo.Email,
		Name:           userInfo.Name,
		Picture:        userInfo.Picture,
	}, nil
}

// exchangeToken は認可コードをアクセストークンに交換する。
func (p *Auth0Provider) exchangeToken(ctx context.Context, code string) (*auth0TokenResponse, error) {
	data := url.Values{
		"code":          {code},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"redirect_uri":  {p.config.RedirectURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/oauth/token", strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp auth0TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}

	return &tokenResp, nil
}

// fetchUserInfo はアクセストークンでAuth0のユーザー情報を取得する。
func (p *Auth0Provider) fetchUserInfo(ctx context.Context, accessToken string) (*auth0UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/userinfo", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read user info response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var userInfo auth0UserInfo
	if err := json.Unmarshal(body, &userInfo); err != nil {
		return nil, fmt.Errorf("failed to parse user info response: %w", err)
	}

	if userInfo.Sub == "" {
		return nil, fmt.Errorf("empty sub in user info response")
	}

	return &userInfo, nil
}

// compile-time interface check
var _ OAuthProvider = (*Auth0Provider)(nil)
